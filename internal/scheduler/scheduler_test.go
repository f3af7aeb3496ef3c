package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/skilldex/internal/logging"
	"github.com/elonfeng/skilldex/internal/store"
	"github.com/elonfeng/skilldex/pkg/alert"
	"github.com/elonfeng/skilldex/pkg/leaderboard"
)

type fakeSyncer struct {
	mu    sync.Mutex
	calls int
	res   *leaderboard.Result
	err   error
	block chan struct{}
}

func (f *fakeSyncer) SyncAll(context.Context) (*leaderboard.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.res, f.err
}

func (f *fakeSyncer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStats struct{}

func (fakeStats) Stats(context.Context) (*store.Stats, error) {
	return &store.Stats{Skills: 900, PendingDiscovery: 12, Resolved: 850, WithContent: 800}, nil
}

type fakeAlerts struct {
	mu   sync.Mutex
	sent []*alert.Notification
}

func (f *fakeAlerts) HasNotifiers() bool { return true }

func (f *fakeAlerts) Broadcast(_ context.Context, n *alert.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

type fakeRefresher struct{ calls int }

func (f *fakeRefresher) ScheduleRefresh(context.Context) error {
	f.calls++
	return nil
}

func TestNewRejectsBadCron(t *testing.T) {
	t.Parallel()

	_, err := New(&fakeSyncer{}, nil, nil, nil, logging.Discard(), Options{SyncCron: "every day"})
	assert.Error(t, err)

	_, err = New(&fakeSyncer{}, &fakeRefresher{}, nil, nil, logging.Discard(), Options{RefreshCron: "0 0 * *"})
	assert.Error(t, err)

	s, err := New(&fakeSyncer{}, nil, nil, nil, logging.Discard(), Options{SyncCron: "0 3 * * *", RefreshCron: "bogus"})
	require.NoError(t, err, "refresh cron is ignored without a refresher")
	assert.NotNil(t, s.syncSched)
	assert.Nil(t, s.refreshSched)
}

func TestRunSyncBroadcastsSummary(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{res: &leaderboard.Result{
		Pages: 3, Qualified: 250, Inserted: 12, Updated: 238,
		StoppedReason: leaderboard.StopLongTail, Duration: 4 * time.Second,
	}}
	alerts := &fakeAlerts{}
	s, err := New(syncer, nil, fakeStats{}, alerts, logging.Discard(), Options{})
	require.NoError(t, err)

	res, err := s.RunSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, res.Inserted)

	require.Len(t, alerts.sent, 1)
	n := alerts.sent[0]
	assert.Equal(t, "Leaderboard sync finished", n.Title)
	assert.Equal(t, alert.LevelInfo, n.Level)
	assert.Contains(t, n.Body, "12 new skills")
	assert.Contains(t, n.Fields, alert.Field{Name: "Stopped", Value: "long_tail"})
	assert.Contains(t, n.Fields, alert.Field{Name: "Pending discovery", Value: "12"})
}

func TestRunSyncSkipsOverlap(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{res: &leaderboard.Result{}, block: make(chan struct{})}
	s, err := New(syncer, nil, nil, nil, logging.Discard(), Options{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.RunSync(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return syncer.count() == 1 }, time.Second, 5*time.Millisecond)

	res, err := s.RunSync(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1, syncer.count())

	close(syncer.block)
	<-done
}

func TestSummary(t *testing.T) {
	t.Parallel()

	failed := Summary(nil, nil, errors.New("disk full"))
	assert.Equal(t, "Leaderboard sync failed", failed.Title)
	assert.Equal(t, alert.LevelWarning, failed.Level)
	assert.Equal(t, "disk full", failed.Body)
	assert.Empty(t, failed.Fields)

	partial := Summary(&leaderboard.Result{Pages: 2, PageError: errors.New("502"), StoppedReason: leaderboard.StopError}, nil, nil)
	assert.Equal(t, "Leaderboard sync stopped early", partial.Title)
	assert.Equal(t, alert.LevelWarning, partial.Level)
	assert.Contains(t, partial.Body, "after 2 pages")
}

func TestRunOnStartAndStop(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{res: &leaderboard.Result{}}
	s, err := New(syncer, &fakeRefresher{}, nil, nil, logging.Discard(), Options{
		SyncCron:    "0 3 * * *",
		RefreshCron: "0 4 * * 0",
		RunOnStart:  true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return syncer.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunRefresh(t *testing.T) {
	t.Parallel()

	r := &fakeRefresher{}
	s, err := New(&fakeSyncer{}, r, nil, nil, logging.Discard(), Options{})
	require.NoError(t, err)
	s.runRefresh(context.Background())
	assert.Equal(t, 1, r.calls)
}
