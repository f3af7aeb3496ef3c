package content

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/elonfeng/skilldex/internal/httperr"
	"github.com/elonfeng/skilldex/internal/store"
)

const (
	defaultAttempts = 3
	defaultBackoff  = time.Second
)

// Store is the subset of store.Store the fetcher needs.
type Store interface {
	GetSkill(ctx context.Context, id int64) (*store.Skill, error)
	SetSkillContent(ctx context.Context, id int64, description, content *string, fetchedAt time.Time) error
}

// RawClient downloads raw files. Non-2xx responses must carry an httperr code so they
// can be told apart from transport failures.
type RawClient interface {
	FetchRaw(ctx context.Context, rawURL string) (string, error)
}

// Fetcher downloads a skill's resolved content file and stores its description and body.
type Fetcher struct {
	store    Store
	raw      RawClient
	log      *slog.Logger
	attempts int
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithBackoff sets the base retry delay; attempt n waits n*d.
func WithBackoff(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.backoff = d }
}

// WithAttempts sets the maximum number of attempts.
func WithAttempts(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(s Store, raw RawClient, log *slog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		store:    s,
		raw:      raw,
		log:      log,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		sleep:    sleepCtx,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NeedsContent reports whether sk has a resolved URL and either no content yet or a
// description left malformed by an earlier parse.
func NeedsContent(sk *store.Skill) bool {
	if sk.SkillMdURL == nil || *sk.SkillMdURL == "" {
		return false
	}
	return sk.Content == nil || IsMalformedDescription(sk.Description)
}

// FetchContent fetches and stores the content of skill id. A skill that no longer
// needs content is a no-op. HTTP failures and exhausted retries are logged, not
// returned; only store errors are.
func (f *Fetcher) FetchContent(ctx context.Context, id int64) error {
	sk, err := f.store.GetSkill(ctx, id)
	if err != nil {
		return fmt.Errorf("load skill %d: %w", id, err)
	}
	if !NeedsContent(sk) {
		f.log.Debug("skill content up to date", "skill", sk.SkillID, "source", sk.Source)
		return nil
	}
	url := *sk.SkillMdURL

	var text string
	for attempt := 1; ; attempt++ {
		text, err = f.raw.FetchRaw(ctx, url)
		if err == nil {
			break
		}
		if httperr.HasCode(err) {
			f.log.Warn("content fetch failed",
				"skill", sk.SkillID, "source", sk.Source, "status", httperr.Code(err), "url", url)
			return nil
		}
		if attempt >= f.attempts {
			f.log.Error("content fetch gave up",
				"skill", sk.SkillID, "source", sk.Source, "attempts", attempt, "error", err)
			return nil
		}
		f.log.Debug("content fetch retry", "skill", sk.SkillID, "attempt", attempt, "error", err)
		if err := f.sleep(ctx, time.Duration(attempt)*f.backoff); err != nil {
			return err
		}
	}

	doc := ParseDocument(text)
	body := doc.Body
	desc := doc.Description
	if desc == nil && IsMalformedDescription(sk.Description) {
		// Overwrite the stale indicator so the skill leaves the fetch queue.
		empty := ""
		desc = &empty
	}
	if err := f.store.SetSkillContent(ctx, sk.ID, desc, &body, f.now()); err != nil {
		return fmt.Errorf("store content for skill %d: %w", sk.ID, err)
	}

	f.log.Info("content fetched",
		"skill", sk.SkillID, "source", sk.Source,
		"frontmatter", doc.HasFrontmatter, "bytes", len(body))
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
