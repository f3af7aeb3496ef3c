// Package alert delivers pipeline notifications to chat and webhook destinations.
package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elonfeng/skilldex/internal/httperr"
)

// Level marks how a notification should be presented.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Field is one labelled value of a notification.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Notification is the data sent to alert destinations.
type Notification struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Level  Level     `json:"level"`
	Fields []Field   `json:"fields,omitempty"`
	SentAt time.Time `json:"sentAt"`
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Names lists the configured destinations.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		out = append(out, n.Name())
	}
	return out
}

// Broadcast sends a notification to all registered notifiers. Every notifier is tried;
// failures are joined.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// post sends a JSON body and maps non-2xx answers to a coded error.
func post(ctx context.Context, client *http.Client, url string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "skilldex/1.0")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httperr.WithCode(fmt.Errorf("unexpected status %d", resp.StatusCode), resp.StatusCode)
	}
	return nil
}
