package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{client: defaultClient(), webhookURL: webhookURL}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	icon := ":books:"
	if n.Level == LevelWarning {
		icon = ":warning:"
	}
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": n.Title},
		},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": icon + " " + n.Body},
		},
	}

	if len(n.Fields) > 0 {
		var fields []map[string]any
		for _, f := range n.Fields {
			fields = append(fields, map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s*\n%s", f.Name, f.Value),
			})
		}
		// Slack renders at most ten fields per section.
		if len(fields) > 10 {
			fields = fields[:10]
		}
		blocks = append(blocks, map[string]any{"type": "section", "fields": fields})
	}

	body, err := json.Marshal(map[string]any{"text": n.Title, "blocks": blocks})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := post(ctx, s.client, s.webhookURL, body, nil); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
