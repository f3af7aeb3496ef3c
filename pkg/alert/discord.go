package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	discordColorInfo    = 0x2F81F7
	discordColorWarning = 0xD29922
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{client: defaultClient(), webhookURL: webhookURL}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	color := discordColorInfo
	if n.Level == LevelWarning {
		color = discordColorWarning
	}

	var fields []map[string]any
	for _, f := range n.Fields {
		fields = append(fields, map[string]any{"name": f.Name, "value": f.Value, "inline": true})
	}

	embed := map[string]any{
		"title":       n.Title,
		"description": n.Body,
		"color":       color,
		"timestamp":   n.SentAt.UTC().Format(time.RFC3339),
	}
	if len(fields) > 0 {
		embed["fields"] = fields
	}

	body, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	if err := post(ctx, d.client, d.webhookURL, body, nil); err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}
