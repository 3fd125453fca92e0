package alerts

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

var discordColors = map[string]int{
	TypeDown:     0xef4444,
	TypeUp:       0x22c55e,
	TypeIncident: 0xeab308,
}

// SendDiscord sends a rich embed message via Discord webhook
func (m *Manager) SendDiscord(ctx context.Context, n Notification) error {
	embed := map[string]interface{}{
		"title":       n.Subject,
		"description": n.Message,
		"color":       discordColors[n.Type],
		"fields": []map[string]interface{}{
			{"name": "Target", "value": n.Target, "inline": true},
			{"name": "Status", "value": strings.ToUpper(n.Type), "inline": true},
			{"name": "Time", "value": n.Time.Format(time.RFC1123), "inline": false},
		},
		"footer": map[string]string{"text": "pulse status monitor"},
	}
	if m.config.StatusPageURL != "" {
		embed["url"] = m.config.StatusPageURL
	}

	body, err := json.Marshal(map[string]interface{}{
		"username": "pulse",
		"embeds":   []map[string]interface{}{embed},
	})
	if err != nil {
		return err
	}
	return m.post(ctx, m.config.DiscordWebhookURL, body, nil)
}
