package alerts

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"
)

// SignatureHeader carries the HMAC-SHA256 of the webhook body
const SignatureHeader = "X-Pulse-Signature"

// SendWebhook posts a JSON payload to the generic webhook URL, signed when a
// secret is configured.
func (m *Manager) SendWebhook(ctx context.Context, n Notification) error {
	payload := map[string]interface{}{
		"event":       "status_change",
		"status":      n.Type,
		"target":      n.Target,
		"subject":     n.Subject,
		"message":     n.Message,
		"status_page": m.config.StatusPageURL,
		"timestamp":   n.Time.UTC().Format(time.RFC3339),
	}
	if n.Type == TypeIncident {
		payload["event"] = "incident"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	header := http.Header{}
	if m.config.WebhookSecret != "" {
		header.Set(SignatureHeader, "sha256="+Sign(m.config.WebhookSecret, body))
	}
	return m.post(ctx, m.config.WebhookURL, body, header)
}

// Sign returns the hex HMAC-SHA256 of body under secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
