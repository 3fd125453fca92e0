package alerts

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"pulse/app/internal/models"
	"pulse/app/internal/monitor"
)

// Status types carried by a Notification
const (
	TypeDown     = "down"
	TypeUp       = "up"
	TypeIncident = "incident"
)

// Config selects the notification channels. Empty URLs disable a channel.
type Config struct {
	WebhookURL        string
	WebhookSecret     string
	DiscordWebhookURL string
	StatusPageURL     string
	// Threshold is the number of consecutive failed samples before a down
	// alert is sent.
	Threshold int
}

// Notification is one outbound alert, rendered per channel
type Notification struct {
	Subject string
	Type    string
	Target  string
	Message string
	Time    time.Time
}

// Manager turns sample transitions and incident changes into notifications
type Manager struct {
	config  Config
	client  *http.Client
	tracker *monitor.FailureTracker
	now     func() time.Time

	wg sync.WaitGroup
}

// NewManager creates a new alerts manager
func NewManager(cfg Config) *Manager {
	if cfg.Threshold < 1 {
		cfg.Threshold = 1
	}
	cfg.StatusPageURL = normalizeStatusPageURL(cfg.StatusPageURL)
	return &Manager{
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		tracker: monitor.NewFailureTracker(),
		now:     time.Now,
	}
}

// Enabled reports whether any channel is configured
func (m *Manager) Enabled() bool {
	return m.config.WebhookURL != "" || m.config.DiscordWebhookURL != ""
}

// Observe records a sample and alerts when the target crosses the failure
// threshold or recovers after having crossed it.
func (m *Manager) Observe(s models.Sample) {
	failures, before := m.tracker.Update(s.URL, s.Up())
	switch {
	case !s.Up() && failures == m.config.Threshold:
		reason := s.Error
		if reason == "" {
			reason = "no response"
		}
		m.dispatchAll(Notification{
			Subject: fmt.Sprintf("Site Down: %s", s.URL),
			Type:    TypeDown,
			Target:  s.URL,
			Message: fmt.Sprintf("%s failed %d consecutive health checks (%s).", s.URL, failures, reason),
			Time:    s.Timestamp,
		})
	case s.Up() && before >= m.config.Threshold:
		m.dispatchAll(Notification{
			Subject: fmt.Sprintf("Site Recovered: %s", s.URL),
			Type:    TypeUp,
			Target:  s.URL,
			Message: fmt.Sprintf("%s is responding again after %d failed checks (%dms).", s.URL, before, s.LatencyMs),
			Time:    s.Timestamp,
		})
	}
}

// IncidentChanged announces an added or updated incident
func (m *Manager) IncidentChanged(inc models.Incident, added bool) {
	verb := "updated"
	if added {
		verb = "reported"
	}
	msg := fmt.Sprintf("Incident %s: %s (%s).", verb, inc.Title, inc.Status)
	if n := len(inc.Updates); n > 0 {
		msg += " " + inc.Updates[n-1].Message
	}
	m.dispatchAll(Notification{
		Subject: fmt.Sprintf("Incident %s: %s", verb, inc.Title),
		Type:    TypeIncident,
		Target:  inc.ID,
		Message: msg,
		Time:    m.now(),
	})
}

// Wait blocks until in-flight notifications finish
func (m *Manager) Wait() {
	m.wg.Wait()
}

// dispatchAll sends a notification across all enabled channels
func (m *Manager) dispatchAll(n Notification) {
	if n.Time.IsZero() {
		n.Time = m.now()
	}
	log.Printf("alert: %s", n.Subject)

	if m.config.WebhookURL != "" {
		m.send("webhook", n, m.SendWebhook)
	}
	if m.config.DiscordWebhookURL != "" {
		m.send("discord", n, m.SendDiscord)
	}
}

func (m *Manager) send(channel string, n Notification, fn func(context.Context, Notification) error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.client.Timeout)
		defer cancel()
		if err := fn(ctx, n); err != nil {
			log.Printf("%s notification failed: %v", channel, err)
		}
	}()
}

func (m *Manager) post(ctx context.Context, url string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pulse-status/1.0")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func normalizeStatusPageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "http://" + raw
	}
	return raw
}
