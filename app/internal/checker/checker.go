package checker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pulse/app/internal/models"
)

// DefaultTimeout is the hard ceiling for a single probe
const DefaultTimeout = 10 * time.Second

// Prober performs single-attempt liveness probes against a URL.
// A probe never returns an error: failures are folded into a down sample.
type Prober struct {
	DefaultURL  string
	Timeout     time.Duration
	ExpectedMin int
	ExpectedMax int

	client *http.Client
}

// New creates a prober that falls back to defaultURL when no target is given
func New(defaultURL string, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		DefaultURL:  defaultURL,
		Timeout:     timeout,
		ExpectedMin: 200,
		ExpectedMax: 399,
		client: &http.Client{
			// Redirects count as alive; following them would probe a different host.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe checks target (or the default URL when target is empty) and returns
// the resulting sample. tcp:// targets are checked with a plain dial.
func (p *Prober) Probe(ctx context.Context, target string) models.Sample {
	if target == "" {
		target = p.DefaultURL
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	t0 := time.Now()
	s := models.Sample{Timestamp: t0.UTC(), URL: target, Status: models.StatusDown}

	if strings.HasPrefix(target, "tcp://") {
		addr := strings.TrimPrefix(target, "tcp://")
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		s.LatencyMs = elapsedMs(t0)
		if err != nil {
			log.Printf("tcp check error addr=%s err=%v", addr, err)
			s.Error = SanitizeError(err)
			return s
		}
		_ = conn.Close()
		s.Status = models.StatusUp
		return s
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		s.Error = SanitizeError(err)
		return s
	}
	req.Header.Set("User-Agent", "pulse-status/1.0")

	resp, err := p.client.Do(req)
	s.LatencyMs = elapsedMs(t0)
	if err != nil {
		log.Printf("http check error url=%s err=%v", redact(target), err)
		s.Error = SanitizeError(err)
		return s
	}
	defer resp.Body.Close()

	s.HTTPStatus = resp.StatusCode
	if resp.StatusCode >= p.ExpectedMin && resp.StatusCode <= p.ExpectedMax {
		s.Status = models.StatusUp
	} else {
		s.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return s
}

func elapsedMs(t0 time.Time) int64 {
	ms := time.Since(t0).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// SanitizeError reduces a probe error to a message that is safe to store and
// return to clients. URLs (which may carry tokens) are dropped.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return "timeout"
		}
		err = ue.Err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	var oe *net.OpError
	if errors.As(err, &oe) && oe.Err != nil {
		return oe.Op + ": " + oe.Err.Error()
	}
	return err.Error()
}

// redact strips query and userinfo from a URL for logging
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

var metadataHosts = map[string]bool{
	"metadata.google.internal": true,
	"metadata":                 true,
	"instance-data":            true,
}

var metadataIPs = []net.IP{
	net.ParseIP("169.254.169.254"),
	net.ParseIP("fd00:ec2::254"),
	net.ParseIP("100.100.100.200"),
}

func isCloudMetadataIP(ip net.IP) bool {
	for _, m := range metadataIPs {
		if m.Equal(ip) {
			return true
		}
	}
	return false
}

// ValidateTarget checks a caller-supplied probe URL. Only http, https and tcp
// targets are accepted and cloud metadata endpoints are refused.
func ValidateTarget(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "tcp":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.New("missing host")
	}
	if metadataHosts[host] {
		return fmt.Errorf("host %q is not allowed", host)
	}
	if ip := net.ParseIP(host); ip != nil && isCloudMetadataIP(ip) {
		return fmt.Errorf("host %q is not allowed", host)
	}
	return nil
}
