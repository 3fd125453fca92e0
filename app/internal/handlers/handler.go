package handlers

import (
	"net/http"

	"pulse/app/internal/alerts"
	"pulse/app/internal/auth"
	"pulse/app/internal/hub"
	"pulse/app/internal/incident"
	"pulse/app/internal/models"
	"pulse/app/internal/monitor"
	"pulse/app/internal/ratelimit"
	"pulse/app/internal/security"
	"pulse/app/internal/stats"
)

// MaxHistoryDays bounds the ?days= override on GET /status
const MaxHistoryDays = 365

// Options tunes request handling
type Options struct {
	// DefaultURL is probed when a request names no target.
	DefaultURL string
	// HistoryDays is the default length of the per-day series.
	HistoryDays int
	// RequestDriven appends the live probe of DefaultURL to the log. Used
	// when no background sampler is running.
	RequestDriven bool
	// AllowURLOverride permits ?url= on GET /status.
	AllowURLOverride bool
	// AllowedOrigins feeds the CORS middleware.
	AllowedOrigins []string
	// ClientIP keys the per-client rate limits. Defaults to the peer address.
	ClientIP func(*http.Request) string
}

// Deps are the long-lived components the handlers serve from
type Deps struct {
	Prober     monitor.Prober
	Log        *monitor.Log
	Aggregator *stats.Aggregator
	Incidents  *incident.Log
	Hub        *hub.Hub
	Auth       *auth.Auth
	Alerts     *alerts.Manager
	// Writes limits POST /status per client; Probes limits ?url= overrides.
	Writes *ratelimit.Limiter
	Probes *ratelimit.Limiter
}

type Handler struct {
	Deps
	opts     Options
	clientIP func(*http.Request) string
}

func New(deps Deps, opts Options) *Handler {
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = stats.DefaultHistoryDays
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	clientIP := opts.ClientIP
	if clientIP == nil {
		clientIP = security.ClientIP
	}
	return &Handler{
		Deps:     deps,
		opts:     opts,
		clientIP: clientIP,
	}
}

// broadcast pushes evt to live clients when a hub is configured
func (h *Handler) broadcast(evtType string, payload interface{}) {
	if h.Hub != nil {
		h.Hub.Broadcast(hub.Event{Type: evtType, Payload: payload})
	}
}

// recordSample appends a request-driven sample and fans it out
func (h *Handler) recordSample(s models.Sample) {
	h.Log.Append(s)
	h.broadcast(hub.EventSample, s)
	if h.Alerts != nil {
		h.Alerts.Observe(s)
	}
}

func (h *Handler) incidentChanged(inc models.Incident, added bool) {
	evt := hub.EventIncidentUpdated
	if added {
		evt = hub.EventIncidentAdded
	}
	h.broadcast(evt, inc)
	if h.Alerts != nil {
		h.Alerts.IncidentChanged(inc, added)
	}
}
