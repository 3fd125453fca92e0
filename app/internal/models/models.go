package models

import "time"

// Status is the outcome of a single probe
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Sample represents one health check result
type Sample struct {
	Timestamp  time.Time `json:"timestamp"`
	Status     Status    `json:"status"`
	LatencyMs  int64     `json:"latencyMs"`
	URL        string    `json:"url,omitempty"`
	HTTPStatus int       `json:"httpStatus,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Up reports whether the sample was a successful probe
func (s Sample) Up() bool {
	return s.Status == StatusUp
}

// DayBucket holds aggregated statistics for one calendar day
type DayBucket struct {
	Date          string  `json:"date"`
	UptimePercent float64 `json:"uptimePercent"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`
	Checks        int     `json:"checks"`
	// Measured is false when UptimePercent is the empty-day default rather than
	// a value derived from samples.
	Measured bool `json:"measured"`
}

// IncidentStatus is the lifecycle state of an incident
type IncidentStatus string

const (
	IncidentIdentified IncidentStatus = "identified"
	IncidentMonitoring IncidentStatus = "monitoring"
	IncidentResolved   IncidentStatus = "resolved"
)

// Valid reports whether s is a known incident status
func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentIdentified, IncidentMonitoring, IncidentResolved:
		return true
	}
	return false
}

// IncidentUpdate is a free-text progress entry on an incident
type IncidentUpdate struct {
	Time    string         `json:"time"`
	Message string         `json:"message"`
	Status  IncidentStatus `json:"status"`
}

// Incident represents a manually recorded service disruption
type Incident struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Status         IncidentStatus   `json:"status"`
	Date           string           `json:"date"`
	IdentifiedTime string           `json:"identifiedTime"`
	ResolvedTime   string           `json:"resolvedTime"`
	Updates        []IncidentUpdate `json:"updates"`
}

// CurrentStatus is the result of the live probe made for a status request
type CurrentStatus struct {
	Status         Status `json:"status"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
	URL            string `json:"url"`
}

// StatusPayload is the data section of the status endpoint response
type StatusPayload struct {
	CurrentStatus   CurrentStatus `json:"currentStatus"`
	Incidents       []Incident    `json:"incidents"`
	History         []DayBucket   `json:"history"`
	OverallUptime   float64       `json:"overallUptime"`
	AvgResponseTime float64       `json:"avgResponseTime"`
	TotalChecks     int           `json:"totalChecks"`
	CurrentTime     string        `json:"currentTime"`
}
