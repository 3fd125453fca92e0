package incident

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulse/app/internal/models"
)

// Display formats for the human-readable incident fields
const (
	DateFormat = "Jan 2, 2006"
	TimeFormat = "3:04 PM MST"
)

var (
	ErrNotFound      = errors.New("incident not found")
	ErrTitleRequired = errors.New("title is required")
	ErrInvalidStatus = errors.New("invalid incident status")
)

// Store persists incidents. LoadIncidents returns them most recent first.
type Store interface {
	SaveIncident(ctx context.Context, inc models.Incident) error
	LoadIncidents(ctx context.Context) ([]models.Incident, error)
}

// NewIncident holds the fields accepted when recording an incident
type NewIncident struct {
	Title        string                  `json:"title"`
	Status       models.IncidentStatus   `json:"status"`
	ResolvedTime string                  `json:"resolvedTime"`
	Updates      []models.IncidentUpdate `json:"updates"`
}

// Patch is a shallow update: nil fields are left unchanged, present fields
// replace the stored value wholesale.
type Patch struct {
	Title          *string                  `json:"title"`
	Status         *models.IncidentStatus   `json:"status"`
	Date           *string                  `json:"date"`
	IdentifiedTime *string                  `json:"identifiedTime"`
	ResolvedTime   *string                  `json:"resolvedTime"`
	Updates        *[]models.IncidentUpdate `json:"updates"`
}

// Log is the list of recorded incidents, most recent first. Incidents are
// never removed. Status transitions are not constrained: any status may be
// patched to any other. It is safe for concurrent use.
type Log struct {
	mu        sync.RWMutex
	incidents []models.Incident
	store     Store
	loc       *time.Location
	now       func() time.Time
	newID     func() string
}

// NewLog creates an incident log. store may be nil for a memory-only log.
func NewLog(store Store, loc *time.Location) *Log {
	if loc == nil {
		loc = time.Local
	}
	return &Log{
		store: store,
		loc:   loc,
		now:   time.Now,
		newID: newID,
	}
}

// newID returns a time-ordered unique id
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load replaces the in-memory list with the stored incidents
func (l *Log) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	incs, err := l.store.LoadIncidents(ctx)
	if err != nil {
		return fmt.Errorf("load incidents: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.incidents = incs
	return nil
}

// Add records a new incident at the head of the log
func (l *Log) Add(ctx context.Context, in NewIncident) (models.Incident, error) {
	if in.Title == "" {
		return models.Incident{}, ErrTitleRequired
	}
	if in.Status == "" {
		in.Status = models.IncidentIdentified
	}
	if !in.Status.Valid() {
		return models.Incident{}, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}

	now := l.now().In(l.loc)
	updates, err := l.normalizeUpdates(in.Updates, in.Status, now)
	if err != nil {
		return models.Incident{}, err
	}

	inc := models.Incident{
		ID:             l.newID(),
		Title:          in.Title,
		Status:         in.Status,
		Date:           now.Format(DateFormat),
		IdentifiedTime: now.Format(TimeFormat),
		ResolvedTime:   in.ResolvedTime,
		Updates:        updates,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store != nil {
		if err := l.store.SaveIncident(ctx, inc); err != nil {
			return models.Incident{}, fmt.Errorf("save incident: %w", err)
		}
	}
	l.incidents = append([]models.Incident{inc}, l.incidents...)
	return clone(inc), nil
}

// Update merges p into the incident with the given id. Unknown ids return
// ErrNotFound and leave the log untouched.
func (l *Log) Update(ctx context.Context, id string, p Patch) (models.Incident, error) {
	if p.Status != nil && !p.Status.Valid() {
		return models.Incident{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return models.Incident{}, ErrNotFound
	}

	inc := clone(l.incidents[idx])
	if p.Title != nil {
		if *p.Title == "" {
			return models.Incident{}, ErrTitleRequired
		}
		inc.Title = *p.Title
	}
	if p.Status != nil {
		inc.Status = *p.Status
	}
	if p.Date != nil {
		inc.Date = *p.Date
	}
	if p.IdentifiedTime != nil {
		inc.IdentifiedTime = *p.IdentifiedTime
	}
	if p.ResolvedTime != nil {
		inc.ResolvedTime = *p.ResolvedTime
	}
	if p.Updates != nil {
		updates, err := l.normalizeUpdates(*p.Updates, inc.Status, l.now().In(l.loc))
		if err != nil {
			return models.Incident{}, err
		}
		inc.Updates = updates
	}

	if l.store != nil {
		if err := l.store.SaveIncident(ctx, inc); err != nil {
			return models.Incident{}, fmt.Errorf("save incident: %w", err)
		}
	}
	l.incidents[idx] = inc
	return clone(inc), nil
}

// List returns every incident, most recent first
func (l *Log) List() []models.Incident {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Incident, len(l.incidents))
	for i, inc := range l.incidents {
		out[i] = clone(inc)
	}
	return out
}

// Len returns the number of recorded incidents
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.incidents)
}

func (l *Log) indexOf(id string) int {
	for i := range l.incidents {
		if l.incidents[i].ID == id {
			return i
		}
	}
	return -1
}

// normalizeUpdates fills in missing times and statuses and validates the rest
func (l *Log) normalizeUpdates(in []models.IncidentUpdate, status models.IncidentStatus, now time.Time) ([]models.IncidentUpdate, error) {
	out := make([]models.IncidentUpdate, len(in))
	for i, u := range in {
		if u.Status == "" {
			u.Status = status
		}
		if !u.Status.Valid() {
			return nil, fmt.Errorf("%w: update %d has status %q", ErrInvalidStatus, i, u.Status)
		}
		if u.Time == "" {
			u.Time = now.Format(TimeFormat)
		}
		out[i] = u
	}
	return out, nil
}

func clone(inc models.Incident) models.Incident {
	inc.Updates = append([]models.IncidentUpdate{}, inc.Updates...)
	return inc
}
