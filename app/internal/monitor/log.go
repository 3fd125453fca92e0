package monitor

import (
	"context"
	"log"
	"sync"

	"pulse/app/internal/models"
)

// DefaultCapacity is the number of samples kept when none is configured
const DefaultCapacity = 1000

// Store is the durable backing for a Log. A nil Store keeps the log purely
// in memory, which is the default: samples are lost on restart.
type Store interface {
	AppendSample(ctx context.Context, s models.Sample) error
	// ReadSamples returns at most limit samples, oldest first, ending with the newest.
	ReadSamples(ctx context.Context, limit int) ([]models.Sample, error)
}

// Log is an append-only, capacity-bounded record of samples.
// Insertion order is chronological order; once full, the oldest samples are
// evicted first. It is safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	samples  []models.Sample
	capacity int
	version  uint64
	store    Store
}

// NewLog creates a log holding at most capacity samples. store may be nil.
func NewLog(capacity int, store Store) *Log {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Log{
		samples:  make([]models.Sample, 0, capacity),
		capacity: capacity,
		store:    store,
	}
}

// Load restores the newest samples from the store, replacing the in-memory contents
func (l *Log) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	samples, err := l.store.ReadSamples(ctx, l.capacity)
	if err != nil {
		return err
	}
	if len(samples) > l.capacity {
		samples = samples[len(samples)-l.capacity:]
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = append(make([]models.Sample, 0, l.capacity), samples...)
	l.version++
	return nil
}

// Append adds a sample, evicting from the front once capacity is exceeded.
// Store failures are logged; the in-memory log is always updated.
func (l *Log) Append(s models.Sample) {
	l.mu.Lock()
	l.samples = append(l.samples, s)
	if over := len(l.samples) - l.capacity; over > 0 {
		// Shift in place so the backing array does not grow without bound.
		n := copy(l.samples, l.samples[over:])
		clear(l.samples[n:])
		l.samples = l.samples[:n]
	}
	l.version++
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.AppendSample(context.Background(), s); err != nil {
			log.Printf("monitor: failed to persist sample: %v", err)
		}
	}
}

// All returns a snapshot of the log, oldest first
func (l *Log) All() []models.Sample {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Sample, len(l.samples))
	copy(out, l.samples)
	return out
}

// Snapshot returns the samples together with the version they correspond to
func (l *Log) Snapshot() ([]models.Sample, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Sample, len(l.samples))
	copy(out, l.samples)
	return out, l.version
}

// Latest returns the newest sample, if any
func (l *Log) Latest() (models.Sample, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.samples) == 0 {
		return models.Sample{}, false
	}
	return l.samples[len(l.samples)-1], true
}

// Len returns the number of samples currently held
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}

// Capacity returns the maximum number of samples held
func (l *Log) Capacity() int {
	return l.capacity
}

// Version increments on every change and identifies a log state
func (l *Log) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}
