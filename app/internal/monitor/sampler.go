package monitor

import (
	"context"
	"log"
	"time"

	"pulse/app/internal/models"
)

// Prober produces a sample for a target URL
type Prober interface {
	Probe(ctx context.Context, target string) models.Sample
}

// Sampler probes a single target on a fixed interval and appends every
// result to the log. Probes are serialized: one is in flight at a time.
type Sampler struct {
	Prober   Prober
	Log      *Log
	Tracker  *FailureTracker
	Target   string
	Interval time.Duration

	// OnSample, when set, is called after each recorded sample.
	OnSample func(models.Sample)
}

// Run performs an immediate probe, then one per interval until ctx is cancelled
func (s *Sampler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	s.Tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("sampler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one probe and records it. A probe cut short by cancellation of
// ctx is not recorded, since it says nothing about the target.
func (s *Sampler) Tick(ctx context.Context) (models.Sample, bool) {
	sample := s.Prober.Probe(ctx, s.Target)
	if ctx.Err() != nil {
		return sample, false
	}

	s.Log.Append(sample)

	if s.Tracker != nil {
		failures, before := s.Tracker.Update(sample.URL, sample.Up())
		switch {
		case !sample.Up() && failures == 1:
			log.Printf("check %s: down (%s, %dms)", sample.URL, sample.Error, sample.LatencyMs)
		case !sample.Up():
			log.Printf("check %s: still down (%s, failures: %d)", sample.URL, sample.Error, failures)
		case before > 0:
			log.Printf("check %s: recovered after %d failed checks (%dms)", sample.URL, before, sample.LatencyMs)
		}
	}

	if s.OnSample != nil {
		s.OnSample(sample)
	}
	return sample, true
}
