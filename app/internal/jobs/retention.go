package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner trims a durable sample table down to its newest keep rows
type Pruner interface {
	PruneSamples(ctx context.Context, keep int) (int64, error)
}

// Retention keeps the durable sample table in step with the in-memory
// log capacity on a cron schedule.
type Retention struct {
	cron    *cron.Cron
	pruner  Pruner
	keep    int
	timeout time.Duration
}

// NewRetention schedules pruning with a standard five-field spec or a
// descriptor such as "@hourly".
func NewRetention(pruner Pruner, keep int, schedule string) (*Retention, error) {
	r := &Retention{
		cron:    cron.New(),
		pruner:  pruner,
		keep:    keep,
		timeout: 30 * time.Second,
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("retention schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Retention) Start() {
	r.cron.Start()
	log.Printf("retention: scheduler started (keep=%d)", r.keep)
}

func (r *Retention) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Println("retention: scheduler stopped")
}

// Prune runs one pruning pass immediately
func (r *Retention) Prune(ctx context.Context) (int64, error) {
	return r.pruner.PruneSamples(ctx, r.keep)
}

func (r *Retention) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	n, err := r.Prune(ctx)
	if err != nil {
		log.Printf("retention: prune failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("retention: pruned %d samples", n)
	}
}
