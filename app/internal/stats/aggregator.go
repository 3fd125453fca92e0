package stats

import (
	"fmt"
	"time"

	"pulse/app/internal/cache"
	"pulse/app/internal/models"
)

// DefaultHistoryDays is the length of the series shown on the status page
const DefaultHistoryDays = 45

// Source provides a consistent view of the monitoring log
type Source interface {
	Snapshot() ([]models.Sample, uint64)
}

// Aggregator derives uptime statistics from a Source. Results are memoized
// per log version, window and calendar day, so repeated calls without new
// samples return identical values.
type Aggregator struct {
	source Source
	loc    *time.Location
	now    func() time.Time
	cache  *cache.Cache[Summary]
}

// NewAggregator creates an aggregator whose days are delimited in loc
func NewAggregator(source Source, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{
		source: source,
		loc:    loc,
		now:    time.Now,
		cache:  cache.New[Summary](30 * time.Second),
	}
}

// Close stops the cache sweeper
func (a *Aggregator) Close() {
	a.cache.Stop()
}

// Now returns the current time in the aggregator's location
func (a *Aggregator) Now() time.Time {
	return a.now().In(a.loc)
}

// Summary returns history, overall uptime, average latency and check count
func (a *Aggregator) Summary(days int) Summary {
	samples, version := a.source.Snapshot()
	now := a.Now()

	key := fmt.Sprintf("summary:%d:%d:%s", version, days, now.Format(DateLayout))
	if s, ok := a.cache.Get(key); ok {
		return s
	}

	s := Summarize(samples, now, days)
	a.cache.Set(key, s)
	return s
}

// History returns the per-day series for the last days days
func (a *Aggregator) History(days int) []models.DayBucket {
	return a.Summary(days).History
}

// OverallUptime returns the uptime percentage across the whole log
func (a *Aggregator) OverallUptime() float64 {
	samples, _ := a.source.Snapshot()
	return OverallUptime(samples)
}

// AverageLatency returns the mean latency across the whole log
func (a *Aggregator) AverageLatency() float64 {
	samples, _ := a.source.Snapshot()
	return AverageLatency(samples)
}
