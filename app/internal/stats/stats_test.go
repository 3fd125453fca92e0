package stats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"pulse/app/internal/checker"
	"pulse/app/internal/models"
	"pulse/app/internal/monitor"
)

var (
	est   = time.FixedZone("EST", -5*3600)
	today = time.Date(2026, 10, 17, 15, 30, 0, 0, est)
)

func sample(ts time.Time, up bool, ms int64) models.Sample {
	st := models.StatusDown
	if up {
		st = models.StatusUp
	}
	return models.Sample{Timestamp: ts.UTC(), Status: st, LatencyMs: ms}
}

func newTestAggregator(t *testing.T, l *monitor.Log) *Aggregator {
	t.Helper()
	a := NewAggregator(l, est)
	a.now = func() time.Time { return today }
	t.Cleanup(a.Close)
	return a
}

// --------------- Round2 ---------------

func TestRound2(t *testing.T) {
	tests := map[float64]float64{
		66.666666: 66.67,
		99.994:    99.99,
		99.996:    100,
		0:         0,
		75:        75,
	}
	for in, want := range tests {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}

// --------------- OverallUptime / AverageLatency ---------------

func TestOverallUptime_Empty(t *testing.T) {
	if got := OverallUptime(nil); got != 100.0 {
		t.Errorf("expected exactly 100 for empty log, got %v", got)
	}
}

func TestOverallUptime_Ratio(t *testing.T) {
	tests := []struct {
		up, down int
		want     float64
	}{
		{3, 1, 75},
		{1, 2, 33.33},
		{2, 1, 66.67},
		{0, 5, 0},
		{7, 0, 100},
	}
	for _, tt := range tests {
		var samples []models.Sample
		for i := 0; i < tt.up; i++ {
			samples = append(samples, sample(today, true, 10))
		}
		for i := 0; i < tt.down; i++ {
			samples = append(samples, sample(today, false, 10))
		}
		if got := OverallUptime(samples); got != tt.want {
			t.Errorf("up=%d down=%d: got %v, want %v", tt.up, tt.down, got, tt.want)
		}
	}
}

func TestAverageLatency(t *testing.T) {
	if got := AverageLatency(nil); got != 0 {
		t.Errorf("expected 0 for empty log, got %v", got)
	}
	samples := []models.Sample{
		sample(today, true, 100),
		sample(today, true, 200),
		sample(today, false, 10000),
	}
	if got := AverageLatency(samples); got != 3433.33 {
		t.Errorf("expected 3433.33, got %v", got)
	}
}

// --------------- History ---------------

func TestHistory_LengthAndOrder(t *testing.T) {
	for _, days := range []int{1, 7, 45, 365} {
		h := History(nil, today, days)
		if len(h) != days {
			t.Fatalf("days=%d: got %d buckets", days, len(h))
		}
		if h[len(h)-1].Date != "2026-10-17" {
			t.Errorf("days=%d: last bucket = %s, want today", days, h[len(h)-1].Date)
		}
		for i := 1; i < len(h); i++ {
			if h[i-1].Date >= h[i].Date {
				t.Fatalf("days=%d: buckets not oldest-first at %d: %s, %s", days, i, h[i-1].Date, h[i].Date)
			}
		}
	}
}

func TestHistory_CrossesMonthBoundary(t *testing.T) {
	h := History(nil, today, 45)
	if h[0].Date != "2026-09-03" {
		t.Errorf("first bucket = %s, want 2026-09-03", h[0].Date)
	}
}

func TestHistory_ZeroDays(t *testing.T) {
	if h := History(nil, today, 0); len(h) != 0 {
		t.Errorf("expected empty series, got %d", len(h))
	}
}

func TestHistory_EmptyDayDefaults(t *testing.T) {
	h := History(nil, today, 3)
	for _, b := range h {
		if b.UptimePercent != 100 || b.AvgLatencyMs != 0 || b.Checks != 0 || b.Measured {
			t.Errorf("empty day bucket = %+v", b)
		}
	}
}

func TestHistory_ThreeUpOneDown(t *testing.T) {
	samples := []models.Sample{
		sample(today.Add(-3*time.Hour), true, 100),
		sample(today.Add(-2*time.Hour), true, 100),
		sample(today.Add(-1*time.Hour), false, 300),
		sample(today, true, 100),
	}
	h := History(samples, today, 1)
	if h[0].UptimePercent != 75.0 {
		t.Errorf("expected 75, got %v", h[0].UptimePercent)
	}
	if h[0].AvgLatencyMs != 150 {
		t.Errorf("expected 150ms, got %v", h[0].AvgLatencyMs)
	}
	if h[0].Checks != 4 || !h[0].Measured {
		t.Errorf("unexpected bucket %+v", h[0])
	}
}

func TestHistory_LocalDayWindow(t *testing.T) {
	startOfDay := time.Date(2026, 10, 17, 0, 0, 0, 0, est)
	samples := []models.Sample{
		// 23:59:59.999 the previous evening belongs to yesterday
		sample(startOfDay.Add(-time.Millisecond), false, 50),
		// Midnight exactly belongs to today
		sample(startOfDay, true, 10),
	}
	h := History(samples, today, 2)
	if h[0].Date != "2026-10-16" || h[0].UptimePercent != 0 || h[0].Checks != 1 {
		t.Errorf("yesterday = %+v", h[0])
	}
	if h[1].Date != "2026-10-17" || h[1].UptimePercent != 100 || h[1].Checks != 1 {
		t.Errorf("today = %+v", h[1])
	}
}

func TestHistory_IgnoresSamplesOutsideWindow(t *testing.T) {
	samples := []models.Sample{
		sample(today.AddDate(0, 0, -10), false, 10),
		sample(today, true, 10),
	}
	h := History(samples, today, 3)
	total := 0
	for _, b := range h {
		total += b.Checks
	}
	if total != 1 {
		t.Errorf("expected only today's sample to be counted, got %d", total)
	}
}

// --------------- Aggregator ---------------

func TestAggregator_EmptyLog(t *testing.T) {
	a := newTestAggregator(t, monitor.NewLog(10, nil))
	if got := a.OverallUptime(); got != 100.0 {
		t.Errorf("OverallUptime = %v, want 100", got)
	}
	if got := a.AverageLatency(); got != 0 {
		t.Errorf("AverageLatency = %v, want 0", got)
	}
	if h := a.History(45); len(h) != 45 {
		t.Errorf("History(45) returned %d buckets", len(h))
	}
}

func TestAggregator_Idempotent(t *testing.T) {
	l := monitor.NewLog(100, nil)
	l.Append(sample(today.Add(-time.Hour), true, 80))
	l.Append(sample(today.AddDate(0, 0, -2), false, 10000))
	a := newTestAggregator(t, l)

	first := a.History(7)
	second := a.History(7)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("History not reproducible:\n%+v\n%+v", first, second)
	}

	// Recomputing without the cache must agree too
	samples, _ := l.Snapshot()
	if !reflect.DeepEqual(first, History(samples, today, 7)) {
		t.Error("cached history differs from a fresh computation")
	}
}

func TestAggregator_SeesNewSamples(t *testing.T) {
	l := monitor.NewLog(100, nil)
	a := newTestAggregator(t, l)

	if h := a.History(1); h[0].Measured {
		t.Fatal("expected unmeasured day before any sample")
	}
	l.Append(sample(today, false, 10))
	if h := a.History(1); h[0].UptimePercent != 0 {
		t.Errorf("cached value survived an append: %+v", h[0])
	}
}

func TestAggregator_Summary(t *testing.T) {
	l := monitor.NewLog(100, nil)
	l.Append(sample(today, true, 100))
	l.Append(sample(today, false, 300))
	a := newTestAggregator(t, l)

	s := a.Summary(45)
	if s.TotalChecks != 2 || s.OverallUptime != 50 || s.AverageLatency != 200 || len(s.History) != 45 {
		t.Errorf("unexpected summary %+v", s)
	}
}

// One failed probe into an empty log gives 0% uptime overall and for today.
func TestAggregator_SingleFailedProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	l := monitor.NewLog(10, nil)
	a := newTestAggregator(t, l)

	s := checker.New(target, time.Second).Probe(context.Background(), "")
	if s.Up() {
		t.Fatal("expected a down sample from a refused connection")
	}
	// Place the sample inside the aggregator's "today"
	s.Timestamp = today.UTC()
	l.Append(s)

	if got := a.OverallUptime(); got != 0.0 {
		t.Errorf("OverallUptime = %v, want 0", got)
	}
	if got := a.History(1)[0].UptimePercent; got != 0.0 {
		t.Errorf("History(1)[0].UptimePercent = %v, want 0", got)
	}
}
