package stats

import (
	"math"
	"time"

	"pulse/app/internal/models"
)

// DateLayout is the format of DayBucket.Date
const DateLayout = "2006-01-02"

// Round2 rounds to two decimal places
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// OverallUptime returns the percentage of up samples. No data means 100:
// an empty log is reported as operational.
func OverallUptime(samples []models.Sample) float64 {
	if len(samples) == 0 {
		return 100.0
	}
	up := 0
	for _, s := range samples {
		if s.Up() {
			up++
		}
	}
	return Round2(float64(up) / float64(len(samples)) * 100)
}

// AverageLatency returns the mean latency in milliseconds, 0 when empty
func AverageLatency(samples []models.Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total int64
	for _, s := range samples {
		total += s.LatencyMs
	}
	return Round2(float64(total) / float64(len(samples)))
}

type dayTally struct {
	up, total int
	latency   int64
}

// History returns one bucket per calendar day for the last days days, oldest
// first and ending with the day containing now. Days are delimited in the
// location of now. A day with no samples reports 100% uptime and is marked
// as not measured.
func History(samples []models.Sample, now time.Time, days int) []models.DayBucket {
	if days <= 0 {
		return []models.DayBucket{}
	}

	loc := now.Location()
	tallies := make(map[string]*dayTally, days)
	for _, s := range samples {
		key := s.Timestamp.In(loc).Format(DateLayout)
		t := tallies[key]
		if t == nil {
			t = &dayTally{}
			tallies[key] = t
		}
		t.total++
		t.latency += s.LatencyMs
		if s.Up() {
			t.up++
		}
	}

	y, m, d := now.Date()
	out := make([]models.DayBucket, 0, days)
	for i := days - 1; i >= 0; i-- {
		// time.Date normalizes day underflow across month and year boundaries.
		day := time.Date(y, m, d-i, 0, 0, 0, 0, loc)
		b := models.DayBucket{Date: day.Format(DateLayout), UptimePercent: 100}

		if t := tallies[b.Date]; t != nil {
			b.Checks = t.total
			b.Measured = true
			b.UptimePercent = Round2(float64(t.up) / float64(t.total) * 100)
			b.AvgLatencyMs = Round2(float64(t.latency) / float64(t.total))
		}
		out = append(out, b)
	}
	return out
}

// Summarize derives every statistic from a single snapshot
func Summarize(samples []models.Sample, now time.Time, days int) Summary {
	return Summary{
		History:        History(samples, now, days),
		OverallUptime:  OverallUptime(samples),
		AverageLatency: AverageLatency(samples),
		TotalChecks:    len(samples),
	}
}
