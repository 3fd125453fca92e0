package stats

import "pulse/app/internal/models"

// Summary holds every statistic derived from one snapshot of the log, so
// that the values in a single response agree with each other.
type Summary struct {
	History        []models.DayBucket `json:"history"`
	OverallUptime  float64            `json:"overallUptime"`
	AverageLatency float64            `json:"avgResponseTime"`
	TotalChecks    int                `json:"totalChecks"`
}
