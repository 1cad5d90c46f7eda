package domain

import (
	"fmt"
	"time"
)

const (
	commitActivityThreshold = 30
	mergeVelocityThreshold  = 10
	triageThreshold         = 15
)

// CommitLabel describes commit volume.
func CommitLabel(count int) string {
	switch {
	case count <= 0:
		return "No recent activity"
	case count <= commitActivityThreshold:
		return "Maintenance mode"
	default:
		return "Active development"
	}
}

// MergedPRLabel describes merge velocity.
func MergedPRLabel(count int) string {
	switch {
	case count <= 0:
		return "No changes merged"
	case count <= mergeVelocityThreshold:
		return "Steady flow"
	default:
		return "High velocity"
	}
}

// ClosedIssueLabel describes issue triage load.
func ClosedIssueLabel(count int) string {
	switch {
	case count <= 0:
		return "No issues closed"
	case count <= triageThreshold:
		return "Resolving quickly"
	default:
		return "Heavy triage"
	}
}

// LabelKpis derives all three labels.
func LabelKpis(k Kpis) KpiLabels {
	return KpiLabels{
		Commits:      CommitLabel(k.Commits),
		PRsMerged:    MergedPRLabel(k.PRsMerged),
		IssuesClosed: ClosedIssueLabel(k.IssuesClosed),
	}
}

// ActivityHeatmap counts commits by day of week (0 = Sunday) and hour of day.
type ActivityHeatmap [7][24]int

// Peak returns the busiest cell. Cells are scanned day-major then hour, and
// only a strictly greater count replaces the current best, so ties resolve
// to the first cell in that order. ok is false when every cell is zero.
func (h ActivityHeatmap) Peak() (day time.Weekday, hour int, ok bool) {
	best := 0
	for d := range h {
		for hr := range h[d] {
			if h[d][hr] > best {
				best = h[d][hr]
				day, hour = time.Weekday(d), hr
			}
		}
	}
	return day, hour, best > 0
}

// DerivePeakActivity fills the day and hour fields of PeakActivity from h.
func DerivePeakActivity(h ActivityHeatmap, teamSize int) PeakActivity {
	peak := PeakActivity{TeamSize: teamSize}
	day, hour, ok := h.Peak()
	if !ok {
		return peak
	}
	span := fmt.Sprintf("%02d:00 - %02d:00", hour, (hour+1)%24)
	peak.MostActiveDay = day.String()
	peak.PeakHourUTC = &span
	return peak
}
