package analytics

import (
	"fmt"
	"math"
	"strings"
)

// PersonalizationThreshold is the log length below which no summary is
// produced.
const PersonalizationThreshold = 10

// Summarize renders p as the plain-sentence snippet included in planning
// instructions. It reports false when the log is too short.
func Summarize(p ExecutionProfile) (string, bool) {
	if p.TotalObservations < PersonalizationThreshold {
		return "", false
	}

	var lines []string
	if p.BestTimeBlock != "" {
		lines = append(lines, fmt.Sprintf("Best time block: %s (highest completion rate).", p.BestTimeBlock))
	}
	if p.WorstTimeBlock != "" {
		lines = append(lines, fmt.Sprintf("Worst time block: %s (lowest completion rate).", p.WorstTimeBlock))
	}
	if p.MostProductiveDay != "" {
		lines = append(lines, fmt.Sprintf("Most productive day: %s.", p.MostProductiveDay))
	}
	if p.CompletionRate != nil && p.WeightedCompletionRate != nil {
		lines = append(lines, fmt.Sprintf("Overall completion rate: %s; recent completion rate: %s.",
			percent(*p.CompletionRate), percent(*p.WeightedCompletionRate)))
	}
	if r := p.AvgDurationRatio; r != nil {
		switch {
		case *r > 1.05:
			lines = append(lines, fmt.Sprintf("Tasks take on average %.1fx their estimate.", *r))
		case *r < 0.95:
			lines = append(lines, fmt.Sprintf("Tasks finish on average in %.1fx their estimate.", *r))
		default:
			lines = append(lines, "Tasks usually take about as long as estimated.")
		}
	}

	var buckets []string
	for _, b := range bucketOrder {
		if r, ok := p.CompletionByDuration[b]; ok {
			buckets = append(buckets, fmt.Sprintf("%s %s", b, percent(r)))
		}
	}
	if len(buckets) > 0 {
		lines = append(lines, "Completion by task length: "+strings.Join(buckets, ", ")+".")
	}

	if len(lines) == 0 {
		// only edits and reschedules so far
		lines = append(lines, fmt.Sprintf("%d task events logged; no completed or skipped tasks yet.", p.TotalObservations))
	}
	return strings.Join(lines, "\n"), true
}

func percent(r float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(r*100)))
}
