package analytics

import (
	"math"
	"time"

	"reup-planner-backend/internal/goals"
)

type DurationBucket string

const (
	BucketShort  DurationBucket = "short"  // < 20 min
	BucketMedium DurationBucket = "medium" // 20-45 min
	BucketLong   DurationBucket = "long"   // > 45 min
)

var (
	blockOrder  = []goals.TimeBlock{goals.Morning, goals.Afternoon, goals.Evening}
	bucketOrder = []DurationBucket{BucketShort, BucketMedium, BucketLong}
	dayNames    = [...]string{"", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
)

// BucketFor classifies a task length.
func BucketFor(minutes int) DurationBucket {
	switch {
	case minutes < 20:
		return BucketShort
	case minutes <= 45:
		return BucketMedium
	default:
		return BucketLong
	}
}

const (
	DefaultHalfLife   = 14 * 24 * time.Hour
	DefaultMinSamples = 3
)

type ProfileOptions struct {
	HalfLife   time.Duration
	MinSamples int
}

func DefaultProfileOptions() ProfileOptions {
	return ProfileOptions{HalfLife: DefaultHalfLife, MinSamples: DefaultMinSamples}
}

func (o ProfileOptions) withDefaults() ProfileOptions {
	if o.HalfLife <= 0 {
		o.HalfLife = DefaultHalfLife
	}
	if o.MinSamples <= 0 {
		o.MinSamples = DefaultMinSamples
	}
	return o
}

// ExecutionProfile is a snapshot derived from an observation log. Nil rates
// and empty names mean there was not enough data for them.
type ExecutionProfile struct {
	TotalObservations      int                        `json:"totalObservations"`
	CompletionRate         *float64                   `json:"completionRate,omitempty"`
	WeightedCompletionRate *float64                   `json:"weightedCompletionRate,omitempty"`
	AvgDurationRatio       *float64                   `json:"avgDurationRatio,omitempty"`
	BestTimeBlock          goals.TimeBlock            `json:"bestTimeBlock,omitempty"`
	WorstTimeBlock         goals.TimeBlock            `json:"worstTimeBlock,omitempty"`
	MostProductiveDay      string                     `json:"mostProductiveDay,omitempty"`
	CompletionByDuration   map[DurationBucket]float64 `json:"completionByDuration"`
	ComputedAt             time.Time                  `json:"computedAt"`
}

type tally struct {
	done, total int
}

func (t *tally) add(completed bool) {
	t.total++
	if completed {
		t.done++
	}
}

func (t tally) rate() float64 { return float64(t.done) / float64(t.total) }

// ComputeProfile derives a profile from log. Only completed and skipped
// events are outcomes; edits and reschedules count towards the total only.
// Ages for the decay weight are measured from the newest observation, so the
// result depends on the log alone.
func ComputeProfile(log []Observation, opts ProfileOptions) ExecutionProfile {
	opts = opts.withDefaults()
	p := ExecutionProfile{
		TotalObservations:    len(log),
		CompletionByDuration: map[DurationBucket]float64{},
	}
	for _, o := range log {
		if o.ObservedAt.After(p.ComputedAt) {
			p.ComputedAt = o.ObservedAt
		}
	}

	var (
		overall       tally
		weightedDone  float64
		weightedTotal float64
		ratioSum      float64
		ratioCount    int
		byBlock       = map[goals.TimeBlock]*tally{}
		byDay         = map[int]*tally{}
		byBucket      = map[DurationBucket]*tally{}
		halfLife      = opts.HalfLife.Seconds()
	)

	for _, o := range log {
		if o.Kind == EventCompleted && o.EstimatedMinutes != nil && o.ActualMinutes != nil {
			ratioSum += float64(*o.ActualMinutes) / float64(*o.EstimatedMinutes)
			ratioCount++
		}

		if o.Kind != EventCompleted && o.Kind != EventSkipped {
			continue
		}
		completed := o.Kind == EventCompleted

		overall.add(completed)

		age := p.ComputedAt.Sub(o.ObservedAt).Seconds()
		w := math.Pow(0.5, age/halfLife)
		weightedTotal += w
		if completed {
			weightedDone += w
		}

		block := o.TimeBlock
		if !block.Valid() {
			block = TimeBlockForHour(o.HourOfDay)
		}
		group(byBlock, block).add(completed)

		if o.DayOfWeek >= 1 && o.DayOfWeek <= 7 {
			group(byDay, o.DayOfWeek).add(completed)
		}

		if m, ok := minutesOf(o); ok {
			group(byBucket, BucketFor(m)).add(completed)
		}
	}

	if overall.total > 0 {
		p.CompletionRate = ptr(overall.rate())
		p.WeightedCompletionRate = ptr(weightedDone / weightedTotal)
	}
	if ratioCount >= opts.MinSamples {
		p.AvgDurationRatio = ptr(ratioSum / float64(ratioCount))
	}

	p.BestTimeBlock, p.WorstTimeBlock = rank(blockOrder, byBlock, opts.MinSamples)

	days := make([]int, 0, 7)
	for d := 1; d <= 7; d++ {
		days = append(days, d)
	}
	if best, _ := rank(days, byDay, opts.MinSamples); best != 0 {
		p.MostProductiveDay = dayNames[best]
	}

	for _, b := range bucketOrder {
		if t, ok := byBucket[b]; ok && t.total >= opts.MinSamples {
			p.CompletionByDuration[b] = t.rate()
		}
	}
	return p
}

func group[K comparable](m map[K]*tally, k K) *tally {
	t, ok := m[k]
	if !ok {
		t = &tally{}
		m[k] = t
	}
	return t
}

// rank returns the groups with the highest and lowest completion rate among
// those with at least minSamples outcomes. Ties go to the earlier key. worst
// is only reported when it is strictly below best.
func rank[K comparable](keys []K, groups map[K]*tally, minSamples int) (best, worst K) {
	var zero K
	bestRate, worstRate := -1.0, 2.0
	for _, k := range keys {
		t, ok := groups[k]
		if !ok || t.total < minSamples {
			continue
		}
		r := t.rate()
		if r > bestRate {
			best, bestRate = k, r
		}
		if r < worstRate {
			worst, worstRate = k, r
		}
	}
	if worst != zero && worstRate >= bestRate {
		worst = zero
	}
	return best, worst
}

// minutesOf prefers the estimate; completions without one fall back to the
// actual time spent.
func minutesOf(o Observation) (int, bool) {
	if o.EstimatedMinutes != nil {
		return *o.EstimatedMinutes, true
	}
	if o.ActualMinutes != nil {
		return *o.ActualMinutes, true
	}
	return 0, false
}

func ptr[T any](v T) *T { return &v }
