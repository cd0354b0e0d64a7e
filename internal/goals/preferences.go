package goals

import (
	"encoding/json"
	"strconv"
	"strings"
)

type TimeBlock string

const (
	Morning   TimeBlock = "morning"
	Afternoon TimeBlock = "afternoon"
	Evening   TimeBlock = "evening"
)

// StartTime is the HH:MM a block begins at; unknown blocks start at 09:00.
func (b TimeBlock) StartTime() string {
	switch b {
	case Afternoon:
		return "13:00"
	case Evening:
		return "18:00"
	default:
		return "09:00"
	}
}

func (b TimeBlock) Valid() bool {
	return b == Morning || b == Afternoon || b == Evening
}

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

const (
	DefaultHoursPerDay     = 2.0
	DefaultDurationMinutes = 30
)

// Preferences is the fully-resolved scheduling configuration every
// downstream component reads. Build it with NormalizePreferences.
type Preferences struct {
	AvailableHoursPerDay         float64     `json:"availableHoursPerDay"`
	PreferredTaskDurationMinutes int         `json:"preferredTaskDurationMinutes"`
	PreferredTimeBlocks          []TimeBlock `json:"preferredTimeBlocks"`
	WorkDays                     []string    `json:"workDays"`
}

// PreferencesInput is the caller-supplied, possibly partial preferences
// object. It decodes from any JSON value without failing: fields of the
// wrong type are treated as absent.
type PreferencesInput struct {
	AvailableHoursPerDay         *float64
	PreferredTaskDurationMinutes *int
	PreferredTimeBlocks          []string
	WorkDays                     []string
}

func (p *PreferencesInput) UnmarshalJSON(b []byte) error {
	*p = PreferencesInput{}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}

	if f, ok := number(raw["availableHoursPerDay"]); ok {
		p.AvailableHoursPerDay = &f
	}
	if f, ok := number(raw["preferredTaskDurationMinutes"]); ok && f > 0 && f <= 24*60 {
		n := int(f)
		p.PreferredTaskDurationMinutes = &n
	}
	p.PreferredTimeBlocks = stringList(raw["preferredTimeBlocks"])
	p.WorkDays = stringList(raw["workDays"])
	return nil
}

// Input converts resolved preferences back into an input, so a stored
// Preferences can be merged with request overrides.
func (p Preferences) Input() PreferencesInput {
	hours := p.AvailableHoursPerDay
	dur := p.PreferredTaskDurationMinutes
	blocks := make([]string, len(p.PreferredTimeBlocks))
	for i, b := range p.PreferredTimeBlocks {
		blocks[i] = string(b)
	}
	return PreferencesInput{
		AvailableHoursPerDay:         &hours,
		PreferredTaskDurationMinutes: &dur,
		PreferredTimeBlocks:          blocks,
		WorkDays:                     append([]string(nil), p.WorkDays...),
	}
}

// NormalizePreferences fills every missing or unusable field with its
// default and derives the preferred start time from the first time block.
// It accepts nil and never fails.
func NormalizePreferences(in *PreferencesInput) (Preferences, string) {
	if in == nil {
		in = &PreferencesInput{}
	}

	out := Preferences{
		AvailableHoursPerDay:         DefaultHoursPerDay,
		PreferredTaskDurationMinutes: DefaultDurationMinutes,
	}
	if in.AvailableHoursPerDay != nil && *in.AvailableHoursPerDay > 0 && *in.AvailableHoursPerDay <= 24 {
		out.AvailableHoursPerDay = *in.AvailableHoursPerDay
	}
	if in.PreferredTaskDurationMinutes != nil && *in.PreferredTaskDurationMinutes > 0 {
		out.PreferredTaskDurationMinutes = *in.PreferredTaskDurationMinutes
	}

	seen := map[string]bool{}
	for _, s := range in.PreferredTimeBlocks {
		b := TimeBlock(strings.ToLower(strings.TrimSpace(s)))
		if b.Valid() && !seen[string(b)] {
			seen[string(b)] = true
			out.PreferredTimeBlocks = append(out.PreferredTimeBlocks, b)
		}
	}
	if len(out.PreferredTimeBlocks) == 0 {
		out.PreferredTimeBlocks = []TimeBlock{Morning}
	}

	for _, s := range in.WorkDays {
		d := strings.ToLower(strings.TrimSpace(s))
		if isWeekday(d) && !seen[d] {
			seen[d] = true
			out.WorkDays = append(out.WorkDays, d)
		}
	}
	if len(out.WorkDays) == 0 {
		out.WorkDays = append([]string(nil), weekdays[:5]...)
	}

	return out, out.PreferredTimeBlocks[0].StartTime()
}

func isWeekday(s string) bool {
	for _, d := range weekdays {
		if d == s {
			return true
		}
	}
	return false
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func stringList(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
