package goals

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"reup-planner-backend/internal/ai"
)

// ErrMalformedResponse means the backend text is not a JSON object.
var ErrMalformedResponse = errors.New("goals: malformed backend response")

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"

	defaultMilestoneTitle = "Milestone"
	defaultTaskTitle      = "Untitled task"
)

type PlanMilestone struct {
	Title      string `json:"title"`
	TargetDate string `json:"targetDate"`
	Order      int    `json:"order"`
}

type PlanTask struct {
	Title              string `json:"title"`
	EstimatedMinutes   int    `json:"estimatedMinutes"`
	ScheduledDate      string `json:"scheduledDate"`
	ScheduledStartTime string `json:"scheduledStartTime"`
	MilestoneIndex     int    `json:"milestoneIndex"`
	Order              int    `json:"order"`
}

type Plan struct {
	Milestones []PlanMilestone `json:"milestones"`
	Tasks      []PlanTask      `json:"tasks"`
}

// PlanDefaults are the request values substituted for missing fields.
type PlanDefaults struct {
	CurrentDate              string
	PreferredDurationMinutes int
	StartTime                string
}

// ParsePlan turns untrusted backend text into a well-formed plan. Only a
// response that is not a JSON object fails; every per-field defect is
// repaired with a default or clamped into range.
func ParsePlan(raw string, d PlanDefaults) (Plan, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(ai.StripFences(raw)), &top); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if top == nil {
		return Plan{}, fmt.Errorf("%w: top level is null", ErrMalformedResponse)
	}

	rawMilestones := entries(top["milestones"])
	rawTasks := entries(top["tasks"])

	plan := Plan{
		Milestones: make([]PlanMilestone, 0, len(rawMilestones)),
		Tasks:      make([]PlanTask, 0, len(rawTasks)),
	}

	for i, m := range rawMilestones {
		plan.Milestones = append(plan.Milestones, PlanMilestone{
			Title:      text(m["title"], defaultMilestoneTitle),
			TargetDate: date(m["targetDate"], d.CurrentDate),
			Order:      positive(m["order"], i+1),
		})
	}

	for i, t := range rawTasks {
		minutes, ok := integer(t["estimatedMinutes"])
		if !ok {
			minutes = d.PreferredDurationMinutes
		}
		plan.Tasks = append(plan.Tasks, PlanTask{
			Title:              text(t["title"], defaultTaskTitle),
			EstimatedMinutes:   clamp(minutes, MinTaskMinutes, MaxTaskMinutes),
			ScheduledDate:      date(t["scheduledDate"], d.CurrentDate),
			ScheduledStartTime: clock(t["scheduledStartTime"], d.StartTime),
			MilestoneIndex:     milestoneIndex(t["milestoneIndex"], len(plan.Milestones)),
			Order:              positive(t["order"], i+1),
		})
	}

	return plan, nil
}

// entries decodes a JSON array of objects; anything else is an empty list,
// and a non-object element becomes an empty object.
func entries(raw json.RawMessage) []map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]map[string]any, len(items))
	for i, item := range items {
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			obj = map[string]any{}
		}
		out[i] = obj
	}
	return out
}

func text(v any, def string) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// integer parses the leading integer of a number or numeric string,
// truncating fractions ("12.7" and 12.7 both give 12).
func integer(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.Abs(x) > 1e9 {
			return 0, false
		}
		return int(x), true
	case string:
		s := strings.TrimSpace(x)
		end := 0
		if end < len(s) && (s[end] == '-' || s[end] == '+') {
			end++
		}
		digits := end
		for end < len(s) && s[end] >= '0' && s[end] <= '9' && end-digits < 10 {
			end++
		}
		if end == digits {
			return 0, false
		}
		n, err := strconv.Atoi(s[:end])
		return n, err == nil
	}
	return 0, false
}

func positive(v any, def int) int {
	if n, ok := integer(v); ok && n >= 1 {
		return n
	}
	return def
}

func milestoneIndex(v any, count int) int {
	n, _ := integer(v)
	if n < 0 || count == 0 {
		return 0
	}
	if n >= count {
		return count - 1
	}
	return n
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func date(v any, def string) string {
	s, _ := v.(string)
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.Format(dateLayout)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(dateLayout)
	}
	return def
}

func clock(v any, def string) string {
	s, _ := v.(string)
	if t, err := time.Parse(clockLayout, strings.TrimSpace(s)); err == nil {
		return t.Format(clockLayout)
	}
	return def
}
