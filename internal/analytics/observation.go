package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reup-planner-backend/internal/goals"
)

type EventKind string

const (
	EventCompleted   EventKind = "completed"
	EventRescheduled EventKind = "rescheduled"
	EventEdited      EventKind = "edited"
	EventSkipped     EventKind = "skipped"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventCompleted, EventRescheduled, EventEdited, EventSkipped:
		return true
	}
	return false
}

// ErrInvalidObservation is returned by Prepare for records that cannot be
// logged.
var ErrInvalidObservation = errors.New("analytics: invalid observation")

// Observation is one immutable task-lifecycle record. DayOfWeek runs
// 1 (Monday) to 7 (Sunday).
type Observation struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	TaskID           string          `json:"taskId"`
	GoalID           string          `json:"goalId,omitempty"`
	ObservedAt       time.Time       `json:"observedAt"`
	Kind             EventKind       `json:"kind"`
	DayOfWeek        int             `json:"dayOfWeek"`
	HourOfDay        int             `json:"hourOfDay"`
	TimeBlock        goals.TimeBlock `json:"timeBlock,omitempty"`
	EstimatedMinutes *int            `json:"estimatedMinutes,omitempty"`
	ActualMinutes    *int            `json:"actualMinutes,omitempty"`
	OnTime           *bool           `json:"onTime,omitempty"`
	TitleBefore      string          `json:"titleBefore,omitempty"`
	TitleAfter       string          `json:"titleAfter,omitempty"`
	DateBefore       string          `json:"dateBefore,omitempty"`
	DateAfter        string          `json:"dateAfter,omitempty"`
}

// TimeBlockForHour maps 5-11 to morning, 12-16 to afternoon and everything
// else to evening.
func TimeBlockForHour(hour int) goals.TimeBlock {
	switch {
	case hour >= 5 && hour <= 11:
		return goals.Morning
	case hour >= 12 && hour <= 16:
		return goals.Afternoon
	default:
		return goals.Evening
	}
}

// isoWeekday is Monday=1 .. Sunday=7.
func isoWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}

// Prepare checks o and fills the derived fields: id, timestamp, day, hour
// and time block. It returns the completed copy.
func Prepare(o Observation, now time.Time) (Observation, error) {
	o.UserID = strings.TrimSpace(o.UserID)
	o.TaskID = strings.TrimSpace(o.TaskID)
	if o.UserID == "" {
		return Observation{}, fmt.Errorf("%w: user id is required", ErrInvalidObservation)
	}
	if o.TaskID == "" {
		return Observation{}, fmt.Errorf("%w: task id is required", ErrInvalidObservation)
	}
	if !o.Kind.Valid() {
		return Observation{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidObservation, o.Kind)
	}
	if o.EstimatedMinutes != nil && *o.EstimatedMinutes <= 0 {
		o.EstimatedMinutes = nil
	}
	if o.ActualMinutes != nil && *o.ActualMinutes <= 0 {
		o.ActualMinutes = nil
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.ObservedAt.IsZero() {
		o.ObservedAt = now
	}
	if o.DayOfWeek < 1 || o.DayOfWeek > 7 {
		o.DayOfWeek = isoWeekday(o.ObservedAt)
	}
	if o.HourOfDay < 0 || o.HourOfDay > 23 {
		o.HourOfDay = o.ObservedAt.Hour()
	}
	if !o.TimeBlock.Valid() {
		o.TimeBlock = TimeBlockForHour(o.HourOfDay)
	}
	return o, nil
}
