package goals

import (
	"errors"
	"fmt"
	"time"
)

// Goal owns its milestones and tasks by id only.
type Goal struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	CreatedAt    time.Time  `json:"createdAt"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	MilestoneIDs []string   `json:"milestoneIds"`
	TaskIDs      []string   `json:"taskIds"`
	Completed    bool       `json:"completed"`
}

type Milestone struct {
	ID          string     `json:"id"`
	GoalID      string     `json:"goalId"`
	Title       string     `json:"title"`
	TargetDate  string     `json:"targetDate"`
	Order       int        `json:"order"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type Task struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	ScheduledDate    string `json:"scheduledDate"`
	EndTime          string `json:"endTime"`
	Completed        bool   `json:"completed"`
	GoalID           string `json:"goalId,omitempty"`
	Order            int    `json:"order,omitempty"`
	MilestoneID      string `json:"milestoneId,omitempty"`
	AIScheduledDate  string `json:"aiScheduledDate,omitempty"`
	EstimatedMinutes int    `json:"estimatedMinutes,omitempty"`
}

const (
	MinTaskMinutes = 10
	MaxTaskMinutes = 120
)

var ErrInvalidModel = errors.New("goals: invalid model")

func (g Goal) Validate() error {
	if g.Deadline != nil && !g.Deadline.After(g.CreatedAt) {
		return fmt.Errorf("%w: goal %s deadline %s is not after creation %s",
			ErrInvalidModel, g.ID, g.Deadline.Format(time.RFC3339), g.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// ValidateMilestoneOrder checks that the milestones of one goal are ordered
// 1, 2, ..., n in slice order.
func ValidateMilestoneOrder(goalID string, milestones []Milestone) error {
	want := 1
	for _, m := range milestones {
		if m.GoalID != goalID {
			continue
		}
		if m.Order != want {
			return fmt.Errorf("%w: milestone %s has order %d, want %d", ErrInvalidModel, m.ID, m.Order, want)
		}
		want++
	}
	return nil
}

// Validate checks the duration bound and that the parent milestone, when set,
// belongs to the task's goal. milestones maps milestone id to its goal id.
func (t Task) Validate(milestones map[string]string) error {
	if t.EstimatedMinutes != 0 && (t.EstimatedMinutes < MinTaskMinutes || t.EstimatedMinutes > MaxTaskMinutes) {
		return fmt.Errorf("%w: task %s estimated %d minutes outside [%d, %d]",
			ErrInvalidModel, t.ID, t.EstimatedMinutes, MinTaskMinutes, MaxTaskMinutes)
	}
	if t.MilestoneID == "" {
		return nil
	}
	owner, ok := milestones[t.MilestoneID]
	if !ok {
		return fmt.Errorf("%w: task %s references unknown milestone %s", ErrInvalidModel, t.ID, t.MilestoneID)
	}
	if owner != t.GoalID {
		return fmt.Errorf("%w: task %s milestone %s belongs to goal %s, not %s",
			ErrInvalidModel, t.ID, t.MilestoneID, owner, t.GoalID)
	}
	return nil
}
