package goals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGoalValidate(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(24 * time.Hour)

	assert.NoError(t, Goal{ID: "g", CreatedAt: created}.Validate())
	assert.NoError(t, Goal{ID: "g", CreatedAt: created, Deadline: &later}.Validate())
	assert.ErrorIs(t, Goal{ID: "g", CreatedAt: created, Deadline: &created}.Validate(), ErrInvalidModel)
}

func TestValidateMilestoneOrder(t *testing.T) {
	ok := []Milestone{
		{ID: "m1", GoalID: "g", Order: 1},
		{ID: "x", GoalID: "other", Order: 7},
		{ID: "m2", GoalID: "g", Order: 2},
	}
	assert.NoError(t, ValidateMilestoneOrder("g", ok))

	gap := []Milestone{{ID: "m1", GoalID: "g", Order: 1}, {ID: "m3", GoalID: "g", Order: 3}}
	assert.ErrorIs(t, ValidateMilestoneOrder("g", gap), ErrInvalidModel)
}

func TestTaskValidate(t *testing.T) {
	owners := map[string]string{"m1": "g1"}

	assert.NoError(t, Task{ID: "t", GoalID: "g1", MilestoneID: "m1", EstimatedMinutes: 30}.Validate(owners))
	assert.NoError(t, Task{ID: "t", Title: "standalone"}.Validate(owners))

	for _, bad := range []Task{
		{ID: "t", EstimatedMinutes: 9},
		{ID: "t", EstimatedMinutes: 121},
		{ID: "t", GoalID: "g1", MilestoneID: "missing"},
		{ID: "t", GoalID: "g2", MilestoneID: "m1"},
	} {
		assert.ErrorIs(t, bad.Validate(owners), ErrInvalidModel)
	}
}
