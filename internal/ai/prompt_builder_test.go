package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseInput() PromptInput {
	return PromptInput{
		Goal:                         "  Launch a SaaS product  ",
		Deadline:                     "2026-06-01",
		CurrentDate:                  "2026-01-10",
		AvailableHoursPerDay:         2,
		PreferredTaskDurationMinutes: 30,
		PreferredTimeBlocks:          []string{"evening", "morning"},
		WorkDays:                     []string{"monday", "wednesday", "friday"},
		StartTime:                    "18:00",
	}
}

func TestBuildPrompt_EnumeratesPreferences(t *testing.T) {
	in := BuildPrompt(baseInput())

	assert.Contains(t, in.User, "goal: Launch a SaaS product\n")
	assert.Contains(t, in.User, "deadline: 2026-06-01\n")
	assert.Contains(t, in.User, "available_hours_per_day: 2\n")
	assert.Contains(t, in.User, "preferred_task_duration_minutes: 30\n")
	assert.Contains(t, in.User, "preferred_time_blocks: evening, morning\n")
	assert.Contains(t, in.User, "work_days: monday, wednesday, friday\n")
	assert.Contains(t, in.User, "preferred_start_time: 18:00\n")
	assert.Contains(t, in.User, "max_tasks_per_day: 4\n")
	assert.NotContains(t, in.User, "BEHAVIORAL PROFILE")
	assert.NotContains(t, in.User, "additional context")
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	a := BuildPrompt(baseInput())
	b := BuildPrompt(baseInput())
	assert.Equal(t, a, b)
}

func TestBuildPrompt_SystemIsFixed(t *testing.T) {
	other := baseInput()
	other.Goal = "Learn Spanish"
	other.BehavioralProfile = "Best time block: morning."

	a := BuildPrompt(baseInput())
	b := BuildPrompt(other)

	assert.Equal(t, a.System, b.System)
	assert.Contains(t, a.System, "between 2 and 5 milestones")
	assert.Contains(t, a.System, "15-90 minutes")
	assert.Contains(t, a.System, "ONLY a valid JSON object")
}

func TestBuildPrompt_DefaultDeadlineFlagged(t *testing.T) {
	in := baseInput()
	in.Deadline = "  "

	got := BuildPrompt(in)

	assert.Contains(t, got.User, "deadline: 2026-02-09 (default:")
}

func TestBuildPrompt_BehavioralProfileDirectives(t *testing.T) {
	in := baseInput()
	in.BehavioralProfile = "  Best time block: morning.  "

	got := BuildPrompt(in)

	assert.Contains(t, got.User, "BEHAVIORAL PROFILE\nBest time block: morning.\n")
	assert.Contains(t, got.User, "Favor the user's best time block")
	assert.Contains(t, got.User, "Avoid the user's worst time block")
	assert.Contains(t, got.User, "pad task durations")
	assert.Contains(t, got.User, "prefer shorter tasks")
}

func TestBuildPrompt_BlankProfileIgnored(t *testing.T) {
	in := baseInput()
	in.BehavioralProfile = " \n\t "

	assert.NotContains(t, BuildPrompt(in).User, "BEHAVIORAL PROFILE")
}

func TestBuildPrompt_ContextVerbatim(t *testing.T) {
	in := baseInput()
	in.Context = "I already have a landing page.  "

	got := BuildPrompt(in)

	assert.True(t, strings.HasSuffix(got.User, "additional context: I already have a landing page.  \n"))
}

func TestMaxTasksPerDay(t *testing.T) {
	tests := []struct {
		hours    float64
		duration int
		want     int
	}{
		{2, 30, 4},
		{1.5, 45, 2},
		{3, 50, 3},
		{0.25, 30, 1},
		{2, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxTasksPerDay(tt.hours, tt.duration), "hours=%v duration=%d", tt.hours, tt.duration)
	}
}

func TestDefaultDeadline(t *testing.T) {
	assert.Equal(t, "2026-01-31", DefaultDeadline("2026-01-01"))
	assert.Equal(t, "", DefaultDeadline("yesterday"))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("<think>plan it</think>\n{\"a\":1}"))
	assert.Equal(t, `{"a":1}`, StripFences(`  {"a":1}  `))
	assert.Equal(t, "not json", StripFences("not json"))
	assert.Equal(t, `{"a":1}`, StripFences("<think>a</think><think>b</think>```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":"<think> x </think>"}`, StripFences(`{"a":"<think> x </think>"}`))
}
