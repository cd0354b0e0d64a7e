package ai

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	dateLayout          = "2006-01-02"
	defaultDeadlineDays = 30
)

// Instruction is the complete planning request sent to a Backend.
type Instruction struct {
	System string
	User   string
}

// PromptInput carries already-normalized values; BuildPrompt adds nothing
// that is not derived from it.
type PromptInput struct {
	Goal        string
	Deadline    string // YYYY-MM-DD, empty for none
	CurrentDate string // YYYY-MM-DD

	AvailableHoursPerDay         float64
	PreferredTaskDurationMinutes int
	PreferredTimeBlocks          []string
	WorkDays                     []string
	StartTime                    string

	BehavioralProfile string
	Context           string
}

// MaxTasksPerDay is floor(hours*60/duration), never below 1.
func MaxTasksPerDay(hours float64, durationMinutes int) int {
	if durationMinutes <= 0 {
		return 1
	}
	n := int(math.Floor(hours * 60 / float64(durationMinutes)))
	if n < 1 {
		return 1
	}
	return n
}

// DefaultDeadline is currentDate + 30 days; an unparseable currentDate
// yields "".
func DefaultDeadline(currentDate string) string {
	t, err := time.Parse(dateLayout, currentDate)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, defaultDeadlineDays).Format(dateLayout)
}

// BuildPrompt composes the system and user instructions for one plan.
// Callers reject an empty goal before calling it.
func BuildPrompt(in PromptInput) Instruction {
	var b strings.Builder

	b.WriteString("goal: ")
	b.WriteString(strings.TrimSpace(in.Goal))
	b.WriteString("\n")

	b.WriteString("current_date: ")
	b.WriteString(in.CurrentDate)
	b.WriteString("\n")

	if d := strings.TrimSpace(in.Deadline); d != "" {
		b.WriteString("deadline: ")
		b.WriteString(d)
		b.WriteString("\n")
	} else {
		b.WriteString("deadline: ")
		b.WriteString(DefaultDeadline(in.CurrentDate))
		b.WriteString(" (default: the user did not specify a deadline; 30 days from the current date)\n")
	}

	b.WriteString("\nUSER PREFERENCES\n")
	fmt.Fprintf(&b, "available_hours_per_day: %s\n", formatHours(in.AvailableHoursPerDay))
	fmt.Fprintf(&b, "preferred_task_duration_minutes: %d\n", in.PreferredTaskDurationMinutes)
	fmt.Fprintf(&b, "preferred_time_blocks: %s\n", strings.Join(in.PreferredTimeBlocks, ", "))
	fmt.Fprintf(&b, "work_days: %s\n", strings.Join(in.WorkDays, ", "))
	fmt.Fprintf(&b, "preferred_start_time: %s\n", in.StartTime)

	maxTasks := MaxTasksPerDay(in.AvailableHoursPerDay, in.PreferredTaskDurationMinutes)
	b.WriteString("\nCONSTRAINTS\n")
	fmt.Fprintf(&b, "max_tasks_per_day: %d\n", maxTasks)
	fmt.Fprintf(&b, "Do NOT schedule more than %d tasks on any single day.\n", maxTasks)

	if p := strings.TrimSpace(in.BehavioralProfile); p != "" {
		b.WriteString("\nBEHAVIORAL PROFILE\n")
		b.WriteString(p)
		b.WriteString("\n")
		b.WriteString("Personalize the plan using this profile:\n")
		b.WriteString("- Favor the user's best time block when scheduling tasks.\n")
		b.WriteString("- Avoid the user's worst time block.\n")
		b.WriteString("- If the user historically takes longer than estimated, pad task durations accordingly.\n")
		b.WriteString("- If the user completes short tasks more reliably, prefer shorter tasks.\n")
	}

	if c := in.Context; strings.TrimSpace(c) != "" {
		b.WriteString("\nadditional context: ")
		b.WriteString(c)
		b.WriteString("\n")
	}

	return Instruction{
		System: strings.TrimSpace(planBreakdownSystemPrompt),
		User:   b.String(),
	}
}

func formatHours(h float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", h), "0"), ".")
}
