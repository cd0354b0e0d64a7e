package goals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"reup-planner-backend/internal/ai"
)

const goalRequiredMessage = "Goal is required and must be a non-empty string"

// ValidationError is bad caller input. It is never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return "goals: " + e.Message }

// BreakdownInput is one planning request. Preferences may be nil.
type BreakdownInput struct {
	Goal              string
	Deadline          string
	CurrentDate       string
	Preferences       *PreferencesInput
	BehavioralProfile string
	Context           string
}

type BreakdownResult struct {
	Goal        string
	Preferences Preferences
	Plan        Plan
}

// Planner runs the breakdown pipeline. It holds no per-request state and is
// safe for concurrent use.
type Planner struct {
	Backend ai.Backend
	Now     func() time.Time
	Logger  *zap.Logger
}

func NewPlanner(backend ai.Backend, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{Backend: backend, Now: time.Now, Logger: logger}
}

// Breakdown normalizes preferences, composes the instruction, calls the
// backend once and normalizes its answer. Backend errors come back as
// *ai.BackendError or ai.ErrEmptyResponse, parse failures as
// ErrMalformedResponse.
func (p *Planner) Breakdown(ctx context.Context, in BreakdownInput) (BreakdownResult, error) {
	goal := strings.TrimSpace(in.Goal)
	if goal == "" {
		return BreakdownResult{}, &ValidationError{Message: goalRequiredMessage}
	}

	currentDate := p.Now().Format(dateLayout)
	if d, ok := parseDate(in.CurrentDate); ok {
		currentDate = d
	}
	deadline, _ := parseDate(in.Deadline)

	prefs, start := NormalizePreferences(in.Preferences)

	blocks := make([]string, len(prefs.PreferredTimeBlocks))
	for i, b := range prefs.PreferredTimeBlocks {
		blocks[i] = string(b)
	}

	instruction := ai.BuildPrompt(ai.PromptInput{
		Goal:                         goal,
		Deadline:                     deadline,
		CurrentDate:                  currentDate,
		AvailableHoursPerDay:         prefs.AvailableHoursPerDay,
		PreferredTaskDurationMinutes: prefs.PreferredTaskDurationMinutes,
		PreferredTimeBlocks:          blocks,
		WorkDays:                     prefs.WorkDays,
		StartTime:                    start,
		BehavioralProfile:            in.BehavioralProfile,
		Context:                      in.Context,
	})

	raw, err := p.Backend.Generate(ctx, instruction)
	if err != nil {
		return BreakdownResult{}, fmt.Errorf("goals: breakdown: %w", err)
	}

	plan, err := ParsePlan(raw, PlanDefaults{
		CurrentDate:              currentDate,
		PreferredDurationMinutes: prefs.PreferredTaskDurationMinutes,
		StartTime:                start,
	})
	if err != nil {
		p.Logger.Warn("backend returned unparseable plan", zap.Int("response_len", len(raw)))
		return BreakdownResult{}, err
	}

	return BreakdownResult{Goal: goal, Preferences: prefs, Plan: plan}, nil
}

func parseDate(s string) (string, bool) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return t.Format(dateLayout), true
}
