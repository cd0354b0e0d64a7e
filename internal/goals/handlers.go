package goals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"reup-planner-backend/internal/ai"
	"reup-planner-backend/internal/auth"
)

// ProfileSummaries supplies the behavioral-profile snippet of a user, if the
// user has enough history for one.
type ProfileSummaries interface {
	Summary(ctx context.Context, userID string) (string, bool, error)
}

type Handlers struct {
	Planner    *Planner
	Profiles   ProfileSummaries // optional
	Prefs      PreferencesStore // optional
	Production bool
	Timeout    time.Duration
	Logger     *zap.Logger
}

type breakdownRequest struct {
	Goal              any               `json:"goal"`
	Deadline          any               `json:"deadline"`
	CurrentDate       any               `json:"currentDate"`
	Preferences       *PreferencesInput `json:"preferences"`
	BehavioralProfile any               `json:"behavioralProfile"`
	Context           any               `json:"context"`
}

type breakdownResponse struct {
	Success    bool            `json:"success"`
	Goal       string          `json:"goal"`
	Milestones []PlanMilestone `json:"milestones"`
	Tasks      []PlanTask      `json:"tasks"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Breakdown serves POST /api/breakdown.
func (h *Handlers) Breakdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}

	// an undecodable body is treated like a missing goal
	var body breakdownRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	goal, _ := body.Goal.(string)
	if strings.TrimSpace(goal) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: goalRequiredMessage})
		return
	}

	in := BreakdownInput{
		Goal:              goal,
		Deadline:          asString(body.Deadline),
		CurrentDate:       asString(body.CurrentDate),
		Preferences:       body.Preferences,
		BehavioralProfile: asString(body.BehavioralProfile),
		Context:           asString(body.Context),
	}
	h.personalize(r.Context(), &in)

	ctx := r.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	res, err := h.Planner.Breakdown(ctx, in)
	if err != nil {
		h.writeError(w, err, len(goal))
		return
	}

	h.logger().Info("plan generated",
		zap.Int("goal_len", len(res.Goal)),
		zap.Int("milestones", len(res.Plan.Milestones)),
		zap.Int("tasks", len(res.Plan.Tasks)),
	)

	writeJSON(w, http.StatusOK, breakdownResponse{
		Success:    true,
		Goal:       res.Goal,
		Milestones: res.Plan.Milestones,
		Tasks:      res.Plan.Tasks,
	})
}

// personalize fills what an authenticated caller left out from its stored
// preferences and behavioral profile. Lookups failing never fail the request.
func (h *Handlers) personalize(ctx context.Context, in *BreakdownInput) {
	uid, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return
	}

	if in.Preferences == nil && h.Prefs != nil {
		if p, found, err := h.Prefs.Get(ctx, uid); err != nil {
			h.logger().Warn("load stored preferences", zap.Error(err))
		} else if found {
			stored := p.Input()
			in.Preferences = &stored
		}
	}

	if strings.TrimSpace(in.BehavioralProfile) == "" && h.Profiles != nil {
		if s, found, err := h.Profiles.Summary(ctx, uid); err != nil {
			h.logger().Warn("load behavioral profile", zap.Error(err))
		} else if found {
			in.BehavioralProfile = s
		}
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error, goalLen int) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Message})
		return
	case ai.IsKind(err, ai.KindAuth):
		h.logger().Error("backend rejected credentials", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Server configuration error",
			Details: "Invalid or missing API key",
		})
		return
	case ai.IsKind(err, ai.KindRateLimit):
		h.logger().Warn("backend rate limited", zap.Error(err))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:   "Rate limit exceeded",
			Details: "Please try again in a moment",
		})
		return
	}

	h.logger().Error("plan generation failed",
		zap.Int("goal_len", goalLen),
		zap.String("error_kind", errorKind(err)),
		zap.Error(err),
	)
	resp := errorResponse{Error: "Failed to generate plan"}
	if !h.Production {
		resp.Details = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

type preferencesResponse struct {
	Success     bool        `json:"success"`
	Preferences Preferences `json:"preferences"`
	StartTime   string      `json:"preferredStartTime"`
	Stored      bool        `json:"stored"`
}

// GetPreferences serves GET /api/preferences; users without stored
// preferences get the defaults.
func (h *Handlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	p, found, err := h.Prefs.Get(r.Context(), uid)
	if err != nil {
		h.logger().Error("get preferences", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to load preferences"})
		return
	}
	if !found {
		p, _ = NormalizePreferences(nil)
	}

	writeJSON(w, http.StatusOK, preferencesResponse{
		Success:     true,
		Preferences: p,
		StartTime:   p.PreferredTimeBlocks[0].StartTime(),
		Stored:      found,
	})
}

// PutPreferences serves PUT /api/preferences and stores the normalized form.
func (h *Handlers) PutPreferences(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var in PreferencesInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	p, start := NormalizePreferences(&in)

	if err := h.Prefs.Put(r.Context(), uid, p); err != nil {
		h.logger().Error("put preferences", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to save preferences"})
		return
	}

	writeJSON(w, http.StatusOK, preferencesResponse{Success: true, Preferences: p, StartTime: start, Stored: true})
}

// Preferences dispatches /api/preferences by method.
func (h *Handlers) Preferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetPreferences(w, r)
	case http.MethodPut, http.MethodPost:
		h.PutPreferences(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	}
}

func (h *Handlers) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func errorKind(err error) string {
	var be *ai.BackendError
	switch {
	case errors.As(err, &be):
		return string(be.Kind)
	case errors.Is(err, ai.ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	}
	return "unknown"
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
