package analytics

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reup-planner-backend/internal/auth"
	"reup-planner-backend/internal/goals"
)

type Handlers struct {
	Aggregator *Aggregator
	Logger     *zap.Logger
}

func NewHandlers(a *Aggregator, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{Aggregator: a, Logger: logger}
}

type observationRequest struct {
	ID               string     `json:"id"`
	TaskID           string     `json:"taskId"`
	GoalID           string     `json:"goalId"`
	ObservedAt       *time.Time `json:"observedAt"`
	Kind             string     `json:"kind"`
	DayOfWeek        *int       `json:"dayOfWeek"`
	HourOfDay        *int       `json:"hourOfDay"`
	TimeBlock        string     `json:"timeBlock"`
	EstimatedMinutes *int       `json:"estimatedMinutes"`
	ActualMinutes    *int       `json:"actualMinutes"`
	OnTime           *bool      `json:"onTime"`
	TitleBefore      string     `json:"titleBefore"`
	TitleAfter       string     `json:"titleAfter"`
	DateBefore       string     `json:"dateBefore"`
	DateAfter        string     `json:"dateAfter"`
}

func (req observationRequest) observation(userID string) Observation {
	o := Observation{
		ID:               strings.TrimSpace(req.ID),
		UserID:           userID,
		TaskID:           req.TaskID,
		GoalID:           strings.TrimSpace(req.GoalID),
		Kind:             EventKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		HourOfDay:        -1,
		TimeBlock:        goals.TimeBlock(strings.ToLower(strings.TrimSpace(req.TimeBlock))),
		EstimatedMinutes: req.EstimatedMinutes,
		ActualMinutes:    req.ActualMinutes,
		OnTime:           req.OnTime,
		TitleBefore:      req.TitleBefore,
		TitleAfter:       req.TitleAfter,
		DateBefore:       req.DateBefore,
		DateAfter:        req.DateAfter,
	}
	if req.ObservedAt != nil {
		o.ObservedAt = req.ObservedAt.UTC()
	}
	if req.DayOfWeek != nil {
		o.DayOfWeek = *req.DayOfWeek
	}
	if req.HourOfDay != nil {
		o.HourOfDay = *req.HourOfDay
	}
	return o
}

type observationResponse struct {
	Success       bool              `json:"success"`
	ObservationID string            `json:"observationId"`
	Count         int               `json:"count"`
	Duplicate     bool              `json:"duplicate"`
	Recomputed    bool              `json:"recomputed"`
	Profile       *ExecutionProfile `json:"profile,omitempty"`
}

type profileResponse struct {
	Success      bool              `json:"success"`
	Profile      *ExecutionProfile `json:"profile,omitempty"`
	Summary      string            `json:"summary,omitempty"`
	Personalized bool              `json:"personalized"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// idempotencyKey is the optional client key for retried posts.
func idempotencyKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Observations serves POST /api/observations.
func (h *Handlers) Observations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var body observationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	o := body.observation(uid)
	if o.ID == "" {
		if key := idempotencyKey(r); key != "" {
			// same key from the same user always maps to the same id
			o.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(uid+"/"+key)).String()
		}
	}

	res, err := h.Aggregator.Append(r.Context(), o)
	if errors.Is(err, ErrInvalidObservation) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: strings.TrimPrefix(err.Error(), "analytics: ")})
		return
	}
	if err != nil {
		h.Logger.Error("append observation", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to record observation"})
		return
	}

	// titles are user text and stay out of the log
	h.Logger.Info("observation recorded",
		zap.String("kind", string(res.Observation.Kind)),
		zap.Int("count", res.Count),
		zap.Bool("duplicate", !res.Inserted),
		zap.Bool("recomputed", res.Recomputed),
	)

	status := http.StatusCreated
	if !res.Inserted {
		status = http.StatusOK
	}
	writeJSON(w, status, observationResponse{
		Success:       true,
		ObservationID: res.Observation.ID,
		Count:         res.Count,
		Duplicate:     !res.Inserted,
		Recomputed:    res.Recomputed,
		Profile:       res.Profile,
	})
}

// Profile serves GET /api/profile.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	p, ok, err := h.Aggregator.Profile(r.Context(), uid)
	if err != nil {
		h.Logger.Error("load profile", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to load profile"})
		return
	}

	resp := profileResponse{Success: true}
	if ok {
		resp.Profile = &p
		resp.Summary, resp.Personalized = Summarize(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
