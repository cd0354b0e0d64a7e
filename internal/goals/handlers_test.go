package goals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reup-planner-backend/internal/ai"
	"reup-planner-backend/internal/auth"
)

type stubProfiles struct {
	summary string
	ok      bool
	err     error
}

func (s stubProfiles) Summary(context.Context, string) (string, bool, error) {
	return s.summary, s.ok, s.err
}

func serve(t *testing.T, h http.HandlerFunc, method, body string, ctx context.Context) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/api/breakdown", strings.NewReader(body))
	if ctx != nil {
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestBreakdownHandler_Success(t *testing.T) {
	backend := &stubBackend{reply: `{"milestones":[{"title":"MVP","targetDate":"2026-02-01","order":1}],
		"tasks":[{"title":"Draft landing page","estimatedMinutes":200,"scheduledDate":"2026-01-20","scheduledStartTime":"10:00","milestoneIndex":0,"order":1}]}`}
	h := &Handlers{Planner: fixedPlanner(backend)}

	rec := serve(t, h.Breakdown, http.MethodPost, `{"goal":"  Launch a SaaS product ","deadline":"2026-03-01"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"success": true,
		"goal": "Launch a SaaS product",
		"milestones": [{"title":"MVP","targetDate":"2026-02-01","order":1}],
		"tasks": [{"title":"Draft landing page","estimatedMinutes":120,"scheduledDate":"2026-01-20","scheduledStartTime":"10:00","milestoneIndex":0,"order":1}]
	}`, rec.Body.String())
}

func TestBreakdownHandler_GoalRequired(t *testing.T) {
	h := &Handlers{Planner: fixedPlanner(&stubBackend{})}

	for _, body := range []string{`{}`, `{"goal":"   "}`, `{"goal":42}`, `not json`, ``} {
		rec := serve(t, h.Breakdown, http.MethodPost, body, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"success":false,"error":"Goal is required and must be a non-empty string"}`, rec.Body.String(), body)
	}
}

func TestBreakdownHandler_BackendFailures(t *testing.T) {
	tests := []struct {
		name       string
		backend    *stubBackend
		production bool
		status     int
		body       string
	}{
		{
			name:    "auth",
			backend: &stubBackend{err: &ai.BackendError{Kind: ai.KindAuth, Status: 401, Message: "bad key"}},
			status:  http.StatusInternalServerError,
			body:    `{"success":false,"error":"Server configuration error","details":"Invalid or missing API key"}`,
		},
		{
			name:    "rate limit",
			backend: &stubBackend{err: &ai.BackendError{Kind: ai.KindRateLimit, Status: 429, Message: "slow"}},
			status:  http.StatusTooManyRequests,
			body:    `{"success":false,"error":"Rate limit exceeded","details":"Please try again in a moment"}`,
		},
		{
			name:       "empty in production",
			backend:    &stubBackend{err: ai.ErrEmptyResponse},
			production: true,
			status:     http.StatusInternalServerError,
			body:       `{"success":false,"error":"Failed to generate plan"}`,
		},
		{
			name:       "malformed in production",
			backend:    &stubBackend{reply: "not json"},
			production: true,
			status:     http.StatusInternalServerError,
			body:       `{"success":false,"error":"Failed to generate plan"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handlers{Planner: fixedPlanner(tt.backend), Production: tt.production}

			rec := serve(t, h.Breakdown, http.MethodPost, `{"goal":"Ship it"}`, nil)

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestBreakdownHandler_DetailsOutsideProduction(t *testing.T) {
	h := &Handlers{Planner: fixedPlanner(&stubBackend{reply: "not json"})}

	rec := serve(t, h.Breakdown, http.MethodPost, `{"goal":"Ship it"}`, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Failed to generate plan", body.Error)
	assert.Contains(t, body.Details, "malformed")
}

func TestBreakdownHandler_MethodNotAllowed(t *testing.T) {
	h := &Handlers{Planner: fixedPlanner(&stubBackend{})}
	rec := serve(t, h.Breakdown, http.MethodGet, "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBreakdownHandler_PersonalizesAuthenticatedCaller(t *testing.T) {
	backend := &stubBackend{reply: `{}`}
	prefs := NewMemoryPreferencesStore()
	stored, _ := NormalizePreferences(&PreferencesInput{PreferredTimeBlocks: []string{"evening"}})
	require.NoError(t, prefs.Put(context.Background(), "u1", stored))

	h := &Handlers{
		Planner:  fixedPlanner(backend),
		Prefs:    prefs,
		Profiles: stubProfiles{summary: "Best time block: evening.", ok: true},
	}
	ctx := auth.WithUserID(context.Background(), "u1")

	rec := serve(t, h.Breakdown, http.MethodPost, `{"goal":"Write a novel"}`, ctx)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, backend.got.User, "preferred_time_blocks: evening\n")
	assert.Contains(t, backend.got.User, "BEHAVIORAL PROFILE\nBest time block: evening.\n")
}

func TestBreakdownHandler_RequestValuesWinOverStored(t *testing.T) {
	backend := &stubBackend{reply: `{}`}
	h := &Handlers{
		Planner:  fixedPlanner(backend),
		Prefs:    NewMemoryPreferencesStore(),
		Profiles: stubProfiles{err: errors.New("db down")},
	}
	ctx := auth.WithUserID(context.Background(), "u1")

	rec := serve(t, h.Breakdown, http.MethodPost,
		`{"goal":"Write a novel","preferences":{"preferredTimeBlocks":["afternoon"]},"behavioralProfile":"Mine."}`, ctx)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, backend.got.User, "preferred_time_blocks: afternoon\n")
	assert.Contains(t, backend.got.User, "BEHAVIORAL PROFILE\nMine.\n")
}

func TestPreferencesHandlers(t *testing.T) {
	h := &Handlers{Prefs: NewMemoryPreferencesStore()}
	ctx := auth.WithUserID(context.Background(), "u1")

	req := httptest.NewRequest(http.MethodGet, "/api/preferences", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Preferences(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"preferences":{"availableHoursPerDay":2,"preferredTaskDurationMinutes":30,
		"preferredTimeBlocks":["morning"],"workDays":["monday","tuesday","wednesday","thursday","friday"]},
		"preferredStartTime":"09:00","stored":false}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPut, "/api/preferences",
		strings.NewReader(`{"availableHoursPerDay":4,"preferredTimeBlocks":["evening","bogus"]}`)).WithContext(ctx)
	rec = httptest.NewRecorder()
	h.Preferences(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	got, found, err := h.Prefs.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 4.0, got.AvailableHoursPerDay)
	assert.Equal(t, []TimeBlock{Evening}, got.PreferredTimeBlocks)

	rec = httptest.NewRecorder()
	h.Preferences(rec, httptest.NewRequest(http.MethodGet, "/api/preferences", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
