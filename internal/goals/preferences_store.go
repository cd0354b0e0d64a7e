package goals

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// PreferencesStore keeps each user's current preferences, always normalized.
type PreferencesStore interface {
	Get(ctx context.Context, userID string) (Preferences, bool, error)
	Put(ctx context.Context, userID string, p Preferences) error
}

type MemoryPreferencesStore struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
}

func NewMemoryPreferencesStore() *MemoryPreferencesStore {
	return &MemoryPreferencesStore{prefs: map[string]Preferences{}}
}

func (s *MemoryPreferencesStore) Get(_ context.Context, userID string) (Preferences, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[userID]
	return p, ok, nil
}

func (s *MemoryPreferencesStore) Put(_ context.Context, userID string, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = p
	return nil
}

// SQLPreferencesStore stores preferences as JSON in user_preferences.
// The upsert works on both Postgres and SQLite.
type SQLPreferencesStore struct {
	DB *sql.DB
}

func NewSQLPreferencesStore(db *sql.DB) *SQLPreferencesStore {
	return &SQLPreferencesStore{DB: db}
}

func (s *SQLPreferencesStore) Get(ctx context.Context, userID string) (Preferences, bool, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx, `
		SELECT prefs_json
		FROM user_preferences
		WHERE user_id = $1
	`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Preferences{}, false, nil
	}
	if err != nil {
		return Preferences{}, false, fmt.Errorf("goals: get preferences: %w", err)
	}

	// re-normalize so a hand-edited row can't leak bad values downstream
	var in PreferencesInput
	_ = json.Unmarshal([]byte(raw), &in)
	p, _ := NormalizePreferences(&in)
	return p, true, nil
}

func (s *SQLPreferencesStore) Put(ctx context.Context, userID string, p Preferences) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("goals: marshal preferences: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, prefs_json, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			prefs_json = EXCLUDED.prefs_json,
			updated_at = EXCLUDED.updated_at
	`, userID, string(b), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("goals: put preferences: %w", err)
	}
	return nil
}
