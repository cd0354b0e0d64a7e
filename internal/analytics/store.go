package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"reup-planner-backend/internal/goals"
)

// Store is the append-only observation log. Append returns the user's log
// length after the call; an observation whose ID is already logged for the
// user is not stored again and reports inserted=false.
type Store interface {
	Append(ctx context.Context, o Observation) (count int, inserted bool, err error)
	// List returns the user's first limit observations in append order;
	// limit <= 0 means all of them.
	List(ctx context.Context, userID string, limit int) ([]Observation, error)
	Count(ctx context.Context, userID string) (int, error)
}

type MemoryStore struct {
	mu   sync.RWMutex
	logs map[string][]Observation
	ids  map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logs: map[string][]Observation{},
		ids:  map[string]map[string]struct{}{},
	}
}

func (s *MemoryStore) Append(_ context.Context, o Observation) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen, ok := s.ids[o.UserID]
	if !ok {
		seen = map[string]struct{}{}
		s.ids[o.UserID] = seen
	}
	if _, dup := seen[o.ID]; dup {
		return len(s.logs[o.UserID]), false, nil
	}
	seen[o.ID] = struct{}{}
	s.logs[o.UserID] = append(s.logs[o.UserID], o)
	return len(s.logs[o.UserID]), true, nil
}

func (s *MemoryStore) List(_ context.Context, userID string, limit int) ([]Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[userID]
	if limit > 0 && limit < len(log) {
		log = log[:limit]
	}
	out := make([]Observation, len(log))
	copy(out, log)
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[userID]), nil
}

// SQLStore keeps the log in task_observations. seq numbers each user's
// observations from 1; the (user_id, seq) unique key rejects a second writer
// racing for the same slot.
type SQLStore struct {
	DB *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

func (s *SQLStore) Append(ctx context.Context, o Observation) (int, bool, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("analytics: append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0)
		FROM task_observations
		WHERE user_id = $1
	`, o.UserID).Scan(&seq); err != nil {
		return 0, false, fmt.Errorf("analytics: append: count: %w", err)
	}

	var exists int
	err = tx.QueryRowContext(ctx, `
		SELECT 1
		FROM task_observations
		WHERE user_id = $1 AND id = $2
	`, o.UserID, o.ID).Scan(&exists)
	switch {
	case err == nil:
		return seq, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, false, fmt.Errorf("analytics: append: lookup: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO task_observations (
			seq, id, user_id, task_id, goal_id,
			observed_at, kind, day_of_week, hour_of_day, time_block,
			estimated_minutes, actual_minutes, on_time,
			title_before, title_after, date_before, date_after
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, seq+1, o.ID, o.UserID, o.TaskID, nullIfEmpty(o.GoalID),
		o.ObservedAt.UTC().UnixMilli(), string(o.Kind), o.DayOfWeek, o.HourOfDay, nullIfEmpty(string(o.TimeBlock)),
		nullInt(o.EstimatedMinutes), nullInt(o.ActualMinutes), nullBool(o.OnTime),
		nullIfEmpty(o.TitleBefore), nullIfEmpty(o.TitleAfter), nullIfEmpty(o.DateBefore), nullIfEmpty(o.DateAfter),
	)
	if err != nil {
		return 0, false, fmt.Errorf("analytics: append: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("analytics: append: commit: %w", err)
	}
	return seq + 1, true, nil
}

func (s *SQLStore) List(ctx context.Context, userID string, limit int) ([]Observation, error) {
	q := `
		SELECT id, user_id, task_id, goal_id,
			observed_at, kind, day_of_week, hour_of_day, time_block,
			estimated_minutes, actual_minutes, on_time,
			title_before, title_after, date_before, date_after
		FROM task_observations
		WHERE user_id = $1
		ORDER BY seq`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("analytics: list: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var (
			o                       Observation
			goalID, block           sql.NullString
			titleBefore, titleAfter sql.NullString
			dateBefore, dateAfter   sql.NullString
			estimated, actual       sql.NullInt64
			onTime                  sql.NullBool
			observedAt              int64
			kind                    string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.TaskID, &goalID,
			&observedAt, &kind, &o.DayOfWeek, &o.HourOfDay, &block,
			&estimated, &actual, &onTime,
			&titleBefore, &titleAfter, &dateBefore, &dateAfter,
		); err != nil {
			return nil, fmt.Errorf("analytics: list: scan: %w", err)
		}

		o.GoalID = goalID.String
		o.ObservedAt = time.UnixMilli(observedAt).UTC()
		o.Kind = EventKind(kind)
		o.TimeBlock = goals.TimeBlock(block.String)
		if estimated.Valid {
			o.EstimatedMinutes = ptr(int(estimated.Int64))
		}
		if actual.Valid {
			o.ActualMinutes = ptr(int(actual.Int64))
		}
		if onTime.Valid {
			o.OnTime = ptr(onTime.Bool)
		}
		o.TitleBefore, o.TitleAfter = titleBefore.String, titleAfter.String
		o.DateBefore, o.DateAfter = dateBefore.String, dateAfter.String

		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analytics: list: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Count(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM task_observations
		WHERE user_id = $1
	`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("analytics: count: %w", err)
	}
	return n, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
