package analytics

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reup-planner-backend/internal/db"
	"reup-planner-backend/internal/goals"
)

func newAggregator(store Store) *Aggregator {
	a := NewAggregator(store, DefaultProfileOptions(), nil)
	a.Now = func() time.Time { return t0 }
	return a
}

func sqliteStore(t *testing.T) *SQLStore {
	t.Helper()
	conn, err := db.Connect("sqlite", filepath.Join(t.TempDir(), "planner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn))
	return NewSQLStore(conn)
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore(t),
	}
}

func TestPrepare_DerivesFields(t *testing.T) {
	at := time.Date(2026, 1, 11, 20, 30, 0, 0, time.UTC) // Sunday

	o, err := Prepare(Observation{UserID: "u1", TaskID: "t1", Kind: EventCompleted, ObservedAt: at, HourOfDay: -1}, t0)
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 7, o.DayOfWeek)
	assert.Equal(t, 20, o.HourOfDay)
	assert.Equal(t, goals.Evening, o.TimeBlock)

	o, err = Prepare(Observation{UserID: "u1", TaskID: "t1", Kind: EventSkipped, HourOfDay: -1}, t0)
	require.NoError(t, err)
	assert.Equal(t, t0, o.ObservedAt)
	assert.Equal(t, 1, o.DayOfWeek)
	assert.Equal(t, goals.Morning, o.TimeBlock)
}

func TestPrepare_Rejects(t *testing.T) {
	for _, o := range []Observation{
		{TaskID: "t", Kind: EventCompleted},
		{UserID: "u", Kind: EventCompleted},
		{UserID: "u", TaskID: "t", Kind: "abandoned"},
	} {
		_, err := Prepare(o, t0)
		assert.ErrorIs(t, err, ErrInvalidObservation)
	}
}

func TestAggregator_PersonalizesFromTenthObservation(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a := newAggregator(store)
			ctx := context.Background()

			for i := 1; i <= 9; i++ {
				res, err := a.Append(ctx, obs(EventCompleted, t0.Add(time.Duration(i)*time.Minute), 15))
				require.NoError(t, err)
				assert.Equal(t, i, res.Count)
				assert.Equal(t, i == 5, res.Recomputed, "append %d", i)
			}

			_, ok, err := a.Summary(ctx, "u1")
			require.NoError(t, err)
			assert.False(t, ok)

			res, err := a.Append(ctx, obs(EventCompleted, t0.Add(10*time.Minute), 15))
			require.NoError(t, err)
			assert.True(t, res.Recomputed)
			require.NotNil(t, res.Profile)
			assert.Equal(t, 10, res.Profile.TotalObservations)

			s, ok, err := a.Summary(ctx, "u1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Contains(t, s, "Best time block: morning")
		})
	}
}

func TestAggregator_ProfileWindow(t *testing.T) {
	a := newAggregator(NewMemoryStore())
	ctx := context.Background()

	_, ok, err := a.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < 7; i++ {
		_, err := a.Append(ctx, obs(EventCompleted, t0.Add(time.Duration(i)*time.Minute), 15))
		require.NoError(t, err)
	}

	p, ok, err := a.Profile(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, p.TotalObservations, "snapshot only moves at multiples of five")
}

func TestAggregator_RebuildsSnapshotFromLog(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := newAggregator(store)
	for i := 0; i < 10; i++ {
		_, err := first.Append(ctx, obs(EventCompleted, t0.Add(time.Duration(i)*time.Minute), 15))
		require.NoError(t, err)
	}
	want, _, err := first.Profile(ctx, "u1")
	require.NoError(t, err)

	// a fresh process sees the same log and derives the same profile
	got, ok, err := newAggregator(store).Profile(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestAggregator_DuplicateIDIsIgnored(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a := newAggregator(store)
			o := obs(EventCompleted, t0, 15)
			o.ID = "obs-1"

			res, err := a.Append(context.Background(), o)
			require.NoError(t, err)
			assert.True(t, res.Inserted)

			res, err = a.Append(context.Background(), o)
			require.NoError(t, err)
			assert.False(t, res.Inserted)
			assert.Equal(t, 1, res.Count)
		})
	}
}

func TestAggregator_SameIDAcrossUsers(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a := newAggregator(store)
			ctx := context.Background()

			alice := obs(EventCompleted, t0, 15)
			alice.ID, alice.UserID = "obs-1", "alice"
			bob := alice
			bob.UserID = "bob"

			res, err := a.Append(ctx, alice)
			require.NoError(t, err)
			assert.True(t, res.Inserted)

			res, err = a.Append(ctx, bob)
			require.NoError(t, err)
			assert.True(t, res.Inserted)
			assert.Equal(t, 1, res.Count)
		})
	}
}

func TestAggregator_ConcurrentAppendsSameUser(t *testing.T) {
	a := newAggregator(NewMemoryStore())
	ctx := context.Background()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		recomputes int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := a.Append(ctx, obs(EventCompleted, t0.Add(time.Duration(i)*time.Minute), 15))
			if !assert.NoError(t, err) {
				return
			}
			if res.Recomputed {
				mu.Lock()
				recomputes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	n, err := a.Store.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.Equal(t, 10, recomputes)
}

type failingStore struct{ MemoryStore }

var errStoreDown = errors.New("store down")

func (*failingStore) Append(context.Context, Observation) (int, bool, error) {
	return 0, false, errStoreDown
}

func TestAggregator_StoreError(t *testing.T) {
	a := newAggregator(&failingStore{})
	_, err := a.Append(context.Background(), obs(EventCompleted, t0, 15))
	assert.ErrorIs(t, err, errStoreDown)
}

func TestSQLStore_RoundTrip(t *testing.T) {
	store := sqliteStore(t)
	ctx := context.Background()

	o := Observation{
		ID:               "obs-1",
		UserID:           "u1",
		TaskID:           "t1",
		GoalID:           "g1",
		ObservedAt:       t0,
		Kind:             EventRescheduled,
		DayOfWeek:        1,
		HourOfDay:        9,
		TimeBlock:        goals.Morning,
		EstimatedMinutes: ptr(30),
		OnTime:           ptr(false),
		DateBefore:       "2026-01-05",
		DateAfter:        "2026-01-07",
	}
	n, inserted, err := store.Append(ctx, o)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 1, n)

	for i := 2; i <= 4; i++ {
		next := obs(EventCompleted, t0.Add(time.Duration(i)*time.Hour), 0)
		next.ID = fmt.Sprintf("obs-%d", i)
		_, _, err := store.Append(ctx, next)
		require.NoError(t, err)
	}
	// another user's log is separate
	other := obs(EventSkipped, t0, 0)
	other.ID, other.UserID = "obs-x", "u2"
	n, _, err = store.Append(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := store.List(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, o, all[0])
	assert.Equal(t, "obs-4", all[3].ID)

	firstTwo, err := store.List(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, firstTwo, 2)

	count, err := store.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
