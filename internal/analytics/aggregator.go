package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RecomputeInterval is how many appends separate two profile recomputes.
const RecomputeInterval = 5

type AppendResult struct {
	Observation Observation
	Count       int
	Inserted    bool
	Recomputed  bool
	Profile     *ExecutionProfile // current snapshot, nil before the first recompute
}

// Aggregator owns the observation log of every user and the profile derived
// from it. Appends for one user are serialized; different users proceed in
// parallel.
type Aggregator struct {
	Store   Store
	Options ProfileOptions
	Now     func() time.Time
	Logger  *zap.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
	snapshots map[string]ExecutionProfile
}

func NewAggregator(store Store, opts ProfileOptions, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		Store:     store,
		Options:   opts,
		Now:       time.Now,
		Logger:    logger,
		userLocks: map[string]*sync.Mutex{},
		snapshots: map[string]ExecutionProfile{},
	}
}

func (a *Aggregator) lock(userID string) func() {
	a.mu.Lock()
	l, ok := a.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		a.userLocks[userID] = l
	}
	a.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Append logs o and, when the log length reaches a multiple of
// RecomputeInterval, recomputes the profile over the whole log.
func (a *Aggregator) Append(ctx context.Context, o Observation) (AppendResult, error) {
	o, err := Prepare(o, a.Now().UTC())
	if err != nil {
		return AppendResult{}, err
	}

	unlock := a.lock(o.UserID)
	defer unlock()

	count, inserted, err := a.Store.Append(ctx, o)
	if err != nil {
		return AppendResult{}, err
	}
	res := AppendResult{Observation: o, Count: count, Inserted: inserted}

	if inserted && count%RecomputeInterval == 0 {
		p, err := a.recompute(ctx, o.UserID, count)
		if err != nil {
			return AppendResult{}, err
		}
		res.Recomputed = true
		res.Profile = &p
		a.Logger.Debug("profile recomputed",
			zap.Int("observations", count),
			zap.Bool("personalized", count >= PersonalizationThreshold),
		)
		return res, nil
	}

	if p, ok, err := a.snapshot(ctx, o.UserID, count); err != nil {
		return AppendResult{}, err
	} else if ok {
		res.Profile = &p
	}
	return res, nil
}

// Profile returns the user's current snapshot: the profile over the first
// floor(n/RecomputeInterval)*RecomputeInterval observations. ok is false
// until the first recompute point.
func (a *Aggregator) Profile(ctx context.Context, userID string) (ExecutionProfile, bool, error) {
	unlock := a.lock(userID)
	defer unlock()

	count, err := a.Store.Count(ctx, userID)
	if err != nil {
		return ExecutionProfile{}, false, err
	}
	return a.snapshot(ctx, userID, count)
}

// Summary satisfies goals.ProfileSummaries.
func (a *Aggregator) Summary(ctx context.Context, userID string) (string, bool, error) {
	p, ok, err := a.Profile(ctx, userID)
	if err != nil || !ok {
		return "", false, err
	}
	s, ok := Summarize(p)
	return s, ok, nil
}

// snapshot must be called with the user lock held.
func (a *Aggregator) snapshot(ctx context.Context, userID string, count int) (ExecutionProfile, bool, error) {
	window := count - count%RecomputeInterval
	if window == 0 {
		return ExecutionProfile{}, false, nil
	}

	a.mu.Lock()
	p, ok := a.snapshots[userID]
	a.mu.Unlock()
	if ok && p.TotalObservations == window {
		return p, true, nil
	}

	// another process appended, or we restarted: rebuild from the log
	p, err := a.recompute(ctx, userID, window)
	if err != nil {
		return ExecutionProfile{}, false, err
	}
	return p, true, nil
}

func (a *Aggregator) recompute(ctx context.Context, userID string, window int) (ExecutionProfile, error) {
	log, err := a.Store.List(ctx, userID, window)
	if err != nil {
		return ExecutionProfile{}, fmt.Errorf("analytics: recompute: %w", err)
	}
	p := ComputeProfile(log, a.Options)

	a.mu.Lock()
	a.snapshots[userID] = p
	a.mu.Unlock()
	return p, nil
}
