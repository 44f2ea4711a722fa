package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// MutationKind names an optimistic mutation.
type MutationKind string

const (
	KindSend        MutationKind = "send"
	KindMarkRead    MutationKind = "mark_read"
	KindMarkAllRead MutationKind = "mark_all_read"
	KindReact       MutationKind = "react"
)

// BulkTarget is the target of mutations that touch every item of a feed.
const BulkTarget = "*"

// Phase is the lifecycle state of a PendingMutation.
type Phase int

const (
	PhaseApplied Phase = iota + 1
	PhaseConfirmed
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseApplied:
		return "applied"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// A PendingMutation is a local change that is waiting for the gateway.
type PendingMutation struct {
	ID        string
	TargetID  string
	Kind      MutationKind
	AppliedAt time.Time
	Phase     Phase
}

// A Mutation describes one optimistic change. S is the snapshot Apply takes of the state
// it is about to change.
type Mutation[S any] struct {
	Kind   MutationKind
	Target string
	// Apply makes the local change and returns the prior state. An error aborts the
	// mutation before anything is sent.
	Apply func() (S, error)
	// Remote performs the gateway call.
	Remote func(ctx context.Context) error
	// Confirm reconciles local state once the gateway accepted the change. Optional.
	Confirm func(S)
	// Rollback restores local state from the snapshot after a failure.
	Rollback func(S, error)
}

// errSkip ends a mutation from Apply with no remote call and no error.
var errSkip = errors.New("nothing to do")

const bulkWeight = math.MaxInt32

// Engine runs optimistic mutations. Mutations on the same target run one after another;
// different targets proceed concurrently, and bulk mutations exclude everything else.
type Engine struct {
	Logger  *slog.Logger
	Metrics *Metrics

	gate    *semaphore.Weighted
	mu      sync.Mutex
	lanes   map[string]*lane
	pending map[string]PendingMutation
	now     func() time.Time
}

type lane struct {
	sem  chan struct{}
	refs int
}

// NewEngine returns an engine with no mutations in flight.
func NewEngine(logger *slog.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Logger:  logger,
		Metrics: metrics,
		gate:    semaphore.NewWeighted(bulkWeight),
		lanes:   map[string]*lane{},
		pending: map[string]PendingMutation{},
		now:     time.Now,
	}
}

// Run applies m locally, performs its remote call and then confirms or rolls it back.
// Gateway failures are returned as *MutationError after the rollback has happened.
func Run[S any](ctx context.Context, e *Engine, m Mutation[S]) error {
	release, err := e.acquire(ctx, m.Target)
	if err != nil {
		return fmt.Errorf("%s %s: wait: %w", m.Kind, m.Target, err)
	}
	defer release()

	snap, err := m.Apply()
	if errors.Is(err, errSkip) {
		return nil
	}
	if err != nil {
		return err
	}

	pm := e.register(m.Kind, m.Target)
	err = m.Remote(ctx)
	if err == nil {
		if m.Confirm != nil {
			m.Confirm(snap)
		}
		e.settle(pm, PhaseConfirmed)
		return nil
	}

	m.Rollback(snap, err)
	e.settle(pm, PhaseRolledBack)
	e.Logger.Warn("Rolled back mutation", "kind", m.Kind, "target", m.Target, "error", err.Error())
	return &MutationError{Kind: m.Kind, Target: m.Target, Err: err}
}

// Exclusive runs fn while no mutation is in flight.
func (e *Engine) Exclusive(ctx context.Context, fn func() error) error {
	release, err := e.acquire(ctx, BulkTarget)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// Pending returns the mutations currently awaiting the gateway, oldest first.
func (e *Engine) Pending() []PendingMutation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PendingMutation, 0, len(e.pending))
	for _, pm := range e.pending {
		out = append(out, pm)
	}
	slices.SortFunc(out, func(a, b PendingMutation) int {
		return a.AppliedAt.Compare(b.AppliedAt)
	})
	return out
}

func (e *Engine) acquire(ctx context.Context, target string) (func(), error) {
	if target == BulkTarget {
		if err := e.gate.Acquire(ctx, bulkWeight); err != nil {
			return nil, err
		}
		return func() { e.gate.Release(bulkWeight) }, nil
	}

	if err := e.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	e.mu.Lock()
	l, ok := e.lanes[target]
	if !ok {
		l = &lane{sem: make(chan struct{}, 1)}
		e.lanes[target] = l
	}
	l.refs++
	e.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		e.dropLane(target, l)
		e.gate.Release(1)
		return nil, ctx.Err()
	}
	return func() {
		<-l.sem
		e.dropLane(target, l)
		e.gate.Release(1)
	}, nil
}

func (e *Engine) dropLane(target string, l *lane) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(e.lanes, target)
	}
}

func (e *Engine) register(kind MutationKind, target string) PendingMutation {
	pm := PendingMutation{
		ID:        uuid.NewString(),
		TargetID:  target,
		Kind:      kind,
		AppliedAt: e.now(),
		Phase:     PhaseApplied,
	}
	e.mu.Lock()
	e.pending[pm.ID] = pm
	e.mu.Unlock()
	e.Metrics.applied()
	return pm
}

func (e *Engine) settle(pm PendingMutation, phase Phase) {
	e.mu.Lock()
	delete(e.pending, pm.ID)
	e.mu.Unlock()
	e.Metrics.settled(pm.Kind, phase)
	e.Logger.Debug("Settled mutation", "kind", pm.Kind, "target", pm.TargetID, "phase", phase.String(),
		"elapsed", e.now().Sub(pm.AppliedAt))
}
