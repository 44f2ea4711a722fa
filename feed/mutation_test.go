package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRun(t *testing.T) {
	errPrecondition := errors.New("precondition")
	tests := []struct {
		name         string
		applyErr     error
		remoteErr    error
		wantRemote   bool
		wantConfirm  bool
		wantRollback bool
		wantErr      error
	}{
		{name: "Confirmed", wantRemote: true, wantConfirm: true},
		{name: "RolledBack", remoteErr: errRemote, wantRemote: true, wantRollback: true, wantErr: ErrRolledBack},
		{name: "Precondition", applyErr: errPrecondition, wantErr: errPrecondition},
		{name: "Skip", applyErr: errSkip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(slogt.New(t), NewMetrics(prometheus.NewRegistry()))
			var remote, confirmed, rolledBack bool
			err := Run(context.Background(), e, Mutation[int]{
				Kind:   KindMarkRead,
				Target: "n1",
				Apply:  func() (int, error) { return 42, tt.applyErr },
				Remote: func(context.Context) error {
					remote = true
					if len(e.Pending()) != 1 {
						t.Errorf("Pending() during remote call = %v", e.Pending())
					}
					return tt.remoteErr
				},
				Confirm: func(snap int) { confirmed = snap == 42 },
				Rollback: func(snap int, err error) {
					rolledBack = snap == 42 && errors.Is(err, errRemote)
				},
			})
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("Run() = %v, want %v", err, tt.wantErr)
			}
			if remote != tt.wantRemote || confirmed != tt.wantConfirm || rolledBack != tt.wantRollback {
				t.Errorf("remote=%v confirmed=%v rolledBack=%v", remote, confirmed, rolledBack)
			}
			if n := len(e.Pending()); n != 0 {
				t.Errorf("Got %d pending mutations after settling", n)
			}
		})
	}
}

func TestRun_MutationError(t *testing.T) {
	e := NewEngine(slogt.New(t), nil)
	err := Run(context.Background(), e, Mutation[struct{}]{
		Kind:     KindReact,
		Target:   "m1",
		Apply:    func() (struct{}, error) { return struct{}{}, nil },
		Remote:   func(context.Context) error { return errRemote },
		Rollback: func(struct{}, error) {},
	})
	var merr *MutationError
	if !errors.As(err, &merr) {
		t.Fatalf("Run() = %v, want *MutationError", err)
	}
	if merr.Kind != KindReact || merr.Target != "m1" {
		t.Errorf("MutationError = %+v", merr)
	}
	if !errors.Is(err, errRemote) {
		t.Error("MutationError does not wrap the remote cause")
	}
}

// blocking returns a mutation on target whose remote call signals entered and then
// waits for release.
func blocking(target string, entered, release chan struct{}) Mutation[struct{}] {
	return Mutation[struct{}]{
		Kind:   KindReact,
		Target: target,
		Apply:  func() (struct{}, error) { return struct{}{}, nil },
		Remote: func(context.Context) error {
			close(entered)
			<-release
			return nil
		},
		Rollback: func(struct{}, error) {},
	}
}

func TestEngine_SameTargetQueues(t *testing.T) {
	e := NewEngine(slogt.New(t), nil)
	entered, release := make(chan struct{}), make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Run(context.Background(), e, blocking("m1", entered, release)); err != nil {
			t.Error(err)
		}
	}()
	waitFor(t, entered, "first mutation")

	applied := make(chan struct{})
	second := make(chan struct{})
	go func() {
		defer close(second)
		_ = Run(context.Background(), e, Mutation[struct{}]{
			Kind:     KindReact,
			Target:   "m1",
			Apply:    func() (struct{}, error) { close(applied); return struct{}{}, nil },
			Remote:   func(context.Context) error { return nil },
			Rollback: func(struct{}, error) {},
		})
	}()

	// Another target is not held up.
	other := make(chan struct{})
	go func() {
		defer close(other)
		_ = Run(context.Background(), e, Mutation[struct{}]{
			Kind:     KindReact,
			Target:   "m2",
			Apply:    func() (struct{}, error) { return struct{}{}, nil },
			Remote:   func(context.Context) error { return nil },
			Rollback: func(struct{}, error) {},
		})
	}()
	waitFor(t, other, "mutation on another target")

	select {
	case <-applied:
		t.Fatal("Second mutation on the same target applied while the first was pending")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	waitFor(t, done, "first mutation to settle")
	waitFor(t, applied, "second mutation")
	waitFor(t, second, "second mutation to settle")
}

func TestEngine_Exclusive(t *testing.T) {
	e := NewEngine(slogt.New(t), nil)
	entered, release := make(chan struct{}), make(chan struct{})
	go func() {
		_ = Run(context.Background(), e, blocking("n1", entered, release))
	}()
	waitFor(t, entered, "mutation")

	ran := make(chan struct{})
	go func() {
		_ = e.Exclusive(context.Background(), func() error {
			close(ran)
			return nil
		})
	}()
	select {
	case <-ran:
		t.Fatal("Exclusive ran while a mutation was pending")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	waitFor(t, ran, "exclusive section")
}

func TestEngine_ContextCanceled(t *testing.T) {
	e := NewEngine(slogt.New(t), nil)
	entered, release := make(chan struct{}), make(chan struct{})
	defer close(release)
	go func() {
		_ = Run(context.Background(), e, blocking("n1", entered, release))
	}()
	waitFor(t, entered, "mutation")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := Run(ctx, e, Mutation[struct{}]{
		Kind:   KindMarkRead,
		Target: "n1",
		Apply: func() (struct{}, error) {
			t.Error("Apply ran after the context expired")
			return struct{}{}, nil
		},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() = %v, want %v", err, context.DeadlineExceeded)
	}
}
