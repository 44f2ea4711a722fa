package feed

import (
	"context"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	e := NewEngine(slogt.New(t), m)

	run := func(remoteErr error) {
		_ = Run(context.Background(), e, Mutation[struct{}]{
			Kind:     KindReact,
			Target:   "m1",
			Apply:    func() (struct{}, error) { return struct{}{}, nil },
			Remote:   func(context.Context) error { return remoteErr },
			Rollback: func(struct{}, error) {},
		})
	}
	run(nil)
	run(nil)
	run(errRemote)

	if got := testutil.ToFloat64(m.mutations.WithLabelValues("react", "confirmed")); got != 2 {
		t.Errorf("Got %v confirmed, want 2", got)
	}
	if got := testutil.ToFloat64(m.mutations.WithLabelValues("react", "rolled_back")); got != 1 {
		t.Errorf("Got %v rolled back, want 1", got)
	}
	if got := testutil.ToFloat64(m.pending); got != 0 {
		t.Errorf("Got %v pending, want 0", got)
	}

	m.pageLoaded("messages", nil)
	m.pageLoaded("messages", errRemote)
	if got := testutil.CollectAndCount(m.pageLoads); got != 2 {
		t.Errorf("Got %d page load series, want 2", got)
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.applied()
	m.settled(KindSend, PhaseConfirmed)
	m.pageLoaded("messages", nil)
}
