package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/britcoin/internal/chain"
)

// ── Stubs ────────────────────────────────────────────────────────────────

func acceptAll(string, string) string { return "00" }

func newLedger(t *testing.T, store chain.Store) *chain.Ledger {
	t.Helper()
	l, err := chain.New(context.Background(), store, chain.Config{Difficulty: 2}, zap.NewNop(),
		chain.WithWorkFunc(acceptAll),
		chain.WithClock(func() time.Time { return time.Date(2016, 11, 7, 13, 0, 0, 0, time.UTC) }),
	)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return l
}

type brokenLedger struct{ *chain.Ledger }

func (brokenLedger) Verify() error { return chain.ErrChainBroken }

// ── Tests ────────────────────────────────────────────────────────────────

func TestCheck_healthy(t *testing.T) {
	store := chain.NewMemoryStore()
	l := newLedger(t, store)
	if _, err := l.Mine(context.Background(), "brit", "hello"); err != nil {
		t.Fatal(err)
	}

	var results []bool
	checker := New(l, store, Config{}, zap.NewNop())
	checker.SetMetricsRecord(func(ok bool) { results = append(results, ok) })

	if err := checker.Check(context.Background()); err != nil {
		t.Fatalf("expected healthy chain, got %v", err)
	}
	st := checker.Status()
	if st.State != StateHealthy || st.Failures != 0 || st.LastCheck.IsZero() {
		t.Errorf("unexpected status: %+v", st)
	}
	if len(results) != 1 || !results[0] {
		t.Errorf("metrics results: %v", results)
	}
}

func TestCheck_storeDrift(t *testing.T) {
	l := newLedger(t, chain.NewMemoryStore())
	if _, err := l.Mine(context.Background(), "brit", "hello"); err != nil {
		t.Fatal(err)
	}

	// The store only has the genesis block the ledger wrote elsewhere.
	genesis, err := chain.RecordFromBlock(l.Blocks()[0])
	if err != nil {
		t.Fatal(err)
	}
	checker := New(l, chain.NewMemoryStore(genesis), Config{}, zap.NewNop())

	err = checker.Check(context.Background())
	if !errors.Is(err, ErrStoreDrift) {
		t.Fatalf("expected ErrStoreDrift, got %v", err)
	}
}

func TestCheck_degradesAfterThreshold(t *testing.T) {
	l := brokenLedger{newLedger(t, chain.NewMemoryStore())}

	var reasons []string
	checker := New(l, nil, Config{FailThreshold: 3}, zap.NewNop())
	checker.SetDegradedHook(func(reason string) { reasons = append(reasons, reason) })

	for i := 0; i < 2; i++ {
		checker.Check(context.Background()) //nolint:errcheck
	}
	if st := checker.Status(); st.State != StateHealthy || st.Failures != 2 {
		t.Fatalf("below threshold: got %+v", st)
	}

	for i := 0; i < 2; i++ {
		checker.Check(context.Background()) //nolint:errcheck
	}
	st := checker.Status()
	if st.State != StateDegraded || st.Failures != 4 {
		t.Errorf("expected degraded, got %+v", st)
	}
	if len(reasons) != 1 {
		t.Errorf("degraded hook should fire once, fired %d times", len(reasons))
	}
}

func TestCheck_recoversOnSuccess(t *testing.T) {
	store := chain.NewMemoryStore()
	l := newLedger(t, store)

	checker := New(brokenLedger{l}, store, Config{FailThreshold: 1}, zap.NewNop())
	checker.Check(context.Background()) //nolint:errcheck
	if checker.Status().State != StateDegraded {
		t.Fatalf("expected degraded, got %+v", checker.Status())
	}

	checker.ledger = l
	if err := checker.Check(context.Background()); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if st := checker.Status(); st.State != StateHealthy || st.LastError != "" {
		t.Errorf("expected healthy after recovery, got %+v", st)
	}
}

func TestStart_stopsOnCancel(t *testing.T) {
	l := newLedger(t, chain.NewMemoryStore())
	checker := New(l, nil, Config{CheckInterval: time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Start(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for checker.Status().LastCheck.IsZero() {
		select {
		case <-deadline:
			t.Fatal("no check ran")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
