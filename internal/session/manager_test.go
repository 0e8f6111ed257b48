package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/danielpatrickdp/robo-predictor/internal/journal"
	"github.com/danielpatrickdp/robo-predictor/internal/metrics"
	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

func newJournal(t *testing.T) *journal.Store {
	t.Helper()
	s, err := journal.NewStore(filepath.Join(t.TempDir(), "j.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestManager_OpenPredictObserve(t *testing.T) {
	ctx := context.Background()
	store := newJournal(t)
	m := NewManager(Config{}, WithJournal(store))

	s, err := m.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	d, err := m.Predict(ctx, s.ID, 7, predictor.Day)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if d.Rule != predictor.RuleFallback || d.Outcome != predictor.Day {
		t.Fatalf("expected fallback day, got %s via %s", d.Outcome, d.Rule)
	}

	rec, err := m.Observe(ctx, s.ID, 7, predictor.Night)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if rec.Predicted == nil || rec.Hit() {
		t.Fatalf("expected a recorded miss, got %+v", rec)
	}

	// Single-entity stats now favour night for planet 7.
	d, _ = m.Predict(ctx, s.ID, 7, predictor.Day)
	if d.Rule != predictor.RuleSingleMajority || d.Outcome != predictor.Night {
		t.Fatalf("expected single_majority night, got %s via %s", d.Outcome, d.Rule)
	}

	steps, err := store.Steps(ctx, s.ID)
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if len(steps) != 1 || steps[0].PlanetID != 7 || steps[0].Rule != predictor.RuleFallback {
		t.Fatalf("unexpected journal %+v", steps)
	}
}

func TestManager_ObserveWithoutMatchingPrediction(t *testing.T) {
	ctx := context.Background()
	m := NewManager(Config{})
	s, _ := m.Open(ctx)

	m.Predict(ctx, s.ID, 1, predictor.Day)
	rec, err := m.Observe(ctx, s.ID, 2, predictor.Day)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if rec.Predicted != nil {
		t.Fatal("mismatched planet must not carry the pending prediction")
	}

	rec, _ = m.Observe(ctx, s.ID, 3, predictor.Night)
	if rec.Predicted != nil || rec.Index != 1 {
		t.Fatalf("expected unpredicted step 1, got %+v", rec)
	}
}

func TestManager_UnpredictedStepsScoreNothing(t *testing.T) {
	ctx := context.Background()
	store := newJournal(t)
	m := NewManager(Config{}, WithJournal(store))
	s, _ := m.Open(ctx)

	m.Observe(ctx, s.ID, 1, predictor.Night)
	m.Observe(ctx, s.ID, 2, predictor.Night)

	sum, err := store.Summary(ctx, s.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Steps != 2 || sum.Predicted != 0 || sum.Hits != 0 || sum.OracleHits != 0 {
		t.Fatalf("expected 2 unscored steps, got steps=%d predicted=%d hits=%d oracle=%d",
			sum.Steps, sum.Predicted, sum.Hits, sum.OracleHits)
	}

	m.Predict(ctx, s.ID, 3, predictor.Night)
	m.Observe(ctx, s.ID, 3, predictor.Night)
	sum, _ = store.Summary(ctx, s.ID)
	if sum.Predicted != 1 || sum.OracleHits != 1 {
		t.Fatalf("expected the guessed step to count, got predicted=%d oracle=%d", sum.Predicted, sum.OracleHits)
	}
}

func TestManager_ObserveSurvivesJournalFailure(t *testing.T) {
	ctx := context.Background()
	store, err := journal.NewStore(filepath.Join(t.TempDir(), "j.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	m := NewManager(Config{}, WithJournal(store))
	s, err := m.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Close()

	m.Predict(ctx, s.ID, 1, predictor.Day)
	rec, err := m.Observe(ctx, s.ID, 1, predictor.Day)
	if err != nil {
		t.Fatalf("Observe must not fail on a journal error: %v", err)
	}
	if rec.Index != 0 || !rec.Hit() {
		t.Fatalf("unexpected record %+v", rec)
	}

	rec, _ = m.Observe(ctx, s.ID, 2, predictor.Day)
	if rec.Index != 1 {
		t.Fatalf("expected step 1, got %d", rec.Index)
	}
	d, _ := m.Predict(ctx, s.ID, 3, predictor.Night)
	if d.Rule != predictor.RuleDayCeiling {
		t.Fatalf("expected each visit applied once, got %s", d.Rule)
	}
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewManager(Config{})
	a, _ := m.Open(ctx)
	b, _ := m.Open(ctx)
	if a.ID == b.ID {
		t.Fatal("session ids must differ")
	}

	m.Observe(ctx, a.ID, 1, predictor.Day)
	m.Observe(ctx, a.ID, 2, predictor.Day)

	da, _ := m.Predict(ctx, a.ID, 5, predictor.Day)
	db, _ := m.Predict(ctx, b.ID, 5, predictor.Day)
	if da.Rule != predictor.RuleDayCeiling {
		t.Fatalf("session a: expected day_ceiling, got %s", da.Rule)
	}
	if db.Rule != predictor.RuleFallback {
		t.Fatalf("session b: expected fallback, got %s", db.Rule)
	}
}

func TestManager_UnknownSession(t *testing.T) {
	ctx := context.Background()
	m := NewManager(Config{})

	if _, err := m.Predict(ctx, "nope", 1, predictor.Day); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := m.Observe(ctx, "nope", 1, predictor.Day); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := m.Close(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_CloseRemovesSession(t *testing.T) {
	ctx := context.Background()
	store := newJournal(t)
	m := NewManager(Config{}, WithJournal(store))
	s, _ := m.Open(ctx)

	if got := len(m.List()); got != 1 {
		t.Fatalf("expected 1 open session, got %d", got)
	}
	if err := m.Close(ctx, s.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := m.Get(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected closed session to be gone, got %v", err)
	}
	rec, err := store.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if rec.ClosedAt == nil {
		t.Fatal("expected closed_at in journal")
	}
}

func TestManager_CapacityAndEvictionMetrics(t *testing.T) {
	ctx := context.Background()
	prom := metrics.NewPrometheus()
	m := NewManager(Config{Capacity: predictor.Capacity{Singles: 2}}, WithMetrics(prom))
	s, _ := m.Open(ctx)

	for i := 0; i < 5; i++ {
		m.Observe(ctx, s.ID, predictor.PlanetID(i), predictor.Night)
	}
	st, err := m.Stats(s.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Singles != 2 || st.Evictions.Singles != 3 {
		t.Fatalf("expected 2 resident and 3 evicted singles, got %+v", st)
	}
}

func TestManager_ConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	m := NewManager(Config{})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.Open(ctx)
			if err != nil {
				t.Errorf("Open: %v", err)
				return
			}
			for i := 0; i < 100; i++ {
				id := predictor.PlanetID(i % 7)
				m.Predict(ctx, s.ID, id, predictor.Night)
				m.Observe(ctx, s.ID, id, predictor.Outcome(i%3 == 0))
			}
			m.Close(ctx, s.ID)
		}()
	}
	wg.Wait()

	if got := len(m.List()); got != 0 {
		t.Fatalf("expected all sessions closed, got %d", got)
	}
}
