// Package session runs many independent predictors side by side. Each session
// owns its own predictor; nothing is shared between sessions.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/robo-predictor/internal/journal"
	"github.com/danielpatrickdp/robo-predictor/internal/logging"
	"github.com/danielpatrickdp/robo-predictor/internal/metrics"
	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// ErrSessionNotFound is returned for unknown or closed session ids.
var ErrSessionNotFound = journal.ErrSessionNotFound

// #region types
// Session describes an open session.
type Session struct {
	ID        string
	Capacity  predictor.Capacity
	CreatedAt time.Time
}

// Config applies to every session the manager opens.
type Config struct {
	Capacity predictor.Capacity
}

type pending struct {
	planet   predictor.PlanetID
	guess    predictor.Outcome
	decision predictor.Decision
}

type entry struct {
	mu      sync.Mutex
	info    Session
	p       *predictor.Predictor
	pending *pending
	steps   int
}

// #endregion types

// #region manager
// Manager owns the open sessions.
type Manager struct {
	cfg     Config
	store   *journal.Store
	log     *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithJournal records sessions and steps in store.
func WithJournal(store *journal.Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// NewManager creates a manager with no open sessions.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		log:      logging.Nop(),
		metrics:  metrics.Nop{},
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// #endregion manager

// #region lifecycle
// Open starts a session with a fresh predictor.
func (m *Manager) Open(ctx context.Context) (Session, error) {
	info := Session{
		ID:        uuid.New().String(),
		Capacity:  m.cfg.Capacity,
		CreatedAt: m.now(),
	}

	if m.store != nil {
		err := m.store.CreateSession(ctx, journal.SessionRecord{
			SessionID: info.ID,
			Capacity:  info.Capacity,
			CreatedAt: info.CreatedAt,
		})
		if err != nil {
			return Session{}, fmt.Errorf("open session: %w", err)
		}
	}

	e := &entry{
		info: info,
		p: predictor.New(
			predictor.WithCapacity(info.Capacity),
			predictor.WithEvictionHook(m.metrics.Eviction),
		),
	}

	m.mu.Lock()
	m.sessions[info.ID] = e
	m.mu.Unlock()

	m.metrics.SessionOpened()
	m.log.Info("session opened", "session_id", info.ID)
	return info, nil
}

// Close ends a session and discards its predictor.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("close %s: %w", id, ErrSessionNotFound)
	}

	e.mu.Lock()
	steps := e.steps
	e.mu.Unlock()

	m.metrics.SessionClosed()
	m.log.Info("session closed", "session_id", id, "steps", steps)

	if m.store != nil {
		if err := m.store.CloseSession(ctx, id, m.now()); err != nil {
			return fmt.Errorf("close session: %w", err)
		}
	}
	return nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Session{}, err
	}
	return e.info, nil
}

// List returns open sessions, oldest first.
func (m *Manager) List() []Session {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		out = append(out, e.info)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Stats reports the predictor table sizes of an open session.
func (m *Manager) Stats(id string) (predictor.Stats, error) {
	e, err := m.lookup(id)
	if err != nil {
		return predictor.Stats{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p.Stats(), nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return e, nil
}

// #endregion lifecycle

// #region steps
// Predict asks the session's predictor about planet and remembers the answer
// until the matching Observe.
func (m *Manager) Predict(_ context.Context, id string, planet predictor.PlanetID, guess predictor.Outcome) (predictor.Decision, error) {
	e, err := m.lookup(id)
	if err != nil {
		return predictor.Decision{}, err
	}

	e.mu.Lock()
	d := e.p.Explain(planet, guess)
	e.pending = &pending{planet: planet, guess: guess, decision: d}
	e.mu.Unlock()

	m.metrics.Prediction(d.Rule)
	m.log.Debug("predict",
		"session_id", id, "planet", uint64(planet), "guess", guess.String(),
		"predicted", d.Outcome.String(), "rule", string(d.Rule))
	return d, nil
}

// Observe feeds the true outcome to the session's predictor. If the pending
// prediction was for a different planet, the step is recorded without one.
// Errors only report an unknown session.
func (m *Manager) Observe(ctx context.Context, id string, planet predictor.PlanetID, actual predictor.Outcome) (journal.StepRecord, error) {
	e, err := m.lookup(id)
	if err != nil {
		return journal.StepRecord{}, err
	}

	e.mu.Lock()
	rec := journal.StepRecord{
		SessionID: id,
		Index:     e.steps,
		PlanetID:  planet,
		Actual:    actual,
		CreatedAt: m.now(),
	}
	if pd := e.pending; pd != nil && pd.planet == planet {
		predicted := pd.decision.Outcome
		rec.Predicted = &predicted
		rec.Rule = pd.decision.Rule
		rec.ExternalGuess = pd.guess
	} else if pd != nil {
		m.log.Warn("observe does not match pending prediction",
			"session_id", id, "pending_planet", uint64(pd.planet), "planet", uint64(planet))
	}
	e.pending = nil
	e.p.Observe(planet, actual)
	e.steps++
	e.mu.Unlock()

	var hit *bool
	if rec.Predicted != nil {
		h := rec.Hit()
		hit = &h
	}
	m.metrics.Observation(actual, hit)

	// The step is already applied; journal failures are logged, not returned.
	if m.store != nil {
		if err := m.store.LogStep(ctx, rec); err != nil {
			m.log.Error("journal step failed",
				"session_id", id, "step", rec.Index, "error", err)
		}
	}
	return rec, nil
}

// #endregion steps
