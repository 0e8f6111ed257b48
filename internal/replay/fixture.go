package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/robo-predictor/internal/eval"
	"github.com/danielpatrickdp/robo-predictor/internal/journal"
	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string            `json:"description"`
	Config      FixtureConfig     `json:"config"`
	Steps       []FixtureStep     `json:"steps"`
	Expected    []FixtureExpected `json:"expected,omitempty"`
}

// FixtureConfig bundles predictor and eval settings.
type FixtureConfig struct {
	Capacity predictor.Capacity `json:"capacity"`
	Eval     *eval.EvalConfig   `json:"eval,omitempty"`
}

// FixtureStep mirrors Step with JSON tags. Outcomes are "day" or "night".
type FixtureStep struct {
	PlanetID      uint64            `json:"planet_id"`
	ExternalGuess predictor.Outcome `json:"external_guess"`
	Actual        predictor.Outcome `json:"actual"`
	ObservedOnly  bool              `json:"observed_only,omitempty"`
}

// FixtureExpected is the prediction expected at one step.
type FixtureExpected struct {
	Index     int               `json:"index"`
	Predicted predictor.Outcome `json:"predicted"`
	Rule      predictor.Rule    `json:"rule,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for _, e := range f.Expected {
		if e.Index < 0 || e.Index >= len(f.Steps) {
			return nil, fmt.Errorf("fixture %s: expected index %d out of range", path, e.Index)
		}
		if f.Steps[e.Index].ObservedOnly {
			return nil, fmt.Errorf("fixture %s: expected index %d is observed-only", path, e.Index)
		}
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToSteps converts fixture steps to domain steps.
func (f *Fixture) ToSteps() []Step {
	steps := make([]Step, len(f.Steps))
	for i, s := range f.Steps {
		steps[i] = Step{
			PlanetID:      predictor.PlanetID(s.PlanetID),
			ExternalGuess: s.ExternalGuess,
			Actual:        s.Actual,
			ObservedOnly:  s.ObservedOnly,
		}
	}
	return steps
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
// A missing eval block keeps the default thresholds.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	cfg.Capacity = fc.Capacity
	if fc.Eval != nil {
		cfg.EvalConfig = *fc.Eval
	}
	return cfg
}

// #endregion fixture-loader

// #region journal

// FromJournal converts journaled steps to replay steps. Steps journaled
// without a prediction become observed-only.
func FromJournal(records []journal.StepRecord) []Step {
	steps := make([]Step, len(records))
	for i, r := range records {
		steps[i] = Step{
			PlanetID:      r.PlanetID,
			ExternalGuess: r.ExternalGuess,
			Actual:        r.Actual,
			ObservedOnly:  r.Predicted == nil,
		}
	}
	return steps
}

// ExportFixture builds a fixture from a journaled session. Steps that carried a
// prediction become expectations.
func ExportFixture(description string, capacity predictor.Capacity, records []journal.StepRecord) *Fixture {
	f := &Fixture{
		Description: description,
		Config:      FixtureConfig{Capacity: capacity},
		Steps:       make([]FixtureStep, len(records)),
	}
	for i, r := range records {
		f.Steps[i] = FixtureStep{
			PlanetID:      uint64(r.PlanetID),
			ExternalGuess: r.ExternalGuess,
			Actual:        r.Actual,
			ObservedOnly:  r.Predicted == nil,
		}
		if r.Predicted != nil {
			f.Expected = append(f.Expected, FixtureExpected{
				Index:     i,
				Predicted: *r.Predicted,
				Rule:      r.Rule,
			})
		}
	}
	return f
}

// #endregion journal
