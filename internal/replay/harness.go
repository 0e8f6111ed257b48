package replay

import (
	"github.com/danielpatrickdp/robo-predictor/internal/eval"
	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// #region types
// Step is one recorded visit: the oracle's guess and what was actually seen.
// ObservedOnly marks a visit that was observed without a prediction; its
// ExternalGuess is ignored.
type Step struct {
	PlanetID      predictor.PlanetID
	ExternalGuess predictor.Outcome
	Actual        predictor.Outcome
	ObservedOnly  bool
}

// ReplayConfig holds the predictor and eval settings for a run.
type ReplayConfig struct {
	Capacity   predictor.Capacity
	EvalConfig eval.EvalConfig
}

// DefaultReplayConfig uses unbounded tables and default eval thresholds.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		EvalConfig: eval.DefaultEvalConfig(),
	}
}

// StepResult captures one predict-then-observe step. Scored is false for
// observed-only steps, which carry no Decision.
type StepResult struct {
	Index     int
	Step      Step
	Decision  predictor.Decision
	Scored    bool
	Hit       bool
	OracleHit bool
}

// ReplaySummary aggregates a run. Steps counts every replayed step; the Tally
// only the scored ones.
type ReplaySummary struct {
	eval.Tally
	Steps      int
	FinalStats predictor.Stats
}

// #endregion types

// #region replay
// Replay runs every step through a fresh predictor: predict with the recorded
// guess, then observe the recorded outcome. Observed-only steps skip the
// prediction. Runs are deterministic.
func Replay(steps []Step, config ReplayConfig) ([]StepResult, predictor.Stats) {
	p := predictor.New(predictor.WithCapacity(config.Capacity))
	results := make([]StepResult, 0, len(steps))

	for i, s := range steps {
		if s.ObservedOnly {
			p.Observe(s.PlanetID, s.Actual)
			results = append(results, StepResult{Index: i, Step: s})
			continue
		}

		d := p.Explain(s.PlanetID, s.ExternalGuess)
		p.Observe(s.PlanetID, s.Actual)

		results = append(results, StepResult{
			Index:     i,
			Step:      s,
			Decision:  d,
			Scored:    true,
			Hit:       d.Outcome == s.Actual,
			OracleHit: s.ExternalGuess == s.Actual,
		})
	}

	return results, p.Stats()
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []StepResult, final predictor.Stats) ReplaySummary {
	s := ReplaySummary{
		Tally: eval.Tally{
			ByRule: make(map[predictor.Rule]eval.RuleTally),
		},
		Steps:      len(results),
		FinalStats: final,
	}
	for _, r := range results {
		if !r.Scored {
			continue
		}
		s.Total++
		rt := s.ByRule[r.Decision.Rule]
		rt.Steps++
		if r.Hit {
			s.Hits++
			rt.Hits++
		}
		if r.OracleHit {
			s.OracleHits++
		}
		s.ByRule[r.Decision.Rule] = rt
	}
	return s
}

// #endregion replay
