package eval

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// #region eval-harness
// EvalHarness scores a run against configured thresholds.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks accuracy and lift over the oracle. Per-rule accuracies are
// reported but never fail the run.
func (h *EvalHarness) Run(t Tally) EvalResult {
	if t.Total == 0 {
		return EvalResult{Passed: true, Reason: "no steps"}
	}

	var metrics []EvalMetric
	passed := true
	var failReasons []string

	// 1. Accuracy
	acc := t.Accuracy()
	accPass := acc >= h.config.MinAccuracy
	metrics = append(metrics, EvalMetric{Name: "accuracy", Value: acc, Pass: accPass})
	if !accPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("accuracy %.4f below %.4f", acc, h.config.MinAccuracy))
	}

	// 2. Oracle baseline, informational
	oracleAcc := t.OracleAccuracy()
	metrics = append(metrics, EvalMetric{Name: "oracle_accuracy", Value: oracleAcc, Pass: true})

	// 3. Lift over the oracle
	lift := acc - oracleAcc
	liftPass := lift >= h.config.MinLift
	metrics = append(metrics, EvalMetric{Name: "lift", Value: lift, Pass: liftPass})
	if !liftPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("lift %.4f below %.4f", lift, h.config.MinLift))
	}

	// 4. Per-rule accuracy, in chain order
	for _, r := range predictor.Rules {
		rt, ok := t.ByRule[r]
		if !ok || rt.Steps == 0 {
			continue
		}
		metrics = append(metrics, EvalMetric{
			Name:  "rule_accuracy." + string(r),
			Value: ratio(rt.Hits, rt.Steps),
			Pass:  true,
		})
	}

	reason := fmt.Sprintf("passed: accuracy=%.4f lift=%.4f", acc, lift)
	if !passed {
		reason = strings.Join(failReasons, "; ")
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region metric-lookup
// Metric returns the named metric from a result.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion metric-lookup
