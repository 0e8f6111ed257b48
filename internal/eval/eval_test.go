package eval

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

func makeTally(total, hits, oracleHits int) Tally {
	return Tally{
		Total:      total,
		Hits:       hits,
		OracleHits: oracleHits,
		ByRule: map[predictor.Rule]RuleTally{
			predictor.RuleFallback: {Steps: total, Hits: hits},
		},
	}
}

func TestEvalPassesOnEmptyRun(t *testing.T) {
	result := NewEvalHarness(DefaultEvalConfig()).Run(Tally{})
	if !result.Passed {
		t.Fatalf("expected pass on empty run, got fail: %s", result.Reason)
	}
}

func TestEvalPassesAboveThresholds(t *testing.T) {
	result := NewEvalHarness(DefaultEvalConfig()).Run(makeTally(10, 8, 6))

	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	lift, ok := result.Metric("lift")
	if !ok {
		t.Fatal("expected lift metric")
	}
	if math.Abs(lift.Value-0.2) > 1e-9 {
		t.Errorf("expected lift 0.2, got %v", lift.Value)
	}
	if _, ok := result.Metric("rule_accuracy.fallback"); !ok {
		t.Error("expected per-rule metric for fallback")
	}
	if _, ok := result.Metric("rule_accuracy.consensus"); ok {
		t.Error("rules with no steps must not be reported")
	}
}

func TestEvalFailsOnLowAccuracy(t *testing.T) {
	config := DefaultEvalConfig()
	config.MinAccuracy = 0.9
	result := NewEvalHarness(config).Run(makeTally(10, 8, 6))

	if result.Passed {
		t.Fatal("expected fail on low accuracy")
	}
	acc, _ := result.Metric("accuracy")
	if acc.Pass {
		t.Error("accuracy metric should be marked failing")
	}
}

func TestEvalFailsOnNegativeLift(t *testing.T) {
	result := NewEvalHarness(DefaultEvalConfig()).Run(makeTally(10, 6, 7))

	if result.Passed {
		t.Fatal("expected fail when the oracle beats the predictor")
	}
	lift, _ := result.Metric("lift")
	if lift.Pass {
		t.Error("lift metric should be marked failing")
	}
}

func TestTallyAccuracyEmpty(t *testing.T) {
	var tl Tally
	if tl.Accuracy() != 0 || tl.OracleAccuracy() != 0 {
		t.Fatal("empty tally must report zero accuracy")
	}
}
