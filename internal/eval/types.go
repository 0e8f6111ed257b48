package eval

import "github.com/danielpatrickdp/robo-predictor/internal/predictor"

// #region eval-config
// EvalConfig holds pass thresholds for a scored run.
type EvalConfig struct {
	MinAccuracy float64 `json:"min_accuracy"` // fraction of predictions that matched
	MinLift     float64 `json:"min_lift"`     // accuracy minus oracle accuracy
}

// DefaultEvalConfig requires the predictor to be right at least half the time
// and never worse than the oracle it was fed.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinAccuracy: 0.5,
		MinLift:     0.0,
	}
}

// #endregion eval-config

// #region tally
// RuleTally counts predictions made by one rule.
type RuleTally struct {
	Steps int
	Hits  int
}

// Tally is the raw score of a run. Total counts predicted steps only.
type Tally struct {
	Total      int
	Hits       int
	OracleHits int
	ByRule     map[predictor.Rule]RuleTally
}

// Accuracy is Hits/Total, zero for an empty run.
func (t Tally) Accuracy() float64 {
	return ratio(t.Hits, t.Total)
}

// OracleAccuracy is OracleHits/Total, zero for an empty run.
func (t Tally) OracleAccuracy() float64 {
	return ratio(t.OracleHits, t.Total)
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// #endregion tally

// #region eval-metric
// EvalMetric captures a single check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of scoring a run.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
