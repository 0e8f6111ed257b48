package journal

import (
	"time"

	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// #region session-record
// SessionRecord is one predictor session as seen by the journal.
type SessionRecord struct {
	SessionID string
	Capacity  predictor.Capacity
	CreatedAt time.Time
	ClosedAt  *time.Time
}

// #endregion session-record

// #region step-record
// StepRecord is one predict/observe step. Predicted and Rule are empty when the
// caller observed without asking for a prediction first; ExternalGuess is then
// meaningless and is journaled as NULL.
type StepRecord struct {
	SessionID     string
	Index         int
	PlanetID      predictor.PlanetID
	ExternalGuess predictor.Outcome
	Predicted     *predictor.Outcome
	Rule          predictor.Rule
	Actual        predictor.Outcome
	CreatedAt     time.Time
}

// Hit reports whether the step had a prediction that matched the outcome.
func (s StepRecord) Hit() bool {
	return s.Predicted != nil && *s.Predicted == s.Actual
}

// #endregion step-record

// #region session-summary
// SessionSummary aggregates a session's steps.
type SessionSummary struct {
	SessionRecord
	Steps      int
	Predicted  int
	Hits       int
	OracleHits int
}

// #endregion session-summary
