package predictor

import (
	"fmt"
	"math"
	"strings"
)

// #region identifiers
// PlanetID names a planet. Only equality is meaningful.
type PlanetID uint64

// Outcome is the time of day observed on a planet.
type Outcome bool

const (
	Day   Outcome = true
	Night Outcome = false
)

func (o Outcome) String() string {
	if o {
		return "day"
	}
	return "night"
}

// ParseOutcome accepts day/night, true/false and 1/0 (case-insensitive).
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "d", "true", "1":
		return Day, nil
	case "night", "n", "false", "0":
		return Night, nil
	}
	return Night, fmt.Errorf("invalid outcome %q", s)
}

// MarshalText renders day or night.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText accepts anything ParseOutcome does.
func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// #endregion identifiers

// #region keys
// optionalID is a recency slot. ok is false until a planet has been visited,
// so every PlanetID value, zero included, stays usable.
type optionalID struct {
	id PlanetID
	ok bool
}

func someID(id PlanetID) optionalID { return optionalID{id: id, ok: true} }

// pairKey is the transition prev -> next.
type pairKey struct {
	prev PlanetID
	next PlanetID
}

// tripleKey is the transition secondToLast -> last -> next.
type tripleKey struct {
	secondToLast PlanetID
	last         PlanetID
	next         PlanetID
}

// #endregion keys

// #region time-stats
// TimeStats tallies the outcomes seen on one planet. Counts only grow.
type TimeStats struct {
	DayCount   uint32
	NightCount uint32
}

func (s *TimeStats) record(o Outcome) {
	if o {
		s.DayCount = saturatingInc(s.DayCount)
	} else {
		s.NightCount = saturatingInc(s.NightCount)
	}
}

// Majority is Day only when days strictly outnumber nights.
func (s TimeStats) Majority() Outcome {
	return Outcome(s.DayCount > s.NightCount)
}

func saturatingInc(n uint32) uint32 {
	if n == math.MaxUint32 {
		return n
	}
	return n + 1
}

// #endregion time-stats

// #region decision
// Rule names the step of the prediction chain that produced an outcome.
type Rule string

const (
	RuleDayCeiling     Rule = "day_ceiling"
	RuleConsensus      Rule = "consensus"
	RuleSingleMajority Rule = "single_majority"
	RuleFallback       Rule = "fallback"
)

// Rules lists every rule in evaluation order.
var Rules = []Rule{RuleDayCeiling, RuleConsensus, RuleSingleMajority, RuleFallback}

// Decision is a prediction together with the evidence that was consulted.
// Triple, Pair and Stats are nil when the lookup found nothing or was not reached.
type Decision struct {
	Outcome Outcome
	Rule    Rule
	Triple  *Outcome
	Pair    *Outcome
	Stats   *TimeStats
}

// #endregion decision

// #region stats
// Table identifies one of the three associative memories.
type Table string

const (
	TableSingles Table = "singles"
	TablePairs   Table = "pairs"
	TableTriples Table = "triples"
)

// Evictions counts entries dropped by the capacity policy, per table.
type Evictions struct {
	Singles uint64
	Pairs   uint64
	Triples uint64
}

// Total sums evictions across all tables.
func (e Evictions) Total() uint64 {
	return e.Singles + e.Pairs + e.Triples
}

// Stats is a read-only view of the predictor's resident sizes.
type Stats struct {
	Singles         int
	Pairs           int
	Triples         int
	ConsecutiveDays int
	Evictions       Evictions
}

// #endregion stats
