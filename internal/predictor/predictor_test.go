package predictor

import (
	"testing"
)

type step struct {
	id     PlanetID
	actual Outcome
}

func observeAll(p *Predictor, steps []step) {
	for _, s := range steps {
		p.Observe(s.id, s.actual)
	}
}

// #region fallback
func TestPredict_FreshStateReturnsGuess(t *testing.T) {
	p := New()
	for _, id := range []PlanetID{0, 1, 42, ^PlanetID(0)} {
		for _, g := range []Outcome{Day, Night} {
			d := p.Explain(id, g)
			if d.Outcome != g {
				t.Fatalf("planet %d guess %s: expected %s, got %s", id, g, g, d.Outcome)
			}
			if d.Rule != RuleFallback {
				t.Fatalf("expected fallback rule, got %s", d.Rule)
			}
		}
	}
}

// #endregion fallback

// #region day-ceiling
func TestPredict_TwoDaysForceNight(t *testing.T) {
	p := New()
	// Give planet 3 strong day evidence and day patterns before the ceiling kicks in.
	observeAll(p, []step{{1, Night}, {2, Day}, {3, Day}})

	for _, g := range []Outcome{Day, Night} {
		d := p.Explain(3, g)
		if d.Outcome != Night {
			t.Fatalf("guess %s: expected night after two days, got %s", g, d.Outcome)
		}
		if d.Rule != RuleDayCeiling {
			t.Fatalf("expected day_ceiling, got %s", d.Rule)
		}
	}
}

func TestPredict_NightResetsCeiling(t *testing.T) {
	p := New()
	observeAll(p, []step{{1, Day}, {2, Day}, {3, Night}})

	if got := p.Stats().ConsecutiveDays; got != 0 {
		t.Fatalf("expected counter reset, got %d", got)
	}
	if d := p.Explain(99, Day); d.Rule != RuleFallback || d.Outcome != Day {
		t.Fatalf("expected fallback day, got %s via %s", d.Outcome, d.Rule)
	}
}

func TestPredict_SingleDayDoesNotTriggerCeiling(t *testing.T) {
	p := New()
	observeAll(p, []step{{1, Night}, {2, Day}})

	if d := p.Explain(77, Day); d.Rule == RuleDayCeiling {
		t.Fatal("one day must not trigger the ceiling")
	}
}

// #endregion day-ceiling

// #region single-majority
func TestPredict_SingleMajority(t *testing.T) {
	p := New()
	// Planet 5 sees day, day, night; the interleaved nights keep the ceiling off
	// and no pair or triple ever ends at the queried context.
	observeAll(p, []step{{5, Day}, {9, Night}, {5, Day}, {9, Night}, {5, Night}})

	d := p.Explain(5, Night)
	if d.Rule != RuleSingleMajority {
		t.Fatalf("expected single_majority, got %s", d.Rule)
	}
	if d.Outcome != Day {
		t.Fatalf("expected day (2 > 1), got %s", d.Outcome)
	}
	if d.Stats == nil || d.Stats.DayCount != 2 || d.Stats.NightCount != 1 {
		t.Fatalf("unexpected stats %+v", d.Stats)
	}
}

func TestPredict_SingleMajorityTieIsNight(t *testing.T) {
	p := New()
	observeAll(p, []step{{5, Day}, {9, Night}, {5, Night}})

	d := p.Explain(5, Day)
	if d.Rule != RuleSingleMajority || d.Outcome != Night {
		t.Fatalf("expected night on tie, got %s via %s", d.Outcome, d.Rule)
	}
}

// #endregion single-majority

// #region consensus
func consensusHistory() []step {
	return []step{
		{3, Day}, {11, Night},
		{3, Day}, {12, Night},
		{3, Day}, {13, Night},
		{1, Night}, {2, Night}, {3, Night}, // triple (1,2,3) and pair (2,3) -> night
		{1, Night}, {2, Night},
	}
}

func TestPredict_ConsensusShortCircuits(t *testing.T) {
	p := New()
	observeAll(p, consensusHistory())

	d := p.Explain(3, Night)
	if d.Rule != RuleConsensus {
		t.Fatalf("expected consensus, got %s", d.Rule)
	}
	if d.Outcome != Night {
		t.Fatalf("expected night, got %s", d.Outcome)
	}
	if d.Stats != nil {
		t.Fatal("single stats must not be consulted after consensus")
	}

	// Stats alone favour day, so reaching rule 5 would have flipped the answer.
	s, ok := p.mem.singles.peek(3)
	if !ok || s.Majority() != Day {
		t.Fatalf("expected day-majority stats for planet 3, got %+v", s)
	}
}

func TestPredict_TwoWayAgreementFallsThrough(t *testing.T) {
	p := New()
	observeAll(p, consensusHistory())

	d := p.Explain(3, Day)
	if d.Triple == nil || d.Pair == nil {
		t.Fatal("expected triple and pair evidence")
	}
	if d.Rule != RuleSingleMajority {
		t.Fatalf("expected single_majority when guess disagrees, got %s", d.Rule)
	}
	if d.Outcome != Day {
		t.Fatalf("expected day from stats, got %s", d.Outcome)
	}
}

func TestPredict_PairWithoutTripleFallsThrough(t *testing.T) {
	p := New()
	observeAll(p, []step{{1, Night}, {2, Night}})

	d := p.Explain(2, Night)
	if d.Pair != nil {
		t.Fatal("no (2,2) pair expected")
	}
	p2 := New()
	observeAll(p2, []step{{1, Night}, {2, Night}, {1, Night}})
	d = p2.Explain(2, Night)
	if d.Pair == nil || d.Triple != nil {
		t.Fatalf("expected pair-only evidence, got pair=%v triple=%v", d.Pair, d.Triple)
	}
	if d.Rule == RuleConsensus {
		t.Fatal("consensus needs a triple as well")
	}
}

// #endregion consensus

// #region patterns
func TestObserve_PairOverwrite(t *testing.T) {
	p := New()
	observeAll(p, []step{{10, Night}, {20, Night}, {10, Night}, {20, Day}})

	v, ok := p.mem.pairs.peek(pairKey{10, 20})
	if !ok {
		t.Fatal("expected pair (10,20)")
	}
	if v != Day {
		t.Fatalf("expected most recent outcome day, got %s", v)
	}
	if got := p.Stats().Pairs; got != 2 {
		t.Fatalf("expected 2 distinct pairs, got %d", got)
	}
}

func TestObserve_TripleOverwrite(t *testing.T) {
	p := New()
	observeAll(p, []step{{1, Night}, {2, Night}, {3, Day}, {1, Night}, {2, Night}, {3, Night}})

	v, ok := p.mem.triples.peek(tripleKey{1, 2, 3})
	if !ok || v != Night {
		t.Fatalf("expected triple (1,2,3)=night, got %s ok=%v", v, ok)
	}
}

func TestObserve_WindowShift(t *testing.T) {
	p := New()
	const x, y, z, w PlanetID = 100, 200, 300, 400

	p.Observe(x, Night)
	if _, lastOK, _, secondOK := p.Window(); !lastOK || secondOK {
		t.Fatal("expected only the last slot after one visit")
	}
	p.Observe(y, Night)
	p.Observe(z, Night)

	last, lastOK, second, secondOK := p.Window()
	if !lastOK || !secondOK || last != z || second != y {
		t.Fatalf("expected window (y,z), got (%d,%d)", second, last)
	}
	if _, ok := p.mem.triples.peek(tripleKey{x, y, z}); !ok {
		t.Fatal("expected triple (x,y,z) after third visit")
	}

	p.Observe(w, Day)
	if _, ok := p.mem.triples.peek(tripleKey{y, z, w}); !ok {
		t.Fatal("expected triple (y,z,w) after fourth visit")
	}
	if _, ok := p.mem.triples.peek(tripleKey{x, y, w}); ok {
		t.Fatal("stale window: triple (x,y,w) must not exist")
	}
	if _, ok := p.mem.pairs.peek(pairKey{z, w}); !ok {
		t.Fatal("expected pair (z,w)")
	}
}

func TestObserve_ZeroIDIsARealPlanet(t *testing.T) {
	p := New()
	observeAll(p, []step{{0, Night}, {0, Night}})

	if _, ok := p.mem.pairs.peek(pairKey{0, 0}); !ok {
		t.Fatal("planet 0 must populate the window like any other id")
	}
}

func TestObserve_StatsSaturate(t *testing.T) {
	s := TimeStats{DayCount: ^uint32(0)}
	s.record(Day)
	if s.DayCount != ^uint32(0) {
		t.Fatalf("expected saturation, got %d", s.DayCount)
	}
}

// #endregion patterns

// #region determinism
func TestPredict_Deterministic(t *testing.T) {
	seq := consensusHistory()
	a, b := New(), New()
	observeAll(a, seq)
	observeAll(b, seq)

	for id := PlanetID(0); id < 20; id++ {
		for _, g := range []Outcome{Day, Night} {
			if a.Predict(id, g) != b.Predict(id, g) {
				t.Fatalf("planet %d guess %s: predictions differ", id, g)
			}
		}
	}
}

func TestPredict_DoesNotMutate(t *testing.T) {
	p := New()
	observeAll(p, consensusHistory())
	before := p.Stats()
	last, _, second, _ := p.Window()

	for i := 0; i < 5; i++ {
		p.Predict(PlanetID(i), Day)
	}

	if p.Stats() != before {
		t.Fatalf("stats changed: %+v -> %+v", before, p.Stats())
	}
	l2, _, s2, _ := p.Window()
	if l2 != last || s2 != second {
		t.Fatal("window changed during predict")
	}
}

// #endregion determinism
