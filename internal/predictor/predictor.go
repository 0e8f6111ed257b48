// Package predictor implements the day/night predictor: a fixed-layout memory of
// single, pair and triple planet patterns, a two-slot recency window and a
// consecutive-day counter, driven by a Predict/Observe loop.
package predictor

// #region predictor
// Predictor owns one session's Memory. It is not safe for concurrent use.
type Predictor struct {
	mem       Memory
	capacity  Capacity
	evictions Evictions
	onEvict   func(Table)
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithCapacity bounds the tables with LRU eviction.
func WithCapacity(c Capacity) Option {
	return func(p *Predictor) { p.capacity = c }
}

// WithEvictionHook registers fn to run after each eviction.
func WithEvictionHook(fn func(Table)) Option {
	return func(p *Predictor) { p.onEvict = fn }
}

// New creates an empty predictor: empty tables, no window, zero counter.
func New(opts ...Option) *Predictor {
	p := &Predictor{}
	for _, opt := range opts {
		opt(p)
	}
	p.mem = newMemory(p.capacity, p.recordEviction)
	return p
}

func (p *Predictor) recordEviction(t Table) {
	switch t {
	case TableSingles:
		p.evictions.Singles++
	case TablePairs:
		p.evictions.Pairs++
	case TableTriples:
		p.evictions.Triples++
	}
	if p.onEvict != nil {
		p.onEvict(t)
	}
}

// Capacity returns the configured table bounds.
func (p *Predictor) Capacity() Capacity {
	return p.capacity
}

// #endregion predictor

// #region predict
// Predict returns the expected outcome on next. It does not modify state.
func (p *Predictor) Predict(next PlanetID, externalGuess Outcome) Outcome {
	return p.Explain(next, externalGuess).Outcome
}

// Explain runs the prediction chain and reports which rule decided.
// First applicable rule wins:
//  1. two or more consecutive days -> night
//  2-4. triple, pair and external guess all agree -> that value
//  5. planet seen before -> majority of its outcomes, ties are night
//  6. otherwise -> external guess
func (p *Predictor) Explain(next PlanetID, externalGuess Outcome) Decision {
	m := &p.mem

	if m.consecutiveDays >= 2 {
		return Decision{Outcome: Night, Rule: RuleDayCeiling}
	}

	var d Decision
	if m.secondToLast.ok && m.last.ok {
		if v, ok := m.triples.peek(tripleKey{m.secondToLast.id, m.last.id, next}); ok {
			d.Triple = &v
		}
	}
	if m.last.ok {
		if v, ok := m.pairs.peek(pairKey{m.last.id, next}); ok {
			d.Pair = &v
		}
	}

	// Triple and pair agreeing with each other is not enough; the guess must match too.
	if d.Triple != nil && d.Pair != nil && *d.Triple == *d.Pair && *d.Pair == externalGuess {
		d.Outcome, d.Rule = externalGuess, RuleConsensus
		return d
	}

	if s, ok := m.singles.peek(next); ok {
		d.Stats = &s
		d.Outcome, d.Rule = s.Majority(), RuleSingleMajority
		return d
	}

	d.Outcome, d.Rule = externalGuess, RuleFallback
	return d
}

// #endregion predict

// #region observe
// Observe records the true outcome on next. Callers pass the same planet that
// was last given to Predict; this is not checked.
func (p *Predictor) Observe(next PlanetID, actual Outcome) {
	m := &p.mem

	if actual == Day {
		m.consecutiveDays++
	} else {
		m.consecutiveDays = 0
	}

	// Pattern keys use the window as it was before this visit.
	if m.secondToLast.ok && m.last.ok {
		m.triples.put(tripleKey{m.secondToLast.id, m.last.id, next}, actual)
	}
	if m.last.ok {
		m.pairs.put(pairKey{m.last.id, next}, actual)
	}

	m.secondToLast = m.last
	m.last = someID(next)

	s, _ := m.singles.peek(next)
	s.record(actual)
	m.singles.put(next, s)
}

// #endregion observe

// #region stats
// Stats reports table sizes and eviction counts.
func (p *Predictor) Stats() Stats {
	return Stats{
		Singles:         p.mem.singles.len(),
		Pairs:           p.mem.pairs.len(),
		Triples:         p.mem.triples.len(),
		ConsecutiveDays: p.mem.consecutiveDays,
		Evictions:       p.evictions,
	}
}

// Window returns the last and second-to-last visited planets; ok flags are
// false until enough planets have been observed.
func (p *Predictor) Window() (last PlanetID, lastOK bool, secondToLast PlanetID, secondOK bool) {
	return p.mem.last.id, p.mem.last.ok, p.mem.secondToLast.id, p.mem.secondToLast.ok
}

// #endregion stats
