package predictor

import "unsafe"

// #region capacity
// Capacity bounds each table. A zero field leaves that table unbounded.
type Capacity struct {
	Singles int `json:"singles" mapstructure:"singles"`
	Pairs   int `json:"pairs" mapstructure:"pairs"`
	Triples int `json:"triples" mapstructure:"triples"`
}

// Unbounded reports whether no table has a limit.
func (c Capacity) Unbounded() bool {
	return c.Singles <= 0 && c.Pairs <= 0 && c.Triples <= 0
}

// Approximate resident cost of one bounded entry: LRU list element, map slot and
// the key/value payload.
const (
	singleEntryBytes = 96
	pairEntryBytes   = 112
	tripleEntryBytes = 136
)

// BudgetCapacity splits a byte budget across the three tables so that their
// estimated resident size, plus the fixed Memory layout, stays within budget.
// Singles get a quarter of the room, pairs and triples three eighths each.
func BudgetCapacity(budget int) Capacity {
	room := budget - int(unsafe.Sizeof(Memory{}))
	if room <= 0 {
		return Capacity{Singles: 1, Pairs: 1, Triples: 1}
	}
	return Capacity{
		Singles: max(1, room/4/singleEntryBytes),
		Pairs:   max(1, room*3/8/pairEntryBytes),
		Triples: max(1, room*3/8/tripleEntryBytes),
	}
}

// EstimatedBytes is the estimated resident size of a predictor with the given
// number of entries per table.
func EstimatedBytes(s Stats) int {
	return int(unsafe.Sizeof(Memory{})) +
		s.Singles*singleEntryBytes +
		s.Pairs*pairEntryBytes +
		s.Triples*tripleEntryBytes
}

// #endregion capacity
