package predictor

import (
	"unsafe"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// #region ceiling
// MaxMemoryBytes is the hard ceiling on the declared size of Memory.
const MaxMemoryBytes = 64 << 10

// Fails to compile when Memory grows past MaxMemoryBytes: the array length
// becomes a negative constant.
var _ [MaxMemoryBytes - unsafe.Sizeof(Memory{})]struct{}

// #endregion ceiling

// #region memory
// Memory is the complete predictive state. Nothing else is retained between steps.
type Memory struct {
	singles table[PlanetID, TimeStats]
	pairs   table[pairKey, Outcome]
	triples table[tripleKey, Outcome]

	last         optionalID
	secondToLast optionalID

	consecutiveDays int
}

func newMemory(capacity Capacity, onEvict func(Table)) Memory {
	return Memory{
		singles: newTable[PlanetID, TimeStats](capacity.Singles, TableSingles, onEvict),
		pairs:   newTable[pairKey, Outcome](capacity.Pairs, TablePairs, onEvict),
		triples: newTable[tripleKey, Outcome](capacity.Triples, TableTriples, onEvict),
	}
}

// #endregion memory

// #region tables
// table is a key/value memory. peek never changes eviction order; put inserts
// or overwrites and refreshes recency.
type table[K comparable, V any] interface {
	peek(key K) (V, bool)
	put(key K, value V)
	len() int
}

// newTable returns an unbounded map when capacity <= 0, otherwise an LRU bounded
// to capacity entries.
func newTable[K comparable, V any](capacity int, name Table, onEvict func(Table)) table[K, V] {
	if capacity <= 0 {
		return mapTable[K, V]{}
	}
	var cb simplelru.EvictCallback[K, V]
	if onEvict != nil {
		cb = func(K, V) { onEvict(name) }
	}
	l, err := simplelru.NewLRU[K, V](capacity, cb)
	if err != nil {
		// NewLRU only fails on a non-positive size, excluded above.
		panic(err)
	}
	return lruTable[K, V]{lru: l}
}

type mapTable[K comparable, V any] map[K]V

func (m mapTable[K, V]) peek(key K) (V, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapTable[K, V]) put(key K, value V) { m[key] = value }

func (m mapTable[K, V]) len() int { return len(m) }

type lruTable[K comparable, V any] struct {
	lru *simplelru.LRU[K, V]
}

func (t lruTable[K, V]) peek(key K) (V, bool) { return t.lru.Peek(key) }

func (t lruTable[K, V]) put(key K, value V) { t.lru.Add(key, value) }

func (t lruTable[K, V]) len() int { return t.lru.Len() }

// #endregion tables
