// Package aggregator implements the per-detector windowed aggregators
// (C2): blacklist-IP, blacklist-URL, portscan and host-scan. Each variant
// folds many flow records into one compacted event per aggregation
// window, using the swap-and-emit locking idiom grounded on
// sampler.StratifiedReservoir (snapshot the table under the lock, reset
// it to empty, emit outside the lock).
package aggregator

import "sync"

// Table is the generic keyed accumulator table shared by every aggregator
// variant. Fold runs on the processor goroutine under the table's lock;
// Flush runs on the flusher goroutine, also under the lock just long
// enough to swap in a fresh map.
type Table[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]V
}

// NewTable returns an empty Table.
func NewTable[K comparable, V any]() *Table[K, V] {
	return &Table[K, V]{entries: make(map[K]V)}
}

// Fold looks up key, passing the existing value (and whether it was
// present) to fold, and stores the result back under key.
func (t *Table[K, V]) Fold(key K, fold func(existing V, ok bool) V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.entries[key]
	t.entries[key] = fold(existing, ok)
}

// Flush atomically swaps in a fresh empty map and returns the previous
// contents, or nil if the table was empty.
func (t *Table[K, V]) Flush() map[K]V {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == 0 {
		return nil
	}
	snapshot := t.entries
	t.entries = make(map[K]V)
	return snapshot
}

// Len reports the current entry count, mainly for stats reporting.
func (t *Table[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
