// Package freq provides an insertion-ordered frequency counter.
package freq

import "sort"

// Entry is a key together with the number of times it was added.
type Entry[K comparable] struct {
	Key   K
	Count int
}

// Counter counts keys and remembers the order in which each key was first seen.
// The zero value is not usable; call New.
type Counter[K comparable] struct {
	index   map[K]int
	entries []Entry[K]
}

// New creates an empty counter.
func New[K comparable]() *Counter[K] {
	return &Counter[K]{index: make(map[K]int)}
}

// Add increments the count of key by one.
func (c *Counter[K]) Add(key K) {
	if i, ok := c.index[key]; ok {
		c.entries[i].Count++
		return
	}
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, Entry[K]{Key: key, Count: 1})
}

// Len returns the number of distinct keys.
func (c *Counter[K]) Len() int {
	return len(c.entries)
}

// Count returns how many times key was added.
func (c *Counter[K]) Count(key K) int {
	if i, ok := c.index[key]; ok {
		return c.entries[i].Count
	}
	return 0
}

// MostCommon returns up to n entries ordered by descending count. Keys with equal
// counts keep their first-seen order. A negative n returns every entry.
func (c *Counter[K]) MostCommon(n int) []Entry[K] {
	out := make([]Entry[K], len(c.entries))
	copy(out, c.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
