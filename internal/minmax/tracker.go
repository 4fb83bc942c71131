// Package minmax tracks the minimum and maximum of a FIFO window in amortized
// constant time per element, and computes sliding window extrema over whole
// sequences.
package minmax

import (
	"cmp"
	"errors"
)

var (
	ErrEmptyWindow   = errors.New("minmax: window is empty")
	ErrInvalidWindow = errors.New("minmax: window size must be positive")
	ErrInvalidMode   = errors.New("minmax: unknown mode")
)

// Tracker exposes the minimum and maximum of a logical window that grows at
// the tail and shrinks at the head. It does not store the window itself:
// callers must pass every removed value to RemoveHead in exactly the order it
// was given to AddTail, otherwise later queries return wrong answers.
//
// A Tracker is not safe for concurrent use.
type Tracker[E comparable] struct {
	min  monoQueue[E]
	max  monoQueue[E]
	size int
}

// Stats counts internal queue operations summed over both queues.
type Stats struct {
	Pushes int
	Pops   int
}

// NewTracker returns an empty tracker ordered by the < operator.
func NewTracker[E cmp.Ordered]() *Tracker[E] {
	return NewTrackerFunc(func(a, b E) bool { return a < b })
}

// NewTrackerFunc returns an empty tracker ordered by less, which must be a
// strict total order consistent with == on E.
func NewTrackerFunc[E comparable](less func(a, b E) bool) *Tracker[E] {
	t := &Tracker[E]{}
	// Equal values are all kept so that each RemoveHead of a duplicate
	// retires exactly one copy.
	t.min.keep = func(older, newer E) bool { return !less(newer, older) }
	t.max.keep = func(older, newer E) bool { return !less(older, newer) }
	return t
}

func (t *Tracker[E]) AddTail(v E) {
	t.min.push(v)
	t.max.push(v)
	t.size++
}

// RemoveHead retires v, which must be the oldest value still in the window.
func (t *Tracker[E]) RemoveHead(v E) {
	if t.size == 0 {
		return
	}
	t.min.evict(v)
	t.max.evict(v)
	t.size--
}

func (t *Tracker[E]) Minimum() (E, error) {
	return t.extremum(&t.min)
}

func (t *Tracker[E]) Maximum() (E, error) {
	return t.extremum(&t.max)
}

func (t *Tracker[E]) extremum(q *monoQueue[E]) (E, error) {
	if t.size == 0 {
		var zero E
		return zero, ErrEmptyWindow
	}
	v, ok := q.front()
	if !ok {
		return v, ErrEmptyWindow
	}
	return v, nil
}

// Len returns the number of values currently in the logical window.
func (t *Tracker[E]) Len() int {
	return t.size
}

func (t *Tracker[E]) Stats() Stats {
	return Stats{
		Pushes: t.min.pushes + t.max.pushes,
		Pops:   t.min.pops + t.max.pops,
	}
}

func (t *Tracker[E]) Reset() {
	t.min.reset()
	t.max.reset()
	t.size = 0
}
