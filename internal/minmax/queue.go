package minmax

import "github.com/gammazero/deque"

// monoQueue holds the candidates for one extremum in arrival order. keep
// reports whether an older candidate survives the arrival of a newer one;
// the front is always the extremum of the logical window.
type monoQueue[E comparable] struct {
	items  deque.Deque[E]
	keep   func(older, newer E) bool
	pushes int
	pops   int
}

func (q *monoQueue[E]) push(v E) {
	for q.items.Len() > 0 && !q.keep(q.items.Back(), v) {
		q.items.PopBack()
		q.pops++
	}
	q.items.PushBack(v)
	q.pushes++
}

// evict drops the front only if it is the departing head. A mismatch means
// the head was already dominated and purged on some earlier push.
func (q *monoQueue[E]) evict(v E) {
	if q.items.Len() > 0 && q.items.Front() == v {
		q.items.PopFront()
		q.pops++
	}
}

func (q *monoQueue[E]) front() (E, bool) {
	if q.items.Len() == 0 {
		var zero E
		return zero, false
	}
	return q.items.Front(), true
}

func (q *monoQueue[E]) len() int {
	return q.items.Len()
}

func (q *monoQueue[E]) reset() {
	q.items.Clear()
	q.pushes = 0
	q.pops = 0
}
