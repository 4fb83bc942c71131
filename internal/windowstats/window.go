package windowstats

import (
	"math"

	"github.com/vitaly-z/Nayuki-web-published-code/internal/minmax"
)

// WindowStats keeps a fixed-size window of values and provides mean, std dev
// and the window's minimum and maximum.
type WindowStats struct {
	capacity   int
	values     []float64
	position   int
	samples    int
	sum        float64
	sumSquares float64
	extrema    *minmax.Tracker[float64]
}

func NewWindowStats(capacity int) *WindowStats {
	if capacity <= 0 {
		capacity = 1
	}
	return &WindowStats{
		capacity: capacity,
		values:   make([]float64, capacity),
		extrema:  minmax.NewTracker[float64](),
	}
}

// Push appends v, evicting the oldest value once the window is full. NaN is
// not ordered and must be filtered by the caller.
func (w *WindowStats) Push(v float64) {
	w.extrema.AddTail(v)

	if w.samples < w.capacity {
		w.values[w.position] = v
		w.sum += v
		w.sumSquares += v * v
		w.position = (w.position + 1) % w.capacity
		w.samples++
		return
	}

	old := w.values[w.position]
	w.sum -= old
	w.sumSquares -= old * old
	w.extrema.RemoveHead(old)

	w.values[w.position] = v
	w.sum += v
	w.sumSquares += v * v
	w.position = (w.position + 1) % w.capacity
}

func (w *WindowStats) Size() int {
	return w.samples
}

func (w *WindowStats) Capacity() int {
	return w.capacity
}

func (w *WindowStats) Average() float64 {
	if w.samples == 0 {
		return 0
	}
	return w.sum / float64(w.samples)
}

func (w *WindowStats) StdDev() float64 {
	if w.samples == 0 {
		return 0
	}
	mean := w.Average()
	variance := w.sumSquares/float64(w.samples) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func (w *WindowStats) ZScore(value float64) float64 {
	std := w.StdDev()
	if std == 0 {
		return 0
	}
	return (value - w.Average()) / std
}

// Min returns minmax.ErrEmptyWindow before the first Push.
func (w *WindowStats) Min() (float64, error) {
	return w.extrema.Minimum()
}

func (w *WindowStats) Max() (float64, error) {
	return w.extrema.Maximum()
}

// Range is Max minus Min, zero for an empty window.
func (w *WindowStats) Range() float64 {
	lo, err := w.Min()
	if err != nil {
		return 0
	}
	hi, _ := w.Max()
	return hi - lo
}

// Values returns the window contents oldest first.
func (w *WindowStats) Values() []float64 {
	out := make([]float64, 0, w.samples)
	start := 0
	if w.samples == w.capacity {
		start = w.position
	}
	for i := 0; i < w.samples; i++ {
		out = append(out, w.values[(start+i)%w.capacity])
	}
	return out
}
