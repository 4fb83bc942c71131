package minmax

import (
	"cmp"
	"fmt"
	"strings"
)

type Mode int

const (
	Min Mode = iota
	Max
)

func (m Mode) String() string {
	switch m {
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Compute returns the minimum or maximum of every contiguous window of the
// given size, ordered by window start. A sequence shorter than the window
// yields an empty result.
func Compute[E cmp.Ordered](seq []E, window int, mode Mode) ([]E, error) {
	return ComputeFunc(seq, window, mode, func(a, b E) bool { return a < b })
}

func ComputeFunc[E comparable](seq []E, window int, mode Mode, less func(a, b E) bool) ([]E, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, window)
	}
	if mode != Min && mode != Max {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMode, mode)
	}
	if len(seq) < window {
		return []E{}, nil
	}

	t := NewTrackerFunc(less)
	query := t.Minimum
	if mode == Max {
		query = t.Maximum
	}

	result := make([]E, 0, len(seq)-window+1)
	for _, v := range seq[:window] {
		t.AddTail(v)
	}
	v, err := query()
	if err != nil {
		return nil, err
	}
	result = append(result, v)

	for i := window; i < len(seq); i++ {
		t.AddTail(seq[i])
		t.RemoveHead(seq[i-window])
		if v, err = query(); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}
