package frame

import (
	"fmt"
	"time"

	"golang.org/x/exp/slices"
)

// Window is the ordered set of live frames, oldest first.
type Window []Identity

// NewWindow returns the size frames ending at latest, spaced step apart.
func NewWindow(latest Identity, size int, step time.Duration) Window {
	if size <= 0 || latest.IsZero() {
		return nil
	}
	w := make(Window, size)
	for i := 0; i < size; i++ {
		w[size-1-i] = latest.Add(-time.Duration(i) * step)
	}
	return w
}

// Last returns the newest frame, or false if the window is empty.
func (w Window) Last() (Identity, bool) {
	if len(w) == 0 {
		return Identity{}, false
	}
	return w[len(w)-1], true
}

func (w Window) Clone() Window { return slices.Clone(w) }

func (w Window) Contains(id Identity) bool {
	return slices.ContainsFunc(w, id.Equal)
}

func (w Window) Equal(o Window) bool {
	return slices.EqualFunc(w, o, Identity.Equal)
}

// Keys returns the artifact keys of w in window order.
func (w Window) Keys() []string {
	keys := make([]string, len(w))
	for i, id := range w {
		keys[i] = id.Key()
	}
	return keys
}

// Union returns the frames present in w or o, ordered oldest first.
func (w Window) Union(o Window) Window {
	out := w.Clone()
	for _, id := range o {
		if !out.Contains(id) {
			out = append(out, id)
		}
	}
	slices.SortFunc(out, func(a, b Identity) int { return a.t.Compare(b.t) })
	return out
}

// Validate checks that w has exactly size entries spaced step apart.
func (w Window) Validate(size int, step time.Duration) error {
	if len(w) != size {
		return fmt.Errorf("window has %d frames, want %d", len(w), size)
	}
	for i := 1; i < len(w); i++ {
		if got := w[i].t.Sub(w[i-1].t); got != step {
			return fmt.Errorf("frames %s and %s are %v apart, want %v", w[i-1], w[i], got, step)
		}
	}
	return nil
}
