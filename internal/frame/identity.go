package frame

import (
	"fmt"
	"time"
)

// KeyLayout is the time layout of an artifact key, e.g. 20240102_150500.
const KeyLayout = "20060102_150405"

// Identity names one frame: a wall-clock instant truncated to the frame grid.
type Identity struct {
	t time.Time
}

// At returns the identity of the grid slot containing t.
func At(t time.Time, step time.Duration) Identity {
	if step > 0 {
		t = t.Truncate(step)
	}
	return Identity{t: t.Round(0)}
}

// ParseKey parses an artifact key produced by Key in the given location.
func ParseKey(key string, loc *time.Location) (Identity, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(KeyLayout, key, loc)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid frame key %q: %w", key, err)
	}
	return Identity{t: t}, nil
}

func (id Identity) Time() time.Time { return id.t }

func (id Identity) IsZero() bool { return id.t.IsZero() }

func (id Identity) Equal(o Identity) bool { return id.t.Equal(o.t) }

func (id Identity) Before(o Identity) bool { return id.t.Before(o.t) }

func (id Identity) After(o Identity) bool { return id.t.After(o.t) }

// Add returns the identity d away from id. Negative d steps backward.
func (id Identity) Add(d time.Duration) Identity { return Identity{t: id.t.Add(d)} }

// Key is the stable, lexically sortable name of the frame's artifact.
func (id Identity) Key() string { return id.t.Format(KeyLayout) }

func (id Identity) String() string {
	if id.IsZero() {
		return "<none>"
	}
	return id.t.Format("2006-01-02 15:04")
}
