package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jst = time.FixedZone("JST", 9*60*60)

func clock(h, m int) time.Time {
	return time.Date(2024, 7, 1, h, m, 0, 0, jst)
}

func TestAtTruncatesToGrid(t *testing.T) {
	id := At(time.Date(2024, 7, 1, 11, 58, 42, 123, jst), 5*time.Minute)
	assert.True(t, id.Equal(At(clock(11, 55), 5*time.Minute)))
	assert.Equal(t, "20240701_115500", id.Key())
}

func TestParseKeyRoundTrip(t *testing.T) {
	id := At(clock(9, 5), 5*time.Minute)

	parsed, err := ParseKey(id.Key(), jst)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(id))

	_, err = ParseKey("in_preparation", jst)
	assert.Error(t, err)
}

func TestNewWindow(t *testing.T) {
	latest := At(clock(12, 0), 5*time.Minute)

	w := NewWindow(latest, 3, 5*time.Minute)

	assert.Equal(t, []string{"20240701_115000", "20240701_115500", "20240701_120000"}, w.Keys())
	last, ok := w.Last()
	require.True(t, ok)
	assert.True(t, last.Equal(latest))
	assert.NoError(t, w.Validate(3, 5*time.Minute))
}

func TestNewWindowCrossesMidnight(t *testing.T) {
	latest := At(time.Date(2024, 7, 2, 0, 5, 0, 0, jst), 5*time.Minute)

	w := NewWindow(latest, 12, 5*time.Minute)

	require.Len(t, w, 12)
	assert.Equal(t, "20240701_231000", w[0].Key())
	assert.NoError(t, w.Validate(12, 5*time.Minute))
}

func TestNewWindowEmpty(t *testing.T) {
	assert.Nil(t, NewWindow(Identity{}, 12, 5*time.Minute))
	assert.Nil(t, NewWindow(At(clock(1, 0), 0), 0, 5*time.Minute))

	_, ok := Window(nil).Last()
	assert.False(t, ok)
}

func TestValidateRejectsGaps(t *testing.T) {
	step := 5 * time.Minute
	w := Window{At(clock(11, 50), step), At(clock(12, 0), step)}

	assert.Error(t, w.Validate(2, step))
	assert.Error(t, w.Validate(3, step))
}

func TestCloneIsIndependent(t *testing.T) {
	step := 5 * time.Minute
	w := NewWindow(At(clock(12, 0), step), 2, step)

	c := w.Clone()
	c[0] = At(clock(1, 0), step)

	assert.Equal(t, "20240701_115500", w[0].Key())
	assert.False(t, w.Equal(c))
}

func TestUnion(t *testing.T) {
	step := 5 * time.Minute
	a := NewWindow(At(clock(12, 0), step), 3, step)
	b := NewWindow(At(clock(12, 5), step), 3, step)

	u := a.Union(b)

	assert.Equal(t, []string{"20240701_115000", "20240701_115500", "20240701_120000", "20240701_120500"}, u.Keys())
	assert.True(t, u.Contains(At(clock(12, 5), step)))
	assert.False(t, u.Contains(At(clock(12, 10), step)))
}
