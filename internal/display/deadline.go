package display

import "time"

// Deadline is a recurring due time: it becomes due once the clock passes it
// and is pushed to now+Every when reset.
type Deadline struct {
	At    time.Time
	Every time.Duration
}

func NewDeadline(now time.Time, every time.Duration) Deadline {
	return Deadline{At: now.Add(every), Every: every}
}

func (d Deadline) Due(now time.Time) bool { return now.After(d.At) }

func (d *Deadline) Reset(now time.Time) { d.At = now.Add(d.Every) }
