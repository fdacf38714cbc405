// Package journal records the outcome of every fetch cycle.
package journal

import (
	"context"
	"time"
)

type Outcome string

const (
	Published     Outcome = "published"
	ResolveFailed Outcome = "resolve_failed"
	FetchFailed   Outcome = "fetch_failed"
	Cancelled     Outcome = "cancelled"
)

// Cycle is one fetch cycle as seen by the scheduler.
type Cycle struct {
	ID         string    `json:"id" bson:"cycle_id"`
	StartedAt  time.Time `json:"started_at" bson:"started_at"`
	FinishedAt time.Time `json:"finished_at" bson:"finished_at"`
	Latest     string    `json:"latest,omitempty" bson:"latest,omitempty"`
	Fetched    int       `json:"fetched" bson:"fetched"`
	Reused     int       `json:"reused" bson:"reused"`
	Outcome    Outcome   `json:"outcome" bson:"outcome"`
	Error      string    `json:"error,omitempty" bson:"error,omitempty"`
}

// Recorder persists cycles.
type Recorder interface {
	Record(ctx context.Context, c Cycle) error
}

// Nop discards every cycle.
type Nop struct{}

func (Nop) Record(context.Context, Cycle) error { return nil }
