package fetch

import (
	"errors"
	"fmt"

	"github.com/creatorstation/radarlcd/internal/frame"
)

// ErrCycleInProgress is returned when a manual cycle is requested while
// another one is running.
var ErrCycleInProgress = errors.New("fetch cycle already in progress")

// ErrArtifactMissing means an artifact of the candidate window disappeared
// from disk before the window could be published.
var ErrArtifactMissing = errors.New("artifact missing before publish")

// ResolveError means the remote source could not report its newest frame.
type ResolveError struct {
	Err error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolving latest frame: %v", e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// FetchError means one frame of the candidate window could not be retrieved
// or stored; the whole cycle was abandoned.
type FetchError struct {
	ID  frame.Identity
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching frame %s: %v", e.ID.Key(), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
