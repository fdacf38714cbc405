// Package evict removes cached artifacts that fell out of the live window.
package evict

import (
	"fmt"
	"log"

	"github.com/creatorstation/radarlcd/internal/frame"
)

// Artifacts is the on-disk side of the cache.
type Artifacts interface {
	List() ([]frame.Identity, error)
	Remove(id frame.Identity) error
}

// Frames reports which frames must be kept.
type Frames interface {
	Protected() frame.Window
}

// DeletionError reports an artifact that could not be removed.
type DeletionError struct {
	Key string
	Err error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("failed to delete artifact %s: %v", e.Key, e.Err)
}

func (e *DeletionError) Unwrap() error { return e.Err }

// Result summarizes one sweep.
type Result struct {
	Scanned int
	Kept    int
	Removed []string
	Failed  []error
}

type Evictor struct {
	artifacts Artifacts
	frames    Frames
	logger    *log.Logger
}

func New(artifacts Artifacts, frames Frames, logger *log.Logger) *Evictor {
	if logger == nil {
		logger = log.Default()
	}
	return &Evictor{artifacts: artifacts, frames: frames, logger: logger}
}

// Sweep deletes every artifact whose frame is not protected. The listing is
// taken before the keep set: an artifact that appears after the listing is
// skipped, and one written before it was staged before it was written.
// Nothing is deleted while the keep set is empty.
func (e *Evictor) Sweep() Result {
	var res Result

	ids, err := e.artifacts.List()
	if err != nil {
		e.logger.Printf("Error listing artifacts: %v", err)
		res.Failed = append(res.Failed, err)
		return res
	}

	keep := e.frames.Protected()
	if len(keep) == 0 {
		e.logger.Println("Skipping eviction sweep: no live frames yet")
		return res
	}
	res.Scanned = len(ids)

	for _, id := range ids {
		if keep.Contains(id) {
			res.Kept++
			continue
		}
		e.logger.Printf("Delete %s", id.Key())
		if err := e.artifacts.Remove(id); err != nil {
			derr := &DeletionError{Key: id.Key(), Err: err}
			e.logger.Println(derr)
			res.Failed = append(res.Failed, derr)
			continue
		}
		res.Removed = append(res.Removed, id.Key())
	}
	return res
}
