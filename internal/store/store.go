// Package store holds the process-wide set of live frames.
package store

import (
	"errors"
	"sync"

	"github.com/creatorstation/radarlcd/internal/frame"
)

// ErrEmpty is returned by Latest before the first window is published.
var ErrEmpty = errors.New("no frame window has been published yet")

// Store is the shared frame state. The published window is only ever
// replaced wholesale; readers always receive a copy.
type Store struct {
	mu     sync.RWMutex
	window frame.Window
	staged frame.Window
}

func New() *Store {
	return &Store{}
}

// Publish atomically replaces the live window and clears any staged window.
// Only the fetch scheduler publishes.
func (s *Store) Publish(w frame.Window) {
	next := w.Clone()

	s.mu.Lock()
	s.window = next
	s.staged = nil
	s.mu.Unlock()
}

// Snapshot returns a copy of the published window.
func (s *Store) Snapshot() frame.Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window.Clone()
}

// Latest returns the newest published frame.
func (s *Store) Latest() (frame.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.window.Last()
	if !ok {
		return frame.Identity{}, ErrEmpty
	}
	return id, nil
}

// Stage records the candidate window of an in-flight fetch cycle so its
// artifacts are protected from eviction before they are published.
func (s *Store) Stage(w frame.Window) {
	next := w.Clone()

	s.mu.Lock()
	s.staged = next
	s.mu.Unlock()
}

// Unstage drops the staged window of an aborted cycle.
func (s *Store) Unstage() {
	s.mu.Lock()
	s.staged = nil
	s.mu.Unlock()
}

// Staged returns a copy of the staged window, if any.
func (s *Store) Staged() frame.Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staged.Clone()
}

// Protected returns every frame whose artifact must survive eviction:
// the published window plus the staged one.
func (s *Store) Protected() frame.Window {
	s.mu.RLock()
	window, staged := s.window.Clone(), s.staged.Clone()
	s.mu.RUnlock()

	return window.Union(staged)
}
