// Package cache stores frame artifacts on disk, one file per frame.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/creatorstation/radarlcd/internal/frame"
)

const (
	defaultExt = ".png"
	tempPrefix = ".partial-"
)

// Dir is a directory of artifacts addressed by frame key.
type Dir struct {
	path string
	ext  string
	loc  *time.Location
}

// Open creates the cache directory if needed. Keys found on disk are
// parsed in loc.
func Open(path string, loc *time.Location) (*Dir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Dir{path: path, ext: defaultExt, loc: loc}, nil
}

func (d *Dir) Root() string { return d.path }

// Path returns the artifact file path for id.
func (d *Dir) Path(id frame.Identity) string {
	return filepath.Join(d.path, id.Key()+d.ext)
}

func (d *Dir) Exists(id frame.Identity) bool {
	info, err := os.Stat(d.Path(id))
	return err == nil && info.Mode().IsRegular()
}

// Read returns the artifact bytes. A missing artifact yields an error
// matching os.ErrNotExist.
func (d *Dir) Read(id frame.Identity) ([]byte, error) {
	return os.ReadFile(d.Path(id))
}

// Write stores data for id. The file appears under its final name only
// once fully written.
func (d *Dir) Write(id frame.Identity, data []byte) error {
	tmp, err := os.CreateTemp(d.path, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing artifact %s: %w", id.Key(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing artifact %s: %w", id.Key(), err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("error setting artifact mode %s: %w", id.Key(), err)
	}
	if err := os.Rename(tmp.Name(), d.Path(id)); err != nil {
		return fmt.Errorf("error publishing artifact %s: %w", id.Key(), err)
	}
	return nil
}

// List returns the frames with an artifact on disk, oldest first.
// Files whose names are not artifact keys are ignored.
func (d *Dir) List() ([]frame.Identity, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}

	var ids []frame.Identity
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, d.ext) {
			continue
		}
		id, err := frame.ParseKey(strings.TrimSuffix(name, d.ext), d.loc)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Before(ids[j]) })
	return ids, nil
}

// Remove deletes the artifact for id. Removing a missing artifact is not an error.
func (d *Dir) Remove(id frame.Identity) error {
	if err := os.Remove(d.Path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
