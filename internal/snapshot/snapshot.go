// Package snapshot persists a materialized AppState so startup replays only
// the log tail instead of the full history.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"taskline/internal/domain"
)

// Version is bumped when the document shape changes; a mismatched snapshot is
// discarded and the state rebuilt from the log.
const Version = 1

// Document is the on-disk shape: the projected state plus bookkeeping.
// AppliedSeq is the last log sequence folded into it.
type Document struct {
	domain.AppState
	Version     int    `json:"version"`
	LastUpdated string `json:"last_updated"`
	AppliedSeq  uint64 `json:"applied_seq"`
}

type Store struct {
	Path string
	Now  func() time.Time
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Save writes the snapshot atomically: temp file, fsync, rename. A failed
// save never leaves a half-written document behind.
func (s Store) Save(st *domain.AppState, appliedSeq uint64) error {
	doc := Document{
		AppState:    *st.Clone(),
		Version:     Version,
		LastUpdated: s.now().UTC().Format(time.RFC3339),
		AppliedSeq:  appliedSeq,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return domain.PersistenceError{Op: "encode snapshot", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return domain.PersistenceError{Op: "snapshot dir", Err: err}
	}
	tmp := s.Path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return domain.PersistenceError{Op: "open snapshot", Err: err}
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		os.Remove(tmp)
		return domain.PersistenceError{Op: "write snapshot", Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return domain.PersistenceError{Op: "sync snapshot", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return domain.PersistenceError{Op: "close snapshot", Err: err}
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return domain.PersistenceError{Op: "replace snapshot", Err: err}
	}
	return nil
}

// Load reads the snapshot. A missing file returns (nil, 0, nil): the caller
// replays from empty. A stale version is reported so the caller can fall back
// to a full replay.
func (s Store) Load() (*domain.AppState, uint64, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("decode snapshot %s: %w", s.Path, err)
	}
	if doc.Version != Version {
		return nil, 0, fmt.Errorf("snapshot version %d, want %d", doc.Version, Version)
	}
	st := doc.AppState
	normalize(&st)
	return &st, doc.AppliedSeq, nil
}

// normalize restores empty maps a JSON round-trip may have nilled out.
func normalize(st *domain.AppState) {
	if st.Projects == nil {
		st.Projects = map[string]domain.Project{}
	}
	if st.Milestones == nil {
		st.Milestones = map[string]domain.Milestone{}
	}
	if st.Tasks == nil {
		st.Tasks = map[string]domain.Task{}
	}
	if st.Relations.MilestoneProject == nil {
		st.Relations.MilestoneProject = map[string]string{}
	}
	if st.Relations.TaskMilestone == nil {
		st.Relations.TaskMilestone = map[string]string{}
	}
	if st.Relations.TaskDependents == nil {
		st.Relations.TaskDependents = map[string][]string{}
	}
	if st.Relations.MilestoneDependents == nil {
		st.Relations.MilestoneDependents = map[string][]string{}
	}
}
