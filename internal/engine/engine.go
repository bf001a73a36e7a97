// Package engine is the command layer: it validates commands against the
// projected state, appends the resulting events durably, folds them into the
// live projection and fans them out to subscribers. All mutation is
// serialized; readers get deep copies.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"taskline/internal/bus"
	"taskline/internal/domain"
	"taskline/internal/event"
	"taskline/internal/eventlog"
	"taskline/internal/index"
	"taskline/internal/projection"
	"taskline/internal/snapshot"
)

type Engine struct {
	Log       *eventlog.Log
	Projector projection.Projector
	Factory   event.Factory
	Bus       *bus.Bus
	Index     *index.Index
	Snapshots *snapshot.Store
	Logger    *slog.Logger
	Now       func() time.Time

	snapshotEvery int
	mu            sync.Mutex
	state         *domain.AppState
	appliedSeq    uint64
	sinceSnapshot int
}

// Options wires the engine's collaborators. Bus, Index, Snapshots and Logger
// are optional.
type Options struct {
	Log           *eventlog.Log
	Projector     projection.Projector
	Factory       event.Factory
	Bus           *bus.Bus
	Index         *index.Index
	Snapshots     *snapshot.Store
	Logger        *slog.Logger
	SnapshotEvery int
	Now           func() time.Time
}

// New builds an engine and brings its state current: snapshot first when one
// is usable, then the log tail on top. A snapshot that fails to load or runs
// ahead of the log is discarded in favor of a full replay.
func New(opts Options) (*Engine, error) {
	e := &Engine{
		Log:           opts.Log,
		Projector:     opts.Projector,
		Factory:       opts.Factory,
		Bus:           opts.Bus,
		Index:         opts.Index,
		Snapshots:     opts.Snapshots,
		Logger:        opts.Logger,
		Now:           opts.Now,
		snapshotEvery: opts.SnapshotEvery,
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}

	var st *domain.AppState
	var appliedSeq uint64
	if e.Snapshots != nil {
		loaded, seq, err := e.Snapshots.Load()
		if err != nil {
			e.Logger.Warn("snapshot unusable, replaying full log", "err", err)
		} else if loaded != nil {
			if seq > uint64(e.Log.Len()) {
				e.Logger.Warn("snapshot ahead of log, replaying full log",
					"snapshot_seq", seq, "log_len", e.Log.Len())
			} else {
				st = loaded
				appliedSeq = seq
			}
		}
	}
	if st == nil {
		st = e.Projector.Empty()
		appliedSeq = 0
	}
	for _, entry := range e.Log.After(appliedSeq) {
		if err := e.Projector.Fold(st, entry.Event); err != nil {
			return nil, err
		}
		appliedSeq = entry.Seq
	}
	e.state = st
	e.appliedSeq = appliedSeq
	return e, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// commit appends the command events plus any derived status cascade as one
// atomic batch, then swaps the pre-folded scratch state in. The caller holds
// e.mu. On append failure the live state is untouched.
func (e *Engine) commit(ctx context.Context, evts ...event.Event) error {
	scratch := e.state.Clone()
	milestonesBefore, projectsBefore := captureStatuses(scratch)
	for _, evt := range evts {
		if err := e.Projector.Fold(scratch, evt); err != nil {
			return err
		}
	}
	derived := e.deriveStatusEvents(scratch, milestonesBefore, projectsBefore)
	for _, evt := range derived {
		if err := e.Projector.Fold(scratch, evt); err != nil {
			return err
		}
	}

	batch := append(evts, derived...)
	entries, err := e.Log.AppendBatch(ctx, batch)
	if err != nil {
		return err
	}
	e.state = scratch
	e.appliedSeq = entries[len(entries)-1].Seq
	e.sinceSnapshot += len(entries)

	for _, entry := range entries {
		if e.Bus != nil {
			e.Bus.Publish(entry)
		}
		if e.Index != nil {
			if err := e.Index.Record(ctx, entry); err != nil {
				e.Logger.Warn("index record failed", "seq", entry.Seq, "err", err)
			}
		}
	}
	if e.Snapshots != nil && e.snapshotEvery > 0 && e.sinceSnapshot >= e.snapshotEvery {
		if err := e.Snapshots.Save(e.state, e.appliedSeq); err != nil {
			e.Logger.Warn("periodic snapshot failed", "seq", e.appliedSeq, "err", err)
		} else {
			e.sinceSnapshot = 0
		}
	}
	return nil
}

func captureStatuses(st *domain.AppState) (map[string]domain.Status, map[string]domain.Status) {
	milestones := make(map[string]domain.Status, len(st.Milestones))
	for id, m := range st.Milestones {
		milestones[id] = m.Status
	}
	projects := make(map[string]domain.Status, len(st.Projects))
	for id, p := range st.Projects {
		projects[id] = p.Status
	}
	return milestones, projects
}

// deriveStatusEvents diffs composite statuses across a fold and mints the
// corresponding *.status_changed records. The fold has already cascaded, so
// replaying these is a no-op; they exist so the log narrates every transition.
// Entities created or deleted inside the batch produce no record: creation and
// tombstone events carry their own status story.
func (e *Engine) deriveStatusEvents(after *domain.AppState, milestonesBefore, projectsBefore map[string]domain.Status) []event.Event {
	var out []event.Event
	for _, id := range sortedKeys(after.Milestones) {
		prev, existed := milestonesBefore[id]
		cur := after.Milestones[id]
		if !existed || prev == cur.Status {
			continue
		}
		out = append(out, e.Factory.New(event.MilestoneStatusChangedPayload{
			MilestoneID:   id,
			FromStatus:    prev,
			ToStatus:      cur.Status,
			CompletedDate: cur.CompletedDate,
		}))
	}
	for _, id := range sortedKeys(after.Projects) {
		prev, existed := projectsBefore[id]
		cur := after.Projects[id]
		if !existed || prev == cur.Status {
			continue
		}
		out = append(out, e.Factory.New(event.ProjectStatusChangedPayload{
			ProjectID:  id,
			FromStatus: prev,
			ToStatus:   cur.Status,
		}))
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// State returns a deep copy of the projection.
func (e *Engine) State() *domain.AppState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// AppliedSeq reports the last log sequence folded into the live state.
func (e *Engine) AppliedSeq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.appliedSeq
}

// Statistics returns the current aggregate counters.
func (e *Engine) Statistics() domain.Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Statistics
}

// Project returns one project by id.
func (e *Engine) Project(id string) (domain.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.state.Projects[id]
	if !ok {
		return domain.Project{}, domain.NotFoundError{Kind: "project", ID: id}
	}
	return cloneProject(p), nil
}

// Milestone returns one milestone by id.
func (e *Engine) Milestone(id string) (domain.Milestone, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.state.Milestones[id]
	if !ok {
		return domain.Milestone{}, domain.NotFoundError{Kind: "milestone", ID: id}
	}
	return cloneMilestone(m), nil
}

// Task returns one task by id.
func (e *Engine) Task(id string) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.state.Tasks[id]
	if !ok {
		return domain.Task{}, domain.NotFoundError{Kind: "task", ID: id}
	}
	return cloneTask(t), nil
}

// ListProjects returns every project sorted by id.
func (e *Engine) ListProjects() []domain.Project {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Project, 0, len(e.state.Projects))
	for _, id := range sortedKeys(e.state.Projects) {
		out = append(out, cloneProject(e.state.Projects[id]))
	}
	return out
}

// ListMilestones returns milestones sorted by id, optionally scoped to one
// project.
func (e *Engine) ListMilestones(projectID string) []domain.Milestone {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Milestone, 0, len(e.state.Milestones))
	for _, id := range sortedKeys(e.state.Milestones) {
		m := e.state.Milestones[id]
		if projectID != "" && m.ProjectID != projectID {
			continue
		}
		out = append(out, cloneMilestone(m))
	}
	return out
}

// ListTasks returns tasks sorted by id, optionally scoped to one milestone.
func (e *Engine) ListTasks(milestoneID string) []domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Task, 0, len(e.state.Tasks))
	for _, id := range sortedKeys(e.state.Tasks) {
		t := e.state.Tasks[id]
		if milestoneID != "" && t.MilestoneID != milestoneID {
			continue
		}
		out = append(out, cloneTask(t))
	}
	return out
}

// SaveSnapshot persists the current state unconditionally.
func (e *Engine) SaveSnapshot() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Snapshots == nil {
		return nil
	}
	if err := e.Snapshots.Save(e.state, e.appliedSeq); err != nil {
		return err
	}
	e.sinceSnapshot = 0
	return nil
}

func cloneProject(p domain.Project) domain.Project {
	p.MilestoneIDs = append([]string(nil), p.MilestoneIDs...)
	return p
}

func cloneMilestone(m domain.Milestone) domain.Milestone {
	m.TaskIDs = append([]string(nil), m.TaskIDs...)
	m.DependsOn = append([]string(nil), m.DependsOn...)
	m.DueDate = copyStringPtr(m.DueDate)
	m.CompletedDate = copyStringPtr(m.CompletedDate)
	return m
}

func cloneTask(t domain.Task) domain.Task {
	t.Tags = append([]string(nil), t.Tags...)
	t.DependsOn = append([]string(nil), t.DependsOn...)
	t.StartTime = copyStringPtr(t.StartTime)
	t.EndTime = copyStringPtr(t.EndTime)
	if t.ActualPoints != nil {
		v := *t.ActualPoints
		t.ActualPoints = &v
	}
	return t
}

func copyStringPtr(in *string) *string {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}
