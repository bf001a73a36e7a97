package engine_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/event"
	"taskline/internal/eventlog"
	"taskline/internal/projection"
	"taskline/internal/snapshot"
)

type testEnv struct {
	Engine *engine.Engine
	Log    *eventlog.Log
	Ctx    context.Context
	Dir    string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	log, corrupt, err := eventlog.Open(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if len(corrupt) != 0 {
		t.Fatalf("fresh log reported corrupt records: %v", corrupt)
	}
	t.Cleanup(func() { log.Close() })

	counter := 0
	eng, err := engine.New(engine.Options{
		Log:       log,
		Projector: projection.Projector{PointsPerHour: 3},
		Factory: event.Factory{
			Now: func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) },
			NewID: func() string {
				counter++
				return fmt.Sprintf("id-%04d", counter)
			},
		},
		Now: func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return testEnv{Engine: eng, Log: log, Ctx: context.Background(), Dir: dir}
}

// seedTask creates project, milestone and one task, returning their ids.
func seedTask(t *testing.T, env testEnv) (string, string, string) {
	t.Helper()
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "Website"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	m, err := env.Engine.CreateMilestone(env.Ctx, engine.MilestoneCreateOptions{ProjectID: p.ID, Title: "Launch"})
	if err != nil {
		t.Fatalf("create milestone: %v", err)
	}
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		MilestoneID: m.ID, Title: "Build landing page", EstimatedPoints: 5,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return p.ID, m.ID, task.ID
}

func TestTaskLifecycleCascades(t *testing.T) {
	env := newTestEnv(t)
	projectID, milestoneID, taskID := seedTask(t, env)

	task, err := env.Engine.StartTask(env.Ctx, taskID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if task.Status != domain.StatusInProgress || task.StartTime == nil {
		t.Fatalf("started task = %+v", task)
	}
	m, _ := env.Engine.Milestone(milestoneID)
	if m.Status != domain.StatusInProgress {
		t.Fatalf("milestone status = %s, want in_progress", m.Status)
	}
	p, _ := env.Engine.Project(projectID)
	if p.Status != domain.StatusInProgress {
		t.Fatalf("project status = %s, want in_progress", p.Status)
	}

	task, err = env.Engine.CompleteTask(env.Ctx, taskID, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if task.Status != domain.StatusCompleted || task.EndTime == nil {
		t.Fatalf("completed task = %+v", task)
	}
	if task.ActualPoints == nil || *task.ActualPoints != 5 {
		t.Fatalf("actual points = %v, want estimate 5", task.ActualPoints)
	}
	m, _ = env.Engine.Milestone(milestoneID)
	if m.Status != domain.StatusCompleted || m.CompletedDate == nil {
		t.Fatalf("milestone = %+v, want completed with date", m)
	}
	p, _ = env.Engine.Project(projectID)
	if p.Status != domain.StatusCompleted {
		t.Fatalf("project status = %s, want completed", p.Status)
	}
}

func TestDerivedStatusEventsAppended(t *testing.T) {
	env := newTestEnv(t)
	_, _, taskID := seedTask(t, env)
	if _, err := env.Engine.StartTask(env.Ctx, taskID); err != nil {
		t.Fatalf("start: %v", err)
	}

	var derived []event.Type
	for _, entry := range env.Log.All() {
		switch entry.Event.Type {
		case event.TypeMilestoneStatusChanged, event.TypeProjectStatusChanged:
			derived = append(derived, entry.Event.Type)
		}
	}
	if len(derived) != 2 {
		t.Fatalf("derived events = %v, want milestone then project status change", derived)
	}
	if derived[0] != event.TypeMilestoneStatusChanged || derived[1] != event.TypeProjectStatusChanged {
		t.Fatalf("derived order = %v", derived)
	}
}

func TestInvalidTransitionsRejected(t *testing.T) {
	env := newTestEnv(t)
	_, _, taskID := seedTask(t, env)

	// not_started -> completed skips in_progress
	if _, err := env.Engine.CompleteTask(env.Ctx, taskID, nil); !isValidation(err) {
		t.Fatalf("complete from not_started: %v", err)
	}
	// not_started -> blocked
	if _, err := env.Engine.BlockTask(env.Ctx, taskID, "waiting"); !isValidation(err) {
		t.Fatalf("block from not_started: %v", err)
	}
	if _, err := env.Engine.StartTask(env.Ctx, taskID); err != nil {
		t.Fatalf("start: %v", err)
	}
	// blocking without a reason
	if _, err := env.Engine.BlockTask(env.Ctx, taskID, ""); !isValidation(err) {
		t.Fatalf("block without reason: %v", err)
	}
	if _, err := env.Engine.BlockTask(env.Ctx, taskID, "waiting on design"); err != nil {
		t.Fatalf("block: %v", err)
	}
	// blocked -> completed
	if _, err := env.Engine.CompleteTask(env.Ctx, taskID, nil); !isValidation(err) {
		t.Fatalf("complete from blocked: %v", err)
	}
	task, err := env.Engine.UnblockTask(env.Ctx, taskID)
	if err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if task.Status != domain.StatusInProgress || task.BlockReason != "" {
		t.Fatalf("unblocked task = %+v", task)
	}
}

func TestCycleRejectionLeavesLogUntouched(t *testing.T) {
	env := newTestEnv(t)
	_, milestoneID, a := seedTask(t, env)
	b, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		MilestoneID: milestoneID, Title: "second", DependsOn: []string{a},
	})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	before := env.Log.Len()
	_, err = env.Engine.AddTaskDependency(env.Ctx, a, b.ID)
	var cycle domain.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("want CycleError, got %v", err)
	}
	if env.Log.Len() != before {
		t.Fatalf("log grew from %d to %d on rejected command", before, env.Log.Len())
	}
	if _, err := env.Engine.AddTaskDependency(env.Ctx, a, a); !errors.As(err, &cycle) {
		t.Fatalf("self dependency: %v", err)
	}
}

func TestMilestoneDependencyCycle(t *testing.T) {
	env := newTestEnv(t)
	projectID, m1, _ := seedTask(t, env)
	m2, err := env.Engine.CreateMilestone(env.Ctx, engine.MilestoneCreateOptions{ProjectID: projectID, Title: "Beta"})
	if err != nil {
		t.Fatalf("create m2: %v", err)
	}
	if _, err := env.Engine.AddMilestoneDependency(env.Ctx, m2.ID, m1); err != nil {
		t.Fatalf("add dep: %v", err)
	}
	var cycle domain.CycleError
	if _, err := env.Engine.AddMilestoneDependency(env.Ctx, m1, m2.ID); !errors.As(err, &cycle) {
		t.Fatalf("want CycleError, got %v", err)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	env := newTestEnv(t)
	projectID, milestoneID, taskID := seedTask(t, env)

	if err := env.Engine.DeleteProject(env.Ctx, projectID, "scrapped"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.Project(projectID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("project after delete: %v", err)
	}
	if _, err := env.Engine.Milestone(milestoneID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("milestone after delete: %v", err)
	}
	if _, err := env.Engine.Task(taskID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("task after delete: %v", err)
	}
	stats := env.Engine.Statistics()
	if stats.TotalTasks != 0 || stats.TotalPoints != 0 {
		t.Fatalf("stats after delete = %+v", stats)
	}
	// history survives the tombstone
	if env.Log.Len() == 0 {
		t.Fatal("log emptied by delete")
	}
}

func TestStatisticsScenario(t *testing.T) {
	env := newTestEnv(t)
	_, milestoneID, t1 := seedTask(t, env) // 5 points

	t2, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		MilestoneID: milestoneID, Title: "two", EstimatedPoints: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	t3, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		MilestoneID: milestoneID, Title: "three", EstimatedPoints: 3,
	})
	if err != nil {
		t.Fatal(err)
	}

	stats := env.Engine.Statistics()
	if stats.TotalTasks != 3 || stats.TotalPoints != 10 {
		t.Fatalf("initial stats = %+v", stats)
	}
	if stats.AveragePointsPerHour != 3 {
		t.Fatalf("seed average = %v, want 3", stats.AveragePointsPerHour)
	}

	for _, id := range []string{t1, t2.ID} {
		if _, err := env.Engine.StartTask(env.Ctx, id); err != nil {
			t.Fatal(err)
		}
		if _, err := env.Engine.CompleteTask(env.Ctx, id, nil); err != nil {
			t.Fatal(err)
		}
	}
	actual := 4
	if _, err := env.Engine.StartTask(env.Ctx, t3.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, t3.ID, &actual); err != nil {
		t.Fatal(err)
	}

	stats = env.Engine.Statistics()
	if stats.CompletedTasks != 3 {
		t.Fatalf("completed = %d", stats.CompletedTasks)
	}
	if stats.EarnedPoints != 5+2+4 {
		t.Fatalf("earned = %d, want 11", stats.EarnedPoints)
	}
	// start and end share the pinned clock, so duration is zero and the
	// average keeps its seeded value instead of dividing by zero
	if stats.AveragePointsPerHour != 3 {
		t.Fatalf("average = %v, want seed retained", stats.AveragePointsPerHour)
	}
}

func TestRestartResumesFromLog(t *testing.T) {
	env := newTestEnv(t)
	_, _, taskID := seedTask(t, env)
	if _, err := env.Engine.StartTask(env.Ctx, taskID); err != nil {
		t.Fatal(err)
	}
	want := env.Engine.State()

	reopened, corrupt, err := eventlog.Open(env.Log.Path())
	if err != nil {
		t.Fatalf("reopen log: %v", err)
	}
	defer reopened.Close()
	if len(corrupt) != 0 {
		t.Fatalf("corrupt records: %v", corrupt)
	}
	eng2, err := engine.New(engine.Options{
		Log:       reopened,
		Projector: projection.Projector{PointsPerHour: 3},
		Factory:   event.NewFactory(),
	})
	if err != nil {
		t.Fatalf("rebuild engine: %v", err)
	}
	got := eng2.State()
	if len(got.Tasks) != len(want.Tasks) || len(got.Milestones) != len(want.Milestones) {
		t.Fatalf("replayed state diverged: %+v vs %+v", got, want)
	}
	gotTask := got.Tasks[taskID]
	wantTask := want.Tasks[taskID]
	if gotTask.Status != wantTask.Status || gotTask.StartTime == nil {
		t.Fatalf("replayed task = %+v, want %+v", gotTask, wantTask)
	}
}

func TestSnapshotResumeMatchesFullReplay(t *testing.T) {
	env := newTestEnv(t)
	store := &snapshot.Store{Path: filepath.Join(env.Dir, "snapshot.json")}
	_, _, taskID := seedTask(t, env)

	st := env.Engine.State()
	if err := store.Save(st, env.Engine.AppliedSeq()); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	// more history after the snapshot
	if _, err := env.Engine.StartTask(env.Ctx, taskID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, taskID, nil); err != nil {
		t.Fatal(err)
	}

	reopened, _, err := eventlog.Open(env.Log.Path())
	if err != nil {
		t.Fatalf("reopen log: %v", err)
	}
	defer reopened.Close()
	eng2, err := engine.New(engine.Options{
		Log:       reopened,
		Projector: projection.Projector{PointsPerHour: 3},
		Factory:   event.NewFactory(),
		Snapshots: store,
	})
	if err != nil {
		t.Fatalf("resume engine: %v", err)
	}
	task, err := eng2.Task(taskID)
	if err != nil {
		t.Fatalf("task after resume: %v", err)
	}
	if task.Status != domain.StatusCompleted {
		t.Fatalf("resumed task status = %s, want completed", task.Status)
	}
	full := env.Engine.Statistics()
	resumed := eng2.Statistics()
	if full != resumed {
		t.Fatalf("statistics diverged: full=%+v resumed=%+v", full, resumed)
	}
}

func TestUpdateTaskFields(t *testing.T) {
	env := newTestEnv(t)
	_, _, taskID := seedTask(t, env)

	title := "Build checkout page"
	points := 8
	prio := domain.PriorityEnhance
	task, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID: taskID, Title: &title, EstimatedPoints: &points, Priority: &prio,
		Tags: []string{"web", "frontend", "web"}, TagsSet: true,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.Title != title || task.EstimatedPoints != 8 || task.Priority != prio {
		t.Fatalf("updated task = %+v", task)
	}
	if len(task.Tags) != 2 || task.Tags[0] != "frontend" || task.Tags[1] != "web" {
		t.Fatalf("tags = %v, want deduped sorted", task.Tags)
	}
	if stats := env.Engine.Statistics(); stats.TotalPoints != 8 {
		t.Fatalf("total points = %d, want re-estimated 8", stats.TotalPoints)
	}

	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: taskID}); !isValidation(err) {
		t.Fatalf("empty update: %v", err)
	}
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: "nope"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown task: %v", err)
	}
}

func isValidation(err error) bool {
	var v domain.ValidationError
	return errors.As(err, &v)
}
