package projection_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"taskline/internal/domain"
	"taskline/internal/event"
	"taskline/internal/eventlog"
	"taskline/internal/projection"
)

// history builds log entries from payloads with deterministic ids and
// timestamps one minute apart.
func history(payloads ...event.Payload) []eventlog.Entry {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	out := make([]eventlog.Entry, 0, len(payloads))
	for i, p := range payloads {
		out = append(out, eventlog.Entry{
			Seq: uint64(i + 1),
			Event: event.Event{
				ID:        fmt.Sprintf("evt-%04d", i+1),
				Type:      p.EventType(),
				Timestamp: base.Add(time.Duration(i) * time.Minute),
				Version:   event.Version,
				Payload:   p,
			},
		})
	}
	return out
}

func seedHistory() []eventlog.Entry {
	return history(
		event.ProjectCreatedPayload{ProjectID: "p-1", Title: "Website"},
		event.MilestoneCreatedPayload{MilestoneID: "m-1", ProjectID: "p-1", Title: "Launch"},
		event.TaskCreatedPayload{TaskID: "t-1", MilestoneID: "m-1", Title: "Landing page", Priority: domain.PriorityMust, EstimatedPoints: 5},
		event.TaskCreatedPayload{TaskID: "t-2", MilestoneID: "m-1", Title: "Copy", Priority: domain.PriorityEnhance, EstimatedPoints: 2},
	)
}

func TestReplayIsDeterministic(t *testing.T) {
	p := projection.Projector{PointsPerHour: 3}
	entries := append(seedHistory(), history(
		event.TaskStartedPayload{TaskID: "t-1", StartTime: "2024-01-01T12:10:00Z"},
		event.TaskCompletedPayload{TaskID: "t-1", EndTime: "2024-01-01T13:10:00Z"},
	)...)

	first, err := p.Project(entries)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	second, err := p.Project(entries)
	if err != nil {
		t.Fatalf("project again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("replay diverged:\n%+v\n%+v", first, second)
	}
}

func TestCascadePrecedence(t *testing.T) {
	p := projection.Projector{}

	cases := []struct {
		name     string
		children []domain.Status
		want     domain.Status
	}{
		{"no children", nil, domain.StatusNotStarted},
		{"all not started", []domain.Status{domain.StatusNotStarted, domain.StatusNotStarted}, domain.StatusNotStarted},
		{"one in progress", []domain.Status{domain.StatusNotStarted, domain.StatusInProgress}, domain.StatusInProgress},
		{"in progress beats blocked", []domain.Status{domain.StatusBlocked, domain.StatusInProgress}, domain.StatusInProgress},
		{"blocked and idle", []domain.Status{domain.StatusBlocked, domain.StatusNotStarted}, domain.StatusBlocked},
		{"blocked and done", []domain.Status{domain.StatusBlocked, domain.StatusCompleted}, domain.StatusBlocked},
		{"all completed", []domain.Status{domain.StatusCompleted, domain.StatusCompleted}, domain.StatusCompleted},
		{"some completed", []domain.Status{domain.StatusCompleted, domain.StatusNotStarted}, domain.StatusNotStarted},
	}
	for _, tc := range cases {
		if got := projection.ComputeStatus(tc.children); got != tc.want {
			t.Errorf("%s: ComputeStatus = %s, want %s", tc.name, got, tc.want)
		}
	}

	// The same precedence drives milestone status through the fold.
	st, err := p.Project(append(seedHistory(), history(
		event.TaskStartedPayload{TaskID: "t-1", StartTime: "2024-01-01T12:10:00Z"},
		event.TaskBlockedPayload{TaskID: "t-1", Reason: "waiting on design"},
	)...))
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if got := st.Milestones["m-1"].Status; got != domain.StatusBlocked {
		t.Fatalf("milestone status = %s, want blocked", got)
	}
	if got := st.Projects["p-1"].Status; got != domain.StatusBlocked {
		t.Fatalf("project status = %s, want blocked", got)
	}
}

func TestCompletionStampsDates(t *testing.T) {
	p := projection.Projector{}
	entries := history(
		event.ProjectCreatedPayload{ProjectID: "p-1", Title: "Website"},
		event.MilestoneCreatedPayload{MilestoneID: "m-1", ProjectID: "p-1", Title: "Launch"},
		event.TaskCreatedPayload{TaskID: "t-1", MilestoneID: "m-1", Title: "Landing page", EstimatedPoints: 5},
		event.TaskStartedPayload{TaskID: "t-1", StartTime: "2024-01-01T12:03:00Z"},
		event.TaskCompletedPayload{TaskID: "t-1", EndTime: "2024-01-01T12:04:00Z"},
	)
	st, err := p.Project(entries)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	ms := st.Milestones["m-1"]
	if ms.Status != domain.StatusCompleted {
		t.Fatalf("milestone status = %s", ms.Status)
	}
	if ms.CompletedDate == nil || *ms.CompletedDate != "2024-01-01T12:04:00Z" {
		t.Fatalf("completed date = %v", ms.CompletedDate)
	}
	task := st.Tasks["t-1"]
	if task.ActualPoints == nil || *task.ActualPoints != 5 {
		t.Fatalf("actual points = %v, want estimate fallback 5", task.ActualPoints)
	}
	if st.Projects["p-1"].Status != domain.StatusCompleted {
		t.Fatalf("project status = %s", st.Projects["p-1"].Status)
	}
}

func TestDerivedStatusEventsFoldAsNoOps(t *testing.T) {
	p := projection.Projector{}
	base := append(seedHistory(), history(
		event.TaskStartedPayload{TaskID: "t-1", StartTime: "2024-01-01T12:10:00Z"},
	)...)
	st, err := p.Project(base)
	if err != nil {
		t.Fatalf("project: %v", err)
	}

	// The cascade has already moved milestone and project to in_progress;
	// the derived records replay without changing anything.
	withDerived := append(base, history(
		event.MilestoneStatusChangedPayload{MilestoneID: "m-1", FromStatus: domain.StatusNotStarted, ToStatus: domain.StatusInProgress},
		event.ProjectStatusChangedPayload{ProjectID: "p-1", FromStatus: domain.StatusNotStarted, ToStatus: domain.StatusInProgress},
	)...)
	st2, err := p.Project(withDerived)
	if err != nil {
		t.Fatalf("project with derived: %v", err)
	}
	if st.Milestones["m-1"].Status != st2.Milestones["m-1"].Status {
		t.Fatalf("milestone status diverged: %s vs %s", st.Milestones["m-1"].Status, st2.Milestones["m-1"].Status)
	}
	if st.Projects["p-1"].Status != st2.Projects["p-1"].Status {
		t.Fatalf("project status diverged")
	}
}

func TestProjectTombstoneCascades(t *testing.T) {
	p := projection.Projector{}
	entries := append(seedHistory(), history(
		event.TaskDependencyAddedPayload{TaskID: "t-2", DependsOn: "t-1"},
		event.ProjectDeletedPayload{ProjectID: "p-1", Reason: "cancelled"},
	)...)
	st, err := p.Project(entries)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(st.Projects) != 0 || len(st.Milestones) != 0 || len(st.Tasks) != 0 {
		t.Fatalf("tombstone left entities behind: %d/%d/%d",
			len(st.Projects), len(st.Milestones), len(st.Tasks))
	}
	if len(st.Relations.TaskMilestone) != 0 || len(st.Relations.MilestoneProject) != 0 {
		t.Fatalf("tombstone left relations behind: %+v", st.Relations)
	}
	if st.Statistics.TotalTasks != 0 {
		t.Fatalf("statistics not recomputed: %+v", st.Statistics)
	}
}

func TestTaskDeleteDropsIncomingEdges(t *testing.T) {
	p := projection.Projector{}
	entries := append(seedHistory(), history(
		event.TaskDependencyAddedPayload{TaskID: "t-2", DependsOn: "t-1"},
		event.TaskDeletedPayload{TaskID: "t-1"},
	)...)
	st, err := p.Project(entries)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if deps := st.Tasks["t-2"].DependsOn; len(deps) != 0 {
		t.Fatalf("t-2 still depends on deleted task: %v", deps)
	}
	if _, ok := st.Relations.TaskDependents["t-1"]; ok {
		t.Fatalf("dependents entry survived delete")
	}
}

func TestStatisticsAverage(t *testing.T) {
	p := projection.Projector{PointsPerHour: 3}

	// No completed durations yet: the seeded average stands.
	st, err := p.Project(seedHistory())
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if st.Statistics.TotalTasks != 2 || st.Statistics.TotalPoints != 7 {
		t.Fatalf("stats = %+v", st.Statistics)
	}
	if st.Statistics.AveragePointsPerHour != 3 {
		t.Fatalf("seeded average = %v, want 3", st.Statistics.AveragePointsPerHour)
	}

	// A 30 minute task earning 5 points averages to 10 points per hour.
	st, err = p.Project(append(seedHistory(), history(
		event.TaskStartedPayload{TaskID: "t-1", StartTime: "2024-01-01T12:00:00Z"},
		event.TaskCompletedPayload{TaskID: "t-1", EndTime: "2024-01-01T12:30:00Z"},
	)...))
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	stats := st.Statistics
	if stats.CompletedTasks != 1 || stats.EarnedPoints != 5 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.AveragePointsPerHour != 10 {
		t.Fatalf("average = %v, want 10", stats.AveragePointsPerHour)
	}
}

func TestUnknownEventIsFatal(t *testing.T) {
	p := projection.Projector{}
	st := p.Empty()
	err := p.Fold(st, event.Event{ID: "evt-1", Type: "task.archived", Version: 1})
	var unknown domain.UnknownEventError
	if !errors.As(err, &unknown) {
		t.Fatalf("want UnknownEventError, got %v", err)
	}
}
