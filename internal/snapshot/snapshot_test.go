package snapshot_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taskline/internal/domain"
	"taskline/internal/snapshot"
)

func testState() *domain.AppState {
	st := domain.NewAppState()
	st.Projects["p-1"] = domain.Project{
		ID: "p-1", Title: "Website", Status: domain.StatusInProgress,
		MilestoneIDs: []string{"m-1"},
	}
	st.Milestones["m-1"] = domain.Milestone{
		ID: "m-1", ProjectID: "p-1", Title: "Launch",
		Status: domain.StatusInProgress, TaskIDs: []string{"t-1"},
	}
	st.Tasks["t-1"] = domain.Task{
		ID: "t-1", MilestoneID: "m-1", Title: "Landing page",
		Status: domain.StatusInProgress, Priority: domain.PriorityMust, EstimatedPoints: 5,
	}
	st.Relations.MilestoneProject["m-1"] = "p-1"
	st.Relations.TaskMilestone["t-1"] = "m-1"
	st.Statistics = domain.Statistics{TotalTasks: 1, TotalPoints: 5, AveragePointsPerHour: 3}
	return st
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := snapshot.Store{
		Path: filepath.Join(t.TempDir(), "snapshot.json"),
		Now:  func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) },
	}
	if err := store.Save(testState(), 42); err != nil {
		t.Fatalf("save: %v", err)
	}
	st, seq, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if seq != 42 {
		t.Fatalf("applied seq = %d, want 42", seq)
	}
	if st.Projects["p-1"].Title != "Website" || st.Tasks["t-1"].EstimatedPoints != 5 {
		t.Fatalf("state lost in round trip: %+v", st)
	}
	if st.Relations.TaskMilestone["t-1"] != "m-1" {
		t.Fatalf("relations lost: %+v", st.Relations)
	}
	if st.Statistics.AveragePointsPerHour != 3 {
		t.Fatalf("statistics lost: %+v", st.Statistics)
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := snapshot.Store{Path: filepath.Join(t.TempDir(), "snapshot.json")}
	st, seq, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st != nil || seq != 0 {
		t.Fatalf("missing snapshot: got %v, %d", st, seq)
	}
}

func TestLoadVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	doc := `{"version":99,"applied_seq":7,"projects":{},"milestones":{},"tasks":{},"relations":{},"statistics":{}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err := snapshot.Store{Path: path}.Load()
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Fatalf("want version error, got %v", err)
	}
}

func TestLoadCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err := snapshot.Store{Path: path}.Load()
	if err == nil {
		t.Fatal("corrupt snapshot loaded without error")
	}
}

func TestLoadNormalizesEmptyMaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	doc := `{"version":1,"applied_seq":0,"relations":{},"statistics":{}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	st, _, err := snapshot.Store{Path: path}.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Projects == nil || st.Milestones == nil || st.Tasks == nil {
		t.Fatal("entity maps not normalized")
	}
	if st.Relations.MilestoneProject == nil || st.Relations.TaskDependents == nil {
		t.Fatal("relation maps not normalized")
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	store := snapshot.Store{Path: filepath.Join(t.TempDir(), "snapshot.json")}
	if err := store.Save(testState(), 1); err != nil {
		t.Fatalf("first save: %v", err)
	}
	st := testState()
	st.Projects["p-2"] = domain.Project{ID: "p-2", Title: "App", Status: domain.StatusNotStarted}
	if err := store.Save(st, 2); err != nil {
		t.Fatalf("second save: %v", err)
	}
	loaded, seq, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if seq != 2 || len(loaded.Projects) != 2 {
		t.Fatalf("seq = %d, projects = %d", seq, len(loaded.Projects))
	}
	if _, err := os.Stat(store.Path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}
