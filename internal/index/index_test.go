package index_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"taskline/internal/db"
	"taskline/internal/domain"
	"taskline/internal/event"
	"taskline/internal/eventlog"
	"taskline/internal/index"
	"taskline/internal/migrate"
)

func openIndex(t *testing.T) index.Index {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return index.Index{DB: conn}
}

func seedEntries() []eventlog.Entry {
	payloads := []event.Payload{
		event.ProjectCreatedPayload{ProjectID: "p-1", Title: "Website"},
		event.MilestoneCreatedPayload{MilestoneID: "m-1", ProjectID: "p-1", Title: "Launch"},
		event.TaskCreatedPayload{TaskID: "t-1", MilestoneID: "m-1", Title: "Landing page", Priority: domain.PriorityMust, EstimatedPoints: 5},
		event.TaskStartedPayload{TaskID: "t-1", StartTime: "2024-01-01T12:03:00Z"},
	}
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

func record(t *testing.T, ix index.Index, entries []eventlog.Entry) {
	t.Helper()
	ctx := context.Background()
	for _, e := range entries {
		if err := ix.Record(ctx, e); err != nil {
			t.Fatalf("record seq %d: %v", e.Seq, err)
		}
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	ix := openIndex(t)
	entries := seedEntries()
	record(t, ix, entries)
	record(t, ix, entries) // replay after crash

	seq, err := ix.LastSeq(context.Background())
	if err != nil {
		t.Fatalf("last seq: %v", err)
	}
	if seq != 4 {
		t.Fatalf("last seq = %d, want 4", seq)
	}
	rows, err := ix.Latest(context.Background(), 100, index.QueryFilters{})
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
}

func TestLatestFilters(t *testing.T) {
	ix := openIndex(t)
	record(t, ix, seedEntries())
	ctx := context.Background()

	rows, err := ix.Latest(ctx, 2, index.QueryFilters{})
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(rows) != 2 || rows[0].Seq != 3 || rows[1].Seq != 4 {
		t.Fatalf("latest 2 = %+v", rows)
	}

	rows, err = ix.Latest(ctx, 10, index.QueryFilters{Type: "task.started"})
	if err != nil {
		t.Fatalf("latest by type: %v", err)
	}
	if len(rows) != 1 || rows[0].Seq != 4 {
		t.Fatalf("type filter = %+v", rows)
	}

	rows, err = ix.Latest(ctx, 10, index.QueryFilters{EntityID: "m-1"})
	if err != nil {
		t.Fatalf("latest by entity: %v", err)
	}
	if len(rows) != 2 || rows[0].Seq != 2 || rows[1].Seq != 3 {
		t.Fatalf("entity filter = %+v", rows)
	}

	rows, err = ix.Latest(ctx, 10, index.QueryFilters{EntityID: "t-1", Type: "task.created"})
	if err != nil {
		t.Fatalf("latest combined: %v", err)
	}
	if len(rows) != 1 || rows[0].Seq != 3 {
		t.Fatalf("combined filter = %+v", rows)
	}
}

func TestByTimeRange(t *testing.T) {
	ix := openIndex(t)
	record(t, ix, seedEntries())
	rows, err := ix.ByTimeRange(context.Background(),
		time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 12, 2, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("by time range: %v", err)
	}
	if len(rows) != 2 || rows[0].Seq != 2 || rows[1].Seq != 3 {
		t.Fatalf("range = %+v", rows)
	}
}

func TestByID(t *testing.T) {
	ix := openIndex(t)
	record(t, ix, seedEntries())
	ctx := context.Background()

	row, err := ix.ByID(ctx, "evt-0002")
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if row.Seq != 2 || row.Type != "milestone.created" {
		t.Fatalf("row = %+v", row)
	}
	if len(row.Entities) != 2 {
		t.Fatalf("entities = %v", row.Entities)
	}

	if _, err := ix.ByID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing id: want ErrNotFound, got %v", err)
	}
}

func TestRebuild(t *testing.T) {
	ix := openIndex(t)
	record(t, ix, seedEntries())
	ctx := context.Background()

	// Rebuild from a shorter log, as if the index had drifted.
	if err := ix.Rebuild(ctx, seedEntries()[:2]); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	seq, err := ix.LastSeq(ctx)
	if err != nil {
		t.Fatalf("last seq: %v", err)
	}
	if seq != 2 {
		t.Fatalf("last seq = %d, want 2", seq)
	}
	var count int
	if err := ix.DB.QueryRow(`SELECT COUNT(*) FROM event_entities`).Scan(&count); err != nil && err != sql.ErrNoRows {
		t.Fatalf("count entities: %v", err)
	}
	if count != 3 {
		t.Fatalf("entity rows = %d, want 3", count)
	}
}
