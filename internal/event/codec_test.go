package event_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"taskline/internal/domain"
	"taskline/internal/event"
)

func TestRoundTrip(t *testing.T) {
	due := "2024-03-01T00:00:00Z"
	actual := 4
	factory := event.Factory{
		Now:   func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) },
		NewID: func() string { return "evt-0001" },
	}
	payloads := []event.Payload{
		event.ProjectCreatedPayload{ProjectID: "p-1", Title: "Website", Description: "marketing site"},
		event.MilestoneCreatedPayload{MilestoneID: "m-1", ProjectID: "p-1", Title: "Launch", DueDate: &due},
		event.TaskCreatedPayload{TaskID: "t-1", MilestoneID: "m-1", Title: "Landing page", Priority: domain.PriorityMust, EstimatedPoints: 5, Tags: []string{"frontend"}},
		event.TaskBlockedPayload{TaskID: "t-1", Reason: "waiting on design"},
		event.TaskCompletedPayload{TaskID: "t-1", EndTime: "2024-01-01T13:00:00Z", ActualPoints: &actual},
		event.MilestoneStatusChangedPayload{MilestoneID: "m-1", FromStatus: domain.StatusInProgress, ToStatus: domain.StatusCompleted, CompletedDate: &due},
	}
	for _, p := range payloads {
		evt := factory.New(p)
		line, err := event.Marshal(evt)
		if err != nil {
			t.Fatalf("marshal %s: %v", p.EventType(), err)
		}
		back, err := event.Unmarshal(line)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", p.EventType(), err)
		}
		if back.ID != evt.ID || back.Type != evt.Type || back.Version != evt.Version {
			t.Fatalf("envelope changed: %+v vs %+v", back, evt)
		}
		if !back.Timestamp.Equal(evt.Timestamp) {
			t.Fatalf("%s timestamp changed: %v vs %v", p.EventType(), back.Timestamp, evt.Timestamp)
		}
		if back.Payload.EventType() != p.EventType() {
			t.Fatalf("payload type changed: %s vs %s", back.Payload.EventType(), p.EventType())
		}
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	line := `{"id":"evt-1","type":"task.archived","timestamp":"2024-01-01T12:00:00Z","version":1,"payload":{}}`
	_, err := event.Unmarshal([]byte(line))
	var unknown domain.UnknownEventError
	if !errors.As(err, &unknown) {
		t.Fatalf("want UnknownEventError, got %v", err)
	}
	if unknown.Type != "task.archived" || unknown.Version != 1 {
		t.Fatalf("unknown = %+v", unknown)
	}
}

func TestUnmarshalFutureVersion(t *testing.T) {
	line := `{"id":"evt-1","type":"task.created","timestamp":"2024-01-01T12:00:00Z","version":2,"payload":{}}`
	_, err := event.Unmarshal([]byte(line))
	var unknown domain.UnknownEventError
	if !errors.As(err, &unknown) {
		t.Fatalf("want UnknownEventError, got %v", err)
	}
	if unknown.Version != 2 {
		t.Fatalf("version = %d, want 2", unknown.Version)
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"type":"task.created","timestamp":"2024-01-01T12:00:00Z","version":1,"payload":{}}`,
		`{"id":"evt-1","timestamp":"2024-01-01T12:00:00Z","version":1,"payload":{}}`,
	}
	for _, line := range cases {
		_, err := event.Unmarshal([]byte(line))
		if err == nil {
			t.Fatalf("unmarshal %q: want error", line)
		}
		var unknown domain.UnknownEventError
		if errors.As(err, &unknown) {
			t.Fatalf("unmarshal %q: parse failure misreported as unknown event", line)
		}
	}
}

func TestTypeDomain(t *testing.T) {
	if d := event.TypeTaskStarted.Domain(); d != "task" {
		t.Fatalf("domain = %q, want task", d)
	}
	if d := event.TypeMilestoneDependencyAdded.Domain(); d != "milestone" {
		t.Fatalf("domain = %q, want milestone", d)
	}
}

func TestFactoryDefaults(t *testing.T) {
	factory := event.NewFactory()
	evt := factory.New(event.ProjectCreatedPayload{ProjectID: "p-1", Title: "Website"})
	if evt.ID == "" || strings.Count(evt.ID, "-") != 4 {
		t.Fatalf("expected uuid id, got %q", evt.ID)
	}
	if evt.Version != event.Version {
		t.Fatalf("version = %d, want %d", evt.Version, event.Version)
	}
	if evt.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp not UTC: %v", evt.Timestamp)
	}
}
