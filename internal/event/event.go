package event

import "time"

// Type identifies the kind of an event. The set is closed: the projector
// matches it exhaustively and treats anything else as forward-incompatible.
type Type string

// Project lifecycle events.
const (
	// TypeProjectCreated records the creation of a project.
	TypeProjectCreated Type = "project.created"
	// TypeProjectUpdated records updates to project metadata.
	TypeProjectUpdated Type = "project.updated"
	// TypeProjectDeleted is the project tombstone.
	TypeProjectDeleted Type = "project.deleted"
	// TypeProjectStatusChanged records a derived project status transition.
	TypeProjectStatusChanged Type = "project.status_changed"
)

// Milestone lifecycle events.
const (
	TypeMilestoneCreated           Type = "milestone.created"
	TypeMilestoneUpdated           Type = "milestone.updated"
	TypeMilestoneDeleted           Type = "milestone.deleted"
	TypeMilestoneStatusChanged     Type = "milestone.status_changed"
	TypeMilestoneDependencyAdded   Type = "milestone.dependency_added"
	TypeMilestoneDependencyRemoved Type = "milestone.dependency_removed"
)

// Task lifecycle events. Started/blocked/unblocked/completed are the only
// task status moves; the transition table is enforced before these are built.
const (
	TypeTaskCreated           Type = "task.created"
	TypeTaskUpdated           Type = "task.updated"
	TypeTaskDeleted           Type = "task.deleted"
	TypeTaskStarted           Type = "task.started"
	TypeTaskBlocked           Type = "task.blocked"
	TypeTaskUnblocked         Type = "task.unblocked"
	TypeTaskCompleted         Type = "task.completed"
	TypeTaskDependencyAdded   Type = "task.dependency_added"
	TypeTaskDependencyRemoved Type = "task.dependency_removed"
)

// Domain returns the aggregate prefix of the type ("project", "milestone",
// "task").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// Version is the current payload schema version stamped on new events.
const Version = 1

// Event is one immutable record in the log. Once constructed it is never
// modified; corrections are new events.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Version   int       `json:"version"`
	Payload   Payload   `json:"payload"`
}

// Payload is the closed union of event payloads. Entities lists every
// project/milestone/task id the payload references, for entity-scoped log
// queries.
type Payload interface {
	EventType() Type
	Entities() []string
}
