package event

import "taskline/internal/domain"

// ProjectCreatedPayload captures the payload for project.created events.
type ProjectCreatedPayload struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func (p ProjectCreatedPayload) EventType() Type    { return TypeProjectCreated }
func (p ProjectCreatedPayload) Entities() []string { return []string{p.ProjectID} }

// ProjectUpdatedPayload captures the payload for project.updated events.
// Nil fields were not touched.
type ProjectUpdatedPayload struct {
	ProjectID   string  `json:"project_id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (p ProjectUpdatedPayload) EventType() Type    { return TypeProjectUpdated }
func (p ProjectUpdatedPayload) Entities() []string { return []string{p.ProjectID} }

// ProjectDeletedPayload is the tombstone for a project. The projection drops
// the project and everything under it; the log keeps the full history.
type ProjectDeletedPayload struct {
	ProjectID string `json:"project_id"`
	Reason    string `json:"reason,omitempty"`
}

func (p ProjectDeletedPayload) EventType() Type    { return TypeProjectDeleted }
func (p ProjectDeletedPayload) Entities() []string { return []string{p.ProjectID} }

// ProjectStatusChangedPayload records a derived project status transition.
// Only the cascade emits these; they are never built from a command.
type ProjectStatusChangedPayload struct {
	ProjectID  string        `json:"project_id"`
	FromStatus domain.Status `json:"from_status"`
	ToStatus   domain.Status `json:"to_status"`
}

func (p ProjectStatusChangedPayload) EventType() Type    { return TypeProjectStatusChanged }
func (p ProjectStatusChangedPayload) Entities() []string { return []string{p.ProjectID} }

// MilestoneCreatedPayload captures the payload for milestone.created events.
type MilestoneCreatedPayload struct {
	MilestoneID string  `json:"milestone_id"`
	ProjectID   string  `json:"project_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

func (p MilestoneCreatedPayload) EventType() Type { return TypeMilestoneCreated }
func (p MilestoneCreatedPayload) Entities() []string {
	return []string{p.MilestoneID, p.ProjectID}
}

// MilestoneUpdatedPayload captures the payload for milestone.updated events.
type MilestoneUpdatedPayload struct {
	MilestoneID string  `json:"milestone_id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	ClearDue    bool    `json:"clear_due,omitempty"`
}

func (p MilestoneUpdatedPayload) EventType() Type    { return TypeMilestoneUpdated }
func (p MilestoneUpdatedPayload) Entities() []string { return []string{p.MilestoneID} }

// MilestoneDeletedPayload is the tombstone for a milestone and its tasks.
type MilestoneDeletedPayload struct {
	MilestoneID string `json:"milestone_id"`
	Reason      string `json:"reason,omitempty"`
}

func (p MilestoneDeletedPayload) EventType() Type    { return TypeMilestoneDeleted }
func (p MilestoneDeletedPayload) Entities() []string { return []string{p.MilestoneID} }

// MilestoneStatusChangedPayload records a derived milestone status transition.
// CompletedDate is stamped when the cascade lands on completed.
type MilestoneStatusChangedPayload struct {
	MilestoneID   string        `json:"milestone_id"`
	FromStatus    domain.Status `json:"from_status"`
	ToStatus      domain.Status `json:"to_status"`
	CompletedDate *string       `json:"completed_date,omitempty"`
}

func (p MilestoneStatusChangedPayload) EventType() Type    { return TypeMilestoneStatusChanged }
func (p MilestoneStatusChangedPayload) Entities() []string { return []string{p.MilestoneID} }

// MilestoneDependencyAddedPayload records a new milestone -> milestone edge.
type MilestoneDependencyAddedPayload struct {
	MilestoneID string `json:"milestone_id"`
	DependsOn   string `json:"depends_on"`
}

func (p MilestoneDependencyAddedPayload) EventType() Type { return TypeMilestoneDependencyAdded }
func (p MilestoneDependencyAddedPayload) Entities() []string {
	return []string{p.MilestoneID, p.DependsOn}
}

// MilestoneDependencyRemovedPayload records a removed milestone edge.
type MilestoneDependencyRemovedPayload struct {
	MilestoneID string `json:"milestone_id"`
	DependsOn   string `json:"depends_on"`
}

func (p MilestoneDependencyRemovedPayload) EventType() Type { return TypeMilestoneDependencyRemoved }
func (p MilestoneDependencyRemovedPayload) Entities() []string {
	return []string{p.MilestoneID, p.DependsOn}
}

// TaskCreatedPayload captures the payload for task.created events.
type TaskCreatedPayload struct {
	TaskID          string          `json:"task_id"`
	MilestoneID     string          `json:"milestone_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Priority        domain.Priority `json:"priority"`
	EstimatedPoints int             `json:"estimated_points"`
	Tags            []string        `json:"tags,omitempty"`
}

func (p TaskCreatedPayload) EventType() Type { return TypeTaskCreated }
func (p TaskCreatedPayload) Entities() []string {
	return []string{p.TaskID, p.MilestoneID}
}

// TaskUpdatedPayload captures the payload for task.updated events.
type TaskUpdatedPayload struct {
	TaskID          string           `json:"task_id"`
	Title           *string          `json:"title,omitempty"`
	Description     *string          `json:"description,omitempty"`
	Priority        *domain.Priority `json:"priority,omitempty"`
	EstimatedPoints *int             `json:"estimated_points,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
	TagsSet         bool             `json:"tags_set,omitempty"`
}

func (p TaskUpdatedPayload) EventType() Type    { return TypeTaskUpdated }
func (p TaskUpdatedPayload) Entities() []string { return []string{p.TaskID} }

// TaskDeletedPayload is the tombstone for a task.
type TaskDeletedPayload struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason,omitempty"`
}

func (p TaskDeletedPayload) EventType() Type    { return TypeTaskDeleted }
func (p TaskDeletedPayload) Entities() []string { return []string{p.TaskID} }

// TaskStartedPayload moves a task not_started -> in_progress.
type TaskStartedPayload struct {
	TaskID    string `json:"task_id"`
	StartTime string `json:"start_time"`
}

func (p TaskStartedPayload) EventType() Type    { return TypeTaskStarted }
func (p TaskStartedPayload) Entities() []string { return []string{p.TaskID} }

// TaskBlockedPayload moves a task in_progress -> blocked. Reason is required.
type TaskBlockedPayload struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason"`
}

func (p TaskBlockedPayload) EventType() Type    { return TypeTaskBlocked }
func (p TaskBlockedPayload) Entities() []string { return []string{p.TaskID} }

// TaskUnblockedPayload moves a task blocked -> in_progress.
type TaskUnblockedPayload struct {
	TaskID string `json:"task_id"`
}

func (p TaskUnblockedPayload) EventType() Type    { return TypeTaskUnblocked }
func (p TaskUnblockedPayload) Entities() []string { return []string{p.TaskID} }

// TaskCompletedPayload moves a task in_progress -> completed. ActualPoints
// defaults to the task's estimate when the command left it unset.
type TaskCompletedPayload struct {
	TaskID       string `json:"task_id"`
	EndTime      string `json:"end_time"`
	ActualPoints *int   `json:"actual_points,omitempty"`
}

func (p TaskCompletedPayload) EventType() Type    { return TypeTaskCompleted }
func (p TaskCompletedPayload) Entities() []string { return []string{p.TaskID} }

// TaskDependencyAddedPayload records a new task -> task edge.
type TaskDependencyAddedPayload struct {
	TaskID    string `json:"task_id"`
	DependsOn string `json:"depends_on"`
}

func (p TaskDependencyAddedPayload) EventType() Type { return TypeTaskDependencyAdded }
func (p TaskDependencyAddedPayload) Entities() []string {
	return []string{p.TaskID, p.DependsOn}
}

// TaskDependencyRemovedPayload records a removed task edge.
type TaskDependencyRemovedPayload struct {
	TaskID    string `json:"task_id"`
	DependsOn string `json:"depends_on"`
}

func (p TaskDependencyRemovedPayload) EventType() Type { return TypeTaskDependencyRemoved }
func (p TaskDependencyRemovedPayload) Entities() []string {
	return []string{p.TaskID, p.DependsOn}
}
