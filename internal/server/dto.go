package server

import (
	"taskline/internal/domain"
)

// StatusResponse summarizes the workspace.
type StatusResponse struct {
	Projects   int                   `json:"projects"`
	Milestones int                   `json:"milestones"`
	Tasks      int                   `json:"tasks"`
	TaskCounts map[domain.Status]int `json:"task_counts"`
	AppliedSeq uint64                `json:"applied_seq"`
}

type CreateProjectRequest struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type UpdateProjectRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type CreateMilestoneRequest struct {
	ID          string  `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
}

type UpdateMilestoneRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	ClearDue    bool    `json:"clear_due,omitempty"`
}

type CreateTaskRequest struct {
	ID              string   `json:"id,omitempty"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Priority        string   `json:"priority,omitempty" enum:"must,enhance"`
	EstimatedPoints int      `json:"estimated_points,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	DependsOn       []string `json:"depends_on,omitempty"`
}

type UpdateTaskRequest struct {
	Title           *string  `json:"title,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Priority        *string  `json:"priority,omitempty" enum:"must,enhance"`
	EstimatedPoints *int     `json:"estimated_points,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	TagsSet         bool     `json:"tags_set,omitempty"`
}

type BlockTaskRequest struct {
	Reason string `json:"reason"`
}

type CompleteTaskRequest struct {
	ActualPoints *int `json:"actual_points,omitempty"`
}

type AddDependencyRequest struct {
	DependsOn string `json:"depends_on"`
}
