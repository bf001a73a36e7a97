package domain

// Status is shared by projects, milestones and tasks. Milestone and project
// statuses are derived from their children and never set directly.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// Priority marks a task as required or nice-to-have.
type Priority string

const (
	PriorityMust    Priority = "must"
	PriorityEnhance Priority = "enhance"
)

func (p Priority) Valid() bool {
	return p == PriorityMust || p == PriorityEnhance
}

type Project struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Status       Status   `json:"status"`
	CreatedAt    string   `json:"created_at" format:"date-time"`
	UpdatedAt    string   `json:"updated_at" format:"date-time"`
	MilestoneIDs []string `json:"milestone_ids,omitempty"`
}

type Milestone struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"project_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Status        Status   `json:"status"`
	DueDate       *string  `json:"due_date,omitempty" format:"date-time"`
	CompletedDate *string  `json:"completed_date,omitempty" format:"date-time"`
	TaskIDs       []string `json:"task_ids,omitempty"`
	DependsOn     []string `json:"depends_on,omitempty"`
}

type Task struct {
	ID              string   `json:"id"`
	MilestoneID     string   `json:"milestone_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Status          Status   `json:"status"`
	Priority        Priority `json:"priority"`
	EstimatedPoints int      `json:"estimated_points"`
	ActualPoints    *int     `json:"actual_points,omitempty"`
	StartTime       *string  `json:"start_time,omitempty" format:"date-time"`
	EndTime         *string  `json:"end_time,omitempty" format:"date-time"`
	BlockReason     string   `json:"block_reason,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	DependsOn       []string `json:"depends_on,omitempty"`
}

// Statistics is the aggregate snapshot recomputed whenever a task completes.
type Statistics struct {
	TotalTasks           int     `json:"total_tasks"`
	CompletedTasks       int     `json:"completed_tasks"`
	TotalPoints          int     `json:"total_points"`
	EarnedPoints         int     `json:"earned_points"`
	AveragePointsPerHour float64 `json:"average_points_per_hour"`
}

// Relations are the reverse index tables kept alongside the entity maps:
// child -> parent lookups plus reverse dependency adjacency. Forward adjacency
// lives on the entities themselves (MilestoneIDs, TaskIDs, DependsOn).
type Relations struct {
	MilestoneProject    map[string]string   `json:"milestone_project"`
	TaskMilestone       map[string]string   `json:"task_milestone"`
	TaskDependents      map[string][]string `json:"task_dependents,omitempty"`
	MilestoneDependents map[string][]string `json:"milestone_dependents,omitempty"`
}

// AppState is the projection of the event log: the aggregate root all reads go
// through. It is only ever mutated by the projector.
type AppState struct {
	Projects   map[string]Project   `json:"projects"`
	Milestones map[string]Milestone `json:"milestones"`
	Tasks      map[string]Task      `json:"tasks"`
	Relations  Relations            `json:"relations"`
	Statistics Statistics           `json:"statistics"`
}

// NewAppState returns the canonical empty state every replay starts from.
func NewAppState() *AppState {
	return &AppState{
		Projects:   map[string]Project{},
		Milestones: map[string]Milestone{},
		Tasks:      map[string]Task{},
		Relations: Relations{
			MilestoneProject:    map[string]string{},
			TaskMilestone:       map[string]string{},
			TaskDependents:      map[string][]string{},
			MilestoneDependents: map[string][]string{},
		},
	}
}

// Clone returns a deep copy so callers can never mutate shared state.
func (s *AppState) Clone() *AppState {
	out := &AppState{
		Projects:   make(map[string]Project, len(s.Projects)),
		Milestones: make(map[string]Milestone, len(s.Milestones)),
		Tasks:      make(map[string]Task, len(s.Tasks)),
		Relations: Relations{
			MilestoneProject:    copyStringMap(s.Relations.MilestoneProject),
			TaskMilestone:       copyStringMap(s.Relations.TaskMilestone),
			TaskDependents:      copySliceMap(s.Relations.TaskDependents),
			MilestoneDependents: copySliceMap(s.Relations.MilestoneDependents),
		},
		Statistics: s.Statistics,
	}
	for id, p := range s.Projects {
		p.MilestoneIDs = copyStrings(p.MilestoneIDs)
		out.Projects[id] = p
	}
	for id, m := range s.Milestones {
		m.TaskIDs = copyStrings(m.TaskIDs)
		m.DependsOn = copyStrings(m.DependsOn)
		m.DueDate = copyStringPtr(m.DueDate)
		m.CompletedDate = copyStringPtr(m.CompletedDate)
		out.Milestones[id] = m
	}
	for id, t := range s.Tasks {
		t.Tags = copyStrings(t.Tags)
		t.DependsOn = copyStrings(t.DependsOn)
		t.ActualPoints = copyIntPtr(t.ActualPoints)
		t.StartTime = copyStringPtr(t.StartTime)
		t.EndTime = copyStringPtr(t.EndTime)
		out.Tasks[id] = t
	}
	return out
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copySliceMap(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = copyStrings(v)
	}
	return out
}

func copyStringPtr(in *string) *string {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}

func copyIntPtr(in *int) *int {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}
