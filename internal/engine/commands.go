package engine

import (
	"context"
	"sort"
	"time"

	"taskline/internal/domain"
	"taskline/internal/event"
)

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	ID          string
	Title       string
	Description string
}

func (e *Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if opts.Title == "" {
		return domain.Project{}, domain.Validationf("project title is required")
	}
	id := opts.ID
	if id == "" {
		id = e.Factory.ID()
	}
	if _, exists := e.state.Projects[id]; exists {
		return domain.Project{}, domain.Validationf("project %s already exists", id)
	}
	evt := e.Factory.New(event.ProjectCreatedPayload{
		ProjectID:   id,
		Title:       opts.Title,
		Description: opts.Description,
	})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Project{}, err
	}
	return cloneProject(e.state.Projects[id]), nil
}

// ProjectUpdateOptions carries the touched fields; nil means leave alone.
type ProjectUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
}

func (e *Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.state.Projects[opts.ID]; !ok {
		return domain.Project{}, domain.NotFoundError{Kind: "project", ID: opts.ID}
	}
	if opts.Title != nil && *opts.Title == "" {
		return domain.Project{}, domain.Validationf("project title must not be empty")
	}
	if opts.Title == nil && opts.Description == nil {
		return domain.Project{}, domain.Validationf("nothing to update")
	}
	evt := e.Factory.New(event.ProjectUpdatedPayload{
		ProjectID:   opts.ID,
		Title:       opts.Title,
		Description: opts.Description,
	})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Project{}, err
	}
	return cloneProject(e.state.Projects[opts.ID]), nil
}

// DeleteProject tombstones a project and everything under it.
func (e *Engine) DeleteProject(ctx context.Context, id, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.state.Projects[id]; !ok {
		return domain.NotFoundError{Kind: "project", ID: id}
	}
	return e.commit(ctx, e.Factory.New(event.ProjectDeletedPayload{ProjectID: id, Reason: reason}))
}

// MilestoneCreateOptions are parameters for creating a milestone.
type MilestoneCreateOptions struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	DueDate     *string
}

func (e *Engine) CreateMilestone(ctx context.Context, opts MilestoneCreateOptions) (domain.Milestone, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if opts.Title == "" {
		return domain.Milestone{}, domain.Validationf("milestone title is required")
	}
	if _, ok := e.state.Projects[opts.ProjectID]; !ok {
		return domain.Milestone{}, domain.NotFoundError{Kind: "project", ID: opts.ProjectID}
	}
	if err := validDate(opts.DueDate); err != nil {
		return domain.Milestone{}, err
	}
	id := opts.ID
	if id == "" {
		id = e.Factory.ID()
	}
	if _, exists := e.state.Milestones[id]; exists {
		return domain.Milestone{}, domain.Validationf("milestone %s already exists", id)
	}
	evt := e.Factory.New(event.MilestoneCreatedPayload{
		MilestoneID: id,
		ProjectID:   opts.ProjectID,
		Title:       opts.Title,
		Description: opts.Description,
		DueDate:     opts.DueDate,
	})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Milestone{}, err
	}
	return cloneMilestone(e.state.Milestones[id]), nil
}

// MilestoneUpdateOptions carries the touched fields. ClearDue removes the due
// date; it wins over DueDate.
type MilestoneUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	DueDate     *string
	ClearDue    bool
}

func (e *Engine) UpdateMilestone(ctx context.Context, opts MilestoneUpdateOptions) (domain.Milestone, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.state.Milestones[opts.ID]; !ok {
		return domain.Milestone{}, domain.NotFoundError{Kind: "milestone", ID: opts.ID}
	}
	if opts.Title != nil && *opts.Title == "" {
		return domain.Milestone{}, domain.Validationf("milestone title must not be empty")
	}
	if err := validDate(opts.DueDate); err != nil {
		return domain.Milestone{}, err
	}
	if opts.Title == nil && opts.Description == nil && opts.DueDate == nil && !opts.ClearDue {
		return domain.Milestone{}, domain.Validationf("nothing to update")
	}
	evt := e.Factory.New(event.MilestoneUpdatedPayload{
		MilestoneID: opts.ID,
		Title:       opts.Title,
		Description: opts.Description,
		DueDate:     opts.DueDate,
		ClearDue:    opts.ClearDue,
	})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Milestone{}, err
	}
	return cloneMilestone(e.state.Milestones[opts.ID]), nil
}

// DeleteMilestone tombstones a milestone and its tasks.
func (e *Engine) DeleteMilestone(ctx context.Context, id, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.state.Milestones[id]; !ok {
		return domain.NotFoundError{Kind: "milestone", ID: id}
	}
	return e.commit(ctx, e.Factory.New(event.MilestoneDeletedPayload{MilestoneID: id, Reason: reason}))
}

// AddMilestoneDependency records that id cannot start before dependsOn is
// done. The edge is rejected when either end is missing, when it already
// exists, or when it would close a cycle.
func (e *Engine) AddMilestoneDependency(ctx context.Context, id, dependsOn string) (domain.Milestone, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.state.Milestones[id]
	if !ok {
		return domain.Milestone{}, domain.NotFoundError{Kind: "milestone", ID: id}
	}
	if _, ok := e.state.Milestones[dependsOn]; !ok {
		return domain.Milestone{}, domain.NotFoundError{Kind: "milestone", ID: dependsOn}
	}
	if contains(m.DependsOn, dependsOn) {
		return domain.Milestone{}, domain.Validationf("milestone %s already depends on %s", id, dependsOn)
	}
	if err := domain.EnsureNoCycle(milestoneAdjacency(e.state), id, dependsOn); err != nil {
		return domain.Milestone{}, err
	}
	evt := e.Factory.New(event.MilestoneDependencyAddedPayload{MilestoneID: id, DependsOn: dependsOn})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Milestone{}, err
	}
	return cloneMilestone(e.state.Milestones[id]), nil
}

func (e *Engine) RemoveMilestoneDependency(ctx context.Context, id, dependsOn string) (domain.Milestone, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.state.Milestones[id]
	if !ok {
		return domain.Milestone{}, domain.NotFoundError{Kind: "milestone", ID: id}
	}
	if !contains(m.DependsOn, dependsOn) {
		return domain.Milestone{}, domain.Validationf("milestone %s does not depend on %s", id, dependsOn)
	}
	evt := e.Factory.New(event.MilestoneDependencyRemovedPayload{MilestoneID: id, DependsOn: dependsOn})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Milestone{}, err
	}
	return cloneMilestone(e.state.Milestones[id]), nil
}

// TaskCreateOptions are parameters for creating a task. Priority defaults to
// must.
type TaskCreateOptions struct {
	ID              string
	MilestoneID     string
	Title           string
	Description     string
	Priority        domain.Priority
	EstimatedPoints int
	Tags            []string
	DependsOn       []string
}

func (e *Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if opts.Title == "" {
		return domain.Task{}, domain.Validationf("task title is required")
	}
	if _, ok := e.state.Milestones[opts.MilestoneID]; !ok {
		return domain.Task{}, domain.NotFoundError{Kind: "milestone", ID: opts.MilestoneID}
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMust
	}
	if !opts.Priority.Valid() {
		return domain.Task{}, domain.Validationf("invalid priority %q", opts.Priority)
	}
	if opts.EstimatedPoints < 0 {
		return domain.Task{}, domain.Validationf("estimated points must not be negative")
	}
	id := opts.ID
	if id == "" {
		id = e.Factory.ID()
	}
	if _, exists := e.state.Tasks[id]; exists {
		return domain.Task{}, domain.Validationf("task %s already exists", id)
	}

	// Validate dependency edges against the graph as it will look once the
	// task exists, so a batch like a->b, a->c is checked edge by edge.
	adjacency := taskAdjacency(e.state)
	deps := dedupe(opts.DependsOn)
	for _, dep := range deps {
		if dep == id {
			return domain.Task{}, domain.CycleError{From: id, To: dep, Path: []string{id, dep}}
		}
		if _, ok := e.state.Tasks[dep]; !ok {
			return domain.Task{}, domain.NotFoundError{Kind: "task", ID: dep}
		}
		if err := domain.EnsureNoCycle(adjacency, id, dep); err != nil {
			return domain.Task{}, err
		}
		adjacency[id] = append(adjacency[id], dep)
	}

	evts := []event.Event{e.Factory.New(event.TaskCreatedPayload{
		TaskID:          id,
		MilestoneID:     opts.MilestoneID,
		Title:           opts.Title,
		Description:     opts.Description,
		Priority:        opts.Priority,
		EstimatedPoints: opts.EstimatedPoints,
		Tags:            dedupe(opts.Tags),
	})}
	for _, dep := range deps {
		evts = append(evts, e.Factory.New(event.TaskDependencyAddedPayload{TaskID: id, DependsOn: dep}))
	}
	if err := e.commit(ctx, evts...); err != nil {
		return domain.Task{}, err
	}
	return cloneTask(e.state.Tasks[id]), nil
}

// TaskUpdateOptions carries the touched fields. TagsSet distinguishes "replace
// tags with this set" from "leave tags alone".
type TaskUpdateOptions struct {
	ID              string
	Title           *string
	Description     *string
	Priority        *domain.Priority
	EstimatedPoints *int
	Tags            []string
	TagsSet         bool
}

func (e *Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.state.Tasks[opts.ID]; !ok {
		return domain.Task{}, domain.NotFoundError{Kind: "task", ID: opts.ID}
	}
	if opts.Title != nil && *opts.Title == "" {
		return domain.Task{}, domain.Validationf("task title must not be empty")
	}
	if opts.Priority != nil && !opts.Priority.Valid() {
		return domain.Task{}, domain.Validationf("invalid priority %q", *opts.Priority)
	}
	if opts.EstimatedPoints != nil && *opts.EstimatedPoints < 0 {
		return domain.Task{}, domain.Validationf("estimated points must not be negative")
	}
	if opts.Title == nil && opts.Description == nil && opts.Priority == nil &&
		opts.EstimatedPoints == nil && !opts.TagsSet {
		return domain.Task{}, domain.Validationf("nothing to update")
	}
	evt := e.Factory.New(event.TaskUpdatedPayload{
		TaskID:          opts.ID,
		Title:           opts.Title,
		Description:     opts.Description,
		Priority:        opts.Priority,
		EstimatedPoints: opts.EstimatedPoints,
		Tags:            dedupe(opts.Tags),
		TagsSet:         opts.TagsSet,
	})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Task{}, err
	}
	return cloneTask(e.state.Tasks[opts.ID]), nil
}

// DeleteTask tombstones a task.
func (e *Engine) DeleteTask(ctx context.Context, id, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.state.Tasks[id]; !ok {
		return domain.NotFoundError{Kind: "task", ID: id}
	}
	return e.commit(ctx, e.Factory.New(event.TaskDeletedPayload{TaskID: id, Reason: reason}))
}

// StartTask moves a task not_started -> in_progress and stamps its start
// time.
func (e *Engine) StartTask(ctx context.Context, id string) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.state.Tasks[id]
	if !ok {
		return domain.Task{}, domain.NotFoundError{Kind: "task", ID: id}
	}
	if err := domain.EnsureTaskTransition(t.Status, domain.StatusInProgress); err != nil {
		return domain.Task{}, err
	}
	evt := e.Factory.New(event.TaskStartedPayload{
		TaskID:    id,
		StartTime: e.now().Format(time.RFC3339),
	})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Task{}, err
	}
	return cloneTask(e.state.Tasks[id]), nil
}

// BlockTask moves a task in_progress -> blocked. A reason is required.
func (e *Engine) BlockTask(ctx context.Context, id, reason string) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.state.Tasks[id]
	if !ok {
		return domain.Task{}, domain.NotFoundError{Kind: "task", ID: id}
	}
	if reason == "" {
		return domain.Task{}, domain.Validationf("block reason is required")
	}
	if err := domain.EnsureTaskTransition(t.Status, domain.StatusBlocked); err != nil {
		return domain.Task{}, err
	}
	evt := e.Factory.New(event.TaskBlockedPayload{TaskID: id, Reason: reason})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Task{}, err
	}
	return cloneTask(e.state.Tasks[id]), nil
}

// UnblockTask moves a task blocked -> in_progress and clears the reason.
func (e *Engine) UnblockTask(ctx context.Context, id string) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.state.Tasks[id]
	if !ok {
		return domain.Task{}, domain.NotFoundError{Kind: "task", ID: id}
	}
	if err := domain.EnsureTaskTransition(t.Status, domain.StatusInProgress); err != nil {
		return domain.Task{}, err
	}
	evt := e.Factory.New(event.TaskUnblockedPayload{TaskID: id})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Task{}, err
	}
	return cloneTask(e.state.Tasks[id]), nil
}

// CompleteTask moves a task in_progress -> completed, stamps its end time and
// records actual points. A nil actualPoints falls back to the estimate at fold
// time.
func (e *Engine) CompleteTask(ctx context.Context, id string, actualPoints *int) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.state.Tasks[id]
	if !ok {
		return domain.Task{}, domain.NotFoundError{Kind: "task", ID: id}
	}
	if actualPoints != nil && *actualPoints < 0 {
		return domain.Task{}, domain.Validationf("actual points must not be negative")
	}
	if err := domain.EnsureTaskTransition(t.Status, domain.StatusCompleted); err != nil {
		return domain.Task{}, err
	}
	evt := e.Factory.New(event.TaskCompletedPayload{
		TaskID:       id,
		EndTime:      e.now().Format(time.RFC3339),
		ActualPoints: actualPoints,
	})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Task{}, err
	}
	return cloneTask(e.state.Tasks[id]), nil
}

// AddTaskDependency records that id cannot complete before dependsOn does.
func (e *Engine) AddTaskDependency(ctx context.Context, id, dependsOn string) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.state.Tasks[id]
	if !ok {
		return domain.Task{}, domain.NotFoundError{Kind: "task", ID: id}
	}
	if _, ok := e.state.Tasks[dependsOn]; !ok {
		return domain.Task{}, domain.NotFoundError{Kind: "task", ID: dependsOn}
	}
	if contains(t.DependsOn, dependsOn) {
		return domain.Task{}, domain.Validationf("task %s already depends on %s", id, dependsOn)
	}
	if err := domain.EnsureNoCycle(taskAdjacency(e.state), id, dependsOn); err != nil {
		return domain.Task{}, err
	}
	evt := e.Factory.New(event.TaskDependencyAddedPayload{TaskID: id, DependsOn: dependsOn})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Task{}, err
	}
	return cloneTask(e.state.Tasks[id]), nil
}

func (e *Engine) RemoveTaskDependency(ctx context.Context, id, dependsOn string) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.state.Tasks[id]
	if !ok {
		return domain.Task{}, domain.NotFoundError{Kind: "task", ID: id}
	}
	if !contains(t.DependsOn, dependsOn) {
		return domain.Task{}, domain.Validationf("task %s does not depend on %s", id, dependsOn)
	}
	evt := e.Factory.New(event.TaskDependencyRemovedPayload{TaskID: id, DependsOn: dependsOn})
	if err := e.commit(ctx, evt); err != nil {
		return domain.Task{}, err
	}
	return cloneTask(e.state.Tasks[id]), nil
}

// --- helpers ---

func validDate(s *string) error {
	if s == nil {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, *s); err != nil {
		return domain.Validationf("invalid date %q: expected RFC3339", *s)
	}
	return nil
}

func contains(in []string, want string) bool {
	for _, v := range in {
		if v == want {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func taskAdjacency(st *domain.AppState) map[string][]string {
	out := make(map[string][]string, len(st.Tasks))
	for id, t := range st.Tasks {
		out[id] = append([]string(nil), t.DependsOn...)
	}
	return out
}

func milestoneAdjacency(st *domain.AppState) map[string][]string {
	out := make(map[string][]string, len(st.Milestones))
	for id, m := range st.Milestones {
		out[id] = append([]string(nil), m.DependsOn...)
	}
	return out
}
