package projection

import (
	"sort"

	"taskline/internal/domain"
	"taskline/internal/event"
)

func applyProjectCreated(st *domain.AppState, p event.ProjectCreatedPayload, ts string) {
	st.Projects[p.ProjectID] = domain.Project{
		ID:          p.ProjectID,
		Title:       p.Title,
		Description: p.Description,
		Status:      domain.StatusNotStarted,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func applyProjectUpdated(st *domain.AppState, p event.ProjectUpdatedPayload, ts string) {
	proj, ok := st.Projects[p.ProjectID]
	if !ok {
		return
	}
	if p.Title != nil {
		proj.Title = *p.Title
	}
	if p.Description != nil {
		proj.Description = *p.Description
	}
	proj.UpdatedAt = ts
	st.Projects[p.ProjectID] = proj
}

// applyProjectDeleted drops the project and everything under it from the
// projection. The log keeps the history; this is a tombstone.
func applyProjectDeleted(st *domain.AppState, p event.ProjectDeletedPayload) {
	proj, ok := st.Projects[p.ProjectID]
	if !ok {
		return
	}
	for _, msID := range append([]string(nil), proj.MilestoneIDs...) {
		applyMilestoneDeleted(st, event.MilestoneDeletedPayload{MilestoneID: msID})
	}
	delete(st.Projects, p.ProjectID)
}

func applyProjectStatusChanged(st *domain.AppState, p event.ProjectStatusChangedPayload, ts string) {
	proj, ok := st.Projects[p.ProjectID]
	if !ok {
		return
	}
	proj.Status = p.ToStatus
	proj.UpdatedAt = ts
	st.Projects[p.ProjectID] = proj
}

func applyMilestoneCreated(st *domain.AppState, p event.MilestoneCreatedPayload) {
	st.Milestones[p.MilestoneID] = domain.Milestone{
		ID:          p.MilestoneID,
		ProjectID:   p.ProjectID,
		Title:       p.Title,
		Description: p.Description,
		Status:      domain.StatusNotStarted,
		DueDate:     p.DueDate,
	}
	st.Relations.MilestoneProject[p.MilestoneID] = p.ProjectID
	if proj, ok := st.Projects[p.ProjectID]; ok {
		proj.MilestoneIDs = append(proj.MilestoneIDs, p.MilestoneID)
		st.Projects[p.ProjectID] = proj
	}
}

func applyMilestoneUpdated(st *domain.AppState, p event.MilestoneUpdatedPayload) {
	ms, ok := st.Milestones[p.MilestoneID]
	if !ok {
		return
	}
	if p.Title != nil {
		ms.Title = *p.Title
	}
	if p.Description != nil {
		ms.Description = *p.Description
	}
	if p.ClearDue {
		ms.DueDate = nil
	} else if p.DueDate != nil {
		ms.DueDate = p.DueDate
	}
	st.Milestones[p.MilestoneID] = ms
}

func applyMilestoneDeleted(st *domain.AppState, p event.MilestoneDeletedPayload) {
	ms, ok := st.Milestones[p.MilestoneID]
	if !ok {
		return
	}
	for _, taskID := range append([]string(nil), ms.TaskIDs...) {
		applyTaskDeleted(st, event.TaskDeletedPayload{TaskID: taskID})
	}
	if proj, ok := st.Projects[ms.ProjectID]; ok {
		proj.MilestoneIDs = removeString(proj.MilestoneIDs, p.MilestoneID)
		st.Projects[ms.ProjectID] = proj
	}
	// Drop dependency edges pointing at the tombstoned milestone.
	for _, dependent := range st.Relations.MilestoneDependents[p.MilestoneID] {
		if other, ok := st.Milestones[dependent]; ok {
			other.DependsOn = removeString(other.DependsOn, p.MilestoneID)
			st.Milestones[dependent] = other
		}
	}
	for _, dep := range ms.DependsOn {
		st.Relations.MilestoneDependents[dep] = removeString(st.Relations.MilestoneDependents[dep], p.MilestoneID)
	}
	delete(st.Relations.MilestoneDependents, p.MilestoneID)
	delete(st.Relations.MilestoneProject, p.MilestoneID)
	delete(st.Milestones, p.MilestoneID)
}

func applyMilestoneStatusChanged(st *domain.AppState, p event.MilestoneStatusChangedPayload) {
	ms, ok := st.Milestones[p.MilestoneID]
	if !ok {
		return
	}
	ms.Status = p.ToStatus
	if p.ToStatus == domain.StatusCompleted {
		if p.CompletedDate != nil {
			ms.CompletedDate = p.CompletedDate
		}
	} else {
		ms.CompletedDate = nil
	}
	st.Milestones[p.MilestoneID] = ms
}

func applyMilestoneDependencyAdded(st *domain.AppState, p event.MilestoneDependencyAddedPayload) {
	ms, ok := st.Milestones[p.MilestoneID]
	if !ok {
		return
	}
	ms.DependsOn = insertSorted(ms.DependsOn, p.DependsOn)
	st.Milestones[p.MilestoneID] = ms
	st.Relations.MilestoneDependents[p.DependsOn] = insertSorted(st.Relations.MilestoneDependents[p.DependsOn], p.MilestoneID)
}

func applyMilestoneDependencyRemoved(st *domain.AppState, p event.MilestoneDependencyRemovedPayload) {
	ms, ok := st.Milestones[p.MilestoneID]
	if !ok {
		return
	}
	ms.DependsOn = removeString(ms.DependsOn, p.DependsOn)
	st.Milestones[p.MilestoneID] = ms
	st.Relations.MilestoneDependents[p.DependsOn] = removeString(st.Relations.MilestoneDependents[p.DependsOn], p.MilestoneID)
}

func applyTaskCreated(st *domain.AppState, p event.TaskCreatedPayload) {
	priority := p.Priority
	if priority == "" {
		priority = domain.PriorityMust
	}
	tags := append([]string(nil), p.Tags...)
	sort.Strings(tags)
	st.Tasks[p.TaskID] = domain.Task{
		ID:              p.TaskID,
		MilestoneID:     p.MilestoneID,
		Title:           p.Title,
		Description:     p.Description,
		Status:          domain.StatusNotStarted,
		Priority:        priority,
		EstimatedPoints: p.EstimatedPoints,
		Tags:            tags,
	}
	st.Relations.TaskMilestone[p.TaskID] = p.MilestoneID
	if ms, ok := st.Milestones[p.MilestoneID]; ok {
		ms.TaskIDs = append(ms.TaskIDs, p.TaskID)
		st.Milestones[p.MilestoneID] = ms
	}
}

func applyTaskUpdated(st *domain.AppState, p event.TaskUpdatedPayload) {
	t, ok := st.Tasks[p.TaskID]
	if !ok {
		return
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.EstimatedPoints != nil {
		t.EstimatedPoints = *p.EstimatedPoints
	}
	if p.TagsSet {
		tags := append([]string(nil), p.Tags...)
		sort.Strings(tags)
		t.Tags = tags
	}
	st.Tasks[p.TaskID] = t
}

func applyTaskDeleted(st *domain.AppState, p event.TaskDeletedPayload) {
	t, ok := st.Tasks[p.TaskID]
	if !ok {
		return
	}
	if ms, ok := st.Milestones[t.MilestoneID]; ok {
		ms.TaskIDs = removeString(ms.TaskIDs, p.TaskID)
		st.Milestones[t.MilestoneID] = ms
	}
	for _, dependent := range st.Relations.TaskDependents[p.TaskID] {
		if other, ok := st.Tasks[dependent]; ok {
			other.DependsOn = removeString(other.DependsOn, p.TaskID)
			st.Tasks[dependent] = other
		}
	}
	for _, dep := range t.DependsOn {
		st.Relations.TaskDependents[dep] = removeString(st.Relations.TaskDependents[dep], p.TaskID)
	}
	delete(st.Relations.TaskDependents, p.TaskID)
	delete(st.Relations.TaskMilestone, p.TaskID)
	delete(st.Tasks, p.TaskID)
}

func applyTaskStarted(st *domain.AppState, p event.TaskStartedPayload) {
	t, ok := st.Tasks[p.TaskID]
	if !ok {
		return
	}
	t.Status = domain.StatusInProgress
	start := p.StartTime
	t.StartTime = &start
	st.Tasks[p.TaskID] = t
}

func applyTaskBlocked(st *domain.AppState, p event.TaskBlockedPayload) {
	t, ok := st.Tasks[p.TaskID]
	if !ok {
		return
	}
	t.Status = domain.StatusBlocked
	t.BlockReason = p.Reason
	st.Tasks[p.TaskID] = t
}

func applyTaskUnblocked(st *domain.AppState, p event.TaskUnblockedPayload) {
	t, ok := st.Tasks[p.TaskID]
	if !ok {
		return
	}
	t.Status = domain.StatusInProgress
	t.BlockReason = ""
	st.Tasks[p.TaskID] = t
}

func applyTaskCompleted(st *domain.AppState, p event.TaskCompletedPayload) {
	t, ok := st.Tasks[p.TaskID]
	if !ok {
		return
	}
	t.Status = domain.StatusCompleted
	end := p.EndTime
	t.EndTime = &end
	if p.ActualPoints != nil {
		v := *p.ActualPoints
		t.ActualPoints = &v
	} else {
		v := t.EstimatedPoints
		t.ActualPoints = &v
	}
	st.Tasks[p.TaskID] = t
}

func applyTaskDependencyAdded(st *domain.AppState, p event.TaskDependencyAddedPayload) {
	t, ok := st.Tasks[p.TaskID]
	if !ok {
		return
	}
	t.DependsOn = insertSorted(t.DependsOn, p.DependsOn)
	st.Tasks[p.TaskID] = t
	st.Relations.TaskDependents[p.DependsOn] = insertSorted(st.Relations.TaskDependents[p.DependsOn], p.TaskID)
}

func applyTaskDependencyRemoved(st *domain.AppState, p event.TaskDependencyRemovedPayload) {
	t, ok := st.Tasks[p.TaskID]
	if !ok {
		return
	}
	t.DependsOn = removeString(t.DependsOn, p.DependsOn)
	st.Tasks[p.TaskID] = t
	st.Relations.TaskDependents[p.DependsOn] = removeString(st.Relations.TaskDependents[p.DependsOn], p.TaskID)
}

// --- helpers ---

func removeString(in []string, v string) []string {
	out := in[:0]
	for _, s := range in {
		if s != v {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func insertSorted(in []string, v string) []string {
	for _, s := range in {
		if s == v {
			return in
		}
	}
	out := append(in, v)
	sort.Strings(out)
	return out
}
