package projection

import (
	"time"

	"taskline/internal/domain"
)

// ComputeStatus derives a composite status from child statuses. Fixed
// precedence, first match wins:
//
//	completed:   at least one child and all completed
//	in_progress: any child in progress
//	blocked:     any child blocked
//	not_started: otherwise, including zero children
func ComputeStatus(children []domain.Status) domain.Status {
	if len(children) == 0 {
		return domain.StatusNotStarted
	}
	allCompleted := true
	anyInProgress := false
	anyBlocked := false
	for _, s := range children {
		if s != domain.StatusCompleted {
			allCompleted = false
		}
		if s == domain.StatusInProgress {
			anyInProgress = true
		}
		if s == domain.StatusBlocked {
			anyBlocked = true
		}
	}
	switch {
	case allCompleted:
		return domain.StatusCompleted
	case anyInProgress:
		return domain.StatusInProgress
	case anyBlocked:
		return domain.StatusBlocked
	default:
		return domain.StatusNotStarted
	}
}

// cascadeFromTask recomputes the owning milestone, then the owning project.
func cascadeFromTask(st *domain.AppState, taskID, ts string) {
	milestoneID, ok := st.Relations.TaskMilestone[taskID]
	if !ok {
		return
	}
	cascadeFromMilestone(st, milestoneID, ts)
}

func cascadeFromMilestone(st *domain.AppState, milestoneID, ts string) {
	recomputeMilestone(st, milestoneID, ts)
	if projectID, ok := st.Relations.MilestoneProject[milestoneID]; ok {
		recomputeProject(st, projectID, ts)
	}
}

func recomputeMilestone(st *domain.AppState, milestoneID, ts string) {
	ms, ok := st.Milestones[milestoneID]
	if !ok {
		return
	}
	statuses := make([]domain.Status, 0, len(ms.TaskIDs))
	for _, taskID := range ms.TaskIDs {
		if t, ok := st.Tasks[taskID]; ok {
			statuses = append(statuses, t.Status)
		}
	}
	next := ComputeStatus(statuses)
	if next == ms.Status {
		return
	}
	ms.Status = next
	if next == domain.StatusCompleted {
		stamp := ts
		ms.CompletedDate = &stamp
	} else {
		ms.CompletedDate = nil
	}
	st.Milestones[milestoneID] = ms
}

func recomputeProject(st *domain.AppState, projectID, ts string) {
	proj, ok := st.Projects[projectID]
	if !ok {
		return
	}
	statuses := make([]domain.Status, 0, len(proj.MilestoneIDs))
	for _, msID := range proj.MilestoneIDs {
		if ms, ok := st.Milestones[msID]; ok {
			statuses = append(statuses, ms.Status)
		}
	}
	next := ComputeStatus(statuses)
	if next == proj.Status {
		return
	}
	proj.Status = next
	proj.UpdatedAt = ts
	st.Projects[projectID] = proj
}

// recomputeStatistics refreshes the aggregate counters. The average is only
// computed over completed tasks carrying both timestamps; when no qualifying
// duration exists the prior value stands, so it is never divided to NaN.
func recomputeStatistics(st *domain.AppState) {
	stats := domain.Statistics{
		AveragePointsPerHour: st.Statistics.AveragePointsPerHour,
	}
	var hours float64
	for _, t := range st.Tasks {
		stats.TotalTasks++
		stats.TotalPoints += t.EstimatedPoints
		if t.Status != domain.StatusCompleted {
			continue
		}
		stats.CompletedTasks++
		earned := t.EstimatedPoints
		if t.ActualPoints != nil {
			earned = *t.ActualPoints
		}
		stats.EarnedPoints += earned
		if t.StartTime == nil || t.EndTime == nil {
			continue
		}
		start, err1 := time.Parse(time.RFC3339, *t.StartTime)
		end, err2 := time.Parse(time.RFC3339, *t.EndTime)
		if err1 != nil || err2 != nil || !end.After(start) {
			continue
		}
		hours += end.Sub(start).Hours()
	}
	if hours > 0 {
		stats.AveragePointsPerHour = float64(stats.EarnedPoints) / hours
	}
	st.Statistics = stats
}
