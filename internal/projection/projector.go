// Package projection folds the event log into the derived AppState. The fold
// is pure and total over the closed event set: replaying the same log always
// produces the same state.
package projection

import (
	"time"

	"taskline/internal/domain"
	"taskline/internal/event"
	"taskline/internal/eventlog"
)

// Projector replays events into AppState. PointsPerHour seeds the statistics
// average before any task has completed.
type Projector struct {
	PointsPerHour float64
}

// Empty returns the canonical state every replay starts from.
func (p Projector) Empty() *domain.AppState {
	st := domain.NewAppState()
	st.Statistics.AveragePointsPerHour = p.PointsPerHour
	return st
}

// Project replays entries in log order from the empty state.
func (p Projector) Project(entries []eventlog.Entry) (*domain.AppState, error) {
	st := p.Empty()
	for _, e := range entries {
		if err := p.Fold(st, e.Event); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Fold applies one event to the state in place. Task status changes cascade
// into the owning milestone and project immediately, so the derived
// *.status_changed records the engine appends afterwards fold as no-ops.
// An event kind outside the closed set is fatal: guessing would leave the
// projection permanently inconsistent with the log.
func (p Projector) Fold(st *domain.AppState, evt event.Event) error {
	ts := evt.Timestamp.UTC().Format(time.RFC3339)
	switch payload := evt.Payload.(type) {
	case event.ProjectCreatedPayload:
		applyProjectCreated(st, payload, ts)
	case event.ProjectUpdatedPayload:
		applyProjectUpdated(st, payload, ts)
	case event.ProjectDeletedPayload:
		applyProjectDeleted(st, payload)
		recomputeStatistics(st)
	case event.ProjectStatusChangedPayload:
		applyProjectStatusChanged(st, payload, ts)
	case event.MilestoneCreatedPayload:
		applyMilestoneCreated(st, payload)
		cascadeFromMilestone(st, payload.MilestoneID, ts)
	case event.MilestoneUpdatedPayload:
		applyMilestoneUpdated(st, payload)
	case event.MilestoneDeletedPayload:
		projectID := st.Relations.MilestoneProject[payload.MilestoneID]
		applyMilestoneDeleted(st, payload)
		recomputeProject(st, projectID, ts)
		recomputeStatistics(st)
	case event.MilestoneStatusChangedPayload:
		applyMilestoneStatusChanged(st, payload)
	case event.MilestoneDependencyAddedPayload:
		applyMilestoneDependencyAdded(st, payload)
	case event.MilestoneDependencyRemovedPayload:
		applyMilestoneDependencyRemoved(st, payload)
	case event.TaskCreatedPayload:
		applyTaskCreated(st, payload)
		cascadeFromTask(st, payload.TaskID, ts)
		recomputeStatistics(st)
	case event.TaskUpdatedPayload:
		applyTaskUpdated(st, payload)
		recomputeStatistics(st)
	case event.TaskDeletedPayload:
		milestoneID := st.Relations.TaskMilestone[payload.TaskID]
		applyTaskDeleted(st, payload)
		recomputeMilestone(st, milestoneID, ts)
		if projectID, ok := st.Relations.MilestoneProject[milestoneID]; ok {
			recomputeProject(st, projectID, ts)
		}
		recomputeStatistics(st)
	case event.TaskStartedPayload:
		applyTaskStarted(st, payload)
		cascadeFromTask(st, payload.TaskID, ts)
	case event.TaskBlockedPayload:
		applyTaskBlocked(st, payload)
		cascadeFromTask(st, payload.TaskID, ts)
	case event.TaskUnblockedPayload:
		applyTaskUnblocked(st, payload)
		cascadeFromTask(st, payload.TaskID, ts)
	case event.TaskCompletedPayload:
		applyTaskCompleted(st, payload)
		cascadeFromTask(st, payload.TaskID, ts)
		recomputeStatistics(st)
	case event.TaskDependencyAddedPayload:
		applyTaskDependencyAdded(st, payload)
	case event.TaskDependencyRemovedPayload:
		applyTaskDependencyRemoved(st, payload)
	default:
		return domain.UnknownEventError{Type: string(evt.Type), Version: evt.Version}
	}
	return nil
}
