package event

import (
	"encoding/json"
	"fmt"
	"time"

	"taskline/internal/domain"
)

// envelope is the wire form of an event: the payload stays raw until the type
// is known.
type envelope struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Version   int             `json:"version"`
	Payload   json.RawMessage `json:"payload"`
}

// Marshal encodes an event as a single JSON object (one log line).
func Marshal(evt Event) ([]byte, error) {
	raw, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", evt.Type, err)
	}
	return json.Marshal(envelope{
		ID:        evt.ID,
		Type:      evt.Type,
		Timestamp: evt.Timestamp,
		Version:   evt.Version,
		Payload:   raw,
	})
}

// Unmarshal decodes a log line into a typed event. A line that is not valid
// JSON or is missing envelope fields is a parse error (the caller treats it as
// a corrupt record); a well-formed envelope with an unrecognized type or
// version is domain.UnknownEventError.
func Unmarshal(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, err
	}
	if env.ID == "" || env.Type == "" {
		return Event{}, fmt.Errorf("event envelope missing id or type")
	}
	payload, err := decodePayload(env.Type, env.Version, env.Payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        env.ID,
		Type:      env.Type,
		Timestamp: env.Timestamp,
		Version:   env.Version,
		Payload:   payload,
	}, nil
}

func decodePayload(t Type, version int, raw json.RawMessage) (Payload, error) {
	if version != Version {
		return nil, domain.UnknownEventError{Type: string(t), Version: version}
	}
	var payload Payload
	switch t {
	case TypeProjectCreated:
		payload = &ProjectCreatedPayload{}
	case TypeProjectUpdated:
		payload = &ProjectUpdatedPayload{}
	case TypeProjectDeleted:
		payload = &ProjectDeletedPayload{}
	case TypeProjectStatusChanged:
		payload = &ProjectStatusChangedPayload{}
	case TypeMilestoneCreated:
		payload = &MilestoneCreatedPayload{}
	case TypeMilestoneUpdated:
		payload = &MilestoneUpdatedPayload{}
	case TypeMilestoneDeleted:
		payload = &MilestoneDeletedPayload{}
	case TypeMilestoneStatusChanged:
		payload = &MilestoneStatusChangedPayload{}
	case TypeMilestoneDependencyAdded:
		payload = &MilestoneDependencyAddedPayload{}
	case TypeMilestoneDependencyRemoved:
		payload = &MilestoneDependencyRemovedPayload{}
	case TypeTaskCreated:
		payload = &TaskCreatedPayload{}
	case TypeTaskUpdated:
		payload = &TaskUpdatedPayload{}
	case TypeTaskDeleted:
		payload = &TaskDeletedPayload{}
	case TypeTaskStarted:
		payload = &TaskStartedPayload{}
	case TypeTaskBlocked:
		payload = &TaskBlockedPayload{}
	case TypeTaskUnblocked:
		payload = &TaskUnblockedPayload{}
	case TypeTaskCompleted:
		payload = &TaskCompletedPayload{}
	case TypeTaskDependencyAdded:
		payload = &TaskDependencyAddedPayload{}
	case TypeTaskDependencyRemoved:
		payload = &TaskDependencyRemovedPayload{}
	default:
		return nil, domain.UnknownEventError{Type: string(t), Version: version}
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return deref(payload), nil
}

// deref returns the payload by value so events compare and copy like plain
// data.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *ProjectCreatedPayload:
		return *v
	case *ProjectUpdatedPayload:
		return *v
	case *ProjectDeletedPayload:
		return *v
	case *ProjectStatusChangedPayload:
		return *v
	case *MilestoneCreatedPayload:
		return *v
	case *MilestoneUpdatedPayload:
		return *v
	case *MilestoneDeletedPayload:
		return *v
	case *MilestoneStatusChangedPayload:
		return *v
	case *MilestoneDependencyAddedPayload:
		return *v
	case *MilestoneDependencyRemovedPayload:
		return *v
	case *TaskCreatedPayload:
		return *v
	case *TaskUpdatedPayload:
		return *v
	case *TaskDeletedPayload:
		return *v
	case *TaskStartedPayload:
		return *v
	case *TaskBlockedPayload:
		return *v
	case *TaskUnblockedPayload:
		return *v
	case *TaskCompletedPayload:
		return *v
	case *TaskDependencyAddedPayload:
		return *v
	case *TaskDependencyRemovedPayload:
		return *v
	}
	return p
}
