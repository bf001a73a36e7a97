package domain

// taskTransitions is the closed table of legal task status moves. Composite
// statuses are derived, so only tasks have a transition table.
var taskTransitions = map[Status][]Status{
	StatusNotStarted: {StatusInProgress},
	StatusInProgress: {StatusBlocked, StatusCompleted},
	StatusBlocked:    {StatusInProgress},
}

// EnsureTaskTransition validates a task status move against the table.
func EnsureTaskTransition(from, to Status) error {
	for _, allowed := range taskTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return Validationf("invalid task status transition %s -> %s", from, to)
}
