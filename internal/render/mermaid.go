// Package render turns the projected state into Mermaid diagrams for
// embedding in markdown docs.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"taskline/internal/domain"
)

// Gantt renders a project as a Mermaid gantt chart: one section per
// milestone, one bar per task. Completed tasks use their recorded span;
// pending ones get a nominal one-day bar from today.
func Gantt(st *domain.AppState, projectID string) (string, error) {
	p, ok := st.Projects[projectID]
	if !ok {
		return "", domain.NotFoundError{Kind: "project", ID: projectID}
	}
	var b strings.Builder
	b.WriteString("gantt\n")
	fmt.Fprintf(&b, "    title %s\n", sanitize(p.Title))
	b.WriteString("    dateFormat YYYY-MM-DD\n")

	for _, milestoneID := range p.MilestoneIDs {
		m, ok := st.Milestones[milestoneID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "    section %s\n", sanitize(m.Title))
		taskIDs := append([]string(nil), m.TaskIDs...)
		sort.Strings(taskIDs)
		for _, taskID := range taskIDs {
			t, ok := st.Tasks[taskID]
			if !ok {
				continue
			}
			writeGanttTask(&b, t)
		}
	}
	return b.String(), nil
}

func writeGanttTask(b *strings.Builder, t domain.Task) {
	marker := ""
	switch t.Status {
	case domain.StatusCompleted:
		marker = "done, "
	case domain.StatusInProgress:
		marker = "active, "
	case domain.StatusBlocked:
		marker = "crit, "
	}
	start := day(t.StartTime)
	switch {
	case t.StartTime != nil && t.EndTime != nil:
		fmt.Fprintf(b, "    %s :%s%s, %s\n", sanitize(t.Title), marker, start, day(t.EndTime))
	case t.StartTime != nil:
		fmt.Fprintf(b, "    %s :%s%s, 1d\n", sanitize(t.Title), marker, start)
	default:
		fmt.Fprintf(b, "    %s :%s%s, 1d\n", sanitize(t.Title), marker, time.Now().UTC().Format("2006-01-02"))
	}
}

// Flowchart renders the dependency graph of a project: milestones as
// subgraphs, tasks as nodes, arrows pointing from a dependency to the work it
// unblocks.
func Flowchart(st *domain.AppState, projectID string) (string, error) {
	p, ok := st.Projects[projectID]
	if !ok {
		return "", domain.NotFoundError{Kind: "project", ID: projectID}
	}
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	for _, milestoneID := range p.MilestoneIDs {
		m, ok := st.Milestones[milestoneID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "    subgraph %s[%s]\n", nodeID(m.ID), sanitize(m.Title))
		taskIDs := append([]string(nil), m.TaskIDs...)
		sort.Strings(taskIDs)
		for _, taskID := range taskIDs {
			t, ok := st.Tasks[taskID]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "        %s[%s]\n", nodeID(t.ID), sanitize(t.Title))
		}
		b.WriteString("    end\n")
	}

	// task edges, then milestone edges
	for _, taskID := range sortedTaskIDs(st, p) {
		t := st.Tasks[taskID]
		deps := append([]string(nil), t.DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			fmt.Fprintf(&b, "    %s --> %s\n", nodeID(dep), nodeID(taskID))
		}
	}
	for _, milestoneID := range p.MilestoneIDs {
		m, ok := st.Milestones[milestoneID]
		if !ok {
			continue
		}
		deps := append([]string(nil), m.DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			fmt.Fprintf(&b, "    %s --> %s\n", nodeID(dep), nodeID(milestoneID))
		}
	}
	return b.String(), nil
}

func sortedTaskIDs(st *domain.AppState, p domain.Project) []string {
	var out []string
	for _, milestoneID := range p.MilestoneIDs {
		m, ok := st.Milestones[milestoneID]
		if !ok {
			continue
		}
		out = append(out, m.TaskIDs...)
	}
	sort.Strings(out)
	return out
}

// nodeID makes an id safe for Mermaid node syntax.
func nodeID(id string) string {
	return "n" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, id)
}

// sanitize strips characters that would break Mermaid labels.
func sanitize(s string) string {
	replacer := strings.NewReplacer(":", " ", "[", "(", "]", ")", "\n", " ", "#", " ", ";", " ")
	out := strings.TrimSpace(replacer.Replace(s))
	if out == "" {
		return "untitled"
	}
	return out
}

func day(ts *string) string {
	if ts == nil {
		return time.Now().UTC().Format("2006-01-02")
	}
	t, err := time.Parse(time.RFC3339, *ts)
	if err != nil {
		return time.Now().UTC().Format("2006-01-02")
	}
	return t.Format("2006-01-02")
}
