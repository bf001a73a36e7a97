package domain

import "sort"

// EnsureNoCycle checks whether adding the edge from -> to would close a cycle
// in the adjacency map. It runs a DFS with white/gray/black coloring over the
// graph including the candidate edge, before anything is committed. Neighbors
// are visited in sorted order so the reported witness path is stable.
func EnsureNoCycle(adjacency map[string][]string, from, to string) error {
	if from == to {
		return CycleError{From: from, To: to, Path: []string{from, to}}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)

	next := func(id string) []string {
		out := copyStrings(adjacency[id])
		if id == from {
			out = append(out, to)
		}
		sort.Strings(out)
		return out
	}

	color := map[string]int{}
	parent := map[string]string{}
	var cycle []string

	var dfs func(u string) bool
	dfs = func(u string) bool {
		color[u] = gray
		for _, v := range next(u) {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// Back-edge u -> v: walk parents to reconstruct the witness.
				cycle = append(cycle, v)
				for cur := u; cur != "" && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	if dfs(from) {
		// Reverse the parent walk into forward order.
		path := make([]string, len(cycle))
		for i := range cycle {
			path[i] = cycle[len(cycle)-1-i]
		}
		return CycleError{From: from, To: to, Path: path}
	}
	return nil
}
