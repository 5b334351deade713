package workflow

import "log/slog"

// TopologicalOrder computes a deterministic execution order for the graph
// using Kahn's algorithm. Ties are broken by the input order of nodes, so the
// same graph always yields the same order.
//
// The second return value reports whether a full ordering was achieved. On a
// cycle the original nodes slice is returned unchanged with acyclic=false;
// the editor must stay usable mid-edit, so this never panics. Callers that
// execute the order must check the flag first.
//
// Edges whose source or target is not present in nodes are ignored.
func TopologicalOrder(nodes []Node, edges []Edge) (ordered []Node, acyclic bool) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}

	inDegree := make([]int, len(nodes))
	successors := make([][]int, len(nodes))
	for _, e := range edges {
		src, okSrc := index[e.Source]
		dst, okDst := index[e.Target]
		if !okSrc || !okDst {
			continue
		}
		successors[src] = append(successors[src], dst)
		inDegree[dst]++
	}

	queue := make([]int, 0, len(nodes))
	for i := range nodes {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	ordered = make([]Node, 0, len(nodes))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		ordered = append(ordered, nodes[i])
		for _, succ := range successors[i] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(ordered) < len(nodes) {
		slog.Warn("Workflow graph contains a cycle, returning nodes unordered",
			"nodes", len(nodes), "ordered", len(ordered))
		return nodes, false
	}
	return ordered, true
}
