package workflow

// Canvas spacing between layout columns and rows.
const (
	layoutColumnWidth = 300
	layoutRowHeight   = 140
)

// ComputeLayout assigns canvas positions to nodes using a layered layout:
// each node's column is its longest-path depth from a root, rows are filled
// in order within a column. Pure; input slices are not mutated. If the graph
// is cyclic the nodes are returned with their stored positions untouched.
func ComputeLayout(nodes []Node, edges []Edge) ([]Node, []Edge) {
	ordered, acyclic := TopologicalOrder(nodes, edges)
	if !acyclic {
		return nodes, edges
	}

	depth := make(map[string]int, len(nodes))
	for _, n := range ordered {
		if _, ok := depth[n.ID]; !ok {
			depth[n.ID] = 0
		}
		for _, e := range edges {
			if e.Source != n.ID {
				continue
			}
			if d := depth[n.ID] + 1; d > depth[e.Target] {
				depth[e.Target] = d
			}
		}
	}

	rows := make(map[int]int)
	positioned := make([]Node, len(nodes))
	byID := make(map[string]Position, len(nodes))
	for _, n := range ordered {
		col := depth[n.ID]
		byID[n.ID] = Position{
			X: float64(col * layoutColumnWidth),
			Y: float64(rows[col] * layoutRowHeight),
		}
		rows[col]++
	}
	for i, n := range nodes {
		n.Position = byID[n.ID]
		positioned[i] = n
	}
	return positioned, edges
}
