package workflow

import "time"

// Workflow represents a persisted workflow definition with its graph of nodes and edges.
type Workflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Node represents a single configured step in a workflow graph.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Position holds x/y coordinates for rendering the node on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData holds the logical type tag and configuration for a node. NodeType
// is the authoritative type identifier; Config carries the type-specific
// settings authored by the user.
type NodeData struct {
	NodeType    string         `json:"nodeType"`
	Label       string         `json:"label,omitempty"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

func (d NodeData) isZero() bool {
	return d.NodeType == "" && d.Label == "" && d.Description == "" && d.Config == nil
}

// Edge represents a directed connection between two nodes.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	Label        string `json:"label,omitempty"`
	Type         string `json:"type,omitempty"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Animated     bool   `json:"animated,omitempty"`
}

// ExecuteRequest is the JSON body sent by the frontend to run a workflow manually.
type ExecuteRequest struct {
	Trigger TriggerEvent `json:"trigger"`
}
