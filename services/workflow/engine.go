package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Engine executes a workflow's nodes sequentially in topological order and
// produces a WorkflowRun with one step result per executed node.
type Engine struct {
	registry Registry
}

// NewEngine creates an Engine with the given executor registry.
func NewEngine(registry Registry) *Engine {
	return &Engine{registry: registry}
}

// Execute migrates and orders the workflow's nodes, then runs them one at a
// time; each node's outputs may feed the next node's input, so no two nodes
// of the same run execute concurrently. A node failure stops the run with
// partial steps and status "failed"; that is a run outcome, not an error.
// Cycles are tolerated while editing but are fatal here.
func (e *Engine) Execute(ctx context.Context, wf *Workflow, trigger TriggerEvent) (*WorkflowRun, error) {
	nodes := MigrateNodes(wf.Nodes)
	ordered, acyclic := TopologicalOrder(nodes, wf.Edges)
	if !acyclic {
		return nil, fmt.Errorf("workflow %s contains a cycle and cannot execute", wf.ID)
	}

	run := &WorkflowRun{
		ID:         uuid.New().String(),
		WorkflowID: wf.ID,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
		Trigger:    trigger,
	}

	state := &ExecutionState{
		Trigger:   trigger,
		Variables: make(map[string]any),
	}

	for _, node := range ordered {
		executor, ok := e.registry[node.Data.NodeType]
		if !ok {
			executor = &UnrecognizedExecutor{}
		}

		stepStart := time.Now()
		result, execErr := executor.Execute(ctx, node, state)
		duration := time.Since(stepStart)

		step := RunStep{
			NodeID:     node.ID,
			NodeType:   node.Data.NodeType,
			Label:      node.Data.Label,
			DurationMs: duration.Milliseconds(),
		}

		if execErr != nil {
			step.Status = "failed"
			step.Error = execErr.Error()
			step.Output = map[string]any{"message": fmt.Sprintf("Error: %s", execErr.Error())}
			run.Steps = append(run.Steps, step)
			finishRun(run, RunStatusFailed)
			return run, nil
		}

		step.Status = result.Status
		step.Output = result.Output
		run.Steps = append(run.Steps, step)
	}

	finishRun(run, RunStatusSucceeded)
	return run, nil
}

func finishRun(run *WorkflowRun, status string) {
	now := time.Now().UTC()
	run.Status = status
	run.FinishedAt = &now
}
