package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkflow() *Workflow {
	return &Workflow{
		ID:   "test-wf",
		Name: "Intent Lead Nurture",
		Nodes: []Node{
			{
				ID: "trigger", Type: "trigger",
				Data: NodeData{
					NodeType: NodeTypeIntentTrigger,
					Label:    "High-Intent Signal",
					Config:   map[string]any{"topics": []any{"pricing"}, "minScore": 75.0},
				},
			},
			{
				ID: "router", Type: "logic",
				Data: NodeData{
					NodeType: NodeTypeRouter,
					Label:    "Score Router",
					Config: map[string]any{
						"defaultRoute": "nurture",
						"routes": []any{
							map[string]any{
								"name": "hot",
								"when": map[string]any{"field": "score", "operator": "greater_than", "value": 90.0},
							},
						},
					},
				},
			},
			{
				ID: "email", Type: "action",
				Data: NodeData{
					NodeType: NodeTypeSendEmail,
					Label:    "Notify Owner",
					Config: map[string]any{
						"subject": "High intent: {{subject}}",
						"body":    "{{subject}} scored {{score}} on {{topic}}.",
					},
				},
			},
			{
				ID: "tag", Type: "action",
				Data: NodeData{
					NodeType: NodeTypeUpdateContact,
					Label:    "Tag Contact",
					Config: map[string]any{
						"fields": map[string]any{"lifecycleStage": "{{route}}"},
					},
				},
			},
		},
		Edges: []Edge{
			{ID: "e1", Source: "trigger", Target: "router"},
			{ID: "e2", Source: "router", Target: "email", SourceHandle: "hot"},
			{ID: "e3", Source: "router", Target: "tag", SourceHandle: "nurture"},
		},
	}
}

func testEvent(score float64) TriggerEvent {
	return TriggerEvent{
		Trigger:   "intent",
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"subject": "acme.example.com",
			"email":   "owner@acme.example.com",
			"topic":   "pricing",
			"score":   score,
		},
	}
}

func TestEngine_SuccessfulRun(t *testing.T) {
	engine := NewEngine(NewRegistry(nil))

	run, err := engine.Execute(context.Background(), testWorkflow(), testEvent(95))

	require.NoError(t, err)
	assert.Equal(t, RunStatusSucceeded, run.Status)
	assert.Equal(t, "test-wf", run.WorkflowID)
	assert.NotEmpty(t, run.ID)
	require.NotNil(t, run.FinishedAt)
	require.Len(t, run.Steps, 4)

	// Steps appear in execution order: trigger, router, then actions in
	// input order.
	expected := []string{"trigger", "router", "email", "tag"}
	for i, step := range run.Steps {
		assert.Equal(t, expected[i], step.NodeID, "step %d", i)
		assert.Equal(t, "completed", step.Status)
		assert.NotEmpty(t, step.Output["message"])
	}

	router, ok := run.Step("router")
	require.True(t, ok)
	assert.Equal(t, "hot", router.Output["route"])
}

func TestEngine_RouterDefaultRoute(t *testing.T) {
	engine := NewEngine(NewRegistry(nil))

	run, err := engine.Execute(context.Background(), testWorkflow(), testEvent(80))

	require.NoError(t, err)
	router, ok := run.Step("router")
	require.True(t, ok)
	assert.Equal(t, "nurture", router.Output["route"])
}

func TestEngine_StopsOnNodeFailure(t *testing.T) {
	wf := testWorkflow()
	event := testEvent(95)
	// No recipient anywhere: the email node fails.
	delete(event.Data, "email")
	delete(event.Data, "subject")

	engine := NewEngine(NewRegistry(nil))
	run, err := engine.Execute(context.Background(), wf, event)

	require.NoError(t, err) // a failed run is a result, not an error
	assert.Equal(t, RunStatusFailed, run.Status)
	require.NotNil(t, run.FinishedAt)
	require.Len(t, run.Steps, 3) // trigger, router, email(failed)

	last := run.Steps[2]
	assert.Equal(t, "email", last.NodeID)
	assert.Equal(t, "failed", last.Status)
	assert.NotEmpty(t, last.Error)
}

func TestEngine_CycleIsFatal(t *testing.T) {
	wf := &Workflow{
		ID: "cyclic",
		Nodes: []Node{
			{ID: "a", Data: NodeData{NodeType: NodeTypeUpdateContact}},
			{ID: "b", Data: NodeData{NodeType: NodeTypeUpdateContact}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "a"},
		},
	}

	engine := NewEngine(NewRegistry(nil))
	_, err := engine.Execute(context.Background(), wf, testEvent(80))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestEngine_MigratesLegacyNodes(t *testing.T) {
	wf := &Workflow{
		ID: "legacy",
		Nodes: []Node{
			{ID: "filter", Data: NodeData{NodeType: "logic:filter", Label: "Old Filter"}},
		},
	}

	engine := NewEngine(NewRegistry(nil))
	run, err := engine.Execute(context.Background(), wf, testEvent(80))

	require.NoError(t, err)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, NodeTypeRouter, run.Steps[0].NodeType)
	assert.Equal(t, "Old Filter", run.Steps[0].Label)
}

func TestEngine_UnknownTypeSkipped(t *testing.T) {
	wf := &Workflow{
		ID: "unknown",
		Nodes: []Node{
			{ID: "mystery", Data: NodeData{NodeType: "crm:salesforce_legacy", Label: "Legacy Sync"}},
			{ID: "tag", Data: NodeData{
				NodeType: NodeTypeUpdateContact,
				Config:   map[string]any{"fields": map[string]any{"seen": "yes"}},
			}},
		},
		Edges: []Edge{{ID: "e1", Source: "mystery", Target: "tag"}},
	}

	engine := NewEngine(NewRegistry(nil))
	run, err := engine.Execute(context.Background(), wf, testEvent(80))

	require.NoError(t, err)
	assert.Equal(t, RunStatusSucceeded, run.Status)
	require.Len(t, run.Steps, 2)
	assert.Equal(t, "skipped", run.Steps[0].Status)
	assert.Equal(t, "completed", run.Steps[1].Status)
}

func TestEngine_DanglingEdgeTolerated(t *testing.T) {
	wf := testWorkflow()
	wf.Edges = append(wf.Edges, Edge{ID: "e4", Source: "tag", Target: "deleted-node"})

	engine := NewEngine(NewRegistry(nil))
	run, err := engine.Execute(context.Background(), wf, testEvent(95))

	require.NoError(t, err)
	assert.Equal(t, RunStatusSucceeded, run.Status)
	assert.Len(t, run.Steps, 4)
}
