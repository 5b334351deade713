package workflow

import (
	"context"
	"net/http"
	"time"
)

// ExecutionState holds shared state passed between node executors during a
// workflow run. Trigger is the event that started the run; Variables
// accumulates every node's outputs for downstream nodes.
type ExecutionState struct {
	Trigger   TriggerEvent
	Variables map[string]any
}

// StepResult is the output of executing a single node.
type StepResult struct {
	Status string         // "completed" or "skipped"
	Output map[string]any // Must include "message"; may include type-specific fields
}

// NodeExecutor defines the interface for executing a single node type.
type NodeExecutor interface {
	Execute(ctx context.Context, node Node, state *ExecutionState) (*StepResult, error)
}

// Registry maps node type identifiers to their executor implementation.
type Registry map[string]NodeExecutor

// NewRegistry creates a registry populated with all built-in executor types.
// Trigger nodes share one executor: at execution time a trigger only injects
// the event that started the run.
func NewRegistry(httpClient *http.Client) Registry {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	trigger := &TriggerNodeExecutor{}
	return Registry{
		NodeTypeWebhookTrigger: trigger,
		NodeTypeIntentTrigger:  trigger,
		NodeTypeFormTrigger:    trigger,
		NodeTypeSendEmail:      &EmailExecutor{},
		NodeTypeUpdateContact:  &ContactUpdateExecutor{},
		NodeTypeHTTPRequest:    &HTTPRequestExecutor{client: httpClient},
		NodeTypeRouter:         &RouterExecutor{},
		NodeTypeUnrecognized:   &UnrecognizedExecutor{},
	}
}
