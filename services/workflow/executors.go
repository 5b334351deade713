package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

func jsonBody(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return &buf, nil
}

// TriggerNodeExecutor handles trigger node types. The trigger already fired
// before the run started; executing the node injects the event data into the
// run's variables for downstream nodes.
type TriggerNodeExecutor struct{}

func (e *TriggerNodeExecutor) Execute(_ context.Context, node Node, state *ExecutionState) (*StepResult, error) {
	for k, v := range state.Trigger.Data {
		state.Variables[k] = v
	}
	return &StepResult{
		Status: "completed",
		Output: map[string]any{
			"message": fmt.Sprintf("Triggered by %s", state.Trigger.Trigger),
			"event":   state.Trigger.Data,
		},
	}, nil
}

// EmailExecutor handles action:send_email. It renders the configured subject
// and body templates against the run's variables and drafts the email.
type EmailExecutor struct{}

func (e *EmailExecutor) Execute(_ context.Context, node Node, state *ExecutionState) (*StepResult, error) {
	subject, _ := node.Data.Config["subject"].(string)
	body, _ := node.Data.Config["body"].(string)
	to, _ := state.Variables["email"].(string)
	if to == "" {
		to, _ = state.Variables["subject"].(string)
	}
	if to == "" {
		return nil, fmt.Errorf("no recipient available for email node %q", node.ID)
	}

	subject = renderTemplate(subject, state.Variables)
	body = renderTemplate(body, state.Variables)

	state.Variables["emailSent"] = true
	return &StepResult{
		Status: "completed",
		Output: map[string]any{
			"message": fmt.Sprintf("Email drafted for %s", to),
			"emailDraft": map[string]any{
				"to":        to,
				"subject":   subject,
				"body":      body,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			},
		},
	}, nil
}

// ContactUpdateExecutor handles action:update_contact. It applies the
// configured field values to the contact this run belongs to.
type ContactUpdateExecutor struct{}

func (e *ContactUpdateExecutor) Execute(_ context.Context, node Node, state *ExecutionState) (*StepResult, error) {
	fields, _ := node.Data.Config["fields"].(map[string]any)
	if len(fields) == 0 {
		return &StepResult{
			Status: "completed",
			Output: map[string]any{"message": "No contact fields configured, nothing to update"},
		}, nil
	}

	updated := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok {
			v = renderTemplate(s, state.Variables)
		}
		updated[k] = v
		state.Variables["contact."+k] = v
	}

	return &StepResult{
		Status: "completed",
		Output: map[string]any{
			"message":       fmt.Sprintf("Updated %d contact field(s)", len(updated)),
			"updatedFields": updated,
		},
	}, nil
}

// HTTPRequestExecutor handles action:http_request. It calls the configured
// URL with the run's variables as a JSON body.
type HTTPRequestExecutor struct {
	client *http.Client
}

func (e *HTTPRequestExecutor) Execute(ctx context.Context, node Node, state *ExecutionState) (*StepResult, error) {
	rawURL, _ := node.Data.Config["url"].(string)
	if rawURL == "" {
		return nil, fmt.Errorf("http_request node %q has no url configured", node.ID)
	}
	method, _ := node.Data.Config["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if method != http.MethodGet {
		payload, err := jsonBody(state.Variables)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = payload
	}

	req, err := http.NewRequestWithContext(ctx, method, renderTemplate(rawURL, state.Variables), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http request returned status %d", resp.StatusCode)
	}

	state.Variables["httpStatus"] = resp.StatusCode
	return &StepResult{
		Status: "completed",
		Output: map[string]any{
			"message":    fmt.Sprintf("%s %s returned %d", method, rawURL, resp.StatusCode),
			"statusCode": resp.StatusCode,
		},
	}, nil
}

// RouterExecutor handles logic:router. It evaluates the configured route
// rules in order and records the first match; downstream nodes can read the
// chosen route from the run's variables.
type RouterExecutor struct{}

func (e *RouterExecutor) Execute(_ context.Context, node Node, state *ExecutionState) (*StepResult, error) {
	routes, _ := node.Data.Config["routes"].([]any)
	chosen, _ := node.Data.Config["defaultRoute"].(string)
	if chosen == "" {
		chosen = "default"
	}

	for _, raw := range routes {
		route, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := route["name"].(string)
		when, _ := route["when"].(map[string]any)
		if name == "" || when == nil {
			continue
		}
		if matchesRule(when, state.Variables) {
			chosen = name
			break
		}
	}

	state.Variables["route"] = chosen
	return &StepResult{
		Status: "completed",
		Output: map[string]any{
			"message": fmt.Sprintf("Routed to %q", chosen),
			"route":   chosen,
		},
	}, nil
}

// UnrecognizedExecutor handles generic:unrecognized. Unknown node types are
// skipped rather than failing the run.
type UnrecognizedExecutor struct{}

func (e *UnrecognizedExecutor) Execute(_ context.Context, node Node, _ *ExecutionState) (*StepResult, error) {
	return &StepResult{
		Status: "skipped",
		Output: map[string]any{
			"message": fmt.Sprintf("Node %q has an unrecognized type and was skipped", node.ID),
		},
	}, nil
}

// matchesRule evaluates a single {field, operator, value} rule against the
// run's variables.
func matchesRule(rule map[string]any, vars map[string]any) bool {
	field, _ := rule["field"].(string)
	operator, _ := rule["operator"].(string)
	value := rule["value"]

	current, ok := vars[field]
	if !ok {
		return false
	}

	switch operator {
	case "equals":
		return fmt.Sprint(current) == fmt.Sprint(value)
	case "not_equals":
		return fmt.Sprint(current) != fmt.Sprint(value)
	case "contains":
		return strings.Contains(fmt.Sprint(current), fmt.Sprint(value))
	case "greater_than":
		a, okA := toFloat64(current)
		b, okB := toFloat64(value)
		return okA && okB && a > b
	case "less_than":
		a, okA := toFloat64(current)
		b, okB := toFloat64(value)
		return okA && okB && a < b
	default:
		return false
	}
}

// renderTemplate substitutes {{name}} placeholders with variable values.
// Unknown placeholders are left as-is.
func renderTemplate(tmpl string, vars map[string]any) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// toFloat64 converts an any value to float64, handling common numeric types.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
