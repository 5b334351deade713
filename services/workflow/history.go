package workflow

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Run statuses. A run is mutable only while running.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// WorkflowRun is one execution instance of a workflow. Steps are stored as an
// ordered sequence in execution order (scheduler-determined), so the UI can
// render them stably without re-deriving the order from a map.
type WorkflowRun struct {
	ID         string       `json:"id"`
	WorkflowID string       `json:"workflowId"`
	Status     string       `json:"status"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
	Trigger    TriggerEvent `json:"trigger"`
	Steps      []RunStep    `json:"steps"`
}

// RunStep is the result of executing a single node within a run.
type RunStep struct {
	NodeID     string         `json:"nodeId"`
	NodeType   string         `json:"nodeType"`
	Label      string         `json:"label"`
	Status     string         `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	DurationMs int64          `json:"durationMs"`
	Error      string         `json:"error,omitempty"`
}

// Step returns the step result for a node id, if the run reached that node.
func (r *WorkflowRun) Step(nodeID string) (RunStep, bool) {
	for _, s := range r.Steps {
		if s.NodeID == nodeID {
			return s, true
		}
	}
	return RunStep{}, false
}

// Bounds on how many runs a single history page returns.
const (
	defaultRunHistoryLimit = 50
	maxRunHistoryLimit     = 200
)

// RunStore records workflow runs and serves run history.
type RunStore interface {
	SaveRun(ctx context.Context, run *WorkflowRun) error
	// ListRuns returns up to limit of a workflow's runs, most-recent-first.
	ListRuns(ctx context.Context, workflowID string, limit int) ([]WorkflowRun, error)
	// GetRun returns a run with its full step sequence, or nil if unknown.
	GetRun(ctx context.Context, runID string) (*WorkflowRun, error)
}

// MemoryRunStore is an in-process RunStore, used in tests and local
// development without a database.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]WorkflowRun
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]WorkflowRun)}
}

func (s *MemoryRunStore) SaveRun(_ context.Context, run *WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *MemoryRunStore) ListRuns(_ context.Context, workflowID string, limit int) ([]WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var runs []WorkflowRun
	for _, r := range s.runs {
		if r.WorkflowID == workflowID {
			runs = append(runs, r)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryRunStore) GetRun(_ context.Context, runID string) (*WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.runs[runID]; ok {
		return &r, nil
	}
	return nil, nil
}
