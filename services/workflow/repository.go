package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles workflow and run persistence in PostgreSQL. Nodes,
// edges, trigger envelopes and step sequences are stored as JSONB documents;
// the engine never issues queries outside this type.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// InitSchema creates the workflow tables if they do not exist.
func (r *Repository) InitSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflows (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			is_active  BOOLEAN NOT NULL DEFAULT FALSE,
			nodes      JSONB NOT NULL DEFAULT '[]',
			edges      JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("init workflows schema: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_runs (
			id          UUID PRIMARY KEY,
			workflow_id UUID NOT NULL,
			status      TEXT NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			trigger     JSONB NOT NULL DEFAULT '{}',
			steps       JSONB NOT NULL DEFAULT '[]'
		)
	`)
	if err != nil {
		return fmt.Errorf("init workflow_runs schema: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS workflow_runs_workflow_id_started_at
		ON workflow_runs (workflow_id, started_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("init workflow_runs index: %w", err)
	}
	return nil
}

// Seed inserts the sample lead-nurture workflow if it does not already exist.
func (r *Repository) Seed(ctx context.Context) error {
	nodesJSON, err := json.Marshal(sampleNodes)
	if err != nil {
		return fmt.Errorf("marshal seed nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(sampleEdges)
	if err != nil {
		return fmt.Errorf("marshal seed edges: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO workflows (id, name, nodes, edges)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, sampleWorkflowID, "Intent Lead Nurture", nodesJSON, edgesJSON)
	if err != nil {
		return fmt.Errorf("seed workflow: %w", err)
	}
	return nil
}

// Get retrieves a workflow by ID. Returns nil, nil if not found.
func (r *Repository) Get(ctx context.Context, id string) (*Workflow, error) {
	var wf Workflow
	var nodesJSON, edgesJSON []byte

	err := r.db.QueryRow(ctx, `
		SELECT id, name, is_active, nodes, edges, created_at, updated_at
		FROM workflows WHERE id = $1
	`, id).Scan(&wf.ID, &wf.Name, &wf.IsActive, &nodesJSON, &edgesJSON, &wf.CreatedAt, &wf.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}

	if err := json.Unmarshal(nodesJSON, &wf.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(edgesJSON, &wf.Edges); err != nil {
		return nil, fmt.Errorf("unmarshal edges: %w", err)
	}
	return &wf, nil
}

// SetActive flips a workflow's active flag.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE workflows SET is_active = $2, updated_at = NOW() WHERE id = $1
	`, id, active)
	if err != nil {
		return fmt.Errorf("set workflow active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workflow %s not found", id)
	}
	return nil
}

// SaveRun upserts a run record. Runs are written once after execution
// completes; re-saving an id replaces the record.
func (r *Repository) SaveRun(ctx context.Context, run *WorkflowRun) error {
	triggerJSON, err := json.Marshal(run.Trigger)
	if err != nil {
		return fmt.Errorf("marshal run trigger: %w", err)
	}
	stepsJSON, err := json.Marshal(run.Steps)
	if err != nil {
		return fmt.Errorf("marshal run steps: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO workflow_runs (id, workflow_id, status, started_at, finished_at, trigger, steps)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			steps = EXCLUDED.steps
	`, run.ID, run.WorkflowID, run.Status, run.StartedAt, run.FinishedAt, triggerJSON, stepsJSON)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit of a workflow's runs, most-recent-first. Run
// history grows without bound, so the query is always capped.
func (r *Repository) ListRuns(ctx context.Context, workflowID string, limit int) ([]WorkflowRun, error) {
	if limit <= 0 {
		limit = defaultRunHistoryLimit
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, workflow_id, status, started_at, finished_at, trigger, steps
		FROM workflow_runs
		WHERE workflow_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run with its full step sequence. Returns nil, nil if not found.
func (r *Repository) GetRun(ctx context.Context, runID string) (*WorkflowRun, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, workflow_id, status, started_at, finished_at, trigger, steps
		FROM workflow_runs WHERE id = $1
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get run: %w", err)
		}
		return nil, nil
	}
	return scanRun(rows)
}

func scanRun(rows pgx.Rows) (*WorkflowRun, error) {
	var run WorkflowRun
	var finishedAt *time.Time
	var triggerJSON, stepsJSON []byte

	if err := rows.Scan(&run.ID, &run.WorkflowID, &run.Status, &run.StartedAt, &finishedAt, &triggerJSON, &stepsJSON); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.FinishedAt = finishedAt

	if err := json.Unmarshal(triggerJSON, &run.Trigger); err != nil {
		return nil, fmt.Errorf("unmarshal run trigger: %w", err)
	}
	if err := json.Unmarshal(stepsJSON, &run.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal run steps: %w", err)
	}
	return &run, nil
}

// InitDB creates the schema and seeds initial data. Called from main on startup.
func InitDB(ctx context.Context, pool *pgxpool.Pool) error {
	repo := NewRepository(pool)
	if err := repo.InitSchema(ctx); err != nil {
		return err
	}
	return repo.Seed(ctx)
}

const sampleWorkflowID = "7d9e1c2a-4f5b-4a6d-9c8e-1b2a3c4d5e6f"

var sampleNodes = []Node{
	{
		ID: "intent-trigger", Type: "trigger",
		Position: Position{X: 0, Y: 140},
		Data: NodeData{
			NodeType: NodeTypeIntentTrigger,
			Label:    "High-Intent Signal",
			Config: map[string]any{
				"topics":              []any{"pricing", "competitors"},
				"minScore":            75.0,
				"pollIntervalMinutes": 15.0,
			},
		},
	},
	{
		ID: "router", Type: "logic",
		Position: Position{X: 300, Y: 140},
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
		ID: "alert-email", Type: "action",
		Position: Position{X: 600, Y: 0},
		Data: NodeData{
			NodeType: NodeTypeSendEmail,
			Label:    "Notify Account Owner",
			Config: map[string]any{
				"subject": "High intent: {{subject}}",
				"body":    "{{subject}} showed intent on {{topic}} (score {{score}}).",
			},
		},
	},
	{
		ID: "update-contact", Type: "action",
		Position: Position{X: 600, Y: 280},
		Data: NodeData{
			NodeType: NodeTypeUpdateContact,
			Label:    "Tag Contact",
			Config: map[string]any{
				"fields": map[string]any{
					"lifecycleStage": "{{route}}",
					"lastIntentAt":   "{{observedAt}}",
				},
			},
		},
	},
}

var sampleEdges = []Edge{
	{ID: "e1", Source: "intent-trigger", Target: "router", Type: "smoothstep", Animated: true, Label: "Signal"},
	{ID: "e2", Source: "router", Target: "alert-email", Type: "smoothstep", SourceHandle: "hot", Animated: true, Label: "Hot"},
	{ID: "e3", Source: "router", Target: "update-contact", Type: "smoothstep", SourceHandle: "nurture", Label: "Nurture"},
}
