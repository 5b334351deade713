package workflow

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping repository tests")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestRepository_InitSchema(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	err := repo.InitSchema(context.Background())
	require.NoError(t, err)

	// Running again should be idempotent
	err = repo.InitSchema(context.Background())
	require.NoError(t, err)
}

func TestRepository_Seed_Idempotent(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	require.NoError(t, repo.Seed(ctx))
	require.NoError(t, repo.Seed(ctx)) // Second call should not error
}

func TestRepository_Get_Found(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))
	require.NoError(t, repo.Seed(ctx))

	wf, err := repo.Get(ctx, sampleWorkflowID)
	require.NoError(t, err)
	require.NotNil(t, wf)

	assert.Equal(t, sampleWorkflowID, wf.ID)
	assert.Equal(t, "Intent Lead Nurture", wf.Name)
	assert.Len(t, wf.Nodes, 4)
	assert.Len(t, wf.Edges, 3)

	var hasTrigger bool
	for _, n := range wf.Nodes {
		if n.Data.NodeType == NodeTypeIntentTrigger {
			hasTrigger = true
			break
		}
	}
	assert.True(t, hasTrigger, "seed workflow should have an intent trigger node")
}

func TestRepository_Get_NotFound(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	wf, err := repo.Get(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, wf)
}

func TestRepository_SetActive(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))
	require.NoError(t, repo.Seed(ctx))

	require.NoError(t, repo.SetActive(ctx, sampleWorkflowID, true))
	wf, err := repo.Get(ctx, sampleWorkflowID)
	require.NoError(t, err)
	assert.True(t, wf.IsActive)

	require.NoError(t, repo.SetActive(ctx, sampleWorkflowID, false))
	wf, err = repo.Get(ctx, sampleWorkflowID)
	require.NoError(t, err)
	assert.False(t, wf.IsActive)
}

func TestRepository_SetActive_Unknown(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	err := repo.SetActive(ctx, "00000000-0000-0000-0000-000000000000", true)
	require.Error(t, err)
}

func TestRepository_Runs(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	workflowID := uuid.New().String()
	finished := time.Now().UTC().Truncate(time.Millisecond)

	older := &WorkflowRun{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Status:     RunStatusFailed,
		StartedAt:  finished.Add(-2 * time.Hour),
		Trigger:    TriggerEvent{Trigger: "intent", Timestamp: finished.Add(-2 * time.Hour), Data: map[string]any{"subject": "a"}},
		Steps: []RunStep{
			{NodeID: "trigger", NodeType: NodeTypeIntentTrigger, Status: "completed", DurationMs: 2},
			{NodeID: "email", NodeType: NodeTypeSendEmail, Status: "failed", Error: "no recipient", DurationMs: 1},
		},
	}
	newer := &WorkflowRun{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Status:     RunStatusSucceeded,
		StartedAt:  finished.Add(-time.Hour),
		FinishedAt: &finished,
		Trigger:    TriggerEvent{Trigger: "intent", Timestamp: finished.Add(-time.Hour), Data: map[string]any{"subject": "b"}},
		Steps: []RunStep{
			{NodeID: "trigger", NodeType: NodeTypeIntentTrigger, Status: "completed", DurationMs: 3},
		},
	}

	require.NoError(t, repo.SaveRun(ctx, older))
	require.NoError(t, repo.SaveRun(ctx, newer))

	runs, err := repo.ListRuns(ctx, workflowID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID, "most recent run first")
	assert.Equal(t, older.ID, runs[1].ID)

	run, err := repo.GetRun(ctx, older.ID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunStatusFailed, run.Status)
	require.Len(t, run.Steps, 2)
	// Step order survives the round trip.
	assert.Equal(t, "trigger", run.Steps[0].NodeID)
	assert.Equal(t, "email", run.Steps[1].NodeID)
	assert.Equal(t, "no recipient", run.Steps[1].Error)
}

func TestRepository_GetRun_NotFound(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	run, err := repo.GetRun(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, run)
}
