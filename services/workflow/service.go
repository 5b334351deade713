package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"apexcrm/api/pkg/secrets"
)

// WorkflowRepo abstracts workflow persistence for testability.
type WorkflowRepo interface {
	Get(ctx context.Context, id string) (*Workflow, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// Service wires together persistence, the execution engine and the trigger
// manager for the workflow domain.
type Service struct {
	repo     WorkflowRepo
	runs     RunStore
	engine   *Engine
	triggers *TriggerManager
}

// NewService creates a Service with a PostgreSQL repository, the real intent
// API client and an AES-GCM credential decryptor.
func NewService(pool *pgxpool.Pool, intentAPIURL string, credentialsKey []byte) (*Service, error) {
	codec, err := secrets.NewCodec(credentialsKey)
	if err != nil {
		return nil, fmt.Errorf("credentials codec: %w", err)
	}
	repo := NewRepository(pool)
	source := NewIntentClient(intentAPIURL)
	return newService(repo, repo, source, &codecDecryptor{codec: codec}), nil
}

func newService(repo WorkflowRepo, runs RunStore, source SignalSource, decryptor CredentialDecryptor) *Service {
	return &Service{
		repo:     repo,
		runs:     runs,
		engine:   NewEngine(NewRegistry(nil)),
		triggers: NewTriggerManager(source, decryptor),
	}
}

// Close stops the trigger scheduler.
func (s *Service) Close() {
	s.triggers.Close()
}

// runWorkflow loads, executes and records one run. It serves both manual
// execution requests and fired triggers.
func (s *Service) runWorkflow(ctx context.Context, workflowID string, event TriggerEvent) (*WorkflowRun, error) {
	wf, err := s.repo.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("workflow %s not found", workflowID)
	}

	run, err := s.engine.Execute(ctx, wf, event)
	if err != nil {
		return nil, err
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return run, nil
}

// triggerConfigFromWorkflow builds the polling config from the workflow's
// intent trigger node. The encrypted credential blob is stored on the node;
// it is only ever decrypted inside a poll.
func triggerConfigFromWorkflow(wf *Workflow) (TriggerConfig, error) {
	var trigger *Node
	for i := range wf.Nodes {
		node := MigrateNode(wf.Nodes[i])
		if node.Data.NodeType == NodeTypeIntentTrigger {
			trigger = &node
			break
		}
	}
	if trigger == nil {
		return TriggerConfig{}, errMissing("intent trigger node")
	}

	cfg := TriggerConfig{SourceName: "intent"}
	cfg.EncryptedCredentials, _ = trigger.Data.Config["encryptedCredentials"].(string)
	if cfg.EncryptedCredentials == "" {
		return TriggerConfig{}, errMissing("credentials")
	}

	if topics, ok := trigger.Data.Config["topics"].([]any); ok {
		for _, t := range topics {
			if topic, ok := t.(string); ok && topic != "" {
				cfg.Filter.Topics = append(cfg.Filter.Topics, topic)
			}
		}
	}
	if minScore, ok := toFloat64(trigger.Data.Config["minScore"]); ok {
		cfg.Filter.MinScore = minScore
	}
	if minutes, ok := toFloat64(trigger.Data.Config["pollIntervalMinutes"]); ok {
		if minutes <= 0 {
			return TriggerConfig{}, errInvalid("pollIntervalMinutes")
		}
		cfg.PollInterval = time.Duration(minutes * float64(time.Minute))
	}
	return cfg, nil
}

// codecDecryptor adapts the AES-GCM codec to the CredentialDecryptor
// interface; the plaintext blob is a JSON object with apiKey/apiSecret.
type codecDecryptor struct {
	codec *secrets.Codec
}

func (d *codecDecryptor) Decrypt(encrypted string) (Credentials, error) {
	plaintext, err := d.codec.DecryptString(encrypted)
	if err != nil {
		return Credentials{}, err
	}
	var creds struct {
		APIKey    string `json:"apiKey"`
		APISecret string `json:"apiSecret"`
	}
	if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return Credentials{APIKey: creds.APIKey, APISecret: creds.APISecret}, nil
}

// jsonMiddleware sets the Content-Type header to application/json.
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// LoadRoutes registers workflow HTTP handlers on the given router.
func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	parentRouter.Handle("/node-types", jsonMiddleware(http.HandlerFunc(s.HandleListNodeTypes))).Methods("GET")

	router := parentRouter.PathPrefix("/workflows").Subrouter()
	router.StrictSlash(false)
	router.Use(jsonMiddleware)

	router.HandleFunc("/{id}", s.HandleGetWorkflow).Methods("GET")
	router.HandleFunc("/{id}/execute", s.HandleExecuteWorkflow).Methods("POST")
	router.HandleFunc("/{id}/runs", s.HandleListRuns).Methods("GET")
	router.HandleFunc("/{id}/runs/{runId}", s.HandleGetRun).Methods("GET")
	router.HandleFunc("/{id}/activate", s.HandleActivateWorkflow).Methods("POST")
	router.HandleFunc("/{id}/deactivate", s.HandleDeactivateWorkflow).Methods("POST")
	router.HandleFunc("/{id}/trigger/test", s.HandleTestTrigger).Methods("POST")
}
