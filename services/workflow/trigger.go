package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultPollInterval = 15 * time.Minute

// sampleSignalLimit bounds how many signals a trigger test returns.
const sampleSignalLimit = 5

// Credentials is the decrypted secret material for the external signal
// source. It lives in memory only for the duration of one poll and is never
// persisted or returned to callers.
type Credentials struct {
	APIKey    string
	APISecret string
}

// CredentialDecryptor turns the encrypted blob stored on a trigger node into
// usable credentials.
type CredentialDecryptor interface {
	Decrypt(encrypted string) (Credentials, error)
}

// FilterCriteria selects which signals fire a trigger.
type FilterCriteria struct {
	Topics   []string `json:"topics,omitempty"`
	MinScore float64  `json:"minScore,omitempty"`
}

// Signal is one buyer-intent observation from the external source.
type Signal struct {
	Subject    string         `json:"subject"`
	Topic      string         `json:"topic,omitempty"`
	Score      float64        `json:"score,omitempty"`
	ObservedAt time.Time      `json:"observedAt"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// SignalSource is the external intent-data API: authenticate for a token,
// then fetch the signals matching a filter.
type SignalSource interface {
	Authenticate(ctx context.Context, creds Credentials) (string, error)
	FetchSignals(ctx context.Context, token string, filter FilterCriteria) ([]Signal, error)
}

// TriggerEvent is the normalized envelope handed to the runtime when a
// trigger fires.
type TriggerEvent struct {
	Trigger   string         `json:"trigger"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// TriggerCallback is supplied by the runtime that owns a workflow; the
// manager is agnostic to what happens after the handoff.
type TriggerCallback func(ctx context.Context, event TriggerEvent) error

// TriggerConfig configures a recurring poll for one workflow.
type TriggerConfig struct {
	SourceName           string
	EncryptedCredentials string
	Filter               FilterCriteria
	PollInterval         time.Duration
}

// TriggerManager owns the recurring polling triggers, one handle per
// workflow id at most. One-shot triggers (webhooks, form submissions) are
// stateless HTTP endpoints and are not managed here.
type TriggerManager struct {
	source    SignalSource
	decryptor CredentialDecryptor
	cron      *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewTriggerManager creates a manager and starts its scheduler goroutine.
func NewTriggerManager(source SignalSource, decryptor CredentialDecryptor) *TriggerManager {
	m := &TriggerManager{
		source:    source,
		decryptor: decryptor,
		cron:      cron.New(),
		entries:   make(map[string]cron.EntryID),
	}
	m.cron.Start()
	return m
}

// StartPolling registers a recurring poll for the workflow. Any existing
// handle for the same workflow id is removed first, so at most one poll loop
// runs per workflow; remove, add and record happen under one lock so
// concurrent starts cannot stack handles. One poll is performed immediately
// so the first matching signal is not delayed by a full interval.
func (m *TriggerManager) StartPolling(ctx context.Context, workflowID string, cfg TriggerConfig, callback TriggerCallback) error {
	if cfg.EncryptedCredentials == "" {
		return errMissing("credentials")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	m.mu.Lock()
	if entryID, ok := m.entries[workflowID]; ok {
		m.cron.Remove(entryID)
		delete(m.entries, workflowID)
	}
	entryID, err := m.cron.AddFunc(fmt.Sprintf("@every %s", cfg.PollInterval), func() {
		m.poll(context.Background(), workflowID, cfg, callback)
	})
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("schedule poll for workflow %s: %w", workflowID, err)
	}
	m.entries[workflowID] = entryID
	m.mu.Unlock()

	m.poll(ctx, workflowID, cfg, callback)
	return nil
}

// StopPolling cancels the workflow's poll handle. A poll already in flight
// completes but is not rescheduled. No-op if no handle exists.
func (m *TriggerManager) StopPolling(workflowID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entryID, ok := m.entries[workflowID]; ok {
		m.cron.Remove(entryID)
		delete(m.entries, workflowID)
	}
}

// Polling reports whether the workflow currently has an active poll handle.
func (m *TriggerManager) Polling(workflowID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[workflowID]
	return ok
}

// Close stops the scheduler. Polls already running complete.
func (m *TriggerManager) Close() {
	m.cron.Stop()
}

// poll runs one authentication + fetch cycle and hands every matching signal
// to the callback. Failures are logged and swallowed so the schedule keeps
// firing.
func (m *TriggerManager) poll(ctx context.Context, workflowID string, cfg TriggerConfig, callback TriggerCallback) {
	creds, err := m.decryptor.Decrypt(cfg.EncryptedCredentials)
	if err != nil {
		slog.Error("Trigger poll failed to decrypt credentials", "workflowId", workflowID, "error", err)
		return
	}

	token, err := m.source.Authenticate(ctx, creds)
	if err != nil {
		slog.Error("Trigger poll authentication failed", "workflowId", workflowID, "error", err)
		return
	}

	signals, err := m.source.FetchSignals(ctx, token, cfg.Filter)
	if err != nil {
		slog.Error("Trigger poll fetch failed", "workflowId", workflowID, "error", err)
		return
	}

	for _, sig := range signals {
		event := signalEvent(cfg.SourceName, sig)
		if err := callback(ctx, event); err != nil {
			slog.Error("Trigger callback failed", "workflowId", workflowID, "subject", sig.Subject, "error", err)
		}
	}
}

func signalEvent(sourceName string, sig Signal) TriggerEvent {
	data := map[string]any{
		"subject":    sig.Subject,
		"topic":      sig.Topic,
		"score":      sig.Score,
		"observedAt": sig.ObservedAt,
	}
	for k, v := range sig.Attributes {
		data[k] = v
	}
	return TriggerEvent{
		Trigger:   sourceName,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// TriggerTestResult is the structured outcome of a connection test, safe to
// return to the UI: it never contains credential material.
type TriggerTestResult struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message,omitempty"`
	Error      string   `json:"error,omitempty"`
	SampleData []Signal `json:"sampleData,omitempty"`
}

// TestTrigger authenticates and fetches a small sample without registering a
// recurring handle. Failures are reported in the result, never returned as
// an error.
func (m *TriggerManager) TestTrigger(ctx context.Context, cfg TriggerConfig) TriggerTestResult {
	if cfg.EncryptedCredentials == "" {
		return TriggerTestResult{Success: false, Error: "credentials is required"}
	}

	creds, err := m.decryptor.Decrypt(cfg.EncryptedCredentials)
	if err != nil {
		return TriggerTestResult{Success: false, Error: fmt.Sprintf("could not decrypt credentials: %s", err)}
	}

	token, err := m.source.Authenticate(ctx, creds)
	if err != nil {
		return TriggerTestResult{Success: false, Error: fmt.Sprintf("authentication failed: %s", err)}
	}

	signals, err := m.source.FetchSignals(ctx, token, cfg.Filter)
	if err != nil {
		return TriggerTestResult{Success: false, Error: fmt.Sprintf("fetch failed: %s", err)}
	}

	if len(signals) > sampleSignalLimit {
		signals = signals[:sampleSignalLimit]
	}
	return TriggerTestResult{
		Success:    true,
		Message:    fmt.Sprintf("Connected. %d matching signal(s) in the sample.", len(signals)),
		SampleData: signals,
	}
}
