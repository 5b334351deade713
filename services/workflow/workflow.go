package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// HandleListNodeTypes returns the palette of node types a user can add,
// grouped by category. System types are internal and never listed.
func (s *Service) HandleListNodeTypes(w http.ResponseWriter, _ *http.Request) {
	type paletteItem struct {
		NodeTypeDefinition
		DefaultData NodeData `json:"defaultData"`
	}

	palette := make(map[string][]paletteItem)
	for _, category := range []Category{CategoryTriggers, CategoryActions, CategoryLogic} {
		items := []paletteItem{}
		for _, def := range DefinitionsByCategory(category) {
			items = append(items, paletteItem{NodeTypeDefinition: def, DefaultData: def.DefaultData()})
		}
		palette[string(category)] = items
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(palette)
}

// HandleGetWorkflow loads a workflow, migrates legacy node shapes and lays
// the graph out for the canvas.
func (s *Service) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	slog.Debug("Getting workflow", "id", id)

	wf, err := s.repo.Get(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get workflow", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if wf == nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}

	wf.Nodes = MigrateNodes(wf.Nodes)
	wf.Nodes, wf.Edges = ComputeLayout(wf.Nodes, wf.Edges)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(wf)
}

// HandleExecuteWorkflow runs a workflow manually with the trigger data from
// the request body and returns the recorded run.
func (s *Service) HandleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	slog.Debug("Executing workflow", "id", id)

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Trigger.Data == nil {
		writeError(w, http.StatusBadRequest, errMissing("trigger.data").Error())
		return
	}
	if req.Trigger.Trigger == "" {
		req.Trigger.Trigger = "manual"
	}
	if req.Trigger.Timestamp.IsZero() {
		req.Trigger.Timestamp = time.Now().UTC()
	}

	wf, err := s.repo.Get(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get workflow for execution", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if wf == nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}

	run, err := s.engine.Execute(r.Context(), wf, req.Trigger)
	if err != nil {
		slog.Error("Workflow execution failed", "id", id, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.runs.SaveRun(r.Context(), run); err != nil {
		slog.Error("Failed to record run", "id", id, "runId", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(run)
}

// HandleListRuns returns a page of a workflow's run history, most recent
// first. The page size defaults to 50 and is capped via the limit query
// parameter.
func (s *Service) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	limit := defaultRunHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunHistoryLimit {
			writeError(w, http.StatusBadRequest, errInvalid("limit").Error())
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), id, limit)
	if err != nil {
		slog.Error("Failed to list runs", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if runs == nil {
		runs = []WorkflowRun{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(runs)
}

// HandleGetRun returns one run with its full step sequence.
func (s *Service) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	run, err := s.runs.GetRun(r.Context(), vars["runId"])
	if err != nil {
		slog.Error("Failed to get run", "runId", vars["runId"], "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if run == nil || run.WorkflowID != vars["id"] {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(run)
}

// HandleActivateWorkflow starts recurring trigger polling for the workflow
// and marks it active.
func (s *Service) HandleActivateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	slog.Debug("Activating workflow", "id", id)

	wf, err := s.repo.Get(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get workflow for activation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if wf == nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}

	cfg, err := triggerConfigFromWorkflow(wf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	callback := func(ctx context.Context, event TriggerEvent) error {
		_, err := s.runWorkflow(ctx, id, event)
		return err
	}

	if err := s.triggers.StartPolling(r.Context(), id, cfg, callback); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.repo.SetActive(r.Context(), id, true); err != nil {
		slog.Error("Failed to mark workflow active", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"id": id, "isActive": true})
}

// HandleDeactivateWorkflow stops trigger polling and marks the workflow
// inactive. Stopping is idempotent.
func (s *Service) HandleDeactivateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	slog.Debug("Deactivating workflow", "id", id)

	s.triggers.StopPolling(id)

	if err := s.repo.SetActive(r.Context(), id, false); err != nil {
		slog.Error("Failed to mark workflow inactive", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"id": id, "isActive": false})
}

// HandleTestTrigger checks the workflow's trigger connection and returns a
// bounded signal sample. Failures come back as a structured result, not an
// HTTP error.
func (s *Service) HandleTestTrigger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	wf, err := s.repo.Get(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get workflow for trigger test", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if wf == nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}

	cfg, err := triggerConfigFromWorkflow(wf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.triggers.TestTrigger(r.Context(), cfg)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

type validationError struct {
	field string
	kind  string
}

func (e *validationError) Error() string {
	if e.kind == "missing" {
		return e.field + " is required"
	}
	return e.field + " is invalid"
}

func errMissing(field string) error { return &validationError{field: field, kind: "missing"} }
func errInvalid(field string) error { return &validationError{field: field, kind: "invalid"} }
