package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/crif"
	"github.com/wonny/atlas/internal/engine"
	"github.com/wonny/atlas/internal/report"
	"github.com/wonny/atlas/pkg/config"
	"github.com/wonny/atlas/pkg/logger"
	"github.com/wonny/atlas/pkg/redis"
)

// Runner runs margin pipelines
type Runner interface {
	Run(ctx context.Context, config engine.RunConfig) (*engine.RunResult, error)
}

// RunHandler handles margin run API endpoints
// ⭐ SSOT: 마진 런 API 핸들러는 이 구조체에서만
type RunHandler struct {
	runRepo  *report.Repository
	crifRepo *crif.Repository
	runner   Runner
	cache    *redis.Cache
	config   *config.Config
	logger   *logger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(
	runRepo *report.Repository,
	crifRepo *crif.Repository,
	runner Runner,
	cache *redis.Cache,
	cfg *config.Config,
	log *logger.Logger,
) *RunHandler {
	return &RunHandler{
		runRepo:  runRepo,
		crifRepo: crifRepo,
		runner:   runner,
		cache:    cache,
		config:   cfg,
		logger:   log,
	}
}

// ListRuns returns the most recent margin runs
// GET /api/v1/runs?limit=20
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	runs, err := h.runRepo.ListRuns(ctx, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

// GetRun returns the metadata of one margin run
// GET /api/v1/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := mux.Vars(r)["id"]

	run, err := h.runRepo.GetRun(ctx, runID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// GetStatus returns the live stage-by-stage status of a run. The
// snapshot comes from Redis while the run is in flight; finished runs
// fall back to the stored run row.
// GET /api/v1/runs/{id}/status
func (h *RunHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := mux.Vars(r)["id"]

	if h.cache != nil {
		var snapshot contracts.RunSnapshot
		found, err := h.cache.Get(ctx, redis.RunStatusKey(runID), &snapshot)
		if err == nil && found {
			respondJSON(w, http.StatusOK, snapshot)
			return
		}
	}

	run, err := h.runRepo.GetRun(ctx, runID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}

	respondJSON(w, http.StatusOK, contracts.RunSnapshot{
		RunID:     run.RunID,
		Status:    run.Status,
		Error:     run.Error,
		UpdatedAt: run.CreatedAt.Unix(),
	})
}

// GetResults returns the stored margin rows of a run
// GET /api/v1/runs/{id}/results?side=Call&portfolio=CP-1
func (h *RunHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := mux.Vars(r)["id"]

	side := r.URL.Query().Get("side")
	if side != "" {
		if _, err := contracts.ParseSide(side); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid side (valid: Call, Post)")
			return
		}
	}
	portfolio := r.URL.Query().Get("portfolio")

	rows, err := h.runRepo.GetResults(ctx, runID, side, portfolio)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get run results")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve results")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"count":   len(rows),
		"results": rows,
	})
}

// GetFinal returns the published winning-regulation margins of a run
// GET /api/v1/runs/{id}/final
func (h *RunHandler) GetFinal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := mux.Vars(r)["id"]

	rows, err := h.runRepo.GetFinalResults(ctx, runID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get final results")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve final results")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"count":   len(rows),
		"results": rows,
	})
}

// GetCrif returns the netted sensitivity records stored for a run
// GET /api/v1/runs/{id}/crif
func (h *RunHandler) GetCrif(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := mux.Vars(r)["id"]

	records, err := h.crifRepo.GetRecords(ctx, runID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get CRIF records")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve CRIF records")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"count":   len(records),
		"records": records,
	})
}

// TriggerRequest represents a margin run request
type TriggerRequest struct {
	CrifFile   string `json:"crifFile"`   // CRIF CSV path, defaults to SIMM_CRIF_FILE
	AsOf       string `json:"asOf"`       // Optional: valuation date (YYYY-MM-DD)
	Store      *bool  `json:"store"`      // Optional: persist results (default true)
	WriteFiles bool   `json:"writeFiles"` // Also write CSV reports under the output dir
}

// TriggerResponse represents a margin run response
type TriggerResponse struct {
	Status  string               `json:"status"`
	RunID   string               `json:"runId"`
	Summary contracts.RunSummary `json:"summary"`
	Reports []string             `json:"reports,omitempty"`
}

// Trigger starts a margin run and waits for it to finish
// POST /api/v1/runs
func (h *RunHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	crifFile := req.CrifFile
	if crifFile == "" {
		crifFile = h.config.Simm.CrifFile
	}
	if crifFile == "" {
		respondError(w, http.StatusBadRequest, "crifFile is required (no SIMM_CRIF_FILE configured)")
		return
	}

	asOf := time.Now()
	if req.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'asOf' date format (expected YYYY-MM-DD)")
			return
		}
		asOf = parsed
	}

	store := true
	if req.Store != nil {
		store = *req.Store
	}

	runConfig := engine.RunConfig{
		AsOf:                asOf,
		Source:              crif.NewFileSource(crifFile, h.logger),
		ParamsFile:          h.config.Simm.ParamsFile,
		CalculationCurrency: h.config.Simm.CalculationCurrency,
		ResultCurrency:      h.config.Simm.ResultCurrency,
		EnforceRegulations:  h.config.Simm.EnforceRegulations,
		Workers:             h.config.Simm.Workers,
		Store:               store,
	}
	if req.WriteFiles {
		runConfig.OutputDir = filepath.Join(h.config.Simm.OutputDir, asOf.Format("2006-01-02"))
	}

	h.logger.WithFields(map[string]interface{}{
		"crif_file": crifFile,
		"as_of":     asOf.Format("2006-01-02"),
		"store":     store,
	}).Info("Margin run triggered")

	result, err := h.runner.Run(ctx, runConfig)
	if err != nil {
		h.logger.WithError(err).Error("Triggered margin run failed")
		respondError(w, http.StatusInternalServerError, "Margin run failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, TriggerResponse{
		Status:  "success",
		RunID:   result.RunID,
		Summary: result.Summary,
		Reports: result.ReportFiles,
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
