package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fuels-pipeline/internal/config"
	"fuels-pipeline/internal/metrics"
	"fuels-pipeline/internal/model"
	"fuels-pipeline/internal/pipeline"
	"fuels-pipeline/internal/store"
	"fuels-pipeline/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const pipelinesPrefix = "/api/v1/pipelines/"

// Handler serves the pipeline API. At most one run is active at a time.
type Handler struct {
	ctx     context.Context
	cfg     *config.Config
	store   *store.Store
	metrics *metrics.Collector
	outputs *utils.OutputManager
	logger  *zap.Logger

	active atomic.Bool
	wg     sync.WaitGroup
}

// New creates a Handler. Runs started through it are canceled when ctx is done.
func New(ctx context.Context, cfg *config.Config, st *store.Store, m *metrics.Collector, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Handler{
		ctx:     ctx,
		cfg:     cfg,
		store:   st,
		metrics: m,
		outputs: utils.NewOutputManager(cfg.OutputDir),
		logger:  logger,
	}
}

// Wait blocks until the active run, if any, has returned.
func (h *Handler) Wait() { h.wg.Wait() }

// CreatePipeline starts a pipeline run
// @Summary Start a pipeline run
// @Description Resolve the named domain and run the full FastFuels job chain in the background
// @Tags pipelines
// @Accept json
// @Produce json
// @Param pipeline body model.PipelineRunRequest true "Project and credentials"
// @Success 202 {object} model.PipelineRunResponse "Run accepted"
// @Failure 400 {string} string "Invalid request payload"
// @Failure 409 {string} string "A run is already active"
// @Failure 500 {string} string "Internal server error"
// @Router /pipelines [post]
func (h *Handler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req model.PipelineRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	// 1. Build the run config from the server defaults
	cfg := h.cfg.Clone()
	if v := strings.TrimSpace(req.ProjectName); v != "" {
		cfg.ProjectName = v
	}
	if v := strings.TrimSpace(req.APIKey); v != "" {
		cfg.APIKey = v
	}
	if req.PollTimeout != "" {
		d, err := time.ParseDuration(req.PollTimeout)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid poll_timeout %q", req.PollTimeout), http.StatusBadRequest)
			return
		}
		cfg.Poll.Timeout = d
	}
	err := cfg.Validate()
	if err == nil {
		err = cfg.ValidateCredentials()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// 2. Claim the single run slot
	if !h.active.CompareAndSwap(false, true) {
		http.Error(w, "A pipeline run is already active", http.StatusConflict)
		return
	}

	// 3. Persist the run and its output directory
	runID := uuid.New().String()
	outputDir, err := h.outputs.CreateRunOutputDir(runID)
	if err == nil {
		err = h.store.CreateRun(model.Run{ID: runID, ProjectName: cfg.ProjectName, OutputDir: outputDir})
	}
	if err != nil {
		h.active.Store(false)
		h.logger.Error("create run failed", zap.Error(err))
		http.Error(w, "Failed to create run", http.StatusInternalServerError)
		return
	}

	// 4. Start the pipeline asynchronously
	logger := h.logger.Named("pipeline")
	o := pipeline.New(cfg, pipeline.NewClient(cfg, logger), runID, outputDir,
		pipeline.WithTracker(pipeline.NewTracker(h.store, h.metrics, logger)),
		pipeline.WithPollObserver(h.metrics),
		pipeline.WithLogger(logger),
	)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.active.Store(false)
		if err := o.Run(h.ctx); err != nil {
			logger.Warn("pipeline run failed", zap.String("run_id", runID), zap.Error(err))
		}
	}()

	// 5. Return response
	writeJSON(w, http.StatusAccepted, model.PipelineRunResponse{
		Message: "Pipeline run started",
		RunID:   runID,
		Status:  model.StatusPending,
	})
}

// ListPipelines retrieves all runs
// @Summary List pipeline runs
// @Description Get every pipeline run, newest first
// @Tags pipelines
// @Produce json
// @Success 200 {array} model.Run "List of runs"
// @Failure 500 {string} string "Internal server error"
// @Router /pipelines [get]
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch pipelines", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(runs))
}

// GetPipeline retrieves a run with its stage progress
// @Summary Get pipeline run
// @Description Retrieve a run and the progress of each stage
// @Tags pipelines
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunDetail "Run details"
// @Failure 400 {string} string "Invalid run ID"
// @Failure 404 {string} string "Run not found"
// @Router /pipelines/{id} [get]
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r, "")
	if !ok {
		return
	}
	stages, err := h.store.GetStageProgress(run.ID)
	if err != nil {
		http.Error(w, "Failed to fetch stages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, model.RunDetail{Run: *run, Stages: nonNil(stages)})
}

// GetPipelineStages retrieves the stage progress of a run
// @Summary Get pipeline stages
// @Description Retrieve status, attempts and timing of each stage that has started
// @Tags pipelines
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.StageProgress "Stage progress"
// @Failure 404 {string} string "Run not found"
// @Router /pipelines/{id}/stages [get]
func (h *Handler) GetPipelineStages(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r, "/stages")
	if !ok {
		return
	}
	stages, err := h.store.GetStageProgress(run.ID)
	if err != nil {
		http.Error(w, "Failed to fetch stages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(stages))
}

// GetPipelineLogs retrieves the log lines of a run
// @Summary Get pipeline logs
// @Description Retrieve the log lines recorded while the run executed
// @Tags pipelines
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.RunLog "Run logs"
// @Failure 404 {string} string "Run not found"
// @Router /pipelines/{id}/logs [get]
func (h *Handler) GetPipelineLogs(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r, "/logs")
	if !ok {
		return
	}
	logs, err := h.store.GetPipelineLogs(run.ID)
	if err != nil {
		http.Error(w, "Failed to fetch logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(logs))
}

// GetPipelineErrors retrieves errors for a run
// @Summary Get pipeline errors
// @Description Retrieve the error that halted the run, if any
// @Tags pipelines
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.RunError "Run errors"
// @Failure 404 {string} string "Run not found"
// @Router /pipelines/{id}/errors [get]
func (h *Handler) GetPipelineErrors(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r, "/errors")
	if !ok {
		return
	}
	errs, err := h.store.GetRunErrors(run.ID)
	if err != nil {
		http.Error(w, "Failed to fetch errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(errs))
}

// GetPipelineArtifacts lists the files a run produced
// @Summary List run artifacts
// @Description List the files in the run's output directory with download links
// @Tags files
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.ArtifactFile "Artifacts"
// @Failure 404 {string} string "Run not found"
// @Router /pipelines/{id}/artifacts [get]
func (h *Handler) GetPipelineArtifacts(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r, "/artifacts")
	if !ok {
		return
	}
	files, err := h.outputs.ListArtifacts(run.ID)
	if err != nil {
		http.Error(w, "Failed to list artifacts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// DownloadFile serves an artifact
// @Summary Download artifact
// @Description Download a file produced by a run
// @Tags files
// @Produce octet-stream
// @Param id path string true "Run ID"
// @Param file path string true "File name"
// @Success 200 {file} file "Artifact contents"
// @Failure 400 {string} string "Invalid file name"
// @Failure 404 {string} string "File not found"
// @Router /download/{id}/{file} [get]
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	// URL format: /api/v1/download/runID/filename
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 5 {
		http.Error(w, fmt.Sprintf("Invalid URL format. Expected 5 parts, got %d", len(pathParts)), http.StatusBadRequest)
		return
	}
	runID, fileName := pathParts[3], pathParts[4]

	filePath, err := h.outputs.FilePath(runID, fileName)
	if err != nil {
		http.Error(w, "Invalid file name", http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(filePath); err != nil || info.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Type", h.outputs.ContentType(fileName))
	http.ServeFile(w, r, filePath)
}

// lookupRun extracts the run id between the pipelines prefix and suffix and
// loads the run, writing the error response itself when it fails.
func (h *Handler) lookupRun(w http.ResponseWriter, r *http.Request, suffix string) (*model.Run, bool) {
	path := r.URL.Path
	if !strings.HasPrefix(path, pipelinesPrefix) || !strings.HasSuffix(path, suffix) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return nil, false
	}
	runID := strings.TrimSuffix(strings.TrimPrefix(path, pipelinesPrefix), suffix)
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return nil, false
	}

	run, err := h.store.GetRun(runID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	case err != nil:
		h.logger.Error("get run failed", zap.String("run_id", runID), zap.Error(err))
		http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
