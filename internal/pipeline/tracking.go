package pipeline

import (
	"errors"
	"time"

	"fuels-pipeline/internal/model"

	"go.uber.org/zap"
)

// RunStore is the persistence the tracker writes run progress to.
type RunStore interface {
	UpdateRunStatus(runID, status string) error
	UpdateRunStage(runID string, stage model.StageName) error
	SetRunDomain(runID, domainID string) error
	FinishRun(runID, status, errorKind string, elapsed time.Duration) error
	SaveStageProgress(p model.StageProgress) error
	SavePipelineLog(runID string, stage model.StageName, level, message string, details map[string]any) error
	SaveRunError(runID string, stage model.StageName, kind string, err error) error
}

// RunMetrics receives stage and run level measurements.
type RunMetrics interface {
	ObserveStage(stage, status string, d time.Duration)
	ObserveDownload(artifact string, n int64)
	RunStarted()
	RunFinished(status string)
}

// Tracker is notified of every transition of a run.
type Tracker interface {
	RunStarted(s *model.Session)
	DomainResolved(s *model.Session)
	StageStarted(s *model.Session, stage model.StageName)
	StageFinished(s *model.Session, stage model.StageName, attempts int, took time.Duration, err error)
	ArtifactWritten(s *model.Session, artifact, path string, n int64)
	RunFinished(s *model.Session, err error)
}

// PipelineTracker records progress in the run store and the metrics
// collector. Either may be nil. Store failures are logged and never fail the run.
type PipelineTracker struct {
	store   RunStore
	metrics RunMetrics
	logger  *zap.Logger
}

// NewTracker creates a tracker.
func NewTracker(store RunStore, metrics RunMetrics, logger *zap.Logger) *PipelineTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineTracker{store: store, metrics: metrics, logger: logger}
}

func (t *PipelineTracker) RunStarted(s *model.Session) {
	if t.metrics != nil {
		t.metrics.RunStarted()
	}
	if t.store == nil {
		return
	}
	t.check("update run status", t.store.UpdateRunStatus(s.RunID, model.StatusRunning))
	t.check("save log", t.store.SavePipelineLog(s.RunID, "", "info", "pipeline started", map[string]any{
		"project_name": s.ProjectName,
		"output_dir":   s.OutputDir,
	}))
}

func (t *PipelineTracker) DomainResolved(s *model.Session) {
	if t.store == nil {
		return
	}
	t.check("set run domain", t.store.SetRunDomain(s.RunID, s.DomainID))
}

func (t *PipelineTracker) StageStarted(s *model.Session, stage model.StageName) {
	if t.store == nil {
		return
	}
	now := time.Now()
	t.check("update run stage", t.store.UpdateRunStage(s.RunID, stage))
	t.check("save stage progress", t.store.SaveStageProgress(model.StageProgress{
		RunID:     s.RunID,
		Stage:     stage,
		Status:    model.StatusRunning,
		StartedAt: &now,
	}))
}

func (t *PipelineTracker) StageFinished(s *model.Session, stage model.StageName, attempts int, took time.Duration, err error) {
	status := model.StatusCompleted
	if err != nil {
		status = model.StatusFailed
	}
	if t.metrics != nil {
		t.metrics.ObserveStage(string(stage), status, took)
	}
	if t.store == nil {
		return
	}

	now := time.Now()
	progress := model.StageProgress{
		RunID:    s.RunID,
		Stage:    stage,
		Status:   status,
		EndedAt:  &now,
		Attempts: attempts,
	}
	details := map[string]any{
		"duration_ms": took.Milliseconds(),
		"attempts":    attempts,
		"elapsed_ms":  s.Elapsed().Milliseconds(),
	}
	level, msg := "info", "stage completed"
	if err != nil {
		progress.Detail = err.Error()
		details["error_kind"] = string(KindOf(err))
		level, msg = "error", "stage failed"
		t.check("save run error", t.store.SaveRunError(s.RunID, stage, string(KindOf(err)), err))
	}
	t.check("save stage progress", t.store.SaveStageProgress(progress))
	t.check("save log", t.store.SavePipelineLog(s.RunID, stage, level, msg, details))
}

func (t *PipelineTracker) ArtifactWritten(s *model.Session, artifact, path string, n int64) {
	if t.metrics != nil && n > 0 {
		t.metrics.ObserveDownload(artifact, n)
	}
	if t.store == nil {
		return
	}
	t.check("save log", t.store.SavePipelineLog(s.RunID, "", "info", "artifact written", map[string]any{
		"artifact": artifact,
		"path":     path,
		"bytes":    n,
	}))
}

func (t *PipelineTracker) RunFinished(s *model.Session, err error) {
	status, kind := model.StatusCompleted, ""
	if err != nil {
		status, kind = model.StatusFailed, string(KindOf(err))
	}
	if t.metrics != nil {
		t.metrics.RunFinished(status)
	}
	if t.store == nil {
		return
	}
	t.check("finish run", t.store.FinishRun(s.RunID, status, kind, s.Elapsed()))
	if err != nil {
		// stage failures were saved by StageFinished
		var pe *Error
		if !errors.As(err, &pe) || pe.Stage == "" {
			t.check("save run error", t.store.SaveRunError(s.RunID, "", kind, err))
		}
	}
}

func (t *PipelineTracker) check(op string, err error) {
	if err != nil {
		t.logger.Warn("run tracking failed", zap.String("op", op), zap.Error(err))
	}
}

// NopTracker ignores all notifications.
type NopTracker struct{}

func (NopTracker) RunStarted(*model.Session) {}
func (NopTracker) DomainResolved(*model.Session) {}
func (NopTracker) StageStarted(*model.Session, model.StageName) {}
func (NopTracker) StageFinished(*model.Session, model.StageName, int, time.Duration, error) {}
func (NopTracker) ArtifactWritten(*model.Session, string, string, int64) {}
func (NopTracker) RunFinished(*model.Session, error) {}
