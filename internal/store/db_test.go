package store

import (
	"errors"
	"testing"
	"time"

	"fuels-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.CreateRun(model.Run{ID: "run-1", ProjectName: "test-domain", OutputDir: "out/run-1"}))

	run, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, run.Status)
	assert.Equal(t, "out/run-1", run.OutputDir)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, s.UpdateRunStatus("run-1", model.StatusRunning))
	require.NoError(t, s.SetRunDomain("run-1", "abc123"))
	require.NoError(t, s.UpdateRunStage("run-1", model.StageCreateTopography))
	require.NoError(t, s.FinishRun("run-1", model.StatusFailed, "timeout", 1500*time.Millisecond))

	run, err = s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, "abc123", run.DomainID)
	assert.Equal(t, model.StageCreateTopography, run.CurrentStage)
	assert.Equal(t, "timeout", run.ErrorKind)
	assert.Equal(t, int64(1500), run.ElapsedMS)
	require.NotNil(t, run.FinishedAt)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetRun("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.ErrorIs(t, s.UpdateRunStatus("missing", model.StatusRunning), ErrNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC()
	require.NoError(t, s.CreateRun(model.Run{ID: "old", ProjectName: "p", CreatedAt: base.Add(-time.Hour)}))
	require.NoError(t, s.CreateRun(model.Run{ID: "new", ProjectName: "p", CreatedAt: base}))

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[1].ID)
}

func TestStageProgressUpsert(t *testing.T) {
	s := openTestStore(t)
	start := time.Now().UTC()
	end := start.Add(2 * time.Second)

	require.NoError(t, s.SaveStageProgress(model.StageProgress{RunID: "r", Stage: model.StageResolveDomain, Status: model.StatusRunning, StartedAt: &start}))
	require.NoError(t, s.SaveStageProgress(model.StageProgress{RunID: "r", Stage: model.StageCreateTopography, Status: model.StatusRunning, StartedAt: &start}))
	// completion without a start keeps the original start time
	require.NoError(t, s.SaveStageProgress(model.StageProgress{RunID: "r", Stage: model.StageResolveDomain, Status: model.StatusCompleted, EndedAt: &end, Attempts: 1}))

	stages, err := s.GetStageProgress("r")
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, model.StageResolveDomain, stages[0].Stage)
	assert.Equal(t, model.StatusCompleted, stages[0].Status)
	require.NotNil(t, stages[0].StartedAt)
	assert.WithinDuration(t, start, *stages[0].StartedAt, time.Millisecond)
	assert.InDelta(t, 2*time.Second, stages[0].Duration(), float64(time.Millisecond))
	assert.Equal(t, model.StageCreateTopography, stages[1].Stage)
}

func TestLogsAndErrors(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SavePipelineLog("r", model.StageCreateTopography, "info", "requested", map[string]any{"status": 201.0}))
	require.NoError(t, s.SavePipelineLog("r", "", "info", "done", nil))
	require.NoError(t, s.SaveRunError("r", model.StageCreateTopography, "http_status", errors.New("status 400")))
	require.NoError(t, s.SaveRunError("r", "", "data", nil))

	logs, err := s.GetPipelineLogs("r")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 201.0, logs[0].Details["status"])
	assert.Nil(t, logs[1].Details)

	errs, err := s.GetRunErrors("r")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "http_status", errs[0].Kind)
	assert.Equal(t, "status 400", errs[0].Message)
}
