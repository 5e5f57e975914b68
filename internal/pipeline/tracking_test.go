package pipeline

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"fuels-pipeline/internal/fastfuels"
	"fuels-pipeline/internal/metrics"
	"fuels-pipeline/internal/model"
	"fuels-pipeline/internal/store"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTrackerPersistsRun(t *testing.T) {
	f := newFakeService(t)
	f.createStatus[fastfuels.RoadFeaturePath(testDomainID)] = http.StatusUnprocessableEntity

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.CreateRun(model.Run{ID: "run-1", ProjectName: "test-domain"}))

	m := metrics.New()
	cfg := testConfig(f)
	o := New(cfg, fastfuels.New(cfg.BaseURL, cfg.APIKey), "run-1", t.TempDir(),
		WithTracker(NewTracker(db, m, zaptest.NewLogger(t))),
		WithPollObserver(m),
		WithLogger(zaptest.NewLogger(t)),
	)

	err = o.Run(context.Background())
	require.ErrorIs(t, err, ErrHTTPStatus)

	run, err := db.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, testDomainID, run.DomainID)
	assert.Equal(t, model.StageCreateRoadFeature, run.CurrentStage)
	assert.Equal(t, string(KindHTTPStatus), run.ErrorKind)
	assert.NotNil(t, run.FinishedAt)

	stages, err := db.GetStageProgress("run-1")
	require.NoError(t, err)
	require.Len(t, stages, 5)
	assert.Equal(t, model.StatusCompleted, stages[1].Status)
	assert.Equal(t, 2, stages[1].Attempts) // one running answer, then completed
	assert.Equal(t, model.StatusFailed, stages[4].Status)
	assert.Contains(t, stages[4].Detail, "422")

	errs, err := db.GetRunErrors("run-1")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, model.StageCreateRoadFeature, errs[0].Stage)

	logs, err := db.GetPipelineLogs("run-1")
	require.NoError(t, err)
	assert.NotEmpty(t, logs)

	runs, err := testutil.GatherAndCount(m.Registry(), "fuels_pipeline_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	polls, err := testutil.GatherAndCount(m.Registry(), "fuels_pipeline_poll_attempts_total")
	require.NoError(t, err)
	assert.Positive(t, polls)
}

func TestTrackerToleratesMissingStore(t *testing.T) {
	tr := NewTracker(nil, nil, nil)
	s := model.NewSession("r", "p", "", nil, t.TempDir(), 2)

	tr.RunStarted(s)
	tr.StageStarted(s, model.StageResolveDomain)
	tr.StageFinished(s, model.StageResolveDomain, 1, 0, errors.New("boom"))
	tr.ArtifactWritten(s, model.ArtifactImagery, "naip.png", 3)
	tr.RunFinished(s, errors.New("boom"))
}
