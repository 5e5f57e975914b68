package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"fuels-pipeline/internal/config"
	"fuels-pipeline/internal/fastfuels"
	"fuels-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type step func() (*fastfuels.Response, error)

// scriptedGetter replays steps in order, repeating the last one.
type scriptedGetter struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (g *scriptedGetter) Get(ctx context.Context, path string, _ url.Values) (*fastfuels.Response, error) {
	g.mu.Lock()
	i := min(g.calls, len(g.steps)-1)
	g.calls++
	g.mu.Unlock()
	return g.steps[i]()
}

func status(code int, body string) step {
	return func() (*fastfuels.Response, error) {
		return &fastfuels.Response{StatusCode: code, Body: []byte(body), URL: "http://api/job"}, nil
	}
}

func transportFailure() step {
	return func() (*fastfuels.Response, error) {
		return nil, &fastfuels.TransportError{Method: http.MethodGet, URL: "http://api/job", Err: errors.New("connection reset")}
	}
}

type countingObserver struct {
	mu      sync.Mutex
	results map[string]int
}

func (c *countingObserver) ObservePoll(_, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		c.results = map[string]int{}
	}
	c.results[result]++
}

func newTestPoller(t *testing.T, g StatusGetter, interval, timeout time.Duration) *Poller {
	return NewPoller(g, config.PollConfig{
		Interval:       interval,
		Timeout:        timeout,
		RequestTimeout: 100 * time.Millisecond,
	}, zaptest.NewLogger(t))
}

func TestPollCompletesAfterPending(t *testing.T) {
	g := &scriptedGetter{steps: []step{
		status(200, `{"status":"pending"}`),
		status(200, `{"status":"running"}`),
		status(200, `{"status":"completed","signedUrl":"https://files/topo.tif"}`),
	}}
	obs := &countingObserver{}
	p := newTestPoller(t, g, time.Millisecond, time.Second).WithObserver(obs)

	out := p.Poll(context.Background(), "/domains/abc/grids/topography", model.StageCreateTopography)

	require.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, 3, out.Attempts)
	require.NotNil(t, out.Status)
	assert.Equal(t, "https://files/topo.tif", out.Status.SignedURL)
	assert.Equal(t, map[string]int{"pending": 1, "running": 1, "completed": 1}, obs.results)
}

func TestPollCompletesOnUppercaseStatus(t *testing.T) {
	g := &scriptedGetter{steps: []step{status(200, `{"status":"COMPLETED","signedUrl":"https://files/treelist.csv"}`)}}
	p := newTestPoller(t, g, time.Millisecond, 50*time.Millisecond)

	out := p.Poll(context.Background(), "/domains/abc/inventories/tree/exports/csv", model.StageExportTreeInventory)

	require.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, 1, out.Attempts)
}

func TestPollNotFoundFailsImmediately(t *testing.T) {
	g := &scriptedGetter{steps: []step{status(404, `{"detail":"Not Found"}`)}}
	p := newTestPoller(t, g, time.Millisecond, time.Second)

	out := p.Poll(context.Background(), "/domains/abc/features/road", model.StageCreateRoadFeature)

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, ReasonNotFound, out.Reason)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, g.calls)
}

func TestPollRetriesTransientFailures(t *testing.T) {
	g := &scriptedGetter{steps: []step{
		transportFailure(),
		status(502, "bad gateway"),
		status(200, "<html>"),
		status(200, `{"status":"completed"}`),
	}}
	obs := &countingObserver{}
	p := newTestPoller(t, g, time.Millisecond, time.Second).WithObserver(obs)

	out := p.Poll(context.Background(), "/job", model.StageCreateWaterFeature)

	require.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, 4, out.Attempts)
	assert.Equal(t, 1, obs.results["transport_error"])
	assert.Equal(t, 1, obs.results["http_502"])
	assert.Equal(t, 1, obs.results["decode_error"])
}

func TestPollRemoteFailure(t *testing.T) {
	g := &scriptedGetter{steps: []step{status(200, `{"status":"failed","message":"no data for area"}`)}}
	p := newTestPoller(t, g, time.Millisecond, time.Second)

	out := p.Poll(context.Background(), "/job", model.StageCreateTreeInventory)

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, "failed: no data for area", out.Reason)
	assert.Nil(t, out.Err)
}

func TestPollTimesOutWithinBudget(t *testing.T) {
	g := &scriptedGetter{steps: []step{status(200, `{"status":"running"}`)}}
	interval, timeout := 20*time.Millisecond, 100*time.Millisecond
	p := newTestPoller(t, g, interval, timeout)

	start := time.Now()
	out := p.Poll(context.Background(), "/job", model.StageCreateTopography)
	took := time.Since(start)

	assert.Equal(t, OutcomeTimedOut, out.Kind)
	assert.GreaterOrEqual(t, out.Attempts, 2)
	assert.GreaterOrEqual(t, took, timeout)
	assert.Less(t, took, timeout+interval+200*time.Millisecond)
}

func TestPollTimeoutKeepsLastError(t *testing.T) {
	g := &scriptedGetter{steps: []step{transportFailure()}}
	p := newTestPoller(t, g, 5*time.Millisecond, 30*time.Millisecond)

	out := p.Poll(context.Background(), "/job", model.StageCreateTopography)

	assert.Equal(t, OutcomeTimedOut, out.Kind)
	var te *fastfuels.TransportError
	assert.ErrorAs(t, out.Err, &te)
}

func TestPollCanceled(t *testing.T) {
	g := &scriptedGetter{steps: []step{status(200, `{"status":"running"}`)}}
	p := newTestPoller(t, g, time.Hour, 2*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	out := p.Poll(ctx, "/job", model.StageCreateTopography)

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestCheckSingleCycle(t *testing.T) {
	g := &scriptedGetter{steps: []step{status(200, `{"status":"running"}`)}}
	p := newTestPoller(t, g, time.Millisecond, time.Second)

	out := p.Check(context.Background(), "/job", model.StageExportTreeInventory)

	assert.Equal(t, OutcomePending, out.Kind)
	assert.Equal(t, "running", out.Status.Status)
	assert.Equal(t, 1, g.calls)
	assert.Equal(t, "pending", OutcomePending.String())
}
