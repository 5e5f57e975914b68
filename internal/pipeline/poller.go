package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fuels-pipeline/internal/config"
	"fuels-pipeline/internal/fastfuels"
	"fuels-pipeline/internal/model"

	"go.uber.org/zap"
)

// OutcomeKind is the result of polling a job.
type OutcomeKind int

const (
	OutcomePending OutcomeKind = iota
	OutcomeCompleted
	OutcomeFailed
	OutcomeTimedOut
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePending:
		return "pending"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// ReasonNotFound is the failure reason for a job resource that returned 404.
const ReasonNotFound = "not found"

// Outcome is what one poll cycle (Check) or a whole poll (Poll) produced.
type Outcome struct {
	Kind     OutcomeKind
	Status   *fastfuels.JobStatus // last decoded status, set on Completed
	Reason   string               // set on Failed
	Err      error                // last retryable error, or the context error on cancellation
	Attempts int
	Elapsed  time.Duration
}

// StatusGetter issues GETs against job resources.
type StatusGetter interface {
	Get(ctx context.Context, path string, query url.Values) (*fastfuels.Response, error)
}

// PollObserver receives one call per poll attempt.
type PollObserver interface {
	ObservePoll(stage, result string)
}

// Poller queries a job's status endpoint at a fixed interval until the job
// completes, fails, or the poll budget runs out. There is deliberately no
// backoff: the interval is constant.
type Poller struct {
	client         StatusGetter
	interval       time.Duration
	timeout        time.Duration
	requestTimeout time.Duration
	logger         *zap.Logger
	observer       PollObserver

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller from the poll configuration.
func NewPoller(client StatusGetter, cfg config.PollConfig, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		client:         client,
		interval:       cfg.Interval,
		timeout:        cfg.Timeout,
		requestTimeout: cfg.RequestTimeout,
		logger:         logger,
		now:            time.Now,
		sleep:          sleepContext,
	}
}

// WithObserver attaches a per-attempt observer (metrics).
func (p *Poller) WithObserver(o PollObserver) *Poller {
	p.observer = o
	return p
}

// Poll blocks until the job at endpoint reaches a terminal outcome. The
// returned Kind is never OutcomePending. Each request and each sleep is
// clamped to the remaining budget, so Poll returns within timeout plus one
// interval.
func (p *Poller) Poll(ctx context.Context, endpoint string, stage model.StageName) Outcome {
	start := p.now()
	deadline := start.Add(p.timeout)
	attempts := 0
	var lastErr error

	for {
		remaining := deadline.Sub(p.now())
		if remaining <= 0 {
			elapsed := p.now().Sub(start)
			p.logger.Warn("polling timed out, job status unknown or not complete within the time limit",
				zap.String("stage", string(stage)),
				zap.Int("attempts", attempts),
				zap.Duration("elapsed", elapsed),
			)
			return Outcome{Kind: OutcomeTimedOut, Err: lastErr, Attempts: attempts, Elapsed: elapsed}
		}

		attempts++
		out := p.check(ctx, endpoint, stage, min(p.requestTimeout, remaining), start)
		out.Attempts = attempts
		if out.Kind != OutcomePending {
			return out
		}
		if ctx.Err() != nil {
			return p.canceled(ctx, start, attempts)
		}
		if out.Err != nil {
			lastErr = out.Err
		}

		wait := min(p.interval, deadline.Sub(p.now()))
		if wait <= 0 {
			continue
		}
		if err := p.sleep(ctx, wait); err != nil {
			return p.canceled(ctx, start, attempts)
		}
	}
}

// Check performs a single poll cycle. Transport errors, unexpected statuses
// and undecodable bodies come back as Pending with Err set.
func (p *Poller) Check(ctx context.Context, endpoint string, stage model.StageName) Outcome {
	out := p.check(ctx, endpoint, stage, p.requestTimeout, p.now())
	out.Attempts = 1
	return out
}

func (p *Poller) check(ctx context.Context, endpoint string, stage model.StageName, reqTimeout time.Duration, start time.Time) Outcome {
	reqCtx, cancel := context.WithTimeout(ctx, reqTimeout)
	defer cancel()

	log := p.logger.With(zap.String("stage", string(stage)))
	resp, err := p.client.Get(reqCtx, endpoint, nil)
	elapsed := p.now().Sub(start)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Kind: OutcomeFailed, Reason: ctx.Err().Error(), Err: ctx.Err(), Elapsed: elapsed}
		}
		var te *fastfuels.TransportError
		if errors.As(err, &te) && te.Timeout() {
			log.Warn("status request timed out, retrying", zap.Duration("elapsed", elapsed))
			p.observe(stage, "request_timeout")
		} else {
			log.Warn("status request failed, retrying", zap.Error(err), zap.Duration("elapsed", elapsed))
			p.observe(stage, "transport_error")
		}
		return Outcome{Kind: OutcomePending, Err: err, Elapsed: elapsed}
	}

	if resp.StatusCode == http.StatusNotFound {
		p.observe(stage, "not_found")
		log.Error("job resource not found", zap.String("url", resp.URL), zap.Duration("elapsed", elapsed))
		return Outcome{Kind: OutcomeFailed, Reason: ReasonNotFound, Elapsed: elapsed}
	}
	if !resp.OK() {
		p.observe(stage, "http_"+strconv.Itoa(resp.StatusCode))
		err := fastfuels.NewStatusError(http.MethodGet, resp)
		log.Warn("unexpected status while polling, retrying", zap.Error(err), zap.Duration("elapsed", elapsed))
		return Outcome{Kind: OutcomePending, Err: err, Elapsed: elapsed}
	}

	status, err := fastfuels.ParseJobStatus(resp.Body)
	if err != nil {
		p.observe(stage, "decode_error")
		err = &fastfuels.DecodeError{URL: resp.URL, Err: err}
		log.Warn("undecodable status body, retrying", zap.Error(err), zap.Duration("elapsed", elapsed))
		return Outcome{Kind: OutcomePending, Err: err, Elapsed: elapsed}
	}

	p.observe(stage, status.Status)
	log.Info("job status",
		zap.String("status", status.Status),
		zap.Duration("elapsed", elapsed.Truncate(time.Second)),
	)

	switch {
	case status.Completed():
		log.Info("job complete", zap.Duration("elapsed", elapsed))
		return Outcome{Kind: OutcomeCompleted, Status: status, Elapsed: elapsed}
	case status.Failed():
		reason := status.Status
		if status.Message != "" {
			reason = fmt.Sprintf("%s: %s", status.Status, status.Message)
		}
		return Outcome{Kind: OutcomeFailed, Status: status, Reason: reason, Elapsed: elapsed}
	}
	return Outcome{Kind: OutcomePending, Status: status, Elapsed: elapsed}
}

func (p *Poller) canceled(ctx context.Context, start time.Time, attempts int) Outcome {
	return Outcome{
		Kind:     OutcomeFailed,
		Reason:   ctx.Err().Error(),
		Err:      ctx.Err(),
		Attempts: attempts,
		Elapsed:  p.now().Sub(start),
	}
}

func (p *Poller) observe(stage model.StageName, result string) {
	if p.observer != nil {
		p.observer.ObservePoll(string(stage), result)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
