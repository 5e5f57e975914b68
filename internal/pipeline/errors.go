package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"fuels-pipeline/internal/fastfuels"
	"fuels-pipeline/internal/model"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindHTTPStatus ErrorKind = "http_status"
	KindNotFound   ErrorKind = "not_found"
	KindTimeout    ErrorKind = "timeout"
	KindData       ErrorKind = "data"
	KindCanceled   ErrorKind = "canceled"
	KindIO         ErrorKind = "io"
	KindJobFailed  ErrorKind = "job_failed"
)

// Sentinels for errors.Is against a *Error of the matching kind.
var (
	ErrTransport  = errors.New("transport error")
	ErrHTTPStatus = errors.New("unexpected http status")
	ErrNotFound   = errors.New("not found")
	ErrTimeout    = errors.New("timed out")
	ErrData       = errors.New("malformed or missing data")
	ErrCanceled   = errors.New("canceled")
	ErrIO         = errors.New("local file error")
	ErrJobFailed  = errors.New("remote job failed")
)

var kindSentinels = map[ErrorKind]error{
	KindTransport:  ErrTransport,
	KindHTTPStatus: ErrHTTPStatus,
	KindNotFound:   ErrNotFound,
	KindTimeout:    ErrTimeout,
	KindData:       ErrData,
	KindCanceled:   ErrCanceled,
	KindIO:         ErrIO,
	KindJobFailed:  ErrJobFailed,
}

// Error is a fatal pipeline failure. Every kind halts the run.
type Error struct {
	Kind       ErrorKind
	Stage      model.StageName
	Elapsed    time.Duration
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg = fmt.Sprintf("stage %s: %s", e.Stage, e.Kind)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of a pipeline error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func newError(kind ErrorKind, stage model.StageName, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// classify wraps err in a *Error, deriving the kind from the client adapter's
// error types. Existing pipeline errors keep their kind.
func classify(stage model.StageName, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		if pe.Stage == "" {
			pe.Stage = stage
		}
		return pe
	}

	var (
		se *fastfuels.StatusError
		te *fastfuels.TransportError
		de *fastfuels.DecodeError
		fe *fs.PathError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return newError(KindCanceled, stage, err)
	case errors.As(err, &se):
		// a 404 outside polling is an ordinary status failure
		return &Error{Kind: KindHTTPStatus, Stage: stage, StatusCode: se.StatusCode, Body: se.Body, Err: err}
	case errors.As(err, &te):
		// request timeouts are network failures; KindTimeout is the poll budget
		return newError(KindTransport, stage, err)
	case errors.As(err, &de), errors.Is(err, model.ErrMissingInput):
		return newError(KindData, stage, err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindTimeout, stage, err)
	case errors.As(err, &fe):
		return newError(KindIO, stage, err)
	}
	return newError(KindData, stage, err)
}
