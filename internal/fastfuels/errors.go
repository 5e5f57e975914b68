package fastfuels

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

const maxErrorBody = 512

// StatusError is a response whose status code was not expected by the caller.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// NotFound reports a 404.
func (e *StatusError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// NewStatusError builds a StatusError from a response, truncating the body.
func NewStatusError(method string, resp *Response) *StatusError {
	return newStatusError(method, resp)
}

func newStatusError(method string, resp *Response) *StatusError {
	body := string(resp.Body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return &StatusError{Method: method, URL: resp.URL, StatusCode: resp.StatusCode, Body: body}
}

// TransportError is a network-level failure: no usable response was received.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a request timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// DecodeError is a response body that did not match the expected shape.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
