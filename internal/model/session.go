package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"time"
)

// ErrMissingInput is returned when a stage needs a session value that an
// earlier stage has not populated yet.
var ErrMissingInput = errors.New("required pipeline input not available")

// Bounds is an axis-aligned box in the domain's projected CRS.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// ElevationStats summarises the topography elevation samples.
type ElevationStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Range float64 `json:"range"`
	Count int     `json:"count"`
}

// CompletedJob is what a finished remote job left behind.
type CompletedJob struct {
	SignedURL string          `json:"signed_url,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	At        time.Time       `json:"at"`
}

// Session is the state shared by all stages of one run. Only the
// orchestrator writes to it.
type Session struct {
	RunID          string
	ProjectName    string
	BaseURL        string
	Headers        http.Header
	OutputDir      string
	GridResolution float64
	StartedAt      time.Time

	DomainID   string
	GridWidth  int // nx, columns
	GridHeight int // ny, rows
	CRS        string
	Bounds     *Bounds
	Elevation  *ElevationStats

	completions map[StageName]CompletedJob
	artifacts   map[string]string
}

// NewSession creates the session for one run.
func NewSession(runID, project, baseURL string, headers http.Header, outputDir string, resolution float64) *Session {
	return &Session{
		RunID:          runID,
		ProjectName:    project,
		BaseURL:        baseURL,
		Headers:        headers,
		OutputDir:      outputDir,
		GridResolution: resolution,
		StartedAt:      time.Now(),
		completions:    make(map[StageName]CompletedJob),
		artifacts:      make(map[string]string),
	}
}

// Elapsed is the time since the run started.
func (s *Session) Elapsed() time.Duration { return time.Since(s.StartedAt) }

// RequireDomain returns the resolved domain id.
func (s *Session) RequireDomain() (string, error) {
	if s.DomainID == "" {
		return "", fmt.Errorf("%w: domain id", ErrMissingInput)
	}
	return s.DomainID, nil
}

// SetGrid stores the topography grid dimensions.
func (s *Session) SetGrid(nx, ny int) {
	s.GridWidth = nx
	s.GridHeight = ny
}

// RequireGrid returns (nx, ny).
func (s *Session) RequireGrid() (int, int, error) {
	if s.GridWidth <= 0 || s.GridHeight <= 0 {
		return 0, 0, fmt.Errorf("%w: grid dimensions", ErrMissingInput)
	}
	return s.GridWidth, s.GridHeight, nil
}

// HalfExtents returns half the grid width and height in metres.
func (s *Session) HalfExtents() (halfWidth, halfHeight float64, err error) {
	nx, ny, err := s.RequireGrid()
	if err != nil {
		return 0, 0, err
	}
	res := s.GridResolution
	if res <= 0 {
		return 0, 0, fmt.Errorf("%w: grid resolution", ErrMissingInput)
	}
	return float64(nx) * res / 2, float64(ny) * res / 2, nil
}

// RequireBounds returns the domain bounds.
func (s *Session) RequireBounds() (Bounds, error) {
	if s.Bounds == nil || s.CRS == "" {
		return Bounds{}, fmt.Errorf("%w: domain geometry", ErrMissingInput)
	}
	return *s.Bounds, nil
}

// RecordCompletion keeps the completion payload of a job stage.
func (s *Session) RecordCompletion(stage StageName, job CompletedJob) {
	s.completions[stage] = job
}

// Completion returns the completion payload of a job stage.
func (s *Session) Completion(stage StageName) (CompletedJob, bool) {
	job, ok := s.completions[stage]
	return job, ok
}

// SignedURL returns the download link published by a completed export stage.
func (s *Session) SignedURL(stage StageName) (string, error) {
	job, ok := s.completions[stage]
	if !ok {
		return "", fmt.Errorf("%w: %s has not completed", ErrMissingInput, stage)
	}
	if job.SignedURL == "" {
		return "", fmt.Errorf("%w: %s completed without a signedUrl", ErrMissingInput, stage)
	}
	return job.SignedURL, nil
}

// SetArtifact records a local file produced by the run.
func (s *Session) SetArtifact(name, path string) { s.artifacts[name] = path }

// Artifact returns the local path of a produced file.
func (s *Session) Artifact(name string) (string, error) {
	p, ok := s.artifacts[name]
	if !ok {
		return "", fmt.Errorf("%w: artifact %s", ErrMissingInput, name)
	}
	return p, nil
}

// Artifacts returns a copy of all produced files by name.
func (s *Session) Artifacts() map[string]string { return maps.Clone(s.artifacts) }
