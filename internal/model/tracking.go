package model

import "time"

// Run is one execution of the pipeline as persisted by the store.
type Run struct {
	ID           string     `json:"id"`
	ProjectName  string     `json:"project_name"`
	Status       string     `json:"status"`
	DomainID     string     `json:"domain_id,omitempty"`
	CurrentStage StageName  `json:"current_stage,omitempty"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	OutputDir    string     `json:"output_dir,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ElapsedMS    int64      `json:"elapsed_ms"`
}

// StageProgress tracks one stage of a run.
type StageProgress struct {
	RunID     string     `json:"run_id"`
	Stage     StageName  `json:"stage"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Attempts  int        `json:"attempts"`
	Detail    string     `json:"detail,omitempty"`
}

// Duration is the stage wall time, zero while running.
func (p StageProgress) Duration() time.Duration {
	if p.StartedAt == nil || p.EndedAt == nil {
		return 0
	}
	return p.EndedAt.Sub(*p.StartedAt)
}

// RunLog is a log line attached to a run.
type RunLog struct {
	ID        int64          `json:"id"`
	RunID     string         `json:"run_id"`
	Stage     StageName      `json:"stage,omitempty"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// RunError is the failure that halted a run.
type RunError struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Stage     StageName `json:"stage,omitempty"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ArtifactFile describes a file in a run's output directory.
type ArtifactFile struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}
