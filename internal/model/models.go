package model

// PipelineRunRequest is the body of POST /api/v1/pipelines.
type PipelineRunRequest struct {
	ProjectName string `json:"project_name"` // domain name as shown in the FastFuels web app
	APIKey      string `json:"api_key"`      // falls back to the server's configured key
	PollTimeout string `json:"poll_timeout,omitempty" example:"10m"`
}

// PipelineRunResponse is returned when a run is accepted.
type PipelineRunResponse struct {
	Message string `json:"message"`
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
}

// RunDetail is a run with its stage progress.
type RunDetail struct {
	Run
	Stages []StageProgress `json:"stages"`
}
