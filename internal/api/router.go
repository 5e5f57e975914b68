package api

import (
	"fuels-pipeline/internal/api/handler"
	"fuels-pipeline/internal/metrics"
	"fuels-pipeline/pkg/router"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "fuels-pipeline/docs"
)

func RegisterRoutes(r *router.Router, h *handler.Handler, m *metrics.Collector) {
	r.POST("/api/v1/pipelines", h.CreatePipeline)
	r.GET("/api/v1/pipelines", h.ListPipelines)
	// More specific routes first
	r.GET("/api/v1/pipelines/*/stages", h.GetPipelineStages)
	r.GET("/api/v1/pipelines/*/logs", h.GetPipelineLogs)
	r.GET("/api/v1/pipelines/*/errors", h.GetPipelineErrors)
	r.GET("/api/v1/pipelines/*/artifacts", h.GetPipelineArtifacts)
	// Generic pipeline route last
	r.GET("/api/v1/pipelines/*", h.GetPipeline)
	r.GET("/api/v1/download/*/*", h.DownloadFile)

	r.Handle("/metrics", m.Handler())
	r.Handle("/swagger/*", httpSwagger.WrapHandler)
}
