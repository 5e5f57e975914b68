package pipeline

import (
	"context"
	"fmt"

	"fuels-pipeline/internal/config"
	"fuels-pipeline/internal/fastfuels"
	"fuels-pipeline/internal/model"
)

// JobSpec describes a remote job: POST the payload to the endpoint, then poll
// the same endpoint until the job completes.
type JobSpec struct {
	Endpoint func(domainID string) string
	// Payload builds the request body. nil sends the POST without a body.
	Payload func(cfg *config.Config) any
}

// Requirement names a session value a stage reads.
type Requirement string

const (
	NeedsDomain          Requirement = "domain"
	NeedsGrid            Requirement = "grid"
	NeedsGeometry        Requirement = "geometry"
	NeedsTreeInventory   Requirement = "tree_inventory"
	NeedsTopographyImage Requirement = "topography_export"
	NeedsTreeExport      Requirement = "tree_inventory_export"
)

func (r Requirement) check(s *model.Session) error {
	var err error
	switch r {
	case NeedsDomain:
		_, err = s.RequireDomain()
	case NeedsGrid:
		_, _, err = s.RequireGrid()
	case NeedsGeometry:
		_, err = s.RequireBounds()
	case NeedsTreeInventory:
		_, err = s.Artifact(model.ArtifactTreeInventory)
	case NeedsTopographyImage:
		_, err = s.SignedURL(model.StageExportTopographyImage)
	case NeedsTreeExport:
		_, err = s.SignedURL(model.StageExportTreeInventory)
	default:
		err = fmt.Errorf("unknown requirement %q", r)
	}
	return err
}

// Stage is one step of the pipeline. Exactly one of Job and Action is set.
type Stage struct {
	Name     model.StageName
	Job      *JobSpec
	Action   func(o *Orchestrator, ctx context.Context) error // method expression on Orchestrator
	Requires []Requirement
}

type elevationOptions struct {
	Source              string `json:"source"`
	InterpolationMethod string `json:"interpolationMethod"`
}

type topographyRequest struct {
	Attributes []string         `json:"attributes"`
	Elevation  elevationOptions `json:"elevation"`
}

type featureRequest struct {
	Sources []string `json:"sources"`
}

type treeMapOptions struct {
	Version string `json:"version"`
}

type treeInventoryRequest struct {
	Sources []string       `json:"sources"`
	TreeMap treeMapOptions `json:"TreeMap"`
}

func topographyPayload(cfg *config.Config) any {
	return topographyRequest{
		Attributes: []string{"elevation"},
		Elevation: elevationOptions{
			Source:              cfg.Jobs.ElevationSource,
			InterpolationMethod: cfg.Jobs.InterpolationMethod,
		},
	}
}

func featurePayload(cfg *config.Config) any {
	return featureRequest{Sources: cfg.Jobs.FeatureSources}
}

func treeInventoryPayload(cfg *config.Config) any {
	return treeInventoryRequest{
		Sources: []string{"TreeMap"},
		TreeMap: treeMapOptions{Version: cfg.Jobs.TreeMapVersion},
	}
}

// Stages returns the pipeline in execution order.
func Stages() []Stage {
	return []Stage{
		{Name: model.StageResolveDomain, Action: (*Orchestrator).resolveDomain},
		{
			Name:     model.StageCreateTopography,
			Job:      &JobSpec{Endpoint: fastfuels.TopographyPath, Payload: topographyPayload},
			Requires: []Requirement{NeedsDomain},
		},
		{
			Name:     model.StageExportTopographyImage,
			Job:      &JobSpec{Endpoint: fastfuels.TopographyGeotiffExportPath},
			Requires: []Requirement{NeedsDomain},
		},
		{
			Name:     model.StageDownloadTopographyImage,
			Action:   (*Orchestrator).downloadTopographyImage,
			Requires: []Requirement{NeedsTopographyImage},
		},
		{
			Name:     model.StageCreateRoadFeature,
			Job:      &JobSpec{Endpoint: fastfuels.RoadFeaturePath, Payload: featurePayload},
			Requires: []Requirement{NeedsDomain},
		},
		{
			Name:     model.StageCreateWaterFeature,
			Job:      &JobSpec{Endpoint: fastfuels.WaterFeaturePath, Payload: featurePayload},
			Requires: []Requirement{NeedsDomain},
		},
		{
			Name:     model.StageCreateTreeInventory,
			Job:      &JobSpec{Endpoint: fastfuels.TreeInventoryPath, Payload: treeInventoryPayload},
			Requires: []Requirement{NeedsDomain},
		},
		{
			Name:     model.StageExportTreeInventory,
			Job:      &JobSpec{Endpoint: fastfuels.TreeInventoryCSVExportPath},
			Requires: []Requirement{NeedsDomain},
		},
		{
			Name:     model.StageDownloadTreeInventory,
			Action:   (*Orchestrator).downloadTreeInventory,
			Requires: []Requirement{NeedsTreeExport},
		},
		{
			Name:     model.StageFetchTopoMetadata,
			Action:   (*Orchestrator).fetchTopoMetadata,
			Requires: []Requirement{NeedsDomain},
		},
		{
			Name:     model.StageFetchDomainGeometry,
			Action:   (*Orchestrator).fetchDomainGeometry,
			Requires: []Requirement{NeedsDomain},
		},
		{
			Name:     model.StageFetchBackgroundImagery,
			Action:   (*Orchestrator).fetchBackgroundImagery,
			Requires: []Requirement{NeedsGrid, NeedsGeometry},
		},
		{
			Name:     model.StageRescaleTreeCoordinates,
			Action:   (*Orchestrator).rescaleTreeCoordinates,
			Requires: []Requirement{NeedsGrid, NeedsTreeInventory},
		},
		{
			Name:     model.StageFetchElevationStatistics,
			Action:   (*Orchestrator).fetchElevationStatistics,
			Requires: []Requirement{NeedsDomain, NeedsGrid},
		},
	}
}
