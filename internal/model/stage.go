package model

// StageName identifies one step of the pipeline.
type StageName string

const (
	StageResolveDomain            StageName = "ResolveDomain"
	StageCreateTopography         StageName = "CreateTopography"
	StageExportTopographyImage    StageName = "ExportTopographyImage"
	StageDownloadTopographyImage  StageName = "DownloadTopographyImage"
	StageCreateRoadFeature        StageName = "CreateRoadFeature"
	StageCreateWaterFeature       StageName = "CreateWaterFeature"
	StageCreateTreeInventory      StageName = "CreateTreeInventory"
	StageExportTreeInventory      StageName = "ExportTreeInventory"
	StageDownloadTreeInventory    StageName = "DownloadTreeInventory"
	StageFetchTopoMetadata        StageName = "FetchTopoMetadata"
	StageFetchDomainGeometry      StageName = "FetchDomainGeometry"
	StageFetchBackgroundImagery   StageName = "FetchBackgroundImagery"
	StageRescaleTreeCoordinates   StageName = "RescaleTreeCoordinates"
	StageFetchElevationStatistics StageName = "FetchElevationStatistics"
	StageDone                     StageName = "Done"
)

// Stage and run statuses as stored and reported by the API.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Artifact names used as keys in the session and the API.
const (
	ArtifactTopographyImage = "topography_image"
	ArtifactTreeInventory   = "tree_inventory"
	ArtifactTopoMetadata    = "topo_metadata"
	ArtifactImagery         = "imagery"
	ArtifactRescaledTrees   = "rescaled_trees"
	ArtifactElevationGrid   = "elevation_grid"
)
