package model

// TreeColumns is the header of the exported tree inventory. The first column
// is the unnamed row index written by the exporter.
var TreeColumns = []string{
	"", "TREE_ID", "SPCD", "DIA_cm", "HT_m", "STATUSCD", "CBH_m",
	"CROWN_RADIUS_m", "X_m", "Y_m", "Z_m", "basal_tree_ft^2",
}

// Column positions in the tree inventory.
const (
	ColIndex = iota
	ColTreeID
	ColSpecies
	ColDiameter
	ColHeight
	ColStatus
	ColCrownBaseHeight
	ColCrownRadius
	ColX
	ColY
	ColElevation
	ColBasalArea
	TreeColumnCount
)

// TreeRecord is one row of the tree inventory. Only the fields the pipeline
// rewrites are parsed; the rest pass through as exported.
type TreeRecord struct {
	Index           string  `json:"index"`
	ID              string  `json:"id"`
	Species         string  `json:"species"`
	Diameter        string  `json:"diameter"`
	Height          string  `json:"height"`
	Status          string  `json:"status"`
	CrownBaseHeight string  `json:"crown_base_height"`
	CrownRadius     float64 `json:"crown_radius"`
	Longitude       float64 `json:"x"`
	Latitude        float64 `json:"y"`
	Elevation       string  `json:"z"`
	BasalArea       string  `json:"basal_area"`
}
