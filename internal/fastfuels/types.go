package fastfuels

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Job status values reported by the service.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusFailed    = "failed"
	StatusErrored   = "error"
	StatusCancelled = "cancelled"
)

// Domain is one entry of the domain listing.
type Domain struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DomainPage is one page of GET /domains.
type DomainPage struct {
	Domains     []Domain `json:"domains"`
	CurrentPage int      `json:"currentPage"`
	PageSize    int      `json:"pageSize"`
	TotalItems  int      `json:"totalItems"`
}

// JobStatus is the body of GET on a job resource.
type JobStatus struct {
	Status    string `json:"status"`
	SignedURL string `json:"signedUrl,omitempty"`
	Message   string `json:"message,omitempty"`
	// Raw keeps the complete payload for stages that need more than the above.
	Raw json.RawMessage `json:"-"`
}

// Completed reports a finished job.
func (s *JobStatus) Completed() bool { return strings.EqualFold(s.Status, StatusCompleted) }

// Failed reports a job the service gave up on.
func (s *JobStatus) Failed() bool {
	switch strings.ToLower(s.Status) {
	case StatusFailed, StatusErrored, StatusCancelled:
		return true
	}
	return false
}

// ParseJobStatus decodes a job status body, keeping the raw payload.
func ParseJobStatus(body []byte) (*JobStatus, error) {
	var st JobStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, err
	}
	if st.Status == "" {
		return nil, errors.New("missing status field")
	}
	st.Raw = append(json.RawMessage(nil), body...)
	return &st, nil
}

// DomainDetail is the GeoJSON feature collection returned by GET /domains/{id}.
type DomainDetail struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	CRS      CRS       `json:"crs"`
	Features []Feature `json:"features"`
}

// CRS is a named coordinate reference system.
type CRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

// Code returns the numeric part of names like "EPSG:5070".
func (c CRS) Code() (string, error) {
	name := c.Properties.Name
	i := strings.LastIndex(name, ":")
	if i < 0 || i == len(name)-1 {
		return "", fmt.Errorf("crs name %q has no code", name)
	}
	return name[i+1:], nil
}

// Feature is a GeoJSON feature with a polygon geometry.
type Feature struct {
	Type     string   `json:"type"`
	Geometry Geometry `json:"geometry"`
}

// Geometry is a GeoJSON polygon.
type Geometry struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// OuterRing returns the outer ring of the first feature.
func (d *DomainDetail) OuterRing() ([][]float64, error) {
	if len(d.Features) == 0 {
		return nil, errors.New("domain has no features")
	}
	coords := d.Features[0].Geometry.Coordinates
	if len(coords) == 0 || len(coords[0]) == 0 {
		return nil, errors.New("domain geometry has no coordinates")
	}
	return coords[0], nil
}

// GridAttributes is the body of GET .../grids/topography/attributes.
type GridAttributes struct {
	Shape []int           `json:"shape"`
	Raw   json.RawMessage `json:"-"`
}

// Dimensions returns (nx, ny); shape is [ny, nx].
func (g *GridAttributes) Dimensions() (nx, ny int, err error) {
	if len(g.Shape) < 2 {
		return 0, 0, fmt.Errorf("grid shape %v has fewer than 2 dimensions", g.Shape)
	}
	ny, nx = g.Shape[0], g.Shape[1]
	if nx <= 0 || ny <= 0 {
		return 0, 0, fmt.Errorf("grid shape %v is not positive", g.Shape)
	}
	return nx, ny, nil
}

// ElevationData is the body of GET .../elevation/data?format=json. The data
// field is either a flat list or a list of rows.
type ElevationData struct {
	Data json.RawMessage `json:"data"`
}

// Values flattens the samples in row-major order. rows is 0 when the service
// returned a flat list.
func (e *ElevationData) Values() (values []float64, rows int, err error) {
	if len(e.Data) == 0 {
		return nil, 0, errors.New("elevation data missing")
	}
	var flat []float64
	if err := json.Unmarshal(e.Data, &flat); err == nil {
		return flat, 0, nil
	}
	var nested [][]float64
	if err := json.Unmarshal(e.Data, &nested); err != nil {
		return nil, 0, fmt.Errorf("elevation data is neither a list nor a grid: %w", err)
	}
	for _, row := range nested {
		values = append(values, row...)
	}
	return values, len(nested), nil
}
