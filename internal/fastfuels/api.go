package fastfuels

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

// DomainsPath lists domains.
func DomainsPath() string { return "/domains" }

// DomainPath addresses one domain.
func DomainPath(id string) string { return "/domains/" + url.PathEscape(id) }

// TopographyPath creates and polls the topography grid job.
func TopographyPath(id string) string { return DomainPath(id) + "/grids/topography" }

// TopographyGeotiffExportPath creates and polls the topography geotiff export.
func TopographyGeotiffExportPath(id string) string {
	return TopographyPath(id) + "/exports/geotiff"
}

// TopographyAttributesPath returns grid metadata (shape, bounds).
func TopographyAttributesPath(id string) string { return TopographyPath(id) + "/attributes" }

// ElevationDataPath returns the elevation samples.
func ElevationDataPath(id string) string { return TopographyPath(id) + "/elevation/data" }

// RoadFeaturePath creates and polls the road feature job.
func RoadFeaturePath(id string) string { return DomainPath(id) + "/features/road" }

// WaterFeaturePath creates and polls the water feature job.
func WaterFeaturePath(id string) string { return DomainPath(id) + "/features/water" }

// TreeInventoryPath creates and polls the tree inventory job.
func TreeInventoryPath(id string) string { return DomainPath(id) + "/inventories/tree" }

// TreeInventoryCSVExportPath creates and polls the tree inventory csv export.
func TreeInventoryCSVExportPath(id string) string {
	return TreeInventoryPath(id) + "/exports/csv"
}

// ListDomains fetches one page of domains sorted by name.
func (c *Client) ListDomains(ctx context.Context, page, size int) (*DomainPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	q.Set("sortBy", "name")
	q.Set("sortOrder", "ascending")

	var out DomainPage
	if _, err := c.GetJSON(ctx, DomainsPath(), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDomain fetches a domain's geometry and CRS.
func (c *Client) GetDomain(ctx context.Context, id string) (*DomainDetail, error) {
	var out DomainDetail
	if _, err := c.GetJSON(ctx, DomainPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TopographyAttributes fetches the topography grid metadata.
func (c *Client) TopographyAttributes(ctx context.Context, id string) (*GridAttributes, error) {
	var out GridAttributes
	resp, err := c.GetJSON(ctx, TopographyAttributesPath(id), nil, &out)
	if err != nil {
		return nil, err
	}
	out.Raw = json.RawMessage(resp.Body)
	return &out, nil
}

// ElevationData fetches the topography elevation samples as JSON.
func (c *Client) ElevationData(ctx context.Context, id string) (*ElevationData, error) {
	q := url.Values{}
	q.Set("format", "json")

	var out ElevationData
	if _, err := c.GetJSON(ctx, ElevationDataPath(id), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
