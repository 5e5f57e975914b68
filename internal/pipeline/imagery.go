package pipeline

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"fuels-pipeline/internal/config"
	"fuels-pipeline/internal/model"
	"fuels-pipeline/pkg/utils"

	"gonum.org/v1/gonum/floats"
)

// BoundsOf returns the bounding box of a polygon ring of [x, y] positions.
func BoundsOf(ring [][]float64) (model.Bounds, error) {
	if len(ring) == 0 {
		return model.Bounds{}, newError(KindData, "", errors.New("empty polygon ring"))
	}
	xs := make([]float64, 0, len(ring))
	ys := make([]float64, 0, len(ring))
	for i, pos := range ring {
		if len(pos) < 2 {
			return model.Bounds{}, newError(KindData, "", fmt.Errorf("ring position %d has %d coordinates", i, len(pos)))
		}
		xs = append(xs, pos[0])
		ys = append(ys, pos[1])
	}
	return model.Bounds{
		MinX: floats.Min(xs),
		MinY: floats.Min(ys),
		MaxX: floats.Max(xs),
		MaxY: floats.Max(ys),
	}, nil
}

// ImageryURL builds the exportImage request for the domain: the bounding box
// and output image both in the domain CRS, sized one pixel per grid cell.
func ImageryURL(cfg config.ImageryConfig, b model.Bounds, crs string, nx, ny int) (string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("imagery url: %w", err)
	}
	bbox := []string{
		utils.FormatFloat(b.MinX),
		utils.FormatFloat(b.MinY),
		utils.FormatFloat(b.MaxX),
		utils.FormatFloat(b.MaxY),
	}

	q := u.Query()
	q.Set("bbox", strings.Join(bbox, ","))
	q.Set("bboxSR", crs)
	q.Set("imageSR", crs)
	q.Set("size", strconv.Itoa(nx)+","+strconv.Itoa(ny))
	q.Set("format", cfg.Format)
	q.Set("pixelType", cfg.PixelType)
	q.Set("interpolation", cfg.Interpolation)
	q.Set("f", "image")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
