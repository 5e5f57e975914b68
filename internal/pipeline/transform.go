package pipeline

import (
	"fuels-pipeline/internal/model"

	"gonum.org/v1/gonum/floats"
)

// Remap maps v linearly from [inMin, inMax] to [outMin, outMax]. A degenerate
// input range maps every value to the midpoint of the output range.
func Remap(v, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin {
		return (outMin + outMax) / 2
	}
	return outMin + (v-inMin)/(inMax-inMin)*(outMax-outMin)
}

// RescaleTrees maps tree X/Y from their observed extent onto
// [-halfWidth, halfWidth] x [-halfHeight, halfHeight]. Records are returned
// as copies in input order; all other fields are unchanged.
func RescaleTrees(records []model.TreeRecord, halfWidth, halfHeight float64) []model.TreeRecord {
	if len(records) == 0 {
		return []model.TreeRecord{}
	}

	xs := make([]float64, len(records))
	ys := make([]float64, len(records))
	for i, r := range records {
		xs[i] = r.Longitude
		ys[i] = r.Latitude
	}
	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)

	out := make([]model.TreeRecord, len(records))
	for i, r := range records {
		r.Longitude = Remap(r.Longitude, minX, maxX, -halfWidth, halfWidth)
		r.Latitude = Remap(r.Latitude, minY, maxY, -halfHeight, halfHeight)
		out[i] = r
	}
	return out
}
