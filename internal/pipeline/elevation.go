package pipeline

import (
	"errors"

	"fuels-pipeline/internal/model"

	"gonum.org/v1/gonum/floats"
)

// ElevationGrid is the row-major elevation export with its statistics.
type ElevationGrid struct {
	NX    int       `json:"nx"`
	NY    int       `json:"ny"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
	Range float64   `json:"range"`
	Data  []float64 `json:"data"`
}

// ElevationStatistics computes min, max and range of the samples.
func ElevationStatistics(values []float64) (model.ElevationStats, error) {
	if len(values) == 0 {
		return model.ElevationStats{}, newError(KindData, "", errors.New("no elevation samples"))
	}
	lo, hi := floats.Min(values), floats.Max(values)
	return model.ElevationStats{Min: lo, Max: hi, Range: hi - lo, Count: len(values)}, nil
}
