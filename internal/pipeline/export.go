package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fuels-pipeline/internal/model"
	"fuels-pipeline/pkg/utils"
)

// WriteTreeList writes header followed by one row per record.
func WriteTreeList(w io.Writer, header []string, records []model.TreeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := make([]string, model.TreeColumnCount)
		row[model.ColIndex] = r.Index
		row[model.ColTreeID] = r.ID
		row[model.ColSpecies] = r.Species
		row[model.ColDiameter] = r.Diameter
		row[model.ColHeight] = r.Height
		row[model.ColStatus] = r.Status
		row[model.ColCrownBaseHeight] = r.CrownBaseHeight
		row[model.ColCrownRadius] = utils.FormatFloat(r.CrownRadius)
		row[model.ColX] = utils.FormatFloat(r.Longitude)
		row[model.ColY] = utils.FormatFloat(r.Latitude)
		row[model.ColElevation] = r.Elevation
		row[model.ColBasalArea] = r.BasalArea
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTreeListFile writes a tree inventory to path.
func WriteTreeListFile(path string, header []string, records []model.TreeRecord) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteTreeList(w, header, records)
	})
}

// WriteTopoMetadata writes the topography attributes JSON indented.
func WriteTopoMetadata(path string, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "    "); err != nil {
		return newError(KindData, "", fmt.Errorf("topography metadata: %w", err))
	}
	buf.WriteByte('\n')
	return writeFile(path, func(w io.Writer) error {
		_, err := buf.WriteTo(w)
		return err
	})
}

// WriteElevationGrid writes the elevation grid and its statistics as JSON.
func WriteElevationGrid(path string, grid ElevationGrid) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(grid)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
