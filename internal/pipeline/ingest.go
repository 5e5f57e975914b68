package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"fuels-pipeline/internal/model"
	"fuels-pipeline/pkg/utils"
)

// ReadTreeListFile reads a tree inventory CSV from path.
func ReadTreeListFile(path string) (header []string, records []model.TreeRecord, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadTreeList(f)
}

// ReadTreeList parses a tree inventory. The first row is the header and is
// returned verbatim. Every row must have the inventory's column count. Blank
// crown radii read as 0; X and Y must be numeric.
func ReadTreeList(r io.Reader) (header []string, records []model.TreeRecord, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err = cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, newError(KindData, "", errors.New("tree inventory is empty"))
	}
	if err != nil {
		return nil, nil, newError(KindData, "", fmt.Errorf("read tree inventory header: %w", err))
	}
	if len(header) != model.TreeColumnCount {
		return nil, nil, newError(KindData, "", fmt.Errorf("tree inventory header has %d columns, want %d", len(header), model.TreeColumnCount))
	}

	records = []model.TreeRecord{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, newError(KindData, "", fmt.Errorf("read tree inventory: %w", err))
		}
		line, _ := cr.FieldPos(0)
		rec, err := parseTreeRow(row)
		if err != nil {
			return nil, nil, newError(KindData, "", fmt.Errorf("tree inventory line %d: %w", line, err))
		}
		records = append(records, rec)
	}
	return header, records, nil
}

func parseTreeRow(row []string) (model.TreeRecord, error) {
	if len(row) != model.TreeColumnCount {
		return model.TreeRecord{}, fmt.Errorf("%d columns, want %d", len(row), model.TreeColumnCount)
	}
	radius, err := utils.ParseOptionalFloat(row[model.ColCrownRadius])
	if err != nil {
		return model.TreeRecord{}, fmt.Errorf("crown radius: %w", err)
	}
	x, err := utils.ParseFloat(row[model.ColX])
	if err != nil {
		return model.TreeRecord{}, fmt.Errorf("x: %w", err)
	}
	y, err := utils.ParseFloat(row[model.ColY])
	if err != nil {
		return model.TreeRecord{}, fmt.Errorf("y: %w", err)
	}
	return model.TreeRecord{
		Index:           row[model.ColIndex],
		ID:              row[model.ColTreeID],
		Species:         row[model.ColSpecies],
		Diameter:        row[model.ColDiameter],
		Height:          row[model.ColHeight],
		Status:          row[model.ColStatus],
		CrownBaseHeight: row[model.ColCrownBaseHeight],
		CrownRadius:     radius,
		Longitude:       x,
		Latitude:        y,
		Elevation:       row[model.ColElevation],
		BasalArea:       row[model.ColBasalArea],
	}, nil
}
