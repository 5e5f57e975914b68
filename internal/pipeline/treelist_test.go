package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fuels-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTreeList = `,TREE_ID,SPCD,DIA_cm,HT_m,STATUSCD,CBH_m,CROWN_RADIUS_m,X_m,Y_m,Z_m,basal_tree_ft^2
0,1001,122,35.2,18.5,1,6.1,2.4,-120.5,38.0,1500.2,0.73
1,1002,122,12.0,7.0,1,2.2,,-119.8,38.4,1498.0,0.08
2,1003,81,50.1,24.3,1,9.0,3.1,-120.15,38.2,1510.7,1.48
`

func TestReadTreeList(t *testing.T) {
	header, records, err := ReadTreeList(strings.NewReader(sampleTreeList))
	require.NoError(t, err)

	assert.Equal(t, model.TreeColumns, header)
	require.Len(t, records, 3)
	assert.Equal(t, "1001", records[0].ID)
	assert.Equal(t, 2.4, records[0].CrownRadius)
	assert.Equal(t, -120.5, records[0].Longitude)
	assert.Equal(t, 38.0, records[0].Latitude)
	assert.Equal(t, "1500.2", records[0].Elevation)
	// blank crown radius reads as zero
	assert.Equal(t, 0.0, records[1].CrownRadius)
}

func TestReadTreeListRejectsMalformedRows(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "short header", input: "a,b,c\n"},
		{name: "short row", input: strings.Join(model.TreeColumns, ",") + "\n0,1,2\n"},
		{name: "bad x", input: strings.Join(model.TreeColumns, ",") + "\n0,1001,122,35,18,1,6,2,west,38,1500,0.7\n"},
		{name: "nan x", input: strings.Join(model.TreeColumns, ",") + "\n0,1001,122,35,18,1,6,2,NaN,38,1500,0.7\n"},
		{name: "infinite y", input: strings.Join(model.TreeColumns, ",") + "\n0,1001,122,35,18,1,6,2,-120,Inf,1500,0.7\n"},
		{name: "nan crown radius", input: strings.Join(model.TreeColumns, ",") + "\n0,1001,122,35,18,1,6,NaN,-120,38,1500,0.7\n"},
		{name: "bad crown radius", input: strings.Join(model.TreeColumns, ",") + "\n0,1001,122,35,18,1,6,wide,-120,38,1500,0.7\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadTreeList(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrData)
		})
	}
}

func TestTreeListRescaleRoundTrip(t *testing.T) {
	header, records, err := ReadTreeList(strings.NewReader(sampleTreeList))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTreeList(&buf, header, RescaleTrees(records, 50, 40)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	// header row is written back verbatim
	assert.Equal(t, strings.SplitN(sampleTreeList, "\n", 2)[0], lines[0])
	assert.Equal(t, "0,1001,122,35.2,18.5,1,6.1,2.4,-50,-40,1500.2,0.73", lines[1])
	assert.Equal(t, "1,1002,122,12.0,7.0,1,2.2,0,50,40,1498.0,0.08", lines[2])

	_, again, err := ReadTreeList(&buf)
	require.NoError(t, err)
	assert.Len(t, again, 3)
}

func TestWriteTopoMetadataIndents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topo_metadata.json")
	require.NoError(t, WriteTopoMetadata(path, json.RawMessage(`{"shape":[40,50],"resolution":[2,2]}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"shape\": [")

	err = WriteTopoMetadata(path, json.RawMessage(`not json`))
	assert.ErrorIs(t, err, ErrData)
}

func TestWriteElevationGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "elevation_grid.json")
	grid := ElevationGrid{NX: 2, NY: 1, Min: 1, Max: 3, Range: 2, Data: []float64{1, 3}}
	require.NoError(t, WriteElevationGrid(path, grid))

	var got ElevationGrid
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, grid, got)
}
