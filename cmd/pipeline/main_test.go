package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inventory = `,TREE_ID,SPCD,DIA_cm,HT_m,STATUSCD,CBH_m,CROWN_RADIUS_m,X_m,Y_m,Z_m,basal_tree_ft^2
0,1001,122,35.2,18.5,1,6.1,2.4,500100,4000,1500.2,0.73
1,1002,122,12.0,7.0,1,2.2,,500110,4004,1498.0,0.08
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRescaleCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "treelist.csv")
	out := filepath.Join(dir, "newTreelist.csv")
	require.NoError(t, os.WriteFile(in, []byte(inventory), 0o644))

	stdout, err := execute(t, "rescale", "--in", in, "--out", out,
		"--nx", "5", "--ny", "2", "--resolution", "2", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rescaled 2 trees")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Split(inventory, "\n")[0], lines[0])
	assert.Equal(t, "0,1001,122,35.2,18.5,1,6.1,2.4,-5,-2,1500.2,0.73", lines[1])
	assert.Equal(t, "1,1002,122,12.0,7.0,1,2.2,0,5,2,1498.0,0.08", lines[2])
}

func TestRescaleCommandRejectsEmptyGrid(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "treelist.csv")
	require.NoError(t, os.WriteFile(in, []byte(inventory), 0o644))

	_, err := execute(t, "rescale", "--in", in, "--out", filepath.Join(dir, "out.csv"),
		"--nx", "0", "--ny", "2", "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid")
}

func TestRunCommandRequiresCredentials(t *testing.T) {
	t.Setenv("FUELS_API_KEY", "")
	t.Setenv("FUELS_PROJECT_NAME", "")

	_, err := execute(t, "run", "--project", "", "--api-key", "", "--db", "", "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestVersionCommand(t *testing.T) {
	stdout, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pipeline version dev\n", stdout)
}
