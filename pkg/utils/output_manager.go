package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fuels-pipeline/internal/model"
)

// ErrInvalidFileName is returned for names that would escape a run directory.
var ErrInvalidFileName = errors.New("invalid file name")

// OutputManager handles per-run output directories and download paths
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// RunDir returns the output directory of a run without creating it.
func (om *OutputManager) RunDir(runID string) string {
	return filepath.Join(om.BaseOutputDir, filepath.Base(runID))
}

// CreateRunOutputDir creates the directory a run writes its artifacts to
func (om *OutputManager) CreateRunOutputDir(runID string) (string, error) {
	runDir := om.RunDir(runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run output directory: %w", err)
	}
	return runDir, nil
}

// FilePath resolves a file inside a run directory. Run ids and names
// containing path separators or dot segments are rejected.
func (om *OutputManager) FilePath(runID, fileName string) (string, error) {
	for _, name := range []string{runID, fileName} {
		if !plainName(name) {
			return "", fmt.Errorf("%w: %q", ErrInvalidFileName, name)
		}
	}
	return filepath.Join(om.RunDir(runID), fileName), nil
}

func plainName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// GetDownloadURL generates a download URL for a file
func (om *OutputManager) GetDownloadURL(runID, fileName string) string {
	return fmt.Sprintf("/api/v1/download/%s/%s", runID, filepath.Base(fileName))
}

// GetFileType determines the file type based on extension
func (om *OutputManager) GetFileType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".geotiff", ".tif", ".tiff":
		return "geotiff"
	case ".png":
		return "png"
	default:
		return "unknown"
	}
}

// ContentType returns the MIME type used when serving a file.
func (om *OutputManager) ContentType(fileName string) string {
	switch om.GetFileType(fileName) {
	case "csv":
		return "text/csv"
	case "json":
		return "application/json"
	case "geotiff":
		return "image/tiff"
	case "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// ListArtifacts describes the regular files of a run directory, sorted by
// name. A missing directory yields an empty list.
func (om *OutputManager) ListArtifacts(runID string) ([]model.ArtifactFile, error) {
	entries, err := os.ReadDir(om.RunDir(runID))
	if errors.Is(err, os.ErrNotExist) {
		return []model.ArtifactFile{}, nil
	}
	if err != nil {
		return nil, err
	}

	files := []model.ArtifactFile{}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, model.ArtifactFile{
			Name:        e.Name(),
			Type:        om.GetFileType(e.Name()),
			Size:        info.Size(),
			DownloadURL: om.GetDownloadURL(runID, e.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	return os.MkdirAll(om.BaseOutputDir, 0o755)
}
