package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesServiceConventions(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 600*time.Second, cfg.Poll.Timeout)
	assert.Equal(t, 100, cfg.Domains.PageSize)
	assert.Equal(t, 1, cfg.Domains.MaxPages)
	assert.Equal(t, []string{"OSM"}, cfg.Jobs.FeatureSources)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	yml := `
project_name: el-dorado
api_key: from-file
poll:
  interval: 2s
  timeout: 30s
domains:
  page_size: 25
  max_pages: 3
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("FUELS_API_KEY", "from-env")
	t.Setenv("FUELS_POLL_TIMEOUT", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "el-dorado", cfg.ProjectName)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 45*time.Second, cfg.Poll.Timeout)
	// untouched nested fields keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Poll.RequestTimeout)
	assert.Equal(t, 25, cfg.Domains.PageSize)
	assert.Equal(t, 3, cfg.Domains.MaxPages)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingDefaultFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestApplyEnvRejectsBadDuration(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "FUELS_POLL_INTERVAL" {
			return "soon", true
		}
		return "", false
	})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Poll.Interval = 0
	cfg.Domains.MaxPages = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll.interval")
	assert.Contains(t, err.Error(), "domains.max_pages")
}

func TestValidateCredentials(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.ValidateCredentials())

	cfg.ProjectName = "test-domain"
	cfg.APIKey = "key"
	require.NoError(t, cfg.ValidateCredentials())
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	cp := cfg.Clone()
	cp.Jobs.FeatureSources[0] = "other"
	cp.ProjectName = "changed"

	assert.Equal(t, "OSM", cfg.Jobs.FeatureSources[0])
	assert.Empty(t, cfg.ProjectName)
}
