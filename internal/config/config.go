// Package config loads pipeline settings.
//
// Precedence: defaults → YAML file → FUELS_* environment variables. CLI flags
// are applied by the commands on top of the loaded value.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL     = "https://api.fastfuels.silvxlabs.com/v1"
	DefaultImageryURL  = "https://imagery.nationalmap.gov/arcgis/rest/services/USGSNAIPPlus/ImageServer/exportImage"
	DefaultConfigFile  = "pipeline.yaml"
	envPrefix          = "FUELS_"
	defaultGridMetres  = 2.0
	defaultDomainPages = 1
)

// Config is the complete pipeline configuration.
type Config struct {
	ProjectName    string  `yaml:"project_name"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	OutputDir      string  `yaml:"output_dir"`
	DatabasePath   string  `yaml:"database_path"`
	GridResolution float64 `yaml:"grid_resolution"`

	Poll     PollConfig     `yaml:"poll"`
	Domains  DomainsConfig  `yaml:"domains"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Imagery  ImageryConfig  `yaml:"imagery"`
	HTTP     HTTPConfig     `yaml:"http"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Artifact ArtifactConfig `yaml:"artifacts"`
}

// PollConfig controls the fixed-interval status poller.
type PollConfig struct {
	Interval       time.Duration `yaml:"interval"`
	Timeout        time.Duration `yaml:"timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DomainsConfig controls the domain listing scan.
// MaxPages of 1 scans only the first page.
type DomainsConfig struct {
	PageSize int `yaml:"page_size"`
	MaxPages int `yaml:"max_pages"`
}

// JobsConfig holds the request payload options for the remote jobs.
type JobsConfig struct {
	ElevationSource     string   `yaml:"elevation_source"`
	InterpolationMethod string   `yaml:"interpolation_method"`
	FeatureSources      []string `yaml:"feature_sources"`
	TreeMapVersion      string   `yaml:"treemap_version"`
}

// ImageryConfig describes the background imagery server.
type ImageryConfig struct {
	URL           string        `yaml:"url"`
	Format        string        `yaml:"format"`
	PixelType     string        `yaml:"pixel_type"`
	Interpolation string        `yaml:"interpolation"`
	Timeout       time.Duration `yaml:"timeout"`
}

// HTTPConfig configures the outbound API client.
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"` // 0 disables limiting
	RateBurst    int           `yaml:"rate_burst"`
}

// ServerConfig configures the pipeline API server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// ArtifactConfig names the files a run writes into its output directory.
type ArtifactConfig struct {
	TopographyImage string `yaml:"topography_image"`
	TreeInventory   string `yaml:"tree_inventory"`
	TopoMetadata    string `yaml:"topo_metadata"`
	Imagery         string `yaml:"imagery"`
	RescaledTrees   string `yaml:"rescaled_trees"`
	ElevationGrid   string `yaml:"elevation_grid"`
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		OutputDir:      "output",
		DatabasePath:   "pipeline.db",
		GridResolution: defaultGridMetres,
		Poll: PollConfig{
			Interval:       10 * time.Second,
			Timeout:        600 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Domains: DomainsConfig{
			PageSize: 100,
			MaxPages: defaultDomainPages,
		},
		Jobs: JobsConfig{
			ElevationSource:     "3DEP",
			InterpolationMethod: "cubic",
			FeatureSources:      []string{"OSM"},
			TreeMapVersion:      "2022",
		},
		Imagery: ImageryConfig{
			URL:           DefaultImageryURL,
			Format:        "png",
			PixelType:     "U8",
			Interpolation: "RSP_BilinearInterpolation",
			Timeout:       120 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:   60 * time.Second,
			RateBurst: 1,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Artifact: ArtifactConfig{
			TopographyImage: "topo.geotiff",
			TreeInventory:   "treelist.csv",
			TopoMetadata:    "topo_metadata.json",
			Imagery:         "naip.png",
			RescaledTrees:   "newTreelist.csv",
			ElevationGrid:   "elevation_grid.json",
		},
	}
}

// Load reads path (if it exists) over the defaults, then applies the
// environment. An empty path falls back to DefaultConfigFile, and a missing
// default file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"API_KEY":       &c.APIKey,
		"PROJECT_NAME":  &c.ProjectName,
		"BASE_URL":      &c.BaseURL,
		"OUTPUT_DIR":    &c.OutputDir,
		"DATABASE_PATH": &c.DatabasePath,
		"LOG_LEVEL":     &c.Log.Level,
		"LOG_FORMAT":    &c.Log.Format,
		"SERVER_ADDR":   &c.Server.Addr,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"POLL_INTERVAL": &c.Poll.Interval,
		"POLL_TIMEOUT":  &c.Poll.Timeout,
	}
	for key, dst := range durations {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", envPrefix, key, err)
		}
		*dst = d
	}

	if v, ok := lookup(envPrefix + "DOMAIN_MAX_PAGES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %sDOMAIN_MAX_PAGES: %w", envPrefix, err)
		}
		c.Domains.MaxPages = n
	}
	return nil
}

// Validate checks the values a run depends on. Credentials are checked
// separately by ValidateCredentials since the API server receives them per run.
func (c *Config) Validate() error {
	var problems []string
	if c.BaseURL == "" {
		problems = append(problems, "base_url is required")
	}
	if c.Poll.Interval <= 0 {
		problems = append(problems, "poll.interval must be positive")
	}
	if c.Poll.Timeout <= 0 {
		problems = append(problems, "poll.timeout must be positive")
	}
	if c.Poll.RequestTimeout <= 0 {
		problems = append(problems, "poll.request_timeout must be positive")
	}
	if c.Domains.PageSize <= 0 {
		problems = append(problems, "domains.page_size must be positive")
	}
	if c.Domains.MaxPages <= 0 {
		problems = append(problems, "domains.max_pages must be positive")
	}
	if c.GridResolution <= 0 {
		problems = append(problems, "grid_resolution must be positive")
	}
	if c.HTTP.RateLimitRPS < 0 {
		problems = append(problems, "http.rate_limit_rps must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateCredentials reports whether a run can authenticate and find its domain.
func (c *Config) ValidateCredentials() error {
	if strings.TrimSpace(c.ProjectName) == "" {
		return errors.New("project name is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("api key is required")
	}
	return nil
}

// Clone returns a copy safe to mutate per run.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Jobs.FeatureSources = append([]string(nil), c.Jobs.FeatureSources...)
	return &cp
}
