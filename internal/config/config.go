package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	City     CityConfig     `yaml:"city" mapstructure:"city"`
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Archive  ArchiveConfig  `yaml:"archive" mapstructure:"archive"`
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// CityConfig identifies the study area. BBox is xmin, ymin, xmax, ymax
// in the working coordinate system.
type CityConfig struct {
	Name string    `yaml:"name" mapstructure:"name"`
	BBox []float64 `yaml:"bbox" mapstructure:"bbox"`
}

// PathsConfig locates the materialized inputs and the output directory.
// Every stage receives explicit paths; nothing resolves against the
// process working directory at compute time.
type PathsConfig struct {
	ScenesDir     string `yaml:"scenes_dir" mapstructure:"scenes_dir"`
	ElevationPath string `yaml:"elevation_path" mapstructure:"elevation_path"`
	LandCoverPath string `yaml:"landcover_path" mapstructure:"landcover_path"`
	BoundaryPath  string `yaml:"boundary_path" mapstructure:"boundary_path"`
	OutputDir     string `yaml:"output_dir" mapstructure:"output_dir"`
}

// PipelineConfig configures the thermal-anomaly computation.
type PipelineConfig struct {
	Season      string `yaml:"season" mapstructure:"season"`
	Year        int    `yaml:"year" mapstructure:"year"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// ArchiveConfig holds imagery-archive API settings. Credentials stay
// inside the collaborator client and never reach the core stages.
type ArchiveConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Username      string  `yaml:"username" mapstructure:"username"`
	Token         string  `yaml:"token" mapstructure:"token"`
	MaxCloudCover int     `yaml:"max_cloud_cover" mapstructure:"max_cloud_cover"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// CatalogConfig configures the run/scene ledger backend.
type CatalogConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the fields a command mode needs are present.
// Modes: "run" (full pipeline), "fetch" (archive download), "serve"
// (status server).
func (c *Config) Validate(mode string) error {
	var missing []string

	if c.Pipeline.Concurrency < 0 {
		missing = append(missing, "pipeline.concurrency must be >= 0")
	}

	switch mode {
	case "run":
		if c.Pipeline.Year <= 0 {
			missing = append(missing, "pipeline.year is required")
		}
		if _, _, err := SeasonRange(c.Pipeline.Season, 2000); err != nil {
			missing = append(missing, "pipeline.season must be a season name")
		}
		if c.Paths.ScenesDir == "" {
			missing = append(missing, "paths.scenes_dir is required")
		}
		if c.Paths.ElevationPath == "" {
			missing = append(missing, "paths.elevation_path is required")
		}
		if c.Paths.LandCoverPath == "" {
			missing = append(missing, "paths.landcover_path is required")
		}
		if c.Paths.BoundaryPath == "" {
			missing = append(missing, "paths.boundary_path is required")
		}
		if c.Paths.OutputDir == "" {
			missing = append(missing, "paths.output_dir is required")
		}
		if c.City.Name == "" {
			missing = append(missing, "city.name is required")
		}
	case "fetch":
		if c.Archive.Username == "" {
			missing = append(missing, "archive.username is required")
		}
		if c.Archive.Token == "" {
			missing = append(missing, "archive.token is required")
		}
		if len(c.City.BBox) != 4 {
			missing = append(missing, "city.bbox must be xmin,ymin,xmax,ymax")
		}
		if c.Archive.MaxCloudCover < 0 || c.Archive.MaxCloudCover > 100 {
			missing = append(missing, "archive.max_cloud_cover must be between 0 and 100")
		}
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: invalid for %s mode: %s", mode, strings.Join(missing, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SUHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("catalog.driver", "sqlite")
	v.SetDefault("catalog.sqlite_path", "suhi.db")
	v.SetDefault("pipeline.season", "summer")
	v.SetDefault("pipeline.concurrency", 0)
	v.SetDefault("archive.base_url", "https://m2m.cr.usgs.gov/api/api/json/stable")
	v.SetDefault("archive.max_cloud_cover", 70)
	v.SetDefault("archive.rate_limit", 2.0)
	v.SetDefault("paths.scenes_dir", "data/scenes")
	v.SetDefault("paths.output_dir", "data/out")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// SeasonRange resolves a season name and year to its inclusive UTC date
// range. Winter belongs to the year it ends in: winter 2020 runs from
// December 2019 through February 2020.
func SeasonRange(season string, year int) (start, end time.Time, err error) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	switch strings.ToLower(season) {
	case "winter":
		return day(year-1, time.December, 1), day(year, time.March, 1).AddDate(0, 0, -1), nil
	case "spring":
		return day(year, time.March, 1), day(year, time.May, 31), nil
	case "summer":
		return day(year, time.June, 1), day(year, time.August, 31), nil
	case "autumn", "fall":
		return day(year, time.September, 1), day(year, time.November, 30), nil
	}
	return time.Time{}, time.Time{}, eris.Errorf("config: unknown season %q", season)
}
