package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Journal JournalConfig `yaml:"journal" mapstructure:"journal"`
	Zensus  ZensusConfig  `yaml:"zensus" mapstructure:"zensus"`
	Stats   StatsConfig   `yaml:"stats" mapstructure:"stats"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// JournalConfig configures the local run journal.
type JournalConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ZensusConfig configures census CSV ingestion.
type ZensusConfig struct {
	DataDir    string `yaml:"data_dir" mapstructure:"data_dir"`
	ChunkSize  int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	Charset    string `yaml:"charset" mapstructure:"charset"`
	SampleSize int    `yaml:"sample_size" mapstructure:"sample_size"`
}

// StatsConfig configures the weighted statistics run.
type StatsConfig struct {
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	ChunkSize   int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	GridSize    string `yaml:"grid_size" mapstructure:"grid_size"`
	Year        int    `yaml:"year" mapstructure:"year"`
	GroupsFile  string `yaml:"groups_file" mapstructure:"groups_file"`
}

// GeocodeConfig configures the geocoding cascade.
type GeocodeConfig struct {
	NominatimURL      string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	PhotonURL         string  `yaml:"photon_url" mapstructure:"photon_url"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	CacheTTLDays      int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
	BatchConcurrency  int     `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
}

// FetchConfig configures source archive downloads.
type FetchConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the stats HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.reddata")

	// Environment
	v.SetEnvPrefix("REDDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("journal.path", "reddata-journal.db")
	v.SetDefault("zensus.data_dir", "data/zensus_data")
	v.SetDefault("zensus.chunk_size", 50000)
	v.SetDefault("zensus.charset", "utf-8")
	v.SetDefault("zensus.sample_size", 100)
	v.SetDefault("stats.concurrency", 8)
	v.SetDefault("stats.chunk_size", 500)
	v.SetDefault("stats.grid_size", "100m")
	v.SetDefault("stats.year", 2022)
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.photon_url", "https://photon.komoot.io")
	v.SetDefault("geocode.user_agent", "red-data-database/1.0")
	v.SetDefault("geocode.requests_per_second", 1.0)
	v.SetDefault("geocode.cache_ttl_days", 0)
	v.SetDefault("geocode.batch_concurrency", 1)
	v.SetDefault("fetch.dir", "data/downloads")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks that the configuration required for the given mode is
// present and within bounds. Mode is one of "etl", "stats", "geocode",
// "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	needDB := func() {
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "etl":
		needDB()
		if c.Zensus.ChunkSize < 1 {
			problems = append(problems, "zensus.chunk_size must be >= 1")
		}
		if c.Zensus.SampleSize < 1 {
			problems = append(problems, "zensus.sample_size must be >= 1")
		}
	case "stats":
		needDB()
		if c.Stats.Concurrency < 1 || c.Stats.Concurrency > 64 {
			problems = append(problems, "stats.concurrency must be between 1 and 64")
		}
		if c.Stats.ChunkSize < 1 {
			problems = append(problems, "stats.chunk_size must be >= 1")
		}
		if c.Stats.Year < 1900 || c.Stats.Year > 2100 {
			problems = append(problems, "stats.year must be a plausible census year")
		}
	case "geocode":
		needDB()
		if c.Geocode.RequestsPerSecond <= 0 {
			problems = append(problems, "geocode.requests_per_second must be > 0")
		}
	case "serve":
		needDB()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
