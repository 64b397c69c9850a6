package config

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Build     BuildConfig     `yaml:"build" mapstructure:"build"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SourcesConfig locates the raw shapefile datasets. Each dataset is a base
// name resolved inside Dir (e.g. COMMUNE -> COMMUNE.shp, COMMUNE.dbf, ...).
type SourcesConfig struct {
	Dir             string `yaml:"dir" mapstructure:"dir"`
	Communes        string `yaml:"communes" mapstructure:"communes"`
	Arrondissements string `yaml:"arrondissements" mapstructure:"arrondissements"`
	CommunesCOM     string `yaml:"communes_com" mapstructure:"communes_com"`
}

// ReferenceConfig locates the administrative hierarchy JSON files.
type ReferenceConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// BuildConfig configures the contour build.
type BuildConfig struct {
	Intervals   []int    `yaml:"intervals" mapstructure:"intervals"`
	Layers      []string `yaml:"layers" mapstructure:"layers"`
	DistDir     string   `yaml:"dist_dir" mapstructure:"dist_dir"`
	Simplifier  string   `yaml:"simplifier" mapstructure:"simplifier"`
	Concurrency int      `yaml:"concurrency" mapstructure:"concurrency"`
	MetricsFile string   `yaml:"metrics_file" mapstructure:"metrics_file"`
}

// StoreConfig configures the per-layer key-value stores.
type StoreConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	Dir              string `yaml:"dir" mapstructure:"dir"`
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr        string `yaml:"redis_addr" mapstructure:"redis_addr"`
	WriteConcurrency int    `yaml:"write_concurrency" mapstructure:"write_concurrency"`
}

// FetchConfig configures source downloads.
type FetchConfig struct {
	TempDir     string          `yaml:"temp_dir" mapstructure:"temp_dir"`
	TimeoutSecs int             `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int             `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string          `yaml:"user_agent" mapstructure:"user_agent"`
	Archives    []ArchiveConfig `yaml:"archives" mapstructure:"archives"`
	Reference   []string        `yaml:"reference" mapstructure:"reference"`
}

// ArchiveConfig describes one downloadable zip archive and the datasets it
// contains.
type ArchiveConfig struct {
	URL      string          `yaml:"url" mapstructure:"url"`
	Datasets []DatasetConfig `yaml:"datasets" mapstructure:"datasets"`
}

// DatasetConfig names a shapefile dataset and the doublestar pattern matching
// its .shp file inside the extracted archive. Viper lowercases map keys, so
// dataset names are carried as values.
type DatasetConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
}

// ServerConfig configures the lookup server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CacheSize   int      `yaml:"cache_size" mapstructure:"cache_size"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// KnownLayers lists the layer names a build can produce.
var KnownLayers = []string{
	"epci",
	"departements",
	"regions",
	"communes",
	"arrondissements-municipaux",
	"communes-com",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONTOURS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sources.dir", "sources")
	v.SetDefault("sources.communes", "COMMUNE")
	v.SetDefault("sources.arrondissements", "ARRONDISSEMENT_MUNICIPAL")
	v.SetDefault("sources.communes_com", "osm-communes-com")
	v.SetDefault("reference.dir", "reference")
	v.SetDefault("build.intervals", []int{1000, 100, 50, 5})
	v.SetDefault("build.layers", KnownLayers)
	v.SetDefault("build.dist_dir", "dist")
	v.SetDefault("build.simplifier", "topology")
	v.SetDefault("build.concurrency", 4)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dir", "dist")
	v.SetDefault("store.write_concurrency", 8)
	v.SetDefault("fetch.temp_dir", "/tmp/contours")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "contours-admin/1.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cache_size", 4096)
	v.SetDefault("server.cors_origins", []string{"*"})
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

// Validate checks the build-related settings.
func (c *Config) Validate() error {
	if len(c.Build.Intervals) == 0 {
		return eris.New("config: build.intervals is empty")
	}
	for _, i := range c.Build.Intervals {
		if i <= 0 {
			return eris.Errorf("config: invalid interval %d", i)
		}
	}
	for _, l := range c.Build.Layers {
		if !slices.Contains(KnownLayers, l) {
			return eris.Errorf("config: unknown layer %q", l)
		}
	}
	switch c.Build.Simplifier {
	case "topology", "visvalingam":
	default:
		return eris.Errorf("config: unknown simplifier %q", c.Build.Simplifier)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "redis":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for postgres")
	}
	if c.Store.Driver == "redis" && c.Store.RedisAddr == "" {
		return eris.New("config: store.redis_addr is required for redis")
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
