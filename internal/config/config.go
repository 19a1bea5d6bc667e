package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Postal     PostalConfig     `yaml:"postal" mapstructure:"postal"`
	Genre      GenreConfig      `yaml:"genre" mapstructure:"genre"`
	Regions    RegionsConfig    `yaml:"regions" mapstructure:"regions"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// InputConfig locates the source listing tables.
type InputConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
	Sheet    string `yaml:"sheet" mapstructure:"sheet"`
}

// OutputConfig controls the per-source output directory.
type OutputConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	Debug     bool   `yaml:"debug" mapstructure:"debug"`
	Shapefile bool   `yaml:"shapefile" mapstructure:"shapefile"`
	Cleanup   bool   `yaml:"cleanup" mapstructure:"cleanup"`
}

// PipelineConfig tunes record processing.
type PipelineConfig struct {
	Concurrency        int `yaml:"concurrency" mapstructure:"concurrency"`
	GeocodeTimeoutSecs int `yaml:"geocode_timeout_secs" mapstructure:"geocode_timeout_secs"`
}

// GeocodeConfig selects and tunes the geocoding providers. Providers are
// tried in the listed order.
type GeocodeConfig struct {
	Providers        []string           `yaml:"providers" mapstructure:"providers"`
	DAMSURL          string             `yaml:"dams_url" mapstructure:"dams_url"`
	GSIURL           string             `yaml:"gsi_url" mapstructure:"gsi_url"`
	GoogleAPIKey     string             `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit        float64            `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries       int                `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs int                `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	CircuitThreshold int                `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs int                `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
	Cache            GeocodeCacheConfig `yaml:"cache" mapstructure:"cache"`
}

// GeocodeCacheConfig selects where geocode results are cached.
type GeocodeCacheConfig struct {
	// Driver is one of "sqlite", "redis", "memory" or "none".
	Driver  string `yaml:"driver" mapstructure:"driver"`
	TTLDays int    `yaml:"ttl_days" mapstructure:"ttl_days"`
}

// StoreConfig configures the sqlite database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RedisConfig configures the shared geocode cache.
type RedisConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// PostalConfig controls the zip/region cross-check and KEN_ALL import.
type PostalConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	URL      string `yaml:"url" mapstructure:"url"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// GenreConfig overrides the embedded classification rules.
type GenreConfig struct {
	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`
}

// RegionsConfig adds region hint aliases, e.g. shizuoka_red: shizuoka.
type RegionsConfig struct {
	Aliases map[string]string `yaml:"aliases" mapstructure:"aliases"`
}

// MetricsConfig configures metrics export for batch runs.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// ServerConfig configures the diagnostics server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures run health alerts.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ErrorRateThreshold   float64 `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	RecentRuns           int     `yaml:"recent_runs" mapstructure:"recent_runs"`
}

var (
	cacheDrivers = map[string]bool{"sqlite": true, "redis": true, "memory": true, "none": true}
	providers    = map[string]bool{"dams": true, "gsi": true, "google": true}
)

// Validate checks the settings a command mode needs: "run", "serve" or
// "postal". All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case "run":
		if c.Input.Dir == "" {
			errs = append(errs, "input.dir is required")
		}
		if c.Output.Dir == "" {
			errs = append(errs, "output.dir is required")
		}
		if c.Pipeline.Concurrency < 1 {
			errs = append(errs, "pipeline.concurrency must be > 0")
		}
		if c.Pipeline.GeocodeTimeoutSecs < 1 {
			errs = append(errs, "pipeline.geocode_timeout_secs must be > 0")
		}
		if len(c.Geocode.Providers) == 0 {
			errs = append(errs, "geocode.providers is required")
		}
		for _, p := range c.Geocode.Providers {
			if !providers[p] {
				errs = append(errs, fmt.Sprintf("geocode.providers: unknown provider %q", p))
			}
		}
		if !cacheDrivers[c.Geocode.Cache.Driver] {
			errs = append(errs, fmt.Sprintf("geocode.cache.driver: unknown driver %q", c.Geocode.Cache.Driver))
		}
		if c.Geocode.Cache.Driver == "redis" && c.Redis.URL == "" && c.Redis.Addr == "" {
			errs = append(errs, "redis.url or redis.addr is required for the redis cache")
		}
		if c.Geocode.Cache.Driver == "sqlite" && c.Store.Path == "" {
			errs = append(errs, "store.path is required for the sqlite cache")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "postal":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from path, or from ./config.yaml when path is
// empty, and CSV2GEOJSON_* environment variables. Only the implicit
// config.yaml may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CSV2GEOJSON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("input.dir", "input")
	v.SetDefault("input.encoding", "utf-8")
	v.SetDefault("input.sheet", "")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.debug", true)
	v.SetDefault("output.shapefile", false)
	v.SetDefault("output.cleanup", true)
	v.SetDefault("pipeline.concurrency", 8)
	v.SetDefault("pipeline.geocode_timeout_secs", 30)
	v.SetDefault("geocode.providers", []string{"dams", "gsi"})
	v.SetDefault("geocode.dams_url", "")
	v.SetDefault("geocode.gsi_url", "https://msearch.gsi.go.jp/address-search/AddressSearch")
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.rate_limit", 0.0)
	v.SetDefault("geocode.max_retries", 3)
	v.SetDefault("geocode.initial_backoff_ms", 500)
	v.SetDefault("geocode.circuit_threshold", 5)
	v.SetDefault("geocode.circuit_reset_secs", 30)
	v.SetDefault("geocode.cache.driver", "sqlite")
	v.SetDefault("geocode.cache.ttl_days", 90)
	v.SetDefault("store.path", "csv2geojson.db")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("postal.enabled", true)
	v.SetDefault("postal.url", "https://www.post.japanpost.jp/zipcode/dl/kogaki/zip/ken_all.zip")
	v.SetDefault("postal.encoding", "shift_jis")
	v.SetDefault("genre.rules_file", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.error_rate_threshold", 0.1)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.recent_runs", 50)
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
