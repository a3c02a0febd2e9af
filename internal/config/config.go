package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hmoscout/ingest-cli/internal/match"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Matcher match.Config  `yaml:"matcher" mapstructure:"matcher"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Ingest  IngestConfig  `yaml:"ingest" mapstructure:"ingest"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file path
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodeConfig configures the address resolver.
type GeocodeConfig struct {
	NominatimURL   string `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	PostcodesURL   string `yaml:"postcodes_url" mapstructure:"postcodes_url"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
	MinIntervalMS  int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	CallTimeoutSec int    `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// SourcesConfig configures the upstream adapters. Priority orders merge
// provenance, most authoritative first.
type SourcesConfig struct {
	Priority        []string              `yaml:"priority" mapstructure:"priority"`
	LicenceRegister LicenceRegisterConfig `yaml:"licence_register" mapstructure:"licence_register"`
	XLSXRegister    XLSXRegisterConfig    `yaml:"xlsx_register" mapstructure:"xlsx_register"`
}

// LicenceRegisterConfig configures the council licence register API source.
type LicenceRegisterConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// XLSXRegisterConfig configures the spreadsheet register source.
type XLSXRegisterConfig struct {
	Name      string `yaml:"name" mapstructure:"name"`
	URL       string `yaml:"url" mapstructure:"url"`
	SheetName string `yaml:"sheet_name" mapstructure:"sheet_name"`
	SkipRows  int    `yaml:"skip_rows" mapstructure:"skip_rows"`
}

// IngestConfig configures run behavior.
type IngestConfig struct {
	RecordDelayMS        int `yaml:"record_delay_ms" mapstructure:"record_delay_ms"`
	MaxErrors            int `yaml:"max_errors" mapstructure:"max_errors"`
	MaxConcurrentSources int `yaml:"max_concurrent_sources" mapstructure:"max_concurrent_sources"`
}

// ServerConfig configures the webhook server.
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

	// Environment
	v.SetEnvPrefix("HMOSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "hmoscout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.postcodes_url", "https://api.postcodes.io")
	v.SetDefault("geocode.user_agent", "hmoscout/1.0")
	v.SetDefault("geocode.min_interval_ms", 1100)
	v.SetDefault("geocode.call_timeout_secs", 10)
	v.SetDefault("matcher.strategy", match.StrategyHeuristic)
	v.SetDefault("sources.priority", []string{"council_register", "register_xlsx", "listings_scrape"})
	v.SetDefault("sources.licence_register.name", "council_register")
	v.SetDefault("sources.xlsx_register.name", "register_xlsx")
	v.SetDefault("sources.xlsx_register.skip_rows", 1)
	v.SetDefault("ingest.record_delay_ms", 250)
	v.SetDefault("ingest.max_errors", 25)
	v.SetDefault("ingest.max_concurrent_sources", 2)

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
