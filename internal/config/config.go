// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Form     FormConfig     `mapstructure:"form" yaml:"form"`
	Fill     FillConfig     `mapstructure:"fill" yaml:"fill"`
	Scrape   ScrapeConfig   `mapstructure:"scrape" yaml:"scrape"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Concurrency     int           `mapstructure:"concurrency" yaml:"concurrency"`
	Debug           bool          `mapstructure:"debug" yaml:"debug"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	SlowMo          time.Duration `mapstructure:"slow_mo" yaml:"slow_mo"`
	DownloadDir     string        `mapstructure:"download_dir" yaml:"download_dir"`
}

// FormConfig pins the external form's entry point and anchor element.
type FormConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	AnchorSelector string        `mapstructure:"anchor_selector" yaml:"anchor_selector"`
	AnchorTimeout  time.Duration `mapstructure:"anchor_timeout" yaml:"anchor_timeout"`
	RenderTimeout  time.Duration `mapstructure:"render_timeout" yaml:"render_timeout"`
	Language       string        `mapstructure:"language" yaml:"language"`
}

// FillConfig tunes the fill run. The pass/page bounds and settle delays are
// empirically calibrated against the live form and deliberately overridable.
type FillConfig struct {
	MaxPages          int           `mapstructure:"max_pages" yaml:"max_pages"`
	MaxPasses         int           `mapstructure:"max_passes" yaml:"max_passes"`
	FieldTimeout      time.Duration `mapstructure:"field_timeout" yaml:"field_timeout"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" yaml:"visibility_timeout"`
	SettleShort       time.Duration `mapstructure:"settle_short" yaml:"settle_short"`
	SettleLong        time.Duration `mapstructure:"settle_long" yaml:"settle_long"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	DownloadTimeout   time.Duration `mapstructure:"download_timeout" yaml:"download_timeout"`
	Submit            bool          `mapstructure:"submit" yaml:"submit"`
	SavePDF           bool          `mapstructure:"save_pdf" yaml:"save_pdf"`
}

// ScrapeConfig tunes the schema discovery run.
type ScrapeConfig struct {
	TabTimeout   time.Duration `mapstructure:"tab_timeout" yaml:"tab_timeout"`
	SettleDelay  time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	Language     string        `mapstructure:"language" yaml:"language"`
	OutputSchema string        `mapstructure:"output_schema" yaml:"output_schema"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	MaxConcurrent   int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	RequestsPerMin  float64       `mapstructure:"requests_per_min" yaml:"requests_per_min"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DatabaseConfig holds the optional run-history database connection details.
// An empty URL disables persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// OutputConfig collects filesystem destinations for run artifacts.
type OutputConfig struct {
	Dir           string `mapstructure:"dir" yaml:"dir"`
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	SchemaPath    string `mapstructure:"schema_path" yaml:"schema_path"`
	DefaultsPath  string `mapstructure:"defaults_path" yaml:"defaults_path"`
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "videx-autofill")
	v.SetDefault("logger.log_file", "videx.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.concurrency", 2)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.slow_mo", "50ms")
	v.SetDefault("browser.download_dir", "")

	// -- Form --
	v.SetDefault("form.url", "https://videx.diplo.de/videx/visum-erfassung/videx-kurzfristiger-aufenthalt")
	v.SetDefault("form.anchor_selector", `input[id="antragsteller.familienname"]`)
	v.SetDefault("form.anchor_timeout", "15s")
	v.SetDefault("form.render_timeout", "30s")
	v.SetDefault("form.language", "English")

	// -- Fill --
	v.SetDefault("fill.max_pages", 20)
	v.SetDefault("fill.max_passes", 3)
	v.SetDefault("fill.field_timeout", "3s")
	v.SetDefault("fill.visibility_timeout", "500ms")
	v.SetDefault("fill.settle_short", "300ms")
	v.SetDefault("fill.settle_long", "2s")
	v.SetDefault("fill.navigation_timeout", "10s")
	v.SetDefault("fill.download_timeout", "20s")
	v.SetDefault("fill.submit", false)
	v.SetDefault("fill.save_pdf", true)

	// -- Scrape --
	v.SetDefault("scrape.tab_timeout", "30s")
	v.SetDefault("scrape.settle_delay", "1500ms")
	v.SetDefault("scrape.language", "en")
	v.SetDefault("scrape.output_schema", "output/fields_schema.json")

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_concurrent", 2)
	v.SetDefault("server.requests_per_min", 10.0)
	v.SetDefault("server.shutdown_timeout", "30s")

	// -- Output --
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.screenshot_dir", "output/screenshots")
	v.SetDefault("output.schema_path", "output/fields_schema.json")
	v.SetDefault("output.defaults_path", "output/defaults.json")
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Form.URL == "" {
		return fmt.Errorf("form.url is a required configuration field")
	}
	if c.Form.AnchorSelector == "" {
		return fmt.Errorf("form.anchor_selector is a required configuration field")
	}
	if c.Fill.MaxPages <= 0 {
		return fmt.Errorf("fill.max_pages must be a positive integer")
	}
	if c.Fill.MaxPasses <= 0 {
		return fmt.Errorf("fill.max_passes must be a positive integer")
	}
	if c.Browser.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if c.Server.MaxConcurrent <= 0 {
		return fmt.Errorf("server.max_concurrent must be a positive integer")
	}
	return nil
}
