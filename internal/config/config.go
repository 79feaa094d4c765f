package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// SweepConfig holds cleanup pass scheduling and pacing settings.
type SweepConfig struct {
	AutoClean    bool          `json:"autoClean" mapstructure:"autoClean"`
	InitialDelay time.Duration `json:"initialDelay" mapstructure:"initialDelay" validate:"gte=0"`
	Interval     time.Duration `json:"interval" mapstructure:"interval" validate:"gte=0"`
	Budget       time.Duration `json:"budget" mapstructure:"budget" validate:"gt=0"`
}

// MemoryReportConfig holds the in-memory report ring settings.
type MemoryReportConfig struct {
	Capacity int `json:"capacity" mapstructure:"capacity" validate:"min=1"`
}

// InfluxReportConfig holds InfluxDB report sink settings.
type InfluxReportConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host" validate:"required_if=Enabled true"`
	Port     string `json:"port" mapstructure:"port" validate:"required_if=Enabled true"`
	Protocol string `json:"protocol" mapstructure:"protocol" validate:"oneof=http https"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// WebsocketReportConfig holds websocket report sink settings.
type WebsocketReportConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url" validate:"required_if=Enabled true,omitempty,url"`
	Secret  string `json:"secret" mapstructure:"secret"`
}

// WebhookReportConfig holds HTTP webhook report sink settings.
type WebhookReportConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url" validate:"required_if=Enabled true,omitempty,url"`
	APIKey  string `json:"apiKey" mapstructure:"apiKey"`
}

// ReportConfig holds settings for every report sink.
type ReportConfig struct {
	Memory    MemoryReportConfig    `json:"memory" mapstructure:"memory"`
	Influx    InfluxReportConfig    `json:"influx" mapstructure:"influx"`
	Websocket WebsocketReportConfig `json:"websocket" mapstructure:"websocket"`
	Webhook   WebhookReportConfig   `json:"webhook" mapstructure:"webhook"`
}

// GraylogConfig holds GELF log forwarding settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

// LoggingConfig holds log level, log directory and Graylog settings.
type LoggingConfig struct {
	Level   string        `json:"logLevel" mapstructure:"logLevel" validate:"oneof=TRACE DEBUG INFO WARN ERROR trace debug info warn error"`
	Dir     string        `json:"logsDir" mapstructure:"logsDir" validate:"required"`
	Graylog GraylogConfig `json:"graylog" mapstructure:"graylog"`
}

// OTelConfig holds OpenTelemetry metrics export settings.
type OTelConfig struct {
	Enabled     bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName string        `json:"serviceName" mapstructure:"serviceName" validate:"required"`
	Interval    time.Duration `json:"interval" mapstructure:"interval" validate:"gt=0"`
}

var validate = validator.New()

// CurrentVersion is the config schema version this build expects. Files
// declaring an older version still load; defaults fill whatever keys
// their schema predates.
const CurrentVersion = 1

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("configVersion", CurrentVersion)
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./sweeplogs")

	viper.SetDefault("sweep.autoClean", true)
	viper.SetDefault("sweep.initialDelay", "90s")
	viper.SetDefault("sweep.interval", "10m")
	viper.SetDefault("sweep.budget", "4ms")

	viper.SetDefault("report.memory.capacity", 32)

	viper.SetDefault("report.influx.enabled", false)
	viper.SetDefault("report.influx.host", "localhost")
	viper.SetDefault("report.influx.port", "8086")
	viper.SetDefault("report.influx.protocol", "http")
	viper.SetDefault("report.influx.token", "")
	viper.SetDefault("report.influx.org", "worldsweep")
	viper.SetDefault("report.influx.bucket", "sweep")

	viper.SetDefault("report.websocket.enabled", false)
	viper.SetDefault("report.websocket.url", "ws://localhost:5001/ingest")
	viper.SetDefault("report.websocket.secret", "")

	viper.SetDefault("report.webhook.enabled", false)
	viper.SetDefault("report.webhook.url", "http://localhost:5000/api/v1/sweeps")
	viper.SetDefault("report.webhook.apiKey", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "worldsweep")
	viper.SetDefault("otel.interval", "15s")

	viper.SetConfigName("worldsweep.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return Validate()
}

// Validate checks every loaded config section against its constraints.
func Validate() error {
	sections := []any{
		GetSweep(),
		GetReport(),
		GetLogging(),
		GetOTel(),
	}
	for _, s := range sections {
		if err := validate.Struct(s); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

// OnReload registers fn to run whenever the config file changes on disk
// and starts watching the file. fn receives the changed file path.
func OnReload(fn func(file string)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		fn(e.Name)
	})
	viper.WatchConfig()
}

// Version returns the schema version the loaded file declares. Callers
// compare it against CurrentVersion to warn about stale files.
func Version() int {
	return viper.GetInt("configVersion")
}

// GetSweep returns the cleanup pass settings.
func GetSweep() SweepConfig {
	return SweepConfig{
		AutoClean:    viper.GetBool("sweep.autoClean"),
		InitialDelay: viper.GetDuration("sweep.initialDelay"),
		Interval:     viper.GetDuration("sweep.interval"),
		Budget:       viper.GetDuration("sweep.budget"),
	}
}

// GetReport returns the report sink settings.
func GetReport() ReportConfig {
	return ReportConfig{
		Memory: MemoryReportConfig{
			Capacity: viper.GetInt("report.memory.capacity"),
		},
		Influx: InfluxReportConfig{
			Enabled:  viper.GetBool("report.influx.enabled"),
			Host:     viper.GetString("report.influx.host"),
			Port:     viper.GetString("report.influx.port"),
			Protocol: viper.GetString("report.influx.protocol"),
			Token:    viper.GetString("report.influx.token"),
			Org:      viper.GetString("report.influx.org"),
			Bucket:   viper.GetString("report.influx.bucket"),
		},
		Websocket: WebsocketReportConfig{
			Enabled: viper.GetBool("report.websocket.enabled"),
			URL:     viper.GetString("report.websocket.url"),
			Secret:  viper.GetString("report.websocket.secret"),
		},
		Webhook: WebhookReportConfig{
			Enabled: viper.GetBool("report.webhook.enabled"),
			URL:     viper.GetString("report.webhook.url"),
			APIKey:  viper.GetString("report.webhook.apiKey"),
		},
	}
}

// GetLogging returns the logging settings.
func GetLogging() LoggingConfig {
	return LoggingConfig{
		Level: viper.GetString("logLevel"),
		Dir:   viper.GetString("logsDir"),
		Graylog: GraylogConfig{
			Enabled: viper.GetBool("graylog.enabled"),
			Address: viper.GetString("graylog.address"),
		},
	}
}

// GetOTel returns the OpenTelemetry settings.
func GetOTel() OTelConfig {
	return OTelConfig{
		Enabled:     viper.GetBool("otel.enabled"),
		ServiceName: viper.GetString("otel.serviceName"),
		Interval:    viper.GetDuration("otel.interval"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
