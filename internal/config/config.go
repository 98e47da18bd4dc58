// Revision: 2026-01-05 | Version: 1.0.0
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all guardian daemon configuration.
type Config struct {
	App      AppConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	NUT      NUTConfig
	Monitor  MonitorConfig
	Shutdown ShutdownConfig
	Hooks    HooksConfig
	Notify   NotifyConfig
	WOL      WOLConfig
}

type AppConfig struct {
	Name          string
	Environment   string
	ControlSocket string
	RetentionDays int
}

type LoggingConfig struct {
	Level       string
	Development bool
}

type DatabaseConfig struct {
	Driver string // sqlite | postgres
	Path   string // sqlite file path

	Host     string
	Port     int
	Username string
	Password string
	Database string
	SSLMode  string
}

// NUTConfig describes how to reach the NUT server (upsd).
type NUTConfig struct {
	Host     string
	Port     int
	UPSName  string // empty triggers auto-discovery (LIST UPS)
	Username string
	Password string
}

// MonitoringMode selects how the monitor refreshes UPS snapshots.
type MonitoringMode string

const (
	ModePolling     MonitoringMode = "polling"
	ModeEventDriven MonitoringMode = "eventDriven"
	ModeHybrid      MonitoringMode = "hybrid"
)

type MonitorConfig struct {
	PollIntervalSeconds         int
	SampleIntervalSeconds       int
	MonitoringMode              MonitoringMode
	EventDrivenEnabled          bool
	EventDrivenHeartbeatSeconds int
	EventDrivenFallback         bool
	PollIntervalFallbackSeconds int
}

// TestMode selects whether a shutdown sequence actually calls the OS.
type TestMode string

const (
	TestModeProduction TestMode = "production"
	TestModeDryRun     TestMode = "dryRun"
	TestModeMock       TestMode = "mock"
)

type ShutdownConfig struct {
	ShutdownWaitMinutes int
	// ShutdownBatteryPercent is loaded with the rest of the config (default
	// 30); no daemon code reads it. It never triggers a shutdown; only
	// estimated runtime does.
	ShutdownBatteryPercent           int
	ShutdownFinalWaitSeconds         int
	EstimatedRuntimeThresholdMinutes int
	TestMode                         TestMode
	ShutdownCommand                  string
	RebootCommand                    string
}

// WOLConfig holds Wake-on-LAN settings for bringing managed devices back up
// once utility power returns. The daemon's wol.Waker, subscribed to the
// PowerRestored event in app.New, sends the magic packets.
type WOLConfig struct {
	Enabled          bool
	BroadcastAddress string
	Port             int
	MacAddresses     []string
}

type HooksConfig struct {
	PreShutdownHooks []HookConfigEntry
}

// HookConfigEntry mirrors HookSpec's persisted shape.
type HookConfigEntry struct {
	ID                string
	DisplayName       string
	BackendID         string
	Priority          int
	Enabled           bool
	OnFailure         string // continue | abort
	TimeoutSeconds    int
	MaxRetries        int
	RetryDelaySeconds int
	Config            map[string]string
}

type NotifyConfig struct {
	Enabled       bool
	EnabledEvents []string
	Channels      []NotifyChannelEntry
}

type NotifyChannelEntry struct {
	ID       string
	Name     string
	PluginID string
	Enabled  bool
	Config   map[string]string
}

// Load loads configuration from an optional file plus environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("UPSGUARD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ups-guardian")
	v.SetDefault("app.environment", "production")
	v.SetDefault("app.controlSocket", "./data/ups-guardiand.sock")
	v.SetDefault("app.retentionDays", 90)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/upsguard.db")

	v.SetDefault("nut.host", "127.0.0.1")
	v.SetDefault("nut.port", 3493)

	v.SetDefault("monitor.pollIntervalSeconds", 5)
	v.SetDefault("monitor.sampleIntervalSeconds", 60)
	v.SetDefault("monitor.monitoringMode", string(ModePolling))
	v.SetDefault("monitor.eventDrivenEnabled", false)
	v.SetDefault("monitor.eventDrivenHeartbeatSeconds", 30)
	v.SetDefault("monitor.eventDrivenFallback", true)
	v.SetDefault("monitor.pollIntervalFallbackSeconds", 60)

	v.SetDefault("shutdown.shutdownWaitMinutes", 5)
	v.SetDefault("shutdown.shutdownBatteryPercent", 30)
	v.SetDefault("shutdown.shutdownFinalWaitSeconds", 30)
	v.SetDefault("shutdown.estimatedRuntimeThresholdMinutes", 3)
	v.SetDefault("shutdown.testMode", string(TestModeProduction))
	v.SetDefault("shutdown.shutdownCommand", "shutdown -h now")
	v.SetDefault("shutdown.rebootCommand", "shutdown -r now")

	v.SetDefault("notify.enabled", true)

	v.SetDefault("wol.enabled", false)
	v.SetDefault("wol.broadcastAddress", "255.255.255.255")
	v.SetDefault("wol.port", 9)
}

// Validate checks invariants the core relies on.
func (c *Config) Validate() error {
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" && c.Database.Driver != "postgresql" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		return fmt.Errorf("database path is required for sqlite")
	}
	switch c.Monitor.MonitoringMode {
	case ModePolling, ModeEventDriven, ModeHybrid:
	default:
		return fmt.Errorf("invalid monitoring mode: %s", c.Monitor.MonitoringMode)
	}
	switch c.Shutdown.TestMode {
	case TestModeProduction, TestModeDryRun, TestModeMock:
	default:
		return fmt.Errorf("invalid shutdown test mode: %s", c.Shutdown.TestMode)
	}
	if c.Shutdown.ShutdownWaitMinutes < 0 {
		return fmt.Errorf("shutdown.shutdownWaitMinutes must be >= 0")
	}
	if c.Shutdown.ShutdownFinalWaitSeconds < 0 {
		return fmt.Errorf("shutdown.shutdownFinalWaitSeconds must be >= 0")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
