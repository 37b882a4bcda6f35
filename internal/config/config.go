package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPath                 = "/etc/mgbridge/config.yaml"
	DefaultHTTPAddr             = "0.0.0.0:9270"
	DefaultDomoticzURL          = "http://127.0.0.1:8080"
	DefaultRegion               = "eu"
	DefaultIntervalSeconds      = 180
	DefaultNightIntervalSeconds = 3600
	DefaultNightStartHour       = 22
	DefaultNightEndHour         = 7
	DefaultHomeRadiusMeters     = 25
	DefaultTokenPath            = "/var/lib/mgbridge/token.json"
	DefaultHistoryPath          = "/var/lib/mgbridge/history.db"
	DefaultGeocodeUserAgent     = "mgbridge/1.0 (+https://github.com/SAIC-iSmart-API)"
)

// Config is the root configuration, loaded from a single YAML file.
type Config struct {
	SAIC     SAICConfig     `yaml:"saic"`
	Polling  PollingConfig  `yaml:"polling"`
	Domoticz DomoticzConfig `yaml:"domoticz"`
	HTTP     HTTPConfig     `yaml:"http"`
	Token    TokenConfig    `yaml:"token_store"`
	History  HistoryConfig  `yaml:"history"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Geocode  GeocodeConfig  `yaml:"geocode"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SAICConfig holds the iSmart account and gateway selection.
type SAICConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Region   string `yaml:"region"`
	BaseURL  string `yaml:"base_url"`
}

// PollingConfig controls the poll cadence and the night cooldown window.
type PollingConfig struct {
	IntervalSeconds      int `yaml:"interval_seconds"`
	NightIntervalSeconds int `yaml:"night_interval_seconds"`
	NightStartHour       *int `yaml:"night_start_hour"`
	NightEndHour         *int `yaml:"night_end_hour"`
	HomeRadiusMeters     int  `yaml:"home_radius_meters"`
}

// NightStart returns the configured window start hour. Pointer fields
// keep an explicit 0 (midnight) distinguishable from an absent key.
func (p PollingConfig) NightStart() int {
	if p.NightStartHour == nil {
		return DefaultNightStartHour
	}
	return *p.NightStartHour
}

func (p PollingConfig) NightEnd() int {
	if p.NightEndHour == nil {
		return DefaultNightEndHour
	}
	return *p.NightEndHour
}

func (p PollingConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

func (p PollingConfig) NightInterval() time.Duration {
	return time.Duration(p.NightIntervalSeconds) * time.Second
}

// DomoticzConfig points at the local Domoticz JSON API.
type DomoticzConfig struct {
	BaseURL       string `yaml:"base_url"`
	HardwareIdx   int    `yaml:"hardware_idx"`
	Notifications *bool  `yaml:"notifications"`
}

func (d DomoticzConfig) NotificationsEnabled() bool {
	return d.Notifications == nil || *d.Notifications
}

// HTTPConfig is the bridge's own listen surface (health, metrics, commands).
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// TokenConfig controls encrypted token persistence.
type TokenConfig struct {
	Path string       `yaml:"path"`
	S3   S3BlobConfig `yaml:"s3"`
}

// S3BlobConfig mirrors the token envelope to S3-compatible storage.
type S3BlobConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	AccessKeyFile string `yaml:"access_key_file"`
	SecretKeyFile string `yaml:"secret_key_file"`
	Region        string `yaml:"region"`
}

// HistoryConfig controls the local SQLite telemetry history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MQTTConfig controls the optional telemetry publisher.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TLS         bool   `yaml:"tls"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// GeocodeConfig controls reverse geocoding of the vehicle position.
type GeocodeConfig struct {
	Enabled   *bool  `yaml:"enabled"`
	UserAgent string `yaml:"user_agent"`
}

func (g GeocodeConfig) On() bool {
	return g.Enabled == nil || *g.Enabled
}

// LoggingConfig selects level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.SAIC.Region == "" {
		cfg.SAIC.Region = DefaultRegion
	}
	if cfg.Polling.IntervalSeconds == 0 {
		cfg.Polling.IntervalSeconds = DefaultIntervalSeconds
	}
	if cfg.Polling.NightIntervalSeconds == 0 {
		cfg.Polling.NightIntervalSeconds = DefaultNightIntervalSeconds
	}
	if cfg.Polling.HomeRadiusMeters == 0 {
		cfg.Polling.HomeRadiusMeters = DefaultHomeRadiusMeters
	}
	if cfg.Domoticz.BaseURL == "" {
		cfg.Domoticz.BaseURL = DefaultDomoticzURL
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}
	if cfg.Token.Path == "" {
		cfg.Token.Path = DefaultTokenPath
	}
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = 1883
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "mgbridge"
	}
	if cfg.Geocode.UserAgent == "" {
		cfg.Geocode.UserAgent = DefaultGeocodeUserAgent
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "normal"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate enforces required invariants beyond YAML typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.SAIC.Username == "" {
		return fmt.Errorf("saic.username is required")
	}
	if cfg.SAIC.Password == "" {
		return fmt.Errorf("saic.password is required")
	}
	if cfg.SAIC.Region != "eu" && cfg.SAIC.Region != "au" {
		return fmt.Errorf("saic.region must be eu or au, got %q", cfg.SAIC.Region)
	}
	if cfg.Polling.IntervalSeconds < 30 {
		return fmt.Errorf("polling.interval_seconds must be at least 30")
	}
	if h := cfg.Polling.NightStart(); h < 0 || h > 23 {
		return fmt.Errorf("polling.night_start_hour must be 0..23")
	}
	if h := cfg.Polling.NightEnd(); h < 0 || h > 23 {
		return fmt.Errorf("polling.night_end_hour must be 0..23")
	}
	if cfg.Polling.HomeRadiusMeters <= 0 {
		return fmt.Errorf("polling.home_radius_meters must be positive")
	}
	if cfg.Domoticz.HardwareIdx <= 0 {
		return fmt.Errorf("domoticz.hardware_idx is required (idx of a Dummy hardware)")
	}
	if cfg.Token.S3.Enabled {
		if cfg.Token.S3.Endpoint == "" {
			return fmt.Errorf("token_store.s3.endpoint is required")
		}
		if cfg.Token.S3.Bucket == "" {
			return fmt.Errorf("token_store.s3.bucket is required")
		}
		if cfg.Token.S3.AccessKeyFile == "" || cfg.Token.S3.SecretKeyFile == "" {
			return fmt.Errorf("token_store.s3 key files are required")
		}
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Host == "" {
		return fmt.Errorf("mqtt.host is required when mqtt is enabled")
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0..2")
	}
	return nil
}
