package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the BluOS bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Adapter   AdapterConfig   `yaml:"adapter"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AdapterConfig contains the BluOS adapter settings.
type AdapterConfig struct {
	// Namespace is the adapter instance prefix for every key it owns (e.g. "bluos.0").
	Namespace string `yaml:"namespace"`

	// PollInterval is the status poll period per device.
	PollInterval time.Duration `yaml:"poll_interval"`

	// DevicePort is the BluOS control API port on each player.
	DevicePort int `yaml:"device_port"`

	// RequestTimeout bounds a single HTTP call to a player.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// StopTimeout bounds how long shutdown waits for in-flight work.
	StopTimeout time.Duration `yaml:"stop_timeout"`

	// HealthInterval is how often the health message is republished.
	HealthInterval time.Duration `yaml:"health_interval"`

	// DeleteOrphaned removes control points of devices dropped from the
	// configuration. When false they are kept.
	DeleteOrphaned bool `yaml:"delete_orphaned"`

	// Devices seeds the devices configuration entry on first start only.
	// Once the entry exists it is owned by the state store.
	Devices []DeviceSeed `yaml:"devices"`
}

// DeviceSeed is one player entry in the initial configuration.
type DeviceSeed struct {
	Name string `yaml:"name"`
	IP   string `yaml:"ip"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	TopicRoot string              `yaml:"topic_root"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BLUOS_SECTION_KEY
// For example: BLUOS_DATABASE_PATH, BLUOS_ADAPTER_POLL_INTERVAL
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration, with environment overrides
// applied. Used when no config file is present.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Adapter: AdapterConfig{
			Namespace:      "bluos.0",
			PollInterval:   time.Second,
			DevicePort:     11000,
			RequestTimeout: 5 * time.Second,
			StopTimeout:    5 * time.Second,
			HealthInterval: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/bluos.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "bluos-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicRoot: "bluos",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8095,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Malformed numeric or duration values are left for Validate to report
// against the file value.
func applyEnvOverrides(cfg *Config) {
	// Adapter
	if v := os.Getenv("BLUOS_ADAPTER_NAMESPACE"); v != "" {
		cfg.Adapter.Namespace = v
	}
	if v := os.Getenv("BLUOS_ADAPTER_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Adapter.PollInterval = d
		}
	}
	if v := os.Getenv("BLUOS_ADAPTER_DEVICE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Adapter.DevicePort = p
		}
	}

	// Database
	if v := os.Getenv("BLUOS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BLUOS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BLUOS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BLUOS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("BLUOS_MQTT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MQTT.Enabled = b
		}
	}

	// API
	if v := os.Getenv("BLUOS_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("BLUOS_API_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = p
		}
	}

	// Logging
	if v := os.Getenv("BLUOS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// Adapter validation
	if c.Adapter.Namespace == "" {
		errs = append(errs, "adapter.namespace is required")
	} else if strings.HasSuffix(c.Adapter.Namespace, ".") || strings.HasPrefix(c.Adapter.Namespace, ".") {
		errs = append(errs, "adapter.namespace must not start or end with '.'")
	}
	if c.Adapter.PollInterval < 100*time.Millisecond {
		errs = append(errs, "adapter.poll_interval must be at least 100ms")
	}
	if c.Adapter.DevicePort < 1 || c.Adapter.DevicePort > 65535 {
		errs = append(errs, "adapter.device_port must be between 1 and 65535")
	}
	if c.Adapter.RequestTimeout <= 0 {
		errs = append(errs, "adapter.request_timeout must be positive")
	}
	if c.Adapter.StopTimeout <= 0 {
		errs = append(errs, "adapter.stop_timeout must be positive")
	}
	seen := make(map[string]bool, len(c.Adapter.Devices))
	for i, d := range c.Adapter.Devices {
		if d.Name == "" || d.IP == "" {
			errs = append(errs, fmt.Sprintf("adapter.devices[%d]: name and ip are required", i))
			continue
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Sprintf("adapter.devices[%d]: duplicate name %q", i, d.Name))
		}
		seen[d.Name] = true
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicRoot == "" {
		errs = append(errs, "mqtt.topic_root is required when mqtt is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
