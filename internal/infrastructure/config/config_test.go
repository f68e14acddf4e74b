package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
adapter:
  namespace: "bluos.1"
  poll_interval: 2s
  devices:
    - name: "Den"
      ip: "10.0.0.5"
    - name: "Kitchen"
      ip: "10.0.0.6"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
  topic_root: "home/bluos"
api:
  host: "0.0.0.0"
  port: 8080
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Adapter.Namespace != "bluos.1" {
		t.Errorf("Adapter.Namespace = %q, want %q", cfg.Adapter.Namespace, "bluos.1")
	}
	if cfg.Adapter.PollInterval != 2*time.Second {
		t.Errorf("Adapter.PollInterval = %v, want 2s", cfg.Adapter.PollInterval)
	}
	if len(cfg.Adapter.Devices) != 2 || cfg.Adapter.Devices[1].IP != "10.0.0.6" {
		t.Errorf("Adapter.Devices = %+v", cfg.Adapter.Devices)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.TopicRoot != "home/bluos" {
		t.Errorf("MQTT.TopicRoot = %q, want %q", cfg.MQTT.TopicRoot, "home/bluos")
	}

	// Defaults survive a partial file.
	if cfg.Adapter.DevicePort != 11000 {
		t.Errorf("Adapter.DevicePort = %d, want 11000", cfg.Adapter.DevicePort)
	}
	if cfg.Adapter.RequestTimeout != 5*time.Second {
		t.Errorf("Adapter.RequestTimeout = %v, want 5s", cfg.Adapter.RequestTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
adapter:
  namespace: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for empty adapter.namespace, got nil")
	}
	if !strings.Contains(err.Error(), "adapter.namespace") {
		t.Errorf("error = %v, want mention of adapter.namespace", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "namespace with trailing dot",
			mutate:  func(c *Config) { c.Adapter.Namespace = "bluos.0." },
			wantErr: "adapter.namespace",
		},
		{
			name:    "poll interval too small",
			mutate:  func(c *Config) { c.Adapter.PollInterval = 10 * time.Millisecond },
			wantErr: "adapter.poll_interval",
		},
		{
			name:    "device port out of range",
			mutate:  func(c *Config) { c.Adapter.DevicePort = 70000 },
			wantErr: "adapter.device_port",
		},
		{
			name:    "zero request timeout",
			mutate:  func(c *Config) { c.Adapter.RequestTimeout = 0 },
			wantErr: "adapter.request_timeout",
		},
		{
			name: "seed device without ip",
			mutate: func(c *Config) {
				c.Adapter.Devices = []DeviceSeed{{Name: "Den"}}
			},
			wantErr: "adapter.devices[0]",
		},
		{
			name: "duplicate seed device",
			mutate: func(c *Config) {
				c.Adapter.Devices = []DeviceSeed{{Name: "Den", IP: "a"}, {Name: "Den", IP: "b"}}
			},
			wantErr: "duplicate name",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name: "mqtt enabled without topic root",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.TopicRoot = ""
			},
			wantErr: "mqtt.topic_root",
		},
		{
			name:    "api port ignored when disabled",
			mutate:  func(c *Config) { c.API.Enabled = false; c.API.Port = 0 },
			wantErr: "",
		},
		{
			name:    "invalid api port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("BLUOS_ADAPTER_NAMESPACE", "bluos.7")
	t.Setenv("BLUOS_ADAPTER_POLL_INTERVAL", "250ms")
	t.Setenv("BLUOS_ADAPTER_DEVICE_PORT", "12000")
	t.Setenv("BLUOS_DATABASE_PATH", "/custom/path.db")
	t.Setenv("BLUOS_MQTT_HOST", "mqtt.example.com")
	t.Setenv("BLUOS_MQTT_ENABLED", "true")
	t.Setenv("BLUOS_API_PORT", "9000")
	t.Setenv("BLUOS_LOGGING_LEVEL", "debug")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Adapter.Namespace != "bluos.7" {
		t.Errorf("Adapter.Namespace = %q, want %q", cfg.Adapter.Namespace, "bluos.7")
	}
	if cfg.Adapter.PollInterval != 250*time.Millisecond {
		t.Errorf("Adapter.PollInterval = %v, want 250ms", cfg.Adapter.PollInterval)
	}
	if cfg.Adapter.DevicePort != 12000 {
		t.Errorf("Adapter.DevicePort = %d, want 12000", cfg.Adapter.DevicePort)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestApplyEnvOverrides_MalformedValuesIgnored(t *testing.T) {
	t.Setenv("BLUOS_ADAPTER_POLL_INTERVAL", "soon")
	t.Setenv("BLUOS_ADAPTER_DEVICE_PORT", "eleven")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Adapter.PollInterval != time.Second {
		t.Errorf("Adapter.PollInterval = %v, want default 1s", cfg.Adapter.PollInterval)
	}
	if cfg.Adapter.DevicePort != 11000 {
		t.Errorf("Adapter.DevicePort = %d, want default 11000", cfg.Adapter.DevicePort)
	}
}

func TestTimeoutGetters(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 120},
		},
	}

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 45*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 45s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 120*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 2m0s", got)
	}
}
