package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Tuya BLE bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Tuya      TuyaConfig      `yaml:"tuya"`
}

// SiteConfig identifies the installation this bridge runs in.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is how long entity state history is kept.
	// Zero keeps history forever.
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
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
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
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

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Output is "stdout", "stderr" or "file". File output appends to File.Path.
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path string `yaml:"path"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains settings for bearer-token validation on the API.
// An empty secret disables authentication.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// TuyaConfig contains the Tuya BLE bridge settings.
type TuyaConfig struct {
	// TopicPrefix is the root of every MQTT topic owned by the bridge.
	TopicPrefix string `yaml:"topic_prefix"`

	// DisconnectDelay is how long a device may stay silent after a radio
	// dropout before its entities are marked unavailable.
	DisconnectDelay time.Duration `yaml:"disconnect_delay"`

	// HealthInterval is the period of the bridge health publication.
	HealthInterval time.Duration `yaml:"health_interval"`

	// WriteQueueSize bounds the pending datapoint writes per device.
	WriteQueueSize int `yaml:"write_queue_size"`

	Scanner ScannerConfig  `yaml:"scanner"`
	Gateway GatewayConfig  `yaml:"gateway"`
	Devices []DeviceConfig `yaml:"devices"`
}

// GatewayConfig runs a BLE gateway daemon on this host as a child process.
// Leave managed off when the gateway runs elsewhere on the network.
type GatewayConfig struct {
	Managed            bool          `yaml:"managed"`
	Binary             string        `yaml:"binary"`
	Args               []string      `yaml:"args"`
	Env                []string      `yaml:"env"`
	RestartOnFailure   bool          `yaml:"restart_on_failure"`
	RestartDelay       time.Duration `yaml:"restart_delay"`
	MaxRestartDelay    time.Duration `yaml:"max_restart_delay"`
	MaxRestartAttempts int           `yaml:"max_restart_attempts"`
	GracefulTimeout    time.Duration `yaml:"graceful_timeout"`
}

// ScannerConfig controls the passive BLE advertisement scanner.
type ScannerConfig struct {
	Enabled bool `yaml:"enabled"`
	// Window is how long each scan pass listens for adverts.
	Window time.Duration `yaml:"window"`
	// Interval is the pause between scan passes.
	Interval time.Duration `yaml:"interval"`
}

// DeviceConfig describes one paired Tuya BLE device and its credentials.
type DeviceConfig struct {
	Address      string `yaml:"address"`
	UUID         string `yaml:"uuid"`
	LocalKey     string `yaml:"local_key"`
	DeviceID     string `yaml:"device_id"`
	Category     string `yaml:"category"`
	ProductID    string `yaml:"product_id"`
	DeviceName   string `yaml:"device_name"`
	ProductModel string `yaml:"product_model"`
	ProductName  string `yaml:"product_name"`
}

// String renders the device without its secrets.
func (d DeviceConfig) String() string {
	return fmt.Sprintf("address: %s, device_id: %s, category: %s, product_id: %s",
		d.Address, d.DeviceID, d.Category, d.ProductID)
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TUYABLE_SECTION_KEY
// For example: TUYABLE_DATABASE_PATH, TUYABLE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Tuya BLE",
		},
		Database: DatabaseConfig{
			Path:             "./data/tuyable.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 30 * 24 * time.Hour,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "tuyable-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Tuya: TuyaConfig{
			TopicPrefix:     "tuyable",
			DisconnectDelay: 10 * time.Minute,
			HealthInterval:  30 * time.Second,
			WriteQueueSize:  32,
			Scanner: ScannerConfig{
				Window:   10 * time.Second,
				Interval: 5 * time.Minute,
			},
			Gateway: GatewayConfig{
				RestartOnFailure: true,
				RestartDelay:     5 * time.Second,
				MaxRestartDelay:  5 * time.Minute,
				GracefulTimeout:  10 * time.Second,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TUYABLE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("TUYABLE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("TUYABLE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("TUYABLE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("TUYABLE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("TUYABLE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("TUYABLE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("TUYABLE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	if v := os.Getenv("TUYABLE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported together so an operator can fix
// the file in one pass.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Database.HistoryRetention < 0 {
		errs = append(errs, "database.history_retention must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	errs = append(errs, c.Tuya.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (t *TuyaConfig) validate() []string {
	var errs []string

	if t.TopicPrefix == "" || strings.ContainsAny(t.TopicPrefix, "+#") {
		errs = append(errs, "tuya.topic_prefix must be non-empty and contain no MQTT wildcards")
	}
	if t.DisconnectDelay < 0 {
		errs = append(errs, "tuya.disconnect_delay must not be negative")
	}
	if t.HealthInterval <= 0 {
		errs = append(errs, "tuya.health_interval must be positive")
	}
	if t.WriteQueueSize < 1 {
		errs = append(errs, "tuya.write_queue_size must be at least 1")
	}
	if t.Scanner.Enabled && t.Scanner.Window <= 0 {
		errs = append(errs, "tuya.scanner.window must be positive when the scanner is enabled")
	}
	if t.Gateway.Managed && t.Gateway.Binary == "" {
		errs = append(errs, "tuya.gateway.binary is required when the gateway is managed")
	}
	if t.Gateway.MaxRestartAttempts < 0 {
		errs = append(errs, "tuya.gateway.max_restart_attempts must not be negative")
	}

	seen := make(map[string]bool, len(t.Devices))
	for i, d := range t.Devices {
		prefix := fmt.Sprintf("tuya.devices[%d]", i)
		if d.Address == "" {
			errs = append(errs, prefix+".address is required")
		}
		// Same completeness rule as tuya.NewCredentials.
		if d.UUID == "" || d.LocalKey == "" || d.DeviceID == "" || d.Category == "" || d.ProductID == "" {
			errs = append(errs, prefix+": uuid, local_key, device_id, category and product_id are required")
		}
		if d.DeviceID != "" {
			if seen[d.DeviceID] {
				errs = append(errs, prefix+": duplicate device_id "+d.DeviceID)
			}
			seen[d.DeviceID] = true
		}
	}

	return errs
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
