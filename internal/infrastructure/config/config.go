package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Lumina Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	Control  ControlConfig  `yaml:"control"`
	Notify   NotifyConfig   `yaml:"notify"`
	Browser  BrowserConfig  `yaml:"browser"`
	Camera   CameraConfig   `yaml:"camera"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// ControlConfig contains TCP control server settings.
type ControlConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// MaxSessions bounds the worker pool handling control sessions.
	// Accepted connections beyond this queue until a worker frees up.
	MaxSessions int `yaml:"max_sessions"`
}

// NotifyConfig contains UDP notification relay settings.
type NotifyConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BrowserConfig contains WebSocket bridge settings.
type BrowserConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CameraConfig contains camera pipeline settings.
type CameraConfig struct {
	Host     string              `yaml:"host"`
	HTTPPort int                 `yaml:"http_port"`
	UDPPort  int                 `yaml:"udp_port"`
	TCPPort  int                 `yaml:"tcp_port"`
	Timeouts CameraTimeoutConfig `yaml:"timeouts"`

	// MaxFrameSize caps a single JPEG frame in bytes. TCP records
	// announcing a larger payload are skipped without killing the feed.
	MaxFrameSize int `yaml:"max_frame_size"`
}

// CameraTimeoutConfig contains HTTP timeout settings for the camera server.
// The write timeout must stay zero: MJPEG streams are held open indefinitely.
type CameraTimeoutConfig struct {
	Read int `yaml:"read"`
	Idle int `yaml:"idle"`
}

// MQTTConfig contains MQTT broker connection settings for the optional
// event fanout. Disabled by default.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings for the optional
// device telemetry writer. Disabled by default.
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
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`

	// TokenTTL is the token lifetime in hours.
	TokenTTL int `yaml:"token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LUMINA_SECTION_KEY
// For example: LUMINA_DATABASE_PATH, LUMINA_CONTROL_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// Default port assignments. Control/notify/browser mirror the classic
// hub layout; the camera pipeline gets its own trio.
const (
	defaultControlPort   = 5000
	defaultNotifyPort    = 5001
	defaultBrowserPort   = 5002
	defaultCameraHTTP    = 8081
	defaultCameraUDP     = 8082
	defaultCameraTCP     = 8083
	defaultMaxSessions   = 10
	defaultMaxFrameSize  = 2_000_000
	defaultTokenTTLHours = 24
)

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Lumina Home",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/lumina.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Control: ControlConfig{
			Host:        "0.0.0.0",
			Port:        defaultControlPort,
			MaxSessions: defaultMaxSessions,
		},
		Notify: NotifyConfig{
			Host: "0.0.0.0",
			Port: defaultNotifyPort,
		},
		Browser: BrowserConfig{
			Host: "0.0.0.0",
			Port: defaultBrowserPort,
		},
		Camera: CameraConfig{
			Host:         "0.0.0.0",
			HTTPPort:     defaultCameraHTTP,
			UDPPort:      defaultCameraUDP,
			TCPPort:      defaultCameraTCP,
			MaxFrameSize: defaultMaxFrameSize,
			Timeouts: CameraTimeoutConfig{
				Read: 30,
				Idle: 120,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lumina-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: defaultTokenTTLHours,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LUMINA_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("LUMINA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Transport ports
	if v := os.Getenv("LUMINA_CONTROL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Control.Port = port
		}
	}
	if v := os.Getenv("LUMINA_NOTIFY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Notify.Port = port
		}
	}
	if v := os.Getenv("LUMINA_BROWSER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Browser.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("LUMINA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LUMINA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUMINA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("LUMINA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("LUMINA_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
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

	ports := map[string]int{
		"control.port":     c.Control.Port,
		"notify.port":      c.Notify.Port,
		"browser.port":     c.Browser.Port,
		"camera.http_port": c.Camera.HTTPPort,
		"camera.udp_port":  c.Camera.UDPPort,
		"camera.tcp_port":  c.Camera.TCPPort,
	}
	for name, port := range ports {
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("%s must be between 1 and 65535", name))
		}
	}

	if c.Control.MaxSessions < 1 {
		errs = append(errs, "control.max_sessions must be at least 1")
	}

	if c.Camera.MaxFrameSize < 1 {
		errs = append(errs, "camera.max_frame_size must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// JWT secret is REQUIRED. Empty or weak secrets would allow attackers
	// to forge tokens and control physical devices.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set LUMINA_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if c.Security.JWT.TokenTTL < 1 {
		errs = append(errs, "security.jwt.token_ttl must be at least 1 hour")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetTokenTTL returns the JWT token lifetime as a Duration.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.TokenTTL) * time.Hour
}

// GetCameraReadTimeout returns the camera HTTP read timeout as a Duration.
func (c *Config) GetCameraReadTimeout() time.Duration {
	return time.Duration(c.Camera.Timeouts.Read) * time.Second
}

// GetCameraIdleTimeout returns the camera HTTP idle timeout as a Duration.
func (c *Config) GetCameraIdleTimeout() time.Duration {
	return time.Duration(c.Camera.Timeouts.Idle) * time.Second
}

// ControlAddr returns the host:port for the TCP control listener.
func (c *Config) ControlAddr() string {
	return fmt.Sprintf("%s:%d", c.Control.Host, c.Control.Port)
}

// NotifyAddr returns the host:port for the UDP notification socket.
func (c *Config) NotifyAddr() string {
	return fmt.Sprintf("%s:%d", c.Notify.Host, c.Notify.Port)
}

// BrowserAddr returns the host:port for the WebSocket bridge listener.
func (c *Config) BrowserAddr() string {
	return fmt.Sprintf("%s:%d", c.Browser.Host, c.Browser.Port)
}
