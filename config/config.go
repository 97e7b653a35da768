// Package config provides process configuration for the snapshot viewer.
//
// Configuration is loaded in three layers: built-in defaults, an optional JSON
// config file, and environment variable overrides. The environment variables
// match the original deployment surface (MQTT_BROKER_HOST, MQTT_TOPIC,
// HTTP_PORT, ...), so the binary drops into existing setups unchanged.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/errors"
)

// Viewer modes. Auto derives gallery mode from the topic pattern shape: a
// four-segment pattern whose middle segments are both "+" watches many
// camera/object streams, anything else watches a single slot.
const (
	ModeAuto    = "auto"
	ModeSingle  = "single"
	ModeGallery = "gallery"
)

// MQTTConfig holds message-bus connection settings.
type MQTTConfig struct {
	BrokerHost string `json:"broker_host"`
	BrokerPort int    `json:"broker_port"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	ClientID   string `json:"client_id,omitempty"`
	Topic      string `json:"topic"`

	// TLS/certificate-based authentication (optional)
	CACert     string `json:"ca_cert,omitempty"`
	ClientCert string `json:"client_cert,omitempty"`
	ClientKey  string `json:"client_key,omitempty"`

	ConnectTimeout time.Duration `json:"connect_timeout,omitempty"`
}

// BrokerAddr returns host:port for logging and status output.
func (m MQTTConfig) BrokerAddr() string {
	return fmt.Sprintf("%s:%d", m.BrokerHost, m.BrokerPort)
}

// TLSEnabled reports whether any TLS material is configured.
func (m MQTTConfig) TLSEnabled() bool {
	return m.CACert != "" || (m.ClientCert != "" && m.ClientKey != "")
}

// HTTPConfig holds the HTTP surface settings.
type HTTPConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns host:port for the HTTP listener.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// ViewerConfig holds presentation and ingestion tuning.
type ViewerConfig struct {
	// Mode selects single-slot or gallery routing; ModeAuto derives it from
	// the topic pattern.
	Mode string `json:"mode"`
	// RefreshMS drives the page JS fallback reload interval.
	RefreshMS int `json:"refresh_ms"`
	// FetchTimeout bounds remote image fetches in gallery mode.
	FetchTimeout time.Duration `json:"fetch_timeout,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "json" or "text"
}

// Config represents the complete application configuration.
type Config struct {
	MQTT   MQTTConfig   `json:"mqtt"`
	HTTP   HTTPConfig   `json:"http"`
	Viewer ViewerConfig `json:"viewer"`
	Log    LogConfig    `json:"log"`
}

// Default returns the built-in configuration, matching the defaults of the
// original deployment.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			BrokerHost:     "localhost",
			BrokerPort:     1883,
			Topic:          "frigate/hofcam1/person/snapshot",
			ConnectTimeout: 5 * time.Second,
		},
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Viewer: ViewerConfig{
			Mode:         ModeAuto,
			RefreshMS:    2000,
			FetchTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the effective configuration: defaults, then the optional JSON
// file at path, then environment overrides. An empty path skips the file
// layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "config", "Load", "config file read")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapFatal(err, "config", "Load", "config file parse")
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration.
func (c *Config) applyEnv() {
	setString(&c.MQTT.BrokerHost, "MQTT_BROKER_HOST")
	setInt(&c.MQTT.BrokerPort, "MQTT_BROKER_PORT")
	setString(&c.MQTT.Username, "MQTT_USERNAME")
	setString(&c.MQTT.Password, "MQTT_PASSWORD")
	setString(&c.MQTT.ClientID, "MQTT_CLIENT_ID")
	setString(&c.MQTT.Topic, "MQTT_TOPIC")
	setString(&c.MQTT.CACert, "MQTT_CA_CERT")
	setString(&c.MQTT.ClientCert, "MQTT_CLIENT_CERT")
	setString(&c.MQTT.ClientKey, "MQTT_CLIENT_KEY")

	setString(&c.HTTP.Host, "HTTP_HOST")
	setInt(&c.HTTP.Port, "HTTP_PORT")

	setString(&c.Viewer.Mode, "VIEWER_MODE")
	setInt(&c.Viewer.RefreshMS, "IMAGE_REFRESH_MS")
	if ms, ok := lookupInt("FETCH_TIMEOUT_MS"); ok {
		c.Viewer.FetchTimeout = time.Duration(ms) * time.Millisecond
	}

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if c.MQTT.BrokerHost == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "config", "Validate", "MQTT broker host")
	}
	if c.MQTT.BrokerPort <= 0 || c.MQTT.BrokerPort > 65535 {
		return errors.WrapFatal(
			fmt.Errorf("broker port %d out of range: %w", c.MQTT.BrokerPort, errors.ErrInvalidConfig),
			"config", "Validate", "MQTT broker port")
	}
	if c.MQTT.Topic == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "config", "Validate", "MQTT topic")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.WrapFatal(
			fmt.Errorf("http port %d out of range: %w", c.HTTP.Port, errors.ErrInvalidConfig),
			"config", "Validate", "HTTP port")
	}
	if c.MQTT.ClientCert != "" && c.MQTT.ClientKey == "" ||
		c.MQTT.ClientCert == "" && c.MQTT.ClientKey != "" {
		return errors.WrapFatal(
			fmt.Errorf("client cert and key must be configured together: %w", errors.ErrInvalidConfig),
			"config", "Validate", "MQTT TLS material")
	}

	switch c.Viewer.Mode {
	case ModeAuto, ModeSingle, ModeGallery:
	default:
		return errors.WrapFatal(
			fmt.Errorf("unknown viewer mode %q: %w", c.Viewer.Mode, errors.ErrInvalidConfig),
			"config", "Validate", "viewer mode")
	}

	if c.Viewer.RefreshMS <= 0 {
		return errors.WrapFatal(
			fmt.Errorf("refresh interval must be positive: %w", errors.ErrInvalidConfig),
			"config", "Validate", "refresh interval")
	}

	return nil
}

// GalleryMode resolves the effective routing mode from Mode and the topic
// pattern shape.
func (c *Config) GalleryMode() bool {
	switch c.Viewer.Mode {
	case ModeSingle:
		return false
	case ModeGallery:
		return true
	}

	parts := strings.Split(c.MQTT.Topic, "/")
	return len(parts) == 4 && parts[1] == "+" && parts[2] == "+"
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookupInt(key); ok {
		*dst = v
	}
}

func lookupInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
