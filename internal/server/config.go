package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/macduff/obdscan/internal/recorder"
	"github.com/macduff/obdscan/internal/serialport"
)

// Config holds all scan tool configuration.
type Config struct {
	mu sync.RWMutex

	// Serial port (ELM327 interface)
	Serial serialport.Config `yaml:"serial" json:"serial"`

	// Interface type: "elm327" or "sim"
	Interface string `yaml:"interface" json:"interface" validate:"oneof=elm327 sim"`

	// Display preferences
	Display DisplayConfig `yaml:"display" json:"display"`

	// Polling behavior
	Polling PollingConfig `yaml:"polling" json:"polling"`

	// CSV recording
	Recording recorder.Config `yaml:"recording" json:"recording"`

	// Server
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	path string // file path for save/load
}

type DisplayConfig struct {
	// "metric" or "imperial"
	Units string `yaml:"units" json:"units" validate:"oneof=metric imperial"`
}

type PollingConfig struct {
	// Per-request timeout in milliseconds.
	RequestTimeoutMs int `yaml:"request_timeout_ms" json:"requestTimeoutMs" validate:"gt=0"`
	// Starting sensor page.
	StartPage int `yaml:"start_page" json:"startPage" validate:"gte=0"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr" validate:"required"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level" validate:"oneof=trace debug info warn error"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Serial: serialport.Config{
			Path: "/dev/ttyUSB0",
			Baud: 9600,
		},
		Interface: "elm327",
		Display: DisplayConfig{
			Units: "metric",
		},
		Polling: PollingConfig{
			RequestTimeoutMs: 5000,
			StartPage:        0,
		},
		Recording: recorder.Config{
			Enabled:    false,
			Path:       "/var/log/obdscan",
			IntervalMs: 1000,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks structural constraints on the config.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		// Real env takes precedence
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: OBD_PORT, OBD_BAUD, OBD_INTERFACE, OBD_UNITS, LISTEN_ADDR,
// LOG_LEVEL, REC_ENABLED, REC_PATH.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OBD_PORT"); v != "" {
		c.Serial.Path = v
	}
	if v := os.Getenv("OBD_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Serial.Baud = n
		}
	}
	if v := os.Getenv("OBD_INTERFACE"); v != "" {
		c.Interface = v
	}
	if v := os.Getenv("OBD_UNITS"); v != "" {
		c.Display.Units = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("REC_ENABLED"); v != "" {
		c.Recording.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("REC_PATH"); v != "" {
		c.Recording.Path = v
	}
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		c.path = "/etc/obdscan/config.yaml"
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved.
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentBytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	if err := json.Unmarshal(merged, c); err != nil {
		return err
	}
	return validator.New().Struct(c)
}

// deepMerge recursively merges src into dst. For nested maps, values are
// merged rather than replaced. For all other types, src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}
