// Package config loads the settings of the vara command.
//
// Values are layered: built-in defaults, then a YAML file, then VARA_*
// environment variables. Command-line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taylorsreid/govara/varaprotocol"
)

// FileName is the config file looked up in the home directory.
const FileName = ".vara.yaml"

// Config holds all configuration for the vara command.
type Config struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Variant        string        `yaml:"variant"`
	Callsigns      []string      `yaml:"callsigns"`
	SettleInterval time.Duration `yaml:"settle_interval"`

	// MonitorAddr enables the HTTP monitor when set, e.g. "127.0.0.1:8080".
	MonitorAddr string `yaml:"monitor_addr"`

	// NATSURL enables the NATS bridge when set.
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:           varaprotocol.DefaultHost,
		Port:           varaprotocol.DefaultPort,
		Variant:        "HF",
		SettleInterval: varaprotocol.DefaultSettleInterval,
		NATSSubject:    "vara",
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}

// DefaultPath returns ~/.vara.yaml, or "" if the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, FileName)
}

// Load builds the configuration from defaults, the file at path and the
// environment. An empty path means DefaultPath, which may be missing; an
// explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Host = getEnv("VARA_HOST", c.Host)
	c.Port = getEnvAsInt("VARA_PORT", c.Port)
	c.Variant = getEnv("VARA_VARIANT", c.Variant)
	if calls := getEnv("VARA_MYCALL", ""); calls != "" {
		c.Callsigns = SplitCallsigns(calls)
	}
	c.SettleInterval = getEnvAsDuration("VARA_SETTLE_INTERVAL", c.SettleInterval)
	c.MonitorAddr = getEnv("VARA_MONITOR_ADDR", c.MonitorAddr)
	c.NATSURL = getEnv("VARA_NATS_URL", c.NATSURL)
	c.NATSSubject = getEnv("VARA_NATS_SUBJECT", c.NATSSubject)
	c.LogLevel = getEnv("VARA_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("VARA_LOG_FORMAT", c.LogFormat)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host must not be empty")
	}
	// The data channel needs port+1.
	if c.Port < 1 || c.Port > 65534 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := c.ParsedVariant(); err != nil {
		return err
	}
	if len(c.Callsigns) > varaprotocol.MaxCallsigns {
		return fmt.Errorf("%d callsigns configured: %w", len(c.Callsigns), varaprotocol.ErrTooManyCallsigns)
	}
	if c.SettleInterval < 0 {
		return errors.New("settle_interval must not be negative")
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		return errors.New("nats_subject is required with nats_url")
	}
	return nil
}

// ParsedVariant returns the configured modem variant.
func (c Config) ParsedVariant() (varaprotocol.Variant, error) {
	return varaprotocol.ParseVariant(c.Variant)
}

// SplitCallsigns splits a comma or space separated list.
func SplitCallsigns(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
