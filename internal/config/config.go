// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Telemetry source kinds.
const (
	SourceReplay    = "replay"
	SourceSynthetic = "synthetic"
	SourceSerial    = "serial"
)

// Persistence backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds all application configuration values.
type Config struct {
	// Telemetry source
	SourceKind       string
	SourcePath       string
	SyntheticFixed   bool
	UpdateIntervalMs int

	// Serial port
	SerialPort     string
	SerialBaudRate int
	SerialDataBits int
	SerialParity   string // "none", "odd", "even"
	SerialStopBits int

	// Web Server
	HTTPAddr      string
	WebRoot       string
	SendTimeoutMs int

	// Persistence
	StoreKind      string
	StoreCapacity  int
	DatabaseURL    string
	RedisURL       string
	RedisKey       string
	StoreTimeoutMs int

	// MQTT mirror (disabled when MQTTBroker is empty)
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string
}

// keys lists every recognised setting; environment variables with these
// names override the file.
var keys = []string{
	"SOURCE_KIND", "SOURCE_PATH", "SYNTHETIC_FIXED", "UPDATE_INTERVAL_MS",
	"SERIAL_PORT", "SERIAL_BAUD_RATE", "SERIAL_DATA_BITS", "SERIAL_PARITY", "SERIAL_STOP_BITS",
	"HTTP_ADDR", "WEB_ROOT", "SEND_TIMEOUT_MS",
	"STORE_KIND", "STORE_CAPACITY", "DATABASE_URL", "REDIS_URL", "REDIS_KEY", "STORE_TIMEOUT_MS",
	"MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_TOPIC",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
}

// Default returns the configuration used when nothing is overridden:
// a synthetic source feeding an in-memory store.
func Default() *Config {
	return &Config{
		SourceKind:       SourceSynthetic,
		UpdateIntervalMs: 1000,
		SerialPort:       "/dev/serial0",
		SerialBaudRate:   9600,
		SerialDataBits:   8,
		SerialParity:     "none",
		SerialStopBits:   1,
		HTTPAddr:         ":8080",
		SendTimeoutMs:    2000,
		StoreKind:        StoreMemory,
		StoreCapacity:    10000,
		RedisKey:         "satellite_tracker:fixes",
		StoreTimeoutMs:   2000,
		MQTTClientID:     "satellite-tracker",
		MQTTTopic:        "tracker/satellites",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load reads the KEY=VALUE configuration file, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		values, err := godotenv.Read(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		names := make([]string, 0, len(values))
		for k := range values {
			names = append(names, k)
		}
		sort.Strings(names)

		for _, key := range names {
			if err := cfg.setValue(key, strings.TrimSpace(values[key])); err != nil {
				return nil, fmt.Errorf("config %s: %w", configPath, err)
			}
		}
	}

	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if err := cfg.setValue(key, strings.TrimSpace(value)); err != nil {
				return nil, fmt.Errorf("environment: %w", err)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Telemetry source
	case "SOURCE_KIND":
		c.SourceKind = strings.ToLower(value)
	case "SOURCE_PATH":
		c.SourcePath = value
	case "SYNTHETIC_FIXED":
		fixed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SYNTHETIC_FIXED %q: %w", value, err)
		}
		c.SyntheticFixed = fixed
	case "UPDATE_INTERVAL_MS":
		return setPositive(&c.UpdateIntervalMs, key, value)

	// Serial port
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		return setPositive(&c.SerialBaudRate, key, value)
	case "SERIAL_DATA_BITS":
		bits, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_DATA_BITS %q: %w", value, err)
		}
		if bits < 5 || bits > 8 {
			return fmt.Errorf("SERIAL_DATA_BITS must be 5-8, got %d", bits)
		}
		c.SerialDataBits = bits
	case "SERIAL_PARITY":
		parity := strings.ToLower(value)
		if parity != "none" && parity != "odd" && parity != "even" {
			return fmt.Errorf("SERIAL_PARITY must be none, odd or even, got %q", value)
		}
		c.SerialParity = parity
	case "SERIAL_STOP_BITS":
		bits, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_STOP_BITS %q: %w", value, err)
		}
		if bits != 1 && bits != 2 {
			return fmt.Errorf("SERIAL_STOP_BITS must be 1 or 2, got %d", bits)
		}
		c.SerialStopBits = bits

	// Web Server
	case "HTTP_ADDR":
		c.HTTPAddr = value
	case "WEB_ROOT":
		c.WebRoot = value
	case "SEND_TIMEOUT_MS":
		return setPositive(&c.SendTimeoutMs, key, value)

	// Persistence
	case "STORE_KIND":
		c.StoreKind = strings.ToLower(value)
	case "STORE_CAPACITY":
		return setPositive(&c.StoreCapacity, key, value)
	case "DATABASE_URL":
		c.DatabaseURL = value
	case "REDIS_URL":
		c.RedisURL = value
	case "REDIS_KEY":
		c.RedisKey = value
	case "STORE_TIMEOUT_MS":
		return setPositive(&c.StoreTimeoutMs, key, value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_TOPIC":
		c.MQTTTopic = value

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)
	case "LOG_FORMAT":
		c.LogFormat = strings.ToLower(value)
	case "LOG_FILE":
		c.LogFile = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func setPositive(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", key, n)
	}
	*dst = n
	return nil
}

// validate checks that the settings required by the chosen source and
// store are present.
func (c *Config) validate() error {
	switch c.SourceKind {
	case SourceReplay:
		if c.SourcePath == "" {
			return fmt.Errorf("SOURCE_PATH is required for the replay source")
		}
	case SourceSynthetic:
	case SourceSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required for the serial source")
		}
	default:
		return fmt.Errorf("SOURCE_KIND must be replay, synthetic or serial, got %q", c.SourceKind)
	}

	switch c.StoreKind {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("STORE_KIND must be memory, postgres or redis, got %q", c.StoreKind)
	}

	if c.MQTTBroker != "" && c.MQTTTopic == "" {
		return fmt.Errorf("MQTT_TOPIC is required when MQTT_BROKER is set")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	return nil
}

// UpdateInterval is the delay between lines for interval-driven sources.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMs) * time.Millisecond
}

// SendTimeout bounds a single subscriber send.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMs) * time.Millisecond
}

// StoreTimeout bounds a single persistence call.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMs) * time.Millisecond
}
