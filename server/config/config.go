package config

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"Prism/utils"
)

// Baseline is the dynamic context used for capability probing. Probes run a
// real encode test, so this should be a configuration the agent will actually
// be asked to produce.
type Baseline struct {
	Width     int32 `json:"width"`
	Height    int32 `json:"height"`
	KBitrate  int32 `json:"kbitrate"`
	Framerate int32 `json:"framerate"`
	GOP       int32 `json:"gop"`
}

// Config is the agent configuration, loaded from a JSON file with environment
// overrides layered on top.
type Config struct {
	Listen   string   `json:"listen"`
	LogLevel string   `json:"logLevel"`
	Baseline Baseline `json:"baseline"`
	// APIKeyHash is the bcrypt hash of the API key clients must present.
	// Empty disables authentication (loopback deployments).
	APIKeyHash string `json:"apiKeyHash"`
}

const (
	envConfig   = "PRISM_CONFIG"
	envListen   = "PRISM_LISTEN"
	envLogLevel = "PRISM_LOG_LEVEL"
)

func defaults() Config {
	return Config{
		Listen:   ":8720",
		LogLevel: "info",
		Baseline: Baseline{
			Width:     1920,
			Height:    1080,
			KBitrate:  5000,
			Framerate: 30,
			GOP:       60,
		},
	}
}

// Load reads the config file named by PRISM_CONFIG (or config.json beside the
// binary), fills unset fields with defaults and applies env overrides. A
// missing file is not an error; the defaults run fine on a workstation.
func Load() (Config, error) {
	cfg := defaults()
	path := os.Getenv(envConfig)
	if path == "" {
		path = "config.json"
	}
	if raw, err := os.ReadFile(path); err == nil {
		if err := utils.JSON.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if listen := os.Getenv(envListen); listen != "" {
		cfg.Listen = listen
	}
	if level := os.Getenv(envLogLevel); level != "" {
		cfg.LogLevel = level
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	b := c.Baseline
	if b.Width <= 0 || b.Height <= 0 || b.KBitrate <= 0 || b.Framerate <= 0 || b.GOP <= 0 {
		return fmt.Errorf("config: baseline values must be positive: %+v", b)
	}
	if b.Width%2 == 1 || b.Height%2 == 1 {
		return fmt.Errorf("config: baseline dimensions must be even: %dx%d", b.Width, b.Height)
	}
	return nil
}

// CheckKey verifies a presented API key against the configured hash. An empty
// hash accepts everything.
func (c Config) CheckKey(key string) bool {
	if c.APIKeyHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(c.APIKeyHash), []byte(key)) == nil
}

// HashKey produces a storable hash for an API key; used by the -hashkey
// bootstrap flag.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("config: hash key: %w", err)
	}
	return string(hash), nil
}
