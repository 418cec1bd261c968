// Package config handles configuration for yunduanban-runner.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yuwei/yunduanban-runner/pkg/core"
)

// Environment variables that override config.yaml.
const (
	EnvDevice          = "YDB_DEVICE"
	EnvSourcePackage   = "YDB_SOURCE_PACKAGE"
	EnvMaxCycles       = "YDB_MAX_CYCLES"
	EnvOCRURL          = "YDB_OCR_URL"
	EnvOCRTimeout      = "YDB_OCR_TIMEOUT"
	EnvDispatchTimeout = "YDB_DISPATCH_TIMEOUT"
	EnvListen          = "YDB_LISTEN"
	EnvSchedule        = "YDB_SCHEDULE"
	EnvLayout          = "YDB_LAYOUT"
	EnvOperators       = "YDB_OPERATORS"
	EnvStateDir        = "YDB_STATE_DIR"
)

// OCRConfig points at the text-recognition service.
type OCRConfig struct {
	URL           string        `yaml:"url"`
	Timeout       time.Duration `yaml:"timeout"`
	MinConfidence float64       `yaml:"minConfidence"`
}

// SenseConfig bounds the work-item read retry.
type SenseConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Config represents the runner configuration (config.yaml).
type Config struct {
	// Device settings
	Device string `yaml:"device"` // ADB serial, empty picks the only device

	// Target apps
	SourcePackage   string `yaml:"sourcePackage"`
	CreateControlID string `yaml:"createControlId"`

	// Execution settings
	MaxCycles       int           `yaml:"maxCycles"`
	DispatchTimeout time.Duration `yaml:"dispatchTimeout"`
	OCR             OCRConfig     `yaml:"ocr"`
	Sense           SenseConfig   `yaml:"sense"`
	Layout          string        `yaml:"layout"` // step-table override file

	// Host surface
	Listen   string `yaml:"listen"`
	Schedule string `yaml:"schedule"` // cron spec, empty disables

	Operators []string `yaml:"operators"`
	StateDir  string   `yaml:"stateDir"`

	// Failure capture for per-run reports
	Artifacts core.ArtifactConfig `yaml:"artifacts"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		SourcePackage:   "com.tencent.weworklocal",
		CreateControlID: "btnKd",
		MaxCycles:       150,
		DispatchTimeout: 5 * time.Second,
		OCR: OCRConfig{
			URL:     "http://127.0.0.1:8866/ocr",
			Timeout: 10 * time.Second,
		},
		Sense: SenseConfig{
			Attempts: 3,
			Delay:    500 * time.Millisecond,
		},
		Listen:    "127.0.0.1:8765",
		Artifacts: core.DefaultArtifactConfig(),
	}
}

// Load loads configuration from a file on top of the defaults. It does
// not apply environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Layout != "" && !filepath.IsAbs(cfg.Layout) {
		cfg.Layout = filepath.Join(filepath.Dir(path), cfg.Layout)
	}
	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"config.yaml", "config.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, return defaults
	return Default(), nil
}

// Resolve builds the effective configuration: .env in the home directory,
// then the config file (explicit path or the home directory), then YDB_*
// environment overrides.
func Resolve(path string) (*Config, error) {
	home := GetHome()
	if err := godotenv.Load(filepath.Join(home, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var (
		cfg *Config
		err error
	)
	if path != "" {
		cfg, err = Load(path)
	} else {
		cfg, err = LoadFromDir(home)
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	if cfg.StateDir == "" {
		cfg.StateDir = GetStateDir()
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from YDB_* variables.
func (c *Config) ApplyEnv() {
	c.Device = getEnv(EnvDevice, c.Device)
	c.SourcePackage = getEnv(EnvSourcePackage, c.SourcePackage)
	c.MaxCycles = getEnvInt(EnvMaxCycles, c.MaxCycles)
	c.OCR.URL = getEnv(EnvOCRURL, c.OCR.URL)
	c.OCR.Timeout = getEnvDuration(EnvOCRTimeout, c.OCR.Timeout)
	c.DispatchTimeout = getEnvDuration(EnvDispatchTimeout, c.DispatchTimeout)
	c.Listen = getEnv(EnvListen, c.Listen)
	c.Schedule = getEnv(EnvSchedule, c.Schedule)
	c.Layout = getEnv(EnvLayout, c.Layout)
	c.Operators = getEnvList(EnvOperators, c.Operators)
	c.StateDir = getEnv(EnvStateDir, c.StateDir)
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SourcePackage) == "" {
		return fmt.Errorf("sourcePackage is required")
	}
	if c.MaxCycles <= 0 {
		return fmt.Errorf("maxCycles must be positive, got %d", c.MaxCycles)
	}
	if c.Sense.Attempts <= 0 {
		return fmt.Errorf("sense.attempts must be positive, got %d", c.Sense.Attempts)
	}
	if c.OCR.URL == "" {
		return fmt.Errorf("ocr.url is required")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
