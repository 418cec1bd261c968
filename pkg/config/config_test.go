package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
device: emulator-5554
sourcePackage: com.example.im
maxCycles: 20
ocr:
  url: http://ocr.local/recognize
  timeout: 3s
sense:
  attempts: 5
layout: layout.yaml
operators:
  - 张三
  - 李四
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Device != "emulator-5554" {
		t.Errorf("expected device emulator-5554, got %s", cfg.Device)
	}
	if cfg.SourcePackage != "com.example.im" {
		t.Errorf("expected sourcePackage com.example.im, got %s", cfg.SourcePackage)
	}
	if cfg.MaxCycles != 20 {
		t.Errorf("expected maxCycles 20, got %d", cfg.MaxCycles)
	}
	if cfg.OCR.URL != "http://ocr.local/recognize" || cfg.OCR.Timeout != 3*time.Second {
		t.Errorf("unexpected ocr config %+v", cfg.OCR)
	}
	if cfg.Sense.Attempts != 5 {
		t.Errorf("expected sense.attempts 5, got %d", cfg.Sense.Attempts)
	}
	// Unset fields keep defaults
	if cfg.Sense.Delay != 500*time.Millisecond {
		t.Errorf("expected default sense.delay, got %v", cfg.Sense.Delay)
	}
	if cfg.CreateControlID != "btnKd" {
		t.Errorf("expected default createControlId, got %s", cfg.CreateControlID)
	}
	if cfg.Layout != filepath.Join(dir, "layout.yaml") {
		t.Errorf("layout not resolved against config dir: %s", cfg.Layout)
	}
	if !reflect.DeepEqual(cfg.Operators, []string{"张三", "李四"}) {
		t.Errorf("unexpected operators %v", cfg.Operators)
	}
}

func TestLoad_ArtifactsOverrideKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
artifacts:
  captureOnCancel: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Artifacts.CaptureOnCancel {
		t.Error("expected captureOnCancel to be set")
	}
	if !cfg.Artifacts.CaptureOnAbort || !cfg.Artifacts.Screenshot {
		t.Errorf("expected defaults to survive, got %+v", cfg.Artifacts)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("maxCycles: [oops"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromDir(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		wantDev  string
		writeCfg bool
	}{
		{"yaml", "config.yaml", "a", true},
		{"yml", "config.yml", "b", true},
		{"none", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.writeCfg {
				if err := os.WriteFile(filepath.Join(dir, tt.file), []byte("device: "+tt.wantDev), 0644); err != nil {
					t.Fatal(err)
				}
			}
			cfg, err := LoadFromDir(dir)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Device != tt.wantDev {
				t.Errorf("device = %q, want %q", cfg.Device, tt.wantDev)
			}
			if cfg.MaxCycles != 150 {
				t.Errorf("maxCycles = %d, want default 150", cfg.MaxCycles)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvDevice, "R58M")
	t.Setenv(EnvMaxCycles, "42")
	t.Setenv(EnvOCRTimeout, "2s")
	t.Setenv(EnvOperators, "张三, ,李四")
	t.Setenv(EnvListen, "")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Device != "R58M" {
		t.Errorf("device = %q", cfg.Device)
	}
	if cfg.MaxCycles != 42 {
		t.Errorf("maxCycles = %d", cfg.MaxCycles)
	}
	if cfg.OCR.Timeout != 2*time.Second {
		t.Errorf("ocr.timeout = %v", cfg.OCR.Timeout)
	}
	if !reflect.DeepEqual(cfg.Operators, []string{"张三", "李四"}) {
		t.Errorf("operators = %v", cfg.Operators)
	}
	if cfg.Listen != "127.0.0.1:8765" {
		t.Errorf("empty env should keep default listen, got %q", cfg.Listen)
	}
}

func TestApplyEnv_IgnoresGarbage(t *testing.T) {
	t.Setenv(EnvMaxCycles, "many")
	t.Setenv(EnvDispatchTimeout, "soon")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.MaxCycles != 150 || cfg.DispatchTimeout != 5*time.Second {
		t.Errorf("garbage env changed config: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no source package", func(c *Config) { c.SourcePackage = " " }, true},
		{"zero cycles", func(c *Config) { c.MaxCycles = 0 }, true},
		{"zero attempts", func(c *Config) { c.Sense.Attempts = 0 }, true},
		{"no ocr url", func(c *Config) { c.OCR.URL = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolve_DotEnvAndStateDir(t *testing.T) {
	home := t.TempDir()
	ResetHome()
	t.Setenv(EnvHome, home)
	t.Setenv(EnvSourcePackage, "")
	defer ResetHome()

	if err := os.WriteFile(filepath.Join(home, ".env"), []byte("YDB_SOURCE_PACKAGE=com.from.env\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables already set, even to ""
	os.Unsetenv(EnvSourcePackage)

	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SourcePackage != "com.from.env" {
		t.Errorf("sourcePackage = %q, want value from .env", cfg.SourcePackage)
	}
	if cfg.StateDir != filepath.Join(home, "state") {
		t.Errorf("stateDir = %q", cfg.StateDir)
	}
}

func TestResolve_NoDotEnv(t *testing.T) {
	ResetHome()
	t.Setenv(EnvHome, t.TempDir())
	defer ResetHome()

	if _, err := Resolve(""); err != nil {
		t.Fatalf("missing .env should not fail: %v", err)
	}
}
