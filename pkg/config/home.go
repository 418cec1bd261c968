package config

import (
	"os"
	"path/filepath"
	"sync"
)

// EnvHome overrides the home directory.
const EnvHome = "YDB_HOME"

const appDir = "yunduanban-runner"

var (
	homeMu  sync.Mutex
	homeDir string
)

// GetHome returns the directory holding .env, state and logs: $YDB_HOME,
// else <user config dir>/yunduanban-runner, else the working directory.
// The first answer is kept for the life of the process.
func GetHome() string {
	homeMu.Lock()
	defer homeMu.Unlock()
	if homeDir == "" {
		homeDir = resolveHome()
	}
	return homeDir
}

// GetStateDir returns <home>/state, where results, logs and operators live.
func GetStateDir() string {
	return filepath.Join(GetHome(), "state")
}

// GetLogDir returns <home>/logs.
func GetLogDir() string {
	return filepath.Join(GetHome(), "logs")
}

func resolveHome() string {
	if env := os.Getenv(EnvHome); env != "" {
		return env
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDir)
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// ResetHome forgets the cached home directory.
func ResetHome() {
	homeMu.Lock()
	homeDir = ""
	homeMu.Unlock()
}
