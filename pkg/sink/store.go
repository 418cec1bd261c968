package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/yuwei/yunduanban-runner/pkg/core"
)

// Store saves results and logs as JSON files in a directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

const (
	resultsFile = "results.json"
	logsFile    = "logs.json"
)

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// SaveResults overwrites the results file.
func (s *Store) SaveResults(results []Result) error {
	return s.write(resultsFile, results)
}

// LoadResults reads the results file; a missing file is empty.
func (s *Store) LoadResults() ([]Result, error) {
	var out []Result
	err := s.read(resultsFile, &out)
	return out, err
}

// SaveLogs overwrites the log file.
func (s *Store) SaveLogs(logs []core.LogEntry) error {
	return s.write(logsFile, logs)
}

// LoadLogs reads the log file; a missing file is empty.
func (s *Store) LoadLogs() ([]core.LogEntry, error) {
	var out []core.LogEntry
	err := s.read(logsFile, &out)
	return out, err
}

func (s *Store) write(name string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) read(name string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}
