package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// OperatorsFile is the operator list inside the state directory.
const OperatorsFile = "operators.json"

type operatorsState struct {
	Names    []string `json:"names"`
	Selected string   `json:"selected,omitempty"`
}

// Operators is the persisted list of officer names and the last selection.
type Operators struct {
	path string

	mu    sync.Mutex
	state operatorsState
}

// OpenOperators loads dir/operators.json. When the file does not exist the
// list starts from seed.
func OpenOperators(dir string, seed []string) (*Operators, error) {
	o := &Operators{path: filepath.Join(dir, OperatorsFile)}

	data, err := os.ReadFile(o.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		for _, name := range seed {
			o.add(name)
		}
		return o, nil
	case err != nil:
		return nil, err
	}
	if err := json.Unmarshal(data, &o.state); err != nil {
		return nil, fmt.Errorf("parse %s: %w", o.path, err)
	}
	return o, nil
}

// List returns the names in insertion order.
func (o *Operators) List() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.state.Names...)
}

// Selected returns the last selected name, or the first name.
func (o *Operators) Selected() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Selected != "" {
		return o.state.Selected
	}
	if len(o.state.Names) > 0 {
		return o.state.Names[0]
	}
	return ""
}

func (o *Operators) add(name string) bool {
	for _, n := range o.state.Names {
		if n == name {
			return false
		}
	}
	o.state.Names = append(o.state.Names, name)
	return true
}

// Add appends a name. Blank and duplicate names are ignored.
func (o *Operators) Add(name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.add(name) {
		return false, nil
	}
	return true, o.saveLocked()
}

// Remove deletes a name, clearing the selection if it pointed there.
func (o *Operators) Remove(name string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, n := range o.state.Names {
		if n == name {
			o.state.Names = append(o.state.Names[:i], o.state.Names[i+1:]...)
			if o.state.Selected == name {
				o.state.Selected = ""
			}
			return true, o.saveLocked()
		}
	}
	return false, nil
}

// Select remembers name, adding it if new.
func (o *Operators) Select(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("operator name is empty")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.add(name)
	o.state.Selected = name
	return o.saveLocked()
}

func (o *Operators) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(o.state, "", "  ")
	if err != nil {
		return err
	}
	tmp := o.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, o.path)
}
