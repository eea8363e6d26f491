package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StateFileName names the file that pins the active artifact version.
const StateFileName = "state.json"

// ErrStateNotFound is returned when the artifacts dir has no state.json.
var ErrStateNotFound = errors.New("artifact state not found")

// State tracks the active and previous artifact versions when models are
// deployed side by side as <dir>/<version>/.
type State struct {
	CurrentVersion  string `json:"current_version"`
	PreviousVersion string `json:"previous_version,omitempty"`
}

// LoadState reads <dir>/state.json.
func LoadState(dir string) (State, error) {
	data, err := os.ReadFile(filepath.Join(dir, StateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, ErrStateNotFound
		}
		return State{}, fmt.Errorf("read artifact state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode artifact state: %w", err)
	}
	state.CurrentVersion = strings.TrimSpace(state.CurrentVersion)
	state.PreviousVersion = strings.TrimSpace(state.PreviousVersion)
	return state, nil
}

// ResolveDir returns the versioned directory named by state.json, or dir itself
// when there is no state file. A pinned version that is missing on disk is an error.
func ResolveDir(dir string) (string, error) {
	state, err := LoadState(dir)
	if errors.Is(err, ErrStateNotFound) {
		return dir, nil
	}
	if err != nil {
		return "", err
	}
	if state.CurrentVersion == "" {
		return dir, nil
	}

	versioned, err := resolvePath(dir, state.CurrentVersion)
	if err != nil {
		return "", fmt.Errorf("artifact state: %w", err)
	}
	info, err := os.Stat(versioned)
	if err != nil {
		return "", fmt.Errorf("artifact version %s: %w", state.CurrentVersion, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("artifact version %s is not a directory", state.CurrentVersion)
	}
	return versioned, nil
}
