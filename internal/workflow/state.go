// Copyright 2025 Joseph Cumines

package workflow

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// stateDirName is created inside the workflow's directory.
const stateDirName = ".workflow_state"

// State is the persisted execution snapshot, rewritten after each
// successful step so a crashed run can resume via start_from_step.
type State struct {
	Environment         map[string]any `json:"environment"`
	LastCompletedStepID string         `json:"last_completed_step_id"`
	StepsExecuted       []string       `json:"steps_executed"`
}

// statePath returns the state file location, or "" for workflows with no
// backing directory (inline or remote).
func (w *Workflow) statePath() string {
	if w.dir == "" || w.name == "" {
		return ""
	}
	return filepath.Join(w.dir, stateDirName, w.name+".json")
}

// SaveState atomically rewrites the state file: write to a temp file in the
// same directory, then rename over the target. A crash mid-write leaves the
// previous snapshot intact.
func (w *Workflow) SaveState(st *State) error {
	path := w.statePath()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return uia.Errorf(uia.KindPlatformAPI, "create state dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return uia.Errorf(uia.KindPlatformAPI, "encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), w.name+".*.tmp")
	if err != nil {
		return uia.Errorf(uia.KindPlatformAPI, "create state temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return uia.Errorf(uia.KindPlatformAPI, "write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return uia.Errorf(uia.KindPlatformAPI, "close state temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return uia.Errorf(uia.KindPlatformAPI, "replace state file: %w", err)
	}
	return nil
}

// LoadState reads the persisted snapshot; (nil, nil) when no snapshot
// exists or the workflow has no backing directory.
func (w *Workflow) LoadState() (*State, error) {
	path := w.statePath()
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, uia.Errorf(uia.KindPlatformAPI, "read state file: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, uia.Errorf(uia.KindInvalidArgument, "decode state file %s: %w", path, err)
	}
	return &st, nil
}

// ClearState removes the persisted snapshot, if any.
func (w *Workflow) ClearState() error {
	path := w.statePath()
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return uia.Errorf(uia.KindPlatformAPI, "remove state file: %w", err)
	}
	return nil
}
