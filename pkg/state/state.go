// Package state persists what the bridge learned across process runs, so a
// one-shot CLI invocation can report how the previous question was answered.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nexia-labs/nexia/pkg/logger"
)

// State is the persisted bridge snapshot.
type State struct {
	// LastStrategy names the strategy that produced the last answer.
	LastStrategy string `json:"last_strategy,omitempty"`

	// BridgeState is the bridge state after the last answer.
	BridgeState string `json:"bridge_state,omitempty"`

	// LastAskAt is when the last question was answered.
	LastAskAt time.Time `json:"last_ask_at,omitempty"`

	// Asks counts answered questions.
	Asks int `json:"asks"`

	// Timestamp is the last time this state was updated.
	Timestamp time.Time `json:"timestamp"`
}

// Manager manages persistent state with atomic saves.
type Manager struct {
	path  string
	state *State
	mu    sync.RWMutex
}

var (
	stateReadFile         = os.ReadFile
	stateBootstrapTimeout = 750 * time.Millisecond
	now                   = time.Now
)

// NewManager loads the state at path. A missing, unreadable or slow file
// starts from an empty state.
func NewManager(path string) *Manager {
	sm := &Manager{
		path:  path,
		state: &State{},
	}

	loaded, err := loadWithTimeout(path, stateBootstrapTimeout)
	if err != nil {
		logger.WarnCF("state", "Bootstrap skipped", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	} else if loaded != nil {
		sm.state = loaded
	}
	return sm
}

func (sm *Manager) Path() string {
	return sm.path
}

// RecordAsk stores the outcome of an answered question and saves the state.
func (sm *Manager) RecordAsk(strategy, bridgeState string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	t := now()
	sm.state.LastStrategy = strategy
	sm.state.BridgeState = bridgeState
	sm.state.LastAskAt = t
	sm.state.Asks++
	sm.state.Timestamp = t

	if err := sm.saveAtomic(); err != nil {
		return fmt.Errorf("failed to save state atomically: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (sm *Manager) Snapshot() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return *sm.state
}

// saveAtomic writes to a temp file and renames it over the target.
// Must be called with the lock held.
func (sm *Manager) saveAtomic() error {
	if err := os.MkdirAll(filepath.Dir(sm.path), 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	data, err := json.MarshalIndent(sm.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := sm.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, sm.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func loadWithTimeout(path string, timeout time.Duration) (*State, error) {
	if timeout <= 0 {
		return loadStateFromPath(path)
	}

	type result struct {
		state *State
		err   error
	}

	done := make(chan result, 1)
	go func() {
		st, err := loadStateFromPath(path)
		done <- result{state: st, err: err}
	}()

	select {
	case out := <-done:
		return out.state, out.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("state load timed out")
	}
}

func loadStateFromPath(path string) (*State, error) {
	data, err := stateReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state %s: %w", path, err)
	}
	return &st, nil
}
