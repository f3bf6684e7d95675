// Package localstate persists the participant's identity and last known
// progress between runs of the client.
package localstate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/studyctl/internal/study"
)

// ErrNoState means no participant has been registered on this machine.
var ErrNoState = errors.New("no local participant state; run `studyctl register` first")

// State is the on-disk client state.
type State struct {
	ServerURL     string                `yaml:"server_url"`
	ParticipantID string                `yaml:"participant_id"`
	Modality      study.Modality        `yaml:"modality"`
	Flags         study.CompletionFlags `yaml:"flags"`
	SessionID     string                `yaml:"session_id,omitempty"`
	RegisteredAt  time.Time             `yaml:"registered_at"`
	UpdatedAt     time.Time             `yaml:"updated_at"`
}

// Participant converts the cached fields into a study.Participant.
func (s State) Participant() study.Participant {
	return study.Participant{
		ID:        s.ParticipantID,
		Modality:  s.Modality,
		Flags:     s.Flags,
		CreatedAt: s.RegisteredAt,
	}
}

// DefaultPath returns the state file path: STUDYCTL_STATE if set, otherwise
// $XDG_CONFIG_HOME/studyctl/state.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv("STUDYCTL_STATE"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "studyctl", "state.yaml"), nil
}

// lockTimeout bounds how long Load and Save wait for another process.
const lockTimeout = 5 * time.Second

func withLock(path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	fl := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	ok, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("lock %s: held by another process", path)
	}
	defer func() { _ = fl.Unlock() }()
	return fn()
}

// Load reads the state file. A missing file returns ErrNoState.
func Load(path string) (*State, error) {
	var st State
	err := withLock(path, func() error {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoState
		}
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, &st)
	})
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if st.ParticipantID == "" {
		return nil, fmt.Errorf("load state: %w", ErrNoState)
	}
	return &st, nil
}

// Save writes the state file atomically.
func Save(path string, st *State) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	err = withLock(path, func() error {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			return err
		}
		return os.Rename(tmp, path)
	})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
