package localstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abhisek/studyctl/internal/study"
)

// Profile is the app-wide participant state. It serves the last known
// participant from memory and refreshes it from the server on demand,
// writing every refresh back to the state file.
type Profile struct {
	path string
	api  study.ProfileAPI
	log  *slog.Logger
	now  func() time.Time

	mu    sync.Mutex
	state State
}

var _ study.ProfileContext = (*Profile)(nil)

// NewProfile wraps an already loaded state.
func NewProfile(path string, st State, api study.ProfileAPI, logger *slog.Logger) *Profile {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profile{path: path, api: api, log: logger, now: time.Now, state: st}
}

// OpenProfile loads the state file at path.
func OpenProfile(path string, api study.ProfileAPI, logger *slog.Logger) (*Profile, error) {
	st, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewProfile(path, *st, api, logger), nil
}

func (p *Profile) Participant() study.Participant {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Participant()
}

// Refresh re-reads the participant from the server. Flags are merged with
// the cached copy since they never revert.
func (p *Profile) Refresh(ctx context.Context) (study.Participant, error) {
	remote, err := p.api.GetProfile(ctx)
	if err != nil {
		return p.Participant(), fmt.Errorf("refresh profile: %w", err)
	}

	p.mu.Lock()
	if remote.ID != p.state.ParticipantID {
		p.mu.Unlock()
		return p.Participant(), fmt.Errorf("refresh profile: server returned participant %s, expected %s", remote.ID, p.state.ParticipantID)
	}
	p.state.Modality = remote.Modality
	p.state.Flags = p.state.Flags.Merge(remote.Flags)
	if !remote.CreatedAt.IsZero() {
		p.state.RegisteredAt = remote.CreatedAt
	}
	p.state.UpdatedAt = p.now().UTC()
	snapshot := p.state
	p.mu.Unlock()

	if err := Save(p.path, &snapshot); err != nil {
		// The in-memory copy is still current; the next refresh retries.
		p.log.Warn("profile not persisted", "error", err)
	}
	return snapshot.Participant(), nil
}

// SessionID returns the cached session id, if any.
func (p *Profile) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.SessionID
}

// SetSessionID caches the session id so a restarted client resumes it.
func (p *Profile) SetSessionID(id string) error {
	p.mu.Lock()
	if p.state.SessionID == id {
		p.mu.Unlock()
		return nil
	}
	p.state.SessionID = id
	p.state.UpdatedAt = p.now().UTC()
	snapshot := p.state
	p.mu.Unlock()
	return Save(p.path, &snapshot)
}

// State returns a copy of the current state.
func (p *Profile) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
