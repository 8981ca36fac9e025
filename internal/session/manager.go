package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/voxread/voxread/internal/synthesis"
)

// Manager enforces the single-active-session policy: starting a session
// cancels the prior non-terminal one. Terminated sessions stay pollable
// until the next start sweeps them out.
type Manager struct {
	connector     synthesis.Connector
	maxChunkChars int
	sampleRate    int
	minBuffer     time.Duration
	log           *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	active   *Session
}

type ManagerConfig struct {
	Connector     synthesis.Connector
	MaxChunkChars int
	SampleRate    int
	MinBuffer     time.Duration
	Log           *slog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Manager{
		connector:     cfg.Connector,
		maxChunkChars: cfg.MaxChunkChars,
		sampleRate:    cfg.SampleRate,
		minBuffer:     cfg.MinBuffer,
		log:           cfg.Log.With("component", "session_manager"),
		sessions:      make(map[string]*Session),
	}
}

func (m *Manager) StartSession(text, voiceID string) (*Session, error) {
	sess, err := New(Config{
		Text:          text,
		VoiceID:       voiceID,
		Connector:     m.connector,
		MaxChunkChars: m.maxChunkChars,
		SampleRate:    m.sampleRate,
		MinBuffer:     m.minBuffer,
		Log:           m.log,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	for id, old := range m.sessions {
		if old.State().Terminal() {
			delete(m.sessions, id)
		}
	}
	prior := m.active
	m.sessions[sess.ID()] = sess
	m.active = sess
	m.mu.Unlock()

	if prior != nil && !prior.State().Terminal() {
		m.log.Info("cancelling prior session", "session_id", prior.ID())
		prior.Cancel()
	}

	sess.Start()
	m.log.Info("session started", "session_id", sess.ID())
	return sess, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Active returns the most recently started session, which may already be in
// a terminal state.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.active = nil
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	return nil
}
