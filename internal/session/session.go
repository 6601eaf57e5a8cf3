// Package session keeps the live conversations of the server. Each session
// owns one orchestrator and one uploaded-file registry and serializes the
// operations that mutate them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/aura/internal/assistant"
	"github.com/kalambet/aura/internal/conversation"
	"github.com/kalambet/aura/internal/orchestrator"
	"github.com/kalambet/aura/internal/storage"
	"github.com/kalambet/aura/internal/tasks"
)

var (
	// ErrNotFound is returned for an unknown session ID.
	ErrNotFound = errors.New("session not found")
	// ErrBusy is returned when a submit or upload is already running.
	ErrBusy = errors.New("session is busy")
)

var _ orchestrator.Historian = (*assistant.Assistant)(nil)

// Journal receives every turn appended to a session.
type Journal interface {
	SaveTurns(turns []storage.TurnRecord) error
}

// LanguageFactory builds the language service of a new session around its
// file registry.
type LanguageFactory func(files *assistant.Files) orchestrator.Language

// Config wires a Manager.
type Config struct {
	NewLanguage    LanguageFactory
	Dispatcher     orchestrator.Dispatcher
	Extract        func(name string, data []byte) (string, error)
	Journal        Journal
	AssistantName  string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Manager creates and looks up sessions.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{cfg: cfg, sessions: make(map[string]*Session)}
}

// Start creates a session for identity, seeded with the greeting.
func (m *Manager) Start(identity conversation.Identity) (*Session, error) {
	id := uuid.NewString()
	files := assistant.NewFiles()
	logger := m.cfg.Logger.With("session_id", id)

	orch, err := orchestrator.New(orchestrator.Deps{
		Language:       m.cfg.NewLanguage(files),
		Dispatcher:     m.cfg.Dispatcher,
		Files:          files,
		Extract:        m.cfg.Extract,
		Identity:       identity,
		AssistantName:  m.cfg.AssistantName,
		MaxUploadBytes: m.cfg.MaxUploadBytes,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        id,
		Identity:  identity,
		CreatedAt: time.Now().UTC(),
		orch:      orch,
		files:     files,
		journal:   m.cfg.Journal,
		logger:    logger,
	}
	s.record(orch.Messages())

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	logger.Info("session started", "user", identity.DisplayName())
	return s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns every live session, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Session is one live conversation.
type Session struct {
	ID        string
	Identity  conversation.Identity
	CreatedAt time.Time

	orch    *orchestrator.Orchestrator
	files   *assistant.Files
	journal Journal
	logger  *slog.Logger

	busy sync.Mutex
}

// Submit runs one turn and returns the turns it appended. It fails only with
// ErrBusy when another submit or upload is in flight. The turn runs to
// completion even if ctx is cancelled; only its values reach the turn.
func (s *Session) Submit(ctx context.Context, text string) ([]conversation.Turn, error) {
	if !s.busy.TryLock() {
		return nil, ErrBusy
	}
	defer s.busy.Unlock()

	start := s.orch.MessageCount()
	s.orch.Submit(context.WithoutCancel(ctx), text)
	turns := s.orch.MessagesSince(start)
	s.record(turns)
	return turns, nil
}

// Upload processes a file and returns the turns it appended.
func (s *Session) Upload(name string, data []byte) ([]conversation.Turn, error) {
	if !s.busy.TryLock() {
		return nil, ErrBusy
	}
	defer s.busy.Unlock()

	start := s.orch.MessageCount()
	if err := s.orch.Upload(name, data); err != nil {
		return nil, err
	}
	turns := s.orch.MessagesSince(start)
	s.record(turns)
	return turns, nil
}

// Messages returns the transcript.
func (s *Session) Messages() []conversation.Turn { return s.orch.Messages() }

// Tasks returns the suggested tasks, newest batch first.
func (s *Session) Tasks() []tasks.Suggestion { return s.orch.Tasks() }

// SetTaskStatus updates one suggested task.
func (s *Session) SetTaskStatus(id string, st tasks.Status) (tasks.Suggestion, error) {
	return s.orch.SetTaskStatus(id, st)
}

// Status returns the transient flags.
func (s *Session) Status() orchestrator.Status { return s.orch.Status() }

// Files lists the uploaded files.
func (s *Session) Files() []assistant.File { return s.files.List() }

// RemoveFile unregisters an uploaded file.
func (s *Session) RemoveFile(name string) bool { return s.orch.RemoveFile(name) }

// ClearUploadError dismisses the last upload error.
func (s *Session) ClearUploadError() { s.orch.ClearUploadError() }

// record writes turns to the memory log. Failures are logged only.
func (s *Session) record(turns []conversation.Turn) {
	if s.journal == nil || len(turns) == 0 {
		return
	}
	records := make([]storage.TurnRecord, 0, len(turns))
	for _, t := range turns {
		rec := storage.TurnRecord{
			ID:        t.ID,
			SessionID: s.ID,
			Role:      string(t.Role),
			Text:      t.Text,
			CreatedAt: t.CreatedAt,
		}
		if t.Attachment != nil {
			b, err := json.Marshal(t.Attachment)
			if err != nil {
				s.logger.Warn("encoding turn attachment", "turn_id", t.ID, "error", err)
			} else {
				rec.AttachmentJSON = string(b)
			}
		}
		records = append(records, rec)
	}
	if err := s.journal.SaveTurns(records); err != nil {
		s.logger.Warn("writing memory log", "error", err)
	}
}
