// Package session keeps the live game sessions of a server process and
// serializes access to each of them.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bytedungeon/dungeon-server-go/internal/game"
	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/bytedungeon/dungeon-server-go/internal/game/rules"
	"github.com/bytedungeon/dungeon-server-go/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrTooManySessions is returned when the session limit is reached.
	ErrTooManySessions = errors.New("too many sessions")
	// ErrPersistenceDisabled is returned by Save and Load when no store is
	// configured.
	ErrPersistenceDisabled = errors.New("persistence disabled")
	// ErrReplayDisabled is returned by ReplayFrame when no recorder is
	// configured.
	ErrReplayDisabled = errors.New("replay recording disabled")
)

// Store persists exported session documents.
type Store interface {
	Save(ctx context.Context, rec repository.SessionRecord) error
	Load(ctx context.Context, id string) (*repository.SessionRecord, error)
}

// Entry is one live session. All access to the game state goes through Do.
type Entry struct {
	ID         string
	Name       string
	CreateTime time.Time
	updateTime time.Time
	game       *game.Session
	mu         sync.Mutex
}

// Do runs fn with exclusive access to the session.
func (e *Entry) Do(fn func(*game.Session) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := fn(e.game)
	e.updateTime = time.Now()
	return err
}

// Snapshot describes an entry for listings.
type Snapshot struct {
	ID         string
	Name       string
	CreateTime time.Time
	UpdateTime time.Time
	Placed     int
	Unplaced   int
	Pending    int
}

// Snapshot returns a consistent view of the entry.
func (e *Entry) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		ID:         e.ID,
		Name:       e.Name,
		CreateTime: e.CreateTime,
		UpdateTime: e.updateTime,
		Placed:     len(e.game.PlacedIDs()),
		Unplaced:   len(e.game.UnplacedIDs()),
		Pending:    len(e.game.PendingRequests()),
	}
}

// Config configures a Manager.
type Config struct {
	MaxSessions int
	// Defaults are applied to every new session. ID, Events and Recorder are
	// filled in by the manager.
	Defaults game.Options
	Events   *rules.EventBus
	Recorder *game.ReplayRecorder
	Store    Store
}

// Manager manages live sessions.
type Manager struct {
	sessions map[string]*Entry
	mu       sync.RWMutex
	cfg      Config
	logger   *zap.Logger
}

// NewManager creates a new session manager.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Events == nil {
		cfg.Events = rules.NewEventBus()
	}
	cfg.Events.Subscribe(recordRequestOutcome)
	return &Manager{
		sessions: make(map[string]*Entry),
		cfg:      cfg,
		logger:   logger,
	}
}

// Events returns the bus every session publishes on.
func (m *Manager) Events() *rules.EventBus { return m.cfg.Events }

// Create starts an empty session.
func (m *Manager) Create(name string) (*Entry, error) {
	return m.create(uuid.New().String(), name)
}

func (m *Manager) create(id, name string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, gameerr.InvalidArgument("session %s already exists", id)
	}
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManySessions, m.cfg.MaxSessions)
	}

	opts := m.cfg.Defaults
	opts.ID = id
	opts.Events = m.cfg.Events
	opts.Recorder = m.cfg.Recorder
	now := time.Now()
	entry := &Entry{
		ID:         id,
		Name:       name,
		CreateTime: now,
		updateTime: now,
		game:       game.NewSession(m.logger, opts),
	}
	m.sessions[id] = entry
	if m.cfg.Recorder != nil {
		m.cfg.Recorder.StartRecording(id)
	}
	activeSessions.Set(float64(len(m.sessions)))

	m.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("name", name),
		zap.String("request_mode", string(opts.RequestMode)),
	)
	return entry, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[id]
	return entry, ok
}

// Lookup is Get with a NotFound error.
func (m *Manager) Lookup(id string) (*Entry, error) {
	entry, ok := m.Get(id)
	if !ok {
		return nil, gameerr.NotFound("session", id)
	}
	return entry, nil
}

// Remove drops a session. A recorded replay is saved first.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if !ok {
		return
	}
	m.flushReplay(id)
	m.logger.Info("session removed", zap.String("session_id", id))
}

func (m *Manager) flushReplay(id string) {
	if m.cfg.Recorder == nil {
		return
	}
	if _, ok := m.cfg.Recorder.GetReplay(id); !ok {
		return
	}
	if err := m.cfg.Recorder.SaveReplay(id); err != nil {
		m.logger.Warn("failed to save replay", zap.String("session_id", id), zap.Error(err))
	}
}

// ReplayFrame returns frame index of the replay recorded for session id and
// the number of frames in it. A live recording is read in place; once a
// session is gone its replay is read back from disk.
func (m *Manager) ReplayFrame(id string, index int) (*game.ReplayFrame, int, error) {
	if m.cfg.Recorder == nil {
		return nil, 0, ErrReplayDisabled
	}
	replay, ok := m.cfg.Recorder.GetReplay(id)
	if !ok {
		loaded, err := m.cfg.Recorder.LoadReplay(id)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, gameerr.NotFound("replay", id)
		}
		if err != nil {
			return nil, 0, err
		}
		replay = loaded
	}
	frame := replay.FrameAt(index)
	if frame == nil {
		return nil, 0, gameerr.NotFound("replay frame", strconv.Itoa(index))
	}
	return frame, replay.Size(), nil
}

// List returns every live session, oldest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	entries := make([]*Entry, 0, len(m.sessions))
	for _, entry := range m.sessions {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreateTime.Equal(out[j].CreateTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreateTime.Before(out[j].CreateTime)
	})
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Save exports a session to the store and returns its checksum.
func (m *Manager) Save(ctx context.Context, id string) (string, error) {
	if m.cfg.Store == nil {
		return "", ErrPersistenceDisabled
	}
	entry, err := m.Lookup(id)
	if err != nil {
		return "", err
	}

	var rec repository.SessionRecord
	err = entry.Do(func(s *game.Session) error {
		doc, err := s.Export()
		if err != nil {
			return err
		}
		sum, err := s.Checksum()
		if err != nil {
			return err
		}
		rec = repository.SessionRecord{ID: id, Name: entry.Name, Document: doc, Checksum: sum}
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := m.cfg.Store.Save(ctx, rec); err != nil {
		return "", err
	}
	m.logger.Info("session saved", zap.String("session_id", id), zap.String("checksum", rec.Checksum))
	return rec.Checksum, nil
}

// Load restores a stored session. A live session with the same id is
// replaced in place; otherwise a new one is created under that id.
func (m *Manager) Load(ctx context.Context, id string) (*Entry, error) {
	if m.cfg.Store == nil {
		return nil, ErrPersistenceDisabled
	}
	rec, err := m.cfg.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	entry, ok := m.Get(id)
	if !ok {
		if entry, err = m.create(id, rec.Name); err != nil {
			return nil, err
		}
	}

	err = entry.Do(func(s *game.Session) error {
		if err := s.Import(rec.Document); err != nil {
			return err
		}
		sum, err := s.Checksum()
		if err != nil {
			return err
		}
		if sum != rec.Checksum {
			m.logger.Warn("stored checksum differs from restored state",
				zap.String("session_id", id),
				zap.String("stored", rec.Checksum),
				zap.String("restored", sum),
			)
		}
		return nil
	})
	if err != nil {
		if !ok {
			m.Remove(id)
		}
		return nil, err
	}
	m.logger.Info("session loaded", zap.String("session_id", id))
	return entry, nil
}

// CloseAll removes every session.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Remove(id)
	}
}
