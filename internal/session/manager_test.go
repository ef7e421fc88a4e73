package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bytedungeon/dungeon-server-go/internal/game"
	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/bytedungeon/dungeon-server-go/internal/game/grid"
	"github.com/bytedungeon/dungeon-server-go/internal/game/rules"
	"github.com/bytedungeon/dungeon-server-go/internal/repository"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memoryStore struct {
	mu   sync.Mutex
	recs map[string]repository.SessionRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{recs: make(map[string]repository.SessionRecord)}
}

func (s *memoryStore) Save(_ context.Context, rec repository.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = rec
	return nil
}

func (s *memoryStore) Load(_ context.Context, id string) (*repository.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, gameerr.NotFound("stored session", id)
	}
	return &rec, nil
}

func seed(t *testing.T, entry *Entry) {
	t.Helper()
	require.NoError(t, entry.Do(func(s *game.Session) error {
		if err := s.LoadBoard("0000", 2); err != nil {
			return err
		}
		if err := s.AddCharacter('A', game.CharacterSpec{Name: "Ash", Hitpoints: 10, Initiative: 3}); err != nil {
			return err
		}
		return s.PlaceToken('A', 0, 0)
	}))
}

func TestManagerCreateAndLimit(t *testing.T) {
	m := NewManager(Config{MaxSessions: 2, Defaults: game.DefaultOptions()}, zaptest.NewLogger(t))

	first, err := m.Create("crypt")
	require.NoError(t, err)
	_, err = m.Create("tower")
	require.NoError(t, err)
	_, err = m.Create("swamp")
	assert.True(t, errors.Is(err, ErrTooManySessions))

	got, ok := m.Get(first.ID)
	require.True(t, ok)
	assert.Equal(t, "crypt", got.Name)
	assert.Equal(t, 2, m.Count())

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "crypt", list[0].Name)

	m.Remove(first.ID)
	_, err = m.Lookup(first.ID)
	assert.True(t, errors.Is(err, gameerr.ErrNotFound))
}

func TestManagerSessionsPublishOnSharedBus(t *testing.T) {
	m := NewManager(Config{Defaults: game.DefaultOptions()}, zaptest.NewLogger(t))
	var events []rules.Event
	m.Events().Subscribe(func(e rules.Event) { events = append(events, e) })

	entry, err := m.Create("crypt")
	require.NoError(t, err)
	seed(t, entry)

	require.Len(t, events, 1)
	assert.Equal(t, rules.EventTokenPlaced, events[0].Type)
	assert.Equal(t, entry.ID, events[0].SessionID)

	snap := entry.Snapshot()
	assert.Equal(t, 1, snap.Placed)
	assert.Zero(t, snap.Unplaced)
}

func TestManagerCountsRequestOutcomes(t *testing.T) {
	m := NewManager(Config{Defaults: game.DefaultOptions()}, zaptest.NewLogger(t))
	entry, err := m.Create("crypt")
	require.NoError(t, err)
	seed(t, entry)

	before := testutil.ToFloat64(RequestOutcomes.WithLabelValues("move", "executed"))
	require.NoError(t, entry.Do(func(s *game.Session) error {
		_, err := s.MakeRequest(rules.ActionMove, "", 'A', 1, 1)
		return err
	}))
	assert.Equal(t, before+1, testutil.ToFloat64(RequestOutcomes.WithLabelValues("move", "executed")))
}

func TestManagerSaveAndLoad(t *testing.T) {
	store := newMemoryStore()
	m := NewManager(Config{Defaults: game.DefaultOptions(), Store: store}, zaptest.NewLogger(t))
	entry, err := m.Create("crypt")
	require.NoError(t, err)
	seed(t, entry)

	sum, err := m.Save(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Len(t, sum, 64)
	assert.Equal(t, "crypt", store.recs[entry.ID].Name)

	// Diverge, then load the stored copy back over it.
	require.NoError(t, entry.Do(func(s *game.Session) error {
		_, err := s.ToggleCell(1, 1)
		return err
	}))
	_, err = m.Load(context.Background(), entry.ID)
	require.NoError(t, err)
	require.NoError(t, entry.Do(func(s *game.Session) error {
		marker, err := s.Cell(1, 1)
		assert.Equal(t, grid.Empty, marker)
		return err
	}))

	// Loading into a fresh manager recreates the session under its id.
	other := NewManager(Config{Defaults: game.DefaultOptions(), Store: store}, zaptest.NewLogger(t))
	loaded, err := other.Load(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, loaded.ID)
	assert.Equal(t, "crypt", loaded.Name)
	assert.Equal(t, 1, loaded.Snapshot().Placed)

	_, err = other.Load(context.Background(), "missing")
	assert.True(t, errors.Is(err, gameerr.ErrNotFound))
	assert.Equal(t, 1, other.Count())
}

func TestManagerWithoutStore(t *testing.T) {
	m := NewManager(Config{}, nil)
	entry, err := m.Create("crypt")
	require.NoError(t, err)

	_, err = m.Save(context.Background(), entry.ID)
	assert.True(t, errors.Is(err, ErrPersistenceDisabled))
	_, err = m.Load(context.Background(), entry.ID)
	assert.True(t, errors.Is(err, ErrPersistenceDisabled))
}

func TestManagerFlushesReplayOnRemove(t *testing.T) {
	dir := t.TempDir()
	recorder := game.NewReplayRecorder(zaptest.NewLogger(t), dir)
	m := NewManager(Config{Defaults: game.DefaultOptions(), Recorder: recorder}, zaptest.NewLogger(t))
	entry, err := m.Create("crypt")
	require.NoError(t, err)
	seed(t, entry)
	require.True(t, recorder.IsRecording(entry.ID))

	require.NoError(t, entry.Do(func(s *game.Session) error {
		_, err := s.MakeRequest(rules.ActionMove, "", 'A', 0, 1)
		return err
	}))
	m.CloseAll()

	replay, err := game.LoadReplayFromFile(dir, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, replay.Size())
}

func TestManagerReplayFrame(t *testing.T) {
	m := NewManager(Config{}, nil)
	_, _, err := m.ReplayFrame("any", 0)
	assert.True(t, errors.Is(err, ErrReplayDisabled))

	dir := t.TempDir()
	recorder := game.NewReplayRecorder(zaptest.NewLogger(t), dir)
	m = NewManager(Config{Defaults: game.DefaultOptions(), Recorder: recorder}, zaptest.NewLogger(t))
	entry, err := m.Create("crypt")
	require.NoError(t, err)
	seed(t, entry)
	require.NoError(t, entry.Do(func(s *game.Session) error {
		_, err := s.MakeRequest(rules.ActionMove, "", 'A', 0, 1)
		return err
	}))

	frame, size, err := m.ReplayFrame(entry.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
	assert.Equal(t, "move", frame.Action)

	_, _, err = m.ReplayFrame(entry.ID, 1)
	assert.True(t, errors.Is(err, gameerr.ErrNotFound))

	m.Remove(entry.ID)
	frame, _, err = m.ReplayFrame(entry.ID, 0)
	require.NoError(t, err, "saved replays are read from disk")
	assert.Equal(t, "A", frame.Caster)

	_, _, err = m.ReplayFrame("unknown", 0)
	assert.True(t, errors.Is(err, gameerr.ErrNotFound))
}
