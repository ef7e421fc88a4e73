package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedungeon/dungeon-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// ReplayFrame is the session state right after one executed request.
type ReplayFrame struct {
	RequestID  string
	Caster     string
	Action     string
	Checksum   string
	Document   []byte // session export, JSON
	RecordedAt time.Time
}

// Replay is the ordered list of frames recorded for one session.
type Replay struct {
	SessionID string
	Frames    []*ReplayFrame
	mu        sync.RWMutex
}

// NewReplay creates a new replay instance
func NewReplay(sessionID string) *Replay {
	return &Replay{
		SessionID: sessionID,
		Frames:    make([]*ReplayFrame, 0),
	}
}

// RecordFrame appends a frame.
func (r *Replay) RecordFrame(frame *ReplayFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Frames = append(r.Frames, frame)
}

// Size returns the number of recorded frames.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.Frames)
}

// FrameAt returns the frame at index, or nil.
func (r *Replay) FrameAt(index int) *ReplayFrame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= 0 && index < len(r.Frames) {
		return r.Frames[index]
	}
	return nil
}

// SaveToFile writes the replay as a gzipped gob stream.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", r.SessionID))
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	encoder := gob.NewEncoder(gzipWriter)
	metadata := replayMetadata{
		SessionID:  r.SessionID,
		Timestamp:  time.Now(),
		Version:    1,
		FrameCount: len(r.Frames),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i, frame := range r.Frames {
		if err := encoder.Encode(frame); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, sessionID string) (*Replay, error) {
	filename := filepath.Join(directory, fmt.Sprintf("%s.replay", sessionID))

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)
	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != 1 {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := NewReplay(metadata.SessionID)
	for i := 0; i < metadata.FrameCount; i++ {
		var frame ReplayFrame
		if err := decoder.Decode(&frame); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		replay.Frames = append(replay.Frames, &frame)
	}
	return replay, nil
}

type replayMetadata struct {
	SessionID  string
	Timestamp  time.Time
	Version    int
	FrameCount int
}

// ReplayRecorder keeps in-memory replays for the sessions that record one.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	enabled map[string]bool
	saveDir string
}

// NewReplayRecorder creates a new replay recorder
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		enabled: make(map[string]bool),
		saveDir: saveDir,
	}
}

// StartRecording begins recording a session.
func (rr *ReplayRecorder) StartRecording(sessionID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.replays[sessionID] = NewReplay(sessionID)
	rr.enabled[sessionID] = true
	rr.logger.Info("started replay recording", zap.String("session_id", sessionID))
}

// StopRecording stops recording a session; frames so far are kept.
func (rr *ReplayRecorder) StopRecording(sessionID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.enabled[sessionID] = false
	rr.logger.Info("stopped replay recording", zap.String("session_id", sessionID))
}

// RecordFrame appends a frame if recording is enabled for the session.
func (rr *ReplayRecorder) RecordFrame(sessionID string, frame *ReplayFrame) {
	rr.mu.RLock()
	enabled := rr.enabled[sessionID]
	replay := rr.replays[sessionID]
	rr.mu.RUnlock()

	if !enabled || replay == nil {
		return
	}
	replay.RecordFrame(frame)
	rr.logger.Debug("recorded replay frame",
		zap.String("session_id", sessionID),
		zap.Int("frame_count", replay.Size()),
	)
}

// IsRecording returns whether recording is enabled for a session.
func (rr *ReplayRecorder) IsRecording(sessionID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	return rr.enabled[sessionID]
}

// GetReplay returns the in-memory replay for a session.
func (rr *ReplayRecorder) GetReplay(sessionID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	replay, exists := rr.replays[sessionID]
	return replay, exists
}

// SaveReplay writes a replay to disk and drops it from memory.
func (rr *ReplayRecorder) SaveReplay(sessionID string) error {
	rr.mu.Lock()
	replay, exists := rr.replays[sessionID]
	if !exists {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for session %s", sessionID)
	}
	delete(rr.replays, sessionID)
	delete(rr.enabled, sessionID)
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	rr.logger.Info("saved replay to disk",
		zap.String("session_id", sessionID),
		zap.Int("frame_count", replay.Size()),
		zap.String("directory", rr.saveDir),
	)
	return nil
}

// LoadReplay reads a saved replay from disk.
func (rr *ReplayRecorder) LoadReplay(sessionID string) (*Replay, error) {
	replay, err := LoadReplayFromFile(rr.saveDir, sessionID)
	if err != nil {
		return nil, err
	}
	rr.logger.Info("loaded replay from disk",
		zap.String("session_id", sessionID),
		zap.Int("frame_count", replay.Size()),
	)
	return replay, nil
}

// ClearReplay removes a replay from memory without saving.
func (rr *ReplayRecorder) ClearReplay(sessionID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	delete(rr.replays, sessionID)
	delete(rr.enabled, sessionID)
}

// record captures a frame after an executed request.
func (s *Session) record(req rules.Request) {
	if s.recorder == nil || !s.recorder.IsRecording(s.id) {
		return
	}
	doc, err := s.Export()
	if err != nil {
		s.logger.Warn("failed to export replay frame", zap.String("request_id", req.ID), zap.Error(err))
		return
	}
	sum, err := s.Checksum()
	if err != nil {
		s.logger.Warn("failed to checksum replay frame", zap.String("request_id", req.ID), zap.Error(err))
		return
	}
	s.recorder.RecordFrame(s.id, &ReplayFrame{
		RequestID:  req.ID,
		Caster:     req.Caster.String(),
		Action:     req.Kind.String(),
		Checksum:   sum,
		Document:   doc,
		RecordedAt: time.Now(),
	})
}
