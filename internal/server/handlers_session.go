package server

import (
	"context"
	"encoding/json"

	"github.com/bytedungeon/dungeon-server-go/internal/game"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

// CreateSession starts an empty session.
func (s *SessionServer) CreateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	entry, err := s.manager.Create(argsOf(req).optStr("name"))
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"session_id": entry.ID, "name": entry.Name})
}

// ListSessions describes every live session.
func (s *SessionServer) ListSessions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	list := s.manager.List()
	sessions := make([]map[string]any, 0, len(list))
	for _, snap := range list {
		sessions = append(sessions, map[string]any{
			"session_id": snap.ID,
			"name":       snap.Name,
			"created_at": snap.CreateTime,
			"updated_at": snap.UpdateTime,
			"placed":     snap.Placed,
			"unplaced":   snap.Unplaced,
			"pending":    snap.Pending,
		})
	}
	return reply(map[string]any{"sessions": sessions})
}

// CloseSession drops a live session.
func (s *SessionServer) CloseSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := argsOf(req).sessionID()
	if err != nil {
		return nil, err
	}
	if _, err := s.manager.Lookup(id); err != nil {
		return nil, err
	}
	s.manager.Remove(id)
	return empty(), nil
}

// ImportSession replaces a session with a document.
func (s *SessionServer) ImportSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		doc, err := a.raw("document")
		if err != nil {
			return nil, err
		}
		if err := g.Import(doc); err != nil {
			return nil, err
		}
		sum, err := g.Checksum()
		if err != nil {
			return nil, err
		}
		return reply(map[string]any{"checksum": sum})
	})
}

// ExportSession returns the session document and its checksum.
func (s *SessionServer) ExportSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		doc, err := g.Export()
		if err != nil {
			return nil, err
		}
		sum, err := g.Checksum()
		if err != nil {
			return nil, err
		}
		return reply(map[string]any{"document": json.RawMessage(doc), "checksum": sum})
	})
}

// ResetSession empties a session.
func (s *SessionServer) ResetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		g.Reset()
		return empty(), nil
	})
}

// SaveSession writes a session to the store.
func (s *SessionServer) SaveSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := argsOf(req).sessionID()
	if err != nil {
		return nil, err
	}
	sum, err := s.manager.Save(ctx, id)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"checksum": sum})
}

// LoadSession restores a session from the store.
func (s *SessionServer) LoadSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := argsOf(req).sessionID()
	if err != nil {
		return nil, err
	}
	entry, err := s.manager.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("session loaded over rpc", zap.String("session_id", id))
	return reply(map[string]any{"session_id": entry.ID, "name": entry.Name})
}

// GetReplayFrame returns one recorded frame of a session's replay. The
// session does not have to be live.
func (s *SessionServer) GetReplayFrame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(req)
	id, err := a.sessionID()
	if err != nil {
		return nil, err
	}
	index, err := a.optInt("index", 0)
	if err != nil {
		return nil, err
	}
	frame, size, err := s.manager.ReplayFrame(id, index)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{
		"index":       index,
		"frames":      size,
		"request_id":  frame.RequestID,
		"caster":      frame.Caster,
		"action":      frame.Action,
		"checksum":    frame.Checksum,
		"document":    json.RawMessage(frame.Document),
		"recorded_at": frame.RecordedAt,
	})
}
