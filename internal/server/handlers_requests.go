package server

import (
	"context"

	"github.com/bytedungeon/dungeon-server-go/internal/game"
	"github.com/bytedungeon/dungeon-server-go/internal/game/rules"
	"google.golang.org/protobuf/types/known/structpb"
)

// MakeRequest builds a request and executes or queues it according to the
// session's request mode.
func (s *SessionServer) MakeRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		kind, err := a.action("action")
		if err != nil {
			return nil, err
		}
		caster, err := a.marker("caster")
		if err != nil {
			return nil, err
		}
		row, err := a.optInt("row", 0)
		if err != nil {
			return nil, err
		}
		col, err := a.optInt("col", 0)
		if err != nil {
			return nil, err
		}
		built, err := g.MakeRequest(kind, a.optStr("subtype_key"), caster, row, col)
		if err != nil {
			return nil, err
		}
		return reply(map[string]any{"request": built})
	})
}

func (s *SessionServer) InsertRequests(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		caster, err := a.marker("caster")
		if err != nil {
			return nil, err
		}
		var batch []rules.Request
		if err := a.decode("requests", &batch); err != nil {
			return nil, err
		}
		if err := g.InsertRequests(caster, batch...); err != nil {
			return nil, err
		}
		return reply(map[string]any{"pending": len(g.PendingRequests())})
	})
}

// SortRequests orders the queue by initiative and returns the result.
func (s *SessionServer) SortRequests(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		return requestList(g.OrderRequests())
	})
}

func (s *SessionServer) GetRequests(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		return requestList(g.PendingRequests())
	})
}

func (s *SessionServer) CancelRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		id, err := a.str("request_id")
		if err != nil {
			return nil, err
		}
		if err := g.CancelRequest(id); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}

func (s *SessionServer) ExecuteRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		var r rules.Request
		if err := a.decode("request", &r); err != nil {
			return nil, err
		}
		if err := g.ExecuteRequest(r); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}

// ExecutePending runs the whole queue. Individual failures do not fail the
// call; they are listed in the reply.
func (s *SessionServer) ExecutePending(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		queued := len(g.PendingRequests())
		failures := splitErrors(g.ExecutePending())
		messages := make([]any, len(failures))
		for i, err := range failures {
			messages[i] = err.Error()
		}
		return reply(map[string]any{
			"processed": queued - len(failures),
			"failures":  messages,
		})
	})
}

func (s *SessionServer) AdvanceRound(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		if err := g.AdvanceRound(); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}

// SetInitiative sets a placed token's initiative; a missing or null
// initiative clears it.
func (s *SessionServer) SetInitiative(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		id, err := a.marker("id")
		if err != nil {
			return nil, err
		}
		var initiative *int
		if a.has("initiative") {
			v, err := a.int("initiative")
			if err != nil {
				return nil, err
			}
			initiative = &v
		}
		if err := g.SetInitiative(id, initiative); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}

func requestList(reqs []rules.Request) (*structpb.Struct, error) {
	if reqs == nil {
		reqs = []rules.Request{}
	}
	return reply(map[string]any{"requests": reqs})
}

// splitErrors undoes errors.Join.
func splitErrors(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
