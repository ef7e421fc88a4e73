package server

import (
	"context"

	"github.com/bytedungeon/dungeon-server-go/internal/game"
	"github.com/bytedungeon/dungeon-server-go/internal/game/grid"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *SessionServer) GetCell(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		row, col, err := a.cell("row", "col")
		if err != nil {
			return nil, err
		}
		m, err := g.Cell(row, col)
		if err != nil {
			return nil, err
		}
		return reply(map[string]any{"marker": m.String()})
	})
}

func (s *SessionServer) GetDimensions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		rows, cols := g.Dimensions()
		return reply(map[string]any{"rows": rows, "cols": cols})
	})
}

// GetBoard returns the board as a flattened string plus its width, the same
// encoding LoadBoard accepts.
func (s *SessionServer) GetBoard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		_, cols := g.Dimensions()
		flat := make([]rune, 0)
		for _, m := range g.Flatten() {
			flat = append(flat, rune(m))
		}
		return reply(map[string]any{"board": string(flat), "width": cols})
	})
}

func (s *SessionServer) PlaceToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		id, err := a.marker("id")
		if err != nil {
			return nil, err
		}
		row, col, err := a.cell("row", "col")
		if err != nil {
			return nil, err
		}
		if err := g.PlaceToken(id, row, col); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}

func (s *SessionServer) ToggleCell(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		row, col, err := a.cell("row", "col")
		if err != nil {
			return nil, err
		}
		m, err := g.ToggleCell(row, col)
		if err != nil {
			return nil, err
		}
		return reply(map[string]any{"marker": m.String()})
	})
}

func (s *SessionServer) ResizeBoard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		rows, cols, err := a.cell("rows", "cols")
		if err != nil {
			return nil, err
		}
		if err := g.Resize(rows, cols); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}

func (s *SessionServer) LoadBoard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		board, err := a.str("board")
		if err != nil {
			return nil, err
		}
		width, err := a.int("width")
		if err != nil {
			return nil, err
		}
		if err := g.LoadBoard(board, width); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}

// CollectCellOptions returns movement or targeting options as [row, col]
// pairs in row-major order.
func (s *SessionServer) CollectCellOptions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		row, col, err := a.cell("row", "col")
		if err != nil {
			return nil, err
		}
		rng, err := a.int("range")
		if err != nil {
			return nil, err
		}
		cells, err := g.CollectCellOptions(row, col, rng, a.boolean("targeting"))
		if err != nil {
			return nil, err
		}
		if cells == nil {
			cells = []grid.Cell{}
		}
		return reply(map[string]any{"cells": cells})
	})
}

// CellDistance needs no session.
func (s *SessionServer) CellDistance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a := argsOf(req)
	srcRow, srcCol, err := a.cell("src_row", "src_col")
	if err != nil {
		return nil, err
	}
	dstRow, dstCol, err := a.cell("dst_row", "dst_col")
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"distance": game.CellDistance(srcRow, srcCol, dstRow, dstCol)})
}
