package server

import (
	"context"

	"github.com/bytedungeon/dungeon-server-go/internal/game"
	"github.com/bytedungeon/dungeon-server-go/internal/game/catalog"
	"google.golang.org/protobuf/types/known/structpb"
)

// GetCharacter looks a sheet up by id, or by the token standing on row/col.
func (s *SessionServer) GetCharacter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		var (
			sheet game.Character
			err   error
		)
		if a.has("id") {
			id, perr := a.marker("id")
			if perr != nil {
				return nil, perr
			}
			sheet, err = g.CharacterByID(id)
		} else {
			row, col, cerr := a.cell("row", "col")
			if cerr != nil {
				return nil, cerr
			}
			sheet, err = g.CharacterAt(row, col)
		}
		if err != nil {
			return nil, err
		}
		return reply(map[string]any{"character": sheet})
	})
}

func (s *SessionServer) AddCharacter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		id, err := a.marker("id")
		if err != nil {
			return nil, err
		}
		spec := game.CharacterSpec{Name: a.optStr("name"), Trait: a.optStr("trait")}
		for key, dst := range map[string]*int{
			"speed":        &spec.Speed,
			"initiative":   &spec.Initiative,
			"hitpoints":    &spec.Hitpoints,
			"max_hp":       &spec.MaxHP,
			"strength":     &spec.Strength,
			"dexterity":    &spec.Dexterity,
			"constitution": &spec.Constitution,
			"intelligence": &spec.Intelligence,
			"wisdom":       &spec.Wisdom,
			"charisma":     &spec.Charisma,
		} {
			if *dst, err = a.optInt(key, 0); err != nil {
				return nil, err
			}
		}
		if err := g.AddCharacter(id, spec); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}

func (s *SessionServer) AddItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		var item catalog.Item
		if err := a.decode("item", &item); err != nil {
			return nil, err
		}
		if err := g.AddItem(key, item); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}

func (s *SessionServer) AddAbility(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		var ability catalog.Ability
		if err := a.decode("ability", &ability); err != nil {
			return nil, err
		}
		if err := g.AddAbility(key, ability); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}

func (s *SessionServer) AddEffect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		var effect catalog.Effect
		if err := a.decode("effect", &effect); err != nil {
			return nil, err
		}
		if err := g.AddEffect(key, effect); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}

func (s *SessionServer) GiveItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		id, err := a.marker("id")
		if err != nil {
			return nil, err
		}
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		if err := g.GiveItem(id, key); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}

func (s *SessionServer) GiveAbility(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.within(req, func(a args, g *game.Session) (*structpb.Struct, error) {
		id, err := a.marker("id")
		if err != nil {
			return nil, err
		}
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		if err := g.GiveAbility(id, key); err != nil {
			return nil, err
		}
		return empty(), nil
	})
}
