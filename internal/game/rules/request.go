package rules

import (
	"fmt"

	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/bytedungeon/dungeon-server-go/internal/game/grid"
)

// ActionKind describes what a request does. The numeric values are part of
// the session document format.
type ActionKind int

const (
	// ActionMove moves the caster to the target cell.
	ActionMove ActionKind = iota
	// ActionUseItem uses or equips the inventory item at the index in SubtypeKey.
	ActionUseItem
	// ActionUseAbility invokes the ability named by SubtypeKey.
	ActionUseAbility
	// ActionUnequip clears the equipment slot named by SubtypeKey.
	ActionUnequip
)

// ParseActionKind validates a raw action number.
func ParseActionKind(v int) (ActionKind, error) {
	k := ActionKind(v)
	switch k {
	case ActionMove, ActionUseItem, ActionUseAbility, ActionUnequip:
		return k, nil
	}
	return 0, gameerr.InvalidArgument("unknown action type %d", v)
}

func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "move"
	case ActionUseItem:
		return "use_item"
	case ActionUseAbility:
		return "use_ability"
	case ActionUnequip:
		return "unequip"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// Request is a caster-attributed action awaiting execution.
type Request struct {
	ID           string        `json:"id,omitempty"`
	Caster       grid.Marker   `json:"caster"`
	Kind         ActionKind    `json:"action_type"`
	SubtypeKey   *string       `json:"subtype_key"`
	TargetCell   *grid.Cell    `json:"target_cell"`
	TargetTokens []grid.Marker `json:"target_tokens"`
}

// Subtype returns the subtype key or "" when unset.
func (r Request) Subtype() string {
	if r.SubtypeKey == nil {
		return ""
	}
	return *r.SubtypeKey
}

// Clone returns a deep copy.
func (r Request) Clone() Request {
	if r.SubtypeKey != nil {
		key := *r.SubtypeKey
		r.SubtypeKey = &key
	}
	if r.TargetCell != nil {
		cell := *r.TargetCell
		r.TargetCell = &cell
	}
	if r.TargetTokens != nil {
		r.TargetTokens = append([]grid.Marker(nil), r.TargetTokens...)
	}
	return r
}
