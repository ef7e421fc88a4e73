package game

import (
	"github.com/bytedungeon/dungeon-server-go/internal/game/catalog"
	"github.com/bytedungeon/dungeon-server-go/internal/game/effects"
)

// Base stat names every new sheet is created with.
const (
	StatStrength     = "Strength"
	StatDexterity    = "Dexterity"
	StatConstitution = "Constitution"
	StatIntelligence = "Intelligence"
	StatWisdom       = "Wisdom"
	StatCharisma     = "Charisma"
)

// Character is a character sheet: stats, inventory, abilities and active
// effects, independent of whether the character is on the board.
type Character struct {
	Name       string                    `json:"name"`
	Speed      int                       `json:"speed"`
	Initiative int                       `json:"initiative"`
	Hitpoints  int                       `json:"hitpoints"`
	MaxHP      int                       `json:"max_hp"`
	StatBlock  map[string]int            `json:"stats"`
	Traits     catalog.KeySet            `json:"traits"`
	Items      []catalog.Item            `json:"items"`
	Equipment  map[string]catalog.Item   `json:"equipment"`
	Abilities  catalog.KeySet            `json:"abilities"`
	Effects    map[string]catalog.Effect `json:"effects"`
}

// CharacterSpec carries the values AddCharacter builds a sheet from.
type CharacterSpec struct {
	Name         string
	Speed        int
	Initiative   int
	Hitpoints    int
	MaxHP        int
	Strength     int
	Dexterity    int
	Constitution int
	Intelligence int
	Wisdom       int
	Charisma     int
	// Trait is optional; empty means none.
	Trait string
}

// NewCharacter builds a fresh sheet with the six base stats filled in.
func NewCharacter(spec CharacterSpec) Character {
	c := Character{
		Name:       spec.Name,
		Speed:      spec.Speed,
		Initiative: spec.Initiative,
		Hitpoints:  spec.Hitpoints,
		MaxHP:      spec.MaxHP,
		StatBlock: map[string]int{
			StatStrength:     spec.Strength,
			StatDexterity:    spec.Dexterity,
			StatConstitution: spec.Constitution,
			StatIntelligence: spec.Intelligence,
			StatWisdom:       spec.Wisdom,
			StatCharisma:     spec.Charisma,
		},
		Traits:    catalog.NewKeySet(),
		Items:     []catalog.Item{},
		Equipment: make(map[string]catalog.Item),
		Abilities: catalog.NewKeySet(),
		Effects:   make(map[string]catalog.Effect),
	}
	if spec.Trait != "" {
		c.Traits.Add(spec.Trait)
	}
	return c
}

// Clone returns a deep copy. Nil collections come back empty.
func (c Character) Clone() Character {
	stats := make(map[string]int, len(c.StatBlock))
	for k, v := range c.StatBlock {
		stats[k] = v
	}
	c.StatBlock = stats

	items := make([]catalog.Item, len(c.Items))
	for i, it := range c.Items {
		items[i] = it.Clone()
	}
	c.Items = items

	equipment := make(map[string]catalog.Item, len(c.Equipment))
	for slot, it := range c.Equipment {
		equipment[slot] = it.Clone()
	}
	c.Equipment = equipment

	active := make(map[string]catalog.Effect, len(c.Effects))
	for k, e := range c.Effects {
		active[k] = e.Clone()
	}
	c.Effects = active

	c.Traits = c.Traits.Clone()
	c.Abilities = c.Abilities.Clone()
	return c
}

// ActiveEffects implements effects.Target.
func (c *Character) ActiveEffects() map[string]catalog.Effect {
	if c.Effects == nil {
		c.Effects = make(map[string]catalog.Effect)
	}
	return c.Effects
}

// Stats implements effects.Target.
func (c *Character) Stats() map[string]int {
	if c.StatBlock == nil {
		c.StatBlock = make(map[string]int)
	}
	return c.StatBlock
}

// Vital implements effects.Target.
func (c *Character) Vital(v effects.Vital) *int {
	switch v {
	case effects.VitalSpeed:
		return &c.Speed
	case effects.VitalInitiative:
		return &c.Initiative
	default:
		return &c.Hitpoints
	}
}

// Token is a character placed on the board.
type Token struct {
	Row    int `json:"row"`
	Column int `json:"column"`
	// Initiative orders request execution; nil sorts last. It is copied from
	// the sheet on placement and does not follow later sheet changes.
	Initiative *int      `json:"initiative"`
	Sheet      Character `json:"sheet"`
}

// Clone returns a deep copy.
func (t Token) Clone() Token {
	if t.Initiative != nil {
		v := *t.Initiative
		t.Initiative = &v
	}
	t.Sheet = t.Sheet.Clone()
	return t
}
