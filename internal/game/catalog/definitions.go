// Package catalog holds the shared Ability, Effect and Item definitions that
// sheets and items refer to by key.
package catalog

// Item is a consumable or a piece of equipment. Items are copied by value
// into inventories and equipment slots; no two sheets share one.
type Item struct {
	Name string `json:"name"`
	// Uses left; negative means unlimited.
	Uses   int `json:"uses"`
	Weight int `json:"weight"`
	// Slots the item occupies when equipped. Empty for consumables.
	Slots []string `json:"slots"`
	// Effects applied when the item is used or equipped.
	Effects KeySet `json:"effects"`
	// Abilities granted while equipped.
	Abilities KeySet `json:"abilities"`
	// Granted is set on equipped copies only: the subset of Abilities the
	// holder did not already have when the item went on.
	Granted KeySet `json:"granted,omitempty"`
}

// Equippable reports whether using the item puts it into equipment slots.
func (i Item) Equippable() bool { return len(i.Slots) > 0 }

// Clone returns a deep copy.
func (i Item) Clone() Item {
	i.Slots = append([]string(nil), i.Slots...)
	i.Effects = i.Effects.Clone()
	i.Abilities = i.Abilities.Clone()
	if i.Granted != nil {
		i.Granted = i.Granted.Clone()
	}
	return i
}

// Ability is a special action such as a spell or an attack.
type Ability struct {
	Name         string `json:"name"`
	Range        int    `json:"range"`
	ActionPoints int    `json:"action_points"`
	// CastingRoll is the [low, high] roll bound. Carried for clients; the
	// engine resolves abilities deterministically and never reads it.
	CastingRoll  [2]int  `json:"casting_roll"`
	StatModifier *string `json:"stat_modifier"`
	// Requirements lists alternative groups; one full group should hold.
	// Not enforced yet.
	Requirements  [][]string `json:"requirements"`
	TargetEffects KeySet     `json:"target_effects"`
	CasterEffects KeySet     `json:"caster_effects"`
}

// Clone returns a deep copy.
func (a Ability) Clone() Ability {
	if a.StatModifier != nil {
		stat := *a.StatModifier
		a.StatModifier = &stat
	}
	if a.Requirements != nil {
		reqs := make([][]string, len(a.Requirements))
		for i, group := range a.Requirements {
			reqs[i] = append([]string(nil), group...)
		}
		a.Requirements = reqs
	}
	a.TargetEffects = a.TargetEffects.Clone()
	a.CasterEffects = a.CasterEffects.Clone()
	return a
}

// Effect is a stat modifier with a lifetime counted in charges.
type Effect struct {
	Name       string `json:"name"`
	Duration   int    `json:"duration"`
	TargetStat string `json:"target_stat"`
	// Modifier is the [low, high] bound; only the low bound is applied.
	Modifier [2]int `json:"modifier"`
	// Temporary marks a buff/debuff held while active. Non-temporary effects
	// recur every tick (damage over time).
	Temporary bool `json:"temporary"`
}

// Clone returns a copy. Effect has no reference fields, the method exists
// so call sites read the same for every definition type.
func (e Effect) Clone() Effect { return e }

// Reversed returns a copy whose low modifier bound is negated.
func (e Effect) Reversed() Effect {
	e.Modifier[0] = -e.Modifier[0]
	return e
}
