package game

import (
	"strings"
	"testing"

	"github.com/bytedungeon/dungeon-server-go/internal/game/catalog"
	"github.com/bytedungeon/dungeon-server-go/internal/game/grid"
	"github.com/bytedungeon/dungeon-server-go/internal/game/rules"
	"go.uber.org/zap/zaptest"
)

// SessionTestHarness wires a session to an event bus and records what it
// publishes.
type SessionTestHarness struct {
	t       *testing.T
	session *Session
	bus     *rules.EventBus
	events  []rules.Event
}

// NewSessionTestHarness creates a session on an empty rows x cols board.
func NewSessionTestHarness(t *testing.T, rows, cols int, opts Options) *SessionTestHarness {
	t.Helper()
	h := &SessionTestHarness{t: t, bus: rules.NewEventBus()}
	h.bus.Subscribe(func(e rules.Event) {
		h.events = append(h.events, e)
	})
	opts.Events = h.bus
	h.session = NewSession(zaptest.NewLogger(t), opts)

	if err := h.session.LoadBoard(strings.Repeat("0", rows*cols), cols); err != nil {
		t.Fatalf("failed to load board: %v", err)
	}
	h.registerCatalog()
	return h
}

func (h *SessionTestHarness) registerCatalog() {
	effs := map[string]catalog.Effect{
		"might":  {Name: "Might", Duration: 3, TargetStat: "strength", Modifier: [2]int{2, 4}, Temporary: true},
		"heal":   {Name: "Heal", Duration: 1, TargetStat: "health", Modifier: [2]int{5, 5}},
		"burn":   {Name: "Burn", Duration: 2, TargetStat: "health", Modifier: [2]int{-4, -4}},
		"focus":  {Name: "Focus", Duration: 1, TargetStat: "wisdom", Modifier: [2]int{1, 1}},
		"poison": {Name: "Poison", Duration: 3, TargetStat: "Health", Modifier: [2]int{-1, -1}},
		"jinx":   {Name: "Jinx", Duration: 2, TargetStat: "luck", Modifier: [2]int{-1, -1}},
	}
	for k, e := range effs {
		h.must(h.session.AddEffect(k, e))
	}

	abilities := map[string]catalog.Ability{
		"cleave":   {Name: "Cleave", Range: 1, ActionPoints: 2},
		"smite":    {Name: "Smite", Range: 3, ActionPoints: 1, TargetEffects: catalog.NewKeySet("burn"), CasterEffects: catalog.NewKeySet("focus")},
		"curse":    {Name: "Curse", Range: 3, TargetEffects: catalog.NewKeySet("jinx"), CasterEffects: catalog.NewKeySet("focus")},
		"meditate": {Name: "Meditate", Range: 0, CasterEffects: catalog.NewKeySet("focus")},
	}
	for k, a := range abilities {
		h.must(h.session.AddAbility(k, a))
	}

	items := map[string]catalog.Item{
		"axe":    {Name: "Axe", Uses: 1, Weight: 6, Slots: []string{"main_hand"}, Effects: catalog.NewKeySet("might"), Abilities: catalog.NewKeySet("cleave")},
		"sword":  {Name: "Sword", Uses: 1, Weight: 3, Slots: []string{"main_hand"}},
		"pike":   {Name: "Pike", Uses: 1, Weight: 8, Slots: []string{"main_hand", "off_hand"}},
		"potion": {Name: "Potion", Uses: 2, Weight: 1, Effects: catalog.NewKeySet("heal")},
		"torch":  {Name: "Torch", Uses: -1, Weight: 1, Effects: catalog.NewKeySet("focus")},
	}
	for k, it := range items {
		h.must(h.session.AddItem(k, it))
	}
}

// AddHero adds a character with round stats and places it when row >= 0.
func (h *SessionTestHarness) AddHero(id rune, initiative, row, col int) grid.Marker {
	h.t.Helper()
	m := grid.Marker(id)
	h.must(h.session.AddCharacter(m, CharacterSpec{
		Name:         "Hero " + string(id),
		Speed:        4,
		Initiative:   initiative,
		Hitpoints:    20,
		MaxHP:        20,
		Strength:     10,
		Dexterity:    10,
		Constitution: 10,
		Intelligence: 10,
		Wisdom:       10,
		Charisma:     10,
	}))
	if row >= 0 {
		h.must(h.session.PlaceToken(m, row, col))
	}
	return m
}

// Sheet returns the current sheet of id.
func (h *SessionTestHarness) Sheet(id grid.Marker) Character {
	h.t.Helper()
	c, err := h.session.CharacterByID(id)
	if err != nil {
		h.t.Fatalf("character %q: %v", id.String(), err)
	}
	return c
}

// EventTypes returns the types of every published event, in order.
func (h *SessionTestHarness) EventTypes() []rules.EventType {
	out := make([]rules.EventType, len(h.events))
	for i, e := range h.events {
		out[i] = e.Type
	}
	return out
}

// ResetEvents forgets recorded events.
func (h *SessionTestHarness) ResetEvents() { h.events = nil }

func (h *SessionTestHarness) must(err error) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("unexpected error: %v", err)
	}
}
