package catalog

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetMissingKey(t *testing.T) {
	reg := NewRegistry[Effect]("effect")

	_, err := reg.Get("burn")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gameerr.ErrNotFound))
	assert.Contains(t, err.Error(), `effect "burn"`)
}

func TestRegistryClonesOnPutAndGet(t *testing.T) {
	reg := NewRegistry[Item]("item")
	sword := Item{Name: "Sword", Uses: -1, Slots: []string{"main_hand"}, Effects: NewKeySet("sharp")}
	reg.Put("sword", sword)

	sword.Slots[0] = "off_hand"
	sword.Effects.Add("dull")

	got, err := reg.Get("sword")
	require.NoError(t, err)
	assert.Equal(t, []string{"main_hand"}, got.Slots)
	assert.False(t, got.Effects.Has("dull"))

	got.Effects.Add("rusty")
	again, _ := reg.Get("sword")
	assert.False(t, again.Effects.Has("rusty"), "mutating a fetched item must not leak into the registry")
}

func TestRegistryKeysSorted(t *testing.T) {
	reg := NewRegistry[Ability]("ability")
	for _, k := range []string{"smite", "bless", "heal"} {
		reg.Put(k, Ability{Name: k})
	}
	assert.Equal(t, []string{"bless", "heal", "smite"}, reg.Keys())
	assert.Equal(t, 3, reg.Len())
	assert.True(t, reg.Has("heal"))
	assert.False(t, reg.Has("fireball"))
}

func TestCatalogsCloneIsIndependent(t *testing.T) {
	c := NewCatalogs()
	c.Effects.Put("poison", Effect{Name: "Poison", Duration: 3, TargetStat: "health", Modifier: [2]int{-2, -1}})

	cp := c.Clone()
	cp.Effects.Put("poison", Effect{Name: "Weak poison", Duration: 1})
	cp.Items.Put("potion", Item{Name: "Potion"})

	orig, err := c.Effects.Get("poison")
	require.NoError(t, err)
	assert.Equal(t, 3, orig.Duration)
	assert.Equal(t, 0, c.Items.Len())
}

func TestCheckReferences(t *testing.T) {
	c := NewCatalogs()
	c.Effects.Put("heal", Effect{Name: "Heal"})

	assert.NoError(t, c.CheckItem(Item{Effects: NewKeySet("heal")}))
	err := c.CheckItem(Item{Effects: NewKeySet("heal"), Abilities: NewKeySet("cleave")})
	assert.True(t, errors.Is(err, gameerr.ErrNotFound))

	assert.NoError(t, c.CheckAbility(Ability{CasterEffects: NewKeySet("heal")}))
	assert.Error(t, c.CheckAbility(Ability{TargetEffects: NewKeySet("burn")}))
}

func TestKeySetJSONIsSorted(t *testing.T) {
	data, err := json.Marshal(NewKeySet("c", "a", "b"))
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b","c"]`, string(data))

	var s KeySet
	require.NoError(t, json.Unmarshal([]byte(`["x","y","x"]`), &s))
	assert.True(t, s.Equal(NewKeySet("x", "y")))
}

func TestAbilityCloneDeep(t *testing.T) {
	stat := "wisdom"
	a := Ability{
		StatModifier:  &stat,
		Requirements:  [][]string{{"cleric", "level3"}},
		TargetEffects: NewKeySet("heal"),
	}
	cp := a.Clone()
	*cp.StatModifier = "charisma"
	cp.Requirements[0][0] = "paladin"
	cp.TargetEffects.Remove("heal")

	assert.Equal(t, "wisdom", *a.StatModifier)
	assert.Equal(t, "cleric", a.Requirements[0][0])
	assert.True(t, a.TargetEffects.Has("heal"))
}

func TestEffectReversed(t *testing.T) {
	e := Effect{Modifier: [2]int{3, 6}}
	assert.Equal(t, [2]int{-3, 6}, e.Reversed().Modifier)
	assert.Equal(t, [2]int{3, 6}, e.Modifier)
}
