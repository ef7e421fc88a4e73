package catalog

import (
	"sort"

	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
)

// Definition is implemented by every catalog entry type.
type Definition[T any] interface {
	Clone() T
}

// Registry is a key to definition map. Values are cloned on Put and on Get,
// so callers never hold a reference into the registry.
type Registry[T Definition[T]] struct {
	kind    string
	entries map[string]T
}

// NewRegistry creates an empty registry. kind names the entry type in
// NotFound errors.
func NewRegistry[T Definition[T]](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, entries: make(map[string]T)}
}

// Put inserts or replaces the definition under key.
func (r *Registry[T]) Put(key string, def T) {
	r.entries[key] = def.Clone()
}

// Get returns a copy of the definition under key.
func (r *Registry[T]) Get(key string) (T, error) {
	def, ok := r.entries[key]
	if !ok {
		var zero T
		return zero, gameerr.NotFound(r.kind, key)
	}
	return def.Clone(), nil
}

// Has reports whether key is registered.
func (r *Registry[T]) Has(key string) bool {
	_, ok := r.entries[key]
	return ok
}

// Keys returns every key in lexical order.
func (r *Registry[T]) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (r *Registry[T]) Len() int { return len(r.entries) }

// All returns a copy of every entry.
func (r *Registry[T]) All() map[string]T {
	out := make(map[string]T, len(r.entries))
	for k, v := range r.entries {
		out[k] = v.Clone()
	}
	return out
}

// Replace swaps the contents for a copy of entries.
func (r *Registry[T]) Replace(entries map[string]T) {
	r.entries = make(map[string]T, len(entries))
	for k, v := range entries {
		r.entries[k] = v.Clone()
	}
}

// Catalogs bundles the three shared registries of a session.
type Catalogs struct {
	Abilities *Registry[Ability]
	Effects   *Registry[Effect]
	Items     *Registry[Item]
}

// NewCatalogs returns empty registries.
func NewCatalogs() Catalogs {
	return Catalogs{
		Abilities: NewRegistry[Ability]("ability"),
		Effects:   NewRegistry[Effect]("effect"),
		Items:     NewRegistry[Item]("item"),
	}
}

// Clone returns an independent copy of all three registries.
func (c Catalogs) Clone() Catalogs {
	out := NewCatalogs()
	out.Abilities.Replace(c.Abilities.entries)
	out.Effects.Replace(c.Effects.entries)
	out.Items.Replace(c.Items.entries)
	return out
}

// CheckItem verifies that every key an item references resolves.
func (c Catalogs) CheckItem(item Item) error {
	for key := range item.Effects {
		if !c.Effects.Has(key) {
			return gameerr.NotFound("effect", key)
		}
	}
	for _, set := range []KeySet{item.Abilities, item.Granted} {
		for key := range set {
			if !c.Abilities.Has(key) {
				return gameerr.NotFound("ability", key)
			}
		}
	}
	return nil
}

// CheckAbility verifies that every effect key an ability references resolves.
func (c Catalogs) CheckAbility(ability Ability) error {
	for _, set := range []KeySet{ability.CasterEffects, ability.TargetEffects} {
		for key := range set {
			if !c.Effects.Has(key) {
				return gameerr.NotFound("effect", key)
			}
		}
	}
	return nil
}
