// Package effects applies catalog effects to character sheets and manages
// the lifetime of attached effect instances.
package effects

import (
	"sort"
	"strings"

	"github.com/bytedungeon/dungeon-server-go/internal/game/catalog"
	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"go.uber.org/zap"
)

// ReversalKey is the transient active-effect key used while a synthesized
// reversal is applied. Nothing is ever left under it.
const ReversalKey = "removing_temp_item"

// Vital identifies one of the fixed numeric fields of a sheet.
type Vital int

const (
	VitalHealth Vital = iota
	VitalSpeed
	VitalInitiative
)

var vitalNames = map[string]Vital{
	"health":     VitalHealth,
	"speed":      VitalSpeed,
	"initiative": VitalInitiative,
}

// Target is a sheet effects can be attached to and applied against.
type Target interface {
	// ActiveEffects returns the live map of attached instances.
	ActiveEffects() map[string]catalog.Effect
	// Vital returns a pointer to the named vital.
	Vital(v Vital) *int
	// Stats returns the live named-stat map.
	Stats() map[string]int
}

// Applied describes a single application.
type Applied struct {
	Key     string
	Stat    string
	Delta   int
	Expired bool
}

// Engine applies effects. It holds no state of its own beyond the logger.
type Engine struct {
	logger *zap.Logger
}

// NewEngine constructs an engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Apply performs one tick of the instance attached under key: the lower
// modifier bound is added to the target stat, the duration drops by one and
// the instance is removed once it reaches zero.
func (e *Engine) Apply(t Target, key string) (Applied, error) {
	active := t.ActiveEffects()
	inst, ok := active[key]
	if !ok {
		return Applied{}, gameerr.NotFound("active effect", key)
	}
	adjust, err := resolveStat(t, inst.TargetStat)
	if err != nil {
		return Applied{}, err
	}

	delta := inst.Modifier[0]
	adjust(delta)

	inst.Duration--
	expired := inst.Duration <= 0
	if expired {
		delete(active, key)
	} else {
		active[key] = inst
	}

	e.logger.Debug("applied effect",
		zap.String("effect", key),
		zap.String("stat", inst.TargetStat),
		zap.Int("delta", delta),
		zap.Int("remaining", max(inst.Duration, 0)),
	)
	return Applied{Key: key, Stat: inst.TargetStat, Delta: delta, Expired: expired}, nil
}

// Attach clones def into the active map under key and applies it once. The
// target stat is resolved first so a bad definition leaves t untouched.
func (e *Engine) Attach(t Target, key string, def catalog.Effect) (Applied, error) {
	if _, err := resolveStat(t, def.TargetStat); err != nil {
		return Applied{}, err
	}
	t.ActiveEffects()[key] = def.Clone()
	return e.Apply(t, key)
}

// Reverse applies the negation of def's lower bound once under ReversalKey
// and discards it. It is a synthesized rollback, not a snapshot restore: any
// instance still attached for def keeps running.
func (e *Engine) Reverse(t Target, def catalog.Effect) (Applied, error) {
	rev := def.Reversed()
	rev.Duration = 1
	applied, err := e.Attach(t, ReversalKey, rev)
	delete(t.ActiveEffects(), ReversalKey)
	return applied, err
}

// Tick runs one round of upkeep over every attached instance in key order.
// Recurring effects apply once. Temporary effects only count down and, when
// they run out, have their lower bound reverted once. Every target stat is
// resolved before anything is mutated.
func (e *Engine) Tick(t Target) ([]Applied, error) {
	active := t.ActiveEffects()
	keys := make([]string, 0, len(active))
	for key, inst := range active {
		if key == ReversalKey {
			continue
		}
		if _, err := resolveStat(t, inst.TargetStat); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]Applied, 0, len(keys))
	for _, key := range keys {
		inst := active[key]
		if !inst.Temporary {
			applied, err := e.Apply(t, key)
			if err != nil {
				return results, err
			}
			results = append(results, applied)
			continue
		}

		inst.Duration--
		if inst.Duration > 0 {
			active[key] = inst
			results = append(results, Applied{Key: key, Stat: inst.TargetStat})
			continue
		}
		delete(active, key)
		applied, err := e.Reverse(t, inst)
		if err != nil {
			return results, err
		}
		applied.Key = key
		applied.Expired = true
		results = append(results, applied)
		e.logger.Debug("temporary effect expired", zap.String("effect", key))
	}
	return results, nil
}

// resolveStat maps a target-stat name to an adjuster. The fixed vitals are
// matched first, then the named stats, both without regard to case.
func resolveStat(t Target, name string) (func(int), error) {
	if v, ok := vitalNames[strings.ToLower(name)]; ok {
		ptr := t.Vital(v)
		return func(delta int) { *ptr += delta }, nil
	}
	stats := t.Stats()
	if _, ok := stats[name]; ok {
		return func(delta int) { stats[name] += delta }, nil
	}
	for stat := range stats {
		if strings.EqualFold(stat, name) {
			return func(delta int) { stats[stat] += delta }, nil
		}
	}
	return nil, gameerr.NotFound("stat", name)
}
