package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedungeon/dungeon-server-go/internal/game"
	"github.com/bytedungeon/dungeon-server-go/internal/game/catalog"
)

// catalogRows holds the definitions read from a catalog CSV, keyed by their
// catalog key.
type catalogRows struct {
	Effects   map[string]catalog.Effect
	Abilities map[string]catalog.Ability
	Items     map[string]catalog.Item
}

func (c *catalogRows) count() int {
	return len(c.Effects) + len(c.Abilities) + len(c.Items)
}

// csvRow gives access to a record by header name. Missing columns read as
// empty strings.
type csvRow struct {
	line   int
	index  map[string]int
	record []string
}

func (r csvRow) get(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r csvRow) int(column string, def int) (int, error) {
	s := r.get(column)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s %q is not an integer", r.line, column, s)
	}
	return v, nil
}

// pair reads "low..high" or a single value used for both bounds.
func (r csvRow) pair(column string) ([2]int, error) {
	s := r.get(column)
	if s == "" {
		return [2]int{}, nil
	}
	low, high, found := strings.Cut(s, "..")
	if !found {
		high = low
	}
	var out [2]int
	for i, part := range []string{low, high} {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return [2]int{}, fmt.Errorf("line %d: %s %q is not a range", r.line, column, s)
		}
		out[i] = v
	}
	return out, nil
}

func (r csvRow) list(column string) []string {
	var out []string
	for _, part := range strings.Split(r.get(column), ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r csvRow) keys(column string) catalog.KeySet {
	return catalog.NewKeySet(r.list(column)...)
}

func parseBool(s string) bool {
	return strings.ToLower(s) == "true" || s == "1" || strings.ToLower(s) == "yes"
}

// parseCatalog reads a catalog CSV. The header must name at least the kind
// and key columns; every row problem is reported, not just the first.
func parseCatalog(in io.Reader) (*catalogRows, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("CSV file is empty")
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"kind", "key"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("CSV header has no %q column", required)
		}
	}

	rows := &catalogRows{
		Effects:   make(map[string]catalog.Effect),
		Abilities: make(map[string]catalog.Ability),
		Items:     make(map[string]catalog.Item),
	}
	var errs []error
	for i, record := range records[1:] {
		row := csvRow{line: i + 2, index: index, record: record}
		if err := rows.add(row); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *catalogRows) add(row csvRow) error {
	key := row.get("key")
	if key == "" {
		return fmt.Errorf("line %d: key is required", row.line)
	}
	name := row.get("name")
	if name == "" {
		name = key
	}

	switch kind := strings.ToLower(row.get("kind")); kind {
	case "effect":
		if _, dup := c.Effects[key]; dup {
			return fmt.Errorf("line %d: effect %q defined twice", row.line, key)
		}
		duration, err := row.int("duration", 1)
		if err != nil {
			return err
		}
		modifier, err := row.pair("modifier")
		if err != nil {
			return err
		}
		c.Effects[key] = catalog.Effect{
			Name:       name,
			Duration:   duration,
			TargetStat: row.get("target_stat"),
			Modifier:   modifier,
			Temporary:  parseBool(row.get("temporary")),
		}

	case "ability":
		if _, dup := c.Abilities[key]; dup {
			return fmt.Errorf("line %d: ability %q defined twice", row.line, key)
		}
		rng, err := row.int("range", 0)
		if err != nil {
			return err
		}
		points, err := row.int("action_points", 0)
		if err != nil {
			return err
		}
		roll, err := row.pair("casting_roll")
		if err != nil {
			return err
		}
		ability := catalog.Ability{
			Name:          name,
			Range:         rng,
			ActionPoints:  points,
			CastingRoll:   roll,
			TargetEffects: row.keys("target_effects"),
			CasterEffects: row.keys("caster_effects"),
		}
		if stat := row.get("stat_modifier"); stat != "" {
			ability.StatModifier = &stat
		}
		// Requirement groups are separated by ';', alternatives inside a
		// group by '|'.
		for _, group := range row.list("requirements") {
			ability.Requirements = append(ability.Requirements, strings.Split(group, "|"))
		}
		c.Abilities[key] = ability

	case "item":
		if _, dup := c.Items[key]; dup {
			return fmt.Errorf("line %d: item %q defined twice", row.line, key)
		}
		uses, err := row.int("uses", -1)
		if err != nil {
			return err
		}
		weight, err := row.int("weight", 0)
		if err != nil {
			return err
		}
		c.Items[key] = catalog.Item{
			Name:      name,
			Uses:      uses,
			Weight:    weight,
			Slots:     row.list("slots"),
			Effects:   row.keys("effects"),
			Abilities: row.keys("abilities"),
		}

	default:
		return fmt.Errorf("line %d: unknown kind %q", row.line, kind)
	}
	return nil
}

// apply registers every definition on g, effects first so abilities and
// items can refer to them. Definitions with unresolved references are
// skipped and reported together.
func (c *catalogRows) apply(g *game.Session) error {
	var errs []error
	for _, key := range sortedKeys(c.Effects) {
		if err := g.AddEffect(key, c.Effects[key]); err != nil {
			errs = append(errs, fmt.Errorf("effect %q: %w", key, err))
		}
	}
	for _, key := range sortedKeys(c.Abilities) {
		if err := g.AddAbility(key, c.Abilities[key]); err != nil {
			errs = append(errs, fmt.Errorf("ability %q: %w", key, err))
		}
	}
	for _, key := range sortedKeys(c.Items) {
		if err := g.AddItem(key, c.Items[key]); err != nil {
			errs = append(errs, fmt.Errorf("item %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
