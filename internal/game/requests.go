package game

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/bytedungeon/dungeon-server-go/internal/game/catalog"
	"github.com/bytedungeon/dungeon-server-go/internal/game/effects"
	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/bytedungeon/dungeon-server-go/internal/game/grid"
	"github.com/bytedungeon/dungeon-server-go/internal/game/rules"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Build validates an intent against the current state and returns the
// canonical request for it. Nothing is executed or queued.
func (s *Session) Build(kind rules.ActionKind, subtypeKey string, caster grid.Marker, row, col int) (rules.Request, error) {
	tok, ok := s.tokens[caster]
	if !ok {
		return rules.Request{}, gameerr.NotFound("token", caster.String())
	}

	req := rules.Request{
		ID:     uuid.NewString(),
		Caster: caster,
		Kind:   kind,
	}
	if subtypeKey != "" {
		key := subtypeKey
		req.SubtypeKey = &key
	}
	target := grid.Cell{Row: row, Col: col}

	switch kind {
	case rules.ActionMove:
		m, err := s.board.At(target)
		if err != nil {
			return rules.Request{}, err
		}
		if !m.IsEmpty() {
			return rules.Request{}, gameerr.InvalidPlacement(row, col, m.String())
		}
		req.TargetCell = &target

	case rules.ActionUseItem:
		if _, err := inventoryIndex(&tok.Sheet, subtypeKey); err != nil {
			return rules.Request{}, err
		}

	case rules.ActionUseAbility:
		ability, err := s.catalogs.Abilities.Get(subtypeKey)
		if err != nil {
			return rules.Request{}, err
		}
		if ability.Range > 0 {
			m, err := s.board.At(target)
			if err != nil {
				return rules.Request{}, err
			}
			req.TargetCell = &target
			if _, placed := s.tokens[m]; placed {
				req.TargetTokens = []grid.Marker{m}
			}
		}

	case rules.ActionUnequip:
		if _, ok := tok.Sheet.Equipment[subtypeKey]; !ok {
			return rules.Request{}, gameerr.NotFound("equipment slot", subtypeKey)
		}

	default:
		return rules.Request{}, gameerr.InvalidArgument("unknown action type %d", int(kind))
	}
	return req, nil
}

// MakeRequest builds a request and, depending on the request mode, executes
// it immediately or queues it under its caster.
func (s *Session) MakeRequest(kind rules.ActionKind, subtypeKey string, caster grid.Marker, row, col int) (rules.Request, error) {
	req, err := s.Build(kind, subtypeKey, caster, row, col)
	if err != nil {
		return rules.Request{}, err
	}
	if s.opts.RequestMode == RequestModeDeferred {
		return req, s.InsertRequests(caster, req)
	}
	return req, s.ExecuteRequest(req)
}

// InsertRequests appends a batch of requests to caster's bucket. Requests
// without an id get one.
func (s *Session) InsertRequests(caster grid.Marker, reqs ...rules.Request) error {
	if !caster.IsToken() {
		return gameerr.InvalidArgument("caster %q is reserved", caster.String())
	}
	batch := make([]rules.Request, len(reqs))
	for i, req := range reqs {
		if req.Caster != caster {
			return gameerr.InvalidArgument("request %d is cast by %q, not %q", i, req.Caster.String(), caster.String())
		}
		req = req.Clone()
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		batch[i] = req
	}
	for _, req := range batch {
		s.emit(rules.NewRequestEvent(rules.EventRequestQueued, req))
	}
	s.queue.Insert(caster, batch...)
	return s.commit(nil)
}

// OrderRequests sorts the pending queue by caster initiative and returns the
// flattened execution order. Higher initiative goes first; casters without
// an initiative, or no longer on the board, go last. Equal initiatives keep
// the order in which their buckets were first queued.
func (s *Session) OrderRequests() []rules.Request {
	ordered := s.queue.Order(s.initiativeOf)
	s.emit(rules.NewEvent(rules.EventRequestsOrdered, ""))
	_ = s.commit(nil)
	return ordered
}

func (s *Session) initiativeOf(caster grid.Marker) (int, bool) {
	tok, ok := s.tokens[caster]
	if !ok || tok.Initiative == nil {
		return 0, false
	}
	return *tok.Initiative, true
}

// PendingRequests returns the queued requests in current queue order.
func (s *Session) PendingRequests() []rules.Request {
	return s.queue.Flatten()
}

// CancelRequest drops a queued request by id.
func (s *Session) CancelRequest(id string) error {
	if _, ok := s.queue.Remove(id); !ok {
		return gameerr.NotFound("request", id)
	}
	return nil
}

// ExecutePending orders the queue and executes every request in it. The
// queue is emptied even when some requests fail; their errors are joined.
func (s *Session) ExecutePending() error {
	ordered := s.OrderRequests()
	s.queue.Clear()

	var errs []error
	for _, req := range ordered {
		if err := s.ExecuteRequest(req); err != nil {
			errs = append(errs, fmt.Errorf("request %s: %w", req.ID, err))
		}
	}
	return errors.Join(errs...)
}

// ExecuteRequest applies a built request. A request whose caster is no
// longer on the board is dropped without error. A failed request leaves the
// session exactly as it was.
func (s *Session) ExecuteRequest(req rules.Request) (err error) {
	tok, ok := s.tokens[req.Caster]
	if !ok {
		s.logger.Debug("dropped stale request",
			zap.String("request_id", req.ID),
			zap.String("caster", req.Caster.String()),
			zap.Stringer("action", req.Kind),
		)
		s.emit(rules.NewRequestEvent(rules.EventRequestDropped, req))
		return s.commit(nil)
	}

	mark := s.bookmark()
	defer func() {
		if err != nil {
			s.rollback(mark)
			s.logger.Info("request failed, state restored",
				zap.String("request_id", req.ID),
				zap.String("caster", req.Caster.String()),
				zap.Stringer("action", req.Kind),
				zap.Error(err),
			)
			err = s.commit(err)
			if s.events != nil {
				evt := rules.NewRequestEvent(rules.EventRequestFailed, req)
				evt.SessionID = s.id
				evt.Metadata["error"] = err.Error()
				s.events.Publish(evt)
			}
			return
		}
		s.emit(rules.NewRequestEvent(rules.EventRequestExecuted, req))
		err = s.commit(nil)
		s.record(req)
	}()

	switch req.Kind {
	case rules.ActionMove:
		return s.moveToken(req.Caster, tok, req.TargetCell)
	case rules.ActionUseItem:
		return s.useItem(req.Caster, tok, req.Subtype())
	case rules.ActionUseAbility:
		return s.useAbility(req.Caster, tok, req.Subtype(), req.TargetTokens)
	case rules.ActionUnequip:
		return s.unequip(req.Caster, &tok.Sheet, req.Subtype())
	default:
		return gameerr.InvalidArgument("unknown action type %d", int(req.Kind))
	}
}

func (s *Session) moveToken(id grid.Marker, tok *Token, dest *grid.Cell) error {
	if dest == nil {
		return gameerr.InvalidArgument("move request without a target cell")
	}
	m, err := s.board.At(*dest)
	if err != nil {
		return err
	}
	if !m.IsEmpty() {
		return gameerr.InvalidPlacement(dest.Row, dest.Col, m.String())
	}
	s.board[tok.Row][tok.Column] = grid.Empty
	s.board[dest.Row][dest.Col] = id
	tok.Row, tok.Column = dest.Row, dest.Col
	s.emit(rules.NewCellEvent(rules.EventTokenMoved, id.String(), dest.Row, dest.Col))
	return nil
}

func inventoryIndex(sheet *Character, key string) (int, error) {
	idx, err := strconv.Atoi(key)
	if err != nil || idx < 0 || idx >= len(sheet.Items) {
		return 0, gameerr.NotFound("inventory item", key)
	}
	return idx, nil
}

// useItem consumes one use of the item at key and, for items with slots,
// equips a copy of it. Granted abilities are added and granted effects
// attached either way. The inventory copy leaves once its uses run out.
func (s *Session) useItem(id grid.Marker, tok *Token, key string) error {
	sheet := &tok.Sheet
	idx, err := inventoryIndex(sheet, key)
	if err != nil {
		return err
	}
	item := sheet.Items[idx].Clone()
	item.Granted = nil

	if item.Uses >= 0 {
		item.Uses--
		sheet.Items[idx].Uses = item.Uses
		if item.Uses <= 0 {
			sheet.Items = append(sheet.Items[:idx:idx], sheet.Items[idx+1:]...)
			evt := rules.NewEvent(rules.EventItemConsumed, id.String())
			evt.Key = item.Name
			s.emit(evt)
		}
	}

	if sheet.Abilities == nil {
		sheet.Abilities = catalog.NewKeySet()
	}
	if item.Equippable() {
		for _, slot := range item.Slots {
			if _, taken := sheet.Equipment[slot]; taken && s.opts.ReturnDisplacedEquipment {
				if err := s.unequip(id, sheet, slot); err != nil {
					return err
				}
			}
		}
		item.Granted = catalog.NewKeySet()
		for key := range item.Abilities {
			if !sheet.Abilities.Has(key) {
				item.Granted.Add(key)
			}
		}
		if sheet.Equipment == nil {
			sheet.Equipment = make(map[string]catalog.Item)
		}
		for _, slot := range item.Slots {
			sheet.Equipment[slot] = item.Clone()
		}
		evt := rules.NewEvent(rules.EventItemEquipped, id.String())
		evt.Key = item.Name
		s.emit(evt)
	}

	for _, key := range item.Abilities.Sorted() {
		if !s.catalogs.Abilities.Has(key) {
			return gameerr.NotFound("ability", key)
		}
		sheet.Abilities.Add(key)
	}
	return s.attachAll(id, sheet, item.Effects)
}

func (s *Session) useAbility(id grid.Marker, tok *Token, key string, targets []grid.Marker) error {
	ability, err := s.catalogs.Abilities.Get(key)
	if err != nil {
		return err
	}
	if err := s.attachAll(id, &tok.Sheet, ability.CasterEffects); err != nil {
		return err
	}
	for _, target := range targets {
		other, ok := s.tokens[target]
		if !ok {
			return gameerr.NotFound("target token", target.String())
		}
		if err := s.attachAll(target, &other.Sheet, ability.TargetEffects); err != nil {
			return err
		}
	}
	return nil
}

// unequip clears slot and every other slot the item there occupies, removes
// the abilities its equip added, applies a one-off reversal of each effect it
// granted and puts the item back in the inventory.
func (s *Session) unequip(id grid.Marker, sheet *Character, slot string) error {
	item, ok := sheet.Equipment[slot]
	if !ok {
		return gameerr.NotFound("equipment slot", slot)
	}
	delete(sheet.Equipment, slot)
	for _, other := range item.Slots {
		delete(sheet.Equipment, other)
	}
	for key := range item.Granted {
		sheet.Abilities.Remove(key)
	}
	item.Granted = nil
	for _, key := range item.Effects.Sorted() {
		def, err := s.catalogs.Effects.Get(key)
		if err != nil {
			return err
		}
		applied, err := s.effects.Reverse(sheet, def)
		if err != nil {
			return err
		}
		evt := rules.NewEvent(rules.EventEffectApplied, id.String())
		evt.Key = key
		evt.Amount = applied.Delta
		s.emit(evt)
	}
	sheet.Items = append(sheet.Items, item)

	evt := rules.NewEvent(rules.EventItemUnequipped, id.String())
	evt.Key = item.Name
	s.emit(evt)
	return nil
}

// attachAll clones each catalog effect in keys onto sheet and applies it once.
func (s *Session) attachAll(id grid.Marker, sheet *Character, keys catalog.KeySet) error {
	for _, key := range keys.Sorted() {
		def, err := s.catalogs.Effects.Get(key)
		if err != nil {
			return err
		}
		applied, err := s.effects.Attach(sheet, key, def)
		if err != nil {
			return err
		}
		s.emitApplied(id, applied)
	}
	return nil
}

func (s *Session) emitApplied(id grid.Marker, applied effects.Applied) {
	evt := rules.NewEvent(rules.EventEffectApplied, id.String())
	evt.Key = applied.Key
	evt.Amount = applied.Delta
	s.emit(evt)
	if applied.Expired {
		expired := rules.NewEvent(rules.EventEffectExpired, id.String())
		expired.Key = applied.Key
		s.emit(expired)
	}
}

// AdvanceRound runs per-round effect upkeep for every placed token, in id
// order. On failure the whole round is rolled back.
func (s *Session) AdvanceRound() error {
	mark := s.bookmark()
	for _, id := range sortedMarkers(s.tokens) {
		tok := s.tokens[id]
		results, err := s.effects.Tick(&tok.Sheet)
		if err != nil {
			s.rollback(mark)
			return s.commit(fmt.Errorf("advance round for %q: %w", id.String(), err))
		}
		for _, applied := range results {
			s.emitApplied(id, applied)
		}
	}
	s.emit(rules.NewEvent(rules.EventRoundAdvanced, ""))
	return s.commit(nil)
}
