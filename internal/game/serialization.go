package game

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/bytedungeon/dungeon-server-go/internal/game/catalog"
	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/bytedungeon/dungeon-server-go/internal/game/grid"
	"github.com/bytedungeon/dungeon-server-go/internal/game/rules"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// Snapshot is the full session state in document form. Its JSON encoding is
// the session import/export format.
type Snapshot struct {
	Characters map[grid.Marker]Token      `json:"characters"`
	Sheets     map[grid.Marker]Character  `json:"sheets"`
	Abilities  map[string]catalog.Ability `json:"abilities"`
	Effects    map[string]catalog.Effect  `json:"effects"`
	Items      map[string]catalog.Item    `json:"items"`
	Grid       grid.Grid                  `json:"grid"`
	Requests   []rules.Bucket             `json:"requests"`
}

// SerializationChecksum is a deterministic digest of a snapshot.
type SerializationChecksum struct {
	Hash    string // BLAKE2b-256 of the canonical encoding, hex
	Version int
}

// Snapshot returns a deep copy of the session state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Characters: make(map[grid.Marker]Token, len(s.tokens)),
		Sheets:     make(map[grid.Marker]Character, len(s.sheets)),
		Abilities:  s.catalogs.Abilities.All(),
		Effects:    s.catalogs.Effects.All(),
		Items:      s.catalogs.Items.All(),
		Grid:       s.board.Clone(),
		Requests:   s.queue.Buckets(),
	}
	for id, tok := range s.tokens {
		snap.Characters[id] = tok.Clone()
	}
	for id, sheet := range s.sheets {
		snap.Sheets[id] = sheet.Clone()
	}
	return snap
}

// Restore validates snap and replaces the whole session state with it. On
// error the session is unchanged.
func (s *Session) Restore(snap Snapshot) error {
	board, err := validateSnapshot(snap)
	if err != nil {
		return err
	}

	s.board = board
	s.tokens = make(map[grid.Marker]*Token, len(snap.Characters))
	for id, tok := range snap.Characters {
		cp := tok.Clone()
		s.tokens[id] = &cp
	}
	s.sheets = make(map[grid.Marker]*Character, len(snap.Sheets))
	for id, sheet := range snap.Sheets {
		cp := sheet.Clone()
		s.sheets[id] = &cp
	}
	s.catalogs = catalog.NewCatalogs()
	s.catalogs.Abilities.Replace(snap.Abilities)
	s.catalogs.Effects.Replace(snap.Effects)
	s.catalogs.Items.Replace(snap.Items)
	s.queue = rules.NewQueue()
	s.queue.Replace(snap.Requests)
	return nil
}

// validateSnapshot checks the document invariants and returns the board
// with every token written onto its cell.
func validateSnapshot(snap Snapshot) (grid.Grid, error) {
	board := snap.Grid.Clone()
	if board == nil {
		board = grid.Grid{}
	}
	if err := board.Validate(); err != nil {
		return nil, err
	}

	for id := range snap.Sheets {
		if !id.IsToken() {
			return nil, gameerr.InvalidArgument("sheet id %q is reserved", id.String())
		}
		if _, placed := snap.Characters[id]; placed {
			return nil, gameerr.InvalidArgument("id %q is both placed and unplaced", id.String())
		}
	}

	for _, id := range sortedMarkers(snap.Characters) {
		tok := snap.Characters[id]
		if !id.IsToken() {
			return nil, gameerr.InvalidArgument("token id %q is reserved", id.String())
		}
		at := grid.Cell{Row: tok.Row, Col: tok.Column}
		m, err := board.At(at)
		if err != nil {
			return nil, fmt.Errorf("token %q: %w", id.String(), err)
		}
		if !m.IsEmpty() && m != id {
			return nil, gameerr.InvalidArgument("token %q at %v collides with %q", id.String(), at, m.String())
		}
		board[at.Row][at.Col] = id
	}

	for r, row := range board {
		for c, m := range row {
			if !m.IsToken() {
				continue
			}
			tok, ok := snap.Characters[m]
			if !ok || tok.Row != r || tok.Column != c {
				return nil, gameerr.InvalidArgument("cell (%d,%d) shows %q but no token stands there", r, c, m.String())
			}
		}
	}

	if err := validateReferences(snap); err != nil {
		return nil, err
	}
	return board, nil
}

// validateReferences checks that every catalog key the document mentions
// resolves against the document's own catalogs.
func validateReferences(snap Snapshot) error {
	cats := catalog.NewCatalogs()
	cats.Abilities.Replace(snap.Abilities)
	cats.Effects.Replace(snap.Effects)
	cats.Items.Replace(snap.Items)

	for _, key := range cats.Abilities.Keys() {
		ability, _ := cats.Abilities.Get(key)
		if err := cats.CheckAbility(ability); err != nil {
			return fmt.Errorf("ability %q: %w", key, err)
		}
	}
	for _, key := range cats.Items.Keys() {
		item, _ := cats.Items.Get(key)
		if err := cats.CheckItem(item); err != nil {
			return fmt.Errorf("item %q: %w", key, err)
		}
	}

	sheets := make(map[grid.Marker]Character, len(snap.Sheets)+len(snap.Characters))
	for id, sheet := range snap.Sheets {
		sheets[id] = sheet
	}
	for id, tok := range snap.Characters {
		sheets[id] = tok.Sheet
	}
	for _, id := range sortedMarkers(sheets) {
		if err := checkSheet(cats, sheets[id]); err != nil {
			return fmt.Errorf("character %q: %w", id.String(), err)
		}
	}
	return nil
}

func checkSheet(cats catalog.Catalogs, sheet Character) error {
	for key := range sheet.Abilities {
		if !cats.Abilities.Has(key) {
			return gameerr.NotFound("ability", key)
		}
	}
	for key := range sheet.Effects {
		if !cats.Effects.Has(key) {
			return gameerr.NotFound("effect", key)
		}
	}
	for i, item := range sheet.Items {
		if err := cats.CheckItem(item); err != nil {
			return fmt.Errorf("inventory item %d: %w", i, err)
		}
	}
	for slot, item := range sheet.Equipment {
		if err := cats.CheckItem(item); err != nil {
			return fmt.Errorf("equipment slot %q: %w", slot, err)
		}
	}
	return nil
}

// Export encodes the session as a JSON document.
func (s *Session) Export() ([]byte, error) {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

// Import replaces the session with a JSON document produced by Export.
func (s *Session) Import(doc []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return gameerr.InvalidArgument("decode session document: %v", err)
	}
	if err := s.Restore(snap); err != nil {
		return err
	}
	s.emit(rules.NewEvent(rules.EventSessionImported, ""))
	s.logger.Info("session imported",
		zap.Int("tokens", len(s.tokens)),
		zap.Int("sheets", len(s.sheets)),
		zap.Int("pending_requests", s.queue.Len()),
	)
	return s.commit(nil)
}

// ComputeChecksum digests the canonical encoding of a snapshot. JSON object
// keys are emitted in sorted order and key sets as sorted arrays, so equal
// states always hash equally.
func (snap Snapshot) ComputeChecksum() (*SerializationChecksum, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	sum := blake2b.Sum256(data)
	return &SerializationChecksum{Hash: hex.EncodeToString(sum[:]), Version: 1}, nil
}

// VerifyChecksum reports whether snap digests to expected.
func (snap Snapshot) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := snap.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// Checksum digests the current session state.
func (s *Session) Checksum() (string, error) {
	sum, err := s.Snapshot().ComputeChecksum()
	if err != nil {
		return "", err
	}
	return sum.Hash, nil
}

// sessionBookmark is the mutable part of the state, captured before an
// operation that may fail part way. Catalogs never change mid-operation.
type sessionBookmark struct {
	board  grid.Grid
	tokens map[grid.Marker]Token
	sheets map[grid.Marker]Character
	queue  []rules.Bucket
}

func (s *Session) bookmark() sessionBookmark {
	mark := sessionBookmark{
		board:  s.board.Clone(),
		tokens: make(map[grid.Marker]Token, len(s.tokens)),
		sheets: make(map[grid.Marker]Character, len(s.sheets)),
		queue:  s.queue.Buckets(),
	}
	for id, tok := range s.tokens {
		mark.tokens[id] = tok.Clone()
	}
	for id, sheet := range s.sheets {
		mark.sheets[id] = sheet.Clone()
	}
	return mark
}

func (s *Session) rollback(mark sessionBookmark) {
	s.board = mark.board
	s.tokens = make(map[grid.Marker]*Token, len(mark.tokens))
	for id, tok := range mark.tokens {
		tok := tok
		s.tokens[id] = &tok
	}
	s.sheets = make(map[grid.Marker]*Character, len(mark.sheets))
	for id, sheet := range mark.sheets {
		sheet := sheet
		s.sheets[id] = &sheet
	}
	s.queue.Replace(mark.queue)
}
