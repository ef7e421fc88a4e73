package game

import (
	"sort"

	"github.com/bytedungeon/dungeon-server-go/internal/game/catalog"
	"github.com/bytedungeon/dungeon-server-go/internal/game/effects"
	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/bytedungeon/dungeon-server-go/internal/game/grid"
	"github.com/bytedungeon/dungeon-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// RequestMode selects what MakeRequest does with a built request.
type RequestMode string

const (
	// RequestModeImmediate executes the request as soon as it is built.
	RequestModeImmediate RequestMode = "immediate"
	// RequestModeDeferred queues the request for ExecutePending.
	RequestModeDeferred RequestMode = "deferred"
)

// Options configures a Session.
type Options struct {
	ID          string
	RequestMode RequestMode
	// ReturnDisplacedEquipment unequips whatever occupies a slot before a new
	// item goes in. When false the previous occupant is overwritten and lost.
	ReturnDisplacedEquipment bool
	// Events receives every change after it is applied. May be nil.
	Events *rules.EventBus
	// Recorder records a frame after every executed request. May be nil.
	Recorder *ReplayRecorder
}

// DefaultOptions returns immediate mode with displaced equipment returned.
func DefaultOptions() Options {
	return Options{
		RequestMode:              RequestModeImmediate,
		ReturnDisplacedEquipment: true,
	}
}

// Session is the aggregate root of one game: the board, placed tokens,
// unplaced sheets, the catalogs and the pending request queue.
//
// A Session is not safe for concurrent use. Callers serialize every call.
type Session struct {
	id       string
	logger   *zap.Logger
	opts     Options
	effects  *effects.Engine
	events   *rules.EventBus
	recorder *ReplayRecorder

	board    grid.Grid
	tokens   map[grid.Marker]*Token
	sheets   map[grid.Marker]*Character
	catalogs catalog.Catalogs
	queue    *rules.Queue

	// outbox holds events raised by the running operation. They are
	// published only if it succeeds.
	outbox []rules.Event
}

// NewSession creates an empty session.
func NewSession(logger *zap.Logger, opts Options) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestMode == "" {
		opts.RequestMode = RequestModeImmediate
	}
	s := &Session{
		id:       opts.ID,
		logger:   logger.With(zap.String("session_id", opts.ID)),
		opts:     opts,
		events:   opts.Events,
		recorder: opts.Recorder,
	}
	s.effects = effects.NewEngine(s.logger)
	s.clear()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Options returns the options the session was built with.
func (s *Session) Options() Options { return s.opts }

func (s *Session) clear() {
	s.board = grid.Grid{}
	s.tokens = make(map[grid.Marker]*Token)
	s.sheets = make(map[grid.Marker]*Character)
	s.catalogs = catalog.NewCatalogs()
	s.queue = rules.NewQueue()
	s.outbox = nil
}

// Reset returns the session to empty defaults.
func (s *Session) Reset() {
	s.clear()
	s.emit(rules.NewEvent(rules.EventSessionReset, ""))
	_ = s.commit(nil)
	s.logger.Info("session reset")
}

func (s *Session) emit(evt rules.Event) {
	s.outbox = append(s.outbox, evt)
}

// commit publishes the outbox when err is nil and drops it otherwise.
func (s *Session) commit(err error) error {
	outbox := s.outbox
	s.outbox = nil
	if err != nil || s.events == nil {
		return err
	}
	for _, evt := range outbox {
		evt.SessionID = s.id
		s.events.Publish(evt)
	}
	return nil
}

// Cell returns the marker at (row, col).
func (s *Session) Cell(row, col int) (grid.Marker, error) {
	return s.board.At(grid.Cell{Row: row, Col: col})
}

// Dimensions returns the board size as (rows, cols).
func (s *Session) Dimensions() (int, int) { return s.board.Dimensions() }

// Flatten returns every cell in row-major order.
func (s *Session) Flatten() []grid.Marker { return s.board.Flatten() }

// Board returns a copy of the board.
func (s *Session) Board() grid.Grid { return s.board.Clone() }

// Token returns a copy of a placed token.
func (s *Session) Token(id grid.Marker) (Token, error) {
	tok, ok := s.tokens[id]
	if !ok {
		return Token{}, gameerr.NotFound("token", id.String())
	}
	return tok.Clone(), nil
}

// CharacterByID returns a copy of the sheet for id, placed or not.
func (s *Session) CharacterByID(id grid.Marker) (Character, error) {
	sheet, err := s.sheet(id)
	if err != nil {
		return Character{}, err
	}
	return sheet.Clone(), nil
}

// CharacterAt returns a copy of the sheet of the token on (row, col).
func (s *Session) CharacterAt(row, col int) (Character, error) {
	m, err := s.Cell(row, col)
	if err != nil {
		return Character{}, err
	}
	tok, ok := s.tokens[m]
	if !ok {
		return Character{}, gameerr.NotFound("token at "+grid.Cell{Row: row, Col: col}.String(), m.String())
	}
	return tok.Sheet.Clone(), nil
}

// PlacedIDs returns the ids of every placed token in ascending order.
func (s *Session) PlacedIDs() []grid.Marker {
	return sortedMarkers(s.tokens)
}

// UnplacedIDs returns the ids of every unplaced sheet in ascending order.
func (s *Session) UnplacedIDs() []grid.Marker {
	return sortedMarkers(s.sheets)
}

// sheet resolves id to the live sheet, placed tokens first.
func (s *Session) sheet(id grid.Marker) (*Character, error) {
	if tok, ok := s.tokens[id]; ok {
		return &tok.Sheet, nil
	}
	if sheet, ok := s.sheets[id]; ok {
		return sheet, nil
	}
	return nil, gameerr.NotFound("character", id.String())
}

// AddCharacter adds a new unplaced sheet under id.
func (s *Session) AddCharacter(id grid.Marker, spec CharacterSpec) error {
	if !id.IsToken() {
		return gameerr.InvalidArgument("character id %q is reserved", id.String())
	}
	if s.idInUse(id) {
		return gameerr.InvalidArgument("character id %q already in use", id.String())
	}
	sheet := NewCharacter(spec)
	s.sheets[id] = &sheet
	s.logger.Debug("added character", zap.String("id", id.String()), zap.String("name", spec.Name))
	return nil
}

func (s *Session) idInUse(id grid.Marker) bool {
	_, placed := s.tokens[id]
	_, unplaced := s.sheets[id]
	return placed || unplaced
}

// AddItem registers an item definition. Every effect and ability it names
// must already be registered.
func (s *Session) AddItem(key string, item catalog.Item) error {
	if key == "" {
		return gameerr.InvalidArgument("item key must not be empty")
	}
	if err := s.catalogs.CheckItem(item); err != nil {
		return err
	}
	item.Granted = nil
	s.catalogs.Items.Put(key, item)
	return nil
}

// AddAbility registers an ability definition. Every effect it names must
// already be registered.
func (s *Session) AddAbility(key string, ability catalog.Ability) error {
	if key == "" {
		return gameerr.InvalidArgument("ability key must not be empty")
	}
	if err := s.catalogs.CheckAbility(ability); err != nil {
		return err
	}
	s.catalogs.Abilities.Put(key, ability)
	return nil
}

// AddEffect registers an effect definition.
func (s *Session) AddEffect(key string, effect catalog.Effect) error {
	if key == "" {
		return gameerr.InvalidArgument("effect key must not be empty")
	}
	s.catalogs.Effects.Put(key, effect)
	return nil
}

// Catalogs returns a copy of the session catalogs.
func (s *Session) Catalogs() catalog.Catalogs { return s.catalogs.Clone() }

// GiveItem appends a copy of the catalog item to id's inventory.
func (s *Session) GiveItem(id grid.Marker, key string) error {
	item, err := s.catalogs.Items.Get(key)
	if err != nil {
		return err
	}
	sheet, err := s.sheet(id)
	if err != nil {
		return err
	}
	sheet.Items = append(sheet.Items, item)
	return nil
}

// GiveAbility adds a catalog ability key to id's ability set.
func (s *Session) GiveAbility(id grid.Marker, key string) error {
	if !s.catalogs.Abilities.Has(key) {
		return gameerr.NotFound("ability", key)
	}
	sheet, err := s.sheet(id)
	if err != nil {
		return err
	}
	if sheet.Abilities == nil {
		sheet.Abilities = catalog.NewKeySet()
	}
	sheet.Abilities.Add(key)
	return nil
}

// PlaceToken moves an unplaced sheet onto the board at (row, col).
func (s *Session) PlaceToken(id grid.Marker, row, col int) error {
	return s.commit(s.placeToken(id, grid.Cell{Row: row, Col: col}))
}

func (s *Session) placeToken(id grid.Marker, at grid.Cell) error {
	sheet, ok := s.sheets[id]
	if !ok {
		if _, placed := s.tokens[id]; placed {
			return gameerr.InvalidArgument("character %q is already placed", id.String())
		}
		return gameerr.NotFound("unplaced character", id.String())
	}
	m, err := s.board.At(at)
	if err != nil {
		return err
	}
	if !m.IsEmpty() {
		return gameerr.InvalidPlacement(at.Row, at.Col, m.String())
	}

	initiative := sheet.Initiative
	s.tokens[id] = &Token{Row: at.Row, Column: at.Col, Initiative: &initiative, Sheet: *sheet}
	delete(s.sheets, id)
	s.board[at.Row][at.Col] = id

	s.emit(rules.NewCellEvent(rules.EventTokenPlaced, id.String(), at.Row, at.Col))
	return nil
}

// unplace returns a token's sheet to the unplaced registry and clears its
// cell if the board still shows it there.
func (s *Session) unplace(id grid.Marker) {
	tok, ok := s.tokens[id]
	if !ok {
		return
	}
	sheet := tok.Sheet
	s.sheets[id] = &sheet
	delete(s.tokens, id)
	at := grid.Cell{Row: tok.Row, Col: tok.Column}
	if m, err := s.board.At(at); err == nil && m == id {
		s.board[at.Row][at.Col] = grid.Empty
	}
	s.emit(rules.NewCellEvent(rules.EventTokenRemoved, id.String(), tok.Row, tok.Column))
}

// ToggleCell flips an empty cell to a wall. A wall becomes empty, and a
// token's cell becomes empty with its sheet returned to the unplaced
// registry. The new marker is returned.
func (s *Session) ToggleCell(row, col int) (grid.Marker, error) {
	at := grid.Cell{Row: row, Col: col}
	m, err := s.board.At(at)
	if err != nil {
		return 0, err
	}
	next := grid.Empty
	switch {
	case m.IsEmpty():
		next = grid.Wall
	case m.IsToken():
		s.unplace(m)
	}
	s.board[row][col] = next
	s.emit(rules.NewCellEvent(rules.EventCellToggled, "", row, col))
	return next, s.commit(nil)
}

// Resize pads or truncates the board to rows x cols. Tokens that fall off
// the board are returned to the unplaced registry.
func (s *Session) Resize(rows, cols int) error {
	if rows < 0 || cols < 0 {
		return gameerr.InvalidArgument("board size %dx%d must not be negative", rows, cols)
	}
	resized := s.board.Resized(rows, cols)
	for _, id := range sortedMarkers(s.tokens) {
		tok := s.tokens[id]
		if !resized.InBounds(grid.Cell{Row: tok.Row, Col: tok.Column}) {
			s.unplace(id)
		}
	}
	s.board = resized
	evt := rules.NewEvent(rules.EventBoardResized, "")
	evt.Row, evt.Col = rows, cols
	s.emit(evt)
	return s.commit(nil)
}

// LoadBoard replaces the board with a flattened board string. Token markers
// in the string decide where characters stand: placed tokens move to the cell
// showing their id (or are unplaced if it is absent) and unplaced sheets whose
// id appears are placed there. Unknown or repeated ids are rejected.
func (s *Session) LoadBoard(flat string, width int) error {
	board, err := grid.Parse(flat, width)
	if err != nil {
		return err
	}

	found := make(map[grid.Marker]grid.Cell)
	for r, row := range board {
		for c, m := range row {
			if !m.IsToken() {
				continue
			}
			if !s.idInUse(m) {
				return gameerr.NotFound("character", m.String())
			}
			if prev, dup := found[m]; dup {
				return gameerr.InvalidArgument("id %q appears at %v and %v", m.String(), prev, grid.Cell{Row: r, Col: c})
			}
			found[m] = grid.Cell{Row: r, Col: c}
		}
	}

	mark := s.bookmark()
	for _, id := range sortedMarkers(s.tokens) {
		at, ok := found[id]
		if !ok {
			s.unplace(id)
			continue
		}
		tok := s.tokens[id]
		if tok.Row != at.Row || tok.Column != at.Col {
			tok.Row, tok.Column = at.Row, at.Col
			s.emit(rules.NewCellEvent(rules.EventTokenMoved, id.String(), at.Row, at.Col))
		}
	}
	s.board = board
	for _, id := range sortedMarkers(s.sheets) {
		at, ok := found[id]
		if !ok {
			continue
		}
		// The board already shows the id; placeToken expects an empty cell.
		s.board[at.Row][at.Col] = grid.Empty
		if err := s.placeToken(id, at); err != nil {
			s.rollback(mark)
			return s.commit(err)
		}
	}
	return s.commit(nil)
}

// SetInitiative sets or clears the ordering initiative of a placed token.
func (s *Session) SetInitiative(id grid.Marker, initiative *int) error {
	tok, ok := s.tokens[id]
	if !ok {
		return gameerr.NotFound("token", id.String())
	}
	if initiative == nil {
		tok.Initiative = nil
		return nil
	}
	v := *initiative
	tok.Initiative = &v
	return nil
}

// CollectCellOptions returns the cells reachable from (row, col), sorted in
// row-major order.
func (s *Session) CollectCellOptions(row, col, rng int, forTargeting bool) ([]grid.Cell, error) {
	cells, err := grid.Reachable(s.board, grid.Cell{Row: row, Col: col}, rng, forTargeting)
	if err != nil {
		return nil, err
	}
	return cells.Sorted(), nil
}

// CellDistance is the Manhattan distance between two cells.
func CellDistance(srcRow, srcCol, dstRow, dstCol int) int {
	return grid.Distance(grid.Cell{Row: srcRow, Col: srcCol}, grid.Cell{Row: dstRow, Col: dstCol})
}

func sortedMarkers[V any](m map[grid.Marker]V) []grid.Marker {
	out := make([]grid.Marker, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
