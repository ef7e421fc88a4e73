package game

import (
	"errors"
	"testing"

	"github.com/bytedungeon/dungeon-server-go/internal/game/catalog"
	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
	"github.com/bytedungeon/dungeon-server-go/internal/game/grid"
	"github.com/bytedungeon/dungeon-server-go/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCharacterFillsBaseStats(t *testing.T) {
	h := NewSessionTestHarness(t, 3, 3, DefaultOptions())
	require.NoError(t, h.session.AddCharacter('E', CharacterSpec{Name: "Elf", Wisdom: 14, Trait: "darkvision"}))

	sheet := h.Sheet('E')
	assert.Equal(t, "Elf", sheet.Name)
	assert.Len(t, sheet.StatBlock, 6)
	assert.Equal(t, 14, sheet.StatBlock[StatWisdom])
	assert.True(t, sheet.Traits.Has("darkvision"))
	assert.Equal(t, []grid.Marker{'E'}, h.session.UnplacedIDs())
}

func TestAddCharacterRejectsReservedAndDuplicateIDs(t *testing.T) {
	h := NewSessionTestHarness(t, 3, 3, DefaultOptions())
	h.AddHero('A', 1, -1, 0)

	for _, id := range []grid.Marker{grid.Empty, grid.Wall, 'A'} {
		err := h.session.AddCharacter(id, CharacterSpec{})
		assert.True(t, errors.Is(err, gameerr.ErrInvalidArgument), "id %q: %v", id.String(), err)
	}
}

func TestPlaceTokenMovesSheetToBoard(t *testing.T) {
	h := NewSessionTestHarness(t, 3, 3, DefaultOptions())
	h.AddHero('A', 7, 1, 2)

	m, err := h.session.Cell(1, 2)
	require.NoError(t, err)
	assert.Equal(t, grid.Marker('A'), m)
	assert.Empty(t, h.session.UnplacedIDs())

	tok, err := h.session.Token('A')
	require.NoError(t, err)
	require.NotNil(t, tok.Initiative)
	assert.Equal(t, 7, *tok.Initiative)
	assert.Equal(t, []rules.EventType{rules.EventTokenPlaced}, h.EventTypes())

	sheet, err := h.session.CharacterAt(1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Hero A", sheet.Name)
}

func TestPlaceTokenFailures(t *testing.T) {
	h := NewSessionTestHarness(t, 3, 3, DefaultOptions())
	h.AddHero('A', 1, 0, 0)
	h.AddHero('B', 1, -1, 0)
	h.ResetEvents()

	assert.True(t, errors.Is(h.session.PlaceToken('B', 0, 0), gameerr.ErrInvalidPlacement))
	assert.True(t, errors.Is(h.session.PlaceToken('B', 5, 0), gameerr.ErrOutOfBounds))
	assert.True(t, errors.Is(h.session.PlaceToken('Z', 1, 1), gameerr.ErrNotFound))
	assert.True(t, errors.Is(h.session.PlaceToken('A', 1, 1), gameerr.ErrInvalidArgument))
	assert.Empty(t, h.EventTypes(), "failed operations publish nothing")
	assert.Equal(t, []grid.Marker{'B'}, h.session.UnplacedIDs())
}

func TestToggleCellCycle(t *testing.T) {
	h := NewSessionTestHarness(t, 2, 2, DefaultOptions())
	h.AddHero('A', 1, 1, 1)

	next, err := h.session.ToggleCell(0, 0)
	require.NoError(t, err)
	assert.Equal(t, grid.Wall, next)

	next, err = h.session.ToggleCell(0, 0)
	require.NoError(t, err)
	assert.Equal(t, grid.Empty, next)

	next, err = h.session.ToggleCell(1, 1)
	require.NoError(t, err)
	assert.Equal(t, grid.Empty, next)
	_, err = h.session.Token('A')
	assert.True(t, errors.Is(err, gameerr.ErrNotFound))
	assert.Equal(t, []grid.Marker{'A'}, h.session.UnplacedIDs())

	_, err = h.session.ToggleCell(2, 0)
	assert.True(t, errors.Is(err, gameerr.ErrOutOfBounds))
}

func TestResizeUnplacesTruncatedTokens(t *testing.T) {
	h := NewSessionTestHarness(t, 4, 4, DefaultOptions())
	h.AddHero('A', 1, 0, 0)
	h.AddHero('B', 1, 3, 3)

	require.NoError(t, h.session.Resize(2, 5))
	rows, cols := h.session.Dimensions()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 5, cols)
	assert.Equal(t, []grid.Marker{'A'}, h.session.PlacedIDs())
	assert.Equal(t, []grid.Marker{'B'}, h.session.UnplacedIDs())

	m, _ := h.session.Cell(0, 4)
	assert.Equal(t, grid.Empty, m, "new columns are padded with empty cells")

	assert.True(t, errors.Is(h.session.Resize(-1, 2), gameerr.ErrInvalidArgument))
}

func TestLoadBoardPlacesAndMovesTokens(t *testing.T) {
	h := NewSessionTestHarness(t, 2, 3, DefaultOptions())
	h.AddHero('A', 1, 0, 0)
	h.AddHero('B', 1, 1, 0)
	h.AddHero('C', 1, -1, 0)

	// A moves, B disappears, C is placed.
	require.NoError(t, h.session.LoadBoard("01A"+"C00", 3))

	tok, err := h.session.Token('A')
	require.NoError(t, err)
	assert.Equal(t, 0, tok.Row)
	assert.Equal(t, 2, tok.Column)
	assert.Equal(t, []grid.Marker{'A', 'C'}, h.session.PlacedIDs())
	assert.Equal(t, []grid.Marker{'B'}, h.session.UnplacedIDs())
	assert.Equal(t, "01A\nC00\n", h.session.Board().String())
}

func TestLoadBoardRejectsUnknownAndRepeatedIDs(t *testing.T) {
	h := NewSessionTestHarness(t, 2, 2, DefaultOptions())
	h.AddHero('A', 1, 0, 0)
	before := h.session.Board().String()

	assert.True(t, errors.Is(h.session.LoadBoard("0Q00", 2), gameerr.ErrNotFound))
	assert.True(t, errors.Is(h.session.LoadBoard("AA00", 2), gameerr.ErrInvalidArgument))
	assert.True(t, errors.Is(h.session.LoadBoard("000", 2), gameerr.ErrInvalidArgument))
	assert.Equal(t, before, h.session.Board().String())
}

func TestGiveItemAndAbility(t *testing.T) {
	h := NewSessionTestHarness(t, 3, 3, DefaultOptions())
	h.AddHero('A', 1, -1, 0)
	h.AddHero('B', 1, 0, 0)

	require.NoError(t, h.session.GiveItem('A', "potion"))
	require.NoError(t, h.session.GiveItem('B', "torch"))
	require.NoError(t, h.session.GiveAbility('A', "smite"))

	assert.Len(t, h.Sheet('A').Items, 1)
	assert.Equal(t, "Torch", h.Sheet('B').Items[0].Name)
	assert.True(t, h.Sheet('A').Abilities.Has("smite"))

	assert.True(t, errors.Is(h.session.GiveItem('A', "lute"), gameerr.ErrNotFound))
	assert.True(t, errors.Is(h.session.GiveItem('Z', "potion"), gameerr.ErrNotFound))
	assert.True(t, errors.Is(h.session.GiveAbility('A', "fly"), gameerr.ErrNotFound))
}

func TestCollectCellOptionsAndDistance(t *testing.T) {
	h := NewSessionTestHarness(t, 5, 5, DefaultOptions())
	h.AddHero('A', 1, 2, 2)

	cells, err := h.session.CollectCellOptions(2, 2, 2, false)
	require.NoError(t, err)
	assert.Len(t, cells, 12)
	assert.Equal(t, grid.Cell{Row: 0, Col: 2}, cells[0])

	_, err = h.session.CollectCellOptions(9, 9, 2, false)
	assert.True(t, errors.Is(err, gameerr.ErrOutOfBounds))

	assert.Equal(t, 5, CellDistance(0, 0, 2, 3))
}

func TestSetInitiative(t *testing.T) {
	h := NewSessionTestHarness(t, 3, 3, DefaultOptions())
	h.AddHero('A', 4, 0, 0)

	require.NoError(t, h.session.SetInitiative('A', nil))
	tok, _ := h.session.Token('A')
	assert.Nil(t, tok.Initiative)

	v := 9
	require.NoError(t, h.session.SetInitiative('A', &v))
	v = 1
	tok, _ = h.session.Token('A')
	assert.Equal(t, 9, *tok.Initiative)

	assert.True(t, errors.Is(h.session.SetInitiative('Z', nil), gameerr.ErrNotFound))
}

func TestResetClearsEverything(t *testing.T) {
	h := NewSessionTestHarness(t, 3, 3, DefaultOptions())
	h.AddHero('A', 1, 0, 0)
	h.ResetEvents()

	h.session.Reset()
	rows, cols := h.session.Dimensions()
	assert.Zero(t, rows)
	assert.Zero(t, cols)
	assert.Empty(t, h.session.PlacedIDs())
	assert.Zero(t, h.session.Catalogs().Items.Len())
	assert.Equal(t, []rules.EventType{rules.EventSessionReset}, h.EventTypes())
}

func TestCatalogRejectsDanglingKeys(t *testing.T) {
	h := NewSessionTestHarness(t, 3, 3, DefaultOptions())

	err := h.session.AddItem("cursed_ring", catalog.Item{Name: "Cursed Ring", Uses: -1, Effects: catalog.NewKeySet("nope")})
	assert.True(t, errors.Is(err, gameerr.ErrNotFound))
	err = h.session.AddItem("spellbook", catalog.Item{Name: "Spellbook", Uses: -1, Abilities: catalog.NewKeySet("fireball")})
	assert.True(t, errors.Is(err, gameerr.ErrNotFound))
	err = h.session.AddAbility("haunt", catalog.Ability{Name: "Haunt", CasterEffects: catalog.NewKeySet("ghost")})
	assert.True(t, errors.Is(err, gameerr.ErrNotFound))

	cats := h.session.Catalogs()
	assert.False(t, cats.Items.Has("cursed_ring"))
	assert.False(t, cats.Items.Has("spellbook"))
	assert.False(t, cats.Abilities.Has("haunt"))

	require.NoError(t, h.session.AddAbility("haunt", catalog.Ability{Name: "Haunt", CasterEffects: catalog.NewKeySet("burn")}))
	require.NoError(t, h.session.AddItem("spellbook", catalog.Item{Name: "Spellbook", Uses: -1, Abilities: catalog.NewKeySet("haunt")}))
}
