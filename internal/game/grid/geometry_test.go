package grid

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
)

func mustParse(t *testing.T, rows ...string) Grid {
	t.Helper()
	flat := ""
	for _, r := range rows {
		flat += r
	}
	g, err := Parse(flat, len([]rune(rows[0])))
	if err != nil {
		t.Fatalf("parse grid: %v", err)
	}
	return g
}

func TestReachableOpenBoardGolden(t *testing.T) {
	g := mustParse(t,
		"00000",
		"00000",
		"00A00",
		"00000",
		"00000",
	)

	got, err := Reachable(g, Cell{2, 2}, 2, false)
	if err != nil {
		t.Fatalf("reachable: %v", err)
	}

	want := []Cell{
		{0, 2},
		{1, 1}, {1, 2}, {1, 3},
		{2, 0}, {2, 1}, {2, 3}, {2, 4},
		{3, 1}, {3, 2}, {3, 3},
		{4, 2},
	}
	if !reflect.DeepEqual(got.Sorted(), want) {
		t.Fatalf("reachable set mismatch\n got: %v\nwant: %v", got.Sorted(), want)
	}
}

func TestReachableWalksAroundCorners(t *testing.T) {
	// The wall forces a detour: (0,2) is 2 cells away but 6 steps by foot.
	g := mustParse(t,
		"A10",
		"010",
		"000",
	)

	got, err := Reachable(g, Cell{0, 0}, 4, false)
	if err != nil {
		t.Fatalf("reachable: %v", err)
	}
	want := []Cell{{1, 0}, {2, 0}, {2, 1}, {2, 2}}
	if !reflect.DeepEqual(got.Sorted(), want) {
		t.Fatalf("reachable set mismatch\n got: %v\nwant: %v", got.Sorted(), want)
	}

	got, _ = Reachable(g, Cell{0, 0}, 6, false)
	if !got.Has(Cell{0, 2}) {
		t.Fatalf("(0,2) should be reachable with 6 steps")
	}
}

func TestReachableNeverContainsOriginOrOccupiedCells(t *testing.T) {
	g := mustParse(t,
		"0B000",
		"00100",
		"0A0C0",
		"00000",
		"01000",
	)

	for rng := 1; rng <= 8; rng++ {
		got, err := Reachable(g, Cell{2, 1}, rng, false)
		if err != nil {
			t.Fatalf("range %d: %v", rng, err)
		}
		if got.Has(Cell{2, 1}) {
			t.Fatalf("range %d: origin present in result", rng)
		}
		for c := range got {
			if g[c.Row][c.Col] != Empty {
				t.Fatalf("range %d: occupied cell %v (%q) in result", rng, c, g[c.Row][c.Col])
			}
		}
	}
}

func TestReachableNonPositiveRangeIsEmpty(t *testing.T) {
	g := New(3, 3)
	for _, rng := range []int{0, -1} {
		for _, targeting := range []bool{false, true} {
			got, err := Reachable(g, Cell{1, 1}, rng, targeting)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("range %d targeting=%v: expected empty set, got %v", rng, targeting, got.Sorted())
			}
		}
	}
}

func TestReachableOriginOutOfBounds(t *testing.T) {
	_, err := Reachable(New(2, 2), Cell{5, 0}, 2, false)
	if !errors.Is(err, gameerr.ErrOutOfBounds) {
		t.Fatalf("expected out of bounds, got %v", err)
	}
}

func TestTargetingRaysStopAtWallsAndPassTokens(t *testing.T) {
	g := mustParse(t,
		"00000",
		"00000",
		"A0B01",
		"00000",
		"00000",
	)

	got, err := Reachable(g, Cell{2, 0}, 4, true)
	if err != nil {
		t.Fatalf("reachable: %v", err)
	}
	for _, c := range []Cell{{2, 1}, {2, 2}, {2, 3}} {
		if !got.Has(c) {
			t.Fatalf("expected %v in targeting set %v", c, got.Sorted())
		}
	}
	if got.Has(Cell{2, 4}) {
		t.Fatalf("wall cell must not be a target")
	}
	if got.Has(Cell{2, 0}) {
		t.Fatalf("origin must not be a target")
	}
	// Vertical rays and diagonals are unioned in.
	for _, c := range []Cell{{0, 0}, {4, 0}, {1, 1}, {0, 2}, {3, 1}} {
		if !got.Has(c) {
			t.Fatalf("expected %v in targeting set %v", c, got.Sorted())
		}
	}
}

func TestLineOfSightCornerRule(t *testing.T) {
	tests := []struct {
		name    string
		rows    []string
		visible bool
	}{
		{
			name:    "open",
			rows:    []string{"000", "0A0", "000"},
			visible: true,
		},
		{
			name:    "single wall above does not block",
			rows:    []string{"010", "0A0", "000"},
			visible: true,
		},
		{
			name:    "single wall beside does not block",
			rows:    []string{"000", "0A1", "000"},
			visible: true,
		},
		{
			name:    "two perpendicular walls block",
			rows:    []string{"010", "0A1", "000"},
			visible: false,
		},
		{
			name:    "wall destination is excluded",
			rows:    []string{"001", "0A0", "000"},
			visible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustParse(t, tt.rows...)
			got, err := LineOfSight(g, Cell{1, 1}, 2)
			if err != nil {
				t.Fatalf("line of sight: %v", err)
			}
			if got.Has(Cell{0, 2}) != tt.visible {
				t.Fatalf("visibility of (0,2) = %v, want %v", got.Has(Cell{0, 2}), tt.visible)
			}
		})
	}
}

func TestLineOfSightDiagonalCostsTwo(t *testing.T) {
	g := New(7, 7)

	got, _ := LineOfSight(g, Cell{3, 3}, 1)
	if len(got) != 4 {
		t.Fatalf("range 1 should reach the four adjacent diagonals, got %v", got.Sorted())
	}

	got, _ = LineOfSight(g, Cell{3, 3}, 4)
	if !got.Has(Cell{1, 5}) || got.Has(Cell{0, 6}) {
		t.Fatalf("range 4 should take exactly two diagonal steps, got %v", got.Sorted())
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(Cell{0, 0}, Cell{3, 4}); d != 7 {
		t.Fatalf("expected 7, got %d", d)
	}
	if d := Distance(Cell{5, 1}, Cell{2, 3}); d != 5 {
		t.Fatalf("expected 5, got %d", d)
	}
}
