// Package grid holds the board representation and the geometry queries that
// run against it. Nothing in this package mutates a grid it was handed except
// Set; every query treats its input as a read-only snapshot.
package grid

import (
	"strings"

	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
)

// Grid is a rectangular board, indexed [row][col].
type Grid [][]Marker

// New returns a rows x cols grid of empty cells. Either dimension <= 0
// yields an empty grid.
func New(rows, cols int) Grid {
	if rows <= 0 || cols <= 0 {
		return Grid{}
	}
	g := make(Grid, rows)
	for r := range g {
		g[r] = emptyRow(cols)
	}
	return g
}

// Parse unflattens a board string into rows of the given width.
func Parse(flat string, width int) (Grid, error) {
	if flat == "" {
		return Grid{}, nil
	}
	if width <= 0 {
		return nil, gameerr.InvalidArgument("board width %d must be positive", width)
	}
	markers := []rune(flat)
	if len(markers)%width != 0 {
		return nil, gameerr.InvalidArgument("board of %d cells is not a multiple of width %d", len(markers), width)
	}

	g := make(Grid, 0, len(markers)/width)
	for start := 0; start < len(markers); start += width {
		row := make([]Marker, width)
		for i, r := range markers[start : start+width] {
			row[i] = Marker(r)
		}
		g = append(g, row)
	}
	return g, nil
}

// Rows returns the number of rows.
func (g Grid) Rows() int { return len(g) }

// Cols returns the number of columns, taken from the first row.
func (g Grid) Cols() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Dimensions returns (rows, cols).
func (g Grid) Dimensions() (int, int) { return g.Rows(), g.Cols() }

// InBounds reports whether c lies on the board.
func (g Grid) InBounds(c Cell) bool {
	return c.Row >= 0 && c.Col >= 0 && c.Row < g.Rows() && c.Col < g.Cols()
}

// At returns the marker at c.
func (g Grid) At(c Cell) (Marker, error) {
	if !g.InBounds(c) {
		return 0, gameerr.OutOfBounds(c.Row, c.Col, g.Rows(), g.Cols())
	}
	return g[c.Row][c.Col], nil
}

// Set writes m at c.
func (g Grid) Set(c Cell, m Marker) error {
	if !g.InBounds(c) {
		return gameerr.OutOfBounds(c.Row, c.Col, g.Rows(), g.Cols())
	}
	g[c.Row][c.Col] = m
	return nil
}

// Validate checks that every row has the same width and holds no zero markers.
func (g Grid) Validate() error {
	cols := g.Cols()
	for r, row := range g {
		if len(row) != cols {
			return gameerr.InvalidArgument("row %d has %d columns, want %d", r, len(row), cols)
		}
		for c, m := range row {
			if m == 0 {
				return gameerr.InvalidArgument("cell (%d,%d) is blank", r, c)
			}
		}
	}
	return nil
}

// Flatten returns the cells in row-major order.
func (g Grid) Flatten() []Marker {
	out := make([]Marker, 0, g.Rows()*g.Cols())
	for _, row := range g {
		out = append(out, row...)
	}
	return out
}

// String renders one line per row.
func (g Grid) String() string {
	var b strings.Builder
	for _, row := range g {
		for _, m := range row {
			b.WriteRune(rune(m))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for r, row := range g {
		out[r] = append([]Marker(nil), row...)
	}
	return out
}

// Resized returns a copy padded with empty cells or truncated from the far
// edges to rows x cols. The receiver is not modified.
func (g Grid) Resized(rows, cols int) Grid {
	if rows <= 0 || cols <= 0 {
		return Grid{}
	}
	out := make(Grid, rows)
	for r := range out {
		if r >= len(g) {
			out[r] = emptyRow(cols)
			continue
		}
		row := emptyRow(cols)
		copy(row, g[r])
		out[r] = row
	}
	return out
}

func (g Grid) isWall(r, c int) bool {
	return g[r][c] == Wall
}

func emptyRow(cols int) []Marker {
	row := make([]Marker, cols)
	for c := range row {
		row[c] = Empty
	}
	return row
}
