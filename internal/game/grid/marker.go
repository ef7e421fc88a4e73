package grid

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/bytedungeon/dungeon-server-go/internal/game/gameerr"
)

// Marker is the content of a single grid cell. The two reserved values mark
// empty floor and permanent walls; any other rune identifies a placed token.
type Marker rune

const (
	// Empty is passable floor.
	Empty Marker = '0'
	// Wall blocks movement and line of sight.
	Wall Marker = '1'
)

// ParseMarker converts a one-character string into a Marker.
func ParseMarker(s string) (Marker, error) {
	r, size := utf8.DecodeRuneInString(s)
	if s == "" || r == utf8.RuneError || size != len(s) {
		return 0, gameerr.InvalidArgument("marker %q must be exactly one character", s)
	}
	return Marker(r), nil
}

// IsEmpty reports whether the cell is passable floor.
func (m Marker) IsEmpty() bool { return m == Empty }

// IsWall reports whether the cell is permanent blocking terrain.
func (m Marker) IsWall() bool { return m == Wall }

// IsToken reports whether the marker identifies a token rather than terrain.
func (m Marker) IsToken() bool { return m != Empty && m != Wall && m != 0 }

// String returns the marker as a one-character string.
func (m Marker) String() string { return string(rune(m)) }

// MarshalText encodes the marker as its character, which also makes it
// usable as a JSON object key.
func (m Marker) MarshalText() ([]byte, error) {
	if m == 0 {
		return nil, fmt.Errorf("zero marker")
	}
	return []byte(string(rune(m))), nil
}

// UnmarshalText decodes a one-character marker.
func (m *Marker) UnmarshalText(text []byte) error {
	parsed, err := ParseMarker(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Cell is a grid coordinate.
type Cell struct {
	Row int
	Col int
}

// Add returns the cell offset by the given row and column deltas.
func (c Cell) Add(dr, dc int) Cell {
	return Cell{Row: c.Row + dr, Col: c.Col + dc}
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// MarshalJSON encodes the cell as a [row, col] pair.
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

// UnmarshalJSON decodes a [row, col] pair.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode cell: %w", err)
	}
	c.Row, c.Col = pair[0], pair[1]
	return nil
}
