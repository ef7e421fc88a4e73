// Package gameerr defines the failure taxonomy shared by the engine packages.
//
// Callers match with errors.Is; every engine error wraps exactly one of these.
package gameerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing caster, target, sheet, slot or catalog key.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPlacement reports a destination cell that is already occupied.
	ErrInvalidPlacement = errors.New("invalid placement")
	// ErrOutOfBounds reports a coordinate outside the grid extent.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrInvalidArgument reports malformed input such as a reserved or duplicate identifier.
	ErrInvalidArgument = errors.New("invalid argument")
)

// NotFound wraps ErrNotFound with the kind and key that failed to resolve.
func NotFound(kind, key string) error {
	return fmt.Errorf("%s %q: %w", kind, key, ErrNotFound)
}

// OutOfBounds wraps ErrOutOfBounds with the offending coordinate and grid extent.
func OutOfBounds(row, col, rows, cols int) error {
	return fmt.Errorf("cell (%d,%d) outside %dx%d grid: %w", row, col, rows, cols, ErrOutOfBounds)
}

// InvalidPlacement wraps ErrInvalidPlacement with the occupied coordinate.
func InvalidPlacement(row, col int, occupant string) error {
	return fmt.Errorf("cell (%d,%d) occupied by %q: %w", row, col, occupant, ErrInvalidPlacement)
}

// InvalidArgument wraps ErrInvalidArgument with a formatted reason.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}
