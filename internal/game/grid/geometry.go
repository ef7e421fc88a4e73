package grid

import "sort"

// CellSet is an unordered set of cells.
type CellSet map[Cell]struct{}

// Has reports membership.
func (s CellSet) Has(c Cell) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the cells in row-major order.
func (s CellSet) Sorted() []Cell {
	out := make([]Cell, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

var orthogonal = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

var diagonal = [4][2]int{{-1, 1}, {-1, -1}, {1, 1}, {1, -1}}

type frontierEntry struct {
	cell      Cell
	remaining int
}

// Reachable returns the cells an actor at origin can reach with the given
// range budget.
//
// In movement mode the result is every empty cell connected to origin by at
// most rng orthogonal steps through empty cells. In targeting mode it is the
// union of four straight rays (stopped by walls, passing over tokens) and
// LineOfSight. The origin is never part of the result.
func Reachable(g Grid, origin Cell, rng int, forTargeting bool) (CellSet, error) {
	if !g.InBounds(origin) {
		return nil, errOrigin(g, origin)
	}
	result := make(CellSet)
	if rng <= 0 {
		return result, nil
	}

	if forTargeting {
		for _, d := range orthogonal {
			cur := origin
			for step := 0; step < rng; step++ {
				cur = cur.Add(d[0], d[1])
				if !g.InBounds(cur) || g.isWall(cur.Row, cur.Col) {
					break
				}
				result[cur] = struct{}{}
			}
		}
		for c := range lineOfSight(g, origin, rng) {
			result[c] = struct{}{}
		}
		return result, nil
	}

	// best holds the largest remaining budget seen per cell; a cell is only
	// expanded again if reached with more budget left.
	best := map[Cell]int{origin: rng}
	frontier := []frontierEntry{{cell: origin, remaining: rng}}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for _, d := range orthogonal {
			next := cur.cell.Add(d[0], d[1])
			if !g.InBounds(next) || g[next.Row][next.Col] != Empty {
				continue
			}
			remaining := cur.remaining - 1
			if prev, seen := best[next]; seen && prev >= remaining {
				continue
			}
			best[next] = remaining
			result[next] = struct{}{}
			if remaining > 0 {
				frontier = append(frontier, frontierEntry{cell: next, remaining: remaining})
			}
		}
	}
	delete(result, origin)
	return result, nil
}

// LineOfSight walks the four diagonals from origin. Each diagonal step spends
// two units of budget and may be taken while the spent budget is below rng.
// A step is blocked when both orthogonal neighbours it squeezes between are
// walls; a wall destination ends the walk without being included.
func LineOfSight(g Grid, origin Cell, rng int) (CellSet, error) {
	if !g.InBounds(origin) {
		return nil, errOrigin(g, origin)
	}
	return lineOfSight(g, origin, rng), nil
}

func lineOfSight(g Grid, origin Cell, rng int) CellSet {
	result := make(CellSet)
	for _, d := range diagonal {
		cur := origin
		for spent := 0; spent < rng; spent += 2 {
			next := cur.Add(d[0], d[1])
			if !g.InBounds(next) {
				break
			}
			if g.isWall(cur.Row+d[0], cur.Col) && g.isWall(cur.Row, cur.Col+d[1]) {
				break
			}
			if g.isWall(next.Row, next.Col) {
				break
			}
			result[next] = struct{}{}
			cur = next
		}
	}
	return result
}

// Distance is the Manhattan distance between two cells.
func Distance(a, b Cell) int {
	return abs(a.Row-b.Row) + abs(a.Col-b.Col)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func errOrigin(g Grid, origin Cell) error {
	_, err := g.At(origin)
	return err
}
