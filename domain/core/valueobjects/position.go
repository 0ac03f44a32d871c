package valueobjects

import "math"

// Position is a 2-D layout coordinate. Positions assigned by the extractor
// only spread nodes apart; they carry no meaning.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a position
func NewPosition(x, y float64) Position {
	return Position{X: x, Y: y}
}

// GridPosition places the index-th node of a session on a staggered grid
func GridPosition(index, columns int, spacing float64) Position {
	if columns < 1 {
		columns = 1
	}
	row := index / columns
	col := index % columns

	// Offset odd rows by half a cell so edges between rows stay readable
	offset := 0.0
	if row%2 == 1 {
		offset = spacing / 2
	}

	return Position{
		X: float64(col)*spacing + offset,
		Y: float64(row) * spacing,
	}
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	return math.Abs(p.X-other.X) < 1e-9 && math.Abs(p.Y-other.Y) < 1e-9
}
