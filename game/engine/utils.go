package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Size returns the side length of the grid
func (g Grid) Size() int {
	return len(g)
}

// Clone returns a deep copy of the grid
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	c := make(Grid, len(g))
	for i, row := range g {
		c[i] = append([]int(nil), row...)
	}
	return c
}

// Equal reports whether both grids have the same shape and values
func (g Grid) Equal(other Grid) bool {
	if len(g) != len(other) {
		return false
	}
	for i := range g {
		if len(g[i]) != len(other[i]) {
			return false
		}
		for j := range g[i] {
			if g[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}

// MaxValue returns the biggest block on the grid, or 0 for an empty grid
func (g Grid) MaxValue() int {
	max := 0
	for _, row := range g {
		for _, v := range row {
			if v > max {
				max = v
			}
		}
	}
	return max
}

// EmptyCells lists empty positions in row-major order
func (g Grid) EmptyCells() []Position {
	var empty []Position
	for r, row := range g {
		for c, v := range row {
			if v == Empty {
				empty = append(empty, Position{Row: r, Col: c})
			}
		}
	}
	return empty
}

// IsFull reports whether every cell holds a block
func (g Grid) IsFull() bool {
	for _, row := range g {
		for _, v := range row {
			if v == Empty {
				return false
			}
		}
	}
	return true
}

// CountBlocks returns the number of non-empty cells
func (g Grid) CountBlocks() int {
	count := 0
	for _, row := range g {
		for _, v := range row {
			if v != Empty {
				count++
			}
		}
	}
	return count
}

// Validate checks that the grid is square with the given side and holds
// only empty cells or positive values.
func (g Grid) Validate(size int) error {
	if len(g) != size {
		return fmt.Errorf("%w: grid has %d rows, want %d", ErrInvalidConfiguration, len(g), size)
	}
	for r, row := range g {
		if len(row) != size {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidConfiguration, r, len(row), size)
		}
		for c, v := range row {
			if v < 0 {
				return fmt.Errorf("%w: negative block %d at (%d,%d)", ErrInvalidConfiguration, v, r, c)
			}
		}
	}
	return nil
}

// MarshalJSON encodes the grid as rows of optional integers, empty cells as null.
func (g Grid) MarshalJSON() ([]byte, error) {
	if g == nil {
		return []byte("null"), nil
	}
	rows := make([][]*int, len(g))
	for r, row := range g {
		rows[r] = make([]*int, len(row))
		for c := range row {
			if row[c] != Empty {
				v := row[c]
				rows[r][c] = &v
			}
		}
	}
	return json.Marshal(rows)
}

// UnmarshalJSON decodes rows of optional integers; null and 0 are empty.
func (g *Grid) UnmarshalJSON(data []byte) error {
	var rows [][]*int
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if rows == nil {
		*g = nil
		return nil
	}
	out := make(Grid, len(rows))
	for r, row := range rows {
		out[r] = make([]int, len(row))
		for c, v := range row {
			if v == nil {
				continue
			}
			if *v < 0 {
				return fmt.Errorf("negative block %d at (%d,%d)", *v, r, c)
			}
			out[r][c] = *v
		}
	}
	*g = out
	return nil
}

// String renders the grid as fixed-width text, "." for empty cells
func (g Grid) String() string {
	width := len(fmt.Sprint(g.MaxValue()))
	if width < 1 {
		width = 1
	}
	var b strings.Builder
	for _, row := range g {
		for c, v := range row {
			if c > 0 {
				b.WriteByte(' ')
			}
			if v == Empty {
				b.WriteString(fmt.Sprintf("%*s", width, "."))
			} else {
				b.WriteString(fmt.Sprintf("%*d", width, v))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
