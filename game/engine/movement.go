package engine

// lineCells returns the positions of line i read from the edge the tiles
// travel toward. Rows are lines for left/right, columns for up/down.
func lineCells(size int, dir Direction, i int) []Position {
	cells := make([]Position, size)
	for k := 0; k < size; k++ {
		switch dir {
		case Left:
			cells[k] = Position{Row: i, Col: k}
		case Right:
			cells[k] = Position{Row: i, Col: size - 1 - k}
		case Up:
			cells[k] = Position{Row: k, Col: i}
		case Down:
			cells[k] = Position{Row: size - 1 - k, Col: i}
		}
	}
	return cells
}

// slideLine compacts one line toward its first cell and merges equal
// neighbours. A cell marked in merged takes part in no further merge during
// this move. Returns the sum of the merged values.
func (g Grid) slideLine(cells []Position, merged [][]bool) int {
	score := 0
	next := 0
	for _, p := range cells {
		v := g[p.Row][p.Col]
		if v == Empty {
			continue
		}
		g[p.Row][p.Col] = Empty

		if next > 0 {
			prev := cells[next-1]
			if g[prev.Row][prev.Col] == v && !merged[prev.Row][prev.Col] {
				sum := v + v
				g[prev.Row][prev.Col] = sum
				merged[prev.Row][prev.Col] = true
				score += sum
				continue
			}
		}

		dst := cells[next]
		g[dst.Row][dst.Col] = v
		next++
	}
	return score
}

// slide applies dir to every line of g in place and returns the score delta.
func (g Grid) slide(dir Direction, merged [][]bool) int {
	size := g.Size()
	score := 0
	for i := 0; i < size; i++ {
		score += g.slideLine(lineCells(size, dir, i), merged)
	}
	return score
}

// Slide returns the grid dir would produce before any spawn, and the score
// the merges would earn. g is not modified.
func (g Grid) Slide(dir Direction) (Grid, int) {
	out := g.Clone()
	score := out.slide(dir, newMarks(g.Size()))
	return out, score
}

// CanSlide reports whether dir would change anything
func (g Grid) CanSlide(dir Direction) bool {
	out, _ := g.Slide(dir)
	return !out.Equal(g)
}

// IsTerminal reports whether g is full and no direction changes it.
func (g Grid) IsTerminal() bool {
	if !g.IsFull() {
		return false
	}
	for _, dir := range Directions {
		if g.CanSlide(dir) {
			return false
		}
	}
	return true
}

func newMarks(size int) [][]bool {
	marks := make([][]bool, size)
	for i := range marks {
		marks[i] = make([]bool, size)
	}
	return marks
}

func resetMarks(marks [][]bool) {
	for _, row := range marks {
		for i := range row {
			row[i] = false
		}
	}
}
