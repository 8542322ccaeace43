// Package strategy picks moves for automated players. The analyze command
// uses it to simulate rounds offline and the bruteforcer bot to play against
// a running server.
package strategy

import (
	"fmt"
	"sort"

	"github.com/wricardo/readme-2048/game/engine"
)

// Strategy chooses the next direction for a grid. ok is false when no
// direction changes the grid.
type Strategy interface {
	Name() string
	NextMove(grid engine.Grid) (dir engine.Direction, ok bool)
}

// cornerOrder keeps the biggest block in the bottom-left corner
var cornerOrder = []engine.Direction{engine.Left, engine.Down, engine.Right, engine.Up}

// Random picks uniformly among the directions that change the grid
type Random struct {
	rng engine.RandomSource
}

// NewRandom creates a random strategy
func NewRandom(rng engine.RandomSource) *Random {
	return &Random{rng: rng}
}

func (s *Random) Name() string { return "random" }

func (s *Random) NextMove(grid engine.Grid) (engine.Direction, bool) {
	var moves []engine.Direction
	for _, dir := range engine.Directions {
		if grid.CanSlide(dir) {
			moves = append(moves, dir)
		}
	}
	if len(moves) == 0 {
		return 0, false
	}
	return moves[s.rng.Intn(len(moves))], true
}

// Corner tries left, down, right and up in that order
type Corner struct{}

func (Corner) Name() string { return "corner" }

func (Corner) NextMove(grid engine.Grid) (engine.Direction, bool) {
	for _, dir := range cornerOrder {
		if grid.CanSlide(dir) {
			return dir, true
		}
	}
	return 0, false
}

// Greedy looks one move ahead and scores the resulting grid by merge score,
// free cells and whether the biggest block sits in the bottom-left corner.
// Ties go to the corner order.
type Greedy struct{}

const (
	emptyCellWeight = 16
	cornerBonus     = 64
)

func (Greedy) Name() string { return "greedy" }

// Evaluate returns the heuristic value of moving grid toward dir, and false
// if dir changes nothing
func (Greedy) Evaluate(grid engine.Grid, dir engine.Direction) (int, bool) {
	next, score := grid.Slide(dir)
	if next.Equal(grid) {
		return 0, false
	}

	value := score + emptyCellWeight*len(next.EmptyCells())
	if size := next.Size(); next[size-1][0] == next.MaxValue() {
		value += cornerBonus
	}
	return value, true
}

func (g Greedy) NextMove(grid engine.Grid) (engine.Direction, bool) {
	best, bestValue, found := engine.Direction(0), 0, false
	for _, dir := range cornerOrder {
		value, ok := g.Evaluate(grid, dir)
		if !ok {
			continue
		}
		if !found || value > bestValue {
			best, bestValue, found = dir, value, true
		}
	}
	return best, found
}

// Names lists the strategies ByName accepts
func Names() []string {
	names := []string{"random", "corner", "greedy"}
	sort.Strings(names)
	return names
}

// ByName returns the named strategy. rng is only used by "random".
func ByName(name string, rng engine.RandomSource) (Strategy, error) {
	switch name {
	case "random":
		return NewRandom(rng), nil
	case "corner":
		return Corner{}, nil
	case "greedy":
		return Greedy{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, Names())
	}
}
