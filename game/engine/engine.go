package engine

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidDirection     = errors.New("invalid direction")
	ErrGameOver             = errors.New("game over")
)

// InvariantError is the panic value raised when the engine reaches a state
// its own rules should make impossible.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "engine invariant violated: " + e.Msg
}

// RandomSource supplies the randomness used for tile placement.
// *rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
	Float64() float64
}

// NewRandomSource returns a seeded math/rand source
func NewRandomSource(seed int64) RandomSource {
	return rand.New(rand.NewSource(seed))
}

// Engine provides the main interface for game operations
type Engine interface {
	MakeMove(dir Direction) (*MoveResult, error)
	Grid() Grid
	BiggestBlock() int
	IsGameOver() bool
	CanMove(dir Direction) bool
	PossibleMoves() []Direction
	Size() int
	Config() *GameConfig
}

// GameEngine implements Engine. It is not safe for concurrent use; callers
// serialize moves per game.
type GameEngine struct {
	grid   Grid
	merged [][]bool
	config *GameConfig
	rng    RandomSource
}

// NewEngine creates an engine with an empty grid seeded with the configured
// number of start tiles.
func NewEngine(config *GameConfig, rng RandomSource) (*GameEngine, error) {
	e, err := newEngine(config, rng)
	if err != nil {
		return nil, err
	}

	e.grid = NewGrid(config.GridSize)
	for i := 0; i < config.StartTiles; i++ {
		if _, ok := e.spawn(); !ok {
			return nil, fmt.Errorf("%w: no room for start tile %d", ErrInvalidConfiguration, i+1)
		}
	}
	return e, nil
}

// NewEngineFromGrid restores an engine around a previously saved grid
func NewEngineFromGrid(config *GameConfig, grid Grid, rng RandomSource) (*GameEngine, error) {
	e, err := newEngine(config, rng)
	if err != nil {
		return nil, err
	}
	if err := grid.Validate(config.GridSize); err != nil {
		return nil, err
	}
	e.grid = grid.Clone()
	return e, nil
}

func newEngine(config *GameConfig, rng RandomSource) (*GameEngine, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config cannot be nil", ErrInvalidConfiguration)
	}
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source cannot be nil", ErrInvalidConfiguration)
	}
	return &GameEngine{
		merged: newMarks(config.GridSize),
		config: config,
		rng:    rng,
	}, nil
}

// MakeMove slides every line toward dir, merging equal neighbours once, and
// spawns one tile if anything changed.
func (e *GameEngine) MakeMove(dir Direction) (*MoveResult, error) {
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, int(dir))
	}
	if e.grid.IsTerminal() {
		return nil, ErrGameOver
	}

	before := e.grid.Clone()
	resetMarks(e.merged)
	score := e.grid.slide(dir, e.merged)

	if e.grid.Equal(before) {
		return &MoveResult{Grid: e.grid.Clone()}, nil
	}

	pos, ok := e.spawn()
	if !ok {
		panic(&InvariantError{Msg: fmt.Sprintf("no empty cell to spawn into after moving %s", dir)})
	}

	return &MoveResult{
		Grid:       e.grid.Clone(),
		ScoreDelta: score,
		GameOver:   e.grid.IsTerminal(),
		Moved:      true,
		Spawned:    &pos,
	}, nil
}

// spawn places one spawn value on a uniformly chosen empty cell
func (e *GameEngine) spawn() (Position, bool) {
	empty := e.grid.EmptyCells()
	if len(empty) == 0 {
		return Position{}, false
	}
	pos := empty[e.rng.Intn(len(empty))]
	e.grid[pos.Row][pos.Col] = e.pickSpawnValue()
	return pos, true
}

func (e *GameEngine) pickSpawnValue() int {
	values := e.config.SpawnValues
	if len(values) == 1 {
		return values[0].Value
	}

	total := 0
	for _, sv := range values {
		total += sv.Weight
	}
	r := e.rng.Float64() * float64(total)
	for _, sv := range values {
		r -= float64(sv.Weight)
		if r < 0 {
			return sv.Value
		}
	}
	return values[len(values)-1].Value
}

// Grid returns a copy of the current grid
func (e *GameEngine) Grid() Grid {
	return e.grid.Clone()
}

// BiggestBlock returns the largest block on the grid, 0 when empty
func (e *GameEngine) BiggestBlock() int {
	return e.grid.MaxValue()
}

// IsGameOver reports whether no move can change the grid
func (e *GameEngine) IsGameOver() bool {
	return e.grid.IsTerminal()
}

// CanMove checks whether dir would change the grid
func (e *GameEngine) CanMove(dir Direction) bool {
	if !dir.Valid() {
		return false
	}
	return e.grid.CanSlide(dir)
}

// PossibleMoves returns all directions that would change the grid
func (e *GameEngine) PossibleMoves() []Direction {
	var possible []Direction
	for _, dir := range Directions {
		if e.CanMove(dir) {
			possible = append(possible, dir)
		}
	}
	return possible
}

// Size returns the grid side length
func (e *GameEngine) Size() int {
	return e.config.GridSize
}

// Config returns the rules the engine was built with
func (e *GameEngine) Config() *GameConfig {
	return e.config
}
