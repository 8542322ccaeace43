package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Direction is the direction a move slides the tiles in.
type Direction int

const (
	Up Direction = iota + 1
	Down
	Left
	Right
)

const (
	// Empty marks a cell without a block
	Empty = 0

	// Validation constants
	MinGridSize   = 2
	MaxGridSize   = 16
	MinStartTiles = 1
	MaxStartTiles = 2
)

// Directions lists every valid direction in boundary-encoding order.
var Directions = []Direction{Up, Down, Left, Right}

// Valid reports whether d is one of the four directions.
func (d Direction) Valid() bool {
	return d >= Up && d <= Right
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection accepts a direction name ("up", "Left", ...) or its boundary
// integer encoding ("1".."4").
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
	return DirectionFromInt(n)
}

// DirectionFromInt converts the 1=up, 2=down, 3=left, 4=right encoding used
// by click links.
func DirectionFromInt(n int) (Direction, error) {
	d := Direction(n)
	if !d.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDirection, n)
	}
	return d, nil
}

// MarshalJSON encodes the direction by name
func (d Direction) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, int(d))
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts either a name or the integer encoding
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidDirection, string(data))
		}
		s = strconv.Itoa(n)
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Position represents row/column coordinates on the grid
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Grid is a square arrangement of cells. A cell holds Empty or a positive
// block value.
type Grid [][]int

// NewGrid returns an empty size x size grid
func NewGrid(size int) Grid {
	g := make(Grid, size)
	for i := range g {
		g[i] = make([]int, size)
	}
	return g
}

// MoveResult is what a single move produced
type MoveResult struct {
	Grid       Grid      `json:"grid"`
	ScoreDelta int       `json:"score_delta"`
	GameOver   bool      `json:"game_over"`
	Moved      bool      `json:"moved"`
	Spawned    *Position `json:"spawned,omitempty"`
}

// SpawnValue is a block value that can appear after a move, with its
// relative weight.
type SpawnValue struct {
	Value  int `json:"value"`
	Weight int `json:"weight"`
}

// GameConfig describes the rules of one game variant
type GameConfig struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	GridSize    int          `json:"grid_size"`
	StartTiles  int          `json:"start_tiles"`
	SpawnValues []SpawnValue `json:"spawn_values"`
}
