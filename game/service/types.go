package service

import (
	"time"

	"github.com/wricardo/readme-2048/game/engine"
	"github.com/wricardo/readme-2048/game/rounds"
)

// Event types reported in MoveResult.Events
const (
	EventMove     = "move"
	EventMerge    = "merge"
	EventNoop     = "noop"
	EventGameOver = "game_over"
	EventNewGame  = "new_game"
	EventReset    = "reset"
)

// GameState is a snapshot of one session's board and round
type GameState struct {
	SessionID     string             `json:"session_id"`
	Grid          engine.Grid        `json:"grid"`
	PreviousGrid  engine.Grid        `json:"previous_grid,omitempty"`
	GridSize      int                `json:"grid_size"`
	Score         int                `json:"score"`
	BiggestBlock  int                `json:"biggest_block"`
	Moves         int                `json:"moves"`
	GameOver      bool               `json:"game_over"`
	PossibleMoves []engine.Direction `json:"possible_moves"`
	RoundID       string             `json:"round_id,omitempty"`
}

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameState      *GameState         `json:"game_state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
}

// MoveResult contains the result of a move operation
type MoveResult struct {
	Success       bool          `json:"success"`
	Direction     string        `json:"direction"`
	ScoreDelta    int           `json:"score_delta"`
	GameOver      bool          `json:"game_over"`
	GameState     *GameState    `json:"game_state"`
	FinishedRound *rounds.Round `json:"finished_round,omitempty"`
	Message       string        `json:"message"`
	Events        []GameEvent   `json:"events,omitempty"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type      string           `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Position  *engine.Position `json:"position,omitempty"`
	Value     int              `json:"value,omitempty"`
}

// Scoreboard pairs a session's running score with the all-time best round
type Scoreboard struct {
	SessionID        string     `json:"session_id"`
	CurrentScore     int        `json:"current_score"`
	HighScore        int        `json:"high_score"`
	HighScoreAt      *time.Time `json:"high_score_at,omitempty"`
	HighScoreSession string     `json:"high_score_session,omitempty"`
}

// ConfigInfo provides information about a game configuration
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	GridSize    int    `json:"grid_size"`
	StartTiles  int    `json:"start_tiles"`
}
