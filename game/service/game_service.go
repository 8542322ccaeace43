package service

import (
	"context"
	"time"

	"github.com/wricardo/readme-2048/game/engine"
	"github.com/wricardo/readme-2048/game/publish"
	"github.com/wricardo/readme-2048/game/rounds"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations

	// Move applies one click. The score of every move that changes the board
	// is added to the open round, including the merge that ends the game,
	// before the round is closed and a new board is dealt.
	Move(ctx context.Context, sessionID, direction string) (*MoveResult, error)
	Reset(ctx context.Context, sessionID string) (*GameState, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*GameState, error)
	Scoreboard(ctx context.Context, sessionID string) (*Scoreboard, error)
	RoundHistory(ctx context.Context, opts rounds.HistoryOptions) (*rounds.HistoryPage, error)
	RenderReadme(ctx context.Context, sessionID string) ([]byte, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.GameConfig) (*Session, error)
	Get(id string) (*Session, error)
	// GetOrCreate reports loaded=false when the session had to be created
	GetOrCreate(id string, config *engine.GameConfig) (*Session, bool, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles game configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}

// ReadmeRenderer turns a board and scores into README content
type ReadmeRenderer interface {
	Render(data publish.ReadmeData) ([]byte, error)
}

// Session represents an active game session
type Session struct {
	ID             string
	Engine         *engine.GameEngine
	Config         *engine.GameConfig
	PreviousGrid   engine.Grid
	Moves          int
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
