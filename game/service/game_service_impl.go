package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/readme-2048/game/engine"
	"github.com/wricardo/readme-2048/game/publish"
	"github.com/wricardo/readme-2048/game/rounds"
)

// DefaultSessionID is the board shown in the README
const DefaultSessionID = "readme"

const defaultPublishTimeout = 20 * time.Second

// Options carries the optional collaborators of the game service
type Options struct {
	// Renderer builds README content. Nil uses the embedded template.
	Renderer ReadmeRenderer
	// Publisher receives the README after every change of the README session.
	Publisher publish.Publisher
	// ServerURL is the public base URL the README arrows link to.
	ServerURL string
	// ReadmeSessionID defaults to DefaultSessionID.
	ReadmeSessionID string
	PublishTimeout  time.Duration
	Logger          *zap.SugaredLogger
	Now             func() time.Time
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions       SessionManager
	configs        ConfigManager
	tracker        rounds.Tracker
	renderer       ReadmeRenderer
	publisher      publish.Publisher
	serverURL      string
	readmeID       string
	publishTimeout time.Duration
	logger         *zap.SugaredLogger
	now            func() time.Time
	mu             sync.RWMutex
}

// NewGameService creates a new game service instance. A nil tracker keeps
// rounds in memory.
func NewGameService(sessions SessionManager, configs ConfigManager, tracker rounds.Tracker, opts Options) (GameService, error) {
	if tracker == nil {
		tracker = rounds.NewMemoryStore()
	}
	if opts.Renderer == nil {
		renderer, err := publish.NewRenderer("")
		if err != nil {
			return nil, fmt.Errorf("failed to create readme renderer: %w", err)
		}
		opts.Renderer = renderer
	}
	if opts.Publisher == nil {
		opts.Publisher = publish.NopPublisher{}
	}
	if opts.ReadmeSessionID == "" {
		opts.ReadmeSessionID = DefaultSessionID
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &gameServiceImpl{
		sessions:       sessions,
		configs:        configs,
		tracker:        tracker,
		renderer:       opts.Renderer,
		publisher:      opts.Publisher,
		serverURL:      opts.ServerURL,
		readmeID:       strings.ToLower(opts.ReadmeSessionID),
		publishTimeout: opts.PublishTimeout,
		logger:         opts.Logger,
		now:            opts.Now,
	}, nil
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

func (s *gameServiceImpl) resolveID(sessionID string) string {
	if sessionID == "" {
		return s.readmeID
	}
	return strings.ToLower(sessionID)
}

// CreateSession creates a new game session with a generated ID and opens its first round
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	config := s.configs.GetDefault()
	if configName != "" {
		var err error
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if available, listErr := s.configs.ListConfigs(); listErr == nil && len(available) > 0 {
				ids := make([]string, 0, len(available))
				for _, cfg := range available {
					ids = append(ids, cfg.ConfigID)
				}
				return nil, fmt.Errorf("config '%s' (available: %s): %w", configName, strings.Join(ids, ", "), err)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	}

	sess, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if _, err := s.startRound(ctx, sess.ID); err != nil {
		return nil, err
	}

	s.logger.Infow("Created session", "session", sess.ID, "config", config.Name)
	return s.sessionInfo(ctx, sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(s.resolveID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sess.ID)

	return s.sessionInfo(ctx, sess), nil
}

// ListSessions returns all sessions held by the session manager
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(ctx, sess))
	}
	return result, nil
}

// DeleteSession closes the session's open round and removes the session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.resolveID(sessionID)
	sess, err := s.sessions.Get(id)
	if err != nil {
		return fmt.Errorf("session not found: %w", err)
	}

	if _, err := s.tracker.End(ctx, id, sess.Engine.BiggestBlock(), s.now()); err != nil && !errors.Is(err, rounds.ErrNoActiveRound) {
		return fmt.Errorf("failed to end round: %w", err)
	}
	return s.sessions.Delete(id)
}

// Move applies one click to a session. Unknown sessions are created on the
// fly. When the move ends the game the round is closed and a new board is
// dealt under the same session ID.
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string) (*MoveResult, error) {
	dir, err := engine.ParseDirection(direction)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.resolveID(sessionID)
	sess, loaded, err := s.sessions.GetOrCreate(id, s.configs.GetDefault())
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s.sessions.UpdateLastAccessed(sess.ID)

	events := []GameEvent{}
	if !loaded {
		if _, err := s.startRound(ctx, sess.ID); err != nil {
			return nil, err
		}
		events = append(events, GameEvent{Type: EventNewGame, Message: "New game started", Timestamp: s.now()})
	} else if err := s.ensureRound(ctx, sess.ID); err != nil {
		return nil, err
	}

	starting := sess.Engine.Grid()
	res, err := sess.Engine.MakeMove(dir)
	if err != nil && !errors.Is(err, engine.ErrGameOver) {
		return nil, err
	}

	result := &MoveResult{
		Success:   err == nil && res.Moved,
		Direction: dir.String(),
	}

	if err == nil {
		if res.Moved {
			if _, err := s.tracker.AddScore(ctx, sess.ID, res.ScoreDelta); err != nil {
				return nil, fmt.Errorf("failed to add score: %w", err)
			}
			sess.Moves++
			result.ScoreDelta = res.ScoreDelta
			events = append(events, GameEvent{
				Type:      EventMove,
				Message:   fmt.Sprintf("Moved %s", dir),
				Timestamp: s.now(),
				Position:  res.Spawned,
			})
			if res.ScoreDelta > 0 {
				events = append(events, GameEvent{
					Type:      EventMerge,
					Message:   fmt.Sprintf("Merged blocks worth %d", res.ScoreDelta),
					Timestamp: s.now(),
					Value:     res.ScoreDelta,
				})
			}
			result.Message = fmt.Sprintf("Moved %s", dir)
		} else {
			events = append(events, GameEvent{Type: EventNoop, Message: fmt.Sprintf("Nothing moves %s", dir), Timestamp: s.now()})
			result.Message = fmt.Sprintf("Nothing moves %s", dir)
		}

		if !res.GameOver {
			sess.PreviousGrid = starting
			if err := s.sessions.Save(sess.ID); err != nil {
				s.logger.Warnw("Failed to save session", "session", sess.ID, "error", err)
			}
			result.Events = events
			result.GameState = s.gameState(ctx, sess)
			s.publishLocked(ctx, sess)
			return result, nil
		}
	}

	// Game over: close the round and deal a new board under the same ID
	finished, fresh, err := s.restart(ctx, sess)
	if err != nil {
		return nil, err
	}
	events = append(events,
		GameEvent{
			Type:      EventGameOver,
			Message:   fmt.Sprintf("Game over with %d points, biggest block %d", finished.Score, finished.BiggestBlock),
			Timestamp: s.now(),
			Value:     finished.Score,
		},
		GameEvent{Type: EventNewGame, Message: "New game started", Timestamp: s.now()},
	)

	s.logger.Infow("Round finished", "session", sess.ID, "score", finished.Score, "biggest_block", finished.BiggestBlock)

	result.GameOver = true
	result.FinishedRound = finished
	result.Message = fmt.Sprintf("Game over! Final score %d", finished.Score)
	result.Events = events
	result.GameState = s.gameState(ctx, fresh)
	s.publishLocked(ctx, fresh)
	return result, nil
}

// Reset abandons the current game, closing its round, and deals a new board
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(s.resolveID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	_, fresh, err := s.restart(ctx, sess)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("Reset session", "session", sess.ID)

	s.publishLocked(ctx, fresh)
	return s.gameState(ctx, fresh), nil
}

// GetGameState returns a snapshot of a session's board and round
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(s.resolveID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sess.ID)

	return s.gameState(ctx, sess), nil
}

// Scoreboard pairs the session's running score with the best finished round
func (s *gameServiceImpl) Scoreboard(ctx context.Context, sessionID string) (*Scoreboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scoreboard(ctx, s.resolveID(sessionID))
}

// RoundHistory lists rounds page by page
func (s *gameServiceImpl) RoundHistory(ctx context.Context, opts rounds.HistoryOptions) (*rounds.HistoryPage, error) {
	if opts.SessionID != "" {
		opts.SessionID = strings.ToLower(opts.SessionID)
	}
	page, err := s.tracker.History(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load round history: %w", err)
	}
	return page, nil
}

// RenderReadme renders the README for a session without publishing it
func (s *gameServiceImpl) RenderReadme(ctx context.Context, sessionID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(s.resolveID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	return s.render(ctx, sess)
}

// ListConfigs returns available configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a configuration
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configName, config)
}

// startRound opens a round for the session. If the tracker refuses, the
// stale round is closed with a zero block and the start is retried once.
func (s *gameServiceImpl) startRound(ctx context.Context, sessionID string) (*rounds.Round, error) {
	round, err := s.tracker.Start(ctx, sessionID)
	if err == nil {
		return round, nil
	}

	s.logger.Warnw("Failed to start round, closing stale round", "session", sessionID, "error", err)
	if _, endErr := s.tracker.End(ctx, sessionID, 0, s.now()); endErr != nil && !errors.Is(endErr, rounds.ErrNoActiveRound) {
		return nil, fmt.Errorf("failed to close stale round: %w", endErr)
	}
	round, err = s.tracker.Start(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to start round: %w", err)
	}
	return round, nil
}

// ensureRound opens a round for a restored session that has none
func (s *gameServiceImpl) ensureRound(ctx context.Context, sessionID string) error {
	_, err := s.tracker.Current(ctx, sessionID)
	if errors.Is(err, rounds.ErrNoActiveRound) {
		_, err = s.startRound(ctx, sessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to load round: %w", err)
	}
	return nil
}

// restart ends the session's round with its biggest block, replaces the
// session with a fresh board of the same config and opens a new round.
func (s *gameServiceImpl) restart(ctx context.Context, sess *Session) (*rounds.Round, *Session, error) {
	finished, err := s.tracker.End(ctx, sess.ID, sess.Engine.BiggestBlock(), s.now())
	if errors.Is(err, rounds.ErrNoActiveRound) {
		finished, err = nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to end round: %w", err)
	}

	if err := s.sessions.Delete(sess.ID); err != nil {
		return nil, nil, fmt.Errorf("failed to delete session: %w", err)
	}
	fresh, err := s.sessions.Create(sess.ID, sess.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	if _, err := s.startRound(ctx, fresh.ID); err != nil {
		return nil, nil, err
	}

	if finished == nil {
		finished = &rounds.Round{SessionID: sess.ID, BiggestBlock: sess.Engine.BiggestBlock()}
	}
	return finished, fresh, nil
}

func (s *gameServiceImpl) gameState(ctx context.Context, sess *Session) *GameState {
	state := &GameState{
		SessionID:     sess.ID,
		Grid:          sess.Engine.Grid(),
		PreviousGrid:  sess.PreviousGrid.Clone(),
		GridSize:      sess.Engine.Size(),
		BiggestBlock:  sess.Engine.BiggestBlock(),
		Moves:         sess.Moves,
		GameOver:      sess.Engine.IsGameOver(),
		PossibleMoves: sess.Engine.PossibleMoves(),
	}
	if round, err := s.tracker.Current(ctx, sess.ID); err == nil {
		state.Score = round.Score
		state.RoundID = round.ID
	} else if !errors.Is(err, rounds.ErrNoActiveRound) {
		s.logger.Warnw("Failed to load current round", "session", sess.ID, "error", err)
	}
	return state
}

func (s *gameServiceImpl) sessionInfo(ctx context.Context, sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     s.getConfigID(sess.Config.Name),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      s.gameState(ctx, sess),
		GameConfig:     sess.Config,
	}
}

func (s *gameServiceImpl) scoreboard(ctx context.Context, id string) (*Scoreboard, error) {
	board := &Scoreboard{SessionID: id}

	current, err := s.tracker.Current(ctx, id)
	switch {
	case err == nil:
		board.CurrentScore = current.Score
	case !errors.Is(err, rounds.ErrNoActiveRound):
		return nil, fmt.Errorf("failed to load current round: %w", err)
	}

	best, err := s.tracker.HighScore(ctx)
	switch {
	case err == nil:
		board.HighScore = best.Score
		board.HighScoreAt = best.EndedAt
		board.HighScoreSession = best.SessionID
	case !errors.Is(err, rounds.ErrNoRounds):
		return nil, fmt.Errorf("failed to load high score: %w", err)
	}
	return board, nil
}

func (s *gameServiceImpl) render(ctx context.Context, sess *Session) ([]byte, error) {
	board, err := s.scoreboard(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(publish.ReadmeData{
		CurrentScore: board.CurrentScore,
		HighScore:    board.HighScore,
		HighScoreAt:  board.HighScoreAt,
		Grid:         sess.Engine.Grid(),
		PreviousGrid: sess.PreviousGrid,
		ServerURL:    s.serverURL,
	})
}

// publishLocked renders and publishes the README when sess is the README
// session. Caller holds s.mu. Failures are logged only.
func (s *gameServiceImpl) publishLocked(ctx context.Context, sess *Session) {
	if sess.ID != s.readmeID {
		return
	}

	content, err := s.render(ctx, sess)
	if err != nil {
		s.logger.Errorw("Failed to render README", "session", sess.ID, "error", err)
		return
	}

	// A client hanging up must not leave the README half way
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, content); err != nil {
		s.logger.Errorw("Failed to publish README", "session", sess.ID, "error", err)
		return
	}
	s.logger.Debugw("Published README", "session", sess.ID, "bytes", len(content))
}
