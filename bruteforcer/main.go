// Command bruteforcer plays rounds against a running README 2048 server
// through its REST API, picking moves with one of the automated strategies,
// and reports the best round it managed.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/wricardo/readme-2048/game/engine"
	"github.com/wricardo/readme-2048/game/service"
	"github.com/wricardo/readme-2048/game/strategy"
	"github.com/wricardo/readme-2048/logging"
)

type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) sessionPath(suffix string) string {
	return fmt.Sprintf("/api/sessions/%s%s", url.PathEscape(c.sessionID), suffix)
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context, configName string) (*service.SessionInfo, error) {
	body := map[string]string{}
	if configName != "" {
		body["config_id"] = configName
	}

	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &info); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.sessionID = info.ID
	return &info, nil
}

func (c *Client) GetState(ctx context.Context) (*service.GameState, error) {
	var state service.GameState
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/state"), nil, &state); err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &state, nil
}

func (c *Client) Move(ctx context.Context, dir engine.Direction) (*service.MoveResult, error) {
	var result service.MoveResult
	body := map[string]string{"direction": dir.String()}
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/move"), body, &result); err != nil {
		return nil, fmt.Errorf("move %s: %w", dir, err)
	}
	return &result, nil
}

func (c *Client) Reset(ctx context.Context) (*service.GameState, error) {
	var resp struct {
		Message string             `json:"message"`
		State   *service.GameState `json:"state"`
	}
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/reset"), nil, &resp); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	return resp.State, nil
}

// roundOutcome is what one automated round achieved
type roundOutcome struct {
	Score        int
	BiggestBlock int
	Moves        int
	// Finished is false when the move limit stopped the round
	Finished bool
	// Next is the board the server dealt after the round
	Next *service.GameState
}

// playRound plays from state until the server reports game over or maxMoves
// moves were made
func playRound(ctx context.Context, client *Client, state *service.GameState, strat strategy.Strategy, maxMoves int, delay time.Duration, logger *zap.SugaredLogger) (*roundOutcome, error) {
	out := &roundOutcome{}
	for maxMoves <= 0 || out.Moves < maxMoves {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		dir, ok := strat.NextMove(state.Grid)
		if !ok {
			// A terminal board restored by the server ends on any move
			dir = engine.Left
		}

		result, err := client.Move(ctx, dir)
		if err != nil {
			return out, err
		}
		out.Moves++

		if result.GameOver {
			out.Finished = true
			out.Next = result.GameState
			if r := result.FinishedRound; r != nil {
				out.Score = r.Score
				out.BiggestBlock = r.BiggestBlock
			}
			return out, nil
		}

		state = result.GameState
		out.Score = state.Score
		out.BiggestBlock = state.BiggestBlock
		if out.Moves%100 == 0 {
			logger.Debugw("Progress", "moves", out.Moves, "score", state.Score, "biggest_block", state.BiggestBlock)
		}

		if delay > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	out.Next = state
	return out, nil
}

// resumeOrCreate continues the saved session when it still exists, otherwise
// creates a new one and remembers its ID in sessionFile
func resumeOrCreate(ctx context.Context, client *Client, sessionID, sessionFile, configName string, logger *zap.SugaredLogger) error {
	if sessionID == "" && sessionFile != "" {
		if data, err := os.ReadFile(sessionFile); err == nil {
			sessionID = string(bytes.TrimSpace(data))
		}
	}

	if sessionID != "" {
		client.sessionID = sessionID
		if _, err := client.GetState(ctx); err == nil {
			logger.Infow("Resuming session", "session", sessionID)
			return nil
		}
		logger.Warnw("Failed to resume session, creating a new one", "session", sessionID)
	}

	info, err := client.CreateSession(ctx, configName)
	if err != nil {
		return err
	}
	logger.Infow("Session created", "session", info.ID, "config", info.ConfigName)

	if sessionFile != "" {
		if err := os.WriteFile(sessionFile, []byte(info.ID), 0644); err != nil {
			logger.Warnw("Failed to save session ID", "error", err)
		}
	}
	return nil
}

// summary collects the results of all rounds
type summary struct {
	Rounds       int
	BestScore    int
	BiggestBlock int
	TotalMoves   int
}

func (s *summary) add(out *roundOutcome) {
	s.Rounds++
	s.TotalMoves += out.Moves
	if out.Score > s.BestScore {
		s.BestScore = out.Score
	}
	if out.BiggestBlock > s.BiggestBlock {
		s.BiggestBlock = out.BiggestBlock
	}
}

// playRounds resets the session and plays count rounds in a row
func playRounds(ctx context.Context, client *Client, strat strategy.Strategy, count, maxMoves int, delay time.Duration, logger *zap.SugaredLogger) (*summary, error) {
	state, err := client.Reset(ctx)
	if err != nil {
		return nil, err
	}

	result := &summary{}
	for i := 1; i <= count; i++ {
		out, err := playRound(ctx, client, state, strat, maxMoves, delay, logger)
		if err != nil {
			return result, fmt.Errorf("round %d: %w", i, err)
		}
		result.add(out)
		logger.Infow("Round finished",
			"round", i,
			"score", humanize.Comma(int64(out.Score)),
			"biggest_block", out.BiggestBlock,
			"moves", out.Moves,
			"finished", out.Finished,
		)

		state = out.Next
		if !out.Finished {
			if state, err = client.Reset(ctx); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Game server URL")
	configName := flag.String("config", "", "Game configuration for new sessions (classic, tiny, large)")
	continueSession := flag.String("continue", "", "Resume playing an existing session by ID (readme plays the README board)")
	sessionFile := flag.String("session-file", ".session", "File remembering the session between runs (empty disables)")
	strategyName := flag.String("strategy", "greedy", "Move strategy: "+strings.Join(strategy.Names(), ", "))
	roundCount := flag.Int("rounds", 10, "Rounds to play")
	maxMoves := flag.Int("max-moves", 20000, "Maximum moves per round (0 = none)")
	delayMs := flag.Int("delay", 0, "Delay between moves in milliseconds (0 = no delay)")
	seed := flag.Int64("seed", 0, "Seed for the random strategy (0 uses the clock)")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	logger, closeLogger, err := logging.New(logging.Options{Debug: *verbose})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLogger()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	strat, err := strategy.ByName(*strategyName, engine.NewRandomSource(*seed))
	if err != nil {
		logger.Fatalw("Invalid strategy", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infow("Connecting to game server", "url", *serverURL)
	client := NewClient(*serverURL)

	if err := resumeOrCreate(ctx, client, *continueSession, *sessionFile, *configName, logger); err != nil {
		logger.Fatalw("Failed to start session", "error", err)
	}

	result, err := playRounds(ctx, client, strat, *roundCount, *maxMoves, time.Duration(*delayMs)*time.Millisecond, logger)
	if result != nil {
		logger.Infow("Done",
			"session", client.sessionID,
			"rounds", result.Rounds,
			"best_score", humanize.Comma(int64(result.BestScore)),
			"biggest_block", result.BiggestBlock,
			"moves", result.TotalMoves,
		)
	}
	if err != nil {
		logger.Errorw("Stopped early", "error", err)
		os.Exit(1)
	}

	logger.Infof("Round history: %s/api/rounds?session=%s", *serverURL, client.sessionID)
}
