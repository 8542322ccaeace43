package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/readme-2048/game/publish"
	"github.com/wricardo/readme-2048/game/rounds"
	"github.com/wricardo/readme-2048/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"README 2048",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`README 2048 - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Slide the blocks on a square board. Equal blocks that collide merge into their
sum, and the sum is added to the score. The game ends when the board is full
and nothing can merge; a new board is dealt automatically.

AVAILABLE TOOLS:
- game_state: Board, score and possible moves of a session
- move: Slide the board (up/down/left/right)
- reset_game: Abandon the current game and deal a new board
- scoreboard: Current score and all-time high score
- round_history: Finished and running rounds
- create_session: Create a private board
- list_sessions: List all sessions
- list_configs: List available board configurations
- game_instructions: Rules and strategy tips

Omitting session_id plays on the shared README board.`),
	)

	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID (optional, defaults to the README board)",
	}
}

func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Config to use, see list_configs (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the board, score and possible moves",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move",
		Description: "Slide every block in a direction",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"direction": map[string]interface{}{
					"type":        "string",
					"description": "Direction to slide",
					"enum":        []string{"up", "down", "left", "right"},
				},
			},
			Required: []string{"direction"},
		},
	}, c.handleMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_game",
		Description: "Abandon the current game and deal a new board",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
		},
	}, c.handleReset)

	// Scores
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "scoreboard",
		Description: "Get the current score and the all-time high score",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
		},
	}, c.handleScoreboard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "round_history",
		Description: "List rounds with pagination",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Only rounds of this session (optional)",
				},
				"page": map[string]interface{}{
					"type":        "number",
					"description": "Page number (default 1)",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Rounds per page (default 20, max 100)",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"description": "asc or desc (default desc)",
					"enum":        []string{"asc", "desc"},
				},
			},
		},
	}, c.handleRoundHistory)

	// Configuration
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available board configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the rules of the game and strategy tips",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for stdio or HTTP serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

func sessionArg(args map[string]interface{}) string {
	id, _ := args["session_id"].(string)
	if id == "" {
		id = service.DefaultSessionID
	}
	return url.PathEscape(id)
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n\n", info.ID, info.ConfigName)
	if info.GameState != nil {
		result += formatGameState(info.GameState)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		score := 0
		if s.GameState != nil {
			score = s.GameState.Score
		}
		fmt.Fprintf(&b, "- %s (Config: %s, Score: %s, Last played: %s)\n",
			s.ID, s.ConfigName, humanize.Comma(int64(score)), humanize.Time(s.LastAccessedAt))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var state service.GameState
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/sessions/%s/state", sessionArg(arguments(request))), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	direction, _ := args["direction"].(string)
	if direction == "" {
		return mcp.NewToolResultError("direction is required"), nil
	}

	var result service.MoveResult
	body := map[string]string{"direction": direction}
	if err := c.apiCall(ctx, "POST", fmt.Sprintf("/api/sessions/%s/move", sessionArg(args)), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Message string             `json:"message"`
		State   *service.GameState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", fmt.Sprintf("/api/sessions/%s/reset", sessionArg(arguments(request))), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := response.Message + "\n\n"
	if response.State != nil {
		result += formatGameState(response.State)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleScoreboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var board service.Scoreboard
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/sessions/%s/scores", sessionArg(arguments(request))), nil, &board); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatScoreboard(&board)), nil
}

func (c *Client) handleRoundHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	query := url.Values{}
	if id, _ := args["session_id"].(string); id != "" {
		query.Set("session", id)
	}
	if page, ok := args["page"].(float64); ok {
		query.Set("page", strconv.Itoa(int(page)))
	}
	if limit, ok := args["limit"].(float64); ok {
		query.Set("limit", strconv.Itoa(int(limit)))
	}
	if order, _ := args["order"].(string); order != "" {
		query.Set("order", order)
	}

	path := "/api/rounds"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var page rounds.HistoryPage
	if err := c.apiCall(ctx, "GET", path, nil, &page); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(&page)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, cfg := range configs {
		fmt.Fprintf(&b, "- %s: %s (%dx%d, %d start tiles)\n", cfg.ConfigID, cfg.Description, cfg.GridSize, cfg.GridSize, cfg.StartTiles)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(gameInstructions), nil
}

const gameInstructions = `README 2048 - RULES

BOARD
- A square grid, 4x4 on the classic config. Cells are empty or hold a block.
- A new game starts with one or two blocks (usually 2).

MOVES
- up, down, left, right. Every block slides as far as it can that way.
- Two equal blocks that meet merge into one block of their sum.
- A block produced by a merge does not merge again in the same move,
  so [2,2,2,2] sliding left becomes [4,4,_,_], not [8,_,_,_].
- When three equal blocks line up, the pair nearest the wall merges first.
- If nothing changes the move is a no-op: no block is spawned and no score.
- Otherwise one new block (2, sometimes 4) appears on a random empty cell.

SCORING
- Each merge adds the merged value to the score of the current round.
- The high score is the best finished round across all sessions.

GAME OVER
- The board is full and no direction can move or merge anything.
- The round is recorded with its biggest block and a new board is dealt.

STRATEGY
- Keep the biggest block in a corner and build a chain towards it.
- Prefer two directions (for example left and down) and use a third only
  when stuck.
- Avoid the direction that would pull the biggest block out of its corner.

THE README BOARD
- Omitting session_id plays on the shared board published in the README.
  Every move there is visible to everyone.`

// Formatting helpers

func formatGameState(state *service.GameState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", state.SessionID)
	fmt.Fprintf(&b, "Score: %s | Biggest block: %s | Moves: %d\n",
		humanize.Comma(int64(state.Score)), humanize.Comma(int64(state.BiggestBlock)), state.Moves)
	if len(state.Grid) > 0 {
		b.WriteString("\n")
		b.WriteString(publish.PlainBoard(state.Grid))
		b.WriteString("\n")
	}

	if state.GameOver {
		b.WriteString("GAME OVER\n")
		return b.String()
	}

	moves := make([]string, 0, len(state.PossibleMoves))
	for _, dir := range state.PossibleMoves {
		moves = append(moves, dir.String())
	}
	fmt.Fprintf(&b, "Possible moves: %s\n", strings.Join(moves, ", "))
	return b.String()
}

func formatMoveResult(result *service.MoveResult) string {
	var b strings.Builder
	if result.Message != "" {
		b.WriteString(result.Message)
		b.WriteString("\n")
	}
	if result.ScoreDelta > 0 {
		fmt.Fprintf(&b, "+%s points\n", humanize.Comma(int64(result.ScoreDelta)))
	}
	if result.GameOver && result.FinishedRound != nil {
		fmt.Fprintf(&b, "Round finished: score %s, biggest block %s. A new board was dealt.\n",
			humanize.Comma(int64(result.FinishedRound.Score)), humanize.Comma(int64(result.FinishedRound.BiggestBlock)))
	}
	if result.GameState != nil {
		b.WriteString("\n")
		b.WriteString(formatGameState(result.GameState))
	}
	return b.String()
}

func formatScoreboard(board *service.Scoreboard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", board.SessionID)
	fmt.Fprintf(&b, "Current score: %s\n", humanize.Comma(int64(board.CurrentScore)))
	fmt.Fprintf(&b, "High score: %s", humanize.Comma(int64(board.HighScore)))
	if board.HighScoreAt != nil {
		fmt.Fprintf(&b, " (set %s by %s)", board.HighScoreAt.Format(publish.HighScoreDateLayout), board.HighScoreSession)
	}
	b.WriteString("\n")
	return b.String()
}

func formatHistory(page *rounds.HistoryPage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rounds (page %d of %d, %d total):\n\n", page.Page, page.TotalPages, page.TotalRounds)
	for _, r := range page.Rounds {
		status := "playing"
		if r.EndedAt != nil {
			status = "ended " + r.EndedAt.Format(publish.HighScoreDateLayout)
		}
		fmt.Fprintf(&b, "- %s: score %s, biggest %s, %d moves, %s\n",
			r.SessionID, humanize.Comma(int64(r.Score)), humanize.Comma(int64(r.BiggestBlock)), r.Moves, status)
	}
	if page.HasNext {
		fmt.Fprintf(&b, "\nMore rounds on page %d\n", page.Page+1)
	}
	return b.String()
}
