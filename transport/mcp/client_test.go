package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/readme-2048/game/engine"
	"github.com/wricardo/readme-2048/game/rounds"
	"github.com/wricardo/readme-2048/game/service"
)

// recordedRequest captures what the client sent to the REST API
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
}

// newTestAPI starts a server that records the request and answers with response
func newTestAPI(t *testing.T, status int, response interface{}) (*httptest.Server, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.Method = r.Method
		rec.Path = r.URL.EscapedPath()
		rec.Query = r.URL.RawQuery
		json.NewDecoder(r.Body).Decode(&rec.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func callTool(t *testing.T, client *Client, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) (string, bool) {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
	result, err := handler(context.Background(), request)
	if err != nil {
		t.Fatalf("%s returned error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("%s returned no content", name)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("%s returned non-text content", name)
	}
	return text.Text, result.IsError
}

func sampleState() *service.GameState {
	return &service.GameState{
		SessionID:     "readme",
		Grid:          engine.Grid{{2, 0}, {1024, 4}},
		GridSize:      2,
		Score:         1532,
		BiggestBlock:  1024,
		Moves:         7,
		PossibleMoves: []engine.Direction{engine.Up, engine.Right},
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	t.Run("decodes result", func(t *testing.T) {
		server, rec := newTestAPI(t, http.StatusOK, sampleState())
		client := NewClient(server.URL)

		var state service.GameState
		if err := client.apiCall(context.Background(), "GET", "/api/sessions/readme/state", nil, &state); err != nil {
			t.Fatalf("apiCall failed: %v", err)
		}
		if state.Score != 1532 || state.Grid[1][0] != 1024 {
			t.Errorf("Unexpected state: %+v", state)
		}
		if rec.Method != "GET" || rec.Path != "/api/sessions/readme/state" {
			t.Errorf("Unexpected request %s %s", rec.Method, rec.Path)
		}
	})

	t.Run("error message from body", func(t *testing.T) {
		server, _ := newTestAPI(t, http.StatusNotFound, map[string]string{"error": "session not found"})
		client := NewClient(server.URL)

		err := client.apiCall(context.Background(), "GET", "/api/sessions/x", nil, nil)
		if err == nil || err.Error() != "session not found" {
			t.Errorf("Expected API error message, got %v", err)
		}
	})

	t.Run("status without body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()
		client := NewClient(server.URL)

		err := client.apiCall(context.Background(), "GET", "/", nil, nil)
		if err == nil || err.Error() != "API error: 502" {
			t.Errorf("Expected status error, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		server, _ := newTestAPI(t, http.StatusOK, map[string]string{})
		client := NewClient(server.URL)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := client.apiCall(ctx, "GET", "/", nil, nil); err == nil {
			t.Error("Expected error for cancelled context")
		}
	})
}

func TestClient_handleGameState(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		wantPath string
	}{
		{"default session", nil, "/api/sessions/readme/state"},
		{"explicit session", map[string]interface{}{"session_id": "ab12"}, "/api/sessions/ab12/state"},
		{"escaped session", map[string]interface{}{"session_id": "a/b"}, "/api/sessions/a%2Fb/state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, rec := newTestAPI(t, http.StatusOK, sampleState())
			client := NewClient(server.URL)

			text, isErr := callTool(t, client, client.handleGameState, "game_state", tt.args)
			if isErr {
				t.Fatalf("Unexpected tool error: %s", text)
			}
			if rec.Path != tt.wantPath {
				t.Errorf("Expected path %s, got %s", tt.wantPath, rec.Path)
			}
			for _, want := range []string{"Score: 1,532", "Biggest block: 1,024", "Moves: 7", "| 1,024 |", "Possible moves: up, right"} {
				if !strings.Contains(text, want) {
					t.Errorf("Expected %q in output:\n%s", want, text)
				}
			}
		})
	}
}

func TestClient_handleMove(t *testing.T) {
	t.Run("missing direction", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:0")
		text, isErr := callTool(t, client, client.handleMove, "move", map[string]interface{}{})
		if !isErr || text != "direction is required" {
			t.Errorf("Expected direction error, got %q", text)
		}
	})

	t.Run("posts direction", func(t *testing.T) {
		result := service.MoveResult{
			Success:    true,
			Direction:  "left",
			ScoreDelta: 2048,
			GameState:  sampleState(),
			Message:    "Moved left",
		}
		server, rec := newTestAPI(t, http.StatusOK, result)
		client := NewClient(server.URL)

		text, isErr := callTool(t, client, client.handleMove, "move", map[string]interface{}{"direction": "left"})
		if isErr {
			t.Fatalf("Unexpected tool error: %s", text)
		}
		if rec.Method != "POST" || rec.Path != "/api/sessions/readme/move" {
			t.Errorf("Unexpected request %s %s", rec.Method, rec.Path)
		}
		if rec.Body["direction"] != "left" {
			t.Errorf("Expected direction in body, got %v", rec.Body)
		}
		if !strings.Contains(text, "Moved left") || !strings.Contains(text, "+2,048 points") {
			t.Errorf("Unexpected output:\n%s", text)
		}
	})

	t.Run("game over", func(t *testing.T) {
		ended := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
		result := service.MoveResult{
			Success:       true,
			GameOver:      true,
			GameState:     sampleState(),
			FinishedRound: &rounds.Round{SessionID: "readme", Score: 3000, BiggestBlock: 256, EndedAt: &ended},
		}
		server, _ := newTestAPI(t, http.StatusOK, result)
		client := NewClient(server.URL)

		text, _ := callTool(t, client, client.handleMove, "move", map[string]interface{}{"direction": "up"})
		if !strings.Contains(text, "Round finished: score 3,000, biggest block 256") {
			t.Errorf("Expected finished round summary, got:\n%s", text)
		}
	})

	t.Run("api error", func(t *testing.T) {
		server, _ := newTestAPI(t, http.StatusBadRequest, map[string]string{"error": "invalid direction: \"sideways\""})
		client := NewClient(server.URL)

		text, isErr := callTool(t, client, client.handleMove, "move", map[string]interface{}{"direction": "sideways"})
		if !isErr || !strings.Contains(text, "invalid direction") {
			t.Errorf("Expected tool error, got %q", text)
		}
	})
}

func TestClient_handleCreateSession(t *testing.T) {
	info := service.SessionInfo{ID: "c0de", ConfigName: "tiny", GameState: sampleState()}

	tests := []struct {
		name     string
		args     map[string]interface{}
		wantBody map[string]interface{}
	}{
		{"default config", nil, map[string]interface{}{}},
		{"named config", map[string]interface{}{"config_id": "tiny"}, map[string]interface{}{"config_id": "tiny"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, rec := newTestAPI(t, http.StatusCreated, info)
			client := NewClient(server.URL)

			text, isErr := callTool(t, client, client.handleCreateSession, "create_session", tt.args)
			if isErr {
				t.Fatalf("Unexpected tool error: %s", text)
			}
			if rec.Method != "POST" || rec.Path != "/api/sessions" {
				t.Errorf("Unexpected request %s %s", rec.Method, rec.Path)
			}
			if len(rec.Body) != len(tt.wantBody) || rec.Body["config_id"] != tt.wantBody["config_id"] {
				t.Errorf("Expected body %v, got %v", tt.wantBody, rec.Body)
			}
			if !strings.Contains(text, "Created session: c0de") || !strings.Contains(text, "Config: tiny") {
				t.Errorf("Unexpected output:\n%s", text)
			}
		})
	}
}

func TestClient_handleListSessions(t *testing.T) {
	response := map[string]interface{}{
		"count": 2,
		"sessions": []service.SessionInfo{
			{ID: "readme", ConfigName: "classic", GameState: &service.GameState{Score: 12345}, LastAccessedAt: time.Now()},
			{ID: "ab12", ConfigName: "tiny"},
		},
	}
	server, _ := newTestAPI(t, http.StatusOK, response)
	client := NewClient(server.URL)

	text, _ := callTool(t, client, client.handleListSessions, "list_sessions", nil)
	for _, want := range []string{"Sessions (2)", "- readme (Config: classic, Score: 12,345", "- ab12 (Config: tiny, Score: 0"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output:\n%s", want, text)
		}
	}
}

func TestClient_handleReset(t *testing.T) {
	response := map[string]interface{}{"message": "Game reset successfully", "state": sampleState()}
	server, rec := newTestAPI(t, http.StatusOK, response)
	client := NewClient(server.URL)

	text, _ := callTool(t, client, client.handleReset, "reset_game", map[string]interface{}{"session_id": "ab12"})
	if rec.Method != "POST" || rec.Path != "/api/sessions/ab12/reset" {
		t.Errorf("Unexpected request %s %s", rec.Method, rec.Path)
	}
	if !strings.HasPrefix(text, "Game reset successfully") || !strings.Contains(text, "Session: readme") {
		t.Errorf("Unexpected output:\n%s", text)
	}
}

func TestClient_handleScoreboard(t *testing.T) {
	at := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		board service.Scoreboard
		want  []string
		avoid string
	}{
		{
			name:  "with high score",
			board: service.Scoreboard{SessionID: "readme", CurrentScore: 40, HighScore: 20480, HighScoreAt: &at, HighScoreSession: "ab12"},
			want:  []string{"Current score: 40", "High score: 20,480 (set 05 Mar, 2024 by ab12)"},
		},
		{
			name:  "no finished rounds",
			board: service.Scoreboard{SessionID: "readme"},
			want:  []string{"Current score: 0", "High score: 0"},
			avoid: "set ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, rec := newTestAPI(t, http.StatusOK, tt.board)
			client := NewClient(server.URL)

			text, _ := callTool(t, client, client.handleScoreboard, "scoreboard", nil)
			if rec.Path != "/api/sessions/readme/scores" {
				t.Errorf("Unexpected path %s", rec.Path)
			}
			for _, want := range tt.want {
				if !strings.Contains(text, want) {
					t.Errorf("Expected %q in output:\n%s", want, text)
				}
			}
			if tt.avoid != "" && strings.Contains(text, tt.avoid) {
				t.Errorf("Did not expect %q in output:\n%s", tt.avoid, text)
			}
		})
	}
}

func TestClient_handleRoundHistory(t *testing.T) {
	ended := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	page := rounds.HistoryPage{
		Rounds: []*rounds.Round{
			{SessionID: "readme", Score: 5000, BiggestBlock: 512, Moves: 300, EndedAt: &ended},
			{SessionID: "readme", Score: 16, BiggestBlock: 8, Moves: 4},
		},
		TotalRounds: 5,
		Page:        2,
		PageSize:    2,
		TotalPages:  3,
		HasNext:     true,
		HasPrevious: true,
	}

	tests := []struct {
		name      string
		args      map[string]interface{}
		wantQuery string
	}{
		{"no options", nil, ""},
		{"all options", map[string]interface{}{"session_id": "readme", "page": float64(2), "limit": float64(2), "order": "asc"}, "limit=2&order=asc&page=2&session=readme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, rec := newTestAPI(t, http.StatusOK, page)
			client := NewClient(server.URL)

			text, _ := callTool(t, client, client.handleRoundHistory, "round_history", tt.args)
			if rec.Path != "/api/rounds" || rec.Query != tt.wantQuery {
				t.Errorf("Unexpected request %s?%s", rec.Path, rec.Query)
			}
			for _, want := range []string{
				"Rounds (page 2 of 3, 5 total)",
				"score 5,000, biggest 512, 300 moves, ended 05 Mar, 2024",
				"4 moves, playing",
				"More rounds on page 3",
			} {
				if !strings.Contains(text, want) {
					t.Errorf("Expected %q in output:\n%s", want, text)
				}
			}
		})
	}
}

func TestClient_handleListConfigs(t *testing.T) {
	configs := []service.ConfigInfo{
		{ConfigID: "classic", Name: "Classic", Description: "The original board", GridSize: 4, StartTiles: 2},
		{ConfigID: "tiny", Name: "Tiny", Description: "Quick games", GridSize: 2, StartTiles: 1},
	}
	server, _ := newTestAPI(t, http.StatusOK, configs)
	client := NewClient(server.URL)

	text, _ := callTool(t, client, client.handleListConfigs, "list_configs", nil)
	for _, want := range []string{"- classic: The original board (4x4, 2 start tiles)", "- tiny: Quick games (2x2, 1 start tiles)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output:\n%s", want, text)
		}
	}
}

func TestClient_handleGameInstructions(t *testing.T) {
	client := NewClient("http://127.0.0.1:0")
	text, isErr := callTool(t, client, client.handleGameInstructions, "game_instructions", nil)
	if isErr {
		t.Fatal("Unexpected tool error")
	}
	for _, want := range []string{"[4,4,_,_]", "GAME OVER", "session_id"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in instructions", want)
		}
	}
}
