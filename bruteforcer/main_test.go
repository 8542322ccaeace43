package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/wricardo/readme-2048/api"
	"github.com/wricardo/readme-2048/game/config"
	"github.com/wricardo/readme-2048/game/engine"
	"github.com/wricardo/readme-2048/game/rounds"
	"github.com/wricardo/readme-2048/game/service"
	"github.com/wricardo/readme-2048/game/session"
	"github.com/wricardo/readme-2048/game/strategy"
)

// newTestServer runs the real API over in-memory sessions and rounds
func newTestServer(t *testing.T) (*httptest.Server, rounds.Tracker) {
	t.Helper()

	configs, err := config.NewManager("../configs", nil)
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	tracker := rounds.NewMemoryStore()
	svc, err := service.NewGameService(session.NewManager(nil), configs, tracker, service.Options{})
	if err != nil {
		t.Fatalf("Failed to create game service: %v", err)
	}

	server := httptest.NewServer(api.NewServer(svc, nil, api.Options{}))
	t.Cleanup(server.Close)
	return server, tracker
}

func TestClient(t *testing.T) {
	server, _ := newTestServer(t)
	client := NewClient(server.URL + "/")
	ctx := context.Background()

	info, err := client.CreateSession(ctx, "tiny")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if client.sessionID != info.ID || info.GameState == nil || info.GameState.GridSize != 2 {
		t.Fatalf("Unexpected session %+v", info)
	}

	state, err := client.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.SessionID != info.ID {
		t.Errorf("Expected state of %s, got %s", info.ID, state.SessionID)
	}

	dir, ok := strategy.Corner{}.NextMove(state.Grid)
	if !ok {
		t.Fatal("Expected a move on a fresh board")
	}
	result, err := client.Move(ctx, dir)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if !result.Success || result.Direction != dir.String() {
		t.Errorf("Unexpected move result %+v", result)
	}

	if _, err := client.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if _, err := client.CreateSession(ctx, "nope"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Expected 404 for unknown config, got %v", err)
	}

	client.sessionID = "missing"
	if _, err := client.GetState(ctx); err == nil {
		t.Error("Expected error for unknown session")
	}
}

func TestPlayRounds(t *testing.T) {
	server, tracker := newTestServer(t)
	client := NewClient(server.URL)
	ctx := context.Background()

	if _, err := client.CreateSession(ctx, "tiny"); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	result, err := playRounds(ctx, client, strategy.Greedy{}, 3, 0, 0, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("playRounds failed: %v", err)
	}
	if result.Rounds != 3 || result.TotalMoves < 3 || result.BiggestBlock < 2 {
		t.Errorf("Unexpected summary %+v", result)
	}

	// The reset and the three game overs each closed a round on the server
	page, err := tracker.History(ctx, rounds.HistoryOptions{SessionID: client.sessionID})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	finished := 0
	best := 0
	for _, r := range page.Rounds {
		if r.Finished() {
			finished++
			if r.Score > best {
				best = r.Score
			}
		}
	}
	if finished != 4 {
		t.Errorf("Expected 4 finished rounds, got %d", finished)
	}
	if best != result.BestScore {
		t.Errorf("Expected best score %d to match the server, got %d", result.BestScore, best)
	}
}

func TestPlayRound_MoveLimit(t *testing.T) {
	server, _ := newTestServer(t)
	client := NewClient(server.URL)
	ctx := context.Background()

	info, err := client.CreateSession(ctx, "classic")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	out, err := playRound(ctx, client, info.GameState, strategy.Corner{}, 3, 0, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("playRound failed: %v", err)
	}
	if out.Finished || out.Moves != 3 || out.Next == nil {
		t.Errorf("Expected an unfinished round of 3 moves, got %+v", out)
	}
}

func TestPlayRound_Cancelled(t *testing.T) {
	server, _ := newTestServer(t)
	client := NewClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())

	info, err := client.CreateSession(ctx, "classic")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	cancel()

	if _, err := playRound(ctx, client, info.GameState, strategy.Corner{}, 0, 0, zap.NewNop().Sugar()); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestResumeOrCreate(t *testing.T) {
	server, _ := newTestServer(t)
	ctx := context.Background()
	logger := zap.NewNop().Sugar()
	sessionFile := filepath.Join(t.TempDir(), ".session")

	first := NewClient(server.URL)
	if err := resumeOrCreate(ctx, first, "", sessionFile, "tiny", logger); err != nil {
		t.Fatalf("resumeOrCreate failed: %v", err)
	}
	saved, err := os.ReadFile(sessionFile)
	if err != nil || string(saved) != first.sessionID {
		t.Fatalf("Expected session file with %s, got %q (%v)", first.sessionID, saved, err)
	}

	// A second run picks the saved session up
	second := NewClient(server.URL)
	if err := resumeOrCreate(ctx, second, "", sessionFile, "tiny", logger); err != nil {
		t.Fatalf("resumeOrCreate failed: %v", err)
	}
	if second.sessionID != first.sessionID {
		t.Errorf("Expected to resume %s, got %s", first.sessionID, second.sessionID)
	}

	// An unknown explicit session falls back to a new one
	third := NewClient(server.URL)
	if err := resumeOrCreate(ctx, third, "gone", "", "tiny", logger); err != nil {
		t.Fatalf("resumeOrCreate failed: %v", err)
	}
	if third.sessionID == "gone" || third.sessionID == "" {
		t.Errorf("Expected a new session, got %q", third.sessionID)
	}
}

func TestSummaryAdd(t *testing.T) {
	var s summary
	s.add(&roundOutcome{Score: 100, BiggestBlock: 16, Moves: 10})
	s.add(&roundOutcome{Score: 60, BiggestBlock: 32, Moves: 5})

	want := summary{Rounds: 2, BestScore: 100, BiggestBlock: 32, TotalMoves: 15}
	if s != want {
		t.Errorf("Expected %+v, got %+v", want, s)
	}
}

func TestMoveSendsDirectionName(t *testing.T) {
	server, _ := newTestServer(t)
	client := NewClient(server.URL)
	client.sessionID = "fresh"

	// Moving on an unknown ID deals a new board under it
	result, err := client.Move(context.Background(), engine.Up)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if result.GameState == nil || result.GameState.SessionID != "fresh" {
		t.Errorf("Unexpected result %+v", result.GameState)
	}
}
