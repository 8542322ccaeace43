package main

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/wricardo/readme-2048/game/engine"
)

func tinyConfig() *engine.GameConfig {
	return &engine.GameConfig{
		Name:        "tiny",
		GridSize:    2,
		StartTiles:  1,
		SpawnValues: []engine.SpawnValue{{Value: 2, Weight: 1}},
	}
}

func TestStatsAverages(t *testing.T) {
	empty := &Stats{}
	if empty.AverageScore() != 0 || empty.AverageMoves() != 0 || empty.Reached(2) != 0 {
		t.Error("Expected zero averages without games")
	}

	stats := &Stats{
		Games:         4,
		TotalScore:    100,
		TotalMoves:    42,
		BiggestBlocks: map[int]int{8: 1, 16: 2, 32: 1},
	}
	if stats.AverageScore() != 25 {
		t.Errorf("Expected average score 25, got %f", stats.AverageScore())
	}
	if stats.AverageMoves() != 10.5 {
		t.Errorf("Expected average moves 10.5, got %f", stats.AverageMoves())
	}

	tests := []struct {
		block int
		want  float64
	}{
		{8, 1},
		{16, 0.75},
		{32, 0.25},
		{64, 0},
	}
	for _, tt := range tests {
		if got := stats.Reached(tt.block); got != tt.want {
			t.Errorf("Reached(%d) = %f, want %f", tt.block, got, tt.want)
		}
	}
}

func TestAnalyzeConfig(t *testing.T) {
	stats, err := analyzeConfig(tinyConfig(), "greedy", 10, 42, 0)
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}

	if stats.Games != 10 || stats.Config != "tiny" || stats.Strategy != "greedy" {
		t.Errorf("Unexpected stats header %+v", stats)
	}
	rounds := 0
	for _, count := range stats.BiggestBlocks {
		rounds += count
	}
	if rounds != 10 {
		t.Errorf("Expected 10 rounds in the block histogram, got %d", rounds)
	}
	if stats.Unfinished != 0 {
		t.Errorf("Expected every round to finish, got %d unfinished", stats.Unfinished)
	}
	if float64(stats.BestScore) < stats.AverageScore() {
		t.Errorf("Best score %d below average %f", stats.BestScore, stats.AverageScore())
	}

	again, err := analyzeConfig(tinyConfig(), "greedy", 10, 42, 0)
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}
	if !reflect.DeepEqual(stats, again) {
		t.Errorf("Expected identical stats for the same seed:\n%+v\n%+v", stats, again)
	}
}

func TestAnalyzeConfig_Errors(t *testing.T) {
	if _, err := analyzeConfig(tinyConfig(), "expectimax", 1, 1, 0); err == nil {
		t.Error("Expected error for unknown strategy")
	}
	if _, err := analyzeConfig(&engine.GameConfig{Name: "bad"}, "corner", 1, 1, 0); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestAnalyzeConfig_MoveLimit(t *testing.T) {
	stats, err := analyzeConfig(engine.DefaultConfig(), "corner", 3, 1, 4)
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}
	if stats.Unfinished != 3 || stats.TotalMoves != 12 {
		t.Errorf("Expected 3 unfinished rounds of 4 moves, got %+v", stats)
	}
}

func TestPrintStats(t *testing.T) {
	stats := &Stats{
		Config:        "classic",
		Strategy:      "corner",
		Games:         2,
		Unfinished:    1,
		TotalScore:    2468,
		BestScore:     2000,
		TotalMoves:    300,
		BiggestBlocks: map[int]int{8: 1, 16: 1},
	}

	var buf bytes.Buffer
	printStats(&buf, stats)
	output := buf.String()

	for _, want := range []string{
		"--- classic / corner (2 rounds) ---",
		"Average score: 1,234",
		"Best score: 2,000",
		"Average moves: 150.0",
		"1 rounds hit the move limit",
		"16:  50.0%",
		"8: 100.0%",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output:\n%s", want, output)
		}
	}

	// Biggest blocks come first
	if strings.Index(output, "16:") > strings.Index(output, " 8:") {
		t.Errorf("Expected 16 listed before 8:\n%s", output)
	}
}

func TestRun(t *testing.T) {
	var buf bytes.Buffer
	if err := run(&buf, "../../configs", []string{"corner"}, 2, 1, 0); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"=== Analyzing classic.json ===", "Grid Size: 2 x 2", "--- tiny / corner (2 rounds) ---"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output", want)
		}
	}

	if err := run(&buf, "/non/existent/path", []string{"corner"}, 1, 1, 0); err == nil {
		t.Error("Expected error for missing config directory")
	}
	if err := run(&buf, "../../configs", []string{"nope"}, 1, 1, 0); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}
