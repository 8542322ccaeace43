package engine

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDirectionEncoding(t *testing.T) {
	tests := []struct {
		dir  Direction
		code int
		name string
	}{
		{Up, 1, "up"},
		{Down, 2, "down"},
		{Left, 3, "left"},
		{Right, 4, "right"},
	}

	for _, tt := range tests {
		if int(tt.dir) != tt.code {
			t.Errorf("%s: expected code %d, got %d", tt.name, tt.code, int(tt.dir))
		}
		if tt.dir.String() != tt.name {
			t.Errorf("Expected %s, got %s", tt.name, tt.dir.String())
		}
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input   string
		want    Direction
		wantErr bool
	}{
		{"up", Up, false},
		{"DOWN", Down, false},
		{" Left ", Left, false},
		{"right", Right, false},
		{"1", Up, false},
		{"4", Right, false},
		{"0", 0, true},
		{"5", 0, true},
		{"north", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDirection(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDirection) {
					t.Errorf("Expected ErrInvalidDirection, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDirectionJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Direction Direction `json:"direction"`
	}{Left})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"direction":"left"}` {
		t.Errorf("Unexpected encoding: %s", data)
	}

	var req struct {
		Direction Direction `json:"direction"`
	}
	if err := json.Unmarshal([]byte(`{"direction":2}`), &req); err != nil {
		t.Fatalf("Unmarshal of integer direction failed: %v", err)
	}
	if req.Direction != Down {
		t.Errorf("Expected down, got %s", req.Direction)
	}

	if err := json.Unmarshal([]byte(`{"direction":"sideways"}`), &req); err == nil {
		t.Error("Expected error for unknown direction")
	}

	if _, err := json.Marshal(Direction(0)); err == nil {
		t.Error("Expected error marshaling an invalid direction")
	}
}

func TestGridJSON(t *testing.T) {
	grid := Grid{{2, 0}, {0, 1024}}

	data, err := json.Marshal(grid)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `[[2,null],[null,1024]]` {
		t.Errorf("Expected empty cells as null, got %s", data)
	}

	var decoded Grid
	if err := json.Unmarshal([]byte(`[[2,null],[0,1024]]`), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !decoded.Equal(grid) {
		t.Errorf("Expected %v, got %v", grid, decoded)
	}

	if err := json.Unmarshal([]byte(`[[-2,null],[null,null]]`), &decoded); err == nil {
		t.Error("Expected error for negative block")
	}
}

func TestGridHelpers(t *testing.T) {
	grid := Grid{
		{2, 0, 4},
		{0, 0, 0},
		{8, 16, 0},
	}

	if grid.CountBlocks() != 4 {
		t.Errorf("Expected 4 blocks, got %d", grid.CountBlocks())
	}
	if grid.MaxValue() != 16 {
		t.Errorf("Expected max 16, got %d", grid.MaxValue())
	}
	if grid.IsFull() {
		t.Error("Grid should not be full")
	}

	empty := grid.EmptyCells()
	if len(empty) != 5 || empty[0] != (Position{Row: 0, Col: 1}) || empty[4] != (Position{Row: 2, Col: 2}) {
		t.Errorf("Unexpected empty cells: %v", empty)
	}

	clone := grid.Clone()
	clone[0][0] = 64
	if grid[0][0] != 2 {
		t.Error("Clone shares storage with the original")
	}

	if err := grid.Validate(3); err != nil {
		t.Errorf("Expected valid grid, got %v", err)
	}
	if err := grid.Validate(4); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("Expected ErrInvalidConfiguration for wrong size, got %v", err)
	}
}

func TestGridString(t *testing.T) {
	out := Grid{{2, 0}, {0, 128}}.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %q", out)
	}
	if lines[0] != "  2   ." || lines[1] != "  . 128" {
		t.Errorf("Unexpected rendering: %q", out)
	}
}
