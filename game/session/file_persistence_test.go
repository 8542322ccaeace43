package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/readme-2048/game/config"
	"github.com/wricardo/readme-2048/game/engine"
	"github.com/wricardo/readme-2048/game/service"
)

func newTestPersistence(t *testing.T) (*FilePersistence, *config.Manager, string) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "session_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	configManager, err := config.NewManager("../../configs", nil)
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}

	persistence, err := NewFilePersistence(tempDir, configManager)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}
	return persistence, configManager, tempDir
}

func TestFilePersistence(t *testing.T) {
	persistence, configManager, tempDir := newTestPersistence(t)

	gameConfig, err := configManager.LoadConfig("tiny")
	if err != nil {
		t.Fatalf("Failed to load tiny config: %v", err)
	}
	grid := engine.Grid{{4, 0}, {0, 2}}
	gameEngine, err := engine.NewEngineFromGrid(gameConfig, grid, engine.NewRandomSource(1))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	created := time.Now().Add(-time.Hour).Truncate(time.Second)
	session := &service.Session{
		ID:             "test1",
		Engine:         gameEngine,
		Config:         gameConfig,
		PreviousGrid:   engine.Grid{{2, 2}, {0, 0}},
		Moves:          7,
		CreatedAt:      created,
		LastAccessedAt: created,
	}

	t.Run("save and load", func(t *testing.T) {
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}
		if !persistence.Exists("test1") {
			t.Fatal("Session file should exist after save")
		}

		loaded, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if !loaded.Engine.Grid().Equal(grid) {
			t.Errorf("Expected grid %v, got %v", grid, loaded.Engine.Grid())
		}
		if !loaded.PreviousGrid.Equal(session.PreviousGrid) {
			t.Errorf("Expected previous grid %v, got %v", session.PreviousGrid, loaded.PreviousGrid)
		}
		if loaded.Moves != 7 {
			t.Errorf("Expected 7 moves, got %d", loaded.Moves)
		}
		if loaded.Config.Name != "tiny" {
			t.Errorf("Expected tiny config, got %s", loaded.Config.Name)
		}
		if !loaded.CreatedAt.Equal(created) {
			t.Errorf("Expected created %v, got %v", created, loaded.CreatedAt)
		}
	})

	t.Run("file format", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(tempDir, "test1.json"))
		if err != nil {
			t.Fatalf("Failed to read session file: %v", err)
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("Session file is not JSON: %v", err)
		}
		for _, field := range []string{"id", "config_name", "created_at", "last_accessed_at", "grid", "previous_grid", "moves", "config"} {
			if _, ok := raw[field]; !ok {
				t.Errorf("Missing field %q", field)
			}
		}
		if raw["config_name"] != "tiny" {
			t.Errorf("Expected config_name tiny, got %v", raw["config_name"])
		}
		row := raw["grid"].([]any)[0].([]any)
		if row[1] != nil {
			t.Errorf("Expected empty cell stored as null, got %v", row[1])
		}
	})

	t.Run("list all", func(t *testing.T) {
		os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("x"), 0644)
		ids, err := persistence.ListAll()
		if err != nil {
			t.Fatalf("ListAll failed: %v", err)
		}
		if len(ids) != 1 || ids[0] != "test1" {
			t.Errorf("Expected [test1], got %v", ids)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := persistence.Delete("test1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if persistence.Exists("test1") {
			t.Error("Session file should not exist after delete")
		}
		if err := persistence.Delete("test1"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("load missing", func(t *testing.T) {
		if _, err := persistence.Load("nope"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
		if _, err := persistence.Load("../nope"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound for unsafe ID, got %v", err)
		}
	})
}

func TestFilePersistence_CorruptFiles(t *testing.T) {
	persistence, _, tempDir := newTestPersistence(t)

	t.Run("bad json", func(t *testing.T) {
		os.WriteFile(filepath.Join(tempDir, "broken.json"), []byte("{"), 0644)
		if _, err := persistence.Load("broken"); err == nil {
			t.Error("Expected error for corrupt session file")
		}
	})

	t.Run("grid does not fit config", func(t *testing.T) {
		data := `{"id":"wrong","config_name":"classic","grid":[[2,null],[null,2]],"moves":0}`
		os.WriteFile(filepath.Join(tempDir, "wrong.json"), []byte(data), 0644)
		if _, err := persistence.Load("wrong"); !errors.Is(err, engine.ErrInvalidConfiguration) {
			t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
		}
	})

	t.Run("unknown config uses saved rules", func(t *testing.T) {
		data := `{"id":"renamed","config_name":"gone","config":{"name":"gone","grid_size":2,"start_tiles":1,"spawn_values":[{"value":2,"weight":1}]},"grid":[[2,null],[null,2]],"moves":3}`
		os.WriteFile(filepath.Join(tempDir, "renamed.json"), []byte(data), 0644)
		loaded, err := persistence.Load("renamed")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.Config.Name != "gone" || loaded.Engine.Size() != 2 || loaded.Moves != 3 {
			t.Errorf("Unexpected restored session: config %s, size %d, moves %d", loaded.Config.Name, loaded.Engine.Size(), loaded.Moves)
		}
	})

	t.Run("unknown config falls back to default", func(t *testing.T) {
		data := `{"id":"fallback","config_name":"gone","grid":[[2,null,null,null],[null,null,null,null],[null,null,null,null],[null,null,null,2]],"moves":0}`
		os.WriteFile(filepath.Join(tempDir, "fallback.json"), []byte(data), 0644)
		loaded, err := persistence.Load("fallback")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.Config.Name != "classic" {
			t.Errorf("Expected the classic default, got %s", loaded.Config.Name)
		}
	})

	t.Run("unknown config", func(t *testing.T) {
		data := `{"id":"lost","config_name":"nonexistent","grid":[[2,null],[null,2]],"moves":0}`
		os.WriteFile(filepath.Join(tempDir, "lost.json"), []byte(data), 0644)
		if _, err := persistence.Load("lost"); !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("Expected ErrConfigNotFound, got %v", err)
		}
	})
}
