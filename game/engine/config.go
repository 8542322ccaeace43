package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateGameConfig validates a game configuration
func ValidateGameConfig(config *GameConfig) error {
	if config.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfiguration)
	}

	if config.GridSize < MinGridSize || config.GridSize > MaxGridSize {
		return fmt.Errorf("%w: grid_size must be between %d and %d, got %d",
			ErrInvalidConfiguration, MinGridSize, MaxGridSize, config.GridSize)
	}

	if config.StartTiles < MinStartTiles || config.StartTiles > MaxStartTiles {
		return fmt.Errorf("%w: start_tiles must be between %d and %d, got %d",
			ErrInvalidConfiguration, MinStartTiles, MaxStartTiles, config.StartTiles)
	}

	if len(config.SpawnValues) == 0 {
		return fmt.Errorf("%w: at least one spawn value is required", ErrInvalidConfiguration)
	}
	for i, sv := range config.SpawnValues {
		if sv.Value <= 0 {
			return fmt.Errorf("%w: spawn_values[%d].value must be positive, got %d", ErrInvalidConfiguration, i, sv.Value)
		}
		if sv.Weight <= 0 {
			return fmt.Errorf("%w: spawn_values[%d].weight must be positive, got %d", ErrInvalidConfiguration, i, sv.Weight)
		}
	}

	return nil
}

// DefaultConfig returns the classic 4x4 rules: two start tiles, 2 nine times
// out of ten and 4 otherwise.
func DefaultConfig() *GameConfig {
	return &GameConfig{
		Name:        "classic",
		Description: "Classic 4x4 board",
		GridSize:    4,
		StartTiles:  2,
		SpawnValues: []SpawnValue{
			{Value: 2, Weight: 9},
			{Value: 4, Weight: 1},
		},
	}
}

// LoadGameConfig loads and validates a game configuration from a JSON file
func LoadGameConfig(filename string) (*GameConfig, error) {
	// Support CONFIG_DIR environment variable for alternative config directory
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config GameConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", configPath, err)
	}

	if err := ValidateGameConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
