// Package validate checks game configuration JSON files. It reports:
//   - JSON structure and required fields
//   - Grid size and start tile bounds
//   - Spawn values and weights
//   - Spawn values that can never merge into a power of two (warning only)
package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/readme-2048/game/engine"
)

// Result captures the outcome of validating a single file
type Result struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

func (r *Result) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Config loads and validates a single configuration file. Every problem is
// reported, not only the first.
func Config(filePath string) Result {
	result := Result{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var config engine.GameConfig
	if err := json.Unmarshal(data, &config); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	if config.Name == "" {
		result.fail("name is required")
	}
	if config.GridSize < engine.MinGridSize || config.GridSize > engine.MaxGridSize {
		result.fail("grid_size must be between %d and %d, got %d", engine.MinGridSize, engine.MaxGridSize, config.GridSize)
	}
	if config.StartTiles < engine.MinStartTiles || config.StartTiles > engine.MaxStartTiles {
		result.fail("start_tiles must be between %d and %d, got %d", engine.MinStartTiles, engine.MaxStartTiles, config.StartTiles)
	}

	if len(config.SpawnValues) == 0 {
		result.fail("at least one spawn value is required")
	}
	seen := make(map[int]bool)
	totalWeight := 0
	for i, sv := range config.SpawnValues {
		if sv.Value <= 0 {
			result.fail("spawn_values[%d].value must be positive, got %d", i, sv.Value)
		} else if !isPowerOfTwo(sv.Value) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("spawn value %d is not a power of two", sv.Value))
		}
		if sv.Weight <= 0 {
			result.fail("spawn_values[%d].weight must be positive, got %d", i, sv.Weight)
		} else {
			totalWeight += sv.Weight
		}
		if seen[sv.Value] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("spawn value %d is listed more than once", sv.Value))
		}
		seen[sv.Value] = true
	}

	// The engine has the final word, so the report never disagrees with the server
	if result.Valid {
		if err := engine.ValidateGameConfig(&config); err != nil {
			result.fail("%v", err)
		}
	}

	if result.Valid {
		result.Info = append(result.Info, fmt.Sprintf("Name: %s", config.Name))
		result.Info = append(result.Info, fmt.Sprintf("Grid: %dx%d", config.GridSize, config.GridSize))
		result.Info = append(result.Info, fmt.Sprintf("Start tiles: %d", config.StartTiles))

		odds := make([]string, 0, len(config.SpawnValues))
		for _, sv := range config.SpawnValues {
			odds = append(odds, fmt.Sprintf("%d (%.0f%%)", sv.Value, 100*float64(sv.Weight)/float64(totalWeight)))
		}
		result.Info = append(result.Info, fmt.Sprintf("Spawns: %s", strings.Join(odds, ", ")))
	}

	return result
}

// Dir validates every *.json file in dir, sorted by file name
func Dir(dir string) ([]Result, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("config directory: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("finding config files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no configuration files in %s", dir)
	}
	sort.Strings(files)

	results := make([]Result, 0, len(files))
	for _, file := range files {
		results = append(results, Config(file))
	}
	return results, nil
}

// Report prints a concise report of results to w and returns whether every
// configuration is valid.
func Report(w io.Writer, results []Result) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Info {
				fmt.Fprintln(w, "  ✓ "+info)
			}
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Fprintln(w, "  ❌ "+err)
			}
		}
		for _, warning := range result.Warnings {
			fmt.Fprintln(w, "  ⚠️  "+warning)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All configurations are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some configurations have errors")
	}
	return allValid
}
