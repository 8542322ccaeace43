// Command analyze simulates automated rounds on every configuration in the
// configs directory and prints how far each strategy gets: average and best
// score, moves per round, and how often each block size was reached.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/wricardo/readme-2048/game/config"
	"github.com/wricardo/readme-2048/game/engine"
	"github.com/wricardo/readme-2048/game/strategy"
)

// Stats aggregates the simulated rounds of one config and strategy
type Stats struct {
	Config     string
	Strategy   string
	Games      int
	Unfinished int
	TotalScore int
	BestScore  int
	TotalMoves int
	// BiggestBlocks counts rounds by the biggest block they ended with
	BiggestBlocks map[int]int
}

// AverageScore returns the mean score per round
func (s *Stats) AverageScore() float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.TotalScore) / float64(s.Games)
}

// AverageMoves returns the mean number of moves per round
func (s *Stats) AverageMoves() float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.TotalMoves) / float64(s.Games)
}

// Reached returns the share of rounds whose biggest block was at least block
func (s *Stats) Reached(block int) float64 {
	if s.Games == 0 {
		return 0
	}
	n := 0
	for b, count := range s.BiggestBlocks {
		if b >= block {
			n += count
		}
	}
	return float64(n) / float64(s.Games)
}

// analyzeConfig plays games rounds of cfg with the named strategy. Round i
// uses seed+i so runs are reproducible.
func analyzeConfig(cfg *engine.GameConfig, strategyName string, games int, seed int64, maxMoves int) (*Stats, error) {
	stats := &Stats{
		Config:        cfg.Name,
		Strategy:      strategyName,
		BiggestBlocks: make(map[int]int),
	}

	for i := 0; i < games; i++ {
		rng := engine.NewRandomSource(seed + int64(i))
		s, err := strategy.ByName(strategyName, rng)
		if err != nil {
			return nil, err
		}

		out, err := strategy.Play(cfg, s, rng, maxMoves)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", i+1, err)
		}

		stats.Games++
		stats.TotalScore += out.Score
		stats.TotalMoves += out.Moves
		if out.Score > stats.BestScore {
			stats.BestScore = out.Score
		}
		if !out.Finished {
			stats.Unfinished++
		}
		stats.BiggestBlocks[out.BiggestBlock]++
	}
	return stats, nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintf(w, "\n--- %s / %s (%d rounds) ---\n", stats.Config, stats.Strategy, stats.Games)
	fmt.Fprintf(w, "Average score: %s\n", humanize.Commaf(float64(int(stats.AverageScore()))))
	fmt.Fprintf(w, "Best score: %s\n", humanize.Comma(int64(stats.BestScore)))
	fmt.Fprintf(w, "Average moves: %.1f\n", stats.AverageMoves())
	if stats.Unfinished > 0 {
		fmt.Fprintf(w, "⚠️  %d rounds hit the move limit\n", stats.Unfinished)
	}

	blocks := make([]int, 0, len(stats.BiggestBlocks))
	for b := range stats.BiggestBlocks {
		blocks = append(blocks, b)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(blocks)))
	for _, b := range blocks {
		fmt.Fprintf(w, "  reached %6s: %5.1f%%\n", humanize.Comma(int64(b)), 100*stats.Reached(b))
	}
}

func run(w io.Writer, configDir string, strategies []string, games int, seed int64, maxMoves int) error {
	manager, err := config.NewManager(configDir, nil)
	if err != nil {
		return err
	}
	configs, err := manager.ListConfigs()
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return fmt.Errorf("no valid configurations in %s", configDir)
	}

	for _, info := range configs {
		cfg, err := manager.LoadConfig(info.ConfigID)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "\n=== Analyzing %s ===\n", info.Filename)
		fmt.Fprintf(w, "Name: %s\n", cfg.Name)
		fmt.Fprintf(w, "Grid Size: %d x %d\n", cfg.GridSize, cfg.GridSize)
		fmt.Fprintf(w, "Start tiles: %d\n", cfg.StartTiles)

		for _, name := range strategies {
			stats, err := analyzeConfig(cfg, name, games, seed, maxMoves)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", info.ConfigID, name, err)
			}
			printStats(w, stats)
		}
	}
	return nil
}

func main() {
	configDir := flag.String("config-dir", "configs", "Directory containing game configurations")
	games := flag.Int("games", 200, "Rounds to simulate per config and strategy")
	seed := flag.Int64("seed", 1, "Seed of the first round")
	maxMoves := flag.Int("max-moves", 100000, "Move limit per round (0 = none)")
	strategies := flag.String("strategies", strings.Join(strategy.Names(), ","), "Comma-separated strategies to compare")
	flag.Parse()

	if err := run(os.Stdout, *configDir, strings.Split(*strategies, ","), *games, *seed, *maxMoves); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
