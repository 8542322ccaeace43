package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/readme-2048/game/config"
	"github.com/wricardo/readme-2048/game/engine"
	"github.com/wricardo/readme-2048/game/publish"
)

// keyDirections maps terminal input to moves, in addition to the names and
// 1-4 accepted by engine.ParseDirection
var keyDirections = map[string]engine.Direction{
	"w": engine.Up,
	"k": engine.Up,
	"s": engine.Down,
	"j": engine.Down,
	"a": engine.Left,
	"h": engine.Left,
	"d": engine.Right,
	"l": engine.Right,
}

// playSummary is what a finished terminal game reports
type playSummary struct {
	Score        int
	BiggestBlock int
	Moves        int
	GameOver     bool
}

func parseInput(line string) (engine.Direction, error) {
	line = strings.ToLower(strings.TrimSpace(line))
	if dir, ok := keyDirections[line]; ok {
		return dir, nil
	}
	return engine.ParseDirection(line)
}

func printBoard(out io.Writer, game engine.Engine, score, moves int) {
	fmt.Fprintf(out, "\nScore: %s  Moves: %d\n", humanize.Comma(int64(score)), moves)
	fmt.Fprint(out, publish.PlainBoard(game.Grid()))
}

// playGame runs an interactive game reading one move per line from in until
// the board is terminal, the input ends or the player quits with "q"
func playGame(in io.Reader, out io.Writer, game engine.Engine) (*playSummary, error) {
	summary := &playSummary{}
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "Move with w/a/s/d, h/j/k/l or up/down/left/right. q quits.")
	printBoard(out, game, summary.Score, summary.Moves)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "q") || strings.EqualFold(line, "quit") {
			break
		}

		dir, err := parseInput(line)
		if err != nil {
			fmt.Fprintf(out, "Unknown move %q\n", line)
			continue
		}

		result, err := game.MakeMove(dir)
		if err != nil {
			if errors.Is(err, engine.ErrGameOver) {
				summary.GameOver = true
				break
			}
			return nil, err
		}
		if !result.Moved {
			fmt.Fprintf(out, "Nothing moves %s\n", dir)
			continue
		}

		summary.Score += result.ScoreDelta
		summary.Moves++
		printBoard(out, game, summary.Score, summary.Moves)

		if result.GameOver {
			summary.GameOver = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	summary.BiggestBlock = game.BiggestBlock()
	if summary.GameOver {
		fmt.Fprintln(out, "\nGame over!")
	}
	fmt.Fprintf(out, "Final score %s, biggest block %s after %d moves\n",
		humanize.Comma(int64(summary.Score)), humanize.Comma(int64(summary.BiggestBlock)), summary.Moves)
	return summary, nil
}

// loadPlayConfig reads name from the configs directory, or straight from disk
// when it is a path to a JSON file
func loadPlayConfig(configDir, name string) (*engine.GameConfig, error) {
	if strings.HasSuffix(name, ".json") {
		return engine.LoadGameConfig(name)
	}
	configManager, err := config.NewManager(configDir, nil)
	if err != nil {
		return nil, err
	}
	return configManager.LoadConfig(name)
}

func runPlay(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadPlayConfig(cmd.String("config-dir"), cmd.String("config"))
	if err != nil {
		return fmt.Errorf("config %q: %w", cmd.String("config"), err)
	}

	seed := cmd.Int64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	game, err := engine.NewEngine(cfg, engine.NewRandomSource(seed))
	if err != nil {
		return err
	}

	root := cmd.Root()
	_, err = playGame(root.Reader, root.Writer, game)
	return err
}
