package strategy

import (
	"errors"

	"github.com/wricardo/readme-2048/game/engine"
)

// Outcome summarizes one simulated round
type Outcome struct {
	Score        int
	BiggestBlock int
	Moves        int
	// Finished is false when maxMoves stopped the round early
	Finished bool
}

// Play runs one round of cfg with s picking every move until the board is
// terminal or maxMoves moves were made. maxMoves <= 0 means no limit.
func Play(cfg *engine.GameConfig, s Strategy, rng engine.RandomSource, maxMoves int) (Outcome, error) {
	game, err := engine.NewEngine(cfg, rng)
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	for maxMoves <= 0 || out.Moves < maxMoves {
		dir, ok := s.NextMove(game.Grid())
		if !ok {
			out.Finished = true
			break
		}

		result, err := game.MakeMove(dir)
		if errors.Is(err, engine.ErrGameOver) {
			out.Finished = true
			break
		}
		if err != nil {
			return out, err
		}
		if !result.Moved {
			// A strategy only returns directions that change the grid
			return out, errors.New("strategy " + s.Name() + " picked a move that changes nothing")
		}

		out.Score += result.ScoreDelta
		out.Moves++
		if result.GameOver {
			out.Finished = true
			break
		}
	}

	out.BiggestBlock = game.BiggestBlock()
	return out, nil
}
