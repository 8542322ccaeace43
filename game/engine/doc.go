// Package engine provides the core game logic for README 2048.
//
// The engine package implements the game mechanics including:
//   - The square grid of numbered blocks and its JSON form
//   - Sliding and merging blocks along one of four directions
//   - Spawning a new block after every move that changed the grid
//   - Score accounting and game-over detection
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. Grid is the board snapshot handed to callers,
// while GameConfig defines the board size and spawn rules loaded from JSON
// files.
//
// Usage:
//
//	gameEngine, err := engine.NewEngine(engine.DefaultConfig(), engine.NewRandomSource(time.Now().UnixNano()))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameEngine.MakeMove(engine.Left)
//	if errors.Is(err, engine.ErrGameOver) {
//		// start a new game
//	}
//
// Game Rules:
//
// Each move slides every row (left/right) or column (up/down) toward the
// chosen edge. Two equal neighbours merge into their sum and the sum is
// added to the move's score; a merged block does not merge again in the same
// move, so [2 2 2 2] moved left becomes [4 4 . .]. A move that changes
// nothing spawns nothing and scores nothing. The game ends when the grid is
// full and no direction would change it; further moves return ErrGameOver.
//
// A GameEngine is not safe for concurrent use.
package engine
