// Package mcp exposes README 2048 to AI agents over the Model Context Protocol.
//
// The client is thin: every tool is a call to the REST API of a running
// server, so agents and README visitors play on the same boards.
//
// Tools:
//   - game_state: Board, score and possible moves
//   - move: Slide the board in one direction
//   - reset_game: Abandon the current game and deal a new board
//   - scoreboard: Current score and all-time high score
//   - round_history: Paginated round history
//   - create_session: Create a private board with a chosen config
//   - list_sessions: List all sessions
//   - list_configs: List available board configurations
//   - game_instructions: Rules and strategy tips
//
// Tools that take a session_id default to the shared README board.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
