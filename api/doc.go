// Package api provides the HTTP surface of README 2048.
//
// Endpoints:
//
// README links:
//   - GET /click/{direction} - Apply a move (up, down, left, right or 1-4) to the README board
//   - GET / - Same as /click/1, used to deal the first board
//
// After a click the player is redirected to the configured GitHub URL with a
// cacheBust query parameter. Without a GitHub URL the rendered README is
// returned as text/markdown.
//
// Session Management:
//   - POST /api/sessions - Create new session ({"config_id": "tiny"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete session and close its round
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Board, score and possible moves
//   - POST /api/sessions/{id}/move - {"direction": "left"}
//   - POST /api/sessions/{id}/reset - Abandon the game and deal a new board
//   - GET /api/sessions/{id}/readme - Rendered README markdown
//   - GET /api/sessions/{id}/scores - Current score and high score
//
// Rounds:
//   - GET /api/scores - Scoreboard of the README board
//   - GET /api/rounds - Round history (?session=&page=&limit=&order=)
//
// Configuration:
//   - GET /api/configs - List available configurations
//   - POST /api/configs - Save a configuration
//   - GET /api/configs/{name} - Get one configuration
//
// Other:
//   - GET /healthz - Liveness probe
//   - GET /ws?session={id} - WebSocket stream of state updates
//
// Errors are JSON objects {"error": "..."}: 400 for invalid directions,
// session IDs and configurations, 404 for unknown sessions and configs, 500
// otherwise.
package api
