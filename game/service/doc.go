// Package service provides the business logic layer for README 2048.
//
// The service package implements:
//   - Multi-session game management
//   - The click flow: load or deal a board, move, score, save
//   - Round bookkeeping through a rounds.Tracker
//   - README rendering and publishing for the README session
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages game configuration loading and validation.
// ReadmeRenderer turns a board and the scores into README content.
//
// Architecture:
//
// The service layer sits between the transports (HTTP, WebSocket, MCP) and the
// engine. All mutating operations are serialized by one mutex, so at most one
// move is in flight at a time.
//
// Usage:
//
//	gameService, err := service.NewGameService(sessionMgr, configMgr, tracker, service.Options{
//		Publisher: publish.NewFilePublisher("README.md"),
//		ServerURL: "https://example.ngrok.app",
//		Logger:    logger,
//	})
//
//	// One click on the README board
//	result, err := gameService.Move(ctx, service.DefaultSessionID, "left")
//
// Game Over:
//
// When a move leaves no legal move the round is closed with the biggest block
// and the end time, the session is replaced by a fresh board under the same ID
// and a new round is opened. The result carries the finished round.
package service
