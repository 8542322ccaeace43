// Package session provides session management for README 2048.
//
// A session is one board: its engine, the grid before the last move (used to
// highlight what changed) and a move counter. The README board is simply a
// session with a well-known ID.
//
// Core Types:
//
// Manager holds sessions in memory keyed case-insensitively and can write
// through to a SessionPersistence. FilePersistence stores one JSON file per
// session in a directory and restores the engine from the saved grid.
//
// Session Identifiers:
//
// Generated IDs are 4 hex characters from crypto/rand. Caller supplied IDs
// may use letters, digits, '-' and '_' and are stored lower-cased, since they
// double as file names.
//
// Usage:
//
//	manager := session.NewManagerWithPersistence(persistence, logger)
//
//	sess, loaded, err := manager.GetOrCreate("readme", config)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if !loaded {
//		// a fresh board was dealt
//	}
//
// Concurrency:
//
// The manager is safe for concurrent use. The engines it hands out are not;
// the service layer serializes moves.
package session
