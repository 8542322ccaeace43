// Package rounds tracks played rounds and the all-time high score.
//
// A round opens when a session starts a fresh board and closes on game over
// or reset, recording its score, move count and biggest block. Every session
// has at most one open round. The high score is the best finished round
// across all sessions.
//
// Three stores implement Tracker: MemoryStore, SQLiteStore (modernc.org/sqlite,
// no cgo) and PostgresStore (pgx pool with an embedded schema). Open picks one
// from a DSN:
//
//	tracker, err := rounds.Open(ctx, "sqlite://data/rounds.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer tracker.Close()
package rounds
