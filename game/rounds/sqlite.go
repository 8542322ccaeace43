package rounds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore keeps rounds in a local SQLite file. Times are stored as Unix
// nanoseconds in UTC.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := initSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func initSQLite(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer keeps the active-round check and insert from interleaving
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := createSchemas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return db, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS rounds (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			score INTEGER NOT NULL DEFAULT 0,
			biggest_block INTEGER NOT NULL DEFAULT 0,
			moves INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			ended_at INTEGER
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_rounds_active ON rounds(session_id) WHERE ended_at IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_started_at ON rounds(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_score ON rounds(score DESC, ended_at ASC);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

const sqliteRoundColumns = `id, session_id, score, biggest_block, moves, started_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRound(row rowScanner) (*Round, error) {
	var r Round
	var started int64
	var ended sql.NullInt64
	if err := row.Scan(&r.ID, &r.SessionID, &r.Score, &r.BiggestBlock, &r.Moves, &started, &ended); err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(0, started).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		r.EndedAt = &t
	}
	return &r, nil
}

func (s *SQLiteStore) activeRound(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, key string) (*Round, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+sqliteRoundColumns+` FROM rounds WHERE session_id = ? AND ended_at IS NULL`, key)
	r, err := scanSQLiteRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveRound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read active round: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) Start(ctx context.Context, sessionID string) (*Round, error) {
	key := sessionKey(sessionID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.activeRound(ctx, tx, key); err == nil {
		return nil, ErrRoundActive
	} else if !errors.Is(err, ErrNoActiveRound) {
		return nil, err
	}

	round := &Round{
		ID:        newRoundID(),
		SessionID: key,
		StartedAt: s.now().UTC(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO rounds (id, session_id, score, biggest_block, moves, started_at) VALUES (?, ?, 0, 0, 0, ?)`,
		round.ID, round.SessionID, round.StartedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert round: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit round: %w", err)
	}
	return round, nil
}

func (s *SQLiteStore) AddScore(ctx context.Context, sessionID string, delta int) (*Round, error) {
	key := sessionKey(sessionID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE rounds SET score = score + ?, moves = moves + 1 WHERE session_id = ? AND ended_at IS NULL`,
		delta, key)
	if err != nil {
		return nil, fmt.Errorf("failed to add score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNoActiveRound
	}
	return s.activeRound(ctx, s.db, key)
}

func (s *SQLiteStore) End(ctx context.Context, sessionID string, biggestBlock int, at time.Time) (*Round, error) {
	key := sessionKey(sessionID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	round, err := s.activeRound(ctx, tx, key)
	if err != nil {
		return nil, err
	}

	ended := at.UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE rounds SET biggest_block = ?, ended_at = ? WHERE id = ?`,
		biggestBlock, ended.UnixNano(), round.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to end round: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit round end: %w", err)
	}

	round.BiggestBlock = biggestBlock
	round.EndedAt = &ended
	return round, nil
}

func (s *SQLiteStore) Current(ctx context.Context, sessionID string) (*Round, error) {
	return s.activeRound(ctx, s.db, sessionKey(sessionID))
}

func (s *SQLiteStore) HighScore(ctx context.Context) (*Round, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRoundColumns+` FROM rounds WHERE ended_at IS NOT NULL ORDER BY score DESC, ended_at ASC LIMIT 1`)
	r, err := scanSQLiteRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRounds
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read high score: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) History(ctx context.Context, opts HistoryOptions) (*HistoryPage, error) {
	opts = opts.Normalize()

	where := ""
	var args []any
	if opts.SessionID != "" {
		where = " WHERE session_id = ?"
		args = append(args, sessionKey(opts.SessionID))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rounds`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count rounds: %w", err)
	}

	order := "DESC"
	if opts.Order == "asc" {
		order = "ASC"
	}
	query := `SELECT ` + sqliteRoundColumns + ` FROM rounds` + where +
		` ORDER BY started_at ` + order + `, id ASC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, opts.offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*Round
	for rows.Next() {
		r, err := scanSQLiteRound(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return newPage(opts, total, rounds), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
