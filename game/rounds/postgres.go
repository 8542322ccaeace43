package rounds

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema embed.FS

// PostgresStore keeps rounds in Postgres through a pgx pool
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects to dsn and applies the embedded schema
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

// Migrate applies schema.sql. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, string(sqlBytes))
	return err
}

const pgRoundColumns = `id::text, session_id, score, biggest_block, moves, started_at, ended_at`

func scanPgRound(row pgx.Row) (*Round, error) {
	var r Round
	if err := row.Scan(&r.ID, &r.SessionID, &r.Score, &r.BiggestBlock, &r.Moves, &r.StartedAt, &r.EndedAt); err != nil {
		return nil, err
	}
	r.StartedAt = r.StartedAt.UTC()
	if r.EndedAt != nil {
		t := r.EndedAt.UTC()
		r.EndedAt = &t
	}
	return &r, nil
}

func (s *PostgresStore) Start(ctx context.Context, sessionID string) (*Round, error) {
	key := sessionKey(sessionID)
	row := s.pool.QueryRow(ctx, `
		INSERT INTO rounds (id, session_id, started_at)
		VALUES ($1, $2, $3)
		RETURNING `+pgRoundColumns,
		newRoundID(), key, s.now().UTC())
	r, err := scanPgRound(row)
	if err != nil {
		var pgErr *pgconn.PgError
		// unique_violation on idx_rounds_active
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrRoundActive
		}
		return nil, fmt.Errorf("failed to insert round: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) AddScore(ctx context.Context, sessionID string, delta int) (*Round, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE rounds
		   SET score = score + $2,
		       moves = moves + 1
		 WHERE session_id = $1 AND ended_at IS NULL
		RETURNING `+pgRoundColumns,
		sessionKey(sessionID), delta)
	return s.activeResult(row)
}

func (s *PostgresStore) End(ctx context.Context, sessionID string, biggestBlock int, at time.Time) (*Round, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE rounds
		   SET biggest_block = $2,
		       ended_at = $3
		 WHERE session_id = $1 AND ended_at IS NULL
		RETURNING `+pgRoundColumns,
		sessionKey(sessionID), biggestBlock, at.UTC())
	return s.activeResult(row)
}

func (s *PostgresStore) Current(ctx context.Context, sessionID string) (*Round, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRoundColumns+` FROM rounds WHERE session_id = $1 AND ended_at IS NULL`,
		sessionKey(sessionID))
	return s.activeResult(row)
}

func (s *PostgresStore) activeResult(row pgx.Row) (*Round, error) {
	r, err := scanPgRound(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveRound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) HighScore(ctx context.Context) (*Round, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgRoundColumns+`
		  FROM rounds
		 WHERE ended_at IS NOT NULL
		 ORDER BY score DESC, ended_at ASC
		 LIMIT 1`)
	r, err := scanPgRound(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRounds
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read high score: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) History(ctx context.Context, opts HistoryOptions) (*HistoryPage, error) {
	opts = opts.Normalize()

	where := ""
	args := []any{}
	if opts.SessionID != "" {
		where = " WHERE session_id = $1"
		args = append(args, sessionKey(opts.SessionID))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*)::int FROM rounds`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count rounds: %w", err)
	}

	order := "DESC"
	if opts.Order == "asc" {
		order = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM rounds%s ORDER BY started_at %s, id ASC LIMIT $%d OFFSET $%d`,
		pgRoundColumns, where, order, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, opts.Limit, opts.offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*Round
	for rows.Next() {
		r, err := scanPgRound(rows)
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

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
