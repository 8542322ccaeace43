package rounds

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRoundActive   = errors.New("session already has an active round")
	ErrNoActiveRound = errors.New("session has no active round")
	ErrNoRounds      = errors.New("no finished rounds")
)

// Round is one game played on a session, from its first tile to game over
// or reset.
type Round struct {
	ID           string     `json:"id"`
	SessionID    string     `json:"session_id"`
	Score        int        `json:"score"`
	BiggestBlock int        `json:"biggest_block"`
	Moves        int        `json:"moves"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// Finished reports whether the round has ended
func (r *Round) Finished() bool {
	return r.EndedAt != nil
}

func (r *Round) clone() *Round {
	c := *r
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// Tracker records rounds per session and the best finished round overall.
// A session has at most one active round.
type Tracker interface {
	// Start opens a round for the session. ErrRoundActive if one is open.
	Start(ctx context.Context, sessionID string) (*Round, error)
	// AddScore records one move worth delta points on the active round.
	AddScore(ctx context.Context, sessionID string, delta int) (*Round, error)
	// End closes the active round with its biggest block.
	End(ctx context.Context, sessionID string, biggestBlock int, at time.Time) (*Round, error)
	// Current returns the active round. ErrNoActiveRound if none.
	Current(ctx context.Context, sessionID string) (*Round, error)
	// HighScore returns the highest scoring finished round; the earliest
	// end wins ties. ErrNoRounds if nothing has finished yet.
	HighScore(ctx context.Context) (*Round, error)
	// History pages through rounds ordered by start time.
	History(ctx context.Context, opts HistoryOptions) (*HistoryPage, error)
	Close() error
}

// HistoryOptions configures round history retrieval
type HistoryOptions struct {
	SessionID string `json:"session_id,omitempty"`
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	Order     string `json:"order"` // "asc" or "desc"
}

// HistoryPage is one page of round history
type HistoryPage struct {
	Rounds      []*Round `json:"rounds"`
	TotalRounds int      `json:"total_rounds"`
	Page        int      `json:"page"`
	PageSize    int      `json:"page_size"`
	TotalPages  int      `json:"total_pages"`
	HasNext     bool     `json:"has_next"`
	HasPrevious bool     `json:"has_previous"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize applies the paging defaults: page 1, 20 per page (max 100),
// newest first. Pages past the largest representable offset are clamped.
func (o HistoryOptions) Normalize() HistoryOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit <= 0 {
		o.Limit = defaultPageSize
	}
	if o.Limit > maxPageSize {
		o.Limit = maxPageSize
	}
	if maxPage := math.MaxInt / o.Limit; o.Page > maxPage {
		o.Page = maxPage
	}
	if o.Order != "asc" {
		o.Order = "desc"
	}
	return o
}

func (o HistoryOptions) offset() int {
	return (o.Page - 1) * o.Limit
}

func newPage(opts HistoryOptions, total int, rounds []*Round) *HistoryPage {
	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}
	if rounds == nil {
		rounds = []*Round{}
	}
	return &HistoryPage{
		Rounds:      rounds,
		TotalRounds: total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}
}

// sortRounds orders rounds by start time, then ID for a stable order
func sortRounds(rounds []*Round, order string) {
	sort.SliceStable(rounds, func(i, j int) bool {
		a, b := rounds[i], rounds[j]
		if !a.StartedAt.Equal(b.StartedAt) {
			if order == "asc" {
				return a.StartedAt.Before(b.StartedAt)
			}
			return a.StartedAt.After(b.StartedAt)
		}
		return a.ID < b.ID
	})
}

func newRoundID() string {
	return uuid.NewString()
}

// Open selects a Tracker from a DSN: "" or "memory" keeps rounds in memory,
// postgres:// and postgresql:// use Postgres, sqlite://path or any other
// value is a SQLite file path.
func Open(ctx context.Context, dsn string) (Tracker, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		store, err := NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres round store: %w", err)
		}
		return store, nil
	default:
		store, err := NewSQLiteStore(strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite round store: %w", err)
		}
		return store, nil
	}
}
