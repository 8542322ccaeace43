package rounds

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps rounds in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	active map[string]*Round
	rounds []*Round
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory tracker
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active: make(map[string]*Round),
		now:    time.Now,
	}
}

func sessionKey(sessionID string) string {
	return strings.ToLower(sessionID)
}

func (s *MemoryStore) Start(ctx context.Context, sessionID string) (*Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(sessionID)
	if _, exists := s.active[key]; exists {
		return nil, ErrRoundActive
	}

	round := &Round{
		ID:        newRoundID(),
		SessionID: key,
		StartedAt: s.now().UTC(),
	}
	s.active[key] = round
	s.rounds = append(s.rounds, round)
	return round.clone(), nil
}

func (s *MemoryStore) AddScore(ctx context.Context, sessionID string, delta int) (*Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, exists := s.active[sessionKey(sessionID)]
	if !exists {
		return nil, ErrNoActiveRound
	}
	round.Score += delta
	round.Moves++
	return round.clone(), nil
}

func (s *MemoryStore) End(ctx context.Context, sessionID string, biggestBlock int, at time.Time) (*Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(sessionID)
	round, exists := s.active[key]
	if !exists {
		return nil, ErrNoActiveRound
	}
	ended := at.UTC()
	round.BiggestBlock = biggestBlock
	round.EndedAt = &ended
	delete(s.active, key)
	return round.clone(), nil
}

func (s *MemoryStore) Current(ctx context.Context, sessionID string) (*Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	round, exists := s.active[sessionKey(sessionID)]
	if !exists {
		return nil, ErrNoActiveRound
	}
	return round.clone(), nil
}

func (s *MemoryStore) HighScore(ctx context.Context) (*Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Round
	for _, r := range s.rounds {
		if !r.Finished() {
			continue
		}
		if best == nil || r.Score > best.Score ||
			(r.Score == best.Score && r.EndedAt.Before(*best.EndedAt)) {
			best = r
		}
	}
	if best == nil {
		return nil, ErrNoRounds
	}
	return best.clone(), nil
}

func (s *MemoryStore) History(ctx context.Context, opts HistoryOptions) (*HistoryPage, error) {
	opts = opts.Normalize()

	s.mu.RLock()
	var matched []*Round
	for _, r := range s.rounds {
		if opts.SessionID != "" && r.SessionID != sessionKey(opts.SessionID) {
			continue
		}
		matched = append(matched, r.clone())
	}
	s.mu.RUnlock()

	sortRounds(matched, opts.Order)

	total := len(matched)
	start := opts.offset()
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}
	return newPage(opts, total, matched[start:end]), nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}
