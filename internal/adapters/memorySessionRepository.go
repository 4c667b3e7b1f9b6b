package adapters

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/morgansundqvist/mbacklog/internal/domain"
)

// MemorySessionRepository keeps sessions in process memory. A background
// sweeper drops sessions that have not been updated within the ttl.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	ttl      time.Duration
	now      func() time.Time
	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

func NewMemorySessionRepository(ttl, sweepInterval time.Duration, logger *slog.Logger) *MemorySessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	repo := &MemorySessionRepository{
		sessions: make(map[string]domain.Session),
		ttl:      ttl,
		now:      time.Now,
		doneChan: make(chan struct{}),
		logger:   logger,
	}

	if ttl > 0 && sweepInterval > 0 {
		repo.ticker = time.NewTicker(sweepInterval)
		go repo.autoExpire()
	}

	return repo
}

func (r *MemorySessionRepository) autoExpire() {
	for {
		select {
		case <-r.ticker.C:
			if n := r.expire(); n > 0 {
				r.logger.Info("expired idle sessions", slog.Int("count", n))
			}
		case <-r.doneChan:
			r.ticker.Stop()
			return
		}
	}
}

func (r *MemorySessionRepository) expire() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, s := range r.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// StopAutoExpire stops the sweeper. It is safe to call more than once and is
// a no-op when no sweeper runs.
func (r *MemorySessionRepository) StopAutoExpire() {
	if r.ticker == nil {
		return
	}
	r.stopOnce.Do(func() { close(r.doneChan) })
}

func (r *MemorySessionRepository) StoreSession(session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *MemorySessionRepository) GetSession(id string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return session, nil
}

func (r *MemorySessionRepository) UpdateSession(id string, fn func(domain.Session) (domain.Session, error)) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	updated, err := fn(session)
	if err != nil {
		return session, err
	}
	updated.ID = session.ID
	updated.UpdatedAt = r.now()
	r.sessions[id] = updated
	return updated, nil
}

func (r *MemorySessionRepository) DeleteSession(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	delete(r.sessions, id)
	return nil
}
