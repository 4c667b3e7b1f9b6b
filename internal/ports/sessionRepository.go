package ports

import "github.com/morgansundqvist/mbacklog/internal/domain"

// SessionRepository stores sessions in process memory. UpdateSession applies fn
// atomically; if fn returns an error the stored session is left unchanged.
type SessionRepository interface {
	StoreSession(session domain.Session) error
	GetSession(id string) (domain.Session, error)
	UpdateSession(id string, fn func(domain.Session) (domain.Session, error)) (domain.Session, error)
	DeleteSession(id string) error
}
