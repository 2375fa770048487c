// internal/core/ports/session_store.go
package ports

import (
	"time"

	"github.com/ammerola/inventory-bot/internal/core/domain"
)

// SessionStore holds the active conversation of each requester.
// Get returns nil when there is no live session. Lock serializes work for a
// single requester and returns the matching unlock function.
type SessionStore interface {
	Get(requesterID int64) *domain.Session
	Put(s *domain.Session)
	Delete(requesterID int64)
	Lock(requesterID int64) func()
	EvictExpired(now time.Time) int
	Len() int
}
