package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker provides per-room mutual exclusion for phase resolution. The
// resolution code never branches on deployment topology: a single-process
// deployment gets the in-memory implementation, a multi-instance one gets
// the redis lease, both behind this interface.
//
// A false ok from Acquire is not an error. It means another caller is
// resolving the room right now and this caller should simply return.
type Locker interface {
	Acquire(ctx context.Context, roomID uint, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, roomID uint, token string) error
}

// Local is the single-process Locker. It tracks held rooms in memory.
type Local struct {
	mu   sync.Mutex
	held map[uint]string
}

// NewLocal creates a Local locker.
func NewLocal() *Local {
	return &Local{held: make(map[uint]string)}
}

// Acquire takes the room's lock if nobody holds it. The ttl is ignored:
// a local holder that dies takes the whole process with it.
func (l *Local) Acquire(_ context.Context, roomID uint, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[roomID]; taken {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[roomID] = token
	return token, true, nil
}

// Release frees the room's lock if the token still owns it.
func (l *Local) Release(_ context.Context, roomID uint, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[roomID] == token {
		delete(l.held, roomID)
	}
	return nil
}
