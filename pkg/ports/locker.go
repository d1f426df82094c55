package ports

import (
	"context"
	"time"
)

// Lease is a lock held on a stored log.
type Lease interface {
	// Held returns domain.ErrLockLost once the lock expired or was taken over.
	Held(ctx context.Context) error
	// Unlock releases the lock. It MUST be called once the work is done.
	Unlock(ctx context.Context) error
}

// UnlockFunc is a Lease that cannot be lost before it is released.
type UnlockFunc func(ctx context.Context) error

// Held always succeeds.
func (f UnlockFunc) Held(context.Context) error { return nil }

// Unlock calls f.
func (f UnlockFunc) Unlock(ctx context.Context) error { return f(ctx) }

// Locker serializes read-modify-write cycles on a stored log across processes.
type Locker interface {
	// Lock blocks until the lock for key is acquired or ctx is done.
	// The ttl bounds how long a crashed holder can keep the lock; backends
	// without expiry ignore it.
	Lock(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
