package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/ports"
	"github.com/gofrs/flock"
)

// Locker implements ports.Locker with advisory file locks placed next to the logs.
type Locker struct {
	BasePath   string
	RetryDelay time.Duration
}

// NewLocker creates a locker whose lock files live in basePath.
func NewLocker(basePath string) *Locker {
	if basePath == "" {
		basePath = DefaultDir
	}
	return &Locker{BasePath: basePath, RetryDelay: 50 * time.Millisecond}
}

// Lock blocks until the lock file for key is held or ctx is done.
// File locks are released by the kernel when the holder exits, so ttl is ignored.
func (l *Locker) Lock(ctx context.Context, key string, _ time.Duration) (ports.Lease, error) {
	if err := domain.ValidateName(key); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(l.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: ensure lock directory: %v", domain.ErrPersistence, err)
	}

	delay := l.RetryDelay
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	fl := flock.New(filepath.Join(l.BasePath, key+".lock"))
	locked, err := fl.TryLockContext(ctx, delay)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%w: lock %q not acquired", domain.ErrPersistence, key)
	}
	return ports.UnlockFunc(func(context.Context) error {
		return fl.Unlock()
	}), nil
}
