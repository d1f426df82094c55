package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/redo/pkg/domain"
	"github.com/aretw0/redo/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")

	errLockHeld = errors.New("lock held")
)

// releaseScript deletes the lock only when it still carries our token.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// renewScript extends the lock only when it still carries our token.
const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Locker implements ports.Locker using Redis SET NX PX.
// A held lock is renewed every third of its ttl until it is released.
type Locker struct {
	client  *backend.Client
	prefix  string
	backoff func() retry.Backoff
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		backoff: func() retry.Backoff {
			return retry.WithCappedDuration(500*time.Millisecond, retry.NewExponential(20*time.Millisecond))
		},
	}
}

// Lock acquires the lock for key, polling with exponential backoff until ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	err := retry.Do(ctx, l.backoff(), func(ctx context.Context) error {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		if !ok {
			return retry.RetryableError(errLockHeld)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ls := &lease{
		client: l.client,
		key:    lockKey,
		token:  token,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if ttl > 0 {
		go ls.keepAlive(ttl)
	} else {
		close(ls.done)
	}
	return ls, nil
}

type lease struct {
	client *backend.Client
	key    string
	token  string

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu   sync.Mutex
	lost bool
}

func (ls *lease) keepAlive(ttl time.Duration) {
	defer close(ls.done)
	ticker := time.NewTicker(max(ttl/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ls.stop:
			return
		case <-ticker.C:
			n, err := ls.client.Eval(context.Background(), renewScript, []string{ls.key}, ls.token, ttl.Milliseconds()).Int()
			if err != nil {
				// Transient; the next tick tries again while the ttl lasts.
				continue
			}
			if n == 0 {
				ls.markLost()
				return
			}
		}
	}
}

func (ls *lease) markLost() {
	ls.mu.Lock()
	ls.lost = true
	ls.mu.Unlock()
}

func (ls *lease) isLost() bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.lost
}

// Held checks that the lock key still carries our token.
func (ls *lease) Held(ctx context.Context) error {
	if ls.isLost() {
		return fmt.Errorf("%w: %s", domain.ErrLockLost, ls.key)
	}
	val, err := ls.client.Get(ctx, ls.key).Result()
	if err != nil && !errors.Is(err, backend.Nil) {
		return fmt.Errorf("%w: check lock %s: %v", domain.ErrPersistence, ls.key, err)
	}
	if val != ls.token {
		ls.markLost()
		return fmt.Errorf("%w: %s", domain.ErrLockLost, ls.key)
	}
	return nil
}

// Unlock stops the renewal and deletes the key if it is still ours.
func (ls *lease) Unlock(ctx context.Context) error {
	ls.stopOnce.Do(func() { close(ls.stop) })
	<-ls.done

	n, err := ls.client.Eval(ctx, releaseScript, []string{ls.key}, ls.token).Int()
	if err != nil {
		return err
	}
	if n == 0 || ls.isLost() {
		return fmt.Errorf("%w: %s", domain.ErrLockLost, ls.key)
	}
	return nil
}
