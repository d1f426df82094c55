package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/redo/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "redo:log:"

// farFuture scores index entries of logs that never expire (2100-01-01).
const farFuture = 4102444800

// Store implements ports.LogStore using Redis.
// Logs are stored as JSON strings and indexed in a sorted set scored by expiry.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for stored logs.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// indexKey cannot collide with a log key: workflow names never contain ':'.
func (s *Store) indexKey() string {
	return s.prefix + ":index"
}

// Save persists the log and refreshes its index entry in one pipeline.
func (s *Store) Save(ctx context.Context, name string, log domain.Log) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	data, err := domain.EncodeLog(log)
	if err != nil {
		return fmt.Errorf("%w: marshal log %q: %v", domain.ErrPersistence, name, err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(name), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: name})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: save log %q: %v", domain.ErrPersistence, name, err)
	}
	return nil
}

// Load retrieves the log from Redis.
func (s *Store) Load(ctx context.Context, name string) (domain.Log, error) {
	val, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLogNotFound, name)
		}
		return nil, fmt.Errorf("%w: load log %q: %v", domain.ErrPersistence, name, err)
	}
	log, err := domain.DecodeLog(val)
	if err != nil {
		return nil, fmt.Errorf("%w: decode log %q: %v", domain.ErrPersistence, name, err)
	}
	return log, nil
}

// Delete removes the log and its index entry.
func (s *Store) Delete(ctx context.Context, name string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(name))
	pipe.ZRem(ctx, s.indexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: delete log %q: %v", domain.ErrPersistence, name, err)
	}
	return nil
}

// List returns the names of logs that have not expired.
// Expired index entries are pruned lazily here.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("%w: prune expired logs: %v", domain.ErrPersistence, err)
	}

	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list logs: %v", domain.ErrPersistence, err)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
