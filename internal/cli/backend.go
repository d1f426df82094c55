package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/redo/internal/config"
	"github.com/aretw0/redo/pkg/adapters/file"
	"github.com/aretw0/redo/pkg/adapters/memory"
	"github.com/aretw0/redo/pkg/adapters/redis"
	"github.com/aretw0/redo/pkg/persistence/middleware"
	"github.com/aretw0/redo/pkg/ports"
)

// Backend is the log store and the cross-process locker selected by the
// configuration.
type Backend struct {
	Name   string
	Store  ports.LogStore
	Locker ports.Locker
	close  func() error
}

// Close releases the connections held by the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend creates the backend named by cfg.Backend. With an encryption
// key configured the store is wrapped so that only ciphertext reaches it.
//
//   - file: JSON files and flock locks under <dir>/.redo
//   - redis: one key per log, SET NX locks next to them
//   - memory: nothing survives the process; only useful for dry runs
func OpenBackend(cfg config.Config, logger *slog.Logger) (*Backend, error) {
	b, err := openBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.EncryptionKey == "" {
		return b, nil
	}
	key, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	logger.Debug("encrypting stored logs")
	b.Store = middleware.Chain(b.Store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	return b, nil
}

func openBackend(cfg config.Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		base := filepath.Join(cfg.Dir, file.DefaultDir)
		logger.Debug("using file backend", "path", base)
		return &Backend{
			Name:   config.BackendFile,
			Store:  file.New(base),
			Locker: file.NewLocker(base),
		}, nil

	case config.BackendRedis:
		var opts []redis.Option
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		logger.Debug("using redis backend", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
		return &Backend{
			Name:   config.BackendRedis,
			Store:  store,
			Locker: redis.NewLocker(store.Client(), cfg.Redis.Prefix),
			close:  store.Close,
		}, nil

	case config.BackendMemory:
		logger.Warn("using memory backend: logs are discarded on exit")
		return &Backend{Name: config.BackendMemory, Store: memory.NewStore()}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
