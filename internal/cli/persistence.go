package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DJA-prog/serialmacro"
	"github.com/DJA-prog/serialmacro/internal/config"
	"github.com/DJA-prog/serialmacro/pkg/adapters/file"
	"github.com/DJA-prog/serialmacro/pkg/adapters/redis"
	"github.com/DJA-prog/serialmacro/pkg/adapters/sqlite"
	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// persistence holds the optional shared stores and the hooks they contribute.
type persistence struct {
	options []serialmacro.Option
	hooks   []domain.LifecycleHooks
	closers []func() error
}

func (p *persistence) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		_ = p.closers[i]()
	}
}

// setupPersistence wires run history (Redis with a shared port lock, or files) and the SQLite event log.
func setupPersistence(ctx context.Context, s *config.Settings, logger *slog.Logger) (*persistence, error) {
	p := &persistence{}

	if s.Redis.Addr != "" {
		store := redis.New(s.Redis.Addr, s.Redis.Password, s.Redis.DB, redis.WithTTL(7*24*time.Hour))
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := store.Client().Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("redis %s: %w", s.Redis.Addr, err)
		}
		p.closers = append(p.closers, store.Close)
		p.options = append(p.options,
			serialmacro.WithStore(store),
			serialmacro.WithLocker(redis.NewLocker(store.Client(), "")),
		)
		logger.Info("Using Redis run store", "addr", s.Redis.Addr)
	} else {
		p.options = append(p.options, serialmacro.WithStore(file.New(s.HistoryDir())))
	}

	if s.EventLog.Path != "" {
		log, err := sqlite.Open(s.EventLog.Path, sqlite.WithLogger(logger))
		if err != nil {
			p.Close()
			return nil, err
		}
		p.closers = append(p.closers, log.Close)
		p.hooks = append(p.hooks, log.Hooks())
		logger.Info("Recording events", "path", s.EventLog.Path)
	}

	return p, nil
}
