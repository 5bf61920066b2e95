package app

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/staffdir/staffdir/internal/session"
)

// NewSessionRepository selects the session persistence named by
// cfg.SessionBackend. The pool or client may be nil when the selected
// backend does not need it.
func NewSessionRepository(cfg *Config, pool *pgxpool.Pool, client redis.UniversalClient) (session.Repository, error) {
	switch cfg.SessionBackend {
	case SessionBackendPostgres:
		if pool == nil {
			return nil, fmt.Errorf("app: session backend %s requires a database pool", cfg.SessionBackend)
		}
		return session.NewPGRepository(pool), nil
	case SessionBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("app: session backend %s requires a redis client", cfg.SessionBackend)
		}
		return session.NewRedisRepository(client), nil
	case SessionBackendMemory:
		return session.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("app: unknown session backend %q", cfg.SessionBackend)
	}
}
