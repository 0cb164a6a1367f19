package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/amishk599/internradar/internal/model"
)

const redisPrefix = "internradar"

// Open connects to the store named by dsn and verifies it is reachable.
//
//	postgres://... or postgresql://...  PostgreSQL via pgx
//	redis://... or rediss://...         Redis
//	sqlite://path or a bare path        SQLite file (":memory:" allowed)
func Open(ctx context.Context, dsn string) (model.JobStore, error) {
	switch {
	case dsn == "":
		return nil, fmt.Errorf("database_url is empty")

	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return migrated(ctx, NewSQLStore(db))

	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("pinging redis: %w", err)
		}
		return NewRedisStore(client, redisPrefix), nil

	default:
		path := strings.TrimPrefix(dsn, "sqlite://")
		db, err := sqlx.ConnectContext(ctx, "sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite db: %w", err)
		}
		// One writer at a time; also keeps ":memory:" on a single database.
		db.SetMaxOpenConns(1)
		return migrated(ctx, NewSQLStore(db))
	}
}

func migrated(ctx context.Context, s *SQLStore) (model.JobStore, error) {
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
