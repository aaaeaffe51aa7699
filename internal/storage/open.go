package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string // "file" | "redis" | "sqlite"
	Dir        string
	SQLitePath string
	Redis      RedisOptions
}

// Open constructs the backend named in opts.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case "", "file":
		slog.Info("storage: using files", "dir", opts.Dir)
		return NewFileStore(opts.Dir)
	case "redis":
		slog.Info("storage: using redis", "addr", opts.Redis.Addr)
		return NewRedisStore(ctx, opts.Redis)
	case "sqlite":
		slog.Info("storage: using sqlite", "path", opts.SQLitePath)
		return NewSQLiteStore(opts.SQLitePath)
	}
	return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
}
