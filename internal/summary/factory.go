package summary

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a summary backend.
type Config struct {
	Backend          string
	Dir              string
	DatabaseURL      string
	SQLitePath       string
	FirestoreProject string
}

// NewStore creates the configured backend. An empty backend means "file".
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", "file":
		return NewFileStore(cfg.Dir), nil
	case "memory":
		return NewInMemoryStore(), nil
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("postgres summary backend requires DATABASE_URL")
		}
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case "firestore":
		return NewFirestoreStore(ctx, cfg.FirestoreProject)
	default:
		return nil, fmt.Errorf("unsupported summary backend %q", cfg.Backend)
	}
}
