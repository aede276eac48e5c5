// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/cascadehq/cascade/pkg/store"
	"github.com/cascadehq/cascade/pkg/store/file"
	"github.com/cascadehq/cascade/pkg/store/postgres"
	"github.com/cascadehq/cascade/pkg/store/redis"
)

// NewStore picks the store implementation from the database URL scheme.
// redis:// connects to Redis, postgres:// to PostgreSQL; anything else is
// treated as a file path.
func NewStore(ctx context.Context, databaseURL string) (store.Store, error) {
	switch parseStoreProvider(databaseURL) {
	case "redis":
		st, err := redis.NewStore(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis store: %w", err)
		}

		return st, nil
	case "postgres", "postgresql":
		st, err := postgres.NewStore(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres store: %w", err)
		}

		return st, nil
	default:
		st, err := file.NewStore(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}

		return st, nil
	}
}

func parseStoreProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
