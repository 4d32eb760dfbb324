package kvstore

import (
	"context"
	"fmt"

	"github.com/julianstephens/streaktoot/internal/migration"
)

// Migrator is implemented by backends with a versioned SQL schema.
type Migrator interface {
	Migrate(logFn func(string)) (int, error)
	SchemaVersion() (current, latest int, err error)
}

var (
	_ Migrator = (*SQLiteStore)(nil)
	_ Migrator = (*PostgresStore)(nil)
)

func (s *SQLiteStore) Migrate(logFn func(string)) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	runner, err := s.runner()
	if err != nil {
		return 0, err
	}
	return runner.ApplyMigrations(logFn)
}

func (s *SQLiteStore) SchemaVersion() (int, int, error) {
	if s.db == nil {
		return 0, 0, fmt.Errorf("database connection is nil")
	}
	runner, err := s.runner()
	if err != nil {
		return 0, 0, err
	}
	return versions(runner)
}

func (s *PostgresStore) Migrate(logFn func(string)) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	runner, err := s.runner()
	if err != nil {
		return 0, err
	}
	return runner.ApplyMigrations(logFn)
}

func (s *PostgresStore) SchemaVersion() (int, int, error) {
	if s.db == nil {
		return 0, 0, fmt.Errorf("database connection is nil")
	}
	runner, err := s.runner()
	if err != nil {
		return 0, 0, err
	}
	return versions(runner)
}

func versions(r *migration.Runner) (int, int, error) {
	current, err := r.GetCurrentVersion()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	latest, err := r.GetLatestVersion()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get latest schema version: %w", err)
	}
	return current, latest, nil
}

// Copy writes every key of src into dst, overwriting existing values.
func Copy(ctx context.Context, dst, src Store) (int, error) {
	keys, err := src.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list source keys: %w", err)
	}
	for i, key := range keys {
		value, err := src.Get(ctx, key)
		if err != nil {
			return i, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if err := dst.Set(ctx, key, value); err != nil {
			return i, err
		}
	}
	return len(keys), nil
}
