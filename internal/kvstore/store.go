// Package kvstore provides the persistent key-value storage behind streaktoot.
// Values are opaque byte slices; there are no transactions across keys.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when the key has never been set or was deleted.
var ErrNotFound = errors.New("key not found")

// ErrNotInitialized is returned by Load when the backing store does not exist yet.
var ErrNotInitialized = errors.New("storage not initialized, run 'streaktoot init' first")

type Store interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)

	// Location is a non-sensitive description of where data lives.
	Location() string
}

const (
	diskvScheme  = "diskv://"
	memoryScheme = "memory://"
)

// Open returns the store for location without initializing or loading it:
// a postgres:// URL or key=value DSN selects PostgresStore, diskv://<dir>
// selects DiskvStore, memory:// selects MemoryStore and anything else is a
// SQLite database path.
func Open(location string) (Store, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return nil, fmt.Errorf("store location cannot be empty")
	case IsPostgres(location):
		if _, err := ValidateConnString(location); err != nil {
			return nil, err
		}
		return NewPostgresStore(location), nil
	case strings.HasPrefix(location, diskvScheme):
		dir, err := ExpandPath(strings.TrimPrefix(location, diskvScheme))
		if err != nil {
			return nil, err
		}
		if dir == "" {
			return nil, fmt.Errorf("diskv location needs a directory: %s<dir>", diskvScheme)
		}
		return NewDiskvStore(dir), nil
	case location == memoryScheme:
		return NewMemoryStore(), nil
	default:
		path, err := ExpandPath(location)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(path), nil
	}
}

// IsPostgres reports whether location looks like a PostgreSQL connection string.
func IsPostgres(location string) bool {
	if strings.HasPrefix(location, "postgres://") || strings.HasPrefix(location, "postgresql://") {
		return true
	}
	return strings.Contains(location, "host=") || strings.Contains(location, "dbname=")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
