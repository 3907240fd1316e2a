// Package backend opens the expense store selected by configuration.
package backend

import (
	"fmt"

	"spendly/internal/log"
	"spendly/internal/storage"
	"spendly/internal/storage/memory"
)

// Type represents the kind of store backing the application.
type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known.
func (t Type) IsValid() bool {
	switch t {
	case SQLite, Memory:
		return true
	default:
		return false
	}
}

// Config holds what Open needs to build a store.
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string
}

// Open returns a ready store. SQLite stores are migrated before they are
// returned; the caller owns Close.
func Open(config Config, logger *log.Logger) (storage.Store, error) {
	if logger == nil {
		logger = log.Discard()
	}
	switch config.Type {
	case SQLite:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		return repo, nil
	case Memory:
		logger.WithComponent(log.ComponentStorage).Info("Initialized memory backend")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}
}
