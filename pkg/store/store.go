// Package store provides the public factory for configuration stores.
// It exposes Open while keeping the SQL implementation internal.
package store

import (
	"github.com/mesh-intelligence/extend/internal/store"
	"github.com/mesh-intelligence/extend/pkg/types"
)

// Store is a types.ConfigStore that also caches metadata and records
// regeneration runs.
type Store interface {
	types.ConfigStore
	types.MetadataCache
	types.RunRecorder
}

// Open opens the backend named by cfg, creating its schema if needed.
//
// Example:
//
//	s, err := store.Open(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: "/var/lib/extend",
//	})
//	defer s.Close()
func Open(cfg types.Config) (Store, error) {
	s, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}
