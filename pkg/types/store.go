package types

import (
	"context"
	"errors"
	"time"
)

// ConfigStore holds entity and field configurations. Persist stages a
// write; Flush commits every staged write in one transaction. Reads observe
// staged writes of the same store.
type ConfigStore interface {
	// GetEntityConfig returns a copy of the entity configuration.
	// Returns ErrConfigNotFound if the class has no configuration.
	GetEntityConfig(ctx context.Context, className string) (*EntityConfig, error)

	// GetFieldConfig returns a copy of the field configuration.
	// Returns ErrConfigNotFound if the field has no configuration.
	GetFieldConfig(ctx context.Context, className, fieldName string) (*FieldConfig, error)

	// HasConfig reports whether an entity or field configuration exists.
	HasConfig(ctx context.Context, id ConfigID) (bool, error)

	// GetEntityConfigs returns every entity configuration ordered by class name.
	GetEntityConfigs(ctx context.Context) ([]*EntityConfig, error)

	// GetFieldConfigs returns the field configurations of one entity
	// ordered by field name.
	GetFieldConfigs(ctx context.Context, className string) ([]*FieldConfig, error)

	// Persist stages a *EntityConfig or *FieldConfig for the next Flush.
	// Returns ErrInvalidData for any other value.
	Persist(ctx context.Context, config any) error

	// Flush commits all staged writes. On failure nothing is committed and
	// the staged writes are kept.
	Flush(ctx context.Context) error

	// Close releases the store. Staged writes that were not flushed are lost.
	Close() error
}

// MetadataCache is implemented by stores that cache loaded configurations.
// The compiler invalidates it whenever it clears generated artifacts.
type MetadataCache interface {
	ClearCache()
}

// RunRecorder is implemented by stores that keep a regeneration history.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Regeneration run statuses.
const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunRecord describes one regeneration run.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Target     string    `json:"target,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Entities   int       `json:"entities"`
	Error      string    `json:"error,omitempty"`
}

// ClassHierarchy resolves the declared base class of a class. It is supplied
// by the code generator; the compiler never discovers it at runtime.
type ClassHierarchy interface {
	// Parent returns the base class of className, or "" if it has none.
	Parent(className string) string
}

// StaticHierarchy is a ClassHierarchy backed by a class → parent map.
type StaticHierarchy map[string]string

// Parent implements ClassHierarchy.
func (h StaticHierarchy) Parent(className string) string {
	return h[className]
}

// Store errors.
var (
	ErrConfigNotFound = errors.New("config not found")
	ErrInvalidID      = errors.New("invalid config id")
	ErrInvalidData    = errors.New("invalid config data")
	ErrStoreClosed    = errors.New("config store is closed")
)

// Configuration model errors.
var (
	ErrInvalidState         = errors.New("invalid state value")
	ErrUnknownAttribute     = errors.New("unknown attribute")
	ErrInconsistentRelation = errors.New("relation references a missing field")
)
