// Package extend compiles entity and field configurations into schema
// descriptors. The Compiler drives a regeneration pass: it clears generated
// artifacts, builds every eligible entity with a Builder, applies the
// relation patches collected by the Resolver, and clears again. Dump writes
// the resulting descriptors for the code generator.
package extend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/mesh-intelligence/extend/pkg/types"
)

// Layout of the cache directory.
const (
	DumpFileName = "entity_config.yml"
)

// GeneratedDir returns the directory external tooling writes generated
// classes into.
func GeneratedDir(cacheDir string) string {
	return filepath.Join(cacheDir, "Extend", "Entity")
}

// DumpPath returns the path of the schema dump.
func DumpPath(cacheDir string) string {
	return filepath.Join(cacheDir, DumpFileName)
}

// ErrCacheDirUnset is returned when the compiler has no cache directory.
var ErrCacheDirUnset = errors.New("cache dir is not set")

// Result summarizes one regeneration pass.
type Result struct {
	RunID    string   `json:"run_id"`
	Built    []string `json:"built"`    // class names in build order
	Assigned int      `json:"assigned"` // relation links assigned by the patch phase
}

// Compiler regenerates schemas of extendable entities.
type Compiler struct {
	mu sync.Mutex

	store     types.ConfigStore
	cacheDir  string
	fs        afero.Fs
	hierarchy types.ClassHierarchy
	logger    *slog.Logger

	newRunID func() string
	now      func() time.Time
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithFs sets the filesystem holding the cache directory.
func WithFs(fs afero.Fs) Option {
	return func(c *Compiler) { c.fs = fs }
}

// WithHierarchy sets the class hierarchy used for Extend schemas.
func WithHierarchy(h types.ClassHierarchy) Option {
	return func(c *Compiler) { c.hierarchy = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// NewCompiler returns a Compiler over store writing generated artifacts
// below cacheDir on the OS filesystem unless WithFs is given.
func NewCompiler(store types.ConfigStore, cacheDir string, opts ...Option) *Compiler {
	c := &Compiler{
		store:    store,
		cacheDir: cacheDir,
		fs:       afero.NewOsFs(),
		newRunID: newRunID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = orDiscard(c.logger)
	return c
}

// Regenerate rebuilds the schema of className, or of every extendable and
// upgradeable entity when className is empty, then applies relation patches.
// A named entity without configuration fails with types.ErrConfigNotFound;
// a named entity that is not eligible is left untouched. Generated
// artifacts are cleared before and after the pass, also when it fails.
// Concurrent calls are serialized.
func (c *Compiler) Regenerate(ctx context.Context, className string) (res Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res.RunID = c.newRunID()
	started := c.now()
	logger := c.logger.With("run", res.RunID)

	if err := c.clear(); err != nil {
		return res, err
	}
	defer func() {
		if cerr := c.clear(); cerr != nil && err == nil {
			err = cerr
		}
		c.recordRun(ctx, logger, className, started, res, err)
	}()

	entities, err := c.eligible(ctx, className)
	if err != nil {
		return res, err
	}

	resolver := NewResolver(c.store, logger)
	builder := NewBuilder(c.store, resolver, c.hierarchy, logger)
	for _, e := range entities {
		if err := builder.Build(ctx, e); err != nil {
			return res, fmt.Errorf("building %s: %w", e.ClassName, err)
		}
		res.Built = append(res.Built, e.ClassName)
	}

	res.Assigned, err = resolver.Apply(ctx)
	if err != nil {
		return res, err
	}

	logger.Info("regeneration finished", "entities", len(res.Built), "assigned", res.Assigned)
	return res, nil
}

// Clear removes the cache directory, recreates the empty generated-class
// directory, and invalidates the store's metadata cache.
func (c *Compiler) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clear()
}

func (c *Compiler) clear() error {
	if c.cacheDir == "" {
		return ErrCacheDirUnset
	}
	if err := c.fs.RemoveAll(c.cacheDir); err != nil {
		return fmt.Errorf("removing cache dir: %w", err)
	}
	if err := c.fs.MkdirAll(GeneratedDir(c.cacheDir), 0o755); err != nil {
		return fmt.Errorf("creating generated dir: %w", err)
	}
	if mc, ok := c.store.(types.MetadataCache); ok {
		mc.ClearCache()
	}
	return nil
}

// eligible returns the entities a pass builds, ordered by class name.
func (c *Compiler) eligible(ctx context.Context, className string) ([]*types.EntityConfig, error) {
	if className != "" {
		e, err := c.store.GetEntityConfig(ctx, className)
		if err != nil {
			return nil, err
		}
		if !e.Eligible() {
			c.logger.Info("entity is not extendable and upgradeable, skipping", "class", className)
			return nil, nil
		}
		return []*types.EntityConfig{e}, nil
	}

	all, err := c.store.GetEntityConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	var out []*types.EntityConfig
	for _, e := range all {
		if e.Eligible() {
			out = append(out, e)
		}
	}
	return out, nil
}

// recordRun stores the run in the regeneration history when the store
// keeps one. A failure to record is logged, not returned.
func (c *Compiler) recordRun(ctx context.Context, logger *slog.Logger, target string, started time.Time, res Result, runErr error) {
	rec, ok := c.store.(types.RunRecorder)
	if !ok {
		return
	}
	run := types.RunRecord{
		RunID:      res.RunID,
		Target:     target,
		StartedAt:  started,
		FinishedAt: c.now(),
		Status:     types.RunStatusSucceeded,
		Entities:   len(res.Built),
	}
	if runErr != nil {
		run.Status = types.RunStatusFailed
		run.Error = runErr.Error()
	}
	if err := rec.RecordRun(ctx, run); err != nil {
		logger.Warn("recording regeneration run failed", "error", err)
	}
}

// newRunID generates a UUID v7 run id.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
