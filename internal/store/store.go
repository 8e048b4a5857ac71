// Package store implements types.ConfigStore on top of database/sql.
// SQLite (modernc.org/sqlite) is the default backend; PostgreSQL is reached
// through the pgx stdlib driver. Both share the same tables: one JSON record
// per entity and per field configuration, plus the regeneration history.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite

	"github.com/mesh-intelligence/extend/pkg/types"
)

// DatabaseFile is the SQLite database file name inside DataDir.
const DatabaseFile = "extend.db"

var (
	_ types.ConfigStore   = (*Store)(nil)
	_ types.MetadataCache = (*Store)(nil)
	_ types.RunRecorder   = (*Store)(nil)
)

// recordKind distinguishes the two configuration tables.
type recordKind int

const (
	kindEntity recordKind = iota
	kindField
)

// stagedWrite is a configuration snapshot taken at Persist time.
type stagedWrite struct {
	kind      recordKind
	className string
	fieldName string
	data      []byte
}

// Store is a ConfigStore backed by a SQL database. It is safe for use by
// one writer at a time; the mutex only protects its internal state.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	dialect dialect
	closed  bool

	// staged holds persisted but unflushed writes in Persist order;
	// stagedIdx maps a record key to its position.
	staged    []stagedWrite
	stagedIdx map[string]int

	// cache holds committed records read from or written to the database.
	cache map[string][]byte

	now func() time.Time
}

// Open validates cfg and opens the configured backend, creating the schema
// if needed. For SQLite the DataDir is created if it does not exist.
func Open(cfg types.Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		db  *sql.DB
		err error
		d   dialect
	)
	switch cfg.Backend {
	case types.BackendSQLite:
		d = sqliteDialect
		db, err = openSQLite(cfg.DataDir)
	case types.BackendPostgres:
		d = postgresDialect
		db, err = openPostgres(cfg.DSN)
	}
	if err != nil {
		return nil, err
	}

	s := newStore(db, d)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newStore(db *sql.DB, d dialect) *Store {
	return &Store{
		db:        db,
		dialect:   d,
		stagedIdx: make(map[string]int),
		cache:     make(map[string][]byte),
		now:       time.Now,
	}
}

func openSQLite(dataDir string) (*sql.DB, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	dsn := filepath.Join(dataDir, DatabaseFile) + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY inside Flush.
	db.SetMaxOpenConns(1)
	return db, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return db, nil
}

// Backend returns the backend name of the store.
func (s *Store) Backend() string {
	return s.dialect.name
}

// GetEntityConfig implements types.ConfigStore.
func (s *Store) GetEntityConfig(ctx context.Context, className string) (*types.EntityConfig, error) {
	if className == "" {
		return nil, types.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}

	data, err := s.lookup(ctx, kindEntity, className, "")
	if err != nil {
		return nil, err
	}
	return decodeEntity(data)
}

// GetFieldConfig implements types.ConfigStore.
func (s *Store) GetFieldConfig(ctx context.Context, className, fieldName string) (*types.FieldConfig, error) {
	if className == "" || fieldName == "" {
		return nil, types.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}

	data, err := s.lookup(ctx, kindField, className, fieldName)
	if err != nil {
		return nil, err
	}
	return decodeField(data)
}

// HasConfig implements types.ConfigStore.
func (s *Store) HasConfig(ctx context.Context, id types.ConfigID) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, types.ErrStoreClosed
	}

	kind := kindEntity
	if id.IsField() {
		kind = kindField
	}
	_, err := s.lookup(ctx, kind, id.ClassName, id.FieldName)
	if errors.Is(err, types.ErrConfigNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetEntityConfigs implements types.ConfigStore.
func (s *Store) GetEntityConfigs(ctx context.Context) ([]*types.EntityConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}

	records, err := s.list(ctx, kindEntity, "")
	if err != nil {
		return nil, err
	}
	out := make([]*types.EntityConfig, 0, len(records))
	for _, rec := range records {
		e, err := decodeEntity(rec.data)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// GetFieldConfigs implements types.ConfigStore.
func (s *Store) GetFieldConfigs(ctx context.Context, className string) ([]*types.FieldConfig, error) {
	if className == "" {
		return nil, types.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}

	records, err := s.list(ctx, kindField, className)
	if err != nil {
		return nil, err
	}
	out := make([]*types.FieldConfig, 0, len(records))
	for _, rec := range records {
		f, err := decodeField(rec.data)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Persist implements types.ConfigStore. The configuration is copied; later
// changes to it are not staged.
func (s *Store) Persist(ctx context.Context, config any) error {
	w, err := snapshot(config)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}

	key := recordKey(w.kind, w.className, w.fieldName)
	if i, ok := s.stagedIdx[key]; ok {
		s.staged[i] = w
		return nil
	}
	s.stagedIdx[key] = len(s.staged)
	s.staged = append(s.staged, w)
	return nil
}

// Flush implements types.ConfigStore.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}
	if len(s.staged) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning flush: %w", err)
	}
	defer tx.Rollback()

	updatedAt := s.now().UTC().Format(time.RFC3339)
	for _, w := range s.staged {
		var err error
		switch w.kind {
		case kindEntity:
			_, err = tx.ExecContext(ctx, s.dialect.rebind(upsertEntityConfig),
				w.className, string(w.data), updatedAt)
		case kindField:
			_, err = tx.ExecContext(ctx, s.dialect.rebind(upsertFieldConfig),
				w.className, w.fieldName, string(w.data), updatedAt)
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", recordKey(w.kind, w.className, w.fieldName), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing flush: %w", err)
	}

	for _, w := range s.staged {
		s.cache[recordKey(w.kind, w.className, w.fieldName)] = w.data
	}
	s.staged = nil
	s.stagedIdx = make(map[string]int)
	return nil
}

// Pending returns the number of staged writes.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}

// ClearCache implements types.MetadataCache. Staged writes are kept.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string][]byte)
}

// Close implements types.ConfigStore. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.staged = nil
	s.stagedIdx = nil
	s.cache = nil
	return s.db.Close()
}

// lookup returns the record data for a key, preferring staged writes, then
// the cache, then the database. The caller must hold s.mu.
func (s *Store) lookup(ctx context.Context, kind recordKind, className, fieldName string) ([]byte, error) {
	key := recordKey(kind, className, fieldName)
	if i, ok := s.stagedIdx[key]; ok {
		return s.staged[i].data, nil
	}
	if data, ok := s.cache[key]; ok {
		return data, nil
	}

	var (
		raw string
		err error
	)
	switch kind {
	case kindEntity:
		err = s.db.QueryRowContext(ctx,
			s.dialect.rebind("SELECT data FROM entity_configs WHERE class_name = ?"),
			className).Scan(&raw)
	case kindField:
		err = s.db.QueryRowContext(ctx,
			s.dialect.rebind("SELECT data FROM field_configs WHERE class_name = ? AND field_name = ?"),
			className, fieldName).Scan(&raw)
	}
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", types.ErrConfigNotFound, displayKey(className, fieldName))
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", displayKey(className, fieldName), err)
	}
	data := []byte(raw)
	s.cache[key] = data
	return data, nil
}

// listedRecord is one row returned by list.
type listedRecord struct {
	sortKey string
	data    []byte
}

// list returns committed records overlaid with staged writes, ordered by
// class name (entities) or field name (fields of className). Ordering is
// done here so that it does not depend on database collation.
// The caller must hold s.mu.
func (s *Store) list(ctx context.Context, kind recordKind, className string) ([]listedRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch kind {
	case kindEntity:
		rows, err = s.db.QueryContext(ctx, "SELECT class_name, data FROM entity_configs")
	case kindField:
		rows, err = s.db.QueryContext(ctx,
			s.dialect.rebind("SELECT field_name, data FROM field_configs WHERE class_name = ?"),
			className)
	}
	if err != nil {
		return nil, fmt.Errorf("listing configs: %w", err)
	}
	defer rows.Close()

	byKey := make(map[string][]byte)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("scanning config: %w", err)
		}
		byKey[name] = []byte(raw)
		if kind == kindEntity {
			s.cache[recordKey(kind, name, "")] = []byte(raw)
		} else {
			s.cache[recordKey(kind, className, name)] = []byte(raw)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing configs: %w", err)
	}

	for _, w := range s.staged {
		if w.kind != kind {
			continue
		}
		switch kind {
		case kindEntity:
			byKey[w.className] = w.data
		case kindField:
			if w.className == className {
				byKey[w.fieldName] = w.data
			}
		}
	}

	out := make([]listedRecord, 0, len(byKey))
	for k, data := range byKey {
		out = append(out, listedRecord{sortKey: k, data: data})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sortKey < out[j].sortKey })
	return out, nil
}

// snapshot validates and encodes a configuration for staging.
func snapshot(config any) (stagedWrite, error) {
	switch c := config.(type) {
	case *types.EntityConfig:
		if c == nil || c.ClassName == "" {
			return stagedWrite{}, types.ErrInvalidID
		}
		data, err := json.Marshal(c)
		if err != nil {
			return stagedWrite{}, fmt.Errorf("encoding entity config: %w", err)
		}
		return stagedWrite{kind: kindEntity, className: c.ClassName, data: data}, nil
	case *types.FieldConfig:
		if c == nil || c.ClassName == "" || c.FieldName == "" {
			return stagedWrite{}, types.ErrInvalidID
		}
		data, err := json.Marshal(c)
		if err != nil {
			return stagedWrite{}, fmt.Errorf("encoding field config: %w", err)
		}
		return stagedWrite{kind: kindField, className: c.ClassName, fieldName: c.FieldName, data: data}, nil
	default:
		return stagedWrite{}, types.ErrInvalidData
	}
}

func decodeEntity(data []byte) (*types.EntityConfig, error) {
	var e types.EntityConfig
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding entity config: %w", err)
	}
	return &e, nil
}

func decodeField(data []byte) (*types.FieldConfig, error) {
	var f types.FieldConfig
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding field config: %w", err)
	}
	return &f, nil
}

// recordKey is unique across both tables. Class names never contain NUL.
func recordKey(kind recordKind, className, fieldName string) string {
	if kind == kindEntity {
		return "e\x00" + className
	}
	return "f\x00" + className + "\x00" + fieldName
}

func displayKey(className, fieldName string) string {
	if fieldName == "" {
		return className
	}
	return className + "::" + fieldName
}
