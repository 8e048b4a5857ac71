// This file provides JSONL export and import of configurations with atomic
// persistence.
package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/extend/pkg/types"
)

// Record kinds of the JSONL exchange format.
const (
	RecordKindEntity = "entity"
	RecordKindField  = "field"
)

// exchangeRecord is one line of an export file. Exactly one of Entity and
// Field is set, matching Kind.
type exchangeRecord struct {
	Kind   string              `json:"kind"`
	Entity *types.EntityConfig `json:"entity,omitempty"`
	Field  *types.FieldConfig  `json:"field,omitempty"`
}

// ImportResult reports what Import did.
type ImportResult struct {
	Entities int
	Fields   int
	Skipped  int
}

// Export writes every entity configuration followed by its field
// configurations to path, one JSON record per line.
func Export(ctx context.Context, cs types.ConfigStore, path string) (int, error) {
	entities, err := cs.GetEntityConfigs(ctx)
	if err != nil {
		return 0, err
	}

	var records []json.RawMessage
	for _, e := range entities {
		rec, err := json.Marshal(exchangeRecord{Kind: RecordKindEntity, Entity: e})
		if err != nil {
			return 0, fmt.Errorf("encoding %s: %w", e.ClassName, err)
		}
		records = append(records, rec)

		fields, err := cs.GetFieldConfigs(ctx, e.ClassName)
		if err != nil {
			return 0, err
		}
		for _, f := range fields {
			rec, err := json.Marshal(exchangeRecord{Kind: RecordKindField, Field: f})
			if err != nil {
				return 0, fmt.Errorf("encoding %s: %w", f.ID(), err)
			}
			records = append(records, rec)
		}
	}

	if err := writeJSONL(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Import reads an export file, persists every record, and flushes once.
// Malformed lines and records of unknown kind are skipped and counted.
func Import(ctx context.Context, cs types.ConfigStore, path string) (ImportResult, error) {
	var res ImportResult
	records, err := readJSONL(path)
	if err != nil {
		return res, err
	}

	for _, raw := range records {
		var rec exchangeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			res.Skipped++
			continue
		}
		switch {
		case rec.Kind == RecordKindEntity && rec.Entity != nil:
			if err := cs.Persist(ctx, rec.Entity); err != nil {
				return res, fmt.Errorf("importing %s: %w", rec.Entity.ClassName, err)
			}
			res.Entities++
		case rec.Kind == RecordKindField && rec.Field != nil:
			if err := cs.Persist(ctx, rec.Field); err != nil {
				return res, fmt.Errorf("importing %s: %w", rec.Field.ID(), err)
			}
			res.Fields++
		default:
			res.Skipped++
		}
	}

	if err := cs.Flush(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
