package extend

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/extend/pkg/types"
)

// Dump layout. Collections nested deeper than dumpInlineLevel are written
// in flow style.
const (
	dumpIndent      = 4
	dumpInlineLevel = 8
)

// Dump writes the schema descriptor of every entity that has one to the
// dump file in the cache directory, keyed by class name. It returns the
// number of descriptors written. Nothing is written when no entity has a
// schema.
func (c *Compiler) Dump(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cacheDir == "" {
		return 0, ErrCacheDirUnset
	}
	entities, err := c.store.GetEntityConfigs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing entities: %w", err)
	}
	schemas := make(map[string]*types.SchemaDescriptor)
	for _, e := range entities {
		if e.Schema != nil {
			schemas[e.ClassName] = e.Schema
		}
	}
	if len(schemas) == 0 {
		c.logger.Info("no schemas to dump")
		return 0, nil
	}

	data, err := MarshalSchemas(schemas)
	if err != nil {
		return 0, err
	}
	path := DumpPath(c.cacheDir)
	if err := writeFileAtomic(c.fs, path, data); err != nil {
		return 0, err
	}
	c.logger.Info("schemas dumped", "path", path, "entities", len(schemas))
	return len(schemas), nil
}

// MarshalSchemas renders schemas as YAML. Keys are ordered, so equal input
// yields identical bytes.
func MarshalSchemas(schemas map[string]*types.SchemaDescriptor) ([]byte, error) {
	var root yaml.Node
	if err := root.Encode(schemas); err != nil {
		return nil, fmt.Errorf("encoding schemas: %w", err)
	}
	flowBelow(&root, 0)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(dumpIndent)
	if err := enc.Encode(&root); err != nil {
		return nil, fmt.Errorf("encoding schemas: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding schemas: %w", err)
	}
	return buf.Bytes(), nil
}

// flowBelow switches collections at or beyond dumpInlineLevel to flow style.
func flowBelow(n *yaml.Node, depth int) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			flowBelow(c, depth)
		}
	case yaml.MappingNode:
		if depth >= dumpInlineLevel {
			n.Style = yaml.FlowStyle
			return
		}
		for i := 1; i < len(n.Content); i += 2 {
			flowBelow(n.Content[i], depth+1)
		}
	case yaml.SequenceNode:
		if depth >= dumpInlineLevel {
			n.Style = yaml.FlowStyle
			return
		}
		for _, item := range n.Content {
			flowBelow(item, depth+1)
		}
	}
}

// writeFileAtomic writes data to a temp file next to path, syncs it, and
// renames it into place.
func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(fs, dir, ".entity_config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
