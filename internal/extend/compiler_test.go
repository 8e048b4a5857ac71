package extend

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/extend/pkg/types"
)

const cacheDir = "/var/cache/extend"

func newCompiler(t *testing.T, s types.ConfigStore) (*Compiler, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewCompiler(s, cacheDir, WithFs(fs)), fs
}

// seedPair registers a bidirectional manyToMany relation between two custom
// entities. ownerClass owns the join.
func seedPair(t *testing.T, s types.ConfigStore, ownerClass, inverseClass string) {
	t.Helper()
	ownerField := types.FieldID(ownerClass, "tags", types.FieldTypeManyToMany)
	inverseField := types.FieldID(inverseClass, "owners", types.FieldTypeManyToMany)

	seedEntity(t, s, ownerClass, func(e *types.EntityConfig) {
		e.AddRelation(types.RelationLink{Key: "tags", FieldID: &ownerField, TargetFieldID: &inverseField, TargetEntity: inverseClass, Owner: true})
	})
	seedEntity(t, s, inverseClass, func(e *types.EntityConfig) {
		e.AddRelation(types.RelationLink{Key: "tags", FieldID: &inverseField, TargetFieldID: &ownerField, TargetEntity: ownerClass})
	})
	seedField(t, s, ownerClass, "tags", types.FieldTypeManyToMany, nil)
	seedField(t, s, inverseClass, "owners", types.FieldTypeManyToMany, nil)
}

func TestCompiler_RegenerateLinksBothSides(t *testing.T) {
	// Owner sorting first and last must converge in a single pass.
	for _, names := range [][2]string{
		{`Extend\Entity\Alpha`, `Extend\Entity\Zulu`},
		{`Extend\Entity\Zulu`, `Extend\Entity\Alpha`},
	} {
		ownerClass, inverseClass := names[0], names[1]
		t.Run(ownerClass, func(t *testing.T) {
			s := openStore(t)
			seedPair(t, s, ownerClass, inverseClass)
			c, _ := newCompiler(t, s)

			res, err := c.Regenerate(context.Background(), "")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{ownerClass, inverseClass}, res.Built)
			assert.Equal(t, 2, res.Assigned)

			owner := mustEntity(t, s, ownerClass)
			inverse := mustEntity(t, s, inverseClass)
			assert.True(t, owner.Relations[0].Assign)
			assert.True(t, inverse.Relations[0].Assign)
			assert.Equal(t, "tags", owner.Schema.Relation["field_tags"])
			assert.Equal(t, "owners", inverse.Schema.Relation["field_owners"])
			assert.Equal(t, types.AddRemove{Self: "tags", Target: "owners"}, owner.Schema.AddRemove["field_tags"])
		})
	}
}

func TestCompiler_RegenerateIsOrderIndependent(t *testing.T) {
	dump := func(ownerClass, inverseClass string) map[string]*types.SchemaDescriptor {
		s := openStore(t)
		seedPair(t, s, ownerClass, inverseClass)
		c, _ := newCompiler(t, s)
		_, err := c.Regenerate(context.Background(), "")
		require.NoError(t, err)
		return map[string]*types.SchemaDescriptor{
			"owner":   mustEntity(t, s, ownerClass).Schema,
			"inverse": mustEntity(t, s, inverseClass).Schema,
		}
	}

	a := dump(`Extend\Entity\Alpha`, `Extend\Entity\Zulu`)
	b := dump(`Extend\Entity\Zulu`, `Extend\Entity\Alpha`)
	assert.Equal(t, a["owner"].Relation, b["owner"].Relation)
	assert.Equal(t, a["inverse"].Relation, b["inverse"].Relation)
	assert.Equal(t, a["owner"].AddRemove, b["owner"].AddRemove)
}

func TestCompiler_RegenerateNamedEntity(t *testing.T) {
	ctx := context.Background()

	t.Run("builds only the named entity and patches its peer", func(t *testing.T) {
		s := openStore(t)
		seedPair(t, s, `Extend\Entity\A`, `Extend\Entity\B`)
		c, _ := newCompiler(t, s)

		res, err := c.Regenerate(ctx, `Extend\Entity\A`)
		require.NoError(t, err)
		assert.Equal(t, []string{`Extend\Entity\A`}, res.Built)

		peer := mustEntity(t, s, `Extend\Entity\B`)
		assert.Nil(t, peer.Schema)
		assert.True(t, peer.Relations[0].Assign)
		assert.Equal(t, types.StateNew, peer.State)
	})

	t.Run("missing entity fails", func(t *testing.T) {
		c, _ := newCompiler(t, openStore(t))
		_, err := c.Regenerate(ctx, `Extend\Entity\Missing`)
		assert.ErrorIs(t, err, types.ErrConfigNotFound)
	})

	t.Run("ineligible entity is skipped", func(t *testing.T) {
		s := openStore(t)
		seedEntity(t, s, customClass, func(e *types.EntityConfig) { e.Upgradeable = false })
		c, _ := newCompiler(t, s)

		res, err := c.Regenerate(ctx, customClass)
		require.NoError(t, err)
		assert.Empty(t, res.Built)
		assert.Nil(t, mustEntity(t, s, customClass).Schema)
	})
}

func TestCompiler_RegenerateSkipsIneligible(t *testing.T) {
	s := openStore(t)
	seedEntity(t, s, `Extend\Entity\On`, nil)
	seedEntity(t, s, `Extend\Entity\NotExtend`, func(e *types.EntityConfig) { e.IsExtend = false })
	seedEntity(t, s, `Extend\Entity\Frozen`, func(e *types.EntityConfig) { e.Upgradeable = false })
	c, _ := newCompiler(t, s)

	res, err := c.Regenerate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{`Extend\Entity\On`}, res.Built)
}

func TestCompiler_RegenerateIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	seedPair(t, s, `Extend\Entity\A`, `Extend\Entity\B`)
	seedField(t, s, `Extend\Entity\A`, "score", "integer", nil)
	c, fs := newCompiler(t, s)

	_, err := c.Regenerate(ctx, "")
	require.NoError(t, err)
	_, err = c.Dump(ctx)
	require.NoError(t, err)
	first, err := afero.ReadFile(fs, DumpPath(cacheDir))
	require.NoError(t, err)

	_, err = c.Regenerate(ctx, "")
	require.NoError(t, err)
	_, err = c.Dump(ctx)
	require.NoError(t, err)
	second, err := afero.ReadFile(fs, DumpPath(cacheDir))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestCompiler_DeletionIsMonotone(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	seedEntity(t, s, customClass, nil)
	seedField(t, s, customClass, "gone", "string", func(f *types.FieldConfig) { f.MarkDeleted() })
	c, _ := newCompiler(t, s)

	for range 3 {
		_, err := c.Regenerate(ctx, "")
		require.NoError(t, err)
		f := mustField(t, s, customClass, "gone")
		assert.Equal(t, types.StateDeleted, f.State)
		assert.True(t, f.IsDeleted)
	}
}

func TestCompiler_Clear(t *testing.T) {
	s := openStore(t)
	c, fs := newCompiler(t, s)
	stale := filepath.Join(GeneratedDir(cacheDir), "Stale.php")
	require.NoError(t, fs.MkdirAll(GeneratedDir(cacheDir), 0o755))
	require.NoError(t, afero.WriteFile(fs, stale, []byte("<?php"), 0o644))

	require.NoError(t, c.Clear())

	exists, err := afero.Exists(fs, stale)
	require.NoError(t, err)
	assert.False(t, exists)
	isDir, err := afero.IsDir(fs, GeneratedDir(cacheDir))
	require.NoError(t, err)
	assert.True(t, isDir)
	empty, err := afero.IsEmpty(fs, GeneratedDir(cacheDir))
	require.NoError(t, err)
	assert.True(t, empty)

	assert.ErrorIs(t, NewCompiler(s, "", WithFs(fs)).Clear(), ErrCacheDirUnset)
}

func TestCompiler_RecordsRuns(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	seedEntity(t, s, customClass, nil)
	c, _ := newCompiler(t, s)

	ok, err := c.Regenerate(ctx, "")
	require.NoError(t, err)

	seedEntity(t, s, extendClass, nil) // no extend class: the build fails
	failed, err := c.Regenerate(ctx, "")
	require.ErrorIs(t, err, types.ErrInvalidData)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]types.RunRecord{runs[0].RunID: runs[0], runs[1].RunID: runs[1]}
	assert.Equal(t, types.RunStatusSucceeded, byID[ok.RunID].Status)
	assert.Equal(t, 1, byID[ok.RunID].Entities)
	assert.Equal(t, types.RunStatusFailed, byID[failed.RunID].Status)
	assert.Contains(t, byID[failed.RunID].Error, "extend_class")
}

func TestCompiler_ConcurrentRegenerate(t *testing.T) {
	s := openStore(t)
	seedPair(t, s, `Extend\Entity\A`, `Extend\Entity\B`)
	c, _ := newCompiler(t, s)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Regenerate(context.Background(), "")
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, mustEntity(t, s, `Extend\Entity\B`).Relations[0].Assign)
}

func TestCompiler_Dump(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing is written without schemas", func(t *testing.T) {
		s := openStore(t)
		seedEntity(t, s, customClass, nil)
		c, fs := newCompiler(t, s)

		n, err := c.Dump(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		exists, err := afero.Exists(fs, DumpPath(cacheDir))
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("one top-level key per built entity", func(t *testing.T) {
		s := openStore(t)
		seedEntity(t, s, customClass, nil)
		seedField(t, s, customClass, "score", "integer", nil)
		seedEntity(t, s, `Extend\Entity\Unbuilt`, func(e *types.EntityConfig) { e.IsExtend = false })
		c, fs := newCompiler(t, s)

		_, err := c.Regenerate(ctx, "")
		require.NoError(t, err)
		n, err := c.Dump(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		data, err := afero.ReadFile(fs, DumpPath(cacheDir))
		require.NoError(t, err)
		var doc map[string]map[string]any
		require.NoError(t, yaml.Unmarshal(data, &doc))
		require.Len(t, doc, 1)
		require.Contains(t, doc, customClass)
		assert.Equal(t, map[string]any{"field_score": "score"}, doc[customClass]["property"])
		assert.Equal(t, types.SchemaTypeCustom, doc[customClass]["type"])
	})
}

func TestMarshalSchemas(t *testing.T) {
	schema := &types.SchemaDescriptor{
		Class:    "CV1",
		Entity:   "CV1",
		Type:     types.SchemaTypeCustom,
		Property: map[string]string{"field_b": "b", "field_a": "a"},
		Doctrine: map[string]types.EntityMapping{
			"CV1": {
				Type:   types.MappingTypeEntity,
				Table:  "oro_extend_cv1",
				Fields: map[string]types.ColumnMapping{"field_a": {Code: "field_a", Type: "string", Nullable: true}},
			},
		},
	}

	data, err := MarshalSchemas(map[string]*types.SchemaDescriptor{"CV1": schema})
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "CV1:\n    class: CV1\n")
	assert.Contains(t, out, "        field_a: a\n        field_b: b\n")
	assert.Contains(t, out, "length: null")

	again, err := MarshalSchemas(map[string]*types.SchemaDescriptor{"CV1": schema.Clone()})
	require.NoError(t, err)
	assert.Equal(t, out, string(again))
}

func TestMarshalSchemas_IdentifierColumn(t *testing.T) {
	length := 32
	schema := &types.SchemaDescriptor{
		Class:  "CV1",
		Entity: "CV1",
		Type:   types.SchemaTypeCustom,
		Doctrine: map[string]types.EntityMapping{
			"CV1": {
				Type:  types.MappingTypeEntity,
				Table: "oro_extend_cv1",
				Fields: map[string]types.ColumnMapping{
					"id":      {Type: "integer", ID: true, Generator: &types.Generator{Strategy: "AUTO"}},
					"field_a": {Code: "field_a", Type: "string", Nullable: true, Length: &length},
				},
			},
		},
	}

	data, err := MarshalSchemas(map[string]*types.SchemaDescriptor{"CV1": schema})
	require.NoError(t, err)

	var doc map[string]struct {
		Doctrine map[string]struct {
			Fields map[string]map[string]any `yaml:"fields"`
		} `yaml:"doctrine"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	fields := doc["CV1"].Doctrine["CV1"].Fields

	assert.Equal(t, map[string]any{
		"type":      "integer",
		"id":        true,
		"generator": map[string]any{"strategy": "AUTO"},
	}, fields["id"])

	tests := []struct {
		key  string
		want any
	}{
		{key: "length", want: 32},
		{key: "precision", want: nil},
		{key: "scale", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, ok := fields["field_a"][tt.key]
			require.True(t, ok, "scalar columns always carry %s", tt.key)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestFlowBelow(t *testing.T) {
	// Nine levels of nesting; the innermost collections become flow style.
	var v any = map[string]any{"leaf": []int{1, 2}}
	for range 8 {
		v = map[string]any{"n": v}
	}
	var root yaml.Node
	require.NoError(t, root.Encode(v))
	flowBelow(&root, 0)

	n := &root
	if n.Kind == yaml.DocumentNode {
		n = n.Content[0]
	}
	require.Equal(t, yaml.MappingNode, n.Kind)
	for depth := 0; n.Kind == yaml.MappingNode; depth++ {
		if depth < dumpInlineLevel {
			assert.NotEqual(t, yaml.FlowStyle, n.Style, "depth %d", depth)
		} else {
			assert.Equal(t, yaml.FlowStyle, n.Style, "depth %d", depth)
		}
		n = n.Content[1]
	}
}
