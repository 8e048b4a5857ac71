package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/extend/internal/config"
	"github.com/mesh-intelligence/extend/internal/extend"
	"github.com/mesh-intelligence/extend/internal/lock"
	"github.com/mesh-intelligence/extend/pkg/types"
)

type testDirs struct {
	config, data, cache string
}

func newTestDirs(t *testing.T) testDirs {
	t.Helper()
	root := t.TempDir()
	return testDirs{
		config: filepath.Join(root, "config"),
		data:   filepath.Join(root, "data"),
		cache:  filepath.Join(root, "cache"),
	}
}

// execute runs one extendctl invocation in process.
func (d testDirs) execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{
		"--config-dir", d.config,
		"--data-dir", d.data,
		"--cache-dir", d.cache,
	}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (d testDirs) mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := d.execute(t, args...)
	require.NoError(t, err, "extendctl %v\nstderr: %s", args, stderr)
	return stdout
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "plain error", err: errors.New("bad flag"), want: exitUserError},
		{name: "system error", err: sysError(errors.New("disk full")), want: exitSysError},
		{name: "wrapped system error", err: fmt.Errorf("open: %w", sysError(errors.New("denied"))), want: exitSysError},
		{name: "classified not found", err: classify(fmt.Errorf("get: %w", types.ErrConfigNotFound)), want: exitUserError},
		{name: "classified lock", err: classify(lock.ErrLocked), want: exitUserError},
		{name: "classified unknown", err: classify(errors.New("io timeout")), want: exitSysError},
		{name: "classify keeps code", err: classify(sysError(types.ErrInvalidData)), want: exitSysError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.NoError(t, sysError(nil))
}

func TestInverseKey(t *testing.T) {
	assert.Equal(t, "k1", inverseKey("k1", false))
	assert.Equal(t, "k1:inverse", inverseKey("k1", true))
}

func TestVersion_SkipsLoad(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	var stdout bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())

	assert.Contains(t, stdout.String(), "extendctl "+Version)
	_, err := os.Stat(filepath.Join(xdg, "extend", config.FileName))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInit_CreatesDirectories(t *testing.T) {
	d := newTestDirs(t)
	out := d.mustExecute(t, "init")

	assert.Contains(t, out, d.data)
	assert.FileExists(t, filepath.Join(d.config, config.FileName))
	assert.DirExists(t, extend.GeneratedDir(d.cache))
}

func TestRegenerate_InProcess(t *testing.T) {
	d := newTestDirs(t)
	d.mustExecute(t, "init")
	d.mustExecute(t, "entity", "add", `Extend\Entity\Tag`)
	d.mustExecute(t, "entity", "add", `Extend\Entity\Post`)
	d.mustExecute(t, "field", "add", `Extend\Entity\Tag`, "label", "string", "--length", "64")
	d.mustExecute(t, "relation", "add", `Extend\Entity\Post`, "tags", types.FieldTypeManyToMany, `Extend\Entity\Tag`, "posts")

	var res extend.Result
	require.NoError(t, json.Unmarshal([]byte(d.mustExecute(t, "--json", "regenerate")), &res))
	assert.Equal(t, []string{`Extend\Entity\Post`, `Extend\Entity\Tag`}, res.Built)
	assert.Equal(t, 2, res.Assigned)
	assert.NotEmpty(t, res.RunID)

	out := d.mustExecute(t, "dump")
	assert.Contains(t, out, "Dumped 2 schemas")
	assert.FileExists(t, extend.DumpPath(d.cache))

	assert.Equal(t, "Active\n", d.mustExecute(t, "config", "get", `Extend\Entity\Tag::label`, types.AttrState))
	assert.Equal(t, "64\n", d.mustExecute(t, "config", "get", `Extend\Entity\Tag::label`, types.AttrLength))
	assert.Equal(t, "true\n", d.mustExecute(t, "config", "get", `Extend\Entity\Tag`, types.AttrUpgradeable))

	l, err := lock.Acquire(filepath.Join(d.data, lock.FileName))
	require.NoError(t, err, "regenerate releases its lock")
	assert.NoError(t, l.Release())
}

func TestRelationAdd_SelfReference(t *testing.T) {
	d := newTestDirs(t)
	d.mustExecute(t, "init")
	d.mustExecute(t, "entity", "add", `Extend\Entity\Node`)
	d.mustExecute(t, "relation", "add", `Extend\Entity\Node`, "parent", types.FieldTypeManyToOne, `Extend\Entity\Node`, "children", "--key", "tree")

	var view entityView
	require.NoError(t, json.Unmarshal([]byte(d.mustExecute(t, "--json", "entity", "show", `Extend\Entity\Node`)), &view))
	require.Len(t, view.Entity.Relations, 2)
	assert.Equal(t, "tree", view.Entity.Relations[0].Key)
	assert.True(t, view.Entity.Relations[0].Owner)
	assert.Equal(t, "tree:inverse", view.Entity.Relations[1].Key)
	assert.False(t, view.Entity.Relations[1].Owner)

	require.Len(t, view.Fields, 2)
	kinds := map[string]string{}
	for _, f := range view.Fields {
		kinds[f.FieldName] = f.FieldType
	}
	assert.Equal(t, map[string]string{"parent": types.FieldTypeManyToOne, "children": types.FieldTypeOneToMany}, kinds)
}

func TestEntityList_JSON(t *testing.T) {
	d := newTestDirs(t)
	d.mustExecute(t, "init")
	d.mustExecute(t, "entity", "add", `Extend\Entity\A`)
	d.mustExecute(t, "entity", "add", `Extend\Entity\B`, "--upgradeable=false")

	var entities []types.EntityConfig
	require.NoError(t, json.Unmarshal([]byte(d.mustExecute(t, "--json", "entity", "list")), &entities))
	require.Len(t, entities, 2)
	assert.True(t, entities[0].Upgradeable)
	assert.False(t, entities[1].Upgradeable)
	assert.Equal(t, types.StateNew, entities[1].State)
}

func TestCommands_UserErrors(t *testing.T) {
	d := newTestDirs(t)
	d.mustExecute(t, "init")

	tests := []struct {
		name   string
		args   []string
		target error
	}{
		{name: "missing entity", args: []string{"entity", "show", `Extend\Entity\Nope`}, target: types.ErrConfigNotFound},
		{name: "missing regenerate target", args: []string{"regenerate", `Extend\Entity\Nope`}, target: types.ErrConfigNotFound},
		{name: "extend class required", args: []string{"entity", "add", `Acme\Bundle\Order`}, target: types.ErrInvalidData},
		{name: "bad config id", args: []string{"config", "get", "::x", types.AttrState}, target: types.ErrInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := d.execute(t, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, exitUserError, exitCode(err))
		})
	}
}

func TestRegenerate_Locked(t *testing.T) {
	d := newTestDirs(t)
	d.mustExecute(t, "init")

	l, err := lock.Acquire(filepath.Join(d.data, lock.FileName))
	require.NoError(t, err)
	defer l.Release()

	_, _, err = d.execute(t, "regenerate")
	assert.ErrorIs(t, err, lock.ErrLocked)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestLoad_BadLogFormat(t *testing.T) {
	d := newTestDirs(t)
	require.NoError(t, os.MkdirAll(d.config, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(d.config, config.FileName), []byte("log_format: xml\n"), 0o644))

	_, _, err := d.execute(t, "entity", "list")
	assert.ErrorIs(t, err, config.ErrLogFormat)
	assert.Equal(t, exitUserError, exitCode(err))
}
