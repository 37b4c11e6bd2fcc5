// SPDX-License-Identifier: Apache-2.0

package depsfile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/depsfile"
)

func TestParseRequireHeaderSingleLine(t *testing.T) {
	reqs, err := depsfile.ParseRequireHeader([]byte("-- require: a.sql, b.sql\nCREATE TABLE t (id int);\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.sql", "b.sql"}, reqs)
}

func TestParseRequireHeaderStopsAtFirstStatement(t *testing.T) {
	reqs, err := depsfile.ParseRequireHeader([]byte("-- a comment\nCREATE TABLE t (id int);\n-- require: late.sql\n"))
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestParseRequireHeaderNoDirective(t *testing.T) {
	reqs, err := depsfile.ParseRequireHeader([]byte("CREATE TABLE t (id int);\n"))
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestBuildFileGraphOrdersByRequire(t *testing.T) {
	files := []string{"b.sql", "a.sql", "c.sql"}
	contents := map[string]string{
		"a.sql": "CREATE TABLE a (id int);\n",
		"b.sql": "-- require: a.sql\nCREATE TABLE b (id int);\n",
		"c.sql": "-- require: a.sql, b.sql\nCREATE TABLE c (id int);\n",
	}

	graph, err := depsfile.BuildFileGraph(files, func(path string) ([]byte, error) {
		return []byte(contents[path]), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.sql", "b.sql", "c.sql"}, graph.Files())
}

func TestBuildFileGraphDetectsCycle(t *testing.T) {
	files := []string{"a.sql", "b.sql"}
	contents := map[string]string{
		"a.sql": "-- require: b.sql\nCREATE TABLE a (id int);\n",
		"b.sql": "-- require: a.sql\nCREATE TABLE b (id int);\n",
	}

	_, err := depsfile.BuildFileGraph(files, func(path string) ([]byte, error) {
		return []byte(contents[path]), nil
	})
	assert.Error(t, err)
}

func TestBuildFileGraphRejectsUnknownRequire(t *testing.T) {
	files := []string{"a.sql"}
	contents := map[string]string{
		"a.sql": "-- require: missing.sql\nCREATE TABLE a (id int);\n",
	}

	_, err := depsfile.BuildFileGraph(files, func(path string) ([]byte, error) {
		return []byte(contents[path]), nil
	})
	assert.Error(t, err)
}

// fakeShadowEnv simulates each file creating exactly one table named after
// the file's base name, so Augment's before/after diffing can be exercised
// without a real database.
type fakeShadowEnv struct {
	applied []string
	tables  map[string]bool
}

func newFakeShadowEnv() *fakeShadowEnv {
	return &fakeShadowEnv{tables: map[string]bool{}}
}

func (f *fakeShadowEnv) ApplyFile(ctx context.Context, path string) error {
	f.applied = append(f.applied, path)
	f.tables[path] = true
	return nil
}

func (f *fakeShadowEnv) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	cat := catalog.New()
	for path := range f.tables {
		cat.Tables = append(cat.Tables, catalog.Table{ID: catalog.TableID("public", path)})
	}
	return cat.Build(), nil
}

func TestAugmentDerivesObjectLevelEdges(t *testing.T) {
	files := []string{"a.sql", "b.sql"}
	contents := map[string]string{
		"a.sql": "CREATE TABLE a (id int);\n",
		"b.sql": "-- require: a.sql\nCREATE TABLE b (id int);\n",
	}

	graph, err := depsfile.BuildFileGraph(files, func(path string) ([]byte, error) {
		return []byte(contents[path]), nil
	})
	require.NoError(t, err)

	env := newFakeShadowEnv()
	aug, err := depsfile.Augment(context.Background(), env, graph)
	require.NoError(t, err)

	bID := catalog.TableID("public", "b.sql")
	aID := catalog.TableID("public", "a.sql")
	deps, ok := aug[bID.Key()]
	require.True(t, ok)
	require.Len(t, deps, 1)
	assert.Equal(t, aID.Key(), deps[0].Key())
}
