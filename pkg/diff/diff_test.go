// SPDX-License-Identifier: Apache-2.0

package diff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/diff"
)

func usersCatalog(cols []catalog.Column) *catalog.Catalog {
	cat := catalog.New()
	cat.Tables = []catalog.Table{{ID: catalog.TableID("public", "users"), Columns: cols, PrimaryKey: []string{"id"}}}
	return cat.Build()
}

func TestDiffIsEmptyForIdenticalCatalogs(t *testing.T) {
	cat := usersCatalog([]catalog.Column{{Name: "id", Type: "bigint", NotNull: true}})
	res, err := diff.Diff(cat, cat, diff.DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Steps)
	assert.Empty(t, res.Violations)
}

func TestDiffAddColumnAtEnd(t *testing.T) {
	old := usersCatalog([]catalog.Column{
		{Name: "id", Type: "bigint", NotNull: true},
		{Name: "name", Type: "text"},
	})
	new := usersCatalog([]catalog.Column{
		{Name: "id", Type: "bigint", NotNull: true},
		{Name: "name", Type: "text"},
		{Name: "email", Type: "text"},
	})

	res, err := diff.Diff(old, new, diff.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, diff.ActionCreate, res.Steps[0].Action)
	assert.Contains(t, res.Steps[0].SQL, `ADD COLUMN "email" text`)
	assert.Empty(t, res.Violations)
}

func TestDiffAddColumnInMiddleStrictModeFails(t *testing.T) {
	old := usersCatalog([]catalog.Column{
		{Name: "id", Type: "bigint", NotNull: true},
		{Name: "name", Type: "text"},
	})
	new := usersCatalog([]catalog.Column{
		{Name: "id", Type: "bigint", NotNull: true},
		{Name: "email", Type: "text"},
		{Name: "name", Type: "text"},
	})

	_, err := diff.Diff(old, new, diff.DefaultOptions())
	require.Error(t, err)
	var violationErr *diff.ColumnOrderViolationError
	require.ErrorAs(t, err, &violationErr)
	require.Len(t, violationErr.Violations, 1)
	assert.Equal(t, "email", violationErr.Violations[0].Column)
	assert.Equal(t, "name", violationErr.Violations[0].MustFollow)
}

func TestDiffAddColumnInMiddleRelaxedModeProceeds(t *testing.T) {
	old := usersCatalog([]catalog.Column{
		{Name: "id", Type: "bigint", NotNull: true},
		{Name: "name", Type: "text"},
	})
	new := usersCatalog([]catalog.Column{
		{Name: "id", Type: "bigint", NotNull: true},
		{Name: "email", Type: "text"},
		{Name: "name", Type: "text"},
	})

	res, err := diff.Diff(old, new, diff.Options{ColumnOrder: diff.ColumnOrderRelaxed})
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	require.Len(t, res.Steps, 1)
}

func TestDiffForeignKeyWithCascade(t *testing.T) {
	old := catalog.New()
	old.Tables = []catalog.Table{
		{ID: catalog.TableID("public", "users"), Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}}},
		{ID: catalog.TableID("public", "orders"), Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}, {Name: "user_id", Type: "bigint"}}},
	}
	oldCat := old.Build()

	new := catalog.New()
	new.Tables = oldCat.Tables
	new.Constraints = []catalog.Constraint{{
		ID: catalog.ConstraintID("public", "orders", "orders_user_id_fkey"), Kind: catalog.ConstraintForeignKey,
		Columns: []string{"user_id"},
		ForeignKey: &catalog.ForeignKeyDetail{
			RefSchema: "public", RefTable: "users", RefColumns: []string{"id"}, OnDelete: "CASCADE",
		},
	}}
	newCat := new.Build()

	res, err := diff.Diff(oldCat, newCat, diff.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, diff.ActionCreate, res.Steps[0].Action)
	assert.Contains(t, res.Steps[0].SQL, "ON DELETE CASCADE")
}

func enumCatalog(labels []string) *catalog.Catalog {
	cat := catalog.New()
	cat.Types = []catalog.Type{{ID: catalog.TypeID("public", "status"), Kind: catalog.TypeEnum, EnumLabels: labels}}
	return cat.Build()
}

func TestDiffEnumAppendIsInPlace(t *testing.T) {
	old := enumCatalog([]string{"pending", "active"})
	new := enumCatalog([]string{"pending", "active", "archived"})

	res, err := diff.Diff(old, new, diff.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, diff.OpAlterEnumAddValue, res.Steps[0].Op)
	assert.Contains(t, res.Steps[0].SQL, "ADD VALUE 'archived'")
}

func TestDiffEnumRemovalRequiresOptIn(t *testing.T) {
	old := enumCatalog([]string{"pending", "active", "archived"})
	new := enumCatalog([]string{"pending", "active"})

	_, err := diff.Diff(old, new, diff.DefaultOptions())
	require.Error(t, err)
	var destructiveErr *diff.DestructiveChangeError
	require.ErrorAs(t, err, &destructiveErr)

	res, err := diff.Diff(old, new, diff.Options{AllowDestructiveEnumChanges: true})
	require.NoError(t, err)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, diff.ActionDrop, res.Steps[0].Action)
	assert.Equal(t, diff.ActionCreate, res.Steps[1].Action)
}

func TestDiffSetNotNullWithoutDefaultMarksEmptyTableCheck(t *testing.T) {
	old := usersCatalog([]catalog.Column{{Name: "id", Type: "bigint"}, {Name: "email", Type: "text"}})
	new := usersCatalog([]catalog.Column{{Name: "id", Type: "bigint"}, {Name: "email", Type: "text", NotNull: true}})

	res, err := diff.Diff(old, new, diff.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)
	assert.True(t, res.Steps[0].RequiresEmptyTable)
}
