// SPDX-License-Identifier: Apache-2.0

package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/diff"
	"github.com/pgmt-dev/pgmt/pkg/plan"
)

func buildCatalog(tables []catalog.Table, constraints []catalog.Constraint) *catalog.Catalog {
	cat := catalog.New()
	cat.Tables = tables
	cat.Constraints = constraints
	return cat.Build()
}

func TestScheduleOrdersCreatesAfterDependencies(t *testing.T) {
	usersID := catalog.TableID("public", "users")
	ordersID := catalog.TableID("public", "orders")

	oldCat := buildCatalog(nil, nil)
	newCat := buildCatalog([]catalog.Table{
		{ID: usersID, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}}},
		{ID: ordersID, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}, {Name: "user_id", Type: "bigint"}}, DependsOn: []catalog.ID{usersID}},
	}, nil)

	steps := []diff.Step{
		{Object: ordersID, Action: diff.ActionCreate, SQL: "CREATE TABLE orders"},
		{Object: usersID, Action: diff.ActionCreate, SQL: "CREATE TABLE users"},
	}

	p, err := plan.Schedule(steps, oldCat, newCat, plan.DefaultOptions())
	require.NoError(t, err)
	ordered := p.Steps()
	require.Len(t, ordered, 2)
	assert.Equal(t, usersID, ordered[0].Object)
	assert.Equal(t, ordersID, ordered[1].Object)
}

func TestScheduleRunsDropsBeforeCreates(t *testing.T) {
	oldTable := catalog.TableID("public", "legacy")
	newTable := catalog.TableID("public", "users")

	oldCat := buildCatalog([]catalog.Table{{ID: oldTable, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}}}}, nil)
	newCat := buildCatalog([]catalog.Table{{ID: newTable, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}}}}, nil)

	steps := []diff.Step{
		{Object: newTable, Action: diff.ActionCreate, SQL: "CREATE TABLE users"},
		{Object: oldTable, Action: diff.ActionDrop, SQL: "DROP TABLE legacy", Narrows: true},
	}

	p, err := plan.Schedule(steps, oldCat, newCat, plan.DefaultOptions())
	require.NoError(t, err)
	ordered := p.Steps()
	require.Len(t, ordered, 2)
	assert.Equal(t, diff.ActionDrop, ordered[0].Action)
	assert.Equal(t, diff.ActionCreate, ordered[1].Action)
}

func TestScheduleOrdersMiddleAltersByNewCatalogPosition(t *testing.T) {
	usersID := catalog.TableID("public", "users")
	ordersID := catalog.TableID("public", "orders")
	usersEmailCol := catalog.ColumnID("public", "users", "email")
	ordersTotalCol := catalog.ColumnID("public", "orders", "total")

	cat := buildCatalog([]catalog.Table{
		{ID: usersID, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}, {Name: "email", Type: "text"}}},
		{ID: ordersID, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}, {Name: "total", Type: "numeric"}}},
	}, nil)

	steps := []diff.Step{
		{Object: ordersTotalCol, Action: diff.ActionAlter, Op: diff.OpAlterColumnType, SQL: "ALTER orders.total"},
		{Object: usersEmailCol, Action: diff.ActionAlter, Op: diff.OpAlterColumnType, SQL: "ALTER users.email"},
	}

	p, err := plan.Schedule(steps, cat, cat, plan.DefaultOptions())
	require.NoError(t, err)
	ordered := p.Steps()
	require.Len(t, ordered, 2)
	// "orders" sorts before "users" lexically, so with no other ordering
	// constraint between the two tables the orders column is scheduled
	// first; this asserts the ordering is the deterministic topological
	// one rather than step input order.
	assert.Equal(t, ordersTotalCol, ordered[0].Object)
	assert.Equal(t, usersEmailCol, ordered[1].Object)
}

func TestScheduleGroupsStepsOnTheSameTableIntoOneSection(t *testing.T) {
	usersID := catalog.TableID("public", "users")
	emailCol := catalog.ColumnID("public", "users", "email")
	nameCol := catalog.ColumnID("public", "users", "name")

	cat := buildCatalog([]catalog.Table{
		{ID: usersID, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}, {Name: "email", Type: "text"}, {Name: "name", Type: "text"}}},
	}, nil)

	steps := []diff.Step{
		{Object: emailCol, Action: diff.ActionCreate, Op: diff.OpAddColumn, SQL: "ADD COLUMN email"},
		{Object: nameCol, Action: diff.ActionCreate, Op: diff.OpAddColumn, SQL: "ADD COLUMN name"},
	}

	p, err := plan.Schedule(steps, cat, cat, plan.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, p.Sections, 1)
	assert.Len(t, p.Sections[0].Steps, 2)
}

func TestScheduleRefusesNotNullBackfillWithoutOptIn(t *testing.T) {
	usersID := catalog.TableID("public", "users")
	emailCol := catalog.ColumnID("public", "users", "email")
	col := catalog.Column{Name: "email", Type: "text", NotNull: true}

	cat := buildCatalog([]catalog.Table{{ID: usersID, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}, col}}}, nil)

	steps := []diff.Step{
		{Object: emailCol, Action: diff.ActionCreate, Op: diff.OpAddColumn, Column: &col, SQL: "ADD COLUMN email"},
	}

	_, err := plan.Schedule(steps, cat, cat, plan.DefaultOptions())
	require.Error(t, err)
	var manualErr *diff.ManualChangeRequiredError
	require.ErrorAs(t, err, &manualErr)
}

func TestScheduleRewritesNotNullBackfillWhenOptedIn(t *testing.T) {
	usersID := catalog.TableID("public", "users")
	emailCol := catalog.ColumnID("public", "users", "email")
	col := catalog.Column{Name: "email", Type: "text", NotNull: true}

	cat := buildCatalog([]catalog.Table{{ID: usersID, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}, col}}}, nil)

	steps := []diff.Step{
		{Object: emailCol, Action: diff.ActionCreate, Op: diff.OpAddColumn, Column: &col, SQL: "ADD COLUMN email"},
	}

	p, err := plan.Schedule(steps, cat, cat, plan.Options{AllowNotNullBackfill: true, NotNullBackfillValue: "''"})
	require.NoError(t, err)
	ordered := p.Steps()
	require.Len(t, ordered, 5)
	assert.Equal(t, diff.OpAddColumn, ordered[0].Op)
	assert.False(t, ordered[0].Column.NotNull)
	assert.Equal(t, diff.OpSetDefault, ordered[1].Op)
	assert.Contains(t, ordered[2].SQL, "UPDATE")
	assert.Equal(t, diff.OpSetNotNull, ordered[3].Op)
	assert.Equal(t, diff.OpDropDefault, ordered[4].Op)
}

func TestScheduleForcesViewDropBeforeDependentColumnDrop(t *testing.T) {
	usersID := catalog.TableID("public", "users")
	emailCol := catalog.ColumnID("public", "users", "email")
	viewID := catalog.ViewID("public", "user_emails")

	old := catalog.New()
	old.Tables = []catalog.Table{{ID: usersID, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}, {Name: "email", Type: "text"}}}}
	old.Views = []catalog.View{{ID: viewID, Definition: "SELECT email FROM users", DependsOn: []catalog.ID{emailCol}}}
	oldCat := old.Build()

	newC := catalog.New()
	newC.Tables = []catalog.Table{{ID: usersID, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}}}}
	newC.Views = oldCat.Views
	newCat := newC.Build()

	steps := []diff.Step{
		{Object: emailCol, Action: diff.ActionDrop, Narrows: true, SQL: "ALTER TABLE users DROP COLUMN email"},
	}

	p, err := plan.Schedule(steps, oldCat, newCat, plan.DefaultOptions())
	require.NoError(t, err)
	ordered := p.Steps()
	require.Len(t, ordered, 2)
	assert.Equal(t, viewID, ordered[0].Object)
	assert.Equal(t, emailCol, ordered[1].Object)
}

func TestScheduleRefusesExistingColumnNotNullWithoutOptIn(t *testing.T) {
	usersID := catalog.TableID("public", "users")
	emailCol := catalog.ColumnID("public", "users", "email")

	cat := buildCatalog([]catalog.Table{{ID: usersID, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}, {Name: "email", Type: "text", NotNull: true}}}}, nil)

	steps := []diff.Step{
		{Object: emailCol, Action: diff.ActionAlter, Op: diff.OpSetNotNull, Narrows: true, RequiresEmptyTable: true, SQL: "ALTER TABLE users ALTER COLUMN email SET NOT NULL"},
	}

	_, err := plan.Schedule(steps, cat, cat, plan.DefaultOptions())
	require.Error(t, err)
	var manualErr *diff.ManualChangeRequiredError
	require.ErrorAs(t, err, &manualErr)
}

func TestScheduleRewritesExistingColumnNotNullWhenOptedIn(t *testing.T) {
	usersID := catalog.TableID("public", "users")
	emailCol := catalog.ColumnID("public", "users", "email")

	cat := buildCatalog([]catalog.Table{{ID: usersID, Columns: []catalog.Column{{Name: "id", Type: "bigint", NotNull: true}, {Name: "email", Type: "text", NotNull: true}}}}, nil)

	steps := []diff.Step{
		{Object: emailCol, Action: diff.ActionAlter, Op: diff.OpSetNotNull, Narrows: true, RequiresEmptyTable: true, SQL: "ALTER TABLE users ALTER COLUMN email SET NOT NULL"},
	}

	p, err := plan.Schedule(steps, cat, cat, plan.Options{AllowNotNullBackfill: true, NotNullBackfillValue: "''"})
	require.NoError(t, err)
	ordered := p.Steps()
	require.Len(t, ordered, 2)
	assert.Contains(t, ordered[0].SQL, "UPDATE")
	assert.Equal(t, diff.OpSetNotNull, ordered[1].Op)
	assert.Equal(t, "ALTER TABLE users ALTER COLUMN email SET NOT NULL", ordered[1].SQL)
}
