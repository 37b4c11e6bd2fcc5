// SPDX-License-Identifier: Apache-2.0

package render_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/render"
)

func TestCheckExprWrapsOnlyWhenNeeded(t *testing.T) {
	assert.Equal(t, "CHECK (price > 0)", render.CheckExpr("price > 0"))
	assert.Equal(t, "CHECK (price > 0)", render.CheckExpr("CHECK (price > 0)"))
	assert.Equal(t, "check(price > 0)", render.CheckExpr("check(price > 0)"))
}

func TestCreateTablePreservesColumnOrder(t *testing.T) {
	tbl := catalog.Table{
		ID: catalog.TableID("public", "users"),
		Columns: []catalog.Column{
			{Name: "id", Type: "bigint", NotNull: true},
			{Name: "email", Type: "text", NotNull: true},
			{Name: "name", Type: "text"},
		},
		PrimaryKey: []string{"id"},
	}
	sql := render.CreateTable(tbl)
	idIdx := strings.Index(sql, `"id"`)
	emailIdx := strings.Index(sql, `"email"`)
	nameIdx := strings.Index(sql, `"name"`)
	assert.True(t, idIdx < emailIdx && emailIdx < nameIdx, "columns must render in declared order: %s", sql)
	assert.Contains(t, sql, `PRIMARY KEY ("id")`)
}

func TestCreateConstraintForeignKeyWithCascade(t *testing.T) {
	c := catalog.Constraint{
		ID:      catalog.ConstraintID("public", "orders", "orders_user_id_fkey"),
		Kind:    catalog.ConstraintForeignKey,
		Columns: []string{"user_id"},
		ForeignKey: &catalog.ForeignKeyDetail{
			RefSchema: "public", RefTable: "users", RefColumns: []string{"id"},
			OnDelete: "CASCADE",
		},
	}
	sql := render.CreateConstraint(c)
	assert.Equal(t, `ALTER TABLE "public"."orders" ADD CONSTRAINT "orders_user_id_fkey" FOREIGN KEY ("user_id") REFERENCES "public"."users" ("id") ON DELETE CASCADE;`, sql)
}

func TestCreateGrantOmitsKeywordForTable(t *testing.T) {
	g := catalog.Grant{
		Target:     catalog.TableID("public", "users"),
		Grantee:    catalog.Grantee{Name: "app_readonly", IsRole: true},
		Privileges: []string{"SELECT"},
	}
	assert.Equal(t, `GRANT SELECT ON "public"."users" TO "app_readonly";`, render.CreateGrant(g))
}

func TestCreateGrantKeepsKeywordForFunction(t *testing.T) {
	g := catalog.Grant{
		Target:     catalog.FunctionID("public", "total", "integer"),
		Grantee:    catalog.Grantee{Name: catalog.PublicRole},
		Privileges: []string{"EXECUTE"},
	}
	assert.Equal(t, `GRANT EXECUTE ON FUNCTION "public"."total"(integer) TO PUBLIC;`, render.CreateGrant(g))
}
