// SPDX-License-Identifier: Apache-2.0

package catalog_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgmt-dev/pgmt/internal/testutils"
	"github.com/pgmt-dev/pgmt/pkg/catalog"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _ := testutils.NewDatabase(t)
	return db
}

// TestLoadExcludesExtensionOwnedFunctionsAndTypes exercises the
// uuid-ossp/citext scenario: an extension's functions and types must be
// excluded from the catalog and never appear as a user-created object a
// diff would try to drop.
func TestLoadExcludesExtensionOwnedFunctionsAndTypes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS citext`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE widgets (id uuid DEFAULT uuid_generate_v4(), label citext)`)
	require.NoError(t, err)

	cat, err := catalog.Load(ctx, db, catalog.DefaultFilter())
	require.NoError(t, err)

	for _, fn := range cat.Functions {
		assert.NotEqual(t, "uuid_generate_v4", fn.ID.Name, "uuid-ossp's functions must not appear as user objects")
	}
	for _, ty := range cat.Types {
		assert.NotEqual(t, "citext", ty.ID.Name, "citext's type must not appear as a user object")
	}

	assert.Contains(t, cat.InstalledExtensions, "uuid-ossp")
	assert.Contains(t, cat.InstalledExtensions, "citext")

	widgets, ok := cat.Table("public", "widgets")
	require.True(t, ok)
	require.Len(t, widgets.Columns, 2)

	idCol := widgets.Columns[0]
	assert.Equal(t, "id", idCol.Name)
	for _, dep := range idCol.DependsOn {
		assert.NotEqual(t, catalog.KindFunction, dep.Kind, "the default's dependency on uuid_generate_v4 should have been redirected to the extension")
	}
}
