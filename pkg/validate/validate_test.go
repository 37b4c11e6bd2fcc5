// SPDX-License-Identifier: Apache-2.0

package validate_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgmt-dev/pgmt/internal/dbx"
	"github.com/pgmt-dev/pgmt/internal/testutils"
	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/diff"
	"github.com/pgmt-dev/pgmt/pkg/sandbox"
	"github.com/pgmt-dev/pgmt/pkg/state"
	"github.com/pgmt-dev/pgmt/pkg/validate"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func newSandbox(t *testing.T) *sandbox.Sandbox {
	t.Helper()
	_, connStr := testutils.NewDatabase(t)
	sb, err := sandbox.Connect(context.Background(), connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close(context.Background()) })
	return sb
}

func newParams(t *testing.T, schemaFS fstest.MapFS, migrationsFS fstest.MapFS) (validate.Params, *dbx.RDB) {
	t.Helper()
	ctx := context.Background()

	liveDB, _ := testutils.NewDatabase(t)
	live := &dbx.RDB{DB: liveDB}

	store, err := state.New(live, "public", "pgmt_migrations")
	require.NoError(t, err)
	require.NoError(t, store.Init(ctx))

	return validate.Params{
		SchemaFS:    schemaFS,
		Sandbox:     newSandbox(t),
		LiveDB:      live,
		Filter:      catalog.DefaultFilter(),
		Store:       store,
		Migrations:  validate.NewDirSource(migrationsFS),
		DiffOptions: diff.DefaultOptions(),
	}, live
}

func TestValidateReportsCleanWhenLiveMatchesDesired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	schemaFS := fstest.MapFS{
		"001_users.sql": &fstest.MapFile{Data: []byte(`CREATE TABLE users (id bigint PRIMARY KEY, name text);`)},
	}
	params, live := newParams(t, schemaFS, fstest.MapFS{})

	_, err := live.ExecContext(ctx, `CREATE TABLE users (id bigint PRIMARY KEY, name text);`)
	require.NoError(t, err)

	report, err := validate.Validate(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, validate.StatusClean, report.Status)
	assert.Equal(t, validate.ExitSuccess, report.ExitCode)
	assert.Empty(t, report.Steps)
}

func TestValidateReportsPendingWhenDesiredAddsAColumn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	schemaFS := fstest.MapFS{
		"001_users.sql": &fstest.MapFile{Data: []byte(`CREATE TABLE users (id bigint PRIMARY KEY, name text, email text);`)},
	}
	params, live := newParams(t, schemaFS, fstest.MapFS{})

	_, err := live.ExecContext(ctx, `CREATE TABLE users (id bigint PRIMARY KEY, name text);`)
	require.NoError(t, err)

	report, err := validate.Validate(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, validate.StatusPending, report.Status)
	assert.Equal(t, validate.ExitSuccess, report.ExitCode)
	assert.NotEmpty(t, report.Steps)
	assert.NotEmpty(t, report.SuggestedActions)
}

func TestValidateReportsConflictOnChecksumDrift(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	schemaFS := fstest.MapFS{
		"001_users.sql": &fstest.MapFile{Data: []byte(`CREATE TABLE users (id bigint PRIMARY KEY);`)},
	}
	original := []byte(`CREATE TABLE users (id bigint PRIMARY KEY);`)
	migrationsFS := fstest.MapFS{
		"V1700000000__init.sql": &fstest.MapFile{Data: original},
	}
	params, live := newParams(t, schemaFS, migrationsFS)

	_, err := live.ExecContext(ctx, `CREATE TABLE users (id bigint PRIMARY KEY);`)
	require.NoError(t, err)
	require.NoError(t, params.Store.RecordApplied(ctx, 1700000000, "init", state.Checksum([]byte("edited after applying"))))

	report, err := validate.Validate(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, validate.StatusConflict, report.Status)
	assert.Equal(t, validate.ExitDriftConflict, report.ExitCode)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, uint64(1700000000), report.Conflicts[0].Version)
}

func TestValidateReportsUnappliedMigrations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	schemaFS := fstest.MapFS{
		"001_users.sql": &fstest.MapFile{Data: []byte(`CREATE TABLE users (id bigint PRIMARY KEY);`)},
	}
	migrationsFS := fstest.MapFS{
		"V1700000000__init.sql": &fstest.MapFile{Data: []byte(`CREATE TABLE users (id bigint PRIMARY KEY);`)},
	}
	params, live := newParams(t, schemaFS, migrationsFS)

	_, err := live.ExecContext(ctx, `CREATE TABLE users (id bigint PRIMARY KEY);`)
	require.NoError(t, err)

	report, err := validate.Validate(ctx, params)
	require.NoError(t, err)
	require.Len(t, report.UnappliedMigrations, 1)
	assert.Equal(t, uint64(1700000000), report.UnappliedMigrations[0])
}
