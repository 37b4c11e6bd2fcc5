// SPDX-License-Identifier: Apache-2.0

package state_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgmt-dev/pgmt/internal/dbx"
	"github.com/pgmt-dev/pgmt/internal/testutils"
	"github.com/pgmt-dev/pgmt/pkg/state"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func newStore(t *testing.T) *state.Store {
	t.Helper()
	db, _ := testutils.NewDatabase(t)
	s, err := state.New(&dbx.RDB{DB: db}, "pgmt", "pgmt_migrations")
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestInitIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	require.NoError(t, s.Init(context.Background()))
}

func TestRecordAppliedAndLatestVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	_, ok, err := s.LatestVersion(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RecordApplied(ctx, 1700000000, "add users table", "deadbeef"))
	require.NoError(t, s.RecordApplied(ctx, 1700000100, "add orders table", "cafef00d"))

	latest, ok, err := s.LatestVersion(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1700000100), latest)

	records, err := s.AppliedVersions(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(1700000000), records[0].Version)
	assert.Equal(t, "deadbeef", records[0].Checksum)
}

func TestChecksumRoundTrips(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.RecordApplied(ctx, 1700000000, "add users table", "deadbeef"))

	got, err := s.Checksum(ctx, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", got)
}

func TestSectionsTrackPartialApply(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.RecordApplied(ctx, 1700000000, "add users table", "deadbeef"))

	done, err := s.AppliedSections(ctx, 1700000000)
	require.NoError(t, err)
	assert.Empty(t, done)

	require.NoError(t, s.RecordSection(ctx, 1700000000, "tables"))
	require.NoError(t, s.RecordSection(ctx, 1700000000, "tables")) // idempotent

	done, err = s.AppliedSections(ctx, 1700000000)
	require.NoError(t, err)
	assert.True(t, done["tables"])
	assert.False(t, done["indexes"])
}

func TestNewRejectsUnsafeIdentifiers(t *testing.T) {
	t.Parallel()

	db, _ := testutils.NewDatabase(t)
	_, err := state.New(&dbx.RDB{DB: db}, `public"; DROP TABLE users;--`, "pgmt_migrations")
	assert.Error(t, err)
}

func TestRecordBinaryVersionAndCompatibility(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.RecordBinaryVersion(ctx, "1.2.0"))

	compat, err := s.CheckCompatibility(ctx, "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, state.VersionCompatSchemaEqual, compat)

	compat, err = s.CheckCompatibility(ctx, "1.3.0")
	require.NoError(t, err)
	assert.Equal(t, state.VersionCompatSchemaOlder, compat)

	compat, err = s.CheckCompatibility(ctx, "1.1.0")
	require.NoError(t, err)
	assert.Equal(t, state.VersionCompatSchemaNewer, compat)
}

func TestCheckCompatibilitySkipsDevelopmentVersions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newStore(t)

	compat, err := s.CheckCompatibility(ctx, "development")
	require.NoError(t, err)
	assert.Equal(t, state.VersionCompatCheckSkipped, compat)
}
