// SPDX-License-Identifier: Apache-2.0

package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMigrationFilename(t *testing.T) {
	t.Parallel()

	version, description, err := ParseMigrationFilename("V1700000000__add_users_table.sql")
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), version)
	assert.Equal(t, "add_users_table", description)
}

func TestParseMigrationFilenameRejectsBadFormat(t *testing.T) {
	t.Parallel()

	for _, name := range []string{
		"add_users_table.sql",
		"V__add_users_table.sql",
		"V1700000000_add_users_table.sql",
		"V1700000000__add_users_table.psql",
	} {
		_, _, err := ParseMigrationFilename(name)
		assert.Errorf(t, err, "expected %q to be rejected", name)
	}
}

func TestParseMigrationFilenameRejectsOverlongDescription(t *testing.T) {
	t.Parallel()

	name := "V1__" + strings.Repeat("x", maxDescriptionLength+1) + ".sql"
	_, _, err := ParseMigrationFilename(name)
	assert.Error(t, err)
}

func TestParseMigrationSplitsSections(t *testing.T) {
	t.Parallel()

	contents := []byte(`-- @section: tables
CREATE TABLE users (id bigint);
-- @section: indexes
CREATE INDEX users_id_idx ON users (id);
`)
	m, err := ParseMigration("V1700000000__init.sql", contents)
	require.NoError(t, err)
	require.Len(t, m.Sections, 2)
	assert.Equal(t, "tables", m.Sections[0].Name)
	assert.Contains(t, m.Sections[0].SQL, "CREATE TABLE users")
	assert.Equal(t, "indexes", m.Sections[1].Name)
	assert.Contains(t, m.Sections[1].SQL, "CREATE INDEX")
}

func TestParseMigrationWithoutSectionMarkersIsOneSection(t *testing.T) {
	t.Parallel()

	m, err := ParseMigration("V1__init.sql", []byte("CREATE TABLE t (id int);"))
	require.NoError(t, err)
	require.Len(t, m.Sections, 1)
	assert.Empty(t, m.Sections[0].Name)
}

func TestChecksumIsStableAndContentAddressed(t *testing.T) {
	t.Parallel()

	a := Checksum([]byte("CREATE TABLE t (id int);"))
	b := Checksum([]byte("CREATE TABLE t (id int);"))
	c := Checksum([]byte("CREATE TABLE t (id bigint);"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
