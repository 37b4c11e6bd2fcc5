// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalValidYAML = `
databases:
  dev_url: "postgres://localhost/app"
  shadow:
    auto: true
migration:
  default_mode: require-approval
schema:
  column_order: strict
`

func TestParseAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse("pgmt.yaml", []byte(minimalValidYAML))
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/app", cfg.Databases.DevURL)
	assert.Equal(t, "schema", cfg.Directories.SchemaDir)
	assert.Equal(t, "public", cfg.Migration.TrackingTable.Schema)
	assert.Equal(t, "pgmt_migrations", cfg.Migration.TrackingTable.Name)
	assert.True(t, cfg.Objects.Comments)
}

func TestParseOverridesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse("pgmt.yaml", []byte(`
databases:
  dev_url: "postgres://localhost/app"
  shadow:
    auto: false
    url: "postgres://localhost/shadow"
directories:
  schema_dir: db/schema
objects:
  comments: false
migration:
  default_mode: force
  tracking_table:
    schema: tracking
    name: applied_migrations
schema:
  column_order: relaxed
`))
	require.NoError(t, err)

	assert.Equal(t, "db/schema", cfg.Directories.SchemaDir)
	assert.False(t, cfg.Objects.Comments)
	assert.Equal(t, "tracking", cfg.Migration.TrackingTable.Schema)
	assert.Equal(t, "applied_migrations", cfg.Migration.TrackingTable.Name)
	assert.Equal(t, "relaxed", cfg.Schema.ColumnOrder)
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := Parse("pgmt.yaml", []byte("databases: [this is not a map"))
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseRejectsUnknownKey(t *testing.T) {
	t.Parallel()

	_, err := Parse("pgmt.yaml", []byte(`
databases:
  dev_url: "postgres://localhost/app"
totally_unknown_key: true
`))
	require.Error(t, err)
}

func TestParseRejectsMissingDevURL(t *testing.T) {
	t.Parallel()

	_, err := Parse("pgmt.yaml", []byte(`
databases:
  shadow:
    auto: true
`))
	require.Error(t, err)
}

func TestParseRejectsShadowWithoutURLOrAuto(t *testing.T) {
	t.Parallel()

	_, err := Parse("pgmt.yaml", []byte(`
databases:
  dev_url: "postgres://localhost/app"
  shadow:
    auto: false
`))
	require.Error(t, err)
	assert.ErrorContains(t, err, "databases.shadow.url")
}

func TestParseRejectsInvalidDefaultMode(t *testing.T) {
	t.Parallel()

	_, err := Parse("pgmt.yaml", []byte(`
databases:
  dev_url: "postgres://localhost/app"
  shadow:
    auto: true
migration:
  default_mode: yolo
`))
	require.Error(t, err)
}

func TestParseRejectsInvalidColumnOrder(t *testing.T) {
	t.Parallel()

	_, err := Parse("pgmt.yaml", []byte(`
databases:
  dev_url: "postgres://localhost/app"
  shadow:
    auto: true
schema:
  column_order: loose
`))
	require.Error(t, err)
}
