// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates pgmt's YAML configuration file (spec
// §6, "Configuration"), generalizing cmd/root.go's viper wiring from a
// handful of persistent flags to the full nested key table spec.md
// defines.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Config is the root of pgmt's configuration file (spec §6).
type Config struct {
	Databases  Databases  `json:"databases"`
	Directories Directories `json:"directories"`
	Objects    Objects    `json:"objects"`
	Migration  Migration  `json:"migration"`
	Schema     SchemaOpts `json:"schema"`
}

// Databases configures the live and shadow database connections.
type Databases struct {
	DevURL string       `json:"dev_url"`
	Shadow ShadowConfig `json:"shadow"`
}

// ShadowConfig configures the shadow/sandbox database (spec §6,
// "databases.shadow.*").
type ShadowConfig struct {
	Auto   bool         `json:"auto"`
	URL    string       `json:"url,omitempty"`
	Docker DockerConfig `json:"docker,omitempty"`
}

// DockerConfig configures an auto-provisioned shadow container (spec §6,
// "databases.shadow.docker.*").
type DockerConfig struct {
	Image         string            `json:"image,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	ContainerName string            `json:"container_name,omitempty"`
	AutoCleanup   bool              `json:"auto_cleanup,omitempty"`
	Volumes       []string          `json:"volumes,omitempty"`
	Network       string            `json:"network,omitempty"`
}

// Directories configures where pgmt looks for schema files, migration
// files, and baselines (spec §6, "directories.*").
type Directories struct {
	SchemaDir    string `json:"schema_dir"`
	MigrationsDir string `json:"migrations_dir"`
	BaselinesDir string `json:"baselines_dir"`
	RolesFile    string `json:"roles_file,omitempty"`
}

// Objects configures the catalog loader's inclusion/exclusion filter and
// which ambient object kinds are managed declaratively (spec §6,
// "objects.*").
type Objects struct {
	Include ObjectFilter `json:"include,omitempty"`
	Exclude ObjectFilter `json:"exclude,omitempty"`

	Comments   bool `json:"comments"`
	Grants     bool `json:"grants"`
	Triggers   bool `json:"triggers"`
	Extensions bool `json:"extensions"`
}

// ObjectFilter is a schema/table allow- or deny-list.
type ObjectFilter struct {
	Schemas []string `json:"schemas,omitempty"`
	Tables  []string `json:"tables,omitempty"`
}

// Migration configures the tracking table location and default apply mode
// (spec §6, "migration.*").
type Migration struct {
	TrackingTable             TrackingTable `json:"tracking_table"`
	DefaultMode               string        `json:"default_mode"`
	ValidateBaselineConsistency bool        `json:"validate_baseline_consistency"`
}

// TrackingTable locates the tracking table (spec §6,
// "migration.tracking_table.{schema,name}").
type TrackingTable struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// SchemaOpts configures differ behavior (spec §6, "schema.column_order").
type SchemaOpts struct {
	ColumnOrder string `json:"column_order"`
}

// ApplyMode is the enum of spec §6's `migration.default_mode`.
type ApplyMode string

const (
	ModeDryRun          ApplyMode = "dry-run"
	ModeForce           ApplyMode = "force"
	ModeSafeOnly        ApplyMode = "safe-only"
	ModeRequireApproval ApplyMode = "require-approval"
	ModeInteractive     ApplyMode = "interactive"
)

// Default returns a Config with every field spec.md leaves optional
// populated with a sane default, overridable by the loaded YAML.
func Default() Config {
	return Config{
		Databases: Databases{
			Shadow: ShadowConfig{Docker: DockerConfig{Image: "postgres:16-alpine", AutoCleanup: true}},
		},
		Directories: Directories{
			SchemaDir:     "schema",
			MigrationsDir: "migrations",
			BaselinesDir:  "baselines",
		},
		Objects: Objects{
			Comments:   true,
			Grants:     true,
			Triggers:   true,
			Extensions: true,
		},
		Migration: Migration{
			TrackingTable: TrackingTable{Schema: "public", Name: "pgmt_migrations"},
			DefaultMode:   string(ModeRequireApproval),
		},
		Schema: SchemaOpts{ColumnOrder: "strict"},
	}
}

// ConfigError wraps a configuration problem (spec §7, "ConfigError":
// "invalid YAML, missing required fields, invalid identifier for tracking
// table").
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Path, e.Reason)
}

// Load reads path, unmarshals it over Default(), validates it against the
// embedded JSON schema (schema.go) and the semantic rules validateSemantics checks,
// and returns the merged Config.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ConfigError{Path: path, Reason: err.Error()}
	}
	return Parse(path, raw)
}

// Parse is Load's testable core: given already-read YAML bytes, validate
// and unmarshal them.
func Parse(path string, raw []byte) (Config, error) {
	asJSON, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return Config{}, &ConfigError{Path: path, Reason: fmt.Sprintf("invalid YAML: %v", err)}
	}

	if err := ValidateSchema(asJSON); err != nil {
		return Config{}, &ConfigError{Path: path, Reason: err.Error()}
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, &ConfigError{Path: path, Reason: err.Error()}
	}

	if err := validateSemantics(cfg); err != nil {
		return Config{}, &ConfigError{Path: path, Reason: err.Error()}
	}

	return cfg, nil
}

func validateSemantics(cfg Config) error {
	if cfg.Databases.DevURL == "" {
		return fmt.Errorf("databases.dev_url is required")
	}
	if !cfg.Databases.Shadow.Auto && cfg.Databases.Shadow.URL == "" {
		return fmt.Errorf("databases.shadow.url is required when databases.shadow.auto is false")
	}
	switch ApplyMode(cfg.Migration.DefaultMode) {
	case ModeDryRun, ModeForce, ModeSafeOnly, ModeRequireApproval, ModeInteractive:
	default:
		return fmt.Errorf("migration.default_mode %q is not one of dry-run/force/safe-only/require-approval/interactive", cfg.Migration.DefaultMode)
	}
	if cfg.Schema.ColumnOrder != "strict" && cfg.Schema.ColumnOrder != "relaxed" {
		return fmt.Errorf("schema.column_order %q is not one of strict/relaxed", cfg.Schema.ColumnOrder)
	}
	return nil
}
