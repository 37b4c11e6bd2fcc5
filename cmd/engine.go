// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pgmt-dev/pgmt/cmd/flags"
	"github.com/pgmt-dev/pgmt/internal/config"
	"github.com/pgmt-dev/pgmt/internal/connstr"
	"github.com/pgmt-dev/pgmt/internal/dbx"
	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/diff"
	"github.com/pgmt-dev/pgmt/pkg/sandbox"
	"github.com/pgmt-dev/pgmt/pkg/state"
)

// errNotInitialized is returned by commands that require a tracking store
// that Init has not yet been run against.
var errNotInitialized = errors.New("pgmt is not initialized, run 'pgmt init' first")

// engine bundles the live database connection, tracking store, and
// object filter every subcommand needs, generalizing cmd/root.go's
// NewRoll constructor from a single Postgres connection to pgmt's wider
// configuration surface.
type engine struct {
	cfg    config.Config
	db     *dbx.RDB
	store  *state.Store
	filter catalog.Filter
}

// newEngine loads the configuration file, connects to the live database
// (honoring --dev-url/DATABASE_URL overrides), and constructs the
// tracking store, without requiring it to already be initialized.
func newEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.Load(flags.ConfigFile())
	if err != nil {
		return nil, err
	}

	devURL := flags.DevURL()
	if devURL == "" {
		devURL = cfg.Databases.DevURL
	}

	// When the object filter is scoped to a single schema, default
	// unqualified SQL in schema/migration files to resolve against it.
	if schemas := cfg.Objects.Include.Schemas; len(schemas) == 1 {
		withPath, err := connstr.AppendSearchPathOption(devURL, schemas[0])
		if err != nil {
			return nil, err
		}
		devURL = withPath
	}

	conn, err := dbx.ConnectWithRetry(ctx, devURL, 0, 0)
	if err != nil {
		return nil, err
	}
	db := &dbx.RDB{DB: conn}

	st, err := state.New(db, cfg.Migration.TrackingTable.Schema, cfg.Migration.TrackingTable.Name)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &engine{cfg: cfg, db: db, store: st, filter: filterFromConfig(cfg)}, nil
}

// newEngineWithInitCheck is newEngine plus a guard that the tracking table
// exists and can be queried, i.e. that `pgmt init` has run.
func newEngineWithInitCheck(ctx context.Context) (*engine, error) {
	e, err := newEngine(ctx)
	if err != nil {
		return nil, err
	}
	if _, _, err := e.store.LatestVersion(ctx); err != nil {
		e.Close()
		return nil, fmt.Errorf("%w: %s", errNotInitialized, err)
	}
	return e, nil
}

func (e *engine) Close() error { return e.db.Close() }

// Sandbox provisions or connects to the shadow database per
// databases.shadow.*, ready for sandbox.ApplyDirectory (which attaches
// the schema filesystem itself).
func (e *engine) Sandbox(ctx context.Context) (*sandbox.Sandbox, error) {
	shadow := e.cfg.Databases.Shadow
	if shadow.Auto {
		return sandbox.Provision(ctx, sandbox.DockerOptions{
			Image:         shadow.Docker.Image,
			Env:           shadow.Docker.Env,
			ContainerName: shadow.Docker.ContainerName,
			Network:       shadow.Docker.Network,
			Volumes:       shadow.Docker.Volumes,
			AutoCleanup:   shadow.Docker.AutoCleanup,
		})
	}
	return sandbox.Connect(ctx, shadow.URL)
}

func filterFromConfig(cfg config.Config) catalog.Filter {
	f := catalog.DefaultFilter()
	f.IncludeSchemas = cfg.Objects.Include.Schemas
	f.IncludeTables = cfg.Objects.Include.Tables
	f.ExcludeSchemas = cfg.Objects.Exclude.Schemas
	f.ExcludeTables = cfg.Objects.Exclude.Tables
	f.Comments = cfg.Objects.Comments
	f.Grants = cfg.Objects.Grants
	f.Triggers = cfg.Objects.Triggers
	f.Extensions = cfg.Objects.Extensions
	f.TrackingSchema = cfg.Migration.TrackingTable.Schema
	f.TrackingTable = cfg.Migration.TrackingTable.Name
	return f
}

// schemaDir returns the on-disk schema directory path, the
// directories.schema_dir config key.
func (e *engine) schemaDir() string { return e.cfg.Directories.SchemaDir }

// currentCatalog loads the live database's catalog under e.filter.
func (e *engine) currentCatalog(ctx context.Context) (*catalog.Catalog, error) {
	return catalog.Load(ctx, e.db, e.filter)
}

// desiredCatalog provisions a shadow database, applies directories.schema_dir
// to it, and loads the resulting catalog (spec §4.6, §4.8). The caller owns
// the returned sandbox and must Close it.
func (e *engine) desiredCatalog(ctx context.Context) (*catalog.Catalog, *sandbox.Sandbox, error) {
	sb, err := e.Sandbox(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("provisioning shadow database: %w", err)
	}

	aug, err := sandbox.ApplyDirectory(ctx, sb, os.DirFS(e.schemaDir()), e.applyOptions())
	if err != nil {
		sb.Close(ctx)
		return nil, nil, err
	}

	cat, err := sb.Catalog(ctx)
	if err != nil {
		sb.Close(ctx)
		return nil, nil, err
	}
	return cat.MergeExtraDeps(aug), sb, nil
}

func (e *engine) applyOptions() sandbox.ApplyOptions {
	return sandbox.ApplyOptions{RolesFile: e.cfg.Directories.RolesFile}
}

// diffOptions translates schema.column_order into diff.Options.
func (e *engine) diffOptions() diff.Options {
	opts := diff.DefaultOptions()
	if e.cfg.Schema.ColumnOrder == "relaxed" {
		opts.ColumnOrder = diff.ColumnOrderRelaxed
	}
	return opts
}
