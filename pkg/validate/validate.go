// SPDX-License-Identifier: Apache-2.0

// Package validate implements the validator (spec §4.8): it classifies a
// schema directory, a live database, and a tracking store's recorded
// checksums into clean/pending/conflict, generalizing
// pkg/roll/status.go's binary in-progress/complete/none status into a
// three-way classification with a structured report.
package validate

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/diff"
	"github.com/pgmt-dev/pgmt/pkg/sandbox"
	"github.com/pgmt-dev/pgmt/pkg/state"
)

// Status is the three-way classification spec §4.8 describes.
type Status string

const (
	StatusClean    Status = "clean"
	StatusPending  Status = "pending"
	StatusConflict Status = "conflict"
)

// Exit codes per spec §6, "CLI surface".
const (
	ExitSuccess       = 0
	ExitDriftConflict = 2
)

// Conflict describes one checksum mismatch between a recorded migration
// and its on-disk file (spec §7, "ChecksumMismatch").
type Conflict struct {
	Version  uint64 `json:"version"`
	Reason   string `json:"reason"`
	Stored   string `json:"stored_checksum,omitempty"`
	Computed string `json:"computed_checksum,omitempty"`
}

// Report is validate's structured output (spec §6: "a structured JSON
// record with keys {status, exit_code, applied_migrations,
// unapplied_migrations, conflicts, suggested_actions, message}").
type Report struct {
	Status               Status     `json:"status"`
	ExitCode             int        `json:"exit_code"`
	AppliedMigrations    []uint64   `json:"applied_migrations"`
	UnappliedMigrations  []uint64   `json:"unapplied_migrations"`
	Conflicts            []Conflict `json:"conflicts"`
	SuggestedActions     []string   `json:"suggested_actions"`
	Message              string     `json:"message"`

	// Steps is the pending diff, omitted from JSON since it is not part of
	// spec §6's reporting contract but useful to callers that want to
	// print it in human mode.
	Steps []diff.Step `json:"-"`
}

// MigrationSource supplies the on-disk migration files to check for
// checksum drift. A thin interface so Validate does not need to know
// whether migrations live on a real filesystem or an embedded one.
type MigrationSource interface {
	// Migrations returns every migration file discovered, sorted by
	// version ascending.
	Migrations() ([]*state.Migration, error)
}

// dirSource implements MigrationSource over an fs.FS of V<version>__*.sql
// files.
type dirSource struct{ fsys fs.FS }

// NewDirSource returns a MigrationSource backed by an fs.FS whose entries
// follow spec §6's `V<version>__<description>.sql` naming convention.
func NewDirSource(fsys fs.FS) MigrationSource { return dirSource{fsys: fsys} }

func (d dirSource) Migrations() ([]*state.Migration, error) {
	entries, err := fs.ReadDir(d.fsys, ".")
	if err != nil {
		return nil, err
	}

	var out []*state.Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		contents, err := fs.ReadFile(d.fsys, e.Name())
		if err != nil {
			return nil, err
		}
		m, err := state.ParseMigration(e.Name(), contents)
		if err != nil {
			continue // not a migration file, e.g. a README
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Params bundles everything Validate needs to run the spec §4.8 algorithm.
type Params struct {
	// SchemaFS is the desired-state schema directory.
	SchemaFS fs.FS
	ApplyOpts sandbox.ApplyOptions

	// Sandbox is a blank database Validate shadow-applies SchemaFS to.
	Sandbox *sandbox.Sandbox

	// LiveDB is queried for the current, as-deployed catalog.
	LiveDB catalog.Querier
	Filter catalog.Filter

	// Store is the tracking store to check for drift and to read
	// applied/unapplied version sets from.
	Store *state.Store

	// Migrations supplies on-disk migration files for checksum comparison.
	Migrations MigrationSource

	DiffOptions diff.Options
}

// Validate implements spec §4.8's algorithm end to end: shadow-apply the
// desired schema, load the live catalog, diff the two, compare tracking
// checksums against on-disk migrations, and classify the result.
func Validate(ctx context.Context, p Params) (*Report, error) {
	aug, err := sandbox.ApplyDirectory(ctx, p.Sandbox, p.SchemaFS, p.ApplyOpts)
	if err != nil {
		return nil, fmt.Errorf("applying desired schema to shadow: %w", err)
	}
	desired, err := p.Sandbox.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading shadow catalog: %w", err)
	}
	desired = desired.MergeExtraDeps(aug)

	current, err := catalog.Load(ctx, p.LiveDB, p.Filter)
	if err != nil {
		return nil, fmt.Errorf("loading live catalog: %w", err)
	}

	result, err := diff.Diff(current, desired, p.DiffOptions)
	if err != nil {
		return nil, fmt.Errorf("diffing catalogs: %w", err)
	}

	applied, err := p.Store.AppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading tracking store: %w", err)
	}
	appliedByVersion := make(map[uint64]state.Record, len(applied))
	for _, r := range applied {
		appliedByVersion[r.Version] = r
	}

	var migrations []*state.Migration
	if p.Migrations != nil {
		migrations, err = p.Migrations.Migrations()
		if err != nil {
			return nil, fmt.Errorf("reading migrations: %w", err)
		}
	}

	report := &Report{Steps: result.Steps}
	var conflicts []Conflict
	var unapplied []uint64
	for _, m := range migrations {
		rec, ok := appliedByVersion[m.Version]
		if !ok {
			unapplied = append(unapplied, m.Version)
			continue
		}
		report.AppliedMigrations = append(report.AppliedMigrations, m.Version)
		if rec.Checksum != m.Checksum {
			conflicts = append(conflicts, Conflict{
				Version:  m.Version,
				Reason:   "on-disk migration file was edited after it was applied",
				Stored:   rec.Checksum,
				Computed: m.Checksum,
			})
		}
	}
	report.UnappliedMigrations = unapplied
	report.Conflicts = conflicts

	switch {
	case len(conflicts) > 0:
		report.Status = StatusConflict
		report.ExitCode = ExitDriftConflict
		report.Message = fmt.Sprintf("%d migration checksum(s) diverged from their on-disk files", len(conflicts))
		report.SuggestedActions = conflictActions(conflicts)
	case len(result.Steps) > 0:
		report.Status = StatusPending
		report.ExitCode = ExitSuccess
		report.Message = fmt.Sprintf("%d pending change(s) between the live database and the desired schema", len(result.Steps))
		report.SuggestedActions = []string{"run `pgmt migrate new <description>` to capture the pending changes as a migration"}
	default:
		report.Status = StatusClean
		report.ExitCode = ExitSuccess
		report.Message = "live database matches the desired schema; no drift detected"
	}

	return report, nil
}

func conflictActions(conflicts []Conflict) []string {
	actions := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		actions = append(actions, fmt.Sprintf("version %d: restore the original migration file or re-baseline if the edit was intentional", c.Version))
	}
	return actions
}
