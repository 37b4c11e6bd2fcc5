// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgmt-dev/pgmt/pkg/diff"
	"github.com/pgmt-dev/pgmt/pkg/state"
	"github.com/pgmt-dev/pgmt/pkg/validate"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Capture and inspect pending schema changes as versioned migration files",
	}
	cmd.AddCommand(migrateNewCmd())
	cmd.AddCommand(migrateValidateCmd())
	cmd.AddCommand(migrateStatusCmd())
	return cmd
}

func migrateNewCmd() *cobra.Command {
	var createBaseline bool

	cmd := &cobra.Command{
		Use:   "new <description>",
		Short: "Write the pending diff between the live database and the desired schema to a migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateNew(cmd.Context(), args[0], createBaseline)
		},
	}
	cmd.Flags().BoolVar(&createBaseline, "create-baseline", false, "record the migration as already applied instead of executing it")
	return cmd
}

func runMigrateNew(ctx context.Context, description string, createBaseline bool) error {
	e, err := newEngineWithInitCheck(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	current, err := e.currentCatalog(ctx)
	if err != nil {
		return err
	}

	desired, sb, err := e.desiredCatalog(ctx)
	if err != nil {
		return err
	}
	defer sb.Close(ctx)

	result, err := diff.Diff(current, desired, e.diffOptions())
	if err != nil {
		return err
	}
	if len(result.Steps) == 0 && !createBaseline {
		fmt.Println("no pending changes, nothing to capture")
		return nil
	}

	version := uint64(time.Now().Unix())
	contents := renderMigrationFile(result.Steps)
	checksum := state.Checksum([]byte(contents))

	if err := os.MkdirAll(e.cfg.Directories.MigrationsDir, 0o755); err != nil {
		return err
	}
	filename := fmt.Sprintf("V%d__%s.sql", version, description)
	path := filepath.Join(e.cfg.Directories.MigrationsDir, filename)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return err
	}

	if createBaseline {
		if err := e.store.RecordBaseline(ctx, version, description, checksum); err != nil {
			return err
		}
		fmt.Printf("baseline %q written, recorded as version %d without executing\n", path, version)
		return nil
	}

	fmt.Printf("migration %q written, capturing %d step(s) as version %d\n", path, len(result.Steps), version)
	return nil
}

// renderMigrationFile joins steps into a migration file body, section
// markers separating the planner's phases (spec §6, "-- @section: NAME").
func renderMigrationFile(steps []diff.Step) string {
	var b []byte
	for _, s := range steps {
		b = append(b, []byte(fmt.Sprintf("-- @section: %s\n%s\n\n", string(s.Action), s.SQL))...)
	}
	return string(b)
}

func migrateValidateCmd() *cobra.Command {
	var format string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Classify the live database against the desired schema and tracking history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := runMigrateValidate(cmd.Context())
			if err != nil {
				return err
			}
			printValidateReport(report, format, quiet)
			if report.ExitCode != 0 {
				os.Exit(report.ExitCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "human", "output format: json or human")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "in human format, print only the status line")
	return cmd
}

func runMigrateValidate(ctx context.Context) (*validate.Report, error) {
	e, err := newEngineWithInitCheck(ctx)
	if err != nil {
		return nil, err
	}
	defer e.Close()

	sb, err := e.Sandbox(ctx)
	if err != nil {
		return nil, err
	}
	defer sb.Close(ctx)

	return validate.Validate(ctx, validate.Params{
		SchemaFS:    os.DirFS(e.schemaDir()),
		ApplyOpts:   e.applyOptions(),
		Sandbox:     sb,
		LiveDB:      e.db,
		Filter:      e.filter,
		Store:       e.store,
		Migrations:  validate.NewDirSource(os.DirFS(e.cfg.Directories.MigrationsDir)),
		DiffOptions: e.diffOptions(),
	})
}

func printValidateReport(report *validate.Report, format string, quiet bool) {
	if format == "json" {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Printf("status: %s\n", report.Status)
	if quiet {
		return
	}
	fmt.Println(report.Message)
	for _, s := range report.Steps {
		fmt.Println(s.SQL)
	}
	for _, c := range report.Conflicts {
		fmt.Printf("conflict: version %d: %s\n", c.Version, c.Reason)
	}
	for _, a := range report.SuggestedActions {
		fmt.Printf("suggested action: %s\n", a)
	}
}

func migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the latest applied migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := newEngineWithInitCheck(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			applied, err := e.store.AppliedVersions(ctx)
			if err != nil {
				return err
			}
			sort.Slice(applied, func(i, j int) bool { return applied[i].Version < applied[j].Version })

			type statusLine struct {
				LatestVersion uint64         `json:"latest_version"`
				Count         int            `json:"applied_count"`
				Migrations    []state.Record `json:"migrations"`
			}
			var latest uint64
			if len(applied) > 0 {
				latest = applied[len(applied)-1].Version
			}

			out, err := json.MarshalIndent(statusLine{LatestVersion: latest, Count: len(applied), Migrations: applied}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
