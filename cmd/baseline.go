// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pgmt-dev/pgmt/pkg/diff"
	"github.com/pgmt-dev/pgmt/pkg/state"
)

func baselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage baseline snapshots of the schema",
	}
	cmd.AddCommand(baselineCreateCmd())
	cmd.AddCommand(baselineListCmd())
	cmd.AddCommand(baselineCleanCmd())
	return cmd
}

func baselineCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <description>",
		Short: "Capture the desired schema as a baseline, recording it as already applied without executing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBaselineCreate(cmd.Context(), args[0])
		},
	}
}

func runBaselineCreate(ctx context.Context, description string) error {
	e, err := newEngineWithInitCheck(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	fmt.Println("Creating a baseline restarts the migration history at this point.")
	ok, _ := pterm.DefaultInteractiveConfirm.Show()
	if !ok {
		return nil
	}

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

	version := uint64(time.Now().Unix())
	contents := renderMigrationFile(result.Steps)
	checksum := state.Checksum([]byte(contents))

	if err := os.MkdirAll(e.cfg.Directories.BaselinesDir, 0o755); err != nil {
		return err
	}
	filename := fmt.Sprintf("V%d__%s.sql", version, description)
	path := filepath.Join(e.cfg.Directories.BaselinesDir, filename)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return err
	}

	if err := e.store.RecordBaseline(ctx, version, description, checksum); err != nil {
		return fmt.Errorf("recording baseline: %w", err)
	}

	fmt.Printf("baseline %q written, recorded as version %d without executing\n", path, version)
	return nil
}

func baselineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List baseline files under directories.baselines_dir",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			files, err := baselineFiles(e.cfg.Directories.BaselinesDir)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Println(f)
			}
			return nil
		},
	}
}

func baselineCleanCmd() *cobra.Command {
	var keep int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove all but the most recent --keep baseline files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			files, err := baselineFiles(e.cfg.Directories.BaselinesDir)
			if err != nil {
				return err
			}
			if keep >= len(files) {
				fmt.Println("nothing to remove")
				return nil
			}
			toRemove := files[:len(files)-keep]
			for _, f := range toRemove {
				path := filepath.Join(e.cfg.Directories.BaselinesDir, f)
				if dryRun {
					fmt.Printf("would remove %s\n", path)
					continue
				}
				if err := os.Remove(path); err != nil {
					return err
				}
				fmt.Printf("removed %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "number of most recent baseline files to keep")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be removed without removing it")
	return cmd
}

// baselineFiles lists V<version>__*.sql baseline files, sorted by version
// ascending so callers can keep the newest N by slicing from the end.
func baselineFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	type versioned struct {
		name    string
		version uint64
	}
	var files []versioned
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, _, err := state.ParseMigrationFilename(e.Name())
		if err != nil {
			continue
		}
		files = append(files, versioned{name: e.Name(), version: version})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.name
	}
	return out, nil
}
