// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pgmt-dev/pgmt/internal/config"
	"github.com/pgmt-dev/pgmt/pkg/diff"
	"github.com/pgmt-dev/pgmt/pkg/plan"
)

func applyCmd() *cobra.Command {
	var dryRun, force, safeOnly bool
	var backfillValue string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the live database with the desired schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode := resolveApplyMode(dryRun, force, safeOnly)
			return runApply(cmd.Context(), mode, backfillValue)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without executing it")
	cmd.Flags().BoolVar(&force, "force", false, "execute the plan, allowing the NOT NULL backfill rewrite")
	cmd.Flags().BoolVar(&safeOnly, "safe-only", false, "execute the plan, refusing any step that requires a manual rewrite")
	cmd.Flags().StringVar(&backfillValue, "backfill-value", "", "SQL literal used to backfill a new NOT NULL column when --force is set")

	return cmd
}

func resolveApplyMode(dryRun, force, safeOnly bool) config.ApplyMode {
	switch {
	case dryRun:
		return config.ModeDryRun
	case force:
		return config.ModeForce
	case safeOnly:
		return config.ModeSafeOnly
	default:
		return ""
	}
}

func runApply(ctx context.Context, mode config.ApplyMode, backfillValue string) error {
	e, err := newEngineWithInitCheck(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if mode == "" {
		mode = config.ApplyMode(e.cfg.Migration.DefaultMode)
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
	if len(result.Steps) == 0 {
		fmt.Println("no pending changes")
		return nil
	}

	planOpts := plan.DefaultOptions()
	if mode == config.ModeForce {
		planOpts.AllowNotNullBackfill = true
		planOpts.NotNullBackfillValue = backfillValue
	}

	p, err := plan.Schedule(result.Steps, current, desired, planOpts)
	if err != nil {
		return err
	}

	if mode == config.ModeDryRun {
		for _, section := range p.Sections {
			fmt.Printf("-- section: %s\n", section.Name)
			for _, s := range section.Steps {
				fmt.Println(s.SQL)
			}
		}
		return nil
	}

	if mode == config.ModeRequireApproval || mode == config.ModeInteractive {
		fmt.Printf("%d step(s) across %d section(s) are about to be applied.\n", len(p.Steps()), len(p.Sections))
		ok, _ := pterm.DefaultInteractiveConfirm.Show()
		if !ok {
			return nil
		}
	}

	version := uint64(time.Now().Unix())
	description := fmt.Sprintf("apply %s", time.Now().UTC().Format(time.RFC3339))
	checksum := checksumSteps(p.Steps())

	for _, section := range p.Sections {
		sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("applying section %q...", section.Name)).Start()
		for _, s := range section.Steps {
			if _, err := e.db.ExecContext(ctx, s.SQL); err != nil {
				sp.Fail(fmt.Sprintf("section %q failed: %s", section.Name, err))
				return fmt.Errorf("applying %s: %w", s.Object.Key(), err)
			}
		}
		if err := e.store.RecordSection(ctx, version, section.Name); err != nil {
			sp.Fail(err.Error())
			return err
		}
		sp.Success(fmt.Sprintf("section %q applied", section.Name))
	}

	if err := e.store.RecordApplied(ctx, version, description, checksum); err != nil {
		return err
	}

	fmt.Printf("applied %d step(s) as version %d\n", len(p.Steps()), version)
	return nil
}

// checksumSteps hashes every step's rendered SQL in plan order, each
// followed by a NUL byte, giving an apply run a content-addressed
// checksum for its tracking row.
func checksumSteps(steps []diff.Step) string {
	h := sha256.New()
	for _, s := range steps {
		h.Write([]byte(s.SQL))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
