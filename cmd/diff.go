// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgmt-dev/pgmt/pkg/diff"
)

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show the pending changes between the live database and the desired schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			e, err := newEngine(ctx)
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

			if len(result.Steps) == 0 {
				fmt.Println("no pending changes")
				return nil
			}
			for _, s := range result.Steps {
				fmt.Println(s.SQL)
			}
			return nil
		},
	}
}
