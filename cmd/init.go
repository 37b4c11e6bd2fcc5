// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the tracking schema pgmt uses to record applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			sp, _ := pterm.DefaultSpinner.WithText("initializing tracking store...").Start()
			if err := e.store.Init(cmd.Context()); err != nil {
				sp.Fail(fmt.Sprintf("failed to initialize: %s", err))
				return err
			}
			if err := e.store.RecordBinaryVersion(cmd.Context(), Version); err != nil {
				sp.Fail(fmt.Sprintf("failed to record binary version: %s", err))
				return err
			}

			sp.Success("tracking store initialized")
			return nil
		},
	}
}
