// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgmt-dev/pgmt/cmd/flags"
)

// Version is the pgmt version, set by the build, and recorded into the
// tracking schema by `pgmt init`.
var Version = "development"

func init() {
	viper.SetEnvPrefix("PGMT")
	viper.AutomaticEnv()

	flags.RootFlags(rootCmd)
}

var rootCmd = &cobra.Command{
	Use:          "pgmt",
	Short:        "Declarative Postgres schema migrations",
	SilenceUsage: true,
	Version:      Version,
}

// Execute runs the root command.
func Execute() error {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(applyCmd())
	rootCmd.AddCommand(diffCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(baselineCmd())
	rootCmd.AddCommand(debugCmd())

	return rootCmd.Execute()
}
