// SPDX-License-Identifier: Apache-2.0

package flags

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ConfigFile returns the path to pgmt's YAML configuration file.
func ConfigFile() string { return viper.GetString("CONFIG") }

// DevURL returns the live database URL override: the --dev-url flag,
// falling back to the DATABASE_URL environment variable (spec §6,
// "Environment"). Callers use the config file's databases.dev_url only
// when both are empty.
func DevURL() string {
	if v := viper.GetString("DEV_URL"); v != "" {
		return v
	}
	return os.Getenv("DATABASE_URL")
}

// RootFlags registers the persistent flags every pgmt subcommand shares.
func RootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", "pgmt.yaml", "Path to pgmt configuration file")
	cmd.PersistentFlags().String("dev-url", "", "Live database URL (overrides databases.dev_url)")

	viper.BindPFlag("CONFIG", cmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("DEV_URL", cmd.PersistentFlags().Lookup("dev-url"))
}
