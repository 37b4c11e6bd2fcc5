// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgmt-dev/pgmt/pkg/depsfile"
)

func debugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "debug",
		Short:  "Low-level introspection commands",
		Hidden: true,
	}
	cmd.AddCommand(debugDependenciesCmd())
	return cmd
}

func debugDependenciesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "dependencies",
		Short: "Print the schema directory's file dependency graph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			fsys := os.DirFS(e.schemaDir())
			files, err := depsfile.Discover(fsys)
			if err != nil {
				return err
			}
			graph, err := depsfile.BuildFileGraph(files, func(path string) ([]byte, error) {
				return fs.ReadFile(fsys, path)
			})
			if err != nil {
				return err
			}

			ordered := graph.Files()
			if format == "json" {
				type entry struct {
					File     string   `json:"file"`
					Requires []string `json:"requires"`
				}
				entries := make([]entry, 0, len(ordered))
				for _, f := range ordered {
					entries = append(entries, entry{File: f, Requires: graph.Requires(f)})
				}
				out, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			for _, f := range ordered {
				fmt.Println(f)
				for _, r := range graph.Requires(f) {
					fmt.Printf("  requires %s\n", r)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: json or text")
	return cmd
}
