package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build information, set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Show the cdrwatch version, commit and build date set at build time via ldflags.",
		Example: `  # Show version
  cdrwatch version

  # Machine-readable
  cdrwatch version --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				data, err := json.Marshal(map[string]string{
					"version": Version,
					"commit":  Commit,
					"date":    Date,
					"go":      runtime.Version(),
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cdrwatch %s (commit: %s, date: %s, go: %s)\n",
				Version, Commit, Date, runtime.Version())
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output version information as JSON")
	return cmd
}
