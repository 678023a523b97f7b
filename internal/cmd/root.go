package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/integra/cdrwatch"
	"github.com/spf13/cobra"
)

func init() {
	cobra.EnableTraverseRunHooks = true
}

// NewRootCommand creates and returns the root cobra command for cdrwatch.
// Exported for testability (SetArgs/SetOut).
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "cdrwatch",
		Short:   "EDI CDR folder watcher",
		Long:    "cdrwatch watches a folder for partner CDR files and launches the EDI CDR processor when they arrive.",
		Version: Version,
		// Silence usage on RunE errors (cobra prints usage by default on error)
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Echo debug records to the console")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "Output format: text, json")
	rootCmd.PersistentFlags().StringP("config", "c", cdrwatch.DefaultConfigFile, "Path to the YAML config file")

	rootCmd.AddCommand(
		newRunCommand(),
		newInitCommand(),
		newDoctorCommand(),
		newPruneLogsCommand(),
		newVersionCommand(),
	)

	return rootCmd
}

// loadConfig reads the file named by --config. Config errors map to exit code 2.
func loadConfig(cmd *cobra.Command) (cdrwatch.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cdrwatch.LoadConfig(path)
	if err != nil {
		return cdrwatch.Config{}, &ExitError{Code: 2, Err: err}
	}
	return cfg, nil
}

// printBanner writes a boxed section title to w.
func printBanner(w io.Writer, title string) {
	const width = 46
	pad := max(width-len(title)-10, 0)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s╔%s╗%s\n", cdrwatch.ColorCyan, strings.Repeat("═", width), cdrwatch.ColorReset)
	fmt.Fprintf(w, "%s║          %s%s║%s\n", cdrwatch.ColorCyan, title, strings.Repeat(" ", pad), cdrwatch.ColorReset)
	fmt.Fprintf(w, "%s╚%s╝%s\n", cdrwatch.ColorCyan, strings.Repeat("═", width), cdrwatch.ColorReset)
	fmt.Fprintln(w)
}
