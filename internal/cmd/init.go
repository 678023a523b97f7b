package cmd

import (
	"github.com/integra/cdrwatch"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [config-path]",
		Short: "Create a config file interactively",
		Long: `Prompt for the watcher settings and write them as YAML.

The file is written to the given path, or to the --config path when
no argument is given. An existing file is never overwritten.`,
		Example: `  # Create cdrwatch.yaml in the current directory
  cdrwatch init

  # Create a config elsewhere, then run with it
  cdrwatch init /etc/cdrwatch.yaml && cdrwatch run -c /etc/cdrwatch.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if len(args) == 1 {
		path = args[0]
	}

	w := cmd.ErrOrStderr()
	printBanner(w, "cdrwatch init")

	return cdrwatch.RunInitWithReader(path, cmd.InOrStdin(), w)
}
