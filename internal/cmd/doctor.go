package cmd

import (
	"fmt"

	"github.com/integra/cdrwatch"
	"github.com/spf13/cobra"
)

func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the configured environment",
		Long: `Check that the environment described by the config file is usable.

Verifies: the EDI CDR executable resolves, the source folder exists,
the log directory is writable and the file filter is a valid pattern.`,
		Example: `  # Check the default config
  cdrwatch doctor

  # Machine-readable output
  cdrwatch doctor -o json`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	outputFmt, _ := cmd.Flags().GetString("output")
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	checks := cdrwatch.RunDoctor(cfg)

	allRequired := true
	for _, c := range checks {
		if c.Required && !c.OK {
			allRequired = false
			break
		}
	}

	if outputFmt == "json" {
		out, err := cdrwatch.FormatDoctorJSON(checks)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		if !allRequired {
			return fmt.Errorf("some required checks failed")
		}
		return nil
	}

	// text output
	w := cmd.ErrOrStderr()
	printBanner(w, "cdrwatch doctor")

	for _, c := range checks {
		if c.OK {
			fmt.Fprintf(w, "  %s✓%s  %-14s %s (%s)\n", cdrwatch.ColorGreen, cdrwatch.ColorReset, c.Name, c.Detail, c.Path)
			continue
		}
		color := cdrwatch.ColorRed
		label := "FAILED (required)"
		if !c.Required {
			label = "not available (optional)"
			color = cdrwatch.ColorYellow
		}
		fmt.Fprintf(w, "  %s✗%s  %-14s %s: %s\n", color, cdrwatch.ColorReset, c.Name, label, c.Detail)
	}
	fmt.Fprintln(w)

	if !allRequired {
		return fmt.Errorf("some required checks failed. Fix the config and try again")
	}
	fmt.Fprintln(w, "All checks passed.")
	return nil
}
