package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/integra/cdrwatch"
	"github.com/spf13/cobra"
)

func newPruneLogsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune-logs",
		Short: "Prune old day-stamped watcher logs",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			return nil
		},
		RunE: runPruneLogs,
	}

	cmd.Flags().Int("days", 30, "Number of days threshold")
	cmd.Flags().Bool("execute", false, "Execute deletion (dry-run by default)")
	cmd.Flags().String("log-dir", "", "Log directory (defaults to LOGPath from the config)")

	return cmd
}

func runPruneLogs(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")
	execute, _ := cmd.Flags().GetBool("execute")
	outputFmt, _ := cmd.Flags().GetString("output")
	logDir, _ := cmd.Flags().GetString("log-dir")

	if logDir == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logDir = cfg.LogPath
	}

	result, err := cdrwatch.PruneLogs(logDir, days, execute)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	if outputFmt == "json" {
		out := struct {
			Candidates int      `json:"candidates"`
			Deleted    int      `json:"deleted"`
			Files      []string `json:"files"`
		}{
			Candidates: len(result.Candidates),
			Deleted:    result.Deleted,
			Files:      result.Candidates,
		}
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		if execute && result.Deleted < len(result.Candidates) {
			return fmt.Errorf("%d file(s) could not be deleted", len(result.Candidates)-result.Deleted)
		}
		return nil
	}

	// text output
	if len(result.Candidates) == 0 {
		fmt.Fprintln(w, "No logs older than", days, "days.")
		return nil
	}

	if execute {
		fmt.Fprintf(w, "Deleted %d file(s):\n", result.Deleted)
	} else {
		fmt.Fprintf(w, "Logs older than %d days (%d file(s), dry-run):\n", days, len(result.Candidates))
	}
	for _, f := range result.Candidates {
		fmt.Fprintln(w, "  "+f)
	}
	if !execute {
		fmt.Fprintln(w, "\nRun with --execute to delete.")
	}

	if execute && result.Deleted < len(result.Candidates) {
		failed := len(result.Candidates) - result.Deleted
		return fmt.Errorf("%d file(s) could not be deleted (permission denied or locked)", failed)
	}
	return nil
}
