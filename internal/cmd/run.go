package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/integra/cdrwatch"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run [folder]",
		Short: "Watch the source folder and launch the CDR processor",
		Long: `Start the folder watcher and block until interrupted.

Files already in the folder are queued first, then every newly created file
that matches SourceFileTypeFilter is queued as it arrives. The EDI CDR
executable is launched at most twice per run. On SIGINT/SIGTERM the watcher
is unsubscribed and the run ends after the item in flight completes.`,
		Example: `  # Watch the folder named in cdrwatch.yaml
  cdrwatch run

  # Watch a different folder with an explicit config
  cdrwatch run -c /etc/cdrwatch.yaml /data/zirmed/inbound`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatcher,
	}
}

func runWatcher(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	outputFmt, _ := cmd.Flags().GetString("output")

	if err := os.MkdirAll(cfg.LogPath, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logger := cdrwatch.NewLoggerWithConsole(cfg.LogPath, verbose, cmd.ErrOrStderr())

	shutdownTelemetry := cdrwatch.InitTelemetry("cdrwatch", Version)
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		shutdownTelemetry(shutdownCtx)
	}()

	// Use command's context (set by ExecuteContext in main)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var folder string
	if len(args) == 1 {
		folder = args[0]
	}

	svc := cdrwatch.NewService(cfg, logger)
	if err := svc.StartFolderWatcher(ctx, folder); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Shutdown requested.")

	if err := svc.StopFolderWatcher(); err != nil {
		return err
	}
	if err := svc.Wait(); err != nil {
		return err
	}

	status := svc.Status()
	if outputFmt == "json" {
		data, err := json.Marshal(status)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintln(cmd.ErrOrStderr(), renderTable(
		[]string{"Run", "Folder", "Launches", "Left queued", "Log file"},
		[][]string{{
			status.RunID,
			status.Folder,
			fmt.Sprintf("%d/%d", status.Calls, status.MaxCalls),
			strconv.Itoa(status.Queued),
			status.LogFile,
		}},
		2, 3,
	))
	return nil
}
