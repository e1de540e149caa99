package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/bbcoder/internal/config"
	"github.com/conneroisu/bbcoder/internal/server"
)

var watchCmd = &cobra.Command{
	Use:     "watch [TARGET]",
	Aliases: []string{"w"},
	Short:   "Rebuild targets whenever their documents change",
	Long: `Watch builds the selected targets, then watches the project directory
and the include search path. Every change rebuilds the targets that read the
changed document; editing the manifest reloads the project.

Examples:
  bbcoder watch                  # Watch the default target
  bbcoder watch _all             # Watch every target
  bbcoder watch --debounce 1s    # Wait longer for editors to settle`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("debounce", config.DefaultDebounce, "delay before a batch of changes is rebuilt")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{"debounce": "watch.debounce"}); err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	orchestrator, err := server.NewOrchestrator(s.dependencies(nil), targetArg(args))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orchestrator.Start(ctx); err != nil {
		return err
	}
	defer orchestrator.Stop()

	fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes... (Press Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Fprintln(cmd.OutOrStdout(), "Stopping file watcher...")

	return nil
}
