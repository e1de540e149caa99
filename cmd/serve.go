package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/bbcoder/internal/config"
	"github.com/conneroisu/bbcoder/internal/server"
	"github.com/conneroisu/bbcoder/internal/websocket"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve [TARGET]",
	Aliases: []string{"s"},
	Short:   "Preview targets in the browser with live reload",
	Long: `Serve watches and rebuilds like "bbcoder watch" and serves the results
over HTTP. Preview pages reload when their target is rebuilt.

Routes:
  /                 target index
  /preview/NAME     HTML preview of a target
  /targets/NAME     raw BBCode of a target
  /api/status       build status as JSON
  /ws               live reload WebSocket

Examples:
  bbcoder serve                          # Serve the default target on localhost:8080
  bbcoder serve _all --port 3000         # Serve every target on port 3000`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", config.DefaultHost, "Host to bind to")
	serveCmd.Flags().Int("port", config.DefaultPort, "Port to serve on")
	serveCmd.Flags().Duration("debounce", config.DefaultDebounce, "delay before a batch of changes is rebuilt")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"host":     "server.host",
		"port":     "server.port",
		"debounce": "watch.debounce",
	}); err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	wsManager := websocket.NewManager(websocket.Options{}, s.logger)
	orchestrator, err := server.NewOrchestrator(s.dependencies(wsManager), targetArg(args))
	if err != nil {
		_ = wsManager.Shutdown(context.Background())
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orchestrator.Start(ctx); err != nil {
		_ = wsManager.Shutdown(context.Background())
		return err
	}
	defer orchestrator.Stop()

	srv := server.New(server.Options{Host: s.cfg.Server.Host, Port: s.cfg.Server.Port}, orchestrator, wsManager, s.logger)
	addr, err := srv.Listen()
	if err != nil {
		_ = wsManager.Shutdown(context.Background())
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving previews at http://%s/ (Press Ctrl+C to stop)\n", addr)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve()
	}()

	select {
	case err := <-serveErr:
		_ = wsManager.Shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
