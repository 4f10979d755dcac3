package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codelap/cmd/codelap/ui"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"tui", "ui"},
	Short:   "Start the interactive interface",
	Args:    cobra.NoArgs,
	RunE:    runInteractive,
}

// runInteractive starts the TUI. It has no overall deadline; each backend
// call is bounded by the client timeout instead.
func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	// The TUI restores the session itself so it can show the login page.
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Debug("Starting interactive interface", zap.String("api", a.API.BaseURL()))
	return ui.Run(ctx, a)
}
