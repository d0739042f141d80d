package cli

import (
	"context"
	"os/signal"
	"syscall"

	"task-tracker/backend/internal/server"

	"github.com/spf13/cobra"
)

func serveCmd(rt *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE:  rt.runServe,
	}
}

func (rt *rootOptions) runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.Bootstrap(ctx, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(ctx)
}
