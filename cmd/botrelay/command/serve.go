package command

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"botrelay/internal/app"

	"github.com/spf13/cobra"
)

// serveCmd runs the harness until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP front and the broadcast relay",
	Long: `Load the definitions, open the broadcast subscription and serve GET / on
HTTP_HOST:HTTP_PORT. The bound address is printed as "Live at http://<addr>".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		relay, err := app.New(ctx, cfg, logger, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if err := relay.Listen(); err != nil {
			relay.Close()
			return err
		}

		err = relay.Serve(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
