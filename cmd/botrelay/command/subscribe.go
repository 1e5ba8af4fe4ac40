package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"botrelay/internal/app"
	"botrelay/internal/microservices/broadcast"
	"botrelay/internal/microservices/rpc"
	"botrelay/internal/protodef"

	"github.com/spf13/cobra"
)

// subscribeCmd prints the broadcast stream
var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Print broadcast.BroadcastService/Subscribe messages",
	Long:  `Open the broadcast subscription and print each message until the stream ends, fails, or is interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		catalog, err := protodef.Load(ctx, cfg.ProtoPaths, app.LoaderOptions(cfg))
		if err != nil {
			return fmt.Errorf("load definitions: %w", err)
		}

		client, err := rpc.NewBroadcastClient(catalog, cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to create gRPC client: %w", err)
		}
		defer client.Close()

		consumer := broadcast.NewConsumer(
			broadcast.ClientSource(client),
			printSink{w: cmd.OutOrStdout()},
			broadcast.WithLogger(logger),
			broadcast.WithReconnect(broadcast.ReconnectPolicy{
				Enabled:     cfg.ReconnectEnabled,
				BaseDelay:   cfg.ReconnectBaseDelay,
				MaxDelay:    cfg.ReconnectMaxDelay,
				MaxAttempts: cfg.ReconnectMaxAttempts,
			}),
		)

		err = consumer.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// printSink writes the stream to the terminal.
type printSink struct {
	w io.Writer
}

func (p printSink) Received(_ context.Context, msg *rpc.BroadcastMessage) {
	fmt.Fprintln(p.w, msg.Text)
}

func (p printSink) Ended(context.Context) {
	fmt.Fprintln(p.w, "-- stream ended")
}

func (p printSink) Errored(_ context.Context, err error) {
	callErr := rpc.AsCallError(err)
	fmt.Fprintf(p.w, "-- stream error: %s: %s\n", callErr.CodeName(), callErr.Message)
}

func init() {
	rootCmd.AddCommand(subscribeCmd)
}
