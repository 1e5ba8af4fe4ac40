package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"botrelay/internal/app"
	"botrelay/internal/microservices/http-api/dto"
	"botrelay/internal/microservices/rpc"
	"botrelay/internal/protodef"

	"github.com/spf13/cobra"
)

var (
	listJSON    bool
	listTimeout time.Duration
)

// listCmd issues one ListAll call
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Call bot.Application/ListAll once",
	Long:  `Send one ListAll request for the configured bot ID and print the bots, or the same JSON envelope GET / returns with --json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), listTimeout)
		defer cancel()

		catalog, err := protodef.Load(ctx, cfg.ProtoPaths, app.LoaderOptions(cfg))
		if err != nil {
			return fmt.Errorf("load definitions: %w", err)
		}

		client, err := rpc.NewBotClient(catalog, cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to create gRPC client: %w", err)
		}
		defer client.Close()

		start := time.Now()
		reply, err := client.ListAll(ctx, cfg.BotID)
		if err != nil {
			if listJSON {
				if encErr := printJSON(cmd, dto.NewErrorResponse(rpc.AsCallError(err).CodeName())); encErr != nil {
					return errors.Join(err, encErr)
				}
			}
			return err
		}

		if listJSON {
			data, err := reply.Data()
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.ListAllResponse{Success: true, Time: time.Since(start).Milliseconds(), Data: data})
		}

		bots := reply.Bots()
		if len(bots) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No bots.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tENGINE\tSTARTED")
		for _, b := range bots {
			started := "-"
			if b.StartedAt > 0 {
				started = time.UnixMilli(b.StartedAt).UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Status, b.Engine, started)
		}
		return w.Flush()
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print the HTTP envelope instead of a table")
	listCmd.Flags().DurationVar(&listTimeout, "timeout", 10*time.Second, "deadline for the call")
	rootCmd.AddCommand(listCmd)
}
