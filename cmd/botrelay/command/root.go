package command

// root.go defines the root command and the settings shared by every subcommand.

import (
	"fmt"
	"log/slog"
	"os"

	"botrelay/internal/config"
	"botrelay/internal/logging"

	"github.com/spf13/cobra"
)

var (
	grpcAddress string   // overrides GRPC_ADDR
	protoPaths  []string // overrides PROTO_PATHS
	botID       string   // overrides BOT_ID

	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "botrelay",
	Short: "botrelay - smoke harness for the bot manager gRPC backend",
	Long: `botrelay loads the backend's .proto definitions at runtime and talks to it
over gRPC. It can:
- serve GET / as a JSON view of bot.Application/ListAll
- relay broadcast.BroadcastService/Subscribe messages to logs, Redis and websockets
- run either call once from the terminal

Settings come from the environment (or a .env file); flags override them.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&grpcAddress, "grpc-addr", "", "backend gRPC address (default from GRPC_ADDR)")
	rootCmd.PersistentFlags().StringSliceVar(&protoPaths, "proto", nil, "definition files to load (default from PROTO_PATHS)")
	rootCmd.PersistentFlags().StringVar(&botID, "bot-id", "", "bot ID sent with ListAll (default from BOT_ID)")
}

// loadSettings reads the config, applies flag overrides and sets up logging.
func loadSettings(cmd *cobra.Command, _ []string) error {
	loaded, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("grpc-addr") {
		loaded.GRPCAddr = grpcAddress
	}
	if flags.Changed("proto") {
		loaded.ProtoPaths = protoPaths
	}
	if flags.Changed("bot-id") {
		loaded.BotID = botID
	}

	if err := loaded.Validate(); err != nil {
		return err
	}

	cfg = loaded
	logger = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return nil
}
