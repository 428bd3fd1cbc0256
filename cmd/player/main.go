// Command player runs the content-distribution and playback-orchestration
// core as a standalone process.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"playercore/internal/logging"
)

var version = "dev"

// loggerHolder defers logger construction until PersistentPreRunE has
// parsed --log-level/--log-format, while still letting subcommands
// registered at startup close over it.
type loggerHolder struct {
	logger  *slog.Logger
	handler *logging.ComponentFilterHandler
}

func main() {
	holder := &loggerHolder{}

	rootCmd := &cobra.Command{
		Use:   "player",
		Short: "Digital signage player core",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logFormat, _ := cmd.Flags().GetString("log-format")
			logLevelFlag, _ := cmd.Flags().GetString("log-level")

			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevelFlag)); err != nil {
				return fmt.Errorf("parse --log-level: %w", err)
			}

			var base slog.Handler
			switch logFormat {
			case "json":
				base = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
			case "text":
				base = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
			default:
				return fmt.Errorf("unknown --log-format %q: want text or json", logFormat)
			}

			holder.handler = logging.NewComponentFilterHandler(base, level)
			holder.logger = slog.New(holder.handler)
			return nil
		},
	}

	rootCmd.PersistentFlags().String("home", "", "home directory (default: platform config dir)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log output format: text or json")

	rootCmd.AddCommand(
		newRunCommand(holder),
		newCacheCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
