package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	corelog "github.com/marketpulse/corelens/internal/log"
)

var (
	logJSON  bool
	logLevel string
)

// Execute builds and runs the corelens root command.
func Execute(ctx context.Context, defaultLevel zerolog.Level) error {
	root := &cobra.Command{
		Use:   "corelens",
		Short: "Multi-module market-structure analysis core",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := defaultLevel
			if logLevel != "" {
				parsed, err := zerolog.ParseLevel(logLevel)
				if err != nil {
					return err
				}
				level = parsed
			}
			corelog.Init(logJSON, level)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit structured JSON logs instead of console output")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug|info|warn|error)")

	root.AddCommand(runCmd(ctx))
	root.AddCommand(tickCmd(ctx))
	root.AddCommand(healthCmd(ctx))

	log.Debug().Msg("corelens cli initialized")
	return root.ExecuteContext(ctx)
}
