// Package log centralizes zerolog setup for corelens, the way the
// teacher repo's internal/log package wraps rs/zerolog for CLI output.
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. Console-formatted output
// is used for interactive/TTY use; set json=true for production
// deployments where logs are scraped by an aggregator.
func Init(json bool, level zerolog.Level) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	if json {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}
