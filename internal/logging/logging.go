// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level picks the global level: debug when verbose, error when silent,
// info otherwise. Silent wins over verbose.
func Level(verbose, silent bool) zerolog.Level {
	switch {
	case silent:
		return zerolog.ErrorLevel
	case verbose:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup routes the global logger to a console writer on w and returns it.
func Setup(w io.Writer, verbose, silent bool) zerolog.Logger {
	zerolog.SetGlobalLevel(Level(verbose, silent))
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	})
	return log.Logger
}
