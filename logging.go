package iocfixture

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLogger returns a no-op logger, or a console logger on stderr when
// IOCFIXTURE_DEBUG is set. "trace" in IOCFIXTURE_DEBUG also logs every line
// the IOC prints.
func DefaultLogger() zerolog.Logger {
	level := os.Getenv(EnvDebug)
	if level == "" {
		return zerolog.Nop()
	}

	lvl := zerolog.DebugLevel
	if level == "trace" {
		lvl = zerolog.TraceLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().
		Timestamp().
		Str("component", "iocfixture").
		Logger()
}
