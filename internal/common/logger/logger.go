package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the process-wide logger. Output goes to stdout through a
// console writer; every line carries the app name and a timestamp.
func Init(app string, debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.TimeOnly,
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("%-5s", i))
		},
	}

	log.Logger = zerolog.New(console).
		Level(level).
		With().
		Timestamp().
		Str("app", app).
		Logger()

	log.Debug().Msg("debug logging enabled")
}

// The helpers mirror zerolog's package-level events so call sites need only
// this package.

func Debug() *zerolog.Event { return log.Debug() }

func Info() *zerolog.Event { return log.Info() }

func Warn() *zerolog.Event { return log.Warn() }

func Error() *zerolog.Event { return log.Error() }

func Fatal() *zerolog.Event { return log.Fatal() }
