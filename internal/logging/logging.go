package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dyike/MarketPulse/config"
)

// Setup configures the global zerolog logger from cfg and returns it.
// Output is a console writer on stderr so it never interleaves with the
// rendered dashboard on stdout.
func Setup(cfg config.Config) zerolog.Logger {
	return SetupWriter(cfg, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func SetupWriter(cfg config.Config, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := Level(cfg)
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// Level resolves the configured level. Debug forces debug; unknown names fall
// back to info.
func Level(cfg config.Config) zerolog.Level {
	if cfg.Debug {
		return zerolog.DebugLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
