package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/charmforge/charmforge/cmd/charmforge/commands"
)

// Set via ldflags at release build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(logLevel(os.Getenv("LOG_LEVEL")))

	// An interrupt cancels the context so watch mode unwinds cleanly instead
	// of dying mid-compose.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		log.Error().Err(err).Msg("charmforge failed")
		os.Exit(1)
	}
}

// logLevel maps the LOG_LEVEL environment variable to a zerolog level,
// defaulting to info. The -v flag can still lower it to debug afterwards.
func logLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
