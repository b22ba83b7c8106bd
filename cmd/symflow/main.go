package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/symflow-ml/symflow/cmd/symflow/commands"
	"github.com/symflow-ml/symflow/internal/function"
)

// Version information (set via ldflags during build)
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	setupLogging()
	function.SetLogger(log.Logger)

	if err := commands.Execute(Version, Commit); err != nil {
		log.Error().Err(err).Msg("Command execution failed")
		os.Exit(1)
	}
}

// setupLogging configures zerolog for human-readable console output.
func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
