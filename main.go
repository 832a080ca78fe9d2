package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fieldrow/companyfix/cmd"
	"github.com/fieldrow/companyfix/internal/conf"
	"github.com/fieldrow/companyfix/internal/logging"
	"github.com/fieldrow/companyfix/internal/telemetry"
)

var version = "dev"

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)

	if err := telemetry.Init(settings, version); err != nil {
		// Telemetry is best-effort, a broken DSN must not block repairs.
		logging.Warn("telemetry initialization failed", "error", err)
	}
	defer telemetry.Flush(2 * time.Second)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		logging.Error("command failed", "error", err)
		os.Exit(1)
	}
}
