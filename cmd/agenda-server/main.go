package main

import (
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"agenda/backend/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "agenda-server",
		Short:         "Doctor appointment scheduling API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	var log zerolog.Logger
	if cfg.LogFormat == "console" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		log = zerolog.New(os.Stdout)
	}
	return log.Level(parseLogLevel(cfg.LogLevel)).With().
		Timestamp().
		Str("service", "agenda-server").
		Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// databaseFields describes the target database without leaking credentials.
func databaseFields(databaseURL string) map[string]any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return map[string]any{"db_url": "invalid"}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return map[string]any{
		"db_host": host,
		"db_port": port,
		"db_name": name,
	}
}
