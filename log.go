package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/datacache/internal/config"
	gap "github.com/muesli/go-app-paths"
)

func getLogFilePath(e config.Env) (string, error) {
	if e.LogFile != "" {
		return config.ExpandPath(e.LogFile), nil
	}

	dir, err := gap.NewScope(gap.User, "datacache").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "datacache.log"), nil
}

// setupLog sends warnings to stderr. With DATACACHE_DEBUG set, everything
// down to debug level goes to the log file instead.
func setupLog() (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
	log.SetReportTimestamp(false)

	e, err := config.ParseEnv()
	if err != nil {
		return nil, err
	}
	if !e.Debug {
		return func() error { return nil }, nil
	}

	logFile, err := getLogFilePath(e)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	log.SetOutput(f)
	log.SetLevel(log.DebugLevel)
	log.SetReportTimestamp(true)
	return f.Close, nil
}
