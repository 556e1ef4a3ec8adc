// Package app provides the shared entry point for the replyloop binary.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/replyloop/replyloop/internal/config"
	"github.com/replyloop/replyloop/internal/core"
	"github.com/replyloop/replyloop/internal/secrets"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run loads configuration, starts all modules and the scheduler, and
// blocks until a shutdown signal is received.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	// Wrap the text handler in a redacting handler so credentials loaded
	// by modules never reach the log output.
	redactor := secrets.NewRedactor()
	innerHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	})
	logger := slog.New(secrets.NewRedactingHandler(innerHandler, redactor))

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	appCtx := core.NewAppContext(logger, dataDir)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	// Register the config path and redactor so modules can discover them.
	appCtx.RegisterService("config.path", cfgPath)
	appCtx.RegisterService("secrets.redactor", redactor)

	application := core.NewApp(appCtx)
	ids := cfg.ModuleIDs()
	if err := application.LoadModules(ids); err != nil {
		return err
	}

	// Wire the scheduler between LoadModules and Start: discover the
	// provider, source and stores registered during Provision, build the
	// automation services, and append the scheduler to the app lifecycle.
	if err := wireScheduler(application, appCtx, cfg, logger); err != nil {
		return err
	}

	if err := application.Start(); err != nil {
		return err
	}

	logger.Info("replyloop started",
		"version", params.Version,
		"config", cfgPath,
		"jobs", len(cfg.Jobs),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())
	application.Stop()
	logger.Info("shutdown complete")
	return nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/replyloop/replyloop.yaml →
// ~/.config/replyloop/replyloop.yaml → ./replyloop.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "replyloop", "replyloop.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "replyloop", "replyloop.yaml"))
	}

	candidates = append(candidates, "replyloop.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/replyloop if set, otherwise ~/.local/share/replyloop
// per the XDG spec.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "replyloop")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "replyloop")
}
