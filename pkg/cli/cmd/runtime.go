package cmd

import (
	"context"
	"fmt"

	"github.com/rzbill/dashgate/internal/config"
	"github.com/rzbill/dashgate/pkg/app"
	"github.com/rzbill/dashgate/pkg/log"
)

// runtime is what a command needs after the config is loaded.
type runtime struct {
	cfg    *config.Config
	logger log.Logger
	app    *app.App
}

// loadConfig reads the config file and applies the logging flags.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newRuntime loads the config and builds the App without touching the
// network.
func (o *rootOptions) newRuntime() (*runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := log.ApplyConfig(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	log.SetDefaultLogger(logger)
	if path := cfg.Path(); path != "" {
		logger.Debug("Using config file", log.Str("path", path))
	}

	a, err := app.New(cfg.AppOptions(logger)...)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, app: a}, nil
}

// startRuntime builds the App and runs its startup sequence.
func (o *rootOptions) startRuntime(ctx context.Context) (*runtime, error) {
	rt, err := o.newRuntime()
	if err != nil {
		return nil, err
	}
	if err := rt.app.Start(ctx); err != nil {
		return nil, err
	}
	return rt, nil
}

// adminRuntime starts the App and fails unless the principal is an admin.
func (o *rootOptions) adminRuntime(ctx context.Context) (*runtime, error) {
	rt, err := o.startRuntime(ctx)
	if err != nil {
		return nil, err
	}
	if err := rt.app.RequireAdmin(); err != nil {
		return nil, err
	}
	return rt, nil
}
