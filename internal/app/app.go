// Package app holds the application container: immutable dependencies plus
// the lifecycle context everything shuts down with.
package app

import (
	"context"
	"errors"

	"github.com/oculairmedia/Bookstack-MCP/internal/bookstack"
	"github.com/oculairmedia/Bookstack-MCP/internal/config"
	"github.com/oculairmedia/Bookstack-MCP/internal/logger"
)

// App is the application container. It is not a request context; handlers
// still use their own request-scoped contexts.
type App struct {
	Config  *config.Config
	Service *bookstack.Service
	Cache   *bookstack.ListCache
	Metrics *bookstack.Metrics

	BaseCtx context.Context
	Cancel  context.CancelFunc
}

func New(cfg *config.Config, svc *bookstack.Service, cache *bookstack.ListCache, metrics *bookstack.Metrics) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if svc == nil {
		return nil, errors.New("service is nil")
	}
	if cache == nil {
		return nil, errors.New("cache is nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:  cfg,
		Service: svc,
		Cache:   cache,
		Metrics: metrics,
		BaseCtx: ctx,
		Cancel:  cancel,
	}, nil
}

func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
}

// StartConfigWatcher reloads the reloadable settings (log level) and clears
// the list cache when the config file changes. Connection settings require a
// restart; the watcher only picks up what is safe to swap live.
func (a *App) StartConfigWatcher(confPath string) {
	log := logger.WithComponent("app")

	path := config.ConfigFilePath(confPath)
	if path == "" {
		log.Debug("no config file in use, skipping config watcher")
		return
	}

	err := config.StartWatcher(a.BaseCtx, path, func() {
		cfg, err := config.LoadConfig(confPath)
		if err != nil {
			log.Warnf("config reload failed, keeping previous settings: %v", err)
			return
		}
		logger.SetLevel(cfg.Misc.LogLevel)
		a.Cache.InvalidateAll()
		log.Infof("configuration reloaded from %s", path)
	})
	if err != nil {
		log.Warnf("cannot start config watcher: %v", err)
	}
}
