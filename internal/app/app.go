package app

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/confsync/confsync/internal/config"
	"github.com/confsync/confsync/internal/prefs"
	"github.com/confsync/confsync/internal/remote"
	"github.com/confsync/confsync/internal/repository"
	"github.com/confsync/confsync/internal/scheduler"
)

// App is the application container (immutable dependencies + lifecycle context).
// It is not a request context; handlers and commands derive their own contexts.
type App struct {
	Config  *config.Config
	Store   prefs.Store
	Service remote.Service
	Repo    repository.Repository

	BaseCtx context.Context
	Cancel  context.CancelFunc
}

func New(cfg *config.Config, store prefs.Store, service remote.Service, repo repository.Repository) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("cache store is nil")
	}
	if service == nil {
		return nil, errors.New("remote service is nil")
	}
	if repo == nil {
		return nil, errors.New("repository is nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:  cfg,
		Store:   store,
		Service: service,
		Repo:    repo,
		BaseCtx: ctx,
		Cancel:  cancel,
	}, nil
}

// Shutdown cancels the base context and closes the cache store when the
// backend holds a file handle.
func (a *App) Shutdown() {
	if a == nil {
		return
	}
	if a.Cancel != nil {
		a.Cancel()
	}
	if closer, ok := a.Store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Printf("error closing cache store: %v", err)
		}
	}
}

// StartSync launches the background refresh loop on the app's lifecycle
// context and returns the scheduler for status inspection.
func (a *App) StartSync() *scheduler.SyncScheduler {
	s := scheduler.NewSyncScheduler(a.Repo, a.Config.Misc.SyncInterval)
	s.Start(a.BaseCtx)
	return s
}
