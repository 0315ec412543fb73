// Package app wires tome's components together and runs the TUI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tome/internal/api"
	"tome/internal/cache"
	"tome/internal/config"
	"tome/internal/library"
	"tome/internal/logging"
	"tome/internal/session"
	"tome/internal/shelves"
	"tome/internal/ui"
)

const defaultPollInterval = time.Second

// Options configure the tome application.
type Options struct {
	ConfigPath string
	PollEvery  int // seconds; zero uses default
	Verbose    bool
}

// Run boots the tome TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogPath(), opts.Verbose)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Sync()

	client, err := api.NewClient(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	// The cache is best effort; a broken database file degrades to a
	// cold start instead of refusing to run.
	store, err := cache.Open(cfg.CachePath())
	if err != nil {
		logger.Warn("cache unavailable", zap.Error(err))
		store = nil
	} else {
		defer store.Close()
	}

	sessionStore := session.New(client, store, logger)
	client.SetCredentialSource(sessionStore)

	libraryStore := library.New(client, sessionStore, store, logger)
	shelfStore := shelves.New(client, sessionStore, store, logger)
	libraryStore.LoadCached()
	shelfStore.LoadCached()

	// Resolve the persisted session before the first frame so the UI
	// starts on the right view.
	sessionStore.CheckAuth(ctx)

	interval := defaultPollInterval
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}

	logger.Info("starting", zap.String("server", cfg.ServerURL))

	return ui.Run(ui.Options{
		Context:  ctx,
		Session:  sessionStore,
		Library:  libraryStore,
		Shelves:  shelfStore,
		LogPath:  cfg.LogPath(),
		PollTick: interval,
	})
}
