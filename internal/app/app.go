package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"

	"marketsync/internal/retention"
	"marketsync/pkg/chat"
	"marketsync/pkg/config"
	"marketsync/pkg/models"
	"marketsync/pkg/notify"
	"marketsync/pkg/store"
	"marketsync/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg       *config.Config
	addr      string
	dbPath    string
	source    string
	version   string
	commit    string
	buildDate string

	svc *chat.Service
	eng *notify.Engine

	srv *http.Server
}

// New initializes resources that do not require a running context (store,
// runtime keys, validation rules, the chat service and the watermark
// engine). It does not start the scheduler or the HTTP server; call Run to
// start those and block until shutdown.
func New(cfg *config.Config, addr, dbPath, source, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	// validate effective config early and fail fast
	if err := validateConfig(cfg, dbPath); err != nil {
		return nil, err
	}

	config.SetRuntime(config.BuildRuntime(cfg))
	validation.SetRules(validation.Rules{MaxBodyLen: cfg.Chat.MaxBodyLen})

	if err := store.Open(dbPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dbPath, err)
	}

	svc := chat.NewService(cfg.EditWindow(), buildDirectory(cfg))
	eng := notify.NewEngine(cfg.Notify.Collections)
	// the message collection is always served from the store, regardless of
	// what else the config registers
	eng.Register("messages", store.CountMessagesTo)

	a := &App{
		cfg:       cfg,
		addr:      addr,
		dbPath:    dbPath,
		source:    source,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		svc:       svc,
		eng:       eng,
	}
	return a, nil
}

// Service exposes the chat service, mainly for admin triggers and tests.
func (a *App) Service() *chat.Service { return a.svc }

// Engine exposes the watermark engine.
func (a *App) Engine() *notify.Engine { return a.eng }

// Run starts the retention scheduler and the HTTP server, then blocks until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	stopRetention, err := retention.Start(ctx, a.cfg, a.dbPath)
	if err != nil {
		return err
	}
	defer stopRetention()

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdownHTTP()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Close releases resources owned by the app (currently the store).
func (a *App) Close() error {
	return store.Close()
}

// buildDirectory turns the static directory section of the config into a
// chat.Directory. An empty section yields a nil directory, which resolves
// every participant to an empty counterpart list.
func buildDirectory(cfg *config.Config) chat.Directory {
	if len(cfg.Directory) == 0 {
		return nil
	}
	entries := make([]chat.StaticEntry, 0, len(cfg.Directory))
	for _, e := range cfg.Directory {
		se := chat.StaticEntry{ID: e.ID, Role: models.Role(e.Role)}
		for _, c := range e.Counterparts {
			se.Counterparts = append(se.Counterparts, models.Participant{ID: c.ID, Role: models.Role(c.Role)})
		}
		entries = append(entries, se)
	}
	return chat.NewStaticDirectory(entries)
}
