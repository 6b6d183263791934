package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openmined/fimsync/internal/config"
	"github.com/openmined/fimsync/internal/controlplane"
	"github.com/openmined/fimsync/internal/fimstore"
	"github.com/openmined/fimsync/internal/integrity"
	"github.com/openmined/fimsync/internal/transport"
	"github.com/openmined/fimsync/internal/utils"
)

// Agent owns the monitored entry store and runs every component that
// reads or writes it.
type Agent struct {
	config  *config.Config
	journal *fimstore.Journal
	store   *fimstore.Store
	scanner *fimstore.Scanner
	client  *transport.Client
	engine  *integrity.Engine
	cps     *controlplane.Server
}

func New(cfg *config.Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	filter, err := fimstore.NewPathFilter(cfg.Ignore, cfg.Restrict)
	if err != nil {
		return nil, fmt.Errorf("path filter: %w", err)
	}

	a := &Agent{
		config:  cfg,
		journal: fimstore.NewJournal(cfg.StorePath),
		store:   fimstore.NewStore(),
	}
	a.scanner = fimstore.NewScanner(a.store, cfg.Directories,
		fimstore.WithJournal(a.journal),
		fimstore.WithFilter(filter),
	)

	a.client, err = transport.NewClient(transport.Config{
		ServerURL: cfg.ServerURL,
		Token:     cfg.Token,
		AgentID:   cfg.AgentID,
	}, a.onPayload)
	if err != nil {
		return nil, err
	}

	a.engine = integrity.NewEngine(a.store, a.client, cfg.Sync())

	if cfg.ControlAddr != "" {
		a.cps, err = controlplane.New(&controlplane.Config{
			Addr:      cfg.ControlAddr,
			AuthToken: cfg.ControlToken,
			AgentID:   cfg.AgentID,
		}, a.engine, a.client, a.store)
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Start blocks until ctx is cancelled or a component fails
func (a *Agent) Start(ctx context.Context) error {
	slog.Info("agent start",
		"id", a.config.AgentID,
		"server", a.config.ServerURL,
		"token", utils.MaskSecret(a.config.Token),
		"dirs", a.config.Directories,
		"store", a.config.StorePath,
	)

	if err := a.journal.Open(); err != nil {
		return err
	}
	defer a.journal.Close()

	if err := loadStore(a.journal, a.store); err != nil {
		return err
	}

	if _, err := a.scanner.Scan(ctx); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return a.engine.Run(egCtx)
	})

	eg.Go(func() error {
		return a.client.Run(egCtx)
	})

	eg.Go(func() error {
		return a.periodicScan(egCtx)
	})

	if a.config.Realtime {
		watcher := fimstore.NewWatcher(a.config.Directories, a.onChange)
		if err := watcher.Start(egCtx); err != nil {
			slog.Warn("realtime monitoring unavailable", "error", err)
		} else {
			eg.Go(func() error {
				<-egCtx.Done()
				watcher.Stop()
				return nil
			})
		}
	}

	if a.cps != nil {
		eg.Go(func() error {
			if err := a.cps.Start(egCtx); err != nil {
				return fmt.Errorf("failed to start control plane: %w", err)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("agent failure", "error", err)
		return err
	}

	slog.Info("agent stopped")
	return nil
}

// onPayload feeds manager commands to the sync engine
func (a *Agent) onPayload(ctx context.Context, payload string) {
	if err := a.engine.PushContext(ctx, payload); err != nil {
		slog.Warn("sync command dropped", "error", err)
	}
}

// onChange rescans one path reported by the watcher
func (a *Agent) onChange(path string) {
	change, err := a.scanner.ScanPath(path)
	if err != nil {
		slog.Warn("realtime rescan", "path", path, "error", err)
		return
	}
	if change != fimstore.ChangeNone && change != fimstore.ChangeSkipped {
		slog.Info("file changed", "path", path, "change", change)
	}
}

func (a *Agent) periodicScan(ctx context.Context) error {
	ticker := time.NewTicker(a.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := a.scanner.Scan(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("periodic scan", "error", err)
			}
		}
	}
}

func loadStore(journal *fimstore.Journal, store *fimstore.Store) error {
	entries, err := journal.Load()
	if err != nil {
		return fmt.Errorf("load journal: %w", err)
	}
	store.Load(entries)
	slog.Info("store loaded", "entries", len(entries))
	return nil
}
