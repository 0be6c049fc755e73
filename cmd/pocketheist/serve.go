package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pocketheist.org/internal/auth"
	"pocketheist.org/internal/config"
	"pocketheist.org/internal/docstore"
	"pocketheist.org/internal/migrate"
	"pocketheist.org/internal/obs"
	"pocketheist.org/internal/session"
	"pocketheist.org/internal/store/badgerstore"
	"pocketheist.org/internal/store/pg"
	"pocketheist.org/internal/web"
)

// backend bundles what a store driver provides.
type backend struct {
	docs     docstore.Store
	accounts auth.Accounts
	ready    web.ReadyProbe
	close    func() error
}

func openBackend(ctx context.Context, cfg config.Store, autoMigrate bool) (*backend, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		st, err := pg.Open(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if autoMigrate {
			applied, err := migrate.NewManager(st.DB(), migrate.Embedded()).Up(ctx)
			if err != nil {
				_ = st.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			for _, name := range applied {
				obs.Info("migration applied", map[string]any{"name": name})
			}
		}
		return &backend{
			docs:     st,
			accounts: auth.NewPGAccounts(st.DB()),
			ready:    web.ReadyProbe{Pinger: st},
			close:    st.Close,
		}, nil
	case config.DriverBadger:
		st, err := badgerstore.Open(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		return &backend{docs: st, accounts: st, close: st.Close}, nil
	default:
		return &backend{
			docs:     docstore.NewInMemory(),
			accounts: auth.NewInMemoryAccounts(),
			close:    func() error { return nil },
		}, nil
	}
}

func newServeCmd(load func() (config.Config, error)) *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "Apply pending migrations before serving (postgres only)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, autoMigrate bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	obs.Init()
	obs.InitBuildInfo(version, commit)

	be, err := openBackend(ctx, cfg.Store, autoMigrate)
	if err != nil {
		return err
	}
	defer func() { _ = be.close() }()

	tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}
	var persist auth.Persistence = &auth.MemoryPersistence{}
	if cfg.Auth.SessionFile != "" {
		persist = auth.FilePersistence{Path: cfg.Auth.SessionFile}
	}
	provider := auth.NewClient(be.accounts, tokens, auth.WithPersistence(persist))
	defer provider.Close()

	holder := session.NewHolder(provider)
	if err := holder.Start(); err != nil {
		return err
	}
	defer holder.Close()

	restoreCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = provider.Restore(restoreCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	srv, err := web.New(web.Deps{
		Holder:   holder,
		Provider: provider,
		Store:    be.docs,
		Ready:    be.ready,
		Version:  version,
	},
		web.WithRateLimit(cfg.HTTP.RateBurst, cfg.HTTP.RatePerSec),
		web.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		web.WithRosterWait(cfg.Heist.RosterWait),
	)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		obs.Info("starting pocketheist", map[string]any{"version": version, "addr": cfg.Addr, "store": cfg.Store.Driver})
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop, stopCancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopCancel()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-stop.Done():
	}

	obs.Info("shutting down", nil)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	obs.Info("stopped", nil)
	return nil
}
