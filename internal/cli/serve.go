package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/inventory-dashboard/internal/config"
	httpapi "github.com/fairyhunter13/inventory-dashboard/internal/http"
	"github.com/fairyhunter13/inventory-dashboard/internal/obs"
	"github.com/fairyhunter13/inventory-dashboard/internal/reconcile"
	"github.com/fairyhunter13/inventory-dashboard/internal/session"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var bootstrap bool
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the dashboard HTTP server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, bootstrap)
		},
	}
	cmd.Flags().BoolVar(&bootstrap, "bootstrap", true, "create the seed user and seed an absent collection before serving")
	return cmd
}

// buildApp wires the dashboard for cfg and optionally provisions it.
func buildApp(ctx context.Context, cfg config.Config, bootstrap bool) (*httpapi.App, error) {
	b := newBackend(cfg)
	if bootstrap {
		if err := b.provisioner.Bootstrap(ctx, seedCredentials(cfg)); err != nil {
			return nil, err
		}
	}
	gate := session.NewGate(b.connector, cfg.LoginTimeout)
	return httpapi.NewApp(cfg, gate, reconcile.New(), b.provisioner)
}

func runServe(ctx context.Context, cfg config.Config, bootstrap bool) error {
	obs.InitLogger()
	obs.Logger.Info("service_starting", "backend", cfg.StoreBackend, "database", cfg.Database, "collection", cfg.Collection)

	app, err := buildApp(ctx, cfg, bootstrap)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			obs.Logger.Error("http_server_error", "error", err)
			return err
		}
	case <-ctx.Done():
		obs.Logger.Info("shutdown_signal")
	}

	app.StartShutdown()
	ctxSrv, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	if app.Gate.Authenticated() {
		if err := app.Gate.Logout(ctxSrv); err != nil {
			obs.Logger.Warn("logout_on_shutdown_failed", "error", err)
		}
	}
	obs.Logger.Info("service_stopped")
	return nil
}
