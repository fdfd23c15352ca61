package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"onthecheap/internal/app/claims"
	"onthecheap/internal/app/favorites"
	"onthecheap/internal/app/search"
	"onthecheap/internal/app/users"
	"onthecheap/internal/app/venues"
	"onthecheap/internal/auth"
	"onthecheap/internal/http/middleware"
	"onthecheap/internal/httpapi"
	"onthecheap/internal/seed"
	"onthecheap/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		runMigrations, _ := cmd.Flags().GetBool("migrate")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withDatabase(ctx, func(db *sql.DB) error {
			if runMigrations {
				if err := store.Migrate(db, "up"); err != nil {
					return err
				}
			}
			return serve(ctx, db)
		})
	},
}

func init() {
	serveCmd.Flags().Bool("migrate", true, "Apply pending schema migrations before serving")
}

func serve(ctx context.Context, db *sql.DB) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st := store.New(db)
	if cfg.SeedOnStart {
		if _, err := seed.Apply(ctx, st); err != nil {
			return err
		}
	}

	registry, closeProviders, err := buildProviders(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProviders()

	pub, closePublisher := buildPublisher(cfg)
	defer closePublisher()

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	timeout := cfg.Providers.Timeout

	api := httpapi.New(
		users.New(st, issuer),
		venues.New(st, registry, pub, loc, timeout),
		search.New(st, registry, search.Options{ProviderTimeout: timeout, Location: loc}),
		favorites.New(st, registry, timeout),
		claims.New(st, registry, pub, timeout),
		issuer,
	)

	handler := middleware.Chain(api.Routes(),
		middleware.Recovery(),
		middleware.RequestLogging(),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", Version).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("shutdown complete")
	return nil
}
