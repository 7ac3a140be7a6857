package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"katalog/internal/config"
	"katalog/internal/db"
	"katalog/internal/httpapi"
	"katalog/internal/network"
	"katalog/internal/service"
	"katalog/internal/storage"
	"katalog/internal/telegram"
)

func newServeCommand(conf func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API (and the Telegram bot when a token is set)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), conf())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	repo, err := db.Open(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer repo.Close()

	opts := []service.Option{service.WithRepository(repo)}
	if cfg.CoverDir != "" {
		client, err := network.NewClient(cfg.SocksProxy, network.DefaultTimeout)
		if err != nil {
			return err
		}
		opts = append(opts, service.WithCoverMirror(storage.NewCoverStore(cfg.CoverDir, client)))
		log.Printf("covers: mirrored to %s", cfg.CoverDir)
	}
	scraper, err := newScraper(cfg, opts...)
	if err != nil {
		return err
	}

	auth := httpapi.NewAdminAuth(cfg.TelegramToken, cfg.AdminIDs)
	api := httpapi.New(scraper,
		httpapi.WithBooks(repo),
		httpapi.WithAuth(auth),
		httpapi.WithCoverDir(cfg.CoverDir),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, scraper, cfg.AdminIDs)
		if err != nil {
			return err
		}
		go bot.Start(ctx)
	} else {
		log.Printf("telegram: no token, bot and admin auth disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("http: listening on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("http: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
