// Trinity hosts sandboxed WebAssembly chat-bot modules against a
// Matrix room, routing admin commands, help requests, and ordinary
// messages to whichever module is loaded from the configured module
// directories, hot-reloading them as they change on disk.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/trinitybot/trinity/internal/config"
	"github.com/trinitybot/trinity/pkg/host"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("trinity starting...")

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer stop()

	h, err := host.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize host")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := h.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("error during shutdown")
		}
	}()

	if h.AdminHandler != nil && cfg.AdminAPI.Addr != "" {
		go serveAdminAPI(cfg.AdminAPI.Addr, h.AdminHandler)
	}

	log.Info().Msg("trinity is running")

	if err := h.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("transport failed")
	}

	log.Info().Msg("trinity shut down cleanly")
}
