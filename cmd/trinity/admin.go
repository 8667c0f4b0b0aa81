package main

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// serveAdminAPI runs the read-only admin HTTP surface until the
// process exits. A failure here is logged but never fatal: the admin
// API is introspection, not the bot's actual job.
func serveAdminAPI(addr string, handler http.Handler) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("admin api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn().Err(err).Msg("admin api server failed")
	}
}
