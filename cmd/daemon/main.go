// Command daemon runs the prima2g resolver: a small HTTP service that
// turns channel keys and airtimes into playable Prima+ stream descriptors.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/pstastny/prima2g/internal/api"
	"github.com/pstastny/prima2g/internal/auth"
	"github.com/pstastny/prima2g/internal/config"
	"github.com/pstastny/prima2g/internal/epg"
	xlog "github.com/pstastny/prima2g/internal/log"
	"github.com/pstastny/prima2g/internal/prima"
	"github.com/pstastny/prima2g/internal/resolver"
	"github.com/pstastny/prima2g/internal/stream"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("prima2g %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg := config.Load()
	xlog.Configure(xlog.Config{Level: cfg.LogLevel, Service: "prima2g"})
	logger := xlog.WithComponent("daemon")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := prima.New(prima.Options{
		AuthBase:   cfg.AuthBase,
		APIBase:    cfg.APIBase,
		PlayBase:   cfg.PlayBase,
		Timeout:    cfg.Timeout,
		DeviceName: cfg.DeviceName,
	})
	store := auth.NewFileStore(cfg.DataDir)
	authClient := auth.New(client, store, auth.Static(cfg.Email, cfg.Password), cfg.TokenTTL)
	directory := epg.NewDirectory(authClient, client)
	search, err := epg.NewSearch(authClient, client, epg.SearchOptions{
		Timezone: cfg.EPGTimezone,
		Days:     cfg.CatchupDays,
		Pace:     cfg.EPGPace,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("EPG search setup failed")
	}
	negotiator := stream.NewNegotiator(client, authClient, cfg.RelayBase)
	res := resolver.New(authClient, directory, search, negotiator)

	server := api.New(res, api.Options{
		RateLimitEnabled: cfg.RateLimitEnabled,
		RateLimitRPM:     cfg.RateLimitRPM,
	})

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("listen", cfg.Listen).
			Bool("credentials_configured", cfg.Email != "" && cfg.Password != "").
			Msg("daemon started")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("daemon stopped")
}
