// main is the entry point of the srvdash service.
// It wires the record store, the journal, the fleet, the monitor and the HTTP server together.
package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srvdash/internal/alerts"
	"github.com/woozymasta/srvdash/internal/config"
	"github.com/woozymasta/srvdash/internal/fleet"
	"github.com/woozymasta/srvdash/internal/geoip"
	"github.com/woozymasta/srvdash/internal/logger"
	"github.com/woozymasta/srvdash/internal/maintenance"
	"github.com/woozymasta/srvdash/internal/monitor"
	"github.com/woozymasta/srvdash/internal/server"
	"github.com/woozymasta/srvdash/internal/sheet"
	"github.com/woozymasta/srvdash/internal/storage"
)

func main() {
	cfg := config.Parse()

	closeLog := logger.Setup(cfg.Logger)
	defer func() { _ = closeLog() }()

	log.Info().Msg("Starting srvdash service...")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// Record store
	records, err := sheet.Open(cfg.Sheet.Path, sheet.Options{
		Rand:   rng,
		Sheet:  cfg.Sheet.Name,
		Backup: !cfg.Sheet.NoBackup,
	})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Sheet.Path).Msg("Failed to open record store")
	}

	// Journal, optional. Interfaces stay nil when it is disabled.
	var (
		repo    *storage.Repository
		sink    alerts.Sink
		history server.HistoryReader
		journal monitor.Journal
		pruner  maintenance.Pruner
	)
	if cfg.Journal.Path != "" {
		repo, err = storage.New(cfg.Journal.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize journal")
		}
		defer func() {
			if err := repo.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing journal")
			}
		}()
		sink, history, journal, pruner = repo, repo, repo, repo
	}

	feed := alerts.New(alerts.DefaultLimit, sink)
	if repo != nil {
		recent, err := repo.RecentAlerts(alerts.DefaultLimit)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to restore alerts")
		}
		feed.Restore(recent)
	}

	// GeoIP, optional
	var locator fleet.Locator
	if cfg.GeoIP.Path != "" {
		log.Info().Msg("Checking GeoIP database...")
		if err := geoip.EnsureDB(context.Background(), cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}

		geoProvider, err := geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		} else {
			defer func() {
				if err := geoProvider.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
			locator = geoProvider
		}
	}

	servers, err := fleet.New(records, feed, fleet.Options{
		Rand:       rng,
		Locator:    locator,
		RestartMin: cfg.Monitor.RestartMin,
		RestartMax: cfg.Monitor.RestartMax,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load server table")
	}

	// Record store checks, journal cleanup or data generation
	done, err := maintenance.Run(cfg, maintenance.Deps{
		Sheet:   records,
		Journal: pruner,
		Fleet:   servers,
		Out:     os.Stdout,
	})
	if done {
		servers.Close()
		if err != nil {
			log.Error().Err(err).Msg("Maintenance task failed")
			os.Exit(1)
		}
		return
	}

	log.Info().
		Str("path", records.Path()).
		Int("servers", len(servers.List())).
		Msg("Server table loaded")

	// Init server
	srvHandler := server.New(servers, history, server.Options{
		AuthToken:      cfg.Server.AuthToken,
		MaxBodySize:    cfg.Server.MaxBodySize,
		TrustProxy:     cfg.Server.TrustProxy,
		HardLimitCount: cfg.RateLimit.HardLimitCount,
		HardLimitWin:   cfg.RateLimit.HardLimitWin,
	})

	// Background routines
	srvHandler.StartWorkers()

	ctx, stop := context.WithCancel(context.Background())
	monitorDone := make(chan struct{})
	if cfg.Monitor.Disable {
		close(monitorDone)
		log.Info().Msg("Monitor disabled")
	} else {
		mon := monitor.New(servers, journal, monitor.Options{
			Interval:     cfg.Monitor.Interval,
			ErrorBackoff: cfg.Monitor.ErrorBackoff,
			Retention:    cfg.Journal.Retention,
		})
		go func() {
			defer close(monitorDone)
			if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Monitor stopped")
			}
		}()
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srvHandler.Run(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop polling first so no tick races the final save
	stop()
	<-monitorDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Cancel pending restarts and disconnect websocket clients
	srvHandler.StopWorkers()
	servers.Close()

	if err := servers.Persist(true); err != nil {
		log.Error().Err(err).Msg("Final save failed")
	}

	log.Info().Msg("Server exited")
}
