// main is the entry point of the craftping service.
// It initializes the configuration, logger, query service, history storage and GeoIP provider,
// and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/config"
	"github.com/woozymasta/craftping/internal/fake"
	"github.com/woozymasta/craftping/internal/geoip"
	"github.com/woozymasta/craftping/internal/java"
	"github.com/woozymasta/craftping/internal/logger"
	"github.com/woozymasta/craftping/internal/maintenance"
	"github.com/woozymasta/craftping/internal/query"
	"github.com/woozymasta/craftping/internal/resolver"
	"github.com/woozymasta/craftping/internal/server"
	"github.com/woozymasta/craftping/internal/storage"
	"github.com/woozymasta/craftping/internal/vars"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)
	log.Info().Str("version", vars.Version).Msg("Starting craftping service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Query core
	javaClient := java.NewClient()
	javaClient.ProtocolVersion = cfg.Query.ProtocolVersion

	// Resolved addresses and SRV targets are checked as well as the requested host
	var deny func(resolver.Address) bool
	if len(cfg.Server.DenyHosts) > 0 {
		deny = query.NewDenyList(cfg.Server.DenyHosts).Address
	}

	svc := query.New(query.Options{
		Java:        javaClient,
		Deny:        deny,
		Timeout:     cfg.Query.Timeout,
		MaxTimeout:  cfg.Query.MaxTimeout,
		SRV:         !cfg.Query.NoSRV,
		Nameservers: cfg.Query.Nameservers,
	})

	// Database
	var store *storage.Repository
	if !cfg.Storage.Disable {
		var err error
		store, err = storage.New(ctx, cfg.Storage.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing database")
			}
		}()
	} else if cfg.Maintenance() {
		log.Fatal().Msg("Maintenance tasks require the history database")
	}

	// Data generation or database maintenance
	if store != nil {
		if cfg.Storage.GenerateCount > 0 {
			fake.GenerateData(ctx, store, cfg.Storage.GenerateCount)
			return
		}
		if maintenance.Run(ctx, cfg, store, svc) {
			return
		}
	}

	// GeoIP
	var geo *geoip.Provider
	if store != nil && !cfg.GeoIP.Disable {
		geo = openGeoIP(ctx, cfg.GeoIP)
		if geo != nil {
			defer func() {
				if err := geo.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
			go geoip.Watch(ctx, geo, cfg.GeoIP.URL, cfg.GeoIP.Interval)
		}
	}

	// Init server
	srv := server.New(svc, historyStore(store), geoTagger(geo), cfg)
	srv.StartWorkers()

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Query.MaxTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Query.MaxTimeout+time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop workers (wait queue done)
	srv.StopWorkers()

	log.Info().Msg("Server exited")
}

// openGeoIP makes sure the country database is present and opens it, nil disables tagging.
func openGeoIP(ctx context.Context, cfg config.GeoIP) *geoip.Provider {
	log.Info().Msg("Checking GeoIP database")
	if _, err := geoip.EnsureDB(ctx, cfg.Path, cfg.URL, cfg.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	geo, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return nil
	}

	return geo
}

// historyStore keeps a nil repository a nil interface.
func historyStore(store *storage.Repository) server.Store {
	if store == nil {
		return nil
	}
	return store
}

func geoTagger(geo *geoip.Provider) server.CountryCoder {
	if geo == nil {
		return nil
	}
	return geo
}
