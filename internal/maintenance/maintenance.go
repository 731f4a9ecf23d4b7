// Package maintenance provides one-shot tasks that prune and re-check the query history.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/config"
	"github.com/woozymasta/craftping/internal/models"
)

// workers is the size of the re-check pool.
const workers = 10

// Querier runs status queries, implemented by query.Service.
type Querier interface {
	QueryServer(ctx context.Context, host string, port int, edition string, timeout time.Duration) models.QueryResult
}

// Store is the part of storage.Repository used by maintenance.
type Store interface {
	UpsertServer(ctx context.Context, s models.ServerRecord) error
	GetServers(ctx context.Context, edition models.Edition) ([]models.ServerRecord, error)
	DeleteOffline(ctx context.Context, edition models.Edition, before time.Time) (int64, error)
}

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store Store, svc Querier) bool {
	ran := false

	if cfg.Storage.RecheckAll != "" {
		ran = true
		edition := parseEdition(cfg.Storage.RecheckAll)
		log.Info().Str("edition_filter", string(edition)).Msg("Fetching servers for re-check")

		servers, err := store.GetServers(ctx, edition)
		if err != nil {
			log.Error().Err(err).Msg("Failed to fetch servers")
			return true
		}

		if len(servers) == 0 {
			log.Info().Msg("No servers found for maintenance")
		} else {
			log.Info().Int("count", len(servers)).Int("workers", workers).Msg("Starting re-check task")
			online := Recheck(ctx, servers, store, svc, cfg.Query.Timeout)
			log.Info().Int("online", online).Int("total", len(servers)).Msg("Re-check finished")
		}
	}

	if cfg.Storage.PruneOffline != "" {
		ran = true
		edition := parseEdition(cfg.Storage.PruneOffline)
		before := time.Now().Add(-cfg.Storage.Retention)
		log.Info().
			Str("edition_filter", string(edition)).
			Time("offline_before", before).
			Msg("Pruning offline servers")

		count, err := store.DeleteOffline(ctx, edition, before)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune servers")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}
	}

	return ran
}

// parseEdition converts the optional flag value, "any" means no filter.
func parseEdition(input string) models.Edition {
	if input == config.AnyEdition {
		return ""
	}

	edition, _ := models.ParseEdition(input)
	return edition
}

// Recheck queries every server again and records the outcome. It returns the number of online servers.
func Recheck(ctx context.Context, servers []models.ServerRecord, store Store, svc Querier, timeout time.Duration) int {
	jobs := make(chan models.ServerRecord, len(servers))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		online int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for srv := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if processServer(ctx, srv, store, svc, timeout) {
					mu.Lock()
					online++
					mu.Unlock()
				}
			}
		}()
	}

	for _, s := range servers {
		jobs <- s
	}
	close(jobs)

	wg.Wait()
	return online
}

func processServer(ctx context.Context, srv models.ServerRecord, store Store, svc Querier, timeout time.Duration) bool {
	logCtx := log.With().
		Str("type", string(srv.Edition)).
		Str("host", srv.Host).
		Int("port", srv.Port).
		Logger()

	res := svc.QueryServer(ctx, srv.Host, srv.Port, string(srv.Edition), timeout)
	if !res.Online {
		logCtx.Debug().Str("error_kind", string(res.ErrorKind)).Msg("Server offline")
	}

	rec := res.Record(time.Now())
	rec.Host, rec.Port, rec.Edition = srv.Host, srv.Port, srv.Edition
	rec.IP, rec.CountryCode = srv.IP, srv.CountryCode

	if err := store.UpsertServer(ctx, rec); err != nil {
		logCtx.Error().Err(err).Msg("Failed to update server")
		return res.Online
	}

	logCtx.Trace().Bool("online", res.Online).Msg("Server updated")
	return res.Online
}
