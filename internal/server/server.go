// Package server implements the HTTP API, middleware, and the background history writer.
package server

import (
	"net"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/config"
	"github.com/woozymasta/craftping/internal/query"
)

// New creates a new Server. store and geo may be nil to disable history and country tagging.
func New(svc Querier, store Store, geo CountryCoder, cfg *config.Config) *Server {
	return &Server{
		query:      svc,
		storage:    store,
		geoip:      geo,
		lookupIP:   net.DefaultResolver.LookupIP,
		denyHosts:  query.NewDenyList(cfg.Server.DenyHosts),
		authToken:  cfg.Server.AuthToken,
		maxBody:    cfg.Server.MaxBodySize,
		workers:    cfg.Server.Workers,
		trustProxy: cfg.Server.TrustProxy,
		limitCount: cfg.RateLimit.Count,
		limitWin:   cfg.RateLimit.Window,

		queue:    make(chan historyJob, cfg.Server.QueueSize),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers starts the history worker pool. It is a no-op when history is disabled.
func (s *Server) StartWorkers() {
	if s.storage == nil {
		return
	}

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// StopWorkers stops background routines and waits until queued history is written.
// The queue stays open, so a handler still running after shutdown cannot panic on send.
func (s *Server) StopWorkers() {
	s.stopOnce.Do(func() { close(s.shutdown) })
	s.wg.Wait()
}

// Handler configures the HTTP routes and returns the main handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	limited := s.RateLimitMiddleware
	mux.Handle("POST /api/query", limited(http.HandlerFunc(s.handleQuery)))
	mux.Handle("GET /query", limited(http.HandlerFunc(s.handleLegacyQuery)))
	mux.Handle("GET /api/health", http.HandlerFunc(s.handleHealth))

	if s.storage != nil && s.authToken != "" {
		mux.Handle("GET /api/servers", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleServers)))
		mux.Handle("GET /api/server", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleGetServer)))
		mux.Handle("DELETE /api/server", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleDeleteServer)))
	} else {
		log.Info().Msg("History endpoints disabled, no storage or auth token configured")
	}

	mux.Handle("GET /", http.HandlerFunc(s.handleIndex))

	return s.RequestIDMiddleware(s.LoggingMiddleware(mux))
}
