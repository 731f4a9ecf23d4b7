package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/woozymasta/craftping/internal/models"
	"github.com/woozymasta/craftping/internal/query"
)

// Querier runs status queries, implemented by query.Service.
type Querier interface {
	Query(ctx context.Context, req models.QueryRequest) models.QueryResult
}

// Store persists query history, implemented by storage.Repository.
type Store interface {
	UpsertServer(ctx context.Context, s models.ServerRecord) error
	GetServers(ctx context.Context, edition models.Edition) ([]models.ServerRecord, error)
	GetServer(ctx context.Context, edition models.Edition, host string, port int) (*models.ServerRecord, error)
	DeleteServer(ctx context.Context, edition models.Edition, host string, port int) (bool, error)
}

// CountryCoder maps an address to an ISO country code, implemented by geoip.Provider.
type CountryCoder interface {
	CountryCode(ip net.IP) string
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background history recording.
type Server struct {
	// query executes the status queries requested through the API.
	query Querier

	// storage records the query history, nil when history is disabled.
	storage Store

	// geoip tags history records with a country code, may be nil.
	geoip CountryCoder

	// lookupIP resolves hostnames for country tagging.
	lookupIP func(ctx context.Context, network, host string) ([]net.IP, error)

	// denyHosts rejects requested hosts before the query runs.
	denyHosts query.DenyList

	// queue passes finished results from HTTP handlers to the history workers.
	queue chan historyJob

	// shutdown broadcasts a stop signal to background routines.
	shutdown chan struct{}

	// authToken protects the history endpoints, which are disabled when empty.
	authToken string

	// wg waits for history workers to drain the queue on shutdown.
	wg sync.WaitGroup

	stopOnce sync.Once

	// maxBody limits request body size in bytes.
	maxBody int64

	// workers is the size of the history worker pool.
	workers int

	// limitCount queries are allowed per client IP within limitWin.
	limitCount int
	limitWin   time.Duration

	// trustProxy enables CF-Connecting-IP and X-Forwarded-For headers.
	trustProxy bool
}

// historyJob is a finished query waiting to be recorded.
type historyJob struct {
	// At is the time the query finished.
	At time.Time

	// Result is the query outcome as returned to the client.
	Result models.QueryResult
}
