package server

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/models"
)

// historyTimeout bounds the address lookup and the database write of one record.
const historyTimeout = 5 * time.Second

// record queues a finished query for the history workers without blocking the client.
func (s *Server) record(res models.QueryResult) {
	if s.storage == nil {
		return
	}

	select {
	case <-s.shutdown:
		return
	default:
	}

	select {
	case s.queue <- historyJob{Result: res, At: time.Now()}:
		log.Trace().
			Str("host", res.Host).
			Int("port", res.Port).
			Msg("Query queued for history")
	default:
		log.Warn().
			Str("host", res.Host).
			Int("port", res.Port).
			Str("type", string(res.Type)).
			Msg("History queue full, record dropped")
	}
}

// worker is a background goroutine that writes queued results to the storage.
func (s *Server) worker() {
	defer s.wg.Done()

	for {
		select {
		case job := <-s.queue:
			s.processJob(job)
		case <-s.shutdown:
			for {
				select {
				case job := <-s.queue:
					s.processJob(job)
				default:
					return
				}
			}
		}
	}
}

// processJob resolves the server address, tags its country (GeoIP), and upserts the record.
func (s *Server) processJob(job historyJob) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	rec := job.Result.Record(job.At)

	if ip := s.serverIP(ctx, rec.Host); ip != nil {
		rec.IP = ip.String()
		if s.geoip != nil {
			rec.CountryCode = s.geoip.CountryCode(ip)
		}
	}

	if err := s.storage.UpsertServer(ctx, rec); err != nil {
		log.Error().
			Err(err).
			Str("host", rec.Host).
			Int("port", rec.Port).
			Msg("Failed to save server to DB")
		return
	}

	log.Debug().
		Str("host", rec.Host).
		Str("ip", rec.IP).
		Str("country", rec.CountryCode).
		Bool("online", rec.Online).
		Msg("History saved")
}

// serverIP returns the address of host, preferring IPv4, nil when it cannot be resolved.
func (s *Server) serverIP(ctx context.Context, host string) net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return ip
	}

	ips, err := s.lookupIP(ctx, "ip", host)
	if err != nil || len(ips) == 0 {
		log.Trace().Err(err).Str("host", host).Msg("Cannot resolve host for history")
		return nil
	}

	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	return ips[0]
}
