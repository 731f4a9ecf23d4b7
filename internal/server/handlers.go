package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/woozymasta/craftping/assets"
	"github.com/woozymasta/craftping/internal/mcerr"
	"github.com/woozymasta/craftping/internal/models"
	"github.com/woozymasta/craftping/internal/resolver"
	"github.com/woozymasta/craftping/internal/vars"
)

// handleIndex serves the landing page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	content, err := assets.ReadFile("index.html")
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(content)
}

// handleHealth reports build information.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

// handleQuery runs a status query described by a JSON body:
// {"host": "play.example.com", "port": 25565, "type": "java", "timeoutMs": 5000}
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Invalid JSON")

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondInvalid(w, req, "request body too large")
			return
		}
		s.respondInvalid(w, req, "invalid JSON body")
		return
	}

	s.serveQuery(w, r, req)
}

// handleLegacyQuery runs a status query from URL parameters.
// Query params: ?ip=play.example.com:25565&type=java
func (s *Server) handleLegacyQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := models.QueryRequest{
		Host: q.Get("ip"),
		Type: q.Get("type"),
	}

	if timeout := q.Get("timeoutMs"); timeout != "" {
		ms, err := strconv.Atoi(timeout)
		if err != nil {
			s.respondInvalid(w, req, "invalid timeoutMs")
			return
		}
		req.TimeoutMs = ms
	}

	s.serveQuery(w, r, req)
}

func (s *Server) serveQuery(w http.ResponseWriter, r *http.Request, req models.QueryRequest) {
	logger := zerolog.Ctx(r.Context())

	if s.deniedRequest(req) {
		logger.Info().Str("host", req.Host).Msg("Query for denied host rejected")
		s.respondInvalid(w, req, "querying this host is not allowed")
		return
	}

	res := s.query.Query(r.Context(), req)

	logger.Debug().
		Str("host", res.Host).
		Int("port", res.Port).
		Str("type", string(res.Type)).
		Str("status", string(res.Status)).
		Int64("latency_ms", res.LatencyMs).
		Msg("Query served")

	status := http.StatusOK
	if res.ErrorKind == mcerr.KindInvalidInput {
		status = http.StatusBadRequest
	} else {
		s.record(res)
	}

	writeJSON(w, status, res)
}

// deniedRequest checks the requested host with any port suffix removed.
func (s *Server) deniedRequest(req models.QueryRequest) bool {
	if len(s.denyHosts) == 0 {
		return false
	}

	edition, ok := models.ParseEdition(req.Type)
	if !ok {
		return false
	}
	addr, err := resolver.Parse(req.Host, edition)
	if err != nil {
		return false
	}

	return s.denyHosts.Denied(addr.Host)
}

func (s *Server) respondInvalid(w http.ResponseWriter, req models.QueryRequest, msg string) {
	edition, _ := models.ParseEdition(req.Type)
	writeJSON(w, http.StatusBadRequest, models.QueryResult{
		Status:        models.StatusError,
		Host:          strings.TrimSpace(req.Host),
		Port:          req.Port,
		Type:          edition,
		PlayersSample: []string{},
		ErrorKind:     mcerr.KindInvalidInput,
		ErrorMessage:  msg,
	})
}

// handleServers returns the recorded servers, optionally filtered by ?type=.
// This endpoint is protected by AdminAuthMiddleware.
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	var edition models.Edition
	if t := r.URL.Query().Get("type"); t != "" {
		ed, ok := models.ParseEdition(t)
		if !ok {
			http.Error(w, "Invalid type", http.StatusBadRequest)
			return
		}
		edition = ed
	}

	servers, err := s.storage.GetServers(r.Context(), edition)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to fetch servers")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, servers)
}

// handleGetServer returns a single recorded server.
// Query params: ?type=java&host=play.example.com&port=25565
func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	edition, host, port, ok := serverKey(w, r)
	if !ok {
		return
	}

	srv, err := s.storage.GetServer(r.Context(), edition, host, port)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to fetch server")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	if srv == nil {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, srv)
}

// handleDeleteServer removes a recorded server.
// Query params: ?type=java&host=play.example.com&port=25565
func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	edition, host, port, ok := serverKey(w, r)
	if !ok {
		return
	}

	logger := zerolog.Ctx(r.Context()).With().
		Str("type", string(edition)).
		Str("host", host).
		Int("port", port).
		Logger()

	deleted, err := s.storage.DeleteServer(r.Context(), edition, host, port)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to delete server")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	if !deleted {
		http.NotFound(w, r)
		return
	}

	logger.Info().Msg("Server deleted manually")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Server deleted"})
}

// serverKey reads the history key parameters, writing a 400 response when they are invalid.
func serverKey(w http.ResponseWriter, r *http.Request) (models.Edition, string, int, bool) {
	q := r.URL.Query()
	host := strings.ToLower(strings.TrimSpace(q.Get("host")))
	portStr := q.Get("port")

	if host == "" || portStr == "" {
		http.Error(w, "Missing required params (host, port)", http.StatusBadRequest)
		return "", "", 0, false
	}

	edition, ok := models.ParseEdition(q.Get("type"))
	if !ok {
		http.Error(w, "Invalid type", http.StatusBadRequest)
		return "", "", 0, false
	}

	port, err := resolver.ParsePort(portStr)
	if err != nil {
		http.Error(w, "Invalid port", http.StatusBadRequest)
		return "", "", 0, false
	}

	return edition, host, int(port), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
