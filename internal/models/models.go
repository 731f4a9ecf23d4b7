// Package models defines the data structures used for API requests, query results and database persistence.
package models

import (
	"strings"
	"time"

	"github.com/woozymasta/craftping/internal/mcerr"
)

// Edition is the Minecraft edition, which selects the status protocol.
type Edition string

// Supported editions.
const (
	Java    Edition = "java"
	Bedrock Edition = "bedrock"
)

// Default ports per edition.
const (
	DefaultJavaPort    uint16 = 25565
	DefaultBedrockPort uint16 = 19132
)

// DefaultMOTD is reported when a server sends no description at all.
const DefaultMOTD = "A Minecraft Server"

// ParseEdition converts a user supplied server type, empty means Java.
func ParseEdition(s string) (Edition, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "java", "je":
		return Java, true
	case "bedrock", "be", "pe":
		return Bedrock, true
	default:
		return "", false
	}
}

// DefaultPort returns the well-known status port of the edition.
func (e Edition) DefaultPort() uint16 {
	if e == Bedrock {
		return DefaultBedrockPort
	}
	return DefaultJavaPort
}

// Status is the terminal state of a query.
type Status string

// Terminal query states.
const (
	StatusSuccess Status = "success"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// QueryRequest is the payload accepted by the query API.
type QueryRequest struct {
	Host      string `json:"host"`
	Type      string `json:"type,omitempty"`
	Port      int    `json:"port,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
}

// QueryResult is the canonical, normalized outcome of a status query.
type QueryResult struct {
	Favicon       *string    `json:"favicon,omitempty"`
	ErrorKind     mcerr.Kind `json:"errorKind,omitempty"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
	Status        Status     `json:"status"`
	Host          string     `json:"host"`
	Type          Edition    `json:"type"`
	Version       string     `json:"version"`
	MOTD          string     `json:"motd"`
	MOTDPlain     string     `json:"motdPlain"`
	PlayersSample []string   `json:"playersSample"`
	Port          int        `json:"port"`
	Protocol      int        `json:"protocol"`
	PlayersOnline int        `json:"playersOnline"`
	PlayersMax    int        `json:"playersMax"`
	LatencyMs     int64      `json:"latencyMs"`
	Online        bool       `json:"online"`
	SRV           bool       `json:"srv,omitempty"`
}

// ServerRecord is a queried server stored in the history database.
type ServerRecord struct {
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	LastOnline    time.Time `json:"last_online"`
	Edition       Edition   `json:"type"`
	Host          string    `json:"host"`
	IP            string    `json:"ip"`
	CountryCode   string    `json:"country_code"`
	Version       string    `json:"version"`
	MOTD          string    `json:"motd"`
	LastError     string    `json:"last_error"`
	Port          int       `json:"port"`
	Protocol      int       `json:"protocol"`
	PlayersOnline int       `json:"players_online"`
	PlayersMax    int       `json:"players_max"`
	LatencyMs     int64     `json:"latency_ms"`
	Count         int64     `json:"count"`
	Online        bool      `json:"online"`
}

// Record converts a query result into a history record observed at now.
func (r QueryResult) Record(now time.Time) ServerRecord {
	now = now.UTC()
	rec := ServerRecord{
		Edition:       r.Type,
		Host:          strings.ToLower(r.Host),
		Port:          r.Port,
		Version:       r.Version,
		MOTD:          r.MOTDPlain,
		Protocol:      r.Protocol,
		PlayersOnline: r.PlayersOnline,
		PlayersMax:    r.PlayersMax,
		LatencyMs:     r.LatencyMs,
		Online:        r.Online,
		FirstSeen:     now,
		LastSeen:      now,
	}
	// SRV is only followed for the default port, keep the key users query with.
	if r.SRV {
		rec.Port = int(DefaultJavaPort)
	}
	if r.Online {
		rec.LastOnline = now
	} else {
		rec.LastError = string(r.ErrorKind)
	}

	return rec
}
