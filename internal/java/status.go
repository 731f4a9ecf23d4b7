package java

import (
	"encoding/json"
	"time"
)

// Status is the decoded status response of a Java edition server.
type Status struct {
	// Description is the raw MOTD: a string, a chat component or an array of them.
	// It is nil when the server omits the field.
	Description json.RawMessage `json:"description"`

	Version Version `json:"version"`
	Players Players `json:"players"`

	// Favicon is the data URI of the server icon.
	Favicon string `json:"favicon"`

	// Icon is the name some server software uses instead of favicon.
	Icon string `json:"icon"`

	// Latency is the measured ping round-trip, not a server reported value.
	Latency time.Duration `json:"-"`

	// PingFallback is set when the pong never arrived and Latency was
	// measured on the status exchange instead.
	PingFallback bool `json:"-"`
}

// Version describes the server software.
type Version struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

// Players holds player counts and the optional sample list.
type Players struct {
	Sample []Player `json:"sample"`
	Online int      `json:"online"`
	Max    int      `json:"max"`
}

// Player is a sampled online player.
type Player struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}
