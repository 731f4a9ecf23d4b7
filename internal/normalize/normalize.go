// Package normalize maps the raw status replies of both editions onto the canonical QueryResult.
// It never fails: missing or renamed fields degrade to documented defaults.
package normalize

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/bedrock"
	"github.com/woozymasta/craftping/internal/java"
	"github.com/woozymasta/craftping/internal/models"
	"github.com/woozymasta/craftping/internal/resolver"
)

// lookup reads one candidate source of a field.
type lookup[T any] struct {
	get  func(T) (string, bool)
	name string
}

// first returns the value and source name of the first candidate that is present.
func first[T any](v T, candidates []lookup[T]) (string, string, bool) {
	for _, c := range candidates {
		if s, ok := c.get(v); ok {
			return s, c.name, true
		}
	}
	return "", "", false
}

// Field lookup order. Server software disagrees on names and shapes, so every
// field that has more than one source is listed here, highest priority first.
var (
	javaFavicon = []lookup[*java.Status]{
		{name: "favicon", get: func(s *java.Status) (string, bool) { return s.Favicon, s.Favicon != "" }},
		{name: "icon", get: func(s *java.Status) (string, bool) { return s.Icon, s.Icon != "" }},
	}

	// FlattenChat accepts the structured component first and the plain string second.
	javaMOTD = []lookup[*java.Status]{
		{name: "description", get: func(s *java.Status) (string, bool) { return FlattenChat(s.Description) }},
	}

	bedrockMOTD = []lookup[*bedrock.Status]{
		{name: "motd+submotd", get: func(s *bedrock.Status) (string, bool) {
			if s.MOTD == "" || s.SubMOTD == "" {
				return "", false
			}
			return s.MOTD + "\n" + s.SubMOTD, true
		}},
		{name: "motd", get: func(s *bedrock.Status) (string, bool) { return s.MOTD, s.MOTD != "" }},
		{name: "submotd", get: func(s *bedrock.Status) (string, bool) { return s.SubMOTD, s.SubMOTD != "" }},
	}
)

// Java normalizes a Java edition status.
func Java(s *java.Status, addr resolver.Address) models.QueryResult {
	res := base(addr)

	res.Version = s.Version.Name
	res.Protocol = s.Version.Protocol
	res.PlayersOnline = s.Players.Online
	res.PlayersMax = s.Players.Max

	for _, p := range s.Players.Sample {
		if p.Name != "" {
			res.PlayersSample = append(res.PlayersSample, p.Name)
		}
	}

	setMOTD(&res, javaMOTD, s)

	if icon, source, ok := first(s, javaFavicon); ok {
		log.Trace().Str("host", addr.Host).Str("source", source).Msg("Favicon found")
		res.Favicon = &icon
	}

	res.LatencyMs = Millis(s.Latency)
	return res
}

// Bedrock normalizes a Bedrock edition pong.
func Bedrock(s *bedrock.Status, addr resolver.Address) models.QueryResult {
	res := base(addr)

	res.Version = s.Version
	res.Protocol = s.Protocol
	res.PlayersOnline = s.PlayersOnline
	res.PlayersMax = s.PlayersMax

	setMOTD(&res, bedrockMOTD, s)

	res.LatencyMs = Millis(s.Latency)
	return res
}

// Millis rounds a measured round-trip to whole milliseconds.
func Millis(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond).Milliseconds()
}

func base(addr resolver.Address) models.QueryResult {
	return models.QueryResult{
		Status:        models.StatusSuccess,
		Online:        true,
		Host:          addr.Host,
		Port:          int(addr.Port),
		Type:          addr.Edition,
		SRV:           addr.SRV,
		PlayersSample: []string{},
	}
}

func setMOTD[T any](res *models.QueryResult, candidates []lookup[T], v T) {
	motd, _, ok := first(v, candidates)
	if !ok {
		motd = models.DefaultMOTD
	}

	res.MOTD = motd
	res.MOTDPlain = plain(motd)
}

// plain strips formatting codes line by line.
func plain(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = StripFormatting(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
