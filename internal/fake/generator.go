// Package fake provides utilities for generating random query history for testing and development purposes.
package fake

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/craftping/internal/mcerr"
	"github.com/woozymasta/craftping/internal/models"
)

// Store receives generated records, implemented by storage.Repository.
type Store interface {
	UpsertServer(ctx context.Context, s models.ServerRecord) error
}

var (
	javaVersions    = []string{"1.8.9", "1.12.2", "1.16.5", "1.20.1", "1.21.4", "Paper 1.21.4", "Velocity 3.3.0"}
	bedrockVersions = []string{"1.20.80", "1.21.2", "1.21.50"}
	motds           = []string{"Survival SMP", "Skyblock | Economy", "Minigames Hub", "Vanilla+", "Anarchy", "Creative Plots"}
	errorKinds      = []mcerr.Kind{mcerr.KindTimeout, mcerr.KindConnectionRefused, mcerr.KindDNSFailure}

	countriesHigh = []string{"US", "DE", "RU", "BR", "FR", "GB", "PL", "NL"}
	countriesMid  = []string{"CA", "AU", "IT", "ES", "SE", "JP", "KR", "TR"}
	countriesLow  = []string{"ZA", "AR", "MX", "IN", "ID", "VN", "FI", "DK"}
)

// GenerateData populates the storage with count randomized server records.
// Roughly a quarter are Bedrock servers and a fifth end up offline.
func GenerateData(ctx context.Context, store Store, count int) int {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	written := 0

	for i := 0; i < count; i++ {
		rec := Record(rnd, i)

		if err := store.UpsertServer(ctx, rec); err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake server")
			continue
		}
		written++

		// repeated queries of popular servers
		for n := rnd.Intn(4); n > 0; n-- {
			rec.LastSeen = rec.LastSeen.Add(time.Duration(rnd.Intn(60)) * time.Minute)
			_ = store.UpsertServer(ctx, rec)
		}
	}

	log.Info().Int("count", written).Msg("Fake history generated")
	return written
}

// Record returns one random server record, seq keeps hostnames unique.
func Record(rnd *rand.Rand, seq int) models.ServerRecord {
	// Random date-time in 30 days range
	seen := time.Now().UTC().
		Add(-time.Duration(rnd.Intn(30)) * 24 * time.Hour).
		Add(-time.Duration(rnd.Intn(1440)) * time.Minute)

	rec := models.ServerRecord{
		Edition:     models.Java,
		Host:        fmt.Sprintf("mc%d.example.net", seq),
		Port:        int(models.DefaultJavaPort),
		IP:          fmt.Sprintf("%d.%d.%d.%d", rnd.Intn(220)+1, rnd.Intn(255), rnd.Intn(255), rnd.Intn(255)),
		CountryCode: country(rnd),
		FirstSeen:   seen.Add(-7 * 24 * time.Hour),
		LastSeen:    seen,
	}

	if rnd.Float32() < 0.25 {
		rec.Edition = models.Bedrock
		rec.Port = int(models.DefaultBedrockPort)
		rec.Version = bedrockVersions[rnd.Intn(len(bedrockVersions))]
	} else {
		rec.Version = javaVersions[rnd.Intn(len(javaVersions))]
	}

	if rnd.Float32() < 0.2 {
		rec.LastError = string(errorKinds[rnd.Intn(len(errorKinds))])
		return rec
	}

	rec.Online = true
	rec.LastOnline = seen
	rec.MOTD = motds[rnd.Intn(len(motds))]
	rec.PlayersMax = []int{20, 50, 100, 500}[rnd.Intn(4)]
	rec.PlayersOnline = rnd.Intn(rec.PlayersMax + 1)
	rec.LatencyMs = int64(5 + rnd.Intn(250))

	return rec
}

func country(rnd *rand.Rand) string {
	roll := rnd.Float32()
	switch {
	case roll < 0.70:
		return countriesHigh[rnd.Intn(len(countriesHigh))]
	case roll < 0.90:
		return countriesMid[rnd.Intn(len(countriesMid))]
	default:
		return countriesLow[rnd.Intn(len(countriesLow))]
	}
}
