package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/woozymasta/craftping/internal/config"
	"github.com/woozymasta/craftping/internal/mcerr"
	"github.com/woozymasta/craftping/internal/models"
)

type fakeQuerier struct{}

func (fakeQuerier) QueryServer(_ context.Context, host string, port int, edition string, _ time.Duration) models.QueryResult {
	ed, _ := models.ParseEdition(edition)
	if host == "down.example.com" {
		return models.QueryResult{
			Status:    models.StatusTimeout,
			Host:      host,
			Port:      port,
			Type:      ed,
			ErrorKind: mcerr.KindTimeout,
		}
	}

	return models.QueryResult{
		Status:        models.StatusSuccess,
		Online:        true,
		Host:          host,
		Port:          port,
		Type:          ed,
		Version:       "1.21.4",
		PlayersOnline: 7,
	}
}

type memStore struct {
	mu       sync.Mutex
	servers  []models.ServerRecord
	upserts  []models.ServerRecord
	pruned   models.Edition
	prunedAt time.Time
}

func (m *memStore) UpsertServer(_ context.Context, s models.ServerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, s)
	return nil
}

func (m *memStore) GetServers(_ context.Context, edition models.Edition) ([]models.ServerRecord, error) {
	var out []models.ServerRecord
	for _, s := range m.servers {
		if edition == "" || s.Edition == edition {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) DeleteOffline(_ context.Context, edition models.Edition, before time.Time) (int64, error) {
	m.pruned, m.prunedAt = edition, before
	return 1, nil
}

func TestRunNothing(t *testing.T) {
	if Run(context.Background(), &config.Config{}, &memStore{}, fakeQuerier{}) {
		t.Fatalf("no task requested")
	}
}

func TestRecheck(t *testing.T) {
	store := &memStore{servers: []models.ServerRecord{
		{Edition: models.Java, Host: "up.example.com", Port: 25565, IP: "203.0.113.1", CountryCode: "FR"},
		{Edition: models.Java, Host: "down.example.com", Port: 25565},
		{Edition: models.Bedrock, Host: "be.example.com", Port: 19132},
	}}

	cfg := &config.Config{}
	cfg.Storage.RecheckAll = "java"
	cfg.Query.Timeout = time.Second

	if !Run(context.Background(), cfg, store, fakeQuerier{}) {
		t.Fatalf("task must run")
	}
	if len(store.upserts) != 2 {
		t.Fatalf("expected 2 java servers re-checked, got %d", len(store.upserts))
	}

	for _, rec := range store.upserts {
		switch rec.Host {
		case "up.example.com":
			if !rec.Online || rec.PlayersOnline != 7 || rec.IP != "203.0.113.1" || rec.CountryCode != "FR" {
				t.Fatalf("unexpected online record %+v", rec)
			}
		case "down.example.com":
			if rec.Online || rec.LastError != string(mcerr.KindTimeout) {
				t.Fatalf("unexpected offline record %+v", rec)
			}
		default:
			t.Fatalf("unexpected host %s", rec.Host)
		}
	}
}

func TestPruneOffline(t *testing.T) {
	store := &memStore{}
	cfg := &config.Config{}
	cfg.Storage.PruneOffline = config.AnyEdition
	cfg.Storage.Retention = 24 * time.Hour

	if !Run(context.Background(), cfg, store, fakeQuerier{}) {
		t.Fatalf("task must run")
	}
	if store.pruned != "" {
		t.Fatalf("any edition must not filter, got %q", store.pruned)
	}
	if d := time.Since(store.prunedAt); d < 24*time.Hour || d > 25*time.Hour {
		t.Fatalf("unexpected cutoff %v ago", d)
	}
}

func TestRecordKeepsRequestedPortForSRV(t *testing.T) {
	rec := models.QueryResult{Online: true, Host: "Play.Example.com", Port: 25601, Type: models.Java, SRV: true}.
		Record(time.Now())
	if rec.Port != 25565 || rec.Host != "play.example.com" {
		t.Fatalf("unexpected key %s:%d", rec.Host, rec.Port)
	}
}
