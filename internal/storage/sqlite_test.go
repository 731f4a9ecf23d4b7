package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/woozymasta/craftping/internal/models"
)

func open(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func online(host string, at time.Time) models.ServerRecord {
	return models.QueryResult{
		Status:        models.StatusSuccess,
		Online:        true,
		Host:          host,
		Port:          25565,
		Type:          models.Java,
		Version:       "1.21.4",
		Protocol:      769,
		MOTDPlain:     "Hello",
		PlayersOnline: 5,
		PlayersMax:    20,
		LatencyMs:     31,
	}.Record(at)
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		repo, err := New(ctx, path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}

		var n int
		if err := repo.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
			t.Fatalf("count migrations: %v", err)
		}
		if n != 2 {
			t.Fatalf("expected 2 applied migrations, got %d", n)
		}
		_ = repo.Close()
	}
}

func TestUpsertCountsQueries(t *testing.T) {
	repo := open(t)
	ctx := context.Background()
	first := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	rec := online("mc.example.com", first)
	rec.IP = "203.0.113.7"
	rec.CountryCode = "DE"
	if err := repo.UpsertServer(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	offline := models.QueryResult{
		Status:    models.StatusTimeout,
		Host:      "mc.example.com",
		Port:      25565,
		Type:      models.Java,
		ErrorKind: "TIMEOUT",
	}.Record(first.Add(time.Hour))
	if err := repo.UpsertServer(ctx, offline); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetServer(ctx, models.Java, "mc.example.com", 25565)
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Count != 2 || got.Online || got.LastError != "TIMEOUT" {
		t.Fatalf("unexpected state after offline observation: %+v", got)
	}
	if got.Version != "1.21.4" || got.MOTD != "Hello" || got.PlayersMax != 20 || got.PlayersOnline != 0 {
		t.Fatalf("offline observation must keep last known status: %+v", got)
	}
	if got.IP != "203.0.113.7" || got.CountryCode != "DE" {
		t.Fatalf("address fields lost: %+v", got)
	}
	if !got.FirstSeen.Equal(first) || !got.LastOnline.Equal(first) || !got.LastSeen.Equal(first.Add(time.Hour)) {
		t.Fatalf("unexpected timestamps: first=%v online=%v seen=%v", got.FirstSeen, got.LastOnline, got.LastSeen)
	}
}

func TestListAndDelete(t *testing.T) {
	repo := open(t)
	ctx := context.Background()
	now := time.Now()

	for i, host := range []string{"a.example.com", "b.example.com"} {
		if err := repo.UpsertServer(ctx, online(host, now.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("insert %s: %v", host, err)
		}
	}
	be := online("be.example.com", now)
	be.Edition = models.Bedrock
	be.Port = 19132
	if err := repo.UpsertServer(ctx, be); err != nil {
		t.Fatalf("insert bedrock: %v", err)
	}

	all, err := repo.GetServers(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("list: %d %v", len(all), err)
	}
	if all[0].Host != "b.example.com" {
		t.Fatalf("expected newest first, got %s", all[0].Host)
	}

	javaOnly, err := repo.GetServers(ctx, models.Java)
	if err != nil || len(javaOnly) != 2 {
		t.Fatalf("java list: %d %v", len(javaOnly), err)
	}

	deleted, err := repo.DeleteServer(ctx, models.Java, "a.example.com", 25565)
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	deleted, err = repo.DeleteServer(ctx, models.Java, "a.example.com", 25565)
	if err != nil || deleted {
		t.Fatalf("second delete must report missing row: %v %v", deleted, err)
	}

	missing, err := repo.GetServer(ctx, models.Java, "a.example.com", 25565)
	if err != nil || missing != nil {
		t.Fatalf("expected nil record, got %+v %v", missing, err)
	}
}

func TestDeleteOffline(t *testing.T) {
	repo := open(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.UpsertServer(ctx, online("fresh.example.com", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.UpsertServer(ctx, online("stale.example.com", now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	never := models.QueryResult{Host: "dead.example.com", Port: 25565, Type: models.Java, ErrorKind: "DNS_FAILURE"}.
		Record(now.Add(-72 * time.Hour))
	if err := repo.UpsertServer(ctx, never); err != nil {
		t.Fatalf("insert: %v", err)
	}

	n, err := repo.DeleteOffline(ctx, models.Bedrock, now.Add(-24*time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("edition filter ignored: %d %v", n, err)
	}

	n, err = repo.DeleteOffline(ctx, "", now.Add(-24*time.Hour))
	if err != nil || n != 2 {
		t.Fatalf("expected 2 pruned, got %d %v", n, err)
	}

	left, _ := repo.GetServers(ctx, "")
	if len(left) != 1 || left[0].Host != "fresh.example.com" {
		t.Fatalf("unexpected survivors %+v", left)
	}
}
