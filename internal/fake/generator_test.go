package fake

import (
	"context"
	"math/rand"
	"testing"

	"github.com/woozymasta/craftping/internal/models"
)

type countingStore struct {
	hosts map[string]int
}

func (c *countingStore) UpsertServer(_ context.Context, s models.ServerRecord) error {
	c.hosts[s.Host]++
	return nil
}

func TestRecordInvariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		rec := Record(rnd, i)

		if rec.Port != int(rec.Edition.DefaultPort()) {
			t.Fatalf("port %d does not match edition %s", rec.Port, rec.Edition)
		}
		if rec.Online {
			if rec.LastError != "" || rec.LastOnline.IsZero() || rec.PlayersOnline > rec.PlayersMax {
				t.Fatalf("inconsistent online record %+v", rec)
			}
		} else if rec.LastError == "" || !rec.LastOnline.IsZero() {
			t.Fatalf("inconsistent offline record %+v", rec)
		}
		if rec.FirstSeen.After(rec.LastSeen) {
			t.Fatalf("first seen after last seen: %+v", rec)
		}
	}
}

func TestGenerateData(t *testing.T) {
	store := &countingStore{hosts: make(map[string]int)}

	if n := GenerateData(context.Background(), store, 25); n != 25 {
		t.Fatalf("expected 25 records, got %d", n)
	}
	if len(store.hosts) != 25 {
		t.Fatalf("expected 25 distinct hosts, got %d", len(store.hosts))
	}
}
