package persistence

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/starholdings/internal/config"
	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/engine"
	"github.com/talgya/starholdings/internal/entropy"
	"github.com/talgya/starholdings/internal/simerr"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := openTemp(t)
	payload := bytes.Repeat([]byte(`{"metal":500,"crystal":300}`), 100)

	if err := db.Save("slot1", payload); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := db.Load("slot1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %d bytes vs %d", len(got), len(payload))
	}

	if err := db.Save("slot1", []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = db.Load("slot1")
	if string(got) != "second" {
		t.Errorf("overwrite = %q", got)
	}

	slots, err := db.List()
	if err != nil || len(slots) != 1 || slots[0].Size != len("second") {
		t.Errorf("list = %+v, %v", slots, err)
	}
}

func TestLoadMissingAndDelete(t *testing.T) {
	db := openTemp(t)
	if _, err := db.Load("nope"); !errors.Is(err, simerr.ErrNotFound) {
		t.Errorf("missing load err = %v", err)
	}
	if err := db.Save("a", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := db.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := db.Delete("a"); !errors.Is(err, simerr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestCorruptSlotRejected(t *testing.T) {
	db := openTemp(t)
	if err := db.Save("a", []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.conn.Exec("UPDATE saves SET digest = 'bad' WHERE name = 'a'"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Load("a"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestWorldStateRoundTrip(t *testing.T) {
	db := openTemp(t)
	cfg := config.Default()
	cfg.Territory.Seed = 3
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	sim, err := engine.New(cfg, entropy.NewSeeded(1), start)
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.UpgradeBuilding("crystal_mine", start); err != nil {
		t.Fatal(err)
	}
	if err := sim.ClaimRegion("region-a", start); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveWorldState(sim, "autosave"); err != nil {
		t.Fatalf("save world: %v", err)
	}
	if err := db.SaveWorldState(sim, "autosave"); err != nil {
		t.Fatalf("second save: %v", err)
	}

	data, err := db.Load("autosave")
	if err != nil {
		t.Fatal(err)
	}
	restored, err := engine.Restore(cfg, data, entropy.NewSeeded(1))
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got, want := restored.Site.Ledger.Current(economy.Crystal), sim.Site.Ledger.Current(economy.Crystal); got != want {
		t.Errorf("crystal = %v, want %v", got, want)
	}
	if restored.Site.UnderConstruction() == nil {
		t.Error("in-flight construction lost")
	}

	events, err := db.RecentEvents(10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 || events[0].Category != "territory" {
		t.Errorf("archived events = %+v", events)
	}
	if slot, err := db.GetMeta("last_slot"); err != nil || slot != "autosave" {
		t.Errorf("meta = %q, %v", slot, err)
	}
}
