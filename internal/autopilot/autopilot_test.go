package autopilot

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/talgya/starholdings/internal/api"
	"github.com/talgya/starholdings/internal/config"
	"github.com/talgya/starholdings/internal/engine"
	"github.com/talgya/starholdings/internal/entropy"
)

func baseSnapshot() *Snapshot {
	return &Snapshot{
		Status: Status{Corporation: "Acme"},
		Site: Site{
			Resources: map[string]float64{"metal": 100, "crystal": 50},
			Buildings: []Building{
				{Key: "metal_mine", Name: "Metal Mine", Level: 1, MaxLevel: 15, NextCost: map[string]float64{"metal": 60, "crystal": 15}},
				{Key: "crystal_mine", Name: "Crystal Mine", Level: 1, MaxLevel: 15, NextCost: map[string]float64{"metal": 48, "crystal": 24}},
				{Key: "shipyard", Name: "Shipyard", Level: 0, MaxLevel: 10, NextCost: map[string]float64{"metal": 400, "crystal": 200}},
			},
		},
		Fleets: []Fleet{{ID: 1, Name: "Alpha", Location: "home", Activity: "idle"}},
		Regions: []Region{
			{ID: "home", Name: "Home", Visibility: "explored", Links: []string{"region-a", "region-b"}},
			{ID: "region-a", Name: "Aster", Visibility: "explored", Links: []string{"home"}},
			{ID: "region-b", Name: "Borea", Visibility: "unexplored", Links: []string{"home"}},
		},
		Claims: []Claim{
			{Region: "region-a", State: "available"},
			{Region: "region-b", State: "available"},
		},
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Snapshot)
		wantKind string
		wantPath string
	}{
		{"claims explored region first", func(s *Snapshot) {}, "claim", "/api/v1/claims/region-a"},
		{"renews own lapsed claim", func(s *Snapshot) {
			s.Regions[2].Visibility = "explored"
			s.Claims[1].Corporation = "Acme"
		}, "claim", "/api/v1/claims/region-b"},
		{"cheapest affordable upgrade", func(s *Snapshot) {
			s.Status.ActiveClaim = "region-a"
		}, "upgrade", "/api/v1/site/crystal_mine/upgrade"},
		{"skips unaffordable", func(s *Snapshot) {
			s.Status.ActiveClaim = "region-a"
			s.Site.Resources["crystal"] = 20
		}, "upgrade", "/api/v1/site/metal_mine/upgrade"},
		{"travels when site busy", func(s *Snapshot) {
			s.Status.ActiveClaim = "region-a"
			s.Status.Constructing = "metal_mine"
		}, "travel", "/api/v1/fleets/1/travel"},
		{"probes unexplored location", func(s *Snapshot) {
			s.Status.ActiveClaim = "region-a"
			s.Status.Constructing = "metal_mine"
			s.Fleets[0].Location = "region-b"
		}, "probe", "/api/v1/fleets/1/probe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := baseSnapshot()
			tt.mutate(snap)
			cmd := Decide(snap)
			if cmd == nil {
				t.Fatal("no command")
			}
			if cmd.Kind != tt.wantKind || cmd.Path != tt.wantPath {
				t.Errorf("got %s %s, want %s %s", cmd.Kind, cmd.Path, tt.wantKind, tt.wantPath)
			}
		})
	}
}

func TestDecideNothingToDo(t *testing.T) {
	snap := baseSnapshot()
	snap.Status.ActiveClaim = "region-a"
	snap.Status.Constructing = "metal_mine"
	snap.Fleets[0].Activity = "traveling"
	if cmd := Decide(snap); cmd != nil {
		t.Errorf("unexpected command %+v", cmd)
	}
}

func TestObserveDecideAct(t *testing.T) {
	cfg := config.Default()
	cfg.Territory.Seed = 7
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sim, err := engine.New(cfg, entropy.NewSeeded(1), t0)
	if err != nil {
		t.Fatal(err)
	}
	server := api.NewServer(sim, nil, ":0", "key", 100, 100)
	server.Now = func() time.Time { return t0 }
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	snap, err := NewObserver(srv.URL).Observe()
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if snap.Status.Corporation != cfg.Corporation || len(snap.Fleets) != 1 || len(snap.Site.Buildings) != len(cfg.Buildings) {
		t.Fatalf("snapshot = %+v", snap.Status)
	}

	cmd := Decide(snap)
	if cmd == nil || cmd.Kind != "upgrade" {
		t.Fatalf("first decision = %+v", cmd)
	}
	if _, err := NewActor(srv.URL, "key").Act(cmd); err != nil {
		t.Fatalf("act: %v", err)
	}

	snap, err = NewObserver(srv.URL).Observe()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status.Constructing == "" {
		t.Error("site not constructing after upgrade command")
	}

	// The same command again is a rejection with a reason.
	_, err = NewActor(srv.URL, "key").Act(cmd)
	if err == nil || !strings.Contains(err.Error(), "already_in_progress") {
		t.Errorf("repeat upgrade err = %v", err)
	}
}
