package world

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/simerr"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedRoll float64

func (f fixedRoll) Float() float64 { return float64(f) }

func testRegion(id string, level int, x, y float64) *Region {
	return &Region{
		ID:       id,
		Name:     id,
		Level:    level,
		Position: Position{X: x, Y: y},
		Deposits: []*Deposit{
			{Resource: economy.Metal, BaseAmount: 10, Quality: 1},
			{Resource: economy.Gas, BaseAmount: 10, Quality: 1.2},
		},
	}
}

func lineGraph() *Graph {
	g := NewGraph()
	for i, id := range []string{"a", "b", "c", "d"} {
		g.Add(testRegion(id, i+1, float64(i)*2, 0))
	}
	g.Add(testRegion("island", 1, 50, 50))
	g.Connect("a", "b")
	g.Connect("b", "c")
	g.Connect("c", "d")
	g.Connect("a", "c")
	return g
}

func TestShortestPath(t *testing.T) {
	g := lineGraph()
	tests := []struct {
		from, to string
		want     []string
		ok       bool
	}{
		{"a", "a", []string{"a"}, true},
		{"a", "d", []string{"a", "c", "d"}, true},
		{"d", "b", []string{"d", "c", "b"}, true},
		{"a", "island", nil, false},
		{"a", "nowhere", nil, false},
	}
	for _, tt := range tests {
		got, ok := g.ShortestPath(tt.from, tt.to)
		if ok != tt.ok || len(got) != len(tt.want) {
			t.Errorf("path %s→%s = %v, %v; want %v, %v", tt.from, tt.to, got, ok, tt.want, tt.ok)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("path %s→%s = %v, want %v", tt.from, tt.to, got, tt.want)
				break
			}
		}
	}
}

func TestConnectIsSymmetric(t *testing.T) {
	g := lineGraph()
	g.Connect("b", "a")
	if len(g.Region("a").Links) != 2 || len(g.Region("b").Links) != 2 {
		t.Errorf("duplicate links: a=%v b=%v", g.Region("a").Links, g.Region("b").Links)
	}
	if err := g.Connect("a", "a"); err == nil {
		t.Error("self link accepted")
	}
}

func TestNeighbors(t *testing.T) {
	g := lineGraph()
	g.Region("d").Links = append(g.Region("d").Links, "gone")
	tests := []struct {
		id   string
		want []string
	}{
		{"a", []string{"b", "c"}},
		{"d", []string{"c"}},
		{"island", nil},
		{"nowhere", nil},
	}
	for _, tt := range tests {
		got := g.Neighbors(tt.id)
		if len(got) != len(tt.want) {
			t.Errorf("Neighbors(%s) = %d regions, want %v", tt.id, len(got), tt.want)
			continue
		}
		for i, r := range got {
			if r.ID != tt.want[i] {
				t.Errorf("Neighbors(%s)[%d] = %s, want %s", tt.id, i, r.ID, tt.want[i])
			}
		}
	}
}

func TestFilters(t *testing.T) {
	g := lineGraph()
	if got := g.RegionsWithinLevelRange(2, 3); len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("level range = %v", ids(got))
	}
	if got := g.RegionsWithinDistance("b", 2); len(got) != 2 {
		t.Errorf("within 2 of b = %v", ids(got))
	}
}

func ids(rs []*Region) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestMarkExploredIsMonotonic(t *testing.T) {
	r := testRegion("a", 1, 0, 0)
	if !r.MarkExplored() {
		t.Fatal("first explore rejected")
	}
	for _, d := range r.Deposits {
		if !d.Discovered {
			t.Fatal("deposit left undiscovered")
		}
	}
	if r.MarkExplored() {
		t.Error("re-explore accepted")
	}
	if r.Visibility != Explored {
		t.Error("visibility reverted")
	}
}

func TestGrantLifecycle(t *testing.T) {
	r := testRegion("a", 1, 0, 0)
	if _, err := r.RequestGrant(0, "corp", 8*time.Hour, t0); !errors.Is(err, simerr.ErrInvalidTarget) {
		t.Fatalf("grant on undiscovered deposit: %v", err)
	}
	r.MarkExplored()

	g, err := r.RequestGrant(0, "corp", 8*time.Hour, t0)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := r.RequestGrant(0, "rival", time.Hour, t0.Add(time.Hour)); !errors.Is(err, simerr.ErrAlreadyClaimed) {
		t.Fatalf("second grant: %v", err)
	}
	if got := r.AvailableDeposits(t0.Add(time.Hour)); len(got) != 1 || got[0] != 1 {
		t.Errorf("available = %v, want [1]", got)
	}

	end := t0.Add(8 * time.Hour)
	if g.Expired(end.Add(-time.Nanosecond)) || !g.Expired(end) {
		t.Error("grant expiry boundary wrong")
	}
	if len(r.ActiveGrants(end)) != 0 {
		t.Error("expired grant listed as active")
	}
	if g.Remaining(end.Add(time.Hour)) != 0 || g.Progress(end.Add(time.Hour)) != 1 {
		t.Error("remaining/progress not clamped")
	}
	if _, err := r.RequestGrant(0, "rival", time.Hour, end); err != nil {
		t.Errorf("regrant after expiry: %v", err)
	}
	if n := r.PruneGrants(end.Add(2 * time.Hour)); n != 2 {
		t.Errorf("pruned %d, want 2", n)
	}
}

func TestClaimLifecycle(t *testing.T) {
	c := NewClaimOffer("b", 24*time.Hour)
	if c.State(t0) != ClaimAvailable || c.IsActive(t0) || c.IsExpired(t0) {
		t.Fatal("fresh offer not available")
	}
	if err := c.Activate("corp", t0); err != nil {
		t.Fatal(err)
	}
	if err := c.Activate("rival", t0); !errors.Is(err, simerr.ErrAlreadyClaimed) {
		t.Fatalf("reactivate: %v", err)
	}

	if at := t0.Add(23*time.Hour + 59*time.Minute); !c.IsActive(at) || c.IsExpired(at) {
		t.Error("claim not active at T+23h59m")
	}
	after := t0.Add(24*time.Hour + time.Second)
	if !c.IsExpired(after) || c.IsActive(after) {
		t.Error("claim not expired at T+24h00m01s")
	}
	if c.TimeRemaining(after) != 0 || c.TimeRemaining(after.Add(100*time.Hour)) != 0 {
		t.Error("time remaining went negative")
	}
	if c.State(after) != ClaimExpired {
		t.Errorf("state = %s", c.State(after))
	}
}

func TestScanPolicyMonotonic(t *testing.T) {
	p, err := CompileScanPolicy("")
	if err != nil {
		t.Fatal(err)
	}
	low := p.Probability(ScanEnv{Power: 1, Level: 3})
	high := p.Probability(ScanEnv{Power: 2, Level: 3})
	deeper := p.Probability(ScanEnv{Power: 1, Level: 4})
	if !(high > low) || !(deeper < low) {
		t.Errorf("probabilities low=%v high=%v deeper=%v", low, high, deeper)
	}
	if got := p.Probability(ScanEnv{Power: 100, Level: 1}); got != 1 {
		t.Errorf("probability not clamped: %v", got)
	}
	if _, err := CompileScanPolicy("power >"); err == nil {
		t.Error("bad expression compiled")
	}
}

func TestScanDeposits(t *testing.T) {
	p, _ := CompileScanPolicy("")
	r := testRegion("a", 2, 0, 0) // chance = 1/4 at power 1

	if found := r.ScanDeposits(p, 1, fixedRoll(0.3)); len(found) != 0 {
		t.Fatalf("roll above chance found %v", found)
	}
	found := r.ScanDeposits(p, 1, fixedRoll(0.1))
	if len(found) != 2 {
		t.Fatalf("found %v, want both", found)
	}
	if again := r.ScanDeposits(p, 1, fixedRoll(0)); len(again) != 0 {
		t.Errorf("rediscovered %v", again)
	}
}

func TestDepositCollectionRate(t *testing.T) {
	d := Deposit{BaseAmount: 10, Quality: 1.2}
	if got := d.CollectionRate(1); math.Abs(got-12) > 1e-9 {
		t.Errorf("level 1 rate = %v, want 12", got)
	}
	if got := d.CollectionRate(2); math.Abs(got-13.2) > 1e-9 {
		t.Errorf("level 2 rate = %v, want 13.2", got)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.Seed = 42
	a, err := Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if len(a.Regions) != 9 {
		t.Fatalf("regions = %d, want 9", len(a.Regions))
	}
	home := a.Region(HomeID)
	if home == nil || !home.Explored() || len(home.Links) != 8 {
		t.Fatalf("home = %+v", home)
	}
	for id, ra := range a.Regions {
		rb := b.Region(id)
		if rb == nil || ra.Level != rb.Level || len(ra.Deposits) != 5 {
			t.Fatalf("region %s differs between runs", id)
		}
		if ra.Level < 1 || ra.Level > 3 {
			t.Errorf("region %s level %d out of range", id, ra.Level)
		}
		for i, d := range ra.Deposits {
			if d.Quality != rb.Deposits[i].Quality || d.Resource != rb.Deposits[i].Resource {
				t.Fatalf("deposit %s/%d differs between runs", id, i)
			}
		}
		for _, l := range ra.Links {
			if !hasLink(a.Region(l), id) {
				t.Errorf("link %s→%s not symmetric", id, l)
			}
		}
	}
}

func TestGenerateRejectsBadLayout(t *testing.T) {
	tests := []struct {
		name string
		edit func(*GenConfig)
	}{
		{"negative ring", func(c *GenConfig) { c.Ring = -1 }},
		{"zero spacing", func(c *GenConfig) { c.Spacing = 0 }},
		{"negative spacing", func(c *GenConfig) { c.Spacing = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGenConfig()
			cfg.Seed = 42
			tt.edit(&cfg)
			if g, err := Generate(cfg); err == nil || g != nil {
				t.Errorf("Generate = %v, %v; want error", g, err)
			}
		})
	}

	cfg := DefaultGenConfig()
	cfg.Seed = 42
	cfg.Ring = 0
	cfg.Spacing = 0
	g, err := Generate(cfg)
	if err != nil || len(g.Regions) != 1 {
		t.Errorf("home-only territory = %v, %v", g, err)
	}
}
