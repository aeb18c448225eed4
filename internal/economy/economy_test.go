package economy

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/talgya/starholdings/internal/simerr"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLedgerAddClampsToCapacity(t *testing.T) {
	l := NewLedger(1000)

	if got := l.Add(Metal, 500); got != 500 {
		t.Fatalf("first add: got %v, want 500", got)
	}
	if got := l.Add(Metal, 600); got != 500 {
		t.Fatalf("second add: got %v, want 500", got)
	}
	if l.Current(Metal) != 1000 {
		t.Fatalf("metal = %v, want 1000", l.Current(Metal))
	}
	if got := l.Add(Metal, 1); got != 0 {
		t.Errorf("add at capacity applied %v", got)
	}
	if got := l.Add(Metal, -5); got != 0 || l.Current(Metal) != 1000 {
		t.Errorf("negative add changed balance: applied %v, balance %v", got, l.Current(Metal))
	}
}

func TestLedgerAddNeverDecreases(t *testing.T) {
	l := NewLedger(100)
	l.Add(Gas, 90)
	l.SetCapacity(Gas, 50) // shrink below current balance

	before := l.Current(Gas)
	for _, amt := range []float64{10, 0, -3, math.NaN(), 1e9} {
		l.Add(Gas, amt)
		if l.Current(Gas) < before {
			t.Fatalf("add(%v) decreased balance from %v to %v", amt, before, l.Current(Gas))
		}
	}
	if l.Current(Gas) != 90 {
		t.Errorf("gas = %v, want 90 (banked resources kept)", l.Current(Gas))
	}
}

func TestLedgerRemoveClampsToBalance(t *testing.T) {
	l := NewLedger(1000)
	l.Add(Metal, 700)

	if got := l.Remove(Metal, 300); got != 300 {
		t.Fatalf("remove: got %v, want 300", got)
	}
	if got := l.Remove(Metal, 1000); got != 400 {
		t.Fatalf("over-remove: got %v, want 400", got)
	}
	if l.Current(Metal) != 0 {
		t.Errorf("metal = %v, want 0", l.Current(Metal))
	}
	if got := l.Remove(Crystal, 5); got != 0 {
		t.Errorf("remove of unseen kind returned %v", got)
	}
}

func TestLedgerDeductIsAtomic(t *testing.T) {
	l := NewLedger(1000)
	l.Add(Metal, 100)

	if l.Deduct(Cost{Metal: 50, Crystal: 10}) {
		t.Fatal("deduct succeeded without crystal")
	}
	if l.Current(Metal) != 100 {
		t.Fatalf("metal = %v after failed deduct, want 100", l.Current(Metal))
	}

	l.Add(Crystal, 10)
	if !l.Deduct(Cost{Metal: 50, Crystal: 10}) {
		t.Fatal("deduct failed with enough balance")
	}
	if l.Current(Metal) != 50 || l.Current(Crystal) != 0 {
		t.Errorf("after deduct: metal=%v crystal=%v", l.Current(Metal), l.Current(Crystal))
	}
}

func TestLedgerUncappedKinds(t *testing.T) {
	l := NewLedger(10)
	l.SetUncapped(Credits)
	if got := l.Add(Credits, 1e6); got != 1e6 {
		t.Errorf("credits add clamped to %v", got)
	}
	if got := l.Add(Fuel, 50); got != 10 {
		t.Errorf("fuel add = %v, want default capacity 10", got)
	}
}

func TestLedgerTotal(t *testing.T) {
	l := NewLedger(1000)
	l.Add(Metal, 40)
	l.Add(Gas, 25)
	l.Add(Credits, 500)
	l.Add(Energy, 80)
	tests := []struct {
		except []Resource
		want   float64
	}{
		{nil, 645},
		{[]Resource{Credits}, 145},
		{[]Resource{Credits, Energy}, 65},
		{[]Resource{Credits, Energy, Metal, Gas}, 0},
	}
	for _, tt := range tests {
		if got := l.Total(tt.except...); got != tt.want {
			t.Errorf("Total(%v) = %v, want %v", tt.except, got, tt.want)
		}
	}
}

func TestLedgerCloneIsIndependent(t *testing.T) {
	l := NewLedger(100)
	l.Add(Metal, 10)
	c := l.Clone()
	c.Add(Metal, 10)
	if l.Current(Metal) != 10 {
		t.Errorf("clone shares state: original metal = %v", l.Current(Metal))
	}
}

func testStation(qty float64) *Station {
	return NewStation("Alpha", []Trade{
		{Resource: Metal, BuyPrice: 8, SellPrice: 10, Quantity: qty},
	}, DefaultMarketPolicy(), t0)
}

func TestUpdatePricesElasticityDirection(t *testing.T) {
	tests := []struct {
		name     string
		qty      float64
		buyDown  bool
		sellUp   bool
		constant bool
	}{
		{name: "low stock", qty: 150, buyDown: true, sellUp: true},
		{name: "high stock", qty: 900},
		{name: "balanced", qty: 500, constant: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testStation(tt.qty)
			tr := st.Trades[Metal]
			buy, sell := tr.BuyPrice, tr.SellPrice

			if !st.UpdatePrices(t0.Add(time.Hour)) {
				t.Fatal("update not applied")
			}
			switch {
			case tt.constant:
				if tr.BuyPrice != buy || tr.SellPrice != sell {
					t.Errorf("prices moved: buy %v→%v sell %v→%v", buy, tr.BuyPrice, sell, tr.SellPrice)
				}
			case tt.buyDown:
				if !(tr.BuyPrice < buy) || !(tr.SellPrice > sell) {
					t.Errorf("low stock: buy %v→%v sell %v→%v", buy, tr.BuyPrice, sell, tr.SellPrice)
				}
			default:
				if !(tr.BuyPrice > buy) || !(tr.SellPrice < sell) {
					t.Errorf("high stock: buy %v→%v sell %v→%v", buy, tr.BuyPrice, sell, tr.SellPrice)
				}
			}
		})
	}
}

func TestUpdatePricesOncePerBoundary(t *testing.T) {
	st := testStation(100)
	now := t0.Add(time.Hour)
	st.UpdatePrices(now)
	buy := st.Trades[Metal].BuyPrice

	if st.UpdatePrices(now) {
		t.Error("second call with same time applied again")
	}
	if st.UpdatePrices(now.Add(time.Second)) {
		t.Error("call within the same interval applied again")
	}
	if st.Trades[Metal].BuyPrice != buy {
		t.Errorf("price drifted: %v → %v", buy, st.Trades[Metal].BuyPrice)
	}
	if !st.UpdatePrices(now.Add(11 * time.Minute)) {
		t.Error("next interval did not apply")
	}
}

func TestRestock(t *testing.T) {
	st := testStation(950)
	if st.Restock(t0.Add(59 * time.Minute)) {
		t.Fatal("restocked before interval")
	}
	if !st.Restock(t0.Add(time.Hour)) {
		t.Fatal("no restock after interval")
	}
	if got := st.Trades[Metal].Quantity; got != 1000 {
		t.Errorf("quantity = %v, want clamp at 1000", got)
	}
	if !st.LastRestock.Equal(t0.Add(time.Hour)) {
		t.Errorf("last restock = %v", st.LastRestock)
	}
}

func TestSellToShipAtomic(t *testing.T) {
	st := testStation(500)
	ship := NewLedger(1000)
	ship.SetUncapped(Credits)
	ship.Add(Credits, 50)

	_, err := st.SellToShip(Metal, 10, ship) // costs 100
	if !errors.Is(err, simerr.ErrInsufficientResources) {
		t.Fatalf("err = %v, want insufficient resources", err)
	}
	if ship.Current(Credits) != 50 || st.Trades[Metal].Quantity != 500 || ship.Current(Metal) != 0 {
		t.Fatal("failed purchase mutated state")
	}

	total, err := st.SellToShip(Metal, 5, ship)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if total != 50 || ship.Current(Credits) != 0 || ship.Current(Metal) != 5 || st.Trades[Metal].Quantity != 495 {
		t.Errorf("after purchase: total=%v credits=%v metal=%v stock=%v",
			total, ship.Current(Credits), ship.Current(Metal), st.Trades[Metal].Quantity)
	}
}

func TestBuyFromShipRespectsStationCapacity(t *testing.T) {
	st := testStation(995)
	ship := NewLedger(1000)
	ship.SetUncapped(Credits)
	ship.Add(Metal, 20)

	if _, err := st.BuyFromShip(Metal, 10, ship); !errors.Is(err, simerr.ErrInvalidTarget) {
		t.Fatalf("err = %v, want invalid target", err)
	}
	if ship.Current(Metal) != 20 {
		t.Fatal("failed sale mutated ship")
	}
	total, err := st.BuyFromShip(Metal, 5, ship)
	if err != nil {
		t.Fatalf("sale: %v", err)
	}
	if total != 40 || ship.Current(Credits) != 40 || ship.Current(Metal) != 15 {
		t.Errorf("after sale: total=%v credits=%v metal=%v", total, ship.Current(Credits), ship.Current(Metal))
	}
	if _, err := st.BuyFromShip(Gas, 1, ship); !errors.Is(err, simerr.ErrInvalidTarget) {
		t.Errorf("untraded resource err = %v", err)
	}
}

func TestMissionLifecycle(t *testing.T) {
	st := testStation(500)
	m := NewMission(Mission{
		Name:         "Resource Gathering",
		Requirements: Cost{Metal: 100, Gas: 50},
		Rewards:      Cost{Credits: 1000, RefinedMetal: 20},
		TimeLimit:    24,
	})
	st.Missions = append(st.Missions, m)

	ship := NewLedger(1000)
	ship.SetUncapped(Credits)

	if _, err := m.Deliver(ship, t0); !errors.Is(err, simerr.ErrInvalidTransition) {
		t.Fatalf("deliver before accept: %v", err)
	}
	got, err := st.Accept(m.ID, t0)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if len(st.Missions) != 0 {
		t.Error("accepted mission still on the board")
	}
	if _, err := st.Accept(m.ID, t0); !errors.Is(err, simerr.ErrNotFound) {
		t.Errorf("double accept: %v", err)
	}

	ship.Add(Metal, 100)
	if _, err := got.Deliver(ship, t0.Add(time.Hour)); !errors.Is(err, simerr.ErrInsufficientResources) {
		t.Fatalf("deliver without gas: %v", err)
	}
	if ship.Current(Metal) != 100 {
		t.Fatal("failed delivery took metal")
	}

	ship.Add(Gas, 50)
	rewards, err := got.Deliver(ship, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if rewards[Credits] != 1000 || ship.Current(RefinedMetal) != 20 || ship.Current(Metal) != 0 {
		t.Errorf("rewards=%v ledger=%v", rewards, ship.Amounts)
	}
	if _, err := got.Deliver(ship, t0.Add(3*time.Hour)); !errors.Is(err, simerr.ErrInvalidTransition) {
		t.Errorf("second delivery: %v", err)
	}
}

func TestMissionExpiry(t *testing.T) {
	m := NewMission(Mission{Name: "x", Requirements: Cost{}, TimeLimit: 24})
	m.AcceptedAt = t0
	if m.Expired(t0.Add(24 * time.Hour)) {
		t.Error("expired exactly at limit")
	}
	if !m.Expired(t0.Add(24*time.Hour + time.Second)) {
		t.Error("not expired after limit")
	}
	if m.TimeRemaining(t0.Add(48*time.Hour)) != 0 {
		t.Error("negative time remaining")
	}
	if _, err := m.Deliver(NewLedger(0), t0.Add(25*time.Hour)); !errors.Is(err, simerr.ErrInvalidTransition) {
		t.Errorf("late delivery: %v", err)
	}
}
