package economy

import (
	"sort"
	"time"

	"github.com/talgya/starholdings/internal/simerr"
)

// Trade is the station's book for one resource.
type Trade struct {
	Resource  Resource `json:"resource" yaml:"resource"`
	BuyPrice  float64  `json:"buy_price" yaml:"buy_price"`   // Station pays the ship
	SellPrice float64  `json:"sell_price" yaml:"sell_price"` // Ship pays the station
	Quantity  float64  `json:"quantity" yaml:"quantity"`     // Station stock, 0..capacity

	LastUpdate time.Time `json:"last_update" yaml:"-"`
}

// MarketPolicy holds the elasticity and restock constants.
type MarketPolicy struct {
	Capacity        float64 `json:"capacity" yaml:"capacity"`
	LowThreshold    float64 `json:"low_threshold" yaml:"low_threshold"`
	HighThreshold   float64 `json:"high_threshold" yaml:"high_threshold"`
	Drift           float64 `json:"drift" yaml:"drift"` // 0.05 → prices move 5% per update
	RestockAmount   float64 `json:"restock_amount" yaml:"restock_amount"`
	RestockInterval float64 `json:"restock_interval_hours" yaml:"restock_interval_hours"`
	PriceInterval   float64 `json:"price_interval_minutes" yaml:"price_interval_minutes"`
}

// DefaultMarketPolicy returns the reference station policy.
func DefaultMarketPolicy() MarketPolicy {
	return MarketPolicy{
		Capacity:        1000,
		LowThreshold:    200,
		HighThreshold:   800,
		Drift:           0.05,
		RestockAmount:   100,
		RestockInterval: 1,
		PriceInterval:   10,
	}
}

func (p MarketPolicy) restockEvery() time.Duration {
	return time.Duration(p.RestockInterval * float64(time.Hour))
}

func (p MarketPolicy) priceEvery() time.Duration {
	d := time.Duration(p.PriceInterval * float64(time.Minute))
	if d <= 0 {
		d = time.Minute
	}
	return d
}

// Station is a trading post with a market, mission board, and blueprint shop.
type Station struct {
	Name   string              `json:"name"`
	Trades map[Resource]*Trade `json:"trades"`

	LastRestock   time.Time `json:"last_restock"`
	LastPriceTick int64     `json:"last_price_tick"` // Index of the last price boundary applied

	Missions   []*Mission  `json:"missions"`
	Blueprints []Blueprint `json:"blueprints"`

	Policy MarketPolicy `json:"-"`
}

// NewStation creates a station with the given trades. Restock timing starts at now.
func NewStation(name string, trades []Trade, policy MarketPolicy, now time.Time) *Station {
	st := &Station{
		Name:        name,
		Trades:      make(map[Resource]*Trade, len(trades)),
		LastRestock: now,
		Policy:      policy,
	}
	for _, t := range trades {
		t := t
		t.LastUpdate = now
		if t.Quantity > policy.Capacity {
			t.Quantity = policy.Capacity
		}
		if t.Quantity < 0 {
			t.Quantity = 0
		}
		st.Trades[t.Resource] = &t
	}
	return st
}

// SortedTrades returns the trades ordered by resource name.
func (st *Station) SortedTrades() []*Trade {
	out := make([]*Trade, 0, len(st.Trades))
	for _, t := range st.Trades {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// UpdatePrices nudges prices according to stock levels. It applies at most once
// per price interval boundary, so repeated calls within one interval are no-ops.
// Returns true if prices were updated.
func (st *Station) UpdatePrices(now time.Time) bool {
	tick := now.UnixNano() / int64(st.Policy.priceEvery())
	if tick <= st.LastPriceTick {
		return false
	}
	st.LastPriceTick = tick

	up := 1 + st.Policy.Drift
	down := 1 - st.Policy.Drift
	for _, t := range st.Trades {
		switch {
		case t.Quantity < st.Policy.LowThreshold:
			// Scarce: pay less, charge more.
			t.BuyPrice *= down
			t.SellPrice *= up
		case t.Quantity > st.Policy.HighThreshold:
			t.BuyPrice *= up
			t.SellPrice *= down
		}
		t.LastUpdate = now
	}
	return true
}

// Restock raises every trade toward capacity once the restock interval has passed.
func (st *Station) Restock(now time.Time) bool {
	if now.Sub(st.LastRestock) < st.Policy.restockEvery() {
		return false
	}
	for _, t := range st.Trades {
		if t.Quantity < st.Policy.Capacity {
			t.Quantity += st.Policy.RestockAmount
			if t.Quantity > st.Policy.Capacity {
				t.Quantity = st.Policy.Capacity
			}
		}
	}
	st.LastRestock = now
	return true
}

// SellToShip moves amount of kind from the station to ship in exchange for credits.
// Returns the total price paid by the ship.
func (st *Station) SellToShip(kind Resource, amount float64, ship *Ledger) (float64, error) {
	const op = "market.buy"
	t, err := st.trade(op, kind, amount)
	if err != nil {
		return 0, err
	}
	if t.Quantity < amount {
		return 0, simerr.Reject(op, simerr.ErrInsufficientResources, "station has %.0f %s", t.Quantity, kind)
	}
	total := amount * t.SellPrice
	if ship.Current(Credits) < total {
		return 0, simerr.Reject(op, simerr.ErrInsufficientResources, "need %.2f credits", total)
	}
	if ship.Room(kind) < amount {
		return 0, simerr.Reject(op, simerr.ErrInsufficientResources, "ship storage full for %s", kind)
	}

	t.Quantity -= amount
	ship.Remove(Credits, total)
	ship.Add(kind, amount)
	return total, nil
}

// BuyFromShip moves amount of kind from ship into the station and pays the ship.
// Returns the total credits paid out.
func (st *Station) BuyFromShip(kind Resource, amount float64, ship *Ledger) (float64, error) {
	const op = "market.sell"
	t, err := st.trade(op, kind, amount)
	if err != nil {
		return 0, err
	}
	if t.Quantity+amount > st.Policy.Capacity {
		return 0, simerr.Reject(op, simerr.ErrInvalidTarget, "station storage full for %s", kind)
	}
	if ship.Current(kind) < amount {
		return 0, simerr.Reject(op, simerr.ErrInsufficientResources, "ship has %.2f %s", ship.Current(kind), kind)
	}
	total := amount * t.BuyPrice
	if ship.Room(Credits) < total {
		return 0, simerr.Reject(op, simerr.ErrInsufficientResources, "ship cannot hold %.2f credits", total)
	}

	t.Quantity += amount
	ship.Remove(kind, amount)
	ship.Add(Credits, total)
	return total, nil
}

func (st *Station) trade(op string, kind Resource, amount float64) (*Trade, error) {
	t, ok := st.Trades[kind]
	if !ok {
		return nil, simerr.Reject(op, simerr.ErrInvalidTarget, "%s is not traded here", kind)
	}
	if !(amount > 0) {
		return nil, simerr.Reject(op, simerr.ErrInvalidTarget, "amount must be positive")
	}
	return t, nil
}
