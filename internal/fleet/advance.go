package fleet

import (
	"fmt"
	"sort"
	"time"

	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/world"
)

// Regions resolves region IDs for probe completion.
type Regions interface {
	Region(id string) *world.Region
}

// Harvest is a deposit the fleet may collect from while idle at Region until Until.
type Harvest struct {
	Region  string
	Deposit *world.Deposit
	Until   time.Time
}

// Event records a transition resolved during Advance.
type Event struct {
	At     time.Time `json:"at"`
	Fleet  ID        `json:"fleet"`
	Kind   string    `json:"kind"` // "arrived", "probed", "upgraded", "module_upgraded"
	Detail string    `json:"detail"`
}

// Advance brings the fleet forward to to. Time is cut into segments at every
// completion and grant expiry so each segment integrates at constant rates.
// Calling Advance again with the same or an earlier time does nothing.
func (f *Fleet) Advance(to time.Time, speed float64, regions Regions, harvest []Harvest) []Event {
	if !to.After(f.LastUpdate) {
		return nil
	}
	cur := f.LastUpdate
	events := f.resolve(cur, regions)
	for cur.Before(to) {
		next := to
		for _, b := range f.boundaries(harvest) {
			if b.After(cur) && b.Before(next) {
				next = b
			}
		}
		f.integrate(cur, next, speed, harvest)
		cur = next
		events = append(events, f.resolve(cur, regions)...)
	}
	f.LastUpdate = to
	return events
}

func (f *Fleet) boundaries(harvest []Harvest) []time.Time {
	var out []time.Time
	if f.Travel != nil {
		out = append(out, f.Travel.End)
	}
	if f.Probe != nil {
		out = append(out, f.Probe.End)
	}
	if end, ok := f.Hull.EndsAt(); ok {
		out = append(out, end)
	}
	for _, m := range f.Modules {
		if end, ok := m.Upgrade.EndsAt(); ok {
			out = append(out, end)
		}
	}
	for _, h := range harvest {
		out = append(out, h.Until)
	}
	return out
}

// resolve applies every completion due at or before at.
func (f *Fleet) resolve(at time.Time, regions Regions) []Event {
	var events []Event
	if t := f.Travel; t != nil && !at.Before(t.End) {
		f.Location = t.Destination
		f.Travel = nil
		events = append(events, Event{At: t.End, Fleet: f.ID, Kind: "arrived", Detail: t.Destination})
	}
	if p := f.Probe; p != nil && !at.Before(p.End) {
		f.Probe = nil
		if r := regions.Region(p.Region); r != nil && r.MarkExplored() {
			events = append(events, Event{At: p.End, Fleet: f.ID, Kind: "probed", Detail: p.Region})
		}
	}
	if end, ok := f.Hull.EndsAt(); ok {
		if done, _ := f.Hull.Poll(at); done {
			f.Refresh()
			events = append(events, Event{At: end, Fleet: f.ID, Kind: "upgraded", Detail: fmt.Sprintf("level %d", f.Level())})
		}
	}
	for _, m := range f.Modules {
		end, ok := m.Upgrade.EndsAt()
		if !ok {
			continue
		}
		if done, _ := m.Upgrade.Poll(at); done {
			f.Refresh()
			events = append(events, Event{At: end, Fleet: f.ID, Kind: "module_upgraded", Detail: fmt.Sprintf("%s level %d", m.Key, m.Level())})
		}
	}
	return events
}

// integrate applies constant-rate production over [from, to). Energy
// regenerates in any state; collection and production run only while idle.
func (f *Fleet) integrate(from, to time.Time, speed float64, harvest []Harvest) {
	if !(speed > 0) {
		return
	}
	hours := to.Sub(from).Hours() * speed
	f.Ledger.Add(economy.Energy, f.Spec.EnergyRegen*hours)
	if f.Activity() != Idle {
		return
	}

	rates := f.Rates(from, harvest)
	kinds := make([]economy.Resource, 0, len(rates))
	for k := range rates {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		f.Ledger.Add(k, rates[k]*hours)
	}

	for _, m := range f.Modules {
		if !m.Active || m.Kind != Production {
			continue
		}
		out := m.Rate() * hours
		if m.Input != "" && m.InputRatio > 0 {
			if limit := f.Ledger.Current(m.Input) / m.InputRatio; out > limit {
				out = limit
			}
		}
		if room := f.Ledger.Room(m.Resource); out > room {
			out = room
		}
		if out <= 0 {
			continue
		}
		if m.Input != "" && m.InputRatio > 0 {
			f.Ledger.Remove(m.Input, out*m.InputRatio)
		}
		f.Ledger.Add(m.Resource, out)
	}
}

// Rates returns the hourly collection per resource at the current location,
// assuming the fleet is idle. Drones and collectors mine the best granted
// deposit of their kind, falling back to the hull base rate. Collector modules
// are scaled by that deposit's quality.
func (f *Fleet) Rates(at time.Time, harvest []Harvest) map[economy.Resource]float64 {
	rates := make(map[economy.Resource]float64)
	best := func(kind economy.Resource) *world.Deposit {
		var pick *world.Deposit
		for _, h := range harvest {
			if h.Region != f.Location || !at.Before(h.Until) || h.Deposit.Resource != kind {
				continue
			}
			if pick == nil || h.Deposit.CollectionRate(f.Level()) > pick.CollectionRate(f.Level()) {
				pick = h.Deposit
			}
		}
		return pick
	}
	unit := func(kind economy.Resource, base float64) float64 {
		if d := best(kind); d != nil {
			return d.CollectionRate(f.Level())
		}
		return base
	}

	if f.Drones > 0 {
		rates[economy.Metal] += float64(f.Drones) * unit(economy.Metal, f.Spec.DroneRate)
	}
	if f.Collectors > 0 {
		rates[economy.Gas] += float64(f.Collectors) * unit(economy.Gas, f.Spec.CollectorRate)
	}
	for _, m := range f.Modules {
		if !m.Active || m.Kind != Collector {
			continue
		}
		r := m.Rate()
		if d := best(m.Resource); d != nil {
			r *= d.Quality
		}
		rates[m.Resource] += r
	}
	return rates
}
