package api

import (
	"sort"
	"time"

	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/engine"
	"github.com/talgya/starholdings/internal/fleet"
	"github.com/talgya/starholdings/internal/world"
)

type buildingView struct {
	Key        string           `json:"key"`
	Name       string           `json:"name"`
	Level      int              `json:"level"`
	MaxLevel   int              `json:"max_level"`
	Resource   economy.Resource `json:"resource,omitempty"`
	Production float64          `json:"production"`
	Capacity   float64          `json:"capacity,omitempty"`
	NextCost   economy.Cost     `json:"next_cost"`
	Upgrading  bool             `json:"upgrading"`
	Progress   float64          `json:"progress,omitempty"`
	Remaining  float64          `json:"remaining_seconds,omitempty"`
}

type siteView struct {
	Resources map[economy.Resource]float64 `json:"resources"`
	Rates     map[economy.Resource]float64 `json:"rates"`
	Storage   float64                      `json:"storage"`
	Energy    float64                      `json:"energy"`
	Buildings []buildingView               `json:"buildings"`
}

type moduleView struct {
	Key       string           `json:"key"`
	Name      string           `json:"name"`
	Kind      fleet.Kind       `json:"kind"`
	Resource  economy.Resource `json:"resource,omitempty"`
	Level     int              `json:"level"`
	Active    bool             `json:"active"`
	Rate      float64          `json:"rate,omitempty"`
	Capacity  float64          `json:"capacity,omitempty"`
	Power     float64          `json:"power"`
	Crew      float64          `json:"crew"`
	NextCost  economy.Cost     `json:"next_cost"`
	Upgrading bool             `json:"upgrading"`
	Progress  float64          `json:"progress,omitempty"`
}

type fleetView struct {
	ID            fleet.ID                     `json:"id"`
	Name          string                       `json:"name"`
	ShipType      string                       `json:"ship_type"`
	Location      string                       `json:"location"`
	Activity      fleet.Activity               `json:"activity"`
	Level         int                          `json:"level"`
	Selected      bool                         `json:"selected"`
	Drones        int                          `json:"drones"`
	MaxDrones     int                          `json:"max_drones"`
	Collectors    int                          `json:"collectors"`
	MaxCollectors int                          `json:"max_collectors"`
	Cargo         map[economy.Resource]float64 `json:"cargo"`
	CargoCapacity float64                      `json:"cargo_capacity"`
	CargoLoad     float64                      `json:"cargo_load"`
	MaxEnergy     float64                      `json:"max_energy"`
	Power         float64                      `json:"power"`
	PowerUsage    float64                      `json:"power_usage"`
	Crew          float64                      `json:"crew"`
	CrewUsage     float64                      `json:"crew_usage"`
	Rates         map[economy.Resource]float64 `json:"rates"`
	Destination   string                       `json:"destination,omitempty"`
	ArrivesAt     *time.Time                   `json:"arrives_at,omitempty"`
	ProbeEndsAt   *time.Time                   `json:"probe_ends_at,omitempty"`
	Progress      float64                      `json:"progress,omitempty"`
	NextCost      economy.Cost                 `json:"next_upgrade_cost"`
	Modules       []moduleView                 `json:"modules"`
	Value         float64                      `json:"value"`
}

type depositView struct {
	Index      int              `json:"index"`
	Discovered bool             `json:"discovered"`
	Resource   economy.Resource `json:"resource,omitempty"`
	BaseAmount float64          `json:"base_amount,omitempty"`
	Quality    float64          `json:"quality,omitempty"`
	GrantedTo  string           `json:"granted_to,omitempty"`
	GrantEnds  *time.Time       `json:"grant_ends,omitempty"`
}

type regionView struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Level      int              `json:"level"`
	X          float64          `json:"x"`
	Y          float64          `json:"y"`
	Visibility world.Visibility `json:"visibility"`
	Links      []string         `json:"links"`
	Deposits   []depositView    `json:"deposits"`
}

type claimView struct {
	Region      string           `json:"region"`
	State       world.ClaimState `json:"state"`
	Corporation string           `json:"corporation,omitempty"`
	Expiry      *time.Time       `json:"expiry,omitempty"`
	Remaining   float64          `json:"remaining_seconds"`
}

type missionView struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Requirements economy.Cost `json:"requirements"`
	Rewards      economy.Cost `json:"rewards"`
	TimeLimit    float64      `json:"time_limit_hours"`
	Accepted     bool         `json:"accepted"`
	Completed    bool         `json:"completed"`
	Expired      bool         `json:"expired"`
	Remaining    float64      `json:"remaining_seconds,omitempty"`
}

type marketView struct {
	Station    string              `json:"station"`
	Trades     []economy.Trade     `json:"trades"`
	Missions   []missionView       `json:"missions"`
	Blueprints []economy.Blueprint `json:"blueprints"`
}

func copyAmounts(m map[economy.Resource]float64) map[economy.Resource]float64 {
	out := make(map[economy.Resource]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }

func buildSite(sim *engine.Simulation) siteView {
	now := sim.LastUpdate
	v := siteView{
		Resources: copyAmounts(sim.Site.Ledger.Amounts),
		Rates:     sim.Site.Rates(),
		Storage:   sim.Site.StorageCapacity(),
		Energy:    sim.Site.EnergyBudget(),
	}
	for _, b := range sim.Site.Buildings {
		bv := buildingView{
			Key:        b.Key,
			Name:       b.Spec.Name,
			Level:      b.Level(),
			MaxLevel:   b.Spec.MaxLevel,
			Resource:   b.Spec.Resource,
			Production: b.Production(),
			NextCost:   b.NextCost(),
		}
		if b.Spec.Storage {
			bv.Capacity = b.Capacity()
		}
		if p := b.Upgrade.Project; p != nil {
			bv.Upgrading = true
			bv.Progress = p.Progress(now)
			bv.Remaining = p.Remaining(now).Seconds()
		}
		v.Buildings = append(v.Buildings, bv)
	}
	return v
}

func buildFleet(sim *engine.Simulation, f *fleet.Fleet, harvest []fleet.Harvest) fleetView {
	now := sim.LastUpdate
	v := fleetView{
		ID:            f.ID,
		Name:          f.Name,
		ShipType:      f.ShipType,
		Location:      f.Location,
		Activity:      f.Activity(),
		Level:         f.Level(),
		Selected:      f.ID == sim.Selected,
		Drones:        f.Drones,
		MaxDrones:     f.MaxDrones(),
		Collectors:    f.Collectors,
		MaxCollectors: f.MaxCollectors(),
		Cargo:         copyAmounts(f.Ledger.Amounts),
		CargoCapacity: f.CargoCapacity(),
		CargoLoad:     f.Ledger.Total(economy.Credits, economy.Energy),
		MaxEnergy:     f.MaxEnergy(),
		Power:         f.PowerGeneration(),
		PowerUsage:    f.PowerUsage(),
		Crew:          f.CrewCapacity(),
		CrewUsage:     f.CrewUsage(),
		Rates:         f.Rates(now, harvest),
		NextCost:      f.NextUpgradeCost(),
		Value:         f.Value(sim.Config().Policy.UnitValues),
	}
	if t := f.Travel; t != nil {
		v.Destination = t.Destination
		v.ArrivesAt = timePtr(t.End)
	}
	if p := f.Probe; p != nil {
		v.ProbeEndsAt = timePtr(p.End)
	}
	if p := f.Hull.Project; p != nil {
		v.Progress = p.Progress(now)
	}
	for _, m := range f.Modules {
		mv := moduleView{
			Key:      m.Key,
			Name:     m.Name,
			Kind:     m.Kind,
			Resource: m.Resource,
			Level:    m.Level(),
			Active:   m.Active,
			Rate:     m.Rate(),
			Capacity: m.Capacity(),
			Power:    m.PowerUsage(),
			Crew:     m.CrewRequired(),
			NextCost: m.NextCost(),
		}
		if p := m.Upgrade.Project; p != nil {
			mv.Upgrading = true
			mv.Progress = p.Progress(now)
		}
		v.Modules = append(v.Modules, mv)
	}
	return v
}

func buildFleets(sim *engine.Simulation) []fleetView {
	harvest := sim.Harvest(sim.LastUpdate)
	out := make([]fleetView, 0, len(sim.Fleets))
	for _, f := range sim.Fleets {
		out = append(out, buildFleet(sim, f, harvest))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func buildRegions(sim *engine.Simulation) []regionView {
	now := sim.LastUpdate
	var out []regionView
	for _, r := range sim.World.Sorted() {
		rv := regionView{
			ID:         r.ID,
			Name:       r.Name,
			Level:      r.Level,
			X:          r.Position.X,
			Y:          r.Position.Y,
			Visibility: r.Visibility,
			Links:      []string{},
		}
		for _, n := range sim.World.Neighbors(r.ID) {
			rv.Links = append(rv.Links, n.ID)
		}
		granted := make(map[int]*world.Grant)
		for _, g := range r.ActiveGrants(now) {
			granted[g.Deposit] = g
		}
		for i, d := range r.Deposits {
			dv := depositView{Index: i, Discovered: d.Discovered}
			if d.Discovered {
				dv.Resource = d.Resource
				dv.BaseAmount = d.BaseAmount
				dv.Quality = d.Quality
			}
			if g := granted[i]; g != nil {
				dv.GrantedTo = g.Holder
				dv.GrantEnds = timePtr(g.Expiry())
			}
			rv.Deposits = append(rv.Deposits, dv)
		}
		out = append(out, rv)
	}
	return out
}

// buildClaims reports the newest claim record per region.
func buildClaims(sim *engine.Simulation) []claimView {
	now := sim.LastUpdate
	latest := make(map[string]*world.Claim)
	var order []string
	for _, c := range sim.Claims {
		if _, ok := latest[c.Region]; !ok {
			order = append(order, c.Region)
		}
		latest[c.Region] = c
	}
	out := make([]claimView, 0, len(order))
	for _, region := range order {
		c := latest[region]
		cv := claimView{
			Region:      region,
			State:       c.State(now),
			Corporation: c.Corporation,
			Remaining:   c.TimeRemaining(now).Seconds(),
		}
		if c.Claimed() {
			cv.Expiry = timePtr(c.Expiry)
		}
		if cv.State == world.ClaimExpired {
			cv.State = world.ClaimAvailable
		}
		out = append(out, cv)
	}
	return out
}

func buildMission(m *economy.Mission, now time.Time) missionView {
	return missionView{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Requirements: m.Requirements,
		Rewards:      m.Rewards,
		TimeLimit:    m.TimeLimit,
		Accepted:     m.Accepted(),
		Completed:    m.Completed(),
		Expired:      m.Expired(now),
		Remaining:    m.TimeRemaining(now).Seconds(),
	}
}

func buildMarket(sim *engine.Simulation) marketView {
	now := sim.LastUpdate
	v := marketView{
		Station:    sim.Station.Name,
		Blueprints: append([]economy.Blueprint(nil), sim.Station.Blueprints...),
	}
	for _, t := range sim.Station.SortedTrades() {
		v.Trades = append(v.Trades, *t)
	}
	for _, m := range sim.Station.Missions {
		v.Missions = append(v.Missions, buildMission(m, now))
	}
	return v
}

func buildMissions(sim *engine.Simulation) []missionView {
	out := make([]missionView, 0, len(sim.Missions))
	for _, m := range sim.Missions {
		out = append(out, buildMission(m, sim.LastUpdate))
	}
	return out
}
