// Package fleet implements the mobile collector unit: a leveled hull with its
// own ledger, drones and collectors, ship modules, and exactly one activity
// at a time (idle, traveling, probing, or upgrading).
package fleet

import (
	"fmt"
	"math"
	"time"

	"github.com/talgya/starholdings/internal/construction"
	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/growth"
	"github.com/talgya/starholdings/internal/simerr"
	"github.com/talgya/starholdings/internal/world"
)

// ID identifies a fleet. Assigned by the owner from a counter.
type ID uint64

func (id ID) String() string { return fmt.Sprintf("F%d", uint64(id)) }

// Activity is the fleet's current exclusive state.
type Activity uint8

const (
	Idle Activity = iota
	Traveling
	Probing
	Upgrading
)

var activityNames = [...]string{"idle", "traveling", "probing", "upgrading"}

func (a Activity) String() string {
	if int(a) < len(activityNames) {
		return activityNames[a]
	}
	return "unknown"
}

// MarshalText encodes the activity by name.
func (a Activity) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Travel is an in-flight move between regions.
type Travel struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Path        []string  `json:"path,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// Probe is an in-flight exploration of the fleet's current region.
type Probe struct {
	Region string    `json:"region"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// HullSpec holds the static rules for a fleet hull.
type HullSpec struct {
	Upgrade  growth.Params `yaml:"upgrade"`
	MaxLevel int           `yaml:"max_level"`

	DroneRate     float64 `yaml:"drone_rate"`     // Metal per hour per drone
	CollectorRate float64 `yaml:"collector_rate"` // Gas per hour per collector
	UnitPower     float64 `yaml:"unit_power"`     // Power per drone or collector
	EnergyRegen   float64 `yaml:"energy_regen"`   // Energy per hour

	BaseStorage float64 `yaml:"base_storage"`
	BaseEnergy  float64 `yaml:"base_energy"`
	BasePower   float64 `yaml:"base_power"`
	CrewPerLvl  float64 `yaml:"crew_per_level"`

	StartDrones     int          `yaml:"start_drones"`
	StartCollectors int          `yaml:"start_collectors"`
	DroneCost       economy.Cost `yaml:"drone_cost"`
	CollectorCost   economy.Cost `yaml:"collector_cost"`
}

// DefaultHullSpec returns the reference freighter hull.
func DefaultHullSpec() HullSpec {
	return HullSpec{
		Upgrade: growth.Params{
			BaseCost:     economy.Cost{economy.Metal: 200, economy.Gas: 100},
			BaseDuration: 250, // 5 minutes at level 1
		},
		MaxLevel:        50,
		DroneRate:       10,
		CollectorRate:   8,
		UnitPower:       10,
		EnergyRegen:     5,
		BaseStorage:     1000,
		BaseEnergy:      100,
		BasePower:       100,
		CrewPerLvl:      20,
		StartDrones:     1,
		StartCollectors: 0,
		DroneCost:       economy.Cost{economy.Credits: 500},
		CollectorCost:   economy.Cost{economy.Credits: 750},
	}
}

// Fleet is a mobile collector unit.
type Fleet struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	ShipType string `json:"ship_type"`
	Location string `json:"location"`

	Hull       construction.Track `json:"hull"`
	Ledger     *economy.Ledger    `json:"ledger"`
	Drones     int                `json:"drones"`
	Collectors int                `json:"collectors"`
	Modules    []*Module          `json:"modules"`

	Travel *Travel `json:"travel,omitempty"`
	Probe  *Probe  `json:"probe,omitempty"`

	LastUpdate time.Time `json:"last_update"`

	Spec HullSpec `json:"-"`
}

// New creates a level-1 fleet at location with full energy.
func New(id ID, name, location string, spec HullSpec, now time.Time) *Fleet {
	f := &Fleet{
		ID:         id,
		Name:       name,
		ShipType:   "Freighter",
		Location:   location,
		Hull:       construction.Track{Level: 1},
		Ledger:     economy.NewLedger(0),
		Drones:     spec.StartDrones,
		Collectors: spec.StartCollectors,
		LastUpdate: now,
		Spec:       spec,
	}
	f.Refresh()
	f.Ledger.Add(economy.Energy, f.MaxEnergy())
	return f
}

// Level returns the hull level.
func (f *Fleet) Level() int { return f.Hull.Level }

// Activity derives the current state from which record is present.
func (f *Fleet) Activity() Activity {
	switch {
	case f.Travel != nil:
		return Traveling
	case f.Probe != nil:
		return Probing
	case f.Hull.Busy():
		return Upgrading
	}
	return Idle
}

// Level-derived limits.

func (f *Fleet) MaxDrones() int     { return 2 + f.Level() }
func (f *Fleet) MaxCollectors() int { return 1 + f.Level()/2 }

// CargoCapacity is the per-kind cargo limit before storage modules.
func (f *Fleet) CargoCapacity() float64 {
	return growth.Exp(f.Spec.BaseStorage, 1.5, f.Level())
}

func (f *Fleet) MaxEnergy() float64       { return growth.Exp(f.Spec.BaseEnergy, 1.2, f.Level()) }
func (f *Fleet) PowerGeneration() float64 { return growth.Exp(f.Spec.BasePower, 1.2, f.Level()) }
func (f *Fleet) CrewCapacity() float64    { return f.Spec.CrewPerLvl * float64(f.Level()) }

// PowerUsage sums drones, collectors, and active modules.
func (f *Fleet) PowerUsage() float64 {
	used := float64(f.Drones+f.Collectors) * f.Spec.UnitPower
	for _, m := range f.Modules {
		if m.Active {
			used += m.PowerUsage()
		}
	}
	return used
}

// CrewUsage sums crew assigned to active modules.
func (f *Fleet) CrewUsage() float64 {
	used := 0.0
	for _, m := range f.Modules {
		if m.Active {
			used += m.CrewRequired()
		}
	}
	return used
}

func (f *Fleet) AvailablePower() float64 { return f.PowerGeneration() - f.PowerUsage() }
func (f *Fleet) AvailableCrew() float64  { return f.CrewCapacity() - f.CrewUsage() }

// Refresh recomputes ledger capacities from level and active storage modules.
// Call after restoring a fleet or changing its level or modules.
func (f *Fleet) Refresh() {
	general := f.CargoCapacity()
	perKind := make(map[economy.Resource]float64)
	for _, m := range f.Modules {
		if !m.Active || m.Kind != Storage {
			continue
		}
		if m.Resource == "" {
			general += m.Capacity()
		} else {
			perKind[m.Resource] += m.Capacity()
		}
	}
	f.Ledger.DefaultCapacity = general
	f.Ledger.Capacities = make(map[economy.Resource]float64, len(perKind)+1)
	for kind, extra := range perKind {
		f.Ledger.Capacities[kind] = general + extra
	}
	f.Ledger.SetCapacity(economy.Energy, f.MaxEnergy())
	f.Ledger.SetUncapped(economy.Credits)
}

// Module returns the installed module with key, or nil.
func (f *Fleet) Module(key string) *Module {
	for _, m := range f.Modules {
		if m.Key == key {
			return m
		}
	}
	return nil
}

// TravelTo starts a move to dest lasting d.
func (f *Fleet) TravelTo(dest string, path []string, now time.Time, d time.Duration) error {
	const op = "fleet.travel"
	if a := f.Activity(); a != Idle {
		return simerr.Reject(op, simerr.ErrInvalidTransition, "%s is %s", f.Name, a)
	}
	if dest == f.Location {
		return simerr.Reject(op, simerr.ErrInvalidTarget, "%s is already at %s", f.Name, dest)
	}
	if d <= 0 {
		return simerr.Reject(op, simerr.ErrInvalidTarget, "travel time must be positive")
	}
	f.Travel = &Travel{
		Origin:      f.Location,
		Destination: dest,
		Path:        path,
		Start:       now,
		End:         now.Add(d),
	}
	return nil
}

// StartProbing begins exploring r, which must be the fleet's location and unexplored.
func (f *Fleet) StartProbing(r *world.Region, now time.Time, d time.Duration) error {
	const op = "fleet.probe"
	if a := f.Activity(); a != Idle {
		return simerr.Reject(op, simerr.ErrInvalidTransition, "%s is %s", f.Name, a)
	}
	if r == nil || r.ID != f.Location {
		return simerr.Reject(op, simerr.ErrInvalidTarget, "%s is not at the target region", f.Name)
	}
	if r.Explored() {
		return simerr.Reject(op, simerr.ErrInvalidTarget, "%s already explored", r.ID)
	}
	if d <= 0 {
		d = time.Millisecond
	}
	f.Probe = &Probe{Region: r.ID, Start: now, End: now.Add(d)}
	return nil
}

// StartUpgrade begins a hull upgrade paid from the fleet ledger.
func (f *Fleet) StartUpgrade(now time.Time, speed float64) error {
	const op = "fleet.upgrade"
	if a := f.Activity(); a != Idle {
		if a == Upgrading {
			return simerr.Reject(op, simerr.ErrAlreadyInProgress, "%s already upgrading", f.Name)
		}
		return simerr.Reject(op, simerr.ErrInvalidTransition, "%s is %s", f.Name, a)
	}
	return f.Hull.Start(op, f.Spec.Upgrade, f.Spec.MaxLevel, f.Ledger, now, speed)
}

// CancelUpgrade abandons the hull upgrade and refunds fraction of its cost.
func (f *Fleet) CancelUpgrade(fraction float64) (economy.Cost, error) {
	return f.Hull.Cancel("fleet.cancel", f.Ledger, fraction)
}

// NextUpgradeCost returns the price of the next hull level.
func (f *Fleet) NextUpgradeCost() economy.Cost {
	return growth.Cost(f.Spec.Upgrade, f.Level())
}

// BuyDrone adds one mining drone.
func (f *Fleet) BuyDrone() error {
	return f.buyUnit("fleet.buy_drone", &f.Drones, f.MaxDrones(), f.Spec.DroneCost)
}

// BuyCollector adds one gas collector.
func (f *Fleet) BuyCollector() error {
	return f.buyUnit("fleet.buy_collector", &f.Collectors, f.MaxCollectors(), f.Spec.CollectorCost)
}

func (f *Fleet) buyUnit(op string, count *int, limit int, cost economy.Cost) error {
	if *count >= limit {
		return simerr.Reject(op, simerr.ErrMaxLevel, "%s carries the maximum of %d", f.Name, limit)
	}
	if f.AvailablePower() < f.Spec.UnitPower {
		return simerr.Reject(op, simerr.ErrInsufficientResources, "%.0f power available", f.AvailablePower())
	}
	if !f.Ledger.Deduct(cost) {
		return simerr.Reject(op, simerr.ErrInsufficientResources, "need %v", cost)
	}
	*count++
	return nil
}

// InstallModule adds m to the ship, inactive.
func (f *Fleet) InstallModule(m *Module) error {
	if f.Module(m.Key) != nil {
		return simerr.Reject("fleet.install", simerr.ErrInvalidTarget, "%s already has %s", f.Name, m.Key)
	}
	m.Active = false
	f.Modules = append(f.Modules, m)
	return nil
}

// ToggleModule activates or deactivates a module. Activation requires enough
// spare power and crew.
func (f *Fleet) ToggleModule(key string, active bool) error {
	const op = "fleet.toggle"
	m := f.Module(key)
	if m == nil {
		return simerr.Reject(op, simerr.ErrNotFound, "%s has no module %s", f.Name, key)
	}
	if m.Active == active {
		return nil
	}
	if active {
		if f.AvailablePower() < m.PowerUsage() {
			return simerr.Reject(op, simerr.ErrInsufficientResources, "%s needs %.1f power, %.1f available", key, m.PowerUsage(), f.AvailablePower())
		}
		if f.AvailableCrew() < m.CrewRequired() {
			return simerr.Reject(op, simerr.ErrInsufficientResources, "%s needs %.0f crew, %.0f available", key, m.CrewRequired(), f.AvailableCrew())
		}
	}
	m.Active = active
	f.Refresh()
	return nil
}

// UpgradeModule starts an upgrade of the module with key. Module upgrades run
// alongside any fleet activity; an active module must still fit the power budget
// at its next level.
func (f *Fleet) UpgradeModule(key string, now time.Time, speed float64) error {
	const op = "module.upgrade"
	m := f.Module(key)
	if m == nil {
		return simerr.Reject(op, simerr.ErrNotFound, "%s has no module %s", f.Name, key)
	}
	if m.Active && !m.Upgrade.Busy() {
		extra := powerAt(m.BasePower, m.Level()+1) - m.PowerUsage()
		if extra > f.AvailablePower() {
			return simerr.Reject(op, simerr.ErrInsufficientResources, "%s at level %d needs %.1f more power", key, m.Level()+1, extra)
		}
	}
	return m.Upgrade.Start(op, m.Params, m.MaxLevel, f.Ledger, now, speed)
}

// Value appraises the fleet: hull, cargo at unit prices, credits, and units.
func (f *Fleet) Value(unit map[economy.Resource]float64) float64 {
	v := 1000*float64(f.Level()) + float64(f.Drones)*500 + float64(f.Collectors)*750
	for kind, amt := range f.Ledger.Amounts {
		switch {
		case kind == economy.Credits:
			v += amt
		case unit[kind] > 0:
			v += amt * unit[kind]
		}
	}
	return math.Floor(v)
}
