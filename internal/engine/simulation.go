// Simulation ties together the site, fleets, territory and station and
// brings them forward to a caller-supplied time.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/starholdings/internal/config"
	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/entropy"
	"github.com/talgya/starholdings/internal/fleet"
	"github.com/talgya/starholdings/internal/world"
)

// Simulation holds the complete game state. Every exported method takes the
// lock; commands catch up to their now before acting.
type Simulation struct {
	mu sync.RWMutex

	Corporation string             `json:"corporation"`
	Site        *Site              `json:"site"`
	Fleets      []*fleet.Fleet     `json:"fleets"`
	NextFleetID fleet.ID           `json:"next_fleet_id"`
	Selected    fleet.ID           `json:"selected"`
	World       *world.Graph       `json:"world"`
	Station     *economy.Station   `json:"station"`
	Claims      []*world.Claim     `json:"claims"`   // Offers and activations, newest last per region
	Missions    []*economy.Mission `json:"missions"` // Accepted by the corporation
	Events      []Event            `json:"events"`
	LastUpdate  time.Time          `json:"last_update"`
	Speed       float64            `json:"speed"`

	cfg  config.Config
	scan *world.ScanPolicy
	roll entropy.Source

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// Event is a notable occurrence, kept in a bounded recent list.
type Event struct {
	Time        time.Time `json:"time"`
	Description string    `json:"description"`
	Category    string    `json:"category"` // "construction", "fleet", "territory", "market", "mission"
}

// New generates a fresh game at now.
func New(cfg config.Config, roll entropy.Source, now time.Time) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scan, err := world.CompileScanPolicy(cfg.Policy.Discovery)
	if err != nil {
		return nil, err
	}
	territory, err := world.Generate(cfg.Territory)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		Corporation: cfg.Corporation,
		Site:        NewSite(cfg, now),
		NextFleetID: 1,
		World:       territory,
		Station:     economy.NewStation(cfg.Station, cfg.Trades, cfg.Market, now),
		LastUpdate:  now,
		Speed:       cfg.Server.Speed,
		cfg:         cfg,
		scan:        scan,
		roll:        roll,
		subs:        make(map[int]chan Event),
	}
	for _, tmpl := range cfg.Missions {
		s.Station.Missions = append(s.Station.Missions, economy.NewMission(tmpl))
	}
	s.Station.Blueprints = append(s.Station.Blueprints, cfg.Blueprints...)
	for _, r := range s.World.Sorted() {
		if r.ID != s.World.Home {
			s.Claims = append(s.Claims, world.NewClaimOffer(r.ID, cfg.Policy.ClaimDuration))
		}
	}

	f, err := s.newFleet(cfg.FleetName, now)
	if err != nil {
		return nil, err
	}
	s.Selected = f.ID

	slog.Info("new game",
		"corporation", s.Corporation,
		"regions", len(s.World.Regions),
		"credits", humanize.Commaf(s.Site.Ledger.Current(economy.Credits)),
	)
	return s, nil
}

// newFleet creates a fleet at home fitted with the starting modules.
func (s *Simulation) newFleet(name string, now time.Time) (*fleet.Fleet, error) {
	f := fleet.New(s.NextFleetID, name, s.World.Home, s.cfg.Hull, now)
	for _, key := range s.cfg.StartModules {
		tmpl, ok := s.cfg.Module(key)
		if !ok {
			return nil, fmt.Errorf("start module %q not in catalog", key)
		}
		if err := f.InstallModule(fleet.NewModule(tmpl)); err != nil {
			return nil, err
		}
		if err := f.ToggleModule(key, true); err != nil {
			return nil, fmt.Errorf("activate start module %q: %w", key, err)
		}
	}
	s.NextFleetID++
	s.Fleets = append(s.Fleets, f)
	return f, nil
}

// Config returns the balance the game runs with.
func (s *Simulation) Config() config.Config { return s.cfg }

// CurrentSpeed returns the speed multiplier used for catch-up by commands.
func (s *Simulation) CurrentSpeed() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Speed
}

// SetSpeed catches up at the old speed, then switches to v. v <= 0 pauses.
func (s *Simulation) SetSpeed(now time.Time, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance(now, s.Speed)
	if v < 0 {
		v = 0
	}
	s.Speed = v
	slog.Info("speed changed", "speed", v)
}

// Advance brings every component to now, integrating elapsed time at speed.
// Repeating a call with the same or an earlier now changes nothing.
func (s *Simulation) Advance(now time.Time, speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance(now, speed)
	s.Speed = speed
}

// View runs fn with the state read-locked. fn must not retain pointers.
func (s *Simulation) View(fn func(*Simulation)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s)
}

func (s *Simulation) advance(now time.Time, speed float64) {
	if !now.After(s.LastUpdate) {
		return
	}
	for _, e := range s.Site.Advance(now, speed) {
		b := s.Site.Building(e.Building)
		s.emit(e.At, "construction", fmt.Sprintf("%s reached level %d", b.Spec.Name, e.Level))
	}

	harvest := s.Harvest(s.LastUpdate)
	for _, f := range s.Fleets {
		for _, e := range f.Advance(now, speed, s.World, harvest) {
			s.emit(e.At, "fleet", describeFleetEvent(f, e))
		}
	}

	if s.Station.Restock(now) {
		s.emit(now, "market", fmt.Sprintf("%s restocked", s.Station.Name))
	}
	s.Station.UpdatePrices(now)

	for _, r := range s.World.Sorted() {
		r.PruneGrants(now)
	}
	s.LastUpdate = now
}

// Harvest lists the deposits the corporation holds live grants on at at.
// It does not lock; call it from View or a command.
func (s *Simulation) Harvest(at time.Time) []fleet.Harvest {
	var out []fleet.Harvest
	for _, r := range s.World.Sorted() {
		for _, g := range r.ActiveGrants(at) {
			if g.Holder != s.Corporation || g.Deposit < 0 || g.Deposit >= len(r.Deposits) {
				continue
			}
			out = append(out, fleet.Harvest{Region: r.ID, Deposit: r.Deposits[g.Deposit], Until: g.Expiry()})
		}
	}
	return out
}

func describeFleetEvent(f *fleet.Fleet, e fleet.Event) string {
	switch e.Kind {
	case "arrived":
		return fmt.Sprintf("%s arrived at %s", f.Name, e.Detail)
	case "probed":
		return fmt.Sprintf("%s finished probing %s", f.Name, e.Detail)
	case "upgraded":
		return fmt.Sprintf("%s hull upgraded to %s", f.Name, e.Detail)
	case "module_upgraded":
		return fmt.Sprintf("%s module %s", f.Name, e.Detail)
	}
	return fmt.Sprintf("%s: %s %s", f.Name, e.Kind, e.Detail)
}

// emit records an event, logs it, and fans it out to subscribers.
func (s *Simulation) emit(at time.Time, category, desc string) {
	e := Event{Time: at, Description: desc, Category: category}
	s.Events = append(s.Events, e)
	if limit := s.cfg.Policy.MaxEvents; limit > 0 && len(s.Events) > limit {
		s.Events = s.Events[len(s.Events)-limit:]
	}
	slog.Info(desc, "category", category, "at", at.Format(time.RFC3339))

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel receiving future events. Slow readers miss events.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]chan Event)
	}
	s.nextSub++
	ch := make(chan Event, 64)
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

// Unsubscribe closes and removes a subscription.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// RecentEvents returns up to limit of the newest events, oldest first.
func (s *Simulation) RecentEvents(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.Events
	if limit > 0 && len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}
	return append([]Event(nil), evs...)
}

// Status is a point-in-time summary of the corporation.
type Status struct {
	Corporation  string                       `json:"corporation"`
	Time         time.Time                    `json:"time"`
	Speed        float64                      `json:"speed"`
	Resources    map[economy.Resource]float64 `json:"resources"`
	Rates        map[economy.Resource]float64 `json:"rates"`
	Storage      float64                      `json:"storage"`
	Energy       float64                      `json:"energy"`
	Fleets       int                          `json:"fleets"`
	Selected     fleet.ID                     `json:"selected"`
	Constructing string                       `json:"constructing,omitempty"`
	Progress     float64                      `json:"progress,omitempty"`
	ActiveClaim  string                       `json:"active_claim,omitempty"`
	TotalAssets  float64                      `json:"total_assets"`
}

// Status summarizes the state as of the last advance.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.LastUpdate
	st := Status{
		Corporation: s.Corporation,
		Time:        now,
		Speed:       s.Speed,
		Resources:   make(map[economy.Resource]float64),
		Rates:       s.Site.Rates(),
		Storage:     s.Site.StorageCapacity(),
		Energy:      s.Site.EnergyBudget(),
		Fleets:      len(s.Fleets),
		Selected:    s.Selected,
		TotalAssets: s.totalAssets(),
	}
	for k, v := range s.Site.Ledger.Amounts {
		st.Resources[k] = v
	}
	if b := s.Site.UnderConstruction(); b != nil {
		st.Constructing = b.Key
		st.Progress = b.Upgrade.Project.Progress(now)
	}
	if c := s.activeClaim(now); c != nil {
		st.ActiveClaim = c.Region
	}
	return st
}

// TotalAssets is corporation credits plus the appraised value of every fleet.
func (s *Simulation) TotalAssets() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalAssets()
}

func (s *Simulation) totalAssets() float64 {
	total := s.Site.Ledger.Current(economy.Credits)
	for _, f := range s.Fleets {
		total += f.Value(s.cfg.Policy.UnitValues)
	}
	return total
}

// fleetByID finds a fleet or returns nil.
func (s *Simulation) fleetByID(id fleet.ID) *fleet.Fleet {
	for _, f := range s.Fleets {
		if f.ID == id {
			return f
		}
	}
	return nil
}
