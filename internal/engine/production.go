// Production site: the corporation's home buildings and their ledger.
package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/talgya/starholdings/internal/config"
	"github.com/talgya/starholdings/internal/construction"
	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/growth"
	"github.com/talgya/starholdings/internal/simerr"
)

// Building is one leveled structure at the site.
type Building struct {
	Key     string             `json:"key"`
	Upgrade construction.Track `json:"upgrade"`

	Spec config.Building `json:"-"`
}

// Level returns the building level.
func (b *Building) Level() int { return b.Upgrade.Level }

// Production returns the hourly output at the current level. Non-producers return 0.
func (b *Building) Production() float64 {
	if b.Spec.Resource == "" {
		return 0
	}
	return growth.Production(b.Spec.Params, b.Level())
}

// Capacity returns the storage provided at the current level.
func (b *Building) Capacity() float64 { return growth.Capacity(b.Spec.Params, b.Level()) }

// NextCost returns the cost of the next level.
func (b *Building) NextCost() economy.Cost { return growth.Cost(b.Spec.Params, b.Level()) }

// Site is the home production site. At most one building is under
// construction at a time.
type Site struct {
	Ledger     *economy.Ledger `json:"ledger"`
	Buildings  []*Building     `json:"buildings"`
	LastUpdate time.Time       `json:"last_update"`

	minStorage float64
}

// NewSite builds the site from the catalog with the starting resources.
func NewSite(cfg config.Config, now time.Time) *Site {
	s := &Site{
		Ledger:     economy.NewLedger(cfg.MinStorage),
		LastUpdate: now,
		minStorage: cfg.MinStorage,
	}
	for _, spec := range cfg.Buildings {
		s.Buildings = append(s.Buildings, &Building{
			Key:     spec.Key,
			Upgrade: construction.Track{Level: spec.StartLevel},
			Spec:    spec,
		})
	}
	s.Refresh()
	for _, kind := range cfg.StartResources.Kinds() {
		s.Ledger.Add(kind, cfg.StartResources[kind])
	}
	return s
}

// bind reattaches catalog specs after a restore.
func (s *Site) bind(cfg config.Config) error {
	s.minStorage = cfg.MinStorage
	for _, b := range s.Buildings {
		spec, ok := cfg.Building(b.Key)
		if !ok {
			return fmt.Errorf("building %q not in catalog", b.Key)
		}
		b.Spec = spec
	}
	s.Refresh()
	return nil
}

// Building finds a building by key.
func (s *Site) Building(key string) *Building {
	for _, b := range s.Buildings {
		if b.Key == key {
			return b
		}
	}
	return nil
}

// UnderConstruction returns the building with a live project, or nil.
func (s *Site) UnderConstruction() *Building {
	for _, b := range s.Buildings {
		if b.Upgrade.Busy() {
			return b
		}
	}
	return nil
}

// StorageCapacity is the metal and crystal limit, never below the initial storage.
func (s *Site) StorageCapacity() float64 {
	limit := s.minStorage
	for _, b := range s.Buildings {
		if b.Spec.Storage {
			limit = math.Max(limit, b.Capacity())
		}
	}
	return limit
}

// EnergyBudget is the current energy output. Energy is not banked at the site.
func (s *Site) EnergyBudget() float64 {
	var total float64
	for _, b := range s.Buildings {
		if b.Spec.Resource == economy.Energy {
			total += b.Production()
		}
	}
	return total
}

// Rates returns the hourly production per banked resource.
func (s *Site) Rates() map[economy.Resource]float64 {
	rates := make(map[economy.Resource]float64)
	for _, b := range s.Buildings {
		if b.Spec.Resource == "" || b.Spec.Resource == economy.Energy {
			continue
		}
		rates[b.Spec.Resource] += b.Production()
	}
	return rates
}

// Banks reports whether the site ledger stores kind. Energy is a budget.
func (s *Site) Banks(kind economy.Resource) bool {
	return kind != "" && kind != economy.Energy
}

// Refresh applies storage capacity to the ledger.
func (s *Site) Refresh() {
	limit := s.StorageCapacity()
	s.Ledger.DefaultCapacity = limit
	s.Ledger.SetCapacity(economy.Metal, limit)
	s.Ledger.SetCapacity(economy.Crystal, limit)
	s.Ledger.SetUncapped(economy.Credits)
}

// StartUpgrade begins construction of the next level of key.
func (s *Site) StartUpgrade(key string, now time.Time, speed float64) error {
	const op = "site.upgrade"
	b := s.Building(key)
	if b == nil {
		return simerr.Reject(op, simerr.ErrNotFound, "no building %q", key)
	}
	if busy := s.UnderConstruction(); busy != nil {
		return simerr.Reject(op, simerr.ErrAlreadyInProgress, "%s is under construction", busy.Spec.Name)
	}
	return b.Upgrade.Start(op, b.Spec.Params, b.Spec.MaxLevel, s.Ledger, now, speed)
}

// CancelUpgrade stops the running project and refunds fraction of its cost.
func (s *Site) CancelUpgrade(fraction float64) (string, economy.Cost, error) {
	const op = "site.cancel"
	b := s.UnderConstruction()
	if b == nil {
		return "", nil, simerr.Reject(op, simerr.ErrInvalidTransition, "nothing under construction")
	}
	refund, err := b.Upgrade.Cancel(op, s.Ledger, fraction)
	return b.Key, refund, err
}

// SiteEvent is a building completion resolved during Advance.
type SiteEvent struct {
	At       time.Time
	Building string
	Level    int
}

// Advance integrates production up to to, cutting at construction completions.
func (s *Site) Advance(to time.Time, speed float64) []SiteEvent {
	if !to.After(s.LastUpdate) {
		return nil
	}
	cur := s.LastUpdate
	events := s.resolve(cur)
	for cur.Before(to) {
		next := to
		for _, b := range s.Buildings {
			if end, ok := b.Upgrade.EndsAt(); ok && end.After(cur) && end.Before(next) {
				next = end
			}
		}
		if speed > 0 {
			hours := next.Sub(cur).Hours() * speed
			rates := s.Rates()
			kinds := make([]economy.Resource, 0, len(rates))
			for k := range rates {
				kinds = append(kinds, k)
			}
			sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
			for _, k := range kinds {
				s.Ledger.Add(k, rates[k]*hours)
			}
		}
		cur = next
		events = append(events, s.resolve(cur)...)
	}
	s.LastUpdate = to
	return events
}

func (s *Site) resolve(at time.Time) []SiteEvent {
	var events []SiteEvent
	for _, b := range s.Buildings {
		end, ok := b.Upgrade.EndsAt()
		if !ok {
			continue
		}
		if done, _ := b.Upgrade.Poll(at); done {
			s.Refresh()
			events = append(events, SiteEvent{At: end, Building: b.Key, Level: b.Level()})
		}
	}
	return events
}
