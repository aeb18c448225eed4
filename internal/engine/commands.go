package engine

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/fleet"
	"github.com/talgya/starholdings/internal/growth"
	"github.com/talgya/starholdings/internal/simerr"
	"github.com/talgya/starholdings/internal/world"
)

// command runs fn under the write lock after catching up to now.
// Rejected commands are logged at debug and leave the state untouched.
func (s *Simulation) command(now time.Time, op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance(now, s.Speed)
	err := fn()
	if err != nil {
		slog.Debug("command rejected", "op", op, "reason", simerr.Reason(err), "err", err)
	}
	return err
}

func (s *Simulation) mustFleet(op string, id fleet.ID) (*fleet.Fleet, error) {
	f := s.fleetByID(id)
	if f == nil {
		return nil, simerr.Reject(op, simerr.ErrNotFound, "no fleet %s", id)
	}
	return f, nil
}

// docked fetches a fleet and requires it to be idle at the home region.
func (s *Simulation) docked(op string, id fleet.ID) (*fleet.Fleet, error) {
	f, err := s.mustFleet(op, id)
	if err != nil {
		return nil, err
	}
	if f.Travel != nil || f.Location != s.World.Home {
		return nil, simerr.Reject(op, simerr.ErrInvalidTarget, "%s is not docked at %s", f.Name, s.World.Home)
	}
	return f, nil
}

// UpgradeBuilding starts the next level of a site building.
func (s *Simulation) UpgradeBuilding(key string, now time.Time) error {
	return s.command(now, "site.upgrade", func() error {
		if err := s.Site.StartUpgrade(key, now, s.Speed); err != nil {
			return err
		}
		b := s.Site.Building(key)
		slog.Info("construction started", "building", key, "to_level", b.Level()+1,
			"done", humanize.Time(b.Upgrade.Project.End))
		return nil
	})
}

// CancelBuilding abandons the site project and refunds part of its cost.
func (s *Simulation) CancelBuilding(now time.Time) (economy.Cost, error) {
	var refund economy.Cost
	err := s.command(now, "site.cancel", func() error {
		key, back, err := s.Site.CancelUpgrade(s.cfg.Policy.CancelRefund)
		if err != nil {
			return err
		}
		refund = back
		s.emit(now, "construction", fmt.Sprintf("construction of %s cancelled", key))
		return nil
	})
	return refund, err
}

// AddFleet commissions a new fleet at home. Each shipyard level supports one
// fleet beyond the first.
func (s *Simulation) AddFleet(name string, now time.Time) (fleet.ID, error) {
	const op = "fleet.add"
	var id fleet.ID
	err := s.command(now, op, func() error {
		yard := 0
		if b := s.Site.Building("shipyard"); b != nil {
			yard = b.Level()
		}
		if len(s.Fleets) > yard {
			return simerr.Reject(op, simerr.ErrMaxLevel, "shipyard level %d supports %d fleets", yard, yard+1)
		}
		if name == "" {
			name = fmt.Sprintf("Fleet %d", s.NextFleetID)
		}
		f, err := s.newFleet(name, now)
		if err != nil {
			return err
		}
		id = f.ID
		s.emit(now, "fleet", fmt.Sprintf("%s commissioned", f.Name))
		return nil
	})
	return id, err
}

// RemoveFleet decommissions an idle fleet. The last fleet cannot be removed.
func (s *Simulation) RemoveFleet(id fleet.ID, now time.Time) error {
	const op = "fleet.remove"
	return s.command(now, op, func() error {
		f, err := s.mustFleet(op, id)
		if err != nil {
			return err
		}
		if f.Activity() != fleet.Idle {
			return simerr.Reject(op, simerr.ErrInvalidTransition, "%s is %s", f.Name, f.Activity())
		}
		if len(s.Fleets) == 1 {
			return simerr.Reject(op, simerr.ErrInvalidTarget, "cannot remove the last fleet")
		}
		for i, g := range s.Fleets {
			if g.ID == id {
				s.Fleets = append(s.Fleets[:i], s.Fleets[i+1:]...)
				break
			}
		}
		if s.Selected == id {
			s.Selected = s.Fleets[0].ID
		}
		s.emit(now, "fleet", fmt.Sprintf("%s decommissioned", f.Name))
		return nil
	})
}

// SelectFleet makes id the current fleet.
func (s *Simulation) SelectFleet(id fleet.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.mustFleet("fleet.select", id); err != nil {
		return err
	}
	s.Selected = id
	return nil
}

// StartTravel sends a fleet along the shortest path to dest.
func (s *Simulation) StartTravel(id fleet.ID, dest string, now time.Time) error {
	const op = "fleet.travel"
	return s.command(now, op, func() error {
		f, err := s.mustFleet(op, id)
		if err != nil {
			return err
		}
		if a := f.Activity(); a != fleet.Idle {
			return simerr.Reject(op, simerr.ErrInvalidTransition, "%s is %s", f.Name, a)
		}
		if s.World.Region(dest) == nil {
			return simerr.Reject(op, simerr.ErrNotFound, "no region %q", dest)
		}
		path, ok := s.World.ShortestPath(f.Location, dest)
		if !ok {
			return simerr.Reject(op, simerr.ErrInvalidTarget, "no route from %s to %s", f.Location, dest)
		}
		minutes := s.World.PathLength(path) * s.cfg.Policy.TravelMinutesPerUnit
		d := growth.Scale(time.Duration(minutes*float64(time.Minute)), s.Speed)
		if err := f.TravelTo(dest, path, now, d); err != nil {
			return err
		}
		slog.Info("fleet departed", "fleet", f.Name, "to", dest, "hops", len(path)-1, "eta", humanize.Time(now.Add(d)))
		return nil
	})
}

// StartProbing explores region with a fleet stationed there. Only one fleet
// may probe a region at a time.
func (s *Simulation) StartProbing(id fleet.ID, region string, now time.Time) error {
	const op = "fleet.probe"
	return s.command(now, op, func() error {
		f, err := s.mustFleet(op, id)
		if err != nil {
			return err
		}
		r := s.World.Region(region)
		if r == nil {
			return simerr.Reject(op, simerr.ErrNotFound, "no region %q", region)
		}
		for _, other := range s.Fleets {
			if other != f && other.Probe != nil && other.Probe.Region == region {
				return simerr.Reject(op, simerr.ErrAlreadyInProgress, "%s is already probing %s", other.Name, region)
			}
		}
		d := time.Duration(s.cfg.Policy.ProbeSecondsPerLevel * float64(r.Level) * float64(time.Second))
		if s.cfg.Policy.ProbeUsesSpeed {
			d = growth.Scale(d, s.Speed)
		}
		return f.StartProbing(r, now, d)
	})
}

// UpgradeFleet starts the next hull level.
func (s *Simulation) UpgradeFleet(id fleet.ID, now time.Time) error {
	const op = "fleet.upgrade"
	return s.command(now, op, func() error {
		f, err := s.mustFleet(op, id)
		if err != nil {
			return err
		}
		return f.StartUpgrade(now, s.Speed)
	})
}

// CancelFleetUpgrade abandons the hull upgrade and refunds part of its cost.
func (s *Simulation) CancelFleetUpgrade(id fleet.ID, now time.Time) (economy.Cost, error) {
	const op = "fleet.cancel"
	var refund economy.Cost
	err := s.command(now, op, func() error {
		f, err := s.mustFleet(op, id)
		if err != nil {
			return err
		}
		refund, err = f.CancelUpgrade(s.cfg.Policy.CancelRefund)
		return err
	})
	return refund, err
}

// UpgradeModule starts the next level of a ship module.
func (s *Simulation) UpgradeModule(id fleet.ID, key string, now time.Time) error {
	const op = "module.upgrade"
	return s.command(now, op, func() error {
		f, err := s.mustFleet(op, id)
		if err != nil {
			return err
		}
		return f.UpgradeModule(key, now, s.Speed)
	})
}

// ToggleModule switches a module on or off.
func (s *Simulation) ToggleModule(id fleet.ID, key string, active bool, now time.Time) error {
	const op = "module.toggle"
	return s.command(now, op, func() error {
		f, err := s.mustFleet(op, id)
		if err != nil {
			return err
		}
		return f.ToggleModule(key, active)
	})
}

// BuyDrone adds a mining drone to a fleet.
func (s *Simulation) BuyDrone(id fleet.ID, now time.Time) error {
	const op = "fleet.buy_drone"
	return s.command(now, op, func() error {
		f, err := s.mustFleet(op, id)
		if err != nil {
			return err
		}
		return f.BuyDrone()
	})
}

// BuyCollector adds a gas collector to a fleet.
func (s *Simulation) BuyCollector(id fleet.ID, now time.Time) error {
	const op = "fleet.buy_collector"
	return s.command(now, op, func() error {
		f, err := s.mustFleet(op, id)
		if err != nil {
			return err
		}
		return f.BuyCollector()
	})
}

// TransferCargo moves up to amount of kind between a docked fleet and the
// site. toSite selects the direction. Returns the amount moved.
func (s *Simulation) TransferCargo(id fleet.ID, kind economy.Resource, amount float64, toSite bool, now time.Time) (float64, error) {
	const op = "fleet.transfer"
	var moved float64
	err := s.command(now, op, func() error {
		if !(amount > 0) {
			return simerr.Reject(op, simerr.ErrInvalidTarget, "amount must be positive")
		}
		if !s.Site.Banks(kind) {
			return simerr.Reject(op, simerr.ErrInvalidTarget, "the site does not store %s", kind)
		}
		f, err := s.docked(op, id)
		if err != nil {
			return err
		}
		src, dst := s.Site.Ledger, f.Ledger
		if toSite {
			src, dst = f.Ledger, s.Site.Ledger
		}
		n := math.Min(amount, math.Min(src.Current(kind), dst.Room(kind)))
		if n <= 0 {
			return simerr.Reject(op, simerr.ErrInsufficientResources, "nothing of %s can move", kind)
		}
		src.Remove(kind, n)
		dst.Add(kind, n)
		moved = n
		return nil
	})
	return moved, err
}

// Buy purchases amount of kind from the station into a docked fleet.
func (s *Simulation) Buy(id fleet.ID, kind economy.Resource, amount float64, now time.Time) (float64, error) {
	const op = "market.buy"
	var paid float64
	err := s.command(now, op, func() error {
		f, err := s.docked(op, id)
		if err != nil {
			return err
		}
		paid, err = s.Station.SellToShip(kind, amount, f.Ledger)
		if err == nil {
			s.emit(now, "market", fmt.Sprintf("%s bought %s %s for %s credits", f.Name,
				humanize.Commaf(amount), kind, humanize.Commaf(paid)))
		}
		return err
	})
	return paid, err
}

// Sell sells amount of kind from a docked fleet to the station.
func (s *Simulation) Sell(id fleet.ID, kind economy.Resource, amount float64, now time.Time) (float64, error) {
	const op = "market.sell"
	var earned float64
	err := s.command(now, op, func() error {
		f, err := s.docked(op, id)
		if err != nil {
			return err
		}
		earned, err = s.Station.BuyFromShip(kind, amount, f.Ledger)
		if err == nil {
			s.emit(now, "market", fmt.Sprintf("%s sold %s %s for %s credits", f.Name,
				humanize.Commaf(amount), kind, humanize.Commaf(earned)))
		}
		return err
	})
	return earned, err
}

// AcceptMission takes a mission off the station board.
func (s *Simulation) AcceptMission(missionID string, now time.Time) error {
	return s.command(now, "mission.accept", func() error {
		m, err := s.Station.Accept(missionID, now)
		if err != nil {
			return err
		}
		s.Missions = append(s.Missions, m)
		s.emit(now, "mission", fmt.Sprintf("accepted mission %q", m.Name))
		return nil
	})
}

// DeliverMission hands a mission's requirements over from a docked fleet.
func (s *Simulation) DeliverMission(missionID string, id fleet.ID, now time.Time) (economy.Cost, error) {
	const op = "mission.deliver"
	var rewards economy.Cost
	err := s.command(now, op, func() error {
		var m *economy.Mission
		for _, cand := range s.Missions {
			if cand.ID == missionID {
				m = cand
			}
		}
		if m == nil {
			return simerr.Reject(op, simerr.ErrNotFound, "mission %s not accepted", missionID)
		}
		f, err := s.docked(op, id)
		if err != nil {
			return err
		}
		rewards, err = m.Deliver(f.Ledger, now)
		if err == nil {
			s.emit(now, "mission", fmt.Sprintf("%s completed mission %q", f.Name, m.Name))
		}
		return err
	})
	return rewards, err
}

// InstallBlueprint buys a blueprint for a docked fleet and installs its
// module inactive.
func (s *Simulation) InstallBlueprint(id fleet.ID, name string, now time.Time) error {
	const op = "blueprint.install"
	return s.command(now, op, func() error {
		bp, ok := s.Station.Blueprint(name)
		if !ok {
			return simerr.Reject(op, simerr.ErrNotFound, "no blueprint %q", name)
		}
		tmpl, ok := s.cfg.Module(bp.Module)
		if !ok {
			return simerr.Reject(op, simerr.ErrNotFound, "module %q not in catalog", bp.Module)
		}
		f, err := s.docked(op, id)
		if err != nil {
			return err
		}
		if f.Module(bp.Module) != nil {
			return simerr.Reject(op, simerr.ErrInvalidTarget, "%s already has %s", f.Name, bp.Module)
		}
		for key, level := range bp.Requirements {
			if m := f.Module(key); m == nil || m.Level() < level {
				return simerr.Reject(op, simerr.ErrInvalidTarget, "requires %s level %d", key, level)
			}
		}
		if !f.Ledger.Deduct(bp.Cost) {
			return simerr.Reject(op, simerr.ErrInsufficientResources, "need %v", bp.Cost)
		}
		if err := f.InstallModule(fleet.NewModule(tmpl)); err != nil {
			f.Ledger.Credit(bp.Cost)
			return err
		}
		s.emit(now, "fleet", fmt.Sprintf("%s installed %s", f.Name, tmpl.Name))
		return nil
	})
}

// latestClaim returns the newest claim record for region, or nil.
func (s *Simulation) latestClaim(region string) *world.Claim {
	var out *world.Claim
	for _, c := range s.Claims {
		if c.Region == region {
			out = c
		}
	}
	return out
}

// activeClaim returns the corporation's live claim, or nil.
func (s *Simulation) activeClaim(now time.Time) *world.Claim {
	for _, c := range s.Claims {
		if c.Corporation == s.Corporation && c.IsActive(now) {
			return c
		}
	}
	return nil
}

// AvailableClaims lists regions that can be claimed at now.
func (s *Simulation) AvailableClaims(now time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	seen := make(map[string]bool)
	for _, c := range s.Claims {
		if seen[c.Region] {
			continue
		}
		seen[c.Region] = true
		if latest := s.latestClaim(c.Region); !latest.IsActive(now) {
			out = append(out, c.Region)
		}
	}
	return out
}

// ClaimRegion leases a region for the claim duration. The corporation holds
// at most one active claim. Expired claims are kept and a fresh record is
// added for the renewal.
func (s *Simulation) ClaimRegion(region string, now time.Time) error {
	const op = "territory.claim"
	return s.command(now, op, func() error {
		if c := s.activeClaim(now); c != nil {
			return simerr.Reject(op, simerr.ErrAlreadyClaimed, "already holding %s until %s", c.Region, c.Expiry.Format(time.RFC3339))
		}
		latest := s.latestClaim(region)
		if latest == nil {
			return simerr.Reject(op, simerr.ErrInvalidTarget, "%s is not offered", region)
		}
		if latest.IsActive(now) {
			return simerr.Reject(op, simerr.ErrAlreadyClaimed, "%s is held by %s", region, latest.Corporation)
		}
		c := latest
		if c.Claimed() {
			c = world.NewClaimOffer(region, s.cfg.Policy.ClaimDuration)
			s.Claims = append(s.Claims, c)
		}
		if err := c.Activate(s.Corporation, now); err != nil {
			return err
		}
		s.emit(now, "territory", fmt.Sprintf("%s claimed %s", s.Corporation, region))
		return nil
	})
}

// RequestGrant leases a discovered deposit in a region the corporation holds.
// The home region needs no claim.
func (s *Simulation) RequestGrant(region string, deposit int, now time.Time) error {
	const op = "territory.grant"
	return s.command(now, op, func() error {
		r := s.World.Region(region)
		if r == nil {
			return simerr.Reject(op, simerr.ErrNotFound, "no region %q", region)
		}
		if region != s.World.Home {
			if c := s.activeClaim(now); c == nil || c.Region != region {
				return simerr.Reject(op, simerr.ErrInvalidTarget, "no active claim on %s", region)
			}
		}
		g, err := r.RequestGrant(deposit, s.Corporation, s.cfg.Policy.GrantDuration, now)
		if err != nil {
			return err
		}
		s.emit(now, "territory", fmt.Sprintf("grant on %s deposit %d until %s", region, deposit, g.Expiry().Format(time.RFC3339)))
		return nil
	})
}

// Scan rolls discovery for the undiscovered deposits of the fleet's region.
// Scanning power grows with the hull level. Returns the deposits found.
func (s *Simulation) Scan(id fleet.ID, now time.Time) ([]int, error) {
	const op = "fleet.scan"
	var found []int
	err := s.command(now, op, func() error {
		f, err := s.mustFleet(op, id)
		if err != nil {
			return err
		}
		if a := f.Activity(); a == fleet.Traveling || a == fleet.Probing {
			return simerr.Reject(op, simerr.ErrInvalidTransition, "%s is %s", f.Name, a)
		}
		r := s.World.Region(f.Location)
		if r == nil {
			return simerr.Reject(op, simerr.ErrInvalidTarget, "%s is between regions", f.Name)
		}
		found = r.ScanDeposits(s.scan, s.cfg.Policy.ScanPower*float64(f.Level()), s.roll)
		if len(found) > 0 {
			s.emit(now, "territory", fmt.Sprintf("%s found %d deposits in %s", f.Name, len(found), r.Name))
		}
		return nil
	})
	return found, err
}
