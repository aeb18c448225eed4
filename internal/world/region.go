// Package world provides the territory graph: regions with resource deposits,
// adjacency, per-deposit grants, and region-wide claims.
// Every lease is evaluated by comparing its stamps with a caller-supplied time.
package world

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/growth"
	"github.com/talgya/starholdings/internal/simerr"
)

// Position is a point on the territory plane.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two positions.
func (p Position) Distance(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Visibility is a region's exploration state. It only moves forward.
type Visibility uint8

const (
	Unexplored Visibility = iota
	Explored
)

func (v Visibility) String() string {
	if v == Explored {
		return "explored"
	}
	return "unexplored"
}

// MarshalText encodes visibility by name.
func (v Visibility) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText decodes a visibility name.
func (v *Visibility) UnmarshalText(b []byte) error {
	switch string(b) {
	case "explored":
		*v = Explored
	case "unexplored", "":
		*v = Unexplored
	default:
		return fmt.Errorf("unknown visibility %q", b)
	}
	return nil
}

// Deposit is a harvestable resource source inside a region.
type Deposit struct {
	Resource   economy.Resource `json:"resource"`
	BaseAmount float64          `json:"base_amount"` // Units per hour at collector level 1, before quality
	Quality    float64          `json:"quality"`
	Discovered bool             `json:"discovered"`
}

// CollectionRate returns units per hour for a collector of the given level.
func (d *Deposit) CollectionRate(collectorLevel int) float64 {
	return growth.Exp(d.BaseAmount*d.Quality, growth.DepositFactor, collectorLevel)
}

// Grant leases one deposit to one holder for a fixed duration.
type Grant struct {
	ID       string        `json:"id"`
	Region   string        `json:"region"`
	Deposit  int           `json:"deposit"` // Index into Region.Deposits
	Holder   string        `json:"holder"`
	IssuedAt time.Time     `json:"issued_at"`
	Duration time.Duration `json:"duration"`
}

// Expiry returns when the grant lapses.
func (g *Grant) Expiry() time.Time { return g.IssuedAt.Add(g.Duration) }

// Expired reports whether the grant has lapsed at now.
func (g *Grant) Expired(now time.Time) bool { return !now.Before(g.Expiry()) }

// Remaining returns time left on the grant, never negative.
func (g *Grant) Remaining(now time.Time) time.Duration {
	if left := g.Expiry().Sub(now); left > 0 {
		return left
	}
	return 0
}

// Progress returns the elapsed fraction of the lease, clamped to [0,1].
func (g *Grant) Progress(now time.Time) float64 {
	if g.Duration <= 0 {
		return 1
	}
	f := float64(now.Sub(g.IssuedAt)) / float64(g.Duration)
	return math.Max(0, math.Min(1, f))
}

// Region is one node of the territory graph.
type Region struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Level      int        `json:"level"`
	Position   Position   `json:"position"`
	Deposits   []*Deposit `json:"deposits"`
	Grants     []*Grant   `json:"grants,omitempty"`
	Visibility Visibility `json:"visibility"`
	Links      []string   `json:"links"` // Adjacent region IDs; kept symmetric by Graph.Connect
}

// DistanceTo returns the Euclidean distance to another region.
func (r *Region) DistanceTo(o *Region) float64 {
	return r.Position.Distance(o.Position)
}

// Explored reports whether the region has been probed.
func (r *Region) Explored() bool { return r.Visibility == Explored }

// MarkExplored reveals the region and every deposit in it.
// Returns false if the region was already explored.
func (r *Region) MarkExplored() bool {
	if r.Visibility == Explored {
		return false
	}
	r.Visibility = Explored
	for _, d := range r.Deposits {
		d.Discovered = true
	}
	return true
}

// RequestGrant leases deposit idx to holder starting at now. It fails if the
// deposit is unknown, undiscovered, or already under a live grant.
func (r *Region) RequestGrant(idx int, holder string, d time.Duration, now time.Time) (*Grant, error) {
	const op = "region.grant"
	if idx < 0 || idx >= len(r.Deposits) {
		return nil, simerr.Reject(op, simerr.ErrNotFound, "region %s has no deposit %d", r.ID, idx)
	}
	if !r.Deposits[idx].Discovered {
		return nil, simerr.Reject(op, simerr.ErrInvalidTarget, "deposit %d in %s not discovered", idx, r.ID)
	}
	if d <= 0 {
		return nil, simerr.Reject(op, simerr.ErrInvalidTarget, "grant duration must be positive")
	}
	if g := r.liveGrant(idx, now); g != nil {
		return nil, simerr.Reject(op, simerr.ErrAlreadyClaimed, "deposit %d in %s held by %s", idx, r.ID, g.Holder)
	}
	g := &Grant{
		ID:       uuid.NewString(),
		Region:   r.ID,
		Deposit:  idx,
		Holder:   holder,
		IssuedAt: now,
		Duration: d,
	}
	r.Grants = append(r.Grants, g)
	return g, nil
}

func (r *Region) liveGrant(idx int, now time.Time) *Grant {
	for _, g := range r.Grants {
		if g.Deposit == idx && !g.Expired(now) {
			return g
		}
	}
	return nil
}

// ActiveGrants returns the grants still live at now.
func (r *Region) ActiveGrants(now time.Time) []*Grant {
	var out []*Grant
	for _, g := range r.Grants {
		if !g.Expired(now) {
			out = append(out, g)
		}
	}
	return out
}

// PruneGrants drops expired grants and returns how many were removed.
func (r *Region) PruneGrants(now time.Time) int {
	kept := r.Grants[:0]
	for _, g := range r.Grants {
		if !g.Expired(now) {
			kept = append(kept, g)
		}
	}
	n := len(r.Grants) - len(kept)
	for i := len(kept); i < len(r.Grants); i++ {
		r.Grants[i] = nil
	}
	r.Grants = kept
	return n
}

// DiscoveredDeposits returns the indices of discovered deposits.
func (r *Region) DiscoveredDeposits() []int {
	var out []int
	for i, d := range r.Deposits {
		if d.Discovered {
			out = append(out, i)
		}
	}
	return out
}

// AvailableDeposits returns discovered deposits with no live grant at now.
func (r *Region) AvailableDeposits(now time.Time) []int {
	var out []int
	for _, i := range r.DiscoveredDeposits() {
		if r.liveGrant(i, now) == nil {
			out = append(out, i)
		}
	}
	return out
}
