// Package construction schedules level upgrades for leveled entities.
// Each entity carries a Track: its level plus at most one in-flight Project.
// Completion is resolved lazily by Poll against a caller-supplied time.
package construction

import (
	"time"

	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/growth"
	"github.com/talgya/starholdings/internal/simerr"
)

// Project is an in-flight upgrade. End is always after Start.
type Project struct {
	Start time.Time    `json:"start"`
	End   time.Time    `json:"end"`
	Paid  economy.Cost `json:"paid,omitempty"` // Committed cost, used for cancellation refunds
}

// Progress returns the completed fraction at now, clamped to [0,1].
func (p *Project) Progress(now time.Time) float64 {
	total := p.End.Sub(p.Start)
	if total <= 0 || !now.Before(p.End) {
		return 1
	}
	f := float64(now.Sub(p.Start)) / float64(total)
	if f < 0 {
		return 0
	}
	return f
}

// Remaining returns the wall-clock time left, never negative.
func (p *Project) Remaining(now time.Time) time.Duration {
	if left := p.End.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Payer is the ledger that funds an upgrade.
type Payer interface {
	Deduct(cost economy.Cost) bool
}

// Refunder receives cancellation refunds.
type Refunder interface {
	Credit(c economy.Cost) economy.Cost
}

// Track is the upgrade state of one leveled entity.
type Track struct {
	Level   int      `json:"level"`
	Project *Project `json:"project,omitempty"`
}

// minProject keeps End strictly after Start for zero-duration entities.
const minProject = time.Millisecond

// Busy reports whether an upgrade is in flight.
func (t *Track) Busy() bool { return t.Project != nil }

// Start commits the cost of the next level and schedules its completion.
// maxLevel <= 0 means uncapped. Fails without side effects if a project is
// already running, the cap is reached, or payer cannot cover the cost.
func (t *Track) Start(op string, p growth.Params, maxLevel int, payer Payer, now time.Time, speed float64) error {
	if t.Project != nil {
		return simerr.Reject(op, simerr.ErrAlreadyInProgress, "upgrade to level %d already running", t.Level+1)
	}
	if maxLevel > 0 && t.Level >= maxLevel {
		return simerr.Reject(op, simerr.ErrMaxLevel, "level %d is the cap", maxLevel)
	}
	cost := growth.Cost(p, t.Level)
	if !payer.Deduct(cost) {
		return simerr.Reject(op, simerr.ErrInsufficientResources, "need %v", cost)
	}
	d := growth.WallDuration(p, t.Level, speed)
	if d < minProject {
		d = minProject
	}
	t.Project = &Project{Start: now, End: now.Add(d), Paid: cost}
	return nil
}

// Poll completes the project if now has reached its end. It returns whether a
// level was gained and the progress fraction (1 when completed or idle with no work).
func (t *Track) Poll(now time.Time) (completed bool, progress float64) {
	if t.Project == nil {
		return false, 0
	}
	if !now.Before(t.Project.End) {
		t.Level++
		t.Project = nil
		return true, 1
	}
	return false, t.Project.Progress(now)
}

// EndsAt returns the completion time of the running project.
func (t *Track) EndsAt() (time.Time, bool) {
	if t.Project == nil {
		return time.Time{}, false
	}
	return t.Project.End, true
}

// Cancel abandons the running project and refunds fraction of what was paid.
// The level is unchanged.
func (t *Track) Cancel(op string, refund Refunder, fraction float64) (economy.Cost, error) {
	if t.Project == nil {
		return nil, simerr.Reject(op, simerr.ErrInvalidTransition, "nothing under construction")
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	back := refund.Credit(t.Project.Paid.Scale(fraction))
	t.Project = nil
	return back, nil
}
