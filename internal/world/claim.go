package world

import (
	"time"

	"github.com/google/uuid"

	"github.com/talgya/starholdings/internal/simerr"
)

// ClaimState is the lifecycle position of a claim at a point in time.
type ClaimState string

const (
	ClaimAvailable ClaimState = "available"
	ClaimActive    ClaimState = "active"
	ClaimExpired   ClaimState = "expired"
)

// Claim leases a whole region to a corporation. Its state is derived from
// ClaimedAt and Expiry only.
type Claim struct {
	ID          string        `json:"id"`
	Region      string        `json:"region"`
	Corporation string        `json:"corporation,omitempty"`
	Duration    time.Duration `json:"duration"`
	ClaimedAt   time.Time     `json:"claimed_at,omitempty"`
	Expiry      time.Time     `json:"expiry,omitempty"`
}

// NewClaimOffer creates an unclaimed offer for region.
func NewClaimOffer(region string, d time.Duration) *Claim {
	return &Claim{ID: uuid.NewString(), Region: region, Duration: d}
}

// Claimed reports whether the claim has ever been activated.
func (c *Claim) Claimed() bool { return !c.ClaimedAt.IsZero() }

// Activate stamps the claim for corporation starting at now.
func (c *Claim) Activate(corporation string, now time.Time) error {
	if c.Claimed() {
		return simerr.Reject("claim.activate", simerr.ErrAlreadyClaimed, "region %s claimed by %s", c.Region, c.Corporation)
	}
	if c.Duration <= 0 {
		return simerr.Reject("claim.activate", simerr.ErrInvalidTarget, "claim on %s has no duration", c.Region)
	}
	c.Corporation = corporation
	c.ClaimedAt = now
	c.Expiry = now.Add(c.Duration)
	return nil
}

// IsActive reports whether the claim is in force at now.
func (c *Claim) IsActive(now time.Time) bool {
	return c.Claimed() && now.Before(c.Expiry)
}

// IsExpired reports whether the claim has lapsed at now.
func (c *Claim) IsExpired(now time.Time) bool {
	return c.Claimed() && !now.Before(c.Expiry)
}

// TimeRemaining returns how long the claim stays active, never negative.
func (c *Claim) TimeRemaining(now time.Time) time.Duration {
	if !c.Claimed() {
		return 0
	}
	if left := c.Expiry.Sub(now); left > 0 {
		return left
	}
	return 0
}

// State returns the lifecycle state at now.
func (c *Claim) State(now time.Time) ClaimState {
	switch {
	case !c.Claimed():
		return ClaimAvailable
	case c.IsActive(now):
		return ClaimActive
	default:
		return ClaimExpired
	}
}
