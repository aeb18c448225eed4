// Package growth holds the level curves shared by every leveled entity:
// buildings, ship modules, and fleet hulls. All functions are pure and total.
package growth

import (
	"math"
	"time"

	"github.com/talgya/starholdings/internal/economy"
)

// Curve bases.
const (
	BuildingFactor   = 1.25 // Building and collector production per level
	ProductionFactor = 1.2  // Production modules
	DepositFactor    = 1.1  // Deposit yield per collector level
	CostFactor       = 1.5
	DurationFactor   = 1.2
)

// Params are the static base values of a leveled entity.
// A zero BaseProduction or BaseCapacity means the entity produces or stores nothing.
type Params struct {
	BaseProduction float64      `json:"base_production,omitempty" yaml:"base_production"`
	BaseCapacity   float64      `json:"base_capacity,omitempty" yaml:"base_capacity"`
	BaseCost       economy.Cost `json:"base_cost" yaml:"base_cost"`
	BaseDuration   float64      `json:"base_duration_seconds" yaml:"base_duration_seconds"`

	// Factor is the production growth base; zero selects BuildingFactor.
	Factor float64 `json:"factor,omitempty" yaml:"factor"`
}

// Exp returns base * factor^(level-1), or 0 for level <= 0.
func Exp(base, factor float64, level int) float64 {
	if level <= 0 {
		return 0
	}
	return base * math.Pow(factor, float64(level-1))
}

// Production returns the hourly output at level.
func Production(p Params, level int) float64 {
	if p.BaseProduction == 0 {
		return 0
	}
	f := p.Factor
	if f == 0 {
		f = BuildingFactor
	}
	return Exp(p.BaseProduction, f, level)
}

// Capacity returns the storage provided at level.
func Capacity(p Params, level int) float64 {
	if level <= 0 || p.BaseCapacity == 0 {
		return 0
	}
	return p.BaseCapacity * float64(level)
}

// Cost returns the price of upgrading from level to level+1:
// floor(base * 1.5^level) per resource.
func Cost(p Params, level int) economy.Cost {
	if level < 0 {
		level = 0
	}
	mult := math.Pow(CostFactor, float64(level))
	out := make(economy.Cost, len(p.BaseCost))
	for kind, amount := range p.BaseCost {
		out[kind] = math.Floor(amount * mult)
	}
	return out
}

// Duration returns the game-time length of the upgrade from level:
// baseDuration * 1.2^level seconds.
func Duration(p Params, level int) time.Duration {
	if level < 0 {
		level = 0
	}
	secs := p.BaseDuration * math.Pow(DurationFactor, float64(level))
	return time.Duration(secs * float64(time.Second))
}

// WallDuration converts Duration into wall-clock time under a speed multiplier.
// Non-positive speeds are treated as 1.
func WallDuration(p Params, level int, speed float64) time.Duration {
	return Scale(Duration(p, level), speed)
}

// Scale divides d by the speed multiplier.
func Scale(d time.Duration, speed float64) time.Duration {
	if !(speed > 0) {
		speed = 1
	}
	return time.Duration(float64(d) / speed)
}
