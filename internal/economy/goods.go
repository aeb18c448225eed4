// Package economy provides resource ledgers, the station market, missions, and blueprints.
package economy

import (
	"math"
	"sort"
)

// Resource identifies a kind of good. The set is open: missions and blueprints
// may introduce kinds that no ledger has seen before.
type Resource string

const (
	Metal        Resource = "metal"
	Crystal      Resource = "crystal"
	Gas          Resource = "gas"
	Energy       Resource = "energy"
	RefinedMetal Resource = "refined_metal"
	RefinedGas   Resource = "refined_gas"
	Credits      Resource = "credits"
	Fuel         Resource = "fuel"
)

// Cost maps resource kinds to amounts. Used for upgrade costs, mission
// requirements, rewards, and refunds.
type Cost map[Resource]float64

// Scale returns a new cost with every amount multiplied by f and floored.
func (c Cost) Scale(f float64) Cost {
	out := make(Cost, len(c))
	for k, v := range c {
		out[k] = math.Floor(v * f)
	}
	return out
}

// Clone returns an independent copy.
func (c Cost) Clone() Cost {
	out := make(Cost, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Kinds returns the resource kinds in c in a stable order.
func (c Cost) Kinds() []Resource {
	kinds := make([]Resource, 0, len(c))
	for k := range c {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// IsZero reports whether the cost asks for nothing.
func (c Cost) IsZero() bool {
	for _, v := range c {
		if v > 0 {
			return false
		}
	}
	return true
}
