package fleet

import (
	"github.com/talgya/starholdings/internal/construction"
	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/growth"
)

// Kind tags a module's capability.
type Kind string

const (
	Generic    Kind = "generic"
	Collector  Kind = "collector"  // Harvests Resource while the fleet is idle
	Storage    Kind = "storage"    // Adds capacity for Resource, or all cargo when Resource is empty
	Production Kind = "production" // Converts Input into Resource
)

// Module is a leveled ship component. Capability-specific fields are read
// according to Kind; the rest are shared.
type Module struct {
	Key      string           `json:"key" yaml:"key"`
	Name     string           `json:"name" yaml:"name"`
	Kind     Kind             `json:"kind" yaml:"kind"`
	Resource economy.Resource `json:"resource,omitempty" yaml:"resource"`

	// Production only: units of Input consumed per unit produced.
	Input      economy.Resource `json:"input,omitempty" yaml:"input"`
	InputRatio float64          `json:"input_ratio,omitempty" yaml:"input_ratio"`

	Params    growth.Params `json:"params" yaml:"params"`
	MaxLevel  int           `json:"max_level" yaml:"max_level"`
	BasePower float64       `json:"base_power" yaml:"base_power"`
	BaseCrew  float64       `json:"base_crew" yaml:"base_crew"`

	Upgrade construction.Track `json:"upgrade"`
	Active  bool               `json:"active"`
}

// NewModule copies a catalog template as a fresh level-1 module.
func NewModule(tmpl Module) *Module {
	m := tmpl
	m.Params.BaseCost = tmpl.Params.BaseCost.Clone()
	m.Upgrade = construction.Track{Level: 1}
	return &m
}

// Level returns the module's current level.
func (m *Module) Level() int { return m.Upgrade.Level }

// Rate returns units per hour for collectors and production modules.
func (m *Module) Rate() float64 {
	if m.Kind != Collector && m.Kind != Production {
		return 0
	}
	return growth.Production(m.Params, m.Level())
}

// Capacity returns the storage added by a storage module.
func (m *Module) Capacity() float64 {
	if m.Kind != Storage {
		return 0
	}
	return growth.Capacity(m.Params, m.Level())
}

// PowerUsage is the power drawn while active.
func (m *Module) PowerUsage() float64 { return powerAt(m.BasePower, m.Level()) }

// CrewRequired is the crew assigned while active.
func (m *Module) CrewRequired() float64 { return m.BaseCrew * float64(m.Level()) }

func powerAt(base float64, level int) float64 {
	return growth.Exp(base, 1.1, level)
}

// NextCost returns the price of the next module level.
func (m *Module) NextCost() economy.Cost { return growth.Cost(m.Params, m.Level()) }
