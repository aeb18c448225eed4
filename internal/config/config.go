// Package config loads the balance and catalog configuration from YAML.
// Default returns the reference balance so the server runs without a file;
// Load overlays a file on top of it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/fleet"
	"github.com/talgya/starholdings/internal/growth"
	"github.com/talgya/starholdings/internal/world"
)

// Building describes one production-site structure.
type Building struct {
	Key        string           `yaml:"key"`
	Name       string           `yaml:"name"`
	Resource   economy.Resource `yaml:"resource"` // Produced kind; empty for non-producers
	Params     growth.Params    `yaml:"params"`
	MaxLevel   int              `yaml:"max_level"`
	StartLevel int              `yaml:"start_level"`
	Storage    bool             `yaml:"storage"` // Capacity sets the site's metal/crystal limit
}

// Policy holds the timing and valuation knobs.
type Policy struct {
	ProbeSecondsPerLevel float64                      `yaml:"probe_seconds_per_level"`
	ProbeUsesSpeed       bool                         `yaml:"probe_uses_speed"`
	TravelMinutesPerUnit float64                      `yaml:"travel_minutes_per_unit"`
	ClaimDuration        time.Duration                `yaml:"claim_duration"`
	GrantDuration        time.Duration                `yaml:"grant_duration"`
	CancelRefund         float64                      `yaml:"cancel_refund"`
	ScanPower            float64                      `yaml:"scan_power"`
	Discovery            string                       `yaml:"discovery"` // expr over power, level, quality
	UnitValues           map[economy.Resource]float64 `yaml:"unit_values"`
	MaxEvents            int                          `yaml:"max_events"`
}

// Server holds the runtime knobs of the binary.
type Server struct {
	Addr         string        `yaml:"addr"`
	DBPath       string        `yaml:"db_path"`
	Slot         string        `yaml:"slot"`
	TickInterval time.Duration `yaml:"tick_interval"`
	Autosave     time.Duration `yaml:"autosave"`
	Speed        float64       `yaml:"speed"`
	LogLevel     string        `yaml:"log_level"`
	RateLimit    float64       `yaml:"rate_limit"` // Requests per second per client
	RateBurst    int           `yaml:"rate_burst"`
}

// Config is the complete balance and catalog.
type Config struct {
	Corporation    string         `yaml:"corporation"`
	StartResources economy.Cost   `yaml:"start_resources"`
	MinStorage     float64        `yaml:"min_storage"`
	Buildings      []Building     `yaml:"buildings"`
	Hull           fleet.HullSpec `yaml:"hull"`
	FleetName      string         `yaml:"fleet_name"`
	Modules        []fleet.Module `yaml:"modules"`
	StartModules   []string       `yaml:"start_modules"`

	Station    string               `yaml:"station"`
	Market     economy.MarketPolicy `yaml:"market"`
	Trades     []economy.Trade      `yaml:"trades"`
	Missions   []economy.Mission    `yaml:"missions"`
	Blueprints []economy.Blueprint  `yaml:"blueprints"`
	Territory  world.GenConfig      `yaml:"territory"`
	Policy     Policy               `yaml:"policy"`
	Server     Server               `yaml:"server"`
}

func params(cost economy.Cost, seconds float64) growth.Params {
	return growth.Params{BaseCost: cost, BaseDuration: seconds}
}

// Default returns the reference balance.
func Default() Config {
	mine := func(prod float64, cost economy.Cost, secs float64) growth.Params {
		p := params(cost, secs)
		p.BaseProduction = prod
		return p
	}
	storage := params(economy.Cost{economy.Metal: 100, economy.Crystal: 50}, 120)
	storage.BaseCapacity = 1000

	module := func(key, name string, kind fleet.Kind, res economy.Resource, rate, capacity float64, cost economy.Cost, secs float64) fleet.Module {
		p := params(cost, secs)
		p.BaseProduction = rate
		p.BaseCapacity = capacity
		return fleet.Module{
			Key: key, Name: name, Kind: kind, Resource: res,
			Params: p, MaxLevel: 15, BasePower: 10, BaseCrew: 2,
		}
	}
	refinery := module("refinery", "Ore Refinery", fleet.Production, economy.RefinedMetal, 1, 0,
		economy.Cost{economy.Metal: 300, economy.Gas: 100}, 240)
	refinery.Params.Factor = growth.ProductionFactor
	refinery.Input = economy.Metal
	refinery.InputRatio = 2

	return Config{
		Corporation:    "Stellar Industries",
		StartResources: economy.Cost{economy.Metal: 500, economy.Crystal: 300, economy.Credits: 1000},
		MinStorage:     1000,
		Buildings: []Building{
			{Key: "metal_mine", Name: "Metal Mine", Resource: economy.Metal, MaxLevel: 15, StartLevel: 1,
				Params: mine(10, economy.Cost{economy.Metal: 60, economy.Crystal: 15}, 60)},
			{Key: "crystal_mine", Name: "Crystal Mine", Resource: economy.Crystal, MaxLevel: 15, StartLevel: 1,
				Params: mine(8, economy.Cost{economy.Metal: 48, economy.Crystal: 24}, 80)},
			{Key: "solar_plant", Name: "Solar Plant", Resource: economy.Energy, MaxLevel: 50, StartLevel: 1,
				Params: mine(20, economy.Cost{economy.Metal: 75, economy.Crystal: 30}, 100)},
			{Key: "storage_facility", Name: "Storage Facility", MaxLevel: 50, StartLevel: 1, Storage: true,
				Params: storage},
			{Key: "shipyard", Name: "Shipyard", MaxLevel: 50,
				Params: params(economy.Cost{economy.Metal: 400, economy.Crystal: 200}, 300)},
			{Key: "research_lab", Name: "Research Lab", MaxLevel: 50,
				Params: params(economy.Cost{economy.Metal: 200, economy.Crystal: 400}, 240)},
		},
		Hull:      fleet.DefaultHullSpec(),
		FleetName: "Mothership Alpha",
		Modules: []fleet.Module{
			module("mining_drones", "Mining Drones", fleet.Collector, economy.Metal, 10, 0,
				economy.Cost{economy.Metal: 100, economy.Gas: 50}, 120),
			module("gas_collector", "Gas Collector", fleet.Collector, economy.Gas, 8, 0,
				economy.Cost{economy.Metal: 120, economy.Gas: 40}, 120),
			module("power_core", "Power Core", fleet.Generic, "", 0, 0,
				economy.Cost{economy.Metal: 150}, 180),
			module("cargo_hold", "Cargo Hold", fleet.Storage, "", 0, 1000,
				economy.Cost{economy.Metal: 200}, 150),
			module("crew_quarters", "Crew Quarters", fleet.Generic, "", 0, 0,
				economy.Cost{economy.Metal: 100, economy.Gas: 100}, 150),
			refinery,
			module("advanced_mining_drones", "Advanced Mining Drones", fleet.Collector, economy.Metal, 20, 0,
				economy.Cost{economy.Metal: 400, economy.RefinedMetal: 20}, 300),
		},
		StartModules: []string{"power_core", "cargo_hold", "crew_quarters"},

		Station: "Alpha Station",
		Market:  economy.DefaultMarketPolicy(),
		Trades: []economy.Trade{
			{Resource: economy.Metal, BuyPrice: 8, SellPrice: 10, Quantity: 1000},
			{Resource: economy.Gas, BuyPrice: 12, SellPrice: 15, Quantity: 1000},
			{Resource: economy.RefinedMetal, BuyPrice: 15, SellPrice: 20, Quantity: 500},
			{Resource: economy.RefinedGas, BuyPrice: 20, SellPrice: 25, Quantity: 500},
		},
		Missions: []economy.Mission{{
			Name:         "Resource Gathering",
			Description:  "Collect resources for the station's needs",
			Requirements: economy.Cost{economy.Metal: 100, economy.Gas: 50},
			Rewards:      economy.Cost{economy.Credits: 1000, economy.RefinedMetal: 20},
			TimeLimit:    24,
		}},
		Blueprints: []economy.Blueprint{
			{Name: "Mining Drone Bay", Module: "mining_drones", Cost: economy.Cost{economy.Credits: 1000}},
			{Name: "Gas Collector Array", Module: "gas_collector", Cost: economy.Cost{economy.Credits: 1500}},
			{Name: "Ore Refinery", Module: "refinery", Cost: economy.Cost{economy.Credits: 2500, economy.Metal: 200}},
			{Name: "Advanced Mining Drones", Module: "advanced_mining_drones",
				Cost:         economy.Cost{economy.Credits: 5000, economy.RefinedMetal: 100},
				Requirements: map[string]int{"mining_drones": 5}},
		},
		Territory: world.DefaultGenConfig(),
		Policy: Policy{
			ProbeSecondsPerLevel: 10,
			TravelMinutesPerUnit: 1,
			ClaimDuration:        24 * time.Hour,
			GrantDuration:        8 * time.Hour,
			CancelRefund:         0.5,
			ScanPower:            1,
			Discovery:            world.DefaultDiscovery,
			UnitValues:           map[economy.Resource]float64{economy.Metal: 10, economy.Gas: 15},
			MaxEvents:            1000,
		},
		Server: Server{
			Addr:         ":8080",
			DBPath:       "starholdings.db",
			Slot:         "autosave",
			TickInterval: time.Second,
			Autosave:     5 * time.Minute,
			Speed:        1,
			LogLevel:     "info",
			RateLimit:    10,
			RateBurst:    20,
		},
	}
}

// Load reads path and overlays it on Default. Lists in the file replace the
// defaults wholesale.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects balances the simulation cannot run with.
func (c Config) Validate() error {
	seen := make(map[string]bool)
	for _, b := range c.Buildings {
		if b.Key == "" {
			return fmt.Errorf("building with empty key")
		}
		if seen[b.Key] {
			return fmt.Errorf("duplicate building %q", b.Key)
		}
		seen[b.Key] = true
		if b.Params.BaseDuration <= 0 {
			return fmt.Errorf("building %q: base duration must be positive", b.Key)
		}
		if b.StartLevel < 0 || (b.MaxLevel > 0 && b.StartLevel > b.MaxLevel) {
			return fmt.Errorf("building %q: start level %d out of range", b.Key, b.StartLevel)
		}
	}
	modules := make(map[string]bool)
	for _, m := range c.Modules {
		if m.Key == "" {
			return fmt.Errorf("module with empty key")
		}
		if modules[m.Key] {
			return fmt.Errorf("duplicate module %q", m.Key)
		}
		modules[m.Key] = true
		if m.Params.BaseDuration <= 0 {
			return fmt.Errorf("module %q: base duration must be positive", m.Key)
		}
	}
	for _, k := range c.StartModules {
		if !modules[k] {
			return fmt.Errorf("start module %q not in catalog", k)
		}
	}
	for _, bp := range c.Blueprints {
		if !modules[bp.Module] {
			return fmt.Errorf("blueprint %q installs unknown module %q", bp.Name, bp.Module)
		}
	}
	if c.Hull.Upgrade.BaseDuration <= 0 {
		return fmt.Errorf("hull: base duration must be positive")
	}
	if c.Hull.BaseStorage <= 0 || c.Market.Capacity <= 0 {
		return fmt.Errorf("capacities must be positive")
	}
	if c.Market.PriceInterval <= 0 || c.Market.RestockInterval <= 0 {
		return fmt.Errorf("market intervals must be positive")
	}
	if c.Policy.ClaimDuration <= 0 || c.Policy.GrantDuration <= 0 {
		return fmt.Errorf("claim and grant durations must be positive")
	}
	if c.Policy.ProbeSecondsPerLevel <= 0 || c.Policy.TravelMinutesPerUnit <= 0 {
		return fmt.Errorf("probe and travel times must be positive")
	}
	if c.Policy.CancelRefund < 0 || c.Policy.CancelRefund > 1 {
		return fmt.Errorf("cancel refund %v outside [0,1]", c.Policy.CancelRefund)
	}
	if c.Server.TickInterval <= 0 || c.Server.Slot == "" {
		return fmt.Errorf("server needs a positive tick interval and a save slot")
	}
	if _, err := world.CompileScanPolicy(c.Policy.Discovery); err != nil {
		return err
	}
	return nil
}

// Building returns the building spec with key.
func (c Config) Building(key string) (Building, bool) {
	for _, b := range c.Buildings {
		if b.Key == key {
			return b, true
		}
	}
	return Building{}, false
}

// Module returns the module template with key.
func (c Config) Module(key string) (fleet.Module, bool) {
	for _, m := range c.Modules {
		if m.Key == key {
			return m, true
		}
	}
	return fleet.Module{}, false
}
