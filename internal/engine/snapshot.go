package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/talgya/starholdings/internal/config"
	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/entropy"
	"github.com/talgya/starholdings/internal/fleet"
	"github.com/talgya/starholdings/internal/world"
)

// SnapshotVersion is bumped when the saved layout changes incompatibly.
const SnapshotVersion = 1

// Snapshot is every piece of mutable state, including in-flight timers as
// absolute timestamps. Catalog specs are not saved; Restore rebinds them from
// the config.
type Snapshot struct {
	Version     int                `json:"version"`
	Corporation string             `json:"corporation"`
	Site        *Site              `json:"site"`
	Fleets      []*fleet.Fleet     `json:"fleets"`
	NextFleetID fleet.ID           `json:"next_fleet_id"`
	Selected    fleet.ID           `json:"selected"`
	World       *world.Graph       `json:"world"`
	Station     *economy.Station   `json:"station"`
	Claims      []*world.Claim     `json:"claims"`
	Missions    []*economy.Mission `json:"missions"`
	Events      []Event            `json:"events"`
	LastUpdate  time.Time          `json:"last_update"`
	Speed       float64            `json:"speed"`
}

// MarshalSnapshot encodes the current state as JSON.
func (s *Simulation) MarshalSnapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(Snapshot{
		Version:     SnapshotVersion,
		Corporation: s.Corporation,
		Site:        s.Site,
		Fleets:      s.Fleets,
		NextFleetID: s.NextFleetID,
		Selected:    s.Selected,
		World:       s.World,
		Station:     s.Station,
		Claims:      s.Claims,
		Missions:    s.Missions,
		Events:      s.Events,
		LastUpdate:  s.LastUpdate,
		Speed:       s.Speed,
	})
}

// Restore rebuilds a simulation from MarshalSnapshot output. Timers resume
// against wall-clock time: the next Advance catches up over the gap.
func Restore(cfg config.Config, data []byte, roll entropy.Source) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, SnapshotVersion)
	}
	if snap.Site == nil || snap.World == nil || snap.Station == nil || len(snap.Fleets) == 0 {
		return nil, fmt.Errorf("snapshot incomplete")
	}
	scan, err := world.CompileScanPolicy(cfg.Policy.Discovery)
	if err != nil {
		return nil, err
	}

	if err := snap.Site.bind(cfg); err != nil {
		return nil, err
	}
	for _, f := range snap.Fleets {
		f.Spec = cfg.Hull
		f.Refresh()
	}
	snap.Station.Policy = cfg.Market
	if snap.World.Regions == nil {
		snap.World.Regions = make(map[string]*world.Region)
	}

	return &Simulation{
		Corporation: snap.Corporation,
		Site:        snap.Site,
		Fleets:      snap.Fleets,
		NextFleetID: snap.NextFleetID,
		Selected:    snap.Selected,
		World:       snap.World,
		Station:     snap.Station,
		Claims:      snap.Claims,
		Missions:    snap.Missions,
		Events:      snap.Events,
		LastUpdate:  snap.LastUpdate,
		Speed:       snap.Speed,
		cfg:         cfg,
		scan:        scan,
		roll:        roll,
		subs:        make(map[int]chan Event),
	}, nil
}
