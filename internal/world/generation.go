// Territory generation using layered simplex noise.
// Region level and deposit quality are sampled from independent noise fields
// so a seed always reproduces the same territory.
package world

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/starholdings/internal/economy"
)

// GenConfig holds territory generation parameters.
type GenConfig struct {
	Seed         int64              `yaml:"seed"`          // 0 = random
	Ring         int                `yaml:"ring"`          // Grid half-width around home; 1 gives a 3x3 block
	Spacing      float64            `yaml:"spacing"`       // Distance between grid cells
	LinkDistance float64            `yaml:"link_distance"` // Regions this close are adjacent
	MaxLevel     int                `yaml:"max_level"`     // Levels are drawn from 1..MaxLevel
	Deposits     int                `yaml:"deposits"`      // Per region
	Kinds        []economy.Resource `yaml:"kinds"`         // Deposit resource kinds
	BaseYield    float64            `yaml:"base_yield"`    // Deposit base amount at region level 1
	YieldFactor  float64            `yaml:"yield_factor"`  // Base amount growth per region level
	ExploredHome bool               `yaml:"explored_home"`
}

// DefaultGenConfig returns the reference territory: home plus eight neighbors.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:         0,
		Ring:         1,
		Spacing:      2,
		LinkDistance: 3,
		MaxLevel:     3,
		Deposits:     5,
		Kinds:        []economy.Resource{economy.Metal, economy.Gas},
		BaseYield:    10,
		YieldFactor:  1.2,
		ExploredHome: true,
	}
}

// HomeID is the ID of the starting region.
const HomeID = "home"

// Generate builds the territory graph.
func Generate(cfg GenConfig) (*Graph, error) {
	if cfg.Ring < 0 {
		return nil, fmt.Errorf("generate territory: negative ring %d", cfg.Ring)
	}
	if cfg.Ring > 0 && cfg.Spacing <= 0 {
		return nil, fmt.Errorf("generate territory: spacing must be positive, got %v", cfg.Spacing)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = DefaultGenConfig().Kinds
	}
	if cfg.MaxLevel < 1 {
		cfg.MaxLevel = 1
	}

	levelNoise := opensimplex.NewNormalized(seed)
	qualityNoise := opensimplex.NewNormalized(seed + 1)
	kindNoise := opensimplex.NewNormalized(seed + 2)

	g := NewGraph()
	home := &Region{ID: HomeID, Name: "Home", Level: 1}
	home.Deposits = makeDeposits(cfg, home, qualityNoise, kindNoise)
	if cfg.ExploredHome {
		home.MarkExplored()
	}
	g.Add(home)
	g.Home = HomeID

	n := 0
	for dx := -cfg.Ring; dx <= cfg.Ring; dx++ {
		for dy := -cfg.Ring; dy <= cfg.Ring; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			pos := Position{X: float64(dx) * cfg.Spacing, Y: float64(dy) * cfg.Spacing}
			v := octaveNoise(levelNoise, pos.X, pos.Y, 3, 0.35, 0.5)
			level := 1 + int(v*float64(cfg.MaxLevel))
			if level > cfg.MaxLevel {
				level = cfg.MaxLevel
			}
			r := &Region{
				ID:       regionID(n),
				Name:     regionName(n),
				Level:    level,
				Position: pos,
			}
			r.Deposits = makeDeposits(cfg, r, qualityNoise, kindNoise)
			g.Add(r)
			n++
		}
	}

	// Link every pair within range.
	regions := g.Sorted()
	for i, a := range regions {
		for _, b := range regions[i+1:] {
			if a.DistanceTo(b) <= cfg.LinkDistance {
				if err := g.Connect(a.ID, b.ID); err != nil {
					return nil, fmt.Errorf("generate territory: %w", err)
				}
			}
		}
	}
	return g, nil
}

// makeDeposits seeds a region's deposits. Base yield grows with region level;
// quality is drawn from [0.8, 1.2] and grows 10% per level.
func makeDeposits(cfg GenConfig, r *Region, quality, kind opensimplex.Noise) []*Deposit {
	out := make([]*Deposit, 0, cfg.Deposits)
	base := cfg.BaseYield * math.Pow(cfg.YieldFactor, float64(r.Level-1))
	for i := 0; i < cfg.Deposits; i++ {
		x := r.Position.X + float64(i)*0.37
		y := r.Position.Y - float64(i)*0.53
		q := 0.8 + 0.4*quality.Eval2(x, y)
		k := int(kind.Eval2(x*1.7, y*1.7) * float64(len(cfg.Kinds)))
		if k >= len(cfg.Kinds) {
			k = len(cfg.Kinds) - 1
		}
		out = append(out, &Deposit{
			Resource:   cfg.Kinds[k],
			BaseAmount: base,
			Quality:    q * math.Pow(1.1, float64(r.Level-1)),
		})
	}
	return out
}

func regionID(n int) string {
	if n < 26 {
		return fmt.Sprintf("region-%c", 'a'+n)
	}
	return fmt.Sprintf("region-%d", n+1)
}

func regionName(n int) string {
	if n < 26 {
		return fmt.Sprintf("Region %c", 'A'+n)
	}
	return fmt.Sprintf("Region %d", n+1)
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// LevelCounts returns how many regions sit at each level.
func LevelCounts(g *Graph) map[int]int {
	counts := make(map[int]int)
	for _, r := range g.Regions {
		counts[r.Level]++
	}
	return counts
}
