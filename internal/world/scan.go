package world

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultDiscovery is the reference discovery probability per undiscovered deposit.
const DefaultDiscovery = "power / (level * 2)"

// ScanEnv is the environment a discovery expression is evaluated against.
type ScanEnv struct {
	Power   float64 `expr:"power"`
	Level   int     `expr:"level"`
	Quality float64 `expr:"quality"`
}

// Roller supplies uniform random numbers in [0,1).
type Roller interface {
	Float() float64
}

// ScanPolicy turns scan power and region level into a discovery probability.
type ScanPolicy struct {
	Source  string
	program *vm.Program
}

// CompileScanPolicy compiles a discovery expression. An empty source selects
// DefaultDiscovery.
func CompileScanPolicy(src string) (*ScanPolicy, error) {
	if src == "" {
		src = DefaultDiscovery
	}
	prog, err := expr.Compile(src, expr.Env(ScanEnv{}), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("compile discovery policy %q: %w", src, err)
	}
	return &ScanPolicy{Source: src, program: prog}, nil
}

// Probability evaluates the policy, clamped to [0,1]. Evaluation errors and
// NaN results count as zero.
func (p *ScanPolicy) Probability(env ScanEnv) float64 {
	out, err := vm.Run(p.program, env)
	if err != nil {
		return 0
	}
	f, ok := out.(float64)
	if !ok || math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(1, f))
}

// ScanDeposits rolls once for every undiscovered deposit and marks the hits
// discovered. Returns the indices found.
func (r *Region) ScanDeposits(p *ScanPolicy, power float64, roll Roller) []int {
	var found []int
	for i, d := range r.Deposits {
		if d.Discovered {
			continue
		}
		chance := p.Probability(ScanEnv{Power: power, Level: r.Level, Quality: d.Quality})
		if roll.Float() < chance {
			d.Discovered = true
			found = append(found, i)
		}
	}
	return found
}
