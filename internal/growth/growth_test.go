package growth

import (
	"math"
	"testing"
	"time"

	"github.com/talgya/starholdings/internal/economy"
)

func TestProduction(t *testing.T) {
	p := Params{BaseProduction: 10}
	tests := []struct {
		level int
		want  float64
	}{
		{0, 0},
		{-3, 0},
		{1, 10},
		{2, 12.5},
		{3, 15.625},
	}
	for _, tt := range tests {
		if got := Production(p, tt.level); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Production(level %d) = %v, want %v", tt.level, got, tt.want)
		}
	}

	mod := Params{BaseProduction: 1, Factor: ProductionFactor}
	if got := Production(mod, 2); math.Abs(got-1.2) > 1e-9 {
		t.Errorf("production module level 2 = %v, want 1.2", got)
	}
}

func TestAbsentBaseYieldsExactZero(t *testing.T) {
	p := Params{BaseCost: economy.Cost{economy.Metal: 400}}
	for level := 0; level < 5; level++ {
		if Production(p, level) != 0 {
			t.Errorf("production at level %d not zero", level)
		}
		if Capacity(p, level) != 0 {
			t.Errorf("capacity at level %d not zero", level)
		}
	}
}

func TestCapacity(t *testing.T) {
	p := Params{BaseCapacity: 1000}
	if got := Capacity(p, 3); got != 3000 {
		t.Errorf("Capacity(3) = %v, want 3000", got)
	}
}

func TestCostLeavesCurrentLevel(t *testing.T) {
	p := Params{BaseCost: economy.Cost{economy.Metal: 100, economy.Crystal: 50}}
	tests := []struct {
		level          int
		metal, crystal float64
	}{
		{0, 100, 50},
		{1, 150, 75},
		{2, 225, 112},
	}
	for _, tt := range tests {
		c := Cost(p, tt.level)
		if c[economy.Metal] != tt.metal || c[economy.Crystal] != tt.crystal {
			t.Errorf("Cost(level %d) = %v, want metal %v crystal %v", tt.level, c, tt.metal, tt.crystal)
		}
	}
}

func TestCostMonotonic(t *testing.T) {
	p := Params{BaseCost: economy.Cost{economy.Metal: 60, economy.Crystal: 15}}
	prev := Cost(p, 0)
	for level := 1; level <= 50; level++ {
		c := Cost(p, level)
		for k, v := range c {
			if v < prev[k] {
				t.Fatalf("cost decreased at level %d for %s: %v < %v", level, k, v, prev[k])
			}
			if v != math.Floor(v) {
				t.Fatalf("cost not integral at level %d: %v", level, v)
			}
		}
		prev = c
	}
}

func TestDuration(t *testing.T) {
	p := Params{BaseDuration: 60}
	if got := Duration(p, 0); got != time.Minute {
		t.Errorf("Duration(0) = %v, want 1m", got)
	}
	if got := Duration(p, 1); got != 72*time.Second {
		t.Errorf("Duration(1) = %v, want 72s", got)
	}
	if got := WallDuration(p, 1, 2); got != 36*time.Second {
		t.Errorf("WallDuration at 2x = %v, want 36s", got)
	}
	if got := WallDuration(p, 0, 0); got != time.Minute {
		t.Errorf("WallDuration at speed 0 = %v, want 1m", got)
	}
}

func TestDeterministic(t *testing.T) {
	p := Params{BaseProduction: 7.3, BaseCost: economy.Cost{economy.Gas: 33}, BaseDuration: 17}
	for level := 0; level < 20; level++ {
		if Production(p, level) != Production(p, level) ||
			Duration(p, level) != Duration(p, level) ||
			Cost(p, level)[economy.Gas] != Cost(p, level)[economy.Gas] {
			t.Fatalf("non-deterministic result at level %d", level)
		}
	}
}
