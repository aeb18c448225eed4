package construction

import (
	"errors"
	"testing"
	"time"

	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/growth"
	"github.com/talgya/starholdings/internal/simerr"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var mine = growth.Params{
	BaseProduction: 10,
	BaseCost:       economy.Cost{economy.Metal: 100, economy.Crystal: 50},
	BaseDuration:   60,
}

func funded(metal, crystal float64) *economy.Ledger {
	l := economy.NewLedger(0)
	l.Add(economy.Metal, metal)
	l.Add(economy.Crystal, crystal)
	return l
}

func TestStartDeductsAndSchedules(t *testing.T) {
	tr := Track{Level: 1}
	l := funded(500, 500)

	if err := tr.Start("test", mine, 15, l, t0, 2); err != nil {
		t.Fatalf("start: %v", err)
	}
	if l.Current(economy.Metal) != 350 || l.Current(economy.Crystal) != 425 {
		t.Errorf("ledger after start: %v", l.Amounts)
	}
	// 60 * 1.2 = 72s of game time at 2x → 36s wall clock.
	if want := t0.Add(36 * time.Second); !tr.Project.End.Equal(want) {
		t.Errorf("end = %v, want %v", tr.Project.End, want)
	}
	if tr.Level != 1 {
		t.Errorf("level incremented before completion: %d", tr.Level)
	}
}

func TestSecondStartFailsWithoutDoubleDeduct(t *testing.T) {
	tr := Track{Level: 1}
	l := funded(1000, 1000)
	if err := tr.Start("test", mine, 15, l, t0, 1); err != nil {
		t.Fatal(err)
	}
	metal := l.Current(economy.Metal)

	err := tr.Start("test", mine, 15, l, t0.Add(time.Second), 1)
	if !errors.Is(err, simerr.ErrAlreadyInProgress) {
		t.Fatalf("err = %v, want already in progress", err)
	}
	if l.Current(economy.Metal) != metal {
		t.Errorf("second start deducted: %v → %v", metal, l.Current(economy.Metal))
	}
}

func TestStartFailures(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		max     int
		ledger  *economy.Ledger
		wantErr error
	}{
		{"max level", 15, 15, funded(1e9, 1e9), simerr.ErrMaxLevel},
		{"unaffordable", 1, 15, funded(149, 1e9), simerr.ErrInsufficientResources},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Track{Level: tt.level}
			before := tt.ledger.Clone()
			err := tr.Start("test", mine, tt.max, tt.ledger, t0, 1)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tr.Project != nil {
				t.Error("project created on failure")
			}
			if tt.ledger.Current(economy.Metal) != before.Current(economy.Metal) {
				t.Error("ledger mutated on failure")
			}
		})
	}
}

func TestPollProgressAndCompletion(t *testing.T) {
	tr := Track{Level: 1}
	if err := tr.Start("test", mine, 15, funded(1000, 1000), t0, 1); err != nil {
		t.Fatal(err)
	}

	done, progress := tr.Poll(t0.Add(36 * time.Second))
	if done || progress != 0.5 {
		t.Fatalf("midway poll = %v, %v; want false, 0.5", done, progress)
	}
	if done, _ := tr.Poll(t0.Add(-time.Second)); done {
		t.Fatal("completed before start")
	}
	if _, p := tr.Poll(t0.Add(-time.Second)); p != 0 {
		t.Errorf("progress before start = %v, want 0", p)
	}

	done, progress = tr.Poll(t0.Add(10 * time.Hour))
	if !done || progress != 1 {
		t.Fatalf("late poll = %v, %v", done, progress)
	}
	if tr.Level != 2 || tr.Project != nil {
		t.Errorf("after completion: level %d project %v", tr.Level, tr.Project)
	}
	if next := growth.Cost(mine, tr.Level); next[economy.Metal] != 225 {
		t.Errorf("next cost recomputed from new level = %v", next)
	}
	if done, _ := tr.Poll(t0.Add(11 * time.Hour)); done {
		t.Error("completed twice")
	}
}

func TestCancelRefundsFraction(t *testing.T) {
	tr := Track{Level: 1}
	l := funded(150, 75)
	if err := tr.Start("test", mine, 15, l, t0, 1); err != nil {
		t.Fatal(err)
	}
	back, err := tr.Cancel("test", l, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if back[economy.Metal] != 75 || back[economy.Crystal] != 37 {
		t.Errorf("refund = %v", back)
	}
	if tr.Level != 1 || tr.Busy() {
		t.Errorf("after cancel: level %d busy %v", tr.Level, tr.Busy())
	}
	if _, err := tr.Cancel("test", l, 0.5); !errors.Is(err, simerr.ErrInvalidTransition) {
		t.Errorf("cancel idle: %v", err)
	}
}
