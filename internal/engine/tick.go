// Package engine provides the simulation facade and the poll-driven loop
// that keeps it caught up with the wall clock.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Engine drives the simulation forward. Each step advances the simulation to
// the current clock reading at its speed; no state depends on step count.
type Engine struct {
	Sim      *Simulation
	Interval time.Duration // Poll interval (default 1 second)
	Autosave time.Duration // 0 disables periodic saves
	Now      func() time.Time

	// Callbacks populated during setup.
	OnAdvance func(now time.Time)       // After every step
	OnSave    func(now time.Time) error // Periodic and final save

	mu      sync.Mutex
	running bool
	steps   uint64
}

// NewEngine creates an engine for sim with default settings.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{
		Sim:      sim,
		Interval: time.Second,
		Now:      time.Now,
	}
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Steps returns the number of completed steps.
func (e *Engine) Steps() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

// Run polls until ctx is cancelled, then takes a final step and save.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	slog.Info("simulation engine started", "interval", e.Interval, "speed", e.Sim.CurrentSpeed())

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()
	var saveC <-chan time.Time
	if e.Autosave > 0 {
		saveTicker := time.NewTicker(e.Autosave)
		defer saveTicker.Stop()
		saveC = saveTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			e.Step()
			e.save()
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			slog.Info("simulation engine stopped", "steps", e.Steps())
			return
		case <-ticker.C:
			e.Step()
		case <-saveC:
			e.save()
		}
	}
}

// Step advances the simulation to the clock's current time.
func (e *Engine) Step() {
	now := e.Now()
	e.Sim.Advance(now, e.Sim.CurrentSpeed())
	e.mu.Lock()
	e.steps++
	e.mu.Unlock()
	if e.OnAdvance != nil {
		e.OnAdvance(now)
	}
}

func (e *Engine) save() {
	if e.OnSave == nil {
		return
	}
	now := e.Now()
	if err := e.OnSave(now); err != nil {
		slog.Error("autosave failed", "error", err)
		return
	}
	slog.Info("autosave", "at", humanize.Time(now), "assets", humanize.Commaf(e.Sim.TotalAssets()))
}
