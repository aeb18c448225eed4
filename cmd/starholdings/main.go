// Command starholdings runs the idle economy simulation behind its HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/starholdings/internal/api"
	"github.com/talgya/starholdings/internal/config"
	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/engine"
	"github.com/talgya/starholdings/internal/entropy"
	"github.com/talgya/starholdings/internal/persistence"
	"github.com/talgya/starholdings/internal/simerr"
	"github.com/talgya/starholdings/internal/world"
)

func main() {
	configPath := flag.String("config", os.Getenv("STARHOLDINGS_CONFIG"), "YAML balance file (defaults built in)")
	fresh := flag.Bool("new", false, "ignore the saved slot and start a new game")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if v := os.Getenv("STARHOLDINGS_DB"); v != "" {
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("STARHOLDINGS_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("STARHOLDINGS_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Territory.Seed = seed
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := run(cfg, *fresh); err != nil {
		slog.Error("starholdings exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, fresh bool) error {
	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.Server.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Server.DBPath)

	// ── Load or Generate ──────────────────────────────────────────────
	roll := entropy.New(os.Getenv("RANDOM_ORG_KEY"), uint64(cfg.Territory.Seed))
	sim, err := loadOrCreate(cfg, db, roll, fresh)
	if err != nil {
		return err
	}

	levels := world.LevelCounts(sim.World)
	for l := 1; l <= cfg.Territory.MaxLevel; l++ {
		slog.Info("territory", "level", l, "regions", levels[l])
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(sim)
	eng.Interval = cfg.Server.TickInterval
	eng.Autosave = cfg.Server.Autosave
	eng.OnSave = func(time.Time) error { return db.SaveWorldState(sim, cfg.Server.Slot) }

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("STARHOLDINGS_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("STARHOLDINGS_ADMIN_KEY not set, command endpoints will be disabled")
	}
	server := api.NewServer(sim, db, cfg.Server.Addr, adminKey, cfg.Server.RateLimit, cfg.Server.RateBurst)
	server.Slot = cfg.Server.Slot
	eng.OnAdvance = server.BroadcastStatus

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := sim.Status()
	fmt.Printf("\n%s is trading: %s credits across %d fleet(s).\n",
		st.Corporation, humanize.Commaf(st.Resources[economy.Credits]), st.Fleets)
	fmt.Printf("API: http://localhost%s/api/v1/status\n", cfg.Server.Addr)

	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()

	err = server.Start(ctx)
	stop()
	<-done
	if err != nil {
		return err
	}
	fmt.Println("Simulation stopped. Game saved.")
	return nil
}

// loadOrCreate restores the configured slot, or starts a new game when it is
// missing or fresh is set.
func loadOrCreate(cfg config.Config, db *persistence.DB, roll entropy.Source, fresh bool) (*engine.Simulation, error) {
	now := time.Now()
	if !fresh {
		data, err := db.Load(cfg.Server.Slot)
		switch {
		case err == nil:
			sim, err := engine.Restore(cfg, data, roll)
			if err != nil {
				return nil, fmt.Errorf("restore %s: %w", cfg.Server.Slot, err)
			}
			saved := sim.LastUpdate
			sim.Advance(now, sim.CurrentSpeed())
			slog.Info("game restored",
				"slot", cfg.Server.Slot,
				"saved", humanize.Time(saved),
				"events", len(sim.RecentEvents(0)),
			)
			return sim, nil
		case errors.Is(err, simerr.ErrNotFound):
			slog.Info("no saved game, starting a new one", "slot", cfg.Server.Slot)
		default:
			return nil, fmt.Errorf("load %s: %w", cfg.Server.Slot, err)
		}
	}

	sim, err := engine.New(cfg, roll, now)
	if err != nil {
		return nil, err
	}
	if err := db.SaveWorldState(sim, cfg.Server.Slot); err != nil {
		slog.Error("initial save failed", "error", err)
	}
	return sim, nil
}
