// Command autopilot plays a starholdings game through its HTTP API.
// Each cycle it observes the game, decides on at most one command,
// and posts it with the admin token.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/starholdings/internal/autopilot"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	apiURL := envOrDefault("STARHOLDINGS_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("STARHOLDINGS_ADMIN_KEY")
	intervalSec := envIntOrDefault("AUTOPILOT_INTERVAL", 60)

	if adminKey == "" {
		slog.Error("STARHOLDINGS_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second

	slog.Info("autopilot starting",
		"api_url", apiURL,
		"interval", interval,
	)

	observer := autopilot.NewObserver(apiURL)
	actor := autopilot.NewActor(apiURL, adminKey)

	slog.Info("waiting for starholdings API...")
	waitForAPI(apiURL)

	runCycle(observer, actor)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runCycle(observer, actor)
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			fmt.Println("Autopilot stopped.")
			return
		}
	}
}

// runCycle executes one observe, decide, act cycle.
func runCycle(observer *autopilot.Observer, actor *autopilot.Actor) {
	snap, err := observer.Observe()
	if err != nil {
		slog.Error("observation failed", "error", err)
		return
	}
	slog.Info("observation complete",
		"assets", humanize.Commaf(snap.Status.TotalAssets),
		"fleets", snap.Status.Fleets,
		"constructing", snap.Status.Constructing,
		"claim", snap.Status.ActiveClaim,
	)

	cmd := autopilot.Decide(snap)
	if cmd == nil {
		slog.Info("cycle complete, nothing to do")
		return
	}

	result, err := actor.Act(cmd)
	if err != nil {
		slog.Warn("command rejected", "kind", cmd.Kind, "error", err)
		return
	}
	slog.Info("command executed", "kind", cmd.Kind, "reason", cmd.Reason, "result", result)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(apiURL string) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("starholdings API is ready")
				return
			}
		}
		if time.Now().After(deadline) {
			slog.Error("starholdings API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("API not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
