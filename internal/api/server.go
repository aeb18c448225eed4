// Package api provides the HTTP API over the simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token and are rate limited per client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/starholdings/internal/economy"
	"github.com/talgya/starholdings/internal/engine"
	"github.com/talgya/starholdings/internal/fleet"
	"github.com/talgya/starholdings/internal/persistence"
	"github.com/talgya/starholdings/internal/simerr"
)

// Server serves the game over HTTP and WebSocket.
type Server struct {
	Sim      *engine.Simulation
	DB       *persistence.DB // Optional; save endpoints need it
	Addr     string
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	Slot     string // Default save slot
	Now      func() time.Time

	Limiter *RateLimiter
	Hub     *Hub
}

// NewServer wires a server with the default clock, limiter, and hub.
func NewServer(sim *engine.Simulation, db *persistence.DB, addr, adminKey string, perSecond float64, burst int) *Server {
	return &Server{
		Sim:      sim,
		DB:       db,
		Addr:     addr,
		AdminKey: adminKey,
		Slot:     "autosave",
		Now:      time.Now,
		Limiter:  NewRateLimiter(perSecond, burst),
		Hub:      NewHub(),
	}
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/site", s.handleSite)
	mux.HandleFunc("GET /api/v1/fleets", s.handleFleets)
	mux.HandleFunc("GET /api/v1/fleets/{id}", s.handleFleet)
	mux.HandleFunc("GET /api/v1/regions", s.handleRegions)
	mux.HandleFunc("GET /api/v1/claims", s.handleClaims)
	mux.HandleFunc("GET /api/v1/market", s.handleMarket)
	mux.HandleFunc("GET /api/v1/missions", s.handleMissions)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/saves", s.handleSaves)
	mux.HandleFunc("GET /api/v1/ws", s.Hub.ServeWs)

	// Command endpoints.
	post := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc("POST "+pattern, s.adminOnly(RateLimitMiddleware(s.Limiter, h)))
	}
	post("/api/v1/speed", s.handleSpeed)
	post("/api/v1/save", s.handleSave)
	post("/api/v1/site/{key}/upgrade", s.handleBuildingUpgrade)
	post("/api/v1/site/cancel", s.handleBuildingCancel)
	post("/api/v1/fleets", s.handleAddFleet)
	post("/api/v1/fleets/{id}/{action}", s.handleFleetCommand)
	post("/api/v1/fleets/{id}/modules/{key}/{action}", s.handleModuleCommand)
	post("/api/v1/missions/{id}/accept", s.handleAcceptMission)
	post("/api/v1/missions/{id}/deliver", s.handleDeliverMission)
	post("/api/v1/claims/{region}", s.handleClaim)
	post("/api/v1/regions/{id}/grants", s.handleGrant)

	return corsMiddleware(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go s.Hub.Run(ctx)
	go s.forwardEvents(ctx)
	go func() {
		t := time.NewTicker(10 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Limiter.Sweep(time.Hour)
			}
		}
	}()

	srv := &http.Server{Addr: s.Addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "")
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// BroadcastStatus pushes a status frame to every socket. Wire it to Engine.OnAdvance.
func (s *Server) BroadcastStatus(time.Time) {
	s.Hub.Publish("status", s.Sim.Status())
}

func (s *Server) forwardEvents(ctx context.Context) {
	id, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			s.Hub.Publish("event", e)
		}
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list; localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "command endpoints disabled (no STARHOLDINGS_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// statusFor maps a rejection to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, simerr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, simerr.ErrInsufficientResources):
		return http.StatusPaymentRequired
	case errors.Is(err, simerr.ErrInvalidTarget):
		return http.StatusUnprocessableEntity
	case errors.Is(err, simerr.ErrInvalidTransition),
		errors.Is(err, simerr.ErrAlreadyInProgress),
		errors.Is(err, simerr.ErrAlreadyClaimed),
		errors.Is(err, simerr.ErrMaxLevel):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "reason": simerr.Reason(err)})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func fleetID(w http.ResponseWriter, r *http.Request) (fleet.ID, bool) {
	raw := strings.TrimPrefix(r.PathValue("id"), "F")
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid fleet id", http.StatusBadRequest)
		return 0, false
	}
	return fleet.ID(n), true
}

// fleetLocation returns the fleet's current region, or "" when it is unknown.
func (s *Server) fleetLocation(id fleet.ID) string {
	var loc string
	s.Sim.View(func(sim *engine.Simulation) {
		for _, f := range sim.Fleets {
			if f.ID == id {
				loc = f.Location
			}
		}
	})
	return loc
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Status())
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	var v siteView
	s.Sim.View(func(sim *engine.Simulation) { v = buildSite(sim) })
	writeJSON(w, v)
}

func (s *Server) handleFleets(w http.ResponseWriter, r *http.Request) {
	var v []fleetView
	s.Sim.View(func(sim *engine.Simulation) { v = buildFleets(sim) })
	writeJSON(w, v)
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	id, ok := fleetID(w, r)
	if !ok {
		return
	}
	var (
		v     fleetView
		found bool
	)
	s.Sim.View(func(sim *engine.Simulation) {
		for _, f := range sim.Fleets {
			if f.ID == id {
				v, found = buildFleet(sim, f, sim.Harvest(sim.LastUpdate)), true
			}
		}
	})
	if !found {
		writeError(w, simerr.Reject("fleet.get", simerr.ErrNotFound, "no fleet %s", id))
		return
	}
	writeJSON(w, v)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	var v []regionView
	s.Sim.View(func(sim *engine.Simulation) { v = buildRegions(sim) })
	writeJSON(w, v)
}

func (s *Server) handleClaims(w http.ResponseWriter, r *http.Request) {
	var v []claimView
	s.Sim.View(func(sim *engine.Simulation) { v = buildClaims(sim) })
	writeJSON(w, v)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	var v marketView
	s.Sim.View(func(sim *engine.Simulation) { v = buildMarket(sim) })
	writeJSON(w, v)
}

func (s *Server) handleMissions(w http.ResponseWriter, r *http.Request) {
	var v []missionView
	s.Sim.View(func(sim *engine.Simulation) { v = buildMissions(sim) })
	writeJSON(w, v)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	writeJSON(w, s.Sim.RecentEvents(limit))
}

func (s *Server) handleSaves(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "persistence disabled", http.StatusServiceUnavailable)
		return
	}
	slots, err := s.DB.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, slots)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Speed < 0 || req.Speed > 1000 {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Sim.SetSpeed(s.now(), req.Speed)
	writeJSON(w, map[string]float64{"speed": s.Sim.CurrentSpeed()})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "persistence disabled", http.StatusServiceUnavailable)
		return
	}
	req := struct {
		Slot string `json:"slot"`
	}{Slot: s.Slot}
	if !decode(w, r, &req) {
		return
	}
	if err := s.DB.SaveWorldState(s.Sim, req.Slot); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"saved": req.Slot})
}

func (s *Server) handleBuildingUpgrade(w http.ResponseWriter, r *http.Request) {
	if err := s.Sim.UpgradeBuilding(r.PathValue("key"), s.now()); err != nil {
		writeError(w, err)
		return
	}
	s.handleSite(w, r)
}

func (s *Server) handleBuildingCancel(w http.ResponseWriter, r *http.Request) {
	refund, err := s.Sim.CancelBuilding(s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"refund": refund})
}

func (s *Server) handleAddFleet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	id, err := s.Sim.AddFleet(req.Name, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{"id": id})
}

// handleFleetCommand dispatches POST /api/v1/fleets/{id}/{action}.
func (s *Server) handleFleetCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := fleetID(w, r)
	if !ok {
		return
	}
	var req struct {
		Destination string           `json:"destination"`
		Region      string           `json:"region"` // Probe target; defaults to the fleet's location
		Resource    economy.Resource `json:"resource"`
		Amount      float64          `json:"amount"`
		ToSite      bool             `json:"to_site"`
		Blueprint   string           `json:"blueprint"`
	}
	if !decode(w, r, &req) {
		return
	}

	now := s.now()
	var (
		result any
		err    error
	)
	switch action := r.PathValue("action"); action {
	case "select":
		err = s.Sim.SelectFleet(id)
	case "remove":
		err = s.Sim.RemoveFleet(id, now)
	case "travel":
		err = s.Sim.StartTravel(id, req.Destination, now)
	case "probe":
		region := req.Region
		if region == "" {
			region = s.fleetLocation(id)
		}
		err = s.Sim.StartProbing(id, region, now)
	case "scan":
		var found []int
		found, err = s.Sim.Scan(id, now)
		result = map[string]any{"found": found}
	case "upgrade":
		err = s.Sim.UpgradeFleet(id, now)
	case "cancel":
		var refund economy.Cost
		refund, err = s.Sim.CancelFleetUpgrade(id, now)
		result = map[string]any{"refund": refund}
	case "drones":
		err = s.Sim.BuyDrone(id, now)
	case "collectors":
		err = s.Sim.BuyCollector(id, now)
	case "transfer":
		var moved float64
		moved, err = s.Sim.TransferCargo(id, req.Resource, req.Amount, req.ToSite, now)
		result = map[string]any{"moved": moved}
	case "buy":
		var paid float64
		paid, err = s.Sim.Buy(id, req.Resource, req.Amount, now)
		result = map[string]any{"paid": paid}
	case "sell":
		var earned float64
		earned, err = s.Sim.Sell(id, req.Resource, req.Amount, now)
		result = map[string]any{"earned": earned}
	case "blueprints":
		err = s.Sim.InstallBlueprint(id, req.Blueprint, now)
	default:
		http.Error(w, "unknown fleet action "+strconv.Quote(action), http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		result = map[string]string{"ok": r.PathValue("action")}
	}
	writeJSON(w, result)
}

// handleModuleCommand dispatches POST /api/v1/fleets/{id}/modules/{key}/{action}.
func (s *Server) handleModuleCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := fleetID(w, r)
	if !ok {
		return
	}
	key := r.PathValue("key")
	var err error
	switch action := r.PathValue("action"); action {
	case "upgrade":
		err = s.Sim.UpgradeModule(id, key, s.now())
	case "toggle":
		var req struct {
			Active bool `json:"active"`
		}
		if !decode(w, r, &req) {
			return
		}
		err = s.Sim.ToggleModule(id, key, req.Active, s.now())
	default:
		http.Error(w, "unknown module action "+strconv.Quote(action), http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"ok": r.PathValue("action")})
}

func (s *Server) handleAcceptMission(w http.ResponseWriter, r *http.Request) {
	if err := s.Sim.AcceptMission(r.PathValue("id"), s.now()); err != nil {
		writeError(w, err)
		return
	}
	s.handleMissions(w, r)
}

func (s *Server) handleDeliverMission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fleet fleet.ID `json:"fleet"`
	}
	if !decode(w, r, &req) {
		return
	}
	rewards, err := s.Sim.DeliverMission(r.PathValue("id"), req.Fleet, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"rewards": rewards})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if err := s.Sim.ClaimRegion(r.PathValue("region"), s.now()); err != nil {
		writeError(w, err)
		return
	}
	s.handleClaims(w, r)
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Deposit int `json:"deposit"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.Sim.RequestGrant(r.PathValue("id"), req.Deposit, s.now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"region": r.PathValue("id"), "deposit": req.Deposit})
}
