// Package autopilot implements a companion client that plays the game through
// the HTTP API. It observes state, decides on at most one command per cycle,
// and posts it with the admin token.
package autopilot

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status  Status   `json:"status"`
	Site    Site     `json:"site"`
	Fleets  []Fleet  `json:"fleets"`
	Regions []Region `json:"regions"`
	Claims  []Claim  `json:"claims"`
}

// Status mirrors GET /api/v1/status.
type Status struct {
	Corporation  string             `json:"corporation"`
	Time         time.Time          `json:"time"`
	Speed        float64            `json:"speed"`
	Resources    map[string]float64 `json:"resources"`
	Fleets       int                `json:"fleets"`
	Constructing string             `json:"constructing"`
	ActiveClaim  string             `json:"active_claim"`
	TotalAssets  float64            `json:"total_assets"`
}

// Building mirrors items of the site's building list.
type Building struct {
	Key       string             `json:"key"`
	Name      string             `json:"name"`
	Level     int                `json:"level"`
	MaxLevel  int                `json:"max_level"`
	NextCost  map[string]float64 `json:"next_cost"`
	Upgrading bool               `json:"upgrading"`
}

// Site mirrors GET /api/v1/site.
type Site struct {
	Resources map[string]float64 `json:"resources"`
	Storage   float64            `json:"storage"`
	Buildings []Building         `json:"buildings"`
}

// Fleet mirrors items from GET /api/v1/fleets.
type Fleet struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Activity string `json:"activity"`
}

// Region mirrors items from GET /api/v1/regions.
type Region struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Level      int      `json:"level"`
	Visibility string   `json:"visibility"`
	Links      []string `json:"links"`
}

// Claim mirrors items from GET /api/v1/claims.
type Claim struct {
	Region      string  `json:"region"`
	State       string  `json:"state"`
	Corporation string  `json:"corporation"`
	Remaining   float64 `json:"remaining_seconds"`
}

// Observer fetches game state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches the five read endpoints and returns a Snapshot.
func (o *Observer) Observe() (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/site", &snap.Site); err != nil {
		return nil, fmt.Errorf("fetch site: %w", err)
	}
	if err := o.fetchJSON("/api/v1/fleets", &snap.Fleets); err != nil {
		return nil, fmt.Errorf("fetch fleets: %w", err)
	}
	if err := o.fetchJSON("/api/v1/regions", &snap.Regions); err != nil {
		return nil, fmt.Errorf("fetch regions: %w", err)
	}
	if err := o.fetchJSON("/api/v1/claims", &snap.Claims); err != nil {
		return nil, fmt.Errorf("fetch claims: %w", err)
	}

	return snap, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
