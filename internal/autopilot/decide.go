package autopilot

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// Command is one POST against the command surface.
type Command struct {
	Kind   string `json:"kind"` // "claim", "upgrade", "probe" or "travel"
	Path   string `json:"path"`
	Body   any    `json:"body,omitempty"`
	Reason string `json:"reason"`
}

// Decide picks at most one command for the snapshot, in priority order:
// keep a claim on an explored region, keep the site building, keep idle
// fleets exploring. It returns nil when nothing is worth doing.
func Decide(snap *Snapshot) *Command {
	if cmd := decideClaim(snap); cmd != nil {
		return cmd
	}
	if cmd := decideUpgrade(snap); cmd != nil {
		return cmd
	}
	return decideExplore(snap)
}

// decideClaim renews the corporation's lapsed claim, or takes the first
// available explored region when it never held one.
func decideClaim(snap *Snapshot) *Command {
	if snap.Status.ActiveClaim != "" {
		return nil
	}
	explored := make(map[string]bool)
	for _, r := range snap.Regions {
		explored[r.ID] = r.Visibility == "explored"
	}
	var pick *Claim
	for i := range snap.Claims {
		c := &snap.Claims[i]
		if c.State != "available" || !explored[c.Region] {
			continue
		}
		if c.Corporation == snap.Status.Corporation {
			pick = c
			break
		}
		if pick == nil {
			pick = c
		}
	}
	if pick == nil {
		return nil
	}
	reason := "claim explored region " + pick.Region
	if pick.Corporation == snap.Status.Corporation {
		reason = "renew lapsed claim on " + pick.Region
	}
	return &Command{
		Kind:   "claim",
		Path:   "/api/v1/claims/" + url.PathEscape(pick.Region),
		Reason: reason,
	}
}

// decideUpgrade starts the cheapest affordable building upgrade.
func decideUpgrade(snap *Snapshot) *Command {
	if snap.Status.Constructing != "" {
		return nil
	}
	var candidates []Building
	for _, b := range snap.Site.Buildings {
		if b.Upgrading || (b.MaxLevel > 0 && b.Level >= b.MaxLevel) {
			continue
		}
		if affordable(b.NextCost, snap.Site.Resources) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return total(candidates[i].NextCost) < total(candidates[j].NextCost)
	})
	b := candidates[0]
	return &Command{
		Kind:   "upgrade",
		Path:   "/api/v1/site/" + url.PathEscape(b.Key) + "/upgrade",
		Reason: fmt.Sprintf("%s to level %d for %s", b.Name, b.Level+1, formatCost(b.NextCost)),
	}
}

// decideExplore probes an idle fleet's unexplored region, or moves it to an
// unexplored neighbour.
func decideExplore(snap *Snapshot) *Command {
	regions := make(map[string]Region, len(snap.Regions))
	for _, r := range snap.Regions {
		regions[r.ID] = r
	}
	for _, f := range snap.Fleets {
		if f.Activity != "idle" {
			continue
		}
		here, ok := regions[f.Location]
		if !ok {
			continue
		}
		if here.Visibility != "explored" {
			return &Command{
				Kind:   "probe",
				Path:   fmt.Sprintf("/api/v1/fleets/%d/probe", f.ID),
				Body:   map[string]string{"region": here.ID},
				Reason: fmt.Sprintf("%s probes %s", f.Name, here.Name),
			}
		}
		for _, id := range here.Links {
			if next, ok := regions[id]; ok && next.Visibility != "explored" {
				return &Command{
					Kind:   "travel",
					Path:   fmt.Sprintf("/api/v1/fleets/%d/travel", f.ID),
					Body:   map[string]string{"destination": id},
					Reason: fmt.Sprintf("%s heads to %s", f.Name, next.Name),
				}
			}
		}
	}
	return nil
}

func affordable(cost, have map[string]float64) bool {
	for k, v := range cost {
		if have[k] < v {
			return false
		}
	}
	return true
}

func total(cost map[string]float64) float64 {
	var sum float64
	for _, v := range cost {
		sum += v
	}
	return sum
}

func formatCost(cost map[string]float64) string {
	keys := make([]string, 0, len(cost))
	for k := range cost {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, humanize.Commaf(cost[k])+" "+k)
	}
	return strings.Join(parts, ", ")
}
