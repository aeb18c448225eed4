package world

import (
	"fmt"
	"sort"
)

// Graph holds every region and the undirected adjacency between them.
type Graph struct {
	Regions map[string]*Region `json:"regions"`
	Home    string             `json:"home"`
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{Regions: make(map[string]*Region)}
}

// Add inserts a region, replacing any with the same ID.
func (g *Graph) Add(r *Region) {
	g.Regions[r.ID] = r
}

// Region returns the region with id, or nil.
func (g *Graph) Region(id string) *Region {
	return g.Regions[id]
}

// Connect links two regions in both directions. Duplicate links are ignored.
func (g *Graph) Connect(a, b string) error {
	ra, rb := g.Regions[a], g.Regions[b]
	if ra == nil || rb == nil {
		return fmt.Errorf("connect %s-%s: unknown region", a, b)
	}
	if a == b {
		return fmt.Errorf("connect %s: self link", a)
	}
	if !hasLink(ra, b) {
		ra.Links = append(ra.Links, b)
	}
	if !hasLink(rb, a) {
		rb.Links = append(rb.Links, a)
	}
	return nil
}

func hasLink(r *Region, id string) bool {
	for _, l := range r.Links {
		if l == id {
			return true
		}
	}
	return false
}

// Neighbors returns the regions adjacent to id.
func (g *Graph) Neighbors(id string) []*Region {
	r := g.Regions[id]
	if r == nil {
		return nil
	}
	out := make([]*Region, 0, len(r.Links))
	for _, l := range r.Links {
		if n := g.Regions[l]; n != nil {
			out = append(out, n)
		}
	}
	return out
}

// ShortestPath returns the region IDs from a to b inclusive, found by
// breadth-first search over links. ok is false when b is unreachable.
func (g *Graph) ShortestPath(a, b string) (path []string, ok bool) {
	if g.Regions[a] == nil || g.Regions[b] == nil {
		return nil, false
	}
	if a == b {
		return []string{a}, true
	}
	prev := map[string]string{a: ""}
	queue := []string{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.Regions[cur].Links {
			if _, seen := prev[next]; seen || g.Regions[next] == nil {
				continue
			}
			prev[next] = cur
			if next == b {
				for at := b; at != ""; at = prev[at] {
					path = append(path, at)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// PathLength sums the Euclidean hop distances along path.
func (g *Graph) PathLength(path []string) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += g.Regions[path[i-1]].DistanceTo(g.Regions[path[i]])
	}
	return total
}

// RegionsWithinLevelRange returns regions with min <= level <= max, sorted by ID.
func (g *Graph) RegionsWithinLevelRange(min, max int) []*Region {
	return g.filter(func(r *Region) bool { return r.Level >= min && r.Level <= max })
}

// RegionsWithinDistance returns regions other than center no farther than maxDist.
func (g *Graph) RegionsWithinDistance(center string, maxDist float64) []*Region {
	c := g.Regions[center]
	if c == nil {
		return nil
	}
	return g.filter(func(r *Region) bool { return r.ID != center && r.DistanceTo(c) <= maxDist })
}

// Sorted returns every region ordered by ID.
func (g *Graph) Sorted() []*Region {
	return g.filter(func(*Region) bool { return true })
}

func (g *Graph) filter(keep func(*Region) bool) []*Region {
	var out []*Region
	for _, r := range g.Regions {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
