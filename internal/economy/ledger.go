package economy

import "math"

// Ledger holds resource balances and storage capacities for a production site
// or a fleet. Balances never go negative and additions are clamped to capacity.
// Lowering a capacity never removes banked resources; it only blocks further adds.
type Ledger struct {
	Amounts    map[Resource]float64 `json:"amounts"`
	Capacities map[Resource]float64 `json:"capacities,omitempty"`

	// DefaultCapacity applies to kinds without an entry in Capacities.
	// Zero or negative means unbounded.
	DefaultCapacity float64 `json:"default_capacity"`

	// Uncapped kinds ignore both Capacities and DefaultCapacity (credits).
	Uncapped map[Resource]bool `json:"uncapped,omitempty"`
}

// NewLedger creates an empty ledger with the given default capacity.
func NewLedger(defaultCapacity float64) *Ledger {
	return &Ledger{
		Amounts:         make(map[Resource]float64),
		Capacities:      make(map[Resource]float64),
		DefaultCapacity: defaultCapacity,
		Uncapped:        make(map[Resource]bool),
	}
}

// Current returns the banked amount of kind.
func (l *Ledger) Current(kind Resource) float64 {
	return l.Amounts[kind]
}

// Capacity returns the storage limit for kind, or +Inf if unbounded.
func (l *Ledger) Capacity(kind Resource) float64 {
	if l.Uncapped[kind] {
		return math.Inf(1)
	}
	if c, ok := l.Capacities[kind]; ok {
		return c
	}
	if l.DefaultCapacity <= 0 {
		return math.Inf(1)
	}
	return l.DefaultCapacity
}

// SetCapacity sets the limit for a single kind.
func (l *Ledger) SetCapacity(kind Resource, capacity float64) {
	if l.Capacities == nil {
		l.Capacities = make(map[Resource]float64)
	}
	l.Capacities[kind] = capacity
}

// SetUncapped marks kind as unbounded.
func (l *Ledger) SetUncapped(kind Resource) {
	if l.Uncapped == nil {
		l.Uncapped = make(map[Resource]bool)
	}
	l.Uncapped[kind] = true
}

// Room returns how much of kind can still be added.
func (l *Ledger) Room(kind Resource) float64 {
	room := l.Capacity(kind) - l.Current(kind)
	if room < 0 {
		return 0
	}
	return room
}

// Add credits up to amount of kind, clamped to the remaining room.
// Returns the amount actually applied.
func (l *Ledger) Add(kind Resource, amount float64) float64 {
	if !(amount > 0) {
		return 0
	}
	added := math.Min(amount, l.Room(kind))
	if added <= 0 {
		return 0
	}
	if l.Amounts == nil {
		l.Amounts = make(map[Resource]float64)
	}
	l.Amounts[kind] += added
	return added
}

// Remove debits up to amount of kind, clamped to the current balance.
// Returns the amount actually removed.
func (l *Ledger) Remove(kind Resource, amount float64) float64 {
	if !(amount > 0) {
		return 0
	}
	removed := math.Min(amount, l.Current(kind))
	if removed <= 0 {
		return 0
	}
	l.Amounts[kind] -= removed
	return removed
}

// CanAfford reports whether every entry in cost is covered by the current balance.
func (l *Ledger) CanAfford(cost Cost) bool {
	for kind, amount := range cost {
		if amount > 0 && l.Current(kind) < amount {
			return false
		}
	}
	return true
}

// Deduct removes all of cost or nothing.
func (l *Ledger) Deduct(cost Cost) bool {
	if !l.CanAfford(cost) {
		return false
	}
	for kind, amount := range cost {
		l.Remove(kind, amount)
	}
	return true
}

// Credit adds every entry of c (each clamped) and returns what was applied.
func (l *Ledger) Credit(c Cost) Cost {
	applied := make(Cost, len(c))
	for _, kind := range c.Kinds() {
		if got := l.Add(kind, c[kind]); got > 0 {
			applied[kind] = got
		}
	}
	return applied
}

// Total sums every balance except the listed kinds.
func (l *Ledger) Total(except ...Resource) float64 {
	skip := make(map[Resource]bool, len(except))
	for _, k := range except {
		skip[k] = true
	}
	total := 0.0
	for kind, amount := range l.Amounts {
		if !skip[kind] {
			total += amount
		}
	}
	return total
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{
		Amounts:         make(map[Resource]float64, len(l.Amounts)),
		Capacities:      make(map[Resource]float64, len(l.Capacities)),
		DefaultCapacity: l.DefaultCapacity,
		Uncapped:        make(map[Resource]bool, len(l.Uncapped)),
	}
	for k, v := range l.Amounts {
		out.Amounts[k] = v
	}
	for k, v := range l.Capacities {
		out.Capacities[k] = v
	}
	for k, v := range l.Uncapped {
		out.Uncapped[k] = v
	}
	return out
}
