package economy

import (
	"time"

	"github.com/google/uuid"

	"github.com/talgya/starholdings/internal/simerr"
)

// Mission is a delivery contract offered by the station. Once accepted it must
// be delivered within TimeLimit; expiry is computed from AcceptedAt, not stored.
type Mission struct {
	ID           string  `json:"id" yaml:"-"`
	Name         string  `json:"name" yaml:"name"`
	Description  string  `json:"description" yaml:"description"`
	Requirements Cost    `json:"requirements" yaml:"requirements"`
	Rewards      Cost    `json:"rewards" yaml:"rewards"`
	TimeLimit    float64 `json:"time_limit_hours" yaml:"time_limit_hours"`

	AcceptedAt  time.Time `json:"accepted_at,omitempty" yaml:"-"`
	CompletedAt time.Time `json:"completed_at,omitempty" yaml:"-"`
}

// NewMission copies a mission template and assigns it a fresh ID.
func NewMission(tmpl Mission) *Mission {
	m := tmpl
	m.ID = uuid.NewString()
	m.Requirements = tmpl.Requirements.Clone()
	m.Rewards = tmpl.Rewards.Clone()
	m.AcceptedAt = time.Time{}
	m.CompletedAt = time.Time{}
	return &m
}

func (m *Mission) limit() time.Duration {
	return time.Duration(m.TimeLimit * float64(time.Hour))
}

// Accepted reports whether the mission has been taken.
func (m *Mission) Accepted() bool { return !m.AcceptedAt.IsZero() }

// Completed reports whether the mission has been delivered.
func (m *Mission) Completed() bool { return !m.CompletedAt.IsZero() }

// Expired reports whether the delivery window has closed without completion.
func (m *Mission) Expired(now time.Time) bool {
	return m.Accepted() && !m.Completed() && now.Sub(m.AcceptedAt) > m.limit()
}

// TimeRemaining returns the time left to deliver, never negative.
func (m *Mission) TimeRemaining(now time.Time) time.Duration {
	if !m.Accepted() || m.Completed() {
		return 0
	}
	left := m.AcceptedAt.Add(m.limit()).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Deliver hands the requirements over from ledger and pays out the rewards.
// Returns the rewards actually credited (rewards are clamped by capacity).
func (m *Mission) Deliver(ledger *Ledger, now time.Time) (Cost, error) {
	const op = "mission.deliver"
	switch {
	case !m.Accepted():
		return nil, simerr.Reject(op, simerr.ErrInvalidTransition, "mission %q not accepted", m.Name)
	case m.Completed():
		return nil, simerr.Reject(op, simerr.ErrInvalidTransition, "mission %q already completed", m.Name)
	case m.Expired(now):
		return nil, simerr.Reject(op, simerr.ErrInvalidTransition, "mission %q expired", m.Name)
	}
	if !ledger.Deduct(m.Requirements) {
		return nil, simerr.Reject(op, simerr.ErrInsufficientResources, "mission %q requirements not met", m.Name)
	}
	m.CompletedAt = now
	return ledger.Credit(m.Rewards), nil
}

// Accept takes the mission with id off the board and stamps its start time.
func (st *Station) Accept(id string, now time.Time) (*Mission, error) {
	for i, m := range st.Missions {
		if m.ID != id {
			continue
		}
		st.Missions = append(st.Missions[:i], st.Missions[i+1:]...)
		m.AcceptedAt = now
		return m, nil
	}
	return nil, simerr.Reject("mission.accept", simerr.ErrNotFound, "no mission %s on the board", id)
}

// Blueprint unlocks a ship module for purchase.
type Blueprint struct {
	Name         string         `json:"name" yaml:"name"`
	Module       string         `json:"module" yaml:"module"` // Module catalog key
	Cost         Cost           `json:"cost" yaml:"cost"`
	Requirements map[string]int `json:"requirements,omitempty" yaml:"requirements"` // Module key → minimum level
}

// Blueprint finds a blueprint by name.
func (st *Station) Blueprint(name string) (Blueprint, bool) {
	for _, b := range st.Blueprints {
		if b.Name == name {
			return b, true
		}
	}
	return Blueprint{}, false
}
