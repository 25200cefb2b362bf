package npc

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cory-johannsen/derelict/internal/game/combat"
)

// Manager tracks the hostiles present at each map location.
// All methods are safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	hostiles  map[string]*combat.Combatant // combatantID → hostile
	locations map[string]map[string]bool   // locationID → set of combatantIDs
	where     map[string]string            // combatantID → locationID
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		hostiles:  make(map[string]*combat.Combatant),
		locations: make(map[string]map[string]bool),
		where:     make(map[string]string),
	}
}

// Seed places hostiles at locationID. Dead hostiles are ignored.
//
// Precondition: locationID must be non-empty.
// Postcondition: every living hostile is registered at locationID, moved there
// if it was elsewhere.
func (m *Manager) Seed(locationID string, hostiles ...*combat.Combatant) error {
	if locationID == "" {
		return fmt.Errorf("npc.Manager.Seed: locationID must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hostiles {
		if h == nil || !h.Alive() {
			continue
		}
		m.removeLocked(h.ID)
		m.hostiles[h.ID] = h
		m.where[h.ID] = locationID
		if m.locations[locationID] == nil {
			m.locations[locationID] = make(map[string]bool)
		}
		m.locations[locationID][h.ID] = true
	}
	return nil
}

// Hostiles returns a snapshot of the living hostiles at locationID, ordered by id.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (m *Manager) Hostiles(locationID string) []*combat.Combatant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.locations[locationID]
	out := make([]*combat.Combatant, 0, len(ids))
	for id := range ids {
		if h, ok := m.hostiles[id]; ok && h.Alive() {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of living hostiles at locationID.
func (m *Manager) Count(locationID string) int {
	return len(m.Hostiles(locationID))
}

// Clear removes every hostile at locationID.
func (m *Manager) Clear(locationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.locations[locationID] {
		delete(m.hostiles, id)
		delete(m.where, id)
	}
	delete(m.locations, locationID)
}

// Prune drops dead hostiles at locationID and keeps the survivors in place.
func (m *Manager) Prune(locationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.locations[locationID] {
		if h, ok := m.hostiles[id]; !ok || !h.Alive() {
			m.removeLocked(id)
		}
	}
}

// Remove deletes a hostile by id.
//
// Postcondition: Returns an error if the hostile is not found.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hostiles[id]; !ok {
		return fmt.Errorf("hostile %q not found", id)
	}
	m.removeLocked(id)
	return nil
}

// Get returns the hostile with the given id and its location.
func (m *Manager) Get(id string) (*combat.Combatant, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hostiles[id]
	return h, m.where[id], ok
}

// Locations returns the sorted ids of every location with at least one hostile.
func (m *Manager) Locations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.locations))
	for loc := range m.locations {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) removeLocked(id string) {
	loc, ok := m.where[id]
	if !ok {
		return
	}
	if set, ok := m.locations[loc]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(m.locations, loc)
		}
	}
	delete(m.where, id)
	delete(m.hostiles, id)
}
