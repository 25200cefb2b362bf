package world

import (
	"fmt"
	"sort"
	"sync"
)

// Manager provides thread-safe access to the loaded deck map, indexing
// locations across every deck by ID.
type Manager struct {
	mu        sync.RWMutex
	decks     map[string]*Deck
	locations map[string]*Location
	entry     string
}

// NewManager creates a Manager from decks. The first deck's entry is the
// station-wide entry point.
//
// Postcondition: Returns a Manager with every location indexed, or an error on
// duplicate deck or location IDs.
func NewManager(decks []*Deck) (*Manager, error) {
	m := &Manager{
		decks:     make(map[string]*Deck, len(decks)),
		locations: make(map[string]*Location),
	}
	for _, d := range decks {
		if _, exists := m.decks[d.ID]; exists {
			return nil, fmt.Errorf("duplicate deck ID: %q", d.ID)
		}
		m.decks[d.ID] = d
		for id, loc := range d.Locations {
			if existing, exists := m.locations[id]; exists {
				return nil, fmt.Errorf("duplicate location ID %q: on deck %q and %q", id, existing.DeckID, d.ID)
			}
			m.locations[id] = loc
		}
	}
	if len(decks) > 0 {
		m.entry = decks[0].Entry
	}
	return m, nil
}

// ValidateExits checks that every exit resolves to a known location on some
// deck. Call it after NewManager to catch dangling cross-deck passages.
func (m *Manager) ValidateExits() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.decks {
		for _, loc := range d.Locations {
			for _, e := range loc.Exits {
				if _, ok := m.locations[e.Target]; !ok {
					return fmt.Errorf("deck %q: location %q: exit %q targets unknown location %q",
						d.ID, loc.ID, e.Direction, e.Target)
				}
			}
		}
	}
	return nil
}

// Location returns the location with the given ID.
func (m *Manager) Location(id string) (*Location, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locations[id]
	return l, ok
}

// Navigate resolves movement from a location in direction dir.
//
// Postcondition: Returns the destination, or an error if the exit does not
// exist, is sealed, or targets an unknown location.
func (m *Manager) Navigate(fromID string, dir Direction) (*Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from, ok := m.locations[fromID]
	if !ok {
		return nil, fmt.Errorf("location %q not found", fromID)
	}
	e, ok := from.ExitFor(dir)
	if !ok {
		return nil, fmt.Errorf("no exit %q from %q", dir, fromID)
	}
	if e.Sealed {
		return nil, fmt.Errorf("the way %s is sealed", dir)
	}
	target, ok := m.locations[e.Target]
	if !ok {
		return nil, fmt.Errorf("exit %q from %q targets unknown location %q", dir, fromID, e.Target)
	}
	return target, nil
}

// Entry returns the station-wide entry location, or nil for an empty map.
func (m *Manager) Entry() *Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entry == "" {
		return nil
	}
	return m.locations[m.entry]
}

// LocationCount returns the number of locations across all decks.
func (m *Manager) LocationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.locations)
}

// DeckCount returns the number of loaded decks.
func (m *Manager) DeckCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.decks)
}

// AllLocations returns every location ordered by ID.
//
// Postcondition: Returns a non-nil slice; may be empty.
func (m *Manager) AllLocations() []*Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Location, 0, len(m.locations))
	for _, l := range m.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
