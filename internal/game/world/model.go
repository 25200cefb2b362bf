// Package world provides the derelict's deck map: decks, locations, the
// passages between them, and the hostiles each location starts with.
package world

import "fmt"

// Direction is a ship-relative heading or a named passage.
type Direction string

// Ship-relative headings.
const (
	Fore      Direction = "fore"
	Aft       Direction = "aft"
	Port      Direction = "port"
	Starboard Direction = "starboard"
	Up        Direction = "up"
	Down      Direction = "down"
)

// StandardDirections contains every ship-relative heading.
var StandardDirections = []Direction{Fore, Aft, Port, Starboard, Up, Down}

// IsStandard reports whether d is one of the six ship-relative headings.
func (d Direction) IsStandard() bool {
	for _, sd := range StandardDirections {
		if d == sd {
			return true
		}
	}
	return false
}

// Opposite returns the reverse heading. Named passages have no opposite and
// yield "".
func (d Direction) Opposite() Direction {
	switch d {
	case Fore:
		return Aft
	case Aft:
		return Fore
	case Port:
		return Starboard
	case Starboard:
		return Port
	case Up:
		return Down
	case Down:
		return Up
	default:
		return ""
	}
}

// Exit is a passage from one location to another.
type Exit struct {
	Direction Direction
	Target    string
	// Sealed passages cannot be traversed until something unseals them.
	Sealed bool
}

// Spawn is a group of aliens of one species present when the map loads.
type Spawn struct {
	Species string
	Count   int
}

// Location is one explorable area of the station.
type Location struct {
	ID          string
	DeckID      string
	Title       string
	Description string
	Exits       []Exit
	Spawns      []Spawn
	// Hazard tags environmental conditions (breached, dark, irradiated).
	Hazard map[string]string
}

// ExitFor returns the exit in direction dir.
//
// Postcondition: Returns (exit, true) if found, or (Exit{}, false) otherwise.
func (l *Location) ExitFor(dir Direction) (Exit, bool) {
	for _, e := range l.Exits {
		if e.Direction == dir {
			return e, true
		}
	}
	return Exit{}, false
}

// OpenExits returns every exit that is not sealed.
func (l *Location) OpenExits() []Exit {
	var open []Exit
	for _, e := range l.Exits {
		if !e.Sealed {
			open = append(open, e)
		}
	}
	return open
}

// Deck groups the locations on one level of the station.
type Deck struct {
	ID          string
	Name        string
	Description string
	// Entry is where an explorer arrives on this deck.
	Entry     string
	Locations map[string]*Location
}

// Validate checks deck invariants. Exits may target locations on other decks;
// Manager.ValidateExits resolves those.
//
// Postcondition: Returns nil if valid, or an error describing the first violation.
func (d *Deck) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("deck ID must not be empty")
	}
	if d.Name == "" {
		return fmt.Errorf("deck %q: name must not be empty", d.ID)
	}
	if len(d.Locations) == 0 {
		return fmt.Errorf("deck %q: must contain at least one location", d.ID)
	}
	if _, ok := d.Locations[d.Entry]; !ok {
		return fmt.Errorf("deck %q: entry %q not found in locations", d.ID, d.Entry)
	}
	for id, loc := range d.Locations {
		if loc.ID != id {
			return fmt.Errorf("deck %q: location key %q does not match location ID %q", d.ID, id, loc.ID)
		}
		if loc.Title == "" {
			return fmt.Errorf("deck %q: location %q: title must not be empty", d.ID, id)
		}
		for _, e := range loc.Exits {
			if e.Target == "" {
				return fmt.Errorf("deck %q: location %q: exit %q has empty target", d.ID, id, e.Direction)
			}
		}
		for _, s := range loc.Spawns {
			if s.Species == "" || s.Count < 1 {
				return fmt.Errorf("deck %q: location %q: spawn needs a species and a positive count", d.ID, id)
			}
		}
	}
	return nil
}
