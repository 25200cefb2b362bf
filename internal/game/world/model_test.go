package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDirection_IsStandard(t *testing.T) {
	for _, d := range StandardDirections {
		assert.True(t, d.IsStandard(), "expected %q to be standard", d)
	}
	assert.False(t, Direction("airlock").IsStandard())
	assert.False(t, Direction("north").IsStandard())
}

func TestDirection_Opposite(t *testing.T) {
	pairs := [][2]Direction{
		{Fore, Aft},
		{Port, Starboard},
		{Up, Down},
	}
	for _, pair := range pairs {
		assert.Equal(t, pair[1], pair[0].Opposite())
		assert.Equal(t, pair[0], pair[1].Opposite())
	}
	assert.Equal(t, Direction(""), Direction("airlock").Opposite())
}

func TestPropertyOppositeIsInvolution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idx := rapid.IntRange(0, len(StandardDirections)-1).Draw(t, "dir_idx")
		d := StandardDirections[idx]
		assert.Equal(t, d, d.Opposite().Opposite(), "opposite should be an involution for %q", d)
	})
}

func TestLocation_ExitFor(t *testing.T) {
	loc := &Location{
		ID: "test",
		Exits: []Exit{
			{Direction: Fore, Target: "bow"},
			{Direction: Port, Target: "port_bay"},
		},
	}

	e, ok := loc.ExitFor(Fore)
	assert.True(t, ok)
	assert.Equal(t, "bow", e.Target)

	_, ok = loc.ExitFor(Aft)
	assert.False(t, ok)
}

func TestLocation_OpenExits(t *testing.T) {
	loc := &Location{
		ID: "test",
		Exits: []Exit{
			{Direction: Fore, Target: "a"},
			{Direction: Aft, Target: "b", Sealed: true},
			{Direction: Up, Target: "c"},
		},
	}

	open := loc.OpenExits()
	assert.Len(t, open, 2)
	assert.Equal(t, Fore, open[0].Direction)
	assert.Equal(t, Up, open[1].Direction)
}

func TestDeck_Validate_Valid(t *testing.T) {
	assert.NoError(t, validTestDeck().Validate())
}

func TestDeck_Validate_Violations(t *testing.T) {
	cases := map[string]func(d *Deck){
		"empty id":      func(d *Deck) { d.ID = "" },
		"empty name":    func(d *Deck) { d.Name = "" },
		"missing entry": func(d *Deck) { d.Entry = "nowhere" },
		"no locations":  func(d *Deck) { d.Locations = map[string]*Location{} },
		"key mismatch":  func(d *Deck) { d.Locations["hangar"].ID = "wrong" },
		"empty title":   func(d *Deck) { d.Locations["hangar"].Title = "" },
		"empty target":  func(d *Deck) { d.Locations["hangar"].Exits = []Exit{{Direction: Fore}} },
		"zero count":    func(d *Deck) { d.Locations["hangar"].Spawns = []Spawn{{Species: "crawler"}} },
		"no species":    func(d *Deck) { d.Locations["hangar"].Spawns = []Spawn{{Count: 2}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := validTestDeck()
			mutate(d)
			assert.Error(t, d.Validate())
		})
	}
}

func TestPropertyGeneratedDecksValidate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := genDeck(t)
		if err := d.Validate(); err != nil {
			t.Fatalf("generated deck invalid: %v", err)
		}
		for _, loc := range d.Locations {
			for _, e := range loc.Exits {
				if _, ok := d.Locations[e.Target]; !ok {
					t.Fatalf("location %q exit %q targets unknown location %q", loc.ID, e.Direction, e.Target)
				}
			}
		}
	})
}

// genDeck generates a deck whose locations form a chain, so every location
// is reachable from the entry.
func genDeck(t *rapid.T) *Deck {
	n := rapid.IntRange(2, 7).Draw(t, "n")
	ids := make([]string, n)
	seen := map[string]bool{}
	for i := range ids {
		id := rapid.StringMatching(`loc_[a-z]{3,6}`).Draw(t, "id")
		for seen[id] {
			id += "x"
		}
		seen[id] = true
		ids[i] = id
	}
	locs := make(map[string]*Location, n)
	for i, id := range ids {
		loc := &Location{ID: id, DeckID: "gen", Title: "Location " + id}
		if i < n-1 {
			loc.Exits = append(loc.Exits, Exit{Direction: Fore, Target: ids[i+1]})
		}
		if i > 0 {
			loc.Exits = append(loc.Exits, Exit{Direction: Aft, Target: ids[i-1]})
		}
		locs[id] = loc
	}
	return &Deck{ID: "gen", Name: "Generated", Entry: ids[0], Locations: locs}
}

func validTestDeck() *Deck {
	return &Deck{
		ID:    "cargo",
		Name:  "Cargo Deck",
		Entry: "hangar",
		Locations: map[string]*Location{
			"hangar": {
				ID:     "hangar",
				DeckID: "cargo",
				Title:  "Hangar",
				Exits:  []Exit{{Direction: Fore, Target: "hold"}},
				Spawns: []Spawn{{Species: "crawler", Count: 2}},
				Hazard: map[string]string{},
			},
			"hold": {
				ID:     "hold",
				DeckID: "cargo",
				Title:  "Cargo Hold",
				Exits:  []Exit{{Direction: Aft, Target: "hangar"}},
				Hazard: map[string]string{},
			},
		},
	}
}
