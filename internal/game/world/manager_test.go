package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewManager(t *testing.T) {
	mgr, err := NewManager([]*Deck{validTestDeck()})
	require.NoError(t, err)
	assert.Equal(t, 2, mgr.LocationCount())
	assert.Equal(t, 1, mgr.DeckCount())
	assert.Equal(t, "hangar", mgr.Entry().ID)
}

func TestNewManager_Empty(t *testing.T) {
	mgr, err := NewManager(nil)
	require.NoError(t, err)
	assert.Nil(t, mgr.Entry())
	assert.Empty(t, mgr.AllLocations())
}

func TestNewManager_DuplicateDeck(t *testing.T) {
	_, err := NewManager([]*Deck{validTestDeck(), validTestDeck()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate deck ID")
}

func TestNewManager_DuplicateLocation(t *testing.T) {
	other := &Deck{
		ID:    "other",
		Name:  "Other",
		Entry: "hangar",
		Locations: map[string]*Location{
			"hangar": {ID: "hangar", DeckID: "other", Title: "Duplicate"},
		},
	}
	_, err := NewManager([]*Deck{validTestDeck(), other})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate location ID")
}

func TestManager_Location(t *testing.T) {
	mgr, err := NewManager([]*Deck{validTestDeck()})
	require.NoError(t, err)

	loc, ok := mgr.Location("hold")
	require.True(t, ok)
	assert.Equal(t, "Cargo Hold", loc.Title)

	_, ok = mgr.Location("nowhere")
	assert.False(t, ok)
}

func TestManager_Navigate(t *testing.T) {
	mgr, err := NewManager([]*Deck{validTestDeck()})
	require.NoError(t, err)

	dest, err := mgr.Navigate("hangar", Fore)
	require.NoError(t, err)
	assert.Equal(t, "hold", dest.ID)

	_, err = mgr.Navigate("hangar", Aft)
	assert.Error(t, err)

	_, err = mgr.Navigate("nowhere", Fore)
	assert.Error(t, err)
}

func TestManager_Navigate_Sealed(t *testing.T) {
	d := validTestDeck()
	d.Locations["hangar"].Exits[0].Sealed = true
	mgr, err := NewManager([]*Deck{d})
	require.NoError(t, err)

	_, err = mgr.Navigate("hangar", Fore)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sealed")
}

func TestManager_ValidateExits(t *testing.T) {
	cargo := &Deck{
		ID: "cargo", Name: "Cargo", Entry: "a1",
		Locations: map[string]*Location{
			"a1": {ID: "a1", DeckID: "cargo", Title: "A1", Exits: []Exit{{Direction: Up, Target: "b1"}}},
		},
	}
	command := &Deck{
		ID: "command", Name: "Command", Entry: "b1",
		Locations: map[string]*Location{
			"b1": {ID: "b1", DeckID: "command", Title: "B1", Exits: []Exit{{Direction: Down, Target: "a1"}}},
		},
	}
	mgr, err := NewManager([]*Deck{cargo, command})
	require.NoError(t, err)
	assert.NoError(t, mgr.ValidateExits())

	cargo.Locations["a1"].Exits = append(cargo.Locations["a1"].Exits, Exit{Direction: Fore, Target: "void"})
	err = mgr.ValidateExits()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown location")
}

func TestManager_AllLocationsSorted(t *testing.T) {
	mgr, err := NewManager([]*Deck{validTestDeck()})
	require.NoError(t, err)
	locs := mgr.AllLocations()
	require.Len(t, locs, 2)
	assert.Equal(t, "hangar", locs[0].ID)
	assert.Equal(t, "hold", locs[1].ID)
}

func TestPropertyEveryLocationReachableFromEntry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mgr, err := NewManager([]*Deck{genDeck(t)})
		if err != nil {
			t.Fatalf("NewManager: %v", err)
		}
		visited := map[string]bool{mgr.Entry().ID: true}
		queue := []string{mgr.Entry().ID}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			loc, _ := mgr.Location(cur)
			for _, e := range loc.OpenExits() {
				dest, err := mgr.Navigate(cur, e.Direction)
				if err != nil {
					t.Fatalf("navigate %s %s: %v", cur, e.Direction, err)
				}
				if !visited[dest.ID] {
					visited[dest.ID] = true
					queue = append(queue, dest.ID)
				}
			}
		}
		if len(visited) != mgr.LocationCount() {
			t.Fatalf("only %d/%d locations reachable", len(visited), mgr.LocationCount())
		}
	})
}
