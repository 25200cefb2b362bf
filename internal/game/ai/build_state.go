package ai

import (
	"github.com/cory-johannsen/derelict/internal/game/combat"
)

// BuildWorldState constructs the WorldState for actor from its side and the
// opposing side of an encounter. Dead combatants and the actor itself are
// filtered out; roster order is preserved.
//
// Precondition: actor must not be nil.
func BuildWorldState(actor *combat.Combatant, side, opposing []*combat.Combatant) *WorldState {
	ws := &WorldState{Actor: actor}
	for _, c := range side {
		if c != nil && c != actor && c.Alive() {
			ws.Allies = append(ws.Allies, c)
		}
	}
	for _, c := range opposing {
		if c != nil && c.Alive() {
			ws.Enemies = append(ws.Enemies, c)
		}
	}
	return ws
}
