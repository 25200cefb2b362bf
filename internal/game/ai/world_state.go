// Package ai selects hostile actions and targets each enemy turn.
//
// Targeting is driven by the actor's combat.Behavior; hostile humans layer
// fixed-priority consumable and guard pre-checks on top of it.
package ai

import (
	"github.com/cory-johannsen/derelict/internal/game/combat"
)

// WorldState is the snapshot one actor decides against.
//
// Invariant: Actor must not be nil; Allies excludes Actor; Allies and Enemies
// hold only living combatants.
type WorldState struct {
	Actor   *combat.Combatant
	Allies  []*combat.Combatant
	Enemies []*combat.Combatant
}

// HasLivingEnemies reports whether at least one enemy can be targeted.
func (ws *WorldState) HasLivingEnemies() bool {
	return len(ws.Enemies) > 0
}

// FirstEnemy returns the first living enemy in roster order, or nil.
func (ws *WorldState) FirstEnemy() *combat.Combatant {
	if len(ws.Enemies) == 0 {
		return nil
	}
	return ws.Enemies[0]
}

// WeakestEnemy returns the living enemy with the lowest hp fraction, or nil.
//
// Postcondition: ties are broken by roster order.
func (ws *WorldState) WeakestEnemy() *combat.Combatant {
	return weakest(ws.Enemies)
}

// StrongestEnemy returns the living enemy with the highest Strength, or nil.
//
// Postcondition: ties are broken by roster order.
func (ws *WorldState) StrongestEnemy() *combat.Combatant {
	var best *combat.Combatant
	for _, e := range ws.Enemies {
		if best == nil || e.Strength() > best.Strength() {
			best = e
		}
	}
	return best
}

// EnemiesWithRole returns the living enemies whose class is role, in roster order.
func (ws *WorldState) EnemiesWithRole(role string) []*combat.Combatant {
	var out []*combat.Combatant
	for _, e := range ws.Enemies {
		if e.Class == role {
			out = append(out, e)
		}
	}
	return out
}

func weakest(cs []*combat.Combatant) *combat.Combatant {
	var best *combat.Combatant
	for _, c := range cs {
		if best == nil || c.HPFraction() < best.HPFraction() {
			best = c
		}
	}
	return best
}
