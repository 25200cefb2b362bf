package ai

import (
	"fmt"

	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/dice"
)

// Targeter picks a target from ws.Enemies, or nil when none is living.
type Targeter func(ws *WorldState, src dice.Source) *combat.Combatant

// TacticalPriority is the role order tactical hostiles work through:
// support and utility roles before the front line.
var TacticalPriority = []string{
	"medic", "engineer", "technician", "scout", "marksman", "scavenger", "soldier", "brute",
}

// Registry maps each behavior class to its Targeter.
//
// Invariant: each behavior is registered at most once.
type Registry struct {
	targeters map[combat.Behavior]Targeter
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{targeters: make(map[combat.Behavior]Targeter)}
}

// DefaultRegistry returns a Registry holding the aggressive, tactical, and
// opportunistic targeters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(combat.BehaviorAggressive, Aggressive)
	_ = r.Register(combat.BehaviorTactical, Tactical)
	_ = r.Register(combat.BehaviorOpportunistic, Opportunistic)
	return r
}

// Register stores t for behavior b.
//
// Precondition: t must not be nil.
// Postcondition: returns error on behavior collision.
func (r *Registry) Register(b combat.Behavior, t Targeter) error {
	if t == nil {
		return fmt.Errorf("ai.Registry: targeter for %s must not be nil", b)
	}
	if _, exists := r.targeters[b]; exists {
		return fmt.Errorf("ai.Registry: behavior %s already registered", b)
	}
	r.targeters[b] = t
	return nil
}

// TargeterFor returns the Targeter for b, or false if not registered.
func (r *Registry) TargeterFor(b combat.Behavior) (Targeter, bool) {
	t, ok := r.targeters[b]
	return t, ok
}

// Aggressive targets the living enemy with the lowest hp fraction.
func Aggressive(ws *WorldState, _ dice.Source) *combat.Combatant {
	return ws.WeakestEnemy()
}

// Tactical targets the weakest enemy of the first role in TacticalPriority
// that is present, falling back to Aggressive.
func Tactical(ws *WorldState, src dice.Source) *combat.Combatant {
	for _, role := range TacticalPriority {
		if t := weakest(ws.EnemiesWithRole(role)); t != nil {
			return t
		}
	}
	return Aggressive(ws, src)
}

// Opportunistic targets a uniformly random living enemy.
func Opportunistic(ws *WorldState, src dice.Source) *combat.Combatant {
	if len(ws.Enemies) == 0 {
		return nil
	}
	return ws.Enemies[src.Intn(len(ws.Enemies))]
}
