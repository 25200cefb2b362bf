package ai

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/condition"
	"github.com/cory-johannsen/derelict/internal/game/dice"
)

// Params are the hostile-human pre-check thresholds.
type Params struct {
	// HealBelow is the hp fraction under which a carried medkit is used.
	HealBelow float64
	// GuardBelow is the hp fraction under which Guard may be chosen.
	GuardBelow float64
	// GuardChance is the probability of guarding once under GuardBelow.
	GuardChance float64
}

// DefaultParams returns the stock pre-check thresholds.
func DefaultParams() Params {
	return Params{HealBelow: 0.35, GuardBelow: 0.5, GuardChance: 0.4}
}

// Policy chooses one action per hostile turn.
type Policy struct {
	registry *Registry
	params   Params
	src      dice.Source
	logger   *zap.Logger
}

// NewPolicy constructs a Policy. A nil registry is replaced with
// DefaultRegistry and a nil logger with a no-op logger.
//
// Precondition: src must not be nil.
func NewPolicy(registry *Registry, params Params, src dice.Source, logger *zap.Logger) *Policy {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{registry: registry, params: params, src: src, logger: logger}
}

// Decide returns the action actor takes against the opposing side.
//
// Hostile humans evaluate, in order: heal when below HealBelow; a stun grenade
// at the strongest enemy, or a combat drug when not already frenzied; a
// probabilistic Guard when below GuardBelow. Everyone else, and hostile humans
// whose pre-checks pass, attack the target chosen by their behavior.
//
// Precondition: actor must not be nil.
// Postcondition: returns Guard when no enemy is living.
func (p *Policy) Decide(actor *combat.Combatant, allies, enemies []*combat.Combatant) combat.Action {
	ws := BuildWorldState(actor, allies, enemies)
	if !ws.HasLivingEnemies() {
		return combat.Guard(actor.ID)
	}
	if actor.Faction == combat.FactionHostileHuman {
		if a, ok := p.precheck(ws); ok {
			p.logger.Debug("pre-check chosen",
				zap.String("actor", actor.ID),
				zap.Stringer("action", a.Type),
			)
			return a
		}
	}
	target := p.Target(ws)
	p.logger.Debug("target chosen",
		zap.String("actor", actor.ID),
		zap.Stringer("behavior", actor.Behavior),
		zap.String("target", target.ID),
	)
	return combat.Attack(actor.ID, target.ID)
}

// Target resolves the actor's behavior to a living enemy. Unregistered
// behaviors fall back to Aggressive.
//
// Precondition: ws.HasLivingEnemies().
func (p *Policy) Target(ws *WorldState) *combat.Combatant {
	t, ok := p.registry.TargeterFor(ws.Actor.Behavior)
	if !ok {
		t = Aggressive
	}
	if target := t(ws, p.src); target != nil {
		return target
	}
	return ws.FirstEnemy()
}

func (p *Policy) precheck(ws *WorldState) (combat.Action, bool) {
	actor := ws.Actor
	hp := actor.HPFraction()
	if hp < p.params.HealBelow {
		if k, ok := combat.BestMedkit(actor); ok {
			return combat.UseConsumable(actor.ID, k, actor.ID), true
		}
	}
	if actor.HasConsumable(combat.StunGrenade) {
		if s := ws.StrongestEnemy(); s != nil && !s.Effects.Has(condition.EffectStun) {
			return combat.UseConsumable(actor.ID, combat.StunGrenade, s.ID), true
		}
	}
	if actor.HasConsumable(combat.CombatDrug) && !actor.Effects.Has(condition.EffectFrenzy) {
		return combat.UseConsumable(actor.ID, combat.CombatDrug, actor.ID), true
	}
	if hp < p.params.GuardBelow && dice.Chance(p.src, p.params.GuardChance) {
		return combat.Guard(actor.ID), true
	}
	return combat.Action{}, false
}
