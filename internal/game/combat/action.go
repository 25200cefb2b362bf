package combat

// ActionType identifies what a combatant does on its turn.
// The zero value (ActionUnknown) is intentionally invalid.
type ActionType int

const (
	ActionUnknown ActionType = iota // zero value; intentionally invalid
	ActionAttack
	ActionAim
	ActionBurst
	ActionGuard
	ActionUseConsumable
	ActionRetreat
)

// String returns the human-readable name of the ActionType.
func (a ActionType) String() string {
	switch a {
	case ActionAttack:
		return "attack"
	case ActionAim:
		return "aim"
	case ActionBurst:
		return "burst"
	case ActionGuard:
		return "guard"
	case ActionUseConsumable:
		return "use_consumable"
	case ActionRetreat:
		return "retreat"
	default:
		return "unknown"
	}
}

// NeedsTarget reports whether the action must name a target combatant.
func (a ActionType) NeedsTarget() bool {
	return a == ActionAttack || a == ActionBurst
}

// Action is one submitted or AI-selected action.
type Action struct {
	Type     ActionType
	ActorID  string
	TargetID string
	// Consumable is used by ActionUseConsumable. TargetID may name a hostile for
	// offensive consumables; it defaults to the actor otherwise.
	Consumable ConsumableKind
}

// Attack builds an attack action.
func Attack(actorID, targetID string) Action {
	return Action{Type: ActionAttack, ActorID: actorID, TargetID: targetID}
}

// Burst builds a burst-fire action.
func Burst(actorID, targetID string) Action {
	return Action{Type: ActionBurst, ActorID: actorID, TargetID: targetID}
}

// Aim builds an aim action.
func Aim(actorID string) Action { return Action{Type: ActionAim, ActorID: actorID} }

// Guard builds a guard action.
func Guard(actorID string) Action { return Action{Type: ActionGuard, ActorID: actorID} }

// Retreat builds a retreat action.
func Retreat(actorID string) Action { return Action{Type: ActionRetreat, ActorID: actorID} }

// UseConsumable builds a consumable action against targetID (empty means self).
func UseConsumable(actorID string, k ConsumableKind, targetID string) Action {
	return Action{Type: ActionUseConsumable, ActorID: actorID, TargetID: targetID, Consumable: k}
}
