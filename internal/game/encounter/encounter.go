// Package encounter implements the turn-based encounter state machine:
// party turns, a synchronous enemy phase, and resolution into win, loss, or
// retreat, with context-specific consequences for field, raid, and mission
// encounters.
package encounter

import (
	"errors"
	"time"

	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/condition"
)

var (
	// ErrEncounterInProgress is returned by Begin while another encounter is pending.
	ErrEncounterInProgress = errors.New("an encounter is already in progress")
	// ErrEncounterResolved is returned when acting on a resolved encounter.
	ErrEncounterResolved = errors.New("encounter already resolved")
	// ErrEncounterPending is returned by End before the encounter resolves.
	ErrEncounterPending = errors.New("encounter has not resolved")
	// ErrNotPartyTurn is returned when a party action arrives outside a party turn.
	ErrNotPartyTurn = errors.New("not a party turn")
	// ErrNotYourTurn is returned when the action's actor is not the active member.
	ErrNotYourTurn = errors.New("acting combatant is not the active party member")
	// ErrRetreatUnavailable is returned for retreat attempts during a raid.
	ErrRetreatUnavailable = errors.New("retreat is unavailable during a raid")
	// ErrNoExplorer is returned by a field encounter with nobody to defend.
	ErrNoExplorer = errors.New("no explorer is present")
	// ErrEmptyParty is returned by a mission encounter with no party.
	ErrEmptyParty = errors.New("party must not be empty")
	// ErrUnknownAction is returned for an action type the controller cannot dispatch.
	ErrUnknownAction = errors.New("unknown action type")
)

// Context is the situation an encounter was started from.
type Context int

const (
	ContextField Context = iota
	ContextRaid
	ContextMission
)

func (c Context) String() string {
	switch c {
	case ContextField:
		return "field"
	case ContextRaid:
		return "raid"
	case ContextMission:
		return "mission"
	default:
		return "unknown"
	}
}

// Result is the encounter outcome.
type Result int

const (
	ResultPending Result = iota
	ResultWin
	ResultLoss
	ResultRetreat
)

func (r Result) String() string {
	switch r {
	case ResultPending:
		return "pending"
	case ResultWin:
		return "win"
	case ResultLoss:
		return "loss"
	case ResultRetreat:
		return "retreat"
	default:
		return "unknown"
	}
}

// Phase is the state machine position.
type Phase int

const (
	PhasePartyTurn Phase = iota
	PhaseEnemyTurn
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhasePartyTurn:
		return "party_turn"
	case PhaseEnemyTurn:
		return "enemy_turn"
	case PhaseResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Request describes an encounter to begin.
type Request struct {
	Context Context
	// Party holds references to the same combatant records the rest of the
	// simulation uses; damage persists after the encounter.
	Party []*combat.Combatant
	// Hostiles are owned by the encounter.
	Hostiles []*combat.Combatant
	// LocationID is the map location of a field encounter.
	LocationID string
	// Turrets grant a flat defense bonus to the party during a raid.
	Turrets int
	// Ammo is the shared pool drawn on by ranged party attacks; nil disables ammo.
	Ammo combat.AmmoPool
	// MissionTag and Narrative carry the mission trigger and resume contract.
	MissionTag string
	Narrative  Narrative
}

// Encounter is one turn-based battle. It is created by Controller.Begin and
// only mutated by its Controller.
type Encounter struct {
	id          string
	context     Context
	party       []*combat.Combatant
	hostiles    []*combat.Combatant
	scattered   []*combat.Combatant
	location    string
	tag         string
	turrets     int
	ammo        combat.AmmoPool
	narrative   Narrative
	round       int
	cursor      int
	phase       Phase
	result      Result
	baseOverrun bool
	defeated    int
	xp          int
	log         *Log
	startedAt   time.Time
	resolvedAt  time.Time
	ended       bool
}

// ID returns the encounter's unique id.
func (e *Encounter) ID() string { return e.id }

// Context returns the encounter context.
func (e *Encounter) Context() Context { return e.context }

// Tag returns the mission tag, or "" outside missions.
func (e *Encounter) Tag() string { return e.tag }

func (e *Encounter) resolved() bool { return e.phase == PhaseResolved }

// active returns the party member whose turn it is, or nil.
func (e *Encounter) active() *combat.Combatant {
	if e.phase != PhasePartyTurn || e.cursor < 0 || e.cursor >= len(e.party) {
		return nil
	}
	return e.party[e.cursor]
}

// find returns the combatant with id from either side.
func (e *Encounter) find(id string) *combat.Combatant {
	for _, side := range [][]*combat.Combatant{e.party, e.hostiles} {
		for _, c := range side {
			if c.ID == id {
				return c
			}
		}
	}
	return nil
}

// sides returns the actor's side and the opposing side.
func (e *Encounter) sides(actor *combat.Combatant) (own, opposing []*combat.Combatant) {
	if actor.Faction.Hostile() {
		return e.hostiles, e.party
	}
	return e.party, e.hostiles
}

func anyAlive(cs []*combat.Combatant) bool {
	for _, c := range cs {
		if c.Alive() {
			return true
		}
	}
	return false
}

func living(cs []*combat.Combatant) []*combat.Combatant {
	var out []*combat.Combatant
	for _, c := range cs {
		if c.Alive() {
			out = append(out, c)
		}
	}
	return out
}

func ids(cs []*combat.Combatant) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

// Member is a read-only view of one combatant.
type Member struct {
	ID      string
	Name    string
	Faction combat.Faction
	HP      int
	MaxHP   int
	State   combat.LifeState
	Guard   int
	Aimed   bool
	Effects []condition.Effect
}

func memberOf(c *combat.Combatant) Member {
	return Member{
		ID: c.ID, Name: c.Name, Faction: c.Faction,
		HP: c.HP, MaxHP: c.MaxHP, State: c.State,
		Guard: c.GuardBonus, Aimed: c.Aimed,
		Effects: c.Effects.All(),
	}
}

// State is a point-in-time snapshot of an encounter. ActiveID names the party
// member whose action is awaited and is empty outside a party turn.
type State struct {
	ID          string
	Context     Context
	Phase       Phase
	Result      Result
	Round       int
	ActiveID    string
	BaseOverrun bool
	Party       []Member
	Hostiles    []Member
	Log         []string
}
