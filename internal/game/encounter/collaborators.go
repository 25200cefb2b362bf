package encounter

import (
	"context"
	"time"

	"github.com/cory-johannsen/derelict/internal/game/combat"
)

// Disposition tells the map collaborator what to do with a location's hostiles
// once a field encounter resolves.
type Disposition int

const (
	// DispositionClear removes every hostile from the location.
	DispositionClear Disposition = iota
	// DispositionReseed replaces the location's hostiles with the survivors.
	DispositionReseed
	// DispositionLeave keeps the location's hostiles as they are.
	DispositionLeave
)

func (d Disposition) String() string {
	switch d {
	case DispositionClear:
		return "clear"
	case DispositionReseed:
		return "reseed"
	case DispositionLeave:
		return "leave"
	default:
		return "unknown"
	}
}

// RewardDispatcher grants loot, experience, and resources. Its effects are
// never inspected by the controller.
type RewardDispatcher interface {
	// HostileDefeated is called once per defeated hostile. killerID is empty
	// when the hostile died to a lingering effect.
	HostileDefeated(encounterID, killerID, hostileID string, xp int)
	// EncounterWon is called once when the party wins. xp is the total
	// experience awarded during the encounter.
	EncounterWon(encounterID string, partyIDs []string, xp int)
}

// LocationMap owns the hostile presence at exploration map locations.
type LocationMap interface {
	SeedLocation(locationID string, hostiles []*combat.Combatant)
	ResolveLocation(locationID string, d Disposition, survivors []*combat.Combatant)
}

// Roster owns the active survivor roster.
type Roster interface {
	RemoveFromRoster(survivorID string)
}

// Base receives raid consequences.
type Base interface {
	StructuralDamage(amount int)
	Overrun()
}

// ThreatSink receives threat adjustments caused by encounters.
type ThreatSink interface {
	RaiseThreat(amount float64)
	ReduceThreat(amount float64)
	// RaidWon is called when a raid resolves as a party win.
	RaidWon()
}

// Narrative is the mission engine's resume contract. Exactly one method is
// called per mission encounter.
type Narrative interface {
	OnWin(tag string) error
	OnLoss(tag string) error
	OnRetreat(tag string) error
}

// Spawner produces swarm offspring when a hostile dies.
type Spawner interface {
	Spawn(parent *combat.Combatant) []*combat.Combatant
}

// Record is the archived summary of a resolved encounter.
type Record struct {
	ID          string
	Context     Context
	Result      Result
	Rounds      int
	BaseOverrun bool
	LocationID  string
	MissionTag  string
	PartyIDs    []string
	HostileIDs  []string
	Defeated    int
	XP          int
	StartedAt   time.Time
	ResolvedAt  time.Time
	Log         []string
}

// Archiver persists resolved encounters.
type Archiver interface {
	Archive(ctx context.Context, rec Record) error
}

// Collaborators are the external systems the controller reports to.
// Nil fields are replaced with no-op implementations, except Armory.
type Collaborators struct {
	Rewards   RewardDispatcher
	Locations LocationMap
	Roster    Roster
	Base      Base
	Threat    ThreatSink
	Spawner   Spawner
	Archiver  Archiver
	// Armory is the shared ammo pool used when a Request carries none. A nil
	// Armory leaves such encounters without ammo accounting.
	Armory combat.AmmoPool
}

func (c Collaborators) withDefaults() Collaborators {
	var n nop
	if c.Rewards == nil {
		c.Rewards = n
	}
	if c.Locations == nil {
		c.Locations = n
	}
	if c.Roster == nil {
		c.Roster = n
	}
	if c.Base == nil {
		c.Base = n
	}
	if c.Threat == nil {
		c.Threat = n
	}
	if c.Spawner == nil {
		c.Spawner = n
	}
	if c.Archiver == nil {
		c.Archiver = n
	}
	return c
}

type nop struct{}

func (nop) HostileDefeated(string, string, string, int)              {}
func (nop) EncounterWon(string, []string, int)                       {}
func (nop) SeedLocation(string, []*combat.Combatant)                 {}
func (nop) ResolveLocation(string, Disposition, []*combat.Combatant) {}
func (nop) RemoveFromRoster(string)                                  {}
func (nop) StructuralDamage(int)                                     {}
func (nop) Overrun()                                                 {}
func (nop) RaiseThreat(float64)                                      {}
func (nop) ReduceThreat(float64)                                     {}
func (nop) RaidWon()                                                 {}
func (nop) OnWin(string) error                                       { return nil }
func (nop) OnLoss(string) error                                      { return nil }
func (nop) OnRetreat(string) error                                   { return nil }
func (nop) Spawn(*combat.Combatant) []*combat.Combatant              { return nil }
func (nop) Archive(context.Context, Record) error                    { return nil }
