package mission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/encounter"
	"github.com/cory-johannsen/derelict/internal/game/npc"
	"github.com/cory-johannsen/derelict/internal/game/station"
	"github.com/cory-johannsen/derelict/internal/game/threat"
	"github.com/cory-johannsen/derelict/internal/scripting"
)

var (
	// ErrNoHostiles is returned when a trigger names no hostiles.
	ErrNoHostiles = errors.New("mission: trigger names no hostiles")
	// ErrPartyDown is returned when the triggering survivor is dead.
	ErrPartyDown = errors.New("mission: triggering survivor is down")
)

// humanPrefix marks a hostile-human roster entry; "human:<class>" pins the class.
const humanPrefix = "human"

// Deps are the collaborators a Bridge needs.
type Deps struct {
	Scripts    *scripting.Manager
	Factory    *npc.Factory
	Station    *station.Station
	Threat     *threat.Model
	Controller *encounter.Controller
	Logger     *zap.Logger
}

// Bridge starts mission encounters for Lua scripts.
type Bridge struct {
	deps Deps

	mu         sync.Mutex
	narratives map[string]*LuaNarrative
}

// NewBridge creates a Bridge and points the scripts' engine.station module at
// the station and threat model.
//
// Precondition: every Deps field except Logger must be non-nil.
func NewBridge(deps Deps) *Bridge {
	if deps.Scripts == nil || deps.Factory == nil || deps.Station == nil || deps.Threat == nil || deps.Controller == nil {
		panic("mission.NewBridge: Scripts, Factory, Station, Threat, and Controller must not be nil")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	b := &Bridge{deps: deps, narratives: make(map[string]*LuaNarrative)}
	deps.Scripts.Threat = deps.Threat.Value
	deps.Scripts.Roster = b.roster
	deps.Scripts.Broadcast = func(missionID, msg string) {
		deps.Logger.Info(msg, zap.String("mission", missionID))
	}
	return b
}

// Trigger begins a mission encounter for tag. partyID names the triggering
// survivor; when the mission's substitute_roster(tag) hook returns true the
// entire living roster fights instead. Each roster entry is a species id,
// "human", or "human:<class>".
//
// Postcondition: on success the encounter is active and its narrative is
// retrievable with Narrative. Narratives resolved by earlier missions are
// dropped.
func (b *Bridge) Trigger(partyID string, roster []string, tag string) (*encounter.Encounter, error) {
	d := b.deps
	missionID := MissionOf(tag)
	if len(roster) == 0 {
		return nil, ErrNoHostiles
	}

	sub, err := d.Scripts.CallHook(missionID, HookSubstitute, lua.LString(tag))
	if err != nil {
		return nil, fmt.Errorf("triggering %q: %w", tag, err)
	}
	party, err := b.party(partyID, lua.LVAsBool(sub))
	if err != nil {
		return nil, fmt.Errorf("triggering %q: %w", tag, err)
	}
	hostiles, err := b.hostiles(roster)
	if err != nil {
		return nil, fmt.Errorf("triggering %q: %w", tag, err)
	}

	narrative := NewLuaNarrative(d.Scripts, missionID, d.Logger)
	enc, err := d.Controller.BeginMission(tag, party, hostiles, narrative)
	if err != nil {
		return nil, fmt.Errorf("triggering %q: %w", tag, err)
	}
	b.mu.Lock()
	for id, n := range b.narratives {
		if n.Outcome() != "" {
			delete(b.narratives, id)
		}
	}
	b.narratives[enc.ID()] = narrative
	b.mu.Unlock()
	d.Logger.Info("mission triggered",
		zap.String("tag", tag),
		zap.String("encounter_id", enc.ID()),
		zap.Int("party", len(party)),
		zap.Int("hostiles", len(hostiles)),
		zap.Bool("substituted", lua.LVAsBool(sub)),
	)
	return enc, nil
}

// Narrative returns the narrative of a mission encounter begun by Trigger. A
// resolved narrative stays retrievable until the next mission is triggered.
func (b *Bridge) Narrative(encounterID string) (*LuaNarrative, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.narratives[encounterID]
	return n, ok
}

// Poll offers each loaded mission with a poll(threat) hook the chance to
// trigger. A hook that returns {tag=..., party=..., hostiles={...}} begins
// that mission; party defaults to the explorer, then to the first living
// survivor. Polling stops at the first mission begun.
//
// Postcondition: returns (nil, nil) when an encounter is already in progress
// or no mission triggers. Hook failures are joined into the error but do not
// stop later missions from being polled.
func (b *Bridge) Poll(ctx context.Context) (*encounter.Encounter, error) {
	d := b.deps
	if d.Controller.InProgress() {
		return nil, nil
	}
	var errs []error
	for _, id := range d.Scripts.Missions() {
		if err := ctx.Err(); err != nil {
			return nil, errors.Join(append(errs, err)...)
		}
		if !d.Scripts.HasHook(id, HookPoll) {
			continue
		}
		ret, err := d.Scripts.CallHook(id, HookPoll, lua.LNumber(d.Threat.Value()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tbl, ok := ret.(*lua.LTable)
		if !ok {
			continue
		}
		tag := lua.LVAsString(tbl.RawGetString("tag"))
		if tag == "" {
			continue
		}
		if MissionOf(tag) != id {
			tag = id + "/" + tag
		}
		partyID := lua.LVAsString(tbl.RawGetString("party"))
		if partyID == "" {
			partyID = b.defaultParty()
		}
		enc, err := b.Trigger(partyID, stringList(tbl.RawGetString("hostiles")), tag)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return enc, errors.Join(errs...)
	}
	return nil, errors.Join(errs...)
}

func (b *Bridge) party(partyID string, substitute bool) ([]*combat.Combatant, error) {
	st := b.deps.Station
	if substitute {
		if roster := st.Roster(); len(roster) > 0 {
			return roster, nil
		}
		return nil, encounter.ErrEmptyParty
	}
	m, ok := st.Member(partyID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", station.ErrUnknownSurvivor, partyID)
	}
	if !m.Survivor.Alive() {
		return nil, fmt.Errorf("%w: %q", ErrPartyDown, partyID)
	}
	return []*combat.Combatant{m.Survivor}, nil
}

func (b *Bridge) hostiles(roster []string) ([]*combat.Combatant, error) {
	f := b.deps.Factory
	value, esc := b.deps.Threat.Value(), b.deps.Threat.EscalationLevel()
	out := make([]*combat.Combatant, 0, len(roster))
	for _, entry := range roster {
		var (
			h   *combat.Combatant
			err error
		)
		switch kind, class, _ := strings.Cut(entry, ":"); {
		case kind == humanPrefix && class != "":
			h, err = f.GenerateHostileHumanOfClass(class, value, esc)
		case kind == humanPrefix:
			h, err = f.GenerateHostileHuman(value, esc)
		default:
			h, err = f.GenerateAlien(entry, value, esc)
		}
		if err != nil {
			return nil, fmt.Errorf("generating %q: %w", entry, err)
		}
		out = append(out, h)
	}
	return out, nil
}

func (b *Bridge) defaultParty() string {
	if ex := b.deps.Station.Explorer(); ex != nil {
		return ex.ID
	}
	if roster := b.deps.Station.Roster(); len(roster) > 0 {
		return roster[0].ID
	}
	return ""
}

func (b *Bridge) roster() []scripting.SurvivorInfo {
	roster := b.deps.Station.Roster()
	out := make([]scripting.SurvivorInfo, 0, len(roster))
	for _, c := range roster {
		out = append(out, scripting.SurvivorInfo{ID: c.ID, Name: c.Name, Class: c.Class, HP: c.HP, MaxHP: c.MaxHP})
	}
	return out
}

func stringList(v lua.LValue) []string {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	var out []string
	tbl.ForEach(func(_, item lua.LValue) {
		if s, ok := item.(lua.LString); ok {
			out = append(out, string(s))
		}
	})
	return out
}
