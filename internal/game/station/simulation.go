package station

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/dice"
	"github.com/cory-johannsen/derelict/internal/game/encounter"
	"github.com/cory-johannsen/derelict/internal/game/npc"
	"github.com/cory-johannsen/derelict/internal/game/threat"
	"github.com/cory-johannsen/derelict/internal/game/world"
)

// ThreatStore persists threat snapshots.
type ThreatStore interface {
	Save(ctx context.Context, s threat.State) error
}

// MissionSource offers scripted missions while the station is idle.
type MissionSource interface {
	Poll(ctx context.Context) (*encounter.Encounter, error)
}

// Params tunes the world tick.
type Params struct {
	// ExploreChance is the per-tick probability that the explorer moves on.
	ExploreChance float64
	// ProbeChance is the per-tick probability that a hostile probes a random
	// location while nobody explores.
	ProbeChance float64
	// PersistEvery saves the threat snapshot every N ticks; 0 disables it.
	PersistEvery int
}

// DefaultParams returns the shipped tick tuning.
func DefaultParams() Params {
	return Params{ExploreChance: 0.25, ProbeChance: 0.1, PersistEvery: 10}
}

// RaidSize returns the hostile count of a raid at the given threat.
//
// Postcondition: result >= 1.
func RaidSize(threatValue float64, escalation int) int {
	return 1 + int(threatValue)/25 + max(escalation, 0)/3
}

// Deps are the collaborators a Simulation drives.
type Deps struct {
	Station    *Station
	Threat     *threat.Model
	Factory    *npc.Factory
	Controller *encounter.Controller
	// Decks and Hostiles are optional; without them nobody explores.
	Decks    *world.Manager
	Hostiles *npc.Manager
	// Autopilot is optional; without it encounters wait for external Submit calls.
	Autopilot *Autopilot
	// Missions is optional; it is polled before the explorer moves.
	Missions MissionSource
	// Store is optional.
	Store  ThreatStore
	Src    dice.Source
	Logger *zap.Logger
}

// TickReport summarizes what one world tick did.
type TickReport struct {
	Tick         int
	Threat       float64
	Escalation   int
	RaidBegun    bool
	RaidDeferred bool
	FieldBegun   string
	MissionBegun string
	// Undefended names the location a hostile probed while nobody explored.
	Undefended string
	Resolved     []encounter.Result
	Persisted    bool
}

// Simulation is the station's world tick. Tick is safe for concurrent use but
// ticks run one at a time.
type Simulation struct {
	mu          sync.Mutex
	deps        Deps
	params      Params
	tick        int
	raidPending bool
	explorerAt  string
}

// NewSimulation creates a Simulation.
//
// Precondition: Station, Threat, Factory, Controller, and Src must be non-nil.
func NewSimulation(deps Deps, params Params) *Simulation {
	if deps.Station == nil || deps.Threat == nil || deps.Factory == nil || deps.Controller == nil || deps.Src == nil {
		panic("station.NewSimulation: Station, Threat, Factory, Controller, and Src must not be nil")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Simulation{deps: deps, params: params}
	if deps.Decks != nil {
		if entry := deps.Decks.Entry(); entry != nil {
			s.explorerAt = entry.ID
		}
	}
	return s
}

// SeedDecks populates every location's starting spawns at the current threat.
//
// Precondition: Decks and Hostiles must be set.
// Postcondition: returns the number of hostiles seeded, or the first
// generation error.
func (s *Simulation) SeedDecks() (int, error) {
	if s.deps.Decks == nil || s.deps.Hostiles == nil {
		return 0, fmt.Errorf("seeding decks: no deck map")
	}
	value, esc := s.deps.Threat.Value(), s.deps.Threat.EscalationLevel()
	n := 0
	for _, loc := range s.deps.Decks.AllLocations() {
		for _, sp := range loc.Spawns {
			for i := 0; i < sp.Count; i++ {
				h, err := s.deps.Factory.GenerateAlien(sp.Species, value, esc)
				if err != nil {
					return n, fmt.Errorf("seeding %s: %w", loc.ID, err)
				}
				if err := s.deps.Hostiles.Seed(loc.ID, h); err != nil {
					return n, fmt.Errorf("seeding %s: %w", loc.ID, err)
				}
				n++
			}
		}
	}
	s.deps.Logger.Info("decks seeded", zap.Int("hostiles", n), zap.Int("locations", len(s.deps.Hostiles.Locations())))
	return n, nil
}

// ExplorerAt returns the location the explorer is currently at.
func (s *Simulation) ExplorerAt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.explorerAt
}

// RaidPending reports whether a raid is waiting for the active encounter to end.
func (s *Simulation) RaidPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raidPending
}

// Tick advances the world by dt ending at now: threat growth, escalation, raid
// evaluation, mission polling, exploration, and periodic persistence. A raid that fires while
// an encounter is in progress is deferred until the next tick with none. With
// no explorer on the roster, hostiles may probe an undefended location instead.
//
// Postcondition: the report is valid even when an error is returned.
func (s *Simulation) Tick(ctx context.Context, now time.Time, dt time.Duration) (TickReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	rep := TickReport{Tick: s.tick}
	d := s.deps

	d.Threat.Advance(dt, d.Station.GuardCount())
	d.Threat.TickEscalation(now)
	if d.Threat.EvaluateRaid(now) {
		s.raidPending = true
	}

	var errs []error
	// Encounters driven by external Submit calls are ended here once resolved.
	if enc := d.Controller.Active(); enc != nil && !d.Controller.InProgress() {
		errs = append(errs, d.Controller.End(ctx, enc))
	}
	switch {
	case s.raidPending && d.Controller.InProgress():
		rep.RaidDeferred = true
	case s.raidPending:
		enc, err := s.beginRaidLocked()
		if err != nil {
			errs = append(errs, err)
			break
		}
		rep.RaidBegun = true
		errs = append(errs, s.driveLocked(ctx, enc, &rep))
	case !d.Controller.InProgress():
		enc, err := s.pollMissionsLocked(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		if enc != nil {
			rep.MissionBegun = enc.Tag()
			errs = append(errs, s.driveLocked(ctx, enc, &rep))
			break
		}
		if d.Station.Explorer() == nil {
			loc, err := s.probeLocked()
			if err != nil {
				errs = append(errs, err)
			}
			rep.Undefended = loc
			break
		}
		enc, err = s.exploreLocked()
		if err != nil {
			errs = append(errs, err)
			break
		}
		if enc != nil {
			rep.FieldBegun = s.explorerAt
			errs = append(errs, s.driveLocked(ctx, enc, &rep))
		}
	}

	if d.Store != nil && s.params.PersistEvery > 0 && s.tick%s.params.PersistEvery == 0 {
		if err := d.Store.Save(ctx, d.Threat.Snapshot()); err != nil {
			errs = append(errs, fmt.Errorf("persisting threat: %w", err))
		} else {
			rep.Persisted = true
		}
	}

	rep.Threat = d.Threat.Value()
	rep.Escalation = d.Threat.EscalationLevel()
	return rep, errors.Join(errs...)
}

func (s *Simulation) beginRaidLocked() (*encounter.Encounter, error) {
	d := s.deps
	value, esc := d.Threat.Value(), d.Threat.EscalationLevel()
	size := RaidSize(value, esc)
	hostiles, err := d.Factory.GenerateRaid(size, value, esc)
	if err != nil {
		return nil, fmt.Errorf("generating raid: %w", err)
	}
	s.raidPending = false
	enc, err := d.Controller.BeginRaid(d.Station.Guards(), hostiles, d.Station.Turrets(), d.Station)
	if err != nil {
		return nil, fmt.Errorf("beginning raid: %w", err)
	}
	d.Logger.Info("raid begun",
		zap.String("encounter_id", enc.ID()),
		zap.Int("size", size),
		zap.Float64("threat", value),
		zap.Int("escalation", esc),
	)
	return enc, nil
}

func (s *Simulation) pollMissionsLocked(ctx context.Context) (*encounter.Encounter, error) {
	if s.deps.Missions == nil {
		return nil, nil
	}
	enc, err := s.deps.Missions.Poll(ctx)
	if err != nil {
		err = fmt.Errorf("polling missions: %w", err)
	}
	return enc, err
}

// exploreLocked moves the explorer through an open exit and begins a field
// encounter when the destination holds hostiles. It returns nil without
// error when nobody explores or the explorer stays put.
func (s *Simulation) exploreLocked() (*encounter.Encounter, error) {
	d := s.deps
	if d.Decks == nil || d.Hostiles == nil {
		return nil, nil
	}
	explorer := d.Station.Explorer()
	if explorer == nil || !dice.Chance(d.Src, s.params.ExploreChance) {
		return nil, nil
	}
	here, ok := d.Decks.Location(s.explorerAt)
	if !ok {
		here = d.Decks.Entry()
	}
	open := here.OpenExits()
	if len(open) == 0 {
		return nil, nil
	}
	exit := open[d.Src.Intn(len(open))]
	dest, err := d.Decks.Navigate(here.ID, exit.Direction)
	if err != nil {
		return nil, fmt.Errorf("exploring: %w", err)
	}
	s.explorerAt = dest.ID
	d.Logger.Debug("explorer moved",
		zap.String("survivor", explorer.ID),
		zap.String("from", here.ID),
		zap.String("to", dest.ID),
	)
	hostiles := d.Hostiles.Hostiles(dest.ID)
	if len(hostiles) == 0 {
		return nil, nil
	}
	enc, err := d.Controller.BeginField(dest.ID, explorer, hostiles)
	if err != nil {
		return nil, fmt.Errorf("beginning field encounter at %s: %w", dest.ID, err)
	}
	return enc, nil
}

// probeLocked sends one hostile into a random location while nobody
// explores. The controller's no-defender case raises threat and may settle
// the hostile there. It returns the probed location id, or "" when no probe
// happened.
func (s *Simulation) probeLocked() (string, error) {
	d := s.deps
	if d.Decks == nil || d.Hostiles == nil || !dice.Chance(d.Src, s.params.ProbeChance) {
		return "", nil
	}
	locs := d.Decks.AllLocations()
	if len(locs) == 0 {
		return "", nil
	}
	loc := locs[d.Src.Intn(len(locs))]
	value, esc := d.Threat.Value(), d.Threat.EscalationLevel()
	h, err := d.Factory.GenerateAlien(d.Factory.RandomSpecies(value), value, esc)
	if err != nil {
		return "", fmt.Errorf("probing %s: %w", loc.ID, err)
	}
	_, err = d.Controller.BeginField(loc.ID, nil, []*combat.Combatant{h})
	switch {
	case errors.Is(err, encounter.ErrNoExplorer):
	case err != nil:
		return "", fmt.Errorf("probing %s: %w", loc.ID, err)
	}
	d.Logger.Debug("location probed",
		zap.String("location", loc.ID),
		zap.String("hostile", h.ID),
		zap.Int("present", d.Hostiles.Count(loc.ID)),
	)
	return loc.ID, nil
}

// driveLocked runs enc to completion with the autopilot, if there is one,
// and ends it. A lost or abandoned field encounter returns the explorer's
// position to the station entry.
func (s *Simulation) driveLocked(ctx context.Context, enc *encounter.Encounter, rep *TickReport) error {
	d := s.deps
	if d.Autopilot == nil {
		return nil
	}
	result, err := d.Autopilot.Run(ctx, enc)
	if err != nil {
		return fmt.Errorf("running encounter %s: %w", enc.ID(), err)
	}
	rep.Resolved = append(rep.Resolved, result)
	if enc.Context() == encounter.ContextField && result != encounter.ResultWin && d.Decks != nil {
		if entry := d.Decks.Entry(); entry != nil {
			s.explorerAt = entry.ID
		}
	}
	if err := d.Controller.End(ctx, enc); err != nil {
		return err
	}
	return nil
}
