package station_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/derelict/internal/game/ai"
	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/dice"
	"github.com/cory-johannsen/derelict/internal/game/encounter"
	"github.com/cory-johannsen/derelict/internal/game/npc"
	"github.com/cory-johannsen/derelict/internal/game/station"
	"github.com/cory-johannsen/derelict/internal/game/threat"
	"github.com/cory-johannsen/derelict/internal/game/world"
)

// raidyParams fires a raid on every evaluation once a second has passed.
func raidyParams() threat.Params {
	p := threat.DefaultParams()
	p.GrowthBase, p.GrowthJitter = 0, 0
	p.RaidBaseChance, p.RaidMaxChance = 1, 1
	p.MinRaidInterval, p.MaxRaidInterval = time.Second, time.Second
	return p
}

func quietParams() threat.Params {
	p := threat.DefaultParams()
	p.GrowthBase, p.GrowthJitter = 0, 0
	p.RaidBaseChance, p.RaidMaxChance = 0, 0
	return p
}

// cargoDeck is hangar --fore--> hold --aft--> hangar.
func cargoDeck(spawns ...world.Spawn) *world.Manager {
	deck := &world.Deck{
		ID: "cargo", Name: "Cargo", Entry: "hangar",
		Locations: map[string]*world.Location{
			"hangar": {ID: "hangar", DeckID: "cargo", Title: "Hangar", Exits: []world.Exit{{Direction: world.Fore, Target: "hold"}}},
			"hold":   {ID: "hold", DeckID: "cargo", Title: "Hold", Exits: []world.Exit{{Direction: world.Aft, Target: "hangar"}}, Spawns: spawns},
		},
	}
	mgr, err := world.NewManager([]*world.Deck{deck})
	if err != nil {
		panic(err)
	}
	return mgr
}

type memStore struct {
	saved []threat.State
	err   error
}

func (m *memStore) Save(_ context.Context, s threat.State) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, s)
	return nil
}

type rig struct {
	st       *station.Station
	model    *threat.Model
	ctl      *encounter.Controller
	policy   *ai.Policy
	hostiles *npc.Manager
	store    *memStore
	sim      *station.Simulation
}

func newRig(tp threat.Params, params station.Params, autopilot bool, logger *zap.Logger, opts ...func(*station.Deps)) *rig {
	r := &rig{hostiles: npc.NewManager(), store: &memStore{}}
	r.model = threat.NewModel(tp, dice.NewScripted(nil, nil), epoch, logger)
	r.st = station.New(r.model, 0, 50, logger)
	factory := factoryOf(husk)
	src := dice.NewSeededSource(7)
	rules := combat.DefaultRules()
	rules.CritChance = 0
	rules.MinHitChance, rules.MaxHitChance = 1, 1
	r.policy = ai.NewPolicy(nil, ai.DefaultParams(), src, logger)
	r.ctl = encounter.NewController(combat.NewResolver(rules, src, logger), r.policy, src, encounter.DefaultParams(), encounter.Collaborators{
		Rewards:   r.st,
		Locations: station.NewLocations(r.hostiles, logger),
		Roster:    r.st,
		Base:      r.st,
		Threat:    r.st,
		Spawner:   station.NewFactorySpawner(factory, r.model, logger),
		Armory:    r.st,
	}, logger)
	deps := station.Deps{
		Station:    r.st,
		Threat:     r.model,
		Factory:    factory,
		Controller: r.ctl,
		Decks:      cargoDeck(world.Spawn{Species: "husk", Count: 2}),
		Hostiles:   r.hostiles,
		Store:      r.store,
		Src:        dice.NewScripted(nil, nil),
		Logger:     logger,
	}
	if autopilot {
		deps.Autopilot = station.NewAutopilot(r.ctl, r.policy, 0, logger)
	}
	for _, opt := range opts {
		opt(&deps)
	}
	r.sim = station.NewSimulation(deps, params)
	return r
}

func (r *rig) enlist(t *testing.T, id string, hp, dmg int, task station.Task) *combat.Combatant {
	t.Helper()
	c := survivor(id, hp, dmg)
	require.NoError(t, r.st.AddSurvivor(c))
	require.NoError(t, r.st.Assign(id, task))
	return c
}

func at(secs int) time.Time { return epoch.Add(time.Duration(secs) * time.Second) }

func TestRaidSize(t *testing.T) {
	cases := []struct {
		value float64
		esc   int
		want  int
	}{
		{0, 0, 1},
		{24.9, 2, 1},
		{50, 0, 3},
		{100, 3, 6},
		{100, 7, 7},
		{10, -4, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, station.RaidSize(c.value, c.esc), "value=%v esc=%d", c.value, c.esc)
	}
}

func TestPropertyRaidSizeIsPositiveAndMonotone(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Float64Range(0, threat.MaxValue).Draw(t, "value")
		esc := rapid.IntRange(0, 50).Draw(t, "esc")
		n := station.RaidSize(v, esc)
		if n < 1 {
			t.Fatalf("RaidSize(%v, %d) = %d", v, esc, n)
		}
		if station.RaidSize(v, esc+1) < n {
			t.Fatalf("RaidSize decreased with escalation")
		}
	})
}

func TestTick_GuardsSlowGrowth(t *testing.T) {
	tp := quietParams()
	tp.GrowthBase, tp.GuardReduction = 1, 0.5
	r := newRig(tp, station.Params{}, true, nil)
	r.enlist(t, "g1", 30, 20, station.TaskGuard)

	rep, err := r.sim.Tick(context.Background(), at(10), 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Tick)
	assert.InDelta(t, 5, rep.Threat, 1e-9)
	assert.False(t, rep.RaidBegun)
}

func TestTick_RaidRepelledByGuards(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newRig(raidyParams(), station.Params{}, true, zap.New(core))
	g := r.enlist(t, "g1", 30, 20, station.TaskGuard)

	rep, err := r.sim.Tick(context.Background(), at(10), time.Second)
	require.NoError(t, err)
	assert.True(t, rep.RaidBegun)
	assert.Equal(t, []encounter.Result{encounter.ResultWin}, rep.Resolved)
	assert.Equal(t, 1, r.st.RaidsWon())
	assert.Nil(t, r.ctl.Active(), "the autopilot ends the encounter")
	assert.False(t, r.sim.RaidPending())
	assert.True(t, g.Alive())
	m, _ := r.st.Member("g1")
	assert.Positive(t, m.XP)
	assert.Equal(t, 1, logs.FilterMessage("raid begun").Len())
}

func TestTick_UndefendedRaidOverrunsBase(t *testing.T) {
	r := newRig(raidyParams(), station.Params{}, true, nil)

	rep, err := r.sim.Tick(context.Background(), at(10), time.Second)
	require.NoError(t, err)
	assert.True(t, rep.RaidBegun)
	assert.Equal(t, []encounter.Result{encounter.ResultLoss}, rep.Resolved)
	assert.Equal(t, 1, r.st.Overruns())
	assert.Equal(t, station.MaxIntegrity, r.st.Integrity())
}

func TestTick_RaidDeferredWhileEncounterInProgress(t *testing.T) {
	r := newRig(raidyParams(), station.Params{}, false, nil)
	r.enlist(t, "g1", 30, 20, station.TaskGuard)
	ctx := context.Background()

	mission, err := r.ctl.BeginMission("salvage", []*combat.Combatant{survivor("m1", 30, 20)}, []*combat.Combatant{huskAt("x")}, nil)
	require.NoError(t, err)

	rep, err := r.sim.Tick(ctx, at(10), time.Second)
	require.NoError(t, err)
	assert.True(t, rep.RaidDeferred)
	assert.False(t, rep.RaidBegun)
	assert.True(t, r.sim.RaidPending())

	result, err := station.NewAutopilot(r.ctl, r.policy, 0, nil).Run(ctx, mission)
	require.NoError(t, err)
	require.Equal(t, encounter.ResultWin, result)

	rep, err = r.sim.Tick(ctx, at(20), time.Second)
	require.NoError(t, err)
	assert.True(t, rep.RaidBegun)
	assert.False(t, r.sim.RaidPending())
	assert.True(t, r.ctl.InProgress(), "without an autopilot the raid awaits guard actions")
	assert.Equal(t, encounter.ContextRaid, r.ctl.Active().Context())
}

func TestTick_ExplorerClearsLocation(t *testing.T) {
	r := newRig(quietParams(), station.Params{ExploreChance: 1}, true, nil)
	r.enlist(t, "e1", 30, 20, station.TaskExplore)
	require.NoError(t, r.hostiles.Seed("hold", huskAt("x")))

	rep, err := r.sim.Tick(context.Background(), at(1), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hold", rep.FieldBegun)
	assert.Equal(t, []encounter.Result{encounter.ResultWin}, rep.Resolved)
	assert.Equal(t, 0, r.hostiles.Count("hold"))
	assert.Equal(t, "hold", r.sim.ExplorerAt())
}

func TestTick_ExplorerLostInTheField(t *testing.T) {
	r := newRig(quietParams(), station.Params{ExploreChance: 1}, true, nil)
	r.enlist(t, "e1", 1, 1, station.TaskExplore)
	require.NoError(t, r.hostiles.Seed("hold", huskAt("x")))

	rep, err := r.sim.Tick(context.Background(), at(1), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []encounter.Result{encounter.ResultLoss}, rep.Resolved)
	assert.Empty(t, r.st.Roster())
	assert.Nil(t, r.st.Explorer())
	assert.Equal(t, "hangar", r.sim.ExplorerAt())
	assert.Equal(t, 1, r.hostiles.Count("hold"), "survivors are reseeded")
}

func TestTick_NoExplorerStaysPut(t *testing.T) {
	r := newRig(quietParams(), station.Params{ExploreChance: 1}, true, nil)
	r.enlist(t, "g1", 30, 20, station.TaskGuard)

	rep, err := r.sim.Tick(context.Background(), at(1), time.Second)
	require.NoError(t, err)
	assert.Empty(t, rep.FieldBegun)
	assert.Equal(t, "hangar", r.sim.ExplorerAt())
}

func TestTick_HostilesProbeWhileNobodyExplores(t *testing.T) {
	r := newRig(quietParams(), station.Params{ExploreChance: 1, ProbeChance: 1}, true, nil)
	r.enlist(t, "g1", 30, 20, station.TaskGuard)

	rep, err := r.sim.Tick(context.Background(), at(1), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hangar", rep.Undefended)
	assert.Empty(t, rep.FieldBegun)
	assert.Empty(t, rep.Resolved)
	assert.InDelta(t, encounter.DefaultParams().NoDefenderThreat, rep.Threat, 1e-9)
	assert.False(t, r.ctl.InProgress())
}

func TestTick_ExplorerPreemptsProbe(t *testing.T) {
	r := newRig(quietParams(), station.Params{ProbeChance: 1}, true, nil)
	r.enlist(t, "e1", 30, 20, station.TaskExplore)

	rep, err := r.sim.Tick(context.Background(), at(1), time.Second)
	require.NoError(t, err)
	assert.Empty(t, rep.Undefended)
	assert.Zero(t, rep.Threat)
}

func TestTick_EmptyLocationMovesWithoutCombat(t *testing.T) {
	r := newRig(quietParams(), station.Params{ExploreChance: 1}, true, nil)
	r.enlist(t, "e1", 30, 20, station.TaskExplore)

	rep, err := r.sim.Tick(context.Background(), at(1), time.Second)
	require.NoError(t, err)
	assert.Empty(t, rep.FieldBegun)
	assert.Equal(t, "hold", r.sim.ExplorerAt())
	assert.False(t, r.ctl.InProgress())
}

type stubMissions struct {
	polls int
	begin func() (*encounter.Encounter, error)
}

func (m *stubMissions) Poll(context.Context) (*encounter.Encounter, error) {
	m.polls++
	if m.begin == nil {
		return nil, nil
	}
	return m.begin()
}

func withMissions(m station.MissionSource) func(*station.Deps) {
	return func(d *station.Deps) { d.Missions = m }
}

func TestTick_MissionPreemptsExploration(t *testing.T) {
	missions := &stubMissions{}
	r := newRig(quietParams(), station.Params{ExploreChance: 1}, true, nil, withMissions(missions))
	e1 := r.enlist(t, "e1", 30, 20, station.TaskExplore)
	missions.begin = func() (*encounter.Encounter, error) {
		return r.ctl.BeginMission("salvage/bay", []*combat.Combatant{e1}, []*combat.Combatant{huskAt("m")}, nil)
	}

	rep, err := r.sim.Tick(context.Background(), at(1), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, missions.polls)
	assert.Equal(t, "salvage/bay", rep.MissionBegun)
	assert.Empty(t, rep.FieldBegun)
	assert.Equal(t, []encounter.Result{encounter.ResultWin}, rep.Resolved)
	assert.Equal(t, "hangar", r.sim.ExplorerAt())
	assert.False(t, r.ctl.InProgress())
}

func TestTick_MissionPollFailureStillExplores(t *testing.T) {
	missions := &stubMissions{begin: func() (*encounter.Encounter, error) { return nil, errors.New("script broke") }}
	r := newRig(quietParams(), station.Params{ExploreChance: 1}, true, nil, withMissions(missions))
	r.enlist(t, "e1", 30, 20, station.TaskExplore)

	rep, err := r.sim.Tick(context.Background(), at(1), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "polling missions")
	assert.Empty(t, rep.MissionBegun)
	assert.Equal(t, "hold", r.sim.ExplorerAt())
}

func TestTick_MissionsNotPolledDuringRaid(t *testing.T) {
	missions := &stubMissions{}
	r := newRig(raidyParams(), station.Params{}, false, nil, withMissions(missions))
	r.enlist(t, "g1", 30, 20, station.TaskGuard)

	rep, err := r.sim.Tick(context.Background(), at(10), time.Second)
	require.NoError(t, err)
	assert.True(t, rep.RaidBegun)
	assert.Zero(t, missions.polls)
}

func TestTick_PersistsEveryN(t *testing.T) {
	r := newRig(quietParams(), station.Params{PersistEvery: 2}, true, nil)
	ctx := context.Background()
	var persisted []bool
	for i := 1; i <= 4; i++ {
		rep, err := r.sim.Tick(ctx, at(i), time.Second)
		require.NoError(t, err)
		persisted = append(persisted, rep.Persisted)
	}
	assert.Equal(t, []bool{false, true, false, true}, persisted)
	assert.Len(t, r.store.saved, 2)
}

func TestTick_PersistFailureIsReported(t *testing.T) {
	r := newRig(quietParams(), station.Params{PersistEvery: 1}, true, nil)
	boom := errors.New("db down")
	r.store.err = boom

	rep, err := r.sim.Tick(context.Background(), at(1), time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "persisting threat")
	assert.False(t, rep.Persisted)
	assert.Equal(t, 1, rep.Tick)
}

func TestSeedDecks(t *testing.T) {
	r := newRig(quietParams(), station.Params{}, true, nil)
	n, err := r.sim.SeedDecks()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, r.hostiles.Count("hold"))
	for _, h := range r.hostiles.Hostiles("hold") {
		assert.Equal(t, "husk", h.Species)
	}
}

func TestSeedDecks_UnknownSpecies(t *testing.T) {
	model := threat.NewModel(quietParams(), dice.NewScripted(nil, nil), epoch, nil)
	st := station.New(model, 0, 0, nil)
	factory := factoryOf(husk)
	src := dice.NewSeededSource(1)
	ctl := encounter.NewController(combat.NewResolver(combat.DefaultRules(), src, nil), ai.NewPolicy(nil, ai.DefaultParams(), src, nil), src, encounter.DefaultParams(), encounter.Collaborators{}, nil)
	sim := station.NewSimulation(station.Deps{
		Station:    st,
		Threat:     model,
		Factory:    factory,
		Controller: ctl,
		Decks:      cargoDeck(world.Spawn{Species: "wraith", Count: 1}),
		Hostiles:   npc.NewManager(),
		Src:        src,
	}, station.DefaultParams())

	_, err := sim.SeedDecks()
	require.Error(t, err)
	assert.True(t, errors.Is(err, npc.ErrUnknownSpecies))
}

func TestSeedDecks_WithoutMap(t *testing.T) {
	model := threat.NewModel(quietParams(), dice.NewScripted(nil, nil), epoch, nil)
	src := dice.NewSeededSource(1)
	ctl := encounter.NewController(combat.NewResolver(combat.DefaultRules(), src, nil), ai.NewPolicy(nil, ai.DefaultParams(), src, nil), src, encounter.DefaultParams(), encounter.Collaborators{}, nil)
	sim := station.NewSimulation(station.Deps{
		Station:    station.New(model, 0, 0, nil),
		Threat:     model,
		Factory:    factoryOf(husk),
		Controller: ctl,
		Src:        src,
	}, station.DefaultParams())

	_, err := sim.SeedDecks()
	assert.Error(t, err)
	assert.Empty(t, sim.ExplorerAt())
}

func TestField_ExplorerShootsFromStationAmmo(t *testing.T) {
	r := newRig(quietParams(), station.Params{}, false, nil)
	scout := r.enlist(t, "scout", 50, 6, station.TaskExplore)
	scout.Weapon = combat.WeaponRifle
	scout.UsesAmmo = true
	r.st.ConsumeAmmo(r.st.AmmoRemaining())

, scout, []*combat.Combatant{h})
	require.NoError(t, err)
	require.NoError(t, r.ctl.Submit(enc, combat.Attack("scout", "h1")))

	assert.Equal(t, 96, h.HP, "an empty station store halves the rifle shot")
	assert.Contains(t, r.ctl.Snapshot(enc).Log, "Survivor scout is out of ammunition; the shot is weakened.")

	r.st.AddAmmo(20)
	for i := 0; i < 10 && r.st.AmmoRemaining() == 20; i++ {
		require.NoError(t, r.ctl.Submit(enc, combat.Attack("scout", "h1")))
	}
	assert.Less(t, r.st.AmmoRemaining(), 20, "field shots draw on the station store")
}
