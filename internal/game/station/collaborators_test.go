package station_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/encounter"
	"github.com/cory-johannsen/derelict/internal/game/npc"
	"github.com/cory-johannsen/derelict/internal/game/station"
	"github.com/cory-johannsen/derelict/internal/game/threat"
)

var (
	husk = &npc.Species{
		ID: "husk", Name: "Husk",
		HP:     npc.IntRange{Min: 10, Max: 10},
		Attack: npc.IntRange{Min: 1, Max: 1},
	}
	mother = &npc.Species{
		ID: "mother", Name: "Mother",
		HP:      npc.IntRange{Min: 30, Max: 30},
		Attack:  npc.IntRange{Min: 2, Max: 2},
		Special: combat.Special{Kind: combat.SpecialSwarm, Chance: 1, Count: 2, SpawnSpecies: "husk"},
	}
)

// rigged passes every chance roll. Intn cycles so generated ids differ.
type rigged struct {
	mu sync.Mutex
	n  int
}

func (r *rigged) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return r.n % n
}
func (r *rigged) Float64() float64 { return 0 }

func factoryOf(species ...*npc.Species) *npc.Factory {
	cat := npc.NewCatalog()
	for _, sp := range species {
		cat.AddSpecies(sp)
	}
	return npc.NewFactory(cat, &rigged{}, threat.DefaultParams(), nil)
}

func TestLocations_Dispositions(t *testing.T) {
	mgr := npc.NewManager()
	locs := station.NewLocations(mgr, nil)
	a, b := huskAt("a"), huskAt("b")

	locs.SeedLocation("hold", []*combat.Combatant{a, b})
	assert.Equal(t, 2, mgr.Count("hold"))

	b.ApplyDamage(b.MaxHP)
	locs.ResolveLocation("hold", encounter.DispositionLeave, nil)
	assert.Equal(t, 1, mgr.Count("hold"))
	_, _, ok := mgr.Get("b")
	assert.False(t, ok, "leave prunes the dead")

	c := huskAt("c")
	locs.ResolveLocation("hold", encounter.DispositionReseed, []*combat.Combatant{c})
	hs := mgr.Hostiles("hold")
	require.Len(t, hs, 1)
	assert.Equal(t, "c", hs[0].ID)

	locs.ResolveLocation("hold", encounter.DispositionClear, nil)
	assert.Equal(t, 0, mgr.Count("hold"))
}

func TestLocations_SeedErrorIsLoggedNotFatal(t *testing.T) {
	mgr := npc.NewManager()
	locs := station.NewLocations(mgr, nil)
	locs.SeedLocation("", []*combat.Combatant{huskAt("a")})
	assert.Empty(t, mgr.Locations())
}

func TestFactorySpawner(t *testing.T) {
	f := factoryOf(husk, mother)
	sp := station.NewFactorySpawner(f, quietModel(), nil)

	parent, err := f.GenerateAlien("mother", 0, 0)
	require.NoError(t, err)
	kids := sp.Spawn(parent)
	require.Len(t, kids, 2)
	for _, k := range kids {
		assert.Equal(t, "husk", k.Species)
		assert.True(t, k.Alive())
	}

	plain, err := f.GenerateAlien("husk", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, sp.Spawn(plain))
}

func huskAt(id string) *combat.Combatant {
	c := combat.NewCombatant(id, "Husk", combat.FactionAlien, 10)
	c.AttackMin, c.AttackMax = 1, 1
	return c
}

func swarmQueen(id string) *combat.Combatant {
	q := combat.NewCombatant(id, "Queen", combat.FactionAlien, 5)
	q.AttackMin, q.AttackMax = 1, 1
	q.Special = combat.Special{Kind: combat.SpecialSwarm, Chance: 1, Count: 1, SpawnSpecies: "husk"}
	return q
}

func TestLocations_FieldSwarmOffspringOutlastWin(t *testing.T) {
	r := newRig(quietParams(), station.Params{}, false, nil)
	require.NoError(t, r.hostiles.Seed("hive", swarmQueen("queen")))

	enc, err := r.ctl.BeginField("hive", survivor("p1", 30, 10), r.hostiles.Hostiles("hive"))
	require.NoError(t, err)
	require.NoError(t, r.ctl.Submit(enc, combat.Attack("p1", "queen")))
	require.Equal(t, encounter.ResultWin, r.ctl.Snapshot(enc).Result)

	hs := r.hostiles.Hostiles("hive")
	require.Len(t, hs, 1)
	assert.Equal(t, "husk", hs[0].Species)
	assert.True(t, hs[0].Alive())
}

func TestLocations_FieldSwarmOffspringOutlastLoss(t *testing.T) {
	r := newRig(quietParams(), station.Params{}, false, nil)
	brute := huskAt("brute")
	brute.AttackMin, brute.AttackMax = 50, 50
	require.NoError(t, r.hostiles.Seed("hive", swarmQueen("queen"), brute))

	enc, err := r.ctl.BeginField("hive", survivor("p1", 20, 10), r.hostiles.Hostiles("hive"))
	require.NoError(t, err)
	require.NoError(t, r.ctl.Submit(enc, combat.Attack("p1", "queen")))
	require.Equal(t, encounter.ResultLoss, r.ctl.Snapshot(enc).Result)

	var ids []string
	for _, h := range r.hostiles.Hostiles("hive") {
		ids = append(ids, h.ID)
	}
	assert.Len(t, ids, 2, "the brute and the offspring remain")
	assert.Contains(t, ids, "brute")
}
