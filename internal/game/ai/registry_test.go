package ai_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/derelict/internal/game/ai"
	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/dice"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := ai.NewRegistry()
	require.NoError(t, reg.Register(combat.BehaviorAggressive, ai.Aggressive))
	_, ok := reg.TargeterFor(combat.BehaviorAggressive)
	assert.True(t, ok)
	_, ok = reg.TargeterFor(combat.BehaviorTactical)
	assert.False(t, ok)
}

func TestRegistry_CollisionAndNil(t *testing.T) {
	reg := ai.NewRegistry()
	require.NoError(t, reg.Register(combat.BehaviorAggressive, ai.Aggressive))
	assert.Error(t, reg.Register(combat.BehaviorAggressive, ai.Tactical))
	assert.Error(t, reg.Register(combat.BehaviorTactical, nil))
}

func TestDefaultRegistry_HasAllBehaviors(t *testing.T) {
	reg := ai.DefaultRegistry()
	for _, b := range []combat.Behavior{combat.BehaviorAggressive, combat.BehaviorTactical, combat.BehaviorOpportunistic} {
		_, ok := reg.TargeterFor(b)
		assert.True(t, ok, b.String())
	}
}

func TestTactical_PrefersSupportRoles(t *testing.T) {
	ws := &ai.WorldState{Enemies: []*combat.Combatant{
		member("p1", "soldier", 2, 10),
		member("p2", "scout", 9, 10),
		member("p3", "engineer", 10, 10),
	}}
	got := ai.Tactical(ws, dice.NewSeededSource(1))
	assert.Equal(t, "p3", got.ID)
}

func TestTactical_WeakestWithinRole(t *testing.T) {
	ws := &ai.WorldState{Enemies: []*combat.Combatant{
		member("p1", "medic", 9, 10),
		member("p2", "medic", 3, 10),
	}}
	assert.Equal(t, "p2", ai.Tactical(ws, dice.NewSeededSource(1)).ID)
}

func TestTactical_FallsBackToAggressive(t *testing.T) {
	ws := &ai.WorldState{Enemies: []*combat.Combatant{
		member("p1", "", 9, 10),
		member("p2", "", 3, 10),
	}}
	assert.Equal(t, "p2", ai.Tactical(ws, dice.NewSeededSource(1)).ID)
}

func TestOpportunistic_UsesSource(t *testing.T) {
	ws := &ai.WorldState{Enemies: []*combat.Combatant{
		member("p1", "soldier", 10, 10),
		member("p2", "soldier", 10, 10),
		member("p3", "soldier", 10, 10),
	}}
	src := dice.NewScripted([]int{2, 0}, nil)
	assert.Equal(t, "p3", ai.Opportunistic(ws, src).ID)
	assert.Equal(t, "p1", ai.Opportunistic(ws, src).ID)
	assert.Nil(t, ai.Opportunistic(&ai.WorldState{}, src))
}

func TestOpportunistic_CoversEveryEnemy(t *testing.T) {
	ws := &ai.WorldState{Enemies: []*combat.Combatant{
		member("p1", "soldier", 10, 10),
		member("p2", "soldier", 10, 10),
		member("p3", "soldier", 10, 10),
	}}
	src := dice.NewSeededSource(7)
	seen := map[string]int{}
	for i := 0; i < 300; i++ {
		seen[ai.Opportunistic(ws, src).ID]++
	}
	assert.Len(t, seen, 3)
}
