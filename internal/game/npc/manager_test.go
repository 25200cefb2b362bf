package npc_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/npc"
)

func alien(id string, hp int) *combat.Combatant {
	return combat.NewCombatant(id, "Crawler", combat.FactionAlien, hp)
}

func TestManager_SeedAndHostiles(t *testing.T) {
	m := npc.NewManager()
	require.NoError(t, m.Seed("cargo-bay", alien("b", 10), alien("a", 10)))
	hs := m.Hostiles("cargo-bay")
	require.Len(t, hs, 2)
	assert.Equal(t, "a", hs[0].ID)
	assert.Equal(t, 2, m.Count("cargo-bay"))
	assert.Equal(t, []string{"cargo-bay"}, m.Locations())
}

func TestManager_SeedRequiresLocation(t *testing.T) {
	assert.Error(t, npc.NewManager().Seed("", alien("a", 10)))
}

func TestManager_SeedIgnoresDead(t *testing.T) {
	m := npc.NewManager()
	dead := alien("d", 5)
	dead.ApplyDamage(5)
	require.NoError(t, m.Seed("lab", dead))
	assert.Empty(t, m.Hostiles("lab"))
	assert.Empty(t, m.Locations())
}

func TestManager_ReseedMovesHostile(t *testing.T) {
	m := npc.NewManager()
	h := alien("a", 10)
	require.NoError(t, m.Seed("lab", h))
	require.NoError(t, m.Seed("reactor", h))
	assert.Empty(t, m.Hostiles("lab"))
	_, loc, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "reactor", loc)
}

func TestManager_PruneKeepsSurvivors(t *testing.T) {
	m := npc.NewManager()
	a, b := alien("a", 10), alien("b", 10)
	require.NoError(t, m.Seed("lab", a, b))
	a.ApplyDamage(10)
	m.Prune("lab")
	hs := m.Hostiles("lab")
	require.Len(t, hs, 1)
	assert.Equal(t, "b", hs[0].ID)
	_, _, ok := m.Get("a")
	assert.False(t, ok)
}

func TestManager_ClearAndRemove(t *testing.T) {
	m := npc.NewManager()
	require.NoError(t, m.Seed("lab", alien("a", 10), alien("b", 10)))
	require.NoError(t, m.Remove("a"))
	assert.Error(t, m.Remove("a"))
	m.Clear("lab")
	assert.Zero(t, m.Count("lab"))
	assert.Empty(t, m.Locations())
}

func TestManager_ConcurrentSeed(t *testing.T) {
	m := npc.NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Seed("hub", alien(string(rune('A'+i)), 10))
			_ = m.Hostiles("hub")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, m.Count("hub"))
}
