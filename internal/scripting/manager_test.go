package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/derelict/internal/game/dice"
	"github.com/cory-johannsen/derelict/internal/scripting"
)

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	return newLimitedManager(t, 0)
}

func newLimitedManager(t testing.TB, limit int) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	roller := dice.NewLoggedRoller(dice.NewSeededSource(1), logger)
	mgr := scripting.NewManager(limit, roller, logger)
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func TestManager_LoadMission_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		function test_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, mgr.LoadMission("salvage", dir))
	ret, err := mgr.CallHook("salvage", "test_hook", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
	assert.True(t, mgr.HasHook("salvage", "test_hook"))
	assert.False(t, mgr.HasHook("salvage", "missing"))
	assert.False(t, mgr.HasHook("nowhere", "test_hook"))
}

func TestManager_LoadMission_EmptyID(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Error(t, mgr.LoadMission("", t.TempDir()))
}

func TestManager_LoadMission_MissingDir(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Error(t, mgr.LoadMission("ghost", filepath.Join(t.TempDir(), "absent")))
}

func TestManager_CallHook_MissingHook_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "empty.lua", `-- no functions`)
	require.NoError(t, mgr.LoadMission("salvage", dir))
	ret, err := mgr.CallHook("salvage", "nonexistent_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_UnknownMission(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret, err := mgr.CallHook("no_such_mission", "some_hook")
	require.ErrorIs(t, err, scripting.ErrNoMission)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_RuntimeError_WarnsAndReturnsError(t *testing.T) {
	mgr, logs := newTestManager(t)
	dir := writeTempLua(t, "bad.lua", `
		function bad_hook()
			error("intentional error")
		end
	`)
	require.NoError(t, mgr.LoadMission("salvage", dir))
	ret, err := mgr.CallHook("salvage", "bad_hook")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intentional error")
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestManager_CallHook_BudgetResetsPerCall(t *testing.T) {
	mgr, _ := newLimitedManager(t, 500)
	dir := writeTempLua(t, "loop.lua", `
		function short()
			local n = 0
			for i = 1, 20 do n = n + i end
			return n
		end
		function forever()
			while true do end
		end
	`)
	require.NoError(t, mgr.LoadMission("loop", dir))

	for i := 0; i < 10; i++ {
		ret, err := mgr.CallHook("loop", "short")
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, lua.LNumber(210), ret)
	}
	_, err := mgr.CallHook("loop", "forever")
	require.Error(t, err)

	// A runaway hook does not poison the VM.
	ret, err := mgr.CallHook("loop", "short")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(210), ret)
}

func TestManager_LoadMission_RunawayTopLevelFails(t *testing.T) {
	mgr, _ := newLimitedManager(t, 100)
	dir := writeTempLua(t, "spin.lua", `while true do end`)
	assert.Error(t, mgr.LoadMission("spin", dir))
	assert.Empty(t, mgr.Missions())
}

func TestManager_LoadMission_EmptyDir_NoError(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadMission("empty", t.TempDir()))
	ret, err := mgr.CallHook("empty", "anything")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_LoadMission_InvalidLua_ReturnsError(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "bad.lua", `this is not valid lua @@@@`)
	assert.Error(t, mgr.LoadMission("bad", dir))
}

func TestManager_LoadMission_ReloadReplaces(t *testing.T) {
	mgr, _ := newTestManager(t)
	first := writeTempLua(t, "v.lua", `function version() return 1 end`)
	second := writeTempLua(t, "v.lua", `function version() return 2 end`)
	require.NoError(t, mgr.LoadMission("m", first))
	require.NoError(t, mgr.LoadMission("m", second))
	ret, err := mgr.CallHook("m", "version")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(2), ret)
	assert.Equal(t, []string{"m"}, mgr.Missions())
}

func TestManager_LoadDir(t *testing.T) {
	mgr, _ := newTestManager(t)
	root := t.TempDir()
	for _, id := range []string{"beta", "alpha"} {
		dir := filepath.Join(root, id)
		require.NoError(t, os.Mkdir(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "init.lua"), []byte(`function name() return "`+id+`" end`), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("ignored"), 0644))

	n, err := mgr.LoadDir(root)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"alpha", "beta"}, mgr.Missions())
	ret, err := mgr.CallHook("beta", "name")
	require.NoError(t, err)
	assert.Equal(t, lua.LString("beta"), ret)
}

func TestManager_LoadDir_MissingRoot(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, err := mgr.LoadDir(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestProperty_CallHookMissingMissionNeverPanics(t *testing.T) {
	mgr, _ := newTestManager(t)
	rapid.Check(t, func(rt *rapid.T) {
		id := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "mission")
		hook := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "hook")
		if _, err := mgr.CallHook(id, hook); err == nil {
			rt.Fatalf("expected ErrNoMission for %q", id)
		}
	})
}

func TestManager_CallHookConcurrentSameMission_NoRace(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		function concurrent_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, mgr.LoadMission("conc", dir))

	const goroutines = 10
	const callsEach = 5
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				ret, err := mgr.CallHook("conc", "concurrent_hook", lua.LNumber(1), lua.LNumber(2))
				assert.NoError(t, err)
				assert.Equal(t, lua.LNumber(3), ret)
			}
		}()
	}
	wg.Wait()
}

func TestManager_LoadMission_MultipleFiles_OrderedByName(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`base_val = 10`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`
		function get_val() return base_val end
	`), 0644))
	require.NoError(t, mgr.LoadMission("ordered", dir))
	ret, err := mgr.CallHook("ordered", "get_val")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(10), ret)
}

func TestNewManager_PanicsOnNilRoller(t *testing.T) {
	assert.Panics(t, func() {
		scripting.NewManager(0, nil, zap.NewNop())
	})
}

func TestNewManager_PanicsOnNilLogger(t *testing.T) {
	roller := dice.NewLoggedRoller(dice.NewSeededSource(1), zap.NewNop())
	assert.Panics(t, func() {
		scripting.NewManager(0, roller, nil)
	})
}

func TestManager_Close_ReleasesMissions(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "init.lua", `function get_x() return x end`)
	require.NoError(t, mgr.LoadMission("closing", dir))
	mgr.Close()
	assert.Empty(t, mgr.Missions())
	_, err := mgr.CallHook("closing", "get_x")
	assert.ErrorIs(t, err, scripting.ErrNoMission)
}
