package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/game/dice"
)

// ErrNoMission is returned when a hook is called on a mission with no VM.
var ErrNoMission = errors.New("scripting: no such mission")

// SurvivorInfo is a snapshot of a roster member passed to Lua.
type SurvivorInfo struct {
	ID    string
	Name  string
	Class string
	HP    int
	MaxHP int
}

// vm is one mission's LState. An LState is single-threaded, so every use
// holds mu.
type vm struct {
	mu sync.Mutex
	L  *lua.LState
}

// Manager owns one sandboxed LState per mission and dispatches hooks to them.
// All methods are safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	limit  int
	roller *dice.Roller
	logger *zap.Logger

	// Injected after construction. nil = no-op in the engine.* modules.
	Threat    func() float64
	Roster    func() []SurvivorInfo
	Broadcast func(missionID, msg string)
}

// NewManager creates a Manager whose loads and hook calls each run under an
// instLimit opcode budget (0 = DefaultInstructionLimit).
//
// Precondition: roller and logger must be non-nil.
func NewManager(instLimit int, roller *dice.Roller, logger *zap.Logger) *Manager {
	if roller == nil {
		panic("scripting.NewManager: roller must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:    make(map[string]*vm),
		limit:  instLimit,
		roller: roller,
		logger: logger,
	}
}

// LoadMission creates a sandboxed VM for missionID, registers the engine.*
// modules, then executes every *.lua file in scriptDir in lexicographic order.
// A reload replaces the previous VM.
//
// Precondition: missionID must be non-empty; scriptDir must be readable.
func (m *Manager) LoadMission(missionID, scriptDir string) error {
	if missionID == "" {
		return fmt.Errorf("scripting: mission id must not be empty")
	}
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, missionID, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(files)

	L := NewSandboxedState(m.limit)
	m.RegisterModules(L, missionID)
	for _, path := range files {
		if err := withBudget(L, m.limit, func() error { return L.DoFile(path) }); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, missionID, err)
		}
	}

	m.mu.Lock()
	if old, ok := m.vms[missionID]; ok {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.vms[missionID] = &vm{L: L}
	m.mu.Unlock()
	m.logger.Debug("mission loaded", zap.String("mission", missionID), zap.Int("files", len(files)))
	return nil
}

// LoadDir loads every subdirectory of root as a mission named after it.
//
// Postcondition: returns the number of missions loaded, or the first error.
func (m *Manager) LoadDir(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("scripting: reading mission root %q: %w", root, err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := m.LoadMission(e.Name(), filepath.Join(root, e.Name())); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Missions returns the loaded mission ids in sorted order.
func (m *Manager) Missions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.vms))
	for id := range m.vms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// HasHook reports whether missionID defines a global function named hook.
func (m *Manager) HasHook(missionID, hook string) bool {
	v := m.get(missionID)
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.L.GetGlobal(hook).Type() == lua.LTFunction
}

// CallHook calls the named global function in missionID's VM and returns its
// first result. An undefined hook returns (LNil, nil).
//
// Postcondition: returns ErrNoMission for an unknown mission; Lua runtime
// errors, including an exhausted instruction budget, are logged at warn and
// returned wrapped.
func (m *Manager) CallHook(missionID, hook string, args ...lua.LValue) (lua.LValue, error) {
	v := m.get(missionID)
	if v == nil {
		return lua.LNil, fmt.Errorf("%w: %q", ErrNoMission, missionID)
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	fn := v.L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, nil
	}
	err := withBudget(v.L, m.limit, func() error {
		return v.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...)
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("mission", missionID),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, fmt.Errorf("scripting: %s.%s: %w", missionID, hook, err)
	}
	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range m.vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
		delete(m.vms, id)
	}
}

func (m *Manager) get(missionID string) *vm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vms[missionID]
}
