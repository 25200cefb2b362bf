package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/game/dice"
)

// RegisterModules registers all engine.* Lua tables into L for missionID.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine.log, engine.dice, and engine.station are defined in L.
func (m *Manager) RegisterModules(L *lua.LState, missionID string) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L, missionID))
	L.SetField(engine, "dice", m.diceModule(L))
	L.SetField(engine, "station", m.stationModule(L, missionID))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState, missionID string) *lua.LTable {
	mod := L.NewTable()
	logger := m.logger.With(zap.String("mission", missionID))
	levels := map[string]func(string, ...zap.Field){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
		"error": logger.Error,
	}
	for name, fn := range levels {
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1))
			return 0
		}))
	}
	return mod
}

func (m *Manager) diceModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	// roll(n) returns an integer in [1, n].
	L.SetField(mod, "roll", L.NewFunction(func(L *lua.LState) int {
		n := L.CheckInt(1)
		if n < 1 {
			L.ArgError(1, "sides must be positive")
			return 0
		}
		L.Push(lua.LNumber(dice.Range(m.roller, 1, n)))
		return 1
	}))
	L.SetField(mod, "chance", L.NewFunction(func(L *lua.LState) int {
		p := float64(L.CheckNumber(1))
		L.Push(lua.LBool(dice.Chance(m.roller, p)))
		return 1
	}))
	return mod
}

func (m *Manager) stationModule(L *lua.LState, missionID string) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "threat", L.NewFunction(func(L *lua.LState) int {
		if m.Threat == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(m.Threat()))
		return 1
	}))
	L.SetField(mod, "roster", L.NewFunction(func(L *lua.LState) int {
		out := L.NewTable()
		if m.Roster != nil {
			for _, s := range m.Roster() {
				row := L.NewTable()
				L.SetField(row, "id", lua.LString(s.ID))
				L.SetField(row, "name", lua.LString(s.Name))
				L.SetField(row, "class", lua.LString(s.Class))
				L.SetField(row, "hp", lua.LNumber(s.HP))
				L.SetField(row, "max_hp", lua.LNumber(s.MaxHP))
				out.Append(row)
			}
		}
		L.Push(out)
		return 1
	}))
	L.SetField(mod, "broadcast", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		if m.Broadcast != nil {
			m.Broadcast(missionID, msg)
		}
		return 0
	}))
	return mod
}
