// Package station runs the survivors' base: the roster and its task
// assignments, the turrets and shared ammunition, structural integrity, and
// the world tick that turns threat growth into raids and exploration into
// field encounters.
package station

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/threat"
)

// MaxIntegrity is the structural integrity of an undamaged station.
const MaxIntegrity = 100

var (
	// ErrUnknownSurvivor is returned for roster operations on an absent id.
	ErrUnknownSurvivor = errors.New("unknown survivor")
	// ErrDuplicateSurvivor is returned when a survivor id is already on the roster.
	ErrDuplicateSurvivor = errors.New("survivor already on roster")
)

// Task is a survivor's standing assignment.
type Task int

const (
	TaskIdle Task = iota
	TaskGuard
	TaskExplore
)

func (t Task) String() string {
	switch t {
	case TaskIdle:
		return "idle"
	case TaskGuard:
		return "guard"
	case TaskExplore:
		return "explore"
	default:
		return "unknown"
	}
}

// ParseTask converts a task name to a Task.
func ParseTask(name string) (Task, error) {
	for t := TaskIdle; t <= TaskExplore; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return TaskIdle, fmt.Errorf("unknown task %q", name)
}

// Member is one survivor on the roster.
type Member struct {
	Survivor *combat.Combatant
	Task     Task
	// XP is experience credited from defeated hostiles.
	XP int
}

// Station is the survivors' base. It is the roster, base, threat, and reward
// collaborator of the encounter controller and the ammunition pool ranged
// party attacks draw on.
// All methods are safe for concurrent use.
type Station struct {
	mu        sync.Mutex
	order     []string
	members   map[string]*Member
	turrets   int
	integrity int
	ammo      int
	overruns  int
	raidsWon  int
	threat    *threat.Model
	logger    *zap.Logger
}

// New creates a Station at full integrity.
//
// Precondition: model must be non-nil; turrets and ammo must be >= 0.
func New(model *threat.Model, turrets, ammo int, logger *zap.Logger) *Station {
	if model == nil {
		panic("station.New: model must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Station{
		members:   make(map[string]*Member),
		turrets:   max(turrets, 0),
		integrity: MaxIntegrity,
		ammo:      max(ammo, 0),
		threat:    model,
		logger:    logger,
	}
}

// AddSurvivor puts c on the roster as idle.
//
// Postcondition: returns ErrDuplicateSurvivor if c.ID is already present.
func (s *Station) AddSurvivor(c *combat.Combatant) error {
	if c == nil {
		return fmt.Errorf("station.AddSurvivor: survivor must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[c.ID]; ok {
		return fmt.Errorf("%s: %w", c.ID, ErrDuplicateSurvivor)
	}
	s.members[c.ID] = &Member{Survivor: c}
	s.order = append(s.order, c.ID)
	return nil
}

// Assign sets the task of survivor id. At most one survivor explores at a
// time: assigning TaskExplore returns the previous explorer to idle.
func (s *Station) Assign(id string, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownSurvivor)
	}
	if t == TaskExplore {
		for _, other := range s.members {
			if other.Task == TaskExplore {
				other.Task = TaskIdle
			}
		}
	}
	m.Task = t
	s.logger.Debug("task assigned", zap.String("survivor", id), zap.Stringer("task", t))
	return nil
}

// Member returns a copy of the roster entry for id.
func (s *Station) Member(id string) (Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// Roster returns the living survivors in roster order.
func (s *Station) Roster() []*combat.Combatant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTaskLocked(nil)
}

// Guards returns the living survivors assigned to guard duty, in roster order.
func (s *Station) Guards() []*combat.Combatant {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := TaskGuard
	return s.withTaskLocked(&t)
}

// GuardCount returns len(Guards()).
func (s *Station) GuardCount() int { return len(s.Guards()) }

// Explorer returns the living survivor assigned to explore, or nil.
func (s *Station) Explorer() *combat.Combatant {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := TaskExplore
	if ex := s.withTaskLocked(&t); len(ex) > 0 {
		return ex[0]
	}
	return nil
}

func (s *Station) withTaskLocked(t *Task) []*combat.Combatant {
	var out []*combat.Combatant
	for _, id := range s.order {
		m := s.members[id]
		if t != nil && m.Task != *t {
			continue
		}
		if m.Survivor.Alive() {
			out = append(out, m.Survivor)
		}
	}
	return out
}

// Turrets returns the number of installed turrets.
func (s *Station) Turrets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turrets
}

// Integrity returns the current structural integrity in [0, MaxIntegrity].
func (s *Station) Integrity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.integrity
}

// Overruns returns how many raids found the base undefended.
func (s *Station) Overruns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overruns
}

// RaidsWon returns how many raids the guards repelled.
func (s *Station) RaidsWon() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raidsWon
}

// RemoveFromRoster drops a survivor lost in the field.
func (s *Station) RemoveFromRoster(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[id]; !ok {
		return
	}
	delete(s.members, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.logger.Info("survivor lost", zap.String("survivor", id))
}

// StructuralDamage lowers integrity by amount, never below zero.
func (s *Station) StructuralDamage(amount int) {
	if amount <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.integrity = max(s.integrity-amount, 0)
	s.logger.Warn("structural damage",
		zap.Int("amount", amount),
		zap.Int("integrity", s.integrity),
	)
}

// Repair raises integrity by amount, never above MaxIntegrity.
func (s *Station) Repair(amount int) {
	if amount <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.integrity = min(s.integrity+amount, MaxIntegrity)
}

// Overrun records a raid that met no defenders.
func (s *Station) Overrun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overruns++
	s.logger.Warn("base overrun", zap.Int("overruns", s.overruns))
}

// RaiseThreat forwards to the threat model.
func (s *Station) RaiseThreat(amount float64) { s.threat.Raise(amount) }

// ReduceThreat forwards to the threat model.
func (s *Station) ReduceThreat(amount float64) { s.threat.Reduce(amount) }

// RaidWon records a repelled raid and applies the escalation bonus.
func (s *Station) RaidWon() {
	s.mu.Lock()
	s.raidsWon++
	s.mu.Unlock()
	s.threat.RecordRaidWin()
}

// HostileDefeated credits xp to the killer if it is on the roster.
func (s *Station) HostileDefeated(encounterID, killerID, hostileID string, xp int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[killerID]; ok {
		m.XP += xp
	}
	s.logger.Debug("hostile defeated",
		zap.String("encounter_id", encounterID),
		zap.String("killer", killerID),
		zap.String("hostile", hostileID),
		zap.Int("xp", xp),
	)
}

// EncounterWon logs the victory. Experience is credited per kill.
func (s *Station) EncounterWon(encounterID string, partyIDs []string, xp int) {
	s.logger.Info("encounter won",
		zap.String("encounter_id", encounterID),
		zap.Strings("party", partyIDs),
		zap.Int("xp", xp),
	)
}

// AmmoRemaining returns the rounds left in the shared pool.
func (s *Station) AmmoRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ammo
}

// ConsumeAmmo removes up to n rounds and returns how many were removed.
func (s *Station) ConsumeAmmo(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := min(n, s.ammo)
	s.ammo -= taken
	return taken
}

// AddAmmo restocks the shared pool.
func (s *Station) AddAmmo(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ammo += n
}
