// Package threat models the station danger scalar, its tier ratchet, raid
// scheduling, and the post-cap escalation counter.
package threat

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/game/dice"
)

// MaxValue is the ceiling of the threat scalar.
const MaxValue = 100.0

// DefaultTierBoundaries is the fixed tier boundary table. The final boundary
// equals MaxValue, so once threat reaches the cap it is pinned there.
var DefaultTierBoundaries = []float64{0, 15, 35, 60, 85, 100}

// Params holds every balancing constant of the threat model.
type Params struct {
	GrowthBase     float64 // threat gained per second
	GrowthJitter   float64 // upper bound of the random extra gain per second
	GuardReduction float64 // threat removed per second per assigned guard

	TierBoundaries []float64

	RaidBaseChance              float64
	RaidThreatDivisor           float64
	RaidMaxChance               float64
	MinRaidInterval             time.Duration
	MaxRaidInterval             time.Duration
	EscalationIntervalReduction float64 // fractional interval reduction per escalation level

	EscalationInterval  time.Duration
	EscalationRaidBonus int

	HPPerLevel            float64
	AttackPerLevel        float64
	LevelsPerArmor        int
	AbilityChancePerLevel float64
}

// DefaultParams returns the baseline balance.
func DefaultParams() Params {
	return Params{
		GrowthBase:                  0.02,
		GrowthJitter:                0.02,
		GuardReduction:              0.004,
		TierBoundaries:              DefaultTierBoundaries,
		RaidBaseChance:              0.01,
		RaidThreatDivisor:           2000,
		RaidMaxChance:               0.06,
		MinRaidInterval:             120 * time.Second,
		MaxRaidInterval:             300 * time.Second,
		EscalationIntervalReduction: 0.05,
		EscalationInterval:          300 * time.Second,
		EscalationRaidBonus:         1,
		HPPerLevel:                  0.08,
		AttackPerLevel:              0.06,
		LevelsPerArmor:              2,
		AbilityChancePerLevel:       0.05,
	}
}

// State is the persistable part of the threat model.
type State struct {
	Value              float64
	TierFloor          int
	EscalationLevel    int
	LastRaidAt         time.Time
	RaidCooldownWindow time.Duration
	// Locked is set once Value first reaches MaxValue and never cleared.
	Locked           bool
	LastEscalationAt time.Time
}

// Multipliers are the generation bonuses derived from the escalation level.
type Multipliers struct {
	HP            float64
	Attack        float64
	ArmorBonus    int
	AbilityChance float64
}

// Model owns the process-wide threat State.
// All methods are safe for concurrent use.
type Model struct {
	mu     sync.Mutex
	params Params
	src    dice.Source
	state  State
	logger *zap.Logger
}

// NewModel creates a Model at zero threat with the raid clock starting at now.
// A nil logger is replaced with a no-op logger.
//
// Precondition: src must be non-nil; params.TierBoundaries must be ascending and start at 0.
// Postcondition: Value == 0, TierFloor == 0, a raid cooldown window is rolled.
func NewModel(params Params, src dice.Source, now time.Time, logger *zap.Logger) *Model {
	if len(params.TierBoundaries) == 0 {
		params.TierBoundaries = DefaultTierBoundaries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Model{params: params, src: src, logger: logger}
	m.state.LastRaidAt = now
	m.state.RaidCooldownWindow = m.rollCooldownLocked()
	return m
}

// Restore replaces the current state, e.g. with a snapshot loaded from storage.
// The restored floor is never allowed to undercut the restored value's tier.
func (m *Model) Restore(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Value = clamp(s.Value, 0, MaxValue)
	if s.TierFloor < 0 {
		s.TierFloor = 0
	}
	if s.TierFloor >= len(m.params.TierBoundaries) {
		s.TierFloor = len(m.params.TierBoundaries) - 1
	}
	m.state = s
	m.state.Value = clamp(m.state.Value, m.floorValueLocked(), MaxValue)
	m.ratchetLocked()
	m.logger.Info("threat restored",
		zap.Float64("value", m.state.Value),
		zap.Int("tier_floor", m.state.TierFloor),
		zap.Int("escalation", m.state.EscalationLevel),
		zap.Bool("locked", m.state.Locked),
	)
}

// Snapshot returns a copy of the current state.
func (m *Model) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Value returns the current threat scalar.
func (m *Model) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Value
}

// EscalationLevel returns the current escalation level.
func (m *Model) EscalationLevel() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.EscalationLevel
}

// FloorValue returns the threat value the scalar can no longer drop below.
func (m *Model) FloorValue() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.floorValueLocked()
}

// Advance applies one world tick of threat growth.
//
// Postcondition: Value in [FloorValue(), MaxValue]; TierFloor is non-decreasing.
func (m *Model) Advance(dt time.Duration, guardCount int) {
	if guardCount < 0 {
		guardCount = 0
	}
	secs := dt.Seconds()
	m.mu.Lock()
	defer m.mu.Unlock()
	growth := m.params.GrowthBase + dice.FloatRange(m.src, 0, m.params.GrowthJitter)
	delta := (growth - float64(guardCount)*m.params.GuardReduction) * secs
	m.state.Value = clamp(m.state.Value+delta, m.floorValueLocked(), MaxValue)
	m.ratchetLocked()
}

// Raise adds amount to the threat scalar, ratcheting the floor as needed.
func (m *Model) Raise(amount float64) {
	if amount <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Value = clamp(m.state.Value+amount, m.floorValueLocked(), MaxValue)
	m.ratchetLocked()
}

// Reduce lowers the threat scalar by amount without ever crossing the tier floor.
//
// Postcondition: Value >= FloorValue(); TierFloor unchanged.
func (m *Model) Reduce(amount float64) {
	if amount <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Value = clamp(m.state.Value-amount, m.floorValueLocked(), MaxValue)
}

// RaidChance returns the per-evaluation raid probability for the current value.
func (m *Model) RaidChance() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raidChanceLocked()
}

// EvaluateRaid rolls for a raid at now.
//
// Postcondition: returns true only when the roll succeeds and at least the
// current cooldown window (never shorter than MinRaidInterval) has elapsed since
// the previous raid; on true, LastRaidAt == now and a new window is rolled.
func (m *Model) EvaluateRaid(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !dice.Chance(m.src, m.raidChanceLocked()) {
		return false
	}
	if now.Sub(m.state.LastRaidAt) < m.state.RaidCooldownWindow {
		return false
	}
	m.state.LastRaidAt = now
	m.state.RaidCooldownWindow = m.rollCooldownLocked()
	m.logger.Info("raid triggered",
		zap.Float64("value", m.state.Value),
		zap.Int("escalation", m.state.EscalationLevel),
		zap.Duration("next_window", m.state.RaidCooldownWindow),
	)
	return true
}

// TickEscalation increments the escalation level once per EscalationInterval
// elapsed while the threat is locked at the cap. The first call after locking
// starts the escalation clock.
func (m *Model) TickEscalation(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Locked || m.params.EscalationInterval <= 0 {
		return
	}
	if m.state.LastEscalationAt.IsZero() {
		m.state.LastEscalationAt = now
		m.logger.Debug("escalation clock started", zap.Time("at", now))
		return
	}
	before := m.state.EscalationLevel
	for now.Sub(m.state.LastEscalationAt) >= m.params.EscalationInterval {
		m.state.EscalationLevel++
		m.state.LastEscalationAt = m.state.LastEscalationAt.Add(m.params.EscalationInterval)
	}
	if m.state.EscalationLevel != before {
		m.logger.Info("threat escalated",
			zap.Int("from", before),
			zap.Int("to", m.state.EscalationLevel),
		)
	}
}

// RecordRaidWin applies the escalation bonus for a raid the party won at max threat.
func (m *Model) RecordRaidWin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Locked {
		m.state.EscalationLevel += m.params.EscalationRaidBonus
		m.logger.Info("raid win escalated threat",
			zap.Int("escalation", m.state.EscalationLevel),
		)
	}
}

// EscalationMultipliers returns the generation bonuses for the current level.
func (m *Model) EscalationMultipliers() Multipliers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MultipliersFor(m.params, m.state.EscalationLevel)
}

// MultipliersFor derives the generation bonuses for an arbitrary escalation level.
//
// Postcondition: level <= 0 yields the identity multipliers.
func MultipliersFor(p Params, level int) Multipliers {
	if level < 0 {
		level = 0
	}
	armor := 0
	if p.LevelsPerArmor > 0 {
		armor = level / p.LevelsPerArmor
	}
	return Multipliers{
		HP:            1 + p.HPPerLevel*float64(level),
		Attack:        1 + p.AttackPerLevel*float64(level),
		ArmorBonus:    armor,
		AbilityChance: 1 + p.AbilityChancePerLevel*float64(level),
	}
}

func (m *Model) raidChanceLocked() float64 {
	chance := m.params.RaidBaseChance
	if m.params.RaidThreatDivisor > 0 {
		chance += m.state.Value / m.params.RaidThreatDivisor
	}
	return math.Min(chance, m.params.RaidMaxChance)
}

// rollCooldownLocked picks the next raid window inside [min, max], shortened by
// escalation but never below the minimum interval.
func (m *Model) rollCooldownLocked() time.Duration {
	lo, hi := m.params.MinRaidInterval, m.params.MaxRaidInterval
	window := lo
	if hi > lo {
		window = lo + time.Duration(m.src.Intn(int(hi-lo)+1))
	}
	reduction := 1 - m.params.EscalationIntervalReduction*float64(m.state.EscalationLevel)
	if reduction < 0 {
		reduction = 0
	}
	window = time.Duration(float64(window) * reduction)
	if window < lo {
		window = lo
	}
	return window
}

func (m *Model) floorValueLocked() float64 {
	return m.params.TierBoundaries[m.state.TierFloor]
}

// ratchetLocked raises TierFloor to the highest boundary Value has reached.
func (m *Model) ratchetLocked() {
	for i := len(m.params.TierBoundaries) - 1; i > m.state.TierFloor; i-- {
		if m.state.Value >= m.params.TierBoundaries[i] {
			m.logger.Info("threat tier floor raised",
				zap.Int("from", m.state.TierFloor),
				zap.Int("to", i),
				zap.Float64("floor", m.params.TierBoundaries[i]),
			)
			m.state.TierFloor = i
			break
		}
	}
	if m.state.Value >= MaxValue && !m.state.Locked {
		m.state.Locked = true
		m.logger.Info("threat locked at cap", zap.Float64("value", m.state.Value))
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
