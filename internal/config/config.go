// Package config provides Viper-based configuration loading for the station
// simulation.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/derelict/internal/game/ai"
	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/encounter"
	"github.com/cory-johannsen/derelict/internal/game/station"
	"github.com/cory-johannsen/derelict/internal/game/threat"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// Enabled turns on threat persistence and the encounter archive.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// SurvivorConfig is one starting roster member.
type SurvivorConfig struct {
	Name  string `mapstructure:"name"`
	Class string `mapstructure:"class"`
	// Task is "idle", "guard", or "explore"; empty means idle.
	Task string `mapstructure:"task"`
}

// ParsedTask returns the survivor's starting assignment.
func (s SurvivorConfig) ParsedTask() (station.Task, error) {
	if s.Task == "" {
		return station.TaskIdle, nil
	}
	return station.ParseTask(s.Task)
}

// SimulationConfig holds the world tick and content settings.
type SimulationConfig struct {
	// StationID keys the persisted threat snapshot.
	StationID string `mapstructure:"station_id"`
	// TickInterval is the wall-clock time between world ticks.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// TimeScale multiplies the simulated time each tick advances.
	TimeScale float64 `mapstructure:"time_scale"`
	// ContentDir holds species/, classes/, equipment/, conditions/, and decks/.
	ContentDir string `mapstructure:"content_dir"`
	// ScriptDir holds one subdirectory of Lua files per mission.
	ScriptDir        string  `mapstructure:"script_dir"`
	InstructionLimit int     `mapstructure:"instruction_limit"`
	Autopilot        bool    `mapstructure:"autopilot"`
	MaxSteps         int     `mapstructure:"max_steps"`
	ExploreChance    float64 `mapstructure:"explore_chance"`
	ProbeChance      float64 `mapstructure:"probe_chance"`
	PersistEvery     int     `mapstructure:"persist_every"`
	Turrets          int     `mapstructure:"turrets"`
	Ammo             int     `mapstructure:"ammo"`
	// Seed fixes the random source; 0 uses crypto randomness.
	Seed      uint64           `mapstructure:"seed"`
	Survivors []SurvivorConfig `mapstructure:"survivors"`
}

// DeckDir returns the deck map directory under ContentDir.
func (s SimulationConfig) DeckDir() string { return filepath.Join(s.ContentDir, "decks") }

// Params converts to the station tick tuning.
func (s SimulationConfig) Params() station.Params {
	return station.Params{ExploreChance: s.ExploreChance, ProbeChance: s.ProbeChance, PersistEvery: s.PersistEvery}
}

// ThreatConfig holds every threat model constant.
type ThreatConfig struct {
	GrowthBase                  float64       `mapstructure:"growth_base"`
	GrowthJitter                float64       `mapstructure:"growth_jitter"`
	GuardReduction              float64       `mapstructure:"guard_reduction"`
	TierBoundaries              []float64     `mapstructure:"tier_boundaries"`
	RaidBaseChance              float64       `mapstructure:"raid_base_chance"`
	RaidThreatDivisor           float64       `mapstructure:"raid_threat_divisor"`
	RaidMaxChance               float64       `mapstructure:"raid_max_chance"`
	MinRaidInterval             time.Duration `mapstructure:"min_raid_interval"`
	MaxRaidInterval             time.Duration `mapstructure:"max_raid_interval"`
	EscalationIntervalReduction float64       `mapstructure:"escalation_interval_reduction"`
	EscalationInterval          time.Duration `mapstructure:"escalation_interval"`
	EscalationRaidBonus         int           `mapstructure:"escalation_raid_bonus"`
	HPPerLevel                  float64       `mapstructure:"hp_per_level"`
	AttackPerLevel              float64       `mapstructure:"attack_per_level"`
	LevelsPerArmor              int           `mapstructure:"levels_per_armor"`
	AbilityChancePerLevel       float64       `mapstructure:"ability_chance_per_level"`
}

// Model converts to the threat model parameters.
func (t ThreatConfig) Model() threat.Params {
	return threat.Params{
		GrowthBase:                  t.GrowthBase,
		GrowthJitter:                t.GrowthJitter,
		GuardReduction:              t.GuardReduction,
		TierBoundaries:              t.TierBoundaries,
		RaidBaseChance:              t.RaidBaseChance,
		RaidThreatDivisor:           t.RaidThreatDivisor,
		RaidMaxChance:               t.RaidMaxChance,
		MinRaidInterval:             t.MinRaidInterval,
		MaxRaidInterval:             t.MaxRaidInterval,
		EscalationIntervalReduction: t.EscalationIntervalReduction,
		EscalationInterval:          t.EscalationInterval,
		EscalationRaidBonus:         t.EscalationRaidBonus,
		HPPerLevel:                  t.HPPerLevel,
		AttackPerLevel:              t.AttackPerLevel,
		LevelsPerArmor:              t.LevelsPerArmor,
		AbilityChancePerLevel:       t.AbilityChancePerLevel,
	}
}

// CombatConfig holds the action resolver, encounter, and AI constants.
type CombatConfig struct {
	BaseHitChance       float64 `mapstructure:"base_hit_chance"`
	MinHitChance        float64 `mapstructure:"min_hit_chance"`
	MaxHitChance        float64 `mapstructure:"max_hit_chance"`
	AimBonus            float64 `mapstructure:"aim_bonus"`
	CritChance          float64 `mapstructure:"crit_chance"`
	CritMultiplier      float64 `mapstructure:"crit_multiplier"`
	BurstShots          int     `mapstructure:"burst_shots"`
	BurstBonusMin       int     `mapstructure:"burst_bonus_min"`
	BurstBonusMax       int     `mapstructure:"burst_bonus_max"`
	GuardBonus          int     `mapstructure:"guard_bonus"`
	AmmoConsumeChance   float64 `mapstructure:"ammo_consume_chance"`
	ShortfallMultiplier float64 `mapstructure:"shortfall_multiplier"`
	XPMin               int     `mapstructure:"xp_min"`
	XPMax               int     `mapstructure:"xp_max"`
	RetreatBaseChance   float64 `mapstructure:"retreat_base_chance"`
	RetreatMinChance    float64 `mapstructure:"retreat_min_chance"`
	RetreatMaxChance    float64 `mapstructure:"retreat_max_chance"`
	TurretDefense       int     `mapstructure:"turret_defense"`
	AmbushMultiplier    float64 `mapstructure:"ambush_multiplier"`
	PackBonusPerAlly    float64 `mapstructure:"pack_bonus_per_ally"`
	LevelDamageStep     int     `mapstructure:"level_damage_step"`

	LogLimit             int     `mapstructure:"log_limit"`
	NoDefenderThreat     float64 `mapstructure:"no_defender_threat"`
	NoDefenderSeedChance float64 `mapstructure:"no_defender_seed_chance"`
	RaidLossDamage       int     `mapstructure:"raid_loss_damage"`

	HealBelow   float64 `mapstructure:"heal_below"`
	GuardBelow  float64 `mapstructure:"guard_below"`
	GuardChance float64 `mapstructure:"guard_chance"`
}

// Rules converts to the action resolver constants.
func (c CombatConfig) Rules() combat.Rules {
	return combat.Rules{
		BaseHitChance:       c.BaseHitChance,
		MinHitChance:        c.MinHitChance,
		MaxHitChance:        c.MaxHitChance,
		AimBonus:            c.AimBonus,
		CritChance:          c.CritChance,
		CritMultiplier:      c.CritMultiplier,
		BurstShots:          c.BurstShots,
		BurstBonusMin:       c.BurstBonusMin,
		BurstBonusMax:       c.BurstBonusMax,
		GuardBonus:          c.GuardBonus,
		AmmoConsumeChance:   c.AmmoConsumeChance,
		ShortfallMultiplier: c.ShortfallMultiplier,
		XPMin:               c.XPMin,
		XPMax:               c.XPMax,
		RetreatBaseChance:   c.RetreatBaseChance,
		RetreatMinChance:    c.RetreatMinChance,
		RetreatMaxChance:    c.RetreatMaxChance,
		TurretDefense:       c.TurretDefense,
		AmbushMultiplier:    c.AmbushMultiplier,
		PackBonusPerAlly:    c.PackBonusPerAlly,
		LevelDamageStep:     c.LevelDamageStep,
	}
}

// Encounter converts to the encounter controller parameters.
func (c CombatConfig) Encounter() encounter.Params {
	return encounter.Params{
		LogLimit:             c.LogLimit,
		NoDefenderThreat:     c.NoDefenderThreat,
		NoDefenderSeedChance: c.NoDefenderSeedChance,
		RaidLossDamage:       c.RaidLossDamage,
	}
}

// AI converts to the targeting policy parameters.
func (c CombatConfig) AI() ai.Params {
	return ai.Params{HealBelow: c.HealBelow, GuardBelow: c.GuardBelow, GuardChance: c.GuardChance}
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Threat     ThreatConfig     `mapstructure:"threat"`
	Combat     CombatConfig     `mapstructure:"combat"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateLogging(c.Logging),
		validateDatabase(c.Database),
		validateSimulation(c.Simulation),
		validateThreat(c.Threat),
		validateCombat(c.Combat),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	if !d.Enabled {
		return nil
	}
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return joined(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateSimulation(s SimulationConfig) error {
	var errs []string
	if s.StationID == "" {
		errs = append(errs, "simulation.station_id must not be empty")
	}
	if s.TickInterval <= 0 {
		errs = append(errs, "simulation.tick_interval must be positive")
	}
	if s.TimeScale <= 0 {
		errs = append(errs, "simulation.time_scale must be positive")
	}
	if s.ContentDir == "" {
		errs = append(errs, "simulation.content_dir must not be empty")
	}
	if s.InstructionLimit < 0 {
		errs = append(errs, "simulation.instruction_limit must be >= 0")
	}
	if s.MaxSteps < 0 {
		errs = append(errs, "simulation.max_steps must be >= 0")
	}
	if !unit(s.ExploreChance) {
		errs = append(errs, "simulation.explore_chance must be in [0, 1]")
	}
	if !unit(s.ProbeChance) {
		errs = append(errs, "simulation.probe_chance must be in [0, 1]")
	}
	if s.PersistEvery < 0 {
		errs = append(errs, "simulation.persist_every must be >= 0")
	}
	if s.Turrets < 0 || s.Ammo < 0 {
		errs = append(errs, "simulation.turrets and simulation.ammo must be >= 0")
	}
	explorers := 0
	for i, sv := range s.Survivors {
		if sv.Name == "" || sv.Class == "" {
			errs = append(errs, fmt.Sprintf("simulation.survivors[%d] needs a name and a class", i))
		}
		t, err := sv.ParsedTask()
		if err != nil {
			errs = append(errs, fmt.Sprintf("simulation.survivors[%d]: %v", i, err))
		}
		if t == station.TaskExplore {
			explorers++
		}
	}
	if explorers > 1 {
		errs = append(errs, "simulation.survivors may name at most one explorer")
	}
	return joined(errs)
}

func validateThreat(t ThreatConfig) error {
	var errs []string
	if t.GrowthBase < 0 || t.GrowthJitter < 0 || t.GuardReduction < 0 {
		errs = append(errs, "threat growth and guard reduction must be >= 0")
	}
	for i := 1; i < len(t.TierBoundaries); i++ {
		if t.TierBoundaries[i] <= t.TierBoundaries[i-1] {
			errs = append(errs, "threat.tier_boundaries must be strictly increasing")
			break
		}
	}
	if !unit(t.RaidBaseChance) || !unit(t.RaidMaxChance) || t.RaidBaseChance > t.RaidMaxChance {
		errs = append(errs, "threat raid chances must satisfy 0 <= raid_base_chance <= raid_max_chance <= 1")
	}
	if t.RaidThreatDivisor <= 0 {
		errs = append(errs, "threat.raid_threat_divisor must be positive")
	}
	if t.MinRaidInterval <= 0 || t.MaxRaidInterval < t.MinRaidInterval {
		errs = append(errs, "threat raid intervals must satisfy 0 < min_raid_interval <= max_raid_interval")
	}
	if t.EscalationInterval <= 0 {
		errs = append(errs, "threat.escalation_interval must be positive")
	}
	if !unit(t.EscalationIntervalReduction) {
		errs = append(errs, "threat.escalation_interval_reduction must be in [0, 1]")
	}
	if t.LevelsPerArmor < 1 {
		errs = append(errs, "threat.levels_per_armor must be >= 1")
	}
	return joined(errs)
}

func validateCombat(c CombatConfig) error {
	var errs []string
	if !unit(c.MinHitChance) || !unit(c.MaxHitChance) || c.MinHitChance > c.MaxHitChance {
		errs = append(errs, "combat hit chances must satisfy 0 <= min_hit_chance <= max_hit_chance <= 1")
	}
	if !unit(c.BaseHitChance) || !unit(c.CritChance) || !unit(c.AmmoConsumeChance) {
		errs = append(errs, "combat base_hit_chance, crit_chance, and ammo_consume_chance must be in [0, 1]")
	}
	if c.CritMultiplier < 1 {
		errs = append(errs, "combat.crit_multiplier must be >= 1")
	}
	if c.BurstShots < 1 || c.BurstBonusMin > c.BurstBonusMax {
		errs = append(errs, "combat burst needs burst_shots >= 1 and burst_bonus_min <= burst_bonus_max")
	}
	if c.XPMin < 0 || c.XPMin > c.XPMax {
		errs = append(errs, "combat xp range must satisfy 0 <= xp_min <= xp_max")
	}
	if !unit(c.RetreatMinChance) || !unit(c.RetreatMaxChance) || c.RetreatMinChance > c.RetreatMaxChance {
		errs = append(errs, "combat retreat chances must satisfy 0 <= retreat_min_chance <= retreat_max_chance <= 1")
	}
	if c.LevelDamageStep < 1 {
		errs = append(errs, "combat.level_damage_step must be >= 1")
	}
	if c.LogLimit < 1 {
		errs = append(errs, "combat.log_limit must be >= 1")
	}
	if !unit(c.NoDefenderSeedChance) || !unit(c.HealBelow) || !unit(c.GuardBelow) || !unit(c.GuardChance) {
		errs = append(errs, "combat no_defender_seed_chance, heal_below, guard_below, and guard_chance must be in [0, 1]")
	}
	return joined(errs)
}

func unit(p float64) bool { return p >= 0 && p <= 1 }

func joined(errs []string) error {
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with DERELICT_ prefix
	v.SetEnvPrefix("DERELICT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the shipped defaults.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "derelict")
	v.SetDefault("database.password", "derelict")
	v.SetDefault("database.name", "derelict")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	sp := station.DefaultParams()
	v.SetDefault("simulation.station_id", "derelict")
	v.SetDefault("simulation.tick_interval", "1s")
	v.SetDefault("simulation.time_scale", 1.0)
	v.SetDefault("simulation.content_dir", "content")
	v.SetDefault("simulation.script_dir", "content/scripts/missions")
	v.SetDefault("simulation.instruction_limit", 0)
	v.SetDefault("simulation.autopilot", true)
	v.SetDefault("simulation.max_steps", station.DefaultMaxSteps)
	v.SetDefault("simulation.explore_chance", sp.ExploreChance)
	v.SetDefault("simulation.probe_chance", sp.ProbeChance)
	v.SetDefault("simulation.persist_every", sp.PersistEvery)
	v.SetDefault("simulation.turrets", 1)
	v.SetDefault("simulation.ammo", 100)
	v.SetDefault("simulation.seed", 0)

	tp := threat.DefaultParams()
	v.SetDefault("threat.growth_base", tp.GrowthBase)
	v.SetDefault("threat.growth_jitter", tp.GrowthJitter)
	v.SetDefault("threat.guard_reduction", tp.GuardReduction)
	v.SetDefault("threat.tier_boundaries", tp.TierBoundaries)
	v.SetDefault("threat.raid_base_chance", tp.RaidBaseChance)
	v.SetDefault("threat.raid_threat_divisor", tp.RaidThreatDivisor)
	v.SetDefault("threat.raid_max_chance", tp.RaidMaxChance)
	v.SetDefault("threat.min_raid_interval", tp.MinRaidInterval)
	v.SetDefault("threat.max_raid_interval", tp.MaxRaidInterval)
	v.SetDefault("threat.escalation_interval_reduction", tp.EscalationIntervalReduction)
	v.SetDefault("threat.escalation_interval", tp.EscalationInterval)
	v.SetDefault("threat.escalation_raid_bonus", tp.EscalationRaidBonus)
	v.SetDefault("threat.hp_per_level", tp.HPPerLevel)
	v.SetDefault("threat.attack_per_level", tp.AttackPerLevel)
	v.SetDefault("threat.levels_per_armor", tp.LevelsPerArmor)
	v.SetDefault("threat.ability_chance_per_level", tp.AbilityChancePerLevel)

	r := combat.DefaultRules()
	v.SetDefault("combat.base_hit_chance", r.BaseHitChance)
	v.SetDefault("combat.min_hit_chance", r.MinHitChance)
	v.SetDefault("combat.max_hit_chance", r.MaxHitChance)
	v.SetDefault("combat.aim_bonus", r.AimBonus)
	v.SetDefault("combat.crit_chance", r.CritChance)
	v.SetDefault("combat.crit_multiplier", r.CritMultiplier)
	v.SetDefault("combat.burst_shots", r.BurstShots)
	v.SetDefault("combat.burst_bonus_min", r.BurstBonusMin)
	v.SetDefault("combat.burst_bonus_max", r.BurstBonusMax)
	v.SetDefault("combat.guard_bonus", r.GuardBonus)
	v.SetDefault("combat.ammo_consume_chance", r.AmmoConsumeChance)
	v.SetDefault("combat.shortfall_multiplier", r.ShortfallMultiplier)
	v.SetDefault("combat.xp_min", r.XPMin)
	v.SetDefault("combat.xp_max", r.XPMax)
	v.SetDefault("combat.retreat_base_chance", r.RetreatBaseChance)
	v.SetDefault("combat.retreat_min_chance", r.RetreatMinChance)
	v.SetDefault("combat.retreat_max_chance", r.RetreatMaxChance)
	v.SetDefault("combat.turret_defense", r.TurretDefense)
	v.SetDefault("combat.ambush_multiplier", r.AmbushMultiplier)
	v.SetDefault("combat.pack_bonus_per_ally", r.PackBonusPerAlly)
	v.SetDefault("combat.level_damage_step", r.LevelDamageStep)

	ep := encounter.DefaultParams()
	v.SetDefault("combat.log_limit", ep.LogLimit)
	v.SetDefault("combat.no_defender_threat", ep.NoDefenderThreat)
	v.SetDefault("combat.no_defender_seed_chance", ep.NoDefenderSeedChance)
	v.SetDefault("combat.raid_loss_damage", ep.RaidLossDamage)

	ap := ai.DefaultParams()
	v.SetDefault("combat.heal_below", ap.HealBelow)
	v.SetDefault("combat.guard_below", ap.GuardBelow)
	v.SetDefault("combat.guard_chance", ap.GuardChance)
}
