package combat

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/derelict/internal/game/condition"
)

// ConsumableKind identifies a single-use combat item.
type ConsumableKind int

const (
	ConsumableUnknown ConsumableKind = iota
	MedkitBasic
	MedkitAdvanced
	MedkitMilitary
	Stimpack
	StunGrenade
	CombatDrug
	NaniteInjector
	ThreatSuppressor
)

// ConsumableSpec is the pure data descriptor of a consumable. It carries no
// behavior; Resolver.UseConsumable interprets it.
type ConsumableSpec struct {
	Kind ConsumableKind
	ID   string
	Name string
	// Heal is restored to the user, scaled by healing bonuses.
	Heal int
	// MaxHPBonus permanently raises the user's maximum hit points.
	MaxHPBonus int
	// Self effects are applied to the user; Target effects to the chosen target.
	Self   []condition.Spec
	Target []condition.Spec
	// ThreatReduction lowers station threat via the encounter's threat sink.
	ThreatReduction float64
	// Offensive consumables require a hostile target.
	Offensive bool
}

// Healing reports whether the consumable restores hit points.
func (s ConsumableSpec) Healing() bool { return s.Heal > 0 }

var consumables = map[ConsumableKind]ConsumableSpec{
	MedkitBasic:    {Kind: MedkitBasic, ID: "medkit_basic", Name: "basic medkit", Heal: 10},
	MedkitAdvanced: {Kind: MedkitAdvanced, ID: "medkit_advanced", Name: "advanced medkit", Heal: 20},
	MedkitMilitary: {
		Kind: MedkitMilitary, ID: "medkit_military", Name: "military medkit", Heal: 35,
		Self: []condition.Spec{{Type: condition.EffectRegen, Magnitude: 3, Duration: 2}},
	},
	Stimpack: {
		Kind: Stimpack, ID: "stimpack", Name: "stimpack", Heal: 8,
		Self: []condition.Spec{{Type: condition.EffectRegen, Magnitude: 2, Duration: 3}},
	},
	StunGrenade: {
		Kind: StunGrenade, ID: "stun_grenade", Name: "stun grenade", Offensive: true,
		Target: []condition.Spec{{Type: condition.EffectStun, Magnitude: 1, Duration: 1}},
	},
	CombatDrug: {
		Kind: CombatDrug, ID: "combat_drug", Name: "combat drug",
		Self: []condition.Spec{
			{Type: condition.EffectFrenzy, Magnitude: 0.30, Duration: 3},
			{Type: condition.EffectFortify, Magnitude: 1, Duration: 3},
		},
	},
	NaniteInjector: {Kind: NaniteInjector, ID: "nanite_injector", Name: "nanite injector", Heal: 5, MaxHPBonus: 5},
	ThreatSuppressor: {
		Kind: ThreatSuppressor, ID: "threat_suppressor", Name: "threat suppressor", ThreatReduction: 5,
	},
}

// ConsumableFor returns the descriptor for k.
func ConsumableFor(k ConsumableKind) (ConsumableSpec, bool) {
	s, ok := consumables[k]
	return s, ok
}

// String returns the YAML id of the consumable.
func (k ConsumableKind) String() string {
	if s, ok := consumables[k]; ok {
		return s.ID
	}
	return "unknown"
}

// ParseConsumableKind resolves a consumable id.
func ParseConsumableKind(id string) (ConsumableKind, error) {
	for k, s := range consumables {
		if s.ID == id {
			return k, nil
		}
	}
	return ConsumableUnknown, fmt.Errorf("unknown consumable %q", id)
}

// UnmarshalYAML decodes a consumable kind from its id.
func (k *ConsumableKind) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseConsumableKind(node.Value)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// MedkitForThreat returns the medkit tier a generated hostile carries at threat.
func MedkitForThreat(threat float64) ConsumableKind {
	switch {
	case threat >= 60:
		return MedkitMilitary
	case threat >= 30:
		return MedkitAdvanced
	default:
		return MedkitBasic
	}
}

// BestMedkit returns the strongest medkit c carries.
func BestMedkit(c *Combatant) (ConsumableKind, bool) {
	for _, k := range []ConsumableKind{MedkitMilitary, MedkitAdvanced, MedkitBasic, Stimpack} {
		if c.HasConsumable(k) {
			return k, true
		}
	}
	return ConsumableUnknown, false
}
