package combat

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Ability is a class or species ability that alters resolution rules.
type Ability int

const (
	AbilityUnknown Ability = iota
	AbilityDeadeye
	AbilitySteadyAim
	AbilityBrawler
	AbilityBerserker
	AbilityEvasive
	AbilityIronSkin
	AbilityEscapeArtist
	AbilityDoubleTap
	AbilityScrounger
	AbilityArmorBreaker
	AbilityFieldMedic
	AbilityTactician
)

var abilityNames = map[Ability]string{
	AbilityDeadeye:      "deadeye",
	AbilitySteadyAim:    "steady_aim",
	AbilityBrawler:      "brawler",
	AbilityBerserker:    "berserker",
	AbilityEvasive:      "evasive",
	AbilityIronSkin:     "iron_skin",
	AbilityEscapeArtist: "escape_artist",
	AbilityDoubleTap:    "double_tap",
	AbilityScrounger:    "scrounger",
	AbilityArmorBreaker: "armor_breaker",
	AbilityFieldMedic:   "field_medic",
	AbilityTactician:    "tactician",
}

// String returns the YAML name of the ability.
func (a Ability) String() string {
	if n, ok := abilityNames[a]; ok {
		return n
	}
	return "unknown"
}

// ParseAbility resolves a YAML ability name.
func ParseAbility(name string) (Ability, error) {
	for a, n := range abilityNames {
		if n == name {
			return a, nil
		}
	}
	return AbilityUnknown, fmt.Errorf("unknown ability %q", name)
}

// UnmarshalYAML decodes an ability from its name.
func (a *Ability) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseAbility(node.Value)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// AbilityRule is the typed payload of one ability. Multipliers of 0 are
// treated as 1.
type AbilityRule struct {
	HitBonus     float64
	CritBonus    float64
	DamageMult   float64
	Evasion      float64
	Defense      int
	RetreatBonus float64
	// ExtraAttackChance is the probability of a second attack on Attack.
	ExtraAttackChance float64
	// AmmoSaver scales the ammo consumption chance down by this fraction.
	AmmoSaver   float64
	ArmorPierce float64
	HealingMult float64
}

// abilityRules is the single dispatch table for ability effects.
var abilityRules = map[Ability]AbilityRule{
	AbilityDeadeye:      {HitBonus: 0.10},
	AbilitySteadyAim:    {HitBonus: 0.05, CritBonus: 0.05},
	AbilityBrawler:      {DamageMult: 1.15},
	AbilityBerserker:    {DamageMult: 1.25, Defense: -1},
	AbilityEvasive:      {Evasion: 0.10},
	AbilityIronSkin:     {Defense: 2},
	AbilityEscapeArtist: {RetreatBonus: 0.15},
	AbilityDoubleTap:    {ExtraAttackChance: 0.20},
	AbilityScrounger:    {AmmoSaver: 0.5},
	AbilityArmorBreaker: {ArmorPierce: 0.25},
	AbilityFieldMedic:   {HealingMult: 1.5},
	AbilityTactician:    {HitBonus: 0.05, Evasion: 0.05},
}

// RuleFor returns the rule payload for a.
func RuleFor(a Ability) AbilityRule { return abilityRules[a] }

// abilityTotals folds every ability rule of c into one aggregate.
func abilityTotals(c *Combatant) AbilityRule {
	out := AbilityRule{DamageMult: 1, HealingMult: 1}
	for _, a := range c.Abilities {
		r := abilityRules[a]
		out.HitBonus += r.HitBonus
		out.CritBonus += r.CritBonus
		if r.DamageMult != 0 {
			out.DamageMult *= r.DamageMult
		}
		out.Evasion += r.Evasion
		out.Defense += r.Defense
		out.RetreatBonus += r.RetreatBonus
		out.ExtraAttackChance += r.ExtraAttackChance
		out.AmmoSaver += r.AmmoSaver
		out.ArmorPierce += r.ArmorPierce
		if r.HealingMult != 0 {
			out.HealingMult *= r.HealingMult
		}
	}
	if out.AmmoSaver > 1 {
		out.AmmoSaver = 1
	}
	return out
}
