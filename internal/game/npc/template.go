// Package npc builds hostile combatants from YAML templates and tracks the
// hostiles present at map locations.
package npc

import (
	"fmt"

	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/condition"
)

// IntRange is an inclusive integer range.
type IntRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Validate checks 0 <= Min <= Max.
func (r IntRange) Validate() error {
	if r.Min < 0 || r.Max < r.Min {
		return fmt.Errorf("range [%d, %d] is invalid", r.Min, r.Max)
	}
	return nil
}

// FloatRange is a half-open float range.
type FloatRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Validate checks Min <= Max.
func (r FloatRange) Validate() error {
	if r.Max < r.Min {
		return fmt.Errorf("range [%g, %g] is invalid", r.Min, r.Max)
	}
	return nil
}

// Modifier is an optional trait rolled onto a generated alien.
type Modifier struct {
	ID     string        `yaml:"id"`
	Name   string        `yaml:"name"`
	Rarity combat.Rarity `yaml:"rarity"`
	// Chance is the independent probability this modifier is applied.
	Chance     float64          `yaml:"chance"`
	Armor      int              `yaml:"armor"`
	AttackMult float64          `yaml:"attack_mult"`
	HPMult     float64          `yaml:"hp_mult"`
	Evasion    float64          `yaml:"evasion"`
	Effects    []condition.Spec `yaml:"effects"`
	OnHit      []condition.Spec `yaml:"on_hit"`
}

// Species is an alien archetype loaded from YAML.
type Species struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	HP          IntRange `yaml:"hp"`
	// Attack is the range the alien's attack rating is rolled from; the
	// combatant's damage range is the rating plus or minus Variance.
	Attack    IntRange              `yaml:"attack"`
	Variance  int                   `yaml:"variance"`
	Armor     int                   `yaml:"armor"`
	Evasion   float64               `yaml:"evasion"`
	Stealth   int                   `yaml:"stealth"`
	Rarity    combat.Rarity         `yaml:"rarity"`
	Behavior  combat.Behavior       `yaml:"behavior"`
	Weapon    combat.WeaponCategory `yaml:"weapon"`
	Special   combat.Special        `yaml:"special"`
	OnHit     []condition.Spec      `yaml:"on_hit"`
	Modifiers []Modifier            `yaml:"modifiers"`
}

// Validate checks that the species satisfies basic invariants.
//
// Postcondition: Returns nil iff every field is within range; otherwise the
// first violation.
func (s *Species) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("species: id must not be empty")
	}
	if s.Name == "" {
		return fmt.Errorf("species %q: name must not be empty", s.ID)
	}
	if err := s.HP.Validate(); err != nil || s.HP.Min < 1 {
		return fmt.Errorf("species %q: hp must be a valid range with min >= 1", s.ID)
	}
	if err := s.Attack.Validate(); err != nil {
		return fmt.Errorf("species %q: attack: %w", s.ID, err)
	}
	if s.Variance < 0 {
		return fmt.Errorf("species %q: variance must be >= 0", s.ID)
	}
	if s.Evasion < 0 || s.Evasion >= 1 {
		return fmt.Errorf("species %q: evasion must be in [0, 1)", s.ID)
	}
	if s.Special.Chance < 0 || s.Special.Chance > 1 {
		return fmt.Errorf("species %q: special chance must be in [0, 1]", s.ID)
	}
	if s.Special.Kind == combat.SpecialSwarm && s.Special.SpawnSpecies == "" {
		return fmt.Errorf("species %q: swarm special needs spawn_species", s.ID)
	}
	for _, e := range s.OnHit {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("species %q: on_hit: %w", s.ID, err)
		}
	}
	for _, m := range s.Modifiers {
		if m.ID == "" {
			return fmt.Errorf("species %q: modifier id must not be empty", s.ID)
		}
		if m.Chance < 0 || m.Chance > 1 {
			return fmt.Errorf("species %q: modifier %q chance must be in [0, 1]", s.ID, m.ID)
		}
		for _, e := range append(append([]condition.Spec{}, m.Effects...), m.OnHit...) {
			if err := e.Validate(); err != nil {
				return fmt.Errorf("species %q: modifier %q: %w", s.ID, m.ID, err)
			}
		}
	}
	return nil
}

// StatBonuses are the per-class stat bonus ranges.
type StatBonuses struct {
	Combat     FloatRange `yaml:"combat"`
	HP         IntRange   `yaml:"hp"`
	Defense    IntRange   `yaml:"defense"`
	Healing    FloatRange `yaml:"healing"`
	Production FloatRange `yaml:"production"`
	Crafting   FloatRange `yaml:"crafting"`
}

// Class is a survivor class shared by the party and hostile humans.
type Class struct {
	ID        string           `yaml:"id"`
	Name      string           `yaml:"name"`
	Role      string           `yaml:"role"`
	BaseHP    int              `yaml:"base_hp"`
	Damage    IntRange         `yaml:"damage"`
	Behavior  combat.Behavior  `yaml:"behavior"`
	Bonuses   StatBonuses      `yaml:"bonuses"`
	Abilities []combat.Ability `yaml:"abilities"`
}

// Validate checks that the class satisfies basic invariants.
func (c *Class) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("class: id must not be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("class %q: name must not be empty", c.ID)
	}
	if c.BaseHP < 1 {
		return fmt.Errorf("class %q: base_hp must be >= 1", c.ID)
	}
	if err := c.Damage.Validate(); err != nil {
		return fmt.Errorf("class %q: damage: %w", c.ID, err)
	}
	for name, r := range map[string]FloatRange{
		"combat": c.Bonuses.Combat, "healing": c.Bonuses.Healing,
		"production": c.Bonuses.Production, "crafting": c.Bonuses.Crafting,
	} {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("class %q: bonuses.%s: %w", c.ID, name, err)
		}
	}
	if err := c.Bonuses.HP.Validate(); err != nil {
		return fmt.Errorf("class %q: bonuses.hp: %w", c.ID, err)
	}
	if err := c.Bonuses.Defense.Validate(); err != nil {
		return fmt.Errorf("class %q: bonuses.defense: %w", c.ID, err)
	}
	if len(c.Abilities) < int(combat.RarityVeryRare) {
		return fmt.Errorf("class %q: ability pool needs at least %d entries", c.ID, int(combat.RarityVeryRare))
	}
	return nil
}

// Weapon is one piece of equipment from a rarity-partitioned pool.
type Weapon struct {
	ID          string                `yaml:"id"`
	Name        string                `yaml:"name"`
	Category    combat.WeaponCategory `yaml:"category"`
	Damage      IntRange              `yaml:"damage"`
	Accuracy    float64               `yaml:"accuracy"`
	ArmorPierce float64               `yaml:"armor_pierce"`
	Splash      float64               `yaml:"splash"`
	OnHit       []condition.Spec      `yaml:"on_hit"`
}

// Armor is one defensive piece from a rarity-partitioned pool.
type Armor struct {
	ID      string  `yaml:"id"`
	Name    string  `yaml:"name"`
	Defense int     `yaml:"defense"`
	Evasion float64 `yaml:"evasion"`
	// Effects are permanent passives such as regen, reflect, or dodge.
	Effects []condition.Spec `yaml:"effects"`
}

// EquipmentTier is one equipment file: every weapon and armor piece of a rarity.
type EquipmentTier struct {
	Rarity  combat.Rarity `yaml:"rarity"`
	Weapons []Weapon      `yaml:"weapons"`
	Armor   []Armor       `yaml:"armor"`
}

// Validate checks that every piece in the tier is well formed.
func (t *EquipmentTier) Validate() error {
	if len(t.Weapons) == 0 || len(t.Armor) == 0 {
		return fmt.Errorf("equipment tier %s: needs at least one weapon and one armor", t.Rarity)
	}
	for _, w := range t.Weapons {
		if w.ID == "" {
			return fmt.Errorf("equipment tier %s: weapon id must not be empty", t.Rarity)
		}
		if err := w.Damage.Validate(); err != nil {
			return fmt.Errorf("weapon %q: %w", w.ID, err)
		}
		for _, e := range w.OnHit {
			if err := e.Validate(); err != nil {
				return fmt.Errorf("weapon %q: %w", w.ID, err)
			}
		}
	}
	for _, a := range t.Armor {
		if a.ID == "" {
			return fmt.Errorf("equipment tier %s: armor id must not be empty", t.Rarity)
		}
		if a.Defense < 0 {
			return fmt.Errorf("armor %q: defense must be >= 0", a.ID)
		}
		for _, e := range a.Effects {
			if err := e.Validate(); err != nil {
				return fmt.Errorf("armor %q: %w", a.ID, err)
			}
		}
	}
	return nil
}
