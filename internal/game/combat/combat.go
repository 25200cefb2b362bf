// Package combat implements the combatant model and single-action resolution
// for turn-based station encounters.
package combat

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/derelict/internal/game/condition"
)

// Faction distinguishes the party from the two hostile kinds.
type Faction int

const (
	FactionParty Faction = iota
	FactionAlien
	FactionHostileHuman
)

// String returns the faction tag used in logs.
func (f Faction) String() string {
	switch f {
	case FactionParty:
		return "party"
	case FactionAlien:
		return "alien"
	case FactionHostileHuman:
		return "hostile-human"
	default:
		return "unknown"
	}
}

// Hostile reports whether f is one of the hostile factions.
func (f Faction) Hostile() bool { return f != FactionParty }

// Rarity gates generation pools and ability counts.
type Rarity int

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityVeryRare
)

var rarityNames = []string{"common", "uncommon", "rare", "very_rare"}

// String returns the YAML name of the rarity.
func (r Rarity) String() string {
	if r < 0 || int(r) >= len(rarityNames) {
		return "unknown"
	}
	return rarityNames[r]
}

// ParseRarity resolves a YAML rarity name.
func ParseRarity(name string) (Rarity, error) {
	for i, n := range rarityNames {
		if n == name {
			return Rarity(i), nil
		}
	}
	return RarityCommon, fmt.Errorf("unknown rarity %q", name)
}

// UnmarshalYAML decodes a rarity from its name.
func (r *Rarity) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseRarity(node.Value)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// WeaponCategory is the broad class of a combatant's weapon.
type WeaponCategory int

const (
	WeaponNone WeaponCategory = iota
	WeaponMelee
	WeaponPistol
	WeaponRifle
	WeaponShotgun
	WeaponHeavy
)

var weaponNames = []string{"none", "melee", "pistol", "rifle", "shotgun", "heavy"}

// weaponBonus is the flat damage each category adds to the attacker's base roll.
var weaponBonus = []int{0, 1, 1, 2, 3, 4}

// String returns the YAML name of the weapon category.
func (w WeaponCategory) String() string {
	if w < 0 || int(w) >= len(weaponNames) {
		return "unknown"
	}
	return weaponNames[w]
}

// ParseWeaponCategory resolves a YAML weapon category name.
func ParseWeaponCategory(name string) (WeaponCategory, error) {
	for i, n := range weaponNames {
		if n == name {
			return WeaponCategory(i), nil
		}
	}
	return WeaponNone, fmt.Errorf("unknown weapon category %q", name)
}

// UnmarshalYAML decodes a weapon category from its name.
func (w *WeaponCategory) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseWeaponCategory(node.Value)
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// Ranged reports whether the category fires shots from the ammo pool.
func (w WeaponCategory) Ranged() bool {
	return w == WeaponPistol || w == WeaponRifle || w == WeaponShotgun || w == WeaponHeavy
}

// Bonus returns the category's flat damage bonus.
func (w WeaponCategory) Bonus() int {
	if w < 0 || int(w) >= len(weaponBonus) {
		return 0
	}
	return weaponBonus[w]
}

// LifeState is the alive/downed/dead tri-state.
type LifeState int

const (
	Alive LifeState = iota
	// Downed party members are out of the encounter but survive it.
	Downed
	Dead
)

// String returns a human-readable life state.
func (s LifeState) String() string {
	switch s {
	case Alive:
		return "alive"
	case Downed:
		return "downed"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// Behavior is the targeting class a hostile uses on its turn.
type Behavior int

const (
	BehaviorAggressive Behavior = iota
	BehaviorTactical
	BehaviorOpportunistic
)

var behaviorNames = []string{"aggressive", "tactical", "opportunistic"}

// String returns the YAML name of the behavior.
func (b Behavior) String() string {
	if b < 0 || int(b) >= len(behaviorNames) {
		return "unknown"
	}
	return behaviorNames[b]
}

// UnmarshalYAML decodes a behavior from its name.
func (b *Behavior) UnmarshalYAML(node *yaml.Node) error {
	for i, n := range behaviorNames {
		if n == node.Value {
			*b = Behavior(i)
			return nil
		}
	}
	return fmt.Errorf("unknown behavior %q", node.Value)
}

// SpecialKind identifies a species special rule.
type SpecialKind int

const (
	SpecialNone SpecialKind = iota
	SpecialSelfHeal
	SpecialMultiAttack
	SpecialPhase
	SpecialPack
	SpecialSwarm
	SpecialAmbush
)

var specialNames = []string{"none", "self_heal", "multi_attack", "phase", "pack", "swarm", "ambush"}

// String returns the YAML name of the special.
func (k SpecialKind) String() string {
	if k < 0 || int(k) >= len(specialNames) {
		return "unknown"
	}
	return specialNames[k]
}

// UnmarshalYAML decodes a special kind from its name.
func (k *SpecialKind) UnmarshalYAML(node *yaml.Node) error {
	for i, n := range specialNames {
		if n == node.Value {
			*k = SpecialKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown special %q", node.Value)
}

// Special is a species-level rule layered on top of normal resolution.
//
//   - self_heal: every Interval turns, heal Magnitude of max hp (fraction).
//   - multi_attack: with probability Chance, attack Count times this turn.
//   - phase: Chance to negate an incoming hit.
//   - pack: Magnitude damage bonus per living allied hostile.
//   - swarm: on death, Chance to introduce Count new low-tier hostiles.
//   - ambush: first action deals Magnitude times damage.
type Special struct {
	Kind      SpecialKind `yaml:"kind"`
	Chance    float64     `yaml:"chance"`
	Magnitude float64     `yaml:"magnitude"`
	Count     int         `yaml:"count"`
	Interval  int         `yaml:"interval"`
	// SpawnSpecies is the species id produced by a swarm special.
	SpawnSpecies string `yaml:"spawn_species"`
}

// ClassStats are the class-derived stat bonuses. Production and crafting are
// not used in combat but are generated for the shared class model.
type ClassStats struct {
	CombatMult     float64
	BonusHP        int
	Defense        int
	HealingMult    float64
	ProductionMult float64
	CraftingMult   float64
}

// Combatant is one unit taking part in an encounter. Party members are shared
// by reference with the rest of the simulation so damage persists.
type Combatant struct {
	ID      string
	Name    string
	Faction Faction
	// Species is set for aliens; Class for party members and hostile humans.
	Species string
	Class   string
	Level   int
	Rarity  Rarity

	HP    int
	MaxHP int

	AttackMin int
	AttackMax int
	Weapon    WeaponCategory
	// WeaponName is the display name of the equipped weapon, if any.
	WeaponName string
	UsesAmmo   bool
	// DamageMult scales every damage roll; 0 is treated as 1.
	DamageMult float64

	Defense int
	Evasion float64
	Stealth int
	// Accuracy is an additive hit-chance bonus from equipment.
	Accuracy       float64
	ArmorPierce    float64
	SplashFraction float64

	Behavior  Behavior
	Special   Special
	Abilities []Ability
	// OnHit effects roll against the target whenever this combatant lands a hit.
	OnHit       []condition.Spec
	Consumables map[ConsumableKind]int
	Stats       ClassStats
	Experience  int

	Effects *condition.Tracker

	// Combat-only state.
	GuardBonus           int
	Aimed                bool
	FirstStrikeAvailable bool
	TurnsTaken           int
	State                LifeState
}

// NewCombatant returns a combatant at full health with an empty effect tracker.
//
// Precondition: maxHP > 0.
func NewCombatant(id, name string, faction Faction, maxHP int) *Combatant {
	return &Combatant{
		ID:          id,
		Name:        name,
		Faction:     faction,
		Level:       1,
		HP:          maxHP,
		MaxHP:       maxHP,
		Effects:     condition.NewTracker(),
		Consumables: make(map[ConsumableKind]int),
	}
}

// Alive reports whether the combatant may still act in the current encounter.
func (c *Combatant) Alive() bool { return c.State == Alive && c.HP > 0 }

// HPFraction returns current over max hit points in [0, 1].
func (c *Combatant) HPFraction() float64 {
	if c.MaxHP <= 0 {
		return 0
	}
	return float64(c.HP) / float64(c.MaxHP)
}

// ApplyDamage reduces HP by amount, flooring at zero, and returns the damage
// actually removed. Reaching zero downs party members and kills hostiles.
//
// Precondition: amount >= 0.
// Postcondition: HP >= 0; HP == 0 implies State != Alive.
func (c *Combatant) ApplyDamage(amount int) int {
	if amount <= 0 || c.HP <= 0 {
		return 0
	}
	if amount > c.HP {
		amount = c.HP
	}
	c.HP -= amount
	if c.HP == 0 {
		if c.Faction == FactionParty {
			c.State = Downed
		} else {
			c.State = Dead
		}
	}
	return amount
}

// Heal restores up to amount hit points, capped at MaxHP, and returns the
// amount restored. Combatants that are not alive cannot be healed in combat.
func (c *Combatant) Heal(amount int) int {
	if amount <= 0 || !c.Alive() {
		return 0
	}
	if c.HP+amount > c.MaxHP {
		amount = c.MaxHP - c.HP
	}
	c.HP += amount
	return amount
}

// HasAbility reports whether a is in the combatant's ability set.
func (c *Combatant) HasAbility(a Ability) bool {
	for _, have := range c.Abilities {
		if have == a {
			return true
		}
	}
	return false
}

// HasConsumable reports whether at least one k is in inventory.
func (c *Combatant) HasConsumable(k ConsumableKind) bool {
	return c.Consumables[k] > 0
}

// AddConsumable adds n units of k to inventory.
func (c *Combatant) AddConsumable(k ConsumableKind, n int) {
	if c.Consumables == nil {
		c.Consumables = make(map[ConsumableKind]int)
	}
	c.Consumables[k] += n
}

// takeConsumable removes one k from inventory, reporting whether one was present.
func (c *Combatant) takeConsumable(k ConsumableKind) bool {
	if c.Consumables[k] <= 0 {
		return false
	}
	c.Consumables[k]--
	if c.Consumables[k] == 0 {
		delete(c.Consumables, k)
	}
	return true
}

// Strength is a rough power estimate used to pick the most dangerous target.
func (c *Combatant) Strength() float64 {
	mult := c.DamageMult
	if mult == 0 {
		mult = 1
	}
	avg := float64(c.AttackMin+c.AttackMax)/2 + float64(c.Weapon.Bonus())
	return avg*mult + float64(c.HP)/4 + float64(c.Level)
}

// ResetEncounterState clears combat-only state before an encounter begins.
func (c *Combatant) ResetEncounterState() {
	c.GuardBonus = 0
	c.Aimed = false
	c.TurnsTaken = 0
	if c.Effects == nil {
		c.Effects = condition.NewTracker()
	}
	if c.Special.Kind == SpecialAmbush {
		c.FirstStrikeAvailable = true
	}
	if c.State == Downed && c.HP > 0 {
		c.State = Alive
	}
}
