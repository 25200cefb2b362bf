package npc

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/condition"
	"github.com/cory-johannsen/derelict/internal/game/dice"
	"github.com/cory-johannsen/derelict/internal/game/threat"
)

var (
	// ErrUnknownSpecies is returned when a species id is not in the catalog.
	ErrUnknownSpecies = errors.New("unknown species")
	// ErrUnknownClass is returned when a class id is not in the catalog.
	ErrUnknownClass = errors.New("unknown class")
)

// Rarity unlock thresholds: tiers above common are only reachable once threat
// reaches these values.
const (
	UnlockUncommon = 15.0
	UnlockRare     = 35.0
	UnlockVeryRare = 60.0

	// MaxLevel bounds generated hostile-human levels.
	MaxLevel = 12
	// threatPerLevel is the threat needed for each level above 1.
	threatPerLevel = 9.0
)

// rarityBands are the hostile-human rarity weights (common to very rare, in
// percent) for threat below 25, 50, 75, and at or above 75.
var rarityBands = [4][4]int{
	{70, 22, 7, 1},
	{50, 30, 15, 5},
	{30, 35, 25, 10},
	{15, 30, 30, 25},
}

// RarityUnlocked reports whether rarity r may be generated at threat.
func RarityUnlocked(r combat.Rarity, threatValue float64) bool {
	switch r {
	case combat.RarityCommon:
		return true
	case combat.RarityUncommon:
		return threatValue >= UnlockUncommon
	case combat.RarityRare:
		return threatValue >= UnlockRare
	default:
		return threatValue >= UnlockVeryRare
	}
}

// RarityWeights returns the hostile-human rarity band for threat.
func RarityWeights(threatValue float64) [4]int {
	switch {
	case threatValue < 25:
		return rarityBands[0]
	case threatValue < 50:
		return rarityBands[1]
	case threatValue < 75:
		return rarityBands[2]
	default:
		return rarityBands[3]
	}
}

// LevelForThreat returns clamp(1 + threat/9, 1, MaxLevel).
func LevelForThreat(threatValue float64) int {
	lvl := 1 + int(threatValue/threatPerLevel)
	if lvl < 1 {
		return 1
	}
	if lvl > MaxLevel {
		return MaxLevel
	}
	return lvl
}

// ConsumableChances returns the presence probability of each consumable a
// hostile human may carry at threat. Each rises linearly toward a cap.
func ConsumableChances(threatValue float64) map[combat.ConsumableKind]float64 {
	return map[combat.ConsumableKind]float64{
		combat.MedkitBasic: math.Min(0.15+0.004*threatValue, 0.55),
		combat.Stimpack:    math.Min(0.10+0.003*threatValue, 0.40),
		combat.StunGrenade: math.Min(0.05+0.003*threatValue, 0.35),
		combat.CombatDrug:  math.Min(0.03+0.0025*threatValue, 0.30),
	}
}

// Factory generates hostile combatants. Every random decision, including
// combatant ids, is drawn from the injected source, so a fixed seed yields
// identical output.
type Factory struct {
	catalog *Catalog
	src     dice.Source
	params  threat.Params
	logger  *zap.Logger
}

// NewFactory creates a Factory.
//
// Precondition: catalog and src must not be nil.
func NewFactory(catalog *Catalog, src dice.Source, params threat.Params, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{catalog: catalog, src: src, params: params, logger: logger}
}

// Catalog returns the factory's template catalog.
func (f *Factory) Catalog() *Catalog { return f.catalog }

// GenerateAlien builds one alien of speciesID scaled to threat and escalation.
//
// Precondition: threatValue in [0, 100]; escalation >= 0.
// Postcondition: Returns (nil, ErrUnknownSpecies) for an unknown id; otherwise a
// living combatant at full health.
func (f *Factory) GenerateAlien(speciesID string, threatValue float64, escalation int) (*combat.Combatant, error) {
	sp, ok := f.catalog.Species[speciesID]
	if !ok {
		return nil, fmt.Errorf("generating alien %q: %w", speciesID, ErrUnknownSpecies)
	}

	hp := float64(dice.Range(f.src, sp.HP.Min, sp.HP.Max))
	atk := float64(dice.Range(f.src, sp.Attack.Min, sp.Attack.Max))
	armor := sp.Armor
	evasion := sp.Evasion
	rarity := sp.Rarity
	var names []string
	var effects, onHit []condition.Spec
	onHit = append(onHit, sp.OnHit...)

	for _, m := range sp.Modifiers {
		if !RarityUnlocked(m.Rarity, threatValue) {
			continue
		}
		if !dice.Chance(f.src, m.Chance) {
			continue
		}
		if m.HPMult > 0 {
			hp *= m.HPMult
		}
		if m.AttackMult > 0 {
			atk *= m.AttackMult
		}
		armor += m.Armor
		evasion += m.Evasion
		effects = append(effects, m.Effects...)
		onHit = append(onHit, m.OnHit...)
		if m.Rarity > rarity {
			rarity = m.Rarity
		}
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}

	mult := threat.MultipliersFor(f.params, escalation)
	hp *= mult.HP
	atk *= mult.Attack
	armor += mult.ArmorBonus
	special := sp.Special
	special.Chance = math.Min(special.Chance*mult.AbilityChance, 1)

	maxHP := int(math.Round(hp))
	if maxHP < 1 {
		maxHP = 1
	}
	rating := int(math.Round(atk))
	name := strings.TrimSpace(strings.Join(append(names, sp.Name), " "))

	c := combat.NewCombatant(f.newID(), name, combat.FactionAlien, maxHP)
	c.Species = sp.ID
	c.Level = LevelForThreat(threatValue)
	c.Rarity = rarity
	c.AttackMin = max(1, rating-sp.Variance)
	c.AttackMax = max(c.AttackMin, rating+sp.Variance)
	c.Weapon = sp.Weapon
	c.Defense = armor
	c.Evasion = math.Min(evasion, 0.9)
	c.Stealth = sp.Stealth
	c.Behavior = sp.Behavior
	c.Special = special
	c.OnHit = onHit
	for _, e := range effects {
		c.Effects.Apply(e, sp.ID)
	}
	c.FirstStrikeAvailable = special.Kind == combat.SpecialAmbush

	f.logger.Debug("alien generated",
		zap.String("species", sp.ID),
		zap.String("id", c.ID),
		zap.Float64("threat", threatValue),
		zap.Int("escalation", escalation),
		zap.Stringer("rarity", c.Rarity),
	)
	return c, nil
}

// GenerateHostileHuman builds a hostile human of a uniformly chosen class.
//
// Precondition: the catalog holds at least one class.
func (f *Factory) GenerateHostileHuman(threatValue float64, escalation int) (*combat.Combatant, error) {
	if len(f.catalog.ClassOrder) == 0 {
		return nil, fmt.Errorf("generating hostile human: %w", ErrUnknownClass)
	}
	rarity := f.rollRarity(threatValue)
	classID := f.catalog.ClassOrder[f.src.Intn(len(f.catalog.ClassOrder))]
	return f.buildHuman(classID, rarity, threatValue, escalation)
}

// GenerateHostileHumanOfClass builds a hostile human of a specific class.
func (f *Factory) GenerateHostileHumanOfClass(classID string, threatValue float64, escalation int) (*combat.Combatant, error) {
	if _, ok := f.catalog.Classes[classID]; !ok {
		return nil, fmt.Errorf("generating hostile human %q: %w", classID, ErrUnknownClass)
	}
	return f.buildHuman(classID, f.rollRarity(threatValue), threatValue, escalation)
}

// GenerateSurvivor builds a level-1 party member of classID with common gear.
func (f *Factory) GenerateSurvivor(name, classID string) (*combat.Combatant, error) {
	cl, ok := f.catalog.Classes[classID]
	if !ok {
		return nil, fmt.Errorf("generating survivor %q: %w", classID, ErrUnknownClass)
	}
	stats := f.rollStats(cl)
	weapon, armor := f.rollEquipment(combat.RarityCommon)
	c := combat.NewCombatant(f.newID(), name, combat.FactionParty, cl.BaseHP+stats.BonusHP)
	c.Class = cl.ID
	f.equip(c, cl, stats, weapon, armor)
	c.UsesAmmo = c.Weapon.Ranged()
	c.Behavior = combat.BehaviorAggressive
	return c, nil
}

// GenerateRaid builds size hostiles for a base raid: roughly 60% aliens of
// unlocked species and 40% hostile humans.
func (f *Factory) GenerateRaid(size int, threatValue float64, escalation int) ([]*combat.Combatant, error) {
	out := make([]*combat.Combatant, 0, size)
	for i := 0; i < size; i++ {
		var (
			c   *combat.Combatant
			err error
		)
		if dice.Chance(f.src, 0.6) {
			c, err = f.GenerateAlien(f.RandomSpecies(threatValue), threatValue, escalation)
		} else {
			c, err = f.GenerateHostileHuman(threatValue, escalation)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// GenerateSwarm builds the offspring of a dying parent with a swarm special.
// It returns nothing when the parent has no swarm special or the roll fails.
func (f *Factory) GenerateSwarm(parent *combat.Combatant, threatValue float64, escalation int) ([]*combat.Combatant, error) {
	sp := parent.Special
	if sp.Kind != combat.SpecialSwarm || sp.Count <= 0 {
		return nil, nil
	}
	if !dice.Chance(f.src, sp.Chance) {
		return nil, nil
	}
	out := make([]*combat.Combatant, 0, sp.Count)
	for i := 0; i < sp.Count; i++ {
		c, err := f.GenerateAlien(sp.SpawnSpecies, threatValue, escalation)
		if err != nil {
			return nil, err
		}
		// Offspring never swarm again.
		if c.Special.Kind == combat.SpecialSwarm {
			c.Special = combat.Special{}
		}
		out = append(out, c)
	}
	return out, nil
}

// RandomSpecies picks a species uniformly among those whose rarity is
// unlocked at threat, falling back to the first species id.
func (f *Factory) RandomSpecies(threatValue float64) string {
	var pool []string
	for _, id := range f.catalog.SpeciesOrder {
		if RarityUnlocked(f.catalog.Species[id].Rarity, threatValue) {
			pool = append(pool, id)
		}
	}
	if len(pool) == 0 {
		return f.catalog.SpeciesOrder[0]
	}
	return pool[f.src.Intn(len(pool))]
}

func (f *Factory) buildHuman(classID string, rarity combat.Rarity, threatValue float64, escalation int) (*combat.Combatant, error) {
	cl := f.catalog.Classes[classID]
	level := LevelForThreat(threatValue)
	stats := f.rollStats(cl)
	abilities := f.sampleAbilities(cl.Abilities, int(rarity))
	weapon, armor := f.rollEquipment(rarity)

	mult := threat.MultipliersFor(f.params, escalation)
	hp := float64(cl.BaseHP+stats.BonusHP+(level-1)*3) * mult.HP

	c := combat.NewCombatant(f.newID(), fmt.Sprintf("Hostile %s", cl.Name), combat.FactionHostileHuman, int(math.Round(hp)))
	c.Class = cl.ID
	c.Level = level
	c.Rarity = rarity
	c.Abilities = abilities
	f.equip(c, cl, stats, weapon, armor)
	c.AttackMin = int(math.Round(float64(c.AttackMin) * mult.Attack))
	c.AttackMax = max(c.AttackMin, int(math.Round(float64(c.AttackMax)*mult.Attack)))
	c.Defense += mult.ArmorBonus

	chances := ConsumableChances(threatValue)
	for _, k := range []combat.ConsumableKind{combat.MedkitBasic, combat.Stimpack, combat.StunGrenade, combat.CombatDrug} {
		if dice.Chance(f.src, chances[k]) {
			if k == combat.MedkitBasic {
				k = combat.MedkitForThreat(threatValue)
			}
			c.AddConsumable(k, 1)
		}
	}

	f.logger.Debug("hostile human generated",
		zap.String("class", cl.ID),
		zap.String("id", c.ID),
		zap.Int("level", level),
		zap.Stringer("rarity", rarity),
		zap.Int("abilities", len(abilities)),
	)
	return c, nil
}

// equip applies class stats and equipment to c.
func (f *Factory) equip(c *combat.Combatant, cl *Class, stats combat.ClassStats, weapon *Weapon, armor *Armor) {
	c.Stats = stats
	c.Behavior = cl.Behavior
	c.AttackMin = cl.Damage.Min
	c.AttackMax = cl.Damage.Max
	c.DamageMult = stats.CombatMult
	c.Defense = stats.Defense
	if weapon != nil {
		c.WeaponName = weapon.Name
		c.Weapon = weapon.Category
		c.AttackMin += weapon.Damage.Min
		c.AttackMax += weapon.Damage.Max
		c.Accuracy = weapon.Accuracy
		c.ArmorPierce = weapon.ArmorPierce
		c.SplashFraction = weapon.Splash
		c.OnHit = append(c.OnHit, weapon.OnHit...)
	}
	if armor != nil {
		c.Defense += armor.Defense
		c.Evasion += armor.Evasion
		for _, e := range armor.Effects {
			c.Effects.Apply(e, armor.ID)
		}
	}
}

// rollRarity samples the threat-banded rarity table.
func (f *Factory) rollRarity(threatValue float64) combat.Rarity {
	weights := RarityWeights(threatValue)
	total := 0
	for _, w := range weights {
		total += w
	}
	roll := f.src.Intn(total)
	for i, w := range weights {
		if roll < w {
			return combat.Rarity(i)
		}
		roll -= w
	}
	return combat.RarityCommon
}

func (f *Factory) rollStats(cl *Class) combat.ClassStats {
	b := cl.Bonuses
	return combat.ClassStats{
		CombatMult:     floatOr1(dice.FloatRange(f.src, b.Combat.Min, b.Combat.Max)),
		BonusHP:        dice.Range(f.src, b.HP.Min, b.HP.Max),
		Defense:        dice.Range(f.src, b.Defense.Min, b.Defense.Max),
		HealingMult:    floatOr1(dice.FloatRange(f.src, b.Healing.Min, b.Healing.Max)),
		ProductionMult: floatOr1(dice.FloatRange(f.src, b.Production.Min, b.Production.Max)),
		CraftingMult:   floatOr1(dice.FloatRange(f.src, b.Crafting.Min, b.Crafting.Max)),
	}
}

// sampleAbilities draws n abilities from pool without replacement.
func (f *Factory) sampleAbilities(pool []combat.Ability, n int) []combat.Ability {
	if n <= 0 {
		return nil
	}
	cp := append([]combat.Ability(nil), pool...)
	if n > len(cp) {
		n = len(cp)
	}
	for i := 0; i < n; i++ {
		j := i + f.src.Intn(len(cp)-i)
		cp[i], cp[j] = cp[j], cp[i]
	}
	return cp[:n]
}

// rollEquipment picks one weapon and one armor from the pool of rarity,
// stepping down to the next lower tier when a pool is missing.
func (f *Factory) rollEquipment(rarity combat.Rarity) (*Weapon, *Armor) {
	for r := rarity; r >= combat.RarityCommon; r-- {
		tier, ok := f.catalog.Equipment[r]
		if !ok {
			continue
		}
		w := &tier.Weapons[f.src.Intn(len(tier.Weapons))]
		a := &tier.Armor[f.src.Intn(len(tier.Armor))]
		return w, a
	}
	return nil, nil
}

// newID derives a UUID from the random source so ids are reproducible.
func (f *Factory) newID() string {
	id, err := uuid.NewRandomFromReader(sourceReader{f.src})
	if err != nil {
		// sourceReader never fails.
		panic(err)
	}
	return id.String()
}

type sourceReader struct{ src dice.Source }

func (r sourceReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.src.Intn(256))
	}
	return len(p), nil
}

func floatOr1(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
