package combat

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/game/condition"
	"github.com/cory-johannsen/derelict/internal/game/dice"
)

// Rules holds the numeric balance constants of action resolution.
type Rules struct {
	BaseHitChance float64
	MinHitChance  float64
	MaxHitChance  float64
	AimBonus      float64

	CritChance     float64
	CritMultiplier float64

	BurstShots    int
	BurstBonusMin int
	BurstBonusMax int

	GuardBonus int

	AmmoConsumeChance float64
	// ShortfallMultiplier scales a shot's damage when the ammo pool is empty.
	ShortfallMultiplier float64

	XPMin int
	XPMax int

	RetreatBaseChance float64
	RetreatMinChance  float64
	RetreatMaxChance  float64

	// TurretDefense is the flat defense each turret adds to party mitigation in raids.
	TurretDefense    int
	AmbushMultiplier float64
	PackBonusPerAlly float64
	// LevelDamageStep is the number of levels per point of bonus damage.
	LevelDamageStep int
}

// DefaultRules returns the stock balance constants.
func DefaultRules() Rules {
	return Rules{
		BaseHitChance:       0.75,
		MinHitChance:        0.05,
		MaxHitChance:        0.95,
		AimBonus:            0.20,
		CritChance:          0.10,
		CritMultiplier:      1.5,
		BurstShots:          3,
		BurstBonusMin:       1,
		BurstBonusMax:       3,
		GuardBonus:          3,
		AmmoConsumeChance:   0.6,
		ShortfallMultiplier: 0.5,
		XPMin:               10,
		XPMax:               25,
		RetreatBaseChance:   0.5,
		RetreatMinChance:    0.05,
		RetreatMaxChance:    0.95,
		TurretDefense:       1,
		AmbushMultiplier:    1.5,
		PackBonusPerAlly:    0.10,
		LevelDamageStep:     3,
	}
}

// AmmoPool is the shared ammunition store drawn on by ranged party attacks.
type AmmoPool interface {
	AmmoRemaining() int
	// ConsumeAmmo removes up to n rounds and returns how many were removed.
	ConsumeAmmo(n int) int
}

// Env is the encounter context an action resolves in.
type Env struct {
	// Allies is the actor's side; it may include the actor.
	Allies []*Combatant
	// Bystanders is the target's side, used for splash.
	Bystanders []*Combatant
	// PartyDefense is a flat defense bonus applied to party targets.
	PartyDefense int
	// Ammo is nil when the actor does not draw from a shared pool.
	Ammo AmmoPool
}

// Strike is the result of one attack roll against one target.
type Strike struct {
	TargetID  string
	Hit       bool
	Crit      bool
	Phased    bool
	Shortfall bool
	// Raw is damage before mitigation; Taken is hit points actually removed.
	Raw     int
	Taken   int
	Applied []condition.EffectType
}

// Kill records one defeat. XP is zero unless a party member defeated a hostile.
type Kill struct {
	Killer *Combatant
	Victim *Combatant
	XP     int
}

// Outcome is everything one resolved action did.
type Outcome struct {
	Action          ActionType
	ActorID         string
	Strikes         []Strike
	Splash          []Strike
	Reflected       int
	AmmoSpent       int
	Killed          []*Combatant
	Kills           []Kill
	XP              int
	Healed          int
	ThreatReduction float64
	Log             []string
}

// Hits returns the number of strikes that landed.
func (o *Outcome) Hits() int {
	n := 0
	for _, s := range o.Strikes {
		if s.Hit && !s.Phased {
			n++
		}
	}
	return n
}

// DamageTo returns total hit points removed from targetID by primary and splash strikes.
func (o *Outcome) DamageTo(targetID string) int {
	total := 0
	for _, s := range o.Strikes {
		if s.TargetID == targetID {
			total += s.Taken
		}
	}
	for _, s := range o.Splash {
		if s.TargetID == targetID {
			total += s.Taken
		}
	}
	return total
}

// Shortfalls returns how many shots fired with an empty ammo pool.
func (o *Outcome) Shortfalls() int {
	n := 0
	for _, s := range o.Strikes {
		if s.Shortfall {
			n++
		}
	}
	return n
}

func (o *Outcome) logf(format string, args ...any) {
	o.Log = append(o.Log, fmt.Sprintf(format, args...))
}

// TurnStart is the result of start-of-turn resolution for one combatant.
type TurnStart struct {
	Damage  int
	Heal    int
	Stunned bool
	Died    bool
	Log     []string
}

// Resolver computes the outcome of single actions.
// It is not safe for concurrent use on the same combatants.
type Resolver struct {
	rules  Rules
	src    dice.Source
	logger *zap.Logger
}

// NewResolver creates a Resolver.
//
// Precondition: src must not be nil.
func NewResolver(rules Rules, src dice.Source, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{rules: rules, src: src, logger: logger}
}

// Rules returns the resolver's balance constants.
func (r *Resolver) Rules() Rules { return r.rules }

// StartTurn runs start-of-turn resolution for c: the guard bonus from its
// previous turn lapses, damage and heal over time tick, periodic self-heal
// specials fire, and a pending stun is consumed.
//
// Postcondition: when Stunned is true the caller must skip c's action.
func (r *Resolver) StartTurn(c *Combatant) TurnStart {
	var ts TurnStart
	c.GuardBonus = 0
	c.TurnsTaken++
	tick := c.Effects.StartTurn()
	if tick.Damage > 0 {
		ts.Damage = c.ApplyDamage(tick.Damage)
		ts.Log = append(ts.Log, fmt.Sprintf("%s suffers %d damage from lingering effects.", c.Name, ts.Damage))
		if !c.Alive() {
			ts.Died = true
			ts.Log = append(ts.Log, fmt.Sprintf("%s succumbs.", c.Name))
			return ts
		}
	}
	if tick.Heal > 0 {
		ts.Heal += c.Heal(tick.Heal)
	}
	if c.Special.Kind == SpecialSelfHeal && c.Special.Interval > 0 && c.TurnsTaken%c.Special.Interval == 0 {
		ts.Heal += c.Heal(int(math.Round(c.Special.Magnitude * float64(c.MaxHP))))
	}
	if ts.Heal > 0 {
		ts.Log = append(ts.Log, fmt.Sprintf("%s regenerates %d hp.", c.Name, ts.Heal))
	}
	for _, e := range tick.Expired {
		ts.Log = append(ts.Log, fmt.Sprintf("%s is no longer affected by %s.", c.Name, e.Type))
	}
	if c.Effects.ConsumeStun() {
		ts.Stunned = true
		ts.Log = append(ts.Log, fmt.Sprintf("%s is stunned and loses the turn.", c.Name))
	}
	return ts
}

// Attack resolves a standard attack. Species multi-attack specials and
// extra-attack abilities may add strikes against the same target.
//
// Precondition: actor must be alive.
func (r *Resolver) Attack(actor, target *Combatant, env Env) Outcome {
	out := Outcome{Action: ActionAttack, ActorID: actor.ID}
	if target == nil || !target.Alive() {
		out.logf("%s attacks but hits nothing.", actor.Name)
		return out
	}
	strikes := 1
	if actor.Special.Kind == SpecialMultiAttack && actor.Special.Count > 1 && dice.Chance(r.src, actor.Special.Chance) {
		strikes = actor.Special.Count
	}
	if t := abilityTotals(actor); t.ExtraAttackChance > 0 && dice.Chance(r.src, t.ExtraAttackChance) {
		strikes++
	}
	aimed := actor.Aimed
	actor.Aimed = false
	mult := r.damageMultiplier(actor, env)
	for i := 0; i < strikes && target.Alive() && actor.Alive(); i++ {
		r.strike(actor, target, env, aimed, mult, false, &out)
	}
	r.logger.Debug("attack resolved",
		zap.String("actor", actor.ID),
		zap.String("target", target.ID),
		zap.Int("strikes", strikes),
		zap.Int("hits", out.Hits()),
	)
	return out
}

// Burst resolves a multi-shot burst. Every shot rolls to hit, draws on the
// ammo pool, and adds the burst bonus range on a hit. An aimed flag covers
// every shot of the burst. Combatants without a ranged weapon make a single
// standard attack instead.
//
// Precondition: actor must be alive.
func (r *Resolver) Burst(actor, target *Combatant, env Env) Outcome {
	if !actor.Weapon.Ranged() {
		out := r.Attack(actor, target, env)
		out.Log = append([]string{fmt.Sprintf("%s has no ranged weapon to fire a burst.", actor.Name)}, out.Log...)
		return out
	}
	out := Outcome{Action: ActionBurst, ActorID: actor.ID}
	if target == nil || !target.Alive() {
		out.logf("%s fires a burst but hits nothing.", actor.Name)
		return out
	}
	aimed := actor.Aimed
	actor.Aimed = false
	mult := r.damageMultiplier(actor, env)
	for i := 0; i < r.rules.BurstShots && target.Alive() && actor.Alive(); i++ {
		r.strike(actor, target, env, aimed, mult, true, &out)
	}
	r.logger.Debug("burst resolved",
		zap.String("actor", actor.ID),
		zap.String("target", target.ID),
		zap.Int("hits", out.Hits()),
		zap.Int("ammo_spent", out.AmmoSpent),
	)
	return out
}

// Aim flags actor so its next attack or burst gains the aim bonus.
func (r *Resolver) Aim(actor *Combatant) Outcome {
	actor.Aimed = true
	out := Outcome{Action: ActionAim, ActorID: actor.ID}
	out.logf("%s takes careful aim.", actor.Name)
	return out
}

// Guard grants actor the guard defense bonus until its next turn.
func (r *Resolver) Guard(actor *Combatant) Outcome {
	actor.GuardBonus = r.rules.GuardBonus
	out := Outcome{Action: ActionGuard, ActorID: actor.ID}
	out.logf("%s takes a defensive stance (+%d defense).", actor.Name, actor.GuardBonus)
	return out
}

// UseConsumable interprets the descriptor of kind. Healing and self effects
// land on target when it is a living ally, otherwise on actor. Offensive
// consumables need a living opposing target. A missing item or target is a
// logged failure, not an error.
func (r *Resolver) UseConsumable(actor, target *Combatant, kind ConsumableKind) Outcome {
	out := Outcome{Action: ActionUseConsumable, ActorID: actor.ID}
	spec, ok := ConsumableFor(kind)
	if !ok {
		out.logf("%s fumbles with an unknown item.", actor.Name)
		return out
	}
	if !actor.HasConsumable(kind) {
		out.logf("%s reaches for a %s but has none.", actor.Name, spec.Name)
		return out
	}
	if spec.Offensive && (target == nil || !target.Alive() || target.Faction.Hostile() == actor.Faction.Hostile()) {
		out.logf("%s has no target for the %s.", actor.Name, spec.Name)
		return out
	}
	actor.takeConsumable(kind)

	recipient := actor
	if !spec.Offensive && target != nil && target.Alive() && target.Faction.Hostile() == actor.Faction.Hostile() {
		recipient = target
	}
	if spec.MaxHPBonus > 0 {
		recipient.MaxHP += spec.MaxHPBonus
		out.logf("%s gains %d maximum hp.", recipient.Name, spec.MaxHPBonus)
	}
	if spec.Heal > 0 {
		mult := abilityTotals(actor).HealingMult
		if actor.Stats.HealingMult > 0 {
			mult *= actor.Stats.HealingMult
		}
		out.Healed = recipient.Heal(int(math.Round(float64(spec.Heal) * mult)))
		out.logf("%s uses a %s on %s, restoring %d hp.", actor.Name, spec.Name, recipient.Name, out.Healed)
	} else {
		out.logf("%s uses a %s.", actor.Name, spec.Name)
	}
	for _, s := range spec.Self {
		recipient.Effects.Apply(s, spec.ID)
	}
	if spec.Offensive {
		for _, s := range spec.Target {
			target.Effects.Apply(s, spec.ID)
			out.logf("%s is hit by the %s (%s).", target.Name, spec.Name, s.Type)
		}
	}
	out.ThreatReduction = spec.ThreatReduction
	r.logger.Debug("consumable used",
		zap.String("actor", actor.ID),
		zap.String("consumable", spec.ID),
		zap.Int("healed", out.Healed),
	)
	return out
}

// RetreatChance returns the probability that actor's retreat succeeds.
//
// Postcondition: result is within [RetreatMinChance, RetreatMaxChance].
func (r *Resolver) RetreatChance(actor *Combatant) float64 {
	p := r.rules.RetreatBaseChance + abilityTotals(actor).RetreatBonus
	return clamp(p, r.rules.RetreatMinChance, r.rules.RetreatMaxChance)
}

// Retreat rolls a retreat attempt for actor.
func (r *Resolver) Retreat(actor *Combatant) (Outcome, bool) {
	out := Outcome{Action: ActionRetreat, ActorID: actor.ID}
	p := r.RetreatChance(actor)
	if dice.Chance(r.src, p) {
		out.logf("%s leads the party in a successful retreat.", actor.Name)
		return out, true
	}
	out.logf("%s tries to retreat but is cut off.", actor.Name)
	return out, false
}

// HitChance returns the clamped probability that actor hits target.
func (r *Resolver) HitChance(actor, target *Combatant, aimed bool) float64 {
	p := r.rules.BaseHitChance + actor.Accuracy + abilityTotals(actor).HitBonus
	if aimed {
		p += r.rules.AimBonus
	}
	p -= target.Evasion + target.Effects.Sum(condition.EffectDodge) + abilityTotals(target).Evasion
	return clamp(p, r.rules.MinHitChance, r.rules.MaxHitChance)
}

// EffectiveDefense returns target's mitigation against actor after guard,
// fortify, ability, and environment bonuses, reduced by armor pierce.
func (r *Resolver) EffectiveDefense(actor, target *Combatant, env Env) int {
	def := target.Defense + target.GuardBonus + abilityTotals(target).Defense +
		int(target.Effects.Sum(condition.EffectFortify))
	if target.Faction == FactionParty {
		def += env.PartyDefense
	}
	if def <= 0 {
		return 0
	}
	pierce := clamp(actor.ArmorPierce+actor.Effects.Sum(condition.EffectArmorPierce)+abilityTotals(actor).ArmorPierce, 0, 1)
	return int(float64(def) * (1 - pierce))
}

// damageMultiplier folds every multiplicative damage modifier of actor and
// consumes a pending first strike.
func (r *Resolver) damageMultiplier(actor *Combatant, env Env) float64 {
	m := actor.DamageMult
	if m == 0 {
		m = 1
	}
	m *= abilityTotals(actor).DamageMult
	m *= 1 + actor.Effects.Sum(condition.EffectFrenzy)

	rate := actor.Effects.Max(condition.EffectPack)
	if actor.Special.Kind == SpecialPack {
		special := actor.Special.Magnitude
		if special == 0 {
			special = r.rules.PackBonusPerAlly
		}
		rate = math.Max(rate, special)
	}
	if rate > 0 {
		m *= 1 + rate*float64(livingAllies(actor, env.Allies))
	}

	first := 1.0
	if e, ok := actor.Effects.ConsumeFirst(condition.EffectFirstStrike); ok {
		first = e.Magnitude
	}
	if actor.FirstStrikeAvailable {
		actor.FirstStrikeAvailable = false
		ambush := r.rules.AmbushMultiplier
		if actor.Special.Kind == SpecialAmbush && actor.Special.Magnitude > 0 {
			ambush = actor.Special.Magnitude
		}
		first = math.Max(first, ambush)
	}
	return m * first
}

// strike resolves one attack roll of actor against target into out.
func (r *Resolver) strike(actor, target *Combatant, env Env, aimed bool, mult float64, burst bool, out *Outcome) {
	s := Strike{TargetID: target.ID}

	if actor.UsesAmmo && actor.Weapon.Ranged() && env.Ammo != nil {
		if env.Ammo.AmmoRemaining() <= 0 {
			s.Shortfall = true
			out.logf("%s is out of ammunition; the shot is weakened.", actor.Name)
		} else {
			p := r.rules.AmmoConsumeChance * (1 - abilityTotals(actor).AmmoSaver)
			if dice.Chance(r.src, p) {
				out.AmmoSpent += env.Ammo.ConsumeAmmo(1)
			}
		}
	}

	if !dice.Chance(r.src, r.HitChance(actor, target, aimed)) {
		out.logf("%s misses %s.", actor.Name, target.Name)
		out.Strikes = append(out.Strikes, s)
		return
	}
	s.Hit = true

	phase := target.Effects.Max(condition.EffectPhase)
	if target.Special.Kind == SpecialPhase {
		phase = math.Max(phase, target.Special.Chance)
	}
	if phase > 0 && dice.Chance(r.src, phase) {
		s.Phased = true
		out.logf("%s phases out of the way of %s's attack.", target.Name, actor.Name)
		out.Strikes = append(out.Strikes, s)
		return
	}

	base := dice.Range(r.src, actor.AttackMin, actor.AttackMax) + actor.Weapon.Bonus()
	if r.rules.LevelDamageStep > 0 && actor.Level > 1 {
		base += (actor.Level - 1) / r.rules.LevelDamageStep
	}
	if burst {
		base += dice.Range(r.src, r.rules.BurstBonusMin, r.rules.BurstBonusMax)
	}
	dmg := float64(base) * mult
	if dice.Chance(r.src, r.rules.CritChance+abilityTotals(actor).CritBonus) {
		s.Crit = true
		dmg *= r.rules.CritMultiplier
	}
	if s.Shortfall {
		dmg *= r.rules.ShortfallMultiplier
	}
	s.Raw = int(math.Round(dmg))

	taken := s.Raw - r.EffectiveDefense(actor, target, env)
	if taken < 0 {
		taken = 0
	}
	s.Taken = target.ApplyDamage(taken)
	if s.Crit {
		out.logf("%s critically hits %s for %d damage.", actor.Name, target.Name, s.Taken)
	} else {
		out.logf("%s hits %s for %d damage.", actor.Name, target.Name, s.Taken)
	}

	if target.Alive() {
		for _, spec := range actor.OnHit {
			if spec.Chance == 0 || dice.Chance(r.src, spec.Chance) {
				target.Effects.Apply(spec, actor.ID)
				s.Applied = append(s.Applied, spec.Type)
				out.logf("%s is afflicted with %s.", target.Name, spec.Type)
			}
		}
	}
	out.Strikes = append(out.Strikes, s)

	if rf := target.Effects.Sum(condition.EffectReflect); rf > 0 && s.Taken > 0 {
		back := actor.ApplyDamage(int(math.Round(rf * float64(s.Taken))))
		if back > 0 {
			out.Reflected += back
			out.logf("%s reflects %d damage back at %s.", target.Name, back, actor.Name)
			if !actor.Alive() {
				r.recordKill(target, actor, out)
			}
		}
	}

	if frac := actor.SplashFraction + actor.Effects.Sum(condition.EffectSplash); frac > 0 && s.Raw > 0 {
		amount := int(math.Round(frac * float64(s.Raw)))
		for _, b := range env.Bystanders {
			if b == target || !b.Alive() {
				continue
			}
			sp := Strike{TargetID: b.ID, Hit: true, Raw: amount, Taken: b.ApplyDamage(amount)}
			out.Splash = append(out.Splash, sp)
			out.logf("Splash hits %s for %d damage.", b.Name, sp.Taken)
			if !b.Alive() {
				r.recordKill(actor, b, out)
			}
		}
	}

	if !target.Alive() {
		r.recordKill(actor, target, out)
	}
}

// recordKill logs the defeat of victim and awards experience when a party
// member defeats a hostile.
func (r *Resolver) recordKill(killer, victim *Combatant, out *Outcome) {
	out.Killed = append(out.Killed, victim)
	k := Kill{Killer: killer, Victim: victim}
	if victim.State == Downed {
		out.logf("%s is downed.", victim.Name)
	} else {
		out.logf("%s is killed.", victim.Name)
	}
	if killer.Faction == FactionParty && victim.Faction.Hostile() && killer.Alive() {
		xp := dice.Range(r.src, r.rules.XPMin, r.rules.XPMax)
		killer.Experience += xp
		out.XP += xp
		k.XP = xp
		out.logf("%s gains %d experience.", killer.Name, xp)
	}
	out.Kills = append(out.Kills, k)
}

func livingAllies(actor *Combatant, allies []*Combatant) int {
	n := 0
	for _, a := range allies {
		if a != actor && a.Alive() {
			n++
		}
	}
	return n
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
