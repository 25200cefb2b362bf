package encounter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/derelict/internal/game/ai"
	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/dice"
)

// Params are the encounter-level balance constants.
type Params struct {
	// LogLimit bounds each encounter log.
	LogLimit int
	// NoDefenderThreat is added to threat when a field location is entered
	// with no explorer to fight.
	NoDefenderThreat float64
	// NoDefenderSeedChance is the probability that the location's hostiles
	// settle there permanently in the no-defender case.
	NoDefenderSeedChance float64
	// RaidLossDamage is the structural damage dealt when guards lose a raid.
	RaidLossDamage int
}

// DefaultParams returns the stock encounter constants.
func DefaultParams() Params {
	return Params{
		LogLimit:             DefaultLogLimit,
		NoDefenderThreat:     5,
		NoDefenderSeedChance: 0.5,
		RaidLossDamage:       25,
	}
}

// Controller runs encounters one at a time.
//
// It holds the only "encounter in progress" guard: Begin is rejected while a
// previous encounter is unresolved. The encounter advances only through
// Submit; the enemy phase runs synchronously inside the Submit call that ends
// the party's round. All methods are safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	active   *Encounter
	resolver *combat.Resolver
	policy   *ai.Policy
	src      dice.Source
	params   Params
	collab   Collaborators
	logger   *zap.Logger
	now      func() time.Time
}

// NewController constructs a Controller. Nil collaborators are replaced with
// no-ops and a nil logger with a no-op logger.
//
// Precondition: resolver, policy, and src must not be nil.
// Postcondition: Returns a non-nil Controller with no active encounter.
func NewController(resolver *combat.Resolver, policy *ai.Policy, src dice.Source, params Params, collab Collaborators, logger *zap.Logger) *Controller {
	if resolver == nil || policy == nil || src == nil {
		panic("encounter.NewController: resolver, policy, and src must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		resolver: resolver,
		policy:   policy,
		src:      src,
		params:   params,
		collab:   collab.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

// InProgress reports whether an unresolved encounter holds the guard.
func (c *Controller) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && !c.active.resolved()
}

// Active returns the encounter currently holding the guard, or nil.
func (c *Controller) Active() *Encounter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// BeginField starts a field encounter for explorer at locationID. A nil
// explorer does not start combat: threat is raised, the hostiles may settle
// at the location, and ErrNoExplorer is returned.
func (c *Controller) BeginField(locationID string, explorer *combat.Combatant, hostiles []*combat.Combatant) (*Encounter, error) {
	req := Request{Context: ContextField, LocationID: locationID, Hostiles: hostiles}
	if explorer != nil {
		req.Party = []*combat.Combatant{explorer}
	}
	return c.Begin(req)
}

// BeginRaid starts a raid against the guards on duty. An empty guard roster
// resolves immediately as a base overrun loss.
func (c *Controller) BeginRaid(guards, hostiles []*combat.Combatant, turrets int, ammo combat.AmmoPool) (*Encounter, error) {
	return c.Begin(Request{Context: ContextRaid, Party: guards, Hostiles: hostiles, Turrets: turrets, Ammo: ammo})
}

// BeginMission starts a mission encounter triggered by tag. The narrative is
// called back exactly once when the encounter resolves.
func (c *Controller) BeginMission(tag string, party, hostiles []*combat.Combatant, narrative Narrative) (*Encounter, error) {
	return c.Begin(Request{Context: ContextMission, Party: party, Hostiles: hostiles, MissionTag: tag, Narrative: narrative})
}

// Begin validates req and starts an encounter, running start-of-turn
// resolution up to the first party member able to act.
//
// Precondition: no other encounter is in progress on this Controller.
// Postcondition: on success the returned encounter is either awaiting a party
// action or already resolved (empty raid, no living hostiles, or every party
// member lost to start-of-turn effects).
func (c *Controller) Begin(req Request) (*Encounter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && !c.active.resolved() {
		return nil, ErrEncounterInProgress
	}

	party := compact(req.Party)
	switch req.Context {
	case ContextField:
		if len(party) == 0 {
			c.noDefenderLocked(req)
			return nil, ErrNoExplorer
		}
		if len(party) > 1 {
			return nil, fmt.Errorf("field encounter needs exactly one explorer, got %d", len(party))
		}
	case ContextMission:
		if len(party) == 0 {
			return nil, ErrEmptyParty
		}
	case ContextRaid:
	default:
		return nil, fmt.Errorf("unknown encounter context %d", req.Context)
	}

	narrative := req.Narrative
	if narrative == nil {
		narrative = nop{}
	}
	ammo := req.Ammo
	if ammo == nil {
		ammo = c.collab.Armory
	}
	enc := &Encounter{
		id:        uuid.NewString(),
		context:   req.Context,
		party:     party,
		hostiles:  compact(req.Hostiles),
		location:  req.LocationID,
		tag:       req.MissionTag,
		turrets:   req.Turrets,
		ammo:      ammo,
		narrative: narrative,
		round:     1,
		cursor:    -1,
		phase:     PhasePartyTurn,
		log:       NewLog(c.params.LogLimit),
		startedAt: c.now(),
	}
	c.active = enc
	c.logger.Info("encounter begun",
		zap.String("encounter_id", enc.id),
		zap.Stringer("context", enc.context),
		zap.Int("party", len(enc.party)),
		zap.Int("hostiles", len(enc.hostiles)),
	)

	if enc.context == ContextRaid && len(enc.party) == 0 {
		enc.baseOverrun = true
		enc.log.Add("No guards stand between the hostiles and the base.")
		c.resolveLocked(enc, ResultLoss)
		return enc, nil
	}

	for _, m := range enc.party {
		m.ResetEncounterState()
	}
	for _, h := range enc.hostiles {
		h.ResetEncounterState()
	}
	enc.log.Addf("%s encounter begins: %d against %d.", capitalize(enc.context.String()), len(enc.party), len(enc.hostiles))
	if enc.turrets > 0 {
		enc.log.Addf("%d turrets cover the defenders (+%d defense).", enc.turrets, c.partyDefense(enc))
	}
	if c.checkTerminalLocked(enc) {
		return enc, nil
	}
	enc.log.Add("-- Round 1 --")
	c.advanceLocked(enc)
	return enc, nil
}

// Submit applies one party action for the active member and advances the
// state machine, running the enemy phase when the round's party turns are
// exhausted.
//
// An action naming a missing or dead target is a logged no-op that still
// consumes the turn. A failed retreat consumes the turn.
//
// Precondition: enc was returned by this Controller's Begin.
// Postcondition: returns ErrEncounterResolved, ErrNotPartyTurn,
// ErrNotYourTurn, ErrRetreatUnavailable, or ErrUnknownAction without
// changing state; otherwise nil.
func (c *Controller) Submit(enc *Encounter, a combat.Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc.resolved() {
		return ErrEncounterResolved
	}
	actor := enc.active()
	if actor == nil {
		return ErrNotPartyTurn
	}
	if a.ActorID != "" && a.ActorID != actor.ID {
		return fmt.Errorf("%w: expected %s, got %s", ErrNotYourTurn, actor.ID, a.ActorID)
	}
	switch a.Type {
	case combat.ActionAttack, combat.ActionBurst, combat.ActionAim, combat.ActionGuard, combat.ActionUseConsumable:
	case combat.ActionRetreat:
		if enc.context == ContextRaid {
			return ErrRetreatUnavailable
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, a.Type)
	}

	if c.executeLocked(enc, actor, a) {
		c.resolveLocked(enc, ResultRetreat)
		return nil
	}
	if c.checkTerminalLocked(enc) {
		return nil
	}
	c.advanceLocked(enc)
	return nil
}

// Snapshot returns a copy of enc's observable state.
func (c *Controller) Snapshot(enc *Encounter) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		ID:          enc.id,
		Context:     enc.context,
		Phase:       enc.phase,
		Result:      enc.result,
		Round:       enc.round,
		BaseOverrun: enc.baseOverrun,
		Log:         enc.log.Lines(),
	}
	if a := enc.active(); a != nil {
		st.ActiveID = a.ID
	}
	for _, m := range enc.party {
		st.Party = append(st.Party, memberOf(m))
	}
	for _, h := range enc.hostiles {
		st.Hostiles = append(st.Hostiles, memberOf(h))
	}
	return st
}

// Survivors returns the living hostiles of enc.
func (c *Controller) Survivors(enc *Encounter) []*combat.Combatant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return living(enc.hostiles)
}

// Combatants returns copies of enc's party and hostile slices. The combatants
// themselves are shared and must not be mutated outside Submit.
func (c *Controller) Combatants(enc *Encounter) (party, hostiles []*combat.Combatant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	party = append([]*combat.Combatant(nil), enc.party...)
	hostiles = append([]*combat.Combatant(nil), enc.hostiles...)
	return party, hostiles
}

// End archives a resolved encounter and releases the in-progress guard.
// Ending an encounter twice is a no-op.
//
// Postcondition: returns ErrEncounterPending if enc has not resolved; a
// wrapped archive error leaves the guard released.
func (c *Controller) End(ctx context.Context, enc *Encounter) error {
	c.mu.Lock()
	if !enc.resolved() {
		c.mu.Unlock()
		return ErrEncounterPending
	}
	if c.active == enc {
		c.active = nil
	}
	if enc.ended {
		c.mu.Unlock()
		return nil
	}
	enc.ended = true
	rec := enc.record()
	c.mu.Unlock()

	if err := c.collab.Archiver.Archive(ctx, rec); err != nil {
		return fmt.Errorf("archiving encounter %s: %w", enc.id, err)
	}
	return nil
}

func (e *Encounter) record() Record {
	return Record{
		ID:          e.id,
		Context:     e.context,
		Result:      e.result,
		Rounds:      e.round,
		BaseOverrun: e.baseOverrun,
		LocationID:  e.location,
		MissionTag:  e.tag,
		PartyIDs:    ids(e.party),
		HostileIDs:  ids(e.hostiles),
		Defeated:    e.defeated,
		XP:          e.xp,
		StartedAt:   e.startedAt,
		ResolvedAt:  e.resolvedAt,
		Log:         e.log.Lines(),
	}
}

// advanceLocked moves the cursor to the next party member able to act,
// running start-of-turn effects on arrival and the enemy phase at the end of
// each round.
func (c *Controller) advanceLocked(enc *Encounter) {
	for !enc.resolved() {
		next := -1
		for i := enc.cursor + 1; i < len(enc.party); i++ {
			if enc.party[i].Alive() {
				next = i
				break
			}
		}
		if next < 0 {
			c.enemyPhaseLocked(enc)
			if enc.resolved() {
				return
			}
			enc.cursor = -1
			continue
		}
		enc.cursor = next
		m := enc.party[next]
		ts := c.resolver.StartTurn(m)
		enc.log.Add(ts.Log...)
		if ts.Died {
			if c.checkTerminalLocked(enc) {
				return
			}
			continue
		}
		if ts.Stunned {
			continue
		}
		c.logger.Debug("awaiting party action",
			zap.String("encounter_id", enc.id),
			zap.Int("round", enc.round),
			zap.String("member", m.ID),
		)
		return
	}
}

// enemyPhaseLocked lets every hostile living at the start of the phase act
// once in roster order, then resets party guard and opens the next round.
// Hostiles spawned during the phase first act next round.
func (c *Controller) enemyPhaseLocked(enc *Encounter) {
	enc.phase = PhaseEnemyTurn
	enc.cursor = -1
	n := len(enc.hostiles)
	for i := 0; i < n; i++ {
		h := enc.hostiles[i]
		if !h.Alive() {
			continue
		}
		ts := c.resolver.StartTurn(h)
		enc.log.Add(ts.Log...)
		if ts.Died {
			c.hostileDownLocked(enc, combat.Kill{Victim: h})
			if c.checkTerminalLocked(enc) {
				return
			}
			continue
		}
		if ts.Stunned {
			continue
		}
		a := c.policy.Decide(h, enc.hostiles, enc.party)
		c.executeLocked(enc, h, a)
		if c.checkTerminalLocked(enc) {
			return
		}
	}
	for _, m := range enc.party {
		m.GuardBonus = 0
	}
	enc.round++
	enc.phase = PhasePartyTurn
	enc.log.Addf("-- Round %d --", enc.round)
}

// executeLocked resolves a for actor and applies its side effects. It
// reports whether a retreat succeeded.
func (c *Controller) executeLocked(enc *Encounter, actor *combat.Combatant, a combat.Action) bool {
	own, opposing := enc.sides(actor)
	var target *combat.Combatant
	if a.TargetID != "" {
		target = enc.find(a.TargetID)
	}
	env := combat.Env{Allies: own, Bystanders: opposing, Ammo: enc.ammo}
	if enc.context == ContextRaid {
		env.PartyDefense = c.partyDefense(enc)
	}

	var out combat.Outcome
	retreated := false
	switch a.Type {
	case combat.ActionAttack, combat.ActionBurst:
		if target == nil || !target.Alive() || target.Faction.Hostile() == actor.Faction.Hostile() {
			enc.log.Addf("%s finds no valid target and loses the moment.", actor.Name)
			c.logger.Debug("invalid target",
				zap.String("encounter_id", enc.id),
				zap.String("actor", actor.ID),
				zap.String("target", a.TargetID),
			)
			return false
		}
		if a.Type == combat.ActionBurst {
			out = c.resolver.Burst(actor, target, env)
		} else {
			out = c.resolver.Attack(actor, target, env)
		}
	case combat.ActionAim:
		out = c.resolver.Aim(actor)
	case combat.ActionGuard:
		out = c.resolver.Guard(actor)
	case combat.ActionUseConsumable:
		out = c.resolver.UseConsumable(actor, target, a.Consumable)
		if out.ThreatReduction > 0 {
			c.collab.Threat.ReduceThreat(out.ThreatReduction)
		}
	case combat.ActionRetreat:
		if actor.Faction.Hostile() || enc.context == ContextRaid {
			enc.log.Addf("%s holds position.", actor.Name)
			return false
		}
		out, retreated = c.resolver.Retreat(actor)
	default:
		enc.log.Addf("%s hesitates.", actor.Name)
		return false
	}
	enc.log.Add(out.Log...)
	for _, k := range out.Kills {
		if k.Victim.Faction.Hostile() {
			c.hostileDownLocked(enc, k)
		}
	}
	c.logger.Debug("action resolved",
		zap.String("encounter_id", enc.id),
		zap.Int("round", enc.round),
		zap.String("actor", actor.ID),
		zap.Stringer("action", a.Type),
		zap.Int("hits", out.Hits()),
		zap.Int("kills", len(out.Kills)),
	)
	return retreated
}

// hostileDownLocked dispatches the reward for a defeated hostile and rolls
// its swarm spawn. Field offspring scatter and settle on the location once
// the encounter resolves; raid and mission offspring join the encounter.
func (c *Controller) hostileDownLocked(enc *Encounter, k combat.Kill) {
	enc.defeated++
	enc.xp += k.XP
	killerID := ""
	if k.Killer != nil {
		killerID = k.Killer.ID
	}
	c.collab.Rewards.HostileDefeated(enc.id, killerID, k.Victim.ID, k.XP)

	if k.Victim.Special.Kind != combat.SpecialSwarm {
		return
	}
	spawned := compact(c.collab.Spawner.Spawn(k.Victim))
	if len(spawned) == 0 {
		return
	}
	if enc.context == ContextField {
		enc.scattered = append(enc.scattered, spawned...)
		enc.log.Addf("%d %s scatter into the dark.", len(spawned), plural(spawned[0].Name, len(spawned)))
		return
	}
	for _, s := range spawned {
		s.ResetEncounterState()
	}
	enc.hostiles = append(enc.hostiles, spawned...)
	enc.log.Addf("%d %s burst from the remains of %s.", len(spawned), plural(spawned[0].Name, len(spawned)), k.Victim.Name)
}

// checkTerminalLocked resolves enc when one side has no living members.
// A wiped hostile side takes precedence.
func (c *Controller) checkTerminalLocked(enc *Encounter) bool {
	if enc.resolved() {
		return true
	}
	switch {
	case !anyAlive(enc.hostiles):
		c.resolveLocked(enc, ResultWin)
	case !anyAlive(enc.party):
		c.resolveLocked(enc, ResultLoss)
	default:
		return false
	}
	return true
}

// resolveLocked ends enc with result and reports to the collaborators the
// encounter context calls for.
func (c *Controller) resolveLocked(enc *Encounter, result Result) {
	enc.phase = PhaseResolved
	enc.result = result
	enc.cursor = -1
	enc.resolvedAt = c.now()

	switch result {
	case ResultWin:
		enc.log.Add("The hostiles are defeated.")
		c.collab.Rewards.EncounterWon(enc.id, ids(enc.party), enc.xp)
	case ResultLoss:
		if enc.baseOverrun {
			enc.log.Add("The base is overrun.")
		} else {
			enc.log.Add("The party has fallen.")
		}
	case ResultRetreat:
		enc.log.Add("The party escapes.")
	}

	switch enc.context {
	case ContextField:
		c.resolveFieldLocked(enc, result)
	case ContextRaid:
		c.resolveRaidLocked(enc, result)
	case ContextMission:
		c.resolveMissionLocked(enc, result)
	}

	c.logger.Info("encounter resolved",
		zap.String("encounter_id", enc.id),
		zap.Stringer("context", enc.context),
		zap.Int("round", enc.round),
		zap.Stringer("outcome", result),
		zap.Bool("base_overrun", enc.baseOverrun),
	)
}

// resolveFieldLocked applies the disposition for the encounter's own
// hostiles, then settles any scattered offspring so the disposition cannot
// remove them.
func (c *Controller) resolveFieldLocked(enc *Encounter, result Result) {
	survivors := living(enc.hostiles)
	switch result {
	case ResultWin:
		c.collab.Locations.ResolveLocation(enc.location, DispositionClear, nil)
	case ResultLoss:
		for _, m := range enc.party {
			c.collab.Roster.RemoveFromRoster(m.ID)
		}
		c.collab.Locations.ResolveLocation(enc.location, DispositionReseed, survivors)
	case ResultRetreat:
		c.collab.Locations.ResolveLocation(enc.location, DispositionLeave, survivors)
	}
	if scattered := living(enc.scattered); len(scattered) > 0 {
		c.collab.Locations.SeedLocation(enc.location, scattered)
	}
}

func (c *Controller) resolveRaidLocked(enc *Encounter, result Result) {
	switch {
	case enc.baseOverrun:
		c.collab.Base.Overrun()
	case result == ResultWin:
		c.collab.Threat.RaidWon()
	case result == ResultLoss:
		c.collab.Base.StructuralDamage(c.params.RaidLossDamage)
		enc.log.Addf("The base takes %d structural damage.", c.params.RaidLossDamage)
	}
}

func (c *Controller) resolveMissionLocked(enc *Encounter, result Result) {
	var err error
	switch result {
	case ResultWin:
		err = enc.narrative.OnWin(enc.tag)
	case ResultLoss:
		err = enc.narrative.OnLoss(enc.tag)
	case ResultRetreat:
		err = enc.narrative.OnRetreat(enc.tag)
	}
	if err != nil {
		c.logger.Warn("mission narrative callback failed",
			zap.String("encounter_id", enc.id),
			zap.String("tag", enc.tag),
			zap.Stringer("outcome", result),
			zap.Error(err),
		)
	}
}

// noDefenderLocked handles a field location entered with no explorer.
func (c *Controller) noDefenderLocked(req Request) {
	c.collab.Threat.RaiseThreat(c.params.NoDefenderThreat)
	hostiles := living(compact(req.Hostiles))
	settled := len(hostiles) > 0 && dice.Chance(c.src, c.params.NoDefenderSeedChance)
	if settled {
		c.collab.Locations.SeedLocation(req.LocationID, hostiles)
	}
	c.logger.Info("undefended location",
		zap.String("location", req.LocationID),
		zap.Float64("threat_raised", c.params.NoDefenderThreat),
		zap.Bool("hostiles_settled", settled),
	)
}

func (c *Controller) partyDefense(enc *Encounter) int {
	return enc.turrets * c.resolver.Rules().TurretDefense
}

func compact(cs []*combat.Combatant) []*combat.Combatant {
	out := make([]*combat.Combatant, 0, len(cs))
	for _, c := range cs {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

func plural(name string, n int) string {
	if n == 1 {
		return name
	}
	return name + "s"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
