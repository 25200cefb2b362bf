package condition

import "math"

// Effect is one active timed effect on a combatant.
type Effect struct {
	Type      EffectType
	Magnitude float64
	// Remaining is the number of owner turns left; -1 means permanent.
	Remaining int
	// Source names what applied the effect (weapon, ability, consumable id).
	Source string
}

// Permanent reports whether the effect never expires.
func (e Effect) Permanent() bool { return e.Remaining < 0 }

// TickResult summarizes what happened when an owner's turn started.
type TickResult struct {
	Damage  int
	Heal    int
	Expired []Effect
}

// tickRule is the per-type behavior run when the owner's turn starts.
type tickRule func(e *Effect, r *TickResult)

func damageTick(e *Effect, r *TickResult) { r.Damage += int(math.Round(e.Magnitude)) }
func healTick(e *Effect, r *TickResult)   { r.Heal += int(math.Round(e.Magnitude)) }

// tickRules dispatches per-type start-of-turn behavior. Types without an entry
// only count down.
var tickRules = map[EffectType]tickRule{
	EffectBurn:   damageTick,
	EffectPoison: damageTick,
	EffectRegen:  healTick,
}

// Tracker holds the ordered effects applied to one combatant.
// It is not safe for concurrent use; the encounter serialises access.
// A nil *Tracker behaves as an empty tracker for every read.
type Tracker struct {
	effects []*Effect
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Apply adds a new independent timer built from spec.
// Effects of the same type from different sources never merge: each keeps its
// own magnitude and countdown.
//
// Precondition: spec.Validate() == nil.
func (t *Tracker) Apply(spec Spec, source string) {
	t.Add(Effect{Type: spec.Type, Magnitude: spec.Magnitude, Remaining: spec.Duration, Source: source})
}

// Add appends a copy of e.
func (t *Tracker) Add(e Effect) {
	if e.Type == EffectUnknown || e.Remaining == 0 {
		return
	}
	cp := e
	t.effects = append(t.effects, &cp)
}

// StartTurn runs the start-of-turn resolution in insertion order:
// damage-over-time and heal-over-time effects apply their magnitude, then every
// timed effect except stun counts down by one and expired effects are removed.
// Stun is consumed separately by ConsumeStun.
//
// Postcondition: burn with Remaining == n contributes damage on exactly n calls.
func (t *Tracker) StartTurn() TickResult {
	var r TickResult
	if t == nil {
		return r
	}
	kept := t.effects[:0]
	for _, e := range t.effects {
		if rule, ok := tickRules[e.Type]; ok {
			rule(e, &r)
		}
		if e.Type != EffectStun && !e.Permanent() {
			e.Remaining--
		}
		if !e.Permanent() && e.Remaining <= 0 {
			r.Expired = append(r.Expired, *e)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(t.effects); i++ {
		t.effects[i] = nil
	}
	t.effects = kept
	return r
}

// ConsumeStun reports whether the owner is stunned and, if so, consumes one
// turn from the oldest stun effect.
func (t *Tracker) ConsumeStun() bool {
	if t == nil {
		return false
	}
	for i, e := range t.effects {
		if e.Type != EffectStun {
			continue
		}
		if !e.Permanent() {
			e.Remaining--
			if e.Remaining <= 0 {
				t.removeAt(i)
			}
		}
		return true
	}
	return false
}

// ConsumeFirst removes and returns the oldest effect of type typ.
func (t *Tracker) ConsumeFirst(typ EffectType) (Effect, bool) {
	if t == nil {
		return Effect{}, false
	}
	for i, e := range t.effects {
		if e.Type == typ {
			out := *e
			t.removeAt(i)
			return out, true
		}
	}
	return Effect{}, false
}

// Has reports whether any effect of type typ is active.
func (t *Tracker) Has(typ EffectType) bool {
	for _, e := range t.list() {
		if e.Type == typ {
			return true
		}
	}
	return false
}

// Count returns the number of active effects of type typ.
func (t *Tracker) Count(typ EffectType) int {
	n := 0
	for _, e := range t.list() {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// Sum returns the total magnitude of every active effect of type typ.
func (t *Tracker) Sum(typ EffectType) float64 {
	total := 0.0
	for _, e := range t.list() {
		if e.Type == typ {
			total += e.Magnitude
		}
	}
	return total
}

// Max returns the largest magnitude among active effects of type typ, or 0.
func (t *Tracker) Max(typ EffectType) float64 {
	best := 0.0
	for _, e := range t.list() {
		if e.Type == typ && e.Magnitude > best {
			best = e.Magnitude
		}
	}
	return best
}

// Remove deletes every effect of type typ.
func (t *Tracker) Remove(typ EffectType) {
	kept := t.effects[:0]
	for _, e := range t.effects {
		if e.Type != typ {
			kept = append(kept, e)
		}
	}
	t.effects = kept
}

// All returns copies of the active effects in application order.
func (t *Tracker) All() []Effect {
	out := make([]Effect, 0, t.Len())
	for _, e := range t.list() {
		out = append(out, *e)
	}
	return out
}

// Len returns the number of active effects.
func (t *Tracker) Len() int {
	if t == nil {
		return 0
	}
	return len(t.effects)
}

func (t *Tracker) list() []*Effect {
	if t == nil {
		return nil
	}
	return t.effects
}

func (t *Tracker) removeAt(i int) {
	copy(t.effects[i:], t.effects[i+1:])
	t.effects[len(t.effects)-1] = nil
	t.effects = t.effects[:len(t.effects)-1]
}
