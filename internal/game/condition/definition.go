// Package condition implements timed status effects: their typed definitions,
// the per-combatant tracker, and the fixed per-turn resolution order.
package condition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EffectType identifies one status effect mechanic.
// The zero value (EffectUnknown) is intentionally invalid.
type EffectType int

const (
	EffectUnknown     EffectType = iota
	EffectStun                   // skip the next action
	EffectBurn                   // damage per tick
	EffectPoison                 // damage per tick
	EffectPhase                  // chance to negate an incoming hit
	EffectDodge                  // additive evasion
	EffectRegen                  // heal per tick
	EffectReflect                // fraction of damage taken returned to attacker
	EffectArmorPierce            // fraction of target defense ignored
	EffectSplash                 // fraction of primary damage dealt to secondaries
	EffectPack                   // damage bonus per living allied hostile
	EffectFirstStrike            // one-time damage multiplier
	EffectFortify                // flat defense bonus
	EffectFrenzy                 // fractional damage bonus
)

var effectNames = map[EffectType]string{
	EffectStun:        "stun",
	EffectBurn:        "burn",
	EffectPoison:      "poison",
	EffectPhase:       "phase",
	EffectDodge:       "dodge",
	EffectRegen:       "regen",
	EffectReflect:     "reflect",
	EffectArmorPierce: "armor_pierce",
	EffectSplash:      "splash",
	EffectPack:        "pack",
	EffectFirstStrike: "first_strike",
	EffectFortify:     "fortify",
	EffectFrenzy:      "frenzy",
}

// String returns the YAML name of the effect type.
func (t EffectType) String() string {
	if n, ok := effectNames[t]; ok {
		return n
	}
	return "unknown"
}

// ParseEffectType resolves a YAML name to an EffectType.
//
// Postcondition: Returns (EffectUnknown, error) for unrecognized names.
func ParseEffectType(name string) (EffectType, error) {
	for t, n := range effectNames {
		if n == name {
			return t, nil
		}
	}
	return EffectUnknown, fmt.Errorf("unknown effect type %q", name)
}

// UnmarshalYAML decodes an effect type from its name.
func (t *EffectType) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseEffectType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML encodes an effect type as its name.
func (t EffectType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// Spec is a data descriptor for an effect to be applied: type, magnitude, and
// duration in owner turns (-1 = permanent).
type Spec struct {
	Type      EffectType `yaml:"type"`
	Magnitude float64    `yaml:"magnitude"`
	Duration  int        `yaml:"duration"`
	// Chance is the probability the effect lands when carried by a weapon or
	// ability; 0 means always.
	Chance float64 `yaml:"chance"`
	// Ref names a Definition whose type, magnitude, and duration replace
	// this descriptor's when resolved against a Registry.
	Ref string `yaml:"ref,omitempty"`
}

// Validate checks the descriptor invariants.
func (s Spec) Validate() error {
	if s.Type == EffectUnknown && s.Ref != "" {
		return fmt.Errorf("effect ref %q was not resolved", s.Ref)
	}
	if s.Type == EffectUnknown {
		return fmt.Errorf("effect type must be set")
	}
	if s.Duration == 0 || s.Duration < -1 {
		return fmt.Errorf("effect %s: duration must be -1 or >= 1, got %d", s.Type, s.Duration)
	}
	if s.Magnitude < 0 {
		return fmt.Errorf("effect %s: magnitude must be >= 0", s.Type)
	}
	if s.Chance < 0 || s.Chance > 1 {
		return fmt.Errorf("effect %s: chance must be in [0, 1]", s.Type)
	}
	return nil
}

// Definition is a named effect loaded from YAML, e.g. "acid_burn".
type Definition struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Spec        `yaml:",inline"`
}

// Registry holds all known Definitions keyed by ID.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds def to the registry, overwriting any existing entry with the same ID.
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *Definition) {
	r.defs[def.ID] = def
}

// Get returns the Definition for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int { return len(r.defs) }

// Resolve expands a Ref descriptor into its definition's Spec. A non-zero
// Chance on s overrides the definition's. Descriptors without a Ref are
// returned unchanged.
//
// Postcondition: the returned Spec has an empty Ref, or the error names the
// unknown definition.
func (r *Registry) Resolve(s Spec) (Spec, error) {
	if s.Ref == "" {
		return s, nil
	}
	def, ok := r.defs[s.Ref]
	if !ok {
		return s, fmt.Errorf("unknown condition %q", s.Ref)
	}
	out := def.Spec
	out.Ref = ""
	if s.Chance != 0 {
		out.Chance = s.Chance
	}
	return out, nil
}

// ResolveAll resolves every descriptor in specs in place.
func (r *Registry) ResolveAll(specs []Spec) error {
	for i := range specs {
		resolved, err := r.Resolve(specs[i])
		if err != nil {
			return err
		}
		specs[i] = resolved
	}
	return nil
}

// LoadDirectory reads every *.yaml file in dir, parses each as a Definition,
// and returns a populated Registry.
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading condition dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def Definition
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if def.ID == "" {
			return nil, fmt.Errorf("parsing %q: id must not be empty", path)
		}
		if def.Ref != "" {
			return nil, fmt.Errorf("parsing %q: a definition cannot reference another", path)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		reg.Register(&def)
	}
	return reg, nil
}
