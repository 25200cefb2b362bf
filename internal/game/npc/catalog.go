package npc

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/derelict/internal/game/combat"
	"github.com/cory-johannsen/derelict/internal/game/condition"
)

// Catalog holds every generation template.
type Catalog struct {
	Species map[string]*Species
	Classes map[string]*Class
	// ClassOrder is the sorted class id list used for uniform class selection.
	ClassOrder []string
	// SpeciesOrder is the sorted species id list.
	SpeciesOrder []string
	Equipment    map[combat.Rarity]*EquipmentTier
	// Conditions resolves named effect refs in species and equipment.
	Conditions *condition.Registry
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Species:    make(map[string]*Species),
		Classes:    make(map[string]*Class),
		Equipment:  make(map[combat.Rarity]*EquipmentTier),
		Conditions: condition.NewRegistry(),
	}
}

// AddSpecies registers s.
//
// Precondition: s.Validate() == nil.
func (c *Catalog) AddSpecies(s *Species) {
	if _, dup := c.Species[s.ID]; !dup {
		c.SpeciesOrder = append(c.SpeciesOrder, s.ID)
		sort.Strings(c.SpeciesOrder)
	}
	c.Species[s.ID] = s
}

// AddClass registers cl.
//
// Precondition: cl.Validate() == nil.
func (c *Catalog) AddClass(cl *Class) {
	if _, dup := c.Classes[cl.ID]; !dup {
		c.ClassOrder = append(c.ClassOrder, cl.ID)
		sort.Strings(c.ClassOrder)
	}
	c.Classes[cl.ID] = cl
}

// AddEquipment registers an equipment tier, replacing any tier of the same rarity.
func (c *Catalog) AddEquipment(t *EquipmentTier) {
	c.Equipment[t.Rarity] = t
}

// LoadCatalog reads species/, classes/, and equipment/ under dir. When
// dir/conditions exists its definitions resolve every `ref:` effect before
// validation.
//
// Precondition: dir must contain the three subdirectories.
// Postcondition: Returns a fully validated Catalog, or the first load error.
func LoadCatalog(dir string) (*Catalog, error) {
	cat := NewCatalog()
	condDir := filepath.Join(dir, "conditions")
	if _, err := os.Stat(condDir); err == nil {
		reg, err := condition.LoadDirectory(condDir)
		if err != nil {
			return nil, err
		}
		cat.Conditions = reg
	}
	if err := loadEach(filepath.Join(dir, "species"), func(s *Species) error {
		if err := cat.resolveSpecies(s); err != nil {
			return err
		}
		if err := s.Validate(); err != nil {
			return err
		}
		cat.AddSpecies(s)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := loadEach(filepath.Join(dir, "classes"), func(cl *Class) error {
		if err := cl.Validate(); err != nil {
			return err
		}
		cat.AddClass(cl)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := loadEach(filepath.Join(dir, "equipment"), func(t *EquipmentTier) error {
		if err := cat.resolveEquipment(t); err != nil {
			return err
		}
		if err := t.Validate(); err != nil {
			return err
		}
		cat.AddEquipment(t)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// Validate checks cross-template references.
func (c *Catalog) Validate() error {
	if len(c.Species) == 0 {
		return fmt.Errorf("catalog: no species loaded")
	}
	if len(c.Classes) == 0 {
		return fmt.Errorf("catalog: no classes loaded")
	}
	if _, ok := c.Equipment[combat.RarityCommon]; !ok {
		return fmt.Errorf("catalog: common equipment tier is required")
	}
	for _, id := range c.SpeciesOrder {
		s := c.Species[id]
		if s.Special.Kind == combat.SpecialSwarm {
			if _, ok := c.Species[s.Special.SpawnSpecies]; !ok {
				return fmt.Errorf("species %q: spawn_species %q is not defined", s.ID, s.Special.SpawnSpecies)
			}
		}
	}
	return nil
}

func (c *Catalog) resolveSpecies(s *Species) error {
	if err := c.Conditions.ResolveAll(s.OnHit); err != nil {
		return fmt.Errorf("species %q: on_hit: %w", s.ID, err)
	}
	for i := range s.Modifiers {
		m := &s.Modifiers[i]
		if err := c.Conditions.ResolveAll(m.Effects); err != nil {
			return fmt.Errorf("species %q: modifier %q: %w", s.ID, m.ID, err)
		}
		if err := c.Conditions.ResolveAll(m.OnHit); err != nil {
			return fmt.Errorf("species %q: modifier %q: %w", s.ID, m.ID, err)
		}
	}
	return nil
}

func (c *Catalog) resolveEquipment(t *EquipmentTier) error {
	for i := range t.Weapons {
		if err := c.Conditions.ResolveAll(t.Weapons[i].OnHit); err != nil {
			return fmt.Errorf("weapon %q: %w", t.Weapons[i].ID, err)
		}
	}
	for i := range t.Armor {
		if err := c.Conditions.ResolveAll(t.Armor[i].Effects); err != nil {
			return fmt.Errorf("armor %q: %w", t.Armor[i].ID, err)
		}
	}
	return nil
}

// loadEach decodes every *.yaml file in dir into a fresh T and hands it to add.
func loadEach[T any](dir string, add func(*T) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading content dir %q: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		v := new(T)
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := add(v); err != nil {
			return fmt.Errorf("loading %q: %w", path, err)
		}
	}
	return nil
}
