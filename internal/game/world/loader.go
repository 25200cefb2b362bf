package world

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type yamlDeckFile struct {
	Deck yamlDeck `yaml:"deck"`
}

type yamlDeck struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Entry       string         `yaml:"entry"`
	Locations   []yamlLocation `yaml:"locations"`
}

type yamlLocation struct {
	ID          string            `yaml:"id"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Exits       []yamlExit        `yaml:"exits"`
	Spawns      []yamlSpawn       `yaml:"spawns"`
	Hazard      map[string]string `yaml:"hazard"`
}

type yamlExit struct {
	Direction string `yaml:"direction"`
	Target    string `yaml:"target"`
	Sealed    bool   `yaml:"sealed"`
}

type yamlSpawn struct {
	Species string `yaml:"species"`
	Count   int    `yaml:"count"`
}

// LoadDeckFromFile reads and validates a single deck YAML file.
//
// Postcondition: Returns a validated Deck or a non-nil error.
func LoadDeckFromFile(path string) (*Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading deck file %s: %w", path, err)
	}
	return LoadDeckFromBytes(data)
}

// LoadDeckFromBytes parses and validates a deck from YAML bytes.
//
// Postcondition: Returns a validated Deck or a non-nil error.
func LoadDeckFromBytes(data []byte) (*Deck, error) {
	var file yamlDeckFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing deck YAML: %w", err)
	}
	deck := convertDeck(file.Deck)
	if err := deck.Validate(); err != nil {
		return nil, fmt.Errorf("validating deck: %w", err)
	}
	return deck, nil
}

// LoadDecksFromDir loads every YAML file in dir as a deck, in name order.
//
// Postcondition: Returns all validated decks or the first error encountered.
func LoadDecksFromDir(dir string) ([]*Deck, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading deck directory %s: %w", dir, err)
	}

	var decks []*Deck
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		deck, err := LoadDeckFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading deck from %s: %w", name, err)
		}
		decks = append(decks, deck)
	}
	if len(decks) == 0 {
		return nil, fmt.Errorf("no deck files found in %s", dir)
	}
	return decks, nil
}

func convertDeck(yd yamlDeck) *Deck {
	deck := &Deck{
		ID:          yd.ID,
		Name:        yd.Name,
		Description: strings.TrimSpace(yd.Description),
		Entry:       yd.Entry,
		Locations:   make(map[string]*Location, len(yd.Locations)),
	}
	for _, yl := range yd.Locations {
		loc := &Location{
			ID:          yl.ID,
			DeckID:      yd.ID,
			Title:       yl.Title,
			Description: strings.TrimSpace(yl.Description),
			Hazard:      yl.Hazard,
		}
		if loc.Hazard == nil {
			loc.Hazard = make(map[string]string)
		}
		for _, ye := range yl.Exits {
			loc.Exits = append(loc.Exits, Exit{
				Direction: Direction(ye.Direction),
				Target:    ye.Target,
				Sealed:    ye.Sealed,
			})
		}
		for _, ys := range yl.Spawns {
			loc.Spawns = append(loc.Spawns, Spawn{Species: ys.Species, Count: ys.Count})
		}
		deck.Locations[loc.ID] = loc
	}
	return deck
}
