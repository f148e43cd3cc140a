package cards

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cardlab/duel-server-go/internal/game/ability"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type yamlPack struct {
	Pack  string     `yaml:"pack"`
	Cards []yamlCard `yaml:"cards"`
}

type yamlCard struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Requirement string `yaml:"requirement"`
	Cost        int    `yaml:"cost"`
	Attack      int    `yaml:"attack"`
	Health      int    `yaml:"health"`
	Archetype   string `yaml:"archetype"`
	Author      string `yaml:"author"`
	// Script uses the same shape as the JSON ability document.
	Script any `yaml:"script"`
}

// Record is a card definition as stored: the script is kept as the raw JSON
// ability document.
type Record struct {
	Pack        string
	ID          string
	Name        string
	Description string
	Type        string
	Requirement string
	Cost        int
	Attack      int
	Health      int
	Archetype   string
	Author      string
	Script      []byte
}

// Ref returns the reference of the record.
func (r Record) Ref() Ref {
	return NewRef(r.Pack, r.ID)
}

// Definition parses the record script and builds the card definition.
func (r Record) Definition(logger *zap.Logger) (*Definition, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ref := r.Ref()
	script, err := ability.Parse(r.Script, logger.With(zap.String("card", string(ref))))
	if err != nil {
		return nil, fmt.Errorf("card %s: %w", ref, err)
	}
	return &Definition{
		Ref:         ref,
		Name:        r.Name,
		Description: r.Description,
		Type:        ability.CardKind(r.Type),
		Requirement: Requirement(r.Requirement),
		Cost:        r.Cost,
		Attack:      r.Attack,
		Health:      r.Health,
		Archetype:   r.Archetype,
		Author:      r.Author,
		Script:      script,
	}, nil
}

// ReadYAMLFiles reads the records of several pack files.
func ReadYAMLFiles(paths []string) ([]Record, error) {
	var records []Record
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open card pack: %w", err)
		}
		packRecords, err := ReadYAML(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("card pack %s: %w", path, err)
		}
		records = append(records, packRecords...)
	}
	return records, nil
}

// ReadYAML reads the records of one pack document.
func ReadYAML(r io.Reader) ([]Record, error) {
	var pack yamlPack
	if err := yaml.NewDecoder(r).Decode(&pack); err != nil {
		return nil, fmt.Errorf("failed to decode card pack: %w", err)
	}
	if pack.Pack == "" {
		return nil, fmt.Errorf("%w: pack name is required", ErrInvalidCard)
	}

	records := make([]Record, 0, len(pack.Cards))
	for _, c := range pack.Cards {
		var script []byte
		if c.Script != nil {
			// the YAML tree is re-encoded as JSON so both sources share one decoder
			raw, err := json.Marshal(c.Script)
			if err != nil {
				return nil, fmt.Errorf("card %s: failed to encode script: %w", NewRef(pack.Pack, c.ID), err)
			}
			script = raw
		}
		records = append(records, Record{
			Pack:        pack.Pack,
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Type:        c.Type,
			Requirement: c.Requirement,
			Cost:        c.Cost,
			Attack:      c.Attack,
			Health:      c.Health,
			Archetype:   c.Archetype,
			Author:      c.Author,
			Script:      script,
		})
	}
	return records, nil
}

// LoadYAMLFiles reads several pack files into one catalog.
func LoadYAMLFiles(paths []string, logger *zap.Logger) (*Catalog, error) {
	records, err := ReadYAMLFiles(paths)
	if err != nil {
		return nil, err
	}
	return FromRecords(records, logger)
}

// LoadYAML reads one pack document into a catalog.
func LoadYAML(r io.Reader, logger *zap.Logger) (*Catalog, error) {
	records, err := ReadYAML(r)
	if err != nil {
		return nil, err
	}
	return FromRecords(records, logger)
}

// FromRecords builds a catalog from stored records.
func FromRecords(records []Record, logger *zap.Logger) (*Catalog, error) {
	defs := make([]*Definition, 0, len(records))
	for _, r := range records {
		def, err := r.Definition(logger)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return NewCatalog(defs...)
}
