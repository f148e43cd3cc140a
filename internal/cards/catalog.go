package cards

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cardlab/duel-server-go/internal/game/ability"
	"golang.org/x/text/cases"
)

var (
	// ErrDuplicateCard is returned when two definitions share a reference.
	ErrDuplicateCard = errors.New("duplicate card reference")
	// ErrInvalidCard is returned for definitions that cannot be played.
	ErrInvalidCard = errors.New("invalid card definition")
)

// Ref identifies a card definition as "pack:id".
type Ref string

// NewRef builds a reference from a pack and card id.
func NewRef(pack, id string) Ref {
	return Ref(pack + ":" + id)
}

// Requirement is what a player must choose to play a card.
type Requirement string

const (
	RequireNone         Requirement = "none"
	RequireSingleSlot   Requirement = "singleSlot"
	RequireSingleEntity Requirement = "singleEntity"
)

// Definition is the immutable description of a card.
type Definition struct {
	Ref         Ref
	Name        string
	Description string
	Type        ability.CardKind
	Requirement Requirement
	Cost        int
	Attack      int
	Health      int
	Archetype   string
	Author      string
	Script      *ability.Script
}

// Validate checks the fields the engine relies on.
func (d *Definition) Validate() error {
	if d.Ref == "" {
		return fmt.Errorf("%w: missing reference", ErrInvalidCard)
	}
	switch d.Type {
	case ability.CardUnit:
		if d.Health <= 0 {
			return fmt.Errorf("%w: unit %s needs positive health", ErrInvalidCard, d.Ref)
		}
	case ability.CardSpell:
	default:
		return fmt.Errorf("%w: %s has unknown type %q", ErrInvalidCard, d.Ref, d.Type)
	}
	if d.Cost < 0 || d.Attack < 0 {
		return fmt.Errorf("%w: %s has negative stats", ErrInvalidCard, d.Ref)
	}
	return nil
}

// NormalizeArchetype case-folds an archetype tag and collapses whitespace.
func NormalizeArchetype(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// Catalog is a read-only set of card definitions.
type Catalog struct {
	defs  map[Ref]*Definition
	order []Ref
}

// NewCatalog builds a catalog and rejects invalid or duplicate definitions.
func NewCatalog(defs ...*Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[Ref]*Definition, len(defs))}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, ok := c.defs[d.Ref]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCard, d.Ref)
		}
		if d.Requirement == "" {
			d.Requirement = defaultRequirement(d.Type)
		}
		c.defs[d.Ref] = d
		c.order = append(c.order, d.Ref)
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })
	return c, nil
}

func defaultRequirement(kind ability.CardKind) Requirement {
	if kind == ability.CardUnit {
		return RequireSingleSlot
	}
	return RequireNone
}

// Get returns a definition by reference.
func (c *Catalog) Get(ref Ref) (*Definition, bool) {
	d, ok := c.defs[ref]
	return d, ok
}

// Refs returns all references in sorted order.
func (c *Catalog) Refs() []Ref {
	return append([]Ref(nil), c.order...)
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.order)
}
