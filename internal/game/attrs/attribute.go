package attrs

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ID identifies a registered attribute.
type ID string

const (
	CoreHealth          ID = "coreHealth"
	Energy              ID = "energy"
	MaxEnergy           ID = "maxEnergy"
	Attack              ID = "attack"
	Health              ID = "health"
	MaxHealth           ID = "maxHealth"
	Cost                ID = "cost"
	InactionTurns       ID = "inactionTurns"
	ActionsLeft         ID = "actionsLeft"
	ActionsPerTurn      ID = "actionsPerTurn"
	CardsPlayedThisTurn ID = "cardsPlayedThisTurn"
)

// ErrNotRegistered is returned when an attribute is used on a set that never registered it.
var ErrNotRegistered = errors.New("attribute not registered")

// ErrNotDefined is returned when a catalog has no definition for an attribute.
var ErrNotDefined = errors.New("attribute not defined")

// Definition describes bounds and behavior of an attribute.
type Definition struct {
	ID                ID
	Min               int
	Default           int
	Max               int
	SupportsModifiers bool
	// Internal attributes are tracked but never sent to clients.
	Internal bool
}

// Clamp bounds v to the definition's range.
func (d Definition) Clamp(v int) int {
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

// Catalog holds the definitions used by a duel.
type Catalog map[ID]Definition

// NewCatalog builds the standard attribute definitions for the given duel limits.
func NewCatalog(maxCoreHealth, maxEnergy int) Catalog {
	defs := []Definition{
		{ID: CoreHealth, Min: math.MinInt, Default: maxCoreHealth, Max: maxCoreHealth},
		{ID: Energy, Min: 0, Default: 0, Max: maxEnergy},
		{ID: MaxEnergy, Min: 0, Default: 0, Max: maxEnergy, SupportsModifiers: true},
		{ID: Attack, Max: math.MaxInt, SupportsModifiers: true},
		{ID: Health, Max: math.MaxInt},
		{ID: MaxHealth, Max: math.MaxInt, SupportsModifiers: true},
		{ID: Cost, Max: math.MaxInt, SupportsModifiers: true},
		{ID: InactionTurns, Max: math.MaxInt, SupportsModifiers: true},
		{ID: ActionsLeft, Max: math.MaxInt, SupportsModifiers: true},
		{ID: ActionsPerTurn, Max: math.MaxInt, SupportsModifiers: true},
		{ID: CardsPlayedThisTurn, Max: math.MaxInt, Internal: true},
	}
	c := make(Catalog, len(defs))
	for _, d := range defs {
		c[d.ID] = d
	}
	return c
}

// Op is the operation a modifier applies to the value it receives.
type Op string

const (
	OpAdd      Op = "add"
	OpMultiply Op = "multiply"
	OpSet      Op = "set"
)

func (op Op) apply(v, operand int) int {
	switch op {
	case OpMultiply:
		return v * operand
	case OpSet:
		return operand
	default:
		return v + operand
	}
}

type contribution struct {
	modID int
	op    Op
	value int
}

type entry struct {
	def    Definition
	base   int
	actual int
	mods   []contribution
}

func (e *entry) recompute() {
	if !e.def.SupportsModifiers {
		e.actual = e.base
		return
	}
	v := e.base
	for _, m := range e.mods {
		v = m.op.apply(v, m.value)
	}
	e.actual = e.def.Clamp(v)
}

// Set stores the attributes of one entity.
// Set is not safe for concurrent use; the owning duel serializes access.
type Set struct {
	entries map[ID]*entry
	modAttr map[int]ID
}

// NewSet creates an empty attribute set.
func NewSet() *Set {
	return &Set{
		entries: make(map[ID]*entry),
		modAttr: make(map[int]ID),
	}
}

// Register adds an attribute at its default value. Registering twice keeps the current value.
func (s *Set) Register(def Definition) {
	if _, ok := s.entries[def.ID]; ok {
		return
	}
	e := &entry{def: def, base: def.Clamp(def.Default)}
	e.recompute()
	s.entries[def.ID] = e
}

// Init registers the definition of id from c and sets its base value.
func (s *Set) Init(c Catalog, id ID, base int) error {
	def, ok := c[id]
	if !ok {
		return fmt.Errorf("init %s: %w", id, ErrNotDefined)
	}
	s.Register(def)
	_, err := s.SetBase(id, base)
	return err
}

// Registered reports whether the attribute exists on this set.
func (s *Set) Registered(id ID) bool {
	_, ok := s.entries[id]
	return ok
}

// Get returns the base and actual values.
func (s *Set) Get(id ID) (base, actual int, ok bool) {
	e, ok := s.entries[id]
	if !ok {
		return 0, 0, false
	}
	return e.base, e.actual, true
}

// Actual returns the live value, or 0 if the attribute is not registered.
func (s *Set) Actual(id ID) int {
	if e, ok := s.entries[id]; ok {
		return e.actual
	}
	return 0
}

// Base returns the base value, or 0 if the attribute is not registered.
func (s *Set) Base(id ID) int {
	if e, ok := s.entries[id]; ok {
		return e.base
	}
	return 0
}

// Definition returns the attribute definition.
func (s *Set) Definition(id ID) (Definition, bool) {
	if e, ok := s.entries[id]; ok {
		return e.def, true
	}
	return Definition{}, false
}

// SetBase clamps and stores a new base value and returns the resulting actual value.
func (s *Set) SetBase(id ID, v int) (int, error) {
	e, ok := s.entries[id]
	if !ok {
		return 0, fmt.Errorf("set %s: %w", id, ErrNotRegistered)
	}
	e.base = e.def.Clamp(v)
	e.recompute()
	return e.actual, nil
}

// AddModifier attaches a modifier contribution identified by modID.
// Attributes without modifier support accept the contribution but ignore it.
func (s *Set) AddModifier(id ID, modID int, op Op, value int) (int, error) {
	e, ok := s.entries[id]
	if !ok {
		return 0, fmt.Errorf("modify %s: %w", id, ErrNotRegistered)
	}
	e.mods = append(e.mods, contribution{modID: modID, op: op, value: value})
	s.modAttr[modID] = id
	e.recompute()
	return e.actual, nil
}

// RemoveModifier detaches a modifier contribution. The returned attribute and new actual
// value are only meaningful when ok is true.
func (s *Set) RemoveModifier(modID int) (id ID, actual int, ok bool) {
	id, ok = s.modAttr[modID]
	if !ok {
		return "", 0, false
	}
	delete(s.modAttr, modID)
	e := s.entries[id]
	for i, m := range e.mods {
		if m.modID == modID {
			e.mods = append(e.mods[:i], e.mods[i+1:]...)
			break
		}
	}
	e.recompute()
	return id, e.actual, true
}

// ModifierIDs returns the ids of modifiers attached to this set, ascending.
func (s *Set) ModifierIDs() []int {
	ids := make([]int, 0, len(s.modAttr))
	for id := range s.modAttr {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// IDs returns the registered attribute ids in sorted order.
func (s *Set) IDs() []ID {
	ids := make([]ID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns the actual values of all non-internal attributes.
func (s *Set) Snapshot() map[ID]int {
	out := make(map[ID]int, len(s.entries))
	for id, e := range s.entries {
		if e.def.Internal {
			continue
		}
		out[id] = e.actual
	}
	return out
}

// Clone creates a deep copy of the set, including modifier contributions.
func (s *Set) Clone() *Set {
	c := NewSet()
	for id, e := range s.entries {
		ce := &entry{def: e.def, base: e.base, actual: e.actual}
		ce.mods = append([]contribution(nil), e.mods...)
		c.entries[id] = ce
	}
	for k, v := range s.modAttr {
		c.modAttr[k] = v
	}
	return c
}
