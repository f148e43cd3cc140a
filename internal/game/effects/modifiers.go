package effects

import (
	"sort"

	"github.com/cardlab/duel-server-go/internal/game/attrs"
)

// Duration is how many turn boundaries a modifier survives.
type Duration int

const (
	// DurationPermanent folds the value into the base attribute; no modifier is kept.
	DurationPermanent Duration = -1
	// DurationInstant keeps the modifier until its source dies.
	DurationInstant Duration = 0
)

// NoExpiry marks a standing modifier that is not decremented at turn boundaries.
const NoExpiry = -1

// Modifier is a standing change to an entity attribute.
type Modifier struct {
	ID        int
	Attribute attrs.ID
	Op        attrs.Op
	Value     int
	TargetID  int
	SourceID  int
	// TurnsRemaining is NoExpiry or the number of turn boundaries left.
	TurnsRemaining int
	// RemoveOnSourceDeath is set for modifiers created with DurationInstant.
	RemoveOnSourceDeath bool
}

// Timed reports whether the modifier expires through Tick.
func (m Modifier) Timed() bool {
	return m.TurnsRemaining > 0
}

// TurnsFor converts a script duration into the TurnsRemaining of a standing modifier.
// It returns false for DurationPermanent, which never creates a modifier.
func TurnsFor(d Duration) (int, bool) {
	switch {
	case d < 0:
		return 0, false
	case d == DurationInstant:
		return NoExpiry, true
	default:
		return int(d), true
	}
}

// Registry tracks the standing modifiers of one duel.
// Access is serialized by the owning duel.
type Registry struct {
	mods map[int]*Modifier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{mods: make(map[int]*Modifier)}
}

// Add stores a modifier. A modifier with an existing id replaces the previous one.
func (r *Registry) Add(m Modifier) {
	cp := m
	r.mods[m.ID] = &cp
}

// Remove deletes the modifier and returns it.
func (r *Registry) Remove(id int) (Modifier, bool) {
	m, ok := r.mods[id]
	if !ok {
		return Modifier{}, false
	}
	delete(r.mods, id)
	return *m, true
}

// Get returns a modifier by id.
func (r *Registry) Get(id int) (Modifier, bool) {
	m, ok := r.mods[id]
	if !ok {
		return Modifier{}, false
	}
	return *m, true
}

// Len returns the number of standing modifiers.
func (r *Registry) Len() int {
	return len(r.mods)
}

// List returns all modifiers ordered by id.
func (r *Registry) List() []Modifier {
	return r.collect(func(*Modifier) bool { return true })
}

// ForTarget returns the modifiers applied to an entity.
func (r *Registry) ForTarget(targetID int) []Modifier {
	return r.collect(func(m *Modifier) bool { return m.TargetID == targetID })
}

// BySource returns the modifiers created by an entity that are removed on its death.
func (r *Registry) BySource(sourceID int) []Modifier {
	return r.collect(func(m *Modifier) bool {
		return m.SourceID == sourceID && m.RemoveOnSourceDeath
	})
}

// DropTarget forgets every modifier applied to an entity that left play.
func (r *Registry) DropTarget(targetID int) []Modifier {
	dropped := r.ForTarget(targetID)
	for _, m := range dropped {
		delete(r.mods, m.ID)
	}
	return dropped
}

// Tick decrements timed modifiers once and returns the ones that reached zero,
// ordered by id. Expired modifiers stay registered until the caller removes them.
func (r *Registry) Tick() []Modifier {
	var expired []Modifier
	for _, id := range r.sortedIDs() {
		m := r.mods[id]
		if !m.Timed() {
			continue
		}
		m.TurnsRemaining--
		if m.TurnsRemaining == 0 {
			expired = append(expired, *m)
		}
	}
	return expired
}

func (r *Registry) collect(keep func(*Modifier) bool) []Modifier {
	var out []Modifier
	for _, id := range r.sortedIDs() {
		if m := r.mods[id]; keep(m) {
			out = append(out, *m)
		}
	}
	return out
}

func (r *Registry) sortedIDs() []int {
	ids := make([]int, 0, len(r.mods))
	for id := range r.mods {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
