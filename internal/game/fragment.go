package game

import (
	"github.com/cardlab/duel-server-go/internal/game/attrs"
	"github.com/cardlab/duel-server-go/internal/game/effects"
	"github.com/cardlab/duel-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// Result is the outcome of applying a fragment.
type Result int

const (
	Success Result = iota
	VerifyFailed
)

func (r Result) String() string {
	if r == Success {
		return "success"
	}
	return "verifyFailed"
}

// OpKind names a fragment type for logs and listeners.
type OpKind string

// Op is a typed state change. Verify must not mutate anything.
type Op interface {
	Kind() OpKind
	Verify(d *Duel) bool
	Apply(f *Frag)
}

// Scoped ops bracket their subtree with scope deltas.
type Scoped interface {
	ScopeDelta(state ScopeState) Delta
}

// Frag is a committed fragment. It lives in the arena of its mutation and
// refers to its parent by index.
type Frag struct {
	m      *Mutation
	index  int
	parent int
	Op     Op
	queue  []Op
}

// Duel returns the duel being mutated.
func (f *Frag) Duel() *Duel {
	return f.m.duel
}

// Mutation returns the mutation that owns the fragment.
func (f *Frag) Mutation() *Mutation {
	return f.m
}

// Index is the arena index of the fragment.
func (f *Frag) Index() int {
	return f.index
}

// Parent returns the fragment that applied or enqueued f, or nil for the root.
func (f *Frag) Parent() *Frag {
	if f.parent < 0 {
		return nil
	}
	return f.m.frags[f.parent]
}

// ApplyFrag verifies and commits op as a child of f immediately.
func (f *Frag) ApplyFrag(op Op) Result {
	return f.m.apply(f.index, op)
}

// Enqueue schedules op as a child of f. Queued children run in FIFO order once f's
// own effect and listeners are done.
func (f *Frag) Enqueue(op Op) {
	f.queue = append(f.queue, op)
}

// Emit appends a delta to the mutation output.
func (f *Frag) Emit(d Delta) {
	f.m.emit(d)
}

// SetAttribute sets the base value of an attribute, records the change and notifies
// attribute listeners.
func (f *Frag) SetAttribute(e Entity, id attrs.ID, value int) {
	set := e.Attribs()
	prev := set.Actual(id)
	now, err := set.SetBase(id, value)
	if err != nil {
		f.m.duel.logger.Warn("attribute update rejected",
			zap.Int("entity_id", e.EntityID()),
			zap.String("attribute", string(id)),
			zap.Error(err),
		)
		return
	}
	f.attributeChanged(e, id, prev, now)
}

// AddModifier registers m and attaches it to the target's attribute set.
// The modifier id is assigned here and returned.
func (f *Frag) AddModifier(target Entity, m effects.Modifier) int {
	d := f.m.duel
	m.ID = d.nextModifierID()
	m.TargetID = target.EntityID()
	set := target.Attribs()
	prev := set.Actual(m.Attribute)
	now, err := set.AddModifier(m.Attribute, m.ID, m.Op, m.Value)
	if err != nil {
		d.logger.Warn("modifier rejected", zap.Int("entity_id", m.TargetID), zap.Error(err))
		return 0
	}
	d.modifiers.Add(m)
	f.attributeChanged(target, m.Attribute, prev, now)
	return m.ID
}

// RemoveModifier detaches a modifier. It returns false if it was already gone.
func (f *Frag) RemoveModifier(id int) bool {
	d := f.m.duel
	m, ok := d.modifiers.Remove(id)
	if !ok {
		return false
	}
	target, ok := d.Entity(m.TargetID)
	if !ok {
		return true
	}
	set := target.Attribs()
	prev := set.Actual(m.Attribute)
	if _, now, ok := set.RemoveModifier(id); ok {
		f.attributeChanged(target, m.Attribute, prev, now)
	}
	return true
}

func (f *Frag) attributeChanged(e Entity, id attrs.ID, prev, now int) {
	if prev == now {
		return
	}
	f.m.recordAttribute(e, id, now)
	f.m.duel.listeners.NotifyAttribute(f, rules.AttributeChange{
		EntityID:  e.EntityID(),
		Attribute: id,
		Previous:  prev,
		Current:   now,
	})
}

// Reveal shows card contents to the given players.
func (f *Frag) Reveal(c *Card, to ...PlayerIndex) {
	var fresh []PlayerIndex
	for _, p := range to {
		if !c.RevealedTo[p] {
			c.RevealedTo[p] = true
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		return
	}
	f.Emit(RevealCardsDelta{Cards: []CardView{cardView(c)}, To: fresh})
}

// Mutation is one transaction: the fragment tree produced by a single command.
type Mutation struct {
	duel   *Duel
	frags  []*Frag
	deltas []Delta

	pending      map[int]map[attrs.ID]int
	pendingOrder []int

	triggers      map[int]int
	totalTriggers int
}

func newMutation(d *Duel) *Mutation {
	return &Mutation{
		duel:     d,
		pending:  make(map[int]map[attrs.ID]int),
		triggers: make(map[int]int),
	}
}

// Deltas returns the deltas emitted so far.
func (m *Mutation) Deltas() []Delta {
	return m.deltas
}

// Fragments returns the number of committed fragments.
func (m *Mutation) Fragments() int {
	return len(m.frags)
}

// TriggerCount returns how many triggers of one unit started in this mutation.
func (m *Mutation) TriggerCount(unitID int) int {
	return m.triggers[unitID]
}

// TotalTriggers returns how many triggers started in this mutation.
func (m *Mutation) TotalTriggers() int {
	return m.totalTriggers
}

// RecordTrigger counts a started trigger.
func (m *Mutation) RecordTrigger(unitID int) {
	m.triggers[unitID]++
	m.totalTriggers++
}

func (m *Mutation) apply(parent int, op Op) Result {
	d := m.duel
	if !op.Verify(d) {
		d.logger.Debug("fragment verification failed", zap.String("op", string(op.Kind())))
		return VerifyFailed
	}

	f := &Frag{m: m, index: len(m.frags), parent: parent, Op: op}
	m.frags = append(m.frags, f)

	scoped, _ := op.(Scoped)
	if scoped != nil {
		m.emit(scoped.ScopeDelta(ScopeStart))
	}

	op.Apply(f)

	if scoped != nil {
		m.emit(scoped.ScopeDelta(ScopePreparationEnd))
	}

	d.listeners.NotifyFragment(f)

	for len(f.queue) > 0 {
		next := f.queue[0]
		f.queue = f.queue[1:]
		m.apply(f.index, next)
	}

	if scoped != nil {
		m.emit(scoped.ScopeDelta(ScopeEnd))
	}
	return Success
}

func (m *Mutation) emit(d Delta) {
	m.flush()
	m.deltas = append(m.deltas, d)
}

func (m *Mutation) recordAttribute(e Entity, id attrs.ID, value int) {
	if def, ok := e.Attribs().Definition(id); ok && def.Internal {
		return
	}
	entityID := e.EntityID()
	attribs, ok := m.pending[entityID]
	if !ok {
		attribs = make(map[attrs.ID]int)
		m.pending[entityID] = attribs
		m.pendingOrder = append(m.pendingOrder, entityID)
	}
	attribs[id] = value
}

// flush turns pending attribute changes into updateEntityAttribs deltas.
func (m *Mutation) flush() {
	for _, id := range m.pendingOrder {
		m.deltas = append(m.deltas, UpdateEntityAttribsDelta{EntityID: id, Attribs: m.pending[id]})
		delete(m.pending, id)
	}
	m.pendingOrder = m.pendingOrder[:0]
}
