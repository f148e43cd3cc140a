package game

import (
	"github.com/cardlab/duel-server-go/internal/game/effects"
)

// AddModifierOp attaches a standing modifier to an entity attribute.
type AddModifierOp struct {
	Modifier effects.Modifier

	ID int
}

func (*AddModifierOp) Kind() OpKind { return OpAddModifier }

func (o *AddModifierOp) Verify(d *Duel) bool {
	e, ok := d.Entity(o.Modifier.TargetID)
	if !ok || e.Eliminated() {
		return false
	}
	def, ok := e.Attribs().Definition(o.Modifier.Attribute)
	return ok && def.SupportsModifiers
}

func (o *AddModifierOp) Apply(f *Frag) {
	e, _ := f.Duel().Entity(o.Modifier.TargetID)
	o.ID = f.AddModifier(e, o.Modifier)
}

// RemoveModifiersOp detaches standing modifiers.
type RemoveModifiersOp struct {
	IDs []int
}

func (*RemoveModifiersOp) Kind() OpKind { return OpRemoveModifiers }

func (o *RemoveModifiersOp) Verify(d *Duel) bool {
	for _, id := range o.IDs {
		if _, ok := d.modifiers.Get(id); ok {
			return true
		}
	}
	return false
}

func (o *RemoveModifiersOp) Apply(f *Frag) {
	for _, id := range o.IDs {
		f.RemoveModifier(id)
	}
}

// EffectOp groups the per-target fragments of one ability effect. Each child
// resolves on its own: a failing child does not undo the others.
type EffectOp struct {
	SourceID int
	Targets  []int
	Tint     Tint
	Children []Op

	// Applied counts the children that committed.
	Applied int
}

func (*EffectOp) Kind() OpKind { return OpEffect }

func (o *EffectOp) Verify(d *Duel) bool {
	return anyVerifies(d, o.Children)
}

func (o *EffectOp) Apply(f *Frag) {
	o.Applied = applyAll(f, o.Children)
}

func (o *EffectOp) ScopeDelta(state ScopeState) Delta {
	return EffectScopeDelta{
		ScopeMark: ScopeMark{State: state},
		SourceID:  o.SourceID,
		Targets:   o.Targets,
		Tint:      o.Tint,
	}
}

// AlterationOp groups the attribute changes one source applies to one target.
type AlterationOp struct {
	SourceID int
	TargetID int
	Positive bool
	Children []Op

	Applied int
}

func (*AlterationOp) Kind() OpKind { return OpAlteration }

func (o *AlterationOp) Verify(d *Duel) bool {
	return anyVerifies(d, o.Children)
}

func (o *AlterationOp) Apply(f *Frag) {
	o.Applied = applyAll(f, o.Children)
}

func (o *AlterationOp) ScopeDelta(state ScopeState) Delta {
	return AlterationScopeDelta{
		ScopeMark: ScopeMark{State: state},
		SourceID:  o.SourceID,
		TargetID:  o.TargetID,
		Positive:  o.Positive,
	}
}

func anyVerifies(d *Duel, ops []Op) bool {
	for _, op := range ops {
		if op.Verify(d) {
			return true
		}
	}
	return false
}

func applyAll(f *Frag, ops []Op) int {
	n := 0
	for _, op := range ops {
		if f.ApplyFrag(op) == Success {
			n++
		}
	}
	return n
}

// UnitTriggerOp runs a script reaction of a unit. Allow is consulted at
// verification time so that limits reflect triggers started since it was queued.
type UnitTriggerOp struct {
	UnitID int
	Allow  func(d *Duel) bool
	Run    func(f *Frag)
}

func (*UnitTriggerOp) Kind() OpKind { return OpUnitTrigger }

func (o *UnitTriggerOp) Verify(d *Duel) bool {
	return o.Run != nil && (o.Allow == nil || o.Allow(d))
}

func (o *UnitTriggerOp) Apply(f *Frag) {
	f.Mutation().RecordTrigger(o.UnitID)
	o.Run(f)
}

func (o *UnitTriggerOp) ScopeDelta(state ScopeState) Delta {
	return UnitTriggerScopeDelta{ScopeMark: ScopeMark{State: state}, UnitID: o.UnitID}
}

// TriggerDepth counts the unit triggers among f and its ancestors: those of unitID
// and those of any unit.
func (f *Frag) TriggerDepth(unitID int) (same, total int) {
	for cur := f; cur != nil; cur = cur.Parent() {
		if t, ok := cur.Op.(*UnitTriggerOp); ok {
			total++
			if t.UnitID == unitID {
				same++
			}
		}
	}
	return same, total
}
