package game

import (
	"fmt"

	"github.com/cardlab/duel-server-go/internal/game/attrs"
)

// HurtOp deals damage to a unit or a core. A unit brought to 0 health is destroyed;
// a destroyed core ends the duel.
type HurtOp struct {
	SourceID int
	TargetID int
	Damage   int

	// Dealt is the health actually removed.
	Dealt int
}

func (*HurtOp) Kind() OpKind { return OpHurt }

func (o *HurtOp) Verify(d *Duel) bool {
	if o.Damage <= 0 {
		return false
	}
	e, ok := d.Entity(o.TargetID)
	if !ok {
		return false
	}
	switch t := e.(type) {
	case *Unit:
		return t.Attributes.Actual(attrs.Health) > 0
	case *Player:
		return t.Attributes.Actual(attrs.CoreHealth) > 0
	}
	return false
}

func (o *HurtOp) Apply(f *Frag) {
	d := f.Duel()
	e, _ := d.Entity(o.TargetID)
	switch t := e.(type) {
	case *Unit:
		prev := t.Attributes.Actual(attrs.Health)
		f.SetAttribute(t, attrs.Health, prev-o.Damage)
		now := t.Attributes.Actual(attrs.Health)
		o.Dealt = prev - now
		if now <= 0 {
			f.Enqueue(&DestroyUnitOp{UnitID: t.ID, SourceID: o.SourceID})
		}
	case *Player:
		prev := t.Attributes.Actual(attrs.CoreHealth)
		f.SetAttribute(t, attrs.CoreHealth, prev-o.Damage)
		now := t.Attributes.Actual(attrs.CoreHealth)
		o.Dealt = prev - now
		if now <= 0 {
			winner := t.Index.Other()
			f.Enqueue(&SwitchStatusOp{Status: StatusEnded, Winner: &winner})
			f.Enqueue(&ShowMessageOp{Message: fmt.Sprintf("%s wins the duel", winner)})
		}
	}
}

func (o *HurtOp) ScopeDelta(state ScopeState) Delta {
	return DamageScopeDelta{
		ScopeMark: ScopeMark{State: state},
		SourceID:  o.SourceID,
		TargetID:  o.TargetID,
		Damage:    o.Damage,
	}
}

// HealOp restores health of a wounded unit or core.
type HealOp struct {
	SourceID int
	TargetID int
	Amount   int

	Healed int
}

func (*HealOp) Kind() OpKind { return OpHeal }

func (o *HealOp) Verify(d *Duel) bool {
	if o.Amount <= 0 {
		return false
	}
	e, ok := d.Entity(o.TargetID)
	if !ok || e.Eliminated() {
		return false
	}
	switch t := e.(type) {
	case *Unit:
		return t.Attributes.Actual(attrs.Health) > 0 && t.Wounded()
	case *Player:
		return t.Attributes.Actual(attrs.CoreHealth) < d.settings.MaxCoreHealth
	}
	return false
}

func (o *HealOp) Apply(f *Frag) {
	d := f.Duel()
	e, _ := d.Entity(o.TargetID)
	switch t := e.(type) {
	case *Unit:
		prev := t.Attributes.Actual(attrs.Health)
		f.SetAttribute(t, attrs.Health, min(t.Attributes.Actual(attrs.MaxHealth), prev+o.Amount))
		o.Healed = t.Attributes.Actual(attrs.Health) - prev
	case *Player:
		prev := t.Attributes.Actual(attrs.CoreHealth)
		f.SetAttribute(t, attrs.CoreHealth, prev+o.Amount)
		o.Healed = t.Attributes.Actual(attrs.CoreHealth) - prev
	}
}

func (o *HealOp) ScopeDelta(state ScopeState) Delta {
	return HealScopeDelta{
		ScopeMark: ScopeMark{State: state},
		SourceID:  o.SourceID,
		TargetID:  o.TargetID,
		Amount:    o.Amount,
	}
}

// AttackUnitOp makes a unit strike an enemy unit or the enemy core. Unit defenders
// with attack strike back with the attack they had before impact.
type AttackUnitOp struct {
	UnitID   int
	TargetID int

	Damage      int
	Retaliation int
}

func (*AttackUnitOp) Kind() OpKind { return OpAttackUnit }

func (o *AttackUnitOp) Verify(d *Duel) bool {
	u, ok := d.units[o.UnitID]
	if !ok || u.Attributes.Actual(attrs.Attack) <= 0 {
		return false
	}
	e, ok := d.Entity(o.TargetID)
	if !ok || e.Eliminated() {
		return false
	}
	switch t := e.(type) {
	case *Unit:
		return t.Player != u.Player && t.Attributes.Actual(attrs.Health) > 0
	case *Player:
		return t.Index != u.Player
	}
	return false
}

func (o *AttackUnitOp) Apply(f *Frag) {
	d := f.Duel()
	u := d.units[o.UnitID]
	damage := u.Attributes.Actual(attrs.Attack)

	defender, isUnit := d.units[o.TargetID]
	counter := 0
	if isUnit {
		counter = defender.Attributes.Actual(attrs.Attack)
	}

	hurt := &HurtOp{SourceID: u.ID, TargetID: o.TargetID, Damage: damage}
	if f.ApplyFrag(hurt) != Success {
		return
	}
	o.Damage = hurt.Dealt

	if isUnit && counter > 0 {
		back := &HurtOp{SourceID: defender.ID, TargetID: u.ID, Damage: counter}
		if f.ApplyFrag(back) == Success {
			o.Retaliation = back.Dealt
		}
	}
}

func (o *AttackUnitOp) ScopeDelta(state ScopeState) Delta {
	return UnitAttackScopeDelta{ScopeMark: ScopeMark{State: state}, UnitID: o.UnitID, TargetID: o.TargetID}
}
