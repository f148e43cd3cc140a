package script

import (
	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/game"
	"github.com/cardlab/duel-server-go/internal/game/ability"
	"github.com/cardlab/duel-server-go/internal/game/attrs"
	"github.com/cardlab/duel-server-go/internal/game/effects"
	"go.uber.org/zap"
)

// run is the context of one sequence execution. A nil frag is a dry run: actions
// only report whether they would have an effect and never touch the duel or its
// random generator.
type run struct {
	// event is the fragment being reacted to, if any.
	event      *game.Frag
	frag       *game.Frag
	allowDeath bool
}

func (r run) dry() bool {
	return r.frag == nil
}

// actor executes actions on behalf of a unit or a spell card.
type actor struct {
	reg   *Registry
	duel  *game.Duel
	me    game.Entity
	unit  *game.Unit
	owner game.PlayerIndex
	// chosen is the entity picked when playing a spell.
	chosen int
}

// sequence runs actions in order and reports whether any had an effect. Dry runs
// stop at the first action that would.
func (a *actor) sequence(r run, actions []ability.Action) bool {
	effective := false
	for _, act := range actions {
		if a.action(r, act) {
			effective = true
			if r.dry() {
				return true
			}
		}
		if !r.allowDeath && a.me.Eliminated() {
			break
		}
	}
	return effective
}

func (a *actor) action(r run, act ability.Action) bool {
	switch act := act.(type) {
	case ability.HurtAction:
		return a.hurt(r, act)
	case ability.HealAction:
		return a.heal(r, act)
	case ability.DrawAction:
		return a.draw(r, act)
	case ability.CreateAction:
		return a.create(r, act)
	case ability.DiscardAction:
		return a.discard(r, act)
	case ability.AttackAction:
		return a.attack(r, act)
	case ability.ModifierAction:
		return a.modifier(r, act)
	case ability.GrantAttackAction:
		return a.grantAttack(r, act)
	case ability.DeployAction:
		return a.deploy(r, act)
	case ability.SingleConditionalAction:
		return a.singleConditional(r, act)
	case ability.MultiConditionalAction:
		return a.multiConditional(r, act)
	case ability.RandomConditionalAction:
		return a.randomConditional(r, act)
	}
	a.reg.logger.Warn("unsupported script action", zap.Any("action", act))
	return false
}

// all applies ops only if every one of them verifies.
func (a *actor) all(r run, ops []game.Op) bool {
	if len(ops) == 0 {
		return false
	}
	for _, op := range ops {
		if !op.Verify(a.duel) {
			a.reg.logger.Debug("script guard rejected", zap.String("op", string(op.Kind())))
			return false
		}
	}
	if r.dry() {
		return true
	}
	for _, op := range ops {
		r.frag.ApplyFrag(op)
	}
	return true
}

// effect wraps per-target ops in an effect scope. It succeeds if any child does.
func (a *actor) effect(r run, tint game.Tint, targets []int, ops []game.Op) bool {
	op := &game.EffectOp{SourceID: a.me.EntityID(), Targets: targets, Tint: tint, Children: ops}
	if r.dry() {
		return op.Verify(a.duel)
	}
	return r.frag.ApplyFrag(op) == game.Success
}

func (a *actor) hurt(r run, act ability.HurtAction) bool {
	if act.Damage <= 0 {
		return false
	}
	targets := a.target(r, act.Target)
	ops := make([]game.Op, 0, len(targets))
	for _, e := range targets {
		ops = append(ops, &game.HurtOp{SourceID: a.me.EntityID(), TargetID: e.EntityID(), Damage: act.Damage})
	}
	return a.effect(r, game.TintNegative, ids(targets), ops)
}

func (a *actor) heal(r run, act ability.HealAction) bool {
	if act.Damage <= 0 {
		return false
	}
	targets := a.target(r, act.Target)
	ops := make([]game.Op, 0, len(targets))
	for _, e := range targets {
		ops = append(ops, &game.HealOp{SourceID: a.me.EntityID(), TargetID: e.EntityID(), Amount: act.Damage})
	}
	return a.effect(r, game.TintPositive, ids(targets), ops)
}

func (a *actor) draw(r run, act ability.DrawAction) bool {
	if act.N <= 0 {
		return false
	}
	if len(act.Filters) == 0 {
		// Draws beyond the deck size cannot succeed.
		n := min(act.N, ability.MaxCount, len(a.duel.Player(a.owner).Deck))
		if n == 0 {
			return false
		}
		ops := make([]game.Op, n)
		for i := range ops {
			ops[i] = &game.DrawCardsOp{Player: a.owner, N: 1}
		}
		return a.all(r, ops)
	}

	pool := cardEntities(a.duel.DeckCards(a.owner))
	pool = a.filter(pool, act.Filters)
	if r.dry() {
		return len(pool) > 0
	}
	picked := a.sample(r, pool, act.N)
	ops := make([]game.Op, len(picked))
	for i, e := range picked {
		ops[i] = &game.DrawCardsOp{Player: a.owner, CardID: e.EntityID()}
	}
	return a.all(r, ops)
}

func (a *actor) create(r run, act ability.CreateAction) bool {
	if act.N <= 0 {
		return false
	}
	pool := a.catalogPool(act.Filters, false)
	if len(pool) == 0 {
		return false
	}
	if r.dry() {
		return true
	}
	rng := a.duel.Rand()
	ops := make([]game.Op, min(act.N, ability.MaxCount))
	for i := range ops {
		ops[i] = &game.CreateCardOp{Def: pool[rng.IntN(len(pool))], Location: game.HandOf(a.owner)}
	}
	return a.all(r, ops)
}

func (a *actor) discard(r run, act ability.DiscardAction) bool {
	if act.N <= 0 {
		return false
	}
	p := a.owner
	if !act.MyHand {
		p = p.Other()
	}
	pool := a.filter(cardEntities(a.duel.Hand(p)), act.Filters)
	if r.dry() {
		return len(pool) > 0
	}
	picked := a.sample(r, pool, act.N)
	ops := make([]game.Op, len(picked))
	for i, e := range picked {
		ops[i] = &game.MoveCardOp{CardID: e.EntityID(), To: game.LocDiscarded, Reason: ability.MoveDiscarded}
	}
	return a.all(r, ops)
}

func (a *actor) attack(r run, act ability.AttackAction) bool {
	if a.unit == nil {
		return false
	}
	targets := a.target(r, act.Target)
	ops := make([]game.Op, len(targets))
	for i, e := range targets {
		ops[i] = &game.AttackUnitOp{UnitID: a.unit.ID, TargetID: e.EntityID()}
	}
	return a.all(r, ops)
}

// modifierAttribute maps a script attribute to the attribute of an entity it
// changes. Unit health scripts change maxHealth.
func modifierAttribute(e game.Entity, attr ability.Attribute) (attrs.ID, bool) {
	var id attrs.ID
	switch e.(type) {
	case *game.Unit:
		switch attr {
		case ability.AttrAttack:
			id = attrs.Attack
		case ability.AttrHealth:
			id = attrs.MaxHealth
		}
	case *game.Card:
		switch attr {
		case ability.AttrAttack:
			id = attrs.Attack
		case ability.AttrHealth:
			id = attrs.Health
		case ability.AttrCost:
			id = attrs.Cost
		}
	}
	return id, id != "" && e.Attribs().Registered(id)
}

func (a *actor) modifier(r run, act ability.ModifierAction) bool {
	value := act.Value
	if value < 0 {
		value = -value
	}
	// A cost buff lowers the cost.
	if (act.Attr == ability.AttrCost) == act.IsBuff {
		value = -value
	}
	if value == 0 {
		return false
	}

	targets := a.target(r, act.Target)
	var applicable []game.Entity
	for _, e := range targets {
		if _, ok := modifierAttribute(e, act.Attr); ok && !e.Eliminated() {
			applicable = append(applicable, e)
		}
	}
	if r.dry() {
		return len(applicable) > 0
	}
	if len(applicable) == 0 {
		return false
	}

	alterations := make([]game.Op, 0, len(applicable))
	for _, e := range applicable {
		id, _ := modifierAttribute(e, act.Attr)
		alterations = append(alterations, &game.AlterationOp{
			SourceID: a.me.EntityID(),
			TargetID: e.EntityID(),
			Positive: act.IsBuff,
			Children: a.modifierOps(e, id, value, act.Duration),
		})
	}
	tint := game.TintNegative
	if act.IsBuff {
		tint = game.TintNeutral
	}
	return a.effect(r, tint, ids(applicable), alterations)
}

func (a *actor) modifierOps(e game.Entity, id attrs.ID, value, duration int) []game.Op {
	var ops []game.Op
	def, _ := e.Attribs().Definition(id)
	turns, timed := effects.TurnsFor(effects.Duration(duration))
	if !timed || !def.SupportsModifiers {
		ops = append(ops, &game.AdjustAttributeOp{EntityID: e.EntityID(), Attribute: id, Delta: value})
	} else {
		ops = append(ops, &game.AddModifierOp{Modifier: effects.Modifier{
			Attribute:           id,
			Op:                  attrs.OpAdd,
			Value:               value,
			TargetID:            e.EntityID(),
			SourceID:            a.me.EntityID(),
			TurnsRemaining:      turns,
			RemoveOnSourceDeath: duration == int(effects.DurationInstant) && a.unit != nil,
		}})
	}
	if id == attrs.MaxHealth && value > 0 {
		ops = append(ops, &game.AdjustAttributeOp{EntityID: e.EntityID(), Attribute: attrs.Health, Delta: value})
	}
	return ops
}

func (a *actor) grantAttack(r run, act ability.GrantAttackAction) bool {
	if act.N <= 0 {
		return false
	}
	var units []game.Entity
	for _, e := range a.target(r, act.Target) {
		if _, ok := e.(*game.Unit); ok && !e.Eliminated() {
			units = append(units, e)
		}
	}
	ops := make([]game.Op, len(units))
	for i, e := range units {
		ops[i] = &game.AdjustAttributeOp{EntityID: e.EntityID(), Attribute: attrs.ActionsLeft, Delta: act.N}
	}
	return a.effect(r, game.TintPositive, ids(units), ops)
}

// deploySuppressed reports whether the unit was itself deployed this turn.
func (a *actor) deploySuppressed() bool {
	return a.unit != nil && a.unit.Deployed && a.unit.SpawnTurn == a.duel.Turn()
}

func (a *actor) deploy(r run, act ability.DeployAction) bool {
	if a.deploySuppressed() {
		a.reg.logger.Debug("deploy suppressed", zap.Int("unit_id", a.unit.ID))
		return false
	}
	pool := a.catalogPool(act.Filters, true)
	free := a.duel.FreeSlots(a.owner)
	if len(pool) == 0 || len(free) == 0 {
		return false
	}
	if r.dry() {
		return true
	}

	rng := a.duel.Rand()
	def := pool[rng.IntN(len(pool))]
	slot, ok := a.besideMe(act.Direction)
	if !ok {
		slot = free[rng.IntN(len(free))]
	}

	create := &game.CreateCardOp{Def: def, Location: game.LocTemp}
	if r.frag.ApplyFrag(create) != game.Success {
		return false
	}
	spawn := &game.SpawnUnitOp{
		Player:   a.owner,
		CardID:   create.CardID,
		Position: game.Position{Player: a.owner, Vec: slot},
		Deployed: true,
	}
	return r.frag.ApplyFrag(spawn) == game.Success
}

// besideMe returns the free cell next to the acting unit in a direction.
func (a *actor) besideMe(dir ability.Direction) (game.Vec, bool) {
	dx, dy := dir.Offset()
	if a.unit == nil || (dx == 0 && dy == 0) {
		return game.Vec{}, false
	}
	v := a.unit.Position.Add(dx, dy)
	return v, a.duel.SlotFree(game.Position{Player: a.owner, Vec: v})
}

func (a *actor) singleConditional(r run, act ability.SingleConditionalAction) bool {
	var subject []game.Entity
	switch act.Subject {
	case ability.SubjectMe:
		subject = []game.Entity{a.me}
	case ability.SubjectSource:
		subject = a.eventSource(r)
	case ability.SubjectTarget:
		subject = a.eventTarget(r)
	}
	if len(a.filter(subject, act.Conditions)) == 0 {
		return false
	}
	return a.sequence(r, act.Actions)
}

func (a *actor) multiConditional(r run, act ability.MultiConditionalAction) bool {
	matching := a.query(r, ability.QueryTarget{Kind: ability.KindUnit, Team: act.Team, Filters: act.Conditions})
	if len(matching) < act.MinUnits {
		return false
	}
	return a.sequence(r, act.Actions)
}

func (a *actor) randomConditional(r run, act ability.RandomConditionalAction) bool {
	if act.PercentChance <= 0 {
		return false
	}
	if !r.dry() && a.duel.Rand().IntN(100) >= act.PercentChance {
		return false
	}
	return a.sequence(r, act.Actions)
}

// catalogPool returns the catalog definitions whose virtual card passes filters.
func (a *actor) catalogPool(filters []ability.Filter, unitsOnly bool) []*cards.Definition {
	catalog := a.duel.Catalog()
	if catalog == nil {
		return nil
	}
	var out []*cards.Definition
	for _, ref := range catalog.Refs() {
		def, ok := catalog.Get(ref)
		if !ok || (unitsOnly && def.Type != ability.CardUnit) {
			continue
		}
		virtual := game.NewVirtualCard(def, a.duel.AttributeDefinitions())
		if len(a.filter([]game.Entity{virtual}, filters)) == 1 {
			out = append(out, def)
		}
	}
	return out
}

func ids(es []game.Entity) []int {
	out := make([]int, len(es))
	for i, e := range es {
		out[i] = e.EntityID()
	}
	return out
}

func cardEntities(cs []*game.Card) []game.Entity {
	out := make([]game.Entity, len(cs))
	for i, c := range cs {
		out[i] = c
	}
	return out
}
