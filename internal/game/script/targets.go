package script

import (
	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/game"
	"github.com/cardlab/duel-server-go/internal/game/ability"
	"github.com/cardlab/duel-server-go/internal/game/attrs"
)

// target resolves a script target to live entities.
func (a *actor) target(r run, t ability.Target) []game.Entity {
	switch t := t.(type) {
	case ability.MeTarget:
		return []game.Entity{a.me}
	case ability.SourceTarget:
		return a.eventSource(r)
	case ability.EventTarget:
		return a.eventTarget(r)
	case ability.CoreTarget:
		p := a.owner
		if t.Enemy {
			p = p.Other()
		}
		return []game.Entity{a.duel.Player(p)}
	case ability.QueryTarget:
		return a.query(r, t)
	case ability.NearbyAllyTarget:
		if a.unit == nil {
			return nil
		}
		dx, dy := t.Direction.Offset()
		pos := game.Position{Player: a.owner, Vec: a.unit.Position.Add(dx, dy)}
		if u, ok := a.duel.UnitAt(pos); ok {
			return []game.Entity{u}
		}
	}
	return nil
}

// eventSource is the entity that caused the fragment being reacted to.
func (a *actor) eventSource(r run) []game.Entity {
	if r.event == nil {
		return nil
	}
	var id int
	switch op := r.event.Op.(type) {
	case *game.AttackUnitOp:
		id = op.UnitID
	case *game.HurtOp:
		id = op.SourceID
	case *game.HealOp:
		id = op.SourceID
	case *game.DestroyUnitOp:
		id = op.SourceID
	default:
		return nil
	}
	return a.live(id)
}

// eventTarget is the entity the fragment being reacted to acted upon. Spells
// resolve it to the chosen entity.
func (a *actor) eventTarget(r run) []game.Entity {
	if r.event == nil {
		if a.unit == nil && a.chosen != game.NoEntity {
			return a.live(a.chosen)
		}
		return nil
	}
	var id int
	switch op := r.event.Op.(type) {
	case *game.AttackUnitOp:
		id = op.TargetID
	case *game.HurtOp:
		id = op.TargetID
	case *game.HealOp:
		id = op.TargetID
	case *game.DestroyUnitOp:
		id = op.UnitID
	case *game.MoveCardOp:
		id = op.CardID
	default:
		return nil
	}
	return a.live(id)
}

func (a *actor) live(id int) []game.Entity {
	e, ok := a.duel.Entity(id)
	if !ok || e.Eliminated() {
		return nil
	}
	return []game.Entity{e}
}

// query collects units or hand cards of a team, filters them and keeps at most
// N of them.
func (a *actor) query(r run, q ability.QueryTarget) []game.Entity {
	var pool []game.Entity
	switch q.Kind {
	case ability.KindUnit:
		for _, u := range a.duel.Units() {
			if a.inTeam(u, q.Team) {
				pool = append(pool, u)
			}
		}
	case ability.KindCard:
		for _, p := range a.handsOf(q.Team) {
			pool = append(pool, cardEntities(a.duel.Hand(p))...)
		}
	}
	pool = a.filter(pool, q.Filters)
	if q.N > 0 {
		pool = a.sample(r, pool, q.N)
	}
	return pool
}

func (a *actor) handsOf(team ability.Team) []game.PlayerIndex {
	switch team {
	case ability.TeamSelf, ability.TeamAlly:
		return []game.PlayerIndex{a.owner}
	case ability.TeamEnemy:
		return []game.PlayerIndex{a.owner.Other()}
	}
	return []game.PlayerIndex{game.P1, game.P2}
}

// sample removes random entries until at most n remain. Dry runs keep the first
// n entries so they never draw from the random generator.
func (a *actor) sample(r run, pool []game.Entity, n int) []game.Entity {
	if len(pool) <= n {
		return pool
	}
	if r.dry() {
		return pool[:n]
	}
	out := append([]game.Entity(nil), pool...)
	rng := a.duel.Rand()
	for len(out) > n {
		i := rng.IntN(len(out))
		last := len(out) - 1
		out[i] = out[last]
		out = out[:last]
	}
	return out
}

// inTeam reports whether a unit belongs to a team relative to the actor.
func (a *actor) inTeam(u *game.Unit, team ability.Team) bool {
	switch team {
	case ability.TeamAny:
		return true
	case ability.TeamSelf:
		return a.unit != nil && u.ID == a.unit.ID
	case ability.TeamAlly:
		return u.Player == a.owner && (a.unit == nil || u.ID != a.unit.ID)
	case ability.TeamEnemy:
		return u.Player != a.owner
	}
	return false
}

// unitInTeam looks up a unit, dead or alive, and checks its team.
func (a *actor) unitInTeam(id int, team ability.Team) bool {
	if game.KindOf(id) != game.KindUnit {
		return false
	}
	u, ok := a.duel.FallenUnit(id)
	return ok && a.inTeam(u, team)
}

// playerInTeam checks a player seat against a team. Self and ally both mean the
// actor's owner.
func (a *actor) playerInTeam(p game.PlayerIndex, team ability.Team) bool {
	switch team {
	case ability.TeamAny:
		return true
	case ability.TeamSelf, ability.TeamAlly:
		return p == a.owner
	case ability.TeamEnemy:
		return p != a.owner
	}
	return false
}

// filter keeps the entities passing every filter.
func (a *actor) filter(es []game.Entity, filters []ability.Filter) []game.Entity {
	if len(filters) == 0 {
		return es
	}
	out := make([]game.Entity, 0, len(es))
	for _, e := range es {
		if a.passes(e, filters) {
			out = append(out, e)
		}
	}
	return out
}

func (a *actor) passes(e game.Entity, filters []ability.Filter) bool {
	for _, f := range filters {
		if !a.check(e, f) {
			return false
		}
	}
	return true
}

func (a *actor) check(e game.Entity, f ability.Filter) bool {
	switch f := f.(type) {
	case ability.CardTypeFilter:
		switch e := e.(type) {
		case *game.Card:
			return e.Def.Type == f.Kind
		case *game.Unit:
			return f.Kind == ability.CardUnit
		}
		return false

	case ability.AttrFilter:
		v, ok := filterValue(e, f.Attr)
		return ok && f.Op.Compare(v, f.Value)

	case ability.WoundedFilter:
		u, ok := e.(*game.Unit)
		return ok && u.Wounded()

	case ability.AdjacentFilter:
		u, ok := e.(*game.Unit)
		if !ok || a.unit == nil || u.Player != a.unit.Player || u.ID == a.unit.ID {
			return false
		}
		dx := u.Position.X - a.unit.Position.X
		dy := u.Position.Y - a.unit.Position.Y
		return dx*dx+dy*dy == 1

	case ability.ArchetypeFilter:
		want := cards.NormalizeArchetype(f.Archetype)
		switch e := e.(type) {
		case *game.Card:
			return e.Archetype == want
		case *game.Unit:
			return e.Archetype == want
		}
		return false
	}
	return false
}

// filterValue reads the attribute an AttrFilter compares. The cost of a unit is
// the cost of the card it was spawned from.
func filterValue(e game.Entity, attr ability.Attribute) (int, bool) {
	set := e.Attribs()
	var id attrs.ID
	switch attr {
	case ability.AttrHealth:
		id = attrs.Health
		if _, ok := e.(*game.Player); ok {
			id = attrs.CoreHealth
		}
	case ability.AttrAttack:
		id = attrs.Attack
	case ability.AttrCost:
		id = attrs.Cost
		if u, ok := e.(*game.Unit); ok {
			set = u.OriginStats
		}
	default:
		return 0, false
	}
	if !set.Registered(id) {
		return 0, false
	}
	return set.Actual(id), true
}
