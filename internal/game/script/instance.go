package script

import (
	"github.com/cardlab/duel-server-go/internal/game"
	"github.com/cardlab/duel-server-go/internal/game/ability"
	"github.com/cardlab/duel-server-go/internal/game/attrs"
	"github.com/cardlab/duel-server-go/internal/game/rules"
	"go.uber.org/zap"
)

type nthAttack struct {
	n       int
	actions []ability.Action
}

// Instance is the live script of one unit. It owns the listener handles of the
// unit and forgets them when the unit dies.
type Instance struct {
	*actor

	handles  []rules.Handle
	onSpawn  []ability.Action
	onDeath  []ability.Action
	nth      []nthAttack
	attacks  int
	detached bool
}

func newInstance(r *Registry, d *game.Duel, u *game.Unit) *Instance {
	inst := &Instance{
		actor: &actor{reg: r, duel: d, me: u, unit: u, owner: u.Player, chosen: game.NoEntity},
	}
	for _, h := range u.Origin.Script.Handlers {
		inst.bind(h)
	}
	if len(inst.nth) > 0 {
		inst.listen(game.ListenFragment(d, func(f *game.Frag, op *game.AttackUnitOp) {
			if op.UnitID == u.ID {
				inst.attacked(f)
			}
		}))
	}
	return inst
}

func (inst *Instance) listen(h rules.Handle) {
	inst.handles = append(inst.handles, h)
}

// bind wires one handler to the listener registry of the duel.
func (inst *Instance) bind(h ability.Handler) {
	d := inst.duel
	actions := h.Actions

	switch ev := h.Event.(type) {
	case ability.PostSpawn:
		inst.onSpawn = append(inst.onSpawn, actions...)

	case ability.PostUnitEliminated:
		if ev.Team == ability.TeamSelf {
			inst.onDeath = append(inst.onDeath, actions...)
			return
		}
		inst.listen(game.ListenFragment(d, func(f *game.Frag, op *game.DestroyUnitOp) {
			if u, ok := d.FallenUnit(op.UnitID); ok && inst.inTeam(u, ev.Team) {
				inst.queue(f, actions, false)
			}
		}))

	case ability.PostUnitKill:
		inst.listen(game.ListenFragment(d, func(f *game.Frag, op *game.DestroyUnitOp) {
			if op.SourceID == inst.unit.ID {
				inst.queue(f, actions, false)
			}
		}))

	case ability.PostUnitHurt:
		inst.listen(game.ListenFragment(d, func(f *game.Frag, op *game.HurtOp) {
			if inst.unitInTeam(pick(ev.Dealt, op.SourceID, op.TargetID), ev.Team) {
				inst.queue(f, actions, false)
			}
		}))

	case ability.PostUnitHeal:
		inst.listen(game.ListenFragment(d, func(f *game.Frag, op *game.HealOp) {
			if inst.unitInTeam(pick(ev.Dealt, op.SourceID, op.TargetID), ev.Team) {
				inst.queue(f, actions, false)
			}
		}))

	case ability.PostUnitAttack:
		inst.listen(game.ListenFragment(d, func(f *game.Frag, op *game.AttackUnitOp) {
			if inst.unitInTeam(pick(ev.Dealt, op.UnitID, op.TargetID), ev.Team) {
				inst.queue(f, actions, false)
			}
		}))

	case ability.PostCoreHurt:
		inst.listen(game.ListenFragment(d, func(f *game.Frag, op *game.HurtOp) {
			if game.KindOf(op.TargetID) != game.KindPlayer {
				return
			}
			if p, ok := d.Entity(op.TargetID); ok && inst.playerInTeam(p.(*game.Player).Index, ev.Team) {
				inst.queue(f, actions, false)
			}
		}))

	case ability.PostUnitHealthChange:
		inst.listen(game.ListenAttribute(d, attrs.Health, func(f *game.Frag, c rules.AttributeChange) {
			if c.EntityID == inst.unit.ID && c.Previous > ev.Threshold && c.Current <= ev.Threshold {
				inst.queue(f, actions, false)
			}
		}))

	case ability.PostUnitNthAttack:
		inst.nth = append(inst.nth, nthAttack{n: ev.N, actions: actions})

	case ability.PostNthCardPlay:
		me := game.PlayerID(inst.owner)
		inst.listen(game.ListenAttribute(d, attrs.CardsPlayedThisTurn, func(f *game.Frag, c rules.AttributeChange) {
			if c.EntityID == me && c.Current == ev.N {
				inst.queue(f, actions, false)
			}
		}))

	case ability.PostCardMove:
		inst.listen(game.ListenFragment(d, func(f *game.Frag, op *game.MoveCardOp) {
			if op.Reason == ev.Move && inst.ownMove(op) {
				inst.queue(f, actions, false)
			}
		}))

	case ability.PostTurn:
		inst.listen(game.ListenFragment(d, func(f *game.Frag, op *game.SwitchTurnOp) {
			if inst.playerInTeam(op.Player, ev.Team) {
				inst.queue(f, actions, false)
			}
		}))

	default:
		inst.reg.logger.Warn("unsupported script event", zap.Any("event", h.Event))
	}
}

// ownMove reports whether a card movement concerns the owner's hand.
func (inst *Instance) ownMove(op *game.MoveCardOp) bool {
	switch op.Reason {
	case ability.MovePlayed, ability.MoveDiscarded:
		return op.From == game.HandOf(inst.owner)
	case ability.MoveDrawn:
		return op.To == game.HandOf(inst.owner)
	}
	return false
}

func (inst *Instance) attacked(f *game.Frag) {
	inst.attacks++
	remaining := inst.nth[:0]
	for _, h := range inst.nth {
		if h.n == inst.attacks {
			inst.queue(f, h.actions, false)
			continue
		}
		remaining = append(remaining, h)
	}
	inst.nth = remaining
}

// PostSpawn queues the spawn handlers on the spawn fragment.
func (inst *Instance) PostSpawn(f *game.Frag) {
	if len(inst.onSpawn) > 0 {
		inst.queue(f, inst.onSpawn, false)
	}
}

// PostEliminated queues the death handlers on the destroy fragment.
func (inst *Instance) PostEliminated(f *game.Frag) {
	if len(inst.onDeath) > 0 {
		inst.queue(f, inst.onDeath, true)
	}
}

// Detach revokes every listener of the instance.
func (inst *Instance) Detach() {
	if inst.detached {
		return
	}
	inst.detached = true
	for _, h := range inst.handles {
		inst.duel.Listeners().Revoke(h)
	}
	inst.handles = nil
	inst.reg.detached(inst.unit.ID)
}

// Attacks returns how many attacks the unit made.
func (inst *Instance) Attacks() int {
	return inst.attacks
}

// queue schedules a trigger fragment reacting to f, subject to the trigger limits.
func (inst *Instance) queue(f *game.Frag, actions []ability.Action, allowDeath bool) {
	if !inst.canStart(f, allowDeath, true) {
		return
	}
	f.Enqueue(&game.UnitTriggerOp{
		UnitID: inst.unit.ID,
		Allow: func(*game.Duel) bool {
			return inst.canStart(f, allowDeath, false) &&
				inst.sequence(run{event: f, allowDeath: allowDeath}, actions)
		},
		Run: func(tf *game.Frag) {
			inst.sequence(run{event: f, frag: tf, allowDeath: allowDeath}, actions)
		},
	})
}

func (inst *Instance) canStart(f *game.Frag, allowDeath, checkDepth bool) bool {
	limits := inst.reg.limits
	m := f.Mutation()
	log := inst.reg.logger

	if n := m.TriggerCount(inst.unit.ID); n >= limits.MaxTriggersPerScript {
		log.Debug("trigger suppressed: script limit",
			zap.Int("unit_id", inst.unit.ID), zap.Int("count", n))
		return false
	}
	if n := m.TotalTriggers(); n >= limits.MaxTriggersPerMutation {
		log.Debug("trigger suppressed: mutation limit",
			zap.Int("unit_id", inst.unit.ID), zap.Int("count", n))
		return false
	}
	if !allowDeath && inst.unit.Eliminated() {
		return false
	}
	if checkDepth {
		same, total := f.TriggerDepth(inst.unit.ID)
		if same >= limits.SelfTriggerMaxDepth || total >= limits.AnyTriggerMaxDepth {
			log.Debug("trigger suppressed: depth",
				zap.Int("unit_id", inst.unit.ID),
				zap.Int("same_depth", same),
				zap.Int("any_depth", total),
			)
			return false
		}
	}
	return true
}

func pick(first bool, a, b int) int {
	if first {
		return a
	}
	return b
}
