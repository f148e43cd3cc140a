// Package script runs compiled card abilities against a duel. Each unit gets an
// instance that listens to committed fragments and queues trigger fragments in
// response; spell cards run their on-play sequence directly.
package script

import (
	"sort"

	"github.com/cardlab/duel-server-go/internal/game"
	"github.com/cardlab/duel-server-go/internal/game/ability"
	"go.uber.org/zap"
)

// Limits bound how far script reactions can cascade inside one mutation.
type Limits struct {
	// MaxTriggersPerScript caps the triggers one unit can start per mutation.
	MaxTriggersPerScript int
	// MaxTriggersPerMutation caps the triggers of all units per mutation.
	MaxTriggersPerMutation int
	// SelfTriggerMaxDepth caps nested triggers of the same unit.
	SelfTriggerMaxDepth int
	// AnyTriggerMaxDepth caps nested triggers of any unit.
	AnyTriggerMaxDepth int
}

// DefaultLimits returns the standard trigger limits.
func DefaultLimits() Limits {
	return Limits{
		MaxTriggersPerScript:   5,
		MaxTriggersPerMutation: 25,
		SelfTriggerMaxDepth:    2,
		AnyTriggerMaxDepth:     4,
	}
}

// Registry attaches script instances to the units of one duel. It implements
// game.ScriptHost and must not be shared between duels.
type Registry struct {
	limits    Limits
	instances map[int]*Instance
	logger    *zap.Logger
}

var _ game.ScriptHost = (*Registry)(nil)

// NewRegistry creates a registry enforcing limits.
func NewRegistry(limits Limits, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		limits:    limits,
		instances: make(map[int]*Instance),
		logger:    logger,
	}
}

// Factory returns a game.ScriptHostFactory building one registry per duel.
func Factory(limits Limits, logger *zap.Logger) game.ScriptHostFactory {
	return func() game.ScriptHost {
		return NewRegistry(limits, logger)
	}
}

// Limits returns the enforced trigger limits.
func (r *Registry) Limits() Limits {
	return r.limits
}

// AttachUnit compiles the script of a freshly spawned unit into a live instance.
// Units without a script get none.
func (r *Registry) AttachUnit(d *game.Duel, u *game.Unit) game.EntityScript {
	if u.Origin == nil || u.Origin.Script.Empty() {
		return nil
	}
	inst := newInstance(r, d, u)
	r.instances[u.ID] = inst
	r.logger.Debug("script attached",
		zap.String("duel_id", d.ID()),
		zap.Int("unit_id", u.ID),
		zap.String("card", string(u.Origin.Ref)),
		zap.Int("handler_count", len(u.Origin.Script.Handlers)),
	)
	return inst
}

// Instance returns the live instance of a unit.
func (r *Registry) Instance(unitID int) (*Instance, bool) {
	inst, ok := r.instances[unitID]
	return inst, ok
}

// Live returns the ids of units with an attached instance, sorted.
func (r *Registry) Live() []int {
	ids := make([]int, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SpellFeasible dry-runs the on-play sequence of a spell.
func (r *Registry) SpellFeasible(d *game.Duel, owner game.PlayerIndex, c *game.Card, chosenEntity int) bool {
	seq := spellSequence(c)
	if len(seq) == 0 {
		return false
	}
	a := r.spellActor(d, owner, c, chosenEntity)
	return a.sequence(run{allowDeath: true}, seq)
}

// PlaySpell runs the on-play sequence of a spell inside f.
func (r *Registry) PlaySpell(f *game.Frag, owner game.PlayerIndex, c *game.Card, chosenEntity int) bool {
	a := r.spellActor(f.Duel(), owner, c, chosenEntity)
	ok := a.sequence(run{frag: f, allowDeath: true}, spellSequence(c))
	r.logger.Debug("spell played",
		zap.String("duel_id", f.Duel().ID()),
		zap.Int("card_id", c.ID),
		zap.Bool("effective", ok),
	)
	return ok
}

func (r *Registry) spellActor(d *game.Duel, owner game.PlayerIndex, c *game.Card, chosen int) *actor {
	return &actor{reg: r, duel: d, me: c, owner: owner, chosen: chosen}
}

func (r *Registry) detached(unitID int) {
	delete(r.instances, unitID)
}

func spellSequence(c *game.Card) []ability.Action {
	var seq []ability.Action
	for _, h := range c.Def.Script.HandlersFor(ability.EventPostSpawn) {
		seq = append(seq, h.Actions...)
	}
	return seq
}
