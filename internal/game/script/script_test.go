package script

import (
	"testing"

	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/game"
	"github.com/cardlab/duel-server-go/internal/game/ability"
	"github.com/cardlab/duel-server-go/internal/game/attrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoDef hurts every enemy unit by 1 whenever it is hurt itself.
func echoDef(id string) *cards.Definition {
	return unitDef(id, 0, 100, ability.Handler{
		Event: ability.PostUnitHurt{Team: ability.TeamSelf},
		Actions: []ability.Action{
			ability.HurtAction{Damage: 1, Target: ability.QueryTarget{Kind: ability.KindUnit, Team: ability.TeamEnemy}},
		},
	})
}

// watcherDef hurts the enemy core by 1 whenever an enemy unit is hurt.
func watcherDef(id string) *cards.Definition {
	return unitDef(id, 0, 10, ability.Handler{
		Event: ability.PostUnitHurt{Team: ability.TeamEnemy},
		Actions: []ability.Action{
			ability.HurtAction{Damage: 1, Target: ability.CoreTarget{Enemy: true}},
		},
	})
}

func hurtAll(h *harness, units []*game.Unit) {
	h.t.Helper()
	children := make([]game.Op, len(units))
	for i, u := range units {
		children[i] = &game.HurtOp{SourceID: game.NoEntity, TargetID: u.ID, Damage: 1}
	}
	require.NoError(h.t, h.duel.Run(&game.EffectOp{SourceID: game.NoEntity, Tint: game.TintNegative, Children: children}))
}

func TestTriggerRingHalts(t *testing.T) {
	h := newHarness(t, DefaultLimits(), echoDef("echo"))
	a := h.spawn(h.me, "echo", 0, 0)
	b := h.spawn(h.me.Other(), "echo", 0, 0)

	h.hurt(a.ID, 1)

	// a, b, a, b trigger; the third trigger of a is cut by the same-unit depth.
	assert.Equal(t, 97, health(a))
	assert.Equal(t, 98, health(b))
	assert.Equal(t, game.StatusPlaying, h.duel.Status())
}

func TestTriggerDepthLimits(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		healthA int
		healthB int
	}{
		{
			name:    "same unit depth 1",
			limits:  Limits{MaxTriggersPerScript: 5, MaxTriggersPerMutation: 25, SelfTriggerMaxDepth: 1, AnyTriggerMaxDepth: 4},
			healthA: 98,
			healthB: 99,
		},
		{
			name:    "any unit depth 3",
			limits:  Limits{MaxTriggersPerScript: 5, MaxTriggersPerMutation: 25, SelfTriggerMaxDepth: 10, AnyTriggerMaxDepth: 3},
			healthA: 98,
			healthB: 98,
		},
		{
			name:    "any unit depth 0 disables reactions",
			limits:  Limits{MaxTriggersPerScript: 5, MaxTriggersPerMutation: 25, SelfTriggerMaxDepth: 10, AnyTriggerMaxDepth: 0},
			healthA: 99,
			healthB: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.limits, echoDef("echo"))
			a := h.spawn(h.me, "echo", 0, 0)
			b := h.spawn(h.me.Other(), "echo", 0, 0)

			h.hurt(a.ID, 1)

			assert.Equal(t, tt.healthA, health(a))
			assert.Equal(t, tt.healthB, health(b))
		})
	}
}

func TestTriggerLimitPerScript(t *testing.T) {
	h := newHarness(t, DefaultLimits(), watcherDef("watcher"), unitDef("dummy", 0, 10))
	h.spawn(h.me, "watcher", 0, 0)

	var dummies []*game.Unit
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			dummies = append(dummies, h.spawn(h.me.Other(), "dummy", x, y))
		}
	}

	hurtAll(h, dummies)

	for _, u := range dummies {
		assert.Equal(t, 9, health(u))
	}
	assert.Equal(t, 35-5, h.core(h.me.Other()))

	// Counters are per mutation.
	hurtAll(h, dummies[:2])
	assert.Equal(t, 35-7, h.core(h.me.Other()))
}

func TestTriggerLimitPerMutation(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxTriggersPerMutation = 3
	h := newHarness(t, limits, watcherDef("watcher"), unitDef("dummy", 0, 10))
	h.spawn(h.me, "watcher", 0, 0)
	h.spawn(h.me, "watcher", 1, 0)

	var dummies []*game.Unit
	for x := 0; x < 4; x++ {
		dummies = append(dummies, h.spawn(h.me.Other(), "dummy", x, 0))
	}

	hurtAll(h, dummies)

	assert.Equal(t, 35-3, h.core(h.me.Other()))
}

func TestDeploySuppressedForDeployedUnit(t *testing.T) {
	drone := unitDef("drone", 1, 1, ability.Handler{
		Event: ability.PostSpawn{},
		Actions: []ability.Action{
			ability.DeployAction{
				Filters:   []ability.Filter{ability.CardTypeFilter{Kind: ability.CardUnit}, ability.ArchetypeFilter{Archetype: "drone"}},
				Direction: ability.Right,
			},
		},
	})
	drone.Archetype = "  Drone "
	h := newHarness(t, DefaultLimits(), drone)

	first := h.spawn(h.me, "drone", 0, 0)

	units := h.duel.Units()
	require.Len(t, units, 2)
	deployed := units[1]
	assert.Equal(t, first.ID, units[0].ID)
	assert.False(t, first.Deployed)
	assert.True(t, deployed.Deployed)
	assert.Equal(t, game.Vec{X: 1, Y: 0}, deployed.Position)
	assert.Equal(t, "drone", deployed.Archetype)
	assert.Equal(t, h.duel.Turn(), deployed.SpawnTurn)
}

func TestDeployFallsBackToFreeSlot(t *testing.T) {
	spawner := unitDef("spawner", 1, 1, ability.Handler{
		Event: ability.PostSpawn{},
		Actions: []ability.Action{
			ability.DeployAction{
				Filters:   []ability.Filter{ability.AttrFilter{Attr: ability.AttrHealth, Op: ability.Greater, Value: 4}},
				Direction: ability.Left,
			},
		},
	})
	h := newHarness(t, DefaultLimits(), spawner, unitDef("golem", 2, 5))

	h.spawn(h.me, "spawner", 0, 0)

	units := h.duel.Units()
	require.Len(t, units, 2)
	assert.Equal(t, cards.NewRef("test", "golem"), units[1].Origin.Ref)
	assert.NotEqual(t, game.Vec{X: 0, Y: 0}, units[1].Position)
}

func TestDryRunDoesNotMutate(t *testing.T) {
	scatter := spellDef("scatter", cards.RequireNone,
		ability.HurtAction{Damage: 3, Target: ability.QueryTarget{Kind: ability.KindUnit, Team: ability.TeamEnemy, N: 1}},
	)
	h := newHarness(t, DefaultLimits(), scatter, unitDef("dummy", 0, 10))
	var dummies []*game.Unit
	for x := 0; x < 3; x++ {
		dummies = append(dummies, h.spawn(h.me.Other(), "dummy", x, 0))
	}
	card := h.give(h.me, "scatter")

	before := h.duel.Checksum()
	iteration := h.duel.Iteration()

	props := h.duel.Propositions(h.me)
	require.Len(t, props.Card, 1)
	assert.Equal(t, card.ID, props.Card[0].CardID)
	assert.True(t, h.reg.SpellFeasible(h.duel, h.me, card, game.NoEntity))

	assert.Equal(t, before, h.duel.Checksum())
	assert.Equal(t, iteration, h.duel.Iteration())

	require.NoError(t, h.duel.UseCard(h.me, card.ID, nil, nil))

	damaged := 0
	for _, u := range dummies {
		if health(u) == 7 {
			damaged++
		}
	}
	assert.Equal(t, 1, damaged)
	assert.True(t, card.Eliminated())
}

func TestSpellTargetsChosenEntity(t *testing.T) {
	bolt := spellDef("bolt", cards.RequireSingleEntity,
		ability.HurtAction{Damage: 4, Target: ability.EventTarget{}},
	)
	h := newHarness(t, DefaultLimits(), bolt, unitDef("dummy", 0, 10))
	victim := h.spawn(h.me.Other(), "dummy", 0, 0)
	card := h.give(h.me, "bolt")

	props := h.duel.Propositions(h.me)
	require.Len(t, props.Card, 1)
	assert.Contains(t, props.Card[0].AllowedEntities, victim.ID)
	assert.Contains(t, props.Card[0].AllowedEntities, game.PlayerID(h.me.Other()))

	require.NoError(t, h.duel.UseCard(h.me, card.ID, nil, []int{victim.ID}))
	assert.Equal(t, 6, health(victim))
}

func TestSpellWithoutEffectIsRejected(t *testing.T) {
	bolt := spellDef("bolt", cards.RequireNone,
		ability.HurtAction{Damage: 4, Target: ability.QueryTarget{Kind: ability.KindUnit, Team: ability.TeamEnemy}},
	)
	h := newHarness(t, DefaultLimits(), bolt)
	card := h.give(h.me, "bolt")

	assert.Empty(t, h.duel.Propositions(h.me).Card)
	err := h.duel.UseCard(h.me, card.ID, nil, nil)
	assert.ErrorIs(t, err, game.ErrIllegalCommand)
	assert.Equal(t, game.HandOf(h.me), card.Location)
}

func TestModifierDurations(t *testing.T) {
	buffer := func(id string, duration int) *cards.Definition {
		return unitDef(id, 0, 1, ability.Handler{
			Event: ability.PostSpawn{},
			Actions: []ability.Action{
				ability.ModifierAction{
					IsBuff:   true,
					Value:    2,
					Attr:     ability.AttrAttack,
					Target:   ability.QueryTarget{Kind: ability.KindUnit, Team: ability.TeamAlly},
					Duration: duration,
				},
			},
		})
	}

	t.Run("instant lasts until the source dies", func(t *testing.T) {
		h := newHarness(t, DefaultLimits(), buffer("banner", 0), unitDef("grunt", 1, 3))
		grunt := h.spawn(h.me, "grunt", 0, 0)
		banner := h.spawn(h.me, "banner", 1, 0)
		assert.Equal(t, 3, attack(grunt))
		assert.Equal(t, 1, grunt.Attributes.Base(attrs.Attack))

		require.NoError(t, h.duel.EndTurn(h.me))
		require.NoError(t, h.duel.EndTurn(h.me.Other()))
		assert.Equal(t, 3, attack(grunt))

		require.NoError(t, h.duel.Run(&game.DestroyUnitOp{UnitID: banner.ID, SourceID: game.NoEntity}))
		assert.Equal(t, 1, attack(grunt))
		assert.Empty(t, h.duel.Modifiers().ForTarget(grunt.ID))
	})

	t.Run("timed expires after its turns", func(t *testing.T) {
		h := newHarness(t, DefaultLimits(), buffer("horn", 1), unitDef("grunt", 1, 3))
		grunt := h.spawn(h.me, "grunt", 0, 0)
		h.spawn(h.me, "horn", 1, 0)
		assert.Equal(t, 3, attack(grunt))

		require.NoError(t, h.duel.EndTurn(h.me))
		assert.Equal(t, 1, attack(grunt))
	})

	t.Run("permanent folds into base", func(t *testing.T) {
		h := newHarness(t, DefaultLimits(), buffer("forge", -1), unitDef("grunt", 1, 3))
		grunt := h.spawn(h.me, "grunt", 0, 0)
		forge := h.spawn(h.me, "forge", 1, 0)
		assert.Equal(t, 3, grunt.Attributes.Base(attrs.Attack))
		assert.Empty(t, h.duel.Modifiers().ForTarget(grunt.ID))

		require.NoError(t, h.duel.Run(&game.DestroyUnitOp{UnitID: forge.ID, SourceID: game.NoEntity}))
		assert.Equal(t, 3, attack(grunt))
	})
}

func TestHealthBuffRaisesHealth(t *testing.T) {
	medic := unitDef("medic", 0, 1, ability.Handler{
		Event: ability.PostSpawn{},
		Actions: []ability.Action{
			ability.ModifierAction{IsBuff: true, Value: 2, Attr: ability.AttrHealth, Target: ability.NearbyAllyTarget{Direction: ability.Left}, Duration: -1},
		},
	})
	h := newHarness(t, DefaultLimits(), medic, unitDef("grunt", 1, 4))
	grunt := h.spawn(h.me, "grunt", 0, 0)
	h.spawn(h.me, "medic", 1, 0)

	assert.Equal(t, 6, grunt.Attributes.Actual(attrs.MaxHealth))
	assert.Equal(t, 6, health(grunt))
}

func TestDeathHandlerRunsAfterElimination(t *testing.T) {
	martyr := unitDef("martyr", 0, 2, ability.Handler{
		Event: ability.PostUnitEliminated{Team: ability.TeamSelf},
		Actions: []ability.Action{
			ability.HurtAction{Damage: 5, Target: ability.CoreTarget{Enemy: true}},
		},
	})
	h := newHarness(t, DefaultLimits(), martyr)
	u := h.spawn(h.me, "martyr", 0, 0)

	h.hurt(u.ID, 2)

	assert.True(t, u.Eliminated())
	assert.Equal(t, 30, h.core(h.me.Other()))
	_, attached := h.reg.Instance(u.ID)
	assert.False(t, attached)
}

func TestDetachRevokesListeners(t *testing.T) {
	h := newHarness(t, DefaultLimits(), watcherDef("watcher"), unitDef("dummy", 0, 10))
	w := h.spawn(h.me, "watcher", 0, 0)
	dummy := h.spawn(h.me.Other(), "dummy", 0, 0)
	listeners := h.duel.Listeners().Len()

	require.NoError(t, h.duel.Run(&game.DestroyUnitOp{UnitID: w.ID, SourceID: game.NoEntity}))
	assert.Equal(t, listeners-1, h.duel.Listeners().Len())

	h.hurt(dummy.ID, 1)
	assert.Equal(t, 35, h.core(h.me.Other()))
	assert.Empty(t, h.reg.Live())
}

func TestNthAttackAndTurnEvents(t *testing.T) {
	veteran := unitDef("veteran", 1, 10,
		ability.Handler{
			Event:   ability.PostUnitNthAttack{N: 1},
			Actions: []ability.Action{ability.HurtAction{Damage: 2, Target: ability.CoreTarget{Enemy: true}}},
		},
		ability.Handler{
			Event:   ability.PostTurn{Team: ability.TeamSelf},
			Actions: []ability.Action{ability.HealAction{Damage: 1, Target: ability.MeTarget{}}},
		},
	)
	h := newHarness(t, DefaultLimits(), veteran)
	u := h.spawn(h.me, "veteran", 0, 0)
	h.hurt(u.ID, 3)

	require.NoError(t, h.duel.EndTurn(h.me))
	require.NoError(t, h.duel.EndTurn(h.me.Other()))
	assert.Equal(t, 8, health(u), "healed at the start of its own turn")

	require.NoError(t, h.duel.UseUnit(h.me, u.ID, game.PlayerID(h.me.Other())))
	assert.Equal(t, 35-1-2, h.core(h.me.Other()))

	inst, ok := h.reg.Instance(u.ID)
	require.True(t, ok)
	assert.Equal(t, 1, inst.Attacks())
}

func TestConditionals(t *testing.T) {
	h := newHarness(t, DefaultLimits(),
		unitDef("captain", 0, 5, ability.Handler{
			Event: ability.PostSpawn{},
			Actions: []ability.Action{
				ability.MultiConditionalAction{
					MinUnits:   2,
					Team:       ability.TeamAlly,
					Conditions: []ability.Filter{ability.WoundedFilter{}},
					Actions:    []ability.Action{ability.HurtAction{Damage: 3, Target: ability.CoreTarget{Enemy: true}}},
				},
				ability.SingleConditionalAction{
					Subject:    ability.SubjectMe,
					Conditions: []ability.Filter{ability.AttrFilter{Attr: ability.AttrCost, Op: ability.Equal, Value: 0}},
					Actions:    []ability.Action{ability.HurtAction{Damage: 1, Target: ability.CoreTarget{Enemy: true}}},
				},
			},
		}),
		unitDef("grunt", 1, 4),
	)
	g1 := h.spawn(h.me, "grunt", 0, 0)
	h.spawn(h.me, "grunt", 1, 0)
	h.hurt(g1.ID, 1)

	h.spawn(h.me, "captain", 2, 0)

	// Only one wounded ally: the multi conditional does nothing.
	assert.Equal(t, 34, h.core(h.me.Other()))
}

func TestDrawAndDiscardActions(t *testing.T) {
	h := newHarness(t, DefaultLimits(),
		unitDef("scholar", 0, 5, ability.Handler{
			Event: ability.PostSpawn{},
			Actions: []ability.Action{
				ability.DiscardAction{N: 1, MyHand: false},
				ability.CreateAction{N: 2, Filters: []ability.Filter{ability.CardTypeFilter{Kind: ability.CardSpell}}},
			},
		}),
		spellDef("spark", cards.RequireNone, ability.HurtAction{Damage: 1, Target: ability.CoreTarget{Enemy: true}}),
	)
	h.give(h.me.Other(), "spark")

	h.spawn(h.me, "scholar", 0, 0)

	assert.Empty(t, h.duel.Hand(h.me.Other()))
	hand := h.duel.Hand(h.me)
	require.Len(t, hand, 2)
	for _, c := range hand {
		assert.Equal(t, cards.NewRef("test", "spark"), c.Def.Ref)
		assert.True(t, c.RevealedTo[h.me])
		assert.False(t, c.RevealedTo[h.me.Other()])
	}
}

func TestScriptCountsAreBounded(t *testing.T) {
	hoard := spellDef("hoard", cards.RequireNone,
		ability.DrawAction{N: 1 << 60},
		ability.CreateAction{N: 1 << 40, Filters: []ability.Filter{ability.CardTypeFilter{Kind: ability.CardSpell}}},
	)
	h := newHarness(t, DefaultLimits(), hoard)
	card := h.give(h.me, "hoard")

	var props game.Propositions
	require.NotPanics(t, func() { props = h.duel.Propositions(h.me) })
	require.Len(t, props.Card, 1)

	require.NoError(t, h.duel.UseCard(h.me, card.ID, nil, nil))
	assert.Len(t, h.duel.Hand(h.me), ability.MaxCount)
}

func TestParsedHugeDrawIsDropped(t *testing.T) {
	script, err := ability.Parse([]byte(`{"handlers": [{"event": {"type": "postSpawn"},
		"actions": [{"type": "draw", "n": 1152921504606846976}]}]}`), nil)
	require.NoError(t, err)
	greed := spellDef("greed", cards.RequireNone)
	greed.Script = script
	h := newHarness(t, DefaultLimits(), greed)
	h.give(h.me, "greed")

	require.NotPanics(t, func() {
		assert.Empty(t, h.duel.Propositions(h.me).Card)
	})
}

func TestDryRunDoesNotMutateAnyActionKind(t *testing.T) {
	enemyUnit := ability.QueryTarget{Kind: ability.KindUnit, Team: ability.TeamEnemy, N: 1}
	allyUnits := ability.QueryTarget{Kind: ability.KindUnit, Team: ability.TeamAlly}
	hitCore := ability.HurtAction{Damage: 1, Target: ability.CoreTarget{Enemy: true}}

	tests := []struct {
		name   string
		action ability.Action
	}{
		{"hurt", ability.HurtAction{Damage: 2, Target: enemyUnit}},
		{"heal", ability.HealAction{Damage: 2, Target: allyUnits}},
		{"draw", ability.DrawAction{N: 1, Filters: []ability.Filter{ability.CardTypeFilter{Kind: ability.CardUnit}}}},
		{"create", ability.CreateAction{N: 2, Filters: []ability.Filter{ability.CardTypeFilter{Kind: ability.CardSpell}}}},
		{"discard", ability.DiscardAction{N: 1}},
		{"modifier", ability.ModifierAction{IsBuff: true, Value: 2, Attr: ability.AttrAttack, Target: allyUnits, Duration: 2}},
		{"grantAttack", ability.GrantAttackAction{N: 1, Target: allyUnits}},
		{"deploy", ability.DeployAction{Filters: []ability.Filter{ability.CardTypeFilter{Kind: ability.CardUnit}}}},
		{"randomConditional", ability.RandomConditionalAction{PercentChance: 50, Actions: []ability.Action{hitCore}}},
		{"multiConditional", ability.MultiConditionalAction{
			MinUnits:   1,
			Team:       ability.TeamAlly,
			Conditions: []ability.Filter{ability.WoundedFilter{}},
			Actions:    []ability.Action{ability.HealAction{Damage: 1, Target: allyUnits}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, DefaultLimits(),
				spellDef("trial", cards.RequireNone, tt.action),
				unitDef("dummy", 1, 10),
			)
			ally := h.spawn(h.me, "dummy", 0, 0)
			h.hurt(ally.ID, 3)
			h.spawn(h.me.Other(), "dummy", 0, 0)
			h.give(h.me.Other(), "dummy")
			require.NoError(t, h.duel.Run(&game.CreateCardOp{Def: h.def("dummy"), Location: game.DeckOf(h.me)}))
			card := h.give(h.me, "trial")

			checksum := h.duel.Checksum()
			modifiers := h.duel.Modifiers().Len()
			iteration := h.duel.Iteration()

			h.duel.Propositions(h.me)
			h.reg.SpellFeasible(h.duel, h.me, card, game.NoEntity)

			assert.Equal(t, checksum, h.duel.Checksum())
			assert.Equal(t, modifiers, h.duel.Modifiers().Len())
			assert.Equal(t, iteration, h.duel.Iteration())
		})
	}
}

// commitOp runs fn as the body of a committed fragment.
type commitOp struct {
	fn func(f *game.Frag)
}

func (*commitOp) Kind() game.OpKind        { return "commit" }
func (*commitOp) Verify(d *game.Duel) bool { return true }
func (o *commitOp) Apply(f *game.Frag)     { o.fn(f) }

func TestHurtSurvivesTargetKilledMidAction(t *testing.T) {
	// The bomb's death blast kills its right neighbour before the volley reaches it.
	bomb := unitDef("bomb", 0, 1, ability.Handler{
		Event: ability.PostUnitEliminated{Team: ability.TeamSelf},
		Actions: []ability.Action{
			ability.HurtAction{Damage: 10, Target: ability.NearbyAllyTarget{Direction: ability.Right}},
		},
	})
	volley := spellDef("volley", cards.RequireNone,
		ability.HurtAction{Damage: 1, Target: ability.QueryTarget{Kind: ability.KindUnit, Team: ability.TeamEnemy}},
	)
	h := newHarness(t, DefaultLimits(), bomb, volley, unitDef("dummy", 0, 5))
	enemy := h.me.Other()
	b := h.spawn(enemy, "bomb", 0, 0)
	neighbour := h.spawn(enemy, "dummy", 1, 0)
	far := h.spawn(enemy, "dummy", 2, 0)
	card := h.give(h.me, "volley")

	var effective bool
	require.NoError(t, h.duel.Run(&commitOp{fn: func(f *game.Frag) {
		effective = h.reg.PlaySpell(f, h.me, card, game.NoEntity)
	}}))

	assert.True(t, effective)
	assert.True(t, b.Eliminated())
	assert.True(t, neighbour.Eliminated())
	assert.Equal(t, 0, health(neighbour))
	assert.Equal(t, 4, health(far))
}
