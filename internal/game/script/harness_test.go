package script

import (
	"testing"

	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/game"
	"github.com/cardlab/duel-server-go/internal/game/ability"
	"github.com/cardlab/duel-server-go/internal/game/attrs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// harness is a started duel with an empty board, driven through standalone ops.
type harness struct {
	t    *testing.T
	duel *game.Duel
	reg  *Registry
	defs map[string]*cards.Definition
	me   game.PlayerIndex
}

func newHarness(t *testing.T, limits Limits, defs ...*cards.Definition) *harness {
	t.Helper()
	catalog, err := cards.NewCatalog(defs...)
	require.NoError(t, err)

	reg := NewRegistry(limits, zaptest.NewLogger(t))
	settings := game.DefaultSettings()
	settings.Seed = 42
	settings.StartCards = 0

	d, err := game.NewDuel("script-test", settings, catalog, reg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, d.Start())

	h := &harness{t: t, duel: d, reg: reg, defs: make(map[string]*cards.Definition), me: d.WhoseTurn()}
	for _, def := range defs {
		h.defs[string(def.Ref)] = def
	}
	return h
}

func unitDef(id string, attack, health int, handlers ...ability.Handler) *cards.Definition {
	return &cards.Definition{
		Ref:    cards.NewRef("test", id),
		Name:   id,
		Type:   ability.CardUnit,
		Attack: attack,
		Health: health,
		Script: &ability.Script{Handlers: handlers},
	}
}

func spellDef(id string, req cards.Requirement, actions ...ability.Action) *cards.Definition {
	return &cards.Definition{
		Ref:         cards.NewRef("test", id),
		Name:        id,
		Type:        ability.CardSpell,
		Requirement: req,
		Script: &ability.Script{Handlers: []ability.Handler{
			{Event: ability.PostSpawn{}, Actions: actions},
		}},
	}
}

func (h *harness) def(id string) *cards.Definition {
	def, ok := h.defs[string(cards.NewRef("test", id))]
	require.True(h.t, ok, "unknown card %s", id)
	return def
}

func (h *harness) spawn(p game.PlayerIndex, id string, x, y int) *game.Unit {
	h.t.Helper()
	create := &game.CreateCardOp{Def: h.def(id), Location: game.LocTemp}
	require.NoError(h.t, h.duel.Run(create))

	spawn := &game.SpawnUnitOp{
		Player:   p,
		CardID:   create.CardID,
		Position: game.Position{Player: p, Vec: game.Vec{X: x, Y: y}},
	}
	require.NoError(h.t, h.duel.Run(spawn))

	u, ok := h.duel.Unit(spawn.UnitID)
	require.True(h.t, ok)
	return u
}

func (h *harness) give(p game.PlayerIndex, id string) *game.Card {
	h.t.Helper()
	create := &game.CreateCardOp{Def: h.def(id), Location: game.HandOf(p)}
	require.NoError(h.t, h.duel.Run(create))
	c, ok := h.duel.Card(create.CardID)
	require.True(h.t, ok)
	return c
}

func (h *harness) hurt(targetID, damage int) {
	h.t.Helper()
	require.NoError(h.t, h.duel.Run(&game.HurtOp{SourceID: game.NoEntity, TargetID: targetID, Damage: damage}))
}

func (h *harness) core(p game.PlayerIndex) int {
	return h.duel.Player(p).Attributes.Actual(attrs.CoreHealth)
}

func health(u *game.Unit) int {
	return u.Attributes.Actual(attrs.Health)
}

func attack(u *game.Unit) int {
	return u.Attributes.Actual(attrs.Attack)
}
