package game

import (
	"testing"

	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/game/ability"
	"github.com/cardlab/duel-server-go/internal/game/attrs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testUnitDef(id string, cost, attack, health int) *cards.Definition {
	return &cards.Definition{
		Ref:    cards.NewRef("test", id),
		Name:   id,
		Type:   ability.CardUnit,
		Cost:   cost,
		Attack: attack,
		Health: health,
	}
}

func testCatalog(t *testing.T, defs ...*cards.Definition) *cards.Catalog {
	t.Helper()
	catalog, err := cards.NewCatalog(defs...)
	require.NoError(t, err)
	return catalog
}

// startedDuel returns a playing duel with empty hands and an empty board.
func startedDuel(t *testing.T, defs ...*cards.Definition) *Duel {
	t.Helper()
	settings := DefaultSettings()
	settings.Seed = 7
	settings.StartCards = 0
	d, err := NewDuel("duel-test", settings, testCatalog(t, defs...), nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, d.Start())
	return d
}

func (d *Duel) place(t *testing.T, p PlayerIndex, def *cards.Definition, x, y int) *Unit {
	t.Helper()
	create := &CreateCardOp{Def: def, Location: LocTemp}
	require.NoError(t, d.Run(create))
	spawn := &SpawnUnitOp{Player: p, CardID: create.CardID, Position: Position{Player: p, Vec: Vec{X: x, Y: y}}}
	require.NoError(t, d.Run(spawn))
	return d.units[spawn.UnitID]
}

// ready lets a unit act this turn.
func (d *Duel) ready(t *testing.T, u *Unit) {
	t.Helper()
	require.NoError(t, d.Run(&SetAttributeOp{EntityID: u.ID, Attribute: attrs.InactionTurns, Value: 0}))
	require.NoError(t, d.Run(&SetAttributeOp{EntityID: u.ID, Attribute: attrs.ActionsLeft, Value: 1}))
}

// record collects the deltas of every following mutation.
func record(d *Duel) *[]Delta {
	var deltas []Delta
	d.Subscribe(func(ev MutationEvent) {
		deltas = append(deltas, ev.Deltas...)
	})
	return &deltas
}

func indexOf(deltas []Delta, match func(Delta) bool) int {
	for i, dl := range deltas {
		if match(dl) {
			return i
		}
	}
	return -1
}

func count(deltas []Delta, match func(Delta) bool) int {
	n := 0
	for _, dl := range deltas {
		if match(dl) {
			n++
		}
	}
	return n
}
