package game

import (
	"github.com/cardlab/duel-server-go/internal/cards"
)

// CardProposition is a card the player may play right now, with the choices it accepts.
type CardProposition struct {
	CardID          int               `json:"cardId"`
	Requirement     cards.Requirement `json:"requirement"`
	AllowedSlots    []Vec             `json:"allowedSlots,omitempty"`
	AllowedEntities []int             `json:"allowedEntities,omitempty"`
}

// UnitProposition is a unit the player may command, with its legal targets.
type UnitProposition struct {
	UnitID          int   `json:"unitId"`
	AllowedEntities []int `json:"allowedEntities"`
}

// Propositions are the legal actions of one player.
type Propositions struct {
	Card []CardProposition `json:"card"`
	Unit []UnitProposition `json:"unit"`
}

// Propositions returns the legal actions of p. They are empty outside of p's turn.
func (d *Duel) Propositions(p PlayerIndex) Propositions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.propositions(p)
}

// propositions dry-runs the command roots. Verification never mutates, so this is
// safe to call between mutations.
func (d *Duel) propositions(p PlayerIndex) Propositions {
	props := Propositions{Card: []CardProposition{}, Unit: []UnitProposition{}}
	if !p.Valid() || d.faulted || d.status != StatusPlaying || d.whoseTurn != p {
		return props
	}

	for _, c := range d.Hand(p) {
		if prop, ok := d.cardProposition(p, c); ok {
			props.Card = append(props.Card, prop)
		}
	}

	var targets []int
	for _, u := range d.Units() {
		if u.Player != p {
			targets = append(targets, u.ID)
		}
	}
	targets = append(targets, PlayerID(p.Other()))

	for _, u := range d.Units() {
		if u.Player != p {
			continue
		}
		var allowed []int
		for _, t := range targets {
			op := UnitAttackOp{Player: p, UnitID: u.ID, TargetID: t}
			if op.Verify(d) {
				allowed = append(allowed, t)
			}
		}
		if len(allowed) > 0 {
			props.Unit = append(props.Unit, UnitProposition{UnitID: u.ID, AllowedEntities: allowed})
		}
	}
	return props
}

func (d *Duel) cardProposition(p PlayerIndex, c *Card) (CardProposition, bool) {
	prop := CardProposition{CardID: c.ID, Requirement: c.Def.Requirement}

	if c.IsUnit() {
		for _, slot := range d.FreeSlots(p) {
			op := PlayUnitCardOp{Player: p, CardID: c.ID, Slot: slot}
			if op.Verify(d) {
				prop.AllowedSlots = append(prop.AllowedSlots, slot)
			}
		}
		return prop, len(prop.AllowedSlots) > 0
	}

	if c.Def.Requirement != cards.RequireSingleEntity {
		op := PlaySpellCardOp{Player: p, CardID: c.ID, ChosenEntity: NoEntity}
		return prop, op.Verify(d)
	}

	candidates := []int{PlayerID(P1), PlayerID(P2)}
	for _, u := range d.Units() {
		candidates = append(candidates, u.ID)
	}
	for _, id := range candidates {
		op := PlaySpellCardOp{Player: p, CardID: c.ID, ChosenEntity: id}
		if op.Verify(d) {
			prop.AllowedEntities = append(prop.AllowedEntities, id)
		}
	}
	return prop, len(prop.AllowedEntities) > 0
}
