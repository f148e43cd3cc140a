package game

import (
	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/game/ability"
	"github.com/cardlab/duel-server-go/internal/game/attrs"
)

// Spectator views the duel without a seat. It only sees cards revealed to both players.
const Spectator PlayerIndex = -1

// UnitView is the public description of a unit.
type UnitView struct {
	ID        int              `json:"id"`
	Owner     PlayerIndex      `json:"owner"`
	Position  Position         `json:"position"`
	Ref       cards.Ref        `json:"ref"`
	Name      string           `json:"name"`
	Archetype string           `json:"archetype,omitempty"`
	Attribs   map[attrs.ID]int `json:"attribs"`
}

// CardView describes a card. Hidden cards only carry their id and location.
type CardView struct {
	ID          int               `json:"id"`
	Location    CardLocation      `json:"location"`
	Ref         cards.Ref         `json:"ref,omitempty"`
	Name        string            `json:"name,omitempty"`
	Type        ability.CardKind  `json:"type,omitempty"`
	Requirement cards.Requirement `json:"requirement,omitempty"`
	Archetype   string            `json:"archetype,omitempty"`
	Attribs     map[attrs.ID]int  `json:"attribs,omitempty"`
}

// Hidden strips the contents of the card.
func (c CardView) Hidden() CardView {
	return CardView{ID: c.ID, Location: c.Location}
}

// PlayerView is the public description of a seat.
type PlayerView struct {
	ID       int              `json:"id"`
	Index    PlayerIndex      `json:"index"`
	Attribs  map[attrs.ID]int `json:"attribs"`
	Hand     []int            `json:"hand"`
	DeckSize int              `json:"deckSize"`
}

// StateView is a full snapshot of a duel as seen by one viewer.
type StateView struct {
	Turn      int           `json:"turn"`
	WhoseTurn PlayerIndex   `json:"whoseTurn"`
	Status    Status        `json:"status"`
	Winner    *PlayerIndex  `json:"winner,omitempty"`
	Players   [2]PlayerView `json:"players"`
	Units     []UnitView    `json:"units"`
	// Cards lists every card outside the decks.
	Cards []CardView `json:"cards"`
}

func unitView(u *Unit) UnitView {
	return UnitView{
		ID:        u.ID,
		Owner:     u.Player,
		Position:  Position{Player: u.Player, Vec: u.Position},
		Ref:       u.Origin.Ref,
		Name:      u.Origin.Name,
		Archetype: u.Archetype,
		Attribs:   u.Attributes.Snapshot(),
	}
}

func cardView(c *Card) CardView {
	return CardView{
		ID:          c.ID,
		Location:    c.Location,
		Ref:         c.Def.Ref,
		Name:        c.Def.Name,
		Type:        c.Def.Type,
		Requirement: c.Def.Requirement,
		Archetype:   c.Archetype,
		Attribs:     c.Attributes.Snapshot(),
	}
}

// VisibleTo reports whether viewer may see the contents of c.
func (c *Card) VisibleTo(viewer PlayerIndex) bool {
	if viewer.Valid() {
		return c.RevealedTo[viewer]
	}
	return c.RevealedTo[P1] && c.RevealedTo[P2]
}

// View returns the state as seen by viewer, which is P1, P2 or Spectator.
func (d *Duel) View(viewer PlayerIndex) StateView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view(viewer)
}

func (d *Duel) view(viewer PlayerIndex) StateView {
	v := StateView{
		Turn:      d.turn,
		WhoseTurn: d.whoseTurn,
		Status:    d.status,
		Winner:    d.winner,
		Units:     make([]UnitView, 0, len(d.units)),
	}
	for i, p := range d.players {
		v.Players[i] = PlayerView{
			ID:       p.ID,
			Index:    p.Index,
			Attribs:  p.Attributes.Snapshot(),
			Hand:     append([]int(nil), p.Hand...),
			DeckSize: len(p.Deck),
		}
		for _, c := range d.Hand(p.Index) {
			v.Cards = append(v.Cards, visibleCard(c, viewer))
		}
	}
	for _, u := range d.Units() {
		v.Units = append(v.Units, unitView(u))
	}
	for _, id := range d.discarded {
		v.Cards = append(v.Cards, visibleCard(d.cards[id], viewer))
	}
	return v
}

func visibleCard(c *Card, viewer PlayerIndex) CardView {
	cv := cardView(c)
	if !c.VisibleTo(viewer) {
		return cv.Hidden()
	}
	return cv
}
