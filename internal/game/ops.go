package game

import (
	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/game/ability"
	"github.com/cardlab/duel-server-go/internal/game/attrs"
)

const (
	OpSwitchStatus    OpKind = "switchStatus"
	OpSwitchTurn      OpKind = "switchTurn"
	OpDrawCards       OpKind = "drawCards"
	OpMoveCard        OpKind = "moveCard"
	OpCreateCard      OpKind = "createCard"
	OpRevealCards     OpKind = "revealCards"
	OpUseCard         OpKind = "useCard"
	OpSpawnUnit       OpKind = "spawnUnit"
	OpDestroyUnit     OpKind = "destroyUnit"
	OpHurt            OpKind = "hurt"
	OpHeal            OpKind = "heal"
	OpAttackUnit      OpKind = "attackUnit"
	OpConsumeAction   OpKind = "consumeAction"
	OpSetAttribute    OpKind = "setAttribute"
	OpAdjustAttribute OpKind = "adjustAttribute"
	OpAddModifier     OpKind = "addModifier"
	OpRemoveModifiers OpKind = "removeModifiers"
	OpEffect          OpKind = "effect"
	OpAlteration      OpKind = "alteration"
	OpUnitTrigger     OpKind = "unitTrigger"
	OpShowMessage     OpKind = "showMessage"
)

// SwitchStatusOp changes the lifecycle stage.
type SwitchStatusOp struct {
	Status Status
	Winner *PlayerIndex
}

func (*SwitchStatusOp) Kind() OpKind { return OpSwitchStatus }

func (o *SwitchStatusOp) Verify(d *Duel) bool {
	return d.status != o.Status && d.status != StatusEnded
}

func (o *SwitchStatusOp) Apply(f *Frag) {
	d := f.Duel()
	d.status = o.Status
	d.winner = o.Winner
	f.Emit(SwitchStatusDelta{Status: o.Status, Winner: o.Winner})
}

// SwitchTurnOp gives the turn to Player and refreshes their energy and units.
// It does not draw.
type SwitchTurnOp struct {
	Player PlayerIndex
}

func (*SwitchTurnOp) Kind() OpKind { return OpSwitchTurn }

func (o *SwitchTurnOp) Verify(d *Duel) bool {
	return o.Player.Valid() && d.status == StatusPlaying
}

func (o *SwitchTurnOp) Apply(f *Frag) {
	d := f.Duel()
	d.turn++
	d.whoseTurn = o.Player
	f.Emit(SwitchTurnDelta{Turn: d.turn, WhoPlays: o.Player})

	pl := d.players[o.Player]
	maxEnergy := min(d.settings.MaxEnergy, pl.Attributes.Base(attrs.MaxEnergy)+1)
	f.SetAttribute(pl, attrs.MaxEnergy, maxEnergy)
	f.SetAttribute(pl, attrs.Energy, pl.Attributes.Actual(attrs.MaxEnergy))

	for _, u := range d.Units() {
		if u.Player != o.Player {
			continue
		}
		f.SetAttribute(u, attrs.ActionsLeft, u.Attributes.Actual(attrs.ActionsPerTurn))
		f.SetAttribute(u, attrs.InactionTurns, max(0, u.Attributes.Base(attrs.InactionTurns)-1))
	}
	for _, p := range d.players {
		f.SetAttribute(p, attrs.CardsPlayedThisTurn, 0)
	}

	for _, m := range d.modifiers.Tick() {
		f.RemoveModifier(m.ID)
	}
}

// DrawCardsOp moves up to N cards from the top of a deck to the hand, or one
// specific deck card when CardID is set.
type DrawCardsOp struct {
	Player PlayerIndex
	N      int
	CardID int

	// Drawn lists the cards that reached the hand.
	Drawn []int
}

func (*DrawCardsOp) Kind() OpKind { return OpDrawCards }

func (o *DrawCardsOp) Verify(d *Duel) bool {
	if !o.Player.Valid() {
		return false
	}
	if o.CardID != 0 {
		c, ok := d.cards[o.CardID]
		return ok && c.Location == DeckOf(o.Player)
	}
	return o.N > 0 && len(d.players[o.Player].Deck) > 0
}

func (o *DrawCardsOp) Apply(f *Frag) {
	d := f.Duel()
	if o.CardID != 0 {
		o.draw(f, d.cards[o.CardID])
		return
	}
	pl := d.players[o.Player]
	for i := 0; i < o.N && len(pl.Deck) > 0; i++ {
		o.draw(f, d.cards[pl.Deck[len(pl.Deck)-1]])
	}
}

func (o *DrawCardsOp) draw(f *Frag, c *Card) {
	f.Reveal(c, o.Player)
	if f.ApplyFrag(&MoveCardOp{CardID: c.ID, To: HandOf(o.Player), Reason: ability.MoveDrawn}) == Success {
		o.Drawn = append(o.Drawn, c.ID)
	}
}

func (o *DrawCardsOp) ScopeDelta(state ScopeState) Delta {
	return CardDrawScopeDelta{ScopeMark: ScopeMark{State: state}, Player: o.Player}
}

// MoveCardOp moves a card between locations.
type MoveCardOp struct {
	CardID int
	To     CardLocation
	Reason ability.CardMoveKind

	From CardLocation
}

func (*MoveCardOp) Kind() OpKind { return OpMoveCard }

func (o *MoveCardOp) Verify(d *Duel) bool {
	c, ok := d.cards[o.CardID]
	return ok && c.Location != o.To && c.Location != LocDiscarded
}

func (o *MoveCardOp) Apply(f *Frag) {
	d := f.Duel()
	c := d.cards[o.CardID]
	o.From = c.Location

	if p, ok := o.From.Player(); ok {
		pl := d.players[p]
		if o.From.IsHand() {
			pl.Hand = removeID(pl.Hand, c.ID)
		} else {
			pl.Deck = removeID(pl.Deck, c.ID)
		}
	}
	if p, ok := o.To.Player(); ok {
		pl := d.players[p]
		if o.To.IsHand() {
			pl.Hand = append(pl.Hand, c.ID)
		} else {
			pl.Deck = append(pl.Deck, c.ID)
		}
	}
	if o.To == LocDiscarded {
		d.discarded = append(d.discarded, c.ID)
	}
	c.Location = o.To
	f.Emit(MoveCardsDelta{CardIDs: []int{c.ID}, From: o.From, To: o.To})
}

func removeID(ids []int, id int) []int {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

// CreateCardOp creates a new card from a definition. Cards created in a hand are
// revealed to its owner.
type CreateCardOp struct {
	Def      *cards.Definition
	Location CardLocation

	CardID int
}

func (*CreateCardOp) Kind() OpKind { return OpCreateCard }

func (o *CreateCardOp) Verify(d *Duel) bool {
	return o.Def != nil && o.Location != LocDiscarded
}

func (o *CreateCardOp) Apply(f *Frag) {
	d := f.Duel()
	c := d.newCard(o.Def, o.Location)
	o.CardID = c.ID
	if p, ok := o.Location.Player(); ok {
		pl := d.players[p]
		if o.Location.IsHand() {
			pl.Hand = append(pl.Hand, c.ID)
		} else {
			pl.Deck = append(pl.Deck, c.ID)
		}
	}
	f.Emit(CreateCardsDelta{CardIDs: []int{c.ID}, Location: o.Location})
	switch {
	case o.Location.IsHand():
		p, _ := o.Location.Player()
		f.Reveal(c, p)
	case o.Location == LocTemp:
		f.Reveal(c, P1, P2)
	}
}

// RevealCardsOp shows cards to players.
type RevealCardsOp struct {
	CardIDs []int
	To      []PlayerIndex
}

func (*RevealCardsOp) Kind() OpKind { return OpRevealCards }

func (o *RevealCardsOp) Verify(d *Duel) bool {
	for _, id := range o.CardIDs {
		if _, ok := d.cards[id]; !ok {
			return false
		}
	}
	return len(o.CardIDs) > 0 && len(o.To) > 0
}

func (o *RevealCardsOp) Apply(f *Frag) {
	for _, id := range o.CardIDs {
		f.Reveal(f.Duel().cards[id], o.To...)
	}
}

// UseCardOp pays for a card in hand and discards it.
type UseCardOp struct {
	Player PlayerIndex
	CardID int
}

func (*UseCardOp) Kind() OpKind { return OpUseCard }

func (o *UseCardOp) Verify(d *Duel) bool {
	if !o.Player.Valid() {
		return false
	}
	c, ok := d.cards[o.CardID]
	if !ok || c.Location != HandOf(o.Player) {
		return false
	}
	return d.players[o.Player].Attributes.Actual(attrs.Energy) >= c.Attributes.Actual(attrs.Cost)
}

func (o *UseCardOp) Apply(f *Frag) {
	d := f.Duel()
	pl := d.players[o.Player]
	c := d.cards[o.CardID]

	f.SetAttribute(pl, attrs.Energy, pl.Attributes.Actual(attrs.Energy)-c.Attributes.Actual(attrs.Cost))
	f.SetAttribute(pl, attrs.CardsPlayedThisTurn, pl.Attributes.Actual(attrs.CardsPlayedThisTurn)+1)
	f.Reveal(c, P1, P2)
	f.ApplyFrag(&MoveCardOp{CardID: c.ID, To: LocDiscarded, Reason: ability.MovePlayed})
}

// SpawnUnitOp places a unit made from a card on a free cell and attaches its script.
type SpawnUnitOp struct {
	Player   PlayerIndex
	CardID   int
	Position Position
	// Deployed marks units spawned by an ability rather than played from hand.
	Deployed bool

	UnitID int
}

func (*SpawnUnitOp) Kind() OpKind { return OpSpawnUnit }

func (o *SpawnUnitOp) Verify(d *Duel) bool {
	c, ok := d.cards[o.CardID]
	if !ok || !c.IsUnit() {
		return false
	}
	return o.Position.Player == o.Player && d.SlotFree(o.Position)
}

func (o *SpawnUnitOp) Apply(f *Frag) {
	d := f.Duel()
	u := d.newUnit(o.Player, o.Position.Vec, d.cards[o.CardID])
	u.SpawnTurn = d.turn
	u.Deployed = o.Deployed
	d.units[u.ID] = u
	d.players[o.Player].Grid[d.slot(o.Position.Vec)] = u.ID
	o.UnitID = u.ID

	f.Emit(PlaceUnitDelta{Unit: unitView(u), Position: o.Position})

	if d.scripts != nil {
		u.Script = d.scripts.AttachUnit(d, u)
	}
	if u.Script != nil {
		u.Script.PostSpawn(f)
	}
}

// DestroyUnitOp removes a unit from the board, detaches its script and cleans up
// the modifiers bound to it.
type DestroyUnitOp struct {
	UnitID   int
	SourceID int
}

func (*DestroyUnitOp) Kind() OpKind { return OpDestroyUnit }

func (o *DestroyUnitOp) Verify(d *Duel) bool {
	_, ok := d.units[o.UnitID]
	return ok
}

func (o *DestroyUnitOp) Apply(f *Frag) {
	d := f.Duel()
	u := d.units[o.UnitID]
	u.eliminated = true
	delete(d.units, u.ID)
	d.fallen[u.ID] = u
	grid := d.players[u.Player].Grid
	if i := d.slot(u.Position); grid[i] == u.ID {
		grid[i] = 0
	}
	f.Emit(RemoveUnitDelta{UnitIDs: []int{u.ID}})

	d.modifiers.DropTarget(u.ID)
	for _, m := range d.modifiers.BySource(u.ID) {
		f.RemoveModifier(m.ID)
	}

	if u.Script != nil {
		u.Script.Detach()
		u.Script.PostEliminated(f)
	}
}

func (o *DestroyUnitOp) ScopeDelta(state ScopeState) Delta {
	return DeathScopeDelta{ScopeMark: ScopeMark{State: state}, UnitID: o.UnitID, SourceID: o.SourceID}
}

// ConsumeActionOp spends one action of a unit.
type ConsumeActionOp struct {
	UnitID int
}

func (*ConsumeActionOp) Kind() OpKind { return OpConsumeAction }

func (o *ConsumeActionOp) Verify(d *Duel) bool {
	u, ok := d.units[o.UnitID]
	return ok && u.Attributes.Actual(attrs.ActionsLeft) > 0
}

func (o *ConsumeActionOp) Apply(f *Frag) {
	u := f.Duel().units[o.UnitID]
	f.SetAttribute(u, attrs.ActionsLeft, u.Attributes.Base(attrs.ActionsLeft)-1)
}

// SetAttributeOp sets the base value of an attribute.
type SetAttributeOp struct {
	EntityID  int
	Attribute attrs.ID
	Value     int
}

func (*SetAttributeOp) Kind() OpKind { return OpSetAttribute }

func (o *SetAttributeOp) Verify(d *Duel) bool {
	e, ok := d.Entity(o.EntityID)
	return ok && !e.Eliminated() && e.Attribs().Registered(o.Attribute)
}

func (o *SetAttributeOp) Apply(f *Frag) {
	e, _ := f.Duel().Entity(o.EntityID)
	f.SetAttribute(e, o.Attribute, o.Value)
}

// AdjustAttributeOp adds Delta to the base value of an attribute.
type AdjustAttributeOp struct {
	EntityID  int
	Attribute attrs.ID
	Delta     int
}

func (*AdjustAttributeOp) Kind() OpKind { return OpAdjustAttribute }

func (o *AdjustAttributeOp) Verify(d *Duel) bool {
	e, ok := d.Entity(o.EntityID)
	return ok && o.Delta != 0 && !e.Eliminated() && e.Attribs().Registered(o.Attribute)
}

func (o *AdjustAttributeOp) Apply(f *Frag) {
	e, _ := f.Duel().Entity(o.EntityID)
	f.SetAttribute(e, o.Attribute, e.Attribs().Base(o.Attribute)+o.Delta)
}

// ShowMessageOp displays a message to one or both players.
type ShowMessageOp struct {
	Message string
	Player  *PlayerIndex
}

func (*ShowMessageOp) Kind() OpKind          { return OpShowMessage }
func (o *ShowMessageOp) Verify(d *Duel) bool { return o.Message != "" }

func (o *ShowMessageOp) Apply(f *Frag) {
	f.Emit(ShowMessageDelta{Message: o.Message, Player: o.Player})
}
