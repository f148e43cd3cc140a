package game

import (
	"fmt"

	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/game/ability"
	"github.com/cardlab/duel-server-go/internal/game/attrs"
)

// PlayerIndex is the seat of a player in a duel.
type PlayerIndex int

const (
	P1 PlayerIndex = 0
	P2 PlayerIndex = 1
)

// Other returns the opponent seat.
func (p PlayerIndex) Other() PlayerIndex {
	return 1 - p
}

// Valid reports whether p is P1 or P2.
func (p PlayerIndex) Valid() bool {
	return p == P1 || p == P2
}

func (p PlayerIndex) String() string {
	return fmt.Sprintf("P%d", int(p)+1)
}

// EntityKind is encoded in the low bits of every entity id.
type EntityKind int

const (
	KindPlayer EntityKind = 0
	KindCard   EntityKind = 1
	KindUnit   EntityKind = 2
)

const kindBits = 4

// KindOf extracts the entity kind from an id.
func KindOf(id int) EntityKind {
	return EntityKind(id & (1<<kindBits - 1))
}

func makeID(seq int, kind EntityKind) int {
	return seq<<kindBits | int(kind)
}

// PlayerID returns the entity id of a player seat.
func PlayerID(p PlayerIndex) int {
	return makeID(int(p), KindPlayer)
}

// Vec is a cell of a player's unit grid.
type Vec struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns v offset by (dx, dy).
func (v Vec) Add(dx, dy int) Vec {
	return Vec{X: v.X + dx, Y: v.Y + dy}
}

// Position is a grid cell on one player's side of the board.
type Position struct {
	Player PlayerIndex `json:"player"`
	Vec    Vec         `json:"vec"`
}

// Entity is anything with an id and attributes: players, cards and units.
type Entity interface {
	EntityID() int
	Attribs() *attrs.Set
	Eliminated() bool
	// Owner is the controlling player, if any.
	Owner() (PlayerIndex, bool)
}

// Player holds a seat's core, energy, cards and unit grid.
type Player struct {
	Index      PlayerIndex
	ID         int
	Attributes *attrs.Set
	Hand       []int
	// Deck is ordered bottom to top.
	Deck       []int
	// Grid holds unit ids indexed by x + y*UnitsX; zero is a free cell.
	Grid       []int
}

func (p *Player) EntityID() int              { return p.ID }
func (p *Player) Attribs() *attrs.Set        { return p.Attributes }
func (p *Player) Owner() (PlayerIndex, bool) { return p.Index, true }

// Eliminated reports whether the player's core is destroyed.
func (p *Player) Eliminated() bool {
	return p.Attributes.Actual(attrs.CoreHealth) <= 0
}

// CardLocation is where a card currently sits.
type CardLocation string

const (
	LocDeckP1    CardLocation = "deckP1"
	LocDeckP2    CardLocation = "deckP2"
	LocHandP1    CardLocation = "handP1"
	LocHandP2    CardLocation = "handP2"
	LocDiscarded CardLocation = "discarded"
	LocTemp      CardLocation = "temp"
)

// HandOf returns the hand location of a player.
func HandOf(p PlayerIndex) CardLocation {
	if p == P1 {
		return LocHandP1
	}
	return LocHandP2
}

// DeckOf returns the deck location of a player.
func DeckOf(p PlayerIndex) CardLocation {
	if p == P1 {
		return LocDeckP1
	}
	return LocDeckP2
}

// Player returns the player owning the location.
func (l CardLocation) Player() (PlayerIndex, bool) {
	switch l {
	case LocDeckP1, LocHandP1:
		return P1, true
	case LocDeckP2, LocHandP2:
		return P2, true
	}
	return 0, false
}

// IsHand reports whether the location is a hand.
func (l CardLocation) IsHand() bool {
	return l == LocHandP1 || l == LocHandP2
}

// IsDeck reports whether the location is a deck.
func (l CardLocation) IsDeck() bool {
	return l == LocDeckP1 || l == LocDeckP2
}

// Card is an instance of a card definition inside a duel.
type Card struct {
	ID         int
	Def        *cards.Definition
	Location   CardLocation
	Attributes *attrs.Set
	// Archetype is the normalized archetype tag.
	Archetype  string
	RevealedTo [2]bool
	// Virtual cards only exist to evaluate filters against catalog entries.
	Virtual    bool
}

func (c *Card) EntityID() int       { return c.ID }
func (c *Card) Attribs() *attrs.Set { return c.Attributes }

// Eliminated reports whether the card was discarded.
func (c *Card) Eliminated() bool {
	return c.Location == LocDiscarded
}

// Owner is the player whose deck or hand holds the card.
func (c *Card) Owner() (PlayerIndex, bool) {
	return c.Location.Player()
}

// IsUnit reports whether the card spawns a unit.
func (c *Card) IsUnit() bool {
	return c.Def.Type == ability.CardUnit
}

// Unit is a card spawned on the board.
type Unit struct {
	ID          int
	Player      PlayerIndex
	Position    Vec
	Attributes  *attrs.Set
	Origin      *cards.Definition
	// OriginStats are the attributes of the card at spawn time.
	OriginStats *attrs.Set
	Archetype   string
	Script      EntityScript
	SpawnTurn   int
	// Deployed units were spawned by an ability rather than played from hand.
	Deployed    bool

	eliminated bool
}

func (u *Unit) EntityID() int              { return u.ID }
func (u *Unit) Attribs() *attrs.Set        { return u.Attributes }
func (u *Unit) Owner() (PlayerIndex, bool) { return u.Player, true }
func (u *Unit) Eliminated() bool           { return u.eliminated }

// Wounded reports whether health is below maxHealth.
func (u *Unit) Wounded() bool {
	return u.Attributes.Actual(attrs.Health) < u.Attributes.Actual(attrs.MaxHealth)
}

// EntityScript is a script instance attached to a unit.
type EntityScript interface {
	// PostSpawn runs once the unit is placed, from inside the spawn fragment.
	PostSpawn(f *Frag)
	// PostEliminated runs from inside the destroy fragment, after listeners are revoked.
	PostEliminated(f *Frag)
	// Detach revokes every listener of the instance. It must be idempotent.
	Detach()
}

// ScriptHost compiles card scripts into live instances.
type ScriptHost interface {
	AttachUnit(d *Duel, u *Unit) EntityScript
	// SpellFeasible dry-runs the on-play sequence of a spell card.
	SpellFeasible(d *Duel, owner PlayerIndex, c *Card, chosenEntity int) bool
	// PlaySpell runs the on-play sequence of a spell card inside f.
	PlaySpell(f *Frag, owner PlayerIndex, c *Card, chosenEntity int) bool
}
