package game

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/game/ability"
	"github.com/cardlab/duel-server-go/internal/game/attrs"
	"github.com/cardlab/duel-server-go/internal/game/effects"
	"github.com/cardlab/duel-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// Status is the lifecycle stage of a duel.
type Status string

const (
	StatusAwaitingConnection Status = "awaitingConnection"
	StatusPlaying            Status = "playing"
	StatusEnded              Status = "ended"
)

// Settings configures one duel.
type Settings struct {
	MaxCoreHealth int
	MaxEnergy     int
	StartCards    int
	UnitsX        int
	UnitsY        int
	// Seed feeds the duel's random generator; equal seeds replay identically.
	Seed  uint64
	Decks [2][]cards.Ref
}

// DefaultSettings returns the standard rules without decks.
func DefaultSettings() Settings {
	return Settings{
		MaxCoreHealth: 35,
		MaxEnergy:     999,
		StartCards:    5,
		UnitsX:        4,
		UnitsY:        2,
	}
}

func (s Settings) validate() error {
	if s.UnitsX <= 0 || s.UnitsY <= 0 {
		return fmt.Errorf("invalid grid size %dx%d", s.UnitsX, s.UnitsY)
	}
	if s.MaxCoreHealth <= 0 {
		return fmt.Errorf("invalid max core health %d", s.MaxCoreHealth)
	}
	if s.MaxEnergy < 0 || s.StartCards < 0 {
		return fmt.Errorf("invalid energy or start cards")
	}
	return nil
}

// CardSource resolves card definitions. *cards.Catalog implements it.
type CardSource interface {
	Get(ref cards.Ref) (*cards.Definition, bool)
	Refs() []cards.Ref
}

// Listeners is the listener registry of a duel.
type Listeners = rules.Registry[*Frag]

// Duel is one independent two-player simulation. All exported methods are safe for
// concurrent use; mutations are serialized.
type Duel struct {
	mu sync.Mutex

	id       string
	settings Settings
	attrDefs attrs.Catalog
	catalog  CardSource
	scripts  ScriptHost
	logger   *zap.Logger
	src      *rand.PCG
	rng      *rand.Rand

	players   [2]*Player
	cards     map[int]*Card
	units     map[int]*Unit
	fallen    map[int]*Unit
	discarded []int
	status    Status
	winner    *PlayerIndex
	turn      int
	whoseTurn PlayerIndex
	iteration int
	faulted   bool

	cardSeq int
	unitSeq int
	modSeq  int

	listeners *Listeners
	modifiers *effects.Registry
	mutation  *Mutation

	observers   []observerEntry
	observerSeq int
	recorder    *Recorder
}

// NewDuel builds a duel in the awaitingConnection state with shuffled decks.
// scripts may be nil, in which case cards have no abilities.
func NewDuel(id string, settings Settings, catalog CardSource, scripts ScriptHost, logger *zap.Logger) (*Duel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid duel settings: %w", err)
	}

	src := rand.NewPCG(settings.Seed, settings.Seed^0x9e3779b97f4a7c15)
	d := &Duel{
		id:        id,
		settings:  settings,
		attrDefs:  attrs.NewCatalog(settings.MaxCoreHealth, settings.MaxEnergy),
		catalog:   catalog,
		scripts:   scripts,
		logger:    logger.With(zap.String("duel_id", id)),
		src:       src,
		rng:       rand.New(src),
		cards:     make(map[int]*Card),
		units:     make(map[int]*Unit),
		fallen:    make(map[int]*Unit),
		status:    StatusAwaitingConnection,
		listeners: rules.NewRegistry[*Frag](),
		modifiers: effects.NewRegistry(),
	}

	for _, p := range []PlayerIndex{P1, P2} {
		pl := &Player{
			Index:      p,
			ID:         PlayerID(p),
			Attributes: attrs.NewSet(),
			Grid:       make([]int, settings.UnitsX*settings.UnitsY),
		}
		for _, id := range []attrs.ID{attrs.CoreHealth, attrs.Energy, attrs.MaxEnergy, attrs.CardsPlayedThisTurn} {
			pl.Attributes.Register(d.attrDefs[id])
		}
		d.players[p] = pl

		for _, ref := range settings.Decks[p] {
			def, ok := d.lookup(ref)
			if !ok {
				return nil, fmt.Errorf("deck of %s: unknown card %q", p, ref)
			}
			c := d.newCard(def, DeckOf(p))
			pl.Deck = append(pl.Deck, c.ID)
		}
		d.rng.Shuffle(len(pl.Deck), func(i, j int) {
			pl.Deck[i], pl.Deck[j] = pl.Deck[j], pl.Deck[i]
		})
	}
	return d, nil
}

func (d *Duel) lookup(ref cards.Ref) (*cards.Definition, bool) {
	if d.catalog == nil {
		return nil, false
	}
	return d.catalog.Get(ref)
}

func (d *Duel) newCard(def *cards.Definition, loc CardLocation) *Card {
	d.cardSeq++
	c := NewVirtualCard(def, d.attrDefs)
	c.ID = makeID(d.cardSeq, KindCard)
	c.Location = loc
	c.Virtual = false
	d.cards[c.ID] = c
	return c
}

// NewVirtualCard builds a card that is not part of any duel, used to evaluate
// filters against catalog entries.
func NewVirtualCard(def *cards.Definition, defs attrs.Catalog) *Card {
	c := &Card{
		Def:        def,
		Location:   LocTemp,
		Attributes: attrs.NewSet(),
		Archetype:  cards.NormalizeArchetype(def.Archetype),
		Virtual:    true,
	}
	mustInit(c.Attributes, defs, attrs.Cost, def.Cost)
	if def.Type == ability.CardUnit {
		mustInit(c.Attributes, defs, attrs.Attack, def.Attack)
		mustInit(c.Attributes, defs, attrs.Health, def.Health)
	}
	return c
}

func (d *Duel) newUnit(owner PlayerIndex, pos Vec, from *Card) *Unit {
	d.unitSeq++
	u := &Unit{
		ID:          makeID(d.unitSeq, KindUnit),
		Player:      owner,
		Position:    pos,
		Attributes:  attrs.NewSet(),
		Origin:      from.Def,
		OriginStats: from.Attributes.Clone(),
		Archetype:   from.Archetype,
	}
	health := from.Attributes.Actual(attrs.Health)
	mustInit(u.Attributes, d.attrDefs, attrs.Attack, from.Attributes.Actual(attrs.Attack))
	mustInit(u.Attributes, d.attrDefs, attrs.Health, health)
	mustInit(u.Attributes, d.attrDefs, attrs.MaxHealth, health)
	mustInit(u.Attributes, d.attrDefs, attrs.ActionsLeft, 0)
	mustInit(u.Attributes, d.attrDefs, attrs.ActionsPerTurn, 1)
	mustInit(u.Attributes, d.attrDefs, attrs.InactionTurns, 1)
	return u
}

// mustInit registers an attribute every entity of its kind carries. The
// attribute catalog defines all of them, so a failure is a programming error.
func mustInit(s *attrs.Set, defs attrs.Catalog, id attrs.ID, base int) {
	if err := s.Init(defs, id, base); err != nil {
		panic(err)
	}
}

func (d *Duel) nextModifierID() int {
	d.modSeq++
	return d.modSeq
}

// ID returns the duel id.
func (d *Duel) ID() string { return d.id }

// Settings returns the duel settings.
func (d *Duel) Settings() Settings { return d.settings }

// AttributeDefinitions returns the attribute catalog of the duel.
func (d *Duel) AttributeDefinitions() attrs.Catalog { return d.attrDefs }

// Catalog returns the card source used for decks and generated cards.
func (d *Duel) Catalog() CardSource { return d.catalog }

// Logger returns the duel-scoped logger.
func (d *Duel) Logger() *zap.Logger { return d.logger }

// Rand returns the duel-owned random generator. It must only be used while mutating
// or dry-running this duel.
func (d *Duel) Rand() *rand.Rand { return d.rng }

// Listeners returns the listener registry.
func (d *Duel) Listeners() *Listeners { return d.listeners }

// Modifiers returns the standing modifiers.
func (d *Duel) Modifiers() *effects.Registry { return d.modifiers }

// CurrentMutation returns the mutation in progress, or nil outside of one.
func (d *Duel) CurrentMutation() *Mutation { return d.mutation }

// Status returns the lifecycle stage.
func (d *Duel) Status() Status { return d.status }

// Winner returns the winner once the duel ended.
func (d *Duel) Winner() (PlayerIndex, bool) {
	if d.winner == nil {
		return 0, false
	}
	return *d.winner, true
}

// Turn returns the turn counter.
func (d *Duel) Turn() int { return d.turn }

// WhoseTurn returns the player whose turn it is.
func (d *Duel) WhoseTurn() PlayerIndex { return d.whoseTurn }

// Iteration returns the number of mutations that produced deltas.
func (d *Duel) Iteration() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.iteration
}

// Player returns a seat.
func (d *Duel) Player(p PlayerIndex) *Player { return d.players[p] }

// Card returns a card by id.
func (d *Duel) Card(id int) (*Card, bool) {
	c, ok := d.cards[id]
	return c, ok
}

// Unit returns a unit by id. Eliminated units are not returned.
func (d *Duel) Unit(id int) (*Unit, bool) {
	u, ok := d.units[id]
	return u, ok
}

// FallenUnit returns a unit by id, including units destroyed earlier in the duel.
func (d *Duel) FallenUnit(id int) (*Unit, bool) {
	if u, ok := d.units[id]; ok {
		return u, true
	}
	u, ok := d.fallen[id]
	return u, ok
}

// Entity returns any entity by id.
func (d *Duel) Entity(id int) (Entity, bool) {
	switch KindOf(id) {
	case KindPlayer:
		p := id >> kindBits
		if p < 0 || p > 1 {
			return nil, false
		}
		return d.players[p], true
	case KindCard:
		if c, ok := d.cards[id]; ok {
			return c, true
		}
	case KindUnit:
		if u, ok := d.units[id]; ok {
			return u, true
		}
	}
	return nil, false
}

// Units returns every unit on the board, ordered by id.
func (d *Duel) Units() []*Unit {
	out := make([]*Unit, 0, len(d.units))
	for _, u := range d.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Hand returns the cards in a player's hand, in hand order.
func (d *Duel) Hand(p PlayerIndex) []*Card {
	return d.resolveCards(d.players[p].Hand)
}

// DeckCards returns the cards in a player's deck, bottom to top.
func (d *Duel) DeckCards(p PlayerIndex) []*Card {
	return d.resolveCards(d.players[p].Deck)
}

func (d *Duel) resolveCards(ids []int) []*Card {
	out := make([]*Card, 0, len(ids))
	for _, id := range ids {
		if c, ok := d.cards[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ValidVec reports whether v is inside the grid.
func (d *Duel) ValidVec(v Vec) bool {
	return v.X >= 0 && v.Y >= 0 && v.X < d.settings.UnitsX && v.Y < d.settings.UnitsY
}

func (d *Duel) slot(v Vec) int {
	return v.X + v.Y*d.settings.UnitsX
}

// UnitAt returns the unit occupying a cell.
func (d *Duel) UnitAt(pos Position) (*Unit, bool) {
	if !pos.Player.Valid() || !d.ValidVec(pos.Vec) {
		return nil, false
	}
	id := d.players[pos.Player].Grid[d.slot(pos.Vec)]
	if id == 0 {
		return nil, false
	}
	return d.Unit(id)
}

// SlotFree reports whether a cell exists and is empty.
func (d *Duel) SlotFree(pos Position) bool {
	if !pos.Player.Valid() || !d.ValidVec(pos.Vec) {
		return false
	}
	return d.players[pos.Player].Grid[d.slot(pos.Vec)] == 0
}

// FreeSlots returns the empty cells of a player, row by row.
func (d *Duel) FreeSlots(p PlayerIndex) []Vec {
	var out []Vec
	for y := 0; y < d.settings.UnitsY; y++ {
		for x := 0; x < d.settings.UnitsX; x++ {
			v := Vec{X: x, Y: y}
			if d.players[p].Grid[d.slot(v)] == 0 {
				out = append(out, v)
			}
		}
	}
	return out
}
