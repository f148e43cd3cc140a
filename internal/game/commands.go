package game

import (
	"fmt"

	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/game/attrs"
	"go.uber.org/zap"
)

const (
	OpStartGame     OpKind = "startGame"
	OpNextTurn      OpKind = "nextTurn"
	OpPlayUnitCard  OpKind = "playUnitCard"
	OpPlaySpellCard OpKind = "playSpellCard"
	OpUnitAttack    OpKind = "unitAttack"
)

// NoEntity is the chosen entity of spells without an entity requirement. Zero is a
// valid entity id (P1).
const NoEntity = -1

// StartGameOp switches to playing, deals the opening hands and picks the first player.
type StartGameOp struct{}

func (*StartGameOp) Kind() OpKind { return OpStartGame }

func (*StartGameOp) Verify(d *Duel) bool {
	return d.status == StatusAwaitingConnection
}

func (*StartGameOp) Apply(f *Frag) {
	d := f.Duel()
	f.ApplyFrag(&SwitchStatusOp{Status: StatusPlaying})
	for _, p := range []PlayerIndex{P1, P2} {
		if d.settings.StartCards > 0 {
			f.ApplyFrag(&DrawCardsOp{Player: p, N: d.settings.StartCards})
		}
	}
	f.ApplyFrag(&SwitchTurnOp{Player: PlayerIndex(d.rng.IntN(2))})
}

// NextTurnOp hands the turn to the other player, who draws one card.
type NextTurnOp struct{}

func (*NextTurnOp) Kind() OpKind { return OpNextTurn }

func (*NextTurnOp) Verify(d *Duel) bool {
	return d.status == StatusPlaying
}

func (*NextTurnOp) Apply(f *Frag) {
	next := f.Duel().whoseTurn.Other()
	if f.ApplyFrag(&SwitchTurnOp{Player: next}) == Success {
		f.ApplyFrag(&DrawCardsOp{Player: next, N: 1})
	}
}

// PlayUnitCardOp plays a unit card from hand onto a free cell of its owner's grid.
type PlayUnitCardOp struct {
	Player PlayerIndex
	CardID int
	Slot   Vec

	UnitID int
}

func (*PlayUnitCardOp) Kind() OpKind { return OpPlayUnitCard }

func (o *PlayUnitCardOp) Verify(d *Duel) bool {
	if d.status != StatusPlaying || d.whoseTurn != o.Player {
		return false
	}
	c, ok := d.cards[o.CardID]
	if !ok || !c.IsUnit() {
		return false
	}
	use := UseCardOp{Player: o.Player, CardID: o.CardID}
	return use.Verify(d) && d.SlotFree(Position{Player: o.Player, Vec: o.Slot})
}

func (o *PlayUnitCardOp) Apply(f *Frag) {
	if f.ApplyFrag(&UseCardOp{Player: o.Player, CardID: o.CardID}) != Success {
		return
	}
	spawn := &SpawnUnitOp{
		Player:   o.Player,
		CardID:   o.CardID,
		Position: Position{Player: o.Player, Vec: o.Slot},
	}
	if f.ApplyFrag(spawn) == Success {
		o.UnitID = spawn.UnitID
	}
}

func (o *PlayUnitCardOp) ScopeDelta(state ScopeState) Delta {
	return CardPlayScopeDelta{ScopeMark: ScopeMark{State: state}, CardID: o.CardID, Player: o.Player}
}

// PlaySpellCardOp plays a spell card, running its on-play sequence.
type PlaySpellCardOp struct {
	Player       PlayerIndex
	CardID       int
	ChosenEntity int
}

func (*PlaySpellCardOp) Kind() OpKind { return OpPlaySpellCard }

func (o *PlaySpellCardOp) Verify(d *Duel) bool {
	if d.status != StatusPlaying || d.whoseTurn != o.Player || d.scripts == nil {
		return false
	}
	c, ok := d.cards[o.CardID]
	if !ok || c.IsUnit() {
		return false
	}
	use := UseCardOp{Player: o.Player, CardID: o.CardID}
	if !use.Verify(d) {
		return false
	}
	if c.Def.Requirement == cards.RequireSingleEntity {
		e, ok := d.Entity(o.ChosenEntity)
		if !ok || e.Eliminated() || KindOf(o.ChosenEntity) == KindCard {
			return false
		}
	}
	return d.scripts.SpellFeasible(d, o.Player, c, o.ChosenEntity)
}

func (o *PlaySpellCardOp) Apply(f *Frag) {
	d := f.Duel()
	if f.ApplyFrag(&UseCardOp{Player: o.Player, CardID: o.CardID}) != Success {
		return
	}
	d.scripts.PlaySpell(f, o.Player, d.cards[o.CardID], o.ChosenEntity)
}

func (o *PlaySpellCardOp) ScopeDelta(state ScopeState) Delta {
	return CardPlayScopeDelta{ScopeMark: ScopeMark{State: state}, CardID: o.CardID, Player: o.Player}
}

// UnitAttackOp is the attack command of a player: the attack followed by spending
// one action of the attacker.
type UnitAttackOp struct {
	Player   PlayerIndex
	UnitID   int
	TargetID int
}

func (*UnitAttackOp) Kind() OpKind { return OpUnitAttack }

func (o *UnitAttackOp) Verify(d *Duel) bool {
	if d.status != StatusPlaying || d.whoseTurn != o.Player {
		return false
	}
	u, ok := d.units[o.UnitID]
	if !ok || u.Player != o.Player || !CanAct(u) {
		return false
	}
	attack := AttackUnitOp{UnitID: o.UnitID, TargetID: o.TargetID}
	return attack.Verify(d)
}

func (o *UnitAttackOp) Apply(f *Frag) {
	if f.ApplyFrag(&AttackUnitOp{UnitID: o.UnitID, TargetID: o.TargetID}) != Success {
		return
	}
	f.ApplyFrag(&ConsumeActionOp{UnitID: o.UnitID})
}

// CanAct reports whether a unit may receive a command this turn.
func CanAct(u *Unit) bool {
	return u.Attributes.Actual(attrs.ActionsLeft) > 0 && u.Attributes.Actual(attrs.InactionTurns) == 0
}

// CommandKind names a player command.
type CommandKind string

const (
	CommandEndTurn CommandKind = "endTurn"
	CommandUseCard CommandKind = "useCard"
	CommandUseUnit CommandKind = "useUnit"
)

// Command is an external player request.
type Command struct {
	Kind           CommandKind
	Player         PlayerIndex
	CardID         int
	ChosenSlots    []Vec
	ChosenEntities []int
	UnitID         int
	TargetID       int
}

// Start begins the duel. It can only run once.
func (d *Duel) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.faulted {
		return ErrDuelFaulted
	}
	if d.status != StatusAwaitingConnection {
		return fmt.Errorf("failed to start duel: %w", ErrIllegalCommand)
	}
	if err := d.run(&StartGameOp{}); err != nil {
		return fmt.Errorf("failed to start duel: %w", err)
	}
	d.logger.Info("duel started", zap.Stringer("first_player", d.whoseTurn))
	if d.recorder != nil {
		d.recorder.recordStart(d)
	}
	return nil
}

// EndTurn ends the turn of p.
func (d *Duel) EndTurn(p PlayerIndex) error {
	return d.Execute(Command{Kind: CommandEndTurn, Player: p})
}

// UseCard plays a card from the hand of p.
func (d *Duel) UseCard(p PlayerIndex, cardID int, slots []Vec, entities []int) error {
	return d.Execute(Command{Kind: CommandUseCard, Player: p, CardID: cardID, ChosenSlots: slots, ChosenEntities: entities})
}

// UseUnit makes a unit of p attack an entity.
func (d *Duel) UseUnit(p PlayerIndex, unitID, targetID int) error {
	return d.Execute(Command{Kind: CommandUseUnit, Player: p, UnitID: unitID, TargetID: targetID})
}

// Execute runs a command as one mutation.
func (d *Duel) Execute(cmd Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.execute(cmd)
}

// Run applies op as a standalone mutation outside the command flow, for scenario
// setup and tooling. It is not recorded in replays.
func (d *Duel) Run(op Op) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.faulted {
		return ErrDuelFaulted
	}
	return d.run(op)
}

// Submit runs a command only if iteration matches the current iteration, rejecting
// stale or duplicate requests.
func (d *Duel) Submit(iteration int, cmd Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if iteration != d.iteration {
		d.logger.Debug("rejecting stale command",
			zap.Int("iteration", iteration),
			zap.Int("current", d.iteration),
			zap.String("command", string(cmd.Kind)),
		)
		return ErrIterationMismatch
	}
	return d.execute(cmd)
}

func (d *Duel) execute(cmd Command) error {
	if d.faulted {
		return ErrDuelFaulted
	}
	switch d.status {
	case StatusEnded:
		return ErrDuelEnded
	case StatusAwaitingConnection:
		return ErrNotPlaying
	}
	if !cmd.Player.Valid() {
		return fmt.Errorf("%w: invalid player %d", ErrProtocolViolation, cmd.Player)
	}
	if cmd.Player != d.whoseTurn {
		return ErrNotYourTurn
	}

	root, err := d.commandOp(cmd)
	if err != nil {
		return err
	}
	if err := d.run(root); err != nil {
		return err
	}
	if d.recorder != nil {
		d.recorder.recordCommand(d, cmd)
	}
	return nil
}

func (d *Duel) commandOp(cmd Command) (Op, error) {
	switch cmd.Kind {
	case CommandEndTurn:
		return &NextTurnOp{}, nil
	case CommandUseCard:
		c, ok := d.cards[cmd.CardID]
		if !ok || c.Location != HandOf(cmd.Player) {
			return nil, fmt.Errorf("card %d: %w", cmd.CardID, ErrNotFound)
		}
		if c.IsUnit() {
			if len(cmd.ChosenSlots) != 1 {
				return nil, fmt.Errorf("unit card needs one slot: %w", ErrInvalidChoice)
			}
			return &PlayUnitCardOp{Player: cmd.Player, CardID: c.ID, Slot: cmd.ChosenSlots[0]}, nil
		}
		chosen := NoEntity
		if c.Def.Requirement == cards.RequireSingleEntity {
			if len(cmd.ChosenEntities) != 1 {
				return nil, fmt.Errorf("spell needs one entity: %w", ErrInvalidChoice)
			}
			chosen = cmd.ChosenEntities[0]
		}
		return &PlaySpellCardOp{Player: cmd.Player, CardID: c.ID, ChosenEntity: chosen}, nil
	case CommandUseUnit:
		u, ok := d.units[cmd.UnitID]
		if !ok || u.Player != cmd.Player {
			return nil, fmt.Errorf("unit %d: %w", cmd.UnitID, ErrNotFound)
		}
		return &UnitAttackOp{Player: cmd.Player, UnitID: u.ID, TargetID: cmd.TargetID}, nil
	}
	return nil, fmt.Errorf("%w: unknown command %q", ErrProtocolViolation, cmd.Kind)
}

// run applies root as one mutation. Panics are contained to this duel.
func (d *Duel) run(root Op) (err error) {
	m := newMutation(d)
	d.mutation = m
	defer func() {
		d.mutation = nil
		if r := recover(); r != nil {
			d.fault(r)
			err = ErrDuelFaulted
		}
	}()

	if m.apply(-1, root) != Success {
		return fmt.Errorf("%s: %w", root.Kind(), ErrIllegalCommand)
	}
	m.flush()

	if len(m.deltas) > 0 {
		d.iteration++
		d.publish(m.deltas)
	}
	d.logger.Debug("mutation applied",
		zap.String("op", string(root.Kind())),
		zap.Int("fragments", len(m.frags)),
		zap.Int("deltas", len(m.deltas)),
		zap.Int("triggers", m.totalTriggers),
		zap.Int("iteration", d.iteration),
	)
	return nil
}

func (d *Duel) fault(r any) {
	d.logger.Error("duel faulted, ending duel",
		zap.Any("panic", r),
		zap.Stack("stack"),
	)
	d.faulted = true
	if d.status == StatusEnded {
		return
	}
	d.status = StatusEnded
	d.iteration++
	d.publish([]Delta{SwitchStatusDelta{Status: StatusEnded}})
}

// Faulted reports whether the duel was stopped by an internal error.
func (d *Duel) Faulted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.faulted
}
