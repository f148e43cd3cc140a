package game

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation marks stale or malformed commands. They are logged and ignored.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrIterationMismatch is returned by Submit for requests built on an outdated state.
	ErrIterationMismatch = fmt.Errorf("%w: iteration mismatch", ErrProtocolViolation)
	// ErrNotPlaying is returned for commands sent while the duel is not in progress.
	ErrNotPlaying = errors.New("duel is not in progress")
	// ErrDuelEnded is returned for commands sent after the duel ended.
	ErrDuelEnded = errors.New("duel has ended")
	// ErrNotYourTurn is returned when a player acts outside their turn.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrNotFound is returned when a command references an unknown card or unit.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidChoice is returned when the chosen slots or entities do not fit the card.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrIllegalCommand is returned when the root fragment of a command fails verification.
	ErrIllegalCommand = errors.New("illegal command")
	// ErrDuelFaulted is returned once an internal invariant broke inside this duel.
	ErrDuelFaulted = errors.New("duel faulted")
	// ErrDuelNotFound is returned by the manager for unknown duel ids.
	ErrDuelNotFound = errors.New("duel not found")
)
