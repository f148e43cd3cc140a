package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cardlab/duel-server-go/internal/game"
)

// DuelWelcome is the first message of a connection.
type DuelWelcome struct {
	State        game.StateView    `json:"state"`
	Iteration    int               `json:"iteration"`
	Status       game.Status       `json:"status"`
	Propositions game.Propositions `json:"propositions"`
	You          game.PlayerIndex  `json:"you"`
}

// DuelMutated carries the deltas of one mutation and the resulting state.
type DuelMutated struct {
	Deltas       []Delta           `json:"deltas"`
	State        game.StateView    `json:"state"`
	WhoseTurn    game.PlayerIndex  `json:"whoseTurn"`
	Iteration    int               `json:"iteration"`
	Propositions game.Propositions `json:"propositions"`
}

// DuelRequestAck confirms an accepted request. It follows the duelMutated of that request.
type DuelRequestAck struct {
	RequestID int `json:"requestId"`
}

// DuelRequestFailed rejects a request.
type DuelRequestFailed struct {
	RequestID int    `json:"requestId"`
	Reason    string `json:"reason"`
}

// RequestHeader is carried by every client request. Iteration must equal the
// iteration of the last state the client received.
type RequestHeader struct {
	RequestID int `json:"requestId"`
	Iteration int `json:"iteration"`
}

// DuelEndTurn asks to end the sender's turn.
type DuelEndTurn struct {
	Header RequestHeader `json:"header"`
}

// DuelUseCardProposition plays a card from the sender's hand.
type DuelUseCardProposition struct {
	Header         RequestHeader   `json:"header"`
	CardID         int             `json:"cardId"`
	ChosenSlots    []game.Position `json:"chosenSlots"`
	ChosenEntities []int           `json:"chosenEntities"`
}

// DuelUseUnitProposition makes a unit of the sender act on an entity.
type DuelUseUnitProposition struct {
	Header         RequestHeader `json:"header"`
	UnitID         int           `json:"unitId"`
	ChosenEntityID int           `json:"chosenEntityId"`
}

// Request is a decoded client request bound to the seat that sent it.
type Request struct {
	Header  RequestHeader
	Command game.Command
}

// ParseRequest decodes an inbound envelope into a command of player.
func ParseRequest(env Envelope, player game.PlayerIndex) (Request, error) {
	switch env.Type {
	case MsgDuelEndTurn:
		var msg DuelEndTurn
		if err := unmarshal(env, &msg); err != nil {
			return Request{}, err
		}
		return Request{
			Header:  msg.Header,
			Command: game.Command{Kind: game.CommandEndTurn, Player: player},
		}, nil

	case MsgDuelUseCardProposition:
		var msg DuelUseCardProposition
		if err := unmarshal(env, &msg); err != nil {
			return Request{}, err
		}
		slots := make([]game.Vec, 0, len(msg.ChosenSlots))
		for _, pos := range msg.ChosenSlots {
			if pos.Player != player {
				return Request{Header: msg.Header}, fmt.Errorf("slot not owned by player: %w", game.ErrInvalidChoice)
			}
			slots = append(slots, pos.Vec)
		}
		return Request{
			Header: msg.Header,
			Command: game.Command{
				Kind:           game.CommandUseCard,
				Player:         player,
				CardID:         msg.CardID,
				ChosenSlots:    slots,
				ChosenEntities: msg.ChosenEntities,
			},
		}, nil

	case MsgDuelUseUnitProposition:
		var msg DuelUseUnitProposition
		if err := unmarshal(env, &msg); err != nil {
			return Request{}, err
		}
		return Request{
			Header: msg.Header,
			Command: game.Command{
				Kind:     game.CommandUseUnit,
				Player:   player,
				UnitID:   msg.UnitID,
				TargetID: msg.ChosenEntityID,
			},
		}, nil
	}
	return Request{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
}

func unmarshal(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return nil
}

// Reason turns a command error into the text of a duelRequestFailed message.
func Reason(err error) string {
	switch {
	case errors.Is(err, game.ErrIterationMismatch):
		return "Iteration mismatch"
	case errors.Is(err, game.ErrNotYourTurn):
		return "Not your turn"
	case errors.Is(err, game.ErrNotFound):
		return "Entity not found"
	case errors.Is(err, game.ErrInvalidChoice):
		return "Invalid choice"
	case errors.Is(err, game.ErrIllegalCommand):
		return "Illegal move"
	case errors.Is(err, game.ErrNotPlaying):
		return "Duel not started"
	case errors.Is(err, game.ErrDuelEnded):
		return "Duel ended"
	case errors.Is(err, game.ErrDuelFaulted):
		return "Duel aborted"
	case errors.Is(err, game.ErrProtocolViolation):
		return "Invalid request"
	}
	return "Internal error"
}
