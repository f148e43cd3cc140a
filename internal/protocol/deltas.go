package protocol

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/cardlab/duel-server-go/internal/game"
)

// Delta is a game delta tagged with its type on the wire:
// {"type": "damageScope", "state": "start", ...}.
type Delta struct {
	game.Delta
}

func (d Delta) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(d.Delta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode delta %s: %w", d.DeltaType(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("delta %s is not an object", d.DeltaType())
	}
	head := fmt.Sprintf(`{"type":%q`, d.DeltaType())
	if _, scoped := d.Delta.(game.ScopeDelta); scoped {
		head += `,"isScope":true`
	}
	if len(body) > 2 {
		head += ","
	}
	return append([]byte(head), body[1:]...), nil
}

// ForViewer returns the deltas viewer may receive. Card reveals addressed to other
// seats and messages meant for the other player are dropped. Spectators only get
// reveals addressed to both seats.
func ForViewer(deltas []game.Delta, viewer game.PlayerIndex) []Delta {
	out := make([]Delta, 0, len(deltas))
	for _, dl := range deltas {
		switch v := dl.(type) {
		case game.RevealCardsDelta:
			if !revealedTo(v.To, viewer) {
				continue
			}
		case game.ShowMessageDelta:
			if v.Player != nil && *v.Player != viewer {
				continue
			}
		}
		out = append(out, Delta{dl})
	}
	return out
}

func revealedTo(to []game.PlayerIndex, viewer game.PlayerIndex) bool {
	if viewer.Valid() {
		return slices.Contains(to, viewer)
	}
	return slices.Contains(to, game.P1) && slices.Contains(to, game.P2)
}

// Welcome builds the welcome message of viewer from a duel snapshot.
func Welcome(s game.Snapshot) DuelWelcome {
	return DuelWelcome{
		State:        s.State,
		Iteration:    s.Iteration,
		Status:       s.Status,
		Propositions: s.Propositions,
		You:          s.You,
	}
}

// Mutated builds the duelMutated message viewer receives for a mutation.
func Mutated(ev game.MutationEvent, viewer game.PlayerIndex) DuelMutated {
	msg := DuelMutated{
		Deltas:    ForViewer(ev.Deltas, viewer),
		WhoseTurn: ev.WhoseTurn,
		Iteration: ev.Iteration,
	}
	if viewer.Valid() {
		msg.State = ev.Views[viewer]
		msg.Propositions = ev.Propositions[viewer]
	} else {
		msg.State = ev.Spectator
		msg.Propositions = game.Propositions{Card: []game.CardProposition{}, Unit: []game.UnitProposition{}}
	}
	return msg
}
