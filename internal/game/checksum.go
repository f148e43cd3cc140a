package game

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/cardlab/duel-server-go/internal/game/attrs"
	"golang.org/x/crypto/blake2b"
)

// Checksum returns a BLAKE2b-256 digest of the full duel state, including hidden
// cards, standing modifiers and the random generator position. Two duels with the
// same seed and command history have the same checksum.
func (d *Duel) Checksum() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checksum()
}

func (d *Duel) checksum() string {
	sum := blake2b.Sum256([]byte(d.canonical()))
	return hex.EncodeToString(sum[:])
}

// canonical renders the state in a fixed order independent of map iteration.
func (d *Duel) canonical() string {
	var buf bytes.Buffer

	winner := "-"
	if d.winner != nil {
		winner = d.winner.String()
	}
	fmt.Fprintf(&buf, "DUEL:%s|%s|%d|%s|%s|%t\n", d.id, d.status, d.turn, d.whoseTurn, winner, d.faulted)

	if state, err := d.src.MarshalBinary(); err == nil {
		fmt.Fprintf(&buf, "RNG:%x\n", state)
	}

	for _, p := range d.players {
		fmt.Fprintf(&buf, "PLAYER:%d|%s\n", p.ID, renderAttrs(p.Attributes))
		fmt.Fprintf(&buf, "  HAND:%s\n", joinInts(p.Hand))
		fmt.Fprintf(&buf, "  DECK:%s\n", joinInts(p.Deck))
		fmt.Fprintf(&buf, "  GRID:%s\n", joinInts(p.Grid))
	}

	ids := make([]int, 0, len(d.cards))
	for id := range d.cards {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		c := d.cards[id]
		fmt.Fprintf(&buf, "CARD:%d|%s|%s|%t,%t|%s\n",
			c.ID, c.Def.Ref, c.Location, c.RevealedTo[P1], c.RevealedTo[P2], renderAttrs(c.Attributes))
	}

	for _, u := range d.Units() {
		fmt.Fprintf(&buf, "UNIT:%d|%s|%d,%d|%s|%s|%d|%t|%s\n",
			u.ID, u.Player, u.Position.X, u.Position.Y, u.Origin.Ref, u.Archetype,
			u.SpawnTurn, u.Deployed, renderAttrs(u.Attributes))
	}

	fmt.Fprintf(&buf, "DISCARDED:%s\n", joinInts(d.discarded))

	for _, m := range d.modifiers.List() {
		fmt.Fprintf(&buf, "MOD:%d|%s|%s|%d|%d|%d|%d|%t\n",
			m.ID, m.Attribute, m.Op, m.Value, m.TargetID, m.SourceID, m.TurnsRemaining, m.RemoveOnSourceDeath)
	}

	fmt.Fprintf(&buf, "SEQ:%d|%d|%d|%d\n", d.cardSeq, d.unitSeq, d.modSeq, d.iteration)
	return buf.String()
}

func renderAttrs(s *attrs.Set) string {
	parts := make([]string, 0, len(s.IDs()))
	for _, id := range s.IDs() {
		base, actual, _ := s.Get(id)
		parts = append(parts, fmt.Sprintf("%s=%d/%d", id, base, actual))
	}
	return strings.Join(parts, ",")
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}
