// Package ability holds the intermediate representation of card abilities:
// a list of event handlers, each an ordered sequence of actions.
package ability

// Team selects entities relative to the script owner.
type Team string

const (
	TeamSelf  Team = "self"
	TeamAlly  Team = "ally"
	TeamEnemy Team = "enemy"
	TeamAny   Team = "any"
)

// EntityKind is the pool a query draws from.
type EntityKind string

const (
	KindUnit EntityKind = "unit"
	KindCard EntityKind = "card"
)

// CardKind is the card type matched by CardTypeFilter.
type CardKind string

const (
	CardUnit  CardKind = "unit"
	CardSpell CardKind = "spell"
)

// Attribute is an attribute reachable from scripts.
type Attribute string

const (
	AttrHealth Attribute = "health"
	AttrAttack Attribute = "attack"
	AttrCost   Attribute = "cost"
)

// Comparator is the operator of an AttrFilter.
type Comparator string

const (
	Greater Comparator = "greater"
	Lower   Comparator = "lower"
	Equal   Comparator = "equal"
)

// Compare applies the comparator to a live value.
func (c Comparator) Compare(v, ref int) bool {
	switch c {
	case Greater:
		return v > ref
	case Lower:
		return v < ref
	default:
		return v == ref
	}
}

// Direction is a grid direction.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
	Up    Direction = "up"
	Down  Direction = "down"
)

// Offset returns the grid vector for a direction.
func (d Direction) Offset() (dx, dy int) {
	switch d {
	case Right:
		return 1, 0
	case Left:
		return -1, 0
	case Up:
		return 0, 1
	case Down:
		return 0, -1
	}
	return 0, 0
}

// CardMoveKind classifies card movements for PostCardMove.
type CardMoveKind string

const (
	MovePlayed    CardMoveKind = "played"
	MoveDiscarded CardMoveKind = "discarded"
	MoveDrawn     CardMoveKind = "drawn"
)

// ConditionalSubject picks the entity checked by SingleConditional.
type ConditionalSubject string

const (
	SubjectMe     ConditionalSubject = "me"
	SubjectSource ConditionalSubject = "source"
	SubjectTarget ConditionalSubject = "target"
)

// Script is a compiled ability. It is immutable once parsed.
type Script struct {
	Handlers []Handler
}

// Handler binds an event to the actions run when it fires.
type Handler struct {
	Event   Event
	Actions []Action
}

// HandlersFor returns the action sequences bound to one event kind, in declaration order.
func (s *Script) HandlersFor(kind EventKind) []Handler {
	if s == nil {
		return nil
	}
	var out []Handler
	for _, h := range s.Handlers {
		if h.Event.Kind() == kind {
			out = append(out, h)
		}
	}
	return out
}

// Empty reports whether the script declares no handler.
func (s *Script) Empty() bool {
	return s == nil || len(s.Handlers) == 0
}
