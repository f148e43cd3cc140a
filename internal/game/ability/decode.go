package ability

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrMalformedScript is returned when the script document itself cannot be read.
// Unknown or malformed nodes inside a readable document are skipped instead.
var ErrMalformedScript = errors.New("malformed script")

// MaxCount bounds the counts a script may ask for: cards drawn, created or
// discarded, attacks granted, query sizes and conditional quorums.
const MaxCount = 64

type node struct {
	Type string `json:"type"`
	raw  json.RawMessage
}

func (n *node) UnmarshalJSON(b []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	n.Type = head.Type
	n.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (n node) into(v any) error {
	return json.Unmarshal(n.raw, v)
}

type decoder struct {
	logger  *zap.Logger
	skipped int
}

// Parse decodes a script document of the form
// {"handlers":[{"event":{...},"actions":[...]}]}.
// An empty document or a JSON null yields an empty script.
func Parse(data []byte, logger *zap.Logger) (*Script, error) {
	s, _, err := ParseReport(data, logger)
	return s, err
}

// ParseReport is Parse and also returns how many nodes were skipped.
func ParseReport(data []byte, logger *zap.Logger) (*Script, int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(data) == 0 || string(data) == "null" {
		return &Script{}, 0, nil
	}

	var doc struct {
		Handlers []struct {
			Event   *node  `json:"event"`
			Actions []node `json:"actions"`
		} `json:"handlers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedScript, err)
	}

	d := &decoder{logger: logger}
	script := &Script{}
	for i, h := range doc.Handlers {
		if h.Event == nil {
			d.skip("handler", "", fmt.Errorf("handler %d has no event", i))
			continue
		}
		ev, ok := d.event(*h.Event)
		if !ok {
			continue
		}
		script.Handlers = append(script.Handlers, Handler{
			Event:   ev,
			Actions: d.actions(h.Actions),
		})
	}
	return script, d.skipped, nil
}

// inRange skips the node unless 0 <= v <= limit.
func (d *decoder) inRange(what, kind, field string, v, limit int) bool {
	if v < 0 || v > limit {
		d.skip(what, kind, fmt.Errorf("%s %d out of range [0, %d]", field, v, limit))
		return false
	}
	return true
}

func (d *decoder) skip(what, kind string, err error) {
	d.skipped++
	d.logger.Warn("skipping script node",
		zap.String("node", what),
		zap.String("type", kind),
		zap.Error(err),
	)
}

var errUnknownKind = errors.New("unknown kind")

func (d *decoder) event(n node) (Event, bool) {
	var f struct {
		Team      Team         `json:"team"`
		Dealt     bool         `json:"dealt"`
		Threshold int          `json:"threshold"`
		N         int          `json:"n"`
		Kind      CardMoveKind `json:"kind"`
	}
	if err := n.into(&f); err != nil {
		d.skip("event", n.Type, err)
		return nil, false
	}

	var ev Event
	switch EventKind(n.Type) {
	case EventPostSpawn:
		ev = PostSpawn{}
	case EventPostCoreHurt:
		ev = PostCoreHurt{Team: f.Team}
	case EventPostUnitEliminated:
		ev = PostUnitEliminated{Team: f.Team}
	case EventPostUnitKill:
		ev = PostUnitKill{}
	case EventPostUnitHurt:
		ev = PostUnitHurt{Team: f.Team, Dealt: f.Dealt}
	case EventPostUnitHeal:
		ev = PostUnitHeal{Team: f.Team, Dealt: f.Dealt}
	case EventPostUnitAttack:
		ev = PostUnitAttack{Team: f.Team, Dealt: f.Dealt}
	case EventPostUnitHealthChange:
		ev = PostUnitHealthChange{Threshold: f.Threshold}
	case EventPostUnitNthAttack:
		ev = PostUnitNthAttack{N: f.N}
	case EventPostNthCardPlay:
		ev = PostNthCardPlay{N: f.N}
	case EventPostCardMove:
		if !validMove(f.Kind) {
			d.skip("event", n.Type, fmt.Errorf("invalid move kind %q", f.Kind))
			return nil, false
		}
		ev = PostCardMove{Move: f.Kind}
	case EventPostTurn:
		ev = PostTurn{Team: f.Team}
	default:
		d.skip("event", n.Type, errUnknownKind)
		return nil, false
	}

	if team, ok := eventTeam(ev); ok && !validTeam(team) {
		d.skip("event", n.Type, fmt.Errorf("invalid team %q", team))
		return nil, false
	}
	return ev, true
}

func eventTeam(ev Event) (Team, bool) {
	switch e := ev.(type) {
	case PostCoreHurt:
		return e.Team, true
	case PostUnitEliminated:
		return e.Team, true
	case PostUnitHurt:
		return e.Team, true
	case PostUnitHeal:
		return e.Team, true
	case PostUnitAttack:
		return e.Team, true
	case PostTurn:
		return e.Team, true
	}
	return "", false
}

func (d *decoder) actions(nodes []node) []Action {
	out := make([]Action, 0, len(nodes))
	for _, n := range nodes {
		if a, ok := d.action(n); ok {
			out = append(out, a)
		}
	}
	return out
}

func (d *decoder) action(n node) (Action, bool) {
	var f struct {
		N             int             `json:"n"`
		Filters       []node          `json:"filters"`
		MyHand        bool            `json:"myHand"`
		IsBuff        bool            `json:"isBuff"`
		Value         int             `json:"value"`
		Attr          Attribute       `json:"attr"`
		Target        json.RawMessage `json:"target"`
		Duration      int             `json:"duration"`
		Damage        int             `json:"damage"`
		Conditions    []node          `json:"conditions"`
		Actions       []node          `json:"actions"`
		MinUnits      int             `json:"minUnits"`
		Team          Team            `json:"team"`
		PercentChance int             `json:"percentChance"`
		Direction     Direction       `json:"direction"`
	}
	if err := n.into(&f); err != nil {
		d.skip("action", n.Type, err)
		return nil, false
	}

	// single-target actions share the same target decoding
	target := func() (Target, bool) {
		var tn node
		if len(f.Target) == 0 {
			d.skip("action", n.Type, errors.New("missing target"))
			return nil, false
		}
		if err := json.Unmarshal(f.Target, &tn); err != nil {
			d.skip("action", n.Type, err)
			return nil, false
		}
		return d.target(tn)
	}

	switch n.Type {
	case "draw", "create", "discard", "grantAttack":
		if !d.inRange("action", n.Type, "n", f.N, MaxCount) {
			return nil, false
		}
	case "multiConditional":
		if !d.inRange("action", n.Type, "minUnits", f.MinUnits, MaxCount) {
			return nil, false
		}
	case "randomConditional":
		if !d.inRange("action", n.Type, "percentChance", f.PercentChance, 100) {
			return nil, false
		}
	}

	switch n.Type {
	case "draw":
		return DrawAction{N: f.N, Filters: d.filters(f.Filters)}, true
	case "create":
		return CreateAction{N: f.N, Filters: d.filters(f.Filters)}, true
	case "discard":
		return DiscardAction{N: f.N, MyHand: f.MyHand, Filters: d.filters(f.Filters)}, true
	case "modifier":
		if !validAttr(f.Attr) {
			d.skip("action", n.Type, fmt.Errorf("invalid attribute %q", f.Attr))
			return nil, false
		}
		t, ok := target()
		if !ok {
			return nil, false
		}
		return ModifierAction{IsBuff: f.IsBuff, Value: f.Value, Attr: f.Attr, Target: t, Duration: f.Duration}, true
	case "grantAttack":
		t, ok := target()
		if !ok {
			return nil, false
		}
		return GrantAttackAction{N: f.N, Target: t}, true
	case "hurt":
		t, ok := target()
		if !ok {
			return nil, false
		}
		return HurtAction{Damage: f.Damage, Target: t}, true
	case "heal":
		t, ok := target()
		if !ok {
			return nil, false
		}
		return HealAction{Damage: f.Damage, Target: t}, true
	case "attack":
		t, ok := target()
		if !ok {
			return nil, false
		}
		return AttackAction{Target: t}, true
	case "singleConditional":
		var subject struct {
			Target ConditionalSubject `json:"target"`
		}
		if err := n.into(&subject); err != nil || !validSubject(subject.Target) {
			d.skip("action", n.Type, fmt.Errorf("invalid conditional target %q", subject.Target))
			return nil, false
		}
		return SingleConditionalAction{
			Subject:    subject.Target,
			Conditions: d.filters(f.Conditions),
			Actions:    d.actions(f.Actions),
		}, true
	case "multiConditional":
		if !validTeam(f.Team) {
			d.skip("action", n.Type, fmt.Errorf("invalid team %q", f.Team))
			return nil, false
		}
		return MultiConditionalAction{
			MinUnits:   f.MinUnits,
			Team:       f.Team,
			Conditions: d.filters(f.Conditions),
			Actions:    d.actions(f.Actions),
		}, true
	case "randomConditional":
		return RandomConditionalAction{PercentChance: f.PercentChance, Actions: d.actions(f.Actions)}, true
	case "deploy":
		return DeployAction{Filters: d.filters(f.Filters), Direction: f.Direction}, true
	}
	d.skip("action", n.Type, errUnknownKind)
	return nil, false
}

func (d *decoder) target(n node) (Target, bool) {
	var f struct {
		Enemy     bool       `json:"enemy"`
		Kind      EntityKind `json:"kind"`
		Team      Team       `json:"team"`
		Filters   []node     `json:"filters"`
		N         int        `json:"n"`
		Direction Direction  `json:"direction"`
	}
	if err := n.into(&f); err != nil {
		d.skip("target", n.Type, err)
		return nil, false
	}
	switch n.Type {
	case "me":
		return MeTarget{}, true
	case "source":
		return SourceTarget{}, true
	case "target":
		return EventTarget{}, true
	case "core":
		return CoreTarget{Enemy: f.Enemy}, true
	case "query":
		if f.Kind != KindUnit && f.Kind != KindCard {
			d.skip("target", n.Type, fmt.Errorf("invalid entity kind %q", f.Kind))
			return nil, false
		}
		if !validTeam(f.Team) {
			d.skip("target", n.Type, fmt.Errorf("invalid team %q", f.Team))
			return nil, false
		}
		if !d.inRange("target", n.Type, "n", f.N, MaxCount) {
			return nil, false
		}
		return QueryTarget{Kind: f.Kind, Team: f.Team, Filters: d.filters(f.Filters), N: f.N}, true
	case "nearbyAlly":
		if !validDirection(f.Direction) {
			d.skip("target", n.Type, fmt.Errorf("invalid direction %q", f.Direction))
			return nil, false
		}
		return NearbyAllyTarget{Direction: f.Direction}, true
	}
	d.skip("target", n.Type, errUnknownKind)
	return nil, false
}

func (d *decoder) filters(nodes []node) []Filter {
	out := make([]Filter, 0, len(nodes))
	for _, n := range nodes {
		if f, ok := d.filter(n); ok {
			out = append(out, f)
		}
	}
	return out
}

func (d *decoder) filter(n node) (Filter, bool) {
	var f struct {
		Kind      CardKind   `json:"kind"`
		Attr      Attribute  `json:"attr"`
		Op        Comparator `json:"op"`
		Value     int        `json:"value"`
		Archetype string     `json:"archetype"`
	}
	if err := n.into(&f); err != nil {
		d.skip("filter", n.Type, err)
		return nil, false
	}
	switch n.Type {
	case "cardType":
		if f.Kind != CardUnit && f.Kind != CardSpell {
			d.skip("filter", n.Type, fmt.Errorf("invalid card kind %q", f.Kind))
			return nil, false
		}
		return CardTypeFilter{Kind: f.Kind}, true
	case "attr":
		if !validAttr(f.Attr) || (f.Op != Greater && f.Op != Lower && f.Op != Equal) {
			d.skip("filter", n.Type, fmt.Errorf("invalid comparison %q %q", f.Attr, f.Op))
			return nil, false
		}
		return AttrFilter{Attr: f.Attr, Op: f.Op, Value: f.Value}, true
	case "wounded":
		return WoundedFilter{}, true
	case "adjacent":
		return AdjacentFilter{}, true
	case "archetype":
		return ArchetypeFilter{Archetype: f.Archetype}, true
	}
	d.skip("filter", n.Type, errUnknownKind)
	return nil, false
}

func validTeam(t Team) bool {
	switch t {
	case TeamSelf, TeamAlly, TeamEnemy, TeamAny:
		return true
	}
	return false
}

func validAttr(a Attribute) bool {
	return a == AttrHealth || a == AttrAttack || a == AttrCost
}

func validMove(m CardMoveKind) bool {
	return m == MovePlayed || m == MoveDiscarded || m == MoveDrawn
}

func validSubject(s ConditionalSubject) bool {
	return s == SubjectMe || s == SubjectSource || s == SubjectTarget
}

func validDirection(dir Direction) bool {
	switch dir {
	case Left, Right, Up, Down:
		return true
	}
	return false
}
