package ability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleScript = `{
  "handlers": [
    {
      "event": {"type": "postSpawn"},
      "actions": [
        {"type": "hurt", "damage": 2, "target": {"type": "query", "kind": "unit", "team": "enemy", "n": 3,
          "filters": [{"type": "attr", "attr": "health", "op": "lower", "value": 4}, {"type": "wounded"}]}},
        {"type": "singleConditional", "target": "source", "conditions": [{"type": "archetype", "archetype": "Beast"}],
          "actions": [{"type": "draw", "n": 1, "filters": []}]}
      ]
    },
    {
      "event": {"type": "postCardMove", "kind": "drawn"},
      "actions": [
        {"type": "modifier", "isBuff": true, "value": 1, "attr": "attack", "duration": 2, "target": {"type": "me"}},
        {"type": "deploy", "filters": [{"type": "cardType", "kind": "unit"}], "direction": "left"}
      ]
    }
  ]
}`

func TestParseScript(t *testing.T) {
	s, skipped, err := ParseReport([]byte(sampleScript), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, s.Handlers, 2)

	assert.Equal(t, PostSpawn{}, s.Handlers[0].Event)
	require.Len(t, s.Handlers[0].Actions, 2)

	hurt, ok := s.Handlers[0].Actions[0].(HurtAction)
	require.True(t, ok)
	assert.Equal(t, 2, hurt.Damage)
	q, ok := hurt.Target.(QueryTarget)
	require.True(t, ok)
	assert.Equal(t, KindUnit, q.Kind)
	assert.Equal(t, TeamEnemy, q.Team)
	assert.Equal(t, 3, q.N)
	assert.Equal(t, []Filter{AttrFilter{Attr: AttrHealth, Op: Lower, Value: 4}, WoundedFilter{}}, q.Filters)

	cond, ok := s.Handlers[0].Actions[1].(SingleConditionalAction)
	require.True(t, ok)
	assert.Equal(t, SubjectSource, cond.Subject)
	assert.Equal(t, []Filter{ArchetypeFilter{Archetype: "Beast"}}, cond.Conditions)
	assert.Equal(t, []Action{DrawAction{N: 1, Filters: []Filter{}}}, cond.Actions)

	assert.Equal(t, PostCardMove{Move: MoveDrawn}, s.Handlers[1].Event)
	mod, ok := s.Handlers[1].Actions[0].(ModifierAction)
	require.True(t, ok)
	assert.Equal(t, MeTarget{}, mod.Target)
	assert.Equal(t, 2, mod.Duration)

	assert.Len(t, s.HandlersFor(EventPostSpawn), 1)
	assert.Empty(t, s.HandlersFor(EventPostTurn))
}

func TestParseSkipsUnknownNodes(t *testing.T) {
	doc := `{"handlers": [
	  {"event": {"type": "postNothing"}, "actions": []},
	  {"event": {"type": "postTurn", "team": "enemy"}, "actions": [
	    {"type": "teleport"},
	    {"type": "hurt", "damage": 1, "target": {"type": "everyone"}},
	    {"type": "heal", "damage": 1},
	    {"type": "heal", "damage": 3, "target": {"type": "core", "enemy": false}}
	  ]},
	  {"event": {"type": "postTurn", "team": "martians"}, "actions": []}
	]}`

	s, skipped, err := ParseReport([]byte(doc), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 5, skipped)
	require.Len(t, s.Handlers, 1)
	assert.Equal(t, PostTurn{Team: TeamEnemy}, s.Handlers[0].Event)
	assert.Equal(t, []Action{HealAction{Damage: 3, Target: CoreTarget{}}}, s.Handlers[0].Actions)
}

func TestParseEmptyAndMalformed(t *testing.T) {
	s, err := Parse(nil, nil)
	require.NoError(t, err)
	assert.True(t, s.Empty())

	s, err = Parse([]byte("null"), nil)
	require.NoError(t, err)
	assert.True(t, s.Empty())

	_, err = Parse([]byte("{not json"), nil)
	assert.ErrorIs(t, err, ErrMalformedScript)
}

func TestDirectionOffset(t *testing.T) {
	dx, dy := Up.Offset()
	assert.Equal(t, 0, dx)
	assert.Equal(t, 1, dy)
	dx, dy = Left.Offset()
	assert.Equal(t, -1, dx)
	assert.Equal(t, 0, dy)
}

func TestComparator(t *testing.T) {
	assert.True(t, Greater.Compare(3, 2))
	assert.True(t, Lower.Compare(1, 2))
	assert.True(t, Equal.Compare(2, 2))
	assert.False(t, Equal.Compare(2, 3))
}

func TestParseRejectsOutOfRangeCounts(t *testing.T) {
	doc := `{"handlers": [{"event": {"type": "postSpawn"}, "actions": [
		{"type": "draw", "n": 1152921504606846976},
		{"type": "create", "n": -1},
		{"type": "discard", "n": 65, "myHand": true},
		{"type": "grantAttack", "n": 100000, "target": {"type": "me"}},
		{"type": "multiConditional", "team": "ally", "minUnits": 1000000},
		{"type": "randomConditional", "percentChance": 150},
		{"type": "hurt", "damage": 1, "target": {"type": "query", "kind": "unit", "team": "enemy", "n": 1000000000}},
		{"type": "draw", "n": 64},
		{"type": "randomConditional", "percentChance": 100}
	]}]}`

	s, skipped, err := ParseReport([]byte(doc), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 7, skipped)
	require.Len(t, s.Handlers, 1)
	assert.Equal(t, []Action{
		DrawAction{N: MaxCount, Filters: []Filter{}},
		RandomConditionalAction{PercentChance: 100, Actions: []Action{}},
	}, s.Handlers[0].Actions)
}
