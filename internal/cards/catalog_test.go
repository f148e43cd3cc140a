package cards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cardlab/duel-server-go/internal/game/ability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const samplePack = `
pack: base
cards:
  - id: wolf
    name: Grey Wolf
    type: unit
    cost: 2
    attack: 2
    health: 3
    archetype: "  Wild   Beast "
  - id: spark
    name: Spark
    type: spell
    cost: 1
    script:
      handlers:
        - event: {type: postSpawn}
          actions:
            - type: hurt
              damage: 2
              target: {type: core, enemy: true}
`

func TestLoadYAML(t *testing.T) {
	c, err := LoadYAML(strings.NewReader(samplePack), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []Ref{"base:spark", "base:wolf"}, c.Refs())

	wolf, ok := c.Get("base:wolf")
	require.True(t, ok)
	assert.Equal(t, ability.CardUnit, wolf.Type)
	assert.Equal(t, RequireSingleSlot, wolf.Requirement)
	assert.Equal(t, 3, wolf.Health)
	assert.True(t, wolf.Script.Empty())

	spark, ok := c.Get("base:spark")
	require.True(t, ok)
	assert.Equal(t, RequireNone, spark.Requirement)
	require.Len(t, spark.Script.Handlers, 1)
	assert.Equal(t, []ability.Action{
		ability.HurtAction{Damage: 2, Target: ability.CoreTarget{Enemy: true}},
	}, spark.Script.Handlers[0].Actions)
}

func TestLoadYAMLRequiresPack(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("cards: []"), nil)
	assert.ErrorIs(t, err, ErrInvalidCard)
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	a := &Definition{Ref: "p:a", Type: ability.CardUnit, Health: 1}
	b := &Definition{Ref: "p:a", Type: ability.CardSpell}
	_, err := NewCatalog(a, b)
	assert.ErrorIs(t, err, ErrDuplicateCard)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, (&Definition{Ref: "p:x", Type: ability.CardUnit}).Validate(), ErrInvalidCard)
	assert.ErrorIs(t, (&Definition{Ref: "p:x", Type: "trap"}).Validate(), ErrInvalidCard)
	assert.ErrorIs(t, (&Definition{Type: ability.CardSpell}).Validate(), ErrInvalidCard)
	assert.NoError(t, (&Definition{Ref: "p:x", Type: ability.CardSpell}).Validate())
}

func TestNormalizeArchetype(t *testing.T) {
	assert.Equal(t, "wild beast", NormalizeArchetype("  Wild   BEAST "))
	assert.Equal(t, NormalizeArchetype("Straße"), NormalizeArchetype("STRASSE"))
}

type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos-1], nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d columns, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case **string:
			if row[i] == nil {
				*p = nil
			} else {
				s := row[i].(string)
				*p = &s
			}
		case *int:
			*p = row[i].(int)
		case *[]byte:
			if row[i] != nil {
				*p = []byte(row[i].(string))
			}
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}

type fakeQuerier struct {
	rows *fakeRows
	err  error
}

func (q *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestLoadFromPostgres(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{rows: [][]any{
		{"base", "wolf", "Grey Wolf", nil, "unit", "singleSlot", 2, 2, 3, "Beast", nil, nil},
		{"base", "mend", "Mend", "Heal a core", "spell", "none", 1, 0, 0, nil, "ana",
			`{"handlers":[{"event":{"type":"postSpawn"},"actions":[{"type":"heal","damage":3,"target":{"type":"core","enemy":false}}]}]}`},
	}}}

	c, err := LoadFromPostgres(context.Background(), q, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	mend, ok := c.Get("base:mend")
	require.True(t, ok)
	assert.Equal(t, "Heal a core", mend.Description)
	assert.Equal(t, "ana", mend.Author)
	require.Len(t, mend.Script.Handlers, 1)

	wolf, ok := c.Get("base:wolf")
	require.True(t, ok)
	assert.Equal(t, "Beast", wolf.Archetype)
	assert.True(t, wolf.Script.Empty())
}

func TestLoadFromPostgresQueryError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := LoadFromPostgres(context.Background(), &fakeQuerier{err: boom}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestShippedPackLoads(t *testing.T) {
	catalog, err := LoadYAMLFiles([]string{"../../config/cards/base.yaml"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 8, catalog.Len())

	for _, id := range []string{"shield-bearer", "drone-hive", "berserker", "martyr", "fireball", "scholar"} {
		def, ok := catalog.Get(NewRef("base", id))
		require.True(t, ok, id)
		require.NotNil(t, def.Script, id)
		assert.NotEmpty(t, def.Script.Handlers, id)
	}

	fireball, _ := catalog.Get(NewRef("base", "fireball"))
	assert.Equal(t, RequireSingleEntity, fireball.Requirement)
	berserker, _ := catalog.Get(NewRef("base", "berserker"))
	assert.Len(t, berserker.Script.Handlers, 2)
}

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	err   error
}

func (e *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.calls = append(e.calls, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, e.err
}

func TestSaveToPostgres(t *testing.T) {
	records, err := ReadYAML(strings.NewReader(samplePack))
	require.NoError(t, err)
	require.Len(t, records, 2)

	db := &fakeExecer{}
	require.NoError(t, SaveToPostgres(context.Background(), db, records))
	require.Len(t, db.calls, 2)

	wolf := db.calls[0].args
	assert.Equal(t, "base", wolf[0])
	assert.Equal(t, "wolf", wolf[1])
	assert.Nil(t, wolf[3], "empty description is stored as NULL")
	assert.Nil(t, wolf[11], "missing script is stored as NULL")

	spark := db.calls[1].args
	require.IsType(t, "", spark[11])
	assert.JSONEq(t,
		`{"handlers":[{"event":{"type":"postSpawn"},"actions":[{"type":"hurt","damage":2,"target":{"type":"core","enemy":true}}]}]}`,
		spark[11].(string))
}

func TestSaveToPostgresStopsOnError(t *testing.T) {
	records, err := ReadYAML(strings.NewReader(samplePack))
	require.NoError(t, err)

	boom := errors.New("read-only transaction")
	db := &fakeExecer{err: boom}
	err = SaveToPostgres(context.Background(), db, records)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, db.calls, 1)
}
