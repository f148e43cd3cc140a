package cards

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Querier is the subset of pgxpool.Pool used to read card definitions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ Querier = (*pgxpool.Pool)(nil)

const selectCards = `
	SELECT pack_id, card_id, name, description, card_type, requirement,
	       cost, attack, health, archetype, author, script
	FROM duel_cards
	ORDER BY pack_id, card_id`

// Execer is the subset of pgx.Tx and pgxpool.Pool used to write card definitions.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var (
	_ Execer = (*pgxpool.Pool)(nil)
	_ Execer = (pgx.Tx)(nil)
)

// Schema creates the duel_cards table.
const Schema = `
	CREATE TABLE IF NOT EXISTS duel_cards (
		pack_id     TEXT    NOT NULL,
		card_id     TEXT    NOT NULL,
		name        TEXT    NOT NULL,
		description TEXT,
		card_type   TEXT    NOT NULL,
		requirement TEXT    NOT NULL DEFAULT '',
		cost        INTEGER NOT NULL DEFAULT 0,
		attack      INTEGER NOT NULL DEFAULT 0,
		health      INTEGER NOT NULL DEFAULT 0,
		archetype   TEXT,
		author      TEXT,
		script      JSONB,
		PRIMARY KEY (pack_id, card_id)
	)`

const upsertCard = `
	INSERT INTO duel_cards (
		pack_id, card_id, name, description, card_type, requirement,
		cost, attack, health, archetype, author, script
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (pack_id, card_id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		card_type = EXCLUDED.card_type,
		requirement = EXCLUDED.requirement,
		cost = EXCLUDED.cost,
		attack = EXCLUDED.attack,
		health = EXCLUDED.health,
		archetype = EXCLUDED.archetype,
		author = EXCLUDED.author,
		script = EXCLUDED.script`

// SaveToPostgres upserts records into duel_cards. Run it inside a transaction to
// import a pack atomically.
func SaveToPostgres(ctx context.Context, db Execer, records []Record) error {
	for _, r := range records {
		var script any
		if len(r.Script) > 0 {
			script = string(r.Script)
		}
		if _, err := db.Exec(ctx, upsertCard,
			r.Pack, r.ID, r.Name, nullable(r.Description), r.Type, r.Requirement,
			r.Cost, r.Attack, r.Health, nullable(r.Archetype), nullable(r.Author), script,
		); err != nil {
			return fmt.Errorf("failed to save card %s: %w", r.Ref(), err)
		}
	}
	return nil
}

// LoadFromPostgres reads every card definition from the duel_cards table.
// The script column holds the JSON ability document and may be NULL.
func LoadFromPostgres(ctx context.Context, db Querier, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rows, err := db.Query(ctx, selectCards)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                              Record
			description, archetype, author *string
		)
		if err := rows.Scan(&r.Pack, &r.ID, &r.Name, &description, &r.Type, &r.Requirement,
			&r.Cost, &r.Attack, &r.Health, &archetype, &author, &r.Script); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		r.Description = deref(description)
		r.Archetype = deref(archetype)
		r.Author = deref(author)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}

	logger.Info("loaded card catalog from database", zap.Int("cards", len(records)))
	return FromRecords(records, logger)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
