package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/octobees/turmeric-buyers/internal/dto"
	"github.com/octobees/turmeric-buyers/internal/entity"
)

// SQLiteBuyersRepository implements BuyersRepository on modernc.org/sqlite.
type SQLiteBuyersRepository struct {
	db *sql.DB
}

// NewSQLiteBuyersRepository wraps an open SQLite handle.
func NewSQLiteBuyersRepository(db *sql.DB) *SQLiteBuyersRepository {
	return &SQLiteBuyersRepository{db: db}
}

var _ BuyersRepository = (*SQLiteBuyersRepository)(nil)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS buyers (
	id             TEXT PRIMARY KEY,
	name_key       TEXT NOT NULL UNIQUE,
	run_id         TEXT,
	company_name   TEXT NOT NULL,
	contact_person TEXT,
	email          TEXT,
	phone          TEXT,
	website        TEXT,
	city           TEXT,
	state          TEXT,
	country        TEXT,
	description    TEXT,
	products       TEXT,
	search_term    TEXT,
	source         TEXT NOT NULL DEFAULT '',
	score          INTEGER NOT NULL DEFAULT 0,
	verdicts       TEXT NOT NULL DEFAULT '{}',
	validated_at   DATETIME,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_buyers_city ON buyers(city COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_buyers_score ON buyers(score DESC);
`

// Migrate creates the buyers table when missing.
func (r *SQLiteBuyersRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

const sqliteUpsertSQL = `
	INSERT INTO buyers (
		id, name_key, run_id, company_name, contact_person, email, phone, website,
		city, state, country, description, products, search_term, source, score,
		verdicts, validated_at, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name_key) DO UPDATE SET
		run_id = excluded.run_id,
		company_name = excluded.company_name,
		contact_person = COALESCE(excluded.contact_person, buyers.contact_person),
		email = COALESCE(excluded.email, buyers.email),
		phone = COALESCE(excluded.phone, buyers.phone),
		website = COALESCE(excluded.website, buyers.website),
		city = COALESCE(excluded.city, buyers.city),
		state = COALESCE(excluded.state, buyers.state),
		country = COALESCE(excluded.country, buyers.country),
		description = COALESCE(excluded.description, buyers.description),
		products = COALESCE(excluded.products, buyers.products),
		search_term = COALESCE(excluded.search_term, buyers.search_term),
		source = excluded.source,
		score = excluded.score,
		verdicts = excluded.verdicts,
		validated_at = excluded.validated_at,
		updated_at = excluded.updated_at
`

// UpsertBuyers persists accepted records keyed by normalised company name,
// deleting superseded buyers in the same transaction.
func (r *SQLiteBuyersRepository) UpsertBuyers(ctx context.Context, runID uuid.UUID, records []entity.ValidatedRecord, superseded []uuid.UUID) (UpsertResult, error) {
	var result UpsertResult
	rows := buyerRowsFor(records)
	if len(rows) == 0 && len(superseded) == 0 {
		return result, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, id := range superseded {
		res, err := tx.ExecContext(ctx, `DELETE FROM buyers WHERE id = ?`, id.String())
		if err != nil {
			return result, eris.Wrapf(err, "sqlite: delete superseded buyer %s", id)
		}
		if n, err := res.RowsAffected(); err == nil {
			result.Replaced += int(n)
		}
	}

	now := time.Now().UTC()
	for _, row := range rows {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM buyers WHERE name_key = ?`, row.nameKey).Scan(&exists)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return result, eris.Wrapf(err, "sqlite: lookup buyer %q", row.companyName)
		}

		args := append(row.args(uuid.NewString(), runID.String()), now, now)
		if _, err := tx.ExecContext(ctx, sqliteUpsertSQL, args...); err != nil {
			return result, eris.Wrapf(err, "sqlite: upsert buyer %q", row.companyName)
		}

		if exists == 1 {
			result.Updated++
		} else {
			result.Inserted++
		}
		result.Total++
	}

	if err := tx.Commit(); err != nil {
		return result, eris.Wrap(err, "sqlite: commit upsert")
	}
	return result, nil
}

// List retrieves buyers matching the filter, best scores first.
func (r *SQLiteBuyersRepository) List(ctx context.Context, filter dto.BuyerFilter) ([]entity.Buyer, error) {
	query := "SELECT" + buyerColumns + " FROM buyers WHERE 1=1"
	var args []any

	if filter.Q != "" {
		pattern := "%" + strings.ToLower(filter.Q) + "%"
		query += ` AND (LOWER(company_name) LIKE ? OR LOWER(COALESCE(products, '')) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?)`
		args = append(args, pattern, pattern, pattern)
	}
	if filter.City != "" {
		query += ` AND city = ? COLLATE NOCASE`
		args = append(args, filter.City)
	}
	if filter.Country != "" {
		query += ` AND country = ? COLLATE NOCASE`
		args = append(args, filter.Country)
	}
	if filter.MinScore != nil {
		query += ` AND score >= ?`
		args = append(args, *filter.MinScore)
	}

	limit, offset := pageBounds(filter)
	query += ` ORDER BY score DESC, company_name ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list buyers")
	}
	defer rows.Close()

	return scanBuyers(rows)
}

// LoadAll returns every stored buyer in insertion order.
func (r *SQLiteBuyersRepository) LoadAll(ctx context.Context) ([]entity.Buyer, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT"+buyerColumns+" FROM buyers ORDER BY created_at ASC, rowid ASC")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load buyers")
	}
	defer rows.Close()

	return scanBuyers(rows)
}
