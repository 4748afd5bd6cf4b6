package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/octobees/turmeric-buyers/internal/dto"
	"github.com/octobees/turmeric-buyers/internal/entity"
	"github.com/octobees/turmeric-buyers/internal/service/dedup"
)

// BuyersRepository describes persistence operations for accepted buyers.
type BuyersRepository interface {
	Migrate(ctx context.Context) error
	// UpsertBuyers deletes the superseded stored buyers and upserts records
	// in one transaction.
	UpsertBuyers(ctx context.Context, runID uuid.UUID, records []entity.ValidatedRecord, superseded []uuid.UUID) (UpsertResult, error)
	List(ctx context.Context, filter dto.BuyerFilter) ([]entity.Buyer, error)
	LoadAll(ctx context.Context) ([]entity.Buyer, error)
}

// UpsertResult summarises the number of rows inserted, updated or replaced.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Replaced int `json:"replaced"`
	Total    int `json:"total"`
}

type pgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var _ pgxPool = (*pgxpool.Pool)(nil)

// PGXBuyersRepository implements BuyersRepository using pgx.
type PGXBuyersRepository struct {
	pool pgxPool
}

// NewPGXBuyersRepository wires a pgx backed repository.
func NewPGXBuyersRepository(pool *pgxpool.Pool) *PGXBuyersRepository {
	return &PGXBuyersRepository{pool: pool}
}

var _ BuyersRepository = (*PGXBuyersRepository)(nil)

const pgxMigration = `
CREATE TABLE IF NOT EXISTS buyers (
    id             UUID PRIMARY KEY,
    name_key       TEXT NOT NULL UNIQUE,
    run_id         UUID,
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
    verdicts       JSONB NOT NULL DEFAULT '{}'::jsonb,
    validated_at   TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_buyers_city ON buyers (LOWER(city));
CREATE INDEX IF NOT EXISTS idx_buyers_score ON buyers (score DESC);
`

// Migrate creates the buyers table when missing.
func (r *PGXBuyersRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, pgxMigration); err != nil {
		return eris.Wrap(err, "migrate buyers")
	}
	return nil
}

const pgxUpsertSQL = `
        INSERT INTO buyers (
            id, name_key, run_id, company_name, contact_person, email, phone, website,
            city, state, country, description, products, search_term, source, score,
            verdicts, validated_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17::jsonb,$18,NOW())
        ON CONFLICT (name_key) DO UPDATE SET
            run_id = EXCLUDED.run_id,
            company_name = EXCLUDED.company_name,
            contact_person = COALESCE(EXCLUDED.contact_person, buyers.contact_person),
            email = COALESCE(EXCLUDED.email, buyers.email),
            phone = COALESCE(EXCLUDED.phone, buyers.phone),
            website = COALESCE(EXCLUDED.website, buyers.website),
            city = COALESCE(EXCLUDED.city, buyers.city),
            state = COALESCE(EXCLUDED.state, buyers.state),
            country = COALESCE(EXCLUDED.country, buyers.country),
            description = COALESCE(EXCLUDED.description, buyers.description),
            products = COALESCE(EXCLUDED.products, buyers.products),
            search_term = COALESCE(EXCLUDED.search_term, buyers.search_term),
            source = EXCLUDED.source,
            score = EXCLUDED.score,
            verdicts = EXCLUDED.verdicts,
            validated_at = EXCLUDED.validated_at,
            updated_at = NOW()
        RETURNING xmax = 0;
    `

const pgxDeleteBuyerSQL = `DELETE FROM buyers WHERE id = $1`

// UpsertBuyers persists accepted records keyed by normalised company name.
// Rejected records are ignored. Superseded buyers are deleted first so a
// record that displaces a stored copy under another name key replaces it.
func (r *PGXBuyersRepository) UpsertBuyers(ctx context.Context, runID uuid.UUID, records []entity.ValidatedRecord, superseded []uuid.UUID) (UpsertResult, error) {
	var result UpsertResult
	rows := buyerRowsFor(records)
	if len(rows) == 0 && len(superseded) == 0 {
		return result, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return result, eris.Wrap(err, "start upsert tx")
	}
	defer tx.Rollback(ctx)

	for _, id := range superseded {
		tag, err := tx.Exec(ctx, pgxDeleteBuyerSQL, id)
		if err != nil {
			return result, eris.Wrapf(err, "delete superseded buyer %s", id)
		}
		result.Replaced += int(tag.RowsAffected())
	}

	for _, row := range rows {
		var inserted bool
		err := tx.QueryRow(ctx, pgxUpsertSQL, row.args(uuid.New(), runID)...).Scan(&inserted)
		if err != nil {
			return result, eris.Wrapf(err, "upsert buyer %q", row.companyName)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
		result.Total++
	}

	if err := tx.Commit(ctx); err != nil {
		return result, eris.Wrap(err, "commit upsert tx")
	}
	return result, nil
}

const buyerColumns = `
            id,
            run_id,
            name_key,
            company_name,
            contact_person,
            email,
            phone,
            website,
            city,
            state,
            country,
            description,
            products,
            search_term,
            source,
            score,
            verdicts,
            validated_at,
            created_at,
            updated_at`

// List retrieves buyers matching the filter, best scores first.
func (r *PGXBuyersRepository) List(ctx context.Context, filter dto.BuyerFilter) ([]entity.Buyer, error) {
	query := strings.Builder{}
	query.WriteString("SELECT" + buyerColumns + " FROM buyers")

	var (
		clauses []string
		args    []any
		idx     = 1
	)

	if filter.Q != "" {
		pattern := fmt.Sprintf("%%%s%%", filter.Q)
		clauses = append(clauses, fmt.Sprintf("(company_name ILIKE $%d OR products ILIKE $%d OR description ILIKE $%d)", idx, idx+1, idx+2))
		args = append(args, pattern, pattern, pattern)
		idx += 3
	}
	if filter.City != "" {
		clauses = append(clauses, fmt.Sprintf("LOWER(city) = LOWER($%d)", idx))
		args = append(args, filter.City)
		idx++
	}
	if filter.Country != "" {
		clauses = append(clauses, fmt.Sprintf("LOWER(country) = LOWER($%d)", idx))
		args = append(args, filter.Country)
		idx++
	}
	if filter.MinScore != nil {
		clauses = append(clauses, fmt.Sprintf("score >= $%d", idx))
		args = append(args, *filter.MinScore)
		idx++
	}

	if len(clauses) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(clauses, " AND "))
	}
	query.WriteString(" ORDER BY score DESC, company_name ASC")

	limit, offset := pageBounds(filter)
	query.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1))
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "list buyers")
	}
	defer rows.Close()

	return scanBuyers(rows)
}

// LoadAll returns every stored buyer in insertion order.
func (r *PGXBuyersRepository) LoadAll(ctx context.Context) ([]entity.Buyer, error) {
	rows, err := r.pool.Query(ctx, "SELECT"+buyerColumns+" FROM buyers ORDER BY created_at ASC, company_name ASC")
	if err != nil {
		return nil, eris.Wrap(err, "load buyers")
	}
	defer rows.Close()

	return scanBuyers(rows)
}

func pageBounds(filter dto.BuyerFilter) (limit, offset int) {
	if filter.Limit > 0 {
		return filter.Limit, 0
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return perPage, (page - 1) * perPage
}

// buyerRow is the column projection of an accepted record.
type buyerRow struct {
	nameKey       string
	companyName   string
	contactPerson any
	email         any
	phone         any
	website       any
	city          any
	state         any
	country       any
	description   any
	products      any
	searchTerm    any
	source        string
	score         int
	verdicts      string
	validatedAt   any
}

func (b buyerRow) args(id, runID any) []any {
	return []any{
		id, b.nameKey, runID, b.companyName, b.contactPerson, b.email, b.phone, b.website,
		b.city, b.state, b.country, b.description, b.products, b.searchTerm, b.source, b.score,
		b.verdicts, b.validatedAt,
	}
}

// buyerRowsFor keeps accepted records and collapses ones sharing a name key,
// the later record winning, so a single statement never touches a row twice.
func buyerRowsFor(records []entity.ValidatedRecord) []buyerRow {
	rows := make([]buyerRow, 0, len(records))
	positions := make(map[string]int, len(records))
	for _, record := range records {
		if !record.Accepted {
			continue
		}
		row := newBuyerRow(record)
		if pos, ok := positions[row.nameKey]; ok {
			rows[pos] = row
			continue
		}
		positions[row.nameKey] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

func newBuyerRow(record entity.ValidatedRecord) buyerRow {
	key := dedup.NameKey(record.CompanyName)
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(record.CompanyName))
	}

	email := record.Email
	if v := record.Verdict(entity.FieldEmail); v.Valid && v.Canonical != "" {
		email = v.Canonical
	}
	phone := record.Phone
	if v := record.Verdict(entity.FieldPhone); v.Valid && v.Canonical != "" {
		phone = v.Canonical
	}

	verdicts := "{}"
	if len(record.Verdicts) > 0 {
		if raw, err := json.Marshal(record.Verdicts); err == nil {
			verdicts = string(raw)
		}
	}

	var validatedAt any
	if !record.ValidatedAt.IsZero() {
		validatedAt = record.ValidatedAt.UTC()
	}

	return buyerRow{
		nameKey:       key,
		companyName:   strings.TrimSpace(record.CompanyName),
		contactPerson: textOrNil(record.ContactPerson),
		email:         textOrNil(email),
		phone:         textOrNil(phone),
		website:       textOrNil(record.Website),
		city:          textOrNil(record.City),
		state:         textOrNil(record.State),
		country:       textOrNil(record.Country),
		description:   textOrNil(record.Description),
		products:      textOrNil(record.Products),
		searchTerm:    textOrNil(record.SearchTerm),
		source:        record.Source,
		score:         record.Score,
		verdicts:      verdicts,
		validatedAt:   validatedAt,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

type rowIterator interface {
	scannable
	Next() bool
	Err() error
}

func scanBuyers(rows rowIterator) ([]entity.Buyer, error) {
	var buyers []entity.Buyer
	for rows.Next() {
		b, err := scanBuyer(rows)
		if err != nil {
			return nil, err
		}
		buyers = append(buyers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate buyers")
	}
	return buyers, nil
}

func scanBuyer(row scannable) (entity.Buyer, error) {
	var (
		b             entity.Buyer
		runID         sql.NullString
		contactPerson sql.NullString
		email         sql.NullString
		phone         sql.NullString
		website       sql.NullString
		city          sql.NullString
		state         sql.NullString
		country       sql.NullString
		description   sql.NullString
		products      sql.NullString
		searchTerm    sql.NullString
		verdicts      []byte
		validatedAt   sql.NullTime
	)

	err := row.Scan(
		&b.ID,
		&runID,
		&b.NameKey,
		&b.CompanyName,
		&contactPerson,
		&email,
		&phone,
		&website,
		&city,
		&state,
		&country,
		&description,
		&products,
		&searchTerm,
		&b.Source,
		&b.Score,
		&verdicts,
		&validatedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return b, eris.Wrap(err, "scan buyer")
	}

	if runID.Valid && runID.String != "" {
		parsed, err := uuid.Parse(runID.String)
		if err != nil {
			return b, eris.Wrap(err, "parse run_id")
		}
		b.RunID = &parsed
	}
	b.ContactPerson = nullStringToPtr(contactPerson)
	b.Email = nullStringToPtr(email)
	b.Phone = nullStringToPtr(phone)
	b.Website = nullStringToPtr(website)
	b.City = nullStringToPtr(city)
	b.State = nullStringToPtr(state)
	b.Country = nullStringToPtr(country)
	b.Description = nullStringToPtr(description)
	b.Products = nullStringToPtr(products)
	b.SearchTerm = nullStringToPtr(searchTerm)

	if len(verdicts) > 0 {
		b.Verdicts = json.RawMessage(verdicts)
	} else {
		b.Verdicts = json.RawMessage("{}")
	}
	if validatedAt.Valid {
		ts := validatedAt.Time
		b.ValidatedAt = &ts
	}

	return b, nil
}

func nullStringToPtr(value sql.NullString) *string {
	if value.Valid {
		val := value.String
		return &val
	}
	return nil
}

func textOrNil(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}
