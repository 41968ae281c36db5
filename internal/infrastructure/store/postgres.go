package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agenticmap/backend/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PgProductStore is the Postgres-backed ProductRepository. Products are
// keyed by normalized_url with ON CONFLICT upsert so replace-or-insert is
// atomic at the database level.
type PgProductStore struct {
	db *sqlx.DB
}

// NewPgProductStore wraps an open database handle.
func NewPgProductStore(db *sql.DB) *PgProductStore {
	return &PgProductStore{db: sqlx.NewDb(db, "postgres")}
}

// RunMigrations creates the product and comparison tables.
func RunMigrations(db *sql.DB) error {
	initSQL := `
CREATE TABLE IF NOT EXISTS products(
  id UUID PRIMARY KEY,
  url TEXT NOT NULL,
  normalized_url TEXT NOT NULL UNIQUE,
  raw_signals JSONB NOT NULL DEFAULT '{}',
  summary JSONB,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_created ON products(created_at);

CREATE TABLE IF NOT EXISTS comparisons(
  id UUID PRIMARY KEY,
  question TEXT NOT NULL,
  without_context JSONB NOT NULL,
  with_context JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comparisons_created ON comparisons(created_at);
`
	_, err := db.Exec(initSQL)
	return err
}

type productRow struct {
	ID            string                             `db:"id"`
	URL           string                             `db:"url"`
	NormalizedURL string                             `db:"normalized_url"`
	RawSignals    jsonColumn[domain.RawSignals]      `db:"raw_signals"`
	Summary       nullableJSONColumn[domain.Summary] `db:"summary"`
	CreatedAt     time.Time                          `db:"created_at"`
	UpdatedAt     time.Time                          `db:"updated_at"`
}

func (r *productRow) toDomain() *domain.Product {
	return &domain.Product{
		ID:            r.ID,
		URL:           r.URL,
		NormalizedURL: r.NormalizedURL,
		RawSignals:    r.RawSignals.Val,
		Summary:       r.Summary.Val,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

const productColumns = "id, url, normalized_url, raw_signals, summary, created_at, updated_at"

// Upsert inserts or replaces the record stored under the product's
// normalized URL. On conflict the original id and created_at survive; the
// returned product reflects what the database now holds.
func (s *PgProductStore) Upsert(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
INSERT INTO products (id, url, normalized_url, raw_signals, summary, created_at, updated_at)
VALUES ($1,$2,$3,$4::jsonb,$5::jsonb,$6,$7)
ON CONFLICT (normalized_url) DO UPDATE SET
 url=EXCLUDED.url,
 raw_signals=EXCLUDED.raw_signals,
 summary=EXCLUDED.summary,
 updated_at=EXCLUDED.updated_at
RETURNING ` + productColumns

	var row productRow
	err := s.db.GetContext(ctx, &row, query,
		product.ID,
		product.URL,
		product.NormalizedURL,
		jsonColumn[domain.RawSignals]{Val: product.RawSignals},
		nullableJSONColumn[domain.Summary]{Val: product.Summary},
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert product url=%s: %w", product.NormalizedURL, err)
	}
	return row.toDomain(), nil
}

// GetByID returns the product with the given id.
func (s *PgProductStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product id=%s: %w", id, err)
	}
	return row.toDomain(), nil
}

// GetByNormalizedURL returns the product stored under the given dedup key.
func (s *PgProductStore) GetByNormalizedURL(ctx context.Context, normalizedURL string) (*domain.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+productColumns+" FROM products WHERE normalized_url = $1", normalizedURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product url=%s: %w", normalizedURL, err)
	}
	return row.toDomain(), nil
}

// List returns all products ordered by created_at ascending, id ascending.
// The ordering is load-bearing: artifact generation depends on it being
// stable.
func (s *PgProductStore) List(ctx context.Context) ([]*domain.Product, error) {
	rows := []productRow{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+productColumns+" FROM products ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products := make([]*domain.Product, len(rows))
	for i := range rows {
		products[i] = rows[i].toDomain()
	}
	return products, nil
}

// Delete removes the product.
func (s *PgProductStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete product id=%s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// PgComparisonStore is the Postgres-backed ComparisonRepository.
type PgComparisonStore struct {
	db *sqlx.DB
}

// NewPgComparisonStore wraps an open database handle.
func NewPgComparisonStore(db *sql.DB) *PgComparisonStore {
	return &PgComparisonStore{db: sqlx.NewDb(db, "postgres")}
}

type comparisonRow struct {
	ID             string                            `db:"id"`
	Question       string                            `db:"question"`
	WithoutContext jsonColumn[domain.ComparisonSide] `db:"without_context"`
	WithContext    jsonColumn[domain.ComparisonSide] `db:"with_context"`
	CreatedAt      time.Time                         `db:"created_at"`
}

// Save appends an immutable comparison record.
func (s *PgComparisonStore) Save(ctx context.Context, comparison *domain.Comparison) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO comparisons (id, question, without_context, with_context, created_at)
VALUES ($1,$2,$3::jsonb,$4::jsonb,$5)`,
		comparison.ID,
		comparison.Question,
		jsonColumn[domain.ComparisonSide]{Val: comparison.WithoutContext},
		jsonColumn[domain.ComparisonSide]{Val: comparison.WithContext},
		comparison.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save comparison id=%s: %w", comparison.ID, err)
	}
	return nil
}

// List returns the most recent comparisons first, at most limit entries.
func (s *PgComparisonStore) List(ctx context.Context, limit int) ([]*domain.Comparison, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows := []comparisonRow{}
	err := s.db.SelectContext(ctx, &rows, `
SELECT id, question, without_context, with_context, created_at
FROM comparisons
ORDER BY created_at DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list comparisons: %w", err)
	}

	comparisons := make([]*domain.Comparison, len(rows))
	for i, r := range rows {
		comparisons[i] = &domain.Comparison{
			ID:             r.ID,
			Question:       r.Question,
			WithoutContext: r.WithoutContext.Val,
			WithContext:    r.WithContext.Val,
			CreatedAt:      r.CreatedAt,
		}
	}
	return comparisons, nil
}
