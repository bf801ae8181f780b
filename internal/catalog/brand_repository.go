package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	pkgerrors "fipeline/pkg/errors"
)

type BrandRepository interface {
	Upsert(ctx context.Context, brand *Brand) error
	FindByCode(ctx context.Context, code string) (*Brand, error)
	FindByName(ctx context.Context, name string) (*Brand, error)
	FindAllOrderedByName(ctx context.Context) ([]Brand, error)
}

type PostgresBrandRepository struct {
	db *sql.DB
}

func NewBrandRepository(db *sql.DB) BrandRepository {
	return &PostgresBrandRepository{db: db}
}

// Upsert keeps the brand loader idempotent: reloading the catalog updates the
// name in place instead of conflicting on the code.
func (r *PostgresBrandRepository) Upsert(ctx context.Context, brand *Brand) error {
	if brand.CreatedAt.IsZero() {
		brand.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO brands (code, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query, brand.Code, brand.Name, brand.CreatedAt).Scan(&brand.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert brand %s: %w", brand.Code, err)
	}

	return nil
}

func (r *PostgresBrandRepository) FindByCode(ctx context.Context, code string) (*Brand, error) {
	query := `
		SELECT id, code, name, created_at
		FROM brands
		WHERE code = $1
	`

	return r.scanBrand(r.db.QueryRowContext(ctx, query, code))
}

func (r *PostgresBrandRepository) FindByName(ctx context.Context, name string) (*Brand, error) {
	query := `
		SELECT id, code, name, created_at
		FROM brands
		WHERE LOWER(name) = LOWER($1)
	`

	return r.scanBrand(r.db.QueryRowContext(ctx, query, name))
}

func (r *PostgresBrandRepository) scanBrand(row *sql.Row) (*Brand, error) {
	var brand Brand
	err := row.Scan(&brand.ID, &brand.Code, &brand.Name, &brand.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan brand: %w", err)
	}

	return &brand, nil
}

func (r *PostgresBrandRepository) FindAllOrderedByName(ctx context.Context) ([]Brand, error) {
	query := `
		SELECT id, code, name, created_at
		FROM brands
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query brands: %w", err)
	}
	defer rows.Close()

	var brands []Brand
	for rows.Next() {
		var brand Brand
		if err := rows.Scan(&brand.ID, &brand.Code, &brand.Name, &brand.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		brands = append(brands, brand)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return brands, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
