package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pkgerrors "fipeline/pkg/errors"
)

type VehicleRepository interface {
	Save(ctx context.Context, vehicle *Vehicle) error
	Update(ctx context.Context, vehicle *Vehicle) error
	ExistsByCodeAndBrandCode(ctx context.Context, code, brandCode string) (bool, error)
	FindByID(ctx context.Context, id int64) (*Vehicle, error)
	FindByBrandCode(ctx context.Context, brandCode string) ([]Vehicle, error)
}

type PostgresVehicleRepository struct {
	db *sql.DB
}

func NewVehicleRepository(db *sql.DB) VehicleRepository {
	return &PostgresVehicleRepository{db: db}
}

// Save inserts a new vehicle. A unique violation on (code, brand_code) is
// surfaced as a conflict so callers can treat the row as already persisted.
func (r *PostgresVehicleRepository) Save(ctx context.Context, vehicle *Vehicle) error {
	now := time.Now()
	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = now
	}
	vehicle.UpdatedAt = now

	query := `
		INSERT INTO vehicles (code, brand_code, model, observations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		vehicle.Code,
		vehicle.BrandCode,
		vehicle.Model,
		vehicle.Observations,
		vehicle.CreatedAt,
		vehicle.UpdatedAt,
	).Scan(&vehicle.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.ErrConflict.
				WithDetail("code", vehicle.Code).
				WithDetail("brand_code", vehicle.BrandCode).
				WithCause(err)
		}
		return fmt.Errorf("failed to save vehicle %s/%s: %w", vehicle.BrandCode, vehicle.Code, err)
	}

	return nil
}

func (r *PostgresVehicleRepository) Update(ctx context.Context, vehicle *Vehicle) error {
	vehicle.UpdatedAt = time.Now()

	query := `
		UPDATE vehicles
		SET model = $1, observations = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		vehicle.Model,
		vehicle.Observations,
		vehicle.UpdatedAt,
		vehicle.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update vehicle %d: %w", vehicle.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("id", vehicle.ID)
	}

	return nil
}

func (r *PostgresVehicleRepository) ExistsByCodeAndBrandCode(ctx context.Context, code, brandCode string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM vehicles WHERE code = $1 AND brand_code = $2
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, code, brandCode).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check vehicle existence %s/%s: %w", brandCode, code, err)
	}

	return exists, nil
}

func (r *PostgresVehicleRepository) FindByID(ctx context.Context, id int64) (*Vehicle, error) {
	query := `
		SELECT id, code, brand_code, model, observations, created_at, updated_at
		FROM vehicles
		WHERE id = $1
	`

	var vehicle Vehicle
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&vehicle.ID,
		&vehicle.Code,
		&vehicle.BrandCode,
		&vehicle.Model,
		&vehicle.Observations,
		&vehicle.CreatedAt,
		&vehicle.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vehicle %d: %w", id, err)
	}

	return &vehicle, nil
}

func (r *PostgresVehicleRepository) FindByBrandCode(ctx context.Context, brandCode string) ([]Vehicle, error) {
	query := `
		SELECT id, code, brand_code, model, observations, created_at, updated_at
		FROM vehicles
		WHERE brand_code = $1
		ORDER BY model ASC
	`

	rows, err := r.db.QueryContext(ctx, query, brandCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles for brand %s: %w", brandCode, err)
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		var vehicle Vehicle
		err := rows.Scan(
			&vehicle.ID,
			&vehicle.Code,
			&vehicle.BrandCode,
			&vehicle.Model,
			&vehicle.Observations,
			&vehicle.CreatedAt,
			&vehicle.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, vehicle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return vehicles, nil
}
