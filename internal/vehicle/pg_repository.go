package vehicle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const vehicleColumns = `id, owner_id, make, model, year, color, license_plate, size, notes, created_at`

func scanVehicle(row pgx.Row) (*Vehicle, error) {
	var v Vehicle
	err := row.Scan(
		&v.ID,
		&v.OwnerID,
		&v.Make,
		&v.Model,
		&v.Year,
		&v.Color,
		&v.LicensePlate,
		&v.Size,
		&v.Notes,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *PgRepository) Create(ctx context.Context, v *Vehicle) (*Vehicle, error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO vehicles (id, owner_id, make, model, year, color, license_plate, size, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING `+vehicleColumns,
		v.ID, v.OwnerID, v.Make, v.Model, v.Year, v.Color, v.LicensePlate, v.Size, v.Notes)
	created, err := scanVehicle(row)
	if err != nil {
		return nil, fmt.Errorf("insert vehicle: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Vehicle, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
	return scanVehicle(row)
}

func (r *PgRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Vehicle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+vehicleColumns+`
		FROM vehicles
		WHERE owner_id = $1
		ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}

func (r *PgRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vehicles WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVehicleNotFound
	}
	return nil
}
