package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// base_price is read as text and parsed into a decimal to avoid float drift.
const packageColumns = `id, name, description, base_price::text, duration_minutes, features, is_active, sort_order, created_at, updated_at`

func scanPackage(row pgx.Row) (*ServicePackage, error) {
	var p ServicePackage
	var price string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&price,
		&p.DurationMinutes,
		&p.Features,
		&p.Active,
		&p.SortOrder,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	p.BasePrice, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse base price %q: %w", price, err)
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PgRepository) List(ctx context.Context, activeOnly bool) ([]ServicePackage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+packageColumns+`
		FROM service_packages
		WHERE ($1 = false OR is_active)
		ORDER BY sort_order, name
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []ServicePackage{}
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*ServicePackage, error) {
	return scanPackage(r.pool.QueryRow(ctx, `SELECT `+packageColumns+` FROM service_packages WHERE id = $1`, id))
}

func (r *PgRepository) GetByName(ctx context.Context, name string) (*ServicePackage, error) {
	return scanPackage(r.pool.QueryRow(ctx, `SELECT `+packageColumns+` FROM service_packages WHERE lower(name) = lower($1)`, name))
}

func (r *PgRepository) Create(ctx context.Context, p *ServicePackage) (*ServicePackage, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO service_packages
			(id, name, description, base_price, duration_minutes, features, is_active, sort_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, now(), now())
		RETURNING `+packageColumns,
		p.ID, p.Name, p.Description, p.BasePrice.String(), p.DurationMinutes, p.Features, p.Active, p.SortOrder)

	created, err := scanPackage(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateService
		}
		return nil, fmt.Errorf("insert service package: %w", err)
	}
	return created, nil
}

func (r *PgRepository) Update(ctx context.Context, p *ServicePackage) (*ServicePackage, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE service_packages
		SET name = $2,
		    description = $3,
		    base_price = $4::numeric,
		    duration_minutes = $5,
		    features = $6,
		    is_active = $7,
		    sort_order = $8,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+packageColumns,
		p.ID, p.Name, p.Description, p.BasePrice.String(), p.DurationMinutes, p.Features, p.Active, p.SortOrder)

	updated, err := scanPackage(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateService
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*ServicePackage, error) {
	return scanPackage(r.pool.QueryRow(ctx, `
		UPDATE service_packages
		SET is_active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+packageColumns, id, active))
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM service_packages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service package: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}
