package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const slotColumns = `id, slot_date, start_time, end_time, is_available, assigned_employee_id, assigned_employee_name, created_at`

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	err := row.Scan(
		&s.ID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.Available,
		&s.AssignedEmployeeID,
		&s.AssignedEmployeeName,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) Insert(ctx context.Context, s TimeSlot) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO time_slots
			(id, slot_date, start_time, end_time, is_available, assigned_employee_id, assigned_employee_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO NOTHING
	`, s.ID, s.Date, s.StartTime, s.EndTime, s.Available, s.AssignedEmployeeID, s.AssignedEmployeeName)
	if err != nil {
		return false, fmt.Errorf("insert slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	return scanSlot(r.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM time_slots WHERE id = $1`, id))
}

func (r *PgRepository) ListByDate(ctx context.Context, from, to time.Time, availableOnly bool) ([]TimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE slot_date >= $1
		  AND slot_date < $2
		  AND ($3 = false OR is_available)
		ORDER BY start_time, assigned_employee_name NULLS FIRST
	`, from, to, availableOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []TimeSlot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) Claim(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE time_slots
		SET is_available = false
		WHERE id = $1
		  AND is_available
		RETURNING `+slotColumns, id)
	s, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrSlotUnavailable
	}
	return s, err
}

func (r *PgRepository) Release(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	return scanSlot(r.pool.QueryRow(ctx, `
		UPDATE time_slots
		SET is_available = true
		WHERE id = $1
		RETURNING `+slotColumns, id))
}

func (r *PgRepository) AssignEmployee(ctx context.Context, id, employeeID uuid.UUID, employeeName string) (*TimeSlot, error) {
	return scanSlot(r.pool.QueryRow(ctx, `
		UPDATE time_slots
		SET assigned_employee_id = $2,
		    assigned_employee_name = $3
		WHERE id = $1
		RETURNING `+slotColumns, id, employeeID, employeeName))
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM time_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}
