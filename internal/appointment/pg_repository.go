package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hackgods/emerald-details/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, customer_id, customer_name, customer_phone, employee_id, employee_name,
	vehicle, service, time_slot, location, status, total_price::text, payment_status,
	payment_intent_id, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a                        Appointment
		vehicleJSON, serviceJSON []byte
		slotJSON, locationJSON   []byte
		totalPrice               string
	)

	err := row.Scan(
		&a.ID,
		&a.CustomerID,
		&a.CustomerName,
		&a.CustomerPhone,
		&a.EmployeeID,
		&a.EmployeeName,
		&vehicleJSON,
		&serviceJSON,
		&slotJSON,
		&locationJSON,
		&a.Status,
		&totalPrice,
		&a.PaymentStatus,
		&a.PaymentIntentID,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if a.TotalPrice, err = decimal.NewFromString(totalPrice); err != nil {
		return nil, fmt.Errorf("parse total_price %q: %w", totalPrice, err)
	}
	snapshots := []struct {
		raw []byte
		dst any
	}{
		{vehicleJSON, &a.Vehicle},
		{serviceJSON, &a.Service},
		{slotJSON, &a.TimeSlot},
		{locationJSON, &a.Location},
	}
	for _, s := range snapshots {
		if err := json.Unmarshal(s.raw, s.dst); err != nil {
			return nil, fmt.Errorf("decode appointment %s snapshot: %w", a.ID, err)
		}
	}

	return &a, nil
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment, saveVehicle bool) (*Appointment, error) {
	vehicleJSON, err := json.Marshal(a.Vehicle)
	if err != nil {
		return nil, fmt.Errorf("encode vehicle: %w", err)
	}
	serviceJSON, err := json.Marshal(a.Service)
	if err != nil {
		return nil, fmt.Errorf("encode service: %w", err)
	}
	slotJSON, err := json.Marshal(a.TimeSlot)
	if err != nil {
		return nil, fmt.Errorf("encode time slot: %w", err)
	}
	locationJSON, err := json.Marshal(a.Location)
	if err != nil {
		return nil, fmt.Errorf("encode location: %w", err)
	}

	var created *Appointment
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE time_slots
			SET is_available = false
			WHERE id = $1
			  AND is_available
		`, a.TimeSlot.ID)
		if err != nil {
			return fmt.Errorf("claim slot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrSlotUnavailable
		}

		if saveVehicle {
			v := a.Vehicle
			if _, err := tx.Exec(ctx, `
				INSERT INTO vehicles (id, owner_id, make, model, year, color, license_plate, size, notes, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
				ON CONFLICT (id) DO NOTHING
			`, v.ID, a.CustomerID, v.Make, v.Model, v.Year, v.Color, v.LicensePlate, v.Size, v.Notes); err != nil {
				return fmt.Errorf("insert vehicle: %w", err)
			}
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments
				(id, customer_id, customer_name, customer_phone, employee_id, employee_name,
				 slot_id, slot_start, vehicle, service, time_slot, location,
				 status, total_price, payment_status, payment_intent_id, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::numeric, $15, $16, $17, now(), now())
			RETURNING `+appointmentColumns,
			a.ID, a.CustomerID, a.CustomerName, a.CustomerPhone, a.EmployeeID, a.EmployeeName,
			a.TimeSlot.ID, a.TimeSlot.StartTime, vehicleJSON, serviceJSON, slotJSON, locationJSON,
			a.Status, a.TotalPrice.String(), a.PaymentStatus, a.PaymentIntentID, a.Notes)
		created, err = scanAppointment(row)
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != nil {
		add("customer_id = $%d", *f.CustomerID)
	}
	if f.EmployeeID != nil {
		add("employee_id = $%d", *f.EmployeeID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.PaymentStatus != nil {
		add("payment_status = $%d", *f.PaymentStatus)
	}
	if f.From != nil {
		add("slot_start >= $%d", *f.From)
	}
	if f.To != nil {
		add("slot_start < $%d", *f.To)
	}

	q := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	// date-bounded queries are schedules, everything else is history
	if f.From != nil || f.To != nil {
		q += ` ORDER BY slot_start ASC`
	} else {
		q += ` ORDER BY created_at DESC`
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM appointments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int, len(AllStatuses))
	for _, s := range AllStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			s Status
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) AssignEmployee(ctx context.Context, id, employeeID uuid.UUID, employeeName string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET employee_id = $2,
		    employee_name = $3,
		    status = 'confirmed',
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+appointmentColumns, id, employeeID, employeeName)

	return scanAppointment(row)
}

func (r *PgRepository) ClaimPayment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET payment_status = 'processing',
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'cancelled'
		  AND payment_status IN ('pending', 'failed')
		RETURNING `+appointmentColumns, id)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrPaymentNotOpen
	}
	return a, err
}

func (r *PgRepository) UpdatePayment(ctx context.Context, id uuid.UUID, status PaymentStatus, intentID *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET payment_status = $2,
		    payment_intent_id = COALESCE($3, payment_intent_id),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, id, status, intentID)

	return scanAppointment(row)
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, slotID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE time_slots SET is_available = true WHERE id = $1`, slotID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
