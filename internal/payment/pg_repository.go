package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const methodColumns = `id, customer_id, type, is_default, card_last4, card_brand, card_exp_month, card_exp_year, gateway_method_id, created_at`

const transactionColumns = `id, appointment_id, customer_id, amount::text, status, payment_method_id, gateway_intent_id, created_at`

func scanMethod(row pgx.Row) (*PaymentMethod, error) {
	var m PaymentMethod
	err := row.Scan(
		&m.ID,
		&m.CustomerID,
		&m.Type,
		&m.IsDefault,
		&m.CardLast4,
		&m.CardBrand,
		&m.CardExpMonth,
		&m.CardExpYear,
		&m.GatewayMethodID,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMethodNotFound
		}
		return nil, err
	}
	return &m, nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		t      Transaction
		amount string
	)
	err := row.Scan(
		&t.ID,
		&t.AppointmentID,
		&t.CustomerID,
		&amount,
		&t.Status,
		&t.PaymentMethodID,
		&t.GatewayIntentID,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &t, nil
}

func (r *PgRepository) CreateMethod(ctx context.Context, m PaymentMethod) (*PaymentMethod, error) {
	var created *PaymentMethod
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if m.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE payment_methods SET is_default = false WHERE customer_id = $1 AND is_default`, m.CustomerID); err != nil {
				return fmt.Errorf("clear default: %w", err)
			}
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO payment_methods
				(id, customer_id, type, is_default, card_last4, card_brand, card_exp_month, card_exp_year, gateway_method_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			RETURNING `+methodColumns,
			m.ID, m.CustomerID, m.Type, m.IsDefault, m.CardLast4, m.CardBrand, m.CardExpMonth, m.CardExpYear, m.GatewayMethodID)
		var err error
		if created, err = scanMethod(row); err != nil {
			return fmt.Errorf("insert payment method: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) ListMethods(ctx context.Context, customerID uuid.UUID) ([]PaymentMethod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+methodColumns+`
		FROM payment_methods
		WHERE customer_id = $1
		ORDER BY is_default DESC, created_at
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []PaymentMethod{}
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetMethod(ctx context.Context, customerID, id uuid.UUID) (*PaymentMethod, error) {
	return scanMethod(r.pool.QueryRow(ctx, `
		SELECT `+methodColumns+` FROM payment_methods WHERE id = $1 AND customer_id = $2
	`, id, customerID))
}

func (r *PgRepository) DefaultMethod(ctx context.Context, customerID uuid.UUID) (*PaymentMethod, error) {
	return scanMethod(r.pool.QueryRow(ctx, `
		SELECT `+methodColumns+` FROM payment_methods WHERE customer_id = $1 AND is_default
	`, customerID))
}

func (r *PgRepository) SetDefault(ctx context.Context, customerID, id uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE payment_methods SET is_default = false WHERE customer_id = $1 AND is_default`, customerID); err != nil {
			return fmt.Errorf("clear default: %w", err)
		}
		tag, err := tx.Exec(ctx, `UPDATE payment_methods SET is_default = true WHERE id = $1 AND customer_id = $2`, id, customerID)
		if err != nil {
			return fmt.Errorf("set default: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrMethodNotFound
		}
		return nil
	})
}

func (r *PgRepository) DeleteMethod(ctx context.Context, customerID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payment_methods WHERE id = $1 AND customer_id = $2`, id, customerID)
	if err != nil {
		return fmt.Errorf("delete payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMethodNotFound
	}
	return nil
}

func (r *PgRepository) CreateTransaction(ctx context.Context, t Transaction) (*Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `
		INSERT INTO transactions
			(id, appointment_id, customer_id, amount, status, payment_method_id, gateway_intent_id, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, now())
		RETURNING `+transactionColumns,
		t.ID, t.AppointmentID, t.CustomerID, t.Amount.String(), t.Status, t.PaymentMethodID, t.GatewayIntentID))
}

func (r *PgRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
}

func (r *PgRepository) UpdateTransaction(ctx context.Context, id uuid.UUID, status appointment.PaymentStatus, intentID *string) (*Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `
		UPDATE transactions
		SET status = $2,
		    gateway_intent_id = COALESCE($3, gateway_intent_id)
		WHERE id = $1
		RETURNING `+transactionColumns, id, status, intentID))
}

func (r *PgRepository) ListTransactions(ctx context.Context, customerID uuid.UUID) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}
