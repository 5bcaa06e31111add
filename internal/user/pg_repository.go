package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const userColumns = `id, name, email, phone, role, email_verified, profile_image_url, gateway_customer_id, is_available, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.Role,
		&u.EmailVerified,
		&u.ProfileImageURL,
		&u.GatewayCustomerID,
		&u.Available,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgRepository) Create(ctx context.Context, u *User, passwordHash string) (*User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users
			(id, name, email, phone, role, password_hash, email_verified, profile_image_url, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+userColumns,
		u.ID, u.Name, strings.ToLower(u.Email), u.Phone, u.Role, passwordHash, u.EmailVerified, u.ProfileImageURL, u.Available)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *PgRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email))
}

func (r *PgRepository) PasswordHash(ctx context.Context, email string) (uuid.UUID, string, error) {
	var id uuid.UUID
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT id, password_hash FROM users WHERE email = lower($1)`, email).Scan(&id, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, "", ErrUserNotFound
		}
		return uuid.Nil, "", err
	}
	return id, hash, nil
}

func (r *PgRepository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.execOne(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
}

func (r *PgRepository) UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET name = $2,
		    phone = $3,
		    profile_image_url = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, p.Name, p.Phone, p.ProfileImageURL))
}

func (r *PgRepository) SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	return r.execOne(ctx, `UPDATE users SET email_verified = $2, updated_at = now() WHERE id = $1`, id, verified)
}

func (r *PgRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET is_available = $2, updated_at = now()
		WHERE id = $1 AND role = 'employee'
		RETURNING `+userColumns, id, available))
}

func (r *PgRepository) SetGatewayCustomerID(ctx context.Context, id uuid.UUID, ref string) error {
	return r.execOne(ctx, `UPDATE users SET gateway_customer_id = $2, updated_at = now() WHERE id = $1`, id, ref)
}

func (r *PgRepository) ListByRole(ctx context.Context, role Role) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY name`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, rows.Err()
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (r *PgRepository) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
