package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/openmunicipal/civicportal/internal/errs"
	"github.com/openmunicipal/civicportal/internal/model"
	"github.com/openmunicipal/civicportal/internal/repository"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, full_name, email, phone, pwd_hash, salt_auth, role, ward_id, active, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.PwdHash, &u.SaltAuth, &role, &u.WardID, &u.Active, &u.CreatedAt); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	u.Role = model.Role(role)
	return &u, nil
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, full_name, email, phone, pwd_hash, salt_auth, role, ward_id, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Pool.Exec(ctx, q,
		u.ID, u.FullName, strings.ToLower(u.Email), u.Phone, u.PwdHash, u.SaltAuth, string(u.Role), u.WardID, u.Active)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByEmail selects a user by lowercase email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, strings.ToLower(email)))
}

// List returns users matching the filter plus the total match count.
func (r *UserRepo) List(ctx context.Context, f repository.UserFilter) ([]model.User, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	const q = `
SELECT ` + userCols + `, count(*) OVER() AS total
FROM users
WHERE ($1 = '' OR role = $1)
  AND ($2 = '' OR full_name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`
	rows, err := r.db.Pool.Query(ctx, q, string(f.Role), f.Search, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.User
	var total int64
	for rows.Next() {
		var u model.User
		var role string
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.PwdHash, &u.SaltAuth, &role, &u.WardID, &u.Active, &u.CreatedAt, &total); err != nil {
			return nil, 0, err
		}
		u.Role = model.Role(role)
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Update persists mutable profile fields.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	const q = `
UPDATE users
SET full_name=$2, phone=$3, role=$4, ward_id=$5, active=$6
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, u.ID, u.FullName, u.Phone, string(u.Role), u.WardID, u.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Deactivate flips the active flag off.
func (r *UserRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE users SET active=false WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
