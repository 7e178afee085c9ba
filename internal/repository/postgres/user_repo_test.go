package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/openmunicipal/civicportal/internal/errs"
	"github.com/openmunicipal/civicportal/internal/model"
)

func testUser() *model.User {
	return &model.User{
		ID:       uuid.Must(uuid.NewV4()),
		FullName: "John Doe",
		Email:    "john@x.com",
		Phone:    "+91-9876543210",
		PwdHash:  []byte("h"),
		SaltAuth: []byte("s"),
		Role:     model.RoleCitizen,
		Active:   true,
	}
}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := testUser()

	// OK
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.FullName, "john@x.com", u.Phone, u.PwdHash, u.SaltAuth, "CITIZEN", u.WardID, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, u))

	// Unique violation maps to ErrAlreadyExists
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.FullName, "john@x.com", u.Phone, u.PwdHash, u.SaltAuth, "CITIZEN", u.WardID, true).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)
}

func TestUserRepo_Create_LowercasesEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	u := testUser()
	u.Email = "John@X.COM"

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.FullName, "john@x.com", u.Phone, u.PwdHash, u.SaltAuth, "CITIZEN", u.WardID, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(context.Background(), u))
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	id := uuid.Must(uuid.NewV4())

	rows := pgxmock.NewRows([]string{"id", "full_name", "email", "phone", "pwd_hash", "salt_auth", "role", "ward_id", "active", "created_at"}).
		AddRow(id, "John Doe", "john@x.com", "+91-9876543210", []byte("h"), []byte("s"), "CITIZEN", (*uuid.UUID)(nil), true, time.Now())
	mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\$1`).
		WithArgs("john@x.com").
		WillReturnRows(rows)

	u, err := r.GetByEmail(context.Background(), "John@x.com")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, model.RoleCitizen, u.Role)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\$1`).
		WithArgs("nobody@x.com").
		WillReturnError(errs.ErrNotFound)
	_, err = r.GetByEmail(context.Background(), "nobody@x.com")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_Deactivate_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE users SET active=false WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.Deactivate(context.Background(), id), errs.ErrNotFound)
}
