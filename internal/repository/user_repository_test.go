package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/models"
)

var userRowColumns = []string{"id", "username", "email", "phone", "password_hash", "role", "created_at", "updated_at"}

func newMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestUserRepository_Create(t *testing.T) {
	mock := newMockDB(t)
	repo := NewUserRepository(mock)

	phone := "7070261370"
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("u1", "alice", "a@x.com", &phone, []byte("hash"), "User").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), models.User{
		ID:           "u1",
		Username:     "alice",
		Email:        "  A@X.com ",
		Phone:        &phone,
		PasswordHash: []byte("hash"),
		Role:         models.UserRoleUser,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateMapsUniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{name: "email", constraint: "users_email_key", want: ErrDuplicateEmail},
		{name: "phone", constraint: "users_phone_key", want: ErrDuplicatePhone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockDB(t)
			repo := NewUserRepository(mock)

			mock.ExpectExec(`INSERT INTO users`).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			err := repo.Create(context.Background(), models.User{ID: "u1", Email: "a@x.com", Role: models.UserRoleUser})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUserRepository_CreateWrapsOtherErrors(t *testing.T) {
	mock := newMockDB(t)
	repo := NewUserRepository(mock)

	boom := errors.New("connection reset")
	mock.ExpectExec(`INSERT INTO users`).WillReturnError(boom)

	err := repo.Create(context.Background(), models.User{ID: "u1", Email: "a@x.com", Role: models.UserRoleUser})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepository_FindByEmail(t *testing.T) {
	mock := newMockDB(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM users WHERE email = \$1`).
		WithArgs("a@x.com").
		WillReturnRows(mock.NewRows(userRowColumns).
			AddRow("u1", "alice", "a@x.com", (*string)(nil), []byte("hash"), "Manager", now, now))

	user, err := repo.FindByEmail(context.Background(), "A@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, models.UserRoleManager, user.Role)
	assert.Nil(t, user.Phone)
	assert.Equal(t, []byte("hash"), user.PasswordHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByLogin(t *testing.T) {
	mock := newMockDB(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM users\s+WHERE email = \$1 OR username = \$2`).
		WithArgs("alice", "alice").
		WillReturnRows(mock.NewRows(userRowColumns).
			AddRow("u1", "alice", "a@x.com", (*string)(nil), []byte("hash"), "User", now, now))

	user, err := repo.FindByLogin(context.Background(), " alice ")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_NotFound(t *testing.T) {
	mock := newMockDB(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM users WHERE phone = \$1`).
		WithArgs("123").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.FindByPhone(context.Background(), "123")
	require.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
