package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/classgate"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		mock.Close()
	})
	return mock
}

var userCols = []string{"id", "name", "email", "password_hash", "role", "created_at"}

func TestUsersFindByEmail(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      classgate.User
		wantErr   error
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
					WithArgs("ada@x.com").
					WillReturnRows(pgxmock.NewRows(userCols).
						AddRow("u-1", "Ada", "ada@x.com", "$argon2id$hash", "teacher", created))
			},
			want: classgate.User{ID: "u-1", Name: "Ada", Email: "ada@x.com", PasswordHash: "$argon2id$hash", Role: classgate.RoleTeacher, CreatedAt: created},
		},
		{
			name: "missing",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
					WithArgs("ada@x.com").
					WillReturnRows(pgxmock.NewRows(userCols))
			},
			wantErr: classgate.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			got, err := NewUsers(mock).FindByEmail(context.Background(), "ada@x.com")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUsersFindByIDWrapsDriverErrors(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs("u-1").
		WillReturnError(errors.New("connection refused"))

	_, err := NewUsers(mock).FindByID(context.Background(), "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, classgate.ReasonInternal, classgate.ReasonOf(err))

	oe, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "postgres", oe.Domain())
	assert.Equal(t, "find user by id", oe.Context()["operation"])
}

func TestUsersCreate(t *testing.T) {
	user := classgate.User{
		ID:           "u-1",
		Name:         "Ada",
		Email:        "ada@x.com",
		PasswordHash: "h",
		Role:         classgate.RoleStudent,
		CreatedAt:    time.Now().UTC(),
	}

	t.Run("inserts", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(user.ID, user.Name, user.Email, user.PasswordHash, "student", user.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewUsers(mock).Create(context.Background(), user))
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(user.ID, user.Name, user.Email, user.PasswordHash, "student", user.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"})

		err := NewUsers(mock).Create(context.Background(), user)
		assert.ErrorIs(t, err, classgate.ErrAlreadyRegistered)
	})

	t.Run("other failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(user.ID, user.Name, user.Email, user.PasswordHash, "student", user.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.CheckViolation})

		err := NewUsers(mock).Create(context.Background(), user)
		require.Error(t, err)
		assert.NotErrorIs(t, err, classgate.ErrAlreadyRegistered)
	})
}
