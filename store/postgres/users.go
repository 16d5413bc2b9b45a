package postgres

import (
	"context"
	"errors"

	"github.com/MrEthical07/classgate"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, name, email, password_hash, role, created_at`

// Users implements classgate.UserDirectory.
type Users struct {
	pool Pool
}

func NewUsers(pool Pool) *Users {
	return &Users{pool: pool}
}

func (s *Users) FindByEmail(ctx context.Context, email string) (classgate.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row, "find user by email")
}

func (s *Users) FindByID(ctx context.Context, id string) (classgate.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row, "find user by id")
}

// Create inserts user. A duplicate email reports classgate.ErrAlreadyRegistered.
func (s *Users) Create(ctx context.Context, user classgate.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), user.CreatedAt,
	)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return classgate.ErrAlreadyRegistered
	}
	return wrap("create user", err)
}

func scanUser(row pgx.Row, op string) (classgate.User, error) {
	var (
		u    classgate.User
		role string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return classgate.User{}, classgate.ErrUserNotFound
	}
	if err != nil {
		return classgate.User{}, wrap(op, err)
	}
	u.Role = classgate.Role(role)
	return u, nil
}
