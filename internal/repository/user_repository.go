package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"taskmanager/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrDuplicatePhone = errors.New("phone already registered")
)

const userColumns = `id, username, email, phone, password_hash, role, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// NormalizeEmail is applied on every write and lookup so uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, username, email, phone, password_hash, role, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Username,
		NormalizeEmail(user.Email),
		user.Phone,
		user.PasswordHash,
		string(user.Role),
	)
	if constraint, ok := uniqueConstraint(err); ok {
		switch constraint {
		case "users_email_key":
			return ErrDuplicateEmail
		case "users_phone_key":
			return ErrDuplicatePhone
		}
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, NormalizeEmail(email)))
}

func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	return scanUser(r.db.QueryRow(ctx, query, phone))
}

// FindByLogin resolves an identifier that may be either an email or a
// username. An email match wins; among username matches the oldest account is
// returned since usernames are not unique.
func (r *UserRepository) FindByLogin(ctx context.Context, identifier string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 OR username = $2
		ORDER BY (email = $1) DESC, created_at ASC
		LIMIT 1
	`
	return scanUser(r.db.QueryRow(ctx, query, NormalizeEmail(identifier), strings.TrimSpace(identifier)))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user models.User
		role string
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Phone,
		&user.PasswordHash,
		&role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.Role = models.UserRole(role)
	return user, nil
}
