package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"taskmanager/internal/ids"
	"taskmanager/internal/models"
	"taskmanager/internal/repository"
	"taskmanager/internal/revocation"
	"taskmanager/internal/security"
)

var (
	// ErrInvalidCredentials covers both an unknown identifier and a wrong
	// password. Keep them indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("user already exists with this email")
	ErrPhoneTaken         = errors.New("user already exists with this phone number")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidUsername    = errors.New("username must be between 3 and 30 characters long")
	ErrUserNotFound       = errors.New("user not found")
)

const (
	minUsernameLen = 3
	maxUsernameLen = 30
)

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByPhone(ctx context.Context, phone string) (models.User, error)
	FindByLogin(ctx context.Context, identifier string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
}

type TokenIssuer interface {
	Issue(userID string, role models.UserRole) (string, error)
}

type AuthService struct {
	users        UserStore
	tokens       TokenIssuer
	revoked      revocation.Store
	storeTimeout time.Duration
	log          zerolog.Logger
}

func NewAuthService(
	users UserStore,
	tokens TokenIssuer,
	revoked revocation.Store,
	storeTimeout time.Duration,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:        users,
		tokens:       tokens,
		revoked:      revoked,
		storeTimeout: storeTimeout,
		log:          log,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Phone    string
	Password string
	Role     models.UserRole
}

type AuthResult struct {
	Token string
	User  models.User
}

// Register creates the account and logs it in straight away.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	ctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	input.Email = repository.NormalizeEmail(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)

	input.Username = strings.TrimSpace(input.Username)
	if n := utf8.RuneCountInString(input.Username); n < minUsernameLen || n > maxUsernameLen {
		return AuthResult{}, ErrInvalidUsername
	}

	role := input.Role
	if role == "" {
		role = models.UserRoleUser
	}
	if !role.Valid() {
		return AuthResult{}, ErrInvalidRole
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, fmt.Errorf("lookup email: %w", err)
	}

	var phone *string
	if input.Phone != "" {
		if _, err := s.users.FindByPhone(ctx, input.Phone); err == nil {
			return AuthResult{}, ErrPhoneTaken
		} else if !errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, fmt.Errorf("lookup phone: %w", err)
		}
		phone = &input.Phone
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Username:     input.Username,
		Email:        input.Email,
		Phone:        phone,
		PasswordHash: passwordHash,
		Role:         role,
	}

	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return AuthResult{}, ErrEmailTaken
		case errors.Is(err, repository.ErrDuplicatePhone):
			return AuthResult{}, ErrPhoneTaken
		}
		return AuthResult{}, err
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return AuthResult{}, err
	}

	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")

	return AuthResult{Token: token, User: user}, nil
}

type LoginInput struct {
	Identifier string
	Password   string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	ctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.FindByLogin(ctx, input.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			security.EqualizeTiming(input.Password)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		return AuthResult{}, ErrInvalidCredentials
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{Token: token, User: user}, nil
}

// Logout blacklists token. It cannot fail; see package revocation for why.
func (s *AuthService) Logout(ctx context.Context, token string) {
	s.revoked.Revoke(ctx, token)
}

func (s *AuthService) Me(ctx context.Context, userID string) (models.User, error) {
	ctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// storeContext bounds a single store round trip.
func storeContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
