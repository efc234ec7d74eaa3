// Package services содержит бизнес-логику регистрации, входа и выхода пользователей.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/formpulse/backend/internal/lib/jwt"
	"github.com/formpulse/backend/internal/lib/password"
	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/storage"
)

var (
	// ErrInvalidCredentials — неверная почта или пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists — почта уже зарегистрирована.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound — аккаунт не найден.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя и возвращает его ID.
	CreateUser(ctx context.Context, user models.User) (string, error)
	// GetUserByEmail возвращает пользователя по почте.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// DeleteUser удаляет пользователя и его ключи.
	DeleteUser(ctx context.Context, id string) error
}

// TokenRevoker заносит токен в denylist до истечения его срока.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

// LoginResult — выпущенный токен сессии.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService отвечает за регистрацию, вход и выход.
type AuthService struct {
	users    UserRepository
	jwtMaker jwt.Maker
	revoker  TokenRevoker
	ttl      time.Duration
	now      func() time.Time
	compare  func(hash, raw string) error
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, jwtMaker jwt.Maker, revoker TokenRevoker, ttl time.Duration) *AuthService {
	return &AuthService{
		users:    users,
		jwtMaker: jwtMaker,
		revoker:  revoker,
		ttl:      ttl,
		now:      time.Now,
		compare:  password.CompareHash,
	}
}

// Register создает пользователя на тарифе FREE со статусом ACTIVE и неподтверждённой почтой.
func (s *AuthService) Register(ctx context.Context, email, name, rawPassword string) (string, error) {
	const op = "services.Register"

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	user := models.User{
		Email:              normalizeEmail(email),
		Name:               name,
		PasswordHash:       hashed,
		Tier:               models.TierFree,
		SubscriptionStatus: models.StatusActive,
	}
	id, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return "", fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// Login проверяет пароль и выпускает JWT с subject = ID пользователя.
// Несуществующая почта и неверный пароль неразличимы для клиента.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (*LoginResult, error) {
	const op = "services.Login"

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// bcrypt выполняется и для неизвестной почты, чтобы время ответа не выдавало её.
			_ = s.compare(password.DummyHash(), rawPassword)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = s.compare(user.PasswordHash, rawPassword); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	issuedAt := s.now()
	token, err := s.jwtMaker.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &LoginResult{Token: token, ExpiresAt: issuedAt.Add(s.ttl)}, nil
}

// Logout отзывает токен до момента его истечения.
func (s *AuthService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	const op = "services.Logout"

	if tokenID == "" {
		return fmt.Errorf("%s: empty token id", op)
	}
	if err := s.revoker.Revoke(ctx, tokenID, expiresAt.Sub(s.now())); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteAccount удаляет аккаунт. Выпущенные токены после этого
// перестают проходить шлюз, потому что субъект не находится.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	const op = "services.DeleteAccount"

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
