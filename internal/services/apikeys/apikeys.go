// Package services содержит бизнес-логику выпуска, просмотра и отзыва API-ключей.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/formpulse/backend/internal/lib/apikey"
	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/storage"
)

var (
	// ErrNoPermissions — ключ без прав выпускать нельзя.
	ErrNoPermissions = errors.New("at least one permission is required")
	// ErrUnknownPermission — запрошено неизвестное право.
	ErrUnknownPermission = errors.New("unknown permission")
	// ErrKeyNotFound — ключ не найден или принадлежит другому пользователю.
	ErrKeyNotFound = errors.New("api key not found")
)

// Repository описывает хранилище API-ключей.
type Repository interface {
	CreateAPIKey(ctx context.Context, key models.APIKey) (string, error)
	ListAPIKeys(ctx context.Context, userID string) ([]models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id, userID string) error
}

// IssuedKey — новый ключ. Plaintext возвращается клиенту один раз и нигде не хранится.
type IssuedKey struct {
	Plaintext string
	Key       models.APIKey
}

// APIKeyService управляет ключами пользователя.
type APIKeyService struct {
	keys Repository
	now  func() time.Time
}

func NewAPIKeyService(keys Repository) *APIKeyService {
	return &APIKeyService{keys: keys, now: time.Now}
}

// Issue выпускает ключ с набором прав. expiresInDays = 0 означает бессрочный ключ.
func (s *APIKeyService) Issue(ctx context.Context, userID, name string, permissions []string, expiresInDays int) (*IssuedKey, error) {
	const op = "services.Issue"

	perms, err := normalizePermissions(permissions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plain, err := apikey.Generate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	key := models.APIKey{
		UserID:      userID,
		Name:        name,
		KeyHash:     apikey.Hash(plain),
		KeyPrefix:   apikey.DisplayPrefix(plain),
		Status:      models.KeyActive,
		Permissions: perms,
		CreatedAt:   now,
	}
	if expiresInDays > 0 {
		expires := now.AddDate(0, 0, expiresInDays)
		key.ExpiresAt = &expires
	}

	key.ID, err = s.keys.CreateAPIKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &IssuedKey{Plaintext: plain, Key: key}, nil
}

// List возвращает ключи пользователя без секретов.
func (s *APIKeyService) List(ctx context.Context, userID string) ([]models.APIKey, error) {
	const op = "services.List"
	keys, err := s.keys.ListAPIKeys(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return keys, nil
}

// Revoke переводит ключ пользователя в статус INACTIVE.
func (s *APIKeyService) Revoke(ctx context.Context, id, userID string) error {
	const op = "services.Revoke"
	if err := s.keys.RevokeAPIKey(ctx, id, userID); err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			return fmt.Errorf("%s: %w", op, ErrKeyNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// normalizePermissions проверяет права и убирает повторы, сохраняя порядок.
func normalizePermissions(permissions []string) ([]string, error) {
	if len(permissions) == 0 {
		return nil, ErrNoPermissions
	}
	result := make([]string, 0, len(permissions))
	for _, p := range permissions {
		if !slices.Contains(models.KnownPermissions, p) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPermission, p)
		}
		if !slices.Contains(result, p) {
			result = append(result, p)
		}
	}
	return result, nil
}
