package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/storage"
)

// UserStore даёт доступ к учётным записям.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Resolver загружает актуальные атрибуты субъекта на каждый запрос.
type Resolver struct {
	users UserStore
}

func NewResolver(users UserStore) *Resolver {
	return &Resolver{users: users}
}

// Resolve возвращает субъекта по ID. Удалённый аккаунт даёт KindPrincipalNotFound.
func (r *Resolver) Resolve(ctx context.Context, id string) (models.Principal, error) {
	const op = "access.Resolve"

	if id == "" {
		return models.Principal{}, newError(KindPrincipalNotFound, fmt.Errorf("%s: empty subject", op))
	}
	user, err := r.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Principal{}, newError(KindPrincipalNotFound, fmt.Errorf("%s: %w", op, err))
		}
		return models.Principal{}, newError(KindInternal, fmt.Errorf("%s: %w", op, err))
	}
	return user.Principal(), nil
}
