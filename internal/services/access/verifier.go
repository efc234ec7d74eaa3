package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/formpulse/backend/internal/lib/apikey"
	"github.com/formpulse/backend/internal/lib/jwt"
	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/storage"
)

// TokenParser разбирает и проверяет JWT.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// Denylist хранит идентификаторы отозванных токенов.
type Denylist interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// KeyStore даёт доступ к API-ключам.
// TouchAPIKey должен увеличивать счётчик одним атомарным условным обновлением.
type KeyStore interface {
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	TouchAPIKey(ctx context.Context, id string, at time.Time) (int64, time.Time, error)
}

// TokenIdentity — результат проверки JWT.
type TokenIdentity struct {
	Subject   string
	TokenID   string
	ExpiresAt time.Time
}

// Verifier проверяет учётные данные запроса.
type Verifier struct {
	tokens   TokenParser
	denylist Denylist
	keys     KeyStore
	now      func() time.Time
}

// NewVerifier создаёт Verifier. denylist может быть nil, тогда отзыв токенов не проверяется.
func NewVerifier(tokens TokenParser, denylist Denylist, keys KeyStore) *Verifier {
	return &Verifier{
		tokens:   tokens,
		denylist: denylist,
		keys:     keys,
		now:      time.Now,
	}
}

// VerifyToken проверяет подпись и срок действия токена и его отсутствие в denylist.
func (v *Verifier) VerifyToken(ctx context.Context, token string) (*TokenIdentity, error) {
	const op = "access.VerifyToken"

	claims, err := v.tokens.ParseToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newError(KindExpiredToken, fmt.Errorf("%s: %w", op, err))
		}
		return nil, newError(KindInvalidToken, fmt.Errorf("%s: %w", op, err))
	}

	if v.denylist != nil && claims.ID != "" {
		revoked, err := v.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, newError(KindInternal, fmt.Errorf("%s: %w", op, err))
		}
		if revoked {
			return nil, newError(KindInvalidToken, fmt.Errorf("%s: token revoked", op))
		}
	}

	return &TokenIdentity{
		Subject:   claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAtTime(),
	}, nil
}

// VerifyAPIKey находит ключ по хэшу и проверяет статус и срок действия.
// При успехе счётчик использований увеличивается ровно один раз,
// а возвращаемый ключ содержит обновлённые счётчик и время использования.
func (v *Verifier) VerifyAPIKey(ctx context.Context, key string) (*models.APIKey, error) {
	const op = "access.VerifyAPIKey"

	if !apikey.WellFormed(key) {
		return nil, newError(KindUnknownKey, fmt.Errorf("%s: malformed key", op))
	}

	record, err := v.keys.GetAPIKeyByHash(ctx, apikey.Hash(key))
	if err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			return nil, newError(KindUnknownKey, fmt.Errorf("%s: %w", op, err))
		}
		return nil, newError(KindInternal, fmt.Errorf("%s: %w", op, err))
	}

	if record.Status != models.KeyActive {
		return nil, newError(KindUnknownKey, fmt.Errorf("%s: key status %s", op, record.Status))
	}
	now := v.now()
	if record.Expired(now) {
		return nil, newError(KindExpiredKey, fmt.Errorf("%s: key expired at %s", op, record.ExpiresAt))
	}

	usage, lastUsed, err := v.keys.TouchAPIKey(ctx, record.ID, now)
	if err != nil {
		// Ключ мог быть отозван между чтением и обновлением.
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			return nil, newError(KindUnknownKey, fmt.Errorf("%s: %w", op, err))
		}
		return nil, newError(KindInternal, fmt.Errorf("%s: %w", op, err))
	}
	record.UsageCount = usage
	record.LastUsedAt = &lastUsed

	return record, nil
}
