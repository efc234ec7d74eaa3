package access

import (
	"context"
	"slices"
	"time"

	"github.com/formpulse/backend/internal/models"
)

// Method — способ аутентификации запроса.
type Method string

const (
	MethodNone   Method = ""
	MethodBearer Method = "bearer"
	MethodAPIKey Method = "api_key"
)

// AuthContext — неизменяемый результат успешной аутентификации.
// Все геттеры возвращают копии.
type AuthContext struct {
	principal      models.Principal
	method         Method
	tokenID        string
	tokenExpiresAt time.Time
	key            *models.APIKey
}

// NewBearerContext создаёт AuthContext для запроса с JWT.
func NewBearerContext(p models.Principal, tokenID string, expiresAt time.Time) *AuthContext {
	return &AuthContext{
		principal:      p,
		method:         MethodBearer,
		tokenID:        tokenID,
		tokenExpiresAt: expiresAt,
	}
}

// NewAPIKeyContext создаёт AuthContext для запроса с API-ключом.
func NewAPIKeyContext(p models.Principal, key models.APIKey) *AuthContext {
	key.Permissions = slices.Clone(key.Permissions)
	return &AuthContext{
		principal: p,
		method:    MethodAPIKey,
		key:       &key,
	}
}

func (a *AuthContext) Principal() models.Principal { return a.principal }

func (a *AuthContext) Method() Method { return a.method }

// TokenID возвращает jti токена сессии. Для API-ключа пусто.
func (a *AuthContext) TokenID() string { return a.tokenID }

// TokenExpiresAt возвращает момент истечения токена сессии.
func (a *AuthContext) TokenExpiresAt() time.Time { return a.tokenExpiresAt }

// APIKey возвращает копию ключа, которым аутентифицирован запрос.
func (a *AuthContext) APIKey() (models.APIKey, bool) {
	if a.key == nil {
		return models.APIKey{}, false
	}
	k := *a.key
	k.Permissions = slices.Clone(k.Permissions)
	return k, true
}

// KeyID возвращает ID API-ключа или пустую строку.
func (a *AuthContext) KeyID() string {
	if a.key == nil {
		return ""
	}
	return a.key.ID
}

type ctxKey struct{}

// WithAuthContext возвращает контекст с прикреплённым AuthContext.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext возвращает AuthContext, если запрос аутентифицирован.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(ctxKey{}).(*AuthContext)
	return ac, ok && ac != nil
}
