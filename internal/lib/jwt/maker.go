// Package jwt реализует выпуск и проверку HS256-токенов сессии.
//
// Maker выпускает токен с subject = ID пользователя и уникальным jti,
// а при разборе различает просроченный токен (подпись верна, срок истёк)
// и недействительный (повреждён, чужая подпись, неверный алгоритм или издатель).
package jwt

import (
	"errors"
	"time"
)

var (
	// ErrTokenInvalid — токен повреждён или подпись не сходится.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired — подпись верна, но срок действия истёк.
	ErrTokenExpired = errors.New("token has expired")
)

// DefaultIssuer — издатель токенов по умолчанию.
const DefaultIssuer = "formpulse"

// Maker описывает выпуск и разбор токенов.
type Maker interface {
	// GenerateToken выпускает токен для пользователя userID.
	GenerateToken(userID, email string) (string, error)
	// ParseToken проверяет подпись и срок действия и возвращает claims.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker на общем секретном ключе.
type MakerImpl struct {
	secretKey []byte        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
	issuer    string
	now       func() time.Time
}

// NewJWTMaker создаёт MakerImpl. Пустой issuer заменяется на DefaultIssuer.
func NewJWTMaker(secretKey string, ttl time.Duration, issuer string) *MakerImpl {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &MakerImpl{
		secretKey: []byte(secretKey),
		tokenTTL:  ttl,
		issuer:    issuer,
		now:       time.Now,
	}
}

// TTL возвращает время жизни выпускаемых токенов.
func (j *MakerImpl) TTL() time.Duration {
	return j.tokenTTL
}
