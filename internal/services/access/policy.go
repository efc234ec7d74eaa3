package access

import (
	"fmt"

	"github.com/formpulse/backend/internal/models"
)

// Check — именованная чистая проверка политики над AuthContext.
type Check struct {
	Name string
	Eval func(ac *AuthContext) error
}

// ActiveAccount отклоняет аккаунты со статусом UNPAID и CANCELED.
func ActiveAccount() Check {
	return Check{
		Name: "active_account",
		Eval: func(ac *AuthContext) error {
			if status := ac.principal.SubscriptionStatus; status.Blocked() {
				return newError(KindAccountInactive, fmt.Errorf("subscription status %s", status))
			}
			return nil
		},
	}
}

// EmailVerified требует подтверждённую почту.
func EmailVerified() Check {
	return Check{
		Name: "email_verified",
		Eval: func(ac *AuthContext) error {
			if !ac.principal.EmailVerified {
				return newError(KindVerificationRequired, nil)
			}
			return nil
		},
	}
}

// MinTier требует тариф не ниже minTier. Неизвестный тариф считается FREE.
func MinTier(minTier models.Tier) Check {
	return Check{
		Name: "min_tier:" + string(minTier),
		Eval: func(ac *AuthContext) error {
			if ac.principal.Tier.Level() < minTier.Level() {
				return newError(KindTierInsufficient,
					fmt.Errorf("tier %q below %q", ac.principal.Tier, minTier))
			}
			return nil
		},
	}
}

// APIPermission требует право permission у API-ключа (точное совпадение).
// Запросы с JWT действуют с полными правами аккаунта и проверку проходят.
func APIPermission(permission string) Check {
	return Check{
		Name: "api_permission:" + permission,
		Eval: func(ac *AuthContext) error {
			if ac.method != MethodAPIKey {
				return nil
			}
			if ac.key == nil || !ac.key.HasPermission(permission) {
				return newError(KindPermissionDenied, fmt.Errorf("missing permission %q", permission))
			}
			return nil
		},
	}
}

// SessionOnly пропускает только запросы с токеном сессии.
// Управление аккаунтом и ключами недоступно API-ключу при любом наборе прав.
func SessionOnly() Check {
	return Check{
		Name: "session_only",
		Eval: func(ac *AuthContext) error {
			if ac.method != MethodBearer {
				return newError(KindPermissionDenied, fmt.Errorf("method %q is not allowed", ac.method))
			}
			return nil
		},
	}
}

// Evaluate применяет проверки по порядку и останавливается на первом отказе.
// Возвращает имя проваленной проверки и ошибку.
func Evaluate(ac *AuthContext, checks []Check) (string, error) {
	for _, c := range checks {
		if err := c.Eval(ac); err != nil {
			return c.Name, err
		}
	}
	return "", nil
}
