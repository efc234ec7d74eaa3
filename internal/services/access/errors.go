// Package access реализует шлюз доступа к API: проверку учётных данных
// (JWT или API-ключ), загрузку субъекта из хранилища и применение
// политик маршрута (активный аккаунт, подтверждённая почта, тариф, права ключа).
//
// Результат проверки описывается Decision. При успехе шлюз выдаёт
// неизменяемый AuthContext, который передаётся обработчику через context.Context.
package access

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind — вид отказа в доступе.
type Kind int

const (
	KindNone Kind = iota
	KindMissingCredential
	KindInvalidToken
	KindExpiredToken
	KindUnknownKey
	KindExpiredKey
	KindPrincipalNotFound
	KindAccountInactive
	KindVerificationRequired
	KindTierInsufficient
	KindPermissionDenied
	KindInternal
)

// Stage — этап шлюза, к которому относится отказ.
type Stage int

const (
	StageNone Stage = iota
	StageAuthentication
	StagePolicy
	StageInternal
)

var kindInfo = map[Kind]struct {
	code    string
	message string
	stage   Stage
}{
	KindNone:                 {"none", "", StageNone},
	KindMissingCredential:    {"missing_credentials", "Authentication required", StageAuthentication},
	KindInvalidToken:         {"invalid_token", "Invalid authentication token", StageAuthentication},
	KindExpiredToken:         {"expired_token", "Token has expired", StageAuthentication},
	KindUnknownKey:           {"unknown_key", "Invalid API key", StageAuthentication},
	KindExpiredKey:           {"expired_key", "API key has expired", StageAuthentication},
	KindPrincipalNotFound:    {"principal_not_found", "Account not found", StageAuthentication},
	KindAccountInactive:      {"account_inactive", "Subscription is unpaid or canceled", StagePolicy},
	KindVerificationRequired: {"verification_required", "Email address must be verified", StagePolicy},
	KindTierInsufficient:     {"tier_insufficient", "Your subscription tier does not allow access to this resource", StagePolicy},
	KindPermissionDenied:     {"permission_denied", "API key lacks the required permission", StagePolicy},
	KindInternal:             {"internal_error", "Internal server error", StageInternal},
}

// String возвращает короткий код вида, который отдаётся клиенту в поле error.
func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return kindInfo[KindInternal].code
}

// Message возвращает человекочитаемое описание без внутренних деталей.
func (k Kind) Message() string {
	if info, ok := kindInfo[k]; ok {
		return info.message
	}
	return kindInfo[KindInternal].message
}

// Stage возвращает этап шлюза для вида отказа.
func (k Kind) Stage() Stage {
	if info, ok := kindInfo[k]; ok {
		return info.stage
	}
	return StageInternal
}

// HTTPStatus возвращает HTTP-статус ответа: 401 для аутентификации,
// 403 для политик и 500 для внутренних ошибок.
func (k Kind) HTTPStatus() int {
	switch k.Stage() {
	case StageNone:
		return http.StatusOK
	case StageAuthentication:
		return http.StatusUnauthorized
	case StagePolicy:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error — ошибка шлюза с видом отказа и исходной причиной.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по виду, поэтому errors.Is(err, ErrExpiredToken)
// срабатывает для любой ошибки этого вида независимо от причины.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Сигнальные значения для errors.Is.
var (
	ErrMissingCredential    = &Error{Kind: KindMissingCredential}
	ErrInvalidToken         = &Error{Kind: KindInvalidToken}
	ErrExpiredToken         = &Error{Kind: KindExpiredToken}
	ErrUnknownKey           = &Error{Kind: KindUnknownKey}
	ErrExpiredKey           = &Error{Kind: KindExpiredKey}
	ErrPrincipalNotFound    = &Error{Kind: KindPrincipalNotFound}
	ErrAccountInactive      = &Error{Kind: KindAccountInactive}
	ErrVerificationRequired = &Error{Kind: KindVerificationRequired}
	ErrTierInsufficient     = &Error{Kind: KindTierInsufficient}
	ErrPermissionDenied     = &Error{Kind: KindPermissionDenied}
	ErrInternal             = &Error{Kind: KindInternal}
)

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf извлекает вид отказа из цепочки ошибок.
// Ошибка, не являющаяся *Error, считается внутренней.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
