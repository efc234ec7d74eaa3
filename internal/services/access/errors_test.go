package access

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		code   string
		status int
	}{
		{KindMissingCredential, "missing_credentials", http.StatusUnauthorized},
		{KindInvalidToken, "invalid_token", http.StatusUnauthorized},
		{KindExpiredToken, "expired_token", http.StatusUnauthorized},
		{KindUnknownKey, "unknown_key", http.StatusUnauthorized},
		{KindExpiredKey, "expired_key", http.StatusUnauthorized},
		{KindPrincipalNotFound, "principal_not_found", http.StatusUnauthorized},
		{KindAccountInactive, "account_inactive", http.StatusForbidden},
		{KindVerificationRequired, "verification_required", http.StatusForbidden},
		{KindTierInsufficient, "tier_insufficient", http.StatusForbidden},
		{KindPermissionDenied, "permission_denied", http.StatusForbidden},
		{KindInternal, "internal_error", http.StatusInternalServerError},
		{Kind(99), "internal_error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.kind.String())
			assert.Equal(t, tt.status, tt.kind.HTTPStatus())
			assert.NotEmpty(t, tt.kind.Message())
		})
	}
}

func TestError_IsByKind(t *testing.T) {
	cause := errors.New("signature mismatch")
	err := fmt.Errorf("wrapped: %w", newError(KindInvalidToken, cause))

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrExpiredToken)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("db down")))
	assert.Equal(t, KindExpiredKey, KindOf(fmt.Errorf("op: %w", ErrExpiredKey)))
}

func TestInternalMessageHidesCause(t *testing.T) {
	err := newError(KindInternal, errors.New("pq: connection refused"))

	assert.NotContains(t, KindOf(err).Message(), "connection refused")
}
