package middlewarectx_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/formpulse/backend/internal/http/middlewarectx"
	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/services/access"
)

// Мок шлюза доступа
type GateMock struct {
	mock.Mock
}

func (m *GateMock) Authorize(ctx context.Context, route access.Route, cred access.Credential) access.Decision {
	args := m.Called(ctx, route.Name, cred)
	return args.Get(0).(access.Decision)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestAccessMiddleware(t *testing.T) {
	principal := models.Principal{ID: "u1", Tier: models.TierPro}
	approved := access.Decision{State: access.StatePolicyApproved,
		Auth: access.NewBearerContext(principal, "jti", time.Now().Add(time.Hour))}

	tests := []struct {
		name       string
		headers    map[string]string
		wantCred   access.Credential
		decision   access.Decision
		wantStatus int
		wantCode   string
		wantCalled bool
		wantAuth   bool
	}{
		{
			name:       "approved bearer",
			headers:    map[string]string{"Authorization": "Bearer tok"},
			wantCred:   access.Credential{Method: access.MethodBearer, Value: "tok"},
			decision:   approved,
			wantStatus: http.StatusOK,
			wantCalled: true,
			wantAuth:   true,
		},
		{
			name:       "api key takes precedence",
			headers:    map[string]string{"Authorization": "Bearer tok", "x-api-key": "fp_live_k"},
			wantCred:   access.Credential{Method: access.MethodAPIKey, Value: "fp_live_k"},
			decision:   approved,
			wantStatus: http.StatusOK,
			wantCalled: true,
			wantAuth:   true,
		},
		{
			name:       "missing credentials",
			wantCred:   access.Credential{},
			decision:   access.Decision{Kind: access.KindMissingCredential, Err: access.ErrMissingCredential},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "missing_credentials",
		},
		{
			name:       "expired token",
			headers:    map[string]string{"Authorization": "Bearer old"},
			wantCred:   access.Credential{Method: access.MethodBearer, Value: "old"},
			decision:   access.Decision{Kind: access.KindExpiredToken, Err: access.ErrExpiredToken},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "expired_token",
		},
		{
			name:       "tier insufficient",
			headers:    map[string]string{"Authorization": "Bearer tok"},
			wantCred:   access.Credential{Method: access.MethodBearer, Value: "tok"},
			decision:   access.Decision{Kind: access.KindTierInsufficient, Err: access.ErrTierInsufficient},
			wantStatus: http.StatusForbidden,
			wantCode:   "tier_insufficient",
		},
		{
			name:       "internal error",
			headers:    map[string]string{"Authorization": "Bearer tok"},
			wantCred:   access.Credential{Method: access.MethodBearer, Value: "tok"},
			decision:   access.Decision{Kind: access.KindInternal, Err: access.ErrInternal},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
		{
			name:       "optional without principal",
			headers:    map[string]string{"Authorization": "garbage"},
			wantCred:   access.Credential{Method: access.MethodBearer},
			decision:   access.Decision{State: access.StateAuthenticationFailed, Kind: access.KindInvalidToken},
			wantStatus: http.StatusOK,
			wantCalled: true,
			wantAuth:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := new(GateMock)
			gate.On("Authorize", mock.Anything, "test", tt.wantCred).Return(tt.decision).Once()

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				_, ok := access.FromContext(r.Context())
				assert.Equal(t, tt.wantAuth, ok)
				w.WriteHeader(http.StatusOK)
			})

			h := middlewarectx.AccessMiddleware(gate, newNoopLogger(), access.Required("test"))(next)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			if tt.wantCode != "" {
				var body map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantCode, body["error"])
				assert.NotEmpty(t, body["message"])
				assert.Len(t, body, 2)
			}
			gate.AssertExpectations(t)
		})
	}
}
