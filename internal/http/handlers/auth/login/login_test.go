package login

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	services "github.com/formpulse/backend/internal/services/auth"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	args := m.Called(ctx, email, password)
	resp, _ := args.Get(0).(*services.LoginResult)
	return resp, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	valid := Request{Email: "user1@example.com", Password: "password123"}

	tests := []struct {
		name           string
		requestBody    any
		mockResp       *services.LoginResult
		mockErr        error
		callService    bool
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "valid login",
			requestBody:    valid,
			mockResp:       &services.LoginResult{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
			callService:    true,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "invalid json",
			requestBody:    "{",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name:           "missing email",
			requestBody:    Request{Password: "x"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Email is a required field",
		},
		{
			name:           "invalid credentials",
			requestBody:    valid,
			mockErr:        services.ErrInvalidCredentials,
			callService:    true,
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "invalid_credentials",
		},
		{
			name:           "service error",
			requestBody:    valid,
			mockErr:        errors.New("db down"),
			callService:    true,
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "failed to login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callService {
				svc.On("Login", mock.Anything, valid.Email, valid.Password).Return(tt.mockResp, tt.mockErr).Once()
			}

			var body []byte
			if s, ok := tt.requestBody.(string); ok {
				body = []byte(s)
			} else {
				var err error
				body, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body)))

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				data, ok := got["data"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "tok", data["token"])
				assert.Equal(t, "Bearer", data["token_type"])
			}
			svc.AssertExpectations(t)
		})
	}
}
