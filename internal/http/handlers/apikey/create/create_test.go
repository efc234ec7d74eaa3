package create

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

	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/services/access"
	services "github.com/formpulse/backend/internal/services/apikeys"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Issue(ctx context.Context, userID, name string, permissions []string, expiresInDays int) (*services.IssuedKey, error) {
	args := m.Called(ctx, userID, name, permissions, expiresInDays)
	resp, _ := args.Get(0).(*services.IssuedKey)
	return resp, args.Error(1)
}

func TestCreateHandler(t *testing.T) {
	valid := Request{Name: "ci", Permissions: []string{models.PermFormsRead}, ExpiresInDays: 30}
	issued := &services.IssuedKey{
		Plaintext: "fp_live_secret",
		Key:       models.APIKey{ID: "k1", KeyHash: "hash", KeyPrefix: "fp_live_secr", Permissions: valid.Permissions},
	}

	tests := []struct {
		name       string
		body       any
		callSvc    bool
		mockResp   *services.IssuedKey
		mockErr    error
		wantStatus int
		wantError  string
	}{
		{"issued", valid, true, issued, nil, http.StatusCreated, ""},
		{"bad json", "{", false, nil, nil, http.StatusBadRequest, "invalid request body"},
		{"no name", Request{Permissions: valid.Permissions}, false, nil, nil, http.StatusUnprocessableEntity, "field Name is a required field"},
		{"unknown permission", Request{Name: "ci", Permissions: []string{"admin"}}, false, nil, nil, http.StatusUnprocessableEntity, "field Permissions[0] must be one of [forms:read forms:write responses:read responses:write keys:read]"},
		{"service error", valid, true, nil, errors.New("db"), http.StatusInternalServerError, "failed to create api key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callSvc {
				svc.On("Issue", mock.Anything, "u1", valid.Name, valid.Permissions, valid.ExpiresInDays).
					Return(tt.mockResp, tt.mockErr).Once()
			}

			var body []byte
			if s, ok := tt.body.(string); ok {
				body = []byte(s)
			} else {
				var err error
				body, err = json.Marshal(tt.body)
				require.NoError(t, err)
			}
			req := httptest.NewRequest(http.MethodPost, "/api-keys", bytes.NewReader(body))
			ac := access.NewBearerContext(models.Principal{ID: "u1", Tier: models.TierPro, EmailVerified: true}, "jti", time.Now())
			req = req.WithContext(access.WithAuthContext(req.Context(), ac))
			rec := httptest.NewRecorder()

			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				data := got["data"].(map[string]any)
				assert.Equal(t, "fp_live_secret", data["key"])
				key := data["api_key"].(map[string]any)
				assert.Equal(t, "k1", key["id"])
				assert.NotContains(t, key, "key_hash")
			}
			svc.AssertExpectations(t)
		})
	}
}
