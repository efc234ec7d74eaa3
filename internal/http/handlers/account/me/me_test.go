package me

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/services/access"
)

func TestMeHandler(t *testing.T) {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	t.Run("authenticated", func(t *testing.T) {
		p := models.Principal{ID: "u1", Email: "u1@example.com", Tier: models.TierPro, SubscriptionStatus: models.StatusActive, EmailVerified: true}
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req = req.WithContext(access.WithAuthContext(req.Context(), access.NewBearerContext(p, "jti", time.Now())))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got struct {
			Data struct {
				Principal  models.Principal `json:"principal"`
				AuthMethod string           `json:"auth_method"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, p, got.Data.Principal)
		assert.Equal(t, "bearer", got.Data.AuthMethod)
	})

	t.Run("no principal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
