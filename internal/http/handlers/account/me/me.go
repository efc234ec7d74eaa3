// Package me возвращает аутентифицированного субъекта запроса.
package me

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/formpulse/backend/internal/http/middlewarectx"
	"github.com/formpulse/backend/internal/http/response"
	"github.com/formpulse/backend/internal/services/access"
)

type Handler struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Текущий пользователь
// @Description Возвращает тариф, статус подписки и флаг подтверждения почты.
// @Tags Account
// @Produce  json
// @Security BearerAuth
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.AccessErrorResponse
// @Failure 403 {object} response.AccessErrorResponse
// @Router /me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ac, ok := access.FromContext(r.Context())
	if !ok {
		middlewarectx.WriteAccessError(w, r, access.KindMissingCredential)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"principal":   ac.Principal(),
		"auth_method": ac.Method(),
	}))
}
