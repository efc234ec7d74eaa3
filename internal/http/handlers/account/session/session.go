// Package session сообщает, аутентифицирован ли запрос. Маршрут с необязательной
// аутентификацией: без учётных данных или с недействительными отвечает authenticated=false.
package session

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

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
// @Summary Состояние сессии
// @Tags Account
// @Produce  json
// @Success 200 {object} response.Response
// @Router /session [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ac, ok := access.FromContext(r.Context())
	if !ok {
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"authenticated": false,
		}))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"authenticated": true,
		"principal":     ac.Principal(),
		"auth_method":   ac.Method(),
	}))
}
