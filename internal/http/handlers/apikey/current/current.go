// Package current возвращает API-ключ, которым аутентифицирован запрос,
// вместе со счётчиком использований.
package current

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
// @Summary Текущий API-ключ
// @Description Требует API-ключ с правом keys:read.
// @Tags API keys
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Запрос аутентифицирован не API-ключом"
// @Failure 401 {object} response.AccessErrorResponse
// @Failure 403 {object} response.AccessErrorResponse
// @Router /api-keys/current [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ac, ok := access.FromContext(r.Context())
	if !ok {
		middlewarectx.WriteAccessError(w, r, access.KindMissingCredential)
		return
	}
	key, ok := ac.APIKey()
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("request is not authenticated with an api key"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"api_key": key,
	}))
}
