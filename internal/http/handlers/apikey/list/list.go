// Package list возвращает API-ключи пользователя без секретов.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/formpulse/backend/internal/http/middlewarectx"
	"github.com/formpulse/backend/internal/http/response"
	"github.com/formpulse/backend/internal/lib/sl"
	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/services/access"
)

type Service interface {
	List(ctx context.Context, userID string) ([]models.APIKey, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Список API-ключей
// @Tags API keys
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.AccessErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api-keys [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.apikey.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ac, ok := access.FromContext(r.Context())
	if !ok {
		middlewarectx.WriteAccessError(w, r, access.KindMissingCredential)
		return
	}

	keys, err := h.service.List(r.Context(), ac.Principal().ID)
	if err != nil {
		log.Error("failed to list api keys", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list api keys"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"api_keys": keys,
		"count":    len(keys),
	}))
}
