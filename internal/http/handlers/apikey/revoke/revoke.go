// Package revoke отзывает API-ключ пользователя.
package revoke

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/formpulse/backend/internal/http/middlewarectx"
	"github.com/formpulse/backend/internal/http/response"
	"github.com/formpulse/backend/internal/lib/sl"
	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/services/access"
	services "github.com/formpulse/backend/internal/services/apikeys"
)

type Service interface {
	Revoke(ctx context.Context, id, userID string) error
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
// @Summary Отозвать API-ключ
// @Tags API keys
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID ключа"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.AccessErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api-keys/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.apikey.revoke"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ac, ok := access.FromContext(r.Context())
	if !ok {
		middlewarectx.WriteAccessError(w, r, access.KindMissingCredential)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Revoke(r.Context(), id, ac.Principal().ID); err != nil {
		if errors.Is(err, services.ErrKeyNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("api key not found"))
			return
		}
		log.Error("failed to revoke api key", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to revoke api key"))
		return
	}

	log.Info("api key revoked", slog.String("key_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"id":     id,
		"status": models.KeyInactive,
	}))
}
