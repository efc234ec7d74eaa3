// Package remove реализует удаление собственного аккаунта.
package remove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/formpulse/backend/internal/http/middlewarectx"
	"github.com/formpulse/backend/internal/http/response"
	"github.com/formpulse/backend/internal/lib/sl"
	"github.com/formpulse/backend/internal/services/access"
	services "github.com/formpulse/backend/internal/services/auth"
)

type Service interface {
	DeleteAccount(ctx context.Context, userID string) error
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
// @Summary Удалить аккаунт
// @Description Удаляет аккаунт и все его API-ключи. Выпущенные токены перестают действовать.
// @Tags Account
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.AccessErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /me [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.remove"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ac, ok := access.FromContext(r.Context())
	if !ok {
		middlewarectx.WriteAccessError(w, r, access.KindMissingCredential)
		return
	}
	userID := ac.Principal().ID

	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			middlewarectx.WriteAccessError(w, r, access.KindPrincipalNotFound)
			return
		}
		log.Error("failed to delete account", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to delete account"))
		return
	}

	log.Info("account deleted", slog.String("user_id", userID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deleted": userID,
	}))
}
