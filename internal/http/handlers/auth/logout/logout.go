// Package logout реализует HTTP-обработчик выхода: токен сессии
// заносится в denylist до момента своего истечения.
package logout

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/formpulse/backend/internal/http/middlewarectx"
	"github.com/formpulse/backend/internal/http/response"
	"github.com/formpulse/backend/internal/lib/sl"
	"github.com/formpulse/backend/internal/services/access"
)

type Service interface {
	Logout(ctx context.Context, tokenID string, expiresAt time.Time) error
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
// @Summary Выход
// @Description Отзывает текущий JWT. Доступно только для сессии, не для API-ключа.
// @Tags Auth
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Запрос аутентифицирован API-ключом"
// @Failure 401 {object} response.AccessErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ac, ok := access.FromContext(r.Context())
	if !ok {
		middlewarectx.WriteAccessError(w, r, access.KindMissingCredential)
		return
	}
	if ac.Method() != access.MethodBearer {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("logout requires a session token"))
		return
	}

	if err := h.service.Logout(r.Context(), ac.TokenID(), ac.TokenExpiresAt()); err != nil {
		log.Error("failed to revoke token", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to logout"))
		return
	}

	log.Info("token revoked", slog.String("user_id", ac.Principal().ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "logged out",
	}))
}
