// Package create реализует выпуск API-ключа. Ключ в открытом виде
// возвращается только в ответе на этот запрос.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/formpulse/backend/internal/http/middlewarectx"
	"github.com/formpulse/backend/internal/http/response"
	"github.com/formpulse/backend/internal/lib/sl"
	"github.com/formpulse/backend/internal/services/access"
	services "github.com/formpulse/backend/internal/services/apikeys"
)

// Request — параметры нового ключа.
type Request struct {
	Name          string   `json:"name" validate:"required,max=100"`
	Permissions   []string `json:"permissions" validate:"required,min=1,dive,oneof=forms:read forms:write responses:read responses:write keys:read"`
	ExpiresInDays int      `json:"expires_in_days" validate:"min=0,max=3650"`
}

type Service interface {
	Issue(ctx context.Context, userID, name string, permissions []string, expiresInDays int) (*services.IssuedKey, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Выпустить API-ключ
// @Description Требует подтверждённую почту и тариф PRO или выше.
// @Tags API keys
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Параметры ключа"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.AccessErrorResponse
// @Failure 403 {object} response.AccessErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api-keys [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.apikey.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ac, ok := access.FromContext(r.Context())
	if !ok {
		middlewarectx.WriteAccessError(w, r, access.KindMissingCredential)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	issued, err := h.service.Issue(r.Context(), ac.Principal().ID, req.Name, req.Permissions, req.ExpiresInDays)
	if err != nil {
		if errors.Is(err, services.ErrNoPermissions) || errors.Is(err, services.ErrUnknownPermission) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		log.Error("failed to issue api key", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to create api key"))
		return
	}

	log.Info("api key issued", slog.String("key_id", issued.Key.ID), slog.String("prefix", issued.Key.KeyPrefix))
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"key":     issued.Plaintext,
		"api_key": issued.Key,
	}))
}
