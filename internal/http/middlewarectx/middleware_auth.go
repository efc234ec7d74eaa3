// Package middlewarectx содержит HTTP middleware шлюза доступа и ограничения частоты запросов.
//
// AccessMiddleware извлекает учётные данные из заголовков x-api-key и Authorization,
// проводит запрос через шлюз с политикой маршрута и при успехе кладёт
// AuthContext в контекст запроса. При отказе отвечает телом
// {"error": <код>, "message": <текст>} со статусом 401, 403 или 500.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/formpulse/backend/internal/http/response"
	"github.com/formpulse/backend/internal/services/access"
)

const (
	// HeaderAPIKey — заголовок с API-ключом.
	HeaderAPIKey = "x-api-key"
	// HeaderAuthorization — заголовок с bearer-токеном.
	HeaderAuthorization = "Authorization"
)

// Authorizer проводит запрос через шлюз доступа.
type Authorizer interface {
	Authorize(ctx context.Context, route access.Route, cred access.Credential) access.Decision
}

// AccessMiddleware возвращает middleware, применяющий политику route.
func AccessMiddleware(gate Authorizer, log *slog.Logger, route access.Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AccessMiddleware"

			cred := access.CredentialFromHeaders(r.Header.Get(HeaderAPIKey), r.Header.Get(HeaderAuthorization))
			d := gate.Authorize(r.Context(), route, cred)
			if !d.Allowed() {
				log.With(
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				).Debug("request denied",
					slog.String("route", route.Name),
					slog.String("kind", d.Kind.String()))
				WriteAccessError(w, r, d.Kind)
				return
			}

			if d.Auth != nil {
				r = r.WithContext(access.WithAuthContext(r.Context(), d.Auth))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteAccessError пишет тело отказа с HTTP-статусом вида kind.
func WriteAccessError(w http.ResponseWriter, r *http.Request, kind access.Kind) {
	w.WriteHeader(kind.HTTPStatus())
	render.JSON(w, r, response.AccessError(kind.String(), kind.Message()))
}
