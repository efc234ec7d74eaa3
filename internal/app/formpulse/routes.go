package formpulse

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/formpulse/backend/docs"
	"github.com/formpulse/backend/internal/http/handlers/account/me"
	"github.com/formpulse/backend/internal/http/handlers/account/remove"
	"github.com/formpulse/backend/internal/http/handlers/account/session"
	"github.com/formpulse/backend/internal/http/handlers/apikey/create"
	"github.com/formpulse/backend/internal/http/handlers/apikey/current"
	"github.com/formpulse/backend/internal/http/handlers/apikey/list"
	"github.com/formpulse/backend/internal/http/handlers/apikey/revoke"
	"github.com/formpulse/backend/internal/http/handlers/auth/login"
	"github.com/formpulse/backend/internal/http/handlers/auth/logout"
	"github.com/formpulse/backend/internal/http/handlers/auth/register"
	"github.com/formpulse/backend/internal/http/handlers/health"
	"github.com/formpulse/backend/internal/http/middlewarectx"
	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/services/access"
	apikeyservice "github.com/formpulse/backend/internal/services/apikeys"
	authservice "github.com/formpulse/backend/internal/services/auth"
)

// Политики маршрутов HTTP API.
// Управление аккаунтом и ключами доступно только сессии, а не API-ключу.
var (
	routeMe            = access.Required("me")
	routeSession       = access.Optional("session")
	routeLogout        = access.Required("logout", access.SessionOnly())
	routeDeleteAccount = access.Required("delete_account", access.SessionOnly())
	routeListKeys      = access.Required("list_api_keys", access.SessionOnly())
	routeRevokeKey     = access.Required("revoke_api_key", access.SessionOnly())
	routeCreateKey     = access.Required("create_api_key",
		access.SessionOnly(),
		access.EmailVerified(),
		access.MinTier(models.TierPro),
	)
	routeCurrentKey = access.Required("current_api_key",
		access.APIPermission(models.PermKeysRead),
	)
)

// Deps — зависимости HTTP-маршрутов.
type Deps struct {
	Log         *slog.Logger
	Gate        middlewarectx.Authorizer
	Limiter     *middlewarectx.RateLimiter
	Auth        *authservice.AuthService
	APIKeys     *apikeyservice.APIKeyService
	DB          health.Pinger
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	log := d.Log

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middlewarectx.HeaderAPIKey},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	limit := d.Limiter.Middleware(log)
	// guard применяет политику маршрута, затем лимит по субъекту.
	guard := func(route access.Route) chi.Middlewares {
		return chi.Middlewares{middlewarectx.AccessMiddleware(d.Gate, log, route), limit}
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.With(limit).Post("/register", register.New(log, d.Auth).ServeHTTP)
		r.With(limit).Post("/login", login.New(log, d.Auth).ServeHTTP)

		r.With(guard(routeSession)...).Get("/session", session.New(log).ServeHTTP)
		r.With(guard(routeLogout)...).Post("/logout", logout.New(log, d.Auth).ServeHTTP)
		r.With(guard(routeMe)...).Get("/me", me.New(log).ServeHTTP)
		r.With(guard(routeDeleteAccount)...).Delete("/me", remove.New(log, d.Auth).ServeHTTP)

		r.Route("/api-keys", func(r chi.Router) {
			r.With(guard(routeCreateKey)...).Post("/", create.New(log, d.APIKeys).ServeHTTP)
			r.With(guard(routeListKeys)...).Get("/", list.New(log, d.APIKeys).ServeHTTP)
			r.With(guard(routeCurrentKey)...).Get("/current", current.New(log).ServeHTTP)
			r.With(guard(routeRevokeKey)...).Delete("/{id}", revoke.New(log, d.APIKeys).ServeHTTP)
		})
	})

	r.Get("/health", health.New(log, d.DB).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
