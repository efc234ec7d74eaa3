// Package interceptor подключает шлюз доступа к gRPC-серверу.
//
// Учётные данные берутся из метаданных authorization и x-api-key по тем же
// правилам, что и в HTTP. Политика выбирается по полному имени метода.
package interceptor

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/formpulse/backend/internal/services/access"
)

const (
	// MetadataAuthorization — ключ метаданных с bearer-токеном.
	MetadataAuthorization = "authorization"
	// MetadataAPIKey — ключ метаданных с API-ключом.
	MetadataAPIKey = "x-api-key"
)

// Authorizer проводит вызов через шлюз доступа.
type Authorizer interface {
	Authorize(ctx context.Context, route access.Route, cred access.Credential) access.Decision
}

// Routes сопоставляет полные имена методов с политиками.
// Для методов без записи применяется маршрут по умолчанию.
type Routes struct {
	byMethod map[string]access.Route
	fallback access.Route
}

// NewRoutes создаёт таблицу маршрутов.
func NewRoutes(fallback access.Route, byMethod map[string]access.Route) *Routes {
	m := make(map[string]access.Route, len(byMethod))
	for k, v := range byMethod {
		m[k] = v
	}
	return &Routes{byMethod: m, fallback: fallback}
}

func (r *Routes) lookup(fullMethod string) access.Route {
	if route, ok := r.byMethod[fullMethod]; ok {
		return route
	}
	return r.fallback
}

// UnaryServerInterceptor возвращает перехватчик, применяющий политику маршрута.
func UnaryServerInterceptor(gate Authorizer, log *slog.Logger, routes *Routes) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		const op = "grpc.interceptor.Unary"

		route := routes.lookup(info.FullMethod)
		cred := credentialFromMetadata(ctx)

		d := gate.Authorize(ctx, route, cred)
		if !d.Allowed() {
			log.Debug("call denied",
				slog.String("op", op),
				slog.String("method", info.FullMethod),
				slog.String("kind", d.Kind.String()))
			return nil, StatusError(d.Kind)
		}

		if d.Auth != nil {
			ctx = access.WithAuthContext(ctx, d.Auth)
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor возвращает потоковый перехватчик с той же логикой.
// Политика применяется один раз при открытии потока.
func StreamServerInterceptor(gate Authorizer, log *slog.Logger, routes *Routes) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		const op = "grpc.interceptor.Stream"

		ctx := ss.Context()
		route := routes.lookup(info.FullMethod)

		d := gate.Authorize(ctx, route, credentialFromMetadata(ctx))
		if !d.Allowed() {
			log.Debug("stream denied",
				slog.String("op", op),
				slog.String("method", info.FullMethod),
				slog.String("kind", d.Kind.String()))
			return StatusError(d.Kind)
		}

		if d.Auth != nil {
			ss = &authStream{ServerStream: ss, ctx: access.WithAuthContext(ctx, d.Auth)}
		}
		return handler(srv, ss)
	}
}

// authStream подменяет контекст потока на контекст с AuthContext.
type authStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authStream) Context() context.Context {
	return s.ctx
}

// StatusError переводит вид отказа в gRPC-статус.
// Внутренние ошибки отдаются без подробностей.
func StatusError(kind access.Kind) error {
	switch kind.Stage() {
	case access.StageAuthentication:
		return status.Error(codes.Unauthenticated, kind.Message())
	case access.StagePolicy:
		return status.Error(codes.PermissionDenied, kind.Message())
	default:
		return status.Error(codes.Internal, access.KindInternal.Message())
	}
}

func credentialFromMetadata(ctx context.Context) access.Credential {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return access.Credential{}
	}
	return access.CredentialFromHeaders(first(md, MetadataAPIKey), first(md, MetadataAuthorization))
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
