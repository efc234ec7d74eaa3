// Package formpulse собирает приложение: хранилище, миграции, denylist в Redis,
// журнал отказов в RabbitMQ, шлюз доступа, HTTP API и gRPC-сервер.
package formpulse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/formpulse/backend/internal/cache"
	"github.com/formpulse/backend/internal/config"
	"github.com/formpulse/backend/internal/grpc/interceptor"
	"github.com/formpulse/backend/internal/http/middlewarectx"
	"github.com/formpulse/backend/internal/lib/jwt"
	"github.com/formpulse/backend/internal/lib/rabbitmq"
	"github.com/formpulse/backend/internal/lib/sl"
	"github.com/formpulse/backend/internal/migrations"
	"github.com/formpulse/backend/internal/services/access"
	apikeyservice "github.com/formpulse/backend/internal/services/apikeys"
	authservice "github.com/formpulse/backend/internal/services/auth"
	"github.com/formpulse/backend/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	server     *http.Server
	grpcServer *grpc.Server
	listener   net.Listener
	logger     *slog.Logger
	db         *repository.Storage
	cache      *cache.Cache
	amqpConn   io.Closer
	amqpChan   io.Closer
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.formpulse.New"

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gateOpts := []access.Option{access.WithMetrics(access.NewMetrics(registry))}
	if cfg.RabbitMQ.URL != "" {
		publisher, err := app.setupAudit(cfg.RabbitMQ)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		gateOpts = append(gateOpts, access.WithAudit(publisher))
	} else {
		logger.Info("rabbitmq url is empty, access audit is disabled")
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL, cfg.Issuer)
	gate := access.NewGate(logger,
		access.NewVerifier(jwtMaker, cacheRedis, db),
		access.NewResolver(db),
		gateOpts...,
	)

	authService := authservice.NewAuthService(db, jwtMaker, cacheRedis, cfg.TokenTTL)
	apiKeyService := apikeyservice.NewAPIKeyService(db)

	limiter, err := middlewarectx.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Log:         logger,
		Gate:        gate,
		Limiter:     limiter,
		Auth:        authService,
		APIKeys:     apiKeyService,
		DB:          db,
		Gatherer:    registry,
		CORSOrigins: cfg.CORSOrigins,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	if cfg.AddressGRPC != "" {
		lis, err := net.Listen("tcp", cfg.AddressGRPC)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.listener = lis
		app.grpcServer = newGRPCServer(gate, logger)
	}

	return app, nil
}

func (a *App) setupAudit(cfg config.RabbitMQ) (*rabbitmq.Publisher, error) {
	conn, err := rabbitmq.Connect(cfg.URL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.GetAuditQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	a.amqpConn = conn
	a.amqpChan = ch
	return rabbitmq.NewPublisher(ch, cfg.Exchange), nil
}

// newGRPCServer создаёт gRPC-сервер со службой health и перехватчиком шлюза.
// Проверка здоровья доступна без учётных данных.
func newGRPCServer(gate interceptor.Authorizer, logger *slog.Logger) *grpc.Server {
	routes := interceptor.NewRoutes(access.Required("grpc"), map[string]access.Route{
		"/grpc.health.v1.Health/Check": access.Optional("grpc.health"),
		"/grpc.health.v1.Health/Watch": access.Optional("grpc.health"),
	})
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptor.UnaryServerInterceptor(gate, logger, routes)),
		grpc.ChainStreamInterceptor(interceptor.StreamServerInterceptor(gate, logger, routes)),
	)
	healthpb.RegisterHealthServer(srv, health.NewServer())
	return srv
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	if a.grpcServer != nil {
		go func() {
			a.logger.Info("gRPC server listening on", slog.String("address", a.listener.Addr().String()))
			errCh <- a.grpcServer.Serve(a.listener)
		}()
	}

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down servers gracefully")
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if err := a.server.Shutdown(timeoutCtx); err != nil && runErr == nil {
		runErr = err
	}
	a.close()
	return runErr
}

func (a *App) close() {
	if a.amqpChan != nil {
		if err := a.amqpChan.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq channel", sl.Err(err))
		}
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis client", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", sl.Err(err))
		}
	}
}
