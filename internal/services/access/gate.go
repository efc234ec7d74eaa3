package access

import (
	"context"
	"log/slog"
	"time"

	"github.com/formpulse/backend/internal/lib/sl"
	"github.com/formpulse/backend/internal/models"
)

// State — состояние автомата шлюза.
type State string

const (
	StateUnauthenticated      State = "unauthenticated"
	StateCredentialPresented  State = "credential_presented"
	StateCredentialVerified   State = "credential_verified"
	StatePrincipalResolved    State = "principal_resolved"
	StatePolicyApproved       State = "policy_approved"
	StatePolicyRejected       State = "policy_rejected"
	StateAuthenticationFailed State = "authentication_failed"
)

// Decision — итог прохождения шлюза.
//
// Err заполнен только если запрос нужно прервать. В режиме ModeOptional
// отказ, кроме внутренней ошибки, оставляет Err и Auth пустыми, а State и Kind
// описывают причину.
type Decision struct {
	Route       string
	State       State
	Kind        Kind
	Check       string
	Method      Method
	PrincipalID string
	KeyID       string
	Auth        *AuthContext
	Err         error
}

// Allowed сообщает, может ли запрос идти дальше.
func (d Decision) Allowed() bool {
	return d.Err == nil
}

// Gate связывает проверку учётных данных, загрузку субъекта и политики маршрута.
type Gate struct {
	log      *slog.Logger
	verifier *Verifier
	resolver *Resolver
	metrics  *Metrics
	audit    AuditPublisher
	now      func() time.Time
}

// Option настраивает Gate.
type Option func(*Gate)

// WithMetrics включает подсчёт решений.
func WithMetrics(m *Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithAudit включает публикацию отказов.
func WithAudit(p AuditPublisher) Option {
	return func(g *Gate) { g.audit = p }
}

func NewGate(log *slog.Logger, verifier *Verifier, resolver *Resolver, opts ...Option) *Gate {
	g := &Gate{
		log:      log,
		verifier: verifier,
		resolver: resolver,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize проводит запрос через автомат состояний
// Unauthenticated → CredentialPresented → CredentialVerified → PrincipalResolved →
// PolicyApproved | PolicyRejected | AuthenticationFailed.
func (g *Gate) Authorize(ctx context.Context, route Route, cred Credential) Decision {
	d := g.authorize(ctx, route, cred)
	g.finish(ctx, route, &d)
	return d
}

func (g *Gate) authorize(ctx context.Context, route Route, cred Credential) Decision {
	d := Decision{Route: route.Name, State: StateUnauthenticated, Method: cred.Method}

	if cred.Method == MethodNone {
		return fail(d, StateAuthenticationFailed, ErrMissingCredential)
	}
	d.State = StateCredentialPresented

	var attach func(p models.Principal) *AuthContext
	switch cred.Method {
	case MethodAPIKey:
		key, err := g.verifier.VerifyAPIKey(ctx, cred.Value)
		if err != nil {
			return fail(d, StateAuthenticationFailed, err)
		}
		d.KeyID = key.ID
		d.PrincipalID = key.UserID
		attach = func(p models.Principal) *AuthContext { return NewAPIKeyContext(p, *key) }
	default:
		identity, err := g.verifier.VerifyToken(ctx, cred.Value)
		if err != nil {
			return fail(d, StateAuthenticationFailed, err)
		}
		d.PrincipalID = identity.Subject
		attach = func(p models.Principal) *AuthContext {
			return NewBearerContext(p, identity.TokenID, identity.ExpiresAt)
		}
	}
	d.State = StateCredentialVerified

	principal, err := g.resolver.Resolve(ctx, d.PrincipalID)
	if err != nil {
		return fail(d, StateAuthenticationFailed, err)
	}
	d.State = StatePrincipalResolved
	ac := attach(principal)

	if check, err := Evaluate(ac, route.Checks); err != nil {
		d.Check = check
		return fail(d, StatePolicyRejected, err)
	}
	d.State = StatePolicyApproved
	d.Auth = ac
	return d
}

func fail(d Decision, state State, err error) Decision {
	d.State = state
	d.Kind = KindOf(err)
	d.Err = err
	return d
}

// finish применяет режим маршрута, пишет метрики, логи и события аудита.
func (g *Gate) finish(ctx context.Context, route Route, d *Decision) {
	log := g.log.With(
		slog.String("op", "access.Authorize"),
		slog.String("route", d.Route),
		slog.String("method", string(d.Method)),
	)

	switch {
	case d.Err == nil:
	case d.Kind == KindInternal:
		log.Error("access check failed", slog.String("state", string(d.State)), sl.Err(d.Err))
	case route.Mode == ModeOptional:
		log.Debug("optional auth skipped", slog.String("kind", d.Kind.String()))
		d.Auth = nil
		d.Err = nil
	case d.State == StatePolicyRejected:
		log.Warn("access rejected",
			slog.String("kind", d.Kind.String()),
			slog.String("check", d.Check),
			slog.String("principal_id", d.PrincipalID))
	default:
		log.Info("authentication failed", slog.String("kind", d.Kind.String()))
	}

	g.metrics.observe(*d)

	if d.Err != nil && g.audit != nil {
		event := AuditEvent{
			Route:       d.Route,
			State:       d.State,
			Kind:        d.Kind.String(),
			Method:      d.Method,
			PrincipalID: d.PrincipalID,
			KeyID:       d.KeyID,
			Time:        g.now().UTC(),
		}
		if err := g.audit.Publish(ctx, event.RoutingKey(), event); err != nil {
			log.Warn("failed to publish audit event", sl.Err(err))
		}
	}
}
