package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/formpulse/backend/internal/lib/apikey"
	"github.com/formpulse/backend/internal/models"
)

type gateFixture struct {
	store   *memoryStore
	gate    *Gate
	metrics *Metrics
}

func newGateFixture(t *testing.T, opts ...Option) *gateFixture {
	t.Helper()
	store := newMemoryStore()
	metrics := NewMetrics(prometheus.NewRegistry())
	gate := NewGate(noopLogger(), newTestVerifier(nil, store), NewResolver(store),
		append([]Option{WithMetrics(metrics)}, opts...)...)
	gate.now = func() time.Time { return testNow }
	return &gateFixture{store: store, gate: gate, metrics: metrics}
}

func (f *gateFixture) addUser(id string, tier models.Tier, status models.SubscriptionStatus, verified bool) {
	f.store.addUser(models.User{
		ID: id, Email: id + "@example.com", Tier: tier, SubscriptionStatus: status, EmailVerified: verified,
	})
}

// addKey сохраняет ключ и возвращает его значение в открытом виде.
func (f *gateFixture) addKey(t *testing.T, id, userID string, permissions ...string) string {
	t.Helper()
	plain := newKey(t)
	f.store.addKey(models.APIKey{
		ID: id, UserID: userID, KeyHash: apikey.Hash(plain), Status: models.KeyActive, Permissions: permissions,
	})
	return plain
}

func bearerCred(token string) Credential {
	return Credential{Method: MethodBearer, Value: token}
}

func keyCred(key string) Credential {
	return Credential{Method: MethodAPIKey, Value: key}
}

func TestGate_BearerApproved(t *testing.T) {
	f := newGateFixture(t)
	f.addUser("u1", models.TierPro, models.StatusActive, true)

	d := f.gate.Authorize(context.Background(), Required("me"), bearerCred(issueToken(t, time.Hour, "u1")))

	require.True(t, d.Allowed())
	assert.Equal(t, StatePolicyApproved, d.State)
	require.NotNil(t, d.Auth)
	assert.Equal(t, "u1", d.Auth.Principal().ID)
	assert.Equal(t, MethodBearer, d.Auth.Method())
	assert.NotEmpty(t, d.Auth.TokenID())
}

func TestGate_APIKeyApproved(t *testing.T) {
	f := newGateFixture(t)
	f.addUser("u1", models.TierEnterprise, models.StatusActive, true)
	plain := f.addKey(t, "k1", "u1", models.PermKeysRead)

	d := f.gate.Authorize(context.Background(),
		Required("current", APIPermission(models.PermKeysRead)), keyCred(plain))

	require.True(t, d.Allowed())
	key, ok := d.Auth.APIKey()
	require.True(t, ok)
	assert.Equal(t, "k1", key.ID)
	assert.Equal(t, int64(1), key.UsageCount)
}

func TestGate_Failures(t *testing.T) {
	f := newGateFixture(t)
	f.addUser("active", models.TierFree, models.StatusActive, false)
	f.addUser("unpaid", models.TierEnterprise, models.StatusUnpaid, true)
	readKey := f.addKey(t, "k-read", "active", "read")

	tests := []struct {
		name      string
		route     Route
		cred      Credential
		wantState State
		wantKind  Kind
		wantCheck string
	}{
		{"no credential", Required("r"), Credential{}, StateAuthenticationFailed, KindMissingCredential, ""},
		{"malformed bearer", Required("r"), bearerCred(""), StateAuthenticationFailed, KindInvalidToken, ""},
		{"expired token", Required("r"), bearerCred(issueToken(t, -time.Minute, "active")), StateAuthenticationFailed, KindExpiredToken, ""},
		{"unknown key", Required("r"), keyCred(newKey(t)), StateAuthenticationFailed, KindUnknownKey, ""},
		{"deleted principal", Required("r"), bearerCred(issueToken(t, time.Hour, "ghost")), StateAuthenticationFailed, KindPrincipalNotFound, ""},
		{"unpaid", Required("r", MinTier(models.TierFree)), bearerCred(issueToken(t, time.Hour, "unpaid")), StatePolicyRejected, KindAccountInactive, "active_account"},
		{"unverified", Required("r", EmailVerified()), bearerCred(issueToken(t, time.Hour, "active")), StatePolicyRejected, KindVerificationRequired, "email_verified"},
		{"tier", Required("r", MinTier(models.TierPro)), bearerCred(issueToken(t, time.Hour, "active")), StatePolicyRejected, KindTierInsufficient, "min_tier:PRO"},
		{"permission", Required("r", APIPermission("write")), keyCred(readKey), StatePolicyRejected, KindPermissionDenied, "api_permission:write"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.gate.Authorize(context.Background(), tt.route, tt.cred)

			require.False(t, d.Allowed())
			assert.Nil(t, d.Auth)
			assert.Equal(t, tt.wantState, d.State)
			assert.Equal(t, tt.wantKind, d.Kind)
			assert.Equal(t, tt.wantCheck, d.Check)
			assert.Equal(t, tt.wantKind, KindOf(d.Err))
		})
	}
}

func TestGate_DeletedPrincipalAfterIssuance(t *testing.T) {
	f := newGateFixture(t)
	f.addUser("u1", models.TierPro, models.StatusActive, true)
	token := issueToken(t, time.Hour, "u1")

	require.True(t, f.gate.Authorize(context.Background(), Required("me"), bearerCred(token)).Allowed())

	f.store.deleteUser("u1")
	d := f.gate.Authorize(context.Background(), Required("me"), bearerCred(token))

	require.ErrorIs(t, d.Err, ErrPrincipalNotFound)
	assert.Equal(t, StateAuthenticationFailed, d.State)
}

func TestGate_OptionalMode(t *testing.T) {
	f := newGateFixture(t)
	f.addUser("u1", models.TierFree, models.StatusActive, true)
	f.addUser("canceled", models.TierPro, models.StatusCanceled, true)

	tests := []struct {
		name     string
		cred     Credential
		wantAuth bool
	}{
		{"no credential", Credential{}, false},
		{"malformed token", bearerCred("garbage"), false},
		{"unknown key", keyCred("fp_live_nope"), false},
		{"canceled account", bearerCred(issueToken(t, time.Hour, "canceled")), false},
		{"valid token", bearerCred(issueToken(t, time.Hour, "u1")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.gate.Authorize(context.Background(), Optional("session"), tt.cred)

			require.True(t, d.Allowed())
			assert.NoError(t, d.Err)
			assert.Equal(t, tt.wantAuth, d.Auth != nil)
		})
	}
}

func TestGate_OptionalModeSurfacesInternal(t *testing.T) {
	users := new(MockUserStore)
	users.On("GetUserByID", mock.Anything, "u1").Return(nil, errors.New("connection refused"))
	gate := NewGate(noopLogger(), newTestVerifier(nil, nil), NewResolver(users))

	d := gate.Authorize(context.Background(), Optional("session"), bearerCred(issueToken(t, time.Hour, "u1")))

	require.False(t, d.Allowed())
	assert.Equal(t, KindInternal, d.Kind)
}

func TestGate_Metrics(t *testing.T) {
	f := newGateFixture(t)
	f.addUser("u1", models.TierFree, models.StatusActive, true)
	token := issueToken(t, time.Hour, "u1")

	f.gate.Authorize(context.Background(), Required("me"), bearerCred(token))
	f.gate.Authorize(context.Background(), Required("me"), bearerCred(token))
	f.gate.Authorize(context.Background(), Required("keys", MinTier(models.TierPro)), bearerCred(token))
	f.gate.Authorize(context.Background(), Required("me"), Credential{})

	assert.InDelta(t, 2, testutil.ToFloat64(
		f.metrics.decisions.WithLabelValues("me", string(StatePolicyApproved), "none")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(
		f.metrics.decisions.WithLabelValues("keys", string(StatePolicyRejected), "tier_insufficient")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(
		f.metrics.decisions.WithLabelValues("me", string(StateAuthenticationFailed), "missing_credentials")), 0)
}

func TestGate_Audit(t *testing.T) {
	audit := new(MockAuditPublisher)
	audit.On("Publish", mock.Anything, "access.policy_rejected", mock.MatchedBy(func(e AuditEvent) bool {
		return e.Route == "keys" && e.Kind == "tier_insufficient" && e.PrincipalID == "u1" && e.Time.Equal(testNow)
	})).Return(errors.New("channel closed")).Once()

	f := newGateFixture(t, WithAudit(audit))
	f.addUser("u1", models.TierFree, models.StatusActive, true)
	token := issueToken(t, time.Hour, "u1")

	approved := f.gate.Authorize(context.Background(), Required("me"), bearerCred(token))
	rejected := f.gate.Authorize(context.Background(), Required("keys", MinTier(models.TierPro)), bearerCred(token))
	optional := f.gate.Authorize(context.Background(), Optional("session"), Credential{})

	assert.True(t, approved.Allowed())
	assert.ErrorIs(t, rejected.Err, ErrTierInsufficient, "publish failure does not change the decision")
	assert.True(t, optional.Allowed())
	audit.AssertExpectations(t)
	audit.AssertNumberOfCalls(t, "Publish", 1)
}

func TestGate_ConcurrentKeyUsage(t *testing.T) {
	f := newGateFixture(t)
	f.addUser("u1", models.TierPro, models.StatusActive, true)
	plain := f.addKey(t, "k1", "u1", models.PermFormsRead)

	const n = 100
	var wg sync.WaitGroup
	allowed := make(chan bool, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := f.gate.Authorize(context.Background(), Required("forms", APIPermission(models.PermFormsRead)), keyCred(plain))
			allowed <- d.Allowed()
		}()
	}
	wg.Wait()
	close(allowed)

	for ok := range allowed {
		require.True(t, ok)
	}
	assert.Equal(t, int64(n), f.store.usage(apikey.Hash(plain)))
}
