package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/formpulse/backend/internal/migrations"
	"github.com/formpulse/backend/internal/models"
)

// testDataFactory создаёт тестовые данные напрямую через SQL.
type testDataFactory struct {
	storage *Storage
}

func newTestDataFactory(storage *Storage) *testDataFactory {
	return &testDataFactory{storage: storage}
}

// CreateUser создаёт пользователя с заданным тарифом и статусом и возвращает его ID.
func (f *testDataFactory) CreateUser(t *testing.T, email string, tier models.Tier, status models.SubscriptionStatus) string {
	t.Helper()
	var id string
	err := f.storage.DB.QueryRow(`INSERT INTO users
		(email, name, password_hash, subscription_tier, subscription_status, email_verified)
		VALUES ($1, $2, $3, $4, $5, true) RETURNING id`,
		email, "Test User", "hashedpassword", string(tier), string(status)).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateAPIKey создаёт активный ключ пользователя и возвращает его ID.
func (f *testDataFactory) CreateAPIKey(t *testing.T, userID, hash string, permissions []string) string {
	t.Helper()
	id, err := f.storage.CreateAPIKey(context.Background(), models.APIKey{
		UserID:      userID,
		Name:        "test key",
		KeyHash:     hash,
		KeyPrefix:   "fp_live_abcdef01",
		Status:      models.KeyActive,
		Permissions: permissions,
	})
	require.NoError(t, err)
	return id
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, dsn)
	require.NoError(t, err)

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
