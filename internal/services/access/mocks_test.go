package access

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/storage"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockKeyStore struct {
	mock.Mock
}

func (m *MockKeyStore) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	args := m.Called(ctx, keyHash)
	if k := args.Get(0); k != nil {
		return k.(*models.APIKey), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockKeyStore) TouchAPIKey(ctx context.Context, id string, at time.Time) (int64, time.Time, error) {
	args := m.Called(ctx, id, at)
	return args.Get(0).(int64), args.Get(1).(time.Time), args.Error(2)
}

type MockDenylist struct {
	mock.Mock
}

func (m *MockDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

type MockAuditPublisher struct {
	mock.Mock
}

func (m *MockAuditPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	args := m.Called(ctx, routingKey, message)
	return args.Error(0)
}

// memoryStore — потокобезопасное хранилище в памяти, которое ведёт себя
// как репозиторий PostgreSQL: инкремент счётчика выполняется под блокировкой
// одной операцией.
type memoryStore struct {
	mu    sync.Mutex
	users map[string]models.User
	keys  map[string]*models.APIKey
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users: make(map[string]models.User),
		keys:  make(map[string]*models.APIKey),
	}
}

func (s *memoryStore) addUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memoryStore) deleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

func (s *memoryStore) addKey(k models.APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[k.KeyHash] = &k
}

func (s *memoryStore) usage(hash string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[hash].UsageCount
}

func (s *memoryStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &u, nil
}

func (s *memoryStore) GetAPIKeyByHash(_ context.Context, keyHash string) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[keyHash]
	if !ok {
		return nil, storage.ErrAPIKeyNotFound
	}
	cp := *k
	return &cp, nil
}

func (s *memoryStore) TouchAPIKey(_ context.Context, id string, at time.Time) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id && k.Status == models.KeyActive {
			k.UsageCount++
			k.LastUsedAt = &at
			return k.UsageCount, at, nil
		}
	}
	return 0, time.Time{}, storage.ErrAPIKeyNotFound
}
