package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/formpulse/backend/internal/lib/password"
	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/storage"
)

type usersByEmail map[string]*models.User

func (u usersByEmail) CreateUser(context.Context, models.User) (string, error) { return "", nil }
func (u usersByEmail) DeleteUser(context.Context, string) error { return nil }

func (u usersByEmail) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if user, ok := u[email]; ok {
		return user, nil
	}
	return nil, storage.ErrUserNotFound
}

func TestLogin_UnknownEmailStillHashes(t *testing.T) {
	users := usersByEmail{"known@example.com": {ID: "u1", Email: "known@example.com", PasswordHash: "stored-hash"}}
	svc := NewAuthService(users, nil, nil, time.Hour)

	var compared []string
	svc.compare = func(hash, _ string) error {
		compared = append(compared, hash)
		return password.ErrMismatch
	}

	_, errUnknown := svc.Login(context.Background(), "nobody@example.com", "password123")
	_, errKnown := svc.Login(context.Background(), "known@example.com", "password123")

	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errKnown, ErrInvalidCredentials)
	assert.Equal(t, []string{password.DummyHash(), "stored-hash"}, compared)
}
