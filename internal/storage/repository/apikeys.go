package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/formpulse/backend/internal/models"
	"github.com/formpulse/backend/internal/storage"
)

const apiKeyColumns = `id, user_id, name, key_hash, key_prefix, status, permissions,
			      expires_at, usage_count, last_used_at, created_at`

// rowScanner объединяет *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateAPIKey сохраняет новый ключ и возвращает его ID.
func (s *Storage) CreateAPIKey(ctx context.Context, key models.APIKey) (string, error) {
	const op = "storage.CreateAPIKey"

	permissions := key.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	var newID string
	query := `INSERT INTO api_keys (user_id, name, key_hash, key_prefix, status, permissions, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id;`
	err := s.DB.QueryRowContext(ctx, query,
		key.UserID, key.Name, key.KeyHash, key.KeyPrefix, string(key.Status),
		permissions, key.ExpiresAt).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetAPIKeyByHash возвращает ключ по SHA-256 хэшу его значения.
func (s *Storage) GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	const op = "storage.GetAPIKeyByHash"

	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`
	k, err := scanAPIKey(s.DB.QueryRowContext(ctx, query, keyHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAPIKeyNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return k, nil
}

// TouchAPIKey атомарно увеличивает счётчик использований и обновляет время
// последнего использования. Обновление выполняется одним условным UPDATE,
// поэтому параллельные вызовы для одного ключа не теряют инкременты.
// Для отозванного или удалённого ключа возвращается storage.ErrAPIKeyNotFound.
func (s *Storage) TouchAPIKey(ctx context.Context, id string, at time.Time) (int64, time.Time, error) {
	const op = "storage.TouchAPIKey"

	query := `UPDATE api_keys
			  SET usage_count = usage_count + 1,
			      last_used_at = $2
			  WHERE id = $1 AND status = $3
			  RETURNING usage_count, last_used_at`
	var (
		usage    int64
		lastUsed time.Time
	)
	err := s.DB.QueryRowContext(ctx, query, id, at, string(models.KeyActive)).Scan(&usage, &lastUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, time.Time{}, fmt.Errorf("%s: %w", op, storage.ErrAPIKeyNotFound)
		}
		return 0, time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return usage, lastUsed, nil
}

// ListAPIKeys возвращает ключи пользователя, новые первыми.
func (s *Storage) ListAPIKeys(ctx context.Context, userID string) ([]models.APIKey, error) {
	const op = "storage.ListAPIKeys"
	if _, err := uuid.Parse(userID); err != nil {
		return []models.APIKey{}, nil
	}

	query := `SELECT ` + apiKeyColumns + ` FROM api_keys
			  WHERE user_id = $1
			  ORDER BY created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []models.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *k)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// RevokeAPIKey переводит ключ пользователя в статус INACTIVE.
func (s *Storage) RevokeAPIKey(ctx context.Context, id, userID string) error {
	const op = "storage.RevokeAPIKey"
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s: %w", op, storage.ErrAPIKeyNotFound)
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE api_keys SET status = $3 WHERE id = $1 AND user_id = $2`,
		id, userID, string(models.KeyInactive))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAPIKeyNotFound)
	}
	return nil
}

func scanAPIKey(row rowScanner) (*models.APIKey, error) {
	var (
		k                   models.APIKey
		status              string
		expiresAt, lastUsed sql.NullTime
	)
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &status,
		textArray(&k.Permissions), &expiresAt, &k.UsageCount, &lastUsed, &k.CreatedAt)
	if err != nil {
		return nil, err
	}
	k.Status = models.KeyStatus(status)
	if expiresAt.Valid {
		k.ExpiresAt = &expiresAt.Time
	}
	if lastUsed.Valid {
		k.LastUsedAt = &lastUsed.Time
	}
	return &k, nil
}
