package models

import (
	"slices"
	"time"
)

// KeyStatus — состояние API-ключа.
type KeyStatus string

const (
	KeyActive   KeyStatus = "ACTIVE"
	KeyInactive KeyStatus = "INACTIVE"
)

// Известные права API-ключей.
const (
	PermFormsRead      = "forms:read"
	PermFormsWrite     = "forms:write"
	PermResponsesRead  = "responses:read"
	PermResponsesWrite = "responses:write"
	PermKeysRead       = "keys:read"
)

// KnownPermissions перечисляет права, которые можно выдать ключу.
var KnownPermissions = []string{
	PermFormsRead,
	PermFormsWrite,
	PermResponsesRead,
	PermResponsesWrite,
	PermKeysRead,
}

// APIKey представляет сохранённый API-ключ пользователя.
// Сам ключ не хранится, только его SHA-256 хэш и короткий префикс для отображения.
type APIKey struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	KeyHash     string     `json:"-"`
	KeyPrefix   string     `json:"key_prefix"`
	Status      KeyStatus  `json:"status"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	UsageCount  int64      `json:"usage_count"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HasPermission проверяет точное совпадение права, без шаблонов и иерархий.
func (k *APIKey) HasPermission(permission string) bool {
	return slices.Contains(k.Permissions, permission)
}

// Expired сообщает, истёк ли срок действия ключа на момент now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}
