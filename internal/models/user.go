// Package models содержит доменные модели учётной записи, API-ключа
// и аутентифицированного субъекта (principal), которые используются
// в бизнес‑логике, хранилище и HTTP/gRPC слоях.
package models

import (
	"strings"
	"time"
)

// Tier — уровень подписки пользователя.
type Tier string

const (
	// TierFree — бесплатный тариф.
	TierFree Tier = "FREE"
	// TierPro — платный тариф PRO.
	TierPro Tier = "PRO"
	// TierEnterprise — корпоративный тариф.
	TierEnterprise Tier = "ENTERPRISE"
)

// Level возвращает позицию тарифа в иерархии FREE=0 < PRO=1 < ENTERPRISE=2.
// Значение сравнивается точно, любое другое (в том числе "pro") считается FREE.
func (t Tier) Level() int {
	switch t {
	case TierEnterprise:
		return 2
	case TierPro:
		return 1
	default:
		return 0
	}
}

// IsValid сообщает, является ли значение одним из известных тарифов.
func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	default:
		return false
	}
}

// SubscriptionStatus — статус оплаты подписки.
type SubscriptionStatus string

const (
	StatusActive     SubscriptionStatus = "ACTIVE"
	StatusTrialing   SubscriptionStatus = "TRIALING"
	StatusPastDue    SubscriptionStatus = "PAST_DUE"
	StatusIncomplete SubscriptionStatus = "INCOMPLETE"
	StatusUnpaid     SubscriptionStatus = "UNPAID"
	StatusCanceled   SubscriptionStatus = "CANCELED"
)

// Blocked сообщает, запрещён ли доступ аккаунту с таким статусом.
// Блокируются только UNPAID и CANCELED, остальные статусы пропускаются.
// Регистр и пробелы не учитываются, поэтому "canceled" тоже блокирует.
func (s SubscriptionStatus) Blocked() bool {
	switch SubscriptionStatus(strings.ToUpper(strings.TrimSpace(string(s)))) {
	case StatusUnpaid, StatusCanceled:
		return true
	default:
		return false
	}
}

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID                 string             // Уникальный идентификатор пользователя (UUID)
	Email              string             // Электронная почта (уникальная)
	Name               string             // Отображаемое имя
	PasswordHash       string             // bcrypt-хэш пароля
	Tier               Tier               // Тариф
	SubscriptionStatus SubscriptionStatus // Статус оплаты
	EmailVerified      bool               // Подтверждена ли почта
	CreatedAt          time.Time
}

// Principal описывает аутентифицированного субъекта запроса.
// Загружается из хранилища на каждый запрос и не кэшируется.
type Principal struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	Tier               Tier               `json:"tier"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	EmailVerified      bool               `json:"email_verified"`
}

// Principal возвращает срез атрибутов пользователя, важных для авторизации.
func (u *User) Principal() Principal {
	return Principal{
		ID:                 u.ID,
		Email:              u.Email,
		Tier:               u.Tier,
		SubscriptionStatus: u.SubscriptionStatus,
		EmailVerified:      u.EmailVerified,
	}
}
