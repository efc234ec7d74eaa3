package access

import (
	"context"
	"time"
)

// AuditPublisher публикует события аудита в брокер.
type AuditPublisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// AuditEvent — событие об отказе в доступе.
type AuditEvent struct {
	Route       string    `json:"route"`
	State       State     `json:"state"`
	Kind        string    `json:"kind"`
	Method      Method    `json:"method,omitempty"`
	PrincipalID string    `json:"principal_id,omitempty"`
	KeyID       string    `json:"key_id,omitempty"`
	Time        time.Time `json:"time"`
}

// RoutingKey возвращает ключ маршрутизации вида access.<state>.
func (e AuditEvent) RoutingKey() string {
	return "access." + string(e.State)
}
