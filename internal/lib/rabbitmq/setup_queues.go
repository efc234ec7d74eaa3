package rabbitmq

// QueueConfig описывает очередь и ключ, по которому она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetAuditQueues возвращает очереди журнала доступа.
func GetAuditQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "access.audit.rejected", RoutingKey: "access.policy_rejected"},
		{QueueName: "access.audit.failed", RoutingKey: "access.authentication_failed"},
	}
}
