package access

import (
	"strings"
)

// Mode — режим маршрута.
type Mode int

const (
	// ModeRequired завершает запрос при любом отказе.
	ModeRequired Mode = iota
	// ModeOptional пропускает запрос без субъекта при любом отказе, кроме внутренней ошибки.
	ModeOptional
)

// Route описывает политику маршрута: режим и упорядоченный список проверок.
type Route struct {
	Name   string
	Mode   Mode
	Checks []Check
}

// Required создаёт маршрут с обязательной аутентификацией.
// Проверка ActiveAccount всегда выполняется первой.
func Required(name string, checks ...Check) Route {
	return Route{
		Name:   name,
		Mode:   ModeRequired,
		Checks: append([]Check{ActiveAccount()}, checks...),
	}
}

// Optional создаёт маршрут с необязательной аутентификацией.
func Optional(name string, checks ...Check) Route {
	return Route{
		Name:   name,
		Mode:   ModeOptional,
		Checks: append([]Check{ActiveAccount()}, checks...),
	}
}

// Credential — учётные данные, извлечённые из запроса.
type Credential struct {
	Method Method
	Value  string
}

// CredentialFromHeaders выбирает учётные данные из заголовков x-api-key и Authorization.
// API-ключ имеет приоритет. Заголовок Authorization не вида "Bearer <token>"
// превращается в пустой bearer-токен, который не пройдёт проверку.
func CredentialFromHeaders(apiKey, authorization string) Credential {
	if key := strings.TrimSpace(apiKey); key != "" {
		return Credential{Method: MethodAPIKey, Value: key}
	}
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return Credential{}
	}
	scheme, token, found := strings.Cut(authorization, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return Credential{Method: MethodBearer}
	}
	return Credential{Method: MethodBearer, Value: strings.TrimSpace(token)}
}
