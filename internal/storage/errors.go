// Package storage определяет ошибки уровня хранилища, общие для всех реализаций.
package storage

import "errors"

var (
	// ErrUserNotFound — пользователь с таким идентификатором или email отсутствует.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists — пользователь с таким email уже зарегистрирован.
	ErrUserExists = errors.New("user already exists")
	// ErrAPIKeyNotFound — ключ отсутствует или не принадлежит пользователю.
	ErrAPIKeyNotFound = errors.New("api key not found")
)
