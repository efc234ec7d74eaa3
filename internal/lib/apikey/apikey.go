// Package apikey генерирует API-ключи и вычисляет их хэши для хранения.
//
// Ключ имеет вид fp_live_<64 hex-символа>. В хранилище попадают только
// SHA-256 хэш и короткий префикс для отображения пользователю.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// Prefix — префикс всех ключей.
	Prefix = "fp_live_"
	// randomBytes — длина случайной части ключа в байтах.
	randomBytes = 32
	// displayLen — длина отображаемого префикса ключа.
	displayLen = len(Prefix) + 8
)

// Generate создаёт новый ключ в открытом виде.
func Generate() (string, error) {
	const op = "apikey.Generate"
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return Prefix + hex.EncodeToString(buf), nil
}

// Hash возвращает hex SHA-256 хэш ключа.
func Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// WellFormed проверяет формат ключа без обращения к хранилищу.
func WellFormed(key string) bool {
	body, ok := strings.CutPrefix(key, Prefix)
	if !ok || len(body) != randomBytes*2 {
		return false
	}
	_, err := hex.DecodeString(body)
	return err == nil
}

// DisplayPrefix возвращает начало ключа, которое можно показывать в интерфейсе.
func DisplayPrefix(key string) string {
	if len(key) <= displayLen {
		return key
	}
	return key[:displayLen]
}
