// Package password реализует хеширование и проверку паролей пользователей.
//
// GetHash создает солёный bcrypt-хеш для безопасного хранения пароля.
// CompareHash проверяет соответствие пароля ранее сохранённому хешу.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch возвращается из CompareHash, когда пароль не совпадает с хешем.
// Несовпадение — штатный результат проверки, а не сбой примитива.
var ErrMismatch = errors.New("password does not match hash")

// GetHash принимает пароль пользователя и возвращает его bcrypt‑хэш.
// Стоимость — bcrypt.DefaultCost (10). Каждый вызов даёт новый хэш
// из-за случайной соли.
func GetHash(rawPassword string) (string, error) {
	const op = "password.GetHash"
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hash), nil
}

// CompareHash сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает nil при совпадении, ErrMismatch при несовпадении
// и обёрнутую ошибку примитива, если hash повреждён.
func CompareHash(originalHash, rawPassword string) error {
	const op = "password.CompareHash"
	err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(rawPassword))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return fmt.Errorf("%s: %w", op, err)
}
