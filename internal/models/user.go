// Package models содержит доменную модель пользователя сервиса учётных записей.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// Роли пользователей. Роль по умолчанию при регистрации — RoleStudent.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// ValidRole сообщает, входит ли role в множество допустимых ролей.
func ValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// User представляет зарегистрированного пользователя системы.
// Запись создаётся один раз при регистрации и далее не изменяется.
type User struct {
	UID          string    // Уникальный идентификатор, назначается хранилищем
	Username     string    // Имя пользователя
	Email        string    // Электронная почта, ключ поиска при входе
	PasswordHash string    // bcrypt-хэш пароля, никогда не отдается наружу
	Role         string    // Роль: student, instructor или admin
	CreatedAt    time.Time // Дата создания записи
}

// Profile — публичное представление пользователя без хэша пароля.
// Используется в ответах защищённых маршрутов и в кэше.
type Profile struct {
	UID       string    `json:"uid"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// PublicProfile строит Profile из полной записи, отбрасывая хэш пароля.
func (u *User) PublicProfile() Profile {
	return Profile{
		UID:       u.UID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
