// Package services содержит бизнес-логику работы с учётными записями:
// регистрацию, вход по паролю, проверку токенов и чтение профилей.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/account-service/internal/lib/jwt"
	"github.com/magabrotheeeer/account-service/internal/lib/password"
	"github.com/magabrotheeeer/account-service/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/account-service/internal/lib/sl"
	"github.com/magabrotheeeer/account-service/internal/models"
	"github.com/magabrotheeeer/account-service/internal/storage/repository"
)

// ErrUserNotFound возвращается из Login и GetProfile, когда запись
// с таким email или UID отсутствует.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidCredentials возвращается из Login при несовпадении пароля.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidRole возвращается из Register, когда непустая роль
// не входит в множество допустимых.
var ErrInvalidRole = errors.New("invalid role")

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя и возвращает его UID.
	CreateUser(ctx context.Context, user models.User) (string, error)

	// GetUserByEmail возвращает пользователя по email или ошибку, если не найден.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUser возвращает пользователя по UID или ошибку, если не найден.
	GetUser(ctx context.Context, userUID string) (*models.User, error)

	// ListUsers возвращает страницу пользователей.
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// Cache описывает контракт кэша профилей.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// EventPublisher описывает контракт публикации доменных событий.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// UserRegisteredEvent — событие успешной регистрации пользователя.
// Хэш пароля в событие не попадает.
type UserRegisteredEvent struct {
	UserUID      string    `json:"user_uid"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	RegisteredAt time.Time `json:"registered_at"`
}

// profileCacheTTL — время жизни профиля в кэше. Записи неизменяемы,
// TTL нужен только чтобы кэш не рос бесконечно.
const profileCacheTTL = time.Hour

// AuthService отвечает за регистрацию, вход и проверку JWT.
// Сервис не хранит состояния между вызовами: всё состояние живёт
// в хранилище, переданном через конструктор.
type AuthService struct {
	users    UserRepository
	jwtMaker jwt.Maker
	cache    Cache
	events   EventPublisher
	log      *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, jwtMaker jwt.Maker, cache Cache,
	events EventPublisher, log *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		jwtMaker: jwtMaker,
		cache:    cache,
		events:   events,
		log:      log,
	}
}

// Register создает нового пользователя: хэширует пароль, сохраняет запись
// и публикует событие user.registered. Пустая роль заменяется на student,
// непустая недопустимая роль отклоняется с ErrInvalidRole.
// Открытый пароль после хэширования нигде не сохраняется.
func (s *AuthService) Register(ctx context.Context, email, username, rawPassword, role string) (string, error) {
	const op = "services.auth.Register"

	if role == "" {
		role = models.RoleStudent
	}
	// Роль проверяется и здесь, а не только на HTTP-границе: в хранилище
	// не должна попасть запись с ролью вне множества допустимых.
	if !models.ValidRole(role) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		Role:         role,
	}
	newUID, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	event := UserRegisteredEvent{
		UserUID:      newUID,
		Username:     username,
		Email:        email,
		Role:         role,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.events.Publish(rabbitmq.RoutingKeyUserRegistered, event); err != nil {
		// Регистрация уже состоялась, потеря события не отменяет её.
		s.log.Warn("failed to publish user.registered event",
			slog.String("user_uid", newUID), sl.Err(err))
	}

	return newUID, nil
}

// Login проверяет пароль пользователя по email и выпускает JWT.
//
// Неизвестный email и неверный пароль различаются намеренно:
// ErrUserNotFound против ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (token, role string, err error) {
	const op = "services.auth.Login"

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", "", ErrUserNotFound
		}
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	token, err = s.jwtMaker.GenerateToken(user.UID, user.Role)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return token, user.Role, nil
}

// ValidateToken проверяет JWT и возвращает пользователя с UID и ролью из claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*models.User, error) {
	const op = "services.auth.ValidateToken"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.User{
		UID:  claims.Subject,
		Role: claims.Role,
	}, nil
}

// GetProfile возвращает публичный профиль пользователя по UID.
// Профиль читается из кэша; при промахе — из хранилища с записью в кэш.
func (s *AuthService) GetProfile(ctx context.Context, userUID string) (*models.Profile, error) {
	const op = "services.auth.GetProfile"

	cacheKey := "profile:" + userUID
	var cached models.Profile
	found, err := s.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read profile from cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile := user.PublicProfile()
	if err := s.cache.Set(ctx, cacheKey, profile, profileCacheTTL); err != nil {
		s.log.Warn("failed to cache profile", slog.String("key", cacheKey), sl.Err(err))
	}
	return &profile, nil
}

// ListProfiles возвращает страницу публичных профилей для административного списка.
func (s *AuthService) ListProfiles(ctx context.Context, limit, offset int) ([]models.Profile, error) {
	const op = "services.auth.ListProfiles"

	users, err := s.users.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profiles := make([]models.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.PublicProfile())
	}
	return profiles, nil
}
