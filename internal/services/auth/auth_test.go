package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	customjwt "github.com/magabrotheeeer/account-service/internal/lib/jwt"
	"github.com/magabrotheeeer/account-service/internal/lib/password"
	"github.com/magabrotheeeer/account-service/internal/models"
	services "github.com/magabrotheeeer/account-service/internal/services/auth"
	"github.com/magabrotheeeer/account-service/internal/storage/repository"
)

// Мок для UserRepository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) CreateUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *UserRepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

// Мок для кэша
type CacheMock struct {
	mock.Mock
}

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

// Мок для издателя событий
type EventsMock struct {
	mock.Mock
}

func (m *EventsMock) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newService(repo *UserRepoMock, cache *CacheMock, events *EventsMock) *services.AuthService {
	maker := customjwt.NewJWTMaker("test_secret_key_1234567890", time.Hour)
	return services.NewAuthService(repo, maker, cache, events, newNoopLogger())
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name        string
		email       string
		username    string
		password    string
		role        string
		setupMocks  func(r *UserRepoMock, e *EventsMock)
		wantUserUID string
		wantErr     bool
		errMsg      string
	}{
		{
			name:     "successful registration with default role",
			email:    "alice@x.com",
			username: "alice",
			password: "pw123456",
			role:     "",
			setupMocks: func(r *UserRepoMock, e *EventsMock) {
				r.On("CreateUser", mock.Anything, mock.MatchedBy(func(user models.User) bool {
					return user.Email == "alice@x.com" &&
						user.Username == "alice" &&
						user.PasswordHash != "" &&
						user.PasswordHash != "pw123456" &&
						user.Role == models.RoleStudent
				})).Return("some-uuid-string", nil).Once()
				e.On("Publish", "user.registered", mock.MatchedBy(func(ev services.UserRegisteredEvent) bool {
					return ev.UserUID == "some-uuid-string" && ev.Email == "alice@x.com"
				})).Return(nil).Once()
			},
			wantUserUID: "some-uuid-string",
			wantErr:     false,
		},
		{
			name:     "explicit role is preserved",
			email:    "prof@x.com",
			username: "prof",
			password: "pw123456",
			role:     models.RoleInstructor,
			setupMocks: func(r *UserRepoMock, e *EventsMock) {
				r.On("CreateUser", mock.Anything, mock.MatchedBy(func(user models.User) bool {
					return user.Role == models.RoleInstructor
				})).Return("prof-uuid", nil).Once()
				e.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()
			},
			wantUserUID: "prof-uuid",
			wantErr:     false,
		},
		{
			name:     "repository error",
			email:    "alice@x.com",
			username: "alice",
			password: "pw123456",
			role:     "",
			setupMocks: func(r *UserRepoMock, _ *EventsMock) {
				r.On("CreateUser", mock.Anything, mock.Anything).Return("", errors.New("db error")).Once()
			},
			wantUserUID: "",
			wantErr:     true,
			errMsg:      "db error",
		},
		{
			name:     "event publish failure does not fail registration",
			email:    "bob@x.com",
			username: "bob",
			password: "pw123456",
			role:     "",
			setupMocks: func(r *UserRepoMock, e *EventsMock) {
				r.On("CreateUser", mock.Anything, mock.Anything).Return("bob-uuid", nil).Once()
				e.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
			},
			wantUserUID: "bob-uuid",
			wantErr:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			cache := new(CacheMock)
			events := new(EventsMock)
			svc := newService(repo, cache, events)

			tt.setupMocks(repo, events)

			got, err := svc.Register(context.Background(), tt.email, tt.username, tt.password, tt.role)
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantUserUID, got)
			}

			repo.AssertExpectations(t)
			events.AssertExpectations(t)
		})
	}
}

func TestAuthService_Register_InvalidRole(t *testing.T) {
	repo := new(UserRepoMock)
	events := new(EventsMock)
	svc := newService(repo, new(CacheMock), events)

	uid, err := svc.Register(context.Background(), "eve@x.com", "eve", "pw123456", "superuser")
	assert.ErrorIs(t, err, services.ErrInvalidRole)
	assert.Empty(t, uid)

	repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestAuthService_Login(t *testing.T) {
	rawPassword := "correctpassword"
	hash, err := password.GetHash(rawPassword)
	require.NoError(t, err)

	storedUser := &models.User{
		UID:          "550e8400-e29b-41d4-a716-446655440000",
		Username:     "alice",
		Email:        "alice@x.com",
		PasswordHash: hash,
		Role:         models.RoleStudent,
	}

	tests := []struct {
		name       string
		email      string
		password   string
		setupMocks func(r *UserRepoMock)
		wantErr    error
	}{
		{
			name:     "successful login",
			email:    "alice@x.com",
			password: rawPassword,
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByEmail", mock.Anything, "alice@x.com").Return(storedUser, nil).Once()
			},
			wantErr: nil,
		},
		{
			name:     "unknown email",
			email:    "nobody@x.com",
			password: "whatever",
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByEmail", mock.Anything, "nobody@x.com").
					Return(nil, repository.ErrUserNotFound).Once()
			},
			wantErr: services.ErrUserNotFound,
		},
		{
			name:     "wrong password",
			email:    "alice@x.com",
			password: "wrong",
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByEmail", mock.Anything, "alice@x.com").Return(storedUser, nil).Once()
			},
			wantErr: services.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			svc := newService(repo, new(CacheMock), new(EventsMock))

			tt.setupMocks(repo)

			token, role, err := svc.Login(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, token)
				assert.Equal(t, storedUser.Role, role)
			}

			repo.AssertExpectations(t)
		})
	}
}

// fakeRepo хранит единственного пользователя в памяти: достаточно,
// чтобы проверить связку регистрация → вход без базы данных.
type fakeRepo struct {
	user *models.User
}

func (f *fakeRepo) CreateUser(_ context.Context, user models.User) (string, error) {
	user.UID = "generated-uid"
	user.CreatedAt = time.Now().UTC()
	f.user = &user
	return user.UID, nil
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if f.user == nil || f.user.Email != email {
		return nil, repository.ErrUserNotFound
	}
	return f.user, nil
}

func (f *fakeRepo) GetUser(_ context.Context, userUID string) (*models.User, error) {
	if f.user == nil || f.user.UID != userUID {
		return nil, repository.ErrUserNotFound
	}
	return f.user, nil
}

func (f *fakeRepo) ListUsers(_ context.Context, _, _ int) ([]*models.User, error) {
	if f.user == nil {
		return nil, nil
	}
	return []*models.User{f.user}, nil
}

type noopEvents struct{}

func (noopEvents) Publish(string, any) error { return nil }

func TestAuthService_RegisterThenLogin(t *testing.T) {
	tokenTTL := time.Hour
	maker := customjwt.NewJWTMaker("roundtrip_secret_key", tokenTTL)
	repo := &fakeRepo{}
	svc := services.NewAuthService(repo, maker, new(CacheMock), noopEvents{}, newNoopLogger())

	ctx := context.Background()

	newUID, err := svc.Register(ctx, "alice@x.com", "alice", "pw123456", "")
	require.NoError(t, err)
	require.Equal(t, "generated-uid", newUID)

	token, role, err := svc.Login(ctx, "alice@x.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, role)

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, newUID, claims.Subject)
	assert.Equal(t, tokenTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))

	_, _, err = svc.Login(ctx, "alice@x.com", "wrong")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestAuthService_ValidateToken(t *testing.T) {
	maker := customjwt.NewJWTMaker("validate_secret_key", time.Hour)
	svc := services.NewAuthService(new(UserRepoMock), maker, new(CacheMock), noopEvents{}, newNoopLogger())

	token, err := maker.GenerateToken("some-uid", models.RoleAdmin)
	require.NoError(t, err)

	user, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "some-uid", user.UID)
	assert.Equal(t, models.RoleAdmin, user.Role)

	_, err = svc.ValidateToken(context.Background(), token+"tampered")
	assert.Error(t, err)
}

func TestAuthService_GetProfile(t *testing.T) {
	storedUser := &models.User{
		UID:          "cached-uid",
		Username:     "alice",
		Email:        "alice@x.com",
		PasswordHash: "hash",
		Role:         models.RoleStudent,
	}

	t.Run("cache miss reads storage and fills cache", func(t *testing.T) {
		repo := new(UserRepoMock)
		cache := new(CacheMock)
		svc := newService(repo, cache, new(EventsMock))

		cache.On("Get", mock.Anything, "profile:cached-uid", mock.Anything).Return(false, nil).Once()
		repo.On("GetUser", mock.Anything, "cached-uid").Return(storedUser, nil).Once()
		cache.On("Set", mock.Anything, "profile:cached-uid", mock.MatchedBy(func(p models.Profile) bool {
			return p.UID == "cached-uid" && p.Username == "alice"
		}), time.Hour).Return(nil).Once()

		profile, err := svc.GetProfile(context.Background(), "cached-uid")
		require.NoError(t, err)
		assert.Equal(t, "alice", profile.Username)

		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("cache hit skips storage", func(t *testing.T) {
		repo := new(UserRepoMock)
		cache := new(CacheMock)
		svc := newService(repo, cache, new(EventsMock))

		cache.On("Get", mock.Anything, "profile:cached-uid", mock.Anything).
			Run(func(args mock.Arguments) {
				out := args.Get(2).(*models.Profile)
				*out = storedUser.PublicProfile()
			}).Return(true, nil).Once()

		profile, err := svc.GetProfile(context.Background(), "cached-uid")
		require.NoError(t, err)
		assert.Equal(t, "alice", profile.Username)

		repo.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
		cache.AssertExpectations(t)
	})

	t.Run("unknown uid", func(t *testing.T) {
		repo := new(UserRepoMock)
		cache := new(CacheMock)
		svc := newService(repo, cache, new(EventsMock))

		cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Once()
		repo.On("GetUser", mock.Anything, "missing-uid").
			Return(nil, repository.ErrUserNotFound).Once()

		_, err := svc.GetProfile(context.Background(), "missing-uid")
		assert.ErrorIs(t, err, services.ErrUserNotFound)
	})
}

func TestAuthService_ListProfiles(t *testing.T) {
	repo := new(UserRepoMock)
	svc := newService(repo, new(CacheMock), new(EventsMock))

	repo.On("ListUsers", mock.Anything, 10, 0).Return([]*models.User{
		{UID: "u1", Username: "user1", Email: "user1@x.com", PasswordHash: "h1", Role: models.RoleStudent},
		{UID: "u2", Username: "user2", Email: "user2@x.com", PasswordHash: "h2", Role: models.RoleAdmin},
	}, nil).Once()

	profiles, err := svc.ListProfiles(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "u1", profiles[0].UID)
	assert.Equal(t, models.RoleAdmin, profiles[1].Role)

	repo.AssertExpectations(t)
}
