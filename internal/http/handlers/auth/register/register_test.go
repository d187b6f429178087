package register

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	services "github.com/magabrotheeeer/account-service/internal/services/auth"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Register(ctx context.Context, email, username, password, role string) (string, error) {
	args := m.Called(ctx, email, username, password, role)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		mockUID        string
		mockErr        error
		mockExpected   bool
		wantStatusCode int
		wantStatus     string
		wantError      string
		wantMessage    string
	}{
		{
			name:           "valid registration",
			requestBody:    Request{Username: "alice", Password: "pw123456", Email: "alice@x.com"},
			mockUID:        "some-uuid",
			mockExpected:   true,
			wantStatusCode: http.StatusCreated,
			wantStatus:     "OK",
			wantMessage:    "user registered successfully",
		},
		{
			name:           "valid registration with explicit role",
			requestBody:    Request{Username: "prof", Password: "pw123456", Email: "prof@x.com", Role: "instructor"},
			mockUID:        "prof-uuid",
			mockExpected:   true,
			wantStatusCode: http.StatusCreated,
			wantStatus:     "OK",
			wantMessage:    "user registered successfully",
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "invalid request body",
		},
		{
			name:           "missing all required fields",
			requestBody:    Request{},
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "field Username is a required field, field Password is a required field, field Email is a required field",
		},
		{
			name:           "unknown role",
			requestBody:    Request{Username: "alice", Password: "pw123456", Email: "alice@x.com", Role: "pirate"},
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "field Role must be one of the allowed values",
		},
		{
			name:           "service rejects role",
			requestBody:    Request{Username: "eve", Password: "pw123456", Email: "eve@x.com"},
			mockErr:        services.ErrInvalidRole,
			mockExpected:   true,
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "invalid role",
		},
		{
			name:           "service failure",
			requestBody:    Request{Username: "alice", Password: "pw123456", Email: "alice@x.com"},
			mockErr:        errors.New("db down"),
			mockExpected:   true,
			wantStatusCode: http.StatusInternalServerError,
			wantStatus:     "Error",
			wantError:      "failed to register user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svcMock := new(AuthServiceMock)
			handler := New(newNoopLogger(), svcMock)

			if tt.mockExpected {
				req := tt.requestBody.(Request)
				svcMock.On("Register", mock.Anything, req.Email, req.Username, req.Password, req.Role).
					Return(tt.mockUID, tt.mockErr).Once()
			}

			var bodyBytes []byte
			var err error
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				bodyBytes, err = json.Marshal(tt.requestBody)
				if err != nil {
					t.Fatal(err)
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			err = json.NewDecoder(rec.Body).Decode(&got)
			assert.NoError(t, err)

			assert.Equal(t, tt.wantStatus, got["status"])

			if tt.wantError != "" {
				errStr, ok := got["error"].(string)
				assert.True(t, ok)
				assert.Equal(t, tt.wantError, errStr)
			}

			if tt.wantMessage != "" {
				data, ok := got["data"].(map[string]any)
				assert.True(t, ok)
				assert.Equal(t, tt.wantMessage, data["message"])
				// Ни пароль, ни его хэш не должны попадать в ответ
				assert.NotContains(t, rec.Body.String(), "pw123456")
			}

			svcMock.AssertExpectations(t)
		})
	}
}

func TestRegisterHandler_ValidationStopsBeforeService(t *testing.T) {
	svcMock := new(AuthServiceMock)
	handler := New(newNoopLogger(), svcMock)

	body, _ := json.Marshal(Request{Username: "", Password: "", Email: ""})
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svcMock.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
