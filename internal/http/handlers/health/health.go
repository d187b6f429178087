// Package health реализует проверку живости и готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/account-service/internal/http/response"
	"github.com/magabrotheeeer/account-service/internal/lib/sl"
)

// ReadinessChecker описывает проверку готовности хранилища.
type ReadinessChecker interface {
	CheckDatabaseReady(ctx context.Context) error
}

// Handler обрабатывает запросы GET /health.
type Handler struct {
	log   *slog.Logger
	store ReadinessChecker
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, store ReadinessChecker) *Handler {
	return &Handler{
		log:   log,
		store: store,
	}
}

// ServeHTTP отвечает 200, когда хранилище готово принимать запросы,
// и 503 в противном случае.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.store.CheckDatabaseReady(r.Context()); err != nil {
		h.log.Error("database is not ready", sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("service is not ready"))
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
	}))
}
