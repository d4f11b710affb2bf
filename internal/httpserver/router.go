package httpserver

import (
	"log/slog"
	"net/http"

	"promptrelay/internal/middleware"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	Logger          *slog.Logger
	GenerateHandler http.Handler
}

// NewRouter собирает chi-роутер с общими middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.Recover(deps.Logger, func(w http.ResponseWriter) {
		WriteError(w, http.StatusInternalServerError, MsgInternalError)
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Post("/generate", deps.GenerateHandler.ServeHTTP)

	return r
}
