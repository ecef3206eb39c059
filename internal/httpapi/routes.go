package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(wsHandler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	r.Get("/ws", wsHandler)
	r.Get("/healthz", Healthz)
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
