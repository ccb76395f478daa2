package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Status  string `json:"status,omitempty"` // stored generation status, when known
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NewRouter returns a chi router carrying the common middleware and the
// health route. Versioned routes are registered on it by the caller.
func NewRouter(logger *zerolog.Logger, timeout time.Duration) *chi.Mux {
	r := chi.NewRouter()
	mws := []func(http.Handler) http.Handler{
		TraceID(logger),
		RequestLog(logger),
		Recover(logger),
		CORS(),
	}
	if timeout > 0 {
		mws = append(mws, Timeout(timeout))
	}
	r.Use(mws...)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}
