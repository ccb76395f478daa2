package apiv1

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reklamai-generation/internal/domain/ports/adapter"
	"reklamai-generation/internal/infra/api"
	"reklamai-generation/internal/usecase"
)

// RateLimit caps status polls per user per window. Limit 0 disables it.
type RateLimit struct {
	Limiter adapter.RateLimiter
	Limit   int
	Window  time.Duration
}

// Server holds the use cases behind the /functions/v1 routes.
type Server struct {
	status   usecase.StatusUseCase
	download usecase.DownloadUseCase
	webhook  usecase.WebhookUseCase
	sync     usecase.SyncUseCase
	auth     *api.Authenticator
	limit    RateLimit
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewServer(
	status usecase.StatusUseCase,
	download usecase.DownloadUseCase,
	webhook usecase.WebhookUseCase,
	sync usecase.SyncUseCase,
	auth *api.Authenticator,
	limit RateLimit,
	logger *zerolog.Logger,
) *Server {
	if limit.Window <= 0 {
		limit.Window = time.Minute
	}
	return &Server{
		status:   status,
		download: download,
		webhook:  webhook,
		sync:     sync,
		auth:     auth,
		limit:    limit,
		validate: newValidator(),
		log:      logger,
	}
}

// RegisterAPIV1 mounts the function routes on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/functions/v1", func(r chi.Router) {
		// Provider callbacks carry no user token.
		r.Post("/provider-webhook", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(api.RequireAuth(s.auth, s.log))
			r.Get("/status", s.handleStatus)
			r.Post("/status", s.handleStatus)
			r.Post("/download", s.handleDownload)
			r.Post("/sync-generations", s.handleSync)
		})

		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			api.WriteJSON(w, http.StatusNotFound, api.ErrorBody{Error: "Not found"})
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			api.WriteJSON(w, http.StatusMethodNotAllowed, api.ErrorBody{Error: "Method not allowed"})
		})
	})
}

// newValidator registers generation_id: a dashed 36-char UUID in either case.
// The stock uuid tag rejects uppercase hex.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("generation_id", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != 36 {
			return false
		}
		_, err := uuid.Parse(s)
		return err == nil
	})
	return v
}
