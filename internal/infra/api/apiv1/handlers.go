package apiv1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/infra/adapters/kie"
	"reklamai-generation/internal/infra/api"
	"reklamai-generation/internal/infra/logging"
	"reklamai-generation/internal/infra/metrics"
	red "reklamai-generation/internal/infra/redis"
	"reklamai-generation/internal/usecase"
)

const maxBody = 1 << 20

type generationRequest struct {
	GenerationID string `json:"generationId" validate:"required,generation_id"`
}

type statusResponse struct {
	Status           model.GenerationStatus `json:"status"`
	Progress         *int                   `json:"progress,omitempty"`
	SignedPreviewURL string                 `json:"signedPreviewUrl,omitempty"`
	Error            string                 `json:"error,omitempty"`
	SettlementError  string                 `json:"settlementError,omitempty"`
}

type downloadResponse struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type webhookResponse struct {
	OK     bool                   `json:"ok"`
	TaskID string                 `json:"taskId"`
	Status model.GenerationStatus `json:"status"`
	Error  string                 `json:"error,omitempty"`
}

type syncResponse struct {
	usecase.SyncSummary
	DurationMS int64 `json:"durationMs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := api.CallerFrom(ctx)

	var req generationRequest
	if r.Method == http.MethodGet {
		req.GenerationID = r.URL.Query().Get("generationId")
	} else if !s.decode(w, r, &req) {
		return
	}
	if !s.valid(w, &req) {
		return
	}

	if !s.allow(w, r, caller, "status") {
		return
	}

	res, err := s.status.Poll(ctx, caller, req.GenerationID, usecase.SourceStatus)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, statusResponse{
		Status:           res.Status,
		Progress:         res.Progress,
		SignedPreviewURL: res.PreviewURL,
		Error:            res.Error,
		SettlementError:  res.SettlementError,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	caller, _ := api.CallerFrom(r.Context())

	var req generationRequest
	if !s.decode(w, r, &req) || !s.valid(w, &req) {
		return
	}

	res, err := s.download.Download(r.Context(), caller, req.GenerationID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, downloadResponse{URL: res.URL, ExpiresAt: res.ExpiresAt})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		api.WriteJSON(w, http.StatusBadRequest, api.ErrorBody{Error: "Invalid payload"})
		return
	}
	cb, err := kie.ParseCallback(body)
	if err != nil {
		msg := "Invalid JSON"
		if errors.Is(err, kie.ErrMissingTaskID) {
			msg = "Missing taskId"
		}
		api.WriteJSON(w, http.StatusBadRequest, api.ErrorBody{Error: msg})
		return
	}

	// Only the task id is taken from the body; the provider is asked for the state.
	logging.With(r.Context(), s.log).Debug().
		Str("task_id", cb.TaskID).
		Str("claimed_status", string(cb.Result.Status)).
		Msg("provider callback received")
	res, err := s.webhook.Handle(r.Context(), cb.TaskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, webhookResponse{OK: true, TaskID: res.TaskID, Status: res.Status, Error: res.Error})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	caller, _ := api.CallerFrom(r.Context())
	if !caller.ServiceRole {
		api.WriteJSON(w, http.StatusForbidden, api.ErrorBody{Error: "Service role required"})
		return
	}
	sum, err := s.sync.Run(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, syncResponse{SyncSummary: *sum, DurationMS: sum.Duration.Milliseconds()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v); err != nil {
		api.WriteJSON(w, http.StatusBadRequest, api.ErrorBody{Error: "Invalid payload", Details: err.Error()})
		return false
	}
	return true
}

func (s *Server) valid(w http.ResponseWriter, req *generationRequest) bool {
	if err := s.validate.Struct(req); err != nil {
		api.WriteJSON(w, http.StatusBadRequest, api.ErrorBody{Error: "Invalid payload", Details: "generationId must be a UUID"})
		return false
	}
	return true
}

// allow applies the per-user poll limit. Limiter failures let the request through.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, caller usecase.Caller, route string) bool {
	if s.limit.Limiter == nil || s.limit.Limit <= 0 || caller.ServiceRole {
		return true
	}
	ok, err := s.limit.Limiter.Allow(r.Context(), red.UserRouteKey(caller.UserID, route), s.limit.Limit, s.limit.Window)
	if err != nil {
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimited(route)
		s.writeError(w, r, domain.ErrRateLimited)
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var pue *usecase.ProviderUnavailableError
	switch {
	case errors.As(err, &pue):
		api.WriteJSON(w, http.StatusBadGateway, api.ErrorBody{
			Error:   "Provider unavailable",
			Details: pue.Err.Error(),
			Status:  string(pue.Stored),
		})
	case errors.Is(err, domain.ErrInvalidArgument):
		api.WriteJSON(w, http.StatusBadRequest, api.ErrorBody{Error: "Invalid payload", Details: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		api.WriteJSON(w, http.StatusUnauthorized, api.ErrorBody{Error: "Unauthorized"})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrForbidden):
		api.WriteJSON(w, http.StatusNotFound, api.ErrorBody{Error: "Generation not found or access denied"})
	case errors.Is(err, domain.ErrOutputNotAvailable):
		api.WriteJSON(w, http.StatusNotFound, api.ErrorBody{Error: "Output not available"})
	case errors.Is(err, domain.ErrRateLimited):
		api.WriteJSON(w, http.StatusTooManyRequests, api.ErrorBody{Error: "Too many requests"})
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		api.WriteJSON(w, http.StatusInternalServerError, api.ErrorBody{Error: "Internal error"})
	}
}
