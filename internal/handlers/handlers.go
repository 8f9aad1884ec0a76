package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/telhawk-systems/socdetect/common/httputil"
	"github.com/telhawk-systems/socdetect/common/logging"
	"github.com/telhawk-systems/socdetect/internal/detection"
	"github.com/telhawk-systems/socdetect/internal/service"
)

// LogRequest is the body of the parse and analyze endpoints.
type LogRequest struct {
	FileName string `json:"file_name" validate:"required,max=255"`
	Content  string `json:"content"`
}

// RulesResponse lists the active detection rules.
type RulesResponse struct {
	Rules []*detection.Rule `json:"rules"`
	Count int               `json:"count"`
}

// PurgeResponse reports how many alerts were removed for a file.
type PurgeResponse struct {
	FileName string `json:"file_name"`
	Deleted  int64  `json:"deleted"`
}

type Handler struct {
	service  *service.Service
	logger   *logging.Logger
	validate *validator.Validate
}

func NewHandler(svc *service.Service, logger *logging.Logger) *Handler {
	return &Handler{
		service:  svc,
		logger:   logger.WithComponent("handlers"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", logging.Error(err))
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListRules handles GET /api/v1/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules := h.service.Rules()
	httputil.WriteJSON(w, http.StatusOK, RulesResponse{Rules: rules, Count: len(rules)})
}

// ParseLog handles POST /api/v1/logs/parse. Nothing is stored.
func (h *Handler) ParseLog(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLogRequest(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.Parse(r.Context(), req.Content, req.FileName))
}

// AnalyzeLog handles POST /api/v1/logs/analyze
func (h *Handler) AnalyzeLog(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLogRequest(w, r)
	if !ok {
		return
	}

	res, err := h.service.Analyze(r.Context(), req.Content, req.FileName, nil)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "analysis failed", logging.FileName(req.FileName), logging.Error(err))
		httputil.WriteErrorDetails(w, http.StatusServiceUnavailable, "analysis interrupted", err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// PurgeFileAlerts handles DELETE /api/v1/logs/{fileName}/alerts
func (h *Handler) PurgeFileAlerts(w http.ResponseWriter, r *http.Request) {
	fileName := chi.URLParam(r, "fileName")
	if fileName == "" {
		httputil.WriteError(w, http.StatusBadRequest, "file name is required")
		return
	}

	n, err := h.service.Purge(r.Context(), fileName)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "purge failed", logging.FileName(fileName), logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete alerts")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PurgeResponse{FileName: fileName, Deleted: n})
}

// Stats handles GET /api/v1/logs/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "stats query failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// ScoreAlert handles POST /api/v1/alerts/{id}/risk-score
func (h *Handler) ScoreAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.service.Score(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "risk scoring failed", logging.AlertID(id), logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to score alert")
		return
	}
	if result == nil {
		httputil.WriteError(w, http.StatusNotFound, "alert not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) decodeLogRequest(w http.ResponseWriter, r *http.Request) (*LogRequest, bool) {
	var req LogRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteErrorDetails(w, http.StatusBadRequest, "invalid request body", err.Error())
		return nil, false
	}
	if err := h.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			httputil.WriteErrorDetails(w, http.StatusBadRequest, "invalid request", verrs[0].Field()+" failed "+verrs[0].Tag())
			return nil, false
		}
		httputil.WriteError(w, http.StatusBadRequest, "invalid request")
		return nil, false
	}
	return &req, true
}
