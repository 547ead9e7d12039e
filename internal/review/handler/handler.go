// Package handler exposes the admin review endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vouch/internal/request/models"
	"vouch/internal/transport/http/shared"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/requestcontext"
)

// Service defines the interface for review operations.
type Service interface {
	Approve(ctx context.Context, actor id.Actor, requestID id.RequestID) error
	Reject(ctx context.Context, actor id.Actor, requestID id.RequestID, reason string) error
	List(ctx context.Context, actor id.Actor, status *models.Status) ([]*models.InstitutionRequest, error)
	GetDetail(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.InstitutionRequest, error)
	Counts(ctx context.Context, actor id.Actor) (map[models.Status]int, error)
}

// Handler handles the admin review endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates a new review Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register mounts the admin routes. The caller wraps the router with
// RequireAuth; the admin role itself is enforced by the service.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/institution-requests", h.handleList)
	r.Get("/admin/institution-requests/counts", h.handleCounts)
	r.Get("/admin/institution-requests/{requestID}", h.handleDetail)
	r.Post("/admin/institution-requests/{requestID}/approve", h.handleApprove)
	r.Post("/admin/institution-requests/{requestID}/reject", h.handleReject)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var status *models.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := models.ParseStatus(raw)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		status = &parsed
	}

	requests, err := h.service.List(ctx, requestcontext.Actor(ctx), status)
	if err != nil {
		h.writeServiceError(ctx, w, "list institution requests", err)
		return
	}
	if requests == nil {
		requests = []*models.InstitutionRequest{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *Handler) handleCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := h.service.Counts(ctx, requestcontext.Actor(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "count institution requests", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	req, err := h.service.GetDetail(ctx, requestcontext.Actor(ctx), requestID)
	if err != nil {
		h.writeServiceError(ctx, w, "load institution request", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.service.Approve(ctx, requestcontext.Actor(ctx), requestID); err != nil {
		h.writeServiceError(ctx, w, "approve institution request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var body rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.WarnContext(ctx, "invalid reject request body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.service.Reject(ctx, requestcontext.Actor(ctx), requestID, body.Reason); err != nil {
		h.writeServiceError(ctx, w, "reject institution request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.Is(err, dErrors.CodeUnavailable) {
		h.logger.ErrorContext(ctx, "operation failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	shared.WriteError(w, err)
}
