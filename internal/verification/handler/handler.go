// Package handler exposes post verification endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vouch/internal/transport/http/shared"
	"vouch/internal/verification/models"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/requestcontext"
)

// Service defines the interface for verification operations.
type Service interface {
	Verify(ctx context.Context, actor id.Actor, postID id.PostID) (*models.PostVerification, error)
	Unverify(ctx context.Context, actor id.Actor, postID id.PostID) error
	IsVerified(ctx context.Context, postID id.PostID) (bool, error)
	GetActive(ctx context.Context, postID id.PostID) (*models.PostVerification, error)
	ListForPost(ctx context.Context, postID id.PostID) ([]*models.PostVerification, error)
}

// Handler handles post verification endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates a new verification Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// RegisterProtected mounts the mutating routes; the caller wraps them with
// RequireAuth.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/posts/{postID}/verify", h.handleVerify)
	r.Post("/posts/{postID}/unverify", h.handleUnverify)
}

// RegisterPublic mounts the read-only routes. Feed rendering calls these for
// anonymous readers, so they carry no auth.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/posts/{postID}/verified", h.handleIsVerified)
	r.Get("/posts/{postID}/verification", h.handleGetActive)
	r.Get("/posts/{postID}/verifications", h.handleListForPost)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.service.Verify(ctx, requestcontext.Actor(ctx), postID)
	if err != nil {
		h.writeServiceError(ctx, w, "verify post", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleUnverify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.service.Unverify(ctx, requestcontext.Actor(ctx), postID); err != nil {
		h.writeServiceError(ctx, w, "unverify post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleIsVerified(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	verified, err := h.service.IsVerified(ctx, postID)
	if err != nil {
		h.writeServiceError(ctx, w, "check post verified", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"verified": verified})
}

func (h *Handler) handleGetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.service.GetActive(ctx, postID)
	if err != nil {
		h.writeServiceError(ctx, w, "load active verification", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleListForPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	postID, err := id.ParsePostID(chi.URLParam(r, "postID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	records, err := h.service.ListForPost(ctx, postID)
	if err != nil {
		h.writeServiceError(ctx, w, "list post verifications", err)
		return
	}
	if records == nil {
		records = []*models.PostVerification{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"verifications": records})
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
