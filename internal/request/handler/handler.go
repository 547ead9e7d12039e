// Package handler exposes the institution request workflow over HTTP.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vouch/internal/document"
	"vouch/internal/request/models"
	"vouch/internal/transport/http/shared"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/requestcontext"
)

// Service defines the interface for request workflow operations.
type Service interface {
	Submit(ctx context.Context, actor id.Actor, details models.Details, doc document.Upload) (*models.InstitutionRequest, error)
	Cancel(ctx context.Context, actor id.Actor, requestID id.RequestID) error
	CanSubmitNew(ctx context.Context, actor id.Actor) (bool, error)
	ListMine(ctx context.Context, actor id.Actor) ([]*models.InstitutionRequest, error)
}

// Handler handles institution request endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates a new request Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register mounts the request routes. The caller is expected to wrap the
// router with RequireAuth; every route here needs an authenticated actor.
func (h *Handler) Register(r chi.Router) {
	r.Post("/institution-requests", h.handleSubmit)
	r.Get("/institution-requests/mine", h.handleListMine)
	r.Get("/institution-requests/can-submit", h.handleCanSubmit)
	r.Post("/institution-requests/{requestID}/cancel", h.handleCancel)
}

// handleSubmit accepts a multipart form: the applicant fields plus the proof
// document under the "document" part.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	// One extra megabyte of headroom for the non-file fields; the document
	// size itself is enforced by the service against the real byte count.
	r.Body = http.MaxBytesReader(w, r.Body, models.MaxDocumentSize+1<<20)
	if err := r.ParseMultipartForm(models.MaxDocumentSize + 1<<20); err != nil {
		h.logger.WarnContext(ctx, "invalid submit form",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}

	institutionType, err := models.ParseInstitutionType(r.FormValue("type"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	details := models.Details{
		InstitutionName: r.FormValue("institution_name"),
		LegalAddress:    r.FormValue("legal_address"),
		OfficialPhone:   r.FormValue("official_phone"),
		Type:            institutionType,
		RegistryNumber:  r.FormValue("registry_number"),
		Website:         r.FormValue("website"),
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "document is required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read document"))
		return
	}
	doc := document.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}

	req, err := h.service.Submit(ctx, actor, details, doc)
	if err != nil {
		h.writeServiceError(ctx, w, "submit institution request", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, req)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.service.Cancel(ctx, requestcontext.Actor(ctx), requestID); err != nil {
		h.writeServiceError(ctx, w, "cancel institution request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCanSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	canSubmit, err := h.service.CanSubmitNew(ctx, requestcontext.Actor(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "check can submit", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"can_submit": canSubmit})
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requests, err := h.service.ListMine(ctx, requestcontext.Actor(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "list own institution requests", err)
		return
	}
	if requests == nil {
		requests = []*models.InstitutionRequest{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// writeServiceError logs unexpected failures and hands every error to the
// shared envelope writer; expected domain errors pass through quietly.
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
