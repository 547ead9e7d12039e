// Package service implements the institution request workflow: a normal user
// applies for institution status with a proof document, may cancel while the
// application is pending, and is blocked from holding more than one active
// application at a time.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"vouch/internal/audit"
	"vouch/internal/document"
	"vouch/internal/identity"
	requestmetrics "vouch/internal/request/metrics"
	"vouch/internal/request/models"
	"vouch/internal/request/throttle"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/requestcontext"
)

// RequestStore is the ledger of institution requests.
//
// Create must reject a second active request for the same user with
// sentinel.ErrConflict; enforcing that in the store (partial unique index, or
// the memory store's mutex) is what makes Submit race-safe. Execute must hold
// the row lock across validate+mutate.
type RequestStore interface {
	Create(ctx context.Context, req *models.InstitutionRequest) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.InstitutionRequest, error)
	ListByRequester(ctx context.Context, requesterID id.UserID) ([]*models.InstitutionRequest, error)
	HasActive(ctx context.Context, requesterID id.UserID) (bool, error)
	Execute(ctx context.Context, requestID id.RequestID,
		validate func(*models.InstitutionRequest) error,
		mutate func(*models.InstitutionRequest)) (*models.InstitutionRequest, error)
}

// AuditPublisher records trust decisions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the request workflow.
type Service struct {
	requests   RequestStore
	identities identity.Store
	documents  document.Store
	limiter    throttle.Limiter
	logger     *slog.Logger
	metrics    *requestmetrics.Metrics
	publisher  AuditPublisher
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *requestmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithThrottle(limiter throttle.Limiter) Option {
	return func(s *Service) { s.limiter = limiter }
}

// New constructs the workflow service.
func New(requests RequestStore, identities identity.Store, documents document.Store, opts ...Option) *Service {
	s := &Service{
		requests:   requests,
		identities: identities,
		documents:  documents,
		limiter:    throttle.Nop{},
		tracer:     otel.Tracer("vouch/request"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and files a new institution request for the actor.
//
// The duplicate-active guard is the store constraint, not the advisory
// CanSubmitNew read: two concurrent Submits resolve to one PENDING row and
// one conflict error.
func (s *Service) Submit(ctx context.Context, actor id.Actor, details models.Details, doc document.Upload) (*models.InstitutionRequest, error) {
	ctx, span := s.tracer.Start(ctx, "request.Submit")
	defer span.End()
	start := time.Now()

	if err := actor.Require(id.RoleNormal); err != nil {
		return nil, err
	}

	// Re-check the role against the identity store: the token may predate a
	// promotion or demotion.
	user, err := s.identities.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity store unavailable")
	}
	if user.Role != id.RoleNormal {
		return nil, dErrors.New(dErrors.CodeForbidden, "only normal users may apply for institution status")
	}

	if err := s.limiter.Allow(ctx, actor.ID); err != nil {
		return nil, err
	}

	details.Normalize()
	if err := details.Validate(); err != nil {
		return nil, err
	}
	if err := models.ValidateDocument(doc.Filename, doc.ContentType, len(doc.Content)); err != nil {
		s.incrementDocumentRejected()
		return nil, err
	}

	documentURL, err := s.documents.Upload(ctx, doc, actor.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "document upload failed")
	}

	now := requestcontext.Now(ctx)
	req, err := models.NewInstitutionRequest(id.NewRequestID(), actor.ID, details, documentURL, now)
	if err != nil {
		return nil, err
	}

	if err := s.requests.Create(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an active institution request already exists for this user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create institution request")
	}

	s.emit(ctx, audit.Event{
		Action:  audit.ActionRequestSubmitted,
		ActorID: actor.ID,
		Subject: req.ID.String(),
	})
	s.incrementSubmitted()
	s.observeSubmit(start)
	s.log(ctx, "institution request submitted",
		"request_id", req.ID.String(),
		"requester_id", actor.ID.String(),
		"institution_type", string(req.Type),
	)
	return req, nil
}

// Cancel retracts a pending request. Only the original requester may cancel,
// and only while the request is PENDING.
func (s *Service) Cancel(ctx context.Context, actor id.Actor, requestID id.RequestID) error {
	ctx, span := s.tracer.Start(ctx, "request.Cancel")
	defer span.End()

	if actor.ID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	now := requestcontext.Now(ctx)
	_, err := s.requests.Execute(ctx, requestID,
		func(req *models.InstitutionRequest) error {
			return req.CanCancel(actor.ID)
		},
		func(req *models.InstitutionRequest) {
			req.ApplyCancellation(now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "institution request not found")
		}
		return err
	}

	s.emit(ctx, audit.Event{
		Action:  audit.ActionRequestCancelled,
		ActorID: actor.ID,
		Subject: requestID.String(),
	})
	s.incrementCancelled()
	s.log(ctx, "institution request cancelled",
		"request_id", requestID.String(),
		"requester_id", actor.ID.String(),
	)
	return nil
}

// CanSubmitNew reports whether the actor could submit a request right now.
// Advisory only: client UIs gate the apply button on it, but Submit re-checks
// everything, so this read is side-effect-free and takes no locks.
func (s *Service) CanSubmitNew(ctx context.Context, actor id.Actor) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "request.CanSubmitNew")
	defer span.End()

	if actor.ID.IsNil() {
		return false, nil
	}
	user, err := s.identities.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity store unavailable")
	}
	if user.Role != id.RoleNormal {
		return false, nil
	}

	active, err := s.requests.HasActive(ctx, actor.ID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check active request")
	}
	return !active, nil
}

// ListMine returns the actor's own requests, newest first.
func (s *Service) ListMine(ctx context.Context, actor id.Actor) ([]*models.InstitutionRequest, error) {
	ctx, span := s.tracer.Start(ctx, "request.ListMine")
	defer span.End()

	if actor.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	requests, err := s.requests.ListByRequester(ctx, actor.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list institution requests")
	}
	return requests, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.publisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.publisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "error", err, "action", string(event.Action))
	}
}

func (s *Service) log(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_trace_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, args...)
}

func (s *Service) incrementSubmitted() {
	if s.metrics != nil {
		s.metrics.IncrementSubmitted()
	}
}

func (s *Service) incrementCancelled() {
	if s.metrics != nil {
		s.metrics.IncrementCancelled()
	}
}

func (s *Service) incrementDocumentRejected() {
	if s.metrics != nil {
		s.metrics.DocumentRejections.Inc()
	}
}

func (s *Service) observeSubmit(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveSubmit(start)
	}
}
