// Package service implements the admin review of institution requests.
// Approval crosses two stores — the request ledger and the identity store —
// and must commit or roll back as one unit: a request marked APPROVED with no
// role change is a data-integrity violation, not a degraded mode.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"vouch/internal/audit"
	"vouch/internal/identity"
	requestmetrics "vouch/internal/request/metrics"
	"vouch/internal/request/models"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/platform/tx"
	"vouch/pkg/requestcontext"
)

// RequestStore is the slice of the request ledger the review side needs.
// Execute must hold the row lock across validate+mutate so two admins cannot
// both move the same request out of PENDING.
type RequestStore interface {
	FindByID(ctx context.Context, requestID id.RequestID) (*models.InstitutionRequest, error)
	List(ctx context.Context, status *models.Status) ([]*models.InstitutionRequest, error)
	CountByStatus(ctx context.Context, status models.Status) (int, error)
	Execute(ctx context.Context, requestID id.RequestID,
		validate func(*models.InstitutionRequest) error,
		mutate func(*models.InstitutionRequest)) (*models.InstitutionRequest, error)
}

// AuditPublisher records trust decisions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service coordinates approval and rejection of institution requests.
type Service struct {
	requests   RequestStore
	identities identity.Store
	runner     tx.Runner
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

// New constructs the review service. The runner must span both stores: for
// postgres it carries the *sql.Tx both stores pick up from the context, for
// memory stores it is a tx.MemoryRunner registered over both.
func New(requests RequestStore, identities identity.Store, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		requests:   requests,
		identities: identities,
		runner:     runner,
		tracer:     otel.Tracer("vouch/review"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Approve transitions a pending request to APPROVED and promotes the
// requester to institution, atomically.
func (s *Service) Approve(ctx context.Context, actor id.Actor, requestID id.RequestID) error {
	ctx, span := s.tracer.Start(ctx, "review.Approve")
	defer span.End()
	start := time.Now()

	if err := actor.Require(id.RoleAdmin); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	var requesterID id.UserID
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		req, err := s.requests.FindByID(txCtx, requestID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "institution request not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load institution request")
		}
		requesterID = req.RequesterID

		// The requester may have been promoted or made admin between
		// submission and review; approving then would corrupt the role model.
		user, err := s.identities.FindByID(txCtx, req.RequesterID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "requester no longer exists")
			}
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "identity store unavailable")
		}
		switch user.Role {
		case id.RoleInstitution:
			return dErrors.New(dErrors.CodeConflict, "user is already an institution")
		case id.RoleAdmin:
			return dErrors.New(dErrors.CodeConflict, "an administrator cannot become an institution")
		}

		// Execute revalidates the status under the row lock, so a concurrent
		// reviewer loses here with a conflict rather than double-processing.
		if _, err := s.requests.Execute(txCtx, requestID,
			func(req *models.InstitutionRequest) error { return req.CanReview() },
			func(req *models.InstitutionRequest) { req.ApplyApproval(actor.ID, now) },
		); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "institution request not found")
			}
			return err
		}

		if err := s.identities.SetRole(txCtx, req.RequesterID, id.RoleInstitution); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to promote requester")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, audit.Event{
		Action:  audit.ActionRequestApproved,
		ActorID: actor.ID,
		Subject: requestID.String(),
	})
	s.emit(ctx, audit.Event{
		Action:  audit.ActionUserRolePromoted,
		ActorID: actor.ID,
		Subject: requesterID.String(),
	})
	s.incrementApproved()
	s.observeReview(start)
	s.log(ctx, "institution request approved",
		"request_id", requestID.String(),
		"requester_id", requesterID.String(),
		"admin_id", actor.ID.String(),
	)
	return nil
}

// Reject transitions a pending request to REJECTED with a reason. The
// requester's role is untouched; REJECTED is terminal and frees the user to
// submit again.
func (s *Service) Reject(ctx context.Context, actor id.Actor, requestID id.RequestID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "review.Reject")
	defer span.End()
	start := time.Now()

	if err := actor.Require(id.RoleAdmin); err != nil {
		return err
	}
	reason, err := models.ValidateRejectionReason(reason)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	_, err = s.requests.Execute(ctx, requestID,
		func(req *models.InstitutionRequest) error { return req.CanReview() },
		func(req *models.InstitutionRequest) { req.ApplyRejection(actor.ID, reason, now) },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "institution request not found")
		}
		return err
	}

	s.emit(ctx, audit.Event{
		Action:  audit.ActionRequestRejected,
		ActorID: actor.ID,
		Subject: requestID.String(),
		Reason:  reason,
	})
	s.incrementRejected()
	s.observeReview(start)
	s.log(ctx, "institution request rejected",
		"request_id", requestID.String(),
		"admin_id", actor.ID.String(),
	)
	return nil
}

// List returns requests for the admin dashboard, optionally filtered by
// status, newest first.
func (s *Service) List(ctx context.Context, actor id.Actor, status *models.Status) ([]*models.InstitutionRequest, error) {
	ctx, span := s.tracer.Start(ctx, "review.List")
	defer span.End()

	if err := actor.Require(id.RoleAdmin); err != nil {
		return nil, err
	}
	requests, err := s.requests.List(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list institution requests")
	}
	return requests, nil
}

// GetDetail returns one request for admin inspection.
func (s *Service) GetDetail(ctx context.Context, actor id.Actor, requestID id.RequestID) (*models.InstitutionRequest, error) {
	ctx, span := s.tracer.Start(ctx, "review.GetDetail")
	defer span.End()

	if err := actor.Require(id.RoleAdmin); err != nil {
		return nil, err
	}
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "institution request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load institution request")
	}
	return req, nil
}

// Counts returns per-status totals for the admin dashboard.
func (s *Service) Counts(ctx context.Context, actor id.Actor) (map[models.Status]int, error) {
	ctx, span := s.tracer.Start(ctx, "review.Counts")
	defer span.End()

	if err := actor.Require(id.RoleAdmin); err != nil {
		return nil, err
	}
	counts := make(map[models.Status]int, 4)
	for _, status := range []models.Status{
		models.StatusPending, models.StatusApproved, models.StatusRejected, models.StatusCancelled,
	} {
		count, err := s.requests.CountByStatus(ctx, status)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count institution requests")
		}
		counts[status] = count
	}
	return counts, nil
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

func (s *Service) incrementApproved() {
	if s.metrics != nil {
		s.metrics.IncrementApproved()
	}
}

func (s *Service) incrementRejected() {
	if s.metrics != nil {
		s.metrics.IncrementRejected()
	}
}

func (s *Service) observeReview(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveReview(start)
	}
}
