// Package service implements post verification: an institution vouches for a
// post written by someone else, at most one institution at a time per post.
// Posts authored by institutions carry the verified badge through authorship
// alone, but other institutions may still place records on them; the badge
// just does not depend on those records.
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
	"vouch/internal/post"
	verificationmetrics "vouch/internal/verification/metrics"
	"vouch/internal/verification/models"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/requestcontext"
)

// VerificationStore is the ledger of verification records.
//
// Create must reject a second active record for the same post with
// sentinel.ErrConflict. Deactivate must match post, verifier, and active
// state in one step and report sentinel.ErrNotFound when nothing matches.
type VerificationStore interface {
	Create(ctx context.Context, record *models.PostVerification) error
	FindActiveByPost(ctx context.Context, postID id.PostID) (*models.PostVerification, error)
	ExistsActiveByPost(ctx context.Context, postID id.PostID) (bool, error)
	Deactivate(ctx context.Context, postID id.PostID, verifierID id.UserID, at time.Time) (*models.PostVerification, error)
	ListByPost(ctx context.Context, postID id.PostID) ([]*models.PostVerification, error)
}

// AuditPublisher records trust decisions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates verification of posts.
type Service struct {
	verifications VerificationStore
	identities    identity.Store
	posts         post.Store
	logger        *slog.Logger
	metrics       *verificationmetrics.Metrics
	publisher     AuditPublisher
	tracer        trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *verificationmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// New constructs the verification service.
func New(verifications VerificationStore, identities identity.Store, posts post.Store, opts ...Option) *Service {
	s := &Service{
		verifications: verifications,
		identities:    identities,
		posts:         posts,
		tracer:        otel.Tracer("vouch/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify creates an active verification record for the post on behalf of the
// acting institution.
//
// The one-active-per-post guard is the store constraint: when two
// institutions race, one insert wins and the other surfaces here as a
// conflict.
func (s *Service) Verify(ctx context.Context, actor id.Actor, postID id.PostID) (*models.PostVerification, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Verify")
	defer span.End()

	if err := actor.Require(id.RoleInstitution); err != nil {
		return nil, err
	}

	// Re-check the role against the identity store: the token may predate a
	// demotion.
	user, err := s.identities.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity store unavailable")
	}
	if user.Role != id.RoleInstitution {
		return nil, dErrors.New(dErrors.CodeForbidden, "only institutions may verify posts")
	}

	info, err := s.posts.GetAuthorAndStatus(ctx, postID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "post not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "post store unavailable")
	}
	if !info.Active {
		return nil, dErrors.New(dErrors.CodeConflict, "post is not active")
	}
	if info.AuthorID == actor.ID {
		return nil, dErrors.New(dErrors.CodeConflict, "an institution cannot verify its own post")
	}

	record, err := models.NewPostVerification(id.NewVerificationID(), postID, actor.ID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.verifications.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.incrementConflict()
			return nil, dErrors.New(dErrors.CodeConflict, "post is already verified by another institution")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create verification")
	}

	s.emit(ctx, audit.Event{
		Action:  audit.ActionPostVerified,
		ActorID: actor.ID,
		Subject: postID.String(),
	})
	s.incrementVerified()
	s.log(ctx, "post verified",
		"post_id", postID.String(),
		"verifier_id", actor.ID.String(),
		"verification_id", record.ID.String(),
	)
	return record, nil
}

// Unverify retracts the actor's own active verification of the post. The
// record stays in the ledger, deactivated; retraction history is part of the
// trust trail.
//
// A missing match means either the post is not verified or someone else
// verified it; both come back as not found so callers cannot probe which
// institution holds the verification.
func (s *Service) Unverify(ctx context.Context, actor id.Actor, postID id.PostID) error {
	ctx, span := s.tracer.Start(ctx, "verification.Unverify")
	defer span.End()

	if err := actor.Require(id.RoleInstitution); err != nil {
		return err
	}

	record, err := s.verifications.Deactivate(ctx, postID, actor.ID, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no active verification by this institution for this post")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to retract verification")
	}

	s.emit(ctx, audit.Event{
		Action:  audit.ActionPostUnverified,
		ActorID: actor.ID,
		Subject: postID.String(),
	})
	s.incrementUnverified()
	s.log(ctx, "post verification retracted",
		"post_id", postID.String(),
		"verifier_id", actor.ID.String(),
		"verification_id", record.ID.String(),
	)
	return nil
}

// IsVerified reports whether the post currently carries the verified badge:
// authored by an institution, or holding an active verification record.
//
// Feed rendering calls this per post, so it is a plain read with no locks and
// no authorization gate.
func (s *Service) IsVerified(ctx context.Context, postID id.PostID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "verification.IsVerified")
	defer span.End()
	start := time.Now()
	defer s.observeIsVerified(start)

	info, err := s.posts.GetAuthorAndStatus(ctx, postID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeNotFound, "post not found")
		}
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "post store unavailable")
	}
	if info.AuthorRole == id.RoleInstitution {
		return true, nil
	}

	exists, err := s.verifications.ExistsActiveByPost(ctx, postID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check verification")
	}
	return exists, nil
}

// GetActive returns the active verification record for the post, or not found.
func (s *Service) GetActive(ctx context.Context, postID id.PostID) (*models.PostVerification, error) {
	ctx, span := s.tracer.Start(ctx, "verification.GetActive")
	defer span.End()

	record, err := s.verifications.FindActiveByPost(ctx, postID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "post is not verified")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification")
	}
	return record, nil
}

// ListForPost returns the full verification history of a post, newest first,
// including retracted records.
func (s *Service) ListForPost(ctx context.Context, postID id.PostID) ([]*models.PostVerification, error) {
	ctx, span := s.tracer.Start(ctx, "verification.ListForPost")
	defer span.End()

	records, err := s.verifications.ListByPost(ctx, postID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifications")
	}
	return records, nil
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

func (s *Service) incrementVerified() {
	if s.metrics != nil {
		s.metrics.IncrementVerified()
	}
}

func (s *Service) incrementUnverified() {
	if s.metrics != nil {
		s.metrics.IncrementUnverified()
	}
}

func (s *Service) incrementConflict() {
	if s.metrics != nil {
		s.metrics.IncrementConflict()
	}
}

func (s *Service) observeIsVerified(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveIsVerified(start)
	}
}
