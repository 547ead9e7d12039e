package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"vouch/internal/audit"
	"vouch/internal/document"
	"vouch/internal/identity"
	"vouch/internal/request/models"
	requeststore "vouch/internal/request/store/request"
	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite

	service   *Service
	requests  *requeststore.InMemory
	users     *identity.InMemory
	documents *document.InMemory
	auditSink *audit.MemoryStore

	requester id.Actor
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.requests = requeststore.NewInMemory()
	s.users = identity.NewInMemory()
	s.documents = document.NewInMemory()
	s.auditSink = audit.NewMemoryStore()

	userID := id.NewUserID()
	s.users.Seed(identity.User{ID: userID, Role: id.RoleNormal})
	s.requester = id.Actor{ID: userID, Role: id.RoleNormal}

	s.service = New(s.requests, s.users, s.documents,
		WithAuditPublisher(audit.NewPublisher(s.auditSink)),
	)
}

func validDetails() models.Details {
	return models.Details{
		InstitutionName: "National Library",
		LegalAddress:    "4 Archive Square",
		OfficialPhone:   "+1-555-0102",
		Type:            models.TypeLibrary,
	}
}

func pdfUpload(size int) document.Upload {
	return document.Upload{
		Filename:    "charter.pdf",
		ContentType: "application/pdf",
		Content:     bytes.Repeat([]byte("a"), size),
	}
}

func (s *ServiceSuite) TestSubmit() {
	ctx := context.Background()

	s.Run("happy path files a pending request", func() {
		req, err := s.service.Submit(ctx, s.requester, validDetails(), pdfUpload(2<<20))
		s.Require().NoError(err)
		s.Equal(models.StatusPending, req.Status)
		s.Equal(s.requester.ID, req.RequesterID)
		s.NotEmpty(req.DocumentURL)
		s.Equal(1, s.documents.Count())

		events := s.auditSink.Events()
		s.Require().Len(events, 1)
		s.Equal(audit.ActionRequestSubmitted, events[0].Action)
		s.Equal(req.ID.String(), events[0].Subject)
	})

	s.Run("duplicate active request conflicts", func() {
		_, err := s.service.Submit(ctx, s.requester, validDetails(), pdfUpload(1024))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestSubmitApprovedStillBlocks() {
	ctx := context.Background()

	req, err := s.service.Submit(ctx, s.requester, validDetails(), pdfUpload(1024))
	s.Require().NoError(err)
	_, err = s.requests.Execute(ctx, req.ID,
		func(r *models.InstitutionRequest) error { return r.CanReview() },
		func(r *models.InstitutionRequest) { r.ApplyApproval(id.NewUserID(), r.CreatedAt) },
	)
	s.Require().NoError(err)

	_, err = s.service.Submit(ctx, s.requester, validDetails(), pdfUpload(1024))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestSubmitAuthorization() {
	ctx := context.Background()

	s.Run("anonymous caller unauthorized", func() {
		_, err := s.service.Submit(ctx, id.Actor{}, validDetails(), pdfUpload(1024))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("institution role forbidden", func() {
		institutionID := id.NewUserID()
		s.users.Seed(identity.User{ID: institutionID, Role: id.RoleInstitution})
		_, err := s.service.Submit(ctx, id.Actor{ID: institutionID, Role: id.RoleInstitution}, validDetails(), pdfUpload(1024))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("stale token role re-checked against identity store", func() {
		// Token claims NORMAL, but the store says the user was promoted.
		promotedID := id.NewUserID()
		s.users.Seed(identity.User{ID: promotedID, Role: id.RoleInstitution})
		_, err := s.service.Submit(ctx, id.Actor{ID: promotedID, Role: id.RoleNormal}, validDetails(), pdfUpload(1024))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown user not found", func() {
		_, err := s.service.Submit(ctx, id.Actor{ID: id.NewUserID(), Role: id.RoleNormal}, validDetails(), pdfUpload(1024))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestSubmitDocumentValidation() {
	ctx := context.Background()

	cases := []struct {
		name string
		doc  document.Upload
	}{
		{"empty document", document.Upload{Filename: "charter.pdf", ContentType: "application/pdf"}},
		{"oversize document", pdfUpload(models.MaxDocumentSize + 1)},
		{"disallowed type", document.Upload{Filename: "charter.docx", ContentType: "application/msword", Content: []byte("x")}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.Submit(ctx, s.requester, validDetails(), tc.doc)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}

	// Nothing reached the document store or the ledger.
	s.Equal(0, s.documents.Count())
	active, err := s.requests.HasActive(ctx, s.requester.ID)
	s.Require().NoError(err)
	s.False(active)
}

func (s *ServiceSuite) TestSubmitUploadFailure() {
	ctx := context.Background()
	s.documents.FailWith(context.DeadlineExceeded)

	_, err := s.service.Submit(ctx, s.requester, validDetails(), pdfUpload(1024))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	// The failed attempt must not consume the user's one active slot.
	active, err := s.requests.HasActive(ctx, s.requester.ID)
	s.Require().NoError(err)
	s.False(active)

	s.documents.FailWith(nil)
	_, err = s.service.Submit(ctx, s.requester, validDetails(), pdfUpload(1024))
	s.NoError(err)
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(context.Context, id.UserID) error {
	return dErrors.New(dErrors.CodeRateLimited, "too many submission attempts")
}

func (s *ServiceSuite) TestSubmitThrottled() {
	ctx := context.Background()
	service := New(s.requests, s.users, s.documents, WithThrottle(denyAllLimiter{}))

	_, err := service.Submit(ctx, s.requester, validDetails(), pdfUpload(1024))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
	s.Equal(0, s.documents.Count())
}

func (s *ServiceSuite) TestCancel() {
	ctx := context.Background()
	req, err := s.service.Submit(ctx, s.requester, validDetails(), pdfUpload(1024))
	s.Require().NoError(err)

	s.Run("non-owner forbidden", func() {
		stranger := id.Actor{ID: id.NewUserID(), Role: id.RoleNormal}
		err := s.service.Cancel(ctx, stranger, req.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown request not found", func() {
		err := s.service.Cancel(ctx, s.requester, id.NewRequestID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("owner cancels a pending request", func() {
		s.Require().NoError(s.service.Cancel(ctx, s.requester, req.ID))

		stored, err := s.requests.FindByID(ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, stored.Status)
	})

	s.Run("second cancel conflicts", func() {
		err := s.service.Cancel(ctx, s.requester, req.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("cancellation frees the user to resubmit", func() {
		_, err := s.service.Submit(ctx, s.requester, validDetails(), pdfUpload(1024))
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestCanSubmitNew() {
	ctx := context.Background()

	s.Run("fresh normal user can submit", func() {
		ok, err := s.service.CanSubmitNew(ctx, s.requester)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("active request blocks", func() {
		_, err := s.service.Submit(ctx, s.requester, validDetails(), pdfUpload(1024))
		s.Require().NoError(err)

		ok, err := s.service.CanSubmitNew(ctx, s.requester)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("anonymous cannot submit", func() {
		ok, err := s.service.CanSubmitNew(ctx, id.Actor{})
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("institution cannot submit", func() {
		institutionID := id.NewUserID()
		s.users.Seed(identity.User{ID: institutionID, Role: id.RoleInstitution})
		ok, err := s.service.CanSubmitNew(ctx, id.Actor{ID: institutionID, Role: id.RoleInstitution})
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *ServiceSuite) TestListMine() {
	ctx := context.Background()

	req, err := s.service.Submit(ctx, s.requester, validDetails(), pdfUpload(1024))
	s.Require().NoError(err)
	s.Require().NoError(s.service.Cancel(ctx, s.requester, req.ID))
	second, err := s.service.Submit(ctx, s.requester, validDetails(), pdfUpload(1024))
	s.Require().NoError(err)

	list, err := s.service.ListMine(ctx, s.requester)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID)

	other, err := s.service.ListMine(ctx, id.Actor{ID: id.NewUserID(), Role: id.RoleNormal})
	s.Require().NoError(err)
	s.Empty(other)
}
