package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

func validDetails() Details {
	return Details{
		InstitutionName: "City Museum of Natural History",
		LegalAddress:    "12 Museum Lane",
		OfficialPhone:   "+1-555-0100",
		Type:            TypeMuseum,
	}
}

func TestDetailsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Details)
	}{
		{"missing name", func(d *Details) { d.InstitutionName = "" }},
		{"name too long", func(d *Details) { d.InstitutionName = strings.Repeat("a", 101) }},
		{"missing address", func(d *Details) { d.LegalAddress = "" }},
		{"address too long", func(d *Details) { d.LegalAddress = strings.Repeat("a", 201) }},
		{"missing phone", func(d *Details) { d.OfficialPhone = "" }},
		{"phone too long", func(d *Details) { d.OfficialPhone = strings.Repeat("1", 21) }},
		{"invalid type", func(d *Details) { d.Type = "CLOWN_COLLEGE" }},
		{"registry number too long", func(d *Details) { d.RegistryNumber = strings.Repeat("9", 51) }},
		{"website too long", func(d *Details) { d.Website = strings.Repeat("w", 201) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			details := validDetails()
			tc.mutate(&details)
			err := details.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}

	t.Run("valid details pass", func(t *testing.T) {
		details := validDetails()
		assert.NoError(t, details.Validate())
	})

	t.Run("normalize trims whitespace", func(t *testing.T) {
		details := validDetails()
		details.InstitutionName = "  Museum  "
		details.Normalize()
		assert.Equal(t, "Museum", details.InstitutionName)
	})
}

func TestValidateDocument(t *testing.T) {
	t.Run("accepts PDF at the limit", func(t *testing.T) {
		assert.NoError(t, ValidateDocument("charter.pdf", "application/pdf", MaxDocumentSize))
	})

	t.Run("accepts JPEG and PNG", func(t *testing.T) {
		assert.NoError(t, ValidateDocument("scan.jpg", "image/jpeg", 1024))
		assert.NoError(t, ValidateDocument("scan.png", "image/png", 1024))
	})

	t.Run("accepts content type with parameters", func(t *testing.T) {
		assert.NoError(t, ValidateDocument("scan.png", "image/png; charset=binary", 1024))
	})

	t.Run("rejects empty document", func(t *testing.T) {
		err := ValidateDocument("charter.pdf", "application/pdf", 0)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects oversize document", func(t *testing.T) {
		err := ValidateDocument("charter.pdf", "application/pdf", MaxDocumentSize+1)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects disallowed type", func(t *testing.T) {
		err := ValidateDocument("macro.docx", "application/msword", 1024)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects missing filename", func(t *testing.T) {
		err := ValidateDocument("   ", "application/pdf", 1024)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestValidateRejectionReason(t *testing.T) {
	t.Run("too short rejected", func(t *testing.T) {
		_, err := ValidateRejectionReason("nope")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("whitespace does not rescue a short reason", func(t *testing.T) {
		_, err := ValidateRejectionReason("   nope      ")
		require.Error(t, err)
	})

	t.Run("too long rejected", func(t *testing.T) {
		_, err := ValidateRejectionReason(strings.Repeat("x", 501))
		require.Error(t, err)
	})

	t.Run("valid reason returned trimmed", func(t *testing.T) {
		reason, err := ValidateRejectionReason("  document does not name the institution  ")
		require.NoError(t, err)
		assert.Equal(t, "document does not name the institution", reason)
	})

	t.Run("boundary lengths accepted", func(t *testing.T) {
		_, err := ValidateRejectionReason(strings.Repeat("x", MinRejectionReasonLen))
		assert.NoError(t, err)
		_, err = ValidateRejectionReason(strings.Repeat("x", MaxRejectionReasonLen))
		assert.NoError(t, err)
	})
}

func TestInstitutionRequestLifecycle(t *testing.T) {
	now := time.Now()
	requester := id.NewUserID()
	admin := id.NewUserID()

	newRequest := func(t *testing.T) *InstitutionRequest {
		req, err := NewInstitutionRequest(id.NewRequestID(), requester, validDetails(), "https://docs/abc.pdf", now)
		require.NoError(t, err)
		return req
	}

	t.Run("new request is pending and active", func(t *testing.T) {
		req := newRequest(t)
		assert.Equal(t, StatusPending, req.Status)
		assert.True(t, req.Active())
	})

	t.Run("cancel requires ownership", func(t *testing.T) {
		req := newRequest(t)
		err := req.CanCancel(id.NewUserID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("cancel only while pending", func(t *testing.T) {
		req := newRequest(t)
		req.ApplyApproval(admin, now)
		err := req.CanCancel(requester)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("cancellation is terminal", func(t *testing.T) {
		req := newRequest(t)
		require.NoError(t, req.CanCancel(requester))
		req.ApplyCancellation(now)
		assert.Equal(t, StatusCancelled, req.Status)
		assert.False(t, req.Active())
		assert.Error(t, req.CanReview())
	})

	t.Run("approval stamps reviewer and stays active", func(t *testing.T) {
		req := newRequest(t)
		req.ApplyApproval(admin, now)
		assert.Equal(t, StatusApproved, req.Status)
		assert.True(t, req.Active())
		require.NotNil(t, req.ReviewedBy)
		assert.Equal(t, admin, *req.ReviewedBy)
		require.NotNil(t, req.ReviewedAt)
	})

	t.Run("approval clears a stale rejection reason", func(t *testing.T) {
		req := newRequest(t)
		req.RejectionReason = "stale"
		req.ApplyApproval(admin, now)
		assert.Empty(t, req.RejectionReason)
	})

	t.Run("rejection records reason and frees the user", func(t *testing.T) {
		req := newRequest(t)
		req.ApplyRejection(admin, "document does not name the institution", now)
		assert.Equal(t, StatusRejected, req.Status)
		assert.Equal(t, "document does not name the institution", req.RejectionReason)
		assert.False(t, req.Active())
		assert.True(t, req.Status.Terminal())
	})

	t.Run("approved request cannot be reviewed again", func(t *testing.T) {
		req := newRequest(t)
		req.ApplyApproval(admin, now)
		err := req.CanReview()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("constructor rejects missing pieces", func(t *testing.T) {
		_, err := NewInstitutionRequest(id.NewRequestID(), id.UserID{}, validDetails(), "https://docs/abc.pdf", now)
		assert.Error(t, err)

		_, err = NewInstitutionRequest(id.NewRequestID(), requester, validDetails(), "", now)
		assert.Error(t, err)
	})
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("pending")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	_, err = ParseStatus("IN_REVIEW")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
