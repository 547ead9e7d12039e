package models

import (
	"mime"
	"strings"
	"time"

	id "vouch/pkg/domain"
	dErrors "vouch/pkg/domain-errors"
)

// Status is the lifecycle state of an institution request.
//
// State machine:
//
//	Submit  → PENDING
//	PENDING → APPROVED  (admin)   terminal
//	PENDING → REJECTED  (admin)   terminal
//	PENDING → CANCELLED (owner)   terminal
//
// PENDING and APPROVED count as active: a user holding either may not submit
// again. REJECTED and CANCELLED free the user to resubmit.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status permits a fresh submission by the same
// user. APPROVED is terminal for the request but still blocks resubmission,
// so it is deliberately not listed here.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// ParseStatus parses a status from its string form.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown request status %q", raw)
	}
	return status, nil
}

// InstitutionType categorizes the applying institution.
type InstitutionType string

const (
	TypeUniversity InstitutionType = "UNIVERSITY"
	TypeSchool     InstitutionType = "SCHOOL"
	TypeMuseum     InstitutionType = "MUSEUM"
	TypeGovernment InstitutionType = "GOVERNMENT"
	TypeNGO        InstitutionType = "NGO"
	TypeLibrary    InstitutionType = "LIBRARY"
	TypeResearch   InstitutionType = "RESEARCH"
	TypeOther      InstitutionType = "OTHER"
)

func (t InstitutionType) Valid() bool {
	switch t {
	case TypeUniversity, TypeSchool, TypeMuseum, TypeGovernment,
		TypeNGO, TypeLibrary, TypeResearch, TypeOther:
		return true
	}
	return false
}

// ParseInstitutionType parses an institution type from its string form.
func ParseInstitutionType(raw string) (InstitutionType, error) {
	t := InstitutionType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown institution type %q", raw)
	}
	return t, nil
}

// Details carries the applicant-provided fields of a submission.
type Details struct {
	InstitutionName string
	LegalAddress    string
	OfficialPhone   string
	Type            InstitutionType
	RegistryNumber  string
	Website         string
}

// Normalize trims whitespace on all free-text fields.
func (d *Details) Normalize() {
	d.InstitutionName = strings.TrimSpace(d.InstitutionName)
	d.LegalAddress = strings.TrimSpace(d.LegalAddress)
	d.OfficialPhone = strings.TrimSpace(d.OfficialPhone)
	d.RegistryNumber = strings.TrimSpace(d.RegistryNumber)
	d.Website = strings.TrimSpace(d.Website)
}

func (d *Details) Validate() error {
	switch {
	case d.InstitutionName == "":
		return dErrors.New(dErrors.CodeValidation, "institution name is required")
	case len(d.InstitutionName) > 100:
		return dErrors.New(dErrors.CodeValidation, "institution name must be 100 characters or less")
	case d.LegalAddress == "":
		return dErrors.New(dErrors.CodeValidation, "legal address is required")
	case len(d.LegalAddress) > 200:
		return dErrors.New(dErrors.CodeValidation, "legal address must be 200 characters or less")
	case d.OfficialPhone == "":
		return dErrors.New(dErrors.CodeValidation, "official phone is required")
	case len(d.OfficialPhone) > 20:
		return dErrors.New(dErrors.CodeValidation, "official phone must be 20 characters or less")
	case !d.Type.Valid():
		return dErrors.New(dErrors.CodeValidation, "institution type is required")
	case len(d.RegistryNumber) > 50:
		return dErrors.New(dErrors.CodeValidation, "registry number must be 50 characters or less")
	case len(d.Website) > 200:
		return dErrors.New(dErrors.CodeValidation, "website must be 200 characters or less")
	}
	return nil
}

// Document validation limits for institution proof documents.
const MaxDocumentSize = 5 * 1024 * 1024

var allowedDocumentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
}

// ValidateDocument enforces the content-type whitelist and size ceiling
// before any state is mutated or bytes leave the process.
func ValidateDocument(filename, contentType string, size int) error {
	if size == 0 {
		return dErrors.New(dErrors.CodeValidation, "document is required")
	}
	if size > MaxDocumentSize {
		return dErrors.New(dErrors.CodeValidation, "document must be 5MB or less")
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if _, ok := allowedDocumentTypes[mediaType]; !ok {
		return dErrors.New(dErrors.CodeValidation, "document type not allowed: only PDF, JPEG and PNG are accepted")
	}
	if strings.TrimSpace(filename) == "" {
		return dErrors.New(dErrors.CodeValidation, "document must have a file name")
	}
	return nil
}

// Rejection reason limits.
const (
	MinRejectionReasonLen = 10
	MaxRejectionReasonLen = 500
)

// ValidateRejectionReason enforces the trimmed length window on rejection
// reasons.
func ValidateRejectionReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	if len(reason) < MinRejectionReasonLen || len(reason) > MaxRejectionReasonLen {
		return "", dErrors.Newf(dErrors.CodeValidation,
			"rejection reason must be between %d and %d characters", MinRejectionReasonLen, MaxRejectionReasonLen)
	}
	return reason, nil
}

// InstitutionRequest is the aggregate for one promotion application.
//
// Invariants:
//   - At most one request per user is active (PENDING or APPROVED) at a time;
//     enforced by the store, not by a read-then-write.
//   - RejectionReason is set iff Status is REJECTED.
//   - ReviewedAt/ReviewedBy are set when the request leaves PENDING.
//   - Requests are never physically deleted.
type InstitutionRequest struct {
	ID              id.RequestID    `json:"id"`
	RequesterID     id.UserID       `json:"requester_id"`
	InstitutionName string          `json:"institution_name"`
	LegalAddress    string          `json:"legal_address"`
	OfficialPhone   string          `json:"official_phone"`
	Type            InstitutionType `json:"type"`
	DocumentURL     string          `json:"document_url"`
	RegistryNumber  string          `json:"registry_number,omitempty"`
	Website         string          `json:"website,omitempty"`
	Status          Status          `json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	ReviewedBy      *id.UserID      `json:"reviewed_by,omitempty"`
}

// NewInstitutionRequest builds a PENDING request from validated details and
// an already-uploaded document URL.
func NewInstitutionRequest(requestID id.RequestID, requesterID id.UserID, details Details, documentURL string, now time.Time) (*InstitutionRequest, error) {
	if requesterID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requester is required")
	}
	if err := details.Validate(); err != nil {
		return nil, err
	}
	if documentURL == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document URL is required")
	}
	return &InstitutionRequest{
		ID:              requestID,
		RequesterID:     requesterID,
		InstitutionName: details.InstitutionName,
		LegalAddress:    details.LegalAddress,
		OfficialPhone:   details.OfficialPhone,
		Type:            details.Type,
		DocumentURL:     documentURL,
		RegistryNumber:  details.RegistryNumber,
		Website:         details.Website,
		Status:          StatusPending,
		CreatedAt:       now,
	}, nil
}

// Active reports whether the request blocks a new submission by its owner.
func (r *InstitutionRequest) Active() bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

// CanCancel checks the owner-initiated cancellation transition.
func (r *InstitutionRequest) CanCancel(requesterID id.UserID) error {
	if r.RequesterID != requesterID {
		return dErrors.New(dErrors.CodeForbidden, "only the requester may cancel this request")
	}
	if r.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeConflict, "only pending requests can be cancelled; current status is %s", r.Status)
	}
	return nil
}

// ApplyCancellation transitions PENDING → CANCELLED. Call CanCancel first.
func (r *InstitutionRequest) ApplyCancellation(now time.Time) {
	r.Status = StatusCancelled
	r.ReviewedAt = &now
}

// CanReview checks the admin-initiated approve/reject transitions.
func (r *InstitutionRequest) CanReview() error {
	if r.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeConflict, "only pending requests can be reviewed; current status is %s", r.Status)
	}
	return nil
}

// ApplyApproval transitions PENDING → APPROVED. Any stale rejection reason is
// cleared. Call CanReview first.
func (r *InstitutionRequest) ApplyApproval(adminID id.UserID, now time.Time) {
	r.Status = StatusApproved
	r.RejectionReason = ""
	r.ReviewedAt = &now
	r.ReviewedBy = &adminID
}

// ApplyRejection transitions PENDING → REJECTED with a validated reason.
// Call CanReview first.
func (r *InstitutionRequest) ApplyRejection(adminID id.UserID, reason string, now time.Time) {
	r.Status = StatusRejected
	r.RejectionReason = reason
	r.ReviewedAt = &now
	r.ReviewedBy = &adminID
}
