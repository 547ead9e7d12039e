package audit

import (
	"time"

	id "vouch/pkg/domain"
)

// Action names the audited domain events.
type Action string

const (
	ActionRequestSubmitted Action = "institution_request.submitted"
	ActionRequestCancelled Action = "institution_request.cancelled"
	ActionRequestApproved  Action = "institution_request.approved"
	ActionRequestRejected  Action = "institution_request.rejected"
	ActionPostVerified     Action = "post.verified"
	ActionPostUnverified   Action = "post.unverified"
	ActionUserRolePromoted Action = "user.role_promoted"
)

// Event is emitted from domain logic to capture key trust decisions. Kept
// transport-agnostic so sinks can fan out (log line, Kafka topic, memory).
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	ActorID   id.UserID `json:"actor_id"`
	Subject   string    `json:"subject"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}
