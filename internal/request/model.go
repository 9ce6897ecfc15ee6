package request

import (
	"errors"
	"time"
)

// Status is the negotiation-side lifecycle of a service request. The
// escrow ledger tracks completion mechanics with its own vocabulary and
// mirrors the in_progress/disputed markers onto the request.
type Status string

const (
	StatusPending     Status = "pending"
	StatusNegotiating Status = "negotiating"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"

	// Escrow-mirrored markers. Never accepted by the status endpoint.
	StatusInProgress Status = "in_progress"
	StatusDisputed   Status = "disputed"
)

// ErrNotFound is returned by the store when an id resolves to nothing.
var ErrNotFound = errors.New("service request not found")

// Nominal reports whether s is one of the six caller-visible statuses.
func (s Status) Nominal() bool {
	switch s {
	case StatusPending, StatusNegotiating, StatusAccepted,
		StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// transitions is the legality graph for caller-requested status changes.
// pending/negotiating/accepted are live; rejected/cancelled/completed are
// absorbing. in_progress only permits cancellation over REST; everything
// else in that phase belongs to the escrow.
var transitions = map[Status][]Status{
	StatusPending:     {StatusNegotiating, StatusAccepted, StatusRejected, StatusCancelled},
	StatusNegotiating: {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:    {StatusCompleted, StatusCancelled},
	StatusInProgress:  {StatusCancelled},
}

// CanTransition reports whether a caller may move a request from one
// status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ServiceRequest is the negotiation record between a requester and a
// provider prior to and during service delivery.
type ServiceRequest struct {
	ID                        string    `json:"id"`
	RequesterID               string    `json:"requester_id"`
	ProviderID                string    `json:"provider_id"`
	Status                    Status    `json:"status"`
	Terms                     string    `json:"terms"`
	RequesterCompletionMarked bool      `json:"requester_completion_marked"`
	ProviderCompletionMarked  bool      `json:"provider_completion_marked"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// IsParty reports whether userID is the requester or the provider.
func (r *ServiceRequest) IsParty(userID string) bool {
	return userID == r.RequesterID || userID == r.ProviderID
}

// Counterpart returns the other participant's id.
func (r *ServiceRequest) Counterpart(userID string) string {
	if userID == r.RequesterID {
		return r.ProviderID
	}
	return r.RequesterID
}
