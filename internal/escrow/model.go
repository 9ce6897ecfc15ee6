package escrow

import (
	"errors"
	"time"
)

// Status tracks completion mechanics of an engagement. The request ledger
// keeps its own negotiation vocabulary; the two are linked 1:1 and
// mirrored on settlement.
type Status string

const (
	StatusPending           Status = "pending"
	StatusClientConfirmed   Status = "client_confirmed"
	StatusProviderConfirmed Status = "provider_confirmed"
	StatusCompleted         Status = "completed"
	StatusDisputed          Status = "disputed"
	StatusCancelled         Status = "cancelled"
)

var (
	ErrNotFound = errors.New("escrow not found")
	ErrConflict = errors.New("escrow already exists for this request")
)

// Feedback is set once by the client after completion; a resubmission
// replaces it in full.
type Feedback struct {
	Rating  *int   `json:"rating"`
	Comment string `json:"comment"`
}

// Escrow is the dual-confirmation completion record tied to an accepted
// service request.
type Escrow struct {
	ID                       string     `json:"id"`
	RequestID                string     `json:"request_id"`
	ClientID                 string     `json:"client_id"`
	ProviderID               string     `json:"provider_id"`
	Status                   Status     `json:"status"`
	ClientConfirmationDate   *time.Time `json:"client_confirmation_date"`
	ProviderConfirmationDate *time.Time `json:"provider_confirmation_date"`
	CompletionDate           *time.Time `json:"completion_date"`
	Feedback                 Feedback   `json:"feedback"`
	DisputeReason            string     `json:"dispute_reason"`
	CreatedAt                time.Time  `json:"created_at"`
}

// IsParty reports whether userID is the client or the provider.
func (e *Escrow) IsParty(userID string) bool {
	return userID == e.ClientID || userID == e.ProviderID
}

// Live reports whether the escrow still accepts status-changing actions.
// completed, disputed and cancelled are all fully terminal.
func (e *Escrow) Live() bool {
	switch e.Status {
	case StatusPending, StatusClientConfirmed, StatusProviderConfirmed:
		return true
	}
	return false
}

// Confirm applies one actor's confirmation at time now. If the counterpart
// has already confirmed, the escrow completes and both the actor's
// confirmation date and the completion date are stamped. Re-confirming
// before the counterpart does re-stamps the same actor state without
// progressing the machine.
func (e *Escrow) Confirm(actorID string, now time.Time) (completed bool) {
	if actorID == e.ClientID {
		e.ClientConfirmationDate = &now
		if e.Status == StatusProviderConfirmed {
			e.Status = StatusCompleted
			e.CompletionDate = &now
			return true
		}
		e.Status = StatusClientConfirmed
		return false
	}

	e.ProviderConfirmationDate = &now
	if e.Status == StatusClientConfirmed {
		e.Status = StatusCompleted
		e.CompletionDate = &now
		return true
	}
	e.Status = StatusProviderConfirmed
	return false
}
