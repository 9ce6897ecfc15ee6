package escrow

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/skillswap-labs/skillswap/internal/request"
)

// Notifier announces a persisted escrow transition to the other party and
// the out-of-band notification paths. Implemented by the bridge.
type Notifier interface {
	EscrowEvent(ctx context.Context, e *Escrow, requestStatus request.Status, actorID, event string)
}

type Handler struct {
	store    Store
	requests request.Store
	notify   Notifier
}

func NewHandler(store Store, requests request.Store, notify Notifier) *Handler {
	return &Handler{store: store, requests: requests, notify: notify}
}

// Open - create the escrow for an accepted service request (one per request)
func (h *Handler) Open(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		RequestID string `json:"request_id"`
	}
	if err := c.Bind(&req); err != nil || req.RequestID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload: request_id required"})
	}

	ctx := context.Background()

	r, err := h.requests.Get(ctx, req.RequestID)
	if err != nil {
		if errors.Is(err, request.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "service request not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch service request"})
	}
	if !r.IsParty(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this service request"})
	}

	e := &Escrow{
		ID:         uuid.New().String(),
		RequestID:  r.ID,
		ClientID:   r.RequesterID,
		ProviderID: r.ProviderID,
		Status:     StatusPending,
	}
	if err := h.store.Create(ctx, e); err != nil {
		if errors.Is(err, ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "escrow already exists for this request"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create escrow"})
	}

	h.notify.EscrowEvent(ctx, e, request.StatusInProgress, userID, "opened")

	return c.JSON(http.StatusCreated, echo.Map{"escrow": e})
}

// GetByRequest - fetch the escrow tied to a service request
func (h *Handler) GetByRequest(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	requestID := c.Param("requestId")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing request id"})
	}

	e, err := h.store.GetByRequest(context.Background(), requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "escrow not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch escrow"})
	}

	return c.JSON(http.StatusOK, echo.Map{"escrow": e})
}

// Confirm - one party affirms completion; the second affirmation settles
func (h *Handler) Confirm(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	escrowID := c.Param("id")
	if escrowID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing escrow id"})
	}

	ctx := context.Background()

	e, err := h.store.Get(ctx, escrowID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "escrow not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch escrow"})
	}
	if !e.IsParty(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a party to this escrow"})
	}
	if !e.Live() {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "cannot confirm a " + string(e.Status) + " escrow",
		})
	}

	completed := e.Confirm(userID, time.Now().UTC())

	mirror := request.Status("")
	event := "confirmed"
	if completed {
		mirror = request.StatusCompleted
		event = "completed"
	}
	if err := h.store.Update(ctx, e, mirror); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update escrow"})
	}

	h.notify.EscrowEvent(ctx, e, mirror, userID, event)

	msg := "confirmation received"
	if completed {
		msg = "service completed"
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg, "escrow": e})
}

// Dispute - either party flags the engagement; disputes are terminal
func (h *Handler) Dispute(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	escrowID := c.Param("id")
	if escrowID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing escrow id"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil || req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload: reason required"})
	}

	ctx := context.Background()

	e, err := h.store.Get(ctx, escrowID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "escrow not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch escrow"})
	}
	if !e.IsParty(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a party to this escrow"})
	}
	if !e.Live() {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "cannot dispute a " + string(e.Status) + " escrow",
		})
	}

	e.Status = StatusDisputed
	e.DisputeReason = req.Reason
	if err := h.store.Update(ctx, e, request.StatusDisputed); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update escrow"})
	}

	h.notify.EscrowEvent(ctx, e, request.StatusDisputed, userID, "disputed")

	return c.JSON(http.StatusOK, echo.Map{"message": "dispute submitted", "escrow": e})
}

// Cancel - either party abandons the engagement before settlement
func (h *Handler) Cancel(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	escrowID := c.Param("id")
	if escrowID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing escrow id"})
	}

	ctx := context.Background()

	e, err := h.store.Get(ctx, escrowID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "escrow not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch escrow"})
	}
	if !e.IsParty(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a party to this escrow"})
	}
	if !e.Live() {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "cannot cancel a " + string(e.Status) + " escrow",
		})
	}

	e.Status = StatusCancelled
	if err := h.store.Update(ctx, e, request.StatusCancelled); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update escrow"})
	}

	h.notify.EscrowEvent(ctx, e, request.StatusCancelled, userID, "cancelled")

	return c.JSON(http.StatusOK, echo.Map{"message": "service cancelled", "escrow": e})
}

// SubmitFeedback - client rates a completed engagement; resubmission overwrites
func (h *Handler) SubmitFeedback(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	escrowID := c.Param("id")
	if escrowID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing escrow id"})
	}

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	// Rejected regardless of escrow status or actor
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be between 1 and 5"})
	}

	ctx := context.Background()

	e, err := h.store.Get(ctx, escrowID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "escrow not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch escrow"})
	}
	if userID != e.ClientID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the client can submit feedback"})
	}
	if e.Status != StatusCompleted {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "feedback is only accepted for completed services",
		})
	}

	rating := req.Rating
	e.Feedback = Feedback{Rating: &rating, Comment: req.Comment}
	if err := h.store.Update(ctx, e, ""); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save feedback"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "feedback submitted", "escrow": e})
}

// List - all escrows where the caller is client or provider
func (h *Handler) List(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	escrows, err := h.store.ListForUser(context.Background(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list escrows"})
	}

	return c.JSON(http.StatusOK, echo.Map{"count": len(escrows), "escrows": escrows})
}
