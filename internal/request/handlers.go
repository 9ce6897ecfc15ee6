package request

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/skillswap-labs/skillswap/internal/user"
)

// Notifier mirrors a persisted transition onto the realtime channel and
// the out-of-band notification paths. Implemented by the bridge.
type Notifier interface {
	RequestCreated(ctx context.Context, r *ServiceRequest)
	RequestUpdated(ctx context.Context, r *ServiceRequest, actorID string)
}

type Handler struct {
	store  Store
	users  user.Directory
	notify Notifier
}

func NewHandler(store Store, users user.Directory, notify Notifier) *Handler {
	return &Handler{store: store, users: users, notify: notify}
}

// Create - requester opens a service request against a provider
func (h *Handler) Create(c echo.Context) error {
	requesterID, ok := c.Get("user_id").(string)
	if !ok || requesterID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		ProviderID string `json:"provider_id"`
		Terms      string `json:"terms"`
	}
	if err := c.Bind(&req); err != nil || req.ProviderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload: provider_id required"})
	}
	if _, err := uuid.Parse(req.ProviderID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}
	if req.ProviderID == requesterID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot send a service request to yourself"})
	}

	ctx := context.Background()

	if _, err := h.users.Lookup(ctx, req.ProviderID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve provider"})
	}

	r := &ServiceRequest{
		ID:          uuid.New().String(),
		RequesterID: requesterID,
		ProviderID:  req.ProviderID,
		Status:      StatusPending,
		Terms:       req.Terms,
	}
	if err := h.store.Create(ctx, r); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create service request"})
	}

	// Notify provider out of band (best-effort)
	h.notify.RequestCreated(ctx, r)

	return c.JSON(http.StatusCreated, echo.Map{"request": r})
}

// UpdateStatus - either party moves the request along the transition graph
func (h *Handler) UpdateStatus(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	requestID := c.Param("id")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing request id"})
	}

	var req struct {
		Status Status `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	if !req.Status.Nominal() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status value"})
	}

	ctx := context.Background()

	r, err := h.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "service request not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch service request"})
	}
	if !r.IsParty(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this service request"})
	}
	if !CanTransition(r.Status, req.Status) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "invalid status transition",
			"from":  r.Status,
			"to":    req.Status,
		})
	}

	r.Status = req.Status
	if err := h.store.Update(ctx, r); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update service request"})
	}

	h.notify.RequestUpdated(ctx, r, userID)

	return c.JSON(http.StatusOK, echo.Map{"request": r})
}

// UpdateTerms - renegotiate terms; always forces status back to negotiating
func (h *Handler) UpdateTerms(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	requestID := c.Param("id")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing request id"})
	}

	var req struct {
		Terms string `json:"terms"`
	}
	if err := c.Bind(&req); err != nil || req.Terms == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload: terms required"})
	}

	ctx := context.Background()

	r, err := h.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "service request not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch service request"})
	}
	if !r.IsParty(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this service request"})
	}
	if r.Status != StatusPending && r.Status != StatusNegotiating {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "terms can only be updated for pending or negotiating requests",
		})
	}

	r.Terms = req.Terms
	r.Status = StatusNegotiating
	if err := h.store.Update(ctx, r); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update service request"})
	}

	h.notify.RequestUpdated(ctx, r, userID)

	return c.JSON(http.StatusOK, echo.Map{"request": r})
}

// MarkCompletion - actor flags their side done; both flags complete the request
func (h *Handler) MarkCompletion(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	requestID := c.Param("id")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing request id"})
	}

	ctx := context.Background()

	r, err := h.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "service request not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch service request"})
	}
	if !r.IsParty(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this service request"})
	}
	if r.Status != StatusAccepted {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "only accepted service requests can be marked as completed",
		})
	}

	// Re-invocation by the same actor is a no-op on the flag but still succeeds
	if userID == r.RequesterID {
		r.RequesterCompletionMarked = true
	} else {
		r.ProviderCompletionMarked = true
	}
	if r.RequesterCompletionMarked && r.ProviderCompletionMarked {
		r.Status = StatusCompleted
	}

	if err := h.store.Update(ctx, r); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update service request"})
	}

	h.notify.RequestUpdated(ctx, r, userID)

	return c.JSON(http.StatusOK, echo.Map{"request": r})
}

// List - all service requests for the caller, optionally filtered by status
func (h *Handler) List(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	status := Status(c.QueryParam("status"))
	if status != "" && !status.Nominal() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status value"})
	}

	requests, err := h.store.ListForUser(context.Background(), userID, status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list service requests"})
	}

	return c.JSON(http.StatusOK, echo.Map{"count": len(requests), "requests": requests})
}

// FindBetween - the most recent live request between the caller and a user
func (h *Handler) FindBetween(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	otherID := c.Param("userId")
	if _, err := uuid.Parse(otherID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	r, err := h.store.FindBetween(context.Background(), userID, otherID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch service request"})
	}

	// r is null when no live request exists between the pair
	return c.JSON(http.StatusOK, echo.Map{"request": r})
}
