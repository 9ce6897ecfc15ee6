package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/skillswap-labs/skillswap/internal/user"
)

// Handler serves the REST side of messaging: conversation history and
// unread counts. Live traffic goes through the websocket.
type Handler struct {
	store   MessageStore
	users   user.Directory
	hub     *Hub
	service *Service
}

func NewHandler(store MessageStore, users user.Directory, hub *Hub, service *Service) *Handler {
	return &Handler{store: store, users: users, hub: hub, service: service}
}

// Conversations - list the caller's conversations, most recent first
func (h *Handler) Conversations(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	summaries, err := h.store.Conversations(context.Background(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list conversations"})
	}
	if summaries == nil {
		summaries = []ConversationSummary{}
	}
	return c.JSON(http.StatusOK, echo.Map{"conversations": summaries})
}

// Conversation - fetch the full history with one user, oldest first.
// Fetching marks everything they sent as read.
func (h *Handler) Conversation(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	otherID := c.Param("userId")
	if _, err := uuid.Parse(otherID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx := context.Background()
	contact, err := h.users.Lookup(ctx, otherID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch user"})
	}

	messages, err := h.store.ConversationWith(ctx, userID, otherID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch conversation"})
	}
	if messages == nil {
		messages = []Message{}
	}

	// Reading the thread consumes the unread state.
	if err := h.store.MarkConversationRead(ctx, userID, otherID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to mark conversation read"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user":     contact,
		"messages": messages,
	})
}

// Unread - total unread message count for the caller
func (h *Handler) Unread(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	count, err := h.store.UnreadCount(context.Background(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute unread count"})
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": count})
}
