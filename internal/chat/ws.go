package chat

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/skillswap-labs/skillswap/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Connect upgrades an authenticated HTTP request to a websocket and
// registers the connection with the hub. Browsers cannot set headers on
// websocket requests, so the token may also arrive as a query parameter.
func (h *Handler) Connect(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		auth := c.Request().Header.Get("Authorization")
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	if token == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing token"})
	}

	userID, err := middleware.ParseToken(token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(userID, ws, h.hub, h.service)
	h.hub.Register(client)
	client.Run()
	return nil
}
