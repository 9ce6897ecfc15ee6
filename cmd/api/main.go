package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/skillswap-labs/skillswap/internal/alerts"
	"github.com/skillswap-labs/skillswap/internal/bridge"
	"github.com/skillswap-labs/skillswap/internal/chat"
	"github.com/skillswap-labs/skillswap/internal/db"
	"github.com/skillswap-labs/skillswap/internal/escrow"
	appmw "github.com/skillswap-labs/skillswap/internal/middleware"
	"github.com/skillswap-labs/skillswap/internal/request"
	"github.com/skillswap-labs/skillswap/internal/user"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not loaded: %v", err)
	}

	// Init subsystems
	db.Init()
	alerts.Init()
	defer alerts.Close()

	// Wiring: stores over the shared pool, hub, then the event bridge
	// that fans domain events out to sockets, notifications and email.
	users := user.NewDirectory(db.Conn)
	requestStore := request.NewStore(db.Conn)
	escrowStore := escrow.NewStore(db.Conn)
	messageStore := chat.NewMessageStore(db.Conn)

	hub := chat.NewHub()
	eventBridge := bridge.New(hub, users)

	chatService := chat.NewService(messageStore, hub, users, eventBridge)
	chatHandler := chat.NewHandler(messageStore, users, hub, chatService)
	requestHandler := request.NewHandler(requestStore, users, eventBridge)
	escrowHandler := escrow.NewHandler(escrowStore, requestStore, eventBridge)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Health
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if db.Conn == nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db not initialized"})
		}
		if err := db.Conn.Ping(context.Background()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Websocket: authenticates via token query param, not the JWT
	// middleware, because browsers cannot set headers on ws requests.
	e.GET("/api/ws", chatHandler.Connect)

	// Authenticated API
	api := e.Group("/api")
	api.Use(appmw.JWTMiddleware)

	// Service requests
	api.POST("/requests", requestHandler.Create)
	api.GET("/requests", requestHandler.List)
	api.GET("/requests/between/:userId", requestHandler.FindBetween)
	api.PATCH("/requests/:id/status", requestHandler.UpdateStatus)
	api.PATCH("/requests/:id/terms", requestHandler.UpdateTerms)
	api.PATCH("/requests/:id/complete", requestHandler.MarkCompletion)

	// Escrows
	api.POST("/escrows", escrowHandler.Open)
	api.GET("/escrows", escrowHandler.List)
	api.GET("/escrows/request/:requestId", escrowHandler.GetByRequest)
	api.POST("/escrows/:id/confirm", escrowHandler.Confirm)
	api.POST("/escrows/:id/dispute", escrowHandler.Dispute)
	api.POST("/escrows/:id/cancel", escrowHandler.Cancel)
	api.POST("/escrows/:id/feedback", escrowHandler.SubmitFeedback)

	// Messages (REST side; live traffic rides the websocket)
	api.GET("/messages/conversations", chatHandler.Conversations)
	api.GET("/messages/conversation/:userId", chatHandler.Conversation)
	api.GET("/messages/unread", chatHandler.Unread)

	// Notifications
	api.GET("/notifications", alerts.ListNotifications)
	api.POST("/notifications/:id/read", alerts.MarkNotificationRead)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("API server listening on :%s", port)
	if err := e.Start(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
