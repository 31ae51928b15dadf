package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/duochat/internal/config"
	"github.com/vovakirdan/duochat/internal/core"
	"github.com/vovakirdan/duochat/internal/feed"
	"github.com/vovakirdan/duochat/internal/store"
)

// Conversation is the controller surface the transport drives.
type Conversation interface {
	Active() store.Persona
	TogglePersona() store.Persona
	Messages() feed.Feed[[]store.Message]
	SendMessage(content string) error
	MarkMessagesAsRead(active store.Persona) error
	Attach(client *core.Client) func()
}

// NewServer builds an HTTP server with the REST and WebSocket routes.
func NewServer(conv Conversation, chat core.ChatService, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	msgs := NewMessageHandlers(conv, chat, cfg.MaxMessageBytes, logger)
	api := router.Group("/api")
	{
		api.GET("/messages", msgs.ListMessages)
		api.POST("/messages", msgs.SendMessage)
		api.PUT("/messages/:id", msgs.UpdateMessage)
		api.GET("/messages/unread", msgs.ListUnread)
		api.POST("/messages/read", msgs.MarkRead)
		api.GET("/persona", msgs.GetPersona)
		api.POST("/persona/toggle", msgs.TogglePersona)
	}

	// The WebSocket handler hijacks the connection itself, so it stays on
	// the plain mux in front of gin.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(conv, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
