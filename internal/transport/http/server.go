package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/venturesroom/venturechat/internal/auth"
	"github.com/venturesroom/venturechat/internal/config"
	"github.com/venturesroom/venturechat/internal/core"
	"github.com/venturesroom/venturechat/internal/metrics"
	"github.com/venturesroom/venturechat/internal/store"
)

// NewServer builds the gateway HTTP server: the REST API, the WebSocket
// relay, upload serving, health and metrics.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.Static("/uploads", cfg.UploadDir)

	apiHandlers := NewAPIHandlers(authService, logger)
	router.POST("/api/auth/register", apiHandlers.Register)
	router.POST("/api/auth/login", apiHandlers.Login)

	msgHandlers := NewMessageHandlers(hub, st, logger, cfg.UploadDir, cfg.MaxUploadBytes)
	presenceHandlers := NewPresenceHandlers(hub, st, logger)

	authorized := router.Group("/api", AuthMiddleware(authService, logger))
	{
		authorized.GET("/messages/conversable-partners", msgHandlers.ConversablePartners)
		authorized.GET("/messages/with/:partner", msgHandlers.ConversationWith)
		authorized.POST("/messages/send", msgHandlers.Send)
		authorized.POST("/messages/upload-image", msgHandlers.UploadImage)
		authorized.POST("/messages/mark-as-read", msgHandlers.MarkAsRead)
		authorized.GET("/messages/my-unread-summary", msgHandlers.UnreadSummary)
		authorized.GET("/presence/status", presenceHandlers.Status)
	}

	// The WebSocket upgrade needs to hijack the connection, which gin's
	// response writer refuses once it has flushed the 101. Mount /ws on a
	// plain mux and let gin serve the rest.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, cfg.MessageRateLimit, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
