package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"memory-agent/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	corsOrigin string,
	tokens *service.TokenService,
	authH *AuthHandler,
	chatH *ChatHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y CORS para el frontend.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), corsMiddleware(corsOrigin))

	auth := r.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)

	authed := r.Group("", BearerAuthMiddleware(tokens))
	authed.DELETE("/users/me", authH.DeleteAccount)

	chats := authed.Group("/chats")
	chats.POST("", chatH.CreateChat)
	chats.GET("", chatH.ListChats)
	chats.PATCH("/:chat_id", chatH.RenameChat)
	chats.DELETE("/:chat_id", chatH.DeleteChat)
	chats.POST("/:chat_id/messages", chatH.SendMessage)
	chats.GET("/:chat_id/messages", chatH.ListMessages)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// corsMiddleware permite requests con credenciales desde el origen configurado.
func corsMiddleware(origin string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
