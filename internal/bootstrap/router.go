package bootstrap

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	httpHandler "collaborative-coding/internal/handler/http"
	wsHandler "collaborative-coding/internal/handler/websocket"
	"collaborative-coding/internal/middleware"
)

// RouterDeps 是组装路由所需的全部 Handler 与中间件参数
type RouterDeps struct {
	Log               *logrus.Logger
	JWTSecret         string
	CORSAllowedOrigin string
	RateLimiter       middleware.RateLimiter // 可以为 nil，此时不限流
	RateLimitMax      int
	RateLimitWindow   time.Duration

	Auth    *httpHandler.AuthHandler
	Rooms   *httpHandler.RoomHandler
	Files   *httpHandler.FileHandler
	Execute *httpHandler.ExecuteHandler
	WS      *wsHandler.WebSocketHandler
}

// NewRouter 创建 Gin Engine 并注册全部路由
func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(d.Log))
	router.Use(CORSMiddleware(d.CORSAllowedOrigin))
	if d.RateLimiter != nil {
		router.Use(middleware.RateLimit(d.RateLimiter, d.RateLimitMax, d.RateLimitWindow))
	}

	auth := middleware.Auth(d.JWTSecret)

	api := router.Group("/api")
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/identity", d.Auth.Identity)
		authRoutes.GET("/current-user", auth, d.Auth.CurrentUser)
	}
	roomRoutes := api.Group("/rooms").Use(auth)
	{
		roomRoutes.POST("/create", d.Rooms.CreateRoom)
		roomRoutes.GET("/active", d.Rooms.ListActiveRooms)
		roomRoutes.POST("/:roomId/join", d.Rooms.JoinRoom)
		roomRoutes.POST("/:roomId/files", d.Files.UpsertFile)
		roomRoutes.GET("/:roomId/files", d.Files.ListFiles)
		roomRoutes.POST("/:roomId/execute", d.Execute.Execute)
	}
	router.GET("/ws", auth, d.WS.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	return router
}

// CORSMiddleware 只允许配置的来源跨域访问
func CORSMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, "+httpHandler.IdentitySecretHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" && c.Request.URL.Query().Get("token") == "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			entry.Error(errorMessage)
			return
		}
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
