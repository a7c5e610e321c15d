package websocket

import (
	"net/http"

	"collaborative-coding/internal/hub"
	"collaborative-coding/internal/middleware"
	"collaborative-coding/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler 负责处理 WebSocket 升级请求并把连接交给 Hub
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	authService *service.AuthService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为空或 "*" 时接受任意来源。
func NewWebSocketHandler(h *hub.Hub, authService *service.AuthService, allowedOrigin string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if authService == nil {
		panic("AuthService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}

	return &WebSocketHandler{upgrader: upgrader, hub: h, authService: authService}
}

// HandleConnection 处理 /ws 连接请求。房间订阅在连接建立后通过 join-room 事件完成。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	userID, ok := userIDAny.(uint)
	if !exists || !ok || userID == 0 {
		logrus.Warn("WS Handler: User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	user, err := h.authService.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		logCtx.WithError(err).Warn("WS Handler: Failed to load user")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写出了 HTTP 错误响应
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, userID, user.Name())
	client.Run()
	logCtx.WithField("conn_id", client.ID()).Info("WS Handler: Connection upgraded, pumps started")
}
