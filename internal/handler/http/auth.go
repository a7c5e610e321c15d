package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/service"
)

// IdentitySecretHeader 是身份提供方回调必须携带的请求头
const IdentitySecretHeader = "X-Identity-Secret"

// AuthHandler 封装了身份提供方回调与当前用户查询
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	if authService == nil {
		panic("AuthService cannot be nil for AuthHandler")
	}
	return &AuthHandler{authService: authService}
}

// IdentityRequest 是身份提供方回调的请求体
type IdentityRequest struct {
	ExternalID  string `json:"externalId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// IdentityResponse 返回签发的 token 与用户信息
type IdentityResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Identity 处理身份提供方的回调：按 externalId 新建或更新用户并签发 JWT
func (h *AuthHandler) Identity(c *gin.Context) {
	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Identity: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input")
		return
	}

	token, user, err := h.authService.SignIn(c.Request.Context(), c.GetHeader(IdentitySecretHeader), service.Identity{
		ExternalID:  req.ExternalID,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, IdentityResponse{Token: token, User: user})
}

// CurrentUser 返回当前登录用户
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.authService.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, user)
}
