package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// ContextUserIDKey 是认证后写入 gin.Context 的用户 ID 键
const ContextUserIDKey = "user_id"

// ErrMissingAuthHeader 表示请求既没有 Authorization 头也没有 token 参数
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth 校验 JWT，把 user_id 写入上下文。REST 请求和 /ws 升级共用。
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		logCtx := logrus.WithField("path", c.FullPath())

		tokenStr, err := extractToken(c)
		switch {
		case errors.Is(err, ErrMissingAuthHeader):
			logCtx.Debug("Auth middleware: no token on request")
			abortUnauthorized(c, "Authorization header is required")
			return
		case err != nil:
			logCtx.WithError(err).Warn("Auth middleware: malformed Authorization header")
			abortUnauthorized(c, "Invalid token format")
			return
		}

		userID, err := ParseUserID(tokenStr, jwtSecret)
		if err != nil {
			logCtx.WithError(err).WithField("reason", rejectReason(err)).Warn("Auth middleware: token rejected")
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// rejectReason 把 jwt 校验错误归类，只用于日志
func rejectReason(err error) string {
	var ve *jwt.ValidationError
	if !errors.As(err, &ve) {
		return "claims"
	}
	switch {
	case ve.Errors&jwt.ValidationErrorExpired != 0:
		return "expired"
	case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
		return "signature"
	case ve.Errors&jwt.ValidationErrorMalformed != 0:
		return "malformed"
	default:
		return "invalid"
	}
}

// ParseUserID 验证 HMAC 签名的 token 并返回 user_id claim
func ParseUserID(tokenStr, secret string) (uint, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("token validation failed: %w", err)
	}

	// JSON 数字解码为 float64，小数或非正数都不是合法的用户 ID
	raw, ok := claims["user_id"].(float64)
	if !ok || raw <= 0 || raw != float64(uint(raw)) {
		return 0, fmt.Errorf("invalid user_id claim: %v", claims["user_id"])
	}
	return uint(raw), nil
}

// extractToken 优先读取 Bearer 头。浏览器的 WebSocket 无法设置请求头，所以也接受 ?token=。
func extractToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", ErrMissingAuthHeader
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.Contains(token, " ") {
		return "", jwt.ErrTokenMalformed
	}
	return token, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
