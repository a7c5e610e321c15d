package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-coding/internal/service"
)

// HandleServiceError 把 Service 层的业务错误映射为 HTTP 状态码。
// 400/409 会带出具体原因，其余只返回通用描述。
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrRoomNotFound):
		ErrorResponse(c, http.StatusNotFound, "Room not found")
	case errors.Is(err, service.ErrFileNotFound):
		ErrorResponse(c, http.StatusNotFound, "File not found")
	case errors.Is(err, service.ErrUserNotFound):
		ErrorResponse(c, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrBadRequest):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConflict):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUpstreamFailure):
		ErrorResponse(c, http.StatusBadGateway, "Upstream service failed")
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
