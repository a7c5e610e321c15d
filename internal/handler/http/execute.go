package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collaborative-coding/internal/service"
)

// ExecuteHandler 把代码执行请求转交给 ExecutionService
type ExecuteHandler struct {
	roomService      *service.RoomService
	executionService *service.ExecutionService
}

// NewExecuteHandler 创建 ExecuteHandler 实例
func NewExecuteHandler(roomService *service.RoomService, executionService *service.ExecutionService) *ExecuteHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for ExecuteHandler")
	}
	if executionService == nil {
		panic("ExecutionService cannot be nil for ExecuteHandler")
	}
	return &ExecuteHandler{roomService: roomService, executionService: executionService}
}

// ExecuteRequest 定义执行请求的结构体
type ExecuteRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Input    string `json:"input"`
}

// Execute 在房间上下文中执行代码，调用方必须是房间成员
func (h *ExecuteHandler) Execute(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.roomService.CheckMembership(c.Request.Context(), c.Param("roomId"), userID); err != nil {
		HandleServiceError(c, err)
		return
	}

	result, err := h.executionService.Execute(c.Request.Context(), req.Code, req.Language, req.Input)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}
