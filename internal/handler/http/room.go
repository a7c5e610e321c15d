package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-coding/internal/service"
)

// RoomHandler 封装了与房间访问控制相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

// CreateRoomRequest 定义创建房间请求的结构体
type CreateRoomRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// CreateRoomResponse 定义创建房间成功的响应结构体
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// CreateRoom 处理创建新房间的请求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Room name and password are required")
		return
	}

	roomID, err := h.roomService.CreateRoom(c.Request.Context(), req.Name, req.Password, userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID}).Info("Handler.CreateRoom: Room created")
	SuccessResponse(c, http.StatusCreated, CreateRoomResponse{RoomID: roomID})
}

// JoinRoomRequest 定义加入房间请求的结构体
type JoinRoomRequest struct {
	Password string `json:"password"`
}

// JoinRoomResponse 定义加入房间成功的响应结构体
type JoinRoomResponse struct {
	Success bool   `json:"success"`
	RoomID  string `json:"roomId"`
}

// JoinRoom 处理用户加入房间的请求
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	roomID, err := h.roomService.JoinRoom(c.Request.Context(), c.Param("roomId"), req.Password, userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, JoinRoomResponse{Success: true, RoomID: roomID})
}

// ListActiveRooms 返回当前用户所在的房间，按创建时间倒序
func (h *RoomHandler) ListActiveRooms(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	rooms, err := h.roomService.ListActiveRooms(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, rooms)
}
