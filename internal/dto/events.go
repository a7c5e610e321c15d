// Package dto 定义了实时通道上传输的消息结构，服务端 Hub 与客户端同步引擎共用。
package dto

import (
	"encoding/json"

	"collaborative-coding/internal/domain"
)

// 实时通道事件名
const (
	// 客户端 -> 服务端
	EventJoinRoom       = "join-room"
	EventCodeChange     = "code-change"
	EventCursorPosition = "cursor-position"

	// 服务端 -> 其他成员
	EventCodeUpdate   = "code-update"
	EventCursorUpdate = "cursor-update"

	// 服务端 -> 发送者本人
	EventJoined = "joined"
	EventError  = "error"
)

// Frame 是每一条 WebSocket 文本消息的外层信封
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame 把 data 序列化后装入信封并返回完整的消息字节
func NewFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// JoinRoom 是 join-room 的载荷
type JoinRoom struct {
	RoomID string `json:"roomId"`
}

// Joined 确认订阅成功
type Joined struct {
	RoomID string `json:"roomId"`
}

// CodeChange 是 code-change 的载荷。FileName 可选，存在时接收端同时比较文件名。
type CodeChange struct {
	RoomID   string `json:"roomId"`
	Code     string `json:"code"`
	FilePath string `json:"filePath"`
	FileName string `json:"fileName,omitempty"`
}

// CodeUpdate 是转发给其他成员的 code-update 载荷
type CodeUpdate struct {
	Code     string `json:"code"`
	FilePath string `json:"filePath"`
	FileName string `json:"fileName,omitempty"`
}

// CursorPosition 是 cursor-position 的载荷
type CursorPosition struct {
	RoomID   string          `json:"roomId"`
	Position domain.Position `json:"cursor"`
	UserID   string          `json:"userId"`
	Username string          `json:"username"`
}

// CursorUpdate 是转发给其他成员的 cursor-update 载荷
type CursorUpdate struct {
	Position domain.Position `json:"cursor"`
	UserID   string          `json:"userId"`
	Username string          `json:"username"`
}

// ErrorMessage 是发送给连接本人的错误通知
type ErrorMessage struct {
	Message string `json:"message"`
}
