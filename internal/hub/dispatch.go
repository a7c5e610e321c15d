package hub

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"

	"collaborative-coding/internal/dto"
	"collaborative-coding/internal/service"
)

// HandleFrame 解码客户端发来的一帧并执行对应操作。
// 由连接的读 goroutine 同步调用。
func (h *Hub) HandleFrame(client *Client, raw []byte) {
	logCtx := client.logCtx()

	var frame dto.Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		logCtx.WithError(err).Debug("Malformed frame")
		h.replyError(client, "malformed frame")
		return
	}

	switch frame.Event {
	case dto.EventJoinRoom:
		h.handleJoinRoom(client, frame.Data)
	case dto.EventCodeChange:
		var p dto.CodeChange
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			h.replyError(client, "invalid code-change payload")
			return
		}
		if !h.isSubscribed(client, p.RoomID) {
			h.replyError(client, "not joined to room")
			return
		}
		h.PublishEdit(p.RoomID, client, dto.CodeUpdate{Code: p.Code, FilePath: p.FilePath, FileName: p.FileName})
	case dto.EventCursorPosition:
		var p dto.CursorPosition
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			h.replyError(client, "invalid cursor-position payload")
			return
		}
		if !h.isSubscribed(client, p.RoomID) {
			h.replyError(client, "not joined to room")
			return
		}
		h.PublishCursor(p.RoomID, client, h.cursorFrom(client, p))
	default:
		logCtx.WithField("event", frame.Event).Warn("Unknown event")
		h.replyError(client, "unknown event: "+frame.Event)
	}
}

// handleJoinRoom 接受 {"roomId": "..."} 或直接的字符串房间 ID
func (h *Hub) handleJoinRoom(client *Client, data json.RawMessage) {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		var p dto.JoinRoom
		if err := json.Unmarshal(data, &p); err != nil {
			h.replyError(client, "invalid join-room payload")
			return
		}
		roomID = p.RoomID
	}

	ctx, cancel := context.WithTimeout(context.Background(), gateTimeout)
	defer cancel()
	if err := h.gate.CheckMembership(ctx, roomID, client.userID); err != nil {
		client.logCtx().WithField("room_id", roomID).WithError(err).Warn("join-room rejected")
		h.replyError(client, joinErrorMessage(err))
		return
	}

	h.JoinChannel(client, roomID)
	if frame, err := dto.NewFrame(dto.EventJoined, dto.Joined{RoomID: roomID}); err == nil {
		h.sendTo(client, frame)
	}
}

// cursorFrom 以连接的认证身份覆盖载荷中的用户信息
func (h *Hub) cursorFrom(client *Client, p dto.CursorPosition) dto.CursorUpdate {
	username := client.displayName
	if username == "" {
		username = p.Username
	}
	return dto.CursorUpdate{
		Position: p.Position,
		UserID:   strconv.FormatUint(uint64(client.userID), 10),
		Username: username,
	}
}

func (h *Hub) isSubscribed(client *Client, roomID string) bool {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return roomID != "" && client.room == roomID
}

func (h *Hub) replyError(client *Client, message string) {
	frame, err := dto.NewFrame(dto.EventError, dto.ErrorMessage{Message: message})
	if err != nil {
		logrus.WithError(err).Error("Failed to encode error frame")
		return
	}
	h.sendTo(client, frame)
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, service.ErrUnauthorized):
		return "not a member of this room"
	case errors.Is(err, service.ErrBadRequest):
		return "room id is required"
	default:
		return "failed to join room"
	}
}
