package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-coding/internal/service"
	"collaborative-coding/internal/tasks"
)

// ActivityRecorder 是 RoomService 中被任务使用的部分
type ActivityRecorder interface {
	TouchActivity(ctx context.Context, roomID string) error
}

// RoomTouchHandler 处理 room:touch 任务
type RoomTouchHandler struct {
	recorder ActivityRecorder
}

// NewRoomTouchHandler 创建 Handler 实例
func NewRoomTouchHandler(recorder ActivityRecorder) *RoomTouchHandler {
	if recorder == nil {
		panic("ActivityRecorder cannot be nil for RoomTouchHandler")
	}
	return &RoomTouchHandler{recorder: recorder}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomTouchHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
	})

	var payload tasks.RoomTouchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithField("room_id", payload.RoomID)

	if err := h.recorder.TouchActivity(ctx, payload.RoomID); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) || errors.Is(err, service.ErrBadRequest) {
			logCtx.WithError(err).Warn("Room vanished before touch, skipping")
			return fmt.Errorf("room %s: %v: %w", payload.RoomID, err, asynq.SkipRetry)
		}
		logCtx.WithError(err).Error("Failed to touch room activity")
		return fmt.Errorf("touch room %s: %w", payload.RoomID, err)
	}

	logCtx.Debug("Room activity recorded")
	return nil
}
