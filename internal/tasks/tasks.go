package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型常量
const (
	TypeRoomTouch       = "room:touch"        // 记录单个房间的活动时间
	TypeActiveRoomSweep = "room:sweep-active" // 周期性刷新有在线连接的房间
)

// touchUniqueTTL 内同一房间的重复 touch 任务会被 asynq 去重
const touchUniqueTTL = 30 * time.Second

// RoomTouchPayload 是 room:touch 任务的数据结构
type RoomTouchPayload struct {
	RoomID string `json:"roomId"`
}

// NewRoomTouchTask 创建 room:touch 任务的 payload
func NewRoomTouchTask(roomID string) ([]byte, error) {
	return json.Marshal(RoomTouchPayload{RoomID: roomID})
}

// NewActiveRoomSweepTask 创建周期任务的 payload (当前为空对象)
func NewActiveRoomSweepTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}

// Enqueuer 是 asynq.Client 的子集，便于测试替换
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqActivityNotifier 把房间活动投递为后台任务，实现 service.ActivityNotifier
type AsynqActivityNotifier struct {
	client Enqueuer
}

// NewAsynqActivityNotifier 创建 AsynqActivityNotifier
func NewAsynqActivityNotifier(client Enqueuer) *AsynqActivityNotifier {
	if client == nil {
		panic("asynq client cannot be nil for AsynqActivityNotifier")
	}
	return &AsynqActivityNotifier{client: client}
}

// NotifyActivity 投递 room:touch 任务，短时间内重复投递视为成功
func (n *AsynqActivityNotifier) NotifyActivity(ctx context.Context, roomID string) error {
	payload, err := NewRoomTouchTask(roomID)
	if err != nil {
		return fmt.Errorf("marshal room touch payload: %w", err)
	}
	task := asynq.NewTask(TypeRoomTouch, payload)
	_, err = n.client.EnqueueContext(ctx, task,
		asynq.Queue("low"),
		asynq.MaxRetry(3),
		asynq.Unique(touchUniqueTTL),
	)
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return fmt.Errorf("enqueue room touch task for %s: %w", roomID, err)
	}
	return nil
}
