package worker

import (
	"context"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// ActiveRoomLister 提供当前有在线连接的房间 ID (由 Hub 实现)
type ActiveRoomLister interface {
	ActiveRoomIDs() []string
}

// ActiveRoomSweepHandler 处理周期性的活跃房间刷新任务：
// 只要房间里还有连接，就把 last_active_at 往前推，即使没有人写文件。
type ActiveRoomSweepHandler struct {
	rooms    ActiveRoomLister
	recorder ActivityRecorder
}

// NewActiveRoomSweepHandler 创建 Handler 实例
func NewActiveRoomSweepHandler(rooms ActiveRoomLister, recorder ActivityRecorder) *ActiveRoomSweepHandler {
	if rooms == nil {
		panic("ActiveRoomLister cannot be nil for ActiveRoomSweepHandler")
	}
	if recorder == nil {
		panic("ActivityRecorder cannot be nil for ActiveRoomSweepHandler")
	}
	return &ActiveRoomSweepHandler{rooms: rooms, recorder: recorder}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *ActiveRoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	roomIDs := h.rooms.ActiveRoomIDs()
	if len(roomIDs) == 0 {
		logCtx.Debug("No active rooms, skipping sweep")
		return nil
	}
	logCtx.Infof("Sweeping %d active rooms", len(roomIDs))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, roomID := range roomIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			touchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := h.recorder.TouchActivity(touchCtx, id); err != nil {
				logCtx.WithField("room_id", id).WithError(err).Warn("Failed to touch active room")
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(roomID)
	}
	wg.Wait()

	// 单个房间失败不让整个周期任务重试
	if failed > 0 {
		logCtx.Errorf("Active room sweep completed with %d failures", failed)
	}
	return nil
}
