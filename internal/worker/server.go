package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-coding/internal/tasks"
)

// 房间活动任务全部走 low 队列，default 留给以后需要及时处理的任务
var workerQueues = map[string]int{
	"default": 3,
	"low":     1,
}

const workerConcurrency = 4

// WorkerServer 运行房间活动相关的后台任务
type WorkerServer struct {
	server   *asynq.Server
	log      *logrus.Entry
	rooms    ActiveRoomLister
	recorder ActivityRecorder
}

// NewWorkerServer 创建 WorkerServer，rooms 提供周期刷新时的在线房间列表
func NewWorkerServer(redisOpt asynq.RedisClientOpt, rooms ActiveRoomLister, recorder ActivityRecorder, logger *logrus.Logger) *WorkerServer {
	if rooms == nil || recorder == nil {
		panic("ActiveRoomLister and ActivityRecorder cannot be nil for WorkerServer")
	}
	logEntry := logger.WithField("component", "room_worker")

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:  workerConcurrency,
		Queues:       workerQueues,
		Logger:       logEntry,
		ErrorHandler: asynq.ErrorHandlerFunc(taskFailureLogger(logEntry)),
	})

	return &WorkerServer{server: server, log: logEntry, rooms: rooms, recorder: recorder}
}

// taskFailureLogger 记录最终失败或将要重试的任务，room:touch 额外带上房间 ID
func taskFailureLogger(log *logrus.Entry) func(ctx context.Context, task *asynq.Task, err error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		fields := logrus.Fields{"task_type": task.Type(), "retries": retried, "max_retry": maxRetry}
		if task.Type() == tasks.TypeRoomTouch {
			var payload tasks.RoomTouchPayload
			if json.Unmarshal(task.Payload(), &payload) == nil {
				fields["room_id"] = payload.RoomID
			}
		}
		entry := log.WithFields(fields).WithError(err)
		if errors.Is(err, asynq.SkipRetry) || retried >= maxRetry {
			entry.Error("Room task dropped")
			return
		}
		entry.Warn("Room task failed, will retry")
	}
}

// NewServeMux 注册全部任务处理器
func NewServeMux(rooms ActiveRoomLister, recorder ActivityRecorder) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeRoomTouch, NewRoomTouchHandler(recorder))
	mux.Handle(tasks.TypeActiveRoomSweep, NewActiveRoomSweepHandler(rooms, recorder))
	return mux
}

// Start 阻塞运行，直到 Shutdown 被调用
func (ws *WorkerServer) Start() {
	ws.log.Info("Room worker starting")
	if err := ws.server.Run(NewServeMux(ws.rooms, ws.recorder)); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		ws.log.WithError(err).Fatal("Room worker stopped unexpectedly")
	}
	ws.log.Info("Room worker stopped")
}

// Shutdown 等待进行中的任务结束后关闭
func (ws *WorkerServer) Shutdown() {
	ws.server.Shutdown()
}
