package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "1", Type: task.Type()}, nil
}

func TestAsynqActivityNotifier_EnqueuesTouch(t *testing.T) {
	enq := &fakeEnqueuer{}
	notifier := NewAsynqActivityNotifier(enq)

	require.NoError(t, notifier.NotifyActivity(context.Background(), "room-1"))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeRoomTouch, enq.tasks[0].Type())

	var payload RoomTouchPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, "room-1", payload.RoomID)

	var queue string
	var unique bool
	for _, opt := range enq.opts[0] {
		switch opt.Type() {
		case asynq.QueueOpt:
			queue = opt.Value().(string)
		case asynq.UniqueOpt:
			unique = true
		}
	}
	assert.Equal(t, "low", queue)
	assert.True(t, unique, "同一房间的 touch 需要去重")
}

func TestAsynqActivityNotifier_Errors(t *testing.T) {
	enq := &fakeEnqueuer{err: asynq.ErrDuplicateTask}
	notifier := NewAsynqActivityNotifier(enq)
	assert.NoError(t, notifier.NotifyActivity(context.Background(), "room-1"), "重复任务视为成功")

	enq.err = errors.New("redis down")
	assert.Error(t, notifier.NotifyActivity(context.Background(), "room-1"))

	assert.Panics(t, func() { NewAsynqActivityNotifier(nil) })
}

func TestNewActiveRoomSweepTask(t *testing.T) {
	payload, err := NewActiveRoomSweepTask()
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(payload))
}
